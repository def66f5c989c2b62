// Package notify delivers detection alerts and digests through the external
// automation service, isolated from the ingestion path.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"pathfinder/internal/detection/models"
	"pathfinder/internal/notify/controlroom"
	"pathfinder/internal/platform/config"
)

// Notifier is the delivery boundary consumed by the dispatcher and the
// digest sweeper.
type Notifier interface {
	SendDetectionAlert(ctx context.Context, record *models.DetectionRecord) error
	SendEmailDigest(ctx context.Context, records []*models.DetectionRecord) error
	SendTeamsDigest(ctx context.Context, records []*models.DetectionRecord) error
}

// ControlRoomNotifier implements Notifier against the control room API.
type ControlRoomNotifier struct {
	client *controlroom.Client
	cfg    config.ControlRoomConfig
	logger *slog.Logger
}

func NewControlRoomNotifier(client *controlroom.Client, cfg config.ControlRoomConfig, logger *slog.Logger) *ControlRoomNotifier {
	return &ControlRoomNotifier{client: client, cfg: cfg, logger: logger}
}

// SendDetectionAlert deploys the email automation for one detection.
func (n *ControlRoomNotifier) SendDetectionAlert(ctx context.Context, record *models.DetectionRecord) error {
	token, err := n.client.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("alert auth: %w", err)
	}

	body, err := BuildAlertHTML(record)
	if err != nil {
		return err
	}

	inputs := map[string]string{
		"emailTo":      n.cfg.Recipients,
		"emailSubject": "Senior Executive Detected: " + record.DisplayName,
		"emailBody":    body,
		"isHTML":       "true",
		"userId":       record.SubjectID,
		"detectedAt":   record.DetectedAt.Format(time.RFC3339),
	}

	deploymentID, err := n.client.Deploy(ctx, token, n.cfg.EmailBotID,
		"Senior Executive Detection Alert", inputs, controlroom.PriorityHigh)
	if err != nil {
		return fmt.Errorf("alert deploy: %w", err)
	}

	n.logger.InfoContext(ctx, "detection alert deployed",
		"detection_id", record.ID,
		"deployment_id", deploymentID,
	)
	return nil
}

// SendEmailDigest deploys the email automation with a batched digest body.
func (n *ControlRoomNotifier) SendEmailDigest(ctx context.Context, records []*models.DetectionRecord) error {
	token, err := n.client.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("digest auth: %w", err)
	}

	body, err := BuildDigestHTML(records)
	if err != nil {
		return err
	}

	inputs := map[string]string{
		"emailTo":      n.cfg.Recipients,
		"emailSubject": "Weekly Senior Executive Digest",
		"emailBody":    body,
		"isHTML":       "true",
		"totalCount":   strconv.Itoa(len(records)),
	}

	deploymentID, err := n.client.Deploy(ctx, token, n.cfg.EmailBotID,
		"Email Digest", inputs, controlroom.PriorityMedium)
	if err != nil {
		return fmt.Errorf("digest deploy: %w", err)
	}

	n.logger.InfoContext(ctx, "email digest deployed",
		"detections", len(records),
		"deployment_id", deploymentID,
	)
	return nil
}

// SendTeamsDigest deploys the chat automation with a markdown digest.
func (n *ControlRoomNotifier) SendTeamsDigest(ctx context.Context, records []*models.DetectionRecord) error {
	if n.cfg.TeamsBotID == 0 {
		return nil
	}

	token, err := n.client.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("teams digest auth: %w", err)
	}

	inputs := map[string]string{
		"teamsChannelWebhook": n.cfg.TeamsWebhook,
		"messageText":         BuildTeamsDigest(records),
		"messageType":         "markdown",
		"totalCount":          strconv.Itoa(len(records)),
	}

	deploymentID, err := n.client.Deploy(ctx, token, n.cfg.TeamsBotID,
		"Teams Digest", inputs, controlroom.PriorityMedium)
	if err != nil {
		return fmt.Errorf("teams digest deploy: %w", err)
	}

	n.logger.InfoContext(ctx, "teams digest deployed",
		"detections", len(records),
		"deployment_id", deploymentID,
	)
	return nil
}
