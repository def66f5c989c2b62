package notify

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"pathfinder/internal/detection/models"
)

var alertTemplate = template.Must(template.New("alert").Parse(`<html>
<head>
<style>
  body { font-family: Arial, sans-serif; }
  .header { background-color: #007bff; color: white; padding: 20px; }
  .content { padding: 20px; }
  .alert { background-color: #fff3cd; border-left: 4px solid #ffc107; padding: 15px; margin: 20px 0; }
  .details { background-color: #f8f9fa; padding: 15px; border-radius: 5px; }
  .label { font-weight: bold; color: #495057; }
</style>
</head>
<body>
<div class="header"><h2>Senior Executive Detected</h2></div>
<div class="content">
  <div class="alert"><strong>New senior executive detected in the community platform.</strong></div>
  <div class="details">
    <p><span class="label">Name:</span> {{.Name}}</p>
    <p><span class="label">Title:</span> {{.Title}}</p>
    <p><span class="label">Level:</span> {{.Level}}</p>
    <p><span class="label">Detected:</span> {{.Detected}}</p>
  </div>
  <p style="margin-top: 20px; color: #6c757d; font-size: 12px;">This is an automated notification from pathfinder.</p>
</div>
</body>
</html>`))

var digestTemplate = template.Must(template.New("digest").Parse(`<html>
<head>
<style>
  body { font-family: Arial, sans-serif; }
  table { border-collapse: collapse; width: 100%; }
  th { background-color: #007bff; color: white; padding: 12px; text-align: left; }
  td { padding: 10px; border-bottom: 1px solid #ddd; }
  .header { background-color: #007bff; color: white; padding: 20px; }
</style>
</head>
<body>
<div class="header"><h2>Senior Executive Digest</h2></div>
<p><strong>Total detections:</strong> {{len .Rows}}</p>
<table>
  <thead>
    <tr><th>Name</th><th>Title</th><th>Level</th><th>Detected</th></tr>
  </thead>
  <tbody>
  {{range .Rows}}
    <tr><td>{{.Name}}</td><td>{{.Title}}</td><td>{{.Level}}</td><td>{{.Detected}}</td></tr>
  {{end}}
  </tbody>
</table>
</body>
</html>`))

type alertData struct {
	Name     string
	Title    string
	Level    string
	Detected string
}

type digestRow struct {
	Name     string
	Title    string
	Level    string
	Detected string
}

// BuildAlertHTML renders the single-detection email body.
func BuildAlertHTML(record *models.DetectionRecord) (string, error) {
	var out strings.Builder
	err := alertTemplate.Execute(&out, alertData{
		Name:     fallback(record.DisplayName),
		Title:    fallback(record.Title),
		Level:    strings.ToUpper(record.Level),
		Detected: record.DetectedAt.Format(time.RFC1123),
	})
	if err != nil {
		return "", fmt.Errorf("render alert email: %w", err)
	}
	return out.String(), nil
}

// BuildDigestHTML renders the batched digest email body.
func BuildDigestHTML(records []*models.DetectionRecord) (string, error) {
	rows := make([]digestRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, digestRow{
			Name:     fallback(record.DisplayName),
			Title:    fallback(record.Title),
			Level:    strings.ToUpper(record.Level),
			Detected: record.DetectedAt.Format("2006-01-02"),
		})
	}

	var out strings.Builder
	if err := digestTemplate.Execute(&out, struct{ Rows []digestRow }{rows}); err != nil {
		return "", fmt.Errorf("render digest email: %w", err)
	}
	return out.String(), nil
}

// BuildTeamsDigest renders the markdown digest for the chat channel variant.
func BuildTeamsDigest(records []*models.DetectionRecord) string {
	var out strings.Builder
	fmt.Fprintf(&out, "**Senior Executive Detections**\n\n**Total detections:** %d\n\n", len(records))
	for _, record := range records {
		fmt.Fprintf(&out, "- **%s** - %s (%s)\n", fallback(record.DisplayName), fallback(record.Title), strings.ToUpper(record.Level))
		fmt.Fprintf(&out, "  Detected: %s\n\n", record.DetectedAt.Format("2006-01-02"))
	}
	return out.String()
}

func fallback(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
