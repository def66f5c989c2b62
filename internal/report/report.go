// Package report renders month-end detection reports as CSV and HTML files.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pathfinder/internal/detection/models"
	dErrors "pathfinder/pkg/domain-errors"
)

// DetectionSource provides the monthly detection slice and its level summary.
type DetectionSource interface {
	ListDetectedBetween(ctx context.Context, from, to time.Time) ([]*models.DetectionRecord, error)
	CountByLevelBetween(ctx context.Context, from, to time.Time) (map[string]int, error)
}

// Result describes the files one report run produced.
type Result struct {
	MonthLabel  string
	CSVPath     string
	HTMLPath    string
	RecordCount int
}

// Builder writes one CSV and one HTML report per month label into the
// output directory.
type Builder struct {
	detections DetectionSource
	outDir     string
	logger     *slog.Logger
}

func NewBuilder(detections DetectionSource, outDir string, logger *slog.Logger) *Builder {
	return &Builder{detections: detections, outDir: outDir, logger: logger}
}

// Generate builds the report for one month label, for example "2026-07".
func (b *Builder) Generate(ctx context.Context, monthLabel string) (*Result, error) {
	from, to, err := monthRange(monthLabel)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid month label")
	}

	records, err := b.detections.ListDetectedBetween(ctx, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list detections")
	}
	counts, err := b.detections.CountByLevelBetween(ctx, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count detections")
	}

	if err := os.MkdirAll(b.outDir, 0o755); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create report directory")
	}

	csvPath := filepath.Join(b.outDir, fmt.Sprintf("report_%s.csv", monthLabel))
	if err := b.writeCSV(csvPath, records); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write csv report")
	}

	htmlPath := filepath.Join(b.outDir, fmt.Sprintf("report_%s.html", monthLabel))
	if err := b.writeHTML(htmlPath, monthLabel, records, counts); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write html report")
	}

	b.logger.InfoContext(ctx, "report generated",
		"month", monthLabel,
		"records", len(records),
		"csv", csvPath,
		"html", htmlPath,
	)
	return &Result{
		MonthLabel:  monthLabel,
		CSVPath:     csvPath,
		HTMLPath:    htmlPath,
		RecordCount: len(records),
	}, nil
}

func monthRange(label string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01", label)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse month label %q: %w", label, err)
	}
	return start, start.AddDate(0, 1, 0), nil
}

var csvHeader = []string{
	"User ID", "Username", "Title", "Seniority Level",
	"Country", "Company", "Detected At", "Rules Version",
}

func (b *Builder) writeCSV(path string, records []*models.DetectionRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if len(records) == 0 {
		if err := w.Write([]string{"No data for this month"}); err != nil {
			return err
		}
		w.Flush()
		return w.Error()
	}

	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.SubjectID,
			r.DisplayName,
			r.Title,
			strings.ToUpper(r.Level),
			orNA(r.Country),
			orNA(r.Company),
			r.DetectedAt.Format("2006-01-02 15:04:05"),
			r.RulesVersion,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

var htmlReport = template.Must(template.New("report").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
	"orNA":  orNA,
	"date":  func(t time.Time) string { return t.Format("2006-01-02") },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Senior Executive Report - {{.Month}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 40px; background-color: #f5f5f5; }
.container { background-color: white; padding: 30px; border-radius: 8px; }
h1 { color: #333; border-bottom: 3px solid #007bff; padding-bottom: 10px; }
.summary { background-color: #e7f3ff; padding: 20px; border-radius: 5px; margin: 20px 0; }
.stat { display: inline-block; margin-right: 30px; font-size: 1.1em; }
table { width: 100%; border-collapse: collapse; margin-top: 20px; }
th { background-color: #007bff; color: white; padding: 12px; text-align: left; }
td { padding: 10px; border-bottom: 1px solid #ddd; }
.badge { display: inline-block; padding: 4px 8px; border-radius: 3px; font-size: 0.85em; font-weight: bold; color: white; background-color: #17a2b8; }
</style>
</head>
<body>
<div class="container">
<h1>Senior Executive Detection Report</h1>
<p><strong>Month:</strong> {{.Month}}</p>
<p><strong>Generated:</strong> {{.Generated}}</p>
<div class="summary">
<h2>Summary</h2>
<div class="stat"><strong>Total Detections:</strong> {{.Total}}</div>
{{- range $level, $count := .Counts}}
<div class="stat"><strong>{{upper $level}}:</strong> {{$count}}</div>
{{- end}}
</div>
<h2>Detections</h2>
{{- if not .Records}}
<p><em>No senior executives detected this month.</em></p>
{{- else}}
<table>
<thead>
<tr><th>User</th><th>Title</th><th>Level</th><th>Country</th><th>Company</th><th>Detected</th></tr>
</thead>
<tbody>
{{- range .Records}}
<tr>
<td>{{.DisplayName}}</td>
<td>{{.Title}}</td>
<td><span class="badge">{{upper .Level}}</span></td>
<td>{{orNA .Country}}</td>
<td>{{orNA .Company}}</td>
<td>{{date .DetectedAt}}</td>
</tr>
{{- end}}
</tbody>
</table>
{{- end}}
</div>
</body>
</html>
`))

type htmlData struct {
	Month     string
	Generated string
	Total     int
	Counts    map[string]int
	Records   []*models.DetectionRecord
}

func (b *Builder) writeHTML(path, monthLabel string, records []*models.DetectionRecord, counts map[string]int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	total := 0
	for _, c := range counts {
		total += c
	}
	return htmlReport.Execute(f, htmlData{
		Month:     monthLabel,
		Generated: time.Now().Format("2006-01-02 15:04:05"),
		Total:     total,
		Counts:    counts,
		Records:   records,
	})
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}
