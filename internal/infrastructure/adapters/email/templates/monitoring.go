package templates

import (
	"bytes"
	"html/template"
	"time"

	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
)

var monitoringHTML = template.Must(template.New("monitoring").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>dnsq - monitoring status</title>
<style>
body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; background: #f4f4f4; }
.container { background: #fff; border-radius: 10px; padding: 30px; border-left: 5px solid {{.Color}}; }
.badge { display: inline-block; padding: 8px 16px; background: {{.Color}}; color: #fff; border-radius: 20px; font-weight: bold; }
table { width: 100%; border-collapse: collapse; margin-top: 20px; }
td { padding: 6px 0; border-bottom: 1px solid #eee; }
td.label { font-weight: bold; width: 45%; }
</style>
</head>
<body>
<div class="container">
<h2>dnsq latency monitor</h2>
<span class="badge">{{.State}}</span>
<table>
<tr><td class="label">Interval</td><td>{{.Interval}}</td></tr>
<tr><td class="label">Domains</td><td>{{.Status.Domains}}</td></tr>
<tr><td class="label">Started at</td><td>{{.StartedAt}}</td></tr>
<tr><td class="label">Rounds completed</td><td>{{.Status.RoundsCompleted}}</td></tr>
{{- with .Status.LastRound}}
<tr><td class="label">Last round</td><td>#{{.Round.Number}}: {{.Successes}} ok, {{.Failures}} failed, {{.Resets}} resets</td></tr>
{{- end}}
<tr><td class="label">Message</td><td>{{.Message}}</td></tr>
</table>
</div>
</body>
</html>
`))

type monitoringView struct {
	Status    domain.MonitoringStatus
	State     string
	Color     template.CSS
	Interval  string
	StartedAt string
	Message   string
}

// MonitoringTemplate renders the HTML body of a monitoring notification.
func MonitoringTemplate(status domain.MonitoringStatus) (string, error) {
	view := monitoringView{
		Status:    status,
		State:     "STOPPED",
		Color:     "#dc3545",
		Interval:  "N/A",
		StartedAt: "N/A",
		Message:   "No additional messages",
	}
	if status.IsRunning {
		view.State = "RUNNING"
		view.Color = "#28a745"
	}
	if status.Interval > 0 {
		view.Interval = status.Interval.String()
	}
	if !status.StartedAt.IsZero() {
		view.StartedAt = status.StartedAt.UTC().Format(time.RFC1123)
	}
	if status.Message != "" {
		view.Message = status.Message
	}

	var buf bytes.Buffer
	if err := monitoringHTML.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
