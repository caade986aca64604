package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/0xPuncker/andon-notifier/pkg/config"
	"github.com/0xPuncker/andon-notifier/pkg/types"
	"github.com/0xPuncker/andon-notifier/pkg/utils"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type reportView struct {
	Department   string
	Period       string
	StopCount    int
	StopTime     string
	IdleCount    int
	IdleTime     string
	HasTarget    bool
	Target       string
	Achievement  string
	OnTarget     bool
	DashboardURL string
}

var reportHTML = template.Must(template.New("report").Parse(`<html>
<body style="font-family: sans-serif;">
<h2>{{ .Department }} daily line report, {{ .Period }}</h2>
<table cellpadding="6" style="border-collapse: collapse;">
<tr><td>Andon stops</td><td><b>{{ .StopCount }}</b> ({{ .StopTime }})</td></tr>
<tr><td>Idle periods</td><td><b>{{ .IdleCount }}</b> ({{ .IdleTime }})</td></tr>
{{- if .HasTarget }}
<tr><td>Stop target</td><td>{{ .Target }}</td></tr>
<tr><td>Achievement</td><td style="color: {{ if .OnTarget }}#2e7d32{{ else }}#c62828{{ end }};"><b>{{ .Achievement }}</b></td></tr>
{{- end }}
</table>
{{- if .DashboardURL }}
<p><a href="{{ .DashboardURL }}">Open the dashboard</a></p>
{{- end }}
</body>
</html>`))

func displayName(d config.Department) string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return cases.Title(language.English).String(strings.ReplaceAll(d.Name, "_", " "))
}

func formatDepartmentReport(period time.Time, dept config.Department, summary types.DepartmentSummary, dashboardURL string) (*Message, error) {
	name := displayName(dept)
	day := period.Format("Mon, 02 Jan 2006")

	view := reportView{
		Department:   name,
		Period:       day,
		StopCount:    summary.StopCount,
		StopTime:     utils.FormatDuration(summary.StopDuration()),
		IdleCount:    summary.IdleCount,
		IdleTime:     utils.FormatDuration(summary.IdleDuration()),
		DashboardURL: dashboardURL,
	}

	if rate, ok := summary.AchievementRate(dept.TargetStopMinutes); ok {
		view.HasTarget = true
		view.Target = utils.FormatDuration(time.Duration(dept.TargetStopMinutes * float64(time.Minute)))
		view.Achievement = fmt.Sprintf("%.1f%%", rate)
		view.OnTarget = summary.StopMinutes <= dept.TargetStopMinutes
	}

	var html bytes.Buffer
	if err := reportHTML.Execute(&html, view); err != nil {
		return nil, fmt.Errorf("failed to render report for %s: %w", dept.Name, err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%s daily line report, %s\n\n", view.Department, view.Period)
	fmt.Fprintf(&text, "Andon stops:  %d (%s)\n", view.StopCount, view.StopTime)
	fmt.Fprintf(&text, "Idle periods: %d (%s)\n", view.IdleCount, view.IdleTime)
	if view.HasTarget {
		fmt.Fprintf(&text, "Stop target:  %s\n", view.Target)
		fmt.Fprintf(&text, "Achievement:  %s\n", view.Achievement)
	}
	if dashboardURL != "" {
		fmt.Fprintf(&text, "\nDashboard: %s\n", dashboardURL)
	}

	icon := "✅"
	if view.HasTarget && !view.OnTarget {
		icon = "⚠️"
	}

	return &Message{
		To:       dept.Recipients,
		Subject:  fmt.Sprintf("%s %s line report: %d stops, %s idle", icon, name, summary.StopCount, view.IdleTime),
		TextBody: text.String(),
		HTMLBody: html.String(),
	}, nil
}
