package report

import (
	"fmt"
	"html/template"
	"io"
	"os"
)

var htmlTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"ms":  func(v float64) string { return fmt.Sprintf("%.2f ms", v) },
	"pct": func(v float64) string { return fmt.Sprintf("%.2f%%", v*100) },
	"deref": func(v *float64) float64 {
		if v == nil {
			return 0
		}
		return *v
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; background: #1a1a1a; color: #fafafa; }
h1 { color: #7d56f4; }
table { border-collapse: collapse; margin-bottom: 2em; }
th, td { border: 1px solid #3c3c3c; padding: 4px 12px; text-align: left; }
.pass { color: #04b575; }
.fail { color: #ff5f87; }
.verdict { font-size: 1.3em; font-weight: bold; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Target: {{.Target}}<br>Started: {{.StartedAt.Format "2006-01-02 15:04:05 MST"}}<br>Finished: {{.FinishedAt.Format "2006-01-02 15:04:05 MST"}}</p>
<p class="verdict {{if eq .Verdict "SYSTEM STABLE"}}pass{{else}}fail{{end}}">{{.Verdict}}</p>

<h2>Requests</h2>
<table>
<tr><th>Total</th><td>{{.TotalRequests}}</td></tr>
<tr><th>Success</th><td>{{.Success}}</td></tr>
<tr><th>Failed</th><td>{{.Fail}}</td></tr>
<tr><th>Error rate</th><td>{{pct .ErrorRate}}</td></tr>
<tr><th>Checks</th><td>{{pct .ChecksRate}}</td></tr>
</table>

<h2>Response Time</h2>
<table>
<tr><th>Min</th><td>{{ms .MinMs}}</td></tr>
<tr><th>Avg</th><td>{{ms .AvgMs}}</td></tr>
<tr><th>P95</th><td>{{ms .P95Ms}}</td></tr>
<tr><th>Max</th><td>{{ms .MaxMs}}</td></tr>
<tr><th>Range</th><td>{{ms .RangeMs}} ({{printf "%.1f" .DegradationPct}}% increase)</td></tr>
</table>

<h2>Degradation</h2>
<table>
<tr><th>Baseline</th><td>{{with .BaselineMs}}{{ms (deref .)}}{{else}}not established{{end}}</td></tr>
<tr><th>Samples</th><td>{{.Degradation.Count}}</td></tr>
<tr><th>Avg</th><td>{{ms .Degradation.Avg}}</td></tr>
<tr><th>P95</th><td>{{ms .Degradation.P95}}</td></tr>
<tr><th>Max</th><td>{{ms .Degradation.Max}}</td></tr>
<tr><th>Leak flags</th><td>{{.LeakFlags}} ({{pct .LeakRate}})</td></tr>
</table>

{{if .Phases}}<h2>By Phase</h2>
<table>
<tr><th>Phase</th><th>Requests</th><th>Avg</th><th>P95</th><th>Max</th></tr>
{{range .Phases}}<tr><td>{{.Phase}}</td><td>{{.Requests}}</td><td>{{ms .AvgMs}}</td><td>{{ms .P95Ms}}</td><td>{{ms .MaxMs}}</td></tr>
{{end}}</table>{{end}}

{{if .Thresholds}}<h2>Thresholds</h2>
<table>
<tr><th>Metric</th><th>Threshold</th><th>Observed</th><th>Result</th></tr>
{{range .Thresholds}}<tr><td>{{.Metric}}</td><td>{{.Threshold}}</td><td>{{if .NoData}}no data{{else}}{{printf "%.4g" .Observed}}{{end}}</td><td class="{{if .Passed}}pass{{else}}fail{{end}}">{{if .Passed}}pass{{else}}fail{{end}}</td></tr>
{{end}}</table>{{end}}
</body>
</html>
`))

// WriteHTML renders the summary as a standalone HTML page.
func WriteHTML(w io.Writer, s Summary) error {
	return htmlTmpl.Execute(w, s)
}

// ExportHTML writes the HTML report to filename.
func ExportHTML(s Summary, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WriteHTML(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
