package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// severityColors is the display ladder: muted institutional tones, darker as
// severity climbs. Index 0 is unused.
var severityColors = [6]string{"", "#64748b", "#0e7490", "#b45309", "#c2410c", "#991b1b"}

var severityTints = [6]string{"", "#f1f5f9", "#ecfeff", "#fef3c7", "#ffedd5", "#fee2e2"}

func sevColor(severity int) template.CSS {
	if severity < 1 || severity > 5 {
		severity = 1
	}
	return template.CSS(severityColors[severity])
}

func sevTint(severity int) template.CSS {
	if severity < 1 || severity > 5 {
		severity = 1
	}
	return template.CSS(severityTints[severity])
}

// pctLabel renders a suppressible percent column. A nil value (weak
// baseline) renders as nothing at all.
func pctLabel(p *int) string {
	if p == nil {
		return ""
	}
	if *p > 0 {
		return fmt.Sprintf("+%d%%", *p)
	}
	return fmt.Sprintf("%d%%", *p)
}

var htmlFuncs = template.FuncMap{
	"sevColor": sevColor,
	"sevTint":  sevTint,
	"pct":      pctLabel,
	"join":     func(list []string) string { return strings.Join(list, ", ") },
	"avg":      func(v float64) string { return fmt.Sprintf("%.1f", v) },
}

var htmlTmpl = template.Must(template.New("digest").Funcs(htmlFuncs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Horn Risk Delta — Week {{.D.WeekNumber}}</title>
<style>
  body { margin: 0; padding: 0; background: #f8fafc; font-family: Georgia, 'Times New Roman', serif; color: #1e293b; }
  .container { max-width: 640px; margin: 0 auto; padding: 24px 16px; }
  .masthead { border-bottom: 3px solid #334155; padding-bottom: 12px; margin-bottom: 20px; }
  .masthead h1 { margin: 0; font-size: 22px; letter-spacing: 0.5px; color: #0f172a; }
  .masthead .range { margin: 4px 0 0; font-size: 13px; color: #64748b; }
  .section { background: #ffffff; border: 1px solid #e2e8f0; border-radius: 4px; padding: 16px; margin-bottom: 16px; }
  .section h2 { margin: 0 0 12px; font-size: 15px; text-transform: uppercase; letter-spacing: 1px; color: #334155; border-bottom: 1px solid #e2e8f0; padding-bottom: 6px; }
  table { width: 100%; border-collapse: collapse; font-size: 14px; }
  th { text-align: left; font-size: 11px; text-transform: uppercase; letter-spacing: 0.5px; color: #64748b; padding: 4px 8px 4px 0; border-bottom: 1px solid #e2e8f0; }
  td { padding: 6px 8px 6px 0; border-bottom: 1px solid #f1f5f9; vertical-align: top; }
  .num { text-align: right; font-variant-numeric: tabular-nums; }
  .badge { display: inline-block; padding: 2px 8px; border-radius: 3px; font-size: 12px; font-weight: bold; color: #ffffff; }
  .bundle { border-left: 4px solid #e2e8f0; padding: 8px 12px; margin-bottom: 12px; }
  .bundle .meta { font-size: 12px; color: #64748b; margin-top: 4px; }
  .bundle a { color: #1d4ed8; }
  .note { font-size: 13px; color: #92400e; background: #fffbeb; border: 1px solid #fde68a; border-radius: 4px; padding: 8px 12px; margin-bottom: 16px; }
  .footer { font-size: 11px; color: #94a3b8; margin-top: 24px; text-align: center; }
  .footer a { color: #94a3b8; }
</style>
</head>
<body>
<div class="container">
  <div class="masthead">
    <h1>Horn Risk Delta — Week {{.D.WeekNumber}}</h1>
    <p class="range">{{.D.ThisWeek.Label}} &middot; compared with {{.D.LastWeek.Label}}</p>
  </div>

{{if .D.BaselineWeak}}  <div class="note">Only {{.D.Topline.TotalLastWeek}} events recorded last week &mdash; too few for a reliable trend line. Raw counts only.</div>
{{end}}
  <div class="section">
    <h2>Topline</h2>
    <table>
      <tr><th>Event type</th><th class="num">This week</th><th class="num">Last week</th><th class="num"></th></tr>
      <tr><td><strong>All events</strong></td><td class="num"><strong>{{.D.Topline.TotalThisWeek}}</strong></td><td class="num">{{.D.Topline.TotalLastWeek}}</td><td class="num">{{pct .D.Topline.ChangePct}}</td></tr>
{{range .D.Topline.Types}}      <tr><td>{{.EventType}}</td><td class="num">{{.ThisWeek}}</td><td class="num">{{.LastWeek}}</td><td class="num">{{pct .ChangePct}}</td></tr>
{{end}}    </table>
  </div>

{{if .D.HighSeverity}}  <div class="section">
    <h2>High-Severity Events</h2>
{{range .D.HighSeverity}}    <div class="bundle" style="border-left-color: {{sevColor .Severity}}; background: {{sevTint .Severity}};">
      <span class="badge" style="background: {{sevColor .Severity}};">Severity {{.Severity}}</span>
      <strong>{{.Country}}</strong>{{if .EventSubtype}} &middot; {{.EventSubtype}}{{end}}{{if .Regions}} &middot; {{join .Regions}}{{end}}
      <div>{{.Summary}}</div>
{{if .Rationale}}      <div class="meta">{{.Rationale}}</div>
{{end}}      <div class="meta">{{.SourceCount}} source(s){{if gt .EventCount 1}}, {{.EventCount}} merged reports{{end}} &middot; {{.VerificationStatus}} &middot; <a href="{{.PrimaryURL}}">{{.PrimaryTitle}}</a></div>
    </div>
{{end}}  </div>
{{end}}
{{if .D.HotRegions}}  <div class="section">
    <h2>Hot Regions</h2>
    <table>
      <tr><th>Region</th><th class="num">Events</th><th class="num">Weighted</th><th class="num">Avg severity</th><th class="num"></th></tr>
{{range .D.HotRegions}}      <tr><td>{{.Region}}</td><td class="num">{{.Count}}</td><td class="num">{{.SeveritySum}}</td><td class="num">{{avg .AvgSeverity}}</td><td class="num">{{pct .ChangePct}}</td></tr>
{{end}}    </table>
  </div>
{{end}}
{{if .D.ActorSpikes}}  <div class="section">
    <h2>Actor Spikes</h2>
    <table>
      <tr><th>Actor</th><th class="num">This week</th><th class="num">Last week</th><th class="num"></th></tr>
{{range .D.ActorSpikes}}      <tr><td>{{.Actor}}</td><td class="num">{{.ThisWeek}}</td><td class="num">{{.LastWeek}}</td><td class="num">{{pct .ChangePct}}</td></tr>
{{end}}    </table>
  </div>
{{end}}
  <div class="footer">
    Generated {{.D.GeneratedAt.Format "2006-01-02 15:04 MST"}} &middot; Horn of Africa news intelligence
{{if .UnsubscribeURL}}    &middot; <a href="{{.UnsubscribeURL}}">Unsubscribe</a>
{{end}}  </div>
</div>
</body>
</html>
`))

// RenderHTML produces the standalone email-ready document. unsubscribeURL is
// per-recipient and may be empty (preview, cache).
func RenderHTML(d *Digest, unsubscribeURL string) (string, error) {
	var buf bytes.Buffer
	err := htmlTmpl.Execute(&buf, struct {
		D              *Digest
		UnsubscribeURL string
	}{d, unsubscribeURL})
	if err != nil {
		return "", fmt.Errorf("digest render html: %w", err)
	}
	return buf.String(), nil
}

// RenderText produces the plain-text rendering used for logs and the email
// text part.
func RenderText(d *Digest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "HORN RISK DELTA — WEEK %d\n", d.WeekNumber)
	fmt.Fprintf(&b, "%s (compared with %s)\n", d.ThisWeek.Label, d.LastWeek.Label)
	if d.BaselineWeak {
		fmt.Fprintf(&b, "Note: only %d events recorded last week; raw counts only.\n", d.Topline.TotalLastWeek)
	}

	b.WriteString("\nTOPLINE\n")
	fmt.Fprintf(&b, "  All events: %d (last week %d%s)\n",
		d.Topline.TotalThisWeek, d.Topline.TotalLastWeek, textPct(d.Topline.ChangePct))
	for _, tc := range d.Topline.Types {
		fmt.Fprintf(&b, "  %-15s %d (last week %d%s)\n",
			tc.EventType+":", tc.ThisWeek, tc.LastWeek, textPct(tc.ChangePct))
	}

	if len(d.HighSeverity) > 0 {
		b.WriteString("\nHIGH-SEVERITY EVENTS\n")
		for _, hs := range d.HighSeverity {
			fmt.Fprintf(&b, "  [S%d] %s", hs.Severity, hs.Country)
			if hs.EventSubtype != "" {
				fmt.Fprintf(&b, " — %s", hs.EventSubtype)
			}
			if len(hs.Regions) > 0 {
				fmt.Fprintf(&b, " — %s", strings.Join(hs.Regions, ", "))
			}
			b.WriteByte('\n')
			fmt.Fprintf(&b, "       %s\n", hs.Summary)
			fmt.Fprintf(&b, "       %d source(s), %s | %s\n", hs.SourceCount, hs.VerificationStatus, hs.PrimaryURL)
		}
	}

	if len(d.HotRegions) > 0 {
		b.WriteString("\nHOT REGIONS\n")
		for _, hr := range d.HotRegions {
			fmt.Fprintf(&b, "  %s: %d events, weighted %d, avg severity %.1f%s\n",
				hr.Region, hr.Count, hr.SeveritySum, hr.AvgSeverity, textPct(hr.ChangePct))
		}
	}

	if len(d.ActorSpikes) > 0 {
		b.WriteString("\nACTOR SPIKES\n")
		for _, as := range d.ActorSpikes {
			fmt.Fprintf(&b, "  %s: %d vs %d%s\n", as.Actor, as.ThisWeek, as.LastWeek, textPct(as.ChangePct))
		}
	}

	return b.String()
}

func textPct(p *int) string {
	if p == nil {
		return ""
	}
	return ", " + pctLabel(p)
}
