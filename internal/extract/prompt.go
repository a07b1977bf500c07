package extract

import (
	"fmt"
	"strings"

	"github.com/juba-labs/hornwatch/internal/models"
)

const (
	// promptVersion is stamped on every event and quarantine record so
	// aggregations can filter by prompt generation.
	promptVersion = "v3"

	maxTokens   = 500
	temperature = 0.1

	// maxPromptArticles bounds how many cluster members are quoted to the
	// model; maxSnippetLen bounds each quoted description.
	maxPromptArticles = 5
	maxSnippetLen     = 300
)

const systemPrompt = `You are a conflict-monitoring analyst covering Sudan and South Sudan. Given news coverage of one story, produce a structured event record.

Respond with a single JSON object and nothing else. No markdown, no code fences, no commentary. The object must have exactly these fields:

{
  "summary": "one factual sentence describing what happened",
  "country": "South Sudan" or "Sudan" (the country where the event occurred),
  "regions": ["admin region names mentioned, standard spellings"],
  "eventType": one of "security", "political", "economic", "humanitarian", "infrastructure", "legal",
  "eventSubtype": "short lowercase slug, e.g. airstrike, ceasefire_violation, cholera_outbreak, peace_talks",
  "severity": integer 1-5,
  "scope": one of "local", "state", "national", "cross_border",
  "verificationStatus": one of "confirmed", "reported", "unverified",
  "confidence": float 0.0-1.0, your confidence in this extraction,
  "actors": ["named groups, forces, institutions or leaders involved"],
  "rationale": "one short clause on why this severity"
}

Severity ladder:
1 = routine: administrative steps, appointments, statements
2 = notable: protests, localized tension, small-scale incidents
3 = serious: violent clashes with casualties, displacement in the hundreds
4 = severe: large-scale attacks, mass displacement, major infrastructure destroyed
5 = critical: mass-casualty events, famine declaration, coup, full-scale offensive

South Sudan regions: Central Equatoria, Eastern Equatoria, Western Equatoria, Jonglei, Unity, Upper Nile, Lakes, Warrap, Northern Bahr el Ghazal, Western Bahr el Ghazal, Abyei, Greater Pibor.
Sudan regions: Khartoum, North Darfur, South Darfur, East Darfur, West Darfur, Central Darfur, North Kordofan, South Kordofan, West Kordofan, Blue Nile, White Nile, River Nile, Northern, Red Sea, Kassala, Gedaref, Sennar, Al Jazirah.

Use "confirmed" only when multiple independent outlets or an official statement back the facts. If coverage is thin or single-source, use "reported" or "unverified" and lower the confidence.`

// userPrompt renders one cluster as the model's input: every member's title,
// source and snippet, newest coverage first.
func userPrompt(c models.Cluster) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Story covered by %d source(s). Extract one event record.\n", c.SourceCount)

	articles := c.Articles
	if len(articles) > maxPromptArticles {
		articles = articles[:maxPromptArticles]
	}
	for _, a := range articles {
		b.WriteString("\n---\n")
		fmt.Fprintf(&b, "Title: %s\n", a.Title)
		fmt.Fprintf(&b, "Source: %s (%s)\n", a.Source, a.PublishedAt.Format("2006-01-02"))
		if snippet := truncateSnippet(a.Description); snippet != "" {
			fmt.Fprintf(&b, "Excerpt: %s\n", snippet)
		}
	}
	return b.String()
}

func truncateSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxSnippetLen {
		return s
	}
	return s[:maxSnippetLen] + "..."
}
