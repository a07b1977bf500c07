package digest

import (
	"regexp"
	"strings"
	"time"

	"github.com/juba-labs/hornwatch/internal/models"
)

// Bundle is a group of events judged to describe the same incident: same
// country, same subtype, same severity, overlapping geography. Repeat
// coverage of one airstrike should read as one digest entry, not five.
type Bundle struct {
	Summary            string    `json:"summary"`
	Country            string    `json:"country"`
	EventType          string    `json:"eventType"`
	EventSubtype       string    `json:"eventSubtype,omitempty"`
	Severity           int       `json:"severity"`
	VerificationStatus string    `json:"verificationStatus"`
	Rationale          string    `json:"rationale,omitempty"`
	Regions            []string  `json:"regions"`
	Sources            []string  `json:"sources"`
	ArticleURLs        []string  `json:"articleUrls"`
	Actors             []string  `json:"actors"`
	SourceCount        int       `json:"sourceCount"`
	EventCount         int       `json:"eventCount"`
	PrimaryTitle       string    `json:"primaryTitle"`
	PrimaryURL         string    `json:"primaryUrl"`
	PublishedAt        time.Time `json:"publishedAt"`
}

// bundleEvents merges same-story events. Events come in newest first, so the
// first member of each bundle is the freshest telling; its summary and
// rationale represent the bundle. Region overlap is checked against the
// bundle's accumulated region set.
func bundleEvents(events []models.Event) []Bundle {
	assigned := make([]bool, len(events))
	var bundles []Bundle

	for i := range events {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		b := newBundle(events[i])
		for j := i + 1; j < len(events); j++ {
			if assigned[j] || !b.matches(events[j]) {
				continue
			}
			assigned[j] = true
			b.merge(events[j])
		}
		b.Regions = CollapseRegions(b.Regions)
		bundles = append(bundles, b)
	}
	return bundles
}

func newBundle(ev models.Event) Bundle {
	return Bundle{
		Summary:            ev.Summary,
		Country:            ev.Country,
		EventType:          ev.EventType,
		EventSubtype:       ev.EventSubtype,
		Severity:           ev.Severity,
		VerificationStatus: ev.VerificationStatus,
		Rationale:          cleanRationale(ev.Rationale),
		Regions:            append([]string(nil), ev.Regions...),
		Sources:            append([]string(nil), ev.Sources...),
		ArticleURLs:        append([]string(nil), ev.ArticleURLs...),
		Actors:             append([]string(nil), ev.ActorsNormalized...),
		SourceCount:        len(ev.Sources),
		EventCount:         1,
		PrimaryTitle:       ev.PrimaryTitle,
		PrimaryURL:         ev.PrimaryURL,
		PublishedAt:        ev.PublishedAt,
	}
}

func (b *Bundle) matches(ev models.Event) bool {
	return strings.EqualFold(b.Country, ev.Country) &&
		strings.EqualFold(b.EventSubtype, ev.EventSubtype) &&
		b.Severity == ev.Severity &&
		RegionsOverlap(b.Regions, ev.Regions)
}

func (b *Bundle) merge(ev models.Event) {
	b.Regions = unionFold(b.Regions, ev.Regions)
	b.Sources = unionFold(b.Sources, ev.Sources)
	b.ArticleURLs = unionFold(b.ArticleURLs, ev.ArticleURLs)
	b.Actors = unionFold(b.Actors, ev.ActorsNormalized)
	b.SourceCount += len(ev.Sources)
	b.EventCount++
}

// unionFold appends entries from add that are not already present,
// case-insensitively, preserving order of first appearance.
func unionFold(base, add []string) []string {
	seen := make(map[string]bool, len(base)+len(add))
	for _, v := range base {
		seen[strings.ToLower(v)] = true
	}
	for _, v := range add {
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		base = append(base, v)
	}
	return base
}

// Early prompt generations padded rationales with restatements of the scores
// ("This is rated severity 4 because..."). Those add nothing next to the
// severity badge, so they render as empty rather than cluttering the digest.
var (
	rationalePrefixes = []string{
		"the severity",
		"the verification",
		"the confidence",
		"this is rated",
		"rated as",
	}
	reSeverityPrefix  = regexp.MustCompile(`(?i)^severity\s+\d`)
	reVerboseGrading  = regexp.MustCompile(`(?i)which is a (?:grave|significant|major|serious)`)
)

func cleanRationale(rationale string) string {
	r := strings.TrimSpace(rationale)
	if r == "" {
		return ""
	}
	lower := strings.ToLower(r)
	for _, prefix := range rationalePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}
	if reSeverityPrefix.MatchString(r) || reVerboseGrading.MatchString(r) {
		return ""
	}
	return r
}
