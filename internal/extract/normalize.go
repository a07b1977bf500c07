package extract

import (
	"math"
	"strings"

	"github.com/juba-labs/hornwatch/internal/models"
	"github.com/juba-labs/hornwatch/internal/sources"
)

// buildEvent turns a validated model output into a persistable event,
// applying the normalization rules and attaching cluster provenance.
func buildEvent(c models.Cluster, raw *rawEvent, modelVersion string) models.Event {
	primary := c.Primary()

	severity := 1
	if raw.Severity != nil {
		severity = int(math.Round(*raw.Severity))
	}
	if severity < 1 {
		severity = 1
	}
	if severity > 5 {
		severity = 5
	}

	confidence := 0.0
	if raw.Confidence != nil {
		confidence = *raw.Confidence
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	scope := raw.Scope
	if !scopes[scope] {
		scope = "local"
	}
	verification := raw.VerificationStatus
	if !verificationStatuses[verification] {
		verification = "reported"
	}

	return models.Event{
		ClusterHash:        c.Hash,
		Summary:            strings.TrimSpace(raw.Summary),
		Country:            raw.country(),
		Regions:            cleanList(raw.Regions),
		EventType:          raw.EventType,
		EventSubtype:       strings.ToLower(strings.TrimSpace(raw.EventSubtype)),
		Severity:           severity,
		Scope:              scope,
		SourceTier:         clusterTier(c.Sources),
		VerificationStatus: verification,
		Confidence:         confidence,
		Rationale:          strings.TrimSpace(raw.Rationale),
		Actors:             cleanList(raw.Actors),
		ActorsNormalized:   NormalizeActors(raw.Actors),
		ArticleCount:       len(c.Articles),
		Sources:            c.Sources,
		ArticleURLs:        articleURLs(c),
		PrimaryURL:         primary.URL,
		PrimaryTitle:       primary.Title,
		PublishedAt:        primary.PublishedAt,
		ModelVersion:       modelVersion,
		PromptVersion:      promptVersion,
	}
}

// clusterTier is the best provenance tier across the cluster's sources.
func clusterTier(names []string) string {
	best := ""
	for _, name := range names {
		t := sources.Tier(name)
		if best == "" || sources.TierRank(t) < sources.TierRank(best) {
			best = t
		}
	}
	return best
}

func articleURLs(c models.Cluster) []string {
	urls := make([]string, 0, len(c.Articles))
	for _, a := range c.Articles {
		urls = append(urls, a.URL)
	}
	return urls
}

// cleanList trims entries and drops empties, preserving order.
func cleanList(list []string) []string {
	var out []string
	for _, v := range list {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
