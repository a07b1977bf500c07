// Package models defines the domain types and their data access stores.
package models

import "time"

// Source is one curated feed endpoint. The source list is fixed at startup;
// there is no runtime source management.
type Source struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Category    string `json:"category"`    // international | regional | local | humanitarian | general
	Reliability string `json:"reliability"` // high | medium | aggregator
}

// Article is one normalized feed item. Articles are transient: they live for
// a single pipeline cycle and are never persisted, only the extracted event
// record is.
type Article struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	URL               string    `json:"url"`
	Image             string    `json:"image,omitempty"`
	PublishedAt       time.Time `json:"publishedAt"`
	Source            string    `json:"source"`
	SourceCategory    string    `json:"sourceCategory"`
	SourceReliability string    `json:"sourceReliability"`
}

// ReliabilityRank orders articles for primary selection within a cluster.
// Higher is better; unknown reliability sorts last.
func (a Article) ReliabilityRank() int {
	return reliabilityRank(a.SourceReliability)
}

func reliabilityRank(reliability string) int {
	switch reliability {
	case "high":
		return 3
	case "medium":
		return 2
	case "aggregator":
		return 1
	default:
		return 0
	}
}

// Cluster groups near-duplicate articles covering one underlying story.
// Articles are ordered best-first (reliability rank desc, then newest), so
// Articles[0] is the primary. Hash is stable under article permutation.
type Cluster struct {
	Hash        string    `json:"clusterHash"`
	Articles    []Article `json:"articles"`
	Sources     []string  `json:"sources"`
	SourceCount int       `json:"sourceCount"`
	LatestDate  time.Time `json:"latestDate"`
	Category    string    `json:"category"`
	Image       string    `json:"image,omitempty"`
}

// Primary returns the lead article. Clusters are never empty.
func (c Cluster) Primary() Article {
	return c.Articles[0]
}
