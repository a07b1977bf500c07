// Package cluster groups articles covering the same story by lexical
// similarity and computes the stable hash used to dedup stories across runs.
package cluster

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"sort"
	"strings"

	"github.com/juba-labs/hornwatch/internal/models"
)

// Threshold is the cosine similarity at which two articles count as the same
// story.
const Threshold = 0.35

// stopwords holds common English particles plus tokens so frequent on this
// beat that they carry no story signal. Tokens of length two or less are
// dropped before this table is consulted.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "these": true, "those": true, "into": true,
	"over": true, "after": true, "before": true, "during": true, "under": true,
	"between": true, "against": true, "about": true, "amid": true,
	"has": true, "have": true, "had": true, "was": true, "were": true,
	"are": true, "been": true, "being": true, "will": true, "would": true,
	"could": true, "should": true, "his": true, "her": true, "their": true,
	"its": true, "they": true, "them": true, "but": true, "not": true,
	"what": true, "who": true, "why": true, "how": true, "when": true,
	"where": true, "which": true, "while": true, "more": true, "most": true,
	"than": true, "then": true, "also": true, "just": true, "still": true,
	"say": true, "says": true, "said": true, "new": true, "news": true,
	"south": true, "sudan": true, "sudanese": true,
}

// Group partitions articles into story clusters. Input order does not matter:
// articles are re-ordered deterministically before the greedy pass so the
// same article set always partitions the same way.
func Group(articles []models.Article) []models.Cluster {
	if len(articles) == 0 {
		return nil
	}

	sorted := make([]models.Article, len(articles))
	copy(sorted, articles)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].PublishedAt.Equal(sorted[j].PublishedAt) {
			return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	vectors := make([]map[string]float64, len(sorted))
	for i, a := range sorted {
		vectors[i] = termFreq(tokenize(a.Title + " " + a.Description))
	}

	assigned := make([]bool, len(sorted))
	var clusters []models.Cluster
	for i := range sorted {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		members := []models.Article{sorted[i]}
		for j := i + 1; j < len(sorted); j++ {
			if !assigned[j] && cosine(vectors[i], vectors[j]) >= Threshold {
				assigned[j] = true
				members = append(members, sorted[j])
			}
		}
		clusters = append(clusters, build(members))
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].LatestDate.After(clusters[j].LatestDate)
	})
	return clusters
}

// build assembles a cluster from its members: primary first, distinct
// sources, newest publication time, first available image.
func build(members []models.Article) models.Cluster {
	sort.SliceStable(members, func(i, j int) bool {
		ri, rj := members[i].ReliabilityRank(), members[j].ReliabilityRank()
		if ri != rj {
			return ri > rj
		}
		return members[i].PublishedAt.After(members[j].PublishedAt)
	})

	c := models.Cluster{
		Hash:     Hash(members),
		Articles: members,
		Category: members[0].SourceCategory,
	}
	seen := make(map[string]bool, len(members))
	for _, a := range members {
		if !seen[a.Source] {
			seen[a.Source] = true
			c.Sources = append(c.Sources, a.Source)
		}
		if a.PublishedAt.After(c.LatestDate) {
			c.LatestDate = a.PublishedAt
		}
		if c.Image == "" && a.Image != "" {
			c.Image = a.Image
		}
	}
	c.SourceCount = len(c.Sources)
	return c
}

// Hash is the story dedup key: MD5 over the sorted, lowercased, trimmed
// member titles joined with pipes. Stable under member reordering.
func Hash(articles []models.Article) string {
	titles := make([]string, 0, len(articles))
	for _, a := range articles {
		titles = append(titles, strings.ToLower(strings.TrimSpace(a.Title)))
	}
	sort.Strings(titles)
	sum := md5.Sum([]byte(strings.Join(titles, "|")))
	return hex.EncodeToString(sum[:])
}

func tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	var tokens []string
	for _, tok := range strings.Fields(b.String()) {
		if len(tok) <= 2 || stopwords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func termFreq(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	return tf
}

func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for tok, av := range a {
		normA += av * av
		if bv, ok := b[tok]; ok {
			dot += av * bv
		}
	}
	if dot == 0 {
		return 0
	}
	for _, bv := range b {
		normB += bv * bv
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
