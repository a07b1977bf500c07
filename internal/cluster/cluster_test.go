package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juba-labs/hornwatch/internal/models"
)

func article(id, title, source, reliability string, published time.Time) models.Article {
	return models.Article{
		ID:                id,
		Title:             title,
		URL:               "https://example.org/" + id,
		PublishedAt:       published,
		Source:            source,
		SourceReliability: reliability,
	}
}

func TestHashStableUnderPermutation(t *testing.T) {
	now := time.Now()
	a := article("a", "Clash in Upper Nile", "Radio Tamazuj", "medium", now)
	b := article("b", "Upper Nile clash reported", "Sudan Tribune", "medium", now)
	c := article("c", "Ceasefire talks resume in Nairobi", "BBC Africa", "high", now)

	assert.Equal(t, Hash([]models.Article{a, b}), Hash([]models.Article{b, a}))
	assert.NotEqual(t, Hash([]models.Article{a, b}), Hash([]models.Article{a, b, c}))

	// Trimming and case folding happen before hashing.
	aPadded := a
	aPadded.Title = "  CLASH in Upper Nile "
	assert.Equal(t, Hash([]models.Article{a, b}), Hash([]models.Article{aPadded, b}))
}

func TestGroupBySimilarity(t *testing.T) {
	now := time.Now()
	articles := []models.Article{
		article("a", "Kiir meets Machar in Juba", "Eye Radio", "medium", now),
		article("b", "Machar, Kiir hold Juba meeting", "Radio Tamazuj", "medium", now.Add(-time.Hour)),
		article("c", "Floods displace 10000 in Jonglei", "Sudan Tribune", "medium", now.Add(-2*time.Hour)),
	}

	clusters := Group(articles)
	require.Len(t, clusters, 2)

	// Feed order is latestDate desc, so the meeting story comes first.
	assert.Len(t, clusters[0].Articles, 2)
	assert.Equal(t, 2, clusters[0].SourceCount)
	assert.Len(t, clusters[1].Articles, 1)
	assert.Equal(t, "Floods displace 10000 in Jonglei", clusters[1].Primary().Title)
}

func TestGroupOrderIndependent(t *testing.T) {
	now := time.Now()
	articles := []models.Article{
		article("a", "Kiir meets Machar in Juba", "Eye Radio", "medium", now),
		article("b", "Machar, Kiir hold Juba meeting", "Radio Tamazuj", "medium", now.Add(-time.Hour)),
		article("c", "Floods displace 10000 in Jonglei", "Sudan Tribune", "medium", now.Add(-2*time.Hour)),
		article("d", "RSF shelling hits El Fasher market", "Radio Dabanga", "medium", now.Add(-3*time.Hour)),
	}
	reversed := []models.Article{articles[3], articles[2], articles[1], articles[0]}

	forward := Group(articles)
	backward := Group(reversed)
	require.Equal(t, len(forward), len(backward))
	for i := range forward {
		assert.Equal(t, forward[i].Hash, backward[i].Hash)
	}
}

func TestPrimarySelection(t *testing.T) {
	now := time.Now()
	articles := []models.Article{
		article("agg", "Fighting erupts in Wau as tensions rise", "Google News: South Sudan", "aggregator", now),
		article("wire", "Fighting erupts in Wau amid rising tensions", "BBC Africa", "high", now.Add(-2*time.Hour)),
		article("local", "Fighting erupts in Wau, residents flee", "Eye Radio", "medium", now.Add(-time.Hour)),
	}

	clusters := Group(articles)
	require.Len(t, clusters, 1)

	// High reliability wins over recency.
	got := clusters[0].Primary()
	assert.Equal(t, "BBC Africa", got.Source)
	assert.Equal(t, now, clusters[0].LatestDate)
}

func TestClusterImageFromMembers(t *testing.T) {
	now := time.Now()
	withImage := article("b", "Airstrike hits Omdurman neighborhood overnight", "Radio Dabanga", "medium", now.Add(-time.Hour))
	withImage.Image = "https://cdn.example.org/omdurman.jpg"

	clusters := Group([]models.Article{
		article("a", "Airstrike hits Omdurman neighborhood", "Sudan Tribune", "medium", now),
		withImage,
	})
	require.Len(t, clusters, 1)
	assert.Equal(t, "https://cdn.example.org/omdurman.jpg", clusters[0].Image)
}

func TestTokenize(t *testing.T) {
	got := tokenize("Kiir meets Machar in Juba; the South Sudan talks resume!")
	assert.Equal(t, []string{"kiir", "meets", "machar", "juba", "talks", "resume"}, got)

	assert.Empty(t, tokenize("the and for"))
	assert.Empty(t, tokenize(""))
}

func TestCosine(t *testing.T) {
	a := termFreq([]string{"kiir", "machar", "juba", "meets"})
	b := termFreq([]string{"kiir", "machar", "juba", "hold", "meeting"})
	c := termFreq([]string{"floods", "displace", "jonglei"})

	assert.GreaterOrEqual(t, cosine(a, b), Threshold)
	assert.Zero(t, cosine(a, c))
	assert.InDelta(t, 1.0, cosine(a, a), 1e-9)
	assert.Zero(t, cosine(a, termFreq(nil)))
}
