package images

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juba-labs/hornwatch/internal/models"
)

func TestApply(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/og", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:image" content="https://cdn.example.org/og.jpg"></head><body></body></html>`))
	})
	mux.HandleFunc("/og-name", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta content="https://cdn.example.org/named.jpg" name="og:image"></head><body></body></html>`))
	})
	mux.HandleFunc("/twitter", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta name="twitter:image" content="//cdn.example.org/card.png"></head><body></body></html>`))
	})
	mux.HandleFunc("/both", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>` +
			`<meta name="twitter:image" content="https://cdn.example.org/twitter.png">` +
			`<meta property="og:image" content="https://cdn.example.org/preferred.jpg">` +
			`</head><body></body></html>`))
	})
	mux.HandleFunc("/bare", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>no cards here</title></head><body></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cluster := func(url string) models.Cluster {
		return models.Cluster{Articles: []models.Article{{URL: url, Title: "t"}}}
	}

	clusters := []models.Cluster{
		cluster(server.URL + "/og"),
		cluster(server.URL + "/og-name"),
		cluster(server.URL + "/twitter"),
		cluster(server.URL + "/both"),
		cluster(server.URL + "/bare"),
	}
	// Already enriched clusters and unresolved aggregator URLs are skipped.
	clusters = append(clusters,
		models.Cluster{
			Image:    "https://cdn.example.org/existing.jpg",
			Articles: []models.Article{{URL: server.URL + "/og"}},
		},
		models.Cluster{
			Articles: []models.Article{{URL: "https://news.google.com/rss/articles/OPAQUE"}},
		},
	)

	NewEnricher().Apply(context.Background(), clusters)

	assert.Equal(t, "https://cdn.example.org/og.jpg", clusters[0].Image)
	assert.Equal(t, "https://cdn.example.org/named.jpg", clusters[1].Image)
	assert.Equal(t, "https://cdn.example.org/card.png", clusters[2].Image, "protocol-relative upgraded")
	assert.Equal(t, "https://cdn.example.org/preferred.jpg", clusters[3].Image, "og:image wins over twitter:image")
	assert.Empty(t, clusters[4].Image)
	assert.Equal(t, "https://cdn.example.org/existing.jpg", clusters[5].Image)
	assert.Empty(t, clusters[6].Image)
}

func TestApplySkipsAggregatorMembers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:image" content="https://cdn.example.org/pic.jpg"></head></html>`))
	}))
	defer server.Close()

	// The first member is still an aggregator URL; the second resolved.
	clusters := []models.Cluster{{
		Articles: []models.Article{
			{URL: "https://news.google.com/rss/articles/OPAQUE"},
			{URL: server.URL + "/story"},
		},
	}}

	NewEnricher().Apply(context.Background(), clusters)
	require.Equal(t, "https://cdn.example.org/pic.jpg", clusters[0].Image)
}

func TestNormalizeImage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://cdn.example.org/a.jpg", "https://cdn.example.org/a.jpg"},
		{"http://cdn.example.org/a.jpg", "http://cdn.example.org/a.jpg"},
		{"//cdn.example.org/a.jpg", "https://cdn.example.org/a.jpg"},
		{"data:image/png;base64,AAAA", ""},
		{"/relative/path.jpg", ""},
		{"  ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeImage(tt.in), tt.in)
	}
}
