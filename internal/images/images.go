// Package images fills in preview images for clusters whose feed items
// carried none, by scraping publisher pages for social-card metadata.
package images

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/juba-labs/hornwatch/internal/models"
	"github.com/juba-labs/hornwatch/internal/resolve"
)

const (
	scrapeTimeout = 8 * time.Second

	// Social-card metadata lives in <head>, so only the first slice of the
	// page is worth downloading.
	maxBodyBytes = 50 * 1024

	// maxCandidates caps page fetches per cycle; batchSize bounds how many
	// run concurrently.
	maxCandidates = 60
	batchSize     = 10

	browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Enricher scrapes publisher pages for og:image or twitter:image tags.
// Extraction is best-effort; pages that fail or carry no tag are skipped.
type Enricher struct {
	userAgent string
}

func NewEnricher() *Enricher {
	return &Enricher{userAgent: browserUA}
}

type candidate struct {
	cluster int
	url     string
}

// Apply fills Image on imageless clusters in place. One page per cluster is
// fetched, taken from the first member whose URL points at a real publisher.
func (e *Enricher) Apply(ctx context.Context, clusters []models.Cluster) {
	var candidates []candidate
	for i := range clusters {
		if clusters[i].Image != "" {
			continue
		}
		for _, a := range clusters[i].Articles {
			if a.URL != "" && !resolve.IsAggregator(a.URL) {
				candidates = append(candidates, candidate{cluster: i, url: a.URL})
				break
			}
		}
	}
	if len(candidates) == 0 {
		return
	}
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	enriched := 0
	var mu sync.Mutex
	for start := 0; start < len(candidates); start += batchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		var wg sync.WaitGroup
		for _, cand := range candidates[start:end] {
			wg.Add(1)
			go func(cand candidate) {
				defer wg.Done()
				img := normalizeImage(e.extract(ctx, cand.url))
				if img == "" {
					return
				}
				mu.Lock()
				clusters[cand.cluster].Image = img
				enriched++
				mu.Unlock()
			}(cand)
		}
		wg.Wait()
	}

	slog.Info("images: enrichment complete",
		"candidates", len(candidates),
		"enriched", enriched,
	)
}

// extract fetches a page and pulls the og:image content, falling back to
// twitter:image. Each call gets its own collector to avoid state leakage.
func (e *Enricher) extract(ctx context.Context, pageURL string) string {
	c := colly.NewCollector(
		colly.UserAgent(e.userAgent),
		colly.AllowURLRevisit(),
		colly.MaxDepth(1),
		colly.MaxBodySize(maxBodyBytes),
	)
	c.SetRequestTimeout(scrapeTimeout)

	var (
		ogImage      string
		twitterImage string
		mu           sync.Mutex
	)

	// Publishers spell the tags with either property= or name=.
	c.OnHTML(`meta[property="og:image"], meta[name="og:image"]`, func(el *colly.HTMLElement) {
		mu.Lock()
		if ogImage == "" {
			ogImage = strings.TrimSpace(el.Attr("content"))
		}
		mu.Unlock()
	})
	c.OnHTML(`meta[name="twitter:image"], meta[property="twitter:image"]`, func(el *colly.HTMLElement) {
		mu.Lock()
		if twitterImage == "" {
			twitterImage = strings.TrimSpace(el.Attr("content"))
		}
		mu.Unlock()
	})

	c.OnError(func(r *colly.Response, err error) {
		// Image extraction is best-effort.
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Visit(pageURL)
		c.Wait()
	}()

	select {
	case <-ctx.Done():
		return ""
	case <-done:
	}

	if ogImage != "" {
		return ogImage
	}
	return twitterImage
}

// normalizeImage upgrades protocol-relative URLs and rejects anything that is
// not plain http(s).
func normalizeImage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return ""
}
