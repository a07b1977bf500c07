// Package ingest fetches the curated feeds and turns their items into
// normalized, relevance-filtered articles.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/juba-labs/hornwatch/internal/models"
)

const (
	fetchTimeout = 10 * time.Second
	maxFeedBytes = 2 << 20
	windowDays   = 7

	// browserUA mirrors a desktop browser; several outlets serve bots an
	// empty feed or a challenge page.
	browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	acceptHeader = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.7"
)

// Item pairs a normalized article with the raw payload the URL resolver
// needs: embedded anchors survive only in the unstripped item HTML.
type Item struct {
	models.Article
	RawPayload string
}

// Fetcher downloads and parses syndication feeds.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with the standard per-feed timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// FetchAll fetches every source in parallel and combines the results. A
// failing source logs and contributes nothing; it never poisons the batch.
func (f *Fetcher) FetchAll(ctx context.Context, srcs []models.Source) []Item {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	var items []Item

	for _, src := range srcs {
		wg.Add(1)
		go func(src models.Source) {
			defer wg.Done()
			fetched, err := f.fetchSource(ctx, src)
			if err != nil {
				slog.Error("ingest: fetch source", "source", src.Name, "err", err)
				return
			}
			mu.Lock()
			items = append(items, fetched...)
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	return items
}

// fetchSource downloads one feed, repairs leading garbage, parses it and
// keeps the relevant items.
func (f *Fetcher) fetchSource(ctx context.Context, src models.Source) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	// A fresh parser per call: gofeed parsers lazily initialize their
	// translators, which is not safe across goroutines.
	feed, err := gofeed.NewParser().ParseString(string(sanitizeFeedBody(body)))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var items []Item
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		item, ok := buildItem(src, it)
		if !ok {
			continue
		}
		items = append(items, item)
	}

	slog.Info("ingest: source fetched", "source", src.Name, "total", len(feed.Items), "kept", len(items))
	return items, nil
}

// sanitizeFeedBody strips a UTF-8 BOM and any garbage bytes before the first
// XML document marker. PHP-backed feeds are notorious for leaking warnings
// ahead of the prolog.
func sanitizeFeedBody(body []byte) []byte {
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))

	start := -1
	for _, marker := range [][]byte{[]byte("<?xml"), []byte("<rss"), []byte("<feed")} {
		if i := bytes.Index(body, marker); i >= 0 && (start == -1 || i < start) {
			start = i
		}
	}
	if start > 0 {
		return body[start:]
	}
	return bytes.TrimLeft(body, " \t\r\n")
}

// buildItem normalizes one feed item and applies the relevance filter. The
// filter sees the full body text; truncation happens after.
func buildItem(src models.Source, it *gofeed.Item) (Item, bool) {
	title := cleanSnippet(it.Title)
	link := firstNonEmpty(it.Link)
	if title == "" || link == "" {
		return Item{}, false
	}

	snippet := cleanSnippet(it.Description)
	content := cleanSnippet(it.Content)
	body := snippet + " " + content
	if !Relevant(title, body) {
		return Item{}, false
	}

	published := time.Now().UTC()
	if it.PublishedParsed != nil {
		published = it.PublishedParsed.UTC()
	} else if it.UpdatedParsed != nil {
		published = it.UpdatedParsed.UTC()
	}

	return Item{
		Article: models.Article{
			ID:                firstNonEmpty(it.GUID, link, src.Name+"||"+title),
			Title:             title,
			Description:       truncate(firstNonEmpty(snippet, content), maxDescriptionLen),
			URL:               link,
			Image:             itemImage(it),
			PublishedAt:       published,
			Source:            src.Name,
			SourceCategory:    src.Category,
			SourceReliability: src.Reliability,
		},
		RawPayload: it.Content + "\n" + it.Description,
	}, true
}

// ApplyWindow sorts items newest first, keeps the trailing window and
// deduplicates by article ID.
func ApplyWindow(items []Item, now time.Time) []Item {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})

	cutoff := now.AddDate(0, 0, -windowDays)
	seen := make(map[string]bool, len(items))
	var out []Item
	for _, item := range items {
		if item.PublishedAt.Before(cutoff) {
			continue
		}
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	return out
}
