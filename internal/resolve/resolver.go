// Package resolve rewrites aggregator redirect URLs to real publisher URLs.
//
// Aggregator URL formats shift over time, so resolution is a cascade of
// independent strategies: an anchor embedded in the item payload, a base64
// decode of the article id, the aggregator's own batch-execute API, and
// finally the redirect page itself. Every strategy is best-effort; an
// article that survives all four keeps its aggregator URL.
package resolve

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/juba-labs/hornwatch/internal/ingest"
)

const (
	resolveTimeout = 8 * time.Second

	// browser UA and the aggregator referer keep the redirect pages from
	// serving the consent interstitial.
	browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	aggregatorHost = "news.google.com"
	aggregatorRoot = "https://news.google.com/"

	// decodeBatchSize bounds concurrent batch-execute calls; trampolineBatchSize
	// bounds concurrent page fetches.
	decodeBatchSize     = 5
	decodePause         = 200 * time.Millisecond
	trampolineBatchSize = 10
)

// Resolver resolves aggregator URLs. Strategies are individually toggleable;
// all are enabled by default.
type Resolver struct {
	client        *http.Client
	batchEndpoint string

	UseAnchor     bool
	UseDecode     bool
	UseBatchAPI   bool
	UseTrampoline bool
}

// NewResolver creates a Resolver with every strategy enabled.
func NewResolver() *Resolver {
	return &Resolver{
		client:        &http.Client{Timeout: resolveTimeout},
		batchEndpoint: batchExecuteURL,

		UseAnchor:     true,
		UseDecode:     true,
		UseBatchAPI:   true,
		UseTrampoline: true,
	}
}

// IsAggregator reports whether the URL points at the aggregator rather than
// a publisher.
func IsAggregator(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == aggregatorHost || host == "www."+aggregatorHost
}

// googleProperty reports whether the host belongs to the aggregator's domain
// family; such hosts are never acceptable resolution targets.
func googleProperty(host string) bool {
	host = strings.ToLower(host)
	for _, domain := range []string{
		"google.com", "gstatic.com", "googleusercontent.com",
		"googleapis.com", "youtube.com",
	} {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// acceptableTarget validates a candidate publisher URL: plain http(s), a
// lowercase alphanumeric start to the host, and not a Google property.
func acceptableTarget(candidate string) bool {
	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	c := host[0]
	if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
		return false
	}
	return !googleProperty(host)
}

// Apply resolves every aggregator item in place. The cheap strategies run
// inline; the batch-execute pass only covers items that still need image
// enrichment, and the trampoline pass sweeps up the rest.
func (r *Resolver) Apply(ctx context.Context, items []ingest.Item) {
	var pending []*ingest.Item
	for i := range items {
		if IsAggregator(items[i].URL) {
			pending = append(pending, &items[i])
		}
	}
	if len(pending) == 0 {
		return
	}

	resolved := 0
	var unresolved []*ingest.Item
	for _, item := range pending {
		if r.UseAnchor {
			if target := AnchorTarget(item.RawPayload); target != "" {
				item.URL = target
				resolved++
				continue
			}
		}
		if r.UseDecode {
			if target := DecodeArticleURL(item.URL); target != "" {
				item.URL = target
				resolved++
				continue
			}
		}
		unresolved = append(unresolved, item)
	}

	if r.UseBatchAPI {
		resolved += r.batchPass(ctx, unresolved)
	}
	if r.UseTrampoline {
		resolved += r.trampolinePass(ctx, stillAggregator(unresolved))
	}

	slog.Info("resolve: pass complete",
		"aggregator_items", len(pending),
		"resolved", resolved,
	)
}

// batchPass calls the batch-execute decoder for unresolved items that still
// lack an image, at most decodeBatchSize in flight with a pause between
// batches.
func (r *Resolver) batchPass(ctx context.Context, items []*ingest.Item) int {
	var candidates []*ingest.Item
	for _, item := range items {
		if IsAggregator(item.URL) && item.Image == "" {
			candidates = append(candidates, item)
		}
	}

	resolved := 0
	for start := 0; start < len(candidates); start += decodeBatchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + decodeBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, item := range candidates[start:end] {
			wg.Add(1)
			go func(item *ingest.Item) {
				defer wg.Done()
				target, err := r.batchExecute(ctx, articleID(item.URL))
				if err != nil || target == "" {
					return
				}
				mu.Lock()
				item.URL = target
				resolved++
				mu.Unlock()
			}(item)
		}
		wg.Wait()

		if end < len(candidates) {
			time.Sleep(decodePause)
		}
	}
	return resolved
}

// trampolinePass fetches the remaining aggregator pages in fixed-size batches
// and follows whatever redirect mechanism the page carries.
func (r *Resolver) trampolinePass(ctx context.Context, items []*ingest.Item) int {
	resolved := 0
	for start := 0; start < len(items); start += trampolineBatchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + trampolineBatchSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, item := range items[start:end] {
			wg.Add(1)
			go func(item *ingest.Item) {
				defer wg.Done()
				target, err := r.trampoline(ctx, item.URL)
				if err != nil || target == "" {
					return
				}
				mu.Lock()
				item.URL = target
				resolved++
				mu.Unlock()
			}(item)
		}
		wg.Wait()
	}
	return resolved
}

func stillAggregator(items []*ingest.Item) []*ingest.Item {
	var out []*ingest.Item
	for _, item := range items {
		if IsAggregator(item.URL) {
			out = append(out, item)
		}
	}
	return out
}

// articleID extracts the opaque id from an /articles/ or /rss/articles/ path.
func articleID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range parts {
		if part == "articles" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}
