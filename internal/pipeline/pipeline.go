// Package pipeline runs the ingestion cycle: fetch feeds, resolve aggregator
// links, cluster near-duplicates, enrich images, publish the feed snapshot,
// then hand the clusters to the extractor.
package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/juba-labs/hornwatch/internal/cache"
	"github.com/juba-labs/hornwatch/internal/cluster"
	"github.com/juba-labs/hornwatch/internal/extract"
	"github.com/juba-labs/hornwatch/internal/images"
	"github.com/juba-labs/hornwatch/internal/ingest"
	"github.com/juba-labs/hornwatch/internal/models"
	"github.com/juba-labs/hornwatch/internal/resolve"
)

// Deps groups everything one cycle touches.
type Deps struct {
	Sources   []models.Source
	Fetcher   *ingest.Fetcher
	Resolver  *resolve.Resolver
	Images    *images.Enricher
	Extractor *extract.Extractor
	Events    *models.EventStore
	Cache     *cache.Cache
}

// Pipeline owns the cycle. At most one cycle runs at a time; a tick that
// arrives while the previous cycle is still extracting is skipped, not queued.
type Pipeline struct {
	deps    Deps
	running atomic.Bool
}

// New creates a Pipeline over the given dependencies.
func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps}
}

// RunCycle executes one full ingestion cycle. The feed snapshot is published
// as soon as clustering and image enrichment finish, so a slow or failing
// extraction pass never delays the feed; once extraction completes the
// snapshot is published again with the new events joined in.
func (p *Pipeline) RunCycle(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		slog.Warn("pipeline: cycle already running, skipping tick")
		return
	}
	defer p.running.Store(false)

	slog.Info("pipeline: cycle starting")
	start := time.Now()

	items := p.deps.Fetcher.FetchAll(ctx, p.deps.Sources)
	items = ingest.ApplyWindow(items, time.Now().UTC())
	p.deps.Resolver.Apply(ctx, items)

	articles := make([]models.Article, len(items))
	for i, it := range items {
		articles[i] = it.Article
	}

	clusters := cluster.Group(articles)
	p.deps.Images.Apply(ctx, clusters)
	p.publish(ctx, clusters)

	if p.deps.Extractor.Enabled() {
		p.deps.Extractor.Run(ctx, clusters)
		p.publish(ctx, clusters)
	}

	slog.Info("pipeline: cycle complete",
		"articles", len(articles),
		"clusters", len(clusters),
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

// publish joins each cluster with its stored event, if one exists, and swaps
// the assembled snapshot into the cache.
func (p *Pipeline) publish(ctx context.Context, clusters []models.Cluster) {
	entries := make([]cache.FeedEntry, 0, len(clusters))
	for _, c := range clusters {
		entry := cache.FeedEntry{Cluster: c}
		ev, err := p.deps.Events.GetByClusterHash(ctx, c.Hash)
		if err != nil {
			slog.Error("pipeline: load event for cluster", "hash", c.Hash, "err", err)
		} else {
			entry.Event = ev
		}
		entries = append(entries, entry)
	}

	p.deps.Cache.SetFeed(&cache.FeedSnapshot{
		GeneratedAt: time.Now().UTC(),
		Entries:     entries,
	})
	slog.Info("pipeline: feed published", "clusters", len(entries))
}
