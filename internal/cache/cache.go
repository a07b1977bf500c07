// Package cache holds the pipeline's published artifacts between cycles: the
// clustered feed snapshot and the latest weekly digest. The HTTP layer reads
// only from here, so a slow or failing cycle never blocks a request.
package cache

import (
	"sync"
	"time"

	"github.com/juba-labs/hornwatch/internal/digest"
	"github.com/juba-labs/hornwatch/internal/models"
)

// feedTTL is how long a feed snapshot stays servable. The pipeline republishes
// every fifteen minutes, so a snapshot older than this means cycles are
// failing and the stale feed should stop pretending to be current.
const feedTTL = 20 * time.Minute

// FeedEntry pairs one cluster with its extracted event, when extraction has
// happened. Clusters the extractor has not reached yet carry a nil Event.
type FeedEntry struct {
	models.Cluster
	Event *models.Event `json:"event,omitempty"`
}

// FeedSnapshot is one pipeline cycle's published output.
type FeedSnapshot struct {
	GeneratedAt time.Time   `json:"generatedAt"`
	Entries     []FeedEntry `json:"clusters"`
}

// Cache is the in-process store the API serves from. All methods are safe for
// concurrent use.
type Cache struct {
	mu     sync.RWMutex
	ttl    time.Duration
	feed   *FeedSnapshot
	digest *digest.Digest
}

// New creates an empty cache with the standard feed TTL.
func New() *Cache {
	return &Cache{ttl: feedTTL}
}

// SetFeed publishes a new feed snapshot, replacing the previous one.
func (c *Cache) SetFeed(snap *FeedSnapshot) {
	c.mu.Lock()
	c.feed = snap
	c.mu.Unlock()
}

// Feed returns the live snapshot, or nil when none has been published or the
// last one has gone stale.
func (c *Cache) Feed() *FeedSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.feed == nil || time.Since(c.feed.GeneratedAt) > c.ttl {
		return nil
	}
	return c.feed
}

// SetDigest stores the most recently built digest. Digests have no TTL; the
// latest build stays current until the next weekly run replaces it.
func (c *Cache) SetDigest(d *digest.Digest) {
	c.mu.Lock()
	c.digest = d
	c.mu.Unlock()
}

// Digest returns the latest built digest, or nil before the first build.
func (c *Cache) Digest() *digest.Digest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.digest
}
