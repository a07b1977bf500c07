package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/juba-labs/hornwatch/internal/cache"
)

// FeedHandler serves the clustered feed straight from the cycle cache. It
// never touches the database; the pipeline is the only writer.
type FeedHandler struct {
	Cache *cache.Cache
}

// ServeFeed handles GET /api/feed.
func (h *FeedHandler) ServeFeed(w http.ResponseWriter, r *http.Request) {
	snap := h.Cache.Feed()
	if snap == nil {
		// No snapshot yet (startup) or the last one went stale. An empty
		// feed is a normal response, not an error.
		writeJSON(w, http.StatusOK, cache.FeedSnapshot{
			GeneratedAt: time.Now().UTC(),
			Entries:     []cache.FeedEntry{},
		})
		return
	}

	// HTTP caching: the snapshot timestamp is the content version.
	lastMod := snap.GeneratedAt.UTC()
	w.Header().Set("Last-Modified", lastMod.Format(http.TimeFormat))
	etag := fmt.Sprintf(`"%x-%d"`, lastMod.Unix(), len(snap.Entries))
	w.Header().Set("ETag", etag)

	if ifNone := r.Header.Get("If-None-Match"); ifNone != "" {
		if strings.Contains(ifNone, etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	if ifMod := r.Header.Get("If-Modified-Since"); ifMod != "" {
		if t, err := http.ParseTime(ifMod); err == nil && !lastMod.After(t) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("Cache-Control", "public, max-age=300")

	writeJSON(w, http.StatusOK, snap)
}
