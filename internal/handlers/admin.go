package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/juba-labs/hornwatch/internal/cache"
	"github.com/juba-labs/hornwatch/internal/digest"
	"github.com/juba-labs/hornwatch/internal/models"
	"github.com/juba-labs/hornwatch/internal/pipeline"
)

// qualityWindow is how far back the data-quality snapshot looks.
const qualityWindow = 30 * 24 * time.Hour

// AdminHandler groups the token-guarded operational endpoints.
type AdminHandler struct {
	Events   *models.EventStore
	Pipeline *pipeline.Pipeline
	Digest   *digest.Builder
	Cache    *cache.Cache
}

// Quality handles GET /api/admin/quality. It reports extraction health over
// the last thirty days: accept rate, confidence trend, sources whose events
// come back without regions, and the most recent quarantine rows.
func (h *AdminHandler) Quality(w http.ResponseWriter, r *http.Request) {
	to := time.Now().UTC()
	from := to.Add(-qualityWindow)

	snap, err := h.Events.QualitySnapshot(r.Context(), from, to)
	if err != nil {
		slog.Error("admin: quality snapshot", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// TriggerIngest handles POST /api/admin/ingest. The cycle runs in the
// background; an already-running cycle makes this a no-op.
func (h *AdminHandler) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	go h.Pipeline.RunCycle(context.Background())

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "started",
		"message": "Ingestion cycle started in background.",
	})
}

// DigestPreview handles GET /api/admin/digest/preview. While the last built
// digest still covers the current window it is served as-is, so the preview
// shows exactly what the weekly send produced. Otherwise a fresh digest is
// built for the week ending now, without caching or sending it. ?format
// selects json (default), html, or text.
func (h *AdminHandler) DigestPreview(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()

	d := h.lastBuild(now)
	if d == nil {
		built, err := h.Digest.Build(r.Context(), now)
		if err != nil {
			slog.Error("admin: digest preview", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		d = built
	}

	switch r.URL.Query().Get("format") {
	case "html":
		body, err := digest.RenderHTML(d, "#")
		if err != nil {
			slog.Error("admin: render digest html", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(digest.RenderText(d)))
	default:
		writeJSON(w, http.StatusOK, d)
	}
}

// lastBuild returns the cached weekly digest if it still covers the window a
// build at now would use, nil otherwise.
func (h *AdminHandler) lastBuild(now time.Time) *digest.Digest {
	if h.Cache == nil {
		return nil
	}
	if d := h.Cache.Digest(); d != nil && d.CurrentAt(now) {
		return d
	}
	return nil
}
