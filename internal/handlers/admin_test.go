package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juba-labs/hornwatch/internal/cache"
	"github.com/juba-labs/hornwatch/internal/config"
	"github.com/juba-labs/hornwatch/internal/digest"
	"github.com/juba-labs/hornwatch/internal/extract"
	"github.com/juba-labs/hornwatch/internal/images"
	"github.com/juba-labs/hornwatch/internal/ingest"
	"github.com/juba-labs/hornwatch/internal/models"
	"github.com/juba-labs/hornwatch/internal/pipeline"
	"github.com/juba-labs/hornwatch/internal/resolve"
)

func TestAdminQuality(t *testing.T) {
	events, _, quarantine := testStores(t)
	seedEvent(t, events, "q-event")
	require.NoError(t, quarantine.Insert(context.Background(), &models.QuarantineRecord{
		ClusterHash:  "q-bad",
		RawOutput:    "not json at all",
		ErrorReasons: []string{"parse: invalid JSON"},
		PrimaryTitle: "Garbled extraction",
	}))

	h := &AdminHandler{Events: events}
	rec := httptest.NewRecorder()
	h.Quality(rec, httptest.NewRequest(http.MethodGet, "/api/admin/quality", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.QualitySnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.EventCount)
	assert.Equal(t, 1, snap.QuarantineCount)
	assert.InDelta(t, 0.5, snap.AcceptRate, 1e-9)
	require.Len(t, snap.RecentQuarantine, 1)
	assert.Equal(t, "q-bad", snap.RecentQuarantine[0].ClusterHash)
}

func TestAdminTriggerIngest(t *testing.T) {
	events, _, quarantine := testStores(t)
	feedCache := cache.New()

	// No sources configured: the background cycle publishes an empty
	// snapshot and finishes almost immediately.
	pipe := pipeline.New(pipeline.Deps{
		Fetcher:   ingest.NewFetcher(),
		Resolver:  resolve.NewResolver(),
		Images:    images.NewEnricher(),
		Extractor: extract.New(config.OpenAIConfig{}, events, quarantine),
		Events:    events,
		Cache:     feedCache,
	})
	h := &AdminHandler{Events: events, Pipeline: pipe}

	rec := httptest.NewRecorder()
	h.TriggerIngest(rec, httptest.NewRequest(http.MethodPost, "/api/admin/ingest", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":"started","message":"Ingestion cycle started in background."}`, rec.Body.String())
	assert.Eventually(t, func() bool { return feedCache.Feed() != nil },
		2*time.Second, 10*time.Millisecond, "cycle runs in the background")
}

func TestAdminDigestPreviewServesLastBuild(t *testing.T) {
	events, _, _ := testStores(t)
	seedEvent(t, events, "preview-a")

	builder := digest.NewBuilder(events)
	feedCache := cache.New()
	built, err := builder.Build(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	feedCache.SetDigest(built)

	// A second event lands after the weekly build. The preview keeps serving
	// the built artifact while its window is current.
	seedEvent(t, events, "preview-b")

	h := &AdminHandler{Events: events, Digest: builder, Cache: feedCache}
	rec := httptest.NewRecorder()
	h.DigestPreview(rec, httptest.NewRequest(http.MethodGet, "/api/admin/digest/preview", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var d digest.Digest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, 1, d.Topline.TotalThisWeek, "served from the last build")

	// An outdated build no longer matches the current window and triggers a
	// fresh one.
	stale, err := builder.Build(context.Background(), time.Now().UTC().AddDate(0, 0, -3))
	require.NoError(t, err)
	feedCache.SetDigest(stale)

	rec = httptest.NewRecorder()
	h.DigestPreview(rec, httptest.NewRequest(http.MethodGet, "/api/admin/digest/preview", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, 2, d.Topline.TotalThisWeek, "stale build is rebuilt")
}

func TestAdminDigestPreview(t *testing.T) {
	events, _, _ := testStores(t)
	seedEvent(t, events, "preview-event")
	h := &AdminHandler{Events: events, Digest: digest.NewBuilder(events)}

	rec := httptest.NewRecorder()
	h.DigestPreview(rec, httptest.NewRequest(http.MethodGet, "/api/admin/digest/preview", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var d digest.Digest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, 1, d.Topline.TotalThisWeek)
	assert.True(t, d.BaselineWeak, "a single seeded week has no baseline")

	rec = httptest.NewRecorder()
	h.DigestPreview(rec, httptest.NewRequest(http.MethodGet, "/api/admin/digest/preview?format=html", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Horn Risk Delta")

	rec = httptest.NewRecorder()
	h.DigestPreview(rec, httptest.NewRequest(http.MethodGet, "/api/admin/digest/preview?format=text", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "HORN RISK DELTA")
}
