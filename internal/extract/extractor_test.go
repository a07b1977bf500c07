package extract

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juba-labs/hornwatch/internal/config"
	"github.com/juba-labs/hornwatch/internal/db"
	"github.com/juba-labs/hornwatch/internal/models"
)

// fakeCompletion serves the chat-completions route, replying with canned
// content and counting calls.
type fakeCompletion struct {
	server *httptest.Server
	calls  int
	// queue holds per-call responses; the last entry repeats once drained.
	queue []fakeReply
}

type fakeReply struct {
	status  int
	content string
}

func newFakeCompletion(t *testing.T, replies ...fakeReply) *fakeCompletion {
	t.Helper()
	require.NotEmpty(t, replies)

	f := &fakeCompletion{queue: replies}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply := f.queue[0]
		if len(f.queue) > 1 {
			f.queue = f.queue[1:]
		}
		f.calls++

		if reply.status != http.StatusOK {
			w.WriteHeader(reply.status)
			w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": reply.content}}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func testExtractor(t *testing.T, f *fakeCompletion) (*Extractor, *models.EventStore, *models.QuarantineStore, *sql.DB) {
	t.Helper()

	conn, err := db.Open(context.Background(), config.DBConfig{
		Path: filepath.Join(t.TempDir(), "extract_test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	events := models.NewEventStore(conn)
	quarantine := models.NewQuarantineStore(conn)

	e := New(config.OpenAIConfig{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: f.server.URL,
	}, events, quarantine)
	e.delay = time.Millisecond
	e.backoff = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	return e, events, quarantine, conn
}

func testCluster(hash, title string) models.Cluster {
	return models.Cluster{
		Hash: hash,
		Articles: []models.Article{{
			ID:                "id-" + hash,
			Title:             title,
			URL:               "https://sudantribune.com/" + hash,
			PublishedAt:       time.Now().UTC().Truncate(time.Second),
			Source:            "Sudan Tribune",
			SourceReliability: "medium",
		}},
		Sources:     []string{"Sudan Tribune"},
		SourceCount: 1,
	}
}

const validOutput = `{
	"summary": "RSF shelling hit a market in El Fasher, killing at least 12 civilians.",
	"country": "Sudan",
	"regions": ["North Darfur"],
	"eventType": "security",
	"eventSubtype": "shelling",
	"severity": 4,
	"scope": "state",
	"verificationStatus": "reported",
	"confidence": 0.85,
	"actors": ["RSF", "rapid support forces"],
	"rationale": "Deadly attack on civilians in a contested state capital."
}`

func TestRunStoresValidEvent(t *testing.T) {
	f := newFakeCompletion(t, fakeReply{status: http.StatusOK, content: validOutput})
	e, events, _, _ := testExtractor(t, f)

	c := testCluster("hash-valid", "RSF shelling hits El Fasher market")
	e.Run(context.Background(), []models.Cluster{c})
	require.Equal(t, 1, f.calls)

	ev, err := events.GetByClusterHash(context.Background(), "hash-valid")
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, "Sudan", ev.Country)
	assert.Equal(t, "security", ev.EventType)
	assert.Equal(t, 4, ev.Severity)
	assert.Equal(t, "state", ev.Scope)
	assert.Equal(t, "reported", ev.VerificationStatus)
	assert.InDelta(t, 0.85, ev.Confidence, 1e-9)
	assert.Equal(t, []string{"North Darfur"}, ev.Regions)
	assert.Equal(t, []string{"Rapid Support Forces"}, ev.ActorsNormalized, "aliases applied and deduped")
	assert.Equal(t, "tier2", ev.SourceTier)
	assert.Equal(t, "RSF shelling hits El Fasher market", ev.PrimaryTitle)
	assert.Equal(t, "gpt-4o-mini", ev.ModelVersion)
	assert.Equal(t, promptVersion, ev.PromptVersion)
	assert.False(t, ev.ExtractedAt.IsZero())
}

func TestRunQuarantinesMissingCountry(t *testing.T) {
	f := newFakeCompletion(t, fakeReply{
		status:  http.StatusOK,
		content: `{"country": null, "eventType": "security", "severity": 4}`,
	})
	e, events, quarantine, conn := testExtractor(t, f)

	c := testCluster("hash-nullcountry", "Clashes reported near Malakal")
	e.Run(context.Background(), []models.Cluster{c})

	ev, err := events.GetByClusterHash(context.Background(), "hash-nullcountry")
	require.NoError(t, err)
	assert.Nil(t, ev, "events table stays unchanged")

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n))
	assert.Zero(t, n)

	recs, err := quarantine.ListRecent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"missing country"}, recs[0].ErrorReasons)
	assert.Equal(t, "hash-nullcountry", recs[0].ClusterHash)
	assert.Contains(t, recs[0].RawOutput, `"country": null`)
}

func TestRunQuarantinesLowConfidence(t *testing.T) {
	f := newFakeCompletion(t, fakeReply{
		status: http.StatusOK,
		content: `{"summary":"s","country":"Sudan","regions":[],"eventType":"political",
			"severity":2,"scope":"national","verificationStatus":"reported","confidence":0.2}`,
	})
	e, _, quarantine, _ := testExtractor(t, f)

	e.Run(context.Background(), []models.Cluster{testCluster("hash-lowconf", "Cabinet reshuffle announced")})

	recs, err := quarantine.ListRecent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].ErrorReasons, "missing regions")
	assert.Contains(t, recs[0].ErrorReasons[0], "confidence")
}

func TestRunQuarantinesUnparseableOutput(t *testing.T) {
	f := newFakeCompletion(t, fakeReply{status: http.StatusOK, content: "I cannot classify this story."})
	e, _, quarantine, _ := testExtractor(t, f)

	e.Run(context.Background(), []models.Cluster{testCluster("hash-prose", "Some story")})

	recs, err := quarantine.ListRecent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "I cannot classify this story.", recs[0].RawOutput)
	require.Len(t, recs[0].ErrorReasons, 1)
	assert.Contains(t, recs[0].ErrorReasons[0], "parse model output")
}

func TestRunSkipsSeenHashes(t *testing.T) {
	f := newFakeCompletion(t, fakeReply{status: http.StatusOK, content: validOutput})
	e, events, quarantine, _ := testExtractor(t, f)
	ctx := context.Background()

	// Seed one hash in events and one in quarantine.
	stored := testCluster("hash-stored", "Old story")
	e.Run(ctx, []models.Cluster{stored})
	require.Equal(t, 1, f.calls)

	require.NoError(t, quarantine.Insert(ctx, &models.QuarantineRecord{
		ClusterHash:  "hash-bad",
		ErrorReasons: []string{"missing country"},
	}))

	// Neither hash may reach the model again.
	e.Run(ctx, []models.Cluster{stored, testCluster("hash-bad", "Bad story")})
	assert.Equal(t, 1, f.calls)

	seen, err := events.Exists(ctx, "hash-stored")
	require.NoError(t, err)
	assert.True(t, seen)
	seen, err = events.Exists(ctx, "hash-bad")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestRunRetriesRateLimit(t *testing.T) {
	f := newFakeCompletion(t,
		fakeReply{status: http.StatusTooManyRequests},
		fakeReply{status: http.StatusTooManyRequests},
		fakeReply{status: http.StatusOK, content: validOutput},
	)
	e, events, _, _ := testExtractor(t, f)

	e.Run(context.Background(), []models.Cluster{testCluster("hash-retry", "Retry story")})
	assert.Equal(t, 3, f.calls)

	ev, err := events.GetByClusterHash(context.Background(), "hash-retry")
	require.NoError(t, err)
	assert.NotNil(t, ev)
}

func TestRunQuarantinesAfterRetriesExhausted(t *testing.T) {
	f := newFakeCompletion(t, fakeReply{status: http.StatusTooManyRequests})
	e, _, quarantine, _ := testExtractor(t, f)

	e.Run(context.Background(), []models.Cluster{testCluster("hash-throttled", "Throttled story")})
	assert.Equal(t, 4, f.calls, "initial call plus three retries")

	recs, err := quarantine.ListRecent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestRunDisabledWithoutKey(t *testing.T) {
	e := New(config.OpenAIConfig{}, nil, nil)
	assert.False(t, e.Enabled())
	// Must not panic or touch the nil stores.
	e.Run(context.Background(), []models.Cluster{testCluster("hash-x", "t")})
}
