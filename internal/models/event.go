package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Event is the structured record extracted from one article cluster. Events
// are immutable once inserted and keyed by the cluster hash.
type Event struct {
	ClusterHash        string    `json:"clusterHash"`
	Summary            string    `json:"summary"`
	Country            string    `json:"country"`
	Regions            []string  `json:"regions"`
	EventType          string    `json:"eventType"`
	EventSubtype       string    `json:"eventSubtype,omitempty"`
	Severity           int       `json:"severity"`
	Scope              string    `json:"scope"`
	SourceTier         string    `json:"sourceTier,omitempty"`
	VerificationStatus string    `json:"verificationStatus"`
	Confidence         float64   `json:"confidence"`
	Rationale          string    `json:"rationale,omitempty"`
	Actors             []string  `json:"actors"`
	ActorsNormalized   []string  `json:"actorsNormalized"`
	ArticleCount       int       `json:"articleCount"`
	Sources            []string  `json:"sources"`
	ArticleURLs        []string  `json:"articleUrls"`
	PrimaryURL         string    `json:"primaryUrl"`
	PrimaryTitle       string    `json:"primaryTitle"`
	PublishedAt        time.Time `json:"publishedAt"`
	ExtractedAt        time.Time `json:"extractedAt"`
	ModelVersion       string    `json:"modelVersion,omitempty"`
	PromptVersion      string    `json:"promptVersion,omitempty"`
}

// RegionSeverity aggregates events mentioning one admin region.
type RegionSeverity struct {
	Region      string `json:"region"`
	Count       int    `json:"count"`
	SeveritySum int    `json:"severitySum"`
}

// EventStore provides data access methods for extracted events.
type EventStore struct {
	db *sql.DB
}

// NewEventStore creates a new EventStore.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// DB returns the underlying handle for direct queries.
func (s *EventStore) DB() *sql.DB {
	return s.db
}

const eventColumns = `cluster_hash, summary, country, regions, event_type, event_subtype,
	severity, scope, source_tier, verification_status, confidence, rationale,
	actors, actors_normalized, article_count, sources, article_urls,
	primary_url, primary_title, published_at, extracted_at, model_version, prompt_version`

// Exists reports whether the cluster hash has already been handled, either
// as a stored event or as a quarantined extraction. A hash present in either
// table must never reach the LLM again.
func (s *EventStore) Exists(ctx context.Context, clusterHash string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM events WHERE cluster_hash = ?)
		     + (SELECT COUNT(*) FROM quarantine WHERE cluster_hash = ?)
	`, clusterHash, clusterHash).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("event exists: %w", err)
	}
	return n > 0, nil
}

// Insert stores an event. Inserting a hash that is already present is not an
// error: the insert is skipped and Insert returns false. ExtractedAt is set
// here if zero.
func (s *EventStore) Insert(ctx context.Context, ev *Event) (bool, error) {
	if ev.ExtractedAt.IsZero() {
		ev.ExtractedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ClusterHash, ev.Summary, ev.Country, marshalList(ev.Regions),
		ev.EventType, nullable(ev.EventSubtype), ev.Severity, ev.Scope,
		nullable(ev.SourceTier), ev.VerificationStatus, ev.Confidence,
		nullable(ev.Rationale), marshalList(ev.Actors),
		marshalList(ev.ActorsNormalized), ev.ArticleCount,
		marshalList(ev.Sources), marshalList(ev.ArticleURLs),
		ev.PrimaryURL, ev.PrimaryTitle,
		fmtTime(ev.PublishedAt), fmtTime(ev.ExtractedAt),
		nullable(ev.ModelVersion), nullable(ev.PromptVersion),
	)
	if err != nil {
		return false, fmt.Errorf("event insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("event insert: rows affected: %w", err)
	}
	return n > 0, nil
}

// GetByClusterHash returns a single event, or nil when absent.
func (s *EventStore) GetByClusterHash(ctx context.Context, clusterHash string) (*Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE cluster_hash = ?`, clusterHash)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("event get: %w", err)
	}
	return ev, nil
}

// ListWindow returns events published in [from, to), newest first.
func (s *EventStore) ListWindow(ctx context.Context, from, to time.Time) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE published_at >= ? AND published_at < ?
		ORDER BY published_at DESC
	`, fmtTime(from), fmtTime(to))
	if err != nil {
		return nil, fmt.Errorf("event list window: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("event list window scan: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// ListMinSeverity returns events published in [from, to) at or above the
// given severity, newest first.
func (s *EventStore) ListMinSeverity(ctx context.Context, from, to time.Time, minSeverity int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE published_at >= ? AND published_at < ? AND severity >= ?
		ORDER BY published_at DESC
	`, fmtTime(from), fmtTime(to), minSeverity)
	if err != nil {
		return nil, fmt.Errorf("event list min severity: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("event list min severity scan: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// CountWindow returns the number of events published in [from, to).
func (s *EventStore) CountWindow(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events WHERE published_at >= ? AND published_at < ?
	`, fmtTime(from), fmtTime(to)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("event count window: %w", err)
	}
	return n, nil
}

// CountsByType returns event counts per event type for [from, to).
func (s *EventStore) CountsByType(ctx context.Context, from, to time.Time) (map[string]int, error) {
	return s.groupCount(ctx, "event_type", from, to)
}

// CountsByCountry returns event counts per country for [from, to).
func (s *EventStore) CountsByCountry(ctx context.Context, from, to time.Time) (map[string]int, error) {
	return s.groupCount(ctx, "country", from, to)
}

func (s *EventStore) groupCount(ctx context.Context, column string, from, to time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+column+`, COUNT(*) FROM events
		WHERE published_at >= ? AND published_at < ?
		GROUP BY `+column+`
	`, fmtTime(from), fmtTime(to))
	if err != nil {
		return nil, fmt.Errorf("event counts by %s: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("event counts by %s scan: %w", column, err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

// CountsBySeverity returns event counts per severity level for [from, to).
func (s *EventStore) CountsBySeverity(ctx context.Context, from, to time.Time) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT severity, COUNT(*) FROM events
		WHERE published_at >= ? AND published_at < ?
		GROUP BY severity
	`, fmtTime(from), fmtTime(to))
	if err != nil {
		return nil, fmt.Errorf("event counts by severity: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var sev, n int
		if err := rows.Scan(&sev, &n); err != nil {
			return nil, fmt.Errorf("event counts by severity scan: %w", err)
		}
		counts[sev] = n
	}
	return counts, rows.Err()
}

// RegionSeverities returns per-region event counts and severity sums for
// [from, to), ordered by severity sum descending. Region lists are stored as
// JSON, so the fan-out happens here rather than in SQL.
func (s *EventStore) RegionSeverities(ctx context.Context, from, to time.Time) ([]RegionSeverity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT regions, severity FROM events
		WHERE published_at >= ? AND published_at < ?
	`, fmtTime(from), fmtTime(to))
	if err != nil {
		return nil, fmt.Errorf("event region severities: %w", err)
	}
	defer rows.Close()

	agg := make(map[string]*RegionSeverity)
	for rows.Next() {
		var raw []byte
		var sev int
		if err := rows.Scan(&raw, &sev); err != nil {
			return nil, fmt.Errorf("event region severities scan: %w", err)
		}
		for _, region := range scanList(raw) {
			rs, ok := agg[region]
			if !ok {
				rs = &RegionSeverity{Region: region}
				agg[region] = rs
			}
			rs.Count++
			rs.SeveritySum += sev
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]RegionSeverity, 0, len(agg))
	for _, rs := range agg {
		out = append(out, *rs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SeveritySum != out[j].SeveritySum {
			return out[i].SeveritySum > out[j].SeveritySum
		}
		return out[i].Region < out[j].Region
	})
	return out, nil
}

// ActorCounts returns how many events each normalized actor appears in for
// [from, to).
func (s *EventStore) ActorCounts(ctx context.Context, from, to time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT actors_normalized FROM events
		WHERE published_at >= ? AND published_at < ?
	`, fmtTime(from), fmtTime(to))
	if err != nil {
		return nil, fmt.Errorf("event actor counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("event actor counts scan: %w", err)
		}
		for _, actor := range scanList(raw) {
			counts[actor]++
		}
	}
	return counts, rows.Err()
}

// scannable is an interface for sql.Row and sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanEvent(row scannable) (*Event, error) {
	var ev Event
	var regions, actors, actorsNorm, sources, urls []byte
	var subtype, tier, rationale, modelV, promptV sql.NullString
	var publishedAt, extractedAt string
	if err := row.Scan(
		&ev.ClusterHash, &ev.Summary, &ev.Country, &regions, &ev.EventType,
		&subtype, &ev.Severity, &ev.Scope, &tier, &ev.VerificationStatus,
		&ev.Confidence, &rationale, &actors, &actorsNorm, &ev.ArticleCount,
		&sources, &urls, &ev.PrimaryURL, &ev.PrimaryTitle,
		&publishedAt, &extractedAt, &modelV, &promptV,
	); err != nil {
		return nil, err
	}
	ev.Regions = scanList(regions)
	ev.Actors = scanList(actors)
	ev.ActorsNormalized = scanList(actorsNorm)
	ev.Sources = scanList(sources)
	ev.ArticleURLs = scanList(urls)
	ev.EventSubtype = subtype.String
	ev.SourceTier = tier.String
	ev.Rationale = rationale.String
	ev.ModelVersion = modelV.String
	ev.PromptVersion = promptV.String
	ev.PublishedAt = parseTime(publishedAt)
	ev.ExtractedAt = parseTime(extractedAt)
	return &ev, nil
}

// scanList unmarshals a JSON list column (scanned as []byte) into a []string.
func scanList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}

// marshalList encodes a []string for a JSON list column. Nil encodes as [].
func marshalList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Timestamps are stored as RFC 3339 UTC text so that range predicates work
// as plain string comparisons in SQLite.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
