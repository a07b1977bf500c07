package models

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QuarantineRecord captures an LLM output that failed parsing or validation.
// The raw output is kept verbatim for later inspection; the cluster hash is
// not unique here because distinct failures can share a hash across
// re-clustered cycles.
type QuarantineRecord struct {
	ID            string    `json:"id"`
	ClusterHash   string    `json:"clusterHash"`
	RawOutput     string    `json:"rawOutput,omitempty"`
	ErrorReasons  []string  `json:"errorReasons"`
	PrimaryTitle  string    `json:"primaryTitle,omitempty"`
	PrimaryURL    string    `json:"primaryUrl,omitempty"`
	Sources       []string  `json:"sources"`
	ArticleURLs   []string  `json:"articleUrls"`
	ModelVersion  string    `json:"modelVersion,omitempty"`
	PromptVersion string    `json:"promptVersion,omitempty"`
	QuarantinedAt time.Time `json:"quarantinedAt"`
}

// QuarantineStore provides data access methods for quarantined extractions.
type QuarantineStore struct {
	db *sql.DB
}

// NewQuarantineStore creates a new QuarantineStore.
func NewQuarantineStore(db *sql.DB) *QuarantineStore {
	return &QuarantineStore{db: db}
}

// Insert stores a quarantine record. The ID and QuarantinedAt fields are set
// here if left as zero values.
func (s *QuarantineStore) Insert(ctx context.Context, rec *QuarantineRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.QuarantinedAt.IsZero() {
		rec.QuarantinedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quarantine (id, cluster_hash, raw_output, error_reasons,
		                        primary_title, primary_url, sources, article_urls,
		                        model_version, prompt_version, quarantined_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.ClusterHash, nullable(rec.RawOutput),
		marshalList(rec.ErrorReasons), nullable(rec.PrimaryTitle),
		nullable(rec.PrimaryURL), marshalList(rec.Sources),
		marshalList(rec.ArticleURLs), nullable(rec.ModelVersion),
		nullable(rec.PromptVersion), fmtTime(rec.QuarantinedAt),
	)
	if err != nil {
		return fmt.Errorf("quarantine insert: %w", err)
	}
	return nil
}

// ListRecent returns the most recent quarantine records, newest first.
func (s *QuarantineStore) ListRecent(ctx context.Context, limit int) ([]QuarantineRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cluster_hash, raw_output, error_reasons, primary_title,
		       primary_url, sources, article_urls, model_version, prompt_version,
		       quarantined_at
		FROM quarantine
		ORDER BY quarantined_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("quarantine list recent: %w", err)
	}
	defer rows.Close()

	var recs []QuarantineRecord
	for rows.Next() {
		rec, err := scanQuarantine(rows)
		if err != nil {
			return nil, fmt.Errorf("quarantine list recent scan: %w", err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// CountWindow returns the number of records quarantined in [from, to).
func (s *QuarantineStore) CountWindow(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM quarantine WHERE quarantined_at >= ? AND quarantined_at < ?
	`, fmtTime(from), fmtTime(to)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("quarantine count window: %w", err)
	}
	return n, nil
}

func scanQuarantine(row scannable) (*QuarantineRecord, error) {
	var rec QuarantineRecord
	var reasons, sources, urls []byte
	var raw, title, pURL, modelV, promptV sql.NullString
	var at string
	if err := row.Scan(
		&rec.ID, &rec.ClusterHash, &raw, &reasons, &title, &pURL,
		&sources, &urls, &modelV, &promptV, &at,
	); err != nil {
		return nil, err
	}
	rec.RawOutput = raw.String
	rec.ErrorReasons = scanList(reasons)
	rec.PrimaryTitle = title.String
	rec.PrimaryURL = pURL.String
	rec.Sources = scanList(sources)
	rec.ArticleURLs = scanList(urls)
	rec.ModelVersion = modelV.String
	rec.PromptVersion = promptV.String
	rec.QuarantinedAt = parseTime(at)
	return &rec, nil
}
