package models

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// QualitySnapshot summarizes extraction health over a window: how much of
// the LLM output survived validation, where confidence is heading, and which
// sources produce events with no admin region.
type QualitySnapshot struct {
	From             time.Time          `json:"from"`
	To               time.Time          `json:"to"`
	EventCount       int                `json:"eventCount"`
	QuarantineCount  int                `json:"quarantineCount"`
	AcceptRate       float64            `json:"acceptRate"`
	ConfidenceTrend  []WeeklyConfidence `json:"confidenceTrend"`
	MissingRegions   map[string]int     `json:"missingRegionsBySource"`
	RecentQuarantine []QuarantineRecord `json:"recentQuarantine"`
}

// WeeklyConfidence is the average extraction confidence for one week.
type WeeklyConfidence struct {
	WeekStart     time.Time `json:"weekStart"`
	Count         int       `json:"count"`
	AvgConfidence float64   `json:"avgConfidence"`
}

// QualitySnapshot builds the data-quality view for [from, to). Quarantine
// rows live in the same database, so the store reads both tables.
func (s *EventStore) QualitySnapshot(ctx context.Context, from, to time.Time) (*QualitySnapshot, error) {
	snap := &QualitySnapshot{
		From:           from,
		To:             to,
		MissingRegions: make(map[string]int),
	}

	var err error
	if snap.EventCount, err = s.CountWindow(ctx, from, to); err != nil {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM quarantine WHERE quarantined_at >= ? AND quarantined_at < ?
	`, fmtTime(from), fmtTime(to)).Scan(&snap.QuarantineCount)
	if err != nil {
		return nil, fmt.Errorf("quality quarantine count: %w", err)
	}

	// Accept rate is 1 over an empty window: nothing was rejected.
	total := snap.EventCount + snap.QuarantineCount
	if total == 0 {
		snap.AcceptRate = 1
	} else {
		snap.AcceptRate = float64(snap.EventCount) / float64(total)
	}

	if err := s.confidenceTrend(ctx, from, to, snap); err != nil {
		return nil, err
	}
	if err := s.missingRegions(ctx, from, to, snap); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cluster_hash, raw_output, error_reasons, primary_title,
		       primary_url, sources, article_urls, model_version, prompt_version,
		       quarantined_at
		FROM quarantine
		ORDER BY quarantined_at DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("quality recent quarantine: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		rec, err := scanQuarantine(rows)
		if err != nil {
			return nil, fmt.Errorf("quality recent quarantine scan: %w", err)
		}
		snap.RecentQuarantine = append(snap.RecentQuarantine, *rec)
	}
	return snap, rows.Err()
}

func (s *EventStore) confidenceTrend(ctx context.Context, from, to time.Time, snap *QualitySnapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT extracted_at, confidence FROM events
		WHERE extracted_at >= ? AND extracted_at < ?
	`, fmtTime(from), fmtTime(to))
	if err != nil {
		return fmt.Errorf("quality confidence trend: %w", err)
	}
	defer rows.Close()

	type bucket struct {
		sum   float64
		count int
	}
	weeks := make(map[time.Time]*bucket)
	for rows.Next() {
		var at string
		var conf float64
		if err := rows.Scan(&at, &conf); err != nil {
			return fmt.Errorf("quality confidence trend scan: %w", err)
		}
		week := weekStart(parseTime(at))
		b, ok := weeks[week]
		if !ok {
			b = &bucket{}
			weeks[week] = b
		}
		b.sum += conf
		b.count++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for week, b := range weeks {
		snap.ConfidenceTrend = append(snap.ConfidenceTrend, WeeklyConfidence{
			WeekStart:     week,
			Count:         b.count,
			AvgConfidence: b.sum / float64(b.count),
		})
	}
	sort.Slice(snap.ConfidenceTrend, func(i, j int) bool {
		return snap.ConfidenceTrend[i].WeekStart.Before(snap.ConfidenceTrend[j].WeekStart)
	})
	return nil
}

func (s *EventStore) missingRegions(ctx context.Context, from, to time.Time, snap *QualitySnapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sources, regions FROM events
		WHERE published_at >= ? AND published_at < ?
	`, fmtTime(from), fmtTime(to))
	if err != nil {
		return fmt.Errorf("quality missing regions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sources, regions []byte
		if err := rows.Scan(&sources, &regions); err != nil {
			return fmt.Errorf("quality missing regions scan: %w", err)
		}
		if len(scanList(regions)) > 0 {
			continue
		}
		for _, src := range scanList(sources) {
			snap.MissingRegions[src]++
		}
	}
	return rows.Err()
}

// weekStart returns the Monday 00:00 UTC of the week containing t.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
