// Package digest builds the weekly Risk Delta: a comparison of the most
// recent seven days of extracted events against the seven days before them.
package digest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/juba-labs/hornwatch/internal/extract"
	"github.com/juba-labs/hornwatch/internal/models"
)

const (
	highSeverityFloor = 4
	maxHighSeverity   = 8
	maxHotRegions     = 10
	maxActorSpikes    = 15

	// weakBaseline is the last-week event count below which percent changes
	// are meaningless and get suppressed.
	weakBaseline = 5
)

// Digest is the structured Risk Delta for one week. It is the JSON artifact;
// the HTML and text renderings derive from it.
type Digest struct {
	GeneratedAt  time.Time `json:"generatedAt"`
	WeekNumber   int       `json:"weekNumber"`
	ThisWeek     Window    `json:"thisWeek"`
	LastWeek     Window    `json:"lastWeek"`
	BaselineWeak bool      `json:"baselineWeak"`

	Topline      Topline      `json:"topline"`
	HighSeverity []Bundle     `json:"highSeverity"`
	HotRegions   []HotRegion  `json:"hotRegions"`
	ActorSpikes  []ActorSpike `json:"actorSpikes"`

	// HighSeverityCount is the raw event count at or above the severity
	// floor, before bundling and capping.
	HighSeverityCount int `json:"highSeverityCount"`
}

// Topline holds the weekly totals and the per-type breakdown.
type Topline struct {
	TotalThisWeek int         `json:"totalThisWeek"`
	TotalLastWeek int         `json:"totalLastWeek"`
	ChangePct     *int        `json:"changePct,omitempty"`
	Types         []TypeCount `json:"types"`
}

// TypeCount is one event type's weekly comparison. A type active last week
// but silent this week still gets a row, so a fall to zero stays visible.
type TypeCount struct {
	EventType string `json:"eventType"`
	ThisWeek  int    `json:"thisWeek"`
	LastWeek  int    `json:"lastWeek"`
	ChangePct *int   `json:"changePct,omitempty"`
}

// HotRegion ranks one admin region by severity-weighted event count.
type HotRegion struct {
	Region      string  `json:"region"`
	Count       int     `json:"count"`
	SeveritySum int     `json:"severitySum"`
	AvgSeverity float64 `json:"avgSeverity"`
	ChangePct   *int    `json:"changePct,omitempty"`
}

// ActorSpike is one actor's week-over-week mention movement.
type ActorSpike struct {
	Actor     string `json:"actor"`
	ThisWeek  int    `json:"thisWeek"`
	LastWeek  int    `json:"lastWeek"`
	Delta     int    `json:"delta"`
	ChangePct *int   `json:"changePct,omitempty"`
}

// Builder reads the event store and assembles digests.
type Builder struct {
	events *models.EventStore
}

// NewBuilder creates a Builder over the given store.
func NewBuilder(events *models.EventStore) *Builder {
	return &Builder{events: events}
}

// Build assembles the Risk Delta for the week ending at now. The baseline
// guard runs first: with fewer than five events last week every percent
// figure is suppressed and the digest presents raw counts only.
func (b *Builder) Build(ctx context.Context, now time.Time) (*Digest, error) {
	thisWeek, lastWeek := windows(now)
	_, week := thisWeek.To.AddDate(0, 0, -1).ISOWeek()

	d := &Digest{
		GeneratedAt: now,
		WeekNumber:  week,
		ThisWeek:    thisWeek,
		LastWeek:    lastWeek,
	}

	curTotal, err := b.events.CountWindow(ctx, thisWeek.From, thisWeek.To)
	if err != nil {
		return nil, fmt.Errorf("digest totals: %w", err)
	}
	prevTotal, err := b.events.CountWindow(ctx, lastWeek.From, lastWeek.To)
	if err != nil {
		return nil, fmt.Errorf("digest totals: %w", err)
	}
	d.BaselineWeak = prevTotal < weakBaseline

	if err := b.topline(ctx, d, curTotal, prevTotal); err != nil {
		return nil, err
	}
	if err := b.highSeverity(ctx, d); err != nil {
		return nil, err
	}
	if err := b.hotRegions(ctx, d); err != nil {
		return nil, err
	}
	if err := b.actorSpikes(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// change wraps pct behind the baseline guard; a weak baseline yields no
// percent value at all.
func (d *Digest) change(cur, prev int) *int {
	if d.BaselineWeak {
		return nil
	}
	p := pct(cur, prev)
	return &p
}

func (b *Builder) topline(ctx context.Context, d *Digest, curTotal, prevTotal int) error {
	cur, err := b.events.CountsByType(ctx, d.ThisWeek.From, d.ThisWeek.To)
	if err != nil {
		return fmt.Errorf("digest topline: %w", err)
	}
	prev, err := b.events.CountsByType(ctx, d.LastWeek.From, d.LastWeek.To)
	if err != nil {
		return fmt.Errorf("digest topline: %w", err)
	}

	d.Topline = Topline{
		TotalThisWeek: curTotal,
		TotalLastWeek: prevTotal,
		ChangePct:     d.change(curTotal, prevTotal),
	}

	names := make([]string, 0, len(cur)+len(prev))
	for name := range cur {
		names = append(names, name)
	}
	for name := range prev {
		if _, ok := cur[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		d.Topline.Types = append(d.Topline.Types, TypeCount{
			EventType: name,
			ThisWeek:  cur[name],
			LastWeek:  prev[name],
			ChangePct: d.change(cur[name], prev[name]),
		})
	}
	return nil
}

func (b *Builder) highSeverity(ctx context.Context, d *Digest) error {
	events, err := b.events.ListMinSeverity(ctx, d.ThisWeek.From, d.ThisWeek.To, highSeverityFloor)
	if err != nil {
		return fmt.Errorf("digest high severity: %w", err)
	}
	d.HighSeverityCount = len(events)

	bundles := bundleEvents(events)
	sort.SliceStable(bundles, func(i, j int) bool {
		if bundles[i].Severity != bundles[j].Severity {
			return bundles[i].Severity > bundles[j].Severity
		}
		return bundles[i].SourceCount > bundles[j].SourceCount
	})
	if len(bundles) > maxHighSeverity {
		bundles = bundles[:maxHighSeverity]
	}
	d.HighSeverity = bundles
	return nil
}

func (b *Builder) hotRegions(ctx context.Context, d *Digest) error {
	cur, err := b.events.RegionSeverities(ctx, d.ThisWeek.From, d.ThisWeek.To)
	if err != nil {
		return fmt.Errorf("digest hot regions: %w", err)
	}
	prev, err := b.events.RegionSeverities(ctx, d.LastWeek.From, d.LastWeek.To)
	if err != nil {
		return fmt.Errorf("digest hot regions: %w", err)
	}

	prevSums := make(map[string]int, len(prev))
	for _, rs := range prev {
		prevSums[rs.Region] = rs.SeveritySum
	}

	// Already ordered by severity sum descending.
	if len(cur) > maxHotRegions {
		cur = cur[:maxHotRegions]
	}
	for _, rs := range cur {
		d.HotRegions = append(d.HotRegions, HotRegion{
			Region:      rs.Region,
			Count:       rs.Count,
			SeveritySum: rs.SeveritySum,
			AvgSeverity: float64(rs.SeveritySum) / float64(rs.Count),
			ChangePct:   d.change(rs.SeveritySum, prevSums[rs.Region]),
		})
	}
	return nil
}

// actorSpikes ranks actors by how hard their mention count moved week over
// week, rising actors first. Names pass through the alias table again at
// build time so events extracted before an alias landed still merge.
func (b *Builder) actorSpikes(ctx context.Context, d *Digest) error {
	cur, err := b.events.ActorCounts(ctx, d.ThisWeek.From, d.ThisWeek.To)
	if err != nil {
		return fmt.Errorf("digest actor spikes: %w", err)
	}
	prev, err := b.events.ActorCounts(ctx, d.LastWeek.From, d.LastWeek.To)
	if err != nil {
		return fmt.Errorf("digest actor spikes: %w", err)
	}

	curNorm := renormalizeCounts(cur)
	prevNorm := renormalizeCounts(prev)

	names := make(map[string]bool, len(curNorm)+len(prevNorm))
	for name := range curNorm {
		names[name] = true
	}
	for name := range prevNorm {
		names[name] = true
	}

	var spikes []ActorSpike
	for name := range names {
		c, p := curNorm[name], prevNorm[name]
		if c == p {
			continue
		}
		spikes = append(spikes, ActorSpike{
			Actor:     name,
			ThisWeek:  c,
			LastWeek:  p,
			Delta:     c - p,
			ChangePct: d.change(c, p),
		})
	}

	sort.SliceStable(spikes, func(i, j int) bool {
		si, sj := spikes[i], spikes[j]
		if (si.Delta > 0) != (sj.Delta > 0) {
			return si.Delta > 0
		}
		mi, mj := abs(si.Delta), abs(sj.Delta)
		if mi != mj {
			return mi > mj
		}
		return si.Actor < sj.Actor
	})
	if len(spikes) > maxActorSpikes {
		spikes = spikes[:maxActorSpikes]
	}
	d.ActorSpikes = spikes
	return nil
}

// renormalizeCounts folds stored actor names through the current alias table,
// merging counts that normalize to the same canonical name.
func renormalizeCounts(counts map[string]int) map[string]int {
	out := make(map[string]int, len(counts))
	for name, n := range counts {
		out[extract.CanonicalActor(name)] += n
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
