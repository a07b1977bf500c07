package digest

import (
	"fmt"
	"math"
	"time"
)

// Window is one comparison period, [From, To) in server-local time.
type Window struct {
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Label string    `json:"label"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// windows returns the two adjacent comparison periods ending at the start of
// tomorrow, so "this week" always includes all of today. Both are rounded to
// local day boundaries.
func windows(now time.Time) (thisWeek, lastWeek Window) {
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	mid := end.AddDate(0, 0, -7)
	start := end.AddDate(0, 0, -14)

	thisWeek = Window{From: mid, To: end, Label: label(mid, end)}
	lastWeek = Window{From: start, To: mid, Label: label(start, mid)}
	return thisWeek, lastWeek
}

// CurrentAt reports whether the digest covers the same comparison window a
// build at now would use. Windows roll at local midnight, so a build stays
// current for the rest of the day it was made on.
func (d *Digest) CurrentAt(now time.Time) bool {
	this, _ := windows(now)
	return d.ThisWeek.To.Equal(this.To)
}

// label renders a window as an ISO date range. To is exclusive, so the label
// shows the last full day inside the window.
func label(from, to time.Time) string {
	return fmt.Sprintf("%s – %s",
		from.Format("2006-01-02"),
		to.AddDate(0, 0, -1).Format("2006-01-02"))
}

// pct is the week-over-week change in percent. A zero baseline reads as +100
// when anything happened at all, and as no change when nothing did.
func pct(cur, prev int) int {
	if prev == 0 {
		if cur == 0 {
			return 0
		}
		return 100
	}
	return int(math.Round(float64(cur-prev) / float64(prev) * 100))
}
