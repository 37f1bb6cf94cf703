// Package recurrence turns a weekly recurrence pattern, or an explicit
// date list, into a concrete ordered set of calendar dates.  The
// expander is pure: "not before today" filtering belongs to the
// submission pipeline, which has the clock.
package recurrence

import (
	"fmt"
	"sort"
	"time"
)

// Pattern describes "every listed weekday, for N consecutive weeks,
// beginning no earlier than Start".  Weekdays are Monday-based:
// 1=Monday .. 5=Friday.  Weekends are never reservable.
type Pattern struct {
	Start    time.Time
	Weekdays []int
	Weeks    int
}

// DateSpec selects between explicit-dates mode and recurrence mode.
// Exactly one of Dates and Pattern should be set; when both are set the
// explicit dates win.
type DateSpec struct {
	Dates   []time.Time
	Pattern *Pattern
}

// InvalidPatternError reports a malformed recurrence or date input.  It
// is user-correctable and returned synchronously.
type InvalidPatternError struct {
	Reason string
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("recurrence: invalid pattern: %s", e.Reason)
}

// Expand produces the ordered, deduplicated set of calendar dates a
// DateSpec names.  All returned dates are normalized to UTC midnight
// and sorted ascending.
func Expand(spec DateSpec) ([]time.Time, error) {
	if len(spec.Dates) > 0 {
		return normalize(spec.Dates), nil
	}
	if spec.Pattern == nil {
		return nil, &InvalidPatternError{Reason: "no dates or pattern supplied"}
	}
	return expandPattern(*spec.Pattern)
}

func expandPattern(p Pattern) ([]time.Time, error) {
	if p.Weeks < 1 {
		return nil, &InvalidPatternError{Reason: "number of weeks must be at least 1"}
	}
	if len(p.Weekdays) == 0 {
		return nil, &InvalidPatternError{Reason: "at least one weekday is required"}
	}
	for _, d := range p.Weekdays {
		if d < 1 || d > 5 {
			return nil, &InvalidPatternError{Reason: fmt.Sprintf("weekday %d outside Monday..Friday", d)}
		}
	}
	if p.Start.IsZero() {
		return nil, &InvalidPatternError{Reason: "start date is required"}
	}

	start := midnightUTC(p.Start)
	weekStart := startOfWeek(start)

	dates := make([]time.Time, 0, p.Weeks*len(p.Weekdays))
	for off := 0; off < p.Weeks; off++ {
		for _, day := range p.Weekdays {
			d := weekStart.AddDate(0, 0, off*7+day-1)
			// The first calendar week may contribute zero dates when
			// the start date falls after the pattern's weekdays.
			if d.Before(start) {
				continue
			}
			dates = append(dates, d)
		}
	}
	return normalize(dates), nil
}

// startOfWeek returns the Monday of the week containing t.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// normalize deduplicates and sorts dates ascending at UTC midnight.
func normalize(in []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(in))
	out := make([]time.Time, 0, len(in))
	for _, t := range in {
		d := midnightUTC(t)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
