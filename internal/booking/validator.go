package booking

import (
	"fmt"
	"sort"
	"time"

	"github.com/campuslab/lab-reservation/internal/timeblock"
)

const (
	// maxBlocksPerRequest caps a single submission's block set.
	maxBlocksPerRequest = 3
	// maxDailyMinutes caps one user's total time on one resource per
	// date across all of their non-rejected reservations (5h15m).
	maxDailyMinutes = 315
)

// NormalizeBlocks resolves the requested block keys (ids or HH:MM-HH:MM
// labels) to canonical catalog ids, deduplicated and ordered by start
// time.  It enforces the per-request set size of 1 to 3 blocks.
func NormalizeBlocks(keys []string) ([]string, error) {
	seen := make(map[string]timeblock.Block, len(keys))
	for _, key := range keys {
		b, err := timeblock.Lookup(key)
		if err != nil {
			return nil, &ValidationError{Field: "time_blocks", Reason: err.Error()}
		}
		seen[b.ID] = b
	}
	if len(seen) == 0 {
		return nil, &ValidationError{Field: "time_blocks", Reason: "at least one time block is required"}
	}
	if len(seen) > maxBlocksPerRequest {
		return nil, &ValidationError{
			Field:  "time_blocks",
			Reason: fmt.Sprintf("at most %d time blocks per request", maxBlocksPerRequest),
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return seen[ids[i]].StartMinute < seen[ids[j]].StartMinute
	})
	return ids, nil
}

// CheckOverlap rejects the date when any requested block is already
// claimed by a PENDING or APPROVED reservation on the same resource.
func CheckOverlap(date time.Time, requested, occupied []string) error {
	taken := make(map[string]struct{}, len(occupied))
	for _, k := range occupied {
		taken[k] = struct{}{}
	}
	for _, k := range requested {
		if _, ok := taken[k]; ok {
			return &ConflictError{Date: date.Format("2006-01-02"), Reason: ReasonOverlap}
		}
	}
	return nil
}

// CheckCapacity enforces the per-day duration cap for one user on one
// resource.  Blocks the user already holds on the date count toward the
// cap even when they came from earlier submissions.
func CheckCapacity(date time.Time, requested, existing []string) error {
	total, err := timeblock.TotalMinutes(append(append([]string{}, existing...), requested...))
	if err != nil {
		return &ValidationError{Field: "time_blocks", Reason: err.Error()}
	}
	if total > maxDailyMinutes {
		return &ConflictError{Date: date.Format("2006-01-02"), Reason: ReasonCapacity}
	}
	return nil
}
