// Package timeblock holds the static catalog of fixed daily time
// windows.  The lab day is divided into six contiguous, non-overlapping
// 105-minute blocks covering 07:00-17:30.  Blocks are identified either
// by an opaque key ("B1".."B6") or by their "HH:MM-HH:MM" label; both
// forms resolve to the same catalog entry.
package timeblock

import (
	"fmt"
	"time"
)

// Block is one immutable catalog entry.  StartMinute and EndMinute are
// minutes since midnight.
type Block struct {
	ID          string `json:"id"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

// Minutes returns the block duration in minutes.
func (b Block) Minutes() int { return b.EndMinute - b.StartMinute }

// Duration returns the block duration.
func (b Block) Duration() time.Duration {
	return time.Duration(b.Minutes()) * time.Minute
}

// Label renders the block as "HH:MM-HH:MM".
func (b Block) Label() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d",
		b.StartMinute/60, b.StartMinute%60, b.EndMinute/60, b.EndMinute%60)
}

// blockMinutes is the fixed length of every catalog block.
const blockMinutes = 105

var catalog = buildCatalog()

func buildCatalog() []Block {
	// Six contiguous blocks beginning at 07:00.
	blocks := make([]Block, 0, 6)
	start := 7 * 60
	for i := 0; i < 6; i++ {
		blocks = append(blocks, Block{
			ID:          fmt.Sprintf("B%d", i+1),
			StartMinute: start,
			EndMinute:   start + blockMinutes,
		})
		start += blockMinutes
	}
	return blocks
}

// UnknownBlockError is returned when a key or label does not resolve to
// a catalog entry.
type UnknownBlockError struct {
	Key string
}

func (e *UnknownBlockError) Error() string {
	return fmt.Sprintf("timeblock: unknown block %q", e.Key)
}

// All returns the catalog ordered by start time.  The returned slice is
// a copy; callers may not mutate catalog state.
func All() []Block {
	out := make([]Block, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup resolves a block by its opaque key or its "HH:MM-HH:MM" label.
func Lookup(key string) (Block, error) {
	for _, b := range catalog {
		if b.ID == key || b.Label() == key {
			return b, nil
		}
	}
	return Block{}, &UnknownBlockError{Key: key}
}

// TotalMinutes sums the durations of the given block keys.  Unknown
// keys yield an UnknownBlockError.
func TotalMinutes(keys []string) (int, error) {
	total := 0
	for _, k := range keys {
		b, err := Lookup(k)
		if err != nil {
			return 0, err
		}
		total += b.Minutes()
	}
	return total, nil
}
