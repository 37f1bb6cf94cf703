package grid

import (
	"errors"
	"fmt"
)

// ErrNotLaidOut is returned by AutoAssign when at least one resource is
// already placed; the bulk initializer only runs on a fully blank grid.
var ErrNotLaidOut = errors.New("grid: auto-assign requires an empty layout")

// ErrGridFull is returned when auto-assignment cannot fit all resources
// inside the current dimensions.
var ErrGridFull = errors.New("grid: not enough cells for all resources")

// CellOccupiedError reports a placement into a cell that already holds
// another resource.
type CellOccupiedError struct {
	Row, Col int
}

func (e *CellOccupiedError) Error() string {
	return fmt.Sprintf("grid: cell (%d,%d) is already occupied", e.Row, e.Col)
}

// OccupiedBoundaryError rejects a shrink that would push placed
// resources outside the new bounds.
type OccupiedBoundaryError struct {
	Rows, Cols int // requested dimensions
	Blocking   int // number of resources outside the new bounds
}

func (e *OccupiedBoundaryError) Error() string {
	return fmt.Sprintf("grid: cannot resize to %dx%d, %d placed resource(s) would fall outside",
		e.Rows, e.Cols, e.Blocking)
}

// BoundsError reports dimensions or coordinates outside the allowed
// range.
type BoundsError struct {
	Reason string
}

func (e *BoundsError) Error() string { return "grid: " + e.Reason }
