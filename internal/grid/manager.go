// Package grid maintains the 2-D physical layout of lab resources.  It
// enforces one resource per cell and guards layout resizes against
// stranding placed resources.
package grid

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/campuslab/lab-reservation/internal/model"
	"github.com/campuslab/lab-reservation/internal/repository"
)

// Layout dimensions are capped to keep the floor plan renderable.
const (
	MaxRows = 10
	MaxCols = 10
)

// ResourceStore is the slice of resource persistence the manager needs.
type ResourceStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Resource, error)
	List(ctx context.Context) ([]model.Resource, error)
	UpdatePosition(ctx context.Context, id uint64, pos *model.GridPosition) error
}

// LayoutStore persists the grid dimensions.
type LayoutStore interface {
	Get(ctx context.Context) (rows, cols int, err error)
	Update(ctx context.Context, rows, cols int) error
}

// Manager serializes layout mutations.  The database's unique key on
// (grid_row, grid_col) is the hard occupancy guarantee; the mutex keeps
// resize and bulk assignment from interleaving with single placements.
type Manager struct {
	mu        sync.Mutex
	resources ResourceStore
	layout    LayoutStore
}

// NewManager returns a Manager over the given stores.
func NewManager(resources ResourceStore, layout LayoutStore) *Manager {
	return &Manager{resources: resources, layout: layout}
}

// Place moves a resource to the given cell.  The resource's previous
// cell, if any, is vacated implicitly.  Placing into an occupied cell
// fails with CellOccupiedError and leaves the occupant untouched.
func (m *Manager) Place(ctx context.Context, resourceID uint64, row, col int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, cols, err := m.layout.Get(ctx)
	if err != nil {
		return err
	}
	if row < 0 || col < 0 || row >= rows || col >= cols {
		return &BoundsError{Reason: fmt.Sprintf("cell (%d,%d) outside %dx%d layout", row, col, rows, cols)}
	}
	if _, err := m.resources.GetByID(ctx, resourceID); err != nil {
		return err
	}
	err = m.resources.UpdatePosition(ctx, resourceID, &model.GridPosition{Row: row, Col: col})
	if errors.Is(err, repository.ErrCellTaken) {
		return &CellOccupiedError{Row: row, Col: col}
	}
	return err
}

// Unplace removes a resource from the layout without deleting it.
// Unplacing an already unplaced resource is a no-op.
func (m *Manager) Unplace(ctx context.Context, resourceID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.resources.GetByID(ctx, resourceID); err != nil {
		return err
	}
	return m.resources.UpdatePosition(ctx, resourceID, nil)
}

// Resize changes the grid dimensions.  Shrinking fails with
// OccupiedBoundaryError if any placed resource would fall outside the
// new bounds; the caller must move or unplace those resources first.
func (m *Manager) Resize(ctx context.Context, rows, cols int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rows < 1 || cols < 1 || rows > MaxRows || cols > MaxCols {
		return &BoundsError{Reason: fmt.Sprintf("dimensions %dx%d outside 1..%dx1..%d", rows, cols, MaxRows, MaxCols)}
	}
	all, err := m.resources.List(ctx)
	if err != nil {
		return err
	}
	blocking := 0
	for i := range all {
		p := all[i].Position
		if p != nil && (p.Row >= rows || p.Col >= cols) {
			blocking++
		}
	}
	if blocking > 0 {
		return &OccupiedBoundaryError{Rows: rows, Cols: cols, Blocking: blocking}
	}
	return m.layout.Update(ctx, rows, cols)
}

// AutoAssign lays out every resource from scratch: NORMAL resources
// from row 0 and SPECIAL resources from row 1, each left to right by
// ascending resource number, wrapping two rows down when a row fills.
// It is a best-effort initializer for a brand-new lab and refuses to
// run if anything is already placed.
func (m *Manager) AutoAssign(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, cols, err := m.layout.Get(ctx)
	if err != nil {
		return err
	}
	all, err := m.resources.List(ctx)
	if err != nil {
		return err
	}
	var normal, special []model.Resource
	for i := range all {
		if all[i].Position != nil {
			return ErrNotLaidOut
		}
		if all[i].AccessLevel == model.AccessSpecial {
			special = append(special, all[i])
		} else {
			normal = append(normal, all[i])
		}
	}
	byNumber := func(s []model.Resource) {
		sort.Slice(s, func(i, j int) bool { return s[i].Number < s[j].Number })
	}
	byNumber(normal)
	byNumber(special)

	if err := m.assignLane(ctx, normal, 0, rows, cols); err != nil {
		return err
	}
	return m.assignLane(ctx, special, 1, rows, cols)
}

// assignLane fills resources into rows startRow, startRow+2, ... so the
// NORMAL and SPECIAL lanes interleave without colliding.
func (m *Manager) assignLane(ctx context.Context, items []model.Resource, startRow, rows, cols int) error {
	for i := range items {
		row := startRow + (i/cols)*2
		col := i % cols
		if row >= rows {
			return ErrGridFull
		}
		err := m.resources.UpdatePosition(ctx, items[i].ID, &model.GridPosition{Row: row, Col: col})
		if err != nil {
			return err
		}
	}
	return nil
}

// Cell is one occupied position in a layout snapshot.
type Cell struct {
	Row        int    `json:"row"`
	Col        int    `json:"col"`
	ResourceID uint64 `json:"resource_id"`
	Number     uint32 `json:"number"`
}

// Snapshot is a read-only view of the layout for rendering.
type Snapshot struct {
	Rows     int    `json:"rows"`
	Cols     int    `json:"cols"`
	Cells    []Cell `json:"cells"`
	Unplaced []uint64 `json:"unplaced_resource_ids"`
}

// View builds a layout snapshot: dimensions, occupied cells ordered by
// row then column, and the ids of resources not yet placed.
func (m *Manager) View(ctx context.Context) (*Snapshot, error) {
	rows, cols, err := m.layout.Get(ctx)
	if err != nil {
		return nil, err
	}
	all, err := m.resources.List(ctx)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Rows: rows, Cols: cols, Cells: make([]Cell, 0, len(all)), Unplaced: make([]uint64, 0)}
	for i := range all {
		if p := all[i].Position; p != nil {
			snap.Cells = append(snap.Cells, Cell{Row: p.Row, Col: p.Col, ResourceID: all[i].ID, Number: all[i].Number})
		} else {
			snap.Unplaced = append(snap.Unplaced, all[i].ID)
		}
	}
	sort.Slice(snap.Cells, func(i, j int) bool {
		if snap.Cells[i].Row != snap.Cells[j].Row {
			return snap.Cells[i].Row < snap.Cells[j].Row
		}
		return snap.Cells[i].Col < snap.Cells[j].Col
	})
	return snap, nil
}
