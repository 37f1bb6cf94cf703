package repository

import (
	"context"
	"database/sql"
)

// LayoutRepo manages the single grid_layout row holding the placement
// grid dimensions.
type LayoutRepo struct {
	db *sql.DB
}

// NewLayoutRepo returns a LayoutRepo bound to the given database.
func NewLayoutRepo(db *sql.DB) *LayoutRepo { return &LayoutRepo{db: db} }

// Get reads the current grid dimensions.
func (r *LayoutRepo) Get(ctx context.Context) (rows, cols int, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT grid_rows, grid_cols FROM grid_layout WHERE id = 1`).Scan(&rows, &cols)
	return rows, cols, err
}

// Update stores new grid dimensions.  Bounds and occupancy checks
// happen in the grid manager before this is called.
func (r *LayoutRepo) Update(ctx context.Context, rows, cols int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE grid_layout SET grid_rows = ?, grid_cols = ? WHERE id = 1`, rows, cols)
	return err
}
