package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/campuslab/lab-reservation/internal/model"
)

// ResourceRepo provides CRUD and placement operations for the
// `resources` table.  Grid positions are stored as nullable row/col
// columns; NULL means the resource has never been placed.
type ResourceRepo struct {
	db *sql.DB
}

// NewResourceRepo returns a ResourceRepo bound to the given database.
func NewResourceRepo(db *sql.DB) *ResourceRepo { return &ResourceRepo{db: db} }

// DB exposes the underlying handle so callers can begin transactions
// spanning multiple repositories.
func (r *ResourceRepo) DB() *sql.DB { return r.db }

const resourceColumns = `id, number, kind, access_level, allowed_user_types, grid_row, grid_col, is_available, created_at, updated_at`

func scanResource(row interface {
	Scan(dest ...interface{}) error
}) (*model.Resource, error) {
	var (
		res              model.Resource
		allowed          string
		gridRow, gridCol sql.NullInt64
	)
	err := row.Scan(&res.ID, &res.Number, &res.Kind, &res.AccessLevel,
		&allowed, &gridRow, &gridCol, &res.IsAvailable, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	res.AllowedUserTypes = splitUserTypes(allowed)
	if gridRow.Valid && gridCol.Valid {
		res.Position = &model.GridPosition{Row: int(gridRow.Int64), Col: int(gridCol.Int64)}
	}
	return &res, nil
}

// splitUserTypes decodes the comma-separated allow-list column.  An
// empty column decodes to an empty slice, which for SPECIAL resources
// means a deliberate lockout.
func splitUserTypes(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinUserTypes(types []string) string { return strings.Join(types, ",") }

// Create inserts a resource.  On success the resource's ID is
// populated.  Resource numbers are unique; a duplicate surfaces as a
// driver error for the handler to translate.
func (r *ResourceRepo) Create(ctx context.Context, res *model.Resource) error {
	const q = `INSERT INTO resources (number, kind, access_level, allowed_user_types, is_available)
	           VALUES (?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q,
		res.Number, res.Kind, res.AccessLevel, joinUserTypes(res.AllowedUserTypes), res.IsAvailable)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// GetByID retrieves a resource by its id.
func (r *ResourceRepo) GetByID(ctx context.Context, id uint64) (*model.Resource, error) {
	const q = `SELECT ` + resourceColumns + ` FROM resources WHERE id = ?`
	res, err := scanResource(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}
	return res, nil
}

// List retrieves all resources ordered by number.
func (r *ResourceRepo) List(ctx context.Context) ([]model.Resource, error) {
	const q = `SELECT ` + resourceColumns + ` FROM resources ORDER BY number`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update rewrites the editable attributes of a resource.  Position is
// managed separately through UpdatePosition.
func (r *ResourceRepo) Update(ctx context.Context, res *model.Resource) error {
	const q = `UPDATE resources
	           SET number = ?, kind = ?, access_level = ?, allowed_user_types = ?, is_available = ?
	           WHERE id = ?`
	result, err := r.db.ExecContext(ctx, q,
		res.Number, res.Kind, res.AccessLevel, joinUserTypes(res.AllowedUserTypes), res.IsAvailable, res.ID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrResourceNotFound
	}
	return nil
}

// Delete removes a resource unless it still has future APPROVED
// reservations; the engine rejects such deletes rather than cascading.
func (r *ResourceRepo) Delete(ctx context.Context, id uint64, today time.Time) error {
	const check = `SELECT COUNT(*) FROM reservations
	               WHERE resource_id = ? AND status = 'APPROVED' AND reservation_date >= ?`
	var n int
	if err := r.db.QueryRowContext(ctx, check, id, today.Format("2006-01-02")).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrHasFutureReservations
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrResourceNotFound
	}
	return nil
}

// UpdatePosition sets or clears a resource's grid cell.  A nil position
// unplaces the resource.  Collisions with the partial unique key on
// (grid_row, grid_col) map to ErrCellTaken; the occupant is never
// evicted.  Writing the position the row already holds is a no-op; the
// driver reports zero changed rows for it, so affected-row counts are
// not consulted and existence checks belong to the caller.
func (r *ResourceRepo) UpdatePosition(ctx context.Context, id uint64, pos *model.GridPosition) error {
	var err error
	if pos == nil {
		_, err = r.db.ExecContext(ctx,
			`UPDATE resources SET grid_row = NULL, grid_col = NULL WHERE id = ?`, id)
	} else {
		_, err = r.db.ExecContext(ctx,
			`UPDATE resources SET grid_row = ?, grid_col = ? WHERE id = ?`, pos.Row, pos.Col, id)
	}
	if err != nil {
		if IsDuplicate(err) {
			return ErrCellTaken
		}
		return err
	}
	return nil
}
