package repository

import (
	"context"
	"database/sql"

	"github.com/campuslab/lab-reservation/internal/access"
)

// UserTypeRepo loads the configured user type catalog.  The catalog is
// read per request into an access.Snapshot so eligibility decisions
// within a request see one consistent version.
type UserTypeRepo struct {
	db *sql.DB
}

// NewUserTypeRepo returns a UserTypeRepo bound to the given database.
func NewUserTypeRepo(db *sql.DB) *UserTypeRepo { return &UserTypeRepo{db: db} }

// LoadSnapshot reads all known user type names and the current catalog
// version.  The highest row id serves as the version: it advances
// whenever an admin adds a type.
func (r *UserTypeRepo) LoadSnapshot(ctx context.Context) (*access.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM user_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snap := &access.Snapshot{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		snap.KnownTypes = append(snap.KnownTypes, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	err = r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM user_types`).Scan(&snap.Version)
	if err != nil {
		return nil, err
	}
	return snap, nil
}
