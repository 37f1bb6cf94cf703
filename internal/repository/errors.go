// Package repository implements data access for resources, reservations
// and the grid layout over database/sql.  Sentinel errors defined here
// let higher layers distinguish failure scenarios without inspecting
// driver-specific errors: the MySQL duplicate-key checks are translated
// at this boundary and never leak upward.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrResourceNotFound is returned when a resource lookup yields no rows.
var ErrResourceNotFound = errors.New("resource not found")

// ErrReservationNotFound is returned when a reservation lookup yields no rows.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrBlockTaken is returned when an insert collides with the partial
// unique key on (resource, date, time block) among active rows, meaning
// a concurrent submission claimed the block first.
var ErrBlockTaken = errors.New("time block already taken")

// ErrCellTaken is returned when a position update collides with the
// partial unique key on (grid_row, grid_col).
var ErrCellTaken = errors.New("grid cell already occupied")

// ErrHasFutureReservations is returned when deleting a resource that
// still has future approved reservations.
var ErrHasFutureReservations = errors.New("resource has future approved reservations")

// IsDuplicate reports whether err is a MySQL duplicate-entry error
// (1062), the signal that a unique constraint rejected a write.
func IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
