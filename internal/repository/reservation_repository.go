package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/campuslab/lab-reservation/internal/model"
)

// ReservationRepo provides data access for reservations and their time
// block rows.  Reservation dates are DATE columns handled at UTC
// midnight.  Conflict-sensitive operations run inside caller-supplied
// transactions; the partial unique key on reservation_blocks is the
// final arbiter for concurrent overlapping submissions.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle for transaction control.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const dateLayout = "2006-01-02"

// CreateTx inserts one reservation and its block rows within the given
// transaction.  Block rows are inserted with is_active = 1, so an
// overlapping active claim by a concurrent transaction fails here with
// ErrBlockTaken and the caller rolls back.  On success the generated ID
// and creation timestamp are populated on the record.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (user_id, resource_id, reservation_date, status, recurrence_group_id)
	           VALUES (?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.UserID, res.ResourceID, res.Date.Format(dateLayout), res.Status, res.RecurrenceGroupID)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)

	blockQ := `INSERT INTO reservation_blocks (reservation_id, resource_id, reservation_date, time_block_id) VALUES `
	args := make([]interface{}, 0, len(res.BlockIDs)*4)
	for i, blockID := range res.BlockIDs {
		if i > 0 {
			blockQ += ","
		}
		blockQ += "(?, ?, ?, ?)"
		args = append(args, res.ID, res.ResourceID, res.Date.Format(dateLayout), blockID)
	}
	if _, err := tx.ExecContext(ctx, blockQ, args...); err != nil {
		if IsDuplicate(err) {
			return ErrBlockTaken
		}
		return err
	}

	// Read back the creation timestamp set by the database.
	return tx.QueryRowContext(ctx,
		`SELECT created_at FROM reservations WHERE id = ?`, res.ID).Scan(&res.CreatedAt)
}

// ActiveBlocksForUpdateTx returns the block keys currently claimed by
// PENDING or APPROVED reservations for one resource and date, locking
// the rows so the validation that follows is serialized against
// concurrent submissions for the same pair.
func (r *ReservationRepo) ActiveBlocksForUpdateTx(ctx context.Context, tx *sql.Tx, resourceID uint64, date time.Time) ([]string, error) {
	const q = `SELECT time_block_id FROM reservation_blocks
	           WHERE resource_id = ? AND reservation_date = ? AND is_active = 1
	           FOR UPDATE`
	return scanBlockKeys(tx.QueryContext(ctx, q, resourceID, date.Format(dateLayout)))
}

// UserActiveBlocksTx returns the block keys a user already holds on the
// given resource and date through non-rejected reservations.  The
// per-day duration cap is enforced against this set, so blocks from
// multiple submissions on the same day accumulate.
func (r *ReservationRepo) UserActiveBlocksTx(ctx context.Context, tx *sql.Tx, userID, resourceID uint64, date time.Time) ([]string, error) {
	const q = `SELECT b.time_block_id
	           FROM reservation_blocks b
	           JOIN reservations res ON res.id = b.reservation_id
	           WHERE res.user_id = ? AND b.resource_id = ? AND b.reservation_date = ? AND b.is_active = 1`
	return scanBlockKeys(tx.QueryContext(ctx, q, userID, resourceID, date.Format(dateLayout)))
}

// UserHoldsKindOnDateTx reports whether the user already has an active
// reservation on the date for another resource of the given kind.  Used
// for the one-headset-per-user-per-date rule.
func (r *ReservationRepo) UserHoldsKindOnDateTx(ctx context.Context, tx *sql.Tx, userID uint64, date time.Time, kind model.ResourceKind, excludeResourceID uint64) (bool, error) {
	const q = `SELECT COUNT(*)
	           FROM reservations res
	           JOIN resources rc ON rc.id = res.resource_id
	           WHERE res.user_id = ? AND res.reservation_date = ?
	             AND res.status IN ('PENDING','APPROVED')
	             AND rc.kind = ? AND res.resource_id <> ?`
	var n int
	err := tx.QueryRowContext(ctx, q, userID, date.Format(dateLayout), kind, excludeResourceID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanBlockKeys(rows *sql.Rows, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// GetForUpdateTx loads a reservation and its block keys, locking the
// reservation row for a status transition.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	const q = `SELECT id, user_id, resource_id, reservation_date, status, recurrence_group_id,
	                  created_at, processed_at, processed_by
	           FROM reservations WHERE id = ? FOR UPDATE`
	res, err := scanReservation(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	res.BlockIDs, err = scanBlockKeys(tx.QueryContext(ctx,
		`SELECT time_block_id FROM reservation_blocks WHERE reservation_id = ? ORDER BY time_block_id`, id))
	if err != nil {
		return nil, err
	}
	return res, nil
}

// UpdateStatusTx applies a status transition within the transaction.
// Block rows flip is_active in the same statement batch: active for
// PENDING/APPROVED, NULL otherwise, which releases the partial unique
// key claim the moment a reservation stops blocking.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.ReservationStatus, processedAt *time.Time, processedBy *uint64) error {
	const q = `UPDATE reservations
	           SET status = ?,
	               processed_at = COALESCE(processed_at, ?),
	               processed_by = COALESCE(processed_by, ?)
	           WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, status, processedAt, processedBy, id); err != nil {
		return err
	}
	var active interface{}
	if status.Active() {
		active = 1
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE reservation_blocks SET is_active = ? WHERE reservation_id = ?`, active, id)
	if err != nil && IsDuplicate(err) {
		return ErrBlockTaken
	}
	return err
}

// GetByID loads a single reservation outside any transaction.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT id, user_id, resource_id, reservation_date, status, recurrence_group_id,
	                  created_at, processed_at, processed_by
	           FROM reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	res.BlockIDs, err = scanBlockKeys(r.db.QueryContext(ctx,
		`SELECT time_block_id FROM reservation_blocks WHERE reservation_id = ? ORDER BY time_block_id`, id))
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListByGroup returns every reservation generated from one recurring
// submission, ordered by date.
func (r *ReservationRepo) ListByGroup(ctx context.Context, groupID string) ([]model.Reservation, error) {
	const q = `SELECT id, user_id, resource_id, reservation_date, status, recurrence_group_id,
	                  created_at, processed_at, processed_by
	           FROM reservations WHERE recurrence_group_id = ?
	           ORDER BY reservation_date`
	return r.listWithBlocks(ctx, q, groupID)
}

// ListByUser returns all reservations created by one user, newest date
// first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	const q = `SELECT id, user_id, resource_id, reservation_date, status, recurrence_group_id,
	                  created_at, processed_at, processed_by
	           FROM reservations WHERE user_id = ?
	           ORDER BY reservation_date DESC, id DESC`
	return r.listWithBlocks(ctx, q, userID)
}

// ListPending returns reservations awaiting a decision, oldest first,
// for the approver queue.
func (r *ReservationRepo) ListPending(ctx context.Context) ([]model.Reservation, error) {
	const q = `SELECT id, user_id, resource_id, reservation_date, status, recurrence_group_id,
	                  created_at, processed_at, processed_by
	           FROM reservations WHERE status = 'PENDING'
	           ORDER BY created_at, id`
	return r.listWithBlocks(ctx, q)
}

// OccupiedBlocks returns, for one resource, the active block keys per
// date inside [from, to].  Keys of the returned map use the DATE string
// form (YYYY-MM-DD).
func (r *ReservationRepo) OccupiedBlocks(ctx context.Context, resourceID uint64, from, to time.Time) (map[string][]string, error) {
	const q = `SELECT reservation_date, time_block_id FROM reservation_blocks
	           WHERE resource_id = ? AND is_active = 1
	             AND reservation_date BETWEEN ? AND ?
	           ORDER BY reservation_date, time_block_id`
	rows, err := r.db.QueryContext(ctx, q, resourceID, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var (
			d time.Time
			k string
		)
		if err := rows.Scan(&d, &k); err != nil {
			return nil, err
		}
		key := d.Format(dateLayout)
		out[key] = append(out[key], k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ReservationRepo) listWithBlocks(ctx context.Context, q string, args ...interface{}) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Reservation, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		index[res.ID] = len(items)
		items = append(items, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	// Fetch block keys for all reservations in a single query.
	ids := make([]interface{}, 0, len(items))
	placeholders := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
		placeholders = append(placeholders, "?")
	}
	blockQ := `SELECT reservation_id, time_block_id FROM reservation_blocks
	           WHERE reservation_id IN (` + strings.Join(placeholders, ",") + `)
	           ORDER BY reservation_id, time_block_id`
	brows, err := r.db.QueryContext(ctx, blockQ, ids...)
	if err != nil {
		return nil, err
	}
	defer brows.Close()
	for brows.Next() {
		var (
			rid uint64
			k   string
		)
		if err := brows.Scan(&rid, &k); err != nil {
			return nil, err
		}
		if idx, ok := index[rid]; ok {
			items[idx].BlockIDs = append(items[idx].BlockIDs, k)
		}
	}
	if err := brows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanReservation(row interface {
	Scan(dest ...interface{}) error
}) (*model.Reservation, error) {
	var (
		res         model.Reservation
		groupID     sql.NullString
		processedAt sql.NullTime
		processedBy sql.NullInt64
	)
	err := row.Scan(&res.ID, &res.UserID, &res.ResourceID, &res.Date, &res.Status,
		&groupID, &res.CreatedAt, &processedAt, &processedBy)
	if err != nil {
		return nil, err
	}
	if groupID.Valid {
		g := groupID.String
		res.RecurrenceGroupID = &g
	}
	if processedAt.Valid {
		t := processedAt.Time
		res.ProcessedAt = &t
	}
	if processedBy.Valid {
		by := uint64(processedBy.Int64)
		res.ProcessedBy = &by
	}
	return &res, nil
}
