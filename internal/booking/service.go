// Package booking implements the reservation engine: request
// validation, conflict checking, the lifecycle state machine, and the
// domain events raised on every transition.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campuslab/lab-reservation/internal/access"
	"github.com/campuslab/lab-reservation/internal/model"
	"github.com/campuslab/lab-reservation/internal/queue"
	"github.com/campuslab/lab-reservation/internal/recurrence"
	"github.com/campuslab/lab-reservation/internal/repository"
)

const dateLayout = "2006-01-02"

// maxAvailabilityDays bounds one availability query's date range.
const maxAvailabilityDays = 62

type resourceStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Resource, error)
	List(ctx context.Context) ([]model.Resource, error)
}

type reservationStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error
	ActiveBlocksForUpdateTx(ctx context.Context, tx *sql.Tx, resourceID uint64, date time.Time) ([]string, error)
	UserActiveBlocksTx(ctx context.Context, tx *sql.Tx, userID, resourceID uint64, date time.Time) ([]string, error)
	UserHoldsKindOnDateTx(ctx context.Context, tx *sql.Tx, userID uint64, date time.Time, kind model.ResourceKind, excludeResourceID uint64) (bool, error)
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.ReservationStatus, processedAt *time.Time, processedBy *uint64) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
	ListByGroup(ctx context.Context, groupID string) ([]model.Reservation, error)
	ListPending(ctx context.Context) ([]model.Reservation, error)
	OccupiedBlocks(ctx context.Context, resourceID uint64, from, to time.Time) (map[string][]string, error)
}

type snapshotStore interface {
	LoadSnapshot(ctx context.Context) (*access.Snapshot, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, event queue.ReservationEvent) error
}

type availabilityCache interface {
	Get(ctx context.Context, resourceID uint64, date string) ([]string, bool)
	Set(ctx context.Context, resourceID uint64, date string, blocks []string)
	Invalidate(ctx context.Context, resourceID uint64, dates ...string)
}

// Service coordinates reservation submission, decisions and
// cancellation.  Conflict checks and inserts for one candidate date run
// in a single transaction so concurrent overlapping submissions cannot
// both succeed.
type Service struct {
	db           *sql.DB
	resources    resourceStore
	reservations reservationStore
	userTypes    snapshotStore
	publisher    eventPublisher
	cache        availabilityCache
	now          func() time.Time
}

// NewService wires the booking service.  publisher and cache may be nil
// in which case events are skipped and every availability read hits the
// database.
func NewService(db *sql.DB, resources resourceStore, reservations reservationStore, userTypes snapshotStore, publisher eventPublisher, cache availabilityCache) *Service {
	return &Service{
		db:           db,
		resources:    resources,
		reservations: reservations,
		userTypes:    userTypes,
		publisher:    publisher,
		cache:        cache,
		now:          time.Now,
	}
}

// SubmitInput is one reservation request before date expansion.
type SubmitInput struct {
	UserID     uint64
	UserType   access.UserType
	ResourceID uint64
	BlockKeys  []string
	DateSpec   recurrence.DateSpec
}

// RejectedDate reports one expanded date that could not be reserved.
type RejectedDate struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// SubmitResult reports per-date outcomes of a submission.  Partial
// success is the normal case for recurring requests, not an error.
type SubmitResult struct {
	Created  []model.Reservation `json:"created"`
	Rejected []RejectedDate      `json:"rejected_dates"`
}

// ReasonPastDate rejects expanded dates that fall before today.
const ReasonPastDate = "DATE_IN_PAST"

// Submit validates the request, expands its date specification and
// creates one PENDING reservation per date that passes conflict and
// capacity checks.  Dates that fail are reported individually; the
// remaining dates still succeed.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	blocks, err := NormalizeBlocks(in.BlockKeys)
	if err != nil {
		return nil, err
	}
	userType, err := s.resolveUserType(ctx, in.UserType)
	if err != nil {
		return nil, err
	}
	resource, err := s.resources.GetByID(ctx, in.ResourceID)
	if err != nil {
		return nil, err
	}
	if !resource.IsAvailable {
		return nil, ErrResourceUnavailable
	}
	// Access is re-checked here even though the listing endpoint already
	// filters; client-side filtering is never trusted.
	if !access.CanAccess(resource, userType) {
		return nil, ErrAccessDenied
	}
	dates, err := recurrence.Expand(in.DateSpec)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, &ValidationError{Field: "dates", Reason: "no reservation dates supplied"}
	}

	var groupID *string
	if len(dates) > 1 || in.DateSpec.Pattern != nil {
		g := uuid.NewString()
		groupID = &g
	}

	today := midnight(s.now())
	result := &SubmitResult{Created: make([]model.Reservation, 0, len(dates)), Rejected: make([]RejectedDate, 0)}
	for _, date := range dates {
		if date.Before(today) {
			result.Rejected = append(result.Rejected, RejectedDate{Date: date.Format(dateLayout), Reason: ReasonPastDate})
			continue
		}
		rec, err := s.submitOne(ctx, resource, in.UserID, groupID, date, blocks)
		if err != nil {
			if conflict, ok := err.(*ConflictError); ok {
				result.Rejected = append(result.Rejected, RejectedDate{Date: conflict.Date, Reason: conflict.Reason})
				continue
			}
			return nil, err
		}
		result.Created = append(result.Created, *rec)
	}

	for i := range result.Created {
		s.publish(ctx, queue.EventCreated, &result.Created[i], resource)
		s.invalidate(ctx, resource.ID, result.Created[i].Date)
	}
	return result, nil
}

// submitOne runs the conflict checks and the insert for one date inside
// a single transaction.  The row locks taken by the block scan
// serialize concurrent submissions for the same resource and date; a
// racing insert that slips through still trips the unique key and comes
// back as an overlap conflict.
func (s *Service) submitOne(ctx context.Context, resource *model.Resource, userID uint64, groupID *string, date time.Time, blocks []string) (*model.Reservation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	occupied, err := s.reservations.ActiveBlocksForUpdateTx(ctx, tx, resource.ID, date)
	if err != nil {
		return nil, err
	}
	if err := CheckOverlap(date, blocks, occupied); err != nil {
		return nil, err
	}
	existing, err := s.reservations.UserActiveBlocksTx(ctx, tx, userID, resource.ID, date)
	if err != nil {
		return nil, err
	}
	if err := CheckCapacity(date, blocks, existing); err != nil {
		return nil, err
	}
	if resource.Kind == model.KindHeadset {
		held, err := s.reservations.UserHoldsKindOnDateTx(ctx, tx, userID, date, model.KindHeadset, resource.ID)
		if err != nil {
			return nil, err
		}
		if held {
			return nil, &ConflictError{Date: date.Format(dateLayout), Reason: ReasonKindLimit}
		}
	}

	rec := &model.Reservation{
		UserID:            userID,
		ResourceID:        resource.ID,
		Date:              date,
		BlockIDs:          blocks,
		Status:            model.StatusPending,
		RecurrenceGroupID: groupID,
	}
	if err := s.reservations.CreateTx(ctx, tx, rec); err != nil {
		if errors.Is(err, repository.ErrBlockTaken) {
			return nil, &ConflictError{Date: date.Format(dateLayout), Reason: ReasonOverlap}
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return rec, nil
}

// Decide applies the one-time approver decision to a PENDING
// reservation.  processedAt and processedBy are stamped exactly once,
// on this edge.  Deciding one member of a recurrence group never
// touches its siblings.
func (s *Service) Decide(ctx context.Context, id uint64, approve bool, approverID uint64) (*model.Reservation, error) {
	to := model.StatusRejected
	eventType := queue.EventRejected
	if approve {
		to = model.StatusApproved
		eventType = queue.EventApproved
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rec, err := s.reservations.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(rec.Status, to); err != nil {
		return nil, err
	}
	processedAt := s.now().UTC()
	if err := s.reservations.UpdateStatusTx(ctx, tx, id, to, &processedAt, &approverID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	committed = true

	rec.Status = to
	rec.ProcessedAt = &processedAt
	rec.ProcessedBy = &approverID
	s.publishByID(ctx, eventType, rec)
	s.invalidate(ctx, rec.ResourceID, rec.Date)
	return rec, nil
}

// GroupDecision reports the outcome of a bulk decision over one
// recurrence group.
type GroupDecision struct {
	Decided []model.Reservation `json:"decided"`
	Skipped []uint64            `json:"skipped_ids"`
}

// DecideGroup applies the same decision to every still-PENDING member
// of a recurrence group.  Each member goes through the single-
// reservation state machine on its own; members already decided or
// cancelled are reported as skipped, never failed.
func (s *Service) DecideGroup(ctx context.Context, groupID string, approve bool, approverID uint64) (*GroupDecision, error) {
	members, err := s.reservations.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	out := &GroupDecision{Decided: make([]model.Reservation, 0, len(members)), Skipped: make([]uint64, 0)}
	for i := range members {
		if members[i].Status != model.StatusPending {
			out.Skipped = append(out.Skipped, members[i].ID)
			continue
		}
		rec, err := s.Decide(ctx, members[i].ID, approve, approverID)
		if err != nil {
			return nil, err
		}
		out.Decided = append(out.Decided, *rec)
	}
	return out, nil
}

// Cancel moves a reservation to CANCELLED.  Owners may withdraw their
// own PENDING reservations and cancel APPROVED ones; admins may cancel
// anyone's.  Cancelling a reservation that is already terminal, whether
// CANCELLED or REJECTED, is idempotent and raises no second event.
func (s *Service) Cancel(ctx context.Context, id, requesterID uint64, admin bool) (*model.Reservation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rec, err := s.reservations.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !admin && rec.UserID != requesterID {
		return nil, ErrNotOwner
	}
	if rec.Status.Terminal() {
		return rec, nil
	}
	if err := CheckTransition(rec.Status, model.StatusCancelled); err != nil {
		return nil, err
	}
	if err := s.reservations.UpdateStatusTx(ctx, tx, id, model.StatusCancelled, nil, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	committed = true

	rec.Status = model.StatusCancelled
	s.publishByID(ctx, queue.EventCancelled, rec)
	s.invalidate(ctx, rec.ResourceID, rec.Date)
	return rec, nil
}

// Availability returns, per date in [from, to], the occupied block keys
// of one resource.  Days with no active reservations map to an empty
// list.  Cached days are served from Redis; the rest come from one
// range query and are cached on the way out.
func (s *Service) Availability(ctx context.Context, resourceID uint64, from, to time.Time) (map[string][]string, error) {
	from, to = midnight(from), midnight(to)
	if to.Before(from) {
		return nil, &ValidationError{Field: "date_range", Reason: "end date before start date"}
	}
	if int(to.Sub(from).Hours()/24) >= maxAvailabilityDays {
		return nil, &ValidationError{Field: "date_range", Reason: fmt.Sprintf("range longer than %d days", maxAvailabilityDays)}
	}
	if _, err := s.resources.GetByID(ctx, resourceID); err != nil {
		return nil, err
	}

	result := make(map[string][]string)
	missing := make([]string, 0)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		if blocks, ok := s.cacheGet(ctx, resourceID, key); ok {
			result[key] = blocks
		} else {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return result, nil
	}

	occupied, err := s.reservations.OccupiedBlocks(ctx, resourceID, from, to)
	if err != nil {
		return nil, err
	}
	for _, key := range missing {
		blocks := occupied[key]
		if blocks == nil {
			blocks = []string{}
		}
		result[key] = blocks
		s.cacheSet(ctx, resourceID, key, blocks)
	}
	return result, nil
}

// AvailabilityAll returns the per-date occupied blocks of every
// resource visible to the user type.
func (s *Service) AvailabilityAll(ctx context.Context, userType access.UserType, from, to time.Time) (map[uint64]map[string][]string, error) {
	visible, err := s.ListResources(ctx, userType)
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]map[string][]string, len(visible))
	for i := range visible {
		avail, err := s.Availability(ctx, visible[i].ID, from, to)
		if err != nil {
			return nil, err
		}
		out[visible[i].ID] = avail
	}
	return out, nil
}

// ListResources returns the resources the user type may see, with
// ineligible SPECIAL resources and unavailable resources omitted
// entirely.
func (s *Service) ListResources(ctx context.Context, ut access.UserType) ([]model.Resource, error) {
	userType, err := s.resolveUserType(ctx, ut)
	if err != nil {
		return nil, err
	}
	all, err := s.resources.List(ctx)
	if err != nil {
		return nil, err
	}
	available := make([]model.Resource, 0, len(all))
	for i := range all {
		if all[i].IsAvailable {
			available = append(available, all[i])
		}
	}
	return access.FilterVisible(available, userType), nil
}

// GetReservation loads one reservation; non-admin requesters may only
// read their own.
func (s *Service) GetReservation(ctx context.Context, id, requesterID uint64, admin bool) (*model.Reservation, error) {
	rec, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin && rec.UserID != requesterID {
		return nil, ErrNotOwner
	}
	return rec, nil
}

// ListUserReservations returns a user's reservations, newest first.
func (s *Service) ListUserReservations(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return s.reservations.ListByUser(ctx, userID)
}

// ListPending returns the approver work queue, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]model.Reservation, error) {
	return s.reservations.ListPending(ctx)
}

// ListGroup returns all members of a recurrence group.
func (s *Service) ListGroup(ctx context.Context, groupID string) ([]model.Reservation, error) {
	return s.reservations.ListByGroup(ctx, groupID)
}

// resolveUserType collapses the request's user type to the string used
// for access checks.  A claimed known type must exist in the current
// catalog snapshot; free-text "other" entries pass through as opaque
// strings.
func (s *Service) resolveUserType(ctx context.Context, ut access.UserType) (string, error) {
	if ut.Known != "" {
		snap, err := s.userTypes.LoadSnapshot(ctx)
		if err != nil {
			return "", err
		}
		if !snap.IsKnown(ut.Known) {
			return "", &ValidationError{Field: "user_type", Reason: fmt.Sprintf("unknown user type %q", ut.Known)}
		}
	}
	resolved := ut.Resolve()
	if resolved == "" {
		return "", &ValidationError{Field: "user_type", Reason: "user type is required"}
	}
	return resolved, nil
}

func (s *Service) publish(ctx context.Context, eventType string, rec *model.Reservation, resource *model.Resource) {
	if s.publisher == nil {
		return
	}
	groupID := ""
	if rec.RecurrenceGroupID != nil {
		groupID = *rec.RecurrenceGroupID
	}
	// Publish failures are deliberately not propagated; the reservation
	// is already committed and the broker will be retried by operators.
	_ = s.publisher.Publish(ctx, queue.ReservationEvent{
		EventID:        uuid.NewString(),
		Type:           eventType,
		ReservationID:  rec.ID,
		UserID:         rec.UserID,
		ResourceID:     rec.ResourceID,
		ResourceNumber: resource.Number,
		Date:           rec.Date.Format(dateLayout),
		TimeBlocks:     rec.BlockIDs,
		Status:         string(rec.Status),
		GroupID:        groupID,
		OccurredAt:     s.now().UTC().Format(time.RFC3339),
	})
}

// publishByID enriches the event with the resource number before
// publishing.  A lookup failure downgrades to an event without the
// number rather than suppressing the event.
func (s *Service) publishByID(ctx context.Context, eventType string, rec *model.Reservation) {
	if s.publisher == nil {
		return
	}
	resource := &model.Resource{ID: rec.ResourceID}
	if r, err := s.resources.GetByID(ctx, rec.ResourceID); err == nil {
		resource = r
	}
	s.publish(ctx, eventType, rec, resource)
}

func (s *Service) cacheGet(ctx context.Context, resourceID uint64, date string) ([]string, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(ctx, resourceID, date)
}

func (s *Service) cacheSet(ctx context.Context, resourceID uint64, date string, blocks []string) {
	if s.cache == nil {
		return
	}
	s.cache.Set(ctx, resourceID, date, blocks)
}

func (s *Service) invalidate(ctx context.Context, resourceID uint64, dates ...time.Time) {
	if s.cache == nil || len(dates) == 0 {
		return
	}
	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = d.Format(dateLayout)
	}
	s.cache.Invalidate(ctx, resourceID, keys...)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
