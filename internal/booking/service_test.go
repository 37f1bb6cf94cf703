package booking

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campuslab/lab-reservation/internal/access"
	"github.com/campuslab/lab-reservation/internal/model"
	"github.com/campuslab/lab-reservation/internal/queue"
	"github.com/campuslab/lab-reservation/internal/recurrence"
	"github.com/campuslab/lab-reservation/internal/repository"
)

type mockResources struct{ mock.Mock }

func (m *mockResources) GetByID(ctx context.Context, id uint64) (*model.Resource, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*model.Resource), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockResources) List(ctx context.Context) ([]model.Resource, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.([]model.Resource), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockReservations struct{ mock.Mock }

func (m *mockReservations) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	args := m.Called(ctx, tx, res)
	if args.Error(0) == nil {
		res.ID = 99
		res.CreatedAt = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	}
	return args.Error(0)
}

func (m *mockReservations) ActiveBlocksForUpdateTx(ctx context.Context, tx *sql.Tx, resourceID uint64, date time.Time) ([]string, error) {
	args := m.Called(ctx, tx, resourceID, date)
	if r := args.Get(0); r != nil {
		return r.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReservations) UserActiveBlocksTx(ctx context.Context, tx *sql.Tx, userID, resourceID uint64, date time.Time) ([]string, error) {
	args := m.Called(ctx, tx, userID, resourceID, date)
	if r := args.Get(0); r != nil {
		return r.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReservations) UserHoldsKindOnDateTx(ctx context.Context, tx *sql.Tx, userID uint64, date time.Time, kind model.ResourceKind, excludeResourceID uint64) (bool, error) {
	args := m.Called(ctx, tx, userID, date, kind, excludeResourceID)
	return args.Bool(0), args.Error(1)
}

func (m *mockReservations) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	args := m.Called(ctx, tx, id)
	if r := args.Get(0); r != nil {
		return r.(*model.Reservation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReservations) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.ReservationStatus, processedAt *time.Time, processedBy *uint64) error {
	args := m.Called(ctx, tx, id, status, processedAt, processedBy)
	return args.Error(0)
}

func (m *mockReservations) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*model.Reservation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReservations) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	args := m.Called(ctx, userID)
	if r := args.Get(0); r != nil {
		return r.([]model.Reservation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReservations) ListByGroup(ctx context.Context, groupID string) ([]model.Reservation, error) {
	args := m.Called(ctx, groupID)
	if r := args.Get(0); r != nil {
		return r.([]model.Reservation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReservations) ListPending(ctx context.Context) ([]model.Reservation, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.([]model.Reservation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReservations) OccupiedBlocks(ctx context.Context, resourceID uint64, from, to time.Time) (map[string][]string, error) {
	args := m.Called(ctx, resourceID, from, to)
	if r := args.Get(0); r != nil {
		return r.(map[string][]string), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSnapshots struct{ mock.Mock }

func (m *mockSnapshots) LoadSnapshot(ctx context.Context) (*access.Snapshot, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.(*access.Snapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, event queue.ReservationEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type mockCache struct{ mock.Mock }

func (m *mockCache) Get(ctx context.Context, resourceID uint64, date string) ([]string, bool) {
	args := m.Called(ctx, resourceID, date)
	if r := args.Get(0); r != nil {
		return r.([]string), args.Bool(1)
	}
	return nil, args.Bool(1)
}

func (m *mockCache) Set(ctx context.Context, resourceID uint64, date string, blocks []string) {
	m.Called(ctx, resourceID, date, blocks)
}

func (m *mockCache) Invalidate(ctx context.Context, resourceID uint64, dates ...string) {
	m.Called(ctx, resourceID, dates)
}

type serviceFixture struct {
	svc          *Service
	db           sqlmock.Sqlmock
	resources    *mockResources
	reservations *mockReservations
	snapshots    *mockSnapshots
	publisher    *mockPublisher
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &serviceFixture{
		db:           dbMock,
		resources:    new(mockResources),
		reservations: new(mockReservations),
		snapshots:    new(mockSnapshots),
		publisher:    new(mockPublisher),
	}
	f.svc = NewService(db, f.resources, f.reservations, f.snapshots, f.publisher, nil)
	f.svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func computerResource() *model.Resource {
	return &model.Resource{ID: 10, Number: 110, Kind: model.KindComputer, AccessLevel: model.AccessNormal, IsAvailable: true}
}

func TestSubmitPartialBatchSuccess(t *testing.T) {
	f := newFixture(t)
	resource := computerResource()
	f.resources.On("GetByID", mock.Anything, uint64(10)).Return(resource, nil)

	free := date("2025-03-10")
	busy := date("2025-03-11")

	// First date is clear, second already has B1 claimed.
	f.db.ExpectBegin()
	f.db.ExpectCommit()
	f.reservations.On("ActiveBlocksForUpdateTx", mock.Anything, mock.Anything, uint64(10), free).
		Return([]string{}, nil)
	f.reservations.On("UserActiveBlocksTx", mock.Anything, mock.Anything, uint64(7), uint64(10), free).
		Return([]string{}, nil)
	f.reservations.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	f.db.ExpectBegin()
	f.db.ExpectRollback()
	f.reservations.On("ActiveBlocksForUpdateTx", mock.Anything, mock.Anything, uint64(10), busy).
		Return([]string{"B1"}, nil)

	f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(ev queue.ReservationEvent) bool {
		return ev.Type == queue.EventCreated && ev.Date == "2025-03-10" && ev.ResourceNumber == 110
	})).Return(nil)

	result, err := f.svc.Submit(context.Background(), SubmitInput{
		UserID:     7,
		UserType:   access.UserType{Other: "guest"},
		ResourceID: 10,
		BlockKeys:  []string{"B1"},
		DateSpec:   recurrence.DateSpec{Dates: []time.Time{free, busy}},
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Equal(t, "2025-03-10", result.Created[0].Date.Format("2006-01-02"))
	assert.Equal(t, model.StatusPending, result.Created[0].Status)
	require.NotNil(t, result.Created[0].RecurrenceGroupID)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "2025-03-11", result.Rejected[0].Date)
	assert.Equal(t, ReasonOverlap, result.Rejected[0].Reason)
	require.NoError(t, f.db.ExpectationsWereMet())
	f.publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestSubmitPastDateRejected(t *testing.T) {
	f := newFixture(t)
	f.resources.On("GetByID", mock.Anything, uint64(10)).Return(computerResource(), nil)

	result, err := f.svc.Submit(context.Background(), SubmitInput{
		UserID:     7,
		UserType:   access.UserType{Other: "guest"},
		ResourceID: 10,
		BlockKeys:  []string{"B1"},
		DateSpec:   recurrence.DateSpec{Dates: []time.Time{date("2025-02-20")}},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, ReasonPastDate, result.Rejected[0].Reason)
}

func TestSubmitSingleDateHasNoGroup(t *testing.T) {
	f := newFixture(t)
	f.resources.On("GetByID", mock.Anything, uint64(10)).Return(computerResource(), nil)
	f.db.ExpectBegin()
	f.db.ExpectCommit()
	f.reservations.On("ActiveBlocksForUpdateTx", mock.Anything, mock.Anything, uint64(10), mock.Anything).
		Return([]string{}, nil)
	f.reservations.On("UserActiveBlocksTx", mock.Anything, mock.Anything, uint64(7), uint64(10), mock.Anything).
		Return([]string{}, nil)
	f.reservations.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	result, err := f.svc.Submit(context.Background(), SubmitInput{
		UserID:     7,
		UserType:   access.UserType{Other: "guest"},
		ResourceID: 10,
		BlockKeys:  []string{"B2"},
		DateSpec:   recurrence.DateSpec{Dates: []time.Time{date("2025-03-10")}},
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Nil(t, result.Created[0].RecurrenceGroupID)
}

func TestSubmitAccessDeniedOnLockedOutResource(t *testing.T) {
	f := newFixture(t)
	locked := computerResource()
	locked.AccessLevel = model.AccessSpecial
	locked.AllowedUserTypes = []string{}
	f.resources.On("GetByID", mock.Anything, uint64(10)).Return(locked, nil)

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		UserID:     7,
		UserType:   access.UserType{Other: "guest"},
		ResourceID: 10,
		BlockKeys:  []string{"B1"},
		DateSpec:   recurrence.DateSpec{Dates: []time.Time{date("2025-03-10")}},
	})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestSubmitUnknownClaimedType(t *testing.T) {
	f := newFixture(t)
	f.snapshots.On("LoadSnapshot", mock.Anything).
		Return(&access.Snapshot{Version: 3, KnownTypes: []string{"student", "staff"}}, nil)

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		UserID:     7,
		UserType:   access.UserType{Known: "alumnus"},
		ResourceID: 10,
		BlockKeys:  []string{"B1"},
		DateSpec:   recurrence.DateSpec{Dates: []time.Time{date("2025-03-10")}},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "user_type", verr.Field)
}

func TestSubmitUnavailableResource(t *testing.T) {
	f := newFixture(t)
	down := computerResource()
	down.IsAvailable = false
	f.resources.On("GetByID", mock.Anything, uint64(10)).Return(down, nil)

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		UserID:     7,
		UserType:   access.UserType{Other: "guest"},
		ResourceID: 10,
		BlockKeys:  []string{"B1"},
		DateSpec:   recurrence.DateSpec{Dates: []time.Time{date("2025-03-10")}},
	})
	assert.ErrorIs(t, err, ErrResourceUnavailable)
}

func TestSubmitRaceMapsToOverlapConflict(t *testing.T) {
	f := newFixture(t)
	f.resources.On("GetByID", mock.Anything, uint64(10)).Return(computerResource(), nil)
	f.db.ExpectBegin()
	f.db.ExpectRollback()
	f.reservations.On("ActiveBlocksForUpdateTx", mock.Anything, mock.Anything, uint64(10), mock.Anything).
		Return([]string{}, nil)
	f.reservations.On("UserActiveBlocksTx", mock.Anything, mock.Anything, uint64(7), uint64(10), mock.Anything).
		Return([]string{}, nil)
	// A concurrent insert slipped between the lock scan and our insert;
	// the unique key reports it as a duplicate.
	f.reservations.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
		Return(repository.ErrBlockTaken)

	result, err := f.svc.Submit(context.Background(), SubmitInput{
		UserID:     7,
		UserType:   access.UserType{Other: "guest"},
		ResourceID: 10,
		BlockKeys:  []string{"B1"},
		DateSpec:   recurrence.DateSpec{Dates: []time.Time{date("2025-03-10")}},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, ReasonOverlap, result.Rejected[0].Reason)
	require.NoError(t, f.db.ExpectationsWereMet())
}

func TestSubmitHeadsetOnePerUserPerDate(t *testing.T) {
	f := newFixture(t)
	headset := &model.Resource{ID: 20, Number: 201, Kind: model.KindHeadset, AccessLevel: model.AccessNormal, IsAvailable: true}
	f.resources.On("GetByID", mock.Anything, uint64(20)).Return(headset, nil)
	f.db.ExpectBegin()
	f.db.ExpectRollback()
	f.reservations.On("ActiveBlocksForUpdateTx", mock.Anything, mock.Anything, uint64(20), mock.Anything).
		Return([]string{}, nil)
	f.reservations.On("UserActiveBlocksTx", mock.Anything, mock.Anything, uint64(7), uint64(20), mock.Anything).
		Return([]string{}, nil)
	f.reservations.On("UserHoldsKindOnDateTx", mock.Anything, mock.Anything, uint64(7), mock.Anything, model.KindHeadset, uint64(20)).
		Return(true, nil)

	result, err := f.svc.Submit(context.Background(), SubmitInput{
		UserID:     7,
		UserType:   access.UserType{Other: "guest"},
		ResourceID: 20,
		BlockKeys:  []string{"B1"},
		DateSpec:   recurrence.DateSpec{Dates: []time.Time{date("2025-03-10")}},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, ReasonKindLimit, result.Rejected[0].Reason)
}

func TestDecideApprovesAndStamps(t *testing.T) {
	f := newFixture(t)
	pending := &model.Reservation{ID: 5, UserID: 7, ResourceID: 10, Date: date("2025-03-10"),
		BlockIDs: []string{"B1"}, Status: model.StatusPending}
	f.db.ExpectBegin()
	f.db.ExpectCommit()
	f.reservations.On("GetForUpdateTx", mock.Anything, mock.Anything, uint64(5)).Return(pending, nil)
	f.reservations.On("UpdateStatusTx", mock.Anything, mock.Anything, uint64(5), model.StatusApproved,
		mock.AnythingOfType("*time.Time"), mock.AnythingOfType("*uint64")).Return(nil)
	f.resources.On("GetByID", mock.Anything, uint64(10)).Return(computerResource(), nil)
	f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(ev queue.ReservationEvent) bool {
		return ev.Type == queue.EventApproved && ev.ReservationID == 5
	})).Return(nil)

	rec, err := f.svc.Decide(context.Background(), 5, true, 42)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, rec.Status)
	require.NotNil(t, rec.ProcessedAt)
	require.NotNil(t, rec.ProcessedBy)
	assert.Equal(t, uint64(42), *rec.ProcessedBy)
	require.NoError(t, f.db.ExpectationsWereMet())
}

func TestDecideRejectsSecondDecision(t *testing.T) {
	f := newFixture(t)
	approved := &model.Reservation{ID: 5, Status: model.StatusApproved}
	f.db.ExpectBegin()
	f.db.ExpectRollback()
	f.reservations.On("GetForUpdateTx", mock.Anything, mock.Anything, uint64(5)).Return(approved, nil)

	_, err := f.svc.Decide(context.Background(), 5, false, 42)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	f.reservations.AssertNotCalled(t, "UpdateStatusTx",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	require.NoError(t, f.db.ExpectationsWereMet())
}

func TestDecideGroupActsPerMember(t *testing.T) {
	f := newFixture(t)
	group := "6f1c8a1a-0000-0000-0000-000000000000"
	members := []model.Reservation{
		{ID: 1, UserID: 7, ResourceID: 10, Date: date("2025-03-10"), Status: model.StatusPending},
		{ID: 2, UserID: 7, ResourceID: 10, Date: date("2025-03-11"), Status: model.StatusCancelled},
		{ID: 3, UserID: 7, ResourceID: 10, Date: date("2025-03-12"), Status: model.StatusPending},
	}
	f.reservations.On("ListByGroup", mock.Anything, group).Return(members, nil)
	for _, id := range []uint64{1, 3} {
		id := id
		f.db.ExpectBegin()
		f.db.ExpectCommit()
		member := members[id-1]
		f.reservations.On("GetForUpdateTx", mock.Anything, mock.Anything, id).Return(&member, nil)
		f.reservations.On("UpdateStatusTx", mock.Anything, mock.Anything, id, model.StatusApproved,
			mock.AnythingOfType("*time.Time"), mock.AnythingOfType("*uint64")).Return(nil)
	}
	f.resources.On("GetByID", mock.Anything, uint64(10)).Return(computerResource(), nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	out, err := f.svc.DecideGroup(context.Background(), group, true, 42)
	require.NoError(t, err)
	assert.Len(t, out.Decided, 2)
	assert.Equal(t, []uint64{2}, out.Skipped)
	require.NoError(t, f.db.ExpectationsWereMet())
}

func TestCancelIdempotent(t *testing.T) {
	f := newFixture(t)
	cancelled := &model.Reservation{ID: 5, UserID: 7, ResourceID: 10, Status: model.StatusCancelled}
	f.db.ExpectBegin()
	f.db.ExpectRollback()
	f.reservations.On("GetForUpdateTx", mock.Anything, mock.Anything, uint64(5)).Return(cancelled, nil)

	rec, err := f.svc.Cancel(context.Background(), 5, 7, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, rec.Status)
	// No second transition, no second event.
	f.reservations.AssertNotCalled(t, "UpdateStatusTx",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	require.NoError(t, f.db.ExpectationsWereMet())
}

func TestCancelRejectedIsNoOp(t *testing.T) {
	f := newFixture(t)
	rejected := &model.Reservation{ID: 5, UserID: 7, ResourceID: 10, Status: model.StatusRejected}
	f.db.ExpectBegin()
	f.db.ExpectRollback()
	f.reservations.On("GetForUpdateTx", mock.Anything, mock.Anything, uint64(5)).Return(rejected, nil)

	rec, err := f.svc.Cancel(context.Background(), 5, 7, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rec.Status)
	f.reservations.AssertNotCalled(t, "UpdateStatusTx",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	require.NoError(t, f.db.ExpectationsWereMet())
}

func TestCancelRequiresOwnership(t *testing.T) {
	f := newFixture(t)
	other := &model.Reservation{ID: 5, UserID: 8, Status: model.StatusApproved}
	f.db.ExpectBegin()
	f.db.ExpectRollback()
	f.reservations.On("GetForUpdateTx", mock.Anything, mock.Anything, uint64(5)).Return(other, nil)

	_, err := f.svc.Cancel(context.Background(), 5, 7, false)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestAvailabilityMixesCacheAndDatabase(t *testing.T) {
	f := newFixture(t)
	cache := new(mockCache)
	f.svc.cache = cache
	f.resources.On("GetByID", mock.Anything, uint64(10)).Return(computerResource(), nil)

	from, to := date("2025-03-10"), date("2025-03-11")
	cache.On("Get", mock.Anything, uint64(10), "2025-03-10").Return([]string{"B1"}, true)
	cache.On("Get", mock.Anything, uint64(10), "2025-03-11").Return(nil, false)
	f.reservations.On("OccupiedBlocks", mock.Anything, uint64(10), from, to).
		Return(map[string][]string{"2025-03-11": {"B2", "B3"}}, nil)
	cache.On("Set", mock.Anything, uint64(10), "2025-03-11", []string{"B2", "B3"}).Return()

	got, err := f.svc.Availability(context.Background(), 10, from, to)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"2025-03-10": {"B1"},
		"2025-03-11": {"B2", "B3"},
	}, got)
	cache.AssertExpectations(t)
}

func TestAvailabilityRangeValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Availability(context.Background(), 10, date("2025-03-11"), date("2025-03-10"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = f.svc.Availability(context.Background(), 10, date("2025-01-01"), date("2025-12-31"))
	require.ErrorAs(t, err, &verr)
}

func TestListResourcesFiltersAccessAndAvailability(t *testing.T) {
	f := newFixture(t)
	f.snapshots.On("LoadSnapshot", mock.Anything).
		Return(&access.Snapshot{Version: 1, KnownTypes: []string{"student", "staff"}}, nil)
	f.resources.On("List", mock.Anything).Return([]model.Resource{
		{ID: 1, Number: 101, AccessLevel: model.AccessNormal, IsAvailable: true},
		{ID: 2, Number: 102, AccessLevel: model.AccessNormal, IsAvailable: false},
		{ID: 3, Number: 103, AccessLevel: model.AccessSpecial, AllowedUserTypes: []string{"staff"}, IsAvailable: true},
		{ID: 4, Number: 104, AccessLevel: model.AccessSpecial, AllowedUserTypes: []string{"student"}, IsAvailable: true},
	}, nil)

	visible, err := f.svc.ListResources(context.Background(), access.UserType{Known: "student"})
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, uint64(1), visible[0].ID)
	assert.Equal(t, uint64(4), visible[1].ID)
}
