package model

import "time"

// ReservationStatus is the lifecycle state of a single reservation
// record.  PENDING records await an approver decision; APPROVED and
// REJECTED are set exactly once; CANCELLED is terminal and covers both
// owner withdrawal of a pending record and cancellation of an approved
// one.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "PENDING"
	StatusApproved  ReservationStatus = "APPROVED"
	StatusRejected  ReservationStatus = "REJECTED"
	StatusCancelled ReservationStatus = "CANCELLED"
)

// Active reports whether the status occupies time blocks.  Only
// PENDING and APPROVED reservations block other requests for the same
// resource, date and time block.
func (s ReservationStatus) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// Terminal reports whether no further transition is possible.
func (s ReservationStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// Reservation is one persisted reservation record: one resource, one
// calendar date, one to three time blocks.  A recurring submission
// materializes one Reservation per expanded date, linked through
// RecurrenceGroupID so the cohort can be decided together while each
// date remains individually revocable.
//
// Fields:
//  ID                – primary key identifier.
//  UserID            – requester.
//  ResourceID        – reserved resource.
//  Date              – calendar date (UTC midnight).
//  BlockIDs          – catalog keys of the reserved time blocks.
//  Status            – lifecycle state.
//  RecurrenceGroupID – uuid grouping records from one recurring
//                      submission; nil for single-date submissions.
//  ProcessedAt/By    – set exactly once on the PENDING->APPROVED or
//                      PENDING->REJECTED edge.
type Reservation struct {
	ID                uint64            // reservations.id
	UserID            uint64            // reservations.user_id
	ResourceID        uint64            // reservations.resource_id
	Date              time.Time         // reservations.reservation_date
	BlockIDs          []string          // reservation_blocks.time_block_id
	Status            ReservationStatus // reservations.status
	RecurrenceGroupID *string           // reservations.recurrence_group_id (nullable)
	CreatedAt         time.Time         // reservations.created_at
	ProcessedAt       *time.Time        // reservations.processed_at (nullable)
	ProcessedBy       *uint64           // reservations.processed_by (nullable)
}
