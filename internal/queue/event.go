// Package queue defines the reservation event payloads exchanged over
// the message broker, the publisher, and the background consumer.
package queue

// Event types, one per reservation state transition.  Exactly one event
// is published per transition; downstream notification and audit
// subscribers key off Type.
const (
	EventCreated   = "reservation.created"
	EventApproved  = "reservation.approved"
	EventRejected  = "reservation.rejected"
	EventCancelled = "reservation.cancelled"
)

// ReservationEvent carries enough information for downstream consumers
// to notify users or append audit rows without querying the primary
// database.
type ReservationEvent struct {
	EventID        string   `json:"event_id"` // unique per transition
	Type           string   `json:"type"`
	ReservationID  uint64   `json:"reservation_id"`
	UserID         uint64   `json:"user_id"`
	ResourceID     uint64   `json:"resource_id"`
	ResourceNumber uint32   `json:"resource_number"`
	Date           string   `json:"date"` // YYYY-MM-DD
	TimeBlocks     []string `json:"time_blocks"`
	Status         string   `json:"status"`
	GroupID        string   `json:"recurrence_group_id,omitempty"`
	OccurredAt     string   `json:"occurred_at"` // RFC 3339 UTC
}
