package booking

import (
	"errors"
	"fmt"

	"github.com/campuslab/lab-reservation/internal/model"
)

// Sentinel errors surfaced to the handler layer.
var (
	ErrAccessDenied        = errors.New("booking: user type may not access this resource")
	ErrResourceUnavailable = errors.New("booking: resource is not available for reservations")
	ErrNotOwner            = errors.New("booking: reservation belongs to another user")
)

// Conflict reasons reported per rejected date of a submission.
const (
	ReasonOverlap   = "BLOCK_OVERLAP"
	ReasonCapacity  = "DAILY_CAPACITY_EXCEEDED"
	ReasonKindLimit = "RESOURCE_KIND_LIMIT"
)

// ConflictError rejects one candidate date of a submission.  A
// multi-date submission collects these per date instead of failing as a
// whole.
type ConflictError struct {
	Date   string // YYYY-MM-DD
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("booking: conflict on %s (%s)", e.Date, e.Reason)
}

// ValidationError rejects a malformed request before any date is
// considered.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking: invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError rejects a lifecycle move outside the allowed
// state machine edges.
type InvalidTransitionError struct {
	From, To model.ReservationStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("booking: cannot transition reservation from %s to %s", e.From, e.To)
}
