package booking

import "github.com/campuslab/lab-reservation/internal/model"

// allowedTransitions is the full reservation state machine.  A pending
// reservation is decided exactly once; an approved one may be
// cancelled; a pending one may be withdrawn by its owner, which lands
// in the same CANCELLED terminal state.  REJECTED and CANCELLED are
// terminal.
var allowedTransitions = map[model.ReservationStatus][]model.ReservationStatus{
	model.StatusPending:  {model.StatusApproved, model.StatusRejected, model.StatusCancelled},
	model.StatusApproved: {model.StatusCancelled},
}

// CanTransition reports whether the state machine permits the move.
func CanTransition(from, to model.ReservationStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an InvalidTransitionError when the move is
// not permitted.
func CheckTransition(from, to model.ReservationStatus) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// IsDecision reports whether the transition is the one-time approver
// decision that stamps processedAt and processedBy.
func IsDecision(from, to model.ReservationStatus) bool {
	return from == model.StatusPending &&
		(to == model.StatusApproved || to == model.StatusRejected)
}
