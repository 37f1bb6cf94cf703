// Package access decides which resources a user type may see and
// claim.  The resolver is deliberately stateless: the set of
// admin-defined user types is injected per request as a versioned
// Snapshot rather than read from mutable engine state.
package access

import (
	"strings"

	"github.com/campuslab/lab-reservation/internal/model"
)

// Snapshot is a point-in-time view of the admin-defined user types.
// The engine never mutates it; the caller loads a fresh snapshot per
// request.
type Snapshot struct {
	Version    uint64
	KnownTypes []string
}

// IsKnown reports whether the given type name is part of the snapshot.
func (s Snapshot) IsKnown(name string) bool {
	for _, t := range s.KnownTypes {
		if t == name {
			return true
		}
	}
	return false
}

// UserType is the tagged variant carried by a reservation request:
// either one of the admin-defined types, or a free-text "other" entry.
// Free text is opaque payload, not a control-flow branch; the engine
// only ever consumes the resolved string.
type UserType struct {
	Known string
	Other string
}

// Resolve collapses the variant to the string used for access checks.
func (t UserType) Resolve() string {
	if t.Known != "" {
		return t.Known
	}
	return strings.TrimSpace(t.Other)
}

// CanAccess decides visibility and eligibility of a resource for a user
// type.  NORMAL resources are open to everyone.  SPECIAL resources
// require the user type to be listed; an empty allow-list means nobody
// at all may access the resource (a deliberate lockout, distinct from
// NORMAL).
func CanAccess(r *model.Resource, userType string) bool {
	if r == nil {
		return false
	}
	if r.AccessLevel != model.AccessSpecial {
		return true
	}
	for _, allowed := range r.AllowedUserTypes {
		if allowed == userType {
			return true
		}
	}
	return false
}

// FilterVisible returns the subset of resources the user type may see.
// Ineligible SPECIAL resources are omitted entirely so that their
// details never leak to the requester.
func FilterVisible(resources []model.Resource, userType string) []model.Resource {
	out := make([]model.Resource, 0, len(resources))
	for i := range resources {
		if CanAccess(&resources[i], userType) {
			out = append(out, resources[i])
		}
	}
	return out
}
