package model

import "time"

// AccessLevel controls who may see and reserve a resource.  NORMAL
// resources are open to every user type; SPECIAL resources are limited
// to an explicit allow-list of user types.
type AccessLevel string

const (
	AccessNormal  AccessLevel = "NORMAL"
	AccessSpecial AccessLevel = "SPECIAL"
)

// ResourceKind distinguishes the two reservable subsystems of the lab:
// fixed computers and loanable VR/AR headsets.  Headsets additionally
// enforce a one-resource-per-user-per-date rule at validation time.
type ResourceKind string

const (
	KindComputer ResourceKind = "COMPUTER"
	KindHeadset  ResourceKind = "HEADSET"
)

// GridPosition is a cell in the 2-D lab layout.  Positions are zero
// based.  A resource that has never been laid out carries a nil
// position rather than a sentinel cell, so "intentionally at (0,0)"
// and "unplaced" are distinct states.
type GridPosition struct {
	Row int `json:"row"` // resources.grid_row
	Col int `json:"col"` // resources.grid_col
}

// Resource is a reservable physical unit (lab computer or headset).
// It corresponds to a row in the `resources` table.
//
// Fields:
//  ID               – primary key identifier.
//  Number           – unique, stable resource number shown to users.
//  Kind             – COMPUTER or HEADSET.
//  AccessLevel      – NORMAL or SPECIAL.
//  AllowedUserTypes – user types permitted when AccessLevel is SPECIAL.
//                     An empty list on a SPECIAL resource means nobody
//                     may access it (deliberate lockout).
//  Position         – grid cell, nil while unplaced.
//  IsAvailable      – maintenance flag; unavailable resources are hidden
//                     from requesters and rejected at submission.
type Resource struct {
	ID               uint64        // resources.id
	Number           uint32        // resources.number
	Kind             ResourceKind  // resources.kind
	AccessLevel      AccessLevel   // resources.access_level
	AllowedUserTypes []string      // resources.allowed_user_types
	Position         *GridPosition // resources.grid_row / grid_col (both nullable)
	IsAvailable      bool          // resources.is_available
	CreatedAt        time.Time     // resources.created_at
	UpdatedAt        time.Time     // resources.updated_at
}
