// Package catalog defines the review lifecycle of an imported listing.
// Every status change in the system goes through CanTransition; the
// store additionally enforces the approved→migrated gate with a guarded
// UPDATE so two promoters cannot both win.
package catalog

import (
	"errors"
	"fmt"
)

// Entry statuses. An entry starts pending, passes through human review,
// and ends migrated. Rejected and archived are side exits; archived
// entries stay in the database but leave the active queue.
const (
	StatusPending   = "pending"
	StatusReviewing = "reviewing"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusArchived  = "archived"
	StatusMigrated  = "migrated"
)

var (
	// ErrInvalidTransition reports an illegal status change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotApproved is the state-conflict error returned when promotion
	// is attempted on an entry that is not exactly approved.
	ErrNotApproved = errors.New("entry is not approved for migration")
	// ErrReasonRequired is returned when a rejection carries no reason.
	ErrReasonRequired = errors.New("rejection requires a reason")
)

var transitions = map[string][]string{
	StatusPending:   {StatusReviewing, StatusArchived},
	StatusReviewing: {StatusApproved, StatusRejected, StatusArchived},
	StatusApproved:  {StatusMigrated, StatusArchived},
	StatusRejected:  {StatusReviewing, StatusArchived},
	StatusArchived:  {},
	StatusMigrated:  {},
}

// Valid reports whether s is a known status.
func Valid(s string) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether from→to is a legal status change.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates a status change and returns ErrInvalidTransition
// with both states named when it is not allowed.
func Transition(from, to string) error {
	if !Valid(from) || !Valid(to) {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, from, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, from, to)
	}
	return nil
}

// GateMigration fails fast unless the entry may be promoted. This is the
// single concurrency-safety check before any promotion side effect.
func GateMigration(status string) error {
	if status != StatusApproved {
		return fmt.Errorf("%w (status %q)", ErrNotApproved, status)
	}
	return nil
}
