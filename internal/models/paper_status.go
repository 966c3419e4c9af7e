package models

import "fmt"

// PaperStatus is a state of the paper lifecycle.
type PaperStatus string

const (
	PaperStatusSubmitted   PaperStatus = "SUBMITTED"
	PaperStatusUnderReview PaperStatus = "UNDER_REVIEW"
	PaperStatusAccepted    PaperStatus = "ACCEPTED"
	PaperStatusPublished   PaperStatus = "PUBLISHED"
	PaperStatusRejected    PaperStatus = "REJECTED"
	PaperStatusArchived    PaperStatus = "ARCHIVED"
)

var paperTransitions = map[PaperStatus][]PaperStatus{
	PaperStatusSubmitted:   {PaperStatusUnderReview, PaperStatusRejected},
	PaperStatusUnderReview: {PaperStatusAccepted, PaperStatusRejected, PaperStatusSubmitted},
	PaperStatusAccepted:    {PaperStatusPublished, PaperStatusUnderReview},
	PaperStatusPublished:   {},
	PaperStatusRejected:    {PaperStatusSubmitted},
	PaperStatusArchived:    {},
}

// AllPaperStatuses lists every known status.
func AllPaperStatuses() []PaperStatus {
	return []PaperStatus{
		PaperStatusSubmitted,
		PaperStatusUnderReview,
		PaperStatusAccepted,
		PaperStatusPublished,
		PaperStatusRejected,
		PaperStatusArchived,
	}
}

// Valid reports whether s is a known status.
func (s PaperStatus) Valid() bool {
	_, ok := paperTransitions[s]
	return ok
}

// Notifies reports whether entering s sends a status email to the corresponding author.
func (s PaperStatus) Notifies() bool {
	switch s {
	case PaperStatusUnderReview, PaperStatusAccepted, PaperStatusRejected, PaperStatusPublished:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is in the allowed table.
func CanTransition(from, to PaperStatus) bool {
	for _, next := range paperTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns a copy of the targets reachable from from.
func AllowedTransitions(from PaperStatus) []PaperStatus {
	targets := paperTransitions[from]
	out := make([]PaperStatus, len(targets))
	copy(out, targets)
	return out
}

// Transition is the outcome of resolving a requested status change.
type Transition struct {
	From     PaperStatus
	To       PaperStatus
	Override bool
}

// ResolveTransition applies the transition table and the DEAN override.
// A DEAN may force any change between distinct known statuses; everyone else is bound by the table.
func ResolveTransition(from, to PaperStatus, actor UserRole) (Transition, error) {
	if !from.Valid() || !to.Valid() {
		return Transition{}, fmt.Errorf("unknown status %s -> %s", from, to)
	}
	if CanTransition(from, to) {
		return Transition{From: from, To: to}, nil
	}
	if actor == RoleDean && from != to {
		return Transition{From: from, To: to, Override: true}, nil
	}
	return Transition{}, &TransitionError{From: from, To: to, Allowed: AllowedTransitions(from)}
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	From    PaperStatus
	To      PaperStatus
	Allowed []PaperStatus
}

func (e *TransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("cannot change status from %s to %s: %s is final", e.From, e.To, e.From)
	}
	return fmt.Sprintf("cannot change status from %s to %s (allowed: %v)", e.From, e.To, e.Allowed)
}
