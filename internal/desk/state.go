// Package desk is the interactive check-in terminal used by door staff.
package desk

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when an action does not apply to the current state
var ErrInvalidTransition = errors.New("invalid desk transition")

// State is what the desk is doing. Exactly one of Idle, EditingGuest or ConfirmingGuest.
type State interface {
	fmt.Stringer
	isState()
}

// Idle shows the list and accepts top-level commands
type Idle struct{}

// EditingGuest applies field changes to one guest
type EditingGuest struct {
	ID string
}

// ConfirmingGuest holds the bracelet numbers typed for one guest until they are accepted
type ConfirmingGuest struct {
	ID             string
	DraftPrimary   string
	DraftCompanion string
}

func (Idle) isState()            {}
func (EditingGuest) isState()    {}
func (ConfirmingGuest) isState() {}

func (Idle) String() string { return "idle" }

func (s EditingGuest) String() string { return "editing " + s.ID }

func (s ConfirmingGuest) String() string { return "confirming " + s.ID }

// BeginEdit moves from Idle to EditingGuest
func BeginEdit(s State, id string) (State, error) {
	if _, ok := s.(Idle); !ok {
		return s, fmt.Errorf("%w: edit from %s", ErrInvalidTransition, s)
	}
	return EditingGuest{ID: id}, nil
}

// BeginConfirm moves from Idle to ConfirmingGuest with empty drafts
func BeginConfirm(s State, id string) (State, error) {
	if _, ok := s.(Idle); !ok {
		return s, fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, s)
	}
	return ConfirmingGuest{ID: id}, nil
}

// SetDraft records typed bracelet numbers while confirming
func SetDraft(s State, primary, companion string) (State, error) {
	c, ok := s.(ConfirmingGuest)
	if !ok {
		return s, fmt.Errorf("%w: draft from %s", ErrInvalidTransition, s)
	}
	c.DraftPrimary = primary
	c.DraftCompanion = companion
	return c, nil
}

// Cancel returns to Idle from any state
func Cancel(State) State {
	return Idle{}
}

// GuestID returns the guest the state refers to, if any
func GuestID(s State) (string, bool) {
	switch st := s.(type) {
	case EditingGuest:
		return st.ID, true
	case ConfirmingGuest:
		return st.ID, true
	default:
		return "", false
	}
}

// Reconcile drops back to Idle when the guest being worked on no longer exists
func Reconcile(s State, exists func(id string) bool) State {
	if id, ok := GuestID(s); ok && !exists(id) {
		return Idle{}
	}
	return s
}
