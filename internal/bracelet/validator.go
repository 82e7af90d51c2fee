// Package bracelet enforces event-wide uniqueness of wristband numbers.
package bracelet

import (
	"errors"
	"fmt"
	"strings"

	"guest-checkin/internal/models"
)

var (
	ErrDuplicatePrimary   = errors.New("bracelet number already assigned to another guest")
	ErrDuplicateCompanion = errors.New("companion bracelet number already assigned to another guest")
	ErrSameNumber         = errors.New("guest and companion bracelet numbers must differ")
	ErrMissingCompanion   = errors.New("companion bracelet number is required")
	ErrMissingPrimary     = errors.New("bracelet number is required")
)

// Violation is a rejected bracelet assignment
type Violation struct {
	GuestID string
	Number  string
	Rule    error
}

func (v *Violation) Error() string {
	if v.Number == "" {
		return v.Rule.Error()
	}
	return fmt.Sprintf("%s: %q", v.Rule.Error(), v.Number)
}

func (v *Violation) Unwrap() error {
	return v.Rule
}

// Normalize trims a proposed number; empty and absent are the same
func Normalize(number string) string {
	return strings.TrimSpace(number)
}

// UsedNumbers returns every bracelet number held by guests other than exceptID
func UsedNumbers(guests []models.Guest, exceptID string) map[string]string {
	used := make(map[string]string)
	for _, g := range guests {
		if g.ID == exceptID {
			continue
		}
		if n := Normalize(g.BraceletNumber); n != "" {
			used[n] = g.ID
		}
		if n := Normalize(g.CompanionBraceletNumber); n != "" {
			used[n] = g.ID
		}
	}
	return used
}

// ValidateAssignment decides whether guestID may hold the proposed numbers given allGuests.
// The guest's own prior numbers are excluded so re-saving them does not self-conflict.
func ValidateAssignment(guestID, primary, companion string, hasCompanion bool, allGuests []models.Guest) error {
	primary = Normalize(primary)
	companion = Normalize(companion)
	used := UsedNumbers(allGuests, guestID)

	if primary != "" {
		if _, taken := used[primary]; taken {
			return &Violation{GuestID: guestID, Number: primary, Rule: ErrDuplicatePrimary}
		}
	}
	if hasCompanion && companion == "" {
		return &Violation{GuestID: guestID, Rule: ErrMissingCompanion}
	}
	if companion != "" {
		if _, taken := used[companion]; taken {
			return &Violation{GuestID: guestID, Number: companion, Rule: ErrDuplicateCompanion}
		}
	}
	if primary != "" && primary == companion {
		return &Violation{GuestID: guestID, Number: primary, Rule: ErrSameNumber}
	}
	return nil
}

// ValidateConfirmation is ValidateAssignment plus the requirement that a confirmed guest holds a number
func ValidateConfirmation(guestID, primary, companion string, hasCompanion bool, allGuests []models.Guest) error {
	if Normalize(primary) == "" {
		return &Violation{GuestID: guestID, Rule: ErrMissingPrimary}
	}
	return ValidateAssignment(guestID, primary, companion, hasCompanion, allGuests)
}

// CheckRoster audits a snapshot against the roster invariants and returns every violation found
func CheckRoster(guests []models.Guest) []error {
	var problems []error
	owner := make(map[string]string)

	claim := func(id, number string, rule error) {
		if number == "" {
			return
		}
		if prev, ok := owner[number]; ok && prev != id {
			problems = append(problems, &Violation{GuestID: id, Number: number, Rule: rule})
			return
		}
		owner[number] = id
	}

	for _, g := range guests {
		primary := Normalize(g.BraceletNumber)
		companion := Normalize(g.CompanionBraceletNumber)

		if primary != "" && primary == companion {
			problems = append(problems, &Violation{GuestID: g.ID, Number: primary, Rule: ErrSameNumber})
		}
		claim(g.ID, primary, ErrDuplicatePrimary)
		claim(g.ID, companion, ErrDuplicateCompanion)

		if g.IsConfirmed {
			if primary == "" {
				problems = append(problems, &Violation{GuestID: g.ID, Rule: ErrMissingPrimary})
			}
			if g.HasCompanion() && companion == "" {
				problems = append(problems, &Violation{GuestID: g.ID, Rule: ErrMissingCompanion})
			}
		}
	}
	return problems
}
