package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// HasCompanionField is the canonical boolean field written at ingestion
const HasCompanionField = "has_companion"

// ErrMissingField is returned when a required field is blank on manual add
var ErrMissingField = errors.New("required field missing")

var companionFlagKeys = map[string]bool{
	"venis acompanado":         true,
	"viene acompanado":         true,
	"has companion":            true,
	"traveling with companion": true,
	"companion":                true,
}

var companionDetailKeys = map[string]bool{
	"apellido y nombre del acompanante": true,
	"nombre acompanante":                true,
	"dni acompanante":                   true,
	"companion name":                    true,
	"companion id":                      true,
}

var truthy = map[string]bool{
	"si":   true,
	"true": true,
	"yes":  true,
	"1":    true,
}

// Fold lowercases s and strips diacritics, question marks and surrounding space
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.NewReplacer("¿", "", "?", "").Replace(folded)
	return strings.ToLower(strings.TrimSpace(folded))
}

// IsTruthy reports whether a spreadsheet cell spells "yes" ("si", "sí", "true", "yes", "1")
func IsTruthy(value string) bool {
	return truthy[Fold(value)]
}

// NormalizeFields resolves the companion heuristics into HasCompanionField.
// It is idempotent: a record that already carries the canonical bool is returned unchanged.
func NormalizeFields(fields Fields) Fields {
	out := fields.Clone()
	if _, ok := out[HasCompanionField].(bool); ok {
		return out
	}

	hasCompanion := false
	for key, value := range out {
		folded := Fold(key)
		switch {
		case companionFlagKeys[folded]:
			if b, ok := value.(bool); ok {
				hasCompanion = hasCompanion || b
			} else if value != nil {
				hasCompanion = hasCompanion || IsTruthy(fmt.Sprint(value))
			}
		case companionDetailKeys[folded]:
			if out.String(key) != "" {
				hasCompanion = true
			}
		}
	}
	out[HasCompanionField] = hasCompanion
	return out
}

// TouchesCompanion reports whether fields sets the canonical flag or any
// column the companion heuristics read
func TouchesCompanion(fields Fields) bool {
	for key := range fields {
		if key == HasCompanionField {
			return true
		}
		folded := Fold(key)
		if companionFlagKeys[folded] || companionDetailKeys[folded] {
			return true
		}
	}
	return false
}

// RequireFields checks that every named field is present and non-blank
func RequireFields(fields Fields, required []string) error {
	for _, name := range required {
		if fields.String(name) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, name)
		}
	}
	return nil
}
