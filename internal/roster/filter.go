package roster

import (
	"strings"

	"guest-checkin/internal/models"
)

// Filter returns the guests whose field values, bracelet numbers or id contain term.
// Matching ignores case and diacritics; a blank term returns guests unchanged.
func Filter(guests []models.Guest, term string) []models.Guest {
	needle := models.Fold(term)
	if needle == "" {
		return guests
	}

	var out []models.Guest
	for _, g := range guests {
		if matches(g, needle) {
			out = append(out, g)
		}
	}
	return out
}

// CountConfirmed returns how many guests are confirmed
func CountConfirmed(guests []models.Guest) int {
	n := 0
	for _, g := range guests {
		if g.IsConfirmed {
			n++
		}
	}
	return n
}

func matches(g models.Guest, needle string) bool {
	candidates := []string{g.ID, g.BraceletNumber, g.CompanionBraceletNumber}
	for _, key := range g.Fields.Keys() {
		if key == models.HasCompanionField {
			continue
		}
		candidates = append(candidates, g.Fields.String(key))
	}
	for _, c := range candidates {
		if c != "" && strings.Contains(models.Fold(c), needle) {
			return true
		}
	}
	return false
}
