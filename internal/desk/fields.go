package desk

import (
	"fmt"
	"strings"

	"guest-checkin/internal/models"
)

// ParseFields turns "Key=value" pairs into guest fields
func ParseFields(pairs []string) (models.Fields, error) {
	fields := models.Fields{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q, expected Key=value", pair)
		}
		fields[key] = strings.TrimSpace(value)
	}
	return fields, nil
}

// splitPairs splits "A=1; B=2" into its pairs
func splitPairs(s string) []string {
	var pairs []string
	for _, p := range strings.Split(s, ";") {
		if p = strings.TrimSpace(p); p != "" {
			pairs = append(pairs, p)
		}
	}
	return pairs
}
