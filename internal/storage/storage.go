// Package storage persists guests and pushes change notifications.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"guest-checkin/internal/models"
)

// ErrNotFound is returned when no row matches the requested guest id
var ErrNotFound = errors.New("guest not found")

// GuestStore is the persistent guest table
type GuestStore interface {
	ListAll(ctx context.Context) ([]models.Guest, error)
	Get(ctx context.Context, id string) (*models.Guest, error)
	Insert(ctx context.Context, guest models.Guest) (*models.Guest, error)
	Update(ctx context.Context, id string, patch Patch) (*models.Guest, error)
	Delete(ctx context.Context, id string) error
	// ReplaceAll drops every stored guest and inserts guests in order.
	ReplaceAll(ctx context.Context, guests []models.Guest) error
	// Subscribe delivers change events until ctx is cancelled, then closes the channel.
	Subscribe(ctx context.Context) (<-chan models.ChangeEvent, error)
	Close() error
}

// Patch is a partial update; nil members are left untouched.
// Empty bracelet strings are stored as NULL.
type Patch struct {
	Fields                  models.Fields
	BraceletNumber          *string
	CompanionBraceletNumber *string
	IsConfirmed             *bool
	// ConfirmedAt sets confirmed_at; ClearConfirmedAt sets it to NULL.
	ConfirmedAt      *time.Time
	ClearConfirmedAt bool
}

// Empty reports whether the patch changes nothing
func (p Patch) Empty() bool {
	return p.Fields == nil && p.BraceletNumber == nil && p.CompanionBraceletNumber == nil &&
		p.IsConfirmed == nil && p.ConfirmedAt == nil && !p.ClearConfirmedAt
}

// ConfirmPatch stamps a guest confirmed with the given numbers
func ConfirmPatch(primary, companion string, at time.Time) Patch {
	confirmed := true
	return Patch{
		BraceletNumber:          &primary,
		CompanionBraceletNumber: &companion,
		IsConfirmed:             &confirmed,
		ConfirmedAt:             &at,
	}
}

// UnconfirmPatch clears confirmation and both bracelet numbers
func UnconfirmPatch() Patch {
	confirmed := false
	empty := ""
	return Patch{
		BraceletNumber:          &empty,
		CompanionBraceletNumber: &empty,
		IsConfirmed:             &confirmed,
		ClearConfirmedAt:        true,
	}
}

// Apply returns g with the patch applied, used by stores and tests to mirror a write locally
func (p Patch) Apply(g models.Guest) models.Guest {
	out := g.Clone()
	if p.Fields != nil {
		out.Fields = p.Fields.Clone()
	}
	if p.BraceletNumber != nil {
		out.BraceletNumber = strings.TrimSpace(*p.BraceletNumber)
	}
	if p.CompanionBraceletNumber != nil {
		out.CompanionBraceletNumber = strings.TrimSpace(*p.CompanionBraceletNumber)
	}
	if p.IsConfirmed != nil {
		out.IsConfirmed = *p.IsConfirmed
	}
	if p.ConfirmedAt != nil {
		t := *p.ConfirmedAt
		out.ConfirmedAt = &t
	}
	if p.ClearConfirmedAt {
		out.ConfirmedAt = nil
	}
	return out
}

// assignments returns column/value pairs for an UPDATE, in a stable order
func (p Patch) assignments() ([]string, []any, error) {
	var cols []string
	var args []any

	if p.Fields != nil {
		data, err := encodeFields(p.Fields)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, "row_data")
		args = append(args, data)
	}
	if p.BraceletNumber != nil {
		cols = append(cols, "bracelet_number")
		args = append(args, nullString(*p.BraceletNumber))
	}
	if p.CompanionBraceletNumber != nil {
		cols = append(cols, "companion_bracelet_number")
		args = append(args, nullString(*p.CompanionBraceletNumber))
	}
	if p.IsConfirmed != nil {
		cols = append(cols, "is_confirmed")
		args = append(args, *p.IsConfirmed)
	}
	if p.ClearConfirmedAt {
		cols = append(cols, "confirmed_at")
		args = append(args, nil)
	} else if p.ConfirmedAt != nil {
		cols = append(cols, "confirmed_at")
		args = append(args, p.ConfirmedAt.UTC())
	}
	return cols, args, nil
}

func encodeFields(f models.Fields) ([]byte, error) {
	if f == nil {
		f = models.Fields{}
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal row data: %w", err)
	}
	return data, nil
}

func decodeFields(data []byte) (models.Fields, error) {
	fields := models.Fields{}
	if len(data) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal row data: %w", err)
	}
	return fields, nil
}

func nullString(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
