package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Guest represents an event attendee imported from the roster spreadsheet
type Guest struct {
	ID                      string     `json:"id"`
	Fields                  Fields     `json:"fields"`
	Columns                 []string   `json:"columns,omitempty"`
	FileName                string     `json:"file_name,omitempty"`
	BraceletNumber          string     `json:"bracelet_number,omitempty"`
	CompanionBraceletNumber string     `json:"companion_bracelet_number,omitempty"`
	IsConfirmed             bool       `json:"is_confirmed"`
	ConfirmedAt             *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// Status is the confirmation state of a guest
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Status derives the confirmation state from IsConfirmed
func (g Guest) Status() Status {
	if g.IsConfirmed {
		return StatusConfirmed
	}
	return StatusPending
}

// HasCompanion reports whether the guest travels with a companion.
// It only reads the canonical field written by NormalizeFields.
func (g Guest) HasCompanion() bool {
	return g.Fields.Bool(HasCompanionField)
}

// Clone returns a deep copy of the guest
func (g Guest) Clone() Guest {
	c := g
	c.Fields = g.Fields.Clone()
	if g.Columns != nil {
		c.Columns = append([]string(nil), g.Columns...)
	}
	if g.ConfirmedAt != nil {
		t := *g.ConfirmedAt
		c.ConfirmedAt = &t
	}
	return c
}

// DisplayName returns the value of nameField, falling back to the guest id
func (g Guest) DisplayName(nameField string) string {
	if name := g.Fields.String(nameField); name != "" {
		return name
	}
	return g.ID
}

// FieldKeys returns the guest's field keys in spreadsheet column order.
// Keys outside Columns, such as manual additions, follow in sorted order.
func (g Guest) FieldKeys() []string {
	keys := make([]string, 0, len(g.Fields))
	placed := make(map[string]bool, len(g.Columns))
	for _, col := range g.Columns {
		if _, ok := g.Fields[col]; ok && !placed[col] {
			placed[col] = true
			keys = append(keys, col)
		}
	}
	for _, k := range g.Fields.Keys() {
		if !placed[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

// Fields holds the open-ended spreadsheet columns of a guest.
// Values are strings or booleans.
type Fields map[string]any

// String returns the value under key as a trimmed string
func (f Fields) String(key string) string {
	v, ok := f[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case bool:
		if val {
			return "Si"
		}
		return "No"
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// Bool returns the value under key as a boolean.
// Non-boolean values are read with the same truthy spellings used on import.
func (f Fields) Bool(key string) bool {
	v, ok := f[key]
	if !ok || v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return IsTruthy(fmt.Sprint(v))
}

// Keys returns the field keys in sorted order
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy; values are immutable strings and bools
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	c := make(Fields, len(f))
	for k, v := range f {
		c[k] = v
	}
	return c
}

// Merge returns a copy of f with every key of other applied on top
func (f Fields) Merge(other Fields) Fields {
	c := f.Clone()
	for k, v := range other {
		c[k] = v
	}
	return c
}

// ChangeType identifies the kind of a remote change notification
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
	// ChangeResync means the subscriber may have missed events and must reload.
	ChangeResync ChangeType = "RESYNC"
)

// ChangeEvent is a push notification from the persistent guest store.
// Guest is nil for delete and resync events.
type ChangeEvent struct {
	Type  ChangeType
	ID    string
	Guest *Guest
}
