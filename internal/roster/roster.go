// Package roster holds the in-memory guest list mirrored from the persistent store.
package roster

import (
	"sync"

	"guest-checkin/internal/models"
)

// Roster is the authoritative in-memory guest list.
// It is refreshed wholesale by Replace and incrementally by Apply.
type Roster struct {
	mu         sync.RWMutex
	guests     []models.Guest
	index      map[string]int
	tombstones map[string]struct{}
}

// New creates an empty roster
func New() *Roster {
	return &Roster{
		guests:     make([]models.Guest, 0),
		index:      make(map[string]int),
		tombstones: make(map[string]struct{}),
	}
}

// Replace swaps the whole list, keeping the given order
func (r *Roster) Replace(guests []models.Guest) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.guests = make([]models.Guest, 0, len(guests))
	r.index = make(map[string]int, len(guests))
	r.tombstones = make(map[string]struct{})
	for _, g := range guests {
		if _, dup := r.index[g.ID]; dup {
			continue
		}
		r.index[g.ID] = len(r.guests)
		r.guests = append(r.guests, g.Clone())
	}
}

// Apply merges one change notification and reports whether the list changed.
// Delivery order is not trusted: a guest older than the held copy is dropped,
// and ids deleted since the last Replace stay deleted.
func (r *Roster) Apply(ev models.ChangeEvent) bool {
	switch ev.Type {
	case models.ChangeInsert, models.ChangeUpdate:
		if ev.Guest == nil {
			return false
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, deleted := r.tombstones[ev.Guest.ID]; deleted {
			return false
		}
		return r.upsertLocked(*ev.Guest, true)
	case models.ChangeDelete:
		id := ev.ID
		if id == "" && ev.Guest != nil {
			id = ev.Guest.ID
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		r.tombstones[id] = struct{}{}
		return r.removeLocked(id)
	default:
		return false
	}
}

// Upsert stores a guest written by this process
func (r *Roster) Upsert(g models.Guest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tombstones, g.ID)
	r.upsertLocked(g, false)
}

// Remove deletes a guest written by this process
func (r *Roster) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tombstones[id] = struct{}{}
	return r.removeLocked(id)
}

// Get returns a copy of the guest with the given id
func (r *Roster) Get(id string) (models.Guest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return models.Guest{}, false
	}
	return r.guests[i].Clone(), true
}

// Snapshot returns a copy of every guest in roster order
func (r *Roster) Snapshot() []models.Guest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	guests := make([]models.Guest, len(r.guests))
	for i, g := range r.guests {
		guests[i] = g.Clone()
	}
	return guests
}

// Len returns the number of guests
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.guests)
}

func (r *Roster) upsertLocked(g models.Guest, guardStale bool) bool {
	if i, ok := r.index[g.ID]; ok {
		held := r.guests[i]
		if guardStale && !g.UpdatedAt.IsZero() && g.UpdatedAt.Before(held.UpdatedAt) {
			return false
		}
		r.guests[i] = g.Clone()
		return true
	}
	r.index[g.ID] = len(r.guests)
	r.guests = append(r.guests, g.Clone())
	return true
}

func (r *Roster) removeLocked(id string) bool {
	i, ok := r.index[id]
	if !ok {
		return false
	}
	r.guests = append(r.guests[:i], r.guests[i+1:]...)
	delete(r.index, id)
	for j := i; j < len(r.guests); j++ {
		r.index[r.guests[j].ID] = j
	}
	return true
}
