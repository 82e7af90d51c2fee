package roster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guest-checkin/internal/models"
)

func guest(id string, updated time.Time, fields models.Fields) models.Guest {
	return models.Guest{ID: id, Fields: fields, UpdatedAt: updated}
}

func TestReplace_KeepsOrderAndDropsDuplicateIDs(t *testing.T) {
	r := New()
	now := time.Now()
	r.Replace([]models.Guest{guest("b", now, nil), guest("a", now, nil), guest("b", now, nil)})

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "b", snap[0].ID)
	assert.Equal(t, "a", snap[1].ID)
}

func TestApply_InsertUpdateDelete(t *testing.T) {
	r := New()
	t0 := time.Now()

	g := guest("1", t0, models.Fields{"DNI": "1"})
	assert.True(t, r.Apply(models.ChangeEvent{Type: models.ChangeInsert, ID: "1", Guest: &g}))
	assert.Equal(t, 1, r.Len())

	updated := g
	updated.BraceletNumber = "001"
	updated.UpdatedAt = t0.Add(time.Second)
	assert.True(t, r.Apply(models.ChangeEvent{Type: models.ChangeUpdate, ID: "1", Guest: &updated}))

	got, ok := r.Get("1")
	require.True(t, ok)
	assert.Equal(t, "001", got.BraceletNumber)

	assert.True(t, r.Apply(models.ChangeEvent{Type: models.ChangeDelete, ID: "1"}))
	assert.Equal(t, 0, r.Len())
}

func TestApply_DropsStaleUpdate(t *testing.T) {
	r := New()
	t0 := time.Now()

	fresh := guest("1", t0.Add(time.Minute), nil)
	fresh.BraceletNumber = "new"
	r.Replace([]models.Guest{fresh})

	stale := guest("1", t0, nil)
	stale.BraceletNumber = "old"
	assert.False(t, r.Apply(models.ChangeEvent{Type: models.ChangeUpdate, ID: "1", Guest: &stale}))

	got, _ := r.Get("1")
	assert.Equal(t, "new", got.BraceletNumber)
}

func TestApply_UpdateBeforeInsertUpserts(t *testing.T) {
	r := New()
	g := guest("9", time.Now(), nil)
	assert.True(t, r.Apply(models.ChangeEvent{Type: models.ChangeUpdate, ID: "9", Guest: &g}))

	assert.True(t, r.Apply(models.ChangeEvent{Type: models.ChangeInsert, ID: "9", Guest: &g}))
	assert.Equal(t, 1, r.Len(), "late insert replaces, never duplicates")
}

func TestApply_TombstoneBlocksLateInsert(t *testing.T) {
	r := New()
	g := guest("1", time.Now(), nil)
	r.Replace([]models.Guest{g})

	r.Apply(models.ChangeEvent{Type: models.ChangeDelete, ID: "1"})
	assert.False(t, r.Apply(models.ChangeEvent{Type: models.ChangeInsert, ID: "1", Guest: &g}))
	assert.Equal(t, 0, r.Len())

	r.Replace([]models.Guest{g})
	assert.Equal(t, 1, r.Len(), "replace clears tombstones")
}

func TestApply_ResyncAndEmptyEventsAreNoops(t *testing.T) {
	r := New()
	assert.False(t, r.Apply(models.ChangeEvent{Type: models.ChangeResync}))
	assert.False(t, r.Apply(models.ChangeEvent{Type: models.ChangeUpdate, ID: "x"}))
	assert.False(t, r.Apply(models.ChangeEvent{Type: models.ChangeDelete, ID: "missing"}))
}

func TestRemoveReindexes(t *testing.T) {
	r := New()
	now := time.Now()
	r.Replace([]models.Guest{guest("a", now, nil), guest("b", now, nil), guest("c", now, nil)})

	assert.True(t, r.Remove("a"))
	got, ok := r.Get("c")
	require.True(t, ok)
	assert.Equal(t, "c", got.ID)
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New()
	r.Replace([]models.Guest{guest("a", time.Now(), models.Fields{"DNI": "1"})})

	snap := r.Snapshot()
	snap[0].Fields["DNI"] = "changed"
	snap[0].BraceletNumber = "x"

	got, _ := r.Get("a")
	assert.Equal(t, "1", got.Fields.String("DNI"))
	assert.Empty(t, got.BraceletNumber)
}

func TestFilter(t *testing.T) {
	guests := []models.Guest{
		{ID: "1", Fields: models.Fields{"Apellido y Nombre": "Gómez Juan", "Ciudad": "Rosario"}},
		{ID: "2", Fields: models.Fields{"Apellido y Nombre": "Pérez Ana"}, BraceletNumber: "042"},
		{ID: "3", Fields: models.Fields{"Apellido y Nombre": "Ruiz Leo", models.HasCompanionField: true}},
	}

	assert.Len(t, Filter(guests, ""), 3)
	assert.Len(t, Filter(guests, "  "), 3)

	got := Filter(guests, "gomez")
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)

	got = Filter(guests, "ROSA")
	require.Len(t, got, 1)

	got = Filter(guests, "042")
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)

	assert.Empty(t, Filter(guests, "si"), "canonical companion flag is not searchable")
}

func TestCountConfirmed(t *testing.T) {
	assert.Equal(t, 1, CountConfirmed([]models.Guest{{IsConfirmed: true}, {}}))
}
