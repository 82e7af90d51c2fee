package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guest-checkin/internal/models"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "guests.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := newSQLite(t)

	inserted, err := store.Insert(ctx, models.Guest{
		Fields:   models.Fields{"DNI": "30111222", models.HasCompanionField: true},
		FileName: "manual",
	})
	require.NoError(t, err)
	require.NotEmpty(t, inserted.ID)
	assert.False(t, inserted.CreatedAt.IsZero())

	at := time.Date(2025, 10, 11, 21, 30, 0, 0, time.UTC)
	updated, err := store.Update(ctx, inserted.ID, ConfirmPatch("001", "002", at))
	require.NoError(t, err)
	assert.True(t, updated.IsConfirmed)
	assert.Equal(t, "001", updated.BraceletNumber)
	assert.Equal(t, "002", updated.CompanionBraceletNumber)
	require.NotNil(t, updated.ConfirmedAt)
	assert.True(t, at.Equal(*updated.ConfirmedAt))

	got, err := store.Get(ctx, inserted.ID)
	require.NoError(t, err)
	assert.True(t, got.HasCompanion())
	assert.Equal(t, "30111222", got.Fields.String("DNI"))
	assert.Nil(t, got.Columns)

	cleared, err := store.Update(ctx, inserted.ID, UnconfirmPatch())
	require.NoError(t, err)
	assert.False(t, cleared.IsConfirmed)
	assert.Empty(t, cleared.BraceletNumber)
	assert.Empty(t, cleared.CompanionBraceletNumber)
	assert.Nil(t, cleared.ConfirmedAt)

	require.NoError(t, store.Delete(ctx, inserted.ID))
	_, err = store.Get(ctx, inserted.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, inserted.ID), ErrNotFound)
}

func TestSQLiteStore_ReplaceAllKeepsFileOrder(t *testing.T) {
	ctx := context.Background()
	store := newSQLite(t)

	_, err := store.Insert(ctx, models.Guest{ID: "old"})
	require.NoError(t, err)

	ids := []string{"z", "a", "m", "b"}
	var guests []models.Guest
	for _, id := range ids {
		guests = append(guests, models.Guest{ID: id, FileName: "roster.xlsx", Columns: []string{"Nombre", "DNI", "Apellido"}})
	}
	require.NoError(t, store.ReplaceAll(ctx, guests))

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(ids))
	for i, g := range all {
		assert.Equal(t, ids[i], g.ID)
		assert.Equal(t, "roster.xlsx", g.FileName)
		assert.Equal(t, []string{"Nombre", "DNI", "Apellido"}, g.Columns)
	}
}

func TestSQLiteStore_SubscribeReceivesWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := newSQLite(t)

	events, err := store.Subscribe(ctx)
	require.NoError(t, err)

	g, err := store.Insert(ctx, models.Guest{})
	require.NoError(t, err)
	_, err = store.Update(ctx, g.ID, ConfirmPatch("9", "", time.Now()))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, g.ID))
	require.NoError(t, store.ReplaceAll(ctx, nil))

	want := []models.ChangeType{models.ChangeInsert, models.ChangeUpdate, models.ChangeDelete, models.ChangeResync}
	for _, typ := range want {
		select {
		case ev := <-events:
			assert.Equal(t, typ, ev.Type)
			if typ == models.ChangeUpdate {
				require.NotNil(t, ev.Guest)
				assert.Equal(t, "9", ev.Guest.BraceletNumber)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", typ)
		}
	}

	cancel()
	_, open := <-events
	assert.False(t, open)
}
