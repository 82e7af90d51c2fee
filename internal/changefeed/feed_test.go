package changefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guest-checkin/internal/models"
	"guest-checkin/internal/storage"
)

// memoryStore is a minimal GuestStore for exercising the decorator
type memoryStore struct {
	storage.GuestStore
	mu     sync.Mutex
	guests map[string]models.Guest
	fail   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{guests: make(map[string]models.Guest)}
}

func (m *memoryStore) Get(_ context.Context, id string) (*models.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return &g, nil
}

func (m *memoryStore) Insert(_ context.Context, g models.Guest) (*models.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	m.guests[g.ID] = g
	return &g, nil
}

func (m *memoryStore) Update(_ context.Context, id string, p storage.Patch) (*models.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guests[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	g = p.Apply(g)
	m.guests[id] = g
	return &g, nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.guests, id)
	return nil
}

func (m *memoryStore) ReplaceAll(_ context.Context, guests []models.Guest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guests = make(map[string]models.Guest)
	for _, g := range guests {
		m.guests[g.ID] = g
	}
	return nil
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Feed) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewFeed(client, "test:changes", zerolog.Nop())
}

func next(t *testing.T, ch <-chan models.ChangeEvent) models.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
	return models.ChangeEvent{}
}

func TestStore_PublishesAndResolvesWrites(t *testing.T) {
	_, feed := setupTestRedis(t)
	inner := newMemoryStore()
	store := Wrap(inner, feed, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := store.Subscribe(ctx)
	require.NoError(t, err)

	_, err = store.Insert(ctx, models.Guest{ID: "g-1"})
	require.NoError(t, err)
	ev := next(t, events)
	assert.Equal(t, models.ChangeInsert, ev.Type)
	require.NotNil(t, ev.Guest)

	_, err = store.Update(ctx, "g-1", storage.ConfirmPatch("001", "", time.Now()))
	require.NoError(t, err)
	ev = next(t, events)
	assert.Equal(t, models.ChangeUpdate, ev.Type)
	require.NotNil(t, ev.Guest)
	assert.Equal(t, "001", ev.Guest.BraceletNumber)

	require.NoError(t, store.Delete(ctx, "g-1"))
	ev = next(t, events)
	assert.Equal(t, models.ChangeDelete, ev.Type)
	assert.Equal(t, "g-1", ev.ID)

	require.NoError(t, store.ReplaceAll(ctx, nil))
	assert.Equal(t, models.ChangeResync, next(t, events).Type)
}

func TestFeed_PublishesToDefaultStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	feed := NewFeed(client, "", zerolog.Nop())
	id, err := feed.Publish(ctx, models.ChangeEvent{Type: models.ChangeDelete, ID: "g-1"})
	require.NoError(t, err)

	entries, err := client.XRange(ctx, DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, map[string]interface{}{"op": "DELETE", "id": "g-1"}, entries[0].Values)
}

func TestFeed_SkipsEntriesBeforeSubscribe(t *testing.T) {
	_, feed := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := feed.Publish(ctx, models.ChangeEvent{Type: models.ChangeDelete, ID: "before"})
	require.NoError(t, err)

	events, err := feed.Subscribe(ctx, newMemoryStore().Get)
	require.NoError(t, err)

	_, err = feed.Publish(ctx, models.ChangeEvent{Type: models.ChangeDelete, ID: "after"})
	require.NoError(t, err)

	assert.Equal(t, "after", next(t, events).ID)
}

func TestFeed_ResolvesMissingGuestAsDelete(t *testing.T) {
	_, feed := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := feed.Subscribe(ctx, newMemoryStore().Get)
	require.NoError(t, err)

	_, err = feed.Publish(ctx, models.ChangeEvent{Type: models.ChangeUpdate, ID: "ghost"})
	require.NoError(t, err)

	ev := next(t, events)
	assert.Equal(t, models.ChangeDelete, ev.Type)
	assert.Equal(t, "ghost", ev.ID)
}

func TestFeed_ResolverFailureBecomesResync(t *testing.T) {
	_, feed := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broken := func(context.Context, string) (*models.Guest, error) { return nil, errors.New("db down") }
	events, err := feed.Subscribe(ctx, broken)
	require.NoError(t, err)

	_, err = feed.Publish(ctx, models.ChangeEvent{Type: models.ChangeInsert, ID: "x"})
	require.NoError(t, err)

	assert.Equal(t, models.ChangeResync, next(t, events).Type)
}

func TestStore_FailedWriteIsNotPublished(t *testing.T) {
	mr, feed := setupTestRedis(t)
	inner := newMemoryStore()
	inner.fail = errors.New("insert failed")
	store := Wrap(inner, feed, zerolog.Nop())

	_, err := store.Insert(context.Background(), models.Guest{ID: "x"})
	require.Error(t, err)
	assert.False(t, mr.Exists("test:changes"))
}

func TestFeed_ClosesOnCancel(t *testing.T) {
	_, feed := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := feed.Subscribe(ctx, newMemoryStore().Get)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("subscription did not close")
	}
}
