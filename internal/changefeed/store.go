package changefeed

import (
	"context"

	"github.com/rs/zerolog"

	"guest-checkin/internal/models"
	"guest-checkin/internal/storage"
)

// Store decorates a GuestStore: every successful write is published to the feed,
// and Subscribe reads the feed instead of the backend's own notifications.
type Store struct {
	storage.GuestStore
	feed *Feed
	log  zerolog.Logger
}

// Wrap decorates inner with feed
func Wrap(inner storage.GuestStore, feed *Feed, log zerolog.Logger) *Store {
	return &Store{
		GuestStore: inner,
		feed:       feed,
		log:        log.With().Str("component", "ChangeFeedStore").Logger(),
	}
}

func (s *Store) Insert(ctx context.Context, guest models.Guest) (*models.Guest, error) {
	g, err := s.GuestStore.Insert(ctx, guest)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, models.ChangeEvent{Type: models.ChangeInsert, ID: g.ID})
	return g, nil
}

func (s *Store) Update(ctx context.Context, id string, patch storage.Patch) (*models.Guest, error) {
	g, err := s.GuestStore.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, models.ChangeEvent{Type: models.ChangeUpdate, ID: id})
	return g, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.GuestStore.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, models.ChangeEvent{Type: models.ChangeDelete, ID: id})
	return nil
}

func (s *Store) ReplaceAll(ctx context.Context, guests []models.Guest) error {
	if err := s.GuestStore.ReplaceAll(ctx, guests); err != nil {
		return err
	}
	s.publish(ctx, models.ChangeEvent{Type: models.ChangeResync})
	return nil
}

// Subscribe reads the shared stream and re-fetches changed guests from the wrapped store
func (s *Store) Subscribe(ctx context.Context) (<-chan models.ChangeEvent, error) {
	return s.feed.Subscribe(ctx, s.GuestStore.Get)
}

// The write is already persisted; a lost entry is healed by the next reload.
func (s *Store) publish(ctx context.Context, ev models.ChangeEvent) {
	if _, err := s.feed.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("op", string(ev.Type)).Str("guest_id", ev.ID).Msg("Change not published")
	}
}
