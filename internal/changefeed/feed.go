// Package changefeed shares guest change notifications between desks through a Redis stream.
package changefeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"guest-checkin/internal/models"
	"guest-checkin/internal/storage"
)

const (
	DefaultStream = "guest-checkin:changes"
	defaultMaxLen = 10000
	readBlock     = time.Second
	readCount     = 100
	retryDelay    = time.Second
)

// Resolver re-fetches a guest named by a stream entry
type Resolver func(ctx context.Context, id string) (*models.Guest, error)

// Feed publishes and reads change entries on one Redis stream.
// Entries carry only the operation and guest id.
type Feed struct {
	client *redis.Client
	stream string
	maxLen int64
	log    zerolog.Logger
}

// NewFeed creates a feed on stream; an empty stream selects DefaultStream
func NewFeed(client *redis.Client, stream string, log zerolog.Logger) *Feed {
	if stream == "" {
		stream = DefaultStream
	}
	return &Feed{
		client: client,
		stream: stream,
		maxLen: defaultMaxLen,
		log:    log.With().Str("component", "ChangeFeed").Str("stream", stream).Logger(),
	}
}

// Publish appends ev to the stream
func (f *Feed) Publish(ctx context.Context, ev models.ChangeEvent) (string, error) {
	id, err := f.client.XAdd(ctx, &redis.XAddArgs{
		Stream: f.stream,
		MaxLen: f.maxLen,
		Values: map[string]interface{}{
			"op": string(ev.Type),
			"id": ev.ID,
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish change: %w", err)
	}
	return id, nil
}

// Subscribe reads entries appended after the call returns and resolves them into change events.
// The channel closes when ctx is cancelled.
func (f *Feed) Subscribe(ctx context.Context, resolve Resolver) (<-chan models.ChangeEvent, error) {
	last, err := f.lastID(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan models.ChangeEvent, 64)
	go func() {
		defer close(out)

		for ctx.Err() == nil {
			streams, err := f.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{f.stream, last},
				Count:   readCount,
				Block:   readBlock,
			}).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				f.log.Error().Err(err).Msg("Failed to read change stream")
				if !send(ctx, out, models.ChangeEvent{Type: models.ChangeResync}) {
					return
				}
				select {
				case <-time.After(retryDelay):
				case <-ctx.Done():
					return
				}
				continue
			}

			for _, s := range streams {
				for _, msg := range s.Messages {
					last = msg.ID
					ev := f.resolve(ctx, msg.Values, resolve)
					if !send(ctx, out, ev) {
						return
					}
				}
			}
		}
	}()
	return out, nil
}

func (f *Feed) lastID(ctx context.Context) (string, error) {
	msgs, err := f.client.XRevRangeN(ctx, f.stream, "+", "-", 1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("failed to read stream position: %w", err)
	}
	if len(msgs) == 0 {
		return "0-0", nil
	}
	return msgs[0].ID, nil
}

func (f *Feed) resolve(ctx context.Context, values map[string]interface{}, resolve Resolver) models.ChangeEvent {
	op, _ := values["op"].(string)
	id, _ := values["id"].(string)

	switch models.ChangeType(op) {
	case models.ChangeDelete:
		return models.ChangeEvent{Type: models.ChangeDelete, ID: id}
	case models.ChangeInsert, models.ChangeUpdate:
		g, err := resolve(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return models.ChangeEvent{Type: models.ChangeDelete, ID: id}
		}
		if err != nil {
			f.log.Error().Err(err).Str("guest_id", id).Msg("Failed to resolve change")
			return models.ChangeEvent{Type: models.ChangeResync}
		}
		return models.ChangeEvent{Type: models.ChangeType(op), ID: id, Guest: g}
	default:
		return models.ChangeEvent{Type: models.ChangeResync}
	}
}

func send(ctx context.Context, out chan<- models.ChangeEvent, ev models.ChangeEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
