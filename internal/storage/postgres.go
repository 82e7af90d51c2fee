package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"guest-checkin/internal/models"
)

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

// PostgresStore keeps guests in the remote attendees table and
// subscribes to row changes through LISTEN/NOTIFY
type PostgresStore struct {
	*sqlGuests
	dsn string
	log zerolog.Logger
}

// NewPostgresStore opens and pings the database at dsn
func NewPostgresStore(ctx context.Context, dsn string, log zerolog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewPostgresStoreWithDB(db, dsn, log), nil
}

// NewPostgresStoreWithDB wraps an existing connection pool
func NewPostgresStoreWithDB(db *sql.DB, dsn string, log zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		sqlGuests: newSQLGuests(db, postgresDialect),
		dsn:       dsn,
		log:       log.With().Str("component", "PostgresStore").Logger(),
	}
}

// Migrate creates the attendees table and its notify trigger
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// notifyPayload is the JSON body sent by the attendees_notify trigger
type notifyPayload struct {
	Op string `json:"op"`
	ID string `json:"id"`
}

// Subscribe listens on NotifyChannel. Each notification carries only the row id,
// so inserts and updates are re-fetched; a lost connection yields a resync event.
func (s *PostgresStore) Subscribe(ctx context.Context) (<-chan models.ChangeEvent, error) {
	listener := pq.NewListener(s.dsn, listenerMinReconnect, listenerMaxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventDisconnected:
			s.log.Warn().Err(err).Msg("Change listener disconnected")
		case pq.ListenerEventReconnected:
			s.log.Info().Msg("Change listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			s.log.Error().Err(err).Msg("Change listener connection attempt failed")
		}
	})
	if err := listener.Listen(NotifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", NotifyChannel, err)
	}

	out := make(chan models.ChangeEvent, 64)
	go func() {
		defer close(out)
		defer listener.Close()

		ticker := time.NewTicker(listenerPingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.pingListener(listener)
			case n := <-listener.Notify:
				ev, err := s.eventFromNotification(ctx, n)
				if err != nil {
					s.log.Error().Err(err).Msg("Failed to resolve change notification")
					ev = models.ChangeEvent{Type: models.ChangeResync}
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// pingListener checks the listener connection while no notifications arrive
func (s *PostgresStore) pingListener(l interface{ Ping() error }) {
	if err := l.Ping(); err != nil {
		s.log.Warn().Err(err).Msg("Change listener ping failed")
	}
}

// eventFromNotification turns a trigger payload into a change event.
// A nil notification means the connection was re-established and events may be lost.
func (s *PostgresStore) eventFromNotification(ctx context.Context, n *pq.Notification) (models.ChangeEvent, error) {
	if n == nil {
		return models.ChangeEvent{Type: models.ChangeResync}, nil
	}

	var p notifyPayload
	if err := json.Unmarshal([]byte(n.Extra), &p); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("failed to decode notification: %w", err)
	}

	op := models.ChangeType(p.Op)
	switch op {
	case models.ChangeDelete:
		return models.ChangeEvent{Type: op, ID: p.ID}, nil
	case models.ChangeInsert, models.ChangeUpdate:
		g, err := s.Get(ctx, p.ID)
		if errors.Is(err, ErrNotFound) {
			// Deleted before we could fetch it.
			return models.ChangeEvent{Type: models.ChangeDelete, ID: p.ID}, nil
		}
		if err != nil {
			return models.ChangeEvent{}, err
		}
		return models.ChangeEvent{Type: op, ID: p.ID, Guest: g}, nil
	default:
		return models.ChangeEvent{}, fmt.Errorf("unknown notification op %q", p.Op)
	}
}
