package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"guest-checkin/internal/models"
)

// SQLiteStore keeps guests in a local database file for offline desks.
// Changes made through the store are pushed to subscribers of the same process.
type SQLiteStore struct {
	*sqlGuests
	hub *Hub
	log zerolog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path and applies the schema
func NewSQLiteStore(ctx context.Context, path string, log zerolog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	store := &SQLiteStore{
		sqlGuests: newSQLGuests(db, sqliteDialect),
		hub:       NewHub(),
		log:       log.With().Str("component", "SQLiteStore").Logger(),
	}
	store.log.Debug().Str("path", path).Msg("Database opened")
	return store, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, guest models.Guest) (*models.Guest, error) {
	g, err := s.sqlGuests.Insert(ctx, guest)
	if err != nil {
		return nil, err
	}
	s.hub.Publish(models.ChangeEvent{Type: models.ChangeInsert, ID: g.ID, Guest: cloneGuest(g)})
	return g, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, patch Patch) (*models.Guest, error) {
	g, err := s.sqlGuests.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.hub.Publish(models.ChangeEvent{Type: models.ChangeUpdate, ID: g.ID, Guest: cloneGuest(g)})
	return g, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if err := s.sqlGuests.Delete(ctx, id); err != nil {
		return err
	}
	s.hub.Publish(models.ChangeEvent{Type: models.ChangeDelete, ID: id})
	return nil
}

func (s *SQLiteStore) ReplaceAll(ctx context.Context, guests []models.Guest) error {
	if err := s.sqlGuests.ReplaceAll(ctx, guests); err != nil {
		return err
	}
	s.hub.Publish(models.ChangeEvent{Type: models.ChangeResync})
	return nil
}

// Subscribe delivers changes made through this store
func (s *SQLiteStore) Subscribe(ctx context.Context) (<-chan models.ChangeEvent, error) {
	return s.hub.Subscribe(ctx), nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func cloneGuest(g *models.Guest) *models.Guest {
	c := g.Clone()
	return &c
}
