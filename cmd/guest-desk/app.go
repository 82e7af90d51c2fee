package main

import (
	"context"
	"fmt"
	"io"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"guest-checkin/internal/changefeed"
	"guest-checkin/internal/config"
	"guest-checkin/internal/handler"
	"guest-checkin/internal/roster"
	"guest-checkin/internal/storage"
	"guest-checkin/internal/whatsapp"
)

// app holds the wired components for one command run
type app struct {
	store    storage.GuestStore
	postgres *storage.PostgresStore
	redis    *redis.Client
	handler  *handler.CheckinHandler
	whatsapp *whatsapp.Service
	log      zerolog.Logger
}

// openStore opens the configured backend, decorated with the Redis feed when enabled
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{log: log}

	switch cfg.Backend {
	case config.BackendPostgres:
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		a.postgres = pg
		a.store = pg
	default:
		sqlite, err := storage.NewSQLiteStore(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		a.store = sqlite
	}

	if cfg.ChangeFeed == config.ChangeFeedRedis {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.store = changefeed.Wrap(a.store, changefeed.NewFeed(a.redis, cfg.RedisStream, log), log)
	}

	log.Debug().Str("backend", cfg.Backend).Str("changefeed", cfg.ChangeFeed).Msg("Store opened")
	return a, nil
}

// openApp opens the store and loads the roster into a handler
func openApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	a, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a.handler = handler.NewCheckinHandler(a.store, roster.New(), &handler.Config{
		EventName:      cfg.EventName,
		RequiredFields: cfg.RequiredFields,
		ExportColumns:  cfg.ExportColumns,
		ExportDir:      cfg.ExportDir,
		NameField:      cfg.NameField,
	}, log)

	if err := a.handler.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// enableNotifier connects WhatsApp and attaches it to the handler.
// An unlinked device is skipped with a warning; run whatsapp-login first.
func (a *app) enableNotifier(ctx context.Context, cfg *config.Config) error {
	svc, err := newWhatsApp(ctx, cfg, a.log)
	if err != nil {
		return err
	}
	if !svc.IsLinked() {
		a.log.Warn().Msg("WhatsApp device not linked, guest notifications disabled (run whatsapp-login)")
		return nil
	}
	if err := svc.Connect(ctx, io.Discard); err != nil {
		return err
	}
	a.whatsapp = svc
	a.handler.SetNotifier(svc)
	return nil
}

func newWhatsApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*whatsapp.Service, error) {
	return whatsapp.NewService(ctx, &whatsapp.Config{
		DataDir:            cfg.WhatsAppDataDir,
		DefaultCountryCode: cfg.DefaultCountryCode,
		PhoneField:         cfg.PhoneField,
		NameField:          cfg.NameField,
		EventName:          cfg.EventName,
	}, log)
}

func (a *app) Close() {
	if a.whatsapp != nil {
		a.whatsapp.Disconnect()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close store")
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
