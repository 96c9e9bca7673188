package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"wadigest/pkg/bus"
	"wadigest/pkg/config"
	"wadigest/pkg/greenapi"
	"wadigest/pkg/message"
	"wadigest/pkg/provider"
	"wadigest/pkg/store"
	"wadigest/pkg/summary"
)

// app holds the collaborators shared by the summary commands.
type app struct {
	cfg        *config.Config
	greenAPI   *greenapi.Client
	normalizer *message.Normalizer
	provider   provider.Client
	store      *store.Store
	bus        *bus.MessageBus
	summaries  *summary.Service
}

func newNormalizer(cfg *config.Config) (*message.Normalizer, error) {
	normalizer, err := message.NewFromConfig(cfg.Normalizer, message.WithObserver(message.LogObserver(slog.Default())))
	if err != nil {
		return nil, fmt.Errorf("configure normalizer: %w", err)
	}
	return normalizer, nil
}

// openApp wires the Green API client, normalizer, provider, store and
// summary service from cfg. Callers must call close.
func openApp(cfg *config.Config) (*app, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Summary.Validate(); err != nil {
		return nil, fmt.Errorf("summary config: %w", err)
	}

	greenAPI, err := greenapi.New(cfg.GreenAPI)
	if err != nil {
		return nil, err
	}
	normalizer, err := newNormalizer(cfg)
	if err != nil {
		return nil, err
	}
	client, err := provider.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize provider: %w", err)
	}
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	loc, err := summaryLocation(cfg.Scheduler.Timezone)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	messageBus := bus.NewMessageBus()
	summaries, err := summary.New(cfg.Summary, summary.Deps{
		History:    greenAPI,
		Normalizer: normalizer,
		Summarizer: client,
		Sender:     greenAPI,
		Repository: db,
		Archive:    db,
		Bus:        messageBus,
	}, summary.WithLocation(loc))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &app{
		cfg:        cfg,
		greenAPI:   greenAPI,
		normalizer: normalizer,
		provider:   client,
		store:      db,
		bus:        messageBus,
		summaries:  summaries,
	}, nil
}

func (a *app) close() {
	a.bus.Close()
	if err := a.store.Close(); err != nil {
		slog.Default().Warn("Failed to close store", "error", err)
	}
}

// summaryLocation is the zone used for prompt timestamps.
func summaryLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}
