package main

import (
	"fmt"

	"github.com/franz/top-movies/internal/config"
	"github.com/franz/top-movies/internal/library"
	"github.com/franz/top-movies/internal/report"
	"github.com/franz/top-movies/internal/store"
	"github.com/franz/top-movies/internal/tmdb"
	"github.com/franz/top-movies/internal/util"
	"github.com/spf13/viper"
)

// app bundles what every command needs once configuration is loaded
type app struct {
	cfg    *config.Config
	store  *store.Store
	events *report.EventLogger
	lib    *library.Service
}

// loadConfig reads and validates the process configuration
func loadConfig() (*config.Config, error) {
	cfg := config.Load(viper.GetViper())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp opens the store and event log and wires the library service.
// withProvider also requires catalog credentials.
func openApp(withProvider bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	var provider library.Provider
	if withProvider {
		if err := cfg.ValidateProvider(); err != nil {
			return nil, err
		}
		provider = tmdb.NewClient(cfg.TMDB())
	}

	st, err := store.Open(cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	events, err := report.NewEventLogger(cfg.EventLogDir, report.LevelInfo)
	if err != nil {
		util.WarnLog("Event log disabled: %v", err)
		events = report.NullLogger()
	}

	lib := library.New(st, provider, library.Options{
		PersistRanking: cfg.PersistRanking,
		Events:         events,
	})

	return &app{cfg: cfg, store: st, events: events, lib: lib}, nil
}

func (a *app) Close() {
	a.events.Close()
	a.store.Close()
}
