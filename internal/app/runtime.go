// Package app wires a workspace into a ready engine: config file, database,
// migrations, media storage and the optional translator.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"campaignline/internal/config"
	"campaignline/internal/db"
	"campaignline/internal/engine"
	"campaignline/internal/media"
	"campaignline/internal/migrate"
	"campaignline/internal/translate"
)

// Runtime is an opened workspace. Close releases the database.
type Runtime struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
	Media     media.FSStore
	Logger    *slog.Logger
}

type Options struct {
	Workspace string
	// ConfigPath overrides <workspace>/campaignline.yml.
	ConfigPath string
	Logger     *slog.Logger
}

// Open loads the workspace config, opens and migrates the database and builds the
// engine. A missing config file falls back to defaults.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	store := media.NewFSStore(db.MediaDir(opts.Workspace, cfg.Storage.MediaDir), cfg.Storage.PublicBaseURL)
	e := engine.New(conn, cfg)
	e.Media = store
	e.Logger = logger
	tr, err := translate.NewHTTP(cfg.Translation.Endpoint, time.Duration(cfg.Translation.TimeoutSeconds)*time.Second)
	switch {
	case err == nil:
		e.Translator = tr
	case errors.Is(err, translate.ErrDisabled):
		logger.Debug("translation disabled",
			"event", "translation_disabled",
			"module", "campaignline/app",
			"layer", "bootstrap",
		)
	default:
		conn.Close()
		return nil, err
	}
	return &Runtime{
		Workspace: opts.Workspace,
		Config:    cfg,
		DB:        conn,
		Engine:    e,
		Media:     store,
		Logger:    logger,
	}, nil
}

func (r *Runtime) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// MediaPath is the route the API serves blobs under. A public base URL on another
// host leaves local serving at /media.
func (r *Runtime) MediaPath() string {
	base := strings.TrimRight(r.Config.Storage.PublicBaseURL, "/")
	if strings.HasPrefix(base, "/") && base != "" {
		return base
	}
	return "/media"
}

func loadConfig(opts Options) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.FromFile(opts.ConfigPath)
	}
	return config.LoadOptional(opts.Workspace)
}

// NewLogger builds the process logger. JSON output is for the server; text for
// interactive CLI use.
func NewLogger(w io.Writer, jsonOutput bool, level string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// ParseLevel maps debug, info, warn and error onto slog levels; anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
