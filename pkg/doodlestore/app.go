// Package doodlestore wires the storage layer into a runnable application:
// configuration from the environment, adapter construction, the process-wide
// manager, and a small status/administration HTTP surface.
package doodlestore

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/quickdoodle/doodlestore/pkg/manager"
)

// App holds the application state shared by all commands.
type App struct {
	config Config
	log    zerolog.Logger
	mgr    *manager.Manager
}

// New creates an application from cfg. The manager is built but not yet
// initialized; each command initializes it with the options it needs (the
// run command wants background tasks, one-shot commands do not).
func New(cfg Config, log zerolog.Logger) *App {
	return &App{
		config: cfg,
		log:    log,
		mgr:    &manager.Manager{},
	}
}

// Manager exposes the facade, mainly for tests driving the app directly.
func (a *App) Manager() *manager.Manager { return a.mgr }

func (a *App) initManager(ctx context.Context, background bool) error {
	return a.mgr.Initialize(ctx, manager.Config{
		Descriptors:     Descriptors(a.config),
		Build:           Build,
		FallbackToLocal: a.config.FallbackToLocal,
		BackgroundTasks: background && a.config.BackgroundTasks,
		AutoSwitch:      background && a.config.AutoSwitch,
		HealthInterval:  a.config.HealthInterval,
		SyncInterval:    a.config.SyncInterval,
		Logger:          a.log,
	})
}

// Close tears down the manager and every adapter underneath it.
func (a *App) Close() error {
	return a.mgr.Destroy()
}

// Main parses args, builds the application, and executes the selected
// command. It is the whole program behind cmd/doodlestore, kept callable so
// tests can drive it without building a binary.
func Main(ctx context.Context, args []string) error {
	cmd, err := Parse(args)
	if err != nil {
		return err
	}

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	app := New(cfg, log)
	defer app.Close()

	switch c := cmd.(type) {
	case *RunCommand:
		return app.Run(ctx, c)
	case *SyncCommand:
		return app.Sync(ctx, c)
	case *MigrateCommand:
		return app.Migrate(ctx, c)
	default:
		return fmt.Errorf("unhandled command %q", cmd.Name())
	}
}
