package doodlestore

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the application configuration, populated from the environment.
// Every knob has a working default so `doodlestore run` comes up against a
// local sqlite file with no environment at all; the SurrealDB adapter only
// activates when DOODLE_SURREAL_ENDPOINT is set.
type Config struct {
	// DataDir holds the sqlite database file.
	DataDir string `env:"DOODLE_DATA_DIR" envDefault:"./data"`

	SurrealEndpoint  string `env:"DOODLE_SURREAL_ENDPOINT"`
	SurrealNamespace string `env:"DOODLE_SURREAL_NAMESPACE" envDefault:"quickdoodle"`
	SurrealDatabase  string `env:"DOODLE_SURREAL_DATABASE" envDefault:"doodlestore"`
	SurrealUsername  string `env:"DOODLE_SURREAL_USERNAME" envDefault:"root"`
	SurrealPassword  string `env:"DOODLE_SURREAL_PASSWORD" envDefault:"root"`

	// LocalPriority and RemotePriority order adapter selection; lower wins.
	LocalPriority  int `env:"DOODLE_LOCAL_PRIORITY" envDefault:"10"`
	RemotePriority int `env:"DOODLE_REMOTE_PRIORITY" envDefault:"1"`

	FallbackToLocal bool          `env:"DOODLE_FALLBACK_TO_LOCAL" envDefault:"true"`
	BackgroundTasks bool          `env:"DOODLE_BACKGROUND_TASKS" envDefault:"true"`
	AutoSwitch      bool          `env:"DOODLE_AUTO_SWITCH" envDefault:"true"`
	HealthInterval  time.Duration `env:"DOODLE_HEALTH_INTERVAL" envDefault:"30s"`
	SyncInterval    time.Duration `env:"DOODLE_SYNC_INTERVAL" envDefault:"5m"`

	ListenAddr string `env:"DOODLE_LISTEN_ADDR" envDefault:":8090"`
	LogLevel   string `env:"DOODLE_LOG_LEVEL" envDefault:"info"`
}

// LoadConfig reads Config from the process environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
