package doodlestore

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/quickdoodle/doodlestore/pkg/store"
	"github.com/quickdoodle/doodlestore/pkg/store/router"
	"github.com/quickdoodle/doodlestore/pkg/store/sqlite"
	"github.com/quickdoodle/doodlestore/pkg/store/surreal"
)

// Descriptor option keys understood by the builder.
const (
	optDir       = "dir"
	optEndpoint  = "endpoint"
	optNamespace = "namespace"
	optDatabase  = "database"
	optUsername  = "username"
	optPassword  = "password"
	optLifetime  = "lifetime" // "process" or "request"
)

// Adapter names registered by Descriptors.
const (
	AdapterSQLite  = "sqlite"
	AdapterSurreal = "surreal"
)

// Descriptors derives the adapter set from cfg. The sqlite adapter is
// always present; the surreal adapter only when an endpoint is configured.
func Descriptors(cfg Config) []store.Descriptor {
	descs := []store.Descriptor{
		{
			Name:     AdapterSQLite,
			Kind:     store.KindLocal,
			Priority: cfg.LocalPriority,
			Enabled:  true,
			Options:  map[string]string{optDir: cfg.DataDir},
		},
	}
	if cfg.SurrealEndpoint != "" {
		descs = append(descs, store.Descriptor{
			Name:     AdapterSurreal,
			Kind:     store.KindRemote,
			Priority: cfg.RemotePriority,
			Enabled:  true,
			Options: map[string]string{
				optEndpoint:  cfg.SurrealEndpoint,
				optNamespace: cfg.SurrealNamespace,
				optDatabase:  cfg.SurrealDatabase,
				optUsername:  cfg.SurrealUsername,
				optPassword:  cfg.SurrealPassword,
			},
		})
	}
	return descs
}

// Build is the router.Builder wiring descriptor names to the concrete
// adapter constructors. Unknown names are a configuration error.
func Build(desc store.Descriptor, log zerolog.Logger) (store.Store, error) {
	switch desc.Name {
	case AdapterSQLite:
		return sqlite.New(desc.Name, desc.Options[optDir], log), nil
	case AdapterSurreal:
		lifetime := surreal.LifetimeProcess
		if desc.Options[optLifetime] == "request" {
			lifetime = surreal.LifetimeRequest
		}
		return surreal.New(desc.Name, surreal.Config{
			Endpoint:  desc.Options[optEndpoint],
			Namespace: desc.Options[optNamespace],
			Database:  desc.Options[optDatabase],
			Username:  desc.Options[optUsername],
			Password:  desc.Options[optPassword],
			Lifetime:  lifetime,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown adapter %s", strconv.Quote(desc.Name))
	}
}

var _ router.Builder = Build
