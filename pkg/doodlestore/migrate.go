package doodlestore

import (
	"context"
	"fmt"

	"github.com/quickdoodle/doodlestore/pkg/store"
)

// Migrate creates or updates the local database schema. Adapter
// initialization applies the schema, so this initializes the manager
// without background tasks and then verifies the local adapter actually
// came up, turning a silently degraded startup into a hard error.
func (a *App) Migrate(ctx context.Context, cmd *MigrateCommand) error {
	if err := a.initManager(ctx, false); err != nil {
		return err
	}

	r, err := a.mgr.Router()
	if err != nil {
		return err
	}
	adapter, ok := r.Adapter(AdapterSQLite)
	if !ok {
		return fmt.Errorf("%w: local adapter not configured", store.ErrNoAdapterAvailable)
	}
	if status := adapter.CheckHealth(ctx); !status.Healthy {
		return fmt.Errorf("%w: %s", store.ErrAdapterUnavailable, status.Err)
	}

	a.log.Info().Msg("local schema up to date")
	return nil
}
