package doodlestore

import (
	"context"
	"fmt"
)

// Sync performs a single local-to-remote push and reports the outcome.
// Individual record failures are logged and counted but do not fail the
// command; only a sync that cannot run at all (no remote adapter, pull
// failure) returns an error.
func (a *App) Sync(ctx context.Context, cmd *SyncCommand) error {
	if a.config.SurrealEndpoint == "" {
		return fmt.Errorf("sync requires DOODLE_SURREAL_ENDPOINT to be set")
	}
	if err := a.initManager(ctx, false); err != nil {
		return err
	}

	result, err := a.mgr.Sync(ctx)
	if err != nil {
		return err
	}

	for _, recErr := range result.Errors {
		a.log.Warn().Str("error", recErr).Msg("record sync failed")
	}
	a.log.Info().Int("synced", result.SyncedRecords).Int("failed", len(result.Errors)).
		Msg("sync finished")
	return nil
}
