package router

import (
	"context"
	"fmt"
	"time"

	"github.com/quickdoodle/doodlestore/pkg/models"
	"github.com/quickdoodle/doodlestore/pkg/store"
)

// Sync pushes every local record to the remote adapter, one direction only.
// The local side is the first local-kind adapter implementing
// [store.SyncStore]; the remote side is the current adapter when it is
// remote, otherwise the first remote-kind adapter in priority order.
//
// Records are pushed individually so that one rejected record does not
// abort the batch; failures are collected per record in the result.
// Delivery is at-least-once: a record pushed successfully on a run that
// later fails elsewhere is pushed again on the next run, and the remote's
// id-keyed upsert makes the repeat harmless.
func (r *Router) Sync(ctx context.Context) (*models.SyncResult, error) {
	source, err := r.syncSource()
	if err != nil {
		return nil, err
	}
	target, err := r.syncTarget()
	if err != nil {
		return nil, err
	}

	records, err := source.PullAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("pull from %s: %w", source.(store.Store).Name(), err)
	}

	result := target.PushAll(ctx, records)
	result.CompletedAt = time.Now()

	r.mu.Lock()
	r.lastSync = &result
	r.lastSyncAt = result.CompletedAt
	r.mu.Unlock()

	r.log.Info().Int("synced", result.SyncedRecords).Int("failed", len(result.Errors)).
		Bool("success", result.Success).Msg("sync completed")
	return &result, nil
}

// LastSync returns the most recent sync result and its completion time, or
// (nil, zero) when no sync has run yet.
func (r *Router) LastSync() (*models.SyncResult, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSync, r.lastSyncAt
}

func (r *Router) syncSource() (store.SyncStore, error) {
	for _, desc := range r.descriptors {
		if desc.Kind != store.KindLocal {
			continue
		}
		if ss, ok := r.adapters[desc.Name].(store.SyncStore); ok {
			return ss, nil
		}
	}
	return nil, fmt.Errorf("%w: no local adapter supports sync", store.ErrCapabilityNotSupported)
}

func (r *Router) syncTarget() (store.SyncStore, error) {
	if current, err := r.Current(); err == nil && current.Kind() == store.KindRemote {
		if ss, ok := current.(store.SyncStore); ok {
			return ss, nil
		}
	}
	for _, desc := range r.descriptors {
		if desc.Kind != store.KindRemote {
			continue
		}
		if ss, ok := r.adapters[desc.Name].(store.SyncStore); ok {
			return ss, nil
		}
	}
	return nil, fmt.Errorf("%w: no remote adapter supports sync", store.ErrCapabilityNotSupported)
}
