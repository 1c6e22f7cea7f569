// Package router owns the set of configured storage adapters and decides
// which one is active.
//
// Construction builds every enabled adapter from its descriptor, initializes
// each one (logging and continuing past individual failures, since other
// adapters may still be usable), then runs the selection algorithm:
//
//  1. Filter descriptors to enabled ones.
//  2. Walk them in ascending priority, preserving descriptor order on equal
//     priorities.
//  3. The first candidate whose health check passes becomes current.
//  4. If none is healthy and fallback-to-local is configured, the first
//     local-kind adapter is selected unconditionally.
//  5. Otherwise selection fails with [store.ErrNoAdapterAvailable].
//
// Candidates are checked sequentially, so selection latency is the sum of
// the health-check latencies of the candidates tried before the winner.
//
// With auto-switch enabled the router runs two independent tickers: a
// health ticker that re-checks only the current adapter and re-runs
// selection when it fails, and a sync ticker that triggers the synchronizer
// when (and only when) the current adapter is remote. Both tickers exist
// only when the router was constructed for a long-lived process; a
// request-scoped construction makes them permanent no-ops.
//
// A failed re-selection keeps the previous current pointer rather than
// clearing it, so in-flight callers surface the provider's own error
// instead of hard-failing on a nil adapter.
package router

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quickdoodle/doodlestore/pkg/models"
	"github.com/quickdoodle/doodlestore/pkg/store"
)

const (
	defaultHealthInterval = 30 * time.Second
	defaultSyncInterval   = 5 * time.Minute
)

// Builder constructs a concrete adapter from its descriptor. The app wires
// the real sqlite/surreal builders; tests inject fakes.
type Builder func(desc store.Descriptor, log zerolog.Logger) (store.Store, error)

// Options configures a Router.
type Options struct {
	Descriptors []store.Descriptor
	Build       Builder

	// FallbackToLocal selects a local adapter unconditionally when no
	// candidate passes its health check.
	FallbackToLocal bool

	// BackgroundTasks permits the auto-switch tickers. Request-scoped
	// processes construct with false so the timers can never start; this
	// is a deliberate construction-time decision, not an environment sniff.
	BackgroundTasks bool

	HealthInterval time.Duration
	SyncInterval   time.Duration

	Logger zerolog.Logger
}

// Router holds the adapter registry and the single current pointer. The
// pointer is the only selection state: one atomic assignment under the
// mutex, never a multi-step mutation, so concurrent readers see either the
// old adapter or the new one, never something in between.
type Router struct {
	opts        Options
	descriptors []store.Descriptor // enabled only, selection order
	adapters    map[string]store.Store
	log         zerolog.Logger

	mu         sync.RWMutex
	current    store.Store
	autoSwitch bool
	stopHealth chan struct{}
	stopSync   chan struct{}
	wg         sync.WaitGroup

	lastSync   *models.SyncResult
	lastSyncAt time.Time
}

// New builds and initializes the enabled adapters and runs the first
// selection. The router is returned even when the initial selection fails;
// the selection error is reported so the caller can decide whether a
// currentless router is acceptable (it is for degraded startup).
func New(ctx context.Context, opts Options) (*Router, error) {
	if opts.Build == nil {
		return nil, fmt.Errorf("router: Build is required")
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = defaultHealthInterval
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = defaultSyncInterval
	}

	r := &Router{
		opts:     opts,
		adapters: make(map[string]store.Store),
		log:      opts.Logger.With().Str("component", "router").Logger(),
	}

	for _, desc := range opts.Descriptors {
		if !desc.Enabled {
			continue
		}
		adapter, err := opts.Build(desc, opts.Logger)
		if err != nil {
			r.log.Warn().Err(err).Str("adapter", desc.Name).Msg("adapter construction failed")
			continue
		}
		if err := adapter.Initialize(ctx); err != nil {
			// One adapter failing to come up must not take the router
			// down; the registry keeps it for later explicit switches.
			r.log.Warn().Err(err).Str("adapter", desc.Name).Msg("adapter initialization failed")
		}
		r.descriptors = append(r.descriptors, desc)
		r.adapters[desc.Name] = adapter
	}

	// Stable sort preserves descriptor order for equal priorities.
	sort.SliceStable(r.descriptors, func(i, j int) bool {
		return r.descriptors[i].Priority < r.descriptors[j].Priority
	})

	if _, err := r.Select(ctx); err != nil {
		return r, err
	}
	return r, nil
}

// Select re-runs the selection algorithm across all registered adapters and
// commits the winner as current. On total failure the previous current
// pointer is left in place and store.ErrNoAdapterAvailable is returned.
func (r *Router) Select(ctx context.Context) (store.Store, error) {
	for _, desc := range r.descriptors {
		adapter := r.adapters[desc.Name]
		status := adapter.CheckHealth(ctx)
		if status.Healthy {
			r.setCurrent(adapter)
			r.log.Info().Str("adapter", desc.Name).Str("kind", string(desc.Kind)).
				Dur("latency", status.Latency).Msg("adapter selected")
			return adapter, nil
		}
		r.log.Debug().Str("adapter", desc.Name).Str("error", status.Err).Msg("candidate unhealthy")
	}

	if r.opts.FallbackToLocal {
		for _, desc := range r.descriptors {
			if desc.Kind != store.KindLocal {
				continue
			}
			adapter := r.adapters[desc.Name]
			r.setCurrent(adapter)
			r.log.Warn().Str("adapter", desc.Name).Msg("no healthy adapter; falling back to local")
			return adapter, nil
		}
	}

	return nil, store.ErrNoAdapterAvailable
}

func (r *Router) setCurrent(adapter store.Store) {
	r.mu.Lock()
	r.current = adapter
	r.mu.Unlock()
}

// Current returns the adapter presently serving all calls, or
// store.ErrNoAdapterAvailable when no selection has ever succeeded.
func (r *Router) Current() (store.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return nil, store.ErrNoAdapterAvailable
	}
	return r.current, nil
}

// Adapter returns a registered adapter by name.
func (r *Router) Adapter(name string) (store.Store, bool) {
	adapter, ok := r.adapters[name]
	return adapter, ok
}

// SwitchTo commits the named adapter as current only if it passes its
// health check; otherwise the pointer is unchanged and
// store.ErrAdapterUnhealthy is returned.
func (r *Router) SwitchTo(ctx context.Context, name string) error {
	adapter, ok := r.adapters[name]
	if !ok {
		return fmt.Errorf("router: no adapter named %q", name)
	}
	status := adapter.CheckHealth(ctx)
	if !status.Healthy {
		return fmt.Errorf("%w: %s: %s", store.ErrAdapterUnhealthy, name, status.Err)
	}
	r.setCurrent(adapter)
	r.log.Info().Str("adapter", name).Msg("switched adapter")
	return nil
}

// SwitchToLocal switches to the first healthy local-kind adapter in
// priority order.
func (r *Router) SwitchToLocal(ctx context.Context) error {
	return r.switchToKind(ctx, store.KindLocal)
}

// SwitchToRemote switches to the first healthy remote-kind adapter in
// priority order, trying lower-priority remote candidates before giving up.
func (r *Router) SwitchToRemote(ctx context.Context) error {
	return r.switchToKind(ctx, store.KindRemote)
}

func (r *Router) switchToKind(ctx context.Context, kind store.Kind) error {
	tried := false
	for _, desc := range r.descriptors {
		if desc.Kind != kind {
			continue
		}
		tried = true
		if err := r.SwitchTo(ctx, desc.Name); err == nil {
			return nil
		}
	}
	if !tried {
		return fmt.Errorf("%w: no %s adapter registered", store.ErrNoAdapterAvailable, kind)
	}
	return fmt.Errorf("%w: no healthy %s adapter", store.ErrAdapterUnhealthy, kind)
}

// EnableAutoSwitch starts the health and sync tickers. It is a no-op when
// the router was constructed without background tasks, or when auto-switch
// is already on.
func (r *Router) EnableAutoSwitch() {
	if !r.opts.BackgroundTasks {
		return
	}

	r.mu.Lock()
	if r.autoSwitch {
		r.mu.Unlock()
		return
	}
	r.autoSwitch = true
	r.stopHealth = make(chan struct{})
	r.stopSync = make(chan struct{})
	stopHealth, stopSync := r.stopHealth, r.stopSync
	r.mu.Unlock()

	r.wg.Add(2)
	go r.healthLoop(stopHealth)
	go r.syncLoop(stopSync)
	r.log.Info().Dur("health_interval", r.opts.HealthInterval).
		Dur("sync_interval", r.opts.SyncInterval).Msg("auto-switch enabled")
}

// DisableAutoSwitch stops both tickers and waits for their callbacks to
// finish. In-flight callbacks are not aborted, only never rescheduled.
func (r *Router) DisableAutoSwitch() {
	r.mu.Lock()
	if !r.autoSwitch {
		r.mu.Unlock()
		return
	}
	r.autoSwitch = false
	close(r.stopHealth)
	close(r.stopSync)
	r.stopHealth, r.stopSync = nil, nil
	r.mu.Unlock()

	r.wg.Wait()
	r.log.Info().Msg("auto-switch disabled")
}

// AutoSwitchEnabled reports whether the tickers are running.
func (r *Router) AutoSwitchEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.autoSwitch
}

// healthLoop re-checks only the current adapter and re-runs selection when
// it fails. A failed re-selection keeps the stale pointer; the next
// operation surfaces the provider's own error.
func (r *Router) healthLoop(stop <-chan struct{}) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.opts.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			current, err := r.Current()
			if err != nil {
				continue
			}
			status := current.CheckHealth(context.Background())
			if status.Healthy {
				continue
			}
			r.log.Warn().Str("adapter", current.Name()).Str("error", status.Err).
				Msg("current adapter unhealthy; re-selecting")
			if _, err := r.Select(context.Background()); err != nil {
				r.log.Warn().Err(err).Msg("re-selection failed; keeping current adapter")
			}
		}
	}
}

// syncLoop triggers the synchronizer while the current adapter is remote.
func (r *Router) syncLoop(stop <-chan struct{}) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.opts.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			current, err := r.Current()
			if err != nil || current.Kind() != store.KindRemote {
				continue
			}
			if _, err := r.Sync(context.Background()); err != nil {
				r.log.Warn().Err(err).Msg("scheduled sync failed")
			}
		}
	}
}

// Close disables auto-switch and closes every registered adapter, keeping
// the first error.
func (r *Router) Close() error {
	r.DisableAutoSwitch()
	var firstErr error
	for name, adapter := range r.adapters {
		if err := adapter.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", name, err)
		}
	}
	return firstErr
}
