// Package manager exposes doodlestore as a process-wide facade. A single
// [Manager] is initialized once per process with an explicit configuration
// and owns the router underneath; all session operations delegate to
// whichever adapter the router currently selects.
//
// Initialization is deliberately one-shot: the first Initialize builds the
// router under the handle's mutex, later calls are no-ops, and only Destroy
// resets the handle (which tests rely on for isolation). A router whose
// initial selection failed still counts as initialized, so callers in
// degraded environments get the provider's error from each operation
// instead of a blanket "not initialized".
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quickdoodle/doodlestore/pkg/models"
	"github.com/quickdoodle/doodlestore/pkg/store"
	"github.com/quickdoodle/doodlestore/pkg/store/router"
)

// ErrNotInitialized is returned by every operation before Initialize has
// been called.
var ErrNotInitialized = errors.New("manager: not initialized")

// Config carries everything Initialize needs to build the router.
type Config struct {
	Descriptors     []store.Descriptor
	Build           router.Builder
	FallbackToLocal bool
	BackgroundTasks bool
	AutoSwitch      bool
	HealthInterval  time.Duration
	SyncInterval    time.Duration
	Logger          zerolog.Logger
}

// Manager is the facade handle. The zero value is valid and uninitialized.
// The mutex plus the initialized flag is the one-time-init guard: two
// near-simultaneous Initialize callers cannot each build a router, and
// Destroy resets the flag under the same lock.
type Manager struct {
	mu          sync.RWMutex
	initialized bool
	router      *router.Router
	log         zerolog.Logger
}

// Initialize builds the router from cfg. The first call wins; repeat calls
// are no-ops returning nil once initialization happened. A selection
// failure during router construction is logged and tolerated: the manager
// is still considered initialized so operations surface
// [store.ErrNoAdapterAvailable] individually.
func (m *Manager) Initialize(ctx context.Context, cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	log := cfg.Logger.With().Str("component", "manager").Logger()
	r, err := router.New(ctx, router.Options{
		Descriptors:     cfg.Descriptors,
		Build:           cfg.Build,
		FallbackToLocal: cfg.FallbackToLocal,
		BackgroundTasks: cfg.BackgroundTasks,
		HealthInterval:  cfg.HealthInterval,
		SyncInterval:    cfg.SyncInterval,
		Logger:          cfg.Logger,
	})
	if err != nil {
		if r == nil {
			return err
		}
		log.Warn().Err(err).Msg("initialized without a selected adapter")
	}

	m.router = r
	m.log = log
	m.initialized = true

	if cfg.AutoSwitch {
		r.EnableAutoSwitch()
	}
	return nil
}

// Destroy stops background tasks, closes every adapter, and resets the
// handle so Initialize can run again.
func (m *Manager) Destroy() error {
	m.mu.Lock()
	r := m.router
	m.router = nil
	m.initialized = false
	m.mu.Unlock()

	if r == nil {
		return nil
	}
	return r.Close()
}

// Router exposes the underlying router for status surfaces.
func (m *Manager) Router() (*router.Router, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.router == nil {
		return nil, ErrNotInitialized
	}
	return m.router, nil
}

// Current reports the name and kind of the adapter presently serving calls.
func (m *Manager) Current() (string, store.Kind, error) {
	s, err := m.current()
	if err != nil {
		return "", "", err
	}
	return s.Name(), s.Kind(), nil
}

func (m *Manager) current() (store.Store, error) {
	r, err := m.Router()
	if err != nil {
		return nil, err
	}
	return r.Current()
}

// CreateSession persists a new game session on the current adapter.
func (m *Manager) CreateSession(ctx context.Context, session *models.GameSession) error {
	s, err := m.current()
	if err != nil {
		return err
	}
	return s.CreateSession(ctx, session)
}

// GetSession fetches a session by ID; missing sessions yield (nil, nil).
func (m *Manager) GetSession(ctx context.Context, id models.SessionID) (*models.GameSession, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return s.GetSession(ctx, id)
}

// UpdateSession rewrites an existing session.
func (m *Manager) UpdateSession(ctx context.Context, session *models.GameSession) error {
	s, err := m.current()
	if err != nil {
		return err
	}
	return s.UpdateSession(ctx, session)
}

// DeleteSession removes a session by ID.
func (m *Manager) DeleteSession(ctx context.Context, id models.SessionID) error {
	s, err := m.current()
	if err != nil {
		return err
	}
	return s.DeleteSession(ctx, id)
}

// DeleteSessions removes a batch of sessions by ID.
func (m *Manager) DeleteSessions(ctx context.Context, ids []models.SessionID) error {
	s, err := m.current()
	if err != nil {
		return err
	}
	return s.DeleteSessions(ctx, ids)
}

// DeleteSessionsBefore removes sessions started before cutoff and reports
// how many were removed.
func (m *Manager) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s, err := m.current()
	if err != nil {
		return 0, err
	}
	return s.DeleteSessionsBefore(ctx, cutoff)
}

// ListSessions queries sessions with filtering, sorting, and pagination.
func (m *Manager) ListSessions(ctx context.Context, opts models.ListOptions) ([]*models.GameSession, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return s.ListSessions(ctx, opts)
}

// SessionStats aggregates completed sessions, optionally scoped to a user.
func (m *Manager) SessionStats(ctx context.Context, userID *models.UserID) (*models.SessionStats, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return s.SessionStats(ctx, userID)
}

// CreateUser stores a player profile, failing with
// [store.ErrCapabilityNotSupported] when the current adapter has no user
// capability.
func (m *Manager) CreateUser(ctx context.Context, user *models.UserProfile) error {
	s, err := m.current()
	if err != nil {
		return err
	}
	us, ok := s.(store.UserStore)
	if !ok {
		return fmt.Errorf("%w: %s has no user capability", store.ErrCapabilityNotSupported, s.Name())
	}
	return us.CreateUser(ctx, user)
}

// GetUser fetches a player profile by ID.
func (m *Manager) GetUser(ctx context.Context, id models.UserID) (*models.UserProfile, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	us, ok := s.(store.UserStore)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no user capability", store.ErrCapabilityNotSupported, s.Name())
	}
	return us.GetUser(ctx, id)
}

// UpdateUser rewrites a player profile.
func (m *Manager) UpdateUser(ctx context.Context, user *models.UserProfile) error {
	s, err := m.current()
	if err != nil {
		return err
	}
	us, ok := s.(store.UserStore)
	if !ok {
		return fmt.Errorf("%w: %s has no user capability", store.ErrCapabilityNotSupported, s.Name())
	}
	return us.UpdateUser(ctx, user)
}

// UploadDrawing stores a drawing payload and returns its reference,
// failing with [store.ErrCapabilityNotSupported] when the current adapter
// keeps drawings inline instead.
func (m *Manager) UploadDrawing(ctx context.Context, id models.SessionID, data []byte) (string, error) {
	s, err := m.current()
	if err != nil {
		return "", err
	}
	bs, ok := s.(store.BlobStore)
	if !ok {
		return "", fmt.Errorf("%w: %s has no blob capability", store.ErrCapabilityNotSupported, s.Name())
	}
	return bs.UploadDrawing(ctx, id, data)
}

// DrawingURL resolves the stored reference for a session's drawing.
func (m *Manager) DrawingURL(ctx context.Context, id models.SessionID) (string, error) {
	s, err := m.current()
	if err != nil {
		return "", err
	}
	bs, ok := s.(store.BlobStore)
	if !ok {
		return "", fmt.Errorf("%w: %s has no blob capability", store.ErrCapabilityNotSupported, s.Name())
	}
	return bs.DrawingURL(ctx, id)
}

// DeleteDrawing removes a session's drawing payload.
func (m *Manager) DeleteDrawing(ctx context.Context, id models.SessionID) error {
	s, err := m.current()
	if err != nil {
		return err
	}
	bs, ok := s.(store.BlobStore)
	if !ok {
		return fmt.Errorf("%w: %s has no blob capability", store.ErrCapabilityNotSupported, s.Name())
	}
	return bs.DeleteDrawing(ctx, id)
}

// CheckHealth runs a health check against the current adapter.
func (m *Manager) CheckHealth(ctx context.Context) (models.HealthStatus, error) {
	s, err := m.current()
	if err != nil {
		return models.HealthStatus{}, err
	}
	return s.CheckHealth(ctx), nil
}

// Status snapshots the router state including per-adapter health.
func (m *Manager) Status(ctx context.Context) (router.Status, error) {
	r, err := m.Router()
	if err != nil {
		return router.Status{}, err
	}
	return r.Status(ctx), nil
}

// SwitchTo makes the named adapter current if it is healthy.
func (m *Manager) SwitchTo(ctx context.Context, name string) error {
	r, err := m.Router()
	if err != nil {
		return err
	}
	return r.SwitchTo(ctx, name)
}

// SwitchToLocal makes the best local adapter current.
func (m *Manager) SwitchToLocal(ctx context.Context) error {
	r, err := m.Router()
	if err != nil {
		return err
	}
	return r.SwitchToLocal(ctx)
}

// SwitchToRemote makes the best remote adapter current.
func (m *Manager) SwitchToRemote(ctx context.Context) error {
	r, err := m.Router()
	if err != nil {
		return err
	}
	return r.SwitchToRemote(ctx)
}

// Sync runs a one-shot local-to-remote synchronization.
func (m *Manager) Sync(ctx context.Context) (*models.SyncResult, error) {
	r, err := m.Router()
	if err != nil {
		return nil, err
	}
	return r.Sync(ctx)
}

// EnableAutoSwitch starts the router's background tickers.
func (m *Manager) EnableAutoSwitch() error {
	r, err := m.Router()
	if err != nil {
		return err
	}
	r.EnableAutoSwitch()
	return nil
}

// DisableAutoSwitch stops the router's background tickers.
func (m *Manager) DisableAutoSwitch() error {
	r, err := m.Router()
	if err != nil {
		return err
	}
	r.DisableAutoSwitch()
	return nil
}
