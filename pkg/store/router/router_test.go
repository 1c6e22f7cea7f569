package router_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickdoodle/doodlestore/pkg/models"
	"github.com/quickdoodle/doodlestore/pkg/store"
	"github.com/quickdoodle/doodlestore/pkg/store/router"
)

// fakeStore is an in-memory adapter with controllable health, implementing
// the full contract plus the sync capability.
type fakeStore struct {
	name string
	kind store.Kind

	mu       sync.Mutex
	healthy  bool
	closed   bool
	sessions map[models.SessionID]*models.GameSession
	order    []models.SessionID
	pushErr  map[models.SessionID]error
}

func newFakeStore(name string, kind store.Kind) *fakeStore {
	return &fakeStore{
		name:     name,
		kind:     kind,
		healthy:  true,
		sessions: make(map[models.SessionID]*models.GameSession),
		pushErr:  make(map[models.SessionID]error),
	}
}

func (f *fakeStore) setHealthy(h bool) {
	f.mu.Lock()
	f.healthy = h
	f.mu.Unlock()
}

func (f *fakeStore) Initialize(ctx context.Context) error { return nil }

func (f *fakeStore) CheckHealth(ctx context.Context) models.HealthStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := models.HealthStatus{Healthy: f.healthy, CheckedAt: time.Now()}
	if !f.healthy {
		st.Err = "health check failed"
	}
	return st
}

func (f *fakeStore) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) CreateSession(ctx context.Context, s *models.GameSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[s.ID]; !ok {
		f.order = append(f.order, s.ID)
	}
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) GetSession(ctx context.Context, id models.SessionID) (*models.GameSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id], nil
}

func (f *fakeStore) UpdateSession(ctx context.Context, s *models.GameSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[s.ID]; !ok {
		return store.ErrRecordNotFound
	}
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) DeleteSession(ctx context.Context, id models.SessionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) DeleteSessions(ctx context.Context, ids []models.SessionID) error {
	for _, id := range ids {
		if err := f.DeleteSession(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, s := range f.sessions {
		if s.StartedAt.Before(cutoff) {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListSessions(ctx context.Context, opts models.ListOptions) ([]*models.GameSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.GameSession
	for _, id := range f.order {
		if s, ok := f.sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) SessionStats(ctx context.Context, userID *models.UserID) (*models.SessionStats, error) {
	return &models.SessionStats{}, nil
}

func (f *fakeStore) Name() string     { return f.name }
func (f *fakeStore) Kind() store.Kind { return f.kind }

func (f *fakeStore) PullAll(ctx context.Context) ([]*models.GameSession, error) {
	return f.ListSessions(ctx, models.ListOptions{})
}

func (f *fakeStore) PushAll(ctx context.Context, sessions []*models.GameSession) models.SyncResult {
	result := models.SyncResult{Success: true}
	for _, s := range sessions {
		f.mu.Lock()
		err := f.pushErr[s.ID]
		f.mu.Unlock()
		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("session %s: %v", s.ID, err))
			continue
		}
		if err := f.CreateSession(ctx, s); err != nil {
			result.Success = false
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.SyncedRecords++
	}
	return result
}

var (
	_ store.Store     = (*fakeStore)(nil)
	_ store.SyncStore = (*fakeStore)(nil)
)

func buildFrom(fakes map[string]*fakeStore) router.Builder {
	return func(desc store.Descriptor, log zerolog.Logger) (store.Store, error) {
		f, ok := fakes[desc.Name]
		if !ok {
			return nil, fmt.Errorf("no fake named %q", desc.Name)
		}
		return f, nil
	}
}

func twoAdapterOptions(fakes map[string]*fakeStore) router.Options {
	return router.Options{
		Descriptors: []store.Descriptor{
			{Name: "local", Kind: store.KindLocal, Priority: 2, Enabled: true},
			{Name: "cloud", Kind: store.KindRemote, Priority: 1, Enabled: true},
		},
		Build:  buildFrom(fakes),
		Logger: zerolog.Nop(),
	}
}

func twoFakes() map[string]*fakeStore {
	return map[string]*fakeStore{
		"local": newFakeStore("local", store.KindLocal),
		"cloud": newFakeStore("cloud", store.KindRemote),
	}
}

func TestSelectPrefersLowerPriority(t *testing.T) {
	fakes := twoFakes()
	r, err := router.New(context.Background(), twoAdapterOptions(fakes))
	require.NoError(t, err)
	defer r.Close()

	current, err := r.Current()
	require.NoError(t, err)
	assert.Equal(t, "cloud", current.Name())
}

func TestSelectSkipsUnhealthyCandidate(t *testing.T) {
	fakes := twoFakes()
	fakes["cloud"].setHealthy(false)

	r, err := router.New(context.Background(), twoAdapterOptions(fakes))
	require.NoError(t, err)
	defer r.Close()

	current, err := r.Current()
	require.NoError(t, err)
	assert.Equal(t, "local", current.Name())
}

func TestSelectIgnoresDisabledAdapter(t *testing.T) {
	fakes := twoFakes()
	opts := twoAdapterOptions(fakes)
	opts.Descriptors[1].Enabled = false // cloud

	r, err := router.New(context.Background(), opts)
	require.NoError(t, err)
	defer r.Close()

	current, err := r.Current()
	require.NoError(t, err)
	assert.Equal(t, "local", current.Name())

	_, ok := r.Adapter("cloud")
	assert.False(t, ok)
}

func TestSelectFallsBackToLocal(t *testing.T) {
	fakes := twoFakes()
	fakes["local"].setHealthy(false)
	fakes["cloud"].setHealthy(false)

	opts := twoAdapterOptions(fakes)
	opts.FallbackToLocal = true

	r, err := router.New(context.Background(), opts)
	require.NoError(t, err)
	defer r.Close()

	current, err := r.Current()
	require.NoError(t, err)
	assert.Equal(t, "local", current.Name())
}

func TestSelectFailsWithNoHealthyAdapter(t *testing.T) {
	fakes := twoFakes()
	fakes["local"].setHealthy(false)
	fakes["cloud"].setHealthy(false)

	r, err := router.New(context.Background(), twoAdapterOptions(fakes))
	require.ErrorIs(t, err, store.ErrNoAdapterAvailable)
	require.NotNil(t, r)
	defer r.Close()

	_, err = r.Current()
	assert.ErrorIs(t, err, store.ErrNoAdapterAvailable)
}

func TestSelectKeepsStalePointerOnFailure(t *testing.T) {
	fakes := twoFakes()
	r, err := router.New(context.Background(), twoAdapterOptions(fakes))
	require.NoError(t, err)
	defer r.Close()

	fakes["local"].setHealthy(false)
	fakes["cloud"].setHealthy(false)

	_, err = r.Select(context.Background())
	require.ErrorIs(t, err, store.ErrNoAdapterAvailable)

	// The previous selection stays in place so callers surface the
	// provider's own error rather than a nil adapter.
	current, err := r.Current()
	require.NoError(t, err)
	assert.Equal(t, "cloud", current.Name())
}

func TestSwitchToUnhealthyIsRejected(t *testing.T) {
	fakes := twoFakes()
	r, err := router.New(context.Background(), twoAdapterOptions(fakes))
	require.NoError(t, err)
	defer r.Close()

	fakes["local"].setHealthy(false)
	err = r.SwitchTo(context.Background(), "local")
	require.ErrorIs(t, err, store.ErrAdapterUnhealthy)

	current, err := r.Current()
	require.NoError(t, err)
	assert.Equal(t, "cloud", current.Name())
}

func TestSwitchToUnknownAdapter(t *testing.T) {
	fakes := twoFakes()
	r, err := router.New(context.Background(), twoAdapterOptions(fakes))
	require.NoError(t, err)
	defer r.Close()

	err = r.SwitchTo(context.Background(), "tape-drive")
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrAdapterUnhealthy)
}

func TestSwitchToKind(t *testing.T) {
	fakes := twoFakes()
	r, err := router.New(context.Background(), twoAdapterOptions(fakes))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.SwitchToLocal(context.Background()))
	current, _ := r.Current()
	assert.Equal(t, "local", current.Name())

	require.NoError(t, r.SwitchToRemote(context.Background()))
	current, _ = r.Current()
	assert.Equal(t, "cloud", current.Name())

	fakes["cloud"].setHealthy(false)
	err = r.SwitchToRemote(context.Background())
	assert.ErrorIs(t, err, store.ErrAdapterUnhealthy)
}

func TestSyncPushesLocalToRemote(t *testing.T) {
	fakes := twoFakes()
	r, err := router.New(context.Background(), twoAdapterOptions(fakes))
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()
	var ids []models.SessionID
	for i := 0; i < 3; i++ {
		s := &models.GameSession{ID: models.NewSessionID(), Prompt: "cat", StartedAt: time.Now()}
		require.NoError(t, fakes["local"].CreateSession(ctx, s))
		ids = append(ids, s.ID)
	}
	fakes["cloud"].pushErr[ids[1]] = errors.New("write rejected")

	result, err := r.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SyncedRecords)
	assert.Len(t, result.Errors, 1)
	assert.False(t, result.Success)

	last, at := r.LastSync()
	require.NotNil(t, last)
	assert.Equal(t, result.SyncedRecords, last.SyncedRecords)
	assert.False(t, at.IsZero())
}

func TestSyncRequiresRemoteAdapter(t *testing.T) {
	fakes := map[string]*fakeStore{"local": newFakeStore("local", store.KindLocal)}
	r, err := router.New(context.Background(), router.Options{
		Descriptors: []store.Descriptor{
			{Name: "local", Kind: store.KindLocal, Priority: 1, Enabled: true},
		},
		Build:  buildFrom(fakes),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Sync(context.Background())
	assert.ErrorIs(t, err, store.ErrCapabilityNotSupported)
}

func TestAutoSwitchRequiresBackgroundTasks(t *testing.T) {
	fakes := twoFakes()
	r, err := router.New(context.Background(), twoAdapterOptions(fakes))
	require.NoError(t, err)
	defer r.Close()

	r.EnableAutoSwitch()
	assert.False(t, r.AutoSwitchEnabled())
}

func TestAutoSwitchReselectsOnUnhealthyCurrent(t *testing.T) {
	fakes := twoFakes()
	opts := twoAdapterOptions(fakes)
	opts.BackgroundTasks = true
	opts.HealthInterval = 10 * time.Millisecond
	opts.SyncInterval = time.Hour

	r, err := router.New(context.Background(), opts)
	require.NoError(t, err)
	defer r.Close()

	r.EnableAutoSwitch()
	require.True(t, r.AutoSwitchEnabled())

	fakes["cloud"].setHealthy(false)
	require.Eventually(t, func() bool {
		current, err := r.Current()
		return err == nil && current.Name() == "local"
	}, time.Second, 5*time.Millisecond)

	r.DisableAutoSwitch()
	assert.False(t, r.AutoSwitchEnabled())

	// Once disabled, a recovered higher-priority adapter is not picked up.
	fakes["cloud"].setHealthy(true)
	time.Sleep(50 * time.Millisecond)
	current, err := r.Current()
	require.NoError(t, err)
	assert.Equal(t, "local", current.Name())
}

func TestSyncTimerOnlyFiresOnRemote(t *testing.T) {
	fakes := twoFakes()
	opts := twoAdapterOptions(fakes)
	opts.BackgroundTasks = true
	opts.HealthInterval = time.Hour
	opts.SyncInterval = 10 * time.Millisecond

	r, err := router.New(context.Background(), opts)
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()
	session := &models.GameSession{ID: models.NewSessionID(), Prompt: "kite", StartedAt: time.Now()}
	require.NoError(t, fakes["local"].CreateSession(ctx, session))

	require.NoError(t, r.SwitchToLocal(ctx))
	r.EnableAutoSwitch()

	// With a local adapter current the ticker must not trigger a sync.
	time.Sleep(100 * time.Millisecond)
	last, at := r.LastSync()
	assert.Nil(t, last)
	assert.True(t, at.IsZero())
	remote, err := fakes["cloud"].ListSessions(ctx, models.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, remote)

	// Switching to the remote lets the next tick sync.
	require.NoError(t, r.SwitchToRemote(ctx))
	require.Eventually(t, func() bool {
		last, _ := r.LastSync()
		return last != nil && last.SyncedRecords == 1
	}, time.Second, 5*time.Millisecond)

	r.DisableAutoSwitch()
	remote, err = fakes["cloud"].ListSessions(ctx, models.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, remote, 1)
}

func TestStatusSnapshot(t *testing.T) {
	fakes := twoFakes()
	fakes["local"].setHealthy(false)

	r, err := router.New(context.Background(), twoAdapterOptions(fakes))
	require.NoError(t, err)
	defer r.Close()

	status := r.Status(context.Background())
	assert.Equal(t, "cloud", status.CurrentAdapter)
	assert.Equal(t, store.KindRemote, status.CurrentKind)
	assert.False(t, status.AutoSwitch)
	require.Len(t, status.Adapters, 2)

	// Adapters are reported in priority order.
	assert.Equal(t, "cloud", status.Adapters[0].Name)
	assert.True(t, status.Adapters[0].Current)
	assert.True(t, status.Adapters[0].Health.Healthy)
	assert.Contains(t, status.Adapters[0].Capabilities, "sync")

	assert.Equal(t, "local", status.Adapters[1].Name)
	assert.False(t, status.Adapters[1].Current)
	assert.False(t, status.Adapters[1].Health.Healthy)
}

func TestCloseClosesAllAdapters(t *testing.T) {
	fakes := twoFakes()
	r, err := router.New(context.Background(), twoAdapterOptions(fakes))
	require.NoError(t, err)

	require.NoError(t, r.Close())
	for name, f := range fakes {
		f.mu.Lock()
		closed := f.closed
		f.mu.Unlock()
		assert.True(t, closed, "adapter %s not closed", name)
	}
}
