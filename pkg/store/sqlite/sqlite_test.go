package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickdoodle/doodlestore/pkg/models"
	"github.com/quickdoodle/doodlestore/pkg/store"
	"github.com/quickdoodle/doodlestore/pkg/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s := sqlite.New("sqlite", t.TempDir(), zerolog.Nop())
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newSession(prompt string, duration float64) *models.GameSession {
	return &models.GameSession{
		ID:              models.NewSessionID(),
		Prompt:          prompt,
		StartedAt:       time.Now().UTC(),
		DurationSeconds: duration,
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Initialize(context.Background()))

	health := s.CheckHealth(context.Background())
	assert.True(t, health.Healthy)
	assert.False(t, health.CheckedAt.IsZero())
}

func TestOperationsBeforeInitialize(t *testing.T) {
	s := sqlite.New("sqlite", t.TempDir(), zerolog.Nop())

	health := s.CheckHealth(context.Background())
	assert.False(t, health.Healthy)

	_, err := s.GetSession(context.Background(), models.NewSessionID())
	assert.ErrorIs(t, err, store.ErrAdapterUnavailable)
}

func TestCloseIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	health := s.CheckHealth(context.Background())
	assert.False(t, health.Healthy)
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	session := newSession("umbrella", 12.5)
	session.Confidence = 0.42
	require.NoError(t, s.CreateSession(ctx, session))

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "umbrella", got.Prompt)
	assert.InDelta(t, 0.42, got.Confidence, 1e-9)

	got.Guess = "umbrella"
	got.Correct = true
	require.NoError(t, s.UpdateSession(ctx, got))

	updated, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.True(t, updated.Correct)

	require.NoError(t, s.DeleteSession(ctx, session.ID))
	gone, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestGetSessionMissingIsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetSession(context.Background(), models.NewSessionID())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateSessionMissing(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateSession(context.Background(), newSession("cloud", 3))
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestDeleteSessionMissingIsNoError(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.DeleteSession(context.Background(), models.NewSessionID()))
}

func TestDeleteSessionsBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []models.SessionID
	for i := 0; i < 3; i++ {
		session := newSession("tree", 1)
		require.NoError(t, s.CreateSession(ctx, session))
		ids = append(ids, session.ID)
	}

	require.NoError(t, s.DeleteSessions(ctx, ids[:2]))

	remaining, err := s.ListSessions(ctx, models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, ids[2], remaining[0].ID)

	assert.NoError(t, s.DeleteSessions(ctx, nil))
}

func TestDeleteSessionsBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := newSession("house", 2)
	old.StartedAt = time.Now().UTC().Add(-48 * time.Hour)
	recent := newSession("boat", 2)
	require.NoError(t, s.CreateSession(ctx, old))
	require.NoError(t, s.CreateSession(ctx, recent))

	n, err := s.DeleteSessionsBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	remaining, err := s.ListSessions(ctx, models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, recent.ID, remaining[0].ID)
}

func TestListSessionsSortAndPage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, d := range []float64{10, 30, 5} {
		require.NoError(t, s.CreateSession(ctx, newSession("star", d)))
	}

	// Skip the longest, take the next two descending.
	got, err := s.ListSessions(ctx, models.ListOptions{
		Limit:     2,
		Offset:    1,
		SortBy:    models.SortByDuration,
		SortOrder: models.SortDesc,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 10.0, got[0].DurationSeconds)
	assert.Equal(t, 5.0, got[1].DurationSeconds)
}

func TestListSessionsFiltersByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := models.NewUserID()
	other := models.NewUserID()

	mine := newSession("fish", 4)
	mine.UserID = &owner
	theirs := newSession("fish", 4)
	theirs.UserID = &other
	orphan := newSession("fish", 4)

	for _, session := range []*models.GameSession{mine, theirs, orphan} {
		require.NoError(t, s.CreateSession(ctx, session))
	}

	got, err := s.ListSessions(ctx, models.ListOptions{UserID: &owner})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, mine.ID, got[0].ID)
}

func TestListSessionsStableOnTies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []models.SessionID
	for i := 0; i < 3; i++ {
		session := newSession("moon", 7)
		require.NoError(t, s.CreateSession(ctx, session))
		ids = append(ids, session.ID)
	}

	got, err := s.ListSessions(ctx, models.ListOptions{
		SortBy:    models.SortByDuration,
		SortOrder: models.SortAsc,
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, session := range got {
		assert.Equal(t, ids[i], session.ID)
	}
}

func TestSessionStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	correct := newSession("apple", 10)
	correct.Guess = "apple"
	correct.Correct = true
	correct.Confidence = 0.9

	wrong := newSession("apple", 20)
	wrong.Guess = "pear"
	wrong.Confidence = 0.3

	abandoned := newSession("apple", 0)

	for _, session := range []*models.GameSession{correct, wrong, abandoned} {
		require.NoError(t, s.CreateSession(ctx, session))
	}

	stats, err := s.SessionStats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalGames)
	assert.Equal(t, 1, stats.SuccessfulGuesses)
	assert.InDelta(t, 50.0, stats.SuccessRate, 1e-9)
	assert.InDelta(t, 0.6, stats.AvgConfidence, 1e-9)
	assert.InDelta(t, 15.0, stats.AvgDurationSeconds, 1e-9)
}

func TestSessionStatsEmpty(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.SessionStats(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalGames)
	assert.Equal(t, 0.0, stats.SuccessRate)
	assert.Equal(t, 0.0, stats.AvgConfidence)
}

func TestSessionStatsByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := models.NewUserID()
	mine := newSession("drum", 5)
	mine.UserID = &owner
	mine.Guess = "drum"
	mine.Correct = true

	other := newSession("drum", 5)
	other.Guess = "flute"

	require.NoError(t, s.CreateSession(ctx, mine))
	require.NoError(t, s.CreateSession(ctx, other))

	stats, err := s.SessionStats(ctx, &owner)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalGames)
	assert.Equal(t, 1, stats.SuccessfulGuesses)
	assert.InDelta(t, 100.0, stats.SuccessRate, 1e-9)
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &models.UserProfile{ID: models.NewUserID(), Name: "sketcher"}
	require.NoError(t, s.CreateUser(ctx, user))

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sketcher", got.Name)

	got.AvatarURL = "https://example.com/a.png"
	require.NoError(t, s.UpdateUser(ctx, got))

	missing, err := s.GetUser(ctx, models.NewUserID())
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = s.UpdateUser(ctx, &models.UserProfile{ID: models.NewUserID(), Name: "ghost"})
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestPullAllAndPushAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := newSession("key", 1)
	second := newSession("lock", 2)
	require.NoError(t, s.CreateSession(ctx, first))
	require.NoError(t, s.CreateSession(ctx, second))

	all, err := s.PullAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)

	// Pushing a batch containing an already-present ID records the failure
	// for that record and keeps going.
	fresh := newSession("door", 3)
	result := s.PushAll(ctx, []*models.GameSession{first, fresh})
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.SyncedRecords)
	assert.Len(t, result.Errors, 1)

	all, err = s.PullAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestBlobCapabilityAbsent(t *testing.T) {
	s := newTestStore(t)

	var iface store.Store = s
	_, ok := iface.(store.BlobStore)
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{"users", "sync"}, store.Capabilities(s))
}
