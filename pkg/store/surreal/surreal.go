// Package surreal provides the remote implementation of
// [github.com/quickdoodle/doodlestore/pkg/store.Store] backed by a SurrealDB
// instance reached over WebSocket.
//
// The connection is configured with the surrealcbor codec so that time.Time
// values and typed record IDs marshal in the format SurrealDB expects;
// default Go marshaling produces datetimes the server rejects.
//
// The adapter has two connection lifetimes, chosen explicitly at
// construction rather than sniffed from the environment:
//
//   - [LifetimeProcess]: one authenticated connection is dialed during
//     Initialize and cached for the life of the process. This is the mode
//     long-lived servers use.
//   - [LifetimeRequest]: every operation dials, authenticates, and closes
//     its own connection. Request-scoped processes use this because the
//     credential scope can differ per request, so a cached client would
//     leak one caller's auth into another's.
//
// The adapter supports all three optional capabilities: user profiles,
// drawing blob storage (a drawings table keyed by session ID), and bulk
// sync.
package surreal

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/quickdoodle/doodlestore/pkg/models"
	"github.com/quickdoodle/doodlestore/pkg/store"
)

// Lifetime selects how the adapter manages its SurrealDB connection.
type Lifetime int

const (
	// LifetimeProcess caches one connection across all calls.
	LifetimeProcess Lifetime = iota
	// LifetimeRequest dials per call and closes afterwards.
	LifetimeRequest
)

// Config carries the provider settings for one SurrealDB endpoint.
type Config struct {
	// Endpoint is the WebSocket RPC URL, e.g. ws://localhost:8000/rpc.
	Endpoint  string
	Namespace string
	Database  string
	Username  string
	Password  string
	Lifetime  Lifetime
	// Identity, when set, attributes owner-less session writes to the
	// current caller. Consumed only; credentials stay external.
	Identity store.IdentityResolver
}

var (
	_ store.Store     = (*Store)(nil)
	_ store.UserStore = (*Store)(nil)
	_ store.BlobStore = (*Store)(nil)
	_ store.SyncStore = (*Store)(nil)
)

// Store implements store.Store against a remote SurrealDB.
type Store struct {
	name string
	cfg  Config
	log  zerolog.Logger

	mu sync.Mutex
	db *surrealdb.DB // cached connection, LifetimeProcess only
}

// New creates an uninitialized remote store.
func New(name string, cfg Config, log zerolog.Logger) *Store {
	return &Store{
		name: name,
		cfg:  cfg,
		log:  log.With().Str("adapter", name).Logger(),
	}
}

// dial opens and authenticates a fresh connection using the surrealcbor
// codec, the same wiring for both lifetimes.
func (s *Store) dial(ctx context.Context) (*surrealdb.DB, error) {
	u, err := url.Parse(s.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: parse endpoint: %v", store.ErrAdapterUnavailable, err)
	}

	conf := connection.NewConfig(u)

	// Without the surrealcbor codec, time.Time marshals in a format the
	// server rejects with "invalid datetime".
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	conn := gorillaws.New(conf)

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", store.ErrAdapterUnavailable, err)
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": s.cfg.Username,
			"pass": s.cfg.Password,
		}); err != nil {
			db.Close(ctx)
			return nil, fmt.Errorf("%w: authenticate: %v", store.ErrAdapterUnavailable, err)
		}
	}

	if err := db.Use(ctx, s.cfg.Namespace, s.cfg.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("%w: use %s/%s: %v", store.ErrAdapterUnavailable, s.cfg.Namespace, s.cfg.Database, err)
	}

	return db, nil
}

// acquire hands back a connection plus its release func. LifetimeProcess
// reuses the cached connection with a no-op release; LifetimeRequest dials
// fresh and closes on release.
func (s *Store) acquire(ctx context.Context) (*surrealdb.DB, func(), error) {
	if s.cfg.Lifetime == LifetimeRequest {
		db, err := s.dial(ctx)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close(context.Background()) }, nil
	}

	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, nil, fmt.Errorf("%w: surreal store not initialized", store.ErrAdapterUnavailable)
	}
	return db, func() {}, nil
}

// Initialize validates the endpoint and, for LifetimeProcess, dials and
// caches the connection. Idempotent after success.
func (s *Store) Initialize(ctx context.Context) error {
	if s.cfg.Lifetime == LifetimeRequest {
		// Per-call dialing; only validate the endpoint up front.
		if _, err := url.Parse(s.cfg.Endpoint); err != nil {
			return fmt.Errorf("%w: parse endpoint: %v", store.ErrAdapterUnavailable, err)
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	db, err := s.dial(ctx)
	if err != nil {
		return err
	}
	s.db = db
	s.log.Debug().Str("endpoint", s.cfg.Endpoint).Msg("surreal store initialized")
	return nil
}

// CheckHealth performs a trivial query round trip. Failures land in the
// status, never in an error return.
func (s *Store) CheckHealth(ctx context.Context) models.HealthStatus {
	started := time.Now()
	status := models.HealthStatus{CheckedAt: started}

	db, release, err := s.acquire(ctx)
	if err != nil {
		status.Err = err.Error()
		return status
	}
	defer release()

	if _, err := surrealdb.Query[any](ctx, db, "RETURN 1", nil); err != nil {
		status.Err = err.Error()
		return status
	}

	status.Healthy = true
	status.Latency = time.Since(started)
	return status
}

// Close releases the cached connection, if any. Safe to call repeatedly.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close(context.Background())
	s.db = nil
	return err
}

func (s *Store) Name() string     { return s.name }
func (s *Store) Kind() store.Kind { return store.KindRemote }

// isNotFound reports whether err is the SDK's way of saying the select
// matched nothing.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Expected a single or multiple results but got 0") ||
		strings.Contains(msg, "cannot unmarshal array into Go value")
}

// Session operations

func (s *Store) CreateSession(ctx context.Context, session *models.GameSession) error {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if session.ID.IsZero() {
		session.ID = models.NewSessionID()
	}
	if session.UserID == nil && s.cfg.Identity != nil {
		uid, err := s.cfg.Identity.CurrentUserID(ctx)
		if err == nil && !uid.IsZero() {
			session.UserID = &uid
		}
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now()
	}

	if _, err := surrealdb.Create[models.GameSession](ctx, db, "sessions", session); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id models.SessionID) (*models.GameSession, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := surrealdb.Select[models.GameSession](ctx, db, id.RecordID())
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func (s *Store) UpdateSession(ctx context.Context, session *models.GameSession) error {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	rid := session.ID.RecordID()

	// Confirm the record exists so an update of an unknown ID surfaces as
	// ErrRecordNotFound rather than an implicit create.
	if _, err := surrealdb.Select[models.GameSession](ctx, db, rid); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: session %s", store.ErrRecordNotFound, session.ID)
		}
		return fmt.Errorf("failed to fetch session for update: %w", err)
	}

	session.UpdatedAt = time.Now()
	if _, err := surrealdb.Update[models.GameSession](ctx, db, rid, session); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id models.SessionID) error {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	_, err = surrealdb.Delete[models.GameSession](ctx, db, id.RecordID())
	return err
}

func (s *Store) DeleteSessions(ctx context.Context, ids []models.SessionID) error {
	if len(ids) == 0 {
		return nil
	}
	db, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	rids := make([]surrealdb_models.RecordID, 0, len(ids))
	for _, id := range ids {
		rids = append(rids, id.RecordID())
	}
	query := "DELETE FROM sessions WHERE id IN $ids"
	if _, err := surrealdb.Query[any](ctx, db, query, map[string]any{"ids": rids}); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}

func (s *Store) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	params := map[string]any{"cutoff": cutoff}

	count, err := surrealdb.Query[[]struct {
		Count int `json:"count"`
	}](ctx, db, "SELECT count() AS count FROM sessions WHERE started_at < $cutoff GROUP ALL", params)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired sessions: %w", err)
	}
	deleted := 0
	if count != nil && len(*count) > 0 && len((*count)[0].Result) > 0 {
		deleted = (*count)[0].Result[0].Count
	}

	if _, err := surrealdb.Query[any](ctx, db, "DELETE FROM sessions WHERE started_at < $cutoff", params); err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return deleted, nil
}

// sortColumn maps a sort key onto a whitelisted field name; user input never
// reaches the query string directly.
func sortColumn(key models.SortKey) string {
	switch key {
	case models.SortByScore:
		return "confidence"
	case models.SortByDuration:
		return "duration_seconds"
	default:
		return "started_at"
	}
}

func (s *Store) ListSessions(ctx context.Context, opts models.ListOptions) ([]*models.GameSession, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var sb strings.Builder
	sb.WriteString("SELECT * FROM sessions")
	params := map[string]any{}
	if opts.UserID != nil {
		sb.WriteString(" WHERE user_id = $user")
		params["user"] = opts.UserID.RecordID()
	}

	dir := "ASC"
	if opts.SortOrder == models.SortDesc {
		dir = "DESC"
	}
	// Secondary order on created_at keeps ties stable across runs.
	fmt.Fprintf(&sb, " ORDER BY %s %s, created_at ASC", sortColumn(opts.SortBy), dir)

	if opts.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		fmt.Fprintf(&sb, " START %d", opts.Offset)
	}

	result, err := surrealdb.Query[[]models.GameSession](ctx, db, sb.String(), params)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var sessions []*models.GameSession
	if result != nil && len(*result) > 0 {
		for i := range (*result)[0].Result {
			sessions = append(sessions, &(*result)[0].Result[i])
		}
	}
	return sessions, nil
}

func (s *Store) SessionStats(ctx context.Context, userID *models.UserID) (*models.SessionStats, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	query := `SELECT count() AS total,
		count(correct = true) AS successful,
		math::mean(confidence) AS avg_conf,
		math::mean(duration_seconds) AS avg_duration
		FROM sessions WHERE guess != ''`
	params := map[string]any{}
	if userID != nil {
		query += " AND user_id = $user"
		params["user"] = userID.RecordID()
	}
	query += " GROUP ALL"

	result, err := surrealdb.Query[[]struct {
		Total       int     `json:"total"`
		Successful  int     `json:"successful"`
		AvgConf     float64 `json:"avg_conf"`
		AvgDuration float64 `json:"avg_duration"`
	}](ctx, db, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate session stats: %w", err)
	}

	stats := &models.SessionStats{}
	if result != nil && len(*result) > 0 && len((*result)[0].Result) > 0 {
		row := (*result)[0].Result[0]
		stats.TotalGames = row.Total
		stats.SuccessfulGuesses = row.Successful
		stats.AvgConfidence = row.AvgConf
		stats.AvgDurationSeconds = row.AvgDuration
		if row.Total > 0 {
			stats.SuccessRate = float64(row.Successful) / float64(row.Total) * 100
		}
	}
	return stats, nil
}

// User operations

func (s *Store) CreateUser(ctx context.Context, user *models.UserProfile) error {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if user.ID.IsZero() {
		user.ID = models.NewUserID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = time.Now()
	}

	if _, err := surrealdb.Create[models.UserProfile](ctx, db, "users", user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id models.UserID) (*models.UserProfile, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	user, err := surrealdb.Select[models.UserProfile](ctx, db, id.RecordID())
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *models.UserProfile) error {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	rid := user.ID.RecordID()
	if _, err := surrealdb.Select[models.UserProfile](ctx, db, rid); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: user %s", store.ErrRecordNotFound, user.ID)
		}
		return fmt.Errorf("failed to fetch user for update: %w", err)
	}

	user.UpdatedAt = time.Now()
	if _, err := surrealdb.Update[models.UserProfile](ctx, db, rid, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// Sync operations

// PullAll fetches every session, oldest first.
func (s *Store) PullAll(ctx context.Context) ([]*models.GameSession, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := surrealdb.Query[[]models.GameSession](ctx, db, "SELECT * FROM sessions ORDER BY started_at ASC", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to pull sessions: %w", err)
	}

	var sessions []*models.GameSession
	if result != nil && len(*result) > 0 {
		for i := range (*result)[0].Result {
			sessions = append(sessions, &(*result)[0].Result[i])
		}
	}
	return sessions, nil
}

// PushAll writes each record as an id-keyed upsert, collecting per-record
// errors without aborting the batch. The upsert makes a repeated push of an
// already-synced record overwrite it in place rather than duplicate it.
func (s *Store) PushAll(ctx context.Context, sessions []*models.GameSession) models.SyncResult {
	result := models.SyncResult{}

	db, release, err := s.acquire(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.CompletedAt = time.Now()
		return result
	}
	defer release()

	for _, session := range sessions {
		params := map[string]any{
			"rec":  session.ID.RecordID(),
			"data": session,
		}
		if _, err := surrealdb.Query[any](ctx, db, "UPSERT $rec CONTENT $data", params); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("session %s: %v", session.ID, err))
			continue
		}
		result.SyncedRecords++
	}
	result.Success = len(result.Errors) == 0
	result.CompletedAt = time.Now()
	return result
}
