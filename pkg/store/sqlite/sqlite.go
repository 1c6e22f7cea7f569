// Package sqlite provides the locally embedded implementation of
// [github.com/quickdoodle/doodlestore/pkg/store.Store] using GORM over a
// file-resident SQLite database.
//
// The database lives in a single file under the configured directory and is
// reachable only from a process with filesystem access to that directory.
// Initialize fails fast with [store.ErrAdapterUnavailable] when the
// directory cannot be created or written, which is how an edge/request
// execution context without a filesystem surfaces.
//
// The adapter supports the user-profile and bulk-sync capabilities. It does
// not implement blob storage: drawing payloads are held inline on the
// session row, so a blob operation routed here fails with
// [store.ErrCapabilityNotSupported] at the caller.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/quickdoodle/doodlestore/pkg/models"
	"github.com/quickdoodle/doodlestore/pkg/store"
)

var (
	_ store.Store     = (*Store)(nil)
	_ store.UserStore = (*Store)(nil)
	_ store.SyncStore = (*Store)(nil)
)

// Store implements store.Store backed by an embedded SQLite file.
type Store struct {
	name string
	path string
	log  zerolog.Logger

	mu sync.Mutex
	db *gorm.DB
}

// New creates an uninitialized local store. name is the registry key the
// router knows the adapter by; dir is where the database file lives.
func New(name, dir string, log zerolog.Logger) *Store {
	return &Store{
		name: name,
		path: filepath.Join(dir, "doodlestore.db"),
		log:  log.With().Str("adapter", name).Logger(),
	}
}

// Initialize opens the database file and migrates the schema. Calling it
// again after a successful open is a no-op.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: sqlite directory %s: %v", store.ErrAdapterUnavailable, dir, err)
	}

	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", store.ErrAdapterUnavailable, s.path, err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&models.GameSession{}, &models.UserProfile{}); err != nil {
		return fmt.Errorf("%w: migrate: %v", store.ErrAdapterUnavailable, err)
	}

	s.db = db
	s.log.Debug().Str("path", s.path).Msg("sqlite store initialized")
	return nil
}

// CheckHealth runs a trivial read against the database. Failures are
// captured in the returned status, never returned as an error.
func (s *Store) CheckHealth(ctx context.Context) models.HealthStatus {
	started := time.Now()
	status := models.HealthStatus{CheckedAt: started}

	s.mu.Lock()
	db := s.db
	s.mu.Unlock()

	if db == nil {
		status.Err = "not initialized"
		return status
	}

	var one int
	if err := db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		status.Err = err.Error()
		return status
	}

	status.Healthy = true
	status.Latency = time.Since(started)
	return status
}

// Close releases the underlying connection. Safe to call repeatedly.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	s.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Name() string     { return s.name }
func (s *Store) Kind() store.Kind { return store.KindLocal }

func (s *Store) getDB() (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("%w: sqlite store not initialized", store.ErrAdapterUnavailable)
	}
	return s.db, nil
}

// Session operations

func (s *Store) CreateSession(ctx context.Context, session *models.GameSession) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Create(session).Error
}

func (s *Store) GetSession(ctx context.Context, id models.SessionID) (*models.GameSession, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	var session models.GameSession
	err = db.WithContext(ctx).First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// UpdateSession replaces the stored row. GORM's Save would insert a missing
// row, so existence is confirmed by a fetch first and the update fails with
// store.ErrRecordNotFound when the ID is unknown.
func (s *Store) UpdateSession(ctx context.Context, session *models.GameSession) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	var existing models.GameSession
	if err := db.WithContext(ctx).First(&existing, "id = ?", session.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: session %s", store.ErrRecordNotFound, session.ID)
		}
		return err
	}
	return db.WithContext(ctx).Save(session).Error
}

func (s *Store) DeleteSession(ctx context.Context, id models.SessionID) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Delete(&models.GameSession{}, "id = ?", id).Error
}

func (s *Store) DeleteSessions(ctx context.Context, ids []models.SessionID) error {
	if len(ids) == 0 {
		return nil
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Delete(&models.GameSession{}, "id IN ?", ids).Error
}

func (s *Store) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	res := db.WithContext(ctx).Where("started_at < ?", cutoff).Delete(&models.GameSession{})
	return int(res.RowsAffected), res.Error
}

// ListSessions applies filter, then sort, then pagination. Ties are kept
// stable by ordering on rowid second.
func (s *Store) ListSessions(ctx context.Context, opts models.ListOptions) ([]*models.GameSession, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	q := db.WithContext(ctx).Model(&models.GameSession{})
	if opts.UserID != nil {
		q = q.Where("user_id = ?", *opts.UserID)
	}

	column := "started_at"
	switch opts.SortBy {
	case models.SortByScore:
		column = "confidence"
	case models.SortByDuration:
		column = "duration_seconds"
	}
	dir := "ASC"
	if opts.SortOrder == models.SortDesc {
		dir = "DESC"
	}
	q = q.Order(fmt.Sprintf("%s %s", column, dir)).Order("rowid ASC")

	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var sessions []*models.GameSession
	err = q.Find(&sessions).Error
	return sessions, err
}

// SessionStats aggregates completed sessions only. A nil userID covers all
// owners.
func (s *Store) SessionStats(ctx context.Context, userID *models.UserID) (*models.SessionStats, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var row struct {
		Total       int
		Successful  int
		AvgConf     float64
		AvgDuration float64
	}

	q := db.WithContext(ctx).Model(&models.GameSession{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN correct THEN 1 ELSE 0 END), 0) AS successful,
			COALESCE(AVG(confidence), 0) AS avg_conf,
			COALESCE(AVG(duration_seconds), 0) AS avg_duration`).
		Where("guess <> ''")
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	if err := q.Scan(&row).Error; err != nil {
		return nil, err
	}

	stats := &models.SessionStats{
		TotalGames:         row.Total,
		SuccessfulGuesses:  row.Successful,
		AvgConfidence:      row.AvgConf,
		AvgDurationSeconds: row.AvgDuration,
	}
	if row.Total > 0 {
		stats.SuccessRate = float64(row.Successful) / float64(row.Total) * 100
	}
	return stats, nil
}

// User operations

func (s *Store) CreateUser(ctx context.Context, user *models.UserProfile) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Create(user).Error
}

func (s *Store) GetUser(ctx context.Context, id models.UserID) (*models.UserProfile, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	var user models.UserProfile
	err = db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *models.UserProfile) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	var existing models.UserProfile
	if err := db.WithContext(ctx).First(&existing, "id = ?", user.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user %s", store.ErrRecordNotFound, user.ID)
		}
		return err
	}
	return db.WithContext(ctx).Save(user).Error
}

// Sync operations

// PullAll returns every session in storage order for reconciliation.
func (s *Store) PullAll(ctx context.Context) ([]*models.GameSession, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	var sessions []*models.GameSession
	err = db.WithContext(ctx).Order("rowid ASC").Find(&sessions).Error
	return sessions, err
}

// PushAll creates each record, collecting per-record errors without
// aborting the batch.
func (s *Store) PushAll(ctx context.Context, sessions []*models.GameSession) models.SyncResult {
	result := models.SyncResult{}
	for _, session := range sessions {
		if err := s.CreateSession(ctx, session); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("session %s: %v", session.ID, err))
			continue
		}
		result.SyncedRecords++
	}
	result.Success = len(result.Errors) == 0
	result.CompletedAt = time.Now()
	return result
}
