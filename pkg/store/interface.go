// Package store defines the uniform persistence contract for doodlestore.
//
// A [Store] binds the fixed CRUD/query surface to exactly one storage
// provider. Two implementations exist:
//
//   - [github.com/quickdoodle/doodlestore/pkg/store/sqlite.Store]: a locally
//     embedded, file-resident database using GORM, reachable only from a
//     process with filesystem access
//   - [github.com/quickdoodle/doodlestore/pkg/store/surreal.Store]: a remote
//     SurrealDB instance reached over the network with per-call or cached
//     connections
//
// Optional operation groups (user profiles, drawing blob storage, bulk
// synchronization) are modeled as segregated capability interfaces that an
// implementation satisfies only when the provider supports them. Callers
// type-assert against [UserStore], [BlobStore], and [SyncStore] rather than
// probing for possibly-missing methods, and receive
// [ErrCapabilityNotSupported] when the assertion fails.
//
// Adding a storage provider means implementing [Store] (plus whichever
// capability interfaces apply); the router, synchronizer, and manager do not
// change.
package store

import (
	"context"
	"time"

	"github.com/quickdoodle/doodlestore/pkg/models"
)

// Kind classifies a provider by where it runs.
type Kind string

const (
	// KindLocal marks an embedded store on the same host as the process.
	KindLocal Kind = "local"
	// KindRemote marks a network-backed store requiring an auth context.
	KindRemote Kind = "remote"
)

// Store is the uniform contract every storage adapter implements.
//
// Initialize acquires provider resources and fails with
// [ErrAdapterUnavailable] when the provider cannot be reached or opened;
// calling it again after success is a no-op. CheckHealth performs a minimal
// round trip and never returns an error: all failures are captured in the
// returned status. Close releases resources and is idempotent.
//
// GetSession returns (nil, nil) for a missing ID rather than an error.
// UpdateSession confirms the row exists and fails with [ErrRecordNotFound]
// otherwise. ListSessions applies the owner filter, then the sort, then
// pagination, with ties broken by natural storage order. SessionStats
// aggregates only completed sessions (non-empty guess); a nil userID
// aggregates across all owners.
type Store interface {
	Initialize(ctx context.Context) error
	CheckHealth(ctx context.Context) models.HealthStatus
	Close() error

	CreateSession(ctx context.Context, session *models.GameSession) error
	GetSession(ctx context.Context, id models.SessionID) (*models.GameSession, error)
	UpdateSession(ctx context.Context, session *models.GameSession) error
	DeleteSession(ctx context.Context, id models.SessionID) error
	DeleteSessions(ctx context.Context, ids []models.SessionID) error
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int, error)
	ListSessions(ctx context.Context, opts models.ListOptions) ([]*models.GameSession, error)
	SessionStats(ctx context.Context, userID *models.UserID) (*models.SessionStats, error)

	// Name returns the registry key the adapter was configured under.
	Name() string
	// Kind reports whether the backing provider is local or remote.
	Kind() Kind
}

// UserStore is the optional player-profile capability.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.UserProfile) error
	GetUser(ctx context.Context, id models.UserID) (*models.UserProfile, error)
	UpdateUser(ctx context.Context, user *models.UserProfile) error
}

// BlobStore is the optional drawing-payload capability. Providers without it
// hold the drawing inline on the session record instead.
type BlobStore interface {
	UploadDrawing(ctx context.Context, id models.SessionID, data []byte) (string, error)
	DrawingURL(ctx context.Context, id models.SessionID) (string, error)
	DeleteDrawing(ctx context.Context, id models.SessionID) error
}

// SyncStore is the optional bulk-reconciliation capability. PullAll returns
// every session the provider holds; PushAll attempts to create each given
// record, collecting per-record failures instead of aborting, and reports
// the outcome as a [models.SyncResult].
type SyncStore interface {
	PullAll(ctx context.Context) ([]*models.GameSession, error)
	PushAll(ctx context.Context, sessions []*models.GameSession) models.SyncResult
}

// Capabilities lists the optional capability groups s supports, for status
// snapshots and logs.
func Capabilities(s Store) []string {
	var caps []string
	if _, ok := s.(UserStore); ok {
		caps = append(caps, "users")
	}
	if _, ok := s.(BlobStore); ok {
		caps = append(caps, "blobs")
	}
	if _, ok := s.(SyncStore); ok {
		caps = append(caps, "sync")
	}
	return caps
}

// IdentityResolver supplies the owner attribution for writes made on behalf
// of the current caller. It is consumed as an external collaborator; this
// layer never manages credentials itself.
type IdentityResolver interface {
	CurrentUserID(ctx context.Context) (models.UserID, error)
}
