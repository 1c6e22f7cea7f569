package surreal

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	surrealdb "github.com/surrealdb/surrealdb.go"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/quickdoodle/doodlestore/pkg/models"
	"github.com/quickdoodle/doodlestore/pkg/store"
)

// drawing is the blob row stored alongside a session, keyed by the same
// UUID in the drawings table.
type drawing struct {
	ID        surrealdb_models.RecordID `json:"id"`
	SessionID models.SessionID          `json:"session_id"`
	Data      []byte                    `json:"data"`
	Size      int                       `json:"size"`
	CreatedAt time.Time                 `json:"created_at"`
}

func drawingRecordID(id models.SessionID) surrealdb_models.RecordID {
	return surrealdb_models.RecordID{Table: "drawings", ID: id.String()}
}

// drawingURL derives an HTTP URL for a stored drawing from the RPC
// endpoint, e.g. ws://host:8000/rpc -> http://host:8000/drawings/<id>.
func (s *Store) drawingURL(id models.SessionID) string {
	u, err := url.Parse(s.cfg.Endpoint)
	if err != nil {
		return "drawings/" + id.String()
	}
	scheme := "http"
	if u.Scheme == "wss" || u.Scheme == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/drawings/%s", scheme, u.Host, id.String())
}

// UploadDrawing stores the drawing payload and returns the URL a session
// record should carry as its DrawingRef. Re-uploading replaces the payload.
func (s *Store) UploadDrawing(ctx context.Context, id models.SessionID, data []byte) (string, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	query := "UPSERT $rec SET session_id = $session, data = $data, size = $size, created_at = time::now()"
	params := map[string]any{
		"rec":     drawingRecordID(id),
		"session": id.RecordID(),
		"data":    data,
		"size":    len(data),
	}
	if _, err := surrealdb.Query[any](ctx, db, query, params); err != nil {
		return "", fmt.Errorf("failed to upload drawing: %w", err)
	}
	return s.drawingURL(id), nil
}

// DrawingURL returns the URL of a previously uploaded drawing, or
// store.ErrRecordNotFound when none exists for the session.
func (s *Store) DrawingURL(ctx context.Context, id models.SessionID) (string, error) {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	if _, err := surrealdb.Select[drawing](ctx, db, drawingRecordID(id)); err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: drawing for session %s", store.ErrRecordNotFound, id)
		}
		return "", fmt.Errorf("failed to look up drawing: %w", err)
	}
	return s.drawingURL(id), nil
}

// DeleteDrawing removes the stored payload. Deleting a missing drawing is
// not an error.
func (s *Store) DeleteDrawing(ctx context.Context, id models.SessionID) error {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if _, err := surrealdb.Delete[drawing](ctx, db, drawingRecordID(id)); err != nil && !isNotFound(err) {
		if !strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("failed to delete drawing: %w", err)
		}
	}
	return nil
}
