// Package store owns the lifecycle of scheduled posts, repost entries, and
// the Bluesky credential row. Both backends implement the same interface so
// that scheduling behavior never depends on where the rows live.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bskysched/bskysched/internal/models"
)

// ErrNotFound is returned when a row addressed by id or name does not exist.
var ErrNotFound = errors.New("not found")

// PersistenceError wraps a backend failure (connectivity, serialization,
// authentication to the remote store). Callers treat it as non-fatal for
// per-item loops but abort the enclosing operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// Store is the persistence contract, implemented by the embedded SQLite
// backend, the server-side Postgres backend, and the HTTP client of the
// latter. The due-set queries (GetPostsToSend, GetRepostsToSend) compare
// scheduled_for <= now on every backend; the Postgres backend evaluates the
// comparison server-side to sidestep client clock skew.
type Store interface {
	GetScheduledPosts(ctx context.Context) ([]models.ScheduledPost, error)
	GetPostsToSend(ctx context.Context) ([]models.ScheduledPost, error)
	GetPublishedPosts(ctx context.Context) ([]models.ScheduledPost, error)
	GetAllPosts(ctx context.Context) ([]models.ScheduledPost, error)
	CreatePost(ctx context.Context, pc models.PostCreation) (*models.ScheduledPost, error)
	UpdatePost(ctx context.Context, id int64, up models.PostUpdate) error
	DeletePost(ctx context.Context, id int64) error

	GetScheduledReposts(ctx context.Context) ([]models.RepostEntry, error)
	GetRepostsToSend(ctx context.Context) ([]models.RepostEntry, error)
	GetPublishedReposts(ctx context.Context) ([]models.RepostEntry, error)
	GetAllReposts(ctx context.Context) ([]models.RepostEntry, error)
	CreateRepost(ctx context.Context, rc models.RepostCreation) (*models.RepostEntry, error)
	UpdateRepost(ctx context.Context, id int64, up models.RepostUpdate) error
	DeleteRepost(ctx context.Context, id int64) error

	// GetCredentials returns (nil, nil) when no credential row exists.
	GetCredentials(ctx context.Context) (*models.Credentials, error)
	SetCredentials(ctx context.Context, creds models.Credentials) error
	DeleteCredentials(ctx context.Context) error

	GetImage(ctx context.Context, name string) (*models.StoredImage, error)
	UploadImage(ctx context.Context, data []byte, mimeType string) (string, error)
}

// OperatorStore is the server-side extension guarding the HTTP API. The
// embedded backend has no HTTP surface and never serves these.
type OperatorStore interface {
	GetOperator(ctx context.Context) (*models.OperatorCredentials, error)
	CreateOperator(ctx context.Context, username, passwordHash string) error
}
