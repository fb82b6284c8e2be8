// Package blob stores uploaded image bytes under generated names. The
// persistence backends delegate image byte access here so post rows only
// ever carry the storage name.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no blob exists under the name.
var ErrNotFound = errors.New("blob not found")

type Store interface {
	Put(ctx context.Context, name string, data []byte, mimeType string) error
	// Get returns the stored bytes and their mime type.
	Get(ctx context.Context, name string) ([]byte, string, error)
}
