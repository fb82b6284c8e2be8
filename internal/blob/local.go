package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// LocalStore keeps image blobs as files in a directory. Used by the embedded
// backend where no object storage is available.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create image dir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) path(name string) (string, error) {
	// Names are store-generated, but refuse anything that could escape the
	// directory regardless.
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid image name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *LocalStore) Put(_ context.Context, name string, data []byte, _ string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0o640); err != nil {
		return fmt.Errorf("write image %s: %w", name, err)
	}
	return nil
}

func (s *LocalStore) Get(_ context.Context, name string) ([]byte, string, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("read image %s: %w", name, err)
	}

	mimeType := "application/octet-stream"
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		mimeType = kind.MIME.Value
	}
	return data, mimeType, nil
}
