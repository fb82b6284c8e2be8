package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/bskysched/bskysched/internal/blob"
	"github.com/bskysched/bskysched/internal/models"
	"github.com/bskysched/bskysched/internal/store"
)

// fakeOps is an in-memory operator row, standing in for the api_auth table.
type fakeOps struct {
	op *models.OperatorCredentials
}

func (f *fakeOps) GetOperator(ctx context.Context) (*models.OperatorCredentials, error) {
	return f.op, nil
}

func (f *fakeOps) CreateOperator(ctx context.Context, username, passwordHash string) error {
	f.op = &models.OperatorCredentials{
		ID:        1,
		Username:  username,
		Password:  passwordHash,
		CreatedAt: time.Now(),
	}
	return nil
}

func newTestApp(t *testing.T) (*fiber.App, *store.SQLite) {
	t.Helper()
	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	s, err := store.NewSQLite(":memory:", blobs)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return fiber.New(), s
}
