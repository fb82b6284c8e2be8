package middleware

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bskysched/bskysched/internal/models"
)

type fakeOps struct {
	op *models.OperatorCredentials
}

func (f *fakeOps) GetOperator(ctx context.Context) (*models.OperatorCredentials, error) {
	return f.op, nil
}

func (f *fakeOps) CreateOperator(ctx context.Context, username, passwordHash string) error {
	f.op = &models.OperatorCredentials{Username: username, Password: passwordHash, CreatedAt: time.Now()}
	return nil
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func protectedApp(m *AuthMiddleware) *fiber.App {
	app := fiber.New()
	app.Get("/guarded", m.RequireOperator(), func(c *fiber.Ctx) error {
		return c.SendString("in")
	})
	app.Post("/cron", m.RequireCronSecret(), func(c *fiber.Ctx) error {
		return c.SendString("ran")
	})
	return app
}

func TestRequireOperator(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("open sesame"), bcrypt.DefaultCost)
	require.NoError(t, err)
	ops := &fakeOps{op: &models.OperatorCredentials{Username: "admin", Password: string(hash)}}
	app := protectedApp(NewAuthMiddleware(ops, "topsecret"))

	t.Run("no header is rejected", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/guarded", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		req.Header.Set("Authorization", basicAuth("admin", "guess"))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong username is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		req.Header.Set("Authorization", basicAuth("root", "open sesame"))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong username and password get the same answer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		req.Header.Set("Authorization", basicAuth("root", "guess"))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid credentials pass", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		req.Header.Set("Authorization", basicAuth("admin", "open sesame"))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("no operator row rejects everyone", func(t *testing.T) {
		empty := protectedApp(NewAuthMiddleware(&fakeOps{}, ""))
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		req.Header.Set("Authorization", basicAuth("admin", "open sesame"))
		resp, err := empty.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestRequireCronSecret(t *testing.T) {
	app := protectedApp(NewAuthMiddleware(&fakeOps{}, "topsecret"))

	t.Run("missing token is rejected", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/cron", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cron", nil)
		req.Header.Set("Authorization", "Bearer nope")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("matching token passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cron", nil)
		req.Header.Set("Authorization", "Bearer topsecret")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("empty configured secret locks the endpoint", func(t *testing.T) {
		locked := protectedApp(NewAuthMiddleware(&fakeOps{}, ""))
		req := httptest.NewRequest(http.MethodPost, "/cron", nil)
		req.Header.Set("Authorization", "Bearer ")
		resp, err := locked.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
