package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bskysched/bskysched/internal/models"
)

func createRepost(t *testing.T, app *fiber.App, body string) models.RepostEntry {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/reposts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var entry models.RepostEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entry))
	return entry
}

func TestRepostHandlerCreate(t *testing.T) {
	app, s := newTestApp(t)
	h := NewRepostHandler(s, nil)
	app.Post("/api/reposts", h.Create)

	uri := "at://did:plc:abc/app.bsky.feed.post/rkey"

	t.Run("requires uri and cid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/reposts",
			strings.NewReader(`{"uri": "`+uri+`"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects a past date", func(t *testing.T) {
		past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
		req := httptest.NewRequest(http.MethodPost, "/api/reposts",
			strings.NewReader(fmt.Sprintf(`{"uri": %q, "cid": "bafycid", "scheduledFor": %q}`, uri, past)))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("first dateless repost lands a day out", func(t *testing.T) {
		before := time.Now()
		entry := createRepost(t, app, fmt.Sprintf(`{"uri": %q, "cid": "bafycid"}`, uri))

		assert.Equal(t, models.StatusPending, entry.Status)
		assert.WithinDuration(t, before.Add(24*time.Hour), entry.ScheduledFor, time.Minute)
	})

	t.Run("next dateless repost chains off the previous one", func(t *testing.T) {
		explicit := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Millisecond)
		createRepost(t, app, fmt.Sprintf(`{"uri": %q, "cid": "bafycid", "scheduledFor": %q}`,
			uri, explicit.Format(time.RFC3339Nano)))

		entry := createRepost(t, app, fmt.Sprintf(`{"uri": %q, "cid": "bafycid"}`, uri))
		assert.True(t, entry.ScheduledFor.Equal(explicit.Add(24*time.Hour)),
			"expected %s, got %s", explicit.Add(24*time.Hour), entry.ScheduledFor)
	})

	t.Run("other records do not affect the default", func(t *testing.T) {
		before := time.Now()
		entry := createRepost(t, app,
			`{"uri": "at://did:plc:other/app.bsky.feed.post/xyz", "cid": "bafyother"}`)
		assert.WithinDuration(t, before.Add(24*time.Hour), entry.ScheduledFor, time.Minute)
	})
}
