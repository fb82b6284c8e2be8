package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bskysched/bskysched/internal/blob"
	"github.com/bskysched/bskysched/internal/models"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	s, err := NewSQLite(":memory:", blobs)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func pinClock(s *SQLite, at time.Time) {
	s.SetClock(func() time.Time { return at })
}

func TestSQLitePostLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	pinClock(s, now)

	created, err := s.CreatePost(ctx, models.PostCreation{
		Data:              models.PostData{Text: "hello world"},
		ScheduledFor:      now.Add(time.Hour),
		ScheduledTimezone: "America/New_York",
		RepostDates:       []time.Time{now.Add(25 * time.Hour)},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, now, created.CreatedAt)

	t.Run("round trips through a query", func(t *testing.T) {
		posts, err := s.GetAllPosts(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, created.ID, posts[0].ID)
		assert.Equal(t, "hello world", posts[0].Data.Text)
		assert.Equal(t, "America/New_York", posts[0].ScheduledTimezone)
		require.Len(t, posts[0].RepostDates, 1)
		assert.True(t, posts[0].RepostDates[0].Equal(now.Add(25*time.Hour)))
	})

	t.Run("not due before its instant", func(t *testing.T) {
		due, err := s.GetPostsToSend(ctx)
		require.NoError(t, err)
		assert.Empty(t, due)

		scheduled, err := s.GetScheduledPosts(ctx)
		require.NoError(t, err)
		assert.Len(t, scheduled, 1)
	})

	t.Run("due exactly at its instant", func(t *testing.T) {
		pinClock(s, now.Add(time.Hour))
		due, err := s.GetPostsToSend(ctx)
		require.NoError(t, err)
		assert.Len(t, due, 1)

		scheduled, err := s.GetScheduledPosts(ctx)
		require.NoError(t, err)
		assert.Empty(t, scheduled)
	})

	t.Run("terminal states leave the due set", func(t *testing.T) {
		pinClock(s, now.Add(2*time.Hour))
		status := models.StatusPublished
		require.NoError(t, s.UpdatePost(ctx, created.ID, models.PostUpdate{Status: &status}))

		due, err := s.GetPostsToSend(ctx)
		require.NoError(t, err)
		assert.Empty(t, due)

		published, err := s.GetPublishedPosts(ctx)
		require.NoError(t, err)
		assert.Len(t, published, 1)
	})

	t.Run("partial update leaves other fields alone", func(t *testing.T) {
		tz := "Europe/Berlin"
		require.NoError(t, s.UpdatePost(ctx, created.ID, models.PostUpdate{ScheduledTimezone: &tz}))

		posts, err := s.GetAllPosts(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, "Europe/Berlin", posts[0].ScheduledTimezone)
		assert.Equal(t, "hello world", posts[0].Data.Text)
		assert.Equal(t, models.StatusPublished, posts[0].Status)
	})

	t.Run("update of a missing row reports not found", func(t *testing.T) {
		status := models.StatusFailed
		err := s.UpdatePost(ctx, 9999, models.PostUpdate{Status: &status})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete removes the row", func(t *testing.T) {
		require.NoError(t, s.DeletePost(ctx, created.ID))
		posts, err := s.GetAllPosts(ctx)
		require.NoError(t, err)
		assert.Empty(t, posts)
	})

	t.Run("delete of a missing row reports not found", func(t *testing.T) {
		assert.ErrorIs(t, s.DeletePost(ctx, created.ID), ErrNotFound)
	})
}

func TestSQLiteRepostDueSet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	pinClock(s, now)

	entry, err := s.CreateRepost(ctx, models.RepostCreation{
		URI:          "at://did:plc:abc/app.bsky.feed.post/xyz",
		CID:          "bafyexample",
		ScheduledFor: now.Add(30 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, entry.Status)

	due, err := s.GetRepostsToSend(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)

	pinClock(s, now.Add(time.Hour))
	due, err = s.GetRepostsToSend(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, entry.URI, due[0].URI)
	assert.Equal(t, entry.CID, due[0].CID)

	status := models.StatusFailed
	msg := "upstream said no"
	require.NoError(t, s.UpdateRepost(ctx, entry.ID, models.RepostUpdate{Status: &status, Error: &msg}))

	due, err = s.GetRepostsToSend(ctx)
	require.NoError(t, err)
	assert.Empty(t, due, "failed entries are terminal")

	all, err := s.GetAllReposts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "upstream said no", all[0].Error)

	require.NoError(t, s.DeleteRepost(ctx, entry.ID))
	assert.ErrorIs(t, s.DeleteRepost(ctx, entry.ID), ErrNotFound)
}

func TestSQLiteCredentials(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	t.Run("absent row is nil, not an error", func(t *testing.T) {
		creds, err := s.GetCredentials(ctx)
		require.NoError(t, err)
		assert.Nil(t, creds)
	})

	t.Run("set replaces wholesale", func(t *testing.T) {
		require.NoError(t, s.SetCredentials(ctx, models.Credentials{
			Identifier: "alice.bsky.social",
			Password:   "app-password-1",
		}))
		require.NoError(t, s.SetCredentials(ctx, models.Credentials{
			Identifier: "bob.bsky.social",
			Password:   "app-password-2",
		}))

		creds, err := s.GetCredentials(ctx)
		require.NoError(t, err)
		require.NotNil(t, creds)
		assert.Equal(t, "bob.bsky.social", creds.Identifier)
		assert.Equal(t, "app-password-2", creds.Password)
	})

	t.Run("delete clears the row", func(t *testing.T) {
		require.NoError(t, s.DeleteCredentials(ctx))
		creds, err := s.GetCredentials(ctx)
		require.NoError(t, err)
		assert.Nil(t, creds)
	})
}

func TestSQLiteImages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	name, err := s.UploadImage(ctx, []byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg")
	require.NoError(t, err)
	assert.NotEmpty(t, name)

	img, err := s.GetImage(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MimeType)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xE0}, img.Data)
}
