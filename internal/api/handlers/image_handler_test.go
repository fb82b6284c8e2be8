package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartImage(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/post/image", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestImageUploadAndFetch(t *testing.T) {
	app, s := newTestApp(t)
	h := NewImageHandler(s)
	app.Post("/api/post/image", h.Upload)
	app.Get("/api/post/image/:name", h.Get)

	gif := []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00")

	t.Run("accepts a real gif", func(t *testing.T) {
		resp, err := app.Test(multipartImage(t, "cat.gif", gif))
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var out struct {
			Name string `json:"name"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		require.NotEmpty(t, out.Name)

		fetched, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/post/image/"+out.Name, nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, fetched.StatusCode)
		assert.Equal(t, "image/gif", fetched.Header.Get("Content-Type"))

		body, err := io.ReadAll(fetched.Body)
		require.NoError(t, err)
		assert.Equal(t, gif, body)
	})

	t.Run("rejects a text file renamed to .jpg", func(t *testing.T) {
		resp, err := app.Test(multipartImage(t, "notes.jpg", []byte("just some text")))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects an unsupported extension", func(t *testing.T) {
		resp, err := app.Test(multipartImage(t, "doc.pdf", gif))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects an oversized upload", func(t *testing.T) {
		big := make([]byte, maxImageBytes+1)
		copy(big, gif)
		resp, err := app.Test(multipartImage(t, "big.gif", big))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown image is 404", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/post/image/nope.gif", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
