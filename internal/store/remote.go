package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/bskysched/bskysched/internal/models"
)

// Remote talks to the API server over HTTP with operator Basic auth. It is
// the client-side face of the Postgres backend: due-set selection happens on
// the server, against the server's clock.
type Remote struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

func NewRemote(baseURL, username, password string) *Remote {
	return &Remote{
		baseURL:  baseURL,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type apiError struct {
	Error string `json:"error"`
}

// do issues a JSON request and decodes the response into out (when non-nil).
// notFoundOK turns a 404 into ErrNotFound instead of a generic failure.
func (r *Remote) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.SetBasicAuth(r.username, r.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (r *Remote) getPosts(ctx context.Context, op, path string) ([]models.ScheduledPost, error) {
	var posts []models.ScheduledPost
	if err := r.do(ctx, http.MethodGet, path, nil, &posts); err != nil {
		return nil, persistErr(op, err)
	}
	return posts, nil
}

func (r *Remote) GetScheduledPosts(ctx context.Context) ([]models.ScheduledPost, error) {
	return r.getPosts(ctx, "get scheduled posts", "/api/posts/scheduled")
}

func (r *Remote) GetPostsToSend(ctx context.Context) ([]models.ScheduledPost, error) {
	return r.getPosts(ctx, "get posts to send", "/api/posts/to-send")
}

func (r *Remote) GetPublishedPosts(ctx context.Context) ([]models.ScheduledPost, error) {
	return r.getPosts(ctx, "get published posts", "/api/posts/published")
}

func (r *Remote) GetAllPosts(ctx context.Context) ([]models.ScheduledPost, error) {
	return r.getPosts(ctx, "get all posts", "/api/posts")
}

func (r *Remote) CreatePost(ctx context.Context, pc models.PostCreation) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	if err := r.do(ctx, http.MethodPost, "/api/posts", pc, &post); err != nil {
		return nil, persistErr("create post", err)
	}
	return &post, nil
}

func (r *Remote) UpdatePost(ctx context.Context, id int64, up models.PostUpdate) error {
	err := r.do(ctx, http.MethodPatch, fmt.Sprintf("/api/posts/%d", id), up, nil)
	if err == ErrNotFound {
		return err
	}
	return persistErr("update post", err)
}

func (r *Remote) DeletePost(ctx context.Context, id int64) error {
	err := r.do(ctx, http.MethodDelete, fmt.Sprintf("/api/posts/%d", id), nil, nil)
	if err == ErrNotFound {
		return err
	}
	return persistErr("delete post", err)
}

func (r *Remote) getReposts(ctx context.Context, op, path string) ([]models.RepostEntry, error) {
	var reposts []models.RepostEntry
	if err := r.do(ctx, http.MethodGet, path, nil, &reposts); err != nil {
		return nil, persistErr(op, err)
	}
	return reposts, nil
}

func (r *Remote) GetScheduledReposts(ctx context.Context) ([]models.RepostEntry, error) {
	return r.getReposts(ctx, "get scheduled reposts", "/api/reposts/scheduled")
}

func (r *Remote) GetRepostsToSend(ctx context.Context) ([]models.RepostEntry, error) {
	return r.getReposts(ctx, "get reposts to send", "/api/reposts/to-send")
}

func (r *Remote) GetPublishedReposts(ctx context.Context) ([]models.RepostEntry, error) {
	return r.getReposts(ctx, "get published reposts", "/api/reposts/published")
}

func (r *Remote) GetAllReposts(ctx context.Context) ([]models.RepostEntry, error) {
	return r.getReposts(ctx, "get all reposts", "/api/reposts")
}

func (r *Remote) CreateRepost(ctx context.Context, rc models.RepostCreation) (*models.RepostEntry, error) {
	var repost models.RepostEntry
	if err := r.do(ctx, http.MethodPost, "/api/reposts", rc, &repost); err != nil {
		return nil, persistErr("create repost", err)
	}
	return &repost, nil
}

func (r *Remote) UpdateRepost(ctx context.Context, id int64, up models.RepostUpdate) error {
	err := r.do(ctx, http.MethodPatch, fmt.Sprintf("/api/reposts/%d", id), up, nil)
	if err == ErrNotFound {
		return err
	}
	return persistErr("update repost", err)
}

func (r *Remote) DeleteRepost(ctx context.Context, id int64) error {
	err := r.do(ctx, http.MethodDelete, fmt.Sprintf("/api/reposts/%d", id), nil, nil)
	if err == ErrNotFound {
		return err
	}
	return persistErr("delete repost", err)
}

func (r *Remote) GetCredentials(ctx context.Context) (*models.Credentials, error) {
	var creds models.Credentials
	err := r.do(ctx, http.MethodGet, "/api/credentials", nil, &creds)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("get credentials", err)
	}
	return &creds, nil
}

func (r *Remote) SetCredentials(ctx context.Context, creds models.Credentials) error {
	return persistErr("set credentials", r.do(ctx, http.MethodPost, "/api/credentials", creds, nil))
}

func (r *Remote) DeleteCredentials(ctx context.Context) error {
	return persistErr("delete credentials", r.do(ctx, http.MethodDelete, "/api/credentials", nil, nil))
}

func (r *Remote) GetImage(ctx context.Context, name string) (*models.StoredImage, error) {
	const op = "get image"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/post/image/"+name, nil)
	if err != nil {
		return nil, persistErr(op, err)
	}
	req.SetBasicAuth(r.username, r.password)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, persistErr(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, persistErr(op, fmt.Errorf("status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, persistErr(op, err)
	}
	return &models.StoredImage{
		Name:     name,
		MimeType: resp.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

func (r *Remote) UploadImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	const op = "upload image"

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "image"+mimeExtensions[mimeType])
	if err != nil {
		return "", persistErr(op, err)
	}
	if _, err := part.Write(data); err != nil {
		return "", persistErr(op, err)
	}
	if err := w.Close(); err != nil {
		return "", persistErr(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/post/image", &buf)
	if err != nil {
		return "", persistErr(op, err)
	}
	req.SetBasicAuth(r.username, r.password)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", persistErr(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return "", persistErr(op, fmt.Errorf("%s", apiErr.Error))
		}
		return "", persistErr(op, fmt.Errorf("status %d", resp.StatusCode))
	}

	var out struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", persistErr(op, err)
	}
	return out.Name, nil
}

var _ Store = (*Remote)(nil)
