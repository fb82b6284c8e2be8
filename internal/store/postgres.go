package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/bskysched/bskysched/internal/blob"
	"github.com/bskysched/bskysched/internal/models"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS posts (
	id SERIAL PRIMARY KEY,
	data JSONB NOT NULL,
	scheduled_for TIMESTAMP WITH TIME ZONE NOT NULL,
	scheduled_timezone TEXT NOT NULL DEFAULT '',
	repost_dates JSONB,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS reposts (
	id SERIAL PRIMARY KEY,
	uri TEXT NOT NULL,
	cid TEXT NOT NULL,
	scheduled_for TIMESTAMP WITH TIME ZONE NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS credentials (
	id SERIAL PRIMARY KEY,
	identifier TEXT NOT NULL,
	password TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS api_auth (
	id SERIAL PRIMARY KEY,
	username TEXT NOT NULL,
	password TEXT NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

// Postgres is the server-side backend. Due-set comparisons run inside the
// query against the database clock, so client clock skew cannot change which
// items are due.
type Postgres struct {
	db    *sql.DB
	blobs blob.Store
}

func NewPostgres(db *sql.DB, blobs blob.Store) (*Postgres, error) {
	if _, err := db.Exec(pgSchema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Postgres{db: db, blobs: blobs}, nil
}

// Ping reports store connectivity for the health endpoint.
func (s *Postgres) Ping(ctx context.Context) error {
	return persistErr("ping", s.db.PingContext(ctx))
}

const pgPostColumns = "id, data, scheduled_for, scheduled_timezone, repost_dates, status, error, created_at"

func (s *Postgres) queryPosts(ctx context.Context, op, where string, args ...any) ([]models.ScheduledPost, error) {
	query := "SELECT " + pgPostColumns + " FROM posts" + where + " ORDER BY scheduled_for"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	var posts []models.ScheduledPost
	for rows.Next() {
		var (
			p           models.ScheduledPost
			data        []byte
			repostDates []byte
		)
		if err := rows.Scan(&p.ID, &data, &p.ScheduledFor, &p.ScheduledTimezone, &repostDates, &p.Status, &p.Error, &p.CreatedAt); err != nil {
			slog.Info(err.Error())
			return nil, persistErr(op, err)
		}
		if err := json.Unmarshal(data, &p.Data); err != nil {
			return nil, persistErr(op, fmt.Errorf("decode post %d data: %w", p.ID, err))
		}
		if len(repostDates) > 0 {
			if err := json.Unmarshal(repostDates, &p.RepostDates); err != nil {
				return nil, persistErr(op, fmt.Errorf("decode post %d repost dates: %w", p.ID, err))
			}
		}
		posts = append(posts, p)
	}
	return posts, persistErr(op, rows.Err())
}

func (s *Postgres) GetScheduledPosts(ctx context.Context) ([]models.ScheduledPost, error) {
	return s.queryPosts(ctx, "get scheduled posts", " WHERE status = $1 AND scheduled_for > NOW()", models.StatusPending)
}

func (s *Postgres) GetPostsToSend(ctx context.Context) ([]models.ScheduledPost, error) {
	return s.queryPosts(ctx, "get posts to send", " WHERE status = $1 AND scheduled_for <= NOW()", models.StatusPending)
}

func (s *Postgres) GetPublishedPosts(ctx context.Context) ([]models.ScheduledPost, error) {
	return s.queryPosts(ctx, "get published posts", " WHERE status = $1", models.StatusPublished)
}

func (s *Postgres) GetAllPosts(ctx context.Context) ([]models.ScheduledPost, error) {
	return s.queryPosts(ctx, "get all posts", "")
}

func (s *Postgres) CreatePost(ctx context.Context, pc models.PostCreation) (*models.ScheduledPost, error) {
	const op = "create post"
	data, err := json.Marshal(pc.Data)
	if err != nil {
		return nil, persistErr(op, err)
	}
	var repostDates []byte
	if len(pc.RepostDates) > 0 {
		if repostDates, err = json.Marshal(pc.RepostDates); err != nil {
			return nil, persistErr(op, err)
		}
	}

	post := models.ScheduledPost{
		Data:              pc.Data,
		ScheduledFor:      pc.ScheduledFor,
		ScheduledTimezone: pc.ScheduledTimezone,
		RepostDates:       pc.RepostDates,
		Status:            models.StatusPending,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO posts (data, scheduled_for, scheduled_timezone, repost_dates, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		data, pc.ScheduledFor, pc.ScheduledTimezone, repostDates, models.StatusPending,
	).Scan(&post.ID, &post.CreatedAt)
	if err != nil {
		slog.Info(err.Error())
		return nil, persistErr(op, err)
	}
	return &post, nil
}

func (s *Postgres) UpdatePost(ctx context.Context, id int64, up models.PostUpdate) error {
	const op = "update post"
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if up.Data != nil {
		data, err := json.Marshal(up.Data)
		if err != nil {
			return persistErr(op, err)
		}
		add("data", data)
	}
	if up.ScheduledFor != nil {
		add("scheduled_for", *up.ScheduledFor)
	}
	if up.ScheduledTimezone != nil {
		add("scheduled_timezone", *up.ScheduledTimezone)
	}
	if up.RepostDates != nil {
		dates, err := json.Marshal(*up.RepostDates)
		if err != nil {
			return persistErr(op, err)
		}
		add("repost_dates", dates)
	}
	if up.Status != nil {
		add("status", *up.Status)
	}
	if up.Error != nil {
		add("error", *up.Error)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE posts SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return persistErr(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) DeletePost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		slog.Info(err.Error())
		return persistErr("delete post", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const pgRepostColumns = "id, uri, cid, scheduled_for, status, error, created_at"

func (s *Postgres) queryReposts(ctx context.Context, op, where string, args ...any) ([]models.RepostEntry, error) {
	query := "SELECT " + pgRepostColumns + " FROM reposts" + where + " ORDER BY scheduled_for"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	var reposts []models.RepostEntry
	for rows.Next() {
		var r models.RepostEntry
		if err := rows.Scan(&r.ID, &r.URI, &r.CID, &r.ScheduledFor, &r.Status, &r.Error, &r.CreatedAt); err != nil {
			slog.Info(err.Error())
			return nil, persistErr(op, err)
		}
		reposts = append(reposts, r)
	}
	return reposts, persistErr(op, rows.Err())
}

func (s *Postgres) GetScheduledReposts(ctx context.Context) ([]models.RepostEntry, error) {
	return s.queryReposts(ctx, "get scheduled reposts", " WHERE status = $1 AND scheduled_for > NOW()", models.StatusPending)
}

func (s *Postgres) GetRepostsToSend(ctx context.Context) ([]models.RepostEntry, error) {
	return s.queryReposts(ctx, "get reposts to send", " WHERE status = $1 AND scheduled_for <= NOW()", models.StatusPending)
}

func (s *Postgres) GetPublishedReposts(ctx context.Context) ([]models.RepostEntry, error) {
	return s.queryReposts(ctx, "get published reposts", " WHERE status = $1", models.StatusPublished)
}

func (s *Postgres) GetAllReposts(ctx context.Context) ([]models.RepostEntry, error) {
	return s.queryReposts(ctx, "get all reposts", "")
}

func (s *Postgres) CreateRepost(ctx context.Context, rc models.RepostCreation) (*models.RepostEntry, error) {
	repost := models.RepostEntry{
		URI:          rc.URI,
		CID:          rc.CID,
		ScheduledFor: rc.ScheduledFor,
		Status:       models.StatusPending,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO reposts (uri, cid, scheduled_for, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		rc.URI, rc.CID, rc.ScheduledFor, models.StatusPending,
	).Scan(&repost.ID, &repost.CreatedAt)
	if err != nil {
		slog.Info(err.Error())
		return nil, persistErr("create repost", err)
	}
	return &repost, nil
}

func (s *Postgres) UpdateRepost(ctx context.Context, id int64, up models.RepostUpdate) error {
	const op = "update repost"
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if up.ScheduledFor != nil {
		add("scheduled_for", *up.ScheduledFor)
	}
	if up.Status != nil {
		add("status", *up.Status)
	}
	if up.Error != nil {
		add("error", *up.Error)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE reposts SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return persistErr(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) DeleteRepost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reposts WHERE id = $1`, id)
	if err != nil {
		slog.Info(err.Error())
		return persistErr("delete repost", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) GetCredentials(ctx context.Context) (*models.Credentials, error) {
	var creds models.Credentials
	err := s.db.QueryRowContext(ctx, `SELECT id, identifier, password FROM credentials LIMIT 1`).
		Scan(&creds.ID, &creds.Identifier, &creds.Password)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, persistErr("get credentials", err)
	}
	return &creds, nil
}

// SetCredentials replaces the single credential row wholesale.
func (s *Postgres) SetCredentials(ctx context.Context, creds models.Credentials) error {
	const op = "set credentials"
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr(op, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		slog.Info(err.Error())
		return persistErr(op, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO credentials (identifier, password) VALUES ($1, $2)`,
		creds.Identifier, creds.Password); err != nil {
		slog.Info(err.Error())
		return persistErr(op, err)
	}
	return persistErr(op, tx.Commit())
}

func (s *Postgres) DeleteCredentials(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials`)
	if err != nil {
		slog.Info(err.Error())
	}
	return persistErr("delete credentials", err)
}

func (s *Postgres) GetImage(ctx context.Context, name string) (*models.StoredImage, error) {
	data, mimeType, err := s.blobs.Get(ctx, name)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistErr("get image", err)
	}
	return &models.StoredImage{Name: name, MimeType: mimeType, Data: data}, nil
}

func (s *Postgres) UploadImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	name, err := generateImageName(mimeType)
	if err != nil {
		return "", persistErr("upload image", err)
	}
	if err := s.blobs.Put(ctx, name, data, mimeType); err != nil {
		return "", persistErr("upload image", err)
	}
	return name, nil
}

func (s *Postgres) GetOperator(ctx context.Context) (*models.OperatorCredentials, error) {
	var op models.OperatorCredentials
	err := s.db.QueryRowContext(ctx, `SELECT id, username, password, created_at FROM api_auth LIMIT 1`).
		Scan(&op.ID, &op.Username, &op.Password, &op.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, persistErr("get operator", err)
	}
	return &op, nil
}

func (s *Postgres) CreateOperator(ctx context.Context, username, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO api_auth (username, password) VALUES ($1, $2)`,
		username, passwordHash)
	if err != nil {
		slog.Info(err.Error())
	}
	return persistErr("create operator", err)
}

var mimeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

func generateImageName(mimeType string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	return id + mimeExtensions[mimeType], nil
}

var _ Store = (*Postgres)(nil)
var _ OperatorStore = (*Postgres)(nil)
