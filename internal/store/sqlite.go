package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bskysched/bskysched/internal/blob"
	"github.com/bskysched/bskysched/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	data TEXT NOT NULL,
	scheduled_for INTEGER NOT NULL,
	scheduled_timezone TEXT NOT NULL DEFAULT '',
	repost_dates TEXT,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS reposts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uri TEXT NOT NULL,
	cid TEXT NOT NULL,
	scheduled_for INTEGER NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS credentials (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	identifier TEXT NOT NULL,
	password TEXT NOT NULL
);
`

// SQLite is the embedded backend: one file on disk, single writer. Due-set
// comparisons run against the local clock, which is the accepted trade-off
// when there is no server to ask. Instants are stored as unix milliseconds.
type SQLite struct {
	db    *sql.DB
	blobs blob.Store

	// now is swapped out by tests that pin the due boundary.
	now func() time.Time
}

func NewSQLite(path string, blobs blob.Store) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc.org/sqlite serializes access itself; one connection avoids
	// SQLITE_BUSY on concurrent writes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLite{db: db, blobs: blobs, now: time.Now}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

const sqlitePostColumns = "id, data, scheduled_for, scheduled_timezone, repost_dates, status, error, created_at"

func (s *SQLite) queryPosts(ctx context.Context, op, where string, args ...any) ([]models.ScheduledPost, error) {
	query := "SELECT " + sqlitePostColumns + " FROM posts" + where + " ORDER BY scheduled_for"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	var posts []models.ScheduledPost
	for rows.Next() {
		var (
			p            models.ScheduledPost
			data         string
			repostDates  sql.NullString
			scheduledFor int64
			createdAt    int64
		)
		if err := rows.Scan(&p.ID, &data, &scheduledFor, &p.ScheduledTimezone, &repostDates, &p.Status, &p.Error, &createdAt); err != nil {
			slog.Info(err.Error())
			return nil, persistErr(op, err)
		}
		p.ScheduledFor = time.UnixMilli(scheduledFor).UTC()
		p.CreatedAt = time.UnixMilli(createdAt).UTC()
		if err := json.Unmarshal([]byte(data), &p.Data); err != nil {
			return nil, persistErr(op, fmt.Errorf("decode post %d data: %w", p.ID, err))
		}
		if repostDates.Valid && repostDates.String != "" {
			if err := json.Unmarshal([]byte(repostDates.String), &p.RepostDates); err != nil {
				return nil, persistErr(op, fmt.Errorf("decode post %d repost dates: %w", p.ID, err))
			}
		}
		posts = append(posts, p)
	}
	return posts, persistErr(op, rows.Err())
}

func (s *SQLite) GetScheduledPosts(ctx context.Context) ([]models.ScheduledPost, error) {
	return s.queryPosts(ctx, "get scheduled posts", " WHERE status = ? AND scheduled_for > ?",
		models.StatusPending, s.now().UnixMilli())
}

func (s *SQLite) GetPostsToSend(ctx context.Context) ([]models.ScheduledPost, error) {
	return s.queryPosts(ctx, "get posts to send", " WHERE status = ? AND scheduled_for <= ?",
		models.StatusPending, s.now().UnixMilli())
}

func (s *SQLite) GetPublishedPosts(ctx context.Context) ([]models.ScheduledPost, error) {
	return s.queryPosts(ctx, "get published posts", " WHERE status = ?", models.StatusPublished)
}

func (s *SQLite) GetAllPosts(ctx context.Context) ([]models.ScheduledPost, error) {
	return s.queryPosts(ctx, "get all posts", "")
}

func (s *SQLite) CreatePost(ctx context.Context, pc models.PostCreation) (*models.ScheduledPost, error) {
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

	createdAt := s.now().UTC().Truncate(time.Millisecond)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (data, scheduled_for, scheduled_timezone, repost_dates, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(data), pc.ScheduledFor.UnixMilli(), pc.ScheduledTimezone, nullableString(repostDates),
		models.StatusPending, createdAt.UnixMilli())
	if err != nil {
		slog.Info(err.Error())
		return nil, persistErr(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, persistErr(op, err)
	}

	return &models.ScheduledPost{
		ID:                id,
		Data:              pc.Data,
		ScheduledFor:      pc.ScheduledFor.UTC().Truncate(time.Millisecond),
		ScheduledTimezone: pc.ScheduledTimezone,
		RepostDates:       pc.RepostDates,
		Status:            models.StatusPending,
		CreatedAt:         createdAt,
	}, nil
}

func (s *SQLite) UpdatePost(ctx context.Context, id int64, up models.PostUpdate) error {
	const op = "update post"
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if up.Data != nil {
		data, err := json.Marshal(up.Data)
		if err != nil {
			return persistErr(op, err)
		}
		add("data", string(data))
	}
	if up.ScheduledFor != nil {
		add("scheduled_for", up.ScheduledFor.UnixMilli())
	}
	if up.ScheduledTimezone != nil {
		add("scheduled_timezone", *up.ScheduledTimezone)
	}
	if up.RepostDates != nil {
		dates, err := json.Marshal(*up.RepostDates)
		if err != nil {
			return persistErr(op, err)
		}
		add("repost_dates", string(dates))
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
	res, err := s.db.ExecContext(ctx, "UPDATE posts SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		slog.Info(err.Error())
		return persistErr(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) DeletePost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		slog.Info(err.Error())
		return persistErr("delete post", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const sqliteRepostColumns = "id, uri, cid, scheduled_for, status, error, created_at"

func (s *SQLite) queryReposts(ctx context.Context, op, where string, args ...any) ([]models.RepostEntry, error) {
	query := "SELECT " + sqliteRepostColumns + " FROM reposts" + where + " ORDER BY scheduled_for"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	var reposts []models.RepostEntry
	for rows.Next() {
		var (
			r            models.RepostEntry
			scheduledFor int64
			createdAt    int64
		)
		if err := rows.Scan(&r.ID, &r.URI, &r.CID, &scheduledFor, &r.Status, &r.Error, &createdAt); err != nil {
			slog.Info(err.Error())
			return nil, persistErr(op, err)
		}
		r.ScheduledFor = time.UnixMilli(scheduledFor).UTC()
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		reposts = append(reposts, r)
	}
	return reposts, persistErr(op, rows.Err())
}

func (s *SQLite) GetScheduledReposts(ctx context.Context) ([]models.RepostEntry, error) {
	return s.queryReposts(ctx, "get scheduled reposts", " WHERE status = ? AND scheduled_for > ?",
		models.StatusPending, s.now().UnixMilli())
}

func (s *SQLite) GetRepostsToSend(ctx context.Context) ([]models.RepostEntry, error) {
	return s.queryReposts(ctx, "get reposts to send", " WHERE status = ? AND scheduled_for <= ?",
		models.StatusPending, s.now().UnixMilli())
}

func (s *SQLite) GetPublishedReposts(ctx context.Context) ([]models.RepostEntry, error) {
	return s.queryReposts(ctx, "get published reposts", " WHERE status = ?", models.StatusPublished)
}

func (s *SQLite) GetAllReposts(ctx context.Context) ([]models.RepostEntry, error) {
	return s.queryReposts(ctx, "get all reposts", "")
}

func (s *SQLite) CreateRepost(ctx context.Context, rc models.RepostCreation) (*models.RepostEntry, error) {
	const op = "create repost"
	createdAt := s.now().UTC().Truncate(time.Millisecond)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reposts (uri, cid, scheduled_for, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rc.URI, rc.CID, rc.ScheduledFor.UnixMilli(), models.StatusPending, createdAt.UnixMilli())
	if err != nil {
		slog.Info(err.Error())
		return nil, persistErr(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, persistErr(op, err)
	}

	return &models.RepostEntry{
		ID:           id,
		URI:          rc.URI,
		CID:          rc.CID,
		ScheduledFor: rc.ScheduledFor.UTC().Truncate(time.Millisecond),
		Status:       models.StatusPending,
		CreatedAt:    createdAt,
	}, nil
}

func (s *SQLite) UpdateRepost(ctx context.Context, id int64, up models.RepostUpdate) error {
	const op = "update repost"
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if up.ScheduledFor != nil {
		add("scheduled_for", up.ScheduledFor.UnixMilli())
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
	res, err := s.db.ExecContext(ctx, "UPDATE reposts SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		slog.Info(err.Error())
		return persistErr(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) DeleteRepost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reposts WHERE id = ?`, id)
	if err != nil {
		slog.Info(err.Error())
		return persistErr("delete repost", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) GetCredentials(ctx context.Context) (*models.Credentials, error) {
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

func (s *SQLite) SetCredentials(ctx context.Context, creds models.Credentials) error {
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
	if _, err := tx.ExecContext(ctx, `INSERT INTO credentials (identifier, password) VALUES (?, ?)`,
		creds.Identifier, creds.Password); err != nil {
		slog.Info(err.Error())
		return persistErr(op, err)
	}
	return persistErr(op, tx.Commit())
}

func (s *SQLite) DeleteCredentials(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials`)
	if err != nil {
		slog.Info(err.Error())
	}
	return persistErr("delete credentials", err)
}

func (s *SQLite) GetImage(ctx context.Context, name string) (*models.StoredImage, error) {
	data, mimeType, err := s.blobs.Get(ctx, name)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistErr("get image", err)
	}
	return &models.StoredImage{Name: name, MimeType: mimeType, Data: data}, nil
}

func (s *SQLite) UploadImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	name, err := generateImageName(mimeType)
	if err != nil {
		return "", persistErr("upload image", err)
	}
	if err := s.blobs.Put(ctx, name, data, mimeType); err != nil {
		return "", persistErr("upload image", err)
	}
	return name, nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

var _ Store = (*SQLite)(nil)

// SetClock overrides the store's notion of now. Test hook.
func (s *SQLite) SetClock(now func() time.Time) {
	s.now = now
}
