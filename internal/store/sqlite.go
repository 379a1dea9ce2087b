package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures
// WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS uploads (
	id            TEXT PRIMARY KEY,
	filename      TEXT NOT NULL,
	format        TEXT NOT NULL,
	polygon_count INTEGER NOT NULL,
	geojson       TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_uploads_created_at ON uploads(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveUpload(ctx context.Context, up *Upload) error {
	if up.ID == "" {
		up.ID = uuid.New().String()
	}
	if up.CreatedAt.IsZero() {
		up.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (id, filename, format, polygon_count, geojson, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		up.ID, up.Filename, up.Format, up.PolygonCount, string(up.GeoJSON), up.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert upload %s", up.ID)
}

func (s *SQLiteStore) GetUpload(ctx context.Context, id string) (*Upload, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, format, polygon_count, geojson, created_at FROM uploads WHERE id = ?`,
		id,
	)
	return scanUpload(row)
}

func (s *SQLiteStore) LatestUpload(ctx context.Context) (*Upload, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, format, polygon_count, geojson, created_at FROM uploads
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
	)
	return scanUpload(row)
}

func (s *SQLiteStore) ListUploads(ctx context.Context, limit, offset int) ([]Upload, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, format, polygon_count, geojson, created_at FROM uploads
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list uploads")
	}
	defer rows.Close()

	var uploads []Upload
	for rows.Next() {
		up, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, *up)
	}
	return uploads, eris.Wrap(rows.Err(), "sqlite: list uploads iterate")
}

func (s *SQLiteStore) DeleteUpload(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM uploads WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete upload %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanUpload(row scannable) (*Upload, error) {
	var up Upload
	var geojson string
	err := row.Scan(&up.ID, &up.Filename, &up.Format, &up.PolygonCount, &geojson, &up.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan upload")
	}
	up.GeoJSON = []byte(geojson)
	return &up, nil
}
