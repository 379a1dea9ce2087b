package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_upload": `INSERT INTO uploads (id, filename, format, polygon_count, geojson, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"get_upload":    `SELECT id, filename, format, polygon_count, geojson, created_at FROM uploads WHERE id = $1`,
	"latest_upload": `SELECT id, filename, format, polygon_count, geojson, created_at FROM uploads ORDER BY created_at DESC, id DESC LIMIT 1`,
	"delete_upload": `DELETE FROM uploads WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests).
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS uploads (
	id            TEXT PRIMARY KEY,
	filename      TEXT NOT NULL,
	format        TEXT NOT NULL,
	polygon_count INTEGER NOT NULL,
	geojson       TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_uploads_created_at ON uploads(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveUpload(ctx context.Context, up *Upload) error {
	if up.ID == "" {
		up.ID = uuid.New().String()
	}
	if up.CreatedAt.IsZero() {
		up.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO uploads (id, filename, format, polygon_count, geojson, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		up.ID, up.Filename, up.Format, up.PolygonCount, string(up.GeoJSON), up.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert upload %s", up.ID)
}

func (s *PostgresStore) GetUpload(ctx context.Context, id string) (*Upload, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, filename, format, polygon_count, geojson, created_at FROM uploads WHERE id = $1`,
		id,
	)
	return scanUploadPg(row)
}

func (s *PostgresStore) LatestUpload(ctx context.Context) (*Upload, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, filename, format, polygon_count, geojson, created_at FROM uploads ORDER BY created_at DESC, id DESC LIMIT 1`,
	)
	return scanUploadPg(row)
}

func (s *PostgresStore) ListUploads(ctx context.Context, limit, offset int) ([]Upload, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, filename, format, polygon_count, geojson, created_at FROM uploads
		 ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list uploads")
	}
	defer rows.Close()

	var uploads []Upload
	for rows.Next() {
		up, err := scanUploadPg(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, *up)
	}
	return uploads, eris.Wrap(rows.Err(), "postgres: list uploads iterate")
}

func (s *PostgresStore) DeleteUpload(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM uploads WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete upload %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUploadPg(row scannable) (*Upload, error) {
	var up Upload
	var geojson string
	err := row.Scan(&up.ID, &up.Filename, &up.Format, &up.PolygonCount, &geojson, &up.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan upload")
	}
	up.GeoJSON = []byte(geojson)
	return &up, nil
}
