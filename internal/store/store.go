// Package store persists parsed upload sessions so a document survives
// between the upload call and later record or insight fetches.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when no upload matches the requested id.
var ErrNotFound = eris.New("upload not found")

// Upload is one stored area-file session. The parsed document travels
// as GeoJSON so both drivers store it as text.
type Upload struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	Format       string    `json:"format"`
	PolygonCount int       `json:"polygon_count"`
	GeoJSON      []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store defines the persistence interface for upload sessions.
type Store interface {
	SaveUpload(ctx context.Context, up *Upload) error
	GetUpload(ctx context.Context, id string) (*Upload, error)
	LatestUpload(ctx context.Context) (*Upload, error)
	ListUploads(ctx context.Context, limit, offset int) ([]Upload, error)
	DeleteUpload(ctx context.Context, id string) error

	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures the storage driver.
type Config struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	// DSN is the sqlite path or postgres connection string.
	DSN  string      `yaml:"dsn" mapstructure:"dsn"`
	Pool *PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Open constructs the configured store and runs migrations.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "areascope.db"
		}
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DSN, cfg.Pool)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
