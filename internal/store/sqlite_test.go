package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleUpload(created time.Time) *Upload {
	return &Upload{
		Filename:     "areas.kml",
		Format:       "kml",
		PolygonCount: 3,
		GeoJSON:      []byte(`{"type":"FeatureCollection","features":[]}`),
		CreatedAt:    created,
	}
}

func TestSQLiteSaveAndGet(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	up := sampleUpload(time.Time{})
	require.NoError(t, s.SaveUpload(ctx, up))
	assert.NotEmpty(t, up.ID)
	assert.False(t, up.CreatedAt.IsZero())

	got, err := s.GetUpload(ctx, up.ID)
	require.NoError(t, err)
	assert.Equal(t, up.Filename, got.Filename)
	assert.Equal(t, up.Format, got.Format)
	assert.Equal(t, up.PolygonCount, got.PolygonCount)
	assert.Equal(t, up.GeoJSON, got.GeoJSON)
}

func TestSQLiteGetNotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.GetUpload(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteLatestUpload(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	older := sampleUpload(base)
	newer := sampleUpload(base.Add(time.Hour))
	newer.Filename = "newer.kmz"
	require.NoError(t, s.SaveUpload(ctx, older))
	require.NoError(t, s.SaveUpload(ctx, newer))

	got, err := s.LatestUpload(ctx)
	require.NoError(t, err)
	assert.Equal(t, "newer.kmz", got.Filename)
}

func TestSQLiteLatestUploadEmpty(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.LatestUpload(context.Background())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteListUploads(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		up := sampleUpload(base.Add(time.Duration(i) * time.Minute))
		require.NoError(t, s.SaveUpload(ctx, up))
	}

	all, err := s.ListUploads(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	page, err := s.ListUploads(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	// Newest first, offset skips the newest.
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))
}

func TestSQLiteDeleteUpload(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	up := sampleUpload(time.Time{})
	require.NoError(t, s.SaveUpload(ctx, up))
	require.NoError(t, s.DeleteUpload(ctx, up.ID))

	_, err := s.GetUpload(ctx, up.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.True(t, errors.Is(s.DeleteUpload(ctx, up.ID), ErrNotFound))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"})
	assert.Error(t, err)
}

func TestOpenSQLite(t *testing.T) {
	s, err := Open(context.Background(), Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "open.db"),
	})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ListUploads(context.Background(), 10, 0)
	assert.NoError(t, err)
}
