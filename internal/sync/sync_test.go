package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greport/greport/internal/db"
	"github.com/greport/greport/internal/github"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "greport.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestSinceFor(t *testing.T) {
	c := New(nil, nil, Options{Overlap: time.Hour})
	watermark := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, c.sinceFor(true, &watermark).IsZero(), "forced full pass ignores the watermark")
	assert.True(t, c.sinceFor(false, nil).IsZero(), "never-synced surface starts from scratch")
	assert.Equal(t, watermark.Add(-time.Hour), c.sinceFor(false, &watermark))
}

func TestNewDefaults(t *testing.T) {
	c := New(nil, nil, Options{})
	assert.Equal(t, DefaultOverlap, c.overlap)
	assert.NotNil(t, c.log)
}

func TestSyncAllEmptyWarehouse(t *testing.T) {
	database := openTestDB(t)
	registry := github.NewRegistry(nil, github.Credential{}, nil)
	c := New(database, registry, Options{})

	batch, err := c.SyncAll(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, batch.TotalRepos)
	assert.Empty(t, batch.Results)
	assert.Zero(t, batch.Successful)
	assert.Zero(t, batch.Failed)
}
