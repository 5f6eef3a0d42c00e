package files

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/docmark/internal/client/models"
	"github.com/dmitrijs2005/docmark/internal/client/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func rec(id string, uploaded time.Time) models.FileRecord {
	return models.FileRecord{
		ID:            id,
		OriginalName:  id + ".pdf",
		SizeBytes:     42,
		Status:        models.StatusProcessed,
		IsWatermarked: true,
		WatermarkID:   "WM-" + id,
		UploadedAt:    uploaded,
		Metadata:      map[string]any{"dept": "legal"},
	}
}

func TestReplaceAll_ListNewestFirst(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, r.ReplaceAll(ctx, []models.FileRecord{
		rec("1", base),
		rec("2", base.Add(time.Hour)),
		{ID: "local-x", Provisional: true, Status: models.StatusUploading},
	}))

	got, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "WM-1", got[1].WatermarkID)
	assert.Equal(t, "legal", got[1].Metadata["dept"])
	assert.True(t, got[1].UploadedAt.Equal(base))
}

func TestReplaceAll_Replaces(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, r.ReplaceAll(ctx, []models.FileRecord{rec("1", now), rec("2", now)}))
	require.NoError(t, r.ReplaceAll(ctx, []models.FileRecord{rec("3", now)}))

	got, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].ID)
}

func TestClear(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.ReplaceAll(ctx, []models.FileRecord{rec("1", time.Now())}))
	require.NoError(t, r.Clear(ctx))

	got, err := r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
