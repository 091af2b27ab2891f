package datastore

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/config"
	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *PreferenceStore {
	t.Helper()
	store, err := NewPreferenceStore(filepath.Join(t.TempDir(), "nested", "prefs.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPreferenceStore_ModeRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.LoadMode(ctx)
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))

	require.NoError(t, store.SaveMode(ctx, models.ModeManual, models.ProfileGaming))
	mode, manual, err := store.LoadMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ModeManual, mode)
	assert.Equal(t, models.ProfileGaming, manual)

	// Switching back to auto keeps the last manual choice.
	require.NoError(t, store.SaveMode(ctx, models.ModeAuto, ""))
	mode, manual, err = store.LoadMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ModeAuto, mode)
	assert.Equal(t, models.ProfileGaming, manual)
}

func TestPreferenceStore_Toggles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	toggles, err := store.LoadToggles(ctx)
	require.NoError(t, err)
	assert.Empty(t, toggles)

	require.NoError(t, store.SaveToggle(ctx, models.AlertHighCPU, false))
	require.NoError(t, store.SaveToggle(ctx, models.AlertUpdate, true))
	require.NoError(t, store.SaveToggle(ctx, models.AlertHighCPU, true))

	toggles, err = store.LoadToggles(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[models.AlertKind]bool{
		models.AlertHighCPU: true,
		models.AlertUpdate:  true,
	}, toggles)
}

func TestPreferenceStore_MalformedToggleIgnored(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, prefKeyTogglePrefix+string(models.AlertLowStorage), "maybe"))
	toggles, err := store.LoadToggles(ctx)
	require.NoError(t, err)
	_, present := toggles[models.AlertLowStorage]
	assert.False(t, present)
}

func TestPreferenceStore_AlertLog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordAlert(ctx, models.Alert{Key: "storage-12", Kind: models.AlertLowStorage, Title: "Low storage", Body: "12 GB free", At: base}))
	require.NoError(t, store.RecordAlert(ctx, models.Alert{Key: "update-1.2.0", Kind: models.AlertUpdate, Title: "Update", At: base.Add(time.Minute)}))

	entries, err := store.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "update-1.2.0", entries[0].Key)
	assert.Equal(t, models.AlertUpdate, entries[0].Kind)
	assert.Equal(t, "storage-12", entries[1].Key)
	assert.Equal(t, "12 GB free", entries[1].Body)

	entries, err = store.RecentAlerts(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPreferenceStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	ctx := context.Background()

	store, err := NewPreferenceStore(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.SaveMode(ctx, models.ModeManual, models.ProfileCreative))
	require.NoError(t, store.Close())

	store, err = NewPreferenceStore(path, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()
	mode, manual, err := store.LoadMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ModeManual, mode)
	assert.Equal(t, models.ProfileCreative, manual)
}

func TestSeriesExporter_RoundTrip(t *testing.T) {
	for _, codec := range []string{"zstd", "snappy", "gzip", "none"} {
		t.Run(codec, func(t *testing.T) {
			base := t.TempDir()
			exporter, err := NewSeriesExporter(config.StorageConfig{ParquetBasePath: base, CompressionCodec: codec}, zerolog.Nop())
			require.NoError(t, err)

			snapshot := map[string][]float64{
				"cpu":          {10, 20.5, 30},
				"app.chrome":   {512.25},
				"net.download": {},
			}
			at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

			result, err := exporter.ExportWithResult(context.Background(), snapshot, at)
			require.NoError(t, err)
			assert.Equal(t, 4, result.RecordsWritten)
			assert.Equal(t, filepath.Join(base, "series", "20260301-123000.000.parquet"), result.FilePath)
			assert.Positive(t, result.FileSize)

			got, err := ReadSeriesFile(result.FilePath)
			require.NoError(t, err)
			assert.Equal(t, map[string][]float64{
				"cpu":        {10, 20.5, 30},
				"app.chrome": {512.25},
			}, got)

			files, err := ListExports(base)
			require.NoError(t, err)
			assert.Equal(t, []string{result.FilePath}, files)
		})
	}
}

func TestSeriesExporter_SameSecondExportsKept(t *testing.T) {
	base := t.TempDir()
	exporter, err := NewSeriesExporter(config.StorageConfig{ParquetBasePath: base}, zerolog.Nop())
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	first, err := exporter.Export(context.Background(), map[string][]float64{"cpu": {1}}, at)
	require.NoError(t, err)
	second, err := exporter.Export(context.Background(), map[string][]float64{"cpu": {2}}, at.Add(250*time.Millisecond))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	files, err := ListExports(base)
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, files)
}

type failingFile struct{ f *os.File }

func (w failingFile) Write(p []byte) (int, error) { return 0, stderrors.New("disk full") }
func (w failingFile) Close() error                { return w.f.Close() }

func TestSeriesExporter_FailedWriteRemovesFile(t *testing.T) {
	base := t.TempDir()
	exporter, err := NewSeriesExporter(config.StorageConfig{ParquetBasePath: base}, zerolog.Nop())
	require.NoError(t, err)
	exporter.create = func(path string) (io.WriteCloser, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		return failingFile{f: f}, nil
	}

	_, err = exporter.Export(context.Background(), map[string][]float64{"cpu": {1, 2, 3}}, time.Now())
	require.Error(t, err)

	files, err := ListExports(base)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestSeriesExporter_EmptySnapshot(t *testing.T) {
	exporter, err := NewSeriesExporter(config.StorageConfig{ParquetBasePath: t.TempDir()}, zerolog.Nop())
	require.NoError(t, err)

	_, err = exporter.Export(context.Background(), map[string][]float64{"cpu": nil}, time.Now())
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestSeriesExporter_CancelledContext(t *testing.T) {
	exporter, err := NewSeriesExporter(config.StorageConfig{ParquetBasePath: t.TempDir()}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = exporter.Export(ctx, map[string][]float64{"cpu": {1}}, time.Now())
	assert.True(t, stderrors.Is(err, context.Canceled))
}

func TestNewSeriesExporter_RequiresBasePath(t *testing.T) {
	_, err := NewSeriesExporter(config.StorageConfig{}, zerolog.Nop())
	assert.True(t, stderrors.Is(err, errors.ErrInvalidInput))
}

func TestListExports_MissingDirectory(t *testing.T) {
	files, err := ListExports(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestReadSeriesFile_Missing(t *testing.T) {
	_, err := ReadSeriesFile(filepath.Join(t.TempDir(), "nope.parquet"))
	assert.True(t, stderrors.Is(err, os.ErrNotExist))
}
