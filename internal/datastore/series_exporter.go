package datastore

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/config"
	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
)

const (
	seriesDirName = "series"
	// millisecond resolution keeps a shutdown export from replacing a
	// periodic one written in the same second
	exportNameLayout = "20060102-150405.000"
)

// SeriesRow is the parquet schema of one exported history sample.
type SeriesRow struct {
	SeriesKey  string  `parquet:"series_key"`
	Seq        int32   `parquet:"seq"`
	Value      float64 `parquet:"value"`
	ExportedAt int64   `parquet:"exported_at"` // unix millis
}

// ExportResult describes a finished export.
type ExportResult struct {
	FilePath       string
	RecordsWritten int
	FileSize       int64
	WriteTime      time.Duration
}

// SeriesExporter writes history registry snapshots to parquet files.
type SeriesExporter struct {
	basePath string
	codec    string
	logger   zerolog.Logger
	create   func(path string) (io.WriteCloser, error)
}

// NewSeriesExporter creates an exporter rooted at cfg.ParquetBasePath.
func NewSeriesExporter(cfg config.StorageConfig, logger zerolog.Logger) (*SeriesExporter, error) {
	if cfg.ParquetBasePath == "" {
		return nil, errors.NewValidationError("parquet_base_path", cfg.ParquetBasePath, "parquet base path cannot be empty")
	}
	codec := cfg.CompressionCodec
	if codec == "" {
		codec = config.DefaultStorageCompressionCodec
	}
	return &SeriesExporter{
		basePath: cfg.ParquetBasePath,
		codec:    codec,
		logger:   logger.With().Str("component", "SeriesExporter").Logger(),
		create:   createFile,
	}, nil
}

// Export writes every series in snapshot to <base>/series/<timestamp>.parquet
// and returns the file path. Rows are ordered by series key, then sequence.
func (e *SeriesExporter) Export(ctx context.Context, snapshot map[string][]float64, at time.Time) (string, error) {
	result, err := e.ExportWithResult(ctx, snapshot, at)
	if err != nil {
		return "", err
	}
	return result.FilePath, nil
}

// ExportWithResult is Export with write statistics.
func (e *SeriesExporter) ExportWithResult(ctx context.Context, snapshot map[string][]float64, at time.Time) (*ExportResult, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapError(err, "export cancelled")
	}

	rows := buildSeriesRows(snapshot, at)
	if len(rows) == 0 {
		e.logger.Debug().Msg("No history samples to export")
		return nil, errors.WrapError(errors.ErrNotFound, "no history samples to export")
	}

	filePath, err := e.prepareOutputFile(at)
	if err != nil {
		return nil, err
	}
	if err := e.writeToParquetFile(filePath, rows); err != nil {
		return nil, err
	}

	result := &ExportResult{
		FilePath:       filePath,
		RecordsWritten: len(rows),
		WriteTime:      time.Since(start),
	}
	if info, statErr := os.Stat(filePath); statErr == nil {
		result.FileSize = info.Size()
	}
	e.logger.Info().
		Str("path", filePath).
		Int("records", result.RecordsWritten).
		Int64("size_bytes", result.FileSize).
		Dur("duration", result.WriteTime).
		Msg("Exported history series")
	return result, nil
}

func buildSeriesRows(snapshot map[string][]float64, at time.Time) []SeriesRow {
	keys := make([]string, 0, len(snapshot))
	total := 0
	for key, values := range snapshot {
		keys = append(keys, key)
		total += len(values)
	}
	sort.Strings(keys)

	exportedAt := at.UnixMilli()
	rows := make([]SeriesRow, 0, total)
	for _, key := range keys {
		for i, v := range snapshot[key] {
			rows = append(rows, SeriesRow{SeriesKey: key, Seq: int32(i), Value: v, ExportedAt: exportedAt})
		}
	}
	return rows
}

func (e *SeriesExporter) prepareOutputFile(at time.Time) (string, error) {
	dir := filepath.Join(e.basePath, seriesDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		e.logger.Error().Err(err).Str("directory", dir).Msg("Failed to create export directory")
		return "", errors.WrapErrorf(err, "failed to create export directory %s", dir)
	}
	return filepath.Join(dir, at.UTC().Format(exportNameLayout)+".parquet"), nil
}

func createFile(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// writeToParquetFile removes filePath again when any step fails, so a
// truncated export is never listed or read back.
func (e *SeriesExporter) writeToParquetFile(filePath string, rows []SeriesRow) (err error) {
	file, err := e.create(filePath)
	if err != nil {
		return errors.WrapErrorf(err, "failed to create parquet file %s", filePath)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = errors.WrapErrorf(closeErr, "failed to close parquet file %s", filePath)
		}
		if err != nil {
			if rmErr := os.Remove(filePath); rmErr != nil && !os.IsNotExist(rmErr) {
				e.logger.Warn().Err(rmErr).Str("path", filePath).Msg("Failed to remove incomplete export")
			}
		}
	}()

	writer := parquet.NewGenericWriter[SeriesRow](file, e.compressionOption())
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		e.logger.Error().Err(err).Str("path", filePath).Msg("Failed to write parquet rows")
		return errors.WrapErrorf(err, "failed to write rows to %s", filePath)
	}
	if err := writer.Close(); err != nil {
		e.logger.Error().Err(err).Str("path", filePath).Msg("Failed to flush parquet rows")
		return errors.WrapErrorf(err, "failed to close parquet writer for %s", filePath)
	}
	return nil
}

func (e *SeriesExporter) compressionOption() parquet.WriterOption {
	return compressionOption(e.codec)
}

func compressionOption(codec string) parquet.WriterOption {
	switch codec {
	case "gzip":
		return parquet.Compression(&parquet.Gzip)
	case "snappy":
		return parquet.Compression(&parquet.Snappy)
	case "none":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Zstd)
	}
}

// ReadSeriesFile reads an export back into series keyed by name, each in
// sequence order.
func ReadSeriesFile(filePath string) (map[string][]float64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.WrapErrorf(err, "failed to open parquet file %s", filePath)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	type indexed struct {
		seq   int32
		value float64
	}
	collected := make(map[string][]indexed)
	var row SeriesRow
	for {
		if err := reader.Read(&row); err != nil {
			if stderrors.Is(err, io.EOF) {
				break
			}
			return nil, errors.WrapErrorf(err, "failed to read row from %s", filePath)
		}
		collected[row.SeriesKey] = append(collected[row.SeriesKey], indexed{seq: row.Seq, value: row.Value})
	}

	out := make(map[string][]float64, len(collected))
	for key, samples := range collected {
		sort.Slice(samples, func(i, j int) bool { return samples[i].seq < samples[j].seq })
		values := make([]float64, len(samples))
		for i, s := range samples {
			values[i] = s.value
		}
		out[key] = values
	}
	return out, nil
}

// ListExports returns the export files under basePath, oldest first.
func ListExports(basePath string) ([]string, error) {
	dir := filepath.Join(basePath, seriesDirName)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapErrorf(err, "failed to list exports in %s", dir)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".parquet" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}
