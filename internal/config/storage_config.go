package config

import "time"

// StorageConfig holds the preference database and history export settings
type StorageConfig struct {
	SQLiteDBPath     string `json:"sqlite_db_path,omitempty" yaml:"sqlite_db_path,omitempty" validate:"required"`
	ParquetBasePath  string `json:"parquet_base_path,omitempty" yaml:"parquet_base_path,omitempty"`
	CompressionCodec string `json:"compression_codec,omitempty" yaml:"compression_codec,omitempty" validate:"omitempty,compression"`
	// ExportIntervalSecs of zero disables periodic export
	ExportIntervalSecs int  `json:"export_interval_secs" yaml:"export_interval_secs" validate:"min=0"`
	ExportOnShutdown   bool `json:"export_on_shutdown" yaml:"export_on_shutdown"`
}

// NewDefaultStorageConfig creates default storage configuration
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{
		SQLiteDBPath:       DefaultSQLiteDBPath,
		ParquetBasePath:    DefaultStorageParquetBasePath,
		CompressionCodec:   DefaultStorageCompressionCodec,
		ExportIntervalSecs: DefaultExportIntervalSecs,
		ExportOnShutdown:   true,
	}
}

func (c StorageConfig) ExportInterval() time.Duration {
	return time.Duration(c.ExportIntervalSecs) * time.Second
}
