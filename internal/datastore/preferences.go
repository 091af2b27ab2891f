package datastore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const (
	prefKeyMode          = "profile.mode"
	prefKeyManualProfile = "profile.manual"
	prefKeyTogglePrefix  = "notifications."
)

// AlertLogEntry is one row of the alert_log table.
type AlertLogEntry struct {
	ID       int64
	Key      string
	Kind     models.AlertKind
	Title    string
	Body     string
	RaisedAt time.Time
}

// PreferenceStore persists the profile mode, notification toggles and the
// alert log in a local sqlite database.
type PreferenceStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewPreferenceStore opens (or creates) the database at dataSourceName and
// ensures the schema is set up.
func NewPreferenceStore(dataSourceName string, logger zerolog.Logger) (*PreferenceStore, error) {
	logger = logger.With().Str("component", "PreferenceStore").Logger()
	logger.Info().Str("db_path", dataSourceName).Msg("Initializing preference database")

	dbDir := filepath.Dir(dataSourceName)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error().Err(err).Str("directory", dbDir).Msg("Failed to create database directory")
		return nil, errors.WrapErrorf(err, "failed to create database directory %s", dbDir)
	}

	dbInstance, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		logger.Error().Err(err).Str("db_path", dataSourceName).Msg("Failed to open preference database")
		return nil, errors.WrapErrorf(err, "sql.Open failed for %s", dataSourceName)
	}
	// sqlite allows a single writer; serialising through one connection
	// avoids SQLITE_BUSY between the API and the alert recorder.
	dbInstance.SetMaxOpenConns(1)

	store := &PreferenceStore{
		db:     dbInstance,
		logger: logger,
	}

	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		logger.Error().Err(err).Msg("Failed to initialize database schema")
		return nil, errors.WrapError(err, "failed to initialize schema")
	}
	logger.Debug().Str("path", dataSourceName).Msg("Preference database ready")
	return store, nil
}

// InitSchema creates the tables if they do not exist.
func (s *PreferenceStore) InitSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS alert_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		alert_key TEXT NOT NULL,
		kind TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT,
		raised_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alert_log_raised_at ON alert_log (raised_at);`

	if _, err := s.db.Exec(schema); err != nil {
		return errors.WrapError(err, "failed to create preference schema")
	}
	return nil
}

// Close closes the underlying database.
func (s *PreferenceStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the stored value for key, or an ErrNotFound-wrapped error.
func (s *PreferenceStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", errors.WrapErrorf(errors.ErrNotFound, "preference %q", key)
	}
	if err != nil {
		return "", errors.WrapErrorf(err, "failed to read preference %q", key)
	}
	return value, nil
}

// Set upserts a preference value.
func (s *PreferenceStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to save preference")
		return errors.WrapErrorf(err, "failed to save preference %q", key)
	}
	return nil
}

// LoadMode returns the saved profile mode. It wraps ErrNotFound when no mode
// was ever saved.
func (s *PreferenceStore) LoadMode(ctx context.Context) (models.ProfileMode, models.UsageProfile, error) {
	mode, err := s.Get(ctx, prefKeyMode)
	if err != nil {
		return "", "", err
	}
	manual, err := s.Get(ctx, prefKeyManualProfile)
	if err != nil && !stderrors.Is(err, errors.ErrNotFound) {
		return "", "", err
	}
	return models.ProfileMode(mode), models.UsageProfile(manual), nil
}

// SaveMode persists the mode and the manual profile in one transaction.
func (s *PreferenceStore) SaveMode(ctx context.Context, mode models.ProfileMode, manual models.UsageProfile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapError(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	const upsert = `INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, upsert, prefKeyMode, string(mode), now); err != nil {
		return errors.WrapError(err, "failed to save profile mode")
	}
	if manual != "" {
		if _, err := tx.ExecContext(ctx, upsert, prefKeyManualProfile, string(manual), now); err != nil {
			return errors.WrapError(err, "failed to save manual profile")
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.WrapError(err, "failed to commit profile mode")
	}
	s.logger.Debug().Str("mode", string(mode)).Str("manual", string(manual)).Msg("Saved profile mode")
	return nil
}

// LoadToggles returns the stored notification toggles. Kinds never saved are
// absent from the map.
func (s *PreferenceStore) LoadToggles(ctx context.Context) (map[models.AlertKind]bool, error) {
	toggles := make(map[models.AlertKind]bool)
	for _, kind := range models.AlertKinds {
		value, err := s.Get(ctx, prefKeyTogglePrefix+string(kind))
		if stderrors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			s.logger.Warn().Str("kind", string(kind)).Str("value", value).Msg("Ignoring malformed notification toggle")
			continue
		}
		toggles[kind] = enabled
	}
	return toggles, nil
}

// SaveToggle persists one notification toggle.
func (s *PreferenceStore) SaveToggle(ctx context.Context, kind models.AlertKind, enabled bool) error {
	return s.Set(ctx, prefKeyTogglePrefix+string(kind), strconv.FormatBool(enabled))
}

// RecordAlert appends an alert to the alert log.
func (s *PreferenceStore) RecordAlert(ctx context.Context, alert models.Alert) error {
	raisedAt := alert.At
	if raisedAt.IsZero() {
		raisedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO alert_log (alert_key, kind, title, body, raised_at) VALUES (?, ?, ?, ?, ?)",
		alert.Key, string(alert.Kind), alert.Title, alert.Body, raisedAt.UTC())
	if err != nil {
		s.logger.Error().Err(err).Str("alert_key", alert.Key).Msg("Failed to record alert")
		return errors.WrapErrorf(err, "failed to record alert %s", alert.Key)
	}
	return nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (s *PreferenceStore) RecentAlerts(ctx context.Context, limit int) ([]AlertLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, alert_key, kind, title, body, raised_at FROM alert_log ORDER BY raised_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, errors.WrapError(err, "failed to query alert log")
	}
	defer rows.Close()

	var entries []AlertLogEntry
	for rows.Next() {
		var (
			entry AlertLogEntry
			kind  string
			body  sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.Key, &kind, &entry.Title, &body, &entry.RaisedAt); err != nil {
			return nil, errors.WrapError(err, "failed to scan alert log row")
		}
		entry.Kind = models.AlertKind(kind)
		entry.Body = body.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, "failed to iterate alert log")
	}
	return entries, nil
}
