package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/aleister1102/hostpulse/internal/notifier"
	"github.com/rs/zerolog"
)

// Recorder keeps a history of raised alerts
type Recorder interface {
	RecordAlert(ctx context.Context, alert models.Alert) error
}

// ToggleStore persists which alert kinds are enabled. Kinds missing from
// the loaded map keep their default.
type ToggleStore interface {
	LoadToggles(ctx context.Context) (map[models.AlertKind]bool, error)
	SaveToggle(ctx context.Context, kind models.AlertKind, enabled bool) error
}

const (
	// DefaultDeliveryTimeout bounds each notify and record call
	DefaultDeliveryTimeout = 15 * time.Second

	deliveryQueueSize = 32
)

// Manager applies the notification toggles around a Checker and delivers
// what it raises. Delivery runs on a goroutine owned by the manager so a
// slow sink never holds up the caller; Close stops it.
type Manager struct {
	checker  *Checker
	notifier notifier.Notifier
	recorder Recorder
	store    ToggleStore
	logger   zerolog.Logger

	mu      sync.RWMutex
	toggles map[models.AlertKind]bool

	deliveryTimeout time.Duration
	queue           chan models.Alert
	pending         sync.WaitGroup
	done            chan struct{}
	queueMu         sync.Mutex
	closed          bool
}

// NewManager creates an alert manager. recorder and store may be nil.
func NewManager(checker *Checker, n notifier.Notifier, recorder Recorder, store ToggleStore, defaults map[models.AlertKind]bool, logger zerolog.Logger) *Manager {
	toggles := make(map[models.AlertKind]bool, len(models.AlertKinds))
	for _, kind := range models.AlertKinds {
		enabled, ok := defaults[kind]
		toggles[kind] = !ok || enabled
	}
	m := &Manager{
		checker:         checker,
		notifier:        n,
		recorder:        recorder,
		store:           store,
		logger:          logger.With().Str("component", "AlertManager").Logger(),
		toggles:         toggles,
		deliveryTimeout: DefaultDeliveryTimeout,
		queue:           make(chan models.Alert, deliveryQueueSize),
		done:            make(chan struct{}),
	}
	go m.deliverLoop()
	return m
}

// Flush blocks until every alert raised so far has been delivered
func (m *Manager) Flush() {
	m.pending.Wait()
}

// Close delivers the queued alerts and stops the delivery goroutine.
// Alerts raised afterwards are logged and dropped.
func (m *Manager) Close() {
	m.queueMu.Lock()
	if m.closed {
		m.queueMu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.queueMu.Unlock()
	<-m.done
}

// LoadToggles merges persisted toggles over the defaults
func (m *Manager) LoadToggles(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	saved, err := m.store.LoadToggles(ctx)
	if err != nil {
		return errors.WrapError(err, "failed to load notification toggles")
	}
	m.mu.Lock()
	for kind, enabled := range saved {
		if _, known := m.toggles[kind]; known {
			m.toggles[kind] = enabled
		}
	}
	m.mu.Unlock()
	return nil
}

// Toggles returns a copy of the current settings
func (m *Manager) Toggles() map[models.AlertKind]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[models.AlertKind]bool, len(m.toggles))
	for k, v := range m.toggles {
		out[k] = v
	}
	return out
}

// SetToggle enables or disables one alert kind and persists it
func (m *Manager) SetToggle(ctx context.Context, kind models.AlertKind, enabled bool) error {
	if _, ok := models.ParseAlertKind(string(kind)); !ok {
		return errors.NewValidationError("kind", kind, "unknown notification kind")
	}
	if m.store != nil {
		if err := m.store.SaveToggle(ctx, kind, enabled); err != nil {
			return errors.WrapError(err, "failed to save notification toggle")
		}
	}
	m.mu.Lock()
	m.toggles[kind] = enabled
	m.mu.Unlock()
	if kind == models.AlertHighCPU && !enabled {
		m.checker.ResetCPU()
	}
	return nil
}

func (m *Manager) enabled(kind models.AlertKind) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.toggles[kind]
}

// ObserveCPU feeds one utilization sample
func (m *Manager) ObserveCPU(ctx context.Context, pct float64) {
	if !m.enabled(models.AlertHighCPU) {
		return
	}
	if alert, ok := m.checker.ObserveCPU(pct); ok {
		m.raise(alert)
	}
}

// CheckStorage evaluates the low storage rule
func (m *Manager) CheckStorage(ctx context.Context, drives []models.Drive) {
	if !m.enabled(models.AlertLowStorage) {
		return
	}
	if alert, ok := m.checker.CheckStorage(drives); ok {
		m.raise(alert)
	}
}

// CheckUpdate evaluates the update rule
func (m *Manager) CheckUpdate(ctx context.Context, info models.UpdateInfo) {
	if !m.enabled(models.AlertUpdate) {
		return
	}
	if alert, ok := m.checker.CheckUpdate(info); ok {
		m.raise(alert)
	}
}

func (m *Manager) raise(alert models.Alert) {
	m.logger.Info().Str("alert_key", alert.Key).Str("kind", string(alert.Kind)).Msg("Alert raised")

	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	if m.closed {
		m.logger.Warn().Str("alert_key", alert.Key).Msg("Alert manager closed, dropping alert")
		return
	}
	m.pending.Add(1)
	select {
	case m.queue <- alert:
	default:
		m.pending.Done()
		m.logger.Warn().Str("alert_key", alert.Key).Msg("Alert delivery queue full, dropping alert")
	}
}

func (m *Manager) deliverLoop() {
	defer close(m.done)
	for alert := range m.queue {
		m.deliver(alert)
		m.pending.Done()
	}
}

func (m *Manager) deliver(alert models.Alert) {
	if m.notifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.deliveryTimeout)
		if err := m.notifier.Notify(ctx, alert); err != nil {
			m.logger.Warn().Err(err).Str("alert_key", alert.Key).Msg("Alert delivery incomplete")
		}
		cancel()
	}
	if m.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.deliveryTimeout)
		if err := m.recorder.RecordAlert(ctx, alert); err != nil {
			m.logger.Warn().Err(err).Str("alert_key", alert.Key).Msg("Failed to record alert")
		}
		cancel()
	}
}
