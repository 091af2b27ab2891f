package sampler

import (
	"context"
	stderrors "errors"
	"math"
	"sync"
	"time"

	"github.com/aleister1102/hostpulse/internal/census"
	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/config"
	"github.com/aleister1102/hostpulse/internal/counter"
	"github.com/aleister1102/hostpulse/internal/history"
	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/aleister1102/hostpulse/internal/profile"
	"github.com/aleister1102/hostpulse/internal/provider"
	"github.com/rs/zerolog"
)

// Task names
const (
	TaskUtilization = "utilization"
	TaskNetwork     = "network"
	TaskCensus      = "census"
	TaskStorage     = "storage"
	TaskProfile     = "profile"
	TaskUpdate      = "update"
	TaskExport      = "export"
)

// ErrUnknownSeries is returned when reading a series that was never pushed
// or has been discarded.
var ErrUnknownSeries = errors.WrapError(errors.ErrNotFound, "unknown series")

// AlertSink receives the samples alert rules are evaluated on.
// alerts.Manager implements it.
type AlertSink interface {
	ObserveCPU(ctx context.Context, pct float64)
	CheckStorage(ctx context.Context, drives []models.Drive)
	CheckUpdate(ctx context.Context, info models.UpdateInfo)
	Toggles() map[models.AlertKind]bool
	SetToggle(ctx context.Context, kind models.AlertKind, enabled bool) error
}

// UpdateChecker fetches the latest release information.
type UpdateChecker interface {
	Check(ctx context.Context) (models.UpdateInfo, error)
}

// Exporter persists a copy of the history registry.
type Exporter interface {
	Export(ctx context.Context, snapshot map[string][]float64, at time.Time) (string, error)
}

// Deps are the collaborators of an Engine. Provider, Census, Detector and
// Mode are required; the rest may be nil.
type Deps struct {
	Provider provider.Provider
	Census   *census.Builder
	Detector *profile.Detector
	Mode     *profile.Controller
	Alerts   AlertSink
	Updater  UpdateChecker
	Exporter Exporter
}

// Options tune the engine schedule and history.
type Options struct {
	UtilizationInterval time.Duration
	NetworkInterval     time.Duration
	CensusInterval      time.Duration
	ProfileInterval     time.Duration
	UpdateInterval      time.Duration
	UpdateTimeout       time.Duration
	ExportInterval      time.Duration
	QueryTimeout        time.Duration
	HistoryCapacity     int
	SmoothingAge        float64
	TopN                int
	ExportOnShutdown    bool
}

// OptionsFromConfig derives engine options from the loaded configuration.
func OptionsFromConfig(cfg *config.GlobalConfig) Options {
	updateTimeout := time.Duration(cfg.UpdateConfig.TimeoutSecs) * time.Second
	if updateTimeout <= 0 {
		updateTimeout = config.DefaultUpdateTimeoutSecs * time.Second
	}
	return Options{
		UtilizationInterval: cfg.SamplerConfig.UtilizationInterval(),
		NetworkInterval:     cfg.SamplerConfig.NetworkInterval(),
		CensusInterval:      cfg.SamplerConfig.CensusInterval(),
		ProfileInterval:     cfg.SamplerConfig.ProfileInterval(),
		UpdateInterval:      cfg.UpdateConfig.CheckInterval(),
		UpdateTimeout:       2 * updateTimeout,
		ExportInterval:      cfg.StorageConfig.ExportInterval(),
		QueryTimeout:        cfg.SamplerConfig.QueryTimeout(),
		HistoryCapacity:     cfg.SamplerConfig.HistoryCapacity,
		SmoothingAge:        cfg.SamplerConfig.SmoothingAge,
		TopN:                cfg.SamplerConfig.TopN,
		ExportOnShutdown:    cfg.StorageConfig.ExportOnShutdown,
	}
}

// Engine wires the readers, history and hub together and exposes the
// presentation interface.
type Engine struct {
	deps     Deps
	opts     Options
	registry *history.Registry
	hub      *Hub
	sampler  *Sampler
	now      func() time.Time
	logger   zerolog.Logger

	// owned by the utilization task
	cpu  *counter.Reader
	util models.Utilization

	// owned by the network task
	download *counter.RateMeter
	upload   *counter.RateMeter

	// written by the census task, read by the profile task
	censusMu   sync.RWMutex
	lastCensus census.Census

	gpuMissingLogged bool
}

// NewEngine validates deps and builds the task set.
func NewEngine(deps Deps, opts Options, logger zerolog.Logger) (*Engine, error) {
	if deps.Provider == nil || deps.Census == nil || deps.Detector == nil || deps.Mode == nil {
		return nil, errors.NewValidationError("deps", nil, "provider, census builder, detector and mode controller are required")
	}

	e := &Engine{
		deps:     deps,
		opts:     opts,
		registry: history.NewRegistry(opts.HistoryCapacity, opts.SmoothingAge),
		hub:      NewHub(),
		now:      time.Now,
		logger:   logger.With().Str("component", "Engine").Logger(),
		cpu:      counter.NewReader(),
		download: counter.NewRateMeter(),
		upload:   counter.NewRateMeter(),
	}

	tasks := []Task{
		{Name: TaskUtilization, Interval: opts.UtilizationInterval, Timeout: opts.QueryTimeout, Run: e.sampleUtilization},
		{Name: TaskNetwork, Interval: opts.NetworkInterval, Timeout: opts.QueryTimeout, Run: e.sampleNetwork},
		{Name: TaskCensus, Interval: opts.CensusInterval, Timeout: opts.QueryTimeout, Run: e.sampleCensus},
		{Name: TaskStorage, Interval: opts.CensusInterval, Timeout: opts.QueryTimeout, Run: e.sampleStorage},
		{Name: TaskProfile, Interval: opts.ProfileInterval, Run: e.sampleProfile},
	}
	if deps.Updater != nil {
		tasks = append(tasks, Task{Name: TaskUpdate, Interval: opts.UpdateInterval, Timeout: opts.UpdateTimeout, Run: e.checkUpdate})
	}
	if deps.Exporter != nil {
		tasks = append(tasks, Task{Name: TaskExport, Interval: opts.ExportInterval, Run: e.exportHistory})
	}
	e.sampler = NewSampler(logger, tasks...)

	// publish the initial mode so pollers see it before the first profile tick
	e.publishProfile()
	return e, nil
}

// Start launches every task loop.
func (e *Engine) Start(ctx context.Context) {
	e.sampler.Start(ctx)
}

// Stop cancels the task loops, optionally writes a final export and closes
// all subscriptions.
func (e *Engine) Stop() {
	if !e.sampler.IsRunning() {
		return
	}
	e.sampler.Stop()

	if e.opts.ExportOnShutdown && e.deps.Exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := e.exportHistory(ctx); err != nil {
			e.logger.Warn().Err(err).Msg("Final history export failed")
		}
		cancel()
	}
	e.hub.Close()
}

// RunOnce runs one tick of each named task in order, or of every task when
// names is empty. Errors from individual tasks are joined.
func (e *Engine) RunOnce(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = e.sampler.TaskNames()
	}
	var errs []error
	for _, name := range names {
		if err := e.sampler.RunOnce(ctx, name); err != nil {
			errs = append(errs, errors.NewSourceError(name, err))
		}
	}
	return stderrors.Join(errs...)
}

// GetUtilization returns the latest CPU, RAM and GPU percentages.
func (e *Engine) GetUtilization() models.Utilization {
	return e.hub.Latest().Utilization
}

// GetAppActivity returns the top-N applications by memory, descending.
func (e *Engine) GetAppActivity() []models.AppActivity {
	return e.hub.Latest().Activity
}

// GetCurrentProfile returns the mode and, in auto mode, the detected profile.
func (e *Engine) GetCurrentProfile() models.ProfileState {
	return e.deps.Mode.Current()
}

// SetMode switches between auto and manual mode and publishes the change.
func (e *Engine) SetMode(ctx context.Context, mode models.ProfileMode, manual models.UsageProfile) error {
	if err := e.deps.Mode.Set(ctx, mode, manual); err != nil {
		return err
	}
	e.publishProfile()
	return nil
}

// PushSeriesSample appends an externally produced sample to a series.
func (e *Engine) PushSeriesSample(key string, v float64) error {
	if key == "" {
		return errors.NewValidationError("key", key, "series key cannot be empty")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.NewValidationError("value", v, "series value must be finite")
	}
	e.registry.Push(key, v)
	return nil
}

// ReadSeries returns every value of a series in time order.
func (e *Engine) ReadSeries(key string) ([]float64, error) {
	values, ok := e.registry.Read(key)
	if !ok {
		return nil, errors.WrapErrorf(ErrUnknownSeries, "%q", key)
	}
	return values, nil
}

// SeriesKeys lists the tracked series.
func (e *Engine) SeriesKeys() []string {
	return e.registry.Keys()
}

// HistoryCapacity is the per-series sample limit.
func (e *Engine) HistoryCapacity() int {
	return e.registry.Capacity()
}

// GetNetwork returns the latest throughput.
func (e *Engine) GetNetwork() models.NetworkRates {
	return e.hub.Latest().Network
}

// GetStorage returns the latest drive list.
func (e *Engine) GetStorage() []models.Drive {
	return e.hub.Latest().Storage
}

// GetUpdate returns the last update check result, nil before the first
// successful check.
func (e *Engine) GetUpdate() *models.UpdateInfo {
	return e.hub.Latest().Update
}

// Latest returns the whole published snapshot.
func (e *Engine) Latest() models.Snapshot {
	return e.hub.Latest()
}

// Subscribe returns a channel of published snapshots.
func (e *Engine) Subscribe() <-chan models.Snapshot {
	return e.hub.Subscribe()
}

// Unsubscribe releases a channel returned by Subscribe.
func (e *Engine) Unsubscribe(ch <-chan models.Snapshot) {
	e.hub.Unsubscribe(ch)
}

// NotificationToggles returns which alert kinds are enabled.
func (e *Engine) NotificationToggles() (map[models.AlertKind]bool, error) {
	if e.deps.Alerts == nil {
		return nil, errors.WrapError(errors.ErrDisabled, "alerts")
	}
	return e.deps.Alerts.Toggles(), nil
}

// SetNotificationToggle enables or disables one alert kind.
func (e *Engine) SetNotificationToggle(ctx context.Context, kind models.AlertKind, enabled bool) error {
	if e.deps.Alerts == nil {
		return errors.WrapError(errors.ErrDisabled, "alerts")
	}
	return e.deps.Alerts.SetToggle(ctx, kind, enabled)
}

func (e *Engine) sampleUtilization(ctx context.Context) error {
	var errs []error
	util := e.util
	freshCPU := false

	if snap, err := e.deps.Provider.CPUTimes(ctx); err != nil {
		errs = append(errs, errors.WrapError(err, "cpu times"))
	} else {
		util.CPU = counter.Round1(counter.Clamp(e.cpu.Read(snap), 0, 100))
		freshCPU = true
	}

	if mem, err := e.deps.Provider.Memory(ctx); err != nil {
		errs = append(errs, errors.WrapError(err, "memory"))
	} else if mem.TotalBytes > 0 {
		used := float64(mem.TotalBytes) - float64(mem.AvailableBytes)
		util.RAM = counter.Round1(counter.Percent(used, float64(mem.TotalBytes)))
	}

	gpu, err := e.deps.Provider.GPUUtilization(ctx)
	switch {
	case stderrors.Is(err, provider.ErrGPUUnavailable):
		util.GPU = 0
		if !e.gpuMissingLogged {
			e.logger.Debug().Msg("GPU utilization unavailable, reporting 0")
			e.gpuMissingLogged = true
		}
	case err != nil:
		errs = append(errs, errors.WrapError(err, "gpu"))
	default:
		util.GPU = counter.Round1(counter.Clamp(gpu, 0, 100))
	}

	e.util = util
	e.registry.Push(history.SeriesCPU, util.CPU)
	e.registry.Push(history.SeriesRAM, util.RAM)
	e.registry.Push(history.SeriesGPU, util.GPU)
	e.hub.Update(func(s *models.Snapshot) { s.Utilization = util })

	if freshCPU && e.deps.Alerts != nil {
		e.deps.Alerts.ObserveCPU(ctx, util.CPU)
	}
	return stderrors.Join(errs...)
}

func (e *Engine) sampleNetwork(ctx context.Context) error {
	counters, err := e.deps.Provider.NetCounters(ctx)
	if err != nil {
		return errors.WrapError(err, "network counters")
	}

	at := e.now()
	rates := models.NetworkRates{
		DownloadMbps: bytesPerSecToMbps(e.download.Rate(counters.BytesRecv, at)),
		UploadMbps:   bytesPerSecToMbps(e.upload.Rate(counters.BytesSent, at)),
	}
	e.registry.Push(history.SeriesNetDownload, rates.DownloadMbps)
	e.registry.Push(history.SeriesNetUpload, rates.UploadMbps)
	e.hub.Update(func(s *models.Snapshot) { s.Network = rates })
	return nil
}

func bytesPerSecToMbps(bps float64) float64 {
	return math.Round(bps*8/1e4) / 100
}

func (e *Engine) sampleCensus(ctx context.Context) error {
	raw, err := e.deps.Provider.Processes(ctx)
	if err != nil {
		// Series and the last census stay as they were so detection and the
		// charts carry over to the next successful tick.
		empty := census.ToActivity(nil)
		e.hub.Update(func(s *models.Snapshot) { s.Activity = empty })
		return errors.WrapError(err, "process enumeration")
	}
	current := e.deps.Census.Build(raw)

	e.censusMu.Lock()
	e.lastCensus = current
	e.censusMu.Unlock()

	top := census.TopN(current, e.opts.TopN)
	live := make(map[string]struct{}, len(top))
	for _, rec := range top {
		live[rec.Key] = struct{}{}
		e.registry.PushSmoothed(history.AppSeriesKey(rec.Key), census.MemoryMB(rec.MemoryKB))
	}
	if dropped := e.registry.Retain(history.AppSeriesPrefix, live); len(dropped) > 0 {
		e.logger.Debug().Strs("series", dropped).Msg("Discarded series of closed applications")
	}

	activity := census.ToActivity(top)
	e.hub.Update(func(s *models.Snapshot) { s.Activity = activity })
	return nil
}

func (e *Engine) sampleStorage(ctx context.Context) error {
	drives, err := e.deps.Provider.Storage(ctx)
	if err != nil {
		return errors.WrapError(err, "storage")
	}
	published := append([]models.Drive(nil), drives...)
	e.hub.Update(func(s *models.Snapshot) { s.Storage = published })

	if e.deps.Alerts != nil {
		e.deps.Alerts.CheckStorage(ctx, drives)
	}
	return nil
}

func (e *Engine) sampleProfile(ctx context.Context) error {
	e.censusMu.RLock()
	current := e.lastCensus
	e.censusMu.RUnlock()

	if current == nil {
		// no census yet
		return nil
	}
	e.deps.Mode.Observe(e.deps.Detector.Detect(current))
	e.publishProfile()
	return nil
}

func (e *Engine) publishProfile() {
	state := e.deps.Mode.Current()
	e.hub.Update(func(s *models.Snapshot) { s.Profile = state })
}

func (e *Engine) checkUpdate(ctx context.Context) error {
	info, err := e.deps.Updater.Check(ctx)
	if stderrors.Is(err, errors.ErrDisabled) {
		return nil
	}
	if err != nil {
		return err
	}
	e.hub.Update(func(s *models.Snapshot) { s.Update = &info })
	if info.HasUpdate && e.deps.Alerts != nil {
		e.deps.Alerts.CheckUpdate(ctx, info)
	}
	return nil
}

func (e *Engine) exportHistory(ctx context.Context) error {
	snapshot := e.registry.Snapshot()
	path, err := e.deps.Exporter.Export(ctx, snapshot, e.now())
	if stderrors.Is(err, errors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.WrapError(err, "history export")
	}
	e.logger.Debug().Str("path", path).Msg("History exported")
	return nil
}
