// Package api serves the telemetry engine over HTTP.
package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/config"
	"github.com/aleister1102/hostpulse/internal/datastore"
	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Telemetry is the presentation interface the server exposes.
// sampler.Engine implements it.
type Telemetry interface {
	GetUtilization() models.Utilization
	GetAppActivity() []models.AppActivity
	GetCurrentProfile() models.ProfileState
	SetMode(ctx context.Context, mode models.ProfileMode, manual models.UsageProfile) error
	PushSeriesSample(key string, v float64) error
	ReadSeries(key string) ([]float64, error)
	SeriesKeys() []string
	GetNetwork() models.NetworkRates
	GetStorage() []models.Drive
	GetUpdate() *models.UpdateInfo
	Latest() models.Snapshot
	Subscribe() <-chan models.Snapshot
	Unsubscribe(ch <-chan models.Snapshot)
	NotificationToggles() (map[models.AlertKind]bool, error)
	SetNotificationToggle(ctx context.Context, kind models.AlertKind, enabled bool) error
}

// AlertLog lists recorded alerts. datastore.PreferenceStore implements it.
type AlertLog interface {
	RecentAlerts(ctx context.Context, limit int) ([]datastore.AlertLogEntry, error)
}

const sseKeepAlive = 15 * time.Second

// Server is the HTTP JSON surface of the agent.
type Server struct {
	cfg       config.APIConfig
	telemetry Telemetry
	alertLog  AlertLog
	registry  *prometheus.Registry
	handler   http.Handler
	logger    zerolog.Logger

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates a server. alertLog may be nil.
func NewServer(cfg config.APIConfig, telemetry Telemetry, alertLog AlertLog, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		telemetry: telemetry,
		alertLog:  alertLog,
		registry:  prometheus.NewRegistry(),
		logger:    logger.With().Str("component", "APIServer").Logger(),
	}
	s.registry.MustRegister(
		newTelemetryCollector(telemetry),
		collectors.NewGoCollector(),
	)
	s.handler = s.logRequests(s.routes())
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/utilization", s.handleUtilization)
	mux.HandleFunc("GET /api/activity", s.handleActivity)
	mux.HandleFunc("GET /api/network", s.handleNetwork)
	mux.HandleFunc("GET /api/storage", s.handleStorage)
	mux.HandleFunc("GET /api/update", s.handleUpdate)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)

	mux.HandleFunc("GET /api/profile", s.handleGetProfile)
	mux.HandleFunc("PUT /api/profile", s.handleSetProfile)

	mux.HandleFunc("GET /api/series", s.handleListSeries)
	mux.HandleFunc("GET /api/series/{key}", s.handleReadSeries)
	mux.HandleFunc("POST /api/series/{key}", s.handlePushSeries)

	mux.HandleFunc("GET /api/notifications", s.handleGetNotifications)
	mux.HandleFunc("PUT /api/notifications/{kind}", s.handleSetNotification)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)

	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.ListenAddress
	if addr == "" {
		addr = config.DefaultAPIListenAddress
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.logger.Error().Err(err).Str("address", addr).Msg("Failed to listen")
		return errors.WrapErrorf(err, "failed to listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// Streaming requests are cancelled together with ctx.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	readTimeout := time.Duration(s.cfg.ReadTimeoutSecs) * time.Second
	if readTimeout <= 0 {
		readTimeout = config.DefaultAPIReadTimeoutSecs * time.Second
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", ln.Addr().String()).Msg("API server listening")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.logger.Error().Err(err).Msg("API server failed")
			return errors.WrapError(err, "api server failed")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownTimeout := time.Duration(s.cfg.ShutdownTimeoutSecs) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = config.DefaultAPIShutdownTimeoutSecs * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("API server shutdown did not complete cleanly")
		return errors.WrapError(err, "api server shutdown")
	}
	s.logger.Info().Msg("API server stopped")
	return nil
}
