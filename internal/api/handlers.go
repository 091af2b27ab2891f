package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/models"
)

const maxBodyBytes = 64 * 1024

type errorResponse struct {
	Error string `json:"error"`
}

type profileResponse struct {
	Mode     models.ProfileMode   `json:"mode"`
	Detected *models.UsageProfile `json:"detected,omitempty"`
	Manual   *models.UsageProfile `json:"manual,omitempty"`
	Active   models.UsageProfile  `json:"active"`
}

type setProfileRequest struct {
	Mode    string `json:"mode"`
	Profile string `json:"profile,omitempty"`
}

type seriesResponse struct {
	Key    string    `json:"key"`
	Values []float64 `json:"values"`
}

type pushSampleRequest struct {
	Value *float64 `json:"value"`
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

type alertResponse struct {
	ID       int64            `json:"id"`
	Key      string           `json:"key"`
	Kind     models.AlertKind `json:"kind"`
	Title    string           `json:"title"`
	Body     string           `json:"body,omitempty"`
	RaisedAt time.Time        `json:"raised_at"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest
	case stderrors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, errors.ErrDisabled), stderrors.Is(err, errors.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("Request failed")
	}
	writeError(w, status, err.Error())
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewValidationError("body", nil, fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUtilization(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.telemetry.GetUtilization())
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	apps := s.telemetry.GetAppActivity()
	if apps == nil {
		apps = []models.AppActivity{}
	}
	writeJSON(w, http.StatusOK, apps)
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.telemetry.GetNetwork())
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	drives := s.telemetry.GetStorage()
	if drives == nil {
		drives = []models.Drive{}
	}
	writeJSON(w, http.StatusOK, drives)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	info := s.telemetry.GetUpdate()
	if info == nil {
		writeError(w, http.StatusNotFound, "no update check has completed")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.telemetry.Latest())
}

func toProfileResponse(state models.ProfileState) profileResponse {
	return profileResponse{
		Mode:     state.Mode,
		Detected: state.Detected,
		Manual:   state.Manual,
		Active:   state.Active(),
	}
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toProfileResponse(s.telemetry.GetCurrentProfile()))
}

func (s *Server) handleSetProfile(w http.ResponseWriter, r *http.Request) {
	var req setProfileRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	mode, ok := models.ParseProfileMode(req.Mode)
	if !ok {
		writeError(w, http.StatusBadRequest, "mode must be auto or manual")
		return
	}
	if err := s.telemetry.SetMode(r.Context(), mode, models.UsageProfile(req.Profile)); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(s.telemetry.GetCurrentProfile()))
}

func (s *Server) handleListSeries(w http.ResponseWriter, r *http.Request) {
	keys := s.telemetry.SeriesKeys()
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"series": keys})
}

func (s *Server) handleReadSeries(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	values, err := s.telemetry.ReadSeries(key)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seriesResponse{Key: key, Values: values})
}

func (s *Server) handlePushSeries(w http.ResponseWriter, r *http.Request) {
	var req pushSampleRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}
	if err := s.telemetry.PushSeriesSample(r.PathValue("key"), *req.Value); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func togglesResponse(toggles map[models.AlertKind]bool) map[string]bool {
	out := make(map[string]bool, len(toggles))
	for kind, enabled := range toggles {
		out[string(kind)] = enabled
	}
	return out
}

func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	toggles, err := s.telemetry.NotificationToggles()
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, togglesResponse(toggles))
}

func (s *Server) handleSetNotification(w http.ResponseWriter, r *http.Request) {
	kind, ok := models.ParseAlertKind(r.PathValue("kind"))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown notification kind %q", r.PathValue("kind")))
		return
	}
	var req toggleRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	if err := s.telemetry.SetNotificationToggle(r.Context(), kind, *req.Enabled); err != nil {
		s.writeErr(w, err)
		return
	}
	toggles, err := s.telemetry.NotificationToggles()
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, togglesResponse(toggles))
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.alertLog == nil {
		writeError(w, http.StatusServiceUnavailable, "alert log is not configured")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	entries, err := s.alertLog.RecentAlerts(r.Context(), limit)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	out := make([]alertResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, alertResponse{ID: e.ID, Key: e.Key, Kind: e.Kind, Title: e.Title, Body: e.Body, RaisedAt: e.RaisedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleEvents streams every published snapshot as a server-sent event,
// starting with the current one.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	sub := s.telemetry.Subscribe()
	defer s.telemetry.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(snapshot models.Snapshot) error {
		data, err := json.Marshal(snapshot)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := send(s.telemetry.Latest()); err != nil {
		s.logger.Debug().Err(err).Msg("Event stream closed")
		return
	}

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot, ok := <-sub:
			if !ok {
				return
			}
			if err := send(snapshot); err != nil {
				s.logger.Debug().Err(err).Msg("Event stream closed")
				return
			}
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
