package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/config"
	"github.com/aleister1102/hostpulse/internal/datastore"
	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/aleister1102/hostpulse/internal/sampler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTelemetry struct {
	*sampler.Hub

	mu      sync.Mutex
	profile models.ProfileState
	series  map[string][]float64
	toggles map[models.AlertKind]bool
	setErr  error
}

func newFakeTelemetry() *fakeTelemetry {
	detected := models.ProfileBrowsing
	f := &fakeTelemetry{
		Hub:     sampler.NewHub(),
		profile: models.ProfileState{Mode: models.ModeAuto, Detected: &detected},
		series:  map[string][]float64{"cpu": {10, 20}},
		toggles: map[models.AlertKind]bool{
			models.AlertLowStorage: true,
			models.AlertHighCPU:    true,
			models.AlertUpdate:     false,
		},
	}
	f.Hub.Update(func(s *models.Snapshot) {
		s.Utilization = models.Utilization{CPU: 42.5, RAM: 60, GPU: 0}
		s.Activity = []models.AppActivity{{Key: "chrome", Name: "Chrome", MemoryMB: 1024, Instances: 8, Category: models.CategoryBrowser}}
		s.Network = models.NetworkRates{DownloadMbps: 12.5, UploadMbps: 1.25}
		s.Storage = []models.Drive{{Name: "sda1", Mountpoint: "/", TotalGB: 500, UsedGB: 400, FreeGB: 100, UsedPercent: 80}}
		s.Profile = f.profile
	})
	return f
}

func (f *fakeTelemetry) GetUtilization() models.Utilization { return f.Latest().Utilization }
func (f *fakeTelemetry) GetAppActivity() []models.AppActivity {
	return f.Latest().Activity
}
func (f *fakeTelemetry) GetNetwork() models.NetworkRates { return f.Latest().Network }
func (f *fakeTelemetry) GetStorage() []models.Drive { return f.Latest().Storage }
func (f *fakeTelemetry) GetUpdate() *models.UpdateInfo { return f.Latest().Update }

func (f *fakeTelemetry) GetCurrentProfile() models.ProfileState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile
}

func (f *fakeTelemetry) SetMode(ctx context.Context, mode models.ProfileMode, manual models.UsageProfile) error {
	if _, ok := models.ParseUsageProfile(string(manual)); mode == models.ModeManual && !ok {
		return errors.NewValidationError("profile", manual, "unknown profile")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if mode == models.ModeManual {
		f.profile = models.ProfileState{Mode: mode, Manual: &manual}
	} else {
		detected := models.ProfileBrowsing
		f.profile = models.ProfileState{Mode: mode, Detected: &detected}
	}
	return nil
}

func (f *fakeTelemetry) PushSeriesSample(key string, v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.series[key] = append(f.series[key], v)
	return nil
}

func (f *fakeTelemetry) ReadSeries(key string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, ok := f.series[key]
	if !ok {
		return nil, sampler.ErrUnknownSeries
	}
	return append([]float64(nil), values...), nil
}

func (f *fakeTelemetry) SeriesKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.series))
	for k := range f.series {
		keys = append(keys, k)
	}
	return keys
}

func (f *fakeTelemetry) NotificationToggles() (map[models.AlertKind]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[models.AlertKind]bool, len(f.toggles))
	for k, v := range f.toggles {
		out[k] = v
	}
	return out, nil
}

func (f *fakeTelemetry) SetNotificationToggle(ctx context.Context, kind models.AlertKind, enabled bool) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles[kind] = enabled
	return nil
}

type fakeAlertLog struct {
	entries []datastore.AlertLogEntry
	limit   int
}

func (f *fakeAlertLog) RecentAlerts(ctx context.Context, limit int) ([]datastore.AlertLogEntry, error) {
	f.limit = limit
	if limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func newTestServer(t *testing.T, alertLog AlertLog) (*Server, *fakeTelemetry) {
	t.Helper()
	telemetry := newFakeTelemetry()
	return NewServer(config.NewDefaultAPIConfig(), telemetry, alertLog, zerolog.Nop()), telemetry
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_ReadEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := doRequest(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/utilization", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var util models.Utilization
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &util))
	assert.Equal(t, 42.5, util.CPU)

	rec = doRequest(t, h, http.MethodGet, "/api/activity", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var apps []models.AppActivity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apps))
	require.Len(t, apps, 1)
	assert.Equal(t, "chrome", apps[0].Key)

	rec = doRequest(t, h, http.MethodGet, "/api/network", "")
	assert.JSONEq(t, `{"download_mbps":12.5,"upload_mbps":1.25}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodGet, "/api/storage", "")
	assert.Contains(t, rec.Body.String(), `"free_gb":100`)

	rec = doRequest(t, h, http.MethodGet, "/api/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot models.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, 60.0, snapshot.Utilization.RAM)
}

func TestServer_UpdateBeforeFirstCheck(t *testing.T) {
	srv, telemetry := newTestServer(t, nil)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/update", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	telemetry.Hub.Update(func(s *models.Snapshot) {
		s.Update = &models.UpdateInfo{CurrentVersion: "1.0.0", LatestVersion: "1.1.0", HasUpdate: true}
	})
	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/update", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"has_update":true`)
}

func TestServer_Profile(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := doRequest(t, h, http.MethodGet, "/api/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"mode":"auto","detected":"browsing","active":"browsing"}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodPut, "/api/profile", `{"mode":"manual","profile":"gaming"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"mode":"manual","manual":"gaming","active":"gaming"}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodPut, "/api/profile", `{"mode":"sometimes"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPut, "/api/profile", `{"mode":"manual","profile":"working"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPut, "/api/profile", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestServer_Series(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := doRequest(t, h, http.MethodPost, "/api/series/custom", `{"value":3.5}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/series/custom", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"custom","values":[3.5]}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodGet, "/api/series", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.ElementsMatch(t, []string{"cpu", "custom"}, listed["series"])

	rec = doRequest(t, h, http.MethodGet, "/api/series/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/series/custom", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodDelete, "/api/series/custom", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Notifications(t *testing.T) {
	srv, telemetry := newTestServer(t, nil)
	h := srv.Handler()

	rec := doRequest(t, h, http.MethodGet, "/api/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"low_storage":true,"high_cpu":true,"updates":false}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodPut, "/api/notifications/updates", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"low_storage":true,"high_cpu":true,"updates":true}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodPut, "/api/notifications/battery", `{"enabled":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodPut, "/api/notifications/high_cpu", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	telemetry.setErr = errors.WrapError(errors.ErrDisabled, "alerts are disabled")
	rec = doRequest(t, h, http.MethodPut, "/api/notifications/high_cpu", `{"enabled":false}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Alerts(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/alerts", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	log := &fakeAlertLog{entries: []datastore.AlertLogEntry{
		{ID: 2, Key: "cpu-1", Kind: models.AlertHighCPU, Title: "High CPU"},
		{ID: 1, Key: "storage-12", Kind: models.AlertLowStorage, Title: "Low storage"},
	}}
	srv, _ = newTestServer(t, log)

	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/alerts?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, log.limit)
	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "cpu-1", entries[0]["key"])

	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, log.limit)

	rec = doRequest(t, srv.Handler(), http.MethodGet, "/api/alerts?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "hostpulse_cpu_utilization_percent 42.5")
	assert.Contains(t, body, `hostpulse_network_throughput_mbps{direction="download"} 12.5`)
	assert.Contains(t, body, `hostpulse_drive_free_gb{mountpoint="/"} 100`)
	assert.Contains(t, body, `hostpulse_app_instances{app="chrome",category="browser"} 8`)
	assert.Contains(t, body, `hostpulse_profile_active{mode="auto",profile="browsing"} 1`)
	assert.Contains(t, body, "hostpulse_update_available 0")
	assert.Contains(t, body, "go_goroutines")
}

func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if data != "" {
				return data
			}
			continue
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestServer_EventStream(t *testing.T) {
	srv, telemetry := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var first models.Snapshot
	require.NoError(t, json.Unmarshal([]byte(readEvent(t, reader)), &first))
	assert.Equal(t, 42.5, first.Utilization.CPU)

	require.Eventually(t, func() bool { return telemetry.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	telemetry.Hub.Update(func(s *models.Snapshot) { s.Utilization.CPU = 99 })

	var second models.Snapshot
	require.NoError(t, json.Unmarshal([]byte(readEvent(t, reader)), &second))
	assert.Equal(t, 99.0, second.Utilization.CPU)

	cancel()
	assert.Eventually(t, func() bool { return telemetry.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
