package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/aleister1102/hostpulse/internal/config"
	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestChecker(clock *fakeClock) *Checker {
	c := NewChecker(Rules{
		LowStorageGB:      15,
		HighCPUPercent:    90,
		HighCPUSustain:    3,
		HighCPUCooldown:   20 * time.Minute,
		PrimaryMountpoint: "/",
	})
	c.now = clock.now
	return c
}

func TestCheckStorage_OncePerKey(t *testing.T) {
	c := newTestChecker(&fakeClock{t: time.Unix(1_700_000_000, 0)})
	drives := []models.Drive{{Mountpoint: "/data", FreeGB: 1}, {Mountpoint: "/", FreeGB: 12.7, UsedPercent: 95}}

	alert, ok := c.CheckStorage(drives)
	require.True(t, ok)
	assert.Equal(t, "storage-12", alert.Key)
	assert.Equal(t, models.AlertLowStorage, alert.Kind)
	assert.Contains(t, alert.Body, "/")

	_, ok = c.CheckStorage(drives)
	assert.False(t, ok, "same key is not raised twice")

	drives[1].FreeGB = 11.2
	alert, ok = c.CheckStorage(drives)
	require.True(t, ok)
	assert.Equal(t, "storage-11", alert.Key)
}

func TestCheckStorage_Bounds(t *testing.T) {
	c := newTestChecker(&fakeClock{t: time.Now()})

	_, ok := c.CheckStorage([]models.Drive{{Mountpoint: "/", FreeGB: 0}})
	assert.False(t, ok, "zero free means unknown")
	_, ok = c.CheckStorage([]models.Drive{{Mountpoint: "/", FreeGB: 15.1}})
	assert.False(t, ok)
	_, ok = c.CheckStorage([]models.Drive{{Mountpoint: "/", FreeGB: 15}})
	assert.True(t, ok, "exactly at the threshold alerts")
	_, ok = c.CheckStorage([]models.Drive{{Mountpoint: "/other", FreeGB: 3}})
	assert.False(t, ok, "only the primary drive counts")
}

func TestObserveCPU_SustainAndCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestChecker(clock)

	_, ok := c.ObserveCPU(95)
	assert.False(t, ok)
	_, ok = c.ObserveCPU(95)
	assert.False(t, ok)
	_, ok = c.ObserveCPU(80) // run broken
	assert.False(t, ok)

	for i := 0; i < 2; i++ {
		_, ok = c.ObserveCPU(99)
		assert.False(t, ok)
	}
	alert, ok := c.ObserveCPU(90)
	require.True(t, ok, "threshold is inclusive")
	assert.Equal(t, models.AlertHighCPU, alert.Kind)

	// sustained again within the cooldown
	clock.t = clock.t.Add(5 * time.Minute)
	for i := 0; i < 5; i++ {
		_, ok = c.ObserveCPU(99)
		assert.False(t, ok)
	}

	// the load never dropped, so the next sample after the cooldown fires
	clock.t = clock.t.Add(20 * time.Minute)
	second, ok := c.ObserveCPU(99)
	require.True(t, ok)
	assert.NotEqual(t, alert.Key, second.Key)

	// after firing a fresh run is needed
	clock.t = clock.t.Add(time.Hour)
	_, ok = c.ObserveCPU(99)
	assert.False(t, ok)
}

func TestObserveCPU_SubSecondCooldown(t *testing.T) {
	c := NewChecker(Rules{HighCPUPercent: 90, HighCPUSustain: 1, HighCPUCooldown: 500 * time.Millisecond})
	assert.Equal(t, time.Second, c.rules.HighCPUCooldown)

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c.now = clock.now

	var alert models.Alert
	var ok bool
	require.NotPanics(t, func() { alert, ok = c.ObserveCPU(99) })
	require.True(t, ok)
	assert.Equal(t, "cpu-1700000000", alert.Key)

	clock.t = clock.t.Add(2 * time.Second)
	second, ok := c.ObserveCPU(99)
	require.True(t, ok)
	assert.NotEqual(t, alert.Key, second.Key)
}

func TestCheckUpdate(t *testing.T) {
	c := newTestChecker(&fakeClock{t: time.Now()})

	_, ok := c.CheckUpdate(models.UpdateInfo{CurrentVersion: "1.0.0", LatestVersion: "1.0.0"})
	assert.False(t, ok)

	info := models.UpdateInfo{CurrentVersion: "1.0.0", LatestVersion: "1.1.0", HasUpdate: true, ReleaseNotes: []string{"Faster census"}}
	alert, ok := c.CheckUpdate(info)
	require.True(t, ok)
	assert.Equal(t, "update-1.1.0", alert.Key)
	assert.Contains(t, alert.Body, "Faster census")

	_, ok = c.CheckUpdate(info)
	assert.False(t, ok)
}

func TestRulesFromConfigDefaults(t *testing.T) {
	c := NewChecker(RulesFromConfig(config.NewDefaultAlertConfig()))
	assert.Equal(t, 20*time.Minute, c.rules.HighCPUCooldown)
	assert.Equal(t, config.DefaultHighCPUSustainSamples, c.rules.HighCPUSustain)

	empty := NewChecker(Rules{})
	assert.Equal(t, config.DefaultLowStorageGB, empty.rules.LowStorageGB)
}

type captureNotifier struct{ alerts []models.Alert }

func (c *captureNotifier) Notify(ctx context.Context, a models.Alert) error {
	c.alerts = append(c.alerts, a)
	return nil
}

type memoryStore struct {
	toggles map[models.AlertKind]bool
	alerts  []models.Alert
}

func (m *memoryStore) LoadToggles(ctx context.Context) (map[models.AlertKind]bool, error) {
	return m.toggles, nil
}

func (m *memoryStore) SaveToggle(ctx context.Context, kind models.AlertKind, enabled bool) error {
	m.toggles[kind] = enabled
	return nil
}

func (m *memoryStore) RecordAlert(ctx context.Context, a models.Alert) error {
	m.alerts = append(m.alerts, a)
	return nil
}

func TestManager_TogglesAndDelivery(t *testing.T) {
	ctx := context.Background()
	sink := &captureNotifier{}
	store := &memoryStore{toggles: map[models.AlertKind]bool{models.AlertUpdate: false}}
	checker := newTestChecker(&fakeClock{t: time.Now()})

	m := NewManager(checker, sink, store, store, nil, zerolog.Nop())
	defer m.Close()
	require.NoError(t, m.LoadToggles(ctx))
	assert.False(t, m.Toggles()[models.AlertUpdate])
	assert.True(t, m.Toggles()[models.AlertLowStorage])

	m.CheckUpdate(ctx, models.UpdateInfo{LatestVersion: "2.0.0", HasUpdate: true})
	m.Flush()
	assert.Empty(t, sink.alerts, "disabled kind is not raised")

	m.CheckStorage(ctx, []models.Drive{{Mountpoint: "/", FreeGB: 3}})
	m.Flush()
	require.Len(t, sink.alerts, 1)
	require.Len(t, store.alerts, 1)
	assert.Equal(t, "storage-3", store.alerts[0].Key)

	require.NoError(t, m.SetToggle(ctx, models.AlertUpdate, true))
	assert.True(t, store.toggles[models.AlertUpdate])
	m.CheckUpdate(ctx, models.UpdateInfo{LatestVersion: "2.0.0", HasUpdate: true})
	m.Flush()
	assert.Len(t, sink.alerts, 2)

	assert.Error(t, m.SetToggle(ctx, "fan_speed", true))
}

func TestManager_DisabledCPUResetsRun(t *testing.T) {
	ctx := context.Background()
	sink := &captureNotifier{}
	checker := newTestChecker(&fakeClock{t: time.Now()})
	m := NewManager(checker, sink, nil, nil, map[models.AlertKind]bool{models.AlertHighCPU: true}, zerolog.Nop())
	defer m.Close()

	m.ObserveCPU(ctx, 99)
	m.ObserveCPU(ctx, 99)
	require.NoError(t, m.SetToggle(ctx, models.AlertHighCPU, false))
	require.NoError(t, m.SetToggle(ctx, models.AlertHighCPU, true))
	m.ObserveCPU(ctx, 99)
	m.Flush()
	assert.Empty(t, sink.alerts)
}

type blockingNotifier struct {
	entered chan struct{}
	release chan struct{}
	err     error
}

func (b *blockingNotifier) Notify(ctx context.Context, a models.Alert) error {
	close(b.entered)
	select {
	case <-b.release:
	case <-ctx.Done():
		b.err = ctx.Err()
	}
	return b.err
}

func TestManager_SlowSinkDoesNotBlockCaller(t *testing.T) {
	sink := &blockingNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	store := &memoryStore{toggles: map[models.AlertKind]bool{}}
	m := NewManager(newTestChecker(&fakeClock{t: time.Now()}), sink, store, store, nil, zerolog.Nop())
	defer m.Close()

	returned := make(chan struct{})
	go func() {
		m.CheckStorage(context.Background(), []models.Drive{{Mountpoint: "/", FreeGB: 3}})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("CheckStorage waited for the notifier")
	}
	<-sink.entered
	close(sink.release)

	m.Flush()
	require.Len(t, store.alerts, 1)
	assert.Equal(t, "storage-3", store.alerts[0].Key)
}

func TestManager_DeliveryTimeout(t *testing.T) {
	sink := &blockingNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	store := &memoryStore{toggles: map[models.AlertKind]bool{}}
	m := NewManager(newTestChecker(&fakeClock{t: time.Now()}), sink, store, store, nil, zerolog.Nop())
	m.deliveryTimeout = 20 * time.Millisecond

	// the caller's context is already done; delivery uses its own deadline
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.CheckStorage(ctx, []models.Drive{{Mountpoint: "/", FreeGB: 3}})
	m.Close()

	assert.ErrorIs(t, sink.err, context.DeadlineExceeded)
	require.Len(t, store.alerts, 1, "the alert is still recorded")

	m.CheckStorage(context.Background(), []models.Drive{{Mountpoint: "/", FreeGB: 2}})
	assert.Len(t, store.alerts, 1, "alerts after Close are dropped")
}
