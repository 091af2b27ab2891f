package notifier

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	got []models.Alert
	err error
}

func (r *recordingNotifier) Notify(ctx context.Context, alert models.Alert) error {
	r.got = append(r.got, alert)
	return r.err
}

func TestDispatcher_FailingSinkDoesNotStopOthers(t *testing.T) {
	failing := &recordingNotifier{err: stderrors.New("webhook down")}
	healthy := &recordingNotifier{}

	d := NewDispatcher(zerolog.Nop(), NamedNotifier{Name: "discord", Notifier: failing})
	d.Add("log", healthy)
	assert.Equal(t, 2, d.Len())

	alert := models.Alert{Key: "storage-12", Kind: models.AlertLowStorage, At: time.Now()}
	err := d.Notify(context.Background(), alert)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink discord")
	assert.Len(t, failing.got, 1)
	require.Len(t, healthy.got, 1)
	assert.Equal(t, "storage-12", healthy.got[0].Key)
}

func TestDispatcher_NoSinks(t *testing.T) {
	assert.NoError(t, NewDispatcher(zerolog.Nop()).Notify(context.Background(), models.Alert{}))
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))

	require.NoError(t, n.Notify(context.Background(), models.Alert{Key: "update-1.2.0", Kind: models.AlertUpdate, Title: "Update available", Body: "1.2.0"}))
	assert.Contains(t, buf.String(), "update-1.2.0")
	assert.Contains(t, buf.String(), "Update available: 1.2.0")
}
