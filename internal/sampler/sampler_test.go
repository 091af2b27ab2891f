package sampler

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampler_FailingTaskDoesNotStopOthers(t *testing.T) {
	var good, bad, panicky int32
	s := NewSampler(zerolog.Nop(),
		Task{Name: "good", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			atomic.AddInt32(&good, 1)
			return nil
		}},
		Task{Name: "bad", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			atomic.AddInt32(&bad, 1)
			return stderrors.New("query failed")
		}},
		Task{Name: "panicky", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			atomic.AddInt32(&panicky, 1)
			panic("boom")
		}},
	)

	s.Start(context.Background())
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&good) >= 3 && atomic.LoadInt32(&bad) >= 3 && atomic.LoadInt32(&panicky) >= 3
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestSampler_RunsImmediately(t *testing.T) {
	ran := make(chan struct{}, 1)
	s := NewSampler(zerolog.Nop(), Task{Name: "slow-interval", Interval: time.Hour, Run: func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}})

	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task did not run on start")
	}
}

func TestSampler_StartStopIdempotent(t *testing.T) {
	s := NewSampler(zerolog.Nop(), Task{Name: "noop", Interval: time.Millisecond, Run: func(context.Context) error { return nil }})

	s.Start(context.Background())
	s.Start(context.Background())
	assert.True(t, s.IsRunning())

	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestSampler_StopCancelsInFlightTick(t *testing.T) {
	started := make(chan struct{})
	s := NewSampler(zerolog.Nop(), Task{Name: "hung", Interval: time.Hour, Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}})

	s.Start(context.Background())
	<-started

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not abandon the hung tick")
	}
}

func TestSampler_TickTimeout(t *testing.T) {
	s := NewSampler(zerolog.Nop(), Task{Name: "slow", Timeout: 10 * time.Millisecond, Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	err := s.RunOnce(context.Background(), "slow")
	assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
}

func TestSampler_RunOnce(t *testing.T) {
	var calls int32
	s := NewSampler(zerolog.Nop(), Task{Name: "count", Run: func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}})

	require.NoError(t, s.RunOnce(context.Background(), "count"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	err := s.RunOnce(context.Background(), "missing")
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))

	err = NewSampler(zerolog.Nop(), Task{Name: "p", Run: func(context.Context) error { panic("x") }}).RunOnce(context.Background(), "p")
	assert.ErrorContains(t, err, "panicked")
}

func TestSampler_DisabledTaskNotScheduled(t *testing.T) {
	var calls int32
	s := NewSampler(zerolog.Nop(), Task{Name: "off", Run: func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}})
	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestHub_SlowSubscriberGetsNewest(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()

	for i := 1; i <= 3; i++ {
		cpu := float64(i)
		h.Update(func(s *models.Snapshot) { s.Utilization.CPU = cpu })
	}

	got := <-ch
	assert.Equal(t, 3.0, got.Utilization.CPU)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected buffered snapshot %+v", extra)
	default:
	}
}

func TestHub_LatestIsCopy(t *testing.T) {
	h := NewHub()
	h.Update(func(s *models.Snapshot) {
		s.Activity = []models.AppActivity{{Key: "chrome", Name: "Chrome"}}
	})

	latest := h.Latest()
	latest.Activity[0].Name = "mutated"
	assert.Equal(t, "Chrome", h.Latest().Activity[0].Name)
	assert.False(t, latest.UpdatedAt.IsZero())
}

func TestHub_UnsubscribeAndClose(t *testing.T) {
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe()
	assert.Equal(t, 2, h.Subscribers())

	h.Unsubscribe(a)
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, h.Subscribers())

	h.Close()
	_, open = <-b
	assert.False(t, open)

	late := h.Subscribe()
	_, open = <-late
	assert.False(t, open)

	// updates after close are ignored
	h.Update(func(s *models.Snapshot) { s.Utilization.CPU = 50 })
	assert.Zero(t, h.Latest().Utilization.CPU)
}
