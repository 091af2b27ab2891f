// Package sampler runs the periodic telemetry tasks and publishes their
// results.
package sampler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/rs/zerolog"
)

// Task is one independently scheduled metric family.
type Task struct {
	Name     string
	Interval time.Duration // <= 0 disables the periodic loop
	Timeout  time.Duration // per-tick deadline, 0 for none
	Run      func(ctx context.Context) error
}

type taskState struct {
	Task
	mu sync.Mutex // serialises ticks of the same task
}

// Sampler runs every task in its own goroutine with its own ticker. A
// failing or panicking tick is logged and the loop continues.
type Sampler struct {
	tasks  []*taskState
	byName map[string]*taskState
	logger zerolog.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewSampler creates a sampler for tasks. Task names must be unique.
func NewSampler(logger zerolog.Logger, tasks ...Task) *Sampler {
	s := &Sampler{
		byName: make(map[string]*taskState, len(tasks)),
		logger: logger.With().Str("component", "Sampler").Logger(),
	}
	for _, t := range tasks {
		state := &taskState{Task: t}
		s.tasks = append(s.tasks, state)
		s.byName[t.Name] = state
	}
	return s
}

// Start launches the task loops. Each task ticks once immediately.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.isRunning = true

	for _, task := range s.tasks {
		if task.Interval <= 0 {
			s.logger.Debug().Str("task", task.Name).Msg("Task has no interval, not scheduled")
			continue
		}
		s.wg.Add(1)
		go s.loop(runCtx, task)
	}
	s.logger.Info().Int("tasks", len(s.tasks)).Msg("Sampler started")
}

// Stop cancels every task and waits for the loops to exit.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info().Msg("Sampler stopped")
}

// IsRunning reports whether the loops are active.
func (s *Sampler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// RunOnce runs a single tick of the named task and returns its error.
func (s *Sampler) RunOnce(ctx context.Context, name string) error {
	task, ok := s.byName[name]
	if !ok {
		return errors.WrapErrorf(errors.ErrNotFound, "task %q", name)
	}
	return s.tick(ctx, task)
}

// TaskNames lists the tasks in registration order.
func (s *Sampler) TaskNames() []string {
	names := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		names = append(names, t.Name)
	}
	return names
}

func (s *Sampler) loop(ctx context.Context, task *taskState) {
	defer s.wg.Done()

	_ = s.tick(ctx, task)

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.tick(ctx, task)
		}
	}
}

func (s *Sampler) tick(ctx context.Context, task *taskState) (err error) {
	task.mu.Lock()
	defer task.mu.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	tickCtx := ctx
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		tickCtx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name, r)
			s.logger.Error().Str("task", task.Name).Interface("panic", r).Msg("Recovered from panic in sampler task")
		}
	}()

	start := time.Now()
	err = task.Run(tickCtx)
	if err != nil {
		if ctx.Err() != nil {
			// shutdown in progress
			return err
		}
		s.logger.Warn().Err(err).Str("task", task.Name).Msg("Sampler tick failed")
		return err
	}
	s.logger.Debug().Str("task", task.Name).Dur("duration", time.Since(start)).Msg("Sampler tick completed")
	return nil
}
