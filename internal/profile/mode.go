package profile

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/rs/zerolog"
)

// ModeStore persists the user's mode preference. LoadMode returns an error
// wrapping errors.ErrNotFound when nothing was saved yet.
type ModeStore interface {
	LoadMode(ctx context.Context) (models.ProfileMode, models.UsageProfile, error)
	SaveMode(ctx context.Context, mode models.ProfileMode, manual models.UsageProfile) error
}

// Controller tracks auto/manual mode and the last detected profile
type Controller struct {
	mu       sync.RWMutex
	mode     models.ProfileMode
	manual   models.UsageProfile
	detected *models.UsageProfile
	store    ModeStore
	logger   zerolog.Logger
}

// NewController creates a controller with the given defaults. store may be nil.
func NewController(store ModeStore, mode models.ProfileMode, manual models.UsageProfile, logger zerolog.Logger) *Controller {
	if _, ok := models.ParseProfileMode(string(mode)); !ok {
		mode = models.ModeAuto
	}
	if _, ok := models.ParseUsageProfile(string(manual)); !ok {
		manual = models.ProfileBalanced
	}
	return &Controller{
		mode:   mode,
		manual: manual,
		store:  store,
		logger: logger.With().Str("component", "ProfileMode").Logger(),
	}
}

// Load restores the saved preference. A missing preference keeps the defaults.
func (c *Controller) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	mode, manual, err := c.store.LoadMode(ctx)
	if stderrors.Is(err, errors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.WrapError(err, "failed to load profile mode")
	}
	if _, ok := models.ParseProfileMode(string(mode)); !ok {
		return errors.NewValidationError("mode", mode, "stored mode is not auto or manual")
	}

	c.mu.Lock()
	c.mode = mode
	if _, ok := models.ParseUsageProfile(string(manual)); ok {
		c.manual = manual
	}
	c.mu.Unlock()

	c.logger.Debug().Str("mode", string(mode)).Str("manual", string(manual)).Msg("Restored profile mode")
	return nil
}

// Set switches the mode and persists it. The manual profile is only
// required in manual mode.
func (c *Controller) Set(ctx context.Context, mode models.ProfileMode, manual models.UsageProfile) error {
	if _, ok := models.ParseProfileMode(string(mode)); !ok {
		return errors.NewValidationError("mode", mode, "must be auto or manual")
	}

	c.mu.RLock()
	if manual == "" {
		manual = c.manual
	}
	c.mu.RUnlock()

	if _, ok := models.ParseUsageProfile(string(manual)); !ok {
		return errors.NewValidationError("profile", manual, "unknown profile")
	}

	if c.store != nil {
		if err := c.store.SaveMode(ctx, mode, manual); err != nil {
			return errors.WrapError(err, "failed to save profile mode")
		}
	}

	c.mu.Lock()
	c.mode = mode
	c.manual = manual
	c.mu.Unlock()

	c.logger.Info().Str("mode", string(mode)).Str("manual", string(manual)).Msg("Profile mode changed")
	return nil
}

// Observe records the latest detected profile
func (c *Controller) Observe(detected models.UsageProfile) {
	c.mu.Lock()
	c.detected = &detected
	c.mu.Unlock()
}

// Current returns the state for the last observed detection
func (c *Controller) Current() models.ProfileState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.mode == models.ModeManual {
		manual := c.manual
		return models.ProfileState{Mode: models.ModeManual, Manual: &manual}
	}

	state := models.ProfileState{Mode: models.ModeAuto}
	if c.detected != nil {
		detected := *c.detected
		state.Detected = &detected
	}
	return state
}
