package updater

import (
	"context"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/config"
	"github.com/aleister1102/hostpulse/internal/httpclient"
	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/rs/zerolog"
)

// Manifest is the release document served at the manifest URL.
type Manifest struct {
	Version      string   `json:"version"`
	ReleaseNotes []string `json:"release_notes"`
}

// Checker compares the running build against the latest published release.
type Checker struct {
	manifestURL string
	current     *semver.Version
	client      *httpclient.Client
	now         func() time.Time
	logger      zerolog.Logger
}

// NewChecker creates a checker for currentVersion. An empty manifest URL
// yields a checker whose Check always returns ErrDisabled.
func NewChecker(cfg config.UpdateConfig, currentVersion string, logger zerolog.Logger) (*Checker, error) {
	current, err := semver.NewVersion(currentVersion)
	if err != nil {
		return nil, errors.NewValidationError("version", currentVersion, "current version is not a semantic version")
	}

	clientCfg := httpclient.DefaultConfig()
	if cfg.TimeoutSecs > 0 {
		clientCfg.Timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	clientCfg.UserAgent = "hostpulse/" + current.String()

	return &Checker{
		manifestURL: strings.TrimSpace(cfg.ManifestURL),
		current:     current,
		client:      httpclient.NewClient(clientCfg, nil, logger),
		now:         time.Now,
		logger:      logger.With().Str("component", "Updater").Logger(),
	}, nil
}

// Enabled reports whether a manifest URL is configured.
func (c *Checker) Enabled() bool {
	return c.manifestURL != ""
}

// CurrentVersion returns the running build version.
func (c *Checker) CurrentVersion() string {
	return c.current.String()
}

// Check fetches the manifest and reports whether a newer version exists.
func (c *Checker) Check(ctx context.Context) (models.UpdateInfo, error) {
	if !c.Enabled() {
		return models.UpdateInfo{}, errors.WrapError(errors.ErrDisabled, "update check")
	}

	var manifest Manifest
	if err := c.client.GetJSON(ctx, c.manifestURL, &manifest); err != nil {
		return models.UpdateInfo{}, errors.WrapError(err, "failed to fetch release manifest")
	}
	return c.compare(manifest)
}

func (c *Checker) compare(manifest Manifest) (models.UpdateInfo, error) {
	latest, err := semver.NewVersion(strings.TrimSpace(manifest.Version))
	if err != nil {
		return models.UpdateInfo{}, errors.NewValidationError("version", manifest.Version, "manifest version is not a semantic version")
	}

	info := models.UpdateInfo{
		CurrentVersion: c.current.String(),
		LatestVersion:  latest.String(),
		HasUpdate:      latest.GreaterThan(c.current),
		CheckedAt:      c.now(),
	}
	if info.HasUpdate {
		info.ReleaseNotes = append([]string(nil), manifest.ReleaseNotes...)
	}

	c.logger.Debug().
		Str("current", info.CurrentVersion).
		Str("latest", info.LatestVersion).
		Bool("has_update", info.HasUpdate).
		Msg("Checked for updates")
	return info, nil
}
