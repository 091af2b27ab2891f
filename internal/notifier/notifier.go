// Package notifier delivers alerts to the configured sinks.
package notifier

import (
	"context"
	stderrors "errors"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/aleister1102/hostpulse/internal/models"
	"github.com/rs/zerolog"
)

// Notifier delivers one alert
type Notifier interface {
	Notify(ctx context.Context, alert models.Alert) error
}

// NamedNotifier is a sink with a name for logging
type NamedNotifier struct {
	Name string
	Notifier
}

// Dispatcher fans an alert out to every sink. A failing sink does not
// stop delivery to the others.
type Dispatcher struct {
	sinks  []NamedNotifier
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher over sinks
func NewDispatcher(logger zerolog.Logger, sinks ...NamedNotifier) *Dispatcher {
	return &Dispatcher{
		sinks:  sinks,
		logger: logger.With().Str("module", "Dispatcher").Logger(),
	}
}

// Add registers another sink
func (d *Dispatcher) Add(name string, n Notifier) {
	d.sinks = append(d.sinks, NamedNotifier{Name: name, Notifier: n})
}

// Len is the number of registered sinks
func (d *Dispatcher) Len() int {
	return len(d.sinks)
}

// Notify sends alert to each sink and joins the failures
func (d *Dispatcher) Notify(ctx context.Context, alert models.Alert) error {
	var errs []error
	for _, sink := range d.sinks {
		if err := sink.Notify(ctx, alert); err != nil {
			d.logger.Warn().Err(err).Str("sink", sink.Name).Str("alert_key", alert.Key).Msg("Notification sink failed")
			errs = append(errs, errors.WrapErrorf(err, "sink %s", sink.Name))
		}
	}
	return stderrors.Join(errs...)
}

// LogNotifier writes alerts to the agent log
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates the log sink
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("module", "AlertLog").Logger()}
}

func (n *LogNotifier) Notify(ctx context.Context, alert models.Alert) error {
	n.logger.Warn().
		Str("alert_key", alert.Key).
		Str("kind", string(alert.Kind)).
		Time("at", alert.At).
		Msgf("%s: %s", alert.Title, alert.Body)
	return nil
}
