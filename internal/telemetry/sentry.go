// Package telemetry provides opt-in, privacy-filtered error reporting to Sentry.
package telemetry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/fraktlabs/fencewatch/internal/conf"
	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/logger"
)

var initialized atomic.Bool

// allowedExtras are the only event extras that survive the privacy filter.
var allowedExtras = map[string]struct{}{
	"error_type": {},
	"component":  {},
}

// Init configures the Sentry SDK and routes built errors to it. Reporting is
// opt-in: with telemetry disabled Init only logs and returns nil.
func Init(settings conf.TelemetrySettings, release string) error {
	return initWith(settings, release, nil)
}

// initWith lets tests substitute the transport.
func initWith(settings conf.TelemetrySettings, release string, transport sentry.Transport) error {
	log := GetLogger()
	if !settings.Enabled {
		log.Info("error telemetry is disabled (opt-in required)")
		return nil
	}
	if settings.DSN == "" && transport == nil {
		return errors.Newf("telemetry enabled without a dsn").
			Category(errors.CategoryConfiguration).
			Context("field", "telemetry.dsn").
			Build()
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",
		Release:          fmt.Sprintf("fencewatch@%s", release),
		BeforeSend:       beforeSend,
		Transport:        transport,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	initialized.Store(true)
	log.Info("error telemetry enabled", logger.String("release", release))
	return nil
}

// beforeSend strips anything that could identify the host or the people
// being monitored.
func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	for k := range event.Extra {
		if _, ok := allowedExtras[k]; !ok {
			delete(event.Extra, k)
		}
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}

// Flush waits up to timeout for queued events and detaches the reporter.
func Flush(timeout time.Duration) bool {
	if !initialized.CompareAndSwap(true, false) {
		return true
	}
	errors.SetTelemetryReporter(nil)
	return sentry.Flush(timeout)
}

// GetLogger returns the telemetry module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}
