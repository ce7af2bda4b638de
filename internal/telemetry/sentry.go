// Package telemetry reports server-side errors to Sentry.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
)

// FlushTimeout bounds how long Close waits for queued events.
const FlushTimeout = 2 * time.Second

// GetLogger returns the telemetry module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}

// Init configures the Sentry SDK and routes reportable errors to it.
// With telemetry disabled the error package gets a disabled reporter and
// nothing is sent.
func Init(settings *conf.SentrySettings, release string) error {
	if !settings.Enabled {
		errors.SetTelemetryReporter(errors.NewSentryReporter(false))
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		Environment:      settings.Environment,
		Release:          "aplose@" + release,
		SampleRate:       1.0,
		AttachStacktrace: false,
		BeforeSend:       applyPrivacyFilters,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	GetLogger().Info("error telemetry enabled", logger.String("environment", settings.Environment))
	return nil
}

// Close flushes buffered events.
func Close() {
	if r := errors.GetTelemetryReporter(); r == nil || !r.IsEnabled() {
		return
	}
	if !sentry.Flush(FlushTimeout) {
		GetLogger().Warn("telemetry flush timed out")
	}
}

// applyPrivacyFilters drops user, host and request data from an event.
func applyPrivacyFilters(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
	}
	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}
