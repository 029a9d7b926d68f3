// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"regexp"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

var globalTelemetryReporter atomic.Pointer[TelemetryReporter]

// SetTelemetryReporter sets the global telemetry reporter; nil disables reporting
func SetTelemetryReporter(reporter TelemetryReporter) {
	if reporter == nil {
		globalTelemetryReporter.Store(nil)
		return
	}
	globalTelemetryReporter.Store(&reporter)
}

// reportToTelemetry forwards ee to the active reporter. User input problems
// and missing records are expected conditions and never reported.
func reportToTelemetry(ee *EnhancedError) {
	ptr := globalTelemetryReporter.Load()
	if ptr == nil || !(*ptr).IsEnabled() {
		return
	}
	switch ee.Category {
	case CategoryValidation, CategoryNotFound, CategoryConflict, CategoryCancellation:
		return
	}
	(*ptr).ReportError(ee)
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError sends ee to Sentry with URLs and credentials scrubbed
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	message := scrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))
	component := ee.GetComponent()

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetFingerprint([]string{component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = levelForCategory(ee.Category)
		event.Exception = []sentry.Exception{{
			Type:  component + " " + string(ee.Category),
			Value: message,
		}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

func levelForCategory(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryCapture, CategoryInference, CategoryChannel, CategoryNetwork, CategoryTimeout:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

var (
	urlQueryPattern  = regexp.MustCompile(`(https?://[^\s?]+)\?[^\s]*`)
	urlPathPattern   = regexp.MustCompile(`(https?://[^/\s]+)/[^\s]*`)
	credentialsInURL = regexp.MustCompile(`://[^:/@\s]+:[^@\s]+@`)
)

// scrubMessage strips URL paths and queries; bot tokens and relay ids live there.
func scrubMessage(s string) string {
	s = credentialsInURL.ReplaceAllString(s, "://[REDACTED]@")
	s = urlQueryPattern.ReplaceAllString(s, "$1")
	return urlPathPattern.ReplaceAllString(s, "$1/[PATH]")
}
