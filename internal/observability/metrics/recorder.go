// Package metrics provides custom Prometheus metrics for fencewatch components.
package metrics

// Recorder defines a minimal interface for recording storage metrics.
// Components depend on this instead of concrete collectors so tests can
// pass a no-op.
type Recorder interface {
	// RecordOperation records an operation such as "save" or "load" with
	// its status ("success" or "error").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its category.
	RecordError(operation, errorType string)
}

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordOperation(string, string) {}
func (NopRecorder) RecordDuration(string, float64) {}
func (NopRecorder) RecordError(string, string)     {}
