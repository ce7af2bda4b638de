package metrics

// Recorder defines a minimal interface for recording metrics.
// Domain components depend on it instead of on concrete collectors.
type Recorder interface {
	// RecordOperation records an operation with its status.
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type.
	// The errorType parameter is the error category (e.g., "validation", "database").
	RecordError(operation, errorType string)

	// AddCount adds n entity changes of the given action (e.g., "created").
	AddCount(operation, action string, n int)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordOperation(string, string) {}
func (NopRecorder) RecordDuration(string, float64) {}
func (NopRecorder) RecordError(string, string)     {}
func (NopRecorder) AddCount(string, string, int)   {}

// OrNop returns r, or a NopRecorder when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return NopRecorder{}
	}
	return r
}
