// Package metrics exposes the refresh and mutation counters of the sync
// layer. Components hold a Recorder; NoopRecorder is the default so callers
// never need nil checks.
package metrics

import "time"

// ResultLabel enumerates operation result categories for counters.
type ResultLabel string

const (
	ResultSuccess     ResultLabel = "success"
	ResultFailed      ResultLabel = "failed"
	ResultUnavailable ResultLabel = "unavailable" // no daemon client
)

// Recorder defines observability hooks for the sync layer.
type Recorder interface {
	ObserveRefreshDuration(kind string, d time.Duration)
	IncRefreshResult(kind string, result ResultLabel)
	IncMutationResult(action string, result ResultLabel)
	// TaskStarted and TaskDone move the in-flight gauge by one each, so
	// concurrent tasks never race on an absolute value.
	TaskStarted()
	TaskDone()
}

// NoopRecorder is a Recorder that does nothing (default when metrics are disabled).
type NoopRecorder struct{}

func (NoopRecorder) ObserveRefreshDuration(string, time.Duration) {}
func (NoopRecorder) IncRefreshResult(string, ResultLabel)         {}
func (NoopRecorder) IncMutationResult(string, ResultLabel)        {}
func (NoopRecorder) TaskStarted()                                 {}
func (NoopRecorder) TaskDone()                                    {}
