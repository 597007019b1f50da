// Package metrics defines the observability hooks for the build daemon.
package metrics

import "time"

// Recorder defines observability hooks for build and live-update metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe for concurrent use.
type Recorder interface {
	ObserveBuild(domain, status string, d time.Duration)
	IncCoalesced(domain string, dropped int)
	IncBuildRequeued(domain, cause string)
	IncModulesRebuilt(domain string, n int)
	SetLiveClients(n int)
	IncBroadcast(kind string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuild(string, string, time.Duration) {}
func (NoopRecorder) IncCoalesced(string, int)                   {}
func (NoopRecorder) IncBuildRequeued(string, string)            {}
func (NoopRecorder) IncModulesRebuilt(string, int)              {}
func (NoopRecorder) SetLiveClients(int)                         {}
func (NoopRecorder) IncBroadcast(string)                        {}
