package events

import "time"

// Domain identifies one of the two independently watched source trees.
type Domain string

const (
	DomainContent Domain = "content"
	DomainAsset   Domain = "asset"
)

// ChangeKind classifies a filesystem change.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// WatchEvent is a single filesystem observation. Produced by the watcher,
// consumed once by the orchestration pipeline, never persisted.
type WatchEvent struct {
	Domain    Domain
	Path      string
	Kind      ChangeKind
	Timestamp time.Time
}

// BuildRequested asks the domain's debouncer to schedule a build.
type BuildRequested struct {
	Event       WatchEvent
	Reason      string
	RequestedAt time.Time
}

// BuildNow is emitted by a debouncer once a burst has settled: exactly one
// per burst, carrying the coalesced events (latest per path).
type BuildNow struct {
	Domain        Domain
	Events        []WatchEvent
	TriggeredAt   time.Time
	RequestCount  int
	FirstRequest  time.Time
	LastRequest   time.Time
	DebounceCause string
}

// BuildCompleted reports a finished build in either domain.
type BuildCompleted struct {
	Domain     Domain
	BuildID    string
	Status     string // success | failed
	Error      string
	Duration   time.Duration
	FinishedAt time.Time
}

// ManifestPublished announces that the asset pipeline atomically replaced
// the manifest. Content builds use the version for read-after-write checks.
type ManifestPublished struct {
	ManifestID  string
	Version     uint64
	Fingerprint string
	PublishedAt time.Time
}

// ClientNotify carries a live-update instruction destined for connected
// browser clients.
type ClientNotify struct {
	Type     string // style-update | full-reload
	ModuleID string
	Payload  string
}
