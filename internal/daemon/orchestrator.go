package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/themekit/internal/daemon/events"
	"git.home.luguber.info/inful/themekit/internal/ferrors"
	"git.home.luguber.info/inful/themekit/internal/logfields"
	"git.home.luguber.info/inful/themekit/internal/metrics"
)

// BuildState is the lifecycle of one watch domain's build pipeline.
type BuildState string

const (
	StateIdle     BuildState = "idle"
	StatePending  BuildState = "pending"
	StateBuilding BuildState = "building"
)

// BuildRunner executes one build for a domain. Implementations must be safe
// for sequential reuse; the orchestrator never runs two builds of the same
// domain concurrently.
type BuildRunner interface {
	// Run performs the build for the coalesced events and returns the
	// manifest version observed when the build started, so the
	// orchestrator can detect publishes that raced with the build.
	Run(ctx context.Context, build events.BuildNow) (startVersion uint64, err error)
}

// BuildRunnerFunc adapts a function to the BuildRunner interface.
type BuildRunnerFunc func(ctx context.Context, build events.BuildNow) (uint64, error)

func (f BuildRunnerFunc) Run(ctx context.Context, build events.BuildNow) (uint64, error) {
	return f(ctx, build)
}

// VersionSource reports the current published manifest version.
type VersionSource interface {
	Version() uint64
}

type domainState struct {
	state    BuildState
	queued   map[string]events.WatchEvent // coalesced while Building
	requeued bool                         // version-race follow-up already spent
}

// Orchestrator serializes builds per domain. Each domain moves through
// Idle -> Pending (debounce in flight) -> Building -> Idle; events arriving
// mid-build coalesce into at most one queued follow-up. Content builds that
// observe a manifest version change during their run are re-queued exactly
// once so pages pick up fresh asset fingerprints.
type Orchestrator struct {
	bus      *events.Bus
	logger   *slog.Logger
	recorder metrics.Recorder

	runners  map[events.Domain]BuildRunner
	versions VersionSource

	mu      sync.Mutex
	domains map[events.Domain]*domainState

	readyOnce sync.Once
	ready     chan struct{}
	wg        sync.WaitGroup
}

// NewOrchestrator wires runners per domain. versions may be nil when no
// domain needs manifest race detection.
func NewOrchestrator(bus *events.Bus, logger *slog.Logger, recorder metrics.Recorder, runners map[events.Domain]BuildRunner, versions VersionSource) (*Orchestrator, error) {
	if bus == nil {
		return nil, ferrors.ValidationError("bus is required").Build()
	}
	if len(runners) == 0 {
		return nil, ferrors.ValidationError("at least one build runner is required").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	o := &Orchestrator{
		bus:      bus,
		logger:   logger,
		recorder: recorder,
		runners:  runners,
		versions: versions,
		domains:  map[events.Domain]*domainState{},
		ready:    make(chan struct{}),
	}
	for domain := range runners {
		o.domains[domain] = &domainState{state: StateIdle, queued: map[string]events.WatchEvent{}}
	}
	return o, nil
}

// Ready is closed once Run has subscribed to the bus.
func (o *Orchestrator) Ready() <-chan struct{} {
	return o.ready
}

// State returns the current lifecycle state for a domain.
func (o *Orchestrator) State(domain events.Domain) BuildState {
	o.mu.Lock()
	defer o.mu.Unlock()
	ds, ok := o.domains[domain]
	if !ok {
		return StateIdle
	}
	return ds.state
}

// Run consumes BuildRequested and BuildNow events until the context is
// canceled. Builds run on their own goroutines, one at a time per domain.
func (o *Orchestrator) Run(ctx context.Context) error {
	if ctx == nil {
		return ferrors.ValidationError("context cannot be nil").Build()
	}

	reqCh, unsubReq := events.Subscribe[events.BuildRequested](o.bus, 64)
	defer unsubReq()
	nowCh, unsubNow := events.Subscribe[events.BuildNow](o.bus, 16)
	defer unsubNow()
	pubCh, unsubPub := events.Subscribe[events.ManifestPublished](o.bus, 16)
	defer unsubPub()

	o.readyOnce.Do(func() { close(o.ready) })

	for {
		select {
		case <-ctx.Done():
			o.wg.Wait()
			return nil
		case req, ok := <-reqCh:
			if !ok {
				o.wg.Wait()
				return nil
			}
			o.onRequested(req)
		case build, ok := <-nowCh:
			if !ok {
				o.wg.Wait()
				return nil
			}
			o.onBuildNow(ctx, build)
		case _, ok := <-pubCh:
			if !ok {
				o.wg.Wait()
				return nil
			}
			o.onManifestPublished(ctx)
		}
	}
}

// onManifestPublished schedules a full content rebuild so rendered pages pick
// up the new fingerprinted asset paths. A content build already in flight is
// covered by the version check in finishAndMaybeRequeue; the empty event set
// below coalesces to nothing in that case.
func (o *Orchestrator) onManifestPublished(ctx context.Context) {
	if _, ok := o.runners[events.DomainContent]; !ok {
		return
	}
	o.onBuildNow(ctx, events.BuildNow{
		Domain:        events.DomainContent,
		TriggeredAt:   time.Now(),
		DebounceCause: "manifest_published",
	})
}

func (o *Orchestrator) onRequested(req events.BuildRequested) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ds, ok := o.domains[req.Event.Domain]
	if !ok {
		return
	}
	if ds.state == StateIdle {
		ds.state = StatePending
	}
	// Pending or Building: the debouncer holds the event and emits at most
	// one follow-up once the domain goes idle. Queueing it here too would
	// rebuild the same path twice.
}

func (o *Orchestrator) onBuildNow(ctx context.Context, build events.BuildNow) {
	o.mu.Lock()
	ds, ok := o.domains[build.Domain]
	if !ok || ds.state == StateBuilding {
		// BuildNow while already building should not happen with the
		// debouncer's running-check, but coalesce defensively anyway.
		if ok {
			for _, evt := range build.Events {
				ds.queued[evt.Path] = evt
			}
		}
		o.mu.Unlock()
		return
	}
	ds.state = StateBuilding
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runBuild(ctx, build)
	}()
}

func (o *Orchestrator) runBuild(ctx context.Context, build events.BuildNow) {
	buildID := uuid.NewString()
	log := o.logger.With(
		logfields.Domain(string(build.Domain)),
		logfields.BuildID(buildID),
	)
	log.Info("build starting",
		slog.Int("events", len(build.Events)),
		slog.Int("requests", build.RequestCount),
		logfields.Cause(build.DebounceCause),
	)

	runner := o.runners[build.Domain]
	started := time.Now()
	startVersion, err := runner.Run(ctx, build)
	duration := time.Since(started)

	status := "success"
	var errText string
	if err != nil {
		status = "failed"
		errText = err.Error()
		log.Error("build failed", slog.Duration("duration", duration), logfields.Error(err))
	} else {
		log.Info("build complete", slog.Duration("duration", duration))
	}
	o.recorder.ObserveBuild(string(build.Domain), status, duration)

	_ = o.bus.Publish(ctx, events.BuildCompleted{
		Domain:     build.Domain,
		BuildID:    buildID,
		Status:     status,
		Error:      errText,
		Duration:   duration,
		FinishedAt: time.Now(),
	})

	o.finishAndMaybeRequeue(ctx, build, startVersion, err == nil)
}

// finishAndMaybeRequeue transitions the domain out of Building and publishes
// a follow-up BuildNow when either (a) events coalesced during the build, or
// (b) a successful content build raced a manifest publish. The race requeue
// fires at most once per stale build.
func (o *Orchestrator) finishAndMaybeRequeue(ctx context.Context, build events.BuildNow, startVersion uint64, succeeded bool) {
	raced := false
	if succeeded && build.Domain == events.DomainContent && o.versions != nil {
		raced = o.versions.Version() != startVersion
	}

	o.mu.Lock()
	ds := o.domains[build.Domain]

	var queued []events.WatchEvent
	if len(ds.queued) > 0 {
		queued = make([]events.WatchEvent, 0, len(ds.queued))
		for _, evt := range ds.queued {
			queued = append(queued, evt)
		}
		ds.queued = map[string]events.WatchEvent{}
	}

	requeue := false
	switch {
	case len(queued) > 0:
		requeue = true
		ds.requeued = false
	case raced && !ds.requeued:
		// Stale fingerprints in rendered pages; rebuild once.
		requeue = true
		ds.requeued = true
	default:
		ds.requeued = false
	}

	if requeue {
		ds.state = StateBuilding
	} else {
		ds.state = StateIdle
	}
	o.mu.Unlock()

	if !requeue {
		return
	}

	cause := "coalesced"
	if len(queued) == 0 {
		cause = "manifest_race"
		o.logger.Info("manifest changed during content build, re-queueing",
			logfields.Domain(string(build.Domain)))
	}
	o.recorder.IncBuildRequeued(string(build.Domain), cause)

	follow := events.BuildNow{
		Domain:        build.Domain,
		Events:        queued,
		TriggeredAt:   time.Now(),
		RequestCount:  len(queued),
		FirstRequest:  time.Now(),
		LastRequest:   time.Now(),
		DebounceCause: cause,
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runBuild(ctx, follow)
	}()
}
