package daemon

import (
	"context"
	"sync"
	"time"

	"git.home.luguber.info/inful/themekit/internal/daemon/events"
	"git.home.luguber.info/inful/themekit/internal/ferrors"
	"git.home.luguber.info/inful/themekit/internal/metrics"
)

// DebouncerConfig tunes one domain's event coalescing.
type DebouncerConfig struct {
	Domain      events.Domain
	QuietWindow time.Duration
	MaxDelay    time.Duration

	// CheckBuildRunning reports whether the domain's build is currently
	// running. When true, the debouncer avoids emitting BuildNow and
	// schedules exactly one follow-up after the running build finishes.
	CheckBuildRunning func() bool

	// PollInterval controls how often the debouncer polls for build
	// completion after detecting a running build.
	PollInterval time.Duration

	Recorder metrics.Recorder
}

// Debouncer coalesces bursts of BuildRequested events for one watch domain
// into a single BuildNow:
//   - quiet window debounce: a burst of rapid saves triggers exactly one build
//   - max delay: a steady stream of events cannot postpone a build forever
//   - per-path coalescing: only the most recent event per path survives
//   - if a build is already running, queue exactly one follow-up
//
// It is safe to run as a single goroutine.
type Debouncer struct {
	bus *events.Bus
	cfg DebouncerConfig

	mu        sync.Mutex
	readyOnce sync.Once
	ready     chan struct{}

	pending         map[string]events.WatchEvent
	pendingAfterRun bool
	firstRequestAt  time.Time
	lastRequestAt   time.Time
	requestCount    int
	pollingAfterRun bool
}

// NewDebouncer validates the configuration and returns a debouncer.
func NewDebouncer(bus *events.Bus, cfg DebouncerConfig) (*Debouncer, error) {
	if bus == nil {
		return nil, ferrors.ValidationError("bus is required").Build()
	}
	if cfg.Domain == "" {
		return nil, ferrors.ValidationError("domain is required").Build()
	}
	if cfg.QuietWindow <= 0 {
		return nil, ferrors.ValidationError("quiet window must be > 0").Build()
	}
	if cfg.MaxDelay <= 0 {
		return nil, ferrors.ValidationError("max delay must be > 0").Build()
	}
	if cfg.CheckBuildRunning == nil {
		cfg.CheckBuildRunning = func() bool { return false }
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NoopRecorder{}
	}
	return &Debouncer{bus: bus, cfg: cfg, ready: make(chan struct{}), pending: map[string]events.WatchEvent{}}, nil
}

// Ready is closed once Run has subscribed to events. Intended for tests and
// deterministic startup sequencing.
func (d *Debouncer) Ready() <-chan struct{} {
	return d.ready
}

// Run processes BuildRequested events until the context is canceled or the
// bus closes.
func (d *Debouncer) Run(ctx context.Context) error {
	if ctx == nil {
		return ferrors.ValidationError("context cannot be nil").Build()
	}

	reqCh, unsubscribe := events.Subscribe[events.BuildRequested](d.bus, 64)
	defer unsubscribe()

	d.readyOnce.Do(func() { close(d.ready) })

	quietTimer := newStoppedTimer()
	maxTimer := newStoppedTimer()
	pollTimer := newStoppedTimer()

	var (
		quietC <-chan time.Time
		maxC   <-chan time.Time
		pollC  <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case req, ok := <-reqCh:
			if !ok {
				return nil
			}
			if req.Event.Domain != d.cfg.Domain {
				continue
			}
			d.onRequest(req)

			resetTimer(quietTimer, d.cfg.QuietWindow)
			quietC = quietTimer.C

			if d.shouldStartMaxTimer() {
				resetTimer(maxTimer, d.cfg.MaxDelay)
				maxC = maxTimer.C
			}

		case <-quietC:
			if d.tryEmit(ctx, "quiet") {
				quietC = nil
				maxC = nil
			}
			// else: build running; we poll until completion.

		case <-maxC:
			if d.tryEmit(ctx, "max_delay") {
				quietC = nil
				maxC = nil
			}

		case <-pollC:
			if d.tryEmitAfterRunning(ctx) {
				pollC = nil
				quietC = nil
				maxC = nil
				continue
			}
			resetTimer(pollTimer, d.cfg.PollInterval)
			pollC = pollTimer.C
		}

		// Start polling only once there is a queued follow-up.
		if d.shouldPollAfterRun() && pollC == nil {
			resetTimer(pollTimer, d.cfg.PollInterval)
			pollC = pollTimer.C
		}
	}
}

func (d *Debouncer) onRequest(req events.BuildRequested) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := req.RequestedAt
	if now.IsZero() {
		now = time.Now()
	}

	if len(d.pending) == 0 {
		d.firstRequestAt = now
		d.requestCount = 0
	}

	// Latest event per path wins; older pending changes to the same file
	// are superseded by the newest observation.
	d.pending[req.Event.Path] = req.Event
	d.lastRequestAt = now
	d.requestCount++
}

func (d *Debouncer) shouldStartMaxTimer() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending) > 0 && d.requestCount == 1
}

func (d *Debouncer) shouldPollAfterRun() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pendingAfterRun && !d.pollingAfterRun
}

func (d *Debouncer) tryEmit(ctx context.Context, cause string) bool {
	d.mu.Lock()
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return true
	}

	if d.cfg.CheckBuildRunning() {
		d.pendingAfterRun = true
		d.mu.Unlock()
		return false
	}

	coalesced := make([]events.WatchEvent, 0, len(d.pending))
	for _, evt := range d.pending {
		coalesced = append(coalesced, evt)
	}
	count := d.requestCount
	first := d.firstRequestAt
	last := d.lastRequestAt
	d.pending = map[string]events.WatchEvent{}
	d.pendingAfterRun = false
	d.pollingAfterRun = false
	d.mu.Unlock()

	if dropped := count - len(coalesced); dropped > 0 {
		d.cfg.Recorder.IncCoalesced(string(d.cfg.Domain), dropped)
	}

	evt := events.BuildNow{
		Domain:        d.cfg.Domain,
		Events:        coalesced,
		TriggeredAt:   time.Now(),
		RequestCount:  count,
		FirstRequest:  first,
		LastRequest:   last,
		DebounceCause: cause,
	}

	_ = d.bus.Publish(ctx, evt)
	return true
}

func (d *Debouncer) tryEmitAfterRunning(ctx context.Context) bool {
	d.mu.Lock()
	if !d.pendingAfterRun {
		d.mu.Unlock()
		return true
	}
	d.pollingAfterRun = true
	d.mu.Unlock()

	if d.cfg.CheckBuildRunning() {
		return false
	}

	// Build finished; emit exactly one follow-up.
	return d.tryEmit(ctx, "after_running")
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	return t
}

func resetTimer(t *time.Timer, after time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(after)
}
