// Package daemon runs the dev mode: dual-domain file watching, debounced
// builds, manifest publication, and live updates to connected browsers.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/themekit/internal/bundle"
	"git.home.luguber.info/inful/themekit/internal/config"
	"git.home.luguber.info/inful/themekit/internal/daemon/events"
	"git.home.luguber.info/inful/themekit/internal/eventstore"
	"git.home.luguber.info/inful/themekit/internal/ferrors"
	"git.home.luguber.info/inful/themekit/internal/logfields"
	"git.home.luguber.info/inful/themekit/internal/manifest"
	"git.home.luguber.info/inful/themekit/internal/metrics"
	"git.home.luguber.info/inful/themekit/internal/pages"
)

// Daemon owns the dev-mode component graph and its lifecycle.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	bus       *events.Bus
	session   *bundle.DevSession
	bridge    *manifest.Bridge
	generator *pages.Generator

	hub          *LiveUpdateHub
	server       *Server
	watcher      *Watcher
	debouncers   []*Debouncer
	orchestrator *Orchestrator
	scheduler    *Scheduler
	notifier     *Notifier
	store        *eventstore.Store

	recorder metrics.Recorder
	registry *prometheus.Registry
}

// New constructs the daemon: primes the dev session with an initial asset
// build, publishes the first manifest, and renders the content tree once so
// the server has something to serve before the first change arrives.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, ferrors.ValidationError("config is required").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		bus:      events.NewBus(),
		bridge:   manifest.NewBridge(cfg.ManifestPath()),
		recorder: recorder,
		registry: registry,
	}

	session, err := bundle.NewDevSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	d.session = session

	if err := d.bridge.Publish(session.Manifest()); err != nil {
		return nil, err
	}

	generator, err := pages.NewGenerator(cfg, d.bridge, logger)
	if err != nil {
		return nil, err
	}
	generator.IncludeDrafts = true
	d.generator = generator
	if err := generator.GenerateAll(ctx); err != nil {
		// Page errors are recoverable in dev; they surface in the browser.
		logger.Warn("initial content build had errors", slog.Any("error", err))
	}

	historyPath := cfg.History.Path
	if historyPath == "" {
		historyPath = ":memory:"
	}
	store, err := eventstore.Open(historyPath)
	if err != nil {
		return nil, err
	}
	d.store = store

	if cfg.History.Retention > 0 {
		cutoff := time.Now().Add(-cfg.History.Retention)
		if n, err := store.Prune(ctx, cutoff); err != nil {
			logger.Warn("history prune failed", logfields.Error(err))
		} else if n > 0 {
			logger.Debug("pruned build history", slog.Int64("records", n))
		}
	}

	notifier, err := NewNotifier(cfg.Notify, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	d.notifier = notifier

	d.hub = NewLiveUpdateHub(recorder)
	d.server = NewServer(cfg, session, d.hub, store, registry, logger)

	runners := map[events.Domain]BuildRunner{
		events.DomainAsset:   BuildRunnerFunc(d.runAssetBuild),
		events.DomainContent: BuildRunnerFunc(d.runContentBuild),
	}
	d.orchestrator, err = NewOrchestrator(d.bus, logger, recorder, runners, d.bridge)
	if err != nil {
		return nil, err
	}

	for _, domain := range []events.Domain{events.DomainAsset, events.DomainContent} {
		domain := domain
		deb, err := NewDebouncer(d.bus, DebouncerConfig{
			Domain:      domain,
			QuietWindow: cfg.Dev.Debounce.QuietWindow,
			MaxDelay:    cfg.Dev.Debounce.MaxDelay,
			CheckBuildRunning: func() bool {
				return d.orchestrator.State(domain) == StateBuilding
			},
			Recorder: recorder,
		})
		if err != nil {
			return nil, err
		}
		d.debouncers = append(d.debouncers, deb)
	}

	d.watcher, err = NewWatcher(d.bus, logger, []WatchRoot{
		{Domain: events.DomainContent, Dir: cfg.Content.Dir},
		{Domain: events.DomainAsset, Dir: cfg.Assets.Dir},
	})
	if err != nil {
		return nil, err
	}

	if cfg.Dev.SweepInterval > 0 {
		d.scheduler, err = NewScheduler(d.bus, logger)
		if err != nil {
			return nil, err
		}
		if err := d.scheduler.ScheduleSweep(ctx, cfg.Dev.SweepInterval,
			events.DomainAsset, events.DomainContent); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// Run starts every component and blocks until the context is canceled, then
// shuts down in reverse order.
func (d *Daemon) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	start := func(f func(context.Context) error, name string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f(runCtx); err != nil {
				d.logger.Error("component failed", slog.String("component", name), slog.Any("error", err))
				cancel()
			}
		}()
	}

	start(d.orchestrator.Run, "orchestrator")
	<-d.orchestrator.Ready()
	for i, deb := range d.debouncers {
		start(deb.Run, "debouncer")
		<-d.debouncers[i].Ready()
	}
	start(d.recordCompletions, "history")
	start(d.watcher.Run, "watcher")

	if err := d.server.Start(runCtx); err != nil {
		cancel()
		wg.Wait()
		return err
	}
	if d.scheduler != nil {
		d.scheduler.Start()
	}

	d.logger.Info("dev daemon running",
		slog.String("content", d.cfg.Content.Dir),
		slog.String("assets", d.cfg.Assets.Dir))

	<-runCtx.Done()

	d.logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if d.scheduler != nil {
		if err := d.scheduler.Stop(); err != nil {
			d.logger.Warn("scheduler shutdown", slog.Any("error", err))
		}
	}
	d.hub.Shutdown()
	if err := d.server.Stop(shutdownCtx); err != nil {
		d.logger.Warn("http shutdown", slog.Any("error", err))
	}
	d.bus.Close()
	wg.Wait()

	d.notifier.Close()
	if err := d.store.Close(); err != nil {
		d.logger.Warn("history close", slog.Any("error", err))
	}
	d.session.Close()
	return nil
}

// runAssetBuild is the asset-domain BuildRunner: incremental rebuilds of the
// changed modules, atomic manifest publish, live updates to clients.
func (d *Daemon) runAssetBuild(ctx context.Context, build events.BuildNow) (uint64, error) {
	startVersion := d.bridge.Version()

	var updates []*bundle.IncrementalUpdate
	if len(build.Events) == 0 {
		update, err := d.session.Rebuild(ctx)
		if err != nil {
			d.broadcastError()
			return startVersion, err
		}
		updates = append(updates, update)
	} else {
		for _, evt := range build.Events {
			update, err := d.session.NotifyChanged(ctx, evt.Path)
			if err != nil {
				// The session kept its previous state; tell clients so
				// the error page shows up, then surface the failure.
				d.broadcastError()
				return startVersion, err
			}
			if update != nil {
				updates = append(updates, update)
			}
		}
	}

	man := d.session.Manifest()
	if err := d.bridge.Publish(man); err != nil {
		return startVersion, err
	}
	_ = d.bus.Publish(ctx, events.ManifestPublished{
		ManifestID:  man.ID,
		Version:     d.bridge.Version(),
		Fingerprint: man.ContentFingerprint(),
		PublishedAt: time.Now(),
	})

	moduleCount := 0
	for _, update := range updates {
		moduleCount += len(update.Keys)
		d.hub.Broadcast(d.updateMessage(update, man))
	}
	d.recorder.IncModulesRebuilt(string(events.DomainAsset), moduleCount)
	return startVersion, nil
}

// runContentBuild is the content-domain BuildRunner. It records the manifest
// version it started from; the orchestrator re-queues the build if a manifest
// publish raced it.
func (d *Daemon) runContentBuild(ctx context.Context, build events.BuildNow) (uint64, error) {
	startVersion := d.bridge.Version()

	var err error
	if len(build.Events) == 0 {
		err = d.generator.GenerateAll(ctx)
	} else {
		man := d.readManifestOrNil()
		for _, evt := range build.Events {
			if evt.Kind == events.ChangeDeleted {
				// Deleted sources leave stale pages behind; a full pass
				// rebuilds the tree without them.
				err = d.generator.GenerateAll(ctx)
				break
			}
			if pageErr := d.generator.GeneratePage(ctx, evt.Path, man); pageErr != nil && err == nil {
				err = pageErr
			}
		}
	}
	if err != nil {
		return startVersion, err
	}

	// Publish-triggered regeneration only refreshes the files on disk; the
	// asset build already told connected clients how to update.
	if build.DebounceCause != "manifest_published" {
		d.hub.Broadcast(UpdateMessage{Type: UpdateFullReload})
	}
	return startVersion, nil
}

// recordCompletions persists BuildCompleted events and forwards them to the
// external notifier.
func (d *Daemon) recordCompletions(ctx context.Context) error {
	doneCh, unsubscribe := events.Subscribe[events.BuildCompleted](d.bus, 16)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case done, ok := <-doneCh:
			if !ok {
				return nil
			}
			rec := eventstore.BuildRecord{
				ID:         done.BuildID,
				Domain:     string(done.Domain),
				Status:     done.Status,
				Error:      done.Error,
				Duration:   done.Duration,
				FinishedAt: done.FinishedAt,
			}
			if err := d.store.Append(ctx, rec); err != nil {
				d.logger.Warn("failed to record build",
					logfields.BuildID(done.BuildID), logfields.Error(err))
			}
			d.notifier.Publish(ctx, done)
		}
	}
}

// updateMessage maps a session update to the client wire format. Style
// updates carry the new fingerprinted path so the client can swap the link
// in place.
func (d *Daemon) updateMessage(update *bundle.IncrementalUpdate, man *manifest.AssetManifest) UpdateMessage {
	msg := UpdateMessage{Type: string(update.Kind), ModuleID: update.ModuleID}
	if update.Kind == bundle.UpdateStyle && len(update.Keys) == 1 {
		if asset, ok := man.Lookup(update.Keys[0]); ok {
			msg.Payload = asset.Path
		}
	}
	return msg
}

// broadcastError forces clients onto the error page.
func (d *Daemon) broadcastError() {
	d.hub.Broadcast(UpdateMessage{Type: UpdateFullReload})
}

func (d *Daemon) readManifestOrNil() *manifest.AssetManifest {
	man, err := d.bridge.Read()
	if err != nil {
		return nil
	}
	return man
}
