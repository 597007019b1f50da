package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/themekit/internal/daemon/events"
	"git.home.luguber.info/inful/themekit/internal/ferrors"
)

// Scheduler runs the periodic sweep: a full rebuild of both domains that
// catches changes the watcher missed (network mounts, bulk git operations).
type Scheduler struct {
	scheduler gocron.Scheduler
	bus       *events.Bus
	logger    *slog.Logger
}

// NewScheduler creates a scheduler publishing sweep builds onto the bus.
func NewScheduler(bus *events.Bus, logger *slog.Logger) (*Scheduler, error) {
	if bus == nil {
		return nil, ferrors.ValidationError("bus is required").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to create scheduler").Build()
	}
	return &Scheduler{scheduler: s, bus: bus, logger: logger}, nil
}

// ScheduleSweep registers a periodic full rebuild for the given domains.
func (s *Scheduler) ScheduleSweep(ctx context.Context, interval time.Duration, domains ...events.Domain) error {
	if interval <= 0 {
		return ferrors.ValidationError("sweep interval must be > 0").Build()
	}
	for _, domain := range domains {
		domain := domain
		_, err := s.scheduler.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() { s.sweep(ctx, domain) }),
			gocron.WithName(string(domain)+"-sweep"),
		)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to schedule sweep").
				WithContext("domain", string(domain)).Build()
		}
	}
	return nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("starting sweep scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.logger.Info("stopping sweep scheduler")
	return s.scheduler.Shutdown()
}

func (s *Scheduler) sweep(ctx context.Context, domain events.Domain) {
	s.logger.Info("sweep rebuild", slog.String("domain", string(domain)))
	now := time.Now()
	// An empty event set means a full rebuild of the domain.
	_ = s.bus.Publish(ctx, events.BuildNow{
		Domain:        domain,
		TriggeredAt:   now,
		RequestCount:  0,
		FirstRequest:  now,
		LastRequest:   now,
		DebounceCause: "sweep",
	})
}
