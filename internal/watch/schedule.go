package watch

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler runs RefreshAll on a fixed interval.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// SchedulePeriodicRefresh registers a RefreshAll job every interval and
// returns its job id.
func (s *Scheduler) SchedulePeriodicRefresh(interval time.Duration, r Refresher) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("refresh interval must be positive, got %s", interval)
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			slog.Debug("scheduled refresh")
			r.RefreshAll()
		}),
		gocron.WithName("refresh-all"),
	)
	if err != nil {
		return "", fmt.Errorf("create periodic refresh job: %w", err)
	}
	return job.ID().String(), nil
}

func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for a running job to return.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
