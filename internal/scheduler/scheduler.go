package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/city-weather/internal/logger"
)

var errInvalidInterval = errors.New("interval must be positive")

// Scheduler runs a single job on a fixed interval. It can be started and
// stopped any number of times.
type Scheduler struct {
	name string
	log  logger.Logger

	mu        sync.Mutex
	scheduler *gocron.Scheduler
}

// New creates a stopped Scheduler.
func New(name string, log logger.Logger) *Scheduler {
	return &Scheduler{
		name: name,
		log:  log.WithFields(map[string]interface{}{"component": "scheduler", "job": name}),
	}
}

// Start arms job to run every interval. The first run happens one interval
// from now. Starting an already running scheduler is a no-op.
func (s *Scheduler) Start(interval time.Duration, job func()) error {
	if interval <= 0 {
		return errInvalidInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		s.log.Debug("already running")
		return nil
	}

	// gocron schedulers are not restartable after Stop, so every Start gets a
	// fresh one.
	gs := gocron.NewScheduler(time.UTC)
	_, err := gs.Every(interval).WaitForSchedule().Do(func() {
		s.log.Debug("tick")
		job()
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", s.name, err)
	}

	gs.StartAsync()
	s.scheduler = gs
	s.log.Infof("started with interval %v", interval)
	return nil
}

// Stop disarms the job. Safe to call when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	gs := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()

	if gs == nil {
		return
	}
	gs.Stop()
	s.log.Info("stopped")
}
