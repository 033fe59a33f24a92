package keymanager

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultCheckInterval is how often the scheduler checks key expiry.
const DefaultCheckInterval = time.Hour

// Scheduler periodically calls EnsureValidKeys so expired keys rotate
// without waiting for traffic.
type Scheduler struct {
	manager  *Manager
	logger   *logrus.Logger
	interval time.Duration

	intervalCh chan time.Duration
}

// NewScheduler creates a scheduler for the manager.
func NewScheduler(manager *Manager, interval time.Duration, logger *logrus.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{
		manager:    manager,
		logger:     logger,
		interval:   interval,
		intervalCh: make(chan time.Duration, 1),
	}
}

// SetInterval updates the check interval of a running scheduler. Used by
// the config reloader. A queued update the loop has not consumed yet is
// stale and gets replaced, so the latest interval always wins.
func (s *Scheduler) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	select {
	case <-s.intervalCh:
	default:
	}
	select {
	case s.intervalCh <- interval:
	default:
	}
}

// Run blocks until the context is cancelled, checking key validity on
// every tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case interval := <-s.intervalCh:
			s.interval = interval
			ticker.Reset(interval)
			s.logger.WithField("interval", interval).Info("Rotation check interval updated")
		case <-ticker.C:
			if _, err := s.manager.EnsureValidKeys(ctx); err != nil {
				s.logger.WithError(err).Error("Scheduled key check failed")
			}
		}
	}
}
