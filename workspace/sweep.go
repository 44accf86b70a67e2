package workspace

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type sweeper struct {
	cron *cron.Cron
}

// StartSweeper schedules periodic reclamation. Schedule takes the cron
// spec syntax, including descriptors like "@hourly".
func (m *Manager) StartSweeper(schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		removed, errs := m.SweepOnce(time.Now())
		if removed > 0 || len(errs) > 0 {
			m.logger.Info("sweep finished",
				zap.Int("removed", removed),
				zap.Int("failures", len(errs)))
		}
	})
	if err != nil {
		return err
	}
	c.Start()

	m.mu.Lock()
	m.sweeper = &sweeper{cron: c}
	m.mu.Unlock()
	return nil
}

// StopSweeper halts the schedule and waits for a running sweep.
func (m *Manager) StopSweeper() {
	m.mu.Lock()
	s := m.sweeper
	m.sweeper = nil
	m.mu.Unlock()
	if s != nil {
		<-s.cron.Stop().Done()
	}
}
