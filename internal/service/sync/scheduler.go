package sync

import (
	"context"
	"time"
)

// DefaultDrainInterval is how often queued tasks are retried while online.
const DefaultDrainInterval = time.Minute

// StartScheduler retries queued tasks every interval while the state is
// Online, so a task that failed during the initial sync does not wait for
// the next reconnect.
func (m *Manager) StartScheduler(interval time.Duration) {
	if m.schedulerCancel != nil {
		m.log.Warnf("Scheduler already running")
		return
	}
	if interval <= 0 || m.tasks == nil {
		return
	}

	m.schedulerCtx, m.schedulerCancel = context.WithCancel(context.Background())
	m.log.Infof("Starting task drain scheduler every %v", interval)

	m.schedulerWg.Add(1)
	go m.runPeriodic("pending_tasks", interval, m.tasks.Drain)
}

// StopScheduler stops the scheduler and waits for a running drain to end.
func (m *Manager) StopScheduler() {
	if m.schedulerCancel != nil {
		m.log.Infof("Stopping scheduler...")
		m.schedulerCancel()
		m.schedulerWg.Wait()
		m.schedulerCancel = nil
		m.log.Infof("Scheduler stopped")
	}
}

func (m *Manager) runPeriodic(name string, interval time.Duration, fn func(context.Context) error) {
	defer m.schedulerWg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.schedulerCtx.Done():
			return
		case <-ticker.C:
			if m.State() != Online {
				continue
			}
			m.log.Debugf("Running periodic %s", name)
			if err := fn(m.schedulerCtx); err != nil {
				m.log.Warnf("Periodic %s failed: %v", name, err)
			}
		}
	}
}
