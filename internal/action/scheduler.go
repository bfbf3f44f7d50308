package action

import (
	"context"
	"time"
)

// scheduleStatus is the lifecycle of a delayed invocation. A schedule is
// executed at most once; finished entries are pruned on the next sweep.
type scheduleStatus string

const (
	statusPending  scheduleStatus = "pending"
	statusRunning  scheduleStatus = "running"
	statusFinished scheduleStatus = "finished"
)

type schedule struct {
	status scheduleStatus

	createdAt int64
	executeAt int64

	clientName string

	actionID   string
	parameters map[string]any
}

func (d *Dispatcher) addSchedule(clientName string, item ScheduleItem) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.schedules = append(d.schedules, &schedule{
		status:     statusPending,
		createdAt:  d.now(),
		executeAt:  item.ExecuteAt,
		clientName: clientName,
		actionID:   item.ActionID,
		parameters: item.Parameters,
	})
}

// PendingSchedules returns the number of schedules not yet pruned.
func (d *Dispatcher) PendingSchedules() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.schedules)
}

// Run ticks the delayed-action scheduler until the context is cancelled.
// Cancellation is observed at tick boundaries, so shutdown latency is
// bounded by the tick interval.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	d.log.Info().Dur("tick", d.tick).Msg("scheduler running")

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

// sweep executes every due pending schedule and prunes finished entries.
// It operates on a snapshot taken at sweep start: schedules added while a
// sweep runs become visible on the next tick, so a newly scheduled action
// never executes in the pass that created it.
func (d *Dispatcher) sweep(ctx context.Context) {
	d.mu.RLock()
	snapshot := d.schedules
	d.mu.RUnlock()

	now := d.now()

	for _, s := range snapshot {
		if s.status != statusPending {
			continue
		}
		if s.executeAt > now {
			continue
		}

		s.status = statusRunning

		// Each schedule's dispatch is isolated: a failing action must not
		// abort the rest of the sweep.
		_, err := d.Invoke(ctx, s.clientName, Invocation{
			ID:         s.actionID,
			Parameters: s.parameters,
		})
		if err != nil {
			d.log.Error().Err(err).
				Str("action", s.actionID).
				Str("client", s.clientName).
				Msg("scheduled action failed")
		}

		s.status = statusFinished
	}

	d.mu.Lock()
	remaining := d.schedules[:0]
	for _, s := range d.schedules {
		if s.status != statusFinished {
			remaining = append(remaining, s)
		}
	}
	d.schedules = remaining
	d.mu.Unlock()
}
