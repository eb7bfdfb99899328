package colony

import (
	"errors"

	"colonysim.ai/internal/sim/scheduler"
	"colonysim.ai/internal/sim/worker"
)

const (
	hypoxiaRate  = 0.02
	recoveryRate = 0.001
)

// StepOnce applies queued tasks and advances the colony by a single tick
// with the same ordering the Run loop uses. It is intended for replays and
// tests.
func (c *Colony) StepOnce(queued []QueuedTask) (tick uint64, digest string, err error) {
	tick = c.tick.Load()
	c.applyQueued(queued)
	digest, err = c.step()
	return tick, digest, err
}

func (c *Colony) applyQueued(queued []QueuedTask) {
	for _, q := range queued {
		if err := c.QueueTask(q.WorkerID, q.Task); err != nil {
			c.logger.Printf("queue %s for %s: %v", q.Task, q.WorkerID, err)
		}
	}
}

// step runs every scheduler once in id order, then applies physiology,
// logs the tick and publishes it. A configuration error from any task is
// returned after the tick completes.
func (c *Colony) step() (string, error) {
	nowTick := c.tick.Load()
	dt := c.cfg.TimePerTick

	var fatal error
	for i, col := range c.colonists {
		if _, err := c.scheds[i].Tick(dt); err != nil {
			if errors.Is(err, scheduler.ErrNoEligibleTask) {
				c.counters.exhaustions++
				c.exhausted = append(c.exhausted, col.ID())
				c.event(EventExhausted, col.ID(), "", "")
			} else {
				c.logger.Printf("FATAL %s: %v", col.Name(), err)
				if fatal == nil {
					fatal = err
				}
			}
		}
		c.physiology(col, dt)
	}
	c.now += dt

	digest := c.stateDigest(nowTick)
	entry := TickLogEntry{
		RunID:        c.runID,
		Tick:         nowTick,
		Time:         c.now,
		Queued:       c.queued,
		Activities:   c.activities,
		Malfunctions: c.malfunctions,
		Exhausted:    c.exhausted,
		Digest:       digest,
	}
	if c.tickLogger != nil {
		if err := c.tickLogger.WriteTick(entry); err != nil {
			c.logger.Printf("tick log: %v", err)
		}
	}
	if c.eventLogger != nil {
		for _, ev := range c.events {
			if err := c.eventLogger.WriteEvent(ev); err != nil {
				c.logger.Printf("event log: %v", err)
				break
			}
		}
	}
	c.broadcastObservers(entry)
	c.publishMetrics(nowTick + 1)
	c.tick.Store(nowTick + 1)

	// Snapshot every N ticks, starting after tick 0.
	if c.snapshotSink != nil && nowTick != 0 && c.cfg.SnapshotEveryTicks > 0 {
		if nowTick%uint64(c.cfg.SnapshotEveryTicks) == 0 {
			select {
			case c.snapshotSink <- c.ExportSnapshot():
			default:
				// Drop snapshot if sink is backed up.
			}
		}
	}

	c.queued = nil
	c.activities = nil
	c.malfunctions = nil
	c.exhausted = nil
	c.events = nil
	return digest, fatal
}

// physiology draws suit reserves outside and services suits indoors.
// A suited worker without oxygen loses health.
func (c *Colony) physiology(col *worker.Colonist, dt float64) {
	s := col.Suit()
	if col.Spot().Loc == worker.Outside {
		if s != nil {
			s.Consume(dt, c.cfg.Suit.OxygenRate, c.cfg.Suit.WaterRate, c.cfg.Suit.WearRate)
		}
		if col.Traits().NeedsSuit && (s == nil || s.Oxygen <= 0) {
			col.SetHealth(col.Health() - hypoxiaRate*dt)
		}
		return
	}
	if s != nil {
		s.Service(dt, c.cfg.Suit.ServiceRate)
	}
	if col.Health() < 1 {
		col.SetHealth(col.Health() + recoveryRate*dt)
	}
}
