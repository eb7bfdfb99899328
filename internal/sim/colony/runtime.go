package colony

import (
	"context"
	"time"

	"colonysim.ai/internal/persistence/snapshot"
)

// QueueRequest queues a MetaTask through the colony loop. Resp, if set,
// receives the result and should be buffered.
type QueueRequest struct {
	QueuedTask
	Resp chan error
}

// SnapshotRequest asks for a snapshot between ticks. Resp must be buffered.
type SnapshotRequest struct {
	Resp chan snapshot.SnapshotV1
}

// Metrics is a read-only view refreshed after each tick. Safe for use from
// any goroutine.
type Metrics struct {
	ColonyID     string             `json:"colony_id"`
	RunID        string             `json:"run_id"`
	Tick         uint64             `json:"tick"`
	Time         float64            `json:"time"`
	Colonists    int                `json:"colonists"`
	Busy         int                `json:"busy"`
	Outside      int                `json:"outside"`
	Broken       int                `json:"broken_stations"`
	Observers    int                `json:"observers"`
	Resources    map[string]float64 `json:"resources,omitempty"`
	Malfunctions uint64             `json:"malfunctions"`
	Exhaustions  uint64             `json:"exhaustions"`
	Preemptions  uint64             `json:"preemptions"`
	TasksStarted uint64             `json:"tasks_started"`
}

func (c *Colony) Queue() chan<- QueueRequest               { return c.queueReq }
func (c *Colony) SnapshotRequests() chan<- SnapshotRequest { return c.snapshotReq }

func (c *Colony) Metrics() Metrics {
	if m := c.metrics.Load(); m != nil {
		return *m
	}
	return Metrics{ColonyID: c.cfg.ID, RunID: c.runID}
}

func (c *Colony) publishMetrics(tick uint64) {
	m := &Metrics{
		ColonyID:     c.cfg.ID,
		RunID:        c.runID,
		Tick:         tick,
		Time:         c.now,
		Colonists:    len(c.colonists),
		Broken:       len(c.stations.Broken()),
		Observers:    len(c.observers),
		Resources:    c.Resources(),
		Malfunctions: c.counters.malfunctions,
		Exhaustions:  c.counters.exhaustions,
		Preemptions:  c.counters.preemptions,
		TasksStarted: c.counters.tasksStarted,
	}
	for i, col := range c.colonists {
		if c.scheds[i].Current() != nil {
			m.Busy++
		}
		if !col.Spot().Loc.Pressurized() {
			m.Outside++
		}
	}
	c.metrics.Store(m)
}

// Run drives the colony at the configured tick rate until ctx is done,
// Stop is called, or a task reports a configuration error.
func (c *Colony) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(c.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingQueue []QueueRequest

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			return nil
		case req := <-c.observerJoin:
			c.handleObserverJoin(req)
		case id := <-c.observerLeave:
			c.handleObserverLeave(id)
		case req := <-c.snapshotReq:
			if req.Resp != nil {
				select {
				case req.Resp <- c.ExportSnapshot():
				default:
				}
			}
		case req := <-c.queueReq:
			pendingQueue = append(pendingQueue, req)
		case <-ticker.C:
			for _, req := range pendingQueue {
				err := c.QueueTask(req.WorkerID, req.Task)
				if req.Resp != nil {
					select {
					case req.Resp <- err:
					default:
					}
				}
			}
			pendingQueue = pendingQueue[:0]
			if _, err := c.step(); err != nil {
				return err
			}
		}
	}
}

func (c *Colony) Stop() { c.stopOnce.Do(func() { close(c.stop) }) }
