package colony

import (
	"fmt"
	"math/rand"

	"colonysim.ai/internal/persistence/snapshot"
	"colonysim.ai/internal/sim/worker"
)

// ExportSnapshot captures the colony between ticks.
func (c *Colony) ExportSnapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:  snapshot.Version,
			ColonyID: c.cfg.ID,
			RunID:    c.runID,
			Tick:     c.tick.Load(),
		},
		Seed:               c.cfg.Seed,
		TickRate:           c.cfg.TickRateHz,
		TimePerTick:        c.cfg.TimePerTick,
		SnapshotEveryTicks: c.cfg.SnapshotEveryTicks,
		CatalogDigest:      c.catalogs.Digest(),
		Now:                c.now,
		TaskSeq:            c.taskSeq.Load(),
		Shifts:             make(map[string]string, len(c.shifts)),
		Resources:          c.Resources(),
		Counters: snapshot.CountersV1{
			Malfunctions: c.counters.malfunctions,
			Exhaustions:  c.counters.exhaustions,
			Preemptions:  c.counters.preemptions,
			TasksStarted: c.counters.tasksStarted,
		},
	}
	for _, col := range c.colonists {
		snap.Colonists = append(snap.Colonists, col.Record())
	}
	for k, v := range c.shifts {
		snap.Shifts[k] = v
	}
	for _, st := range c.stations.All() {
		snap.Stations = append(snap.Stations, snapshot.StationV1{
			ID:           st.ID(),
			Kind:         string(st.Kind()),
			Capacity:     st.Capacity(),
			Broken:       st.Broken(),
			Malfunctions: st.Malfunctions(),
		})
	}
	return snap
}

// ImportSnapshot restores colony state. Every worker resumes idle, and a
// worker caught outside is brought back to the habitat. The random source
// is reseeded from the seed and tick.
func (c *Colony) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.ColonyID != c.cfg.ID {
		return fmt.Errorf("%w: %s", ErrSnapshotColony, snap.Header.ColonyID)
	}
	if d := c.catalogs.Digest(); snap.CatalogDigest != "" && snap.CatalogDigest != d {
		c.logger.Printf("warn: snapshot catalog digest %s differs from %s", snap.CatalogDigest, d)
	}
	for _, sv := range snap.Stations {
		st, ok := c.stations.Get(sv.ID)
		if !ok {
			return fmt.Errorf("snapshot station %s not in catalog", sv.ID)
		}
		st.Restore(sv.Broken, sv.Malfunctions)
	}
	for _, r := range snap.Colonists {
		i, ok := c.index[r.ID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownWorker, r.ID)
		}
		if cur := c.scheds[i].Current(); cur != nil {
			cur.End()
		}
		col := worker.FromRecord(r)
		if !col.Spot().Loc.Pressurized() {
			c.logger.Printf("%s resumed outside, returning to habitat", col.Name())
			col.SetSpot(c.cfg.Home)
		}
		c.colonists[i] = col
		c.scheds[i] = c.newScheduler(col)
	}
	for k, v := range snap.Shifts {
		if _, ok := c.index[k]; ok {
			c.shifts[k] = v
		}
	}

	c.resources = map[string]float64{}
	for k, v := range snap.Resources {
		c.resources[k] = v
	}
	c.repairs = map[string]string{}
	c.counters = counters{
		malfunctions: snap.Counters.Malfunctions,
		exhaustions:  snap.Counters.Exhaustions,
		preemptions:  snap.Counters.Preemptions,
		tasksStarted: snap.Counters.TasksStarted,
	}
	c.now = snap.Now
	c.taskSeq.Store(snap.TaskSeq)
	c.tick.Store(snap.Header.Tick)
	c.rng = rand.New(rand.NewSource(c.cfg.Seed ^ int64(snap.Header.Tick)))
	c.publishMetrics(snap.Header.Tick)
	return nil
}
