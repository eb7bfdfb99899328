package colony

import (
	"fmt"
	"log"
	"math"
	"math/rand"

	"colonysim.ai/internal/sim/catalogs"
	"colonysim.ai/internal/sim/meta"
	"colonysim.ai/internal/sim/scheduler"
	"colonysim.ai/internal/sim/station"
	"colonysim.ai/internal/sim/tasks"
	"colonysim.ai/internal/sim/worker"
)

func (c *Colony) Now() float64                { return c.now }
func (c *Colony) Rand() *rand.Rand            { return c.rng }
func (c *Colony) Logger() *log.Logger         { return c.logger }
func (c *Colony) Stations() *station.Registry { return c.stations }
func (c *Colony) InsideSpot() worker.Spot     { return c.cfg.Home }

func (c *Colony) NewTaskID() string {
	n := c.taskSeq.Add(1)
	return fmt.Sprintf("T%06d", n)
}

// CanWalk reports whether dst lies inside the colony boundary and, for a
// change of pressure zone, whether a working airlock exists.
func (c *Colony) CanWalk(w worker.Worker, dst worker.Spot) bool {
	if c.cfg.BoundaryR > 0 && dst.Dist(c.cfg.Home) > c.cfg.BoundaryR+tasks.MinTime {
		return false
	}
	if w.Spot().Loc.Pressurized() != dst.Loc.Pressurized() {
		return c.stations.HasWorking(station.KindAirlock)
	}
	return true
}

func (c *Colony) WalkTask(w worker.Worker, dst worker.Spot) (*tasks.Task, error) {
	return c.set.NewWalk(c, w, dst)
}

func (c *Colony) CreateMalfunction(e tasks.Entity, cause string) {
	e.AddMalfunction(cause)
	c.counters.malfunctions++
	c.malfunctions = append(c.malfunctions, MalfunctionRecord{Entity: e.EntityID(), Cause: cause})
	c.event(EventMalfunction, "", e.EntityID(), cause)
	c.logger.Printf("malfunction %s: %s", e.EntityID(), cause)
}

// SolarIrradiance follows a half-sine over the daylight half of the sol.
// Polar regions stay dark.
func (c *Colony) SolarIrradiance(s worker.Spot) float64 {
	if c.InDarkPolarRegion(s) {
		return 0
	}
	frac := math.Mod(c.now, c.cfg.SolLength) / c.cfg.SolLength
	v := c.cfg.PeakIrradiance * math.Sin(2*math.Pi*(frac-0.25))
	return math.Max(v, 0)
}

func (c *Colony) InDarkPolarRegion(s worker.Spot) bool {
	return c.cfg.PolarLatitude > 0 && math.Abs(s.Y) >= c.cfg.PolarLatitude
}

// AddResource credits the stockpile.
func (c *Colony) AddResource(name string, amount float64) {
	c.resources[name] += amount
}

func (c *Colony) onDuty() bool {
	t := math.Mod(c.now, c.cfg.SolLength)
	return t >= c.cfg.OnDutyStart && t < c.cfg.OnDutyEnd
}

// Window places w by its shift: shift A works the day block, shift B the
// rest of the sol, on-call workers are never filtered.
func (c *Colony) Window(w worker.Worker) meta.Window {
	on := c.onDuty()
	switch c.shifts[w.ID()] {
	case catalogs.ShiftOnCall:
		return meta.Unrestricted
	case catalogs.ShiftB:
		on = !on
	}
	if on {
		return meta.OnDuty
	}
	return meta.OffDuty
}

// HasEmergency reports a broken station nobody is repairing yet. Only
// workers indoors respond.
func (c *Colony) HasEmergency(w worker.Worker) bool {
	if !w.Spot().Loc.Pressurized() {
		return false
	}
	return c.unassignedBroken() != nil
}

func (c *Colony) NewEmergencyTask(w worker.Worker) *tasks.Task {
	st := c.unassignedBroken()
	if st == nil {
		return nil
	}
	id := st.ID()
	c.repairs[id] = w.ID()
	c.event(EventRepair, w.ID(), id, "")
	return c.set.NewRepair(c, w, st, func() { delete(c.repairs, id) })
}

func (c *Colony) unassignedBroken() *station.Station {
	for _, st := range c.stations.Broken() {
		if _, taken := c.repairs[st.ID()]; !taken {
			return st
		}
	}
	return nil
}

func (c *Colony) RecordActivity(a scheduler.Activity) {
	switch a.Event {
	case scheduler.EventStart:
		c.counters.tasksStarted++
	case scheduler.EventPreempted:
		c.counters.preemptions++
		c.event(EventPreempted, a.WorkerID, "", a.Task)
	}
	c.activities = append(c.activities, a)
}
