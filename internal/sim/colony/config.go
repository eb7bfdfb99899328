package colony

import (
	"colonysim.ai/internal/persistence/snapshot"
	"colonysim.ai/internal/sim/behaviors"
	"colonysim.ai/internal/sim/scheduler"
	"colonysim.ai/internal/sim/tasks/eva"
	"colonysim.ai/internal/sim/tuning"
	"colonysim.ai/internal/sim/worker"
)

type Config struct {
	ID                 string
	Seed               int64
	TickRateHz         int
	TimePerTick        float64 // millisols per tick
	SolLength          float64
	SnapshotEveryTicks int

	BoundaryR      float64
	PolarLatitude  float64
	PeakIrradiance float64
	Home           worker.Spot

	OnDutyStart float64
	OnDutyEnd   float64

	Suit      tuning.Suit
	Scheduler scheduler.Config
	Behaviors behaviors.Config
}

// ConfigFromTuning lays a tuning file over the colony identity.
func ConfigFromTuning(id string, seed int64, t tuning.Tuning) Config {
	return Config{
		ID:                 id,
		Seed:               seed,
		TickRateHz:         t.TickRateHz,
		TimePerTick:        t.TimePerTick,
		SolLength:          t.SolLength,
		SnapshotEveryTicks: t.SnapshotEveryTicks,

		BoundaryR:      t.BoundaryR,
		PolarLatitude:  t.PolarLatitude,
		PeakIrradiance: t.PeakIrradiance,
		Home:           t.Home,

		OnDutyStart: t.Shifts.OnDutyStart,
		OnDutyEnd:   t.Shifts.OnDutyEnd,

		Suit: t.Suit,
		Scheduler: scheduler.Config{
			MaxTaskScore: t.Scheduler.MaxTaskScore,
			HistorySize:  t.Scheduler.HistorySize,
		},
		Behaviors: behaviors.Config{
			WalkSpeed:                 t.Walk.Speed,
			AirlockCycle:              t.Walk.AirlockCycle,
			Airlock:                   t.Walk.Airlock,
			RelaxDuration:             t.Durations.Relax,
			SleepDuration:             t.Durations.Sleep,
			ResearchDuration:          t.Durations.Research,
			ManufactureDuration:       t.Durations.Manufacture,
			RepairWork:                t.Durations.RepairWork,
			ManufactureAccidentChance: t.ManufactureAccidentChance,
			IceSites:                  outsideSpots(t.Ice.Sites),
			IceSiteDuration:           t.Ice.SiteDuration,
			IceRate:                   t.Ice.Rate,
			EVA: eva.Config{
				MinResourceFraction: t.EVA.MinResourceFraction,
				MinLight:            t.EVA.MinLight,
				BaseAccidentChance:  t.EVA.BaseAccidentChance,
				EVAExperienceRatio:  t.EVA.EVAExperienceRatio,
				SiteExperienceRatio: t.EVA.SiteExperienceRatio,
			},
		},
	}
}

// DefaultConfig is the tuning defaults with a fixed seed.
func DefaultConfig() Config {
	return ConfigFromTuning("colony-1", 1, tuning.Defaults())
}

// ResumeFrom keeps the run parameters recorded in snap so a resumed colony
// steps the same way as the run that wrote it.
func (c Config) ResumeFrom(snap snapshot.SnapshotV1) Config {
	c.ID = snap.Header.ColonyID
	c.Seed = snap.Seed
	if snap.TickRate > 0 {
		c.TickRateHz = snap.TickRate
	}
	if snap.TimePerTick > 0 {
		c.TimePerTick = snap.TimePerTick
	}
	if snap.SnapshotEveryTicks > 0 {
		c.SnapshotEveryTicks = snap.SnapshotEveryTicks
	}
	return c
}

func (c Config) normalized() Config {
	if c.ID == "" {
		c.ID = "colony-1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 5
	}
	if c.TimePerTick <= 0 {
		c.TimePerTick = 1
	}
	if c.SolLength <= 0 {
		c.SolLength = 1000
	}
	if c.OnDutyEnd <= c.OnDutyStart {
		c.OnDutyStart, c.OnDutyEnd = 250, 750
	}
	c.Home.Loc = worker.Inside
	c.Behaviors.Airlock.Loc = worker.Inside
	return c
}

func outsideSpots(in []worker.Spot) []worker.Spot {
	out := make([]worker.Spot, len(in))
	for i, s := range in {
		s.Loc = worker.Outside
		out[i] = s
	}
	return out
}
