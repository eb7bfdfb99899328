// Package colonytest builds small in-memory colonies for tests.
package colonytest

import (
	"bytes"
	"log"
	"testing"

	"colonysim.ai/internal/sim/catalogs"
	"colonysim.ai/internal/sim/colony"
	"colonysim.ai/internal/sim/station"
	"colonysim.ai/internal/sim/worker"
)

// Catalogs is a base with one of each station, two suited persons on
// opposite shifts and an on-call robot.
func Catalogs() *catalogs.Catalogs {
	return &catalogs.Catalogs{
		Stations: catalogs.StationCatalog{
			Defs: []catalogs.StationDef{
				{ID: "airlock-1", Kind: station.KindAirlock, Capacity: 1},
				{ID: "bed-1", Kind: station.KindBed, Capacity: 2},
				{ID: "lab-1", Kind: station.KindLab, Capacity: 1},
				{ID: "lounge-1", Kind: station.KindLounge, Capacity: 3},
				{ID: "workshop-1", Kind: station.KindWorkshop, Capacity: 1},
			},
			Digest: "stations",
		},
		Colonists: catalogs.ColonistCatalog{
			Defs: []catalogs.ColonistDef{
				{ID: "C1", Name: "Ada", Kind: worker.KindPerson, Shift: catalogs.ShiftA, Suit: true,
					Skills: map[worker.Skill]int{worker.SkillEVA: 2, worker.SkillAreology: 1}},
				{ID: "C2", Name: "Ruth", Kind: worker.KindPerson, Shift: catalogs.ShiftB, Suit: true,
					Skills: map[worker.Skill]int{worker.SkillResearch: 2}},
				{ID: "R1", Name: "Unit 1", Kind: worker.KindRobot, Shift: catalogs.ShiftOnCall,
					Skills: map[worker.Skill]int{worker.SkillMechanics: 3, worker.SkillMaterials: 2}},
			},
			Digest: "colonists",
		},
		Behaviors: catalogs.BehaviorCatalog{Digest: "behaviors"},
	}
}

// Config returns the default config with accidents disabled so runs only
// branch on the seed.
func Config(seed int64) colony.Config {
	cfg := colony.DefaultConfig()
	cfg.Seed = seed
	cfg.Behaviors.ManufactureAccidentChance = 0
	cfg.Behaviors.EVA.BaseAccidentChance = 0
	return cfg
}

type Harness struct {
	T      testing.TB
	Colony *colony.Colony
	Log    *bytes.Buffer
}

// New builds a colony from cfg and cats, which default to Config(1) and
// Catalogs() when nil.
func New(tb testing.TB, cfg *colony.Config, cats *catalogs.Catalogs) *Harness {
	tb.Helper()
	if cfg == nil {
		c := Config(1)
		cfg = &c
	}
	if cats == nil {
		cats = Catalogs()
	}
	var buf bytes.Buffer
	c, err := colony.New(*cfg, cats, log.New(&buf, "[colony] ", 0))
	if err != nil {
		tb.Fatalf("colony.New: %v", err)
	}
	return &Harness{T: tb, Colony: c, Log: &buf}
}

// Step advances n ticks and returns the digest of the last one.
func (h *Harness) Step(n int) string {
	h.T.Helper()
	var digest string
	for i := 0; i < n; i++ {
		_, d, err := h.Colony.StepOnce(nil)
		if err != nil {
			h.T.Fatalf("tick %d: %v", h.Colony.CurrentTick(), err)
		}
		digest = d
	}
	return digest
}

// Digests advances n ticks and returns every digest.
func (h *Harness) Digests(n int) []string {
	h.T.Helper()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, h.Step(1))
	}
	return out
}

// Colonist fails the test when id is unknown.
func (h *Harness) Colonist(id string) *worker.Colonist {
	h.T.Helper()
	c, ok := h.Colony.Colonist(id)
	if !ok {
		h.T.Fatalf("unknown colonist %s", id)
	}
	return c
}

// MemTickLogger keeps tick entries in memory.
type MemTickLogger struct{ Entries []colony.TickLogEntry }

func (l *MemTickLogger) WriteTick(e colony.TickLogEntry) error {
	l.Entries = append(l.Entries, e)
	return nil
}

// MemEventLogger keeps events in memory.
type MemEventLogger struct{ Entries []colony.EventEntry }

func (l *MemEventLogger) WriteEvent(e colony.EventEntry) error {
	l.Entries = append(l.Entries, e)
	return nil
}
