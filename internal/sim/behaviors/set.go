// Package behaviors holds the concrete task kinds a colonist can carry out
// and the MetaTasks that score them.
package behaviors

import (
	"errors"

	"colonysim.ai/internal/sim/meta"
	"colonysim.ai/internal/sim/tasks"
	"colonysim.ai/internal/sim/tasks/eva"
	"colonysim.ai/internal/sim/worker"
)

const (
	ResourceIce      = "ice"
	ResourceParts    = "parts"
	ResourceResearch = "research"
)

var ErrNoRoute = errors.New("no route")

// Stockpile is implemented by environments that keep colony resources.
type Stockpile interface {
	AddResource(name string, amount float64)
}

func deposit(env tasks.Env, name string, amount float64) {
	if amount <= 0 {
		return
	}
	if sp, ok := env.(Stockpile); ok {
		sp.AddResource(name, amount)
	}
}

type Config struct {
	WalkSpeed    float64     `yaml:"walk_speed"`
	AirlockCycle float64     `yaml:"airlock_cycle"`
	Airlock      worker.Spot `yaml:"airlock"`

	RelaxDuration       float64 `yaml:"relax_duration"`
	SleepDuration       float64 `yaml:"sleep_duration"`
	ResearchDuration    float64 `yaml:"research_duration"`
	ManufactureDuration float64 `yaml:"manufacture_duration"`
	RepairWork          float64 `yaml:"repair_work"`

	ManufactureAccidentChance float64 `yaml:"manufacture_accident_chance"`

	IceSites        []worker.Spot `yaml:"ice_sites"`
	IceSiteDuration float64       `yaml:"ice_site_duration"`
	IceRate         float64       `yaml:"ice_rate"`

	EVA eva.Config `yaml:"eva"`
}

func DefaultConfig() Config {
	return Config{
		WalkSpeed:                 2,
		AirlockCycle:              10,
		RelaxDuration:             60,
		SleepDuration:             250,
		ResearchDuration:          120,
		ManufactureDuration:       150,
		RepairWork:                40,
		ManufactureAccidentChance: 0.001,
		IceSites:                  []worker.Spot{{X: 60, Y: 20}, {X: -45, Y: 70}},
		IceSiteDuration:           150,
		IceRate:                   0.5,
		EVA:                       eva.DefaultConfig(),
	}
}

// Set is the full catalog of behaviors for one simulation.
type Set struct {
	cfg Config
	ice *eva.Kind[iceData]
}

func NewSet(cfg Config) *Set {
	return &Set{cfg: cfg, ice: eva.Define(iceDef, cfg.EVA)}
}

func (b *Set) Config() Config { return b.cfg }

// RegisterKinds adds every task kind of the set to r.
func (b *Set) RegisterKinds(r *tasks.Registry) error {
	return errors.Join(
		tasks.Register(r, walkSpec),
		tasks.Register(r, relaxSpec),
		tasks.Register(r, sleepSpec),
		tasks.Register(r, researchSpec),
		tasks.Register(r, manufactureSpec),
		tasks.Register(r, repairSpec),
		tasks.Register(r, b.ice.Spec()),
	)
}

// MetaTasks returns the selectable behaviors in their fixed order.
func (b *Set) MetaTasks() []meta.MetaTask {
	return []meta.MetaTask{
		&metaTask{name: "Relax", shifts: meta.AnyShift, score: b.scoreRelax, build: b.NewRelax},
		&metaTask{name: "Sleep", shifts: meta.OffDuty, score: b.scoreSleep, build: b.NewSleep},
		&metaTask{name: "Research", shifts: meta.OnDuty, score: b.scoreResearch, build: b.NewResearch},
		&metaTask{name: "Manufacture", shifts: meta.OnDuty, score: b.scoreManufacture, build: b.NewManufacture},
		&metaTask{name: "CollectIce", shifts: meta.OnDuty, score: b.scoreCollectIce, build: b.NewCollectIce},
	}
}

// RegisterMetaTasks adds the MetaTasks named in enabled, in set order.
// An empty enabled list registers all of them.
func (b *Set) RegisterMetaTasks(r *meta.Registry, enabled []string) error {
	want := map[string]bool{}
	for _, n := range enabled {
		want[n] = true
	}
	for _, mt := range b.MetaTasks() {
		if len(want) > 0 && !want[mt.Name()] {
			continue
		}
		if err := r.Add(mt); err != nil {
			return err
		}
	}
	return nil
}

type metaTask struct {
	name   string
	shifts meta.Window
	score  func(w worker.Worker, env tasks.Env) float64
	build  func(env tasks.Env, w worker.Worker) *tasks.Task
}

func (m *metaTask) Name() string                                           { return m.name }
func (m *metaTask) Shifts() meta.Window                                    { return m.shifts }
func (m *metaTask) Score(w worker.Worker, env tasks.Env) float64           { return m.score(w, env) }
func (m *metaTask) Instantiate(w worker.Worker, env tasks.Env) *tasks.Task { return m.build(env, w) }
