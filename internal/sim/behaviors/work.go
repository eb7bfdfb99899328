package behaviors

import (
	"colonysim.ai/internal/sim/station"
	"colonysim.ai/internal/sim/tasks"
	"colonysim.ai/internal/sim/worker"
)

const (
	PhaseResearching   tasks.Phase = "RESEARCHING"
	PhaseManufacturing tasks.Phase = "MANUFACTURING"

	researchExperienceRatio    = 20
	manufactureExperienceRatio = 25
)

type benchState struct {
	bench    *station.Station
	output   float64
	resource string
	chance   float64
}

var researchSpec = &tasks.Spec[benchState]{
	Kind:          "RESEARCH",
	Name:          "Researching",
	Skills:        []worker.Skill{worker.SkillResearch},
	EffortDriven:  true,
	StressPerTime: 0.05,
	Phases: map[tasks.Phase]tasks.Handler[benchState]{
		PhaseResearching: func(t *tasks.Task, s *benchState, time float64) float64 {
			lvl := t.Worker().EffectiveSkillLevel(worker.SkillResearch)
			s.output += time * (1 + 0.1*float64(lvl))
			t.AddExperience(time, researchExperienceRatio)
			return 0
		},
	},
	ClearDown: depositBench,
}

var manufactureSpec = &tasks.Spec[benchState]{
	Kind:          "MANUFACTURE",
	Name:          "Manufacturing",
	Skills:        []worker.Skill{worker.SkillMaterials},
	EffortDriven:  true,
	StressPerTime: 0.08,
	Phases: map[tasks.Phase]tasks.Handler[benchState]{
		PhaseManufacturing: func(t *tasks.Task, s *benchState, time float64) float64 {
			if s.bench.Broken() {
				t.End()
				return time
			}
			lvl := t.Worker().EffectiveSkillLevel(worker.SkillMaterials)
			s.output += time * 0.05 * (1 + 0.2*float64(lvl))
			t.AddExperience(time, manufactureExperienceRatio)
			t.CheckForAccident(s.bench, time, s.chance, lvl)
			return 0
		},
	},
	ClearDown: depositBench,
}

func depositBench(t *tasks.Task, s *benchState) {
	deposit(t.Env(), s.resource, s.output)
	s.output = 0
}

func (b *Set) NewResearch(env tasks.Env, w worker.Worker) *tasks.Task {
	s := &benchState{resource: ResourceResearch}
	t := tasks.New(researchSpec, env, w, s, PhaseResearching)
	t.SetDuration(b.cfg.ResearchDuration)
	b.takeBench(t, s, station.KindLab)
	return t
}

func (b *Set) NewManufacture(env tasks.Env, w worker.Worker) *tasks.Task {
	s := &benchState{resource: ResourceParts, chance: b.cfg.ManufactureAccidentChance}
	t := tasks.New(manufactureSpec, env, w, s, PhaseManufacturing)
	t.SetDuration(b.cfg.ManufactureDuration)
	b.takeBench(t, s, station.KindWorkshop)
	return t
}

// takeBench claims a station of kind for the task or ends it.
func (b *Set) takeBench(t *tasks.Task, s *benchState, k station.Kind) {
	if !t.Worker().Spot().Loc.Pressurized() {
		t.End()
		return
	}
	st, ok := t.ClaimKind(k)
	if !ok {
		t.End()
		return
	}
	s.bench = st
	t.SetDescription(t.Name() + " at " + st.ID())
}

func (b *Set) scoreResearch(w worker.Worker, env tasks.Env) float64 {
	if !w.Spot().Loc.Pressurized() || !env.Stations().HasAvailable(station.KindLab) {
		return 0
	}
	return 40 * w.PerformanceFactor() * (1 + 0.1*float64(w.EffectiveSkillLevel(worker.SkillResearch)))
}

func (b *Set) scoreManufacture(w worker.Worker, env tasks.Env) float64 {
	if !w.Spot().Loc.Pressurized() || !env.Stations().HasAvailable(station.KindWorkshop) {
		return 0
	}
	return 35 * w.PerformanceFactor() * (1 + 0.1*float64(w.EffectiveSkillLevel(worker.SkillMaterials)))
}
