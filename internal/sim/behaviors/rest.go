package behaviors

import (
	"colonysim.ai/internal/sim/station"
	"colonysim.ai/internal/sim/tasks"
	"colonysim.ai/internal/sim/worker"
)

const (
	PhaseRelaxing tasks.Phase = "RELAXING"
	PhaseSleeping tasks.Phase = "SLEEPING"

	sleepRestorePerTime = 0.2
)

type restState struct{}

var relaxSpec = &tasks.Spec[restState]{
	Kind:          "RELAX",
	Name:          "Relaxing",
	StressPerTime: -0.3,
	Phases: map[tasks.Phase]tasks.Handler[restState]{
		PhaseRelaxing: func(t *tasks.Task, _ *restState, time float64) float64 {
			return 0
		},
	},
}

var sleepSpec = &tasks.Spec[restState]{
	Kind:          "SLEEP",
	Name:          "Sleeping",
	StressPerTime: -0.1,
	Phases: map[tasks.Phase]tasks.Handler[restState]{
		PhaseSleeping: func(t *tasks.Task, _ *restState, time float64) float64 {
			t.Worker().Restore(time * sleepRestorePerTime)
			return 0
		},
	},
}

func (b *Set) NewRelax(env tasks.Env, w worker.Worker) *tasks.Task {
	t := tasks.New(relaxSpec, env, w, &restState{}, PhaseRelaxing)
	t.SetDuration(b.cfg.RelaxDuration)
	if !w.Spot().Loc.Pressurized() {
		t.End()
		return t
	}
	// A lounge seat is nice to have.
	if _, ok := t.ClaimKind(station.KindLounge); ok {
		t.SetDescription("Relaxing in the lounge")
	}
	return t
}

func (b *Set) NewSleep(env tasks.Env, w worker.Worker) *tasks.Task {
	t := tasks.New(sleepSpec, env, w, &restState{}, PhaseSleeping)
	t.SetDuration(b.cfg.SleepDuration)
	if !w.Spot().Loc.Pressurized() {
		t.End()
		return t
	}
	if _, ok := t.ClaimKind(station.KindBed); ok {
		t.SetDescription("Sleeping in a bed")
	}
	return t
}

func (b *Set) scoreRelax(w worker.Worker, env tasks.Env) float64 {
	if !w.Traits().NeedsRest || !w.Spot().Loc.Pressurized() {
		return 0
	}
	return 5 + w.Stress()*2
}

func (b *Set) scoreSleep(w worker.Worker, env tasks.Env) float64 {
	if !w.Traits().NeedsRest || !w.Spot().Loc.Pressurized() {
		return 0
	}
	deficit := worker.MaxEnergy - w.Energy()
	if deficit < 30 {
		return 0
	}
	return deficit * 5
}
