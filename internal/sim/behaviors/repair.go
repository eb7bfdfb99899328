package behaviors

import (
	"math"

	"colonysim.ai/internal/sim/station"
	"colonysim.ai/internal/sim/tasks"
	"colonysim.ai/internal/sim/worker"
)

const (
	PhaseRepairing tasks.Phase = "REPAIRING"

	repairExperienceRatio = 10
)

type repairState struct {
	target *station.Station
	done   float64
	need   float64
	onEnd  func()
}

var repairSpec = &tasks.Spec[repairState]{
	Kind:      "REPAIR_EMERGENCY",
	Name:      "Emergency repair",
	Skills:    []worker.Skill{worker.SkillMechanics},
	Emergency: true,
	Phases: map[tasks.Phase]tasks.Handler[repairState]{
		PhaseRepairing: func(t *tasks.Task, s *repairState, time float64) float64 {
			if !s.target.Broken() {
				t.End()
				return time
			}
			lvl := t.Worker().EffectiveSkillLevel(worker.SkillMechanics)
			rate := 1 + 0.25*float64(lvl)
			use := math.Min(time, (s.need-s.done)/rate)
			s.done += use * rate
			t.AddExperience(use, repairExperienceRatio)
			if s.done >= s.need-tasks.MinTime {
				s.target.Repair()
				t.End()
			}
			return time - use
		},
	},
	ClearDown: func(t *tasks.Task, s *repairState) {
		if s.onEnd != nil {
			s.onEnd()
		}
	},
}

// NewRepair sends w to fix target. onEnd runs once the task ends, repaired
// or not.
func (b *Set) NewRepair(env tasks.Env, w worker.Worker, target *station.Station, onEnd func()) *tasks.Task {
	t := tasks.New(repairSpec, env, w, &repairState{target: target, need: b.cfg.RepairWork, onEnd: onEnd}, PhaseRepairing)
	t.SetDescription("Repairing " + target.ID())
	if !w.Spot().Loc.Pressurized() {
		t.End()
	}
	return t
}
