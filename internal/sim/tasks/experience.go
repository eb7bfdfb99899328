package tasks

import (
	"fmt"

	"colonysim.ai/internal/sim/worker"
)

// ExperienceModifier scales experience gains by the worker's aptitude.
func ExperienceModifier(w worker.Worker) float64 {
	return 1 + float64(w.Attribute(worker.AttrExperienceAptitude)-50)/100
}

// AddExperience credits every associated skill with time/ratio points.
func (t *Task) AddExperience(time, ratio float64) {
	if time <= 0 || ratio <= 0 {
		return
	}
	amount := time / ratio * ExperienceModifier(t.worker)
	for _, s := range t.skills {
		t.worker.AddExperience(s, amount, time)
	}
}

// SkillModifier scales accident chance by skill: 4 at skill 0 falling to 1
// at skill 3, then 1/(skill-2).
func SkillModifier(skill int) float64 {
	if skill <= 3 {
		return float64(4 - skill)
	}
	return 1 / float64(skill-2)
}

// CheckForAccident rolls a percent-scaled accident on e for time spent.
// A hit is reported to the environment as a malfunction.
func (t *Task) CheckForAccident(e Entity, time, chance float64, skill int) bool {
	if e == nil || time <= 0 || chance <= 0 {
		return false
	}
	c := chance * SkillModifier(skill) * e.WearModifier()
	if t.env.Rand().Float64()*100 >= c*time {
		return false
	}
	t.env.Logger().Printf("accident: %s during %s damaged %s", t.worker.Name(), t.name, e.EntityID())
	t.env.CreateMalfunction(e, fmt.Sprintf("accident during %s", t.name))
	return true
}
