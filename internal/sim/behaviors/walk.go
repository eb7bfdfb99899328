package behaviors

import (
	"fmt"
	"math"

	"colonysim.ai/internal/sim/station"
	"colonysim.ai/internal/sim/tasks"
	"colonysim.ai/internal/sim/worker"
)

const (
	PhaseWalking tasks.Phase = "WALKING"
	PhaseEgress  tasks.Phase = "EGRESS_AIRLOCK"
	PhaseIngress tasks.Phase = "INGRESS_AIRLOCK"
)

type walkState struct {
	dst    worker.Spot
	cfg    *Config
	cycled float64
}

var walkSpec = &tasks.Spec[walkState]{
	Kind: "WALK",
	Name: "Walking",
	Phases: map[tasks.Phase]tasks.Handler[walkState]{
		PhaseWalking: walking,
		PhaseEgress:  cycleAirlock,
		PhaseIngress: cycleAirlock,
	},
	Uninterruptible: []tasks.Phase{PhaseEgress, PhaseIngress},
}

// NewWalk moves w to dst, cycling through an airlock when dst is on the
// other side of the pressure boundary.
func (b *Set) NewWalk(env tasks.Env, w worker.Worker, dst worker.Spot) (*tasks.Task, error) {
	if !env.CanWalk(w, dst) {
		return nil, fmt.Errorf("%w: %s to (%.1f,%.1f,%s)", ErrNoRoute, w.Name(), dst.X, dst.Y, dst.Loc)
	}
	return tasks.New(walkSpec, env, w, &walkState{dst: dst, cfg: &b.cfg}, PhaseWalking), nil
}

func walking(t *tasks.Task, s *walkState, time float64) float64 {
	w := t.Worker()
	cur := w.Spot()
	sameZone := cur.Loc.Pressurized() == s.dst.Loc.Pressurized()

	target := s.dst
	if !sameZone {
		target = worker.Spot{X: s.cfg.Airlock.X, Y: s.cfg.Airlock.Y, Loc: cur.Loc}
	}
	need := cur.Dist(target) / math.Max(s.cfg.WalkSpeed, tasks.MinTime)
	if time < need {
		f := time / need
		w.SetSpot(worker.Spot{X: cur.X + (target.X-cur.X)*f, Y: cur.Y + (target.Y-cur.Y)*f, Loc: cur.Loc})
		return 0
	}
	left := time - need
	if sameZone {
		w.SetSpot(s.dst)
		t.End()
		return left
	}
	w.SetSpot(target)
	if cur.Loc.Pressurized() {
		t.SetPhase(PhaseEgress)
	} else {
		t.SetPhase(PhaseIngress)
	}
	return left
}

func cycleAirlock(t *tasks.Task, s *walkState, time float64) float64 {
	if len(t.Claims()) == 0 {
		if _, ok := t.ClaimKind(station.KindAirlock); !ok {
			t.SetDescription("Waiting for airlock")
			return time
		}
	}
	t.SetDescription("Cycling airlock")
	use := math.Min(time, s.cfg.AirlockCycle-s.cycled)
	s.cycled += use
	if s.cycled < s.cfg.AirlockCycle-tasks.MinTime {
		return time - use
	}
	s.cycled = 0
	t.ReleaseClaims()
	loc := worker.Outside
	if t.Phase() == PhaseIngress {
		loc = worker.Inside
	}
	t.Worker().SetSpot(worker.Spot{X: s.cfg.Airlock.X, Y: s.cfg.Airlock.Y, Loc: loc})
	t.SetDescription("Walking")
	t.SetPhase(PhaseWalking)
	return time - use
}
