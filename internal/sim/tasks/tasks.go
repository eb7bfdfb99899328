package tasks

import (
	"fmt"
	"math"

	"colonysim.ai/internal/sim/station"
	"colonysim.ai/internal/sim/worker"
)

const (
	// MinTime is the smallest slice of time worth accounting for.
	MinTime = 1e-6

	maxPhaseSteps = 64
)

// Task is one running instance of a Spec, owned by a single worker.
type Task struct {
	id          string
	kind        string
	name        string
	description string
	worker      worker.Worker
	env         Env

	skills        []worker.Skill
	effortDriven  bool
	emergency     bool
	stressPerTime float64

	phase Phase
	sub   *Task
	done  bool

	hasDuration   bool
	duration      float64
	timeCompleted float64

	claims []*station.Claim

	state           any
	dispatch        func(p Phase, time float64) (float64, bool)
	uninterruptible map[Phase]bool
	clearDown       func()
	supervise       func()
}

// New creates a task of kind sp starting in phase first.
func New[S any](sp *Spec[S], env Env, w worker.Worker, state *S, first Phase) *Task {
	t := &Task{
		id:            env.NewTaskID(),
		kind:          sp.Kind,
		name:          sp.Name,
		description:   sp.Name,
		worker:        w,
		env:           env,
		skills:        sp.Skills,
		effortDriven:  sp.EffortDriven,
		emergency:     sp.Emergency,
		stressPerTime: sp.StressPerTime,
		phase:         first,
		state:         state,
	}
	if len(sp.Uninterruptible) > 0 {
		t.uninterruptible = make(map[Phase]bool, len(sp.Uninterruptible))
		for _, p := range sp.Uninterruptible {
			t.uninterruptible[p] = true
		}
	}
	phases := sp.Phases
	t.dispatch = func(p Phase, time float64) (float64, bool) {
		h, ok := phases[p]
		if !ok {
			return time, false
		}
		return h(t, state, time), true
	}
	if sp.ClearDown != nil {
		hook := sp.ClearDown
		t.clearDown = func() { hook(t, state) }
	}
	if sp.Supervise != nil {
		hook := sp.Supervise
		t.supervise = func() { hook(t, state) }
	}
	return t
}

// StateOf returns the kind-specific state of t.
func StateOf[S any](t *Task) (*S, bool) {
	s, ok := t.state.(*S)
	return s, ok
}

func (t *Task) ID() string                { return t.id }
func (t *Task) Kind() string              { return t.kind }
func (t *Task) Name() string              { return t.name }
func (t *Task) Description() string       { return t.description }
func (t *Task) Phase() Phase              { return t.phase }
func (t *Task) Done() bool                { return t.done }
func (t *Task) SubTask() *Task            { return t.sub }
func (t *Task) Worker() worker.Worker     { return t.worker }
func (t *Task) Env() Env                  { return t.env }
func (t *Task) EffortDriven() bool        { return t.effortDriven }
func (t *Task) Emergency() bool           { return t.emergency }
func (t *Task) Skills() []worker.Skill    { return t.skills }
func (t *Task) TimeCompleted() float64    { return t.timeCompleted }
func (t *Task) Duration() (float64, bool) { return t.duration, t.hasDuration }
func (t *Task) Claims() []*station.Claim  { return t.claims }
func (t *Task) SetDescription(d string)   { t.description = d }

// SetPhase moves t to p. It has no effect once t is done.
func (t *Task) SetPhase(p Phase) {
	if t.done {
		return
	}
	t.phase = p
}

// SetDuration gives t a time budget. The task ends once it has spent d.
func (t *Task) SetDuration(d float64) {
	t.hasDuration = true
	t.duration = math.Max(d, 0)
}

// Active returns the innermost running task of the stack rooted at t.
func (t *Task) Active() *Task {
	cur := t
	for cur.sub != nil && !cur.sub.done {
		cur = cur.sub
	}
	return cur
}

// Interruptible reports whether every running task on the stack is in an
// interruptible phase.
func (t *Task) Interruptible() bool {
	for cur := t; cur != nil; cur = cur.sub {
		if cur.done {
			continue
		}
		if cur.uninterruptible[cur.phase] {
			return false
		}
	}
	return true
}

// AddSubTask installs sub as the child of t. The child receives time before
// the parent for as long as it runs.
func (t *Task) AddSubTask(sub *Task) error {
	if t.done {
		return ErrTaskDone
	}
	if t.sub != nil && !t.sub.done {
		return fmt.Errorf("%s: %w (%s)", t.name, ErrSubTaskActive, t.sub.name)
	}
	if sub == nil || sub.done {
		t.sub = nil
		return nil
	}
	t.sub = sub
	return nil
}

// Claim takes a seat on st for the lifetime of t.
func (t *Task) Claim(st *station.Station) bool {
	c, ok := st.TryClaim()
	if !ok {
		return false
	}
	t.claims = append(t.claims, c)
	return true
}

// ClaimKind takes a seat on any available station of kind k.
func (t *Task) ClaimKind(k station.Kind) (*station.Station, bool) {
	c, ok := t.env.Stations().ClaimAny(k)
	if !ok {
		return nil, false
	}
	t.claims = append(t.claims, c)
	return c.Station(), true
}

// EndSubTask ends the running sub-task, if any, and leaves t running.
func (t *Task) EndSubTask() {
	if t.sub == nil {
		return
	}
	t.sub.End()
	t.sub = nil
}

// ReleaseClaims frees every seat held by t without ending it.
func (t *Task) ReleaseClaims() {
	for _, c := range t.claims {
		c.Release()
	}
	t.claims = nil
}

// End finishes t. It is idempotent; the sub-task is ended, claims are
// released and the clear-down hook runs exactly once.
func (t *Task) End() {
	if t.done {
		return
	}
	t.done = true
	if t.sub != nil {
		t.sub.End()
		t.sub = nil
	}
	t.ReleaseClaims()
	if t.clearDown != nil {
		t.clearDown()
	}
	t.phase = ""
}

// Execute runs t for up to time and returns the unused remainder.
// The returned error is non-nil only for configuration errors, in which
// case t has been ended.
func (t *Task) Execute(time float64) (float64, error) {
	if t.done {
		return trim(math.Max(time, 0)), nil
	}
	if t.effortDriven && t.worker.PerformanceFactor() <= 0 {
		t.env.Logger().Printf("task %s %s: %s cannot perform, ending", t.id, t.name, t.worker.Name())
		t.End()
		return trim(math.Max(time, 0)), nil
	}
	if math.IsNaN(time) || time <= 0 {
		return 0, nil
	}

	remaining := time
	for step := 0; remaining > 0 && !t.done; step++ {
		if step >= maxPhaseSteps {
			t.env.Logger().Printf("warn: task %s %s: %d phase steps in one call, yielding in %s", t.id, t.name, step, t.phase)
			break
		}

		if t.sub != nil && t.supervise != nil {
			t.supervise()
			if t.done {
				break
			}
		}
		if t.sub != nil {
			left, err := t.sub.Execute(remaining)
			left = math.Min(math.Max(left, 0), remaining)
			subDone := t.sub.done
			if subDone {
				t.sub = nil
			}
			if err != nil {
				t.End()
				return trim(left), err
			}
			if !subDone && left >= remaining {
				break
			}
			remaining = left
			continue
		}

		give := remaining
		if t.hasDuration {
			budget := t.duration - t.timeCompleted
			if budget <= MinTime {
				t.End()
				break
			}
			give = math.Min(give, budget)
		}

		phase := t.phase
		left, ok := t.dispatch(phase, give)
		if !ok {
			err := &PhaseError{Task: t.name, Kind: t.kind, Phase: phase}
			t.env.Logger().Printf("FATAL config: %v", err)
			t.End()
			return trim(remaining), err
		}
		left = t.checkLeftover(phase, left, give)
		used := give - left
		remaining -= used
		if used > 0 {
			t.timeCompleted += used
			if t.stressPerTime != 0 {
				t.worker.SetStress(t.worker.Stress() + t.stressPerTime*used)
			}
		}
		if t.hasDuration && !t.done && t.timeCompleted >= t.duration-MinTime {
			t.End()
			break
		}
		if used <= 0 && t.phase == phase && t.sub == nil {
			break
		}
	}
	return trim(remaining), nil
}

func (t *Task) checkLeftover(p Phase, left, given float64) float64 {
	switch {
	case math.IsNaN(left) || left < 0:
		t.env.Logger().Printf("warn: task %s %s phase %s returned leftover %v, want [0,%.6f]", t.id, t.name, p, left, given)
		return 0
	case left > given:
		t.env.Logger().Printf("warn: task %s %s phase %s returned leftover %.6f, want [0,%.6f]", t.id, t.name, p, left, given)
		return given
	}
	return left
}

func trim(v float64) float64 {
	if v < MinTime {
		return 0
	}
	return v
}
