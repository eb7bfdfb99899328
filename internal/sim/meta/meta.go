package meta

import (
	"errors"
	"fmt"

	"colonysim.ai/internal/sim/tasks"
	"colonysim.ai/internal/sim/worker"
)

// Window is the shift eligibility of a worker or a MetaTask.
type Window uint8

const (
	OnDuty Window = 1 << iota
	OffDuty

	// Unrestricted workers (on call) may pick any task.
	Unrestricted Window = 0
	AnyShift            = OnDuty | OffDuty
)

func (w Window) String() string {
	switch w {
	case Unrestricted:
		return "ON_CALL"
	case OnDuty:
		return "ON_DUTY"
	case OffDuty:
		return "OFF_DUTY"
	case AnyShift:
		return "ANY"
	}
	return fmt.Sprintf("Window(%d)", uint8(w))
}

// MetaTask scores and builds one kind of task. Implementations are
// stateless and shared by every worker.
type MetaTask interface {
	Name() string
	// Shifts is the set of windows the task may be picked in.
	Shifts() Window
	// Score is the finite, non-negative weight of starting the task now.
	Score(w worker.Worker, env tasks.Env) float64
	Instantiate(w worker.Worker, env tasks.Env) *tasks.Task
}

var (
	ErrDuplicateMetaTask = errors.New("duplicate meta task")
	ErrUnknownMetaTask   = errors.New("unknown meta task")
)

// Registry holds MetaTasks in registration order.
type Registry struct {
	list   []MetaTask
	byName map[string]MetaTask
}

func NewRegistry() *Registry { return &Registry{byName: map[string]MetaTask{}} }

func (r *Registry) Add(mt MetaTask) error {
	if _, ok := r.byName[mt.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMetaTask, mt.Name())
	}
	r.list = append(r.list, mt)
	r.byName[mt.Name()] = mt
	return nil
}

func (r *Registry) Get(name string) (MetaTask, bool) {
	mt, ok := r.byName[name]
	return mt, ok
}

func (r *Registry) All() []MetaTask { return append([]MetaTask(nil), r.list...) }

func (r *Registry) Len() int { return len(r.list) }

// Eligible returns the MetaTasks that may be picked in window, in
// registration order.
func (r *Registry) Eligible(window Window) []MetaTask {
	out := make([]MetaTask, 0, len(r.list))
	for _, mt := range r.list {
		if window == Unrestricted || mt.Shifts()&window != 0 {
			out = append(out, mt)
		}
	}
	return out
}

// Select walks scores in order, subtracting each positive score from r,
// and returns the first index whose score covers what is left of r.
// r is expected in [0, sum of positive scores).
func Select(scores []float64, r float64) (int, bool) {
	last := -1
	for i, s := range scores {
		if !(s > 0) {
			continue
		}
		last = i
		if r <= s {
			return i, true
		}
		r -= s
	}
	// Float rounding at the top of the range.
	if last >= 0 {
		return last, true
	}
	return -1, false
}
