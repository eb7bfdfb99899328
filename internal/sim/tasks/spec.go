package tasks

import (
	"fmt"
	"sort"

	"colonysim.ai/internal/sim/worker"
)

// Phase names a state of a task. Behavior for a phase lives in the
// owning Spec's handler table.
type Phase string

// Handler consumes up to time for one phase step and returns the leftover.
type Handler[S any] func(t *Task, s *S, time float64) float64

// Spec describes one task kind: its phase-handler table and fixed attributes.
// A Spec is built once and shared by every task of that kind.
type Spec[S any] struct {
	Kind   string
	Name   string
	Skills []worker.Skill

	EffortDriven  bool
	StressPerTime float64
	Emergency     bool

	Phases map[Phase]Handler[S]
	// Uninterruptible phases cannot be preempted, e.g. airlock cycling.
	Uninterruptible []Phase
	ClearDown       func(t *Task, s *S)
	// Supervise runs before a running sub-task is given time. It may stop
	// the sub-task with EndSubTask, change phase or end the task.
	Supervise func(t *Task, s *S)
}

func (sp *Spec[S]) validate() error {
	if sp.Kind == "" {
		return fmt.Errorf("%w: empty kind", ErrInvalidSpec)
	}
	if len(sp.Phases) == 0 {
		return fmt.Errorf("%w: %s has no phases", ErrInvalidSpec, sp.Kind)
	}
	for p, h := range sp.Phases {
		if p == "" || h == nil {
			return fmt.Errorf("%w: %s has an empty phase entry", ErrInvalidSpec, sp.Kind)
		}
	}
	for _, p := range sp.Uninterruptible {
		if _, ok := sp.Phases[p]; !ok {
			return fmt.Errorf("%w: %s marks unregistered phase %q uninterruptible", ErrInvalidSpec, sp.Kind, p)
		}
	}
	return nil
}

func (sp *Spec[S]) phaseNames() []Phase {
	out := make([]Phase, 0, len(sp.Phases))
	for p := range sp.Phases {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// KindInfo is the type-erased view of a registered Spec.
type KindInfo struct {
	Kind         string  `json:"kind"`
	Name         string  `json:"name"`
	Phases       []Phase `json:"phases"`
	EffortDriven bool    `json:"effort_driven"`
	Emergency    bool    `json:"emergency"`
}

// Registry is the closed set of task kinds known to a simulation.
type Registry struct {
	kinds map[string]KindInfo
}

func NewRegistry() *Registry { return &Registry{kinds: map[string]KindInfo{}} }

// Register validates sp and adds its kind to r.
func Register[S any](r *Registry, sp *Spec[S]) error {
	if err := sp.validate(); err != nil {
		return err
	}
	if _, ok := r.kinds[sp.Kind]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, sp.Kind)
	}
	r.kinds[sp.Kind] = KindInfo{
		Kind:         sp.Kind,
		Name:         sp.Name,
		Phases:       sp.phaseNames(),
		EffortDriven: sp.EffortDriven,
		Emergency:    sp.Emergency,
	}
	return nil
}

func (r *Registry) Lookup(kind string) (KindInfo, bool) {
	k, ok := r.kinds[kind]
	return k, ok
}

func (r *Registry) Kinds() []KindInfo {
	out := make([]KindInfo, 0, len(r.kinds))
	for _, k := range r.kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
