// Package eva brackets outdoor work with a walk out to the site and a walk
// back inside, and keeps the worker out only while it is safe.
package eva

import (
	"math"

	"colonysim.ai/internal/sim/tasks"
	"colonysim.ai/internal/sim/worker"
)

const (
	PhaseWalkToSite     tasks.Phase = "WALK_TO_SITE"
	PhaseWalkBackInside tasks.Phase = "WALK_BACK_INSIDE"
)

type Config struct {
	// MinResourceFraction is the oxygen and water floor below which the
	// worker must head back.
	MinResourceFraction float64 `yaml:"min_resource_fraction" json:"min_resource_fraction"`
	// MinLight is the irradiance below which outdoor work stops unless the
	// site is in a dark polar region.
	MinLight            float64 `yaml:"min_light" json:"min_light"`
	BaseAccidentChance  float64 `yaml:"base_accident_chance" json:"base_accident_chance"`
	EVAExperienceRatio  float64 `yaml:"eva_experience_ratio" json:"eva_experience_ratio"`
	SiteExperienceRatio float64 `yaml:"site_experience_ratio" json:"site_experience_ratio"`
}

func DefaultConfig() Config {
	return Config{
		MinResourceFraction: 0.15,
		MinLight:            1,
		BaseAccidentChance:  0.01,
		EVAExperienceRatio:  100,
		SiteExperienceRatio: 10,
	}
}

// Operation is the outdoor bookkeeping shared by every EVA kind.
type Operation struct {
	Site            worker.Spot
	SitePhase       tasks.Phase
	HasSiteDuration bool
	SiteDuration    float64
	TimeOnSite      float64

	cfg          Config
	endRequested bool
	abortReason  string
}

// AddTimeOnSite accumulates site time and reports whether the site
// duration has been reached.
func (op *Operation) AddTimeOnSite(time float64) bool {
	if time > 0 {
		op.TimeOnSite += time
	}
	return op.HasSiteDuration && op.TimeOnSite >= op.SiteDuration
}

// EndEVA asks the operation to wrap up at the next gate check.
func (op *Operation) EndEVA() { op.endRequested = true }

func (op *Operation) EndRequested() bool { return op.endRequested }

// AbortReason is the last gate failure, empty if none.
func (op *Operation) AbortReason() string { return op.abortReason }

// Problem runs the viability gate and returns the first failing check.
func (op *Operation) Problem(env tasks.Env, w worker.Worker) string {
	if op.endRequested {
		return "end requested"
	}
	if w.PerformanceFactor() <= 0 {
		return "incapacitated"
	}
	if w.Traits().NeedsSuit {
		s := w.Suit()
		switch {
		case s == nil:
			return "no suit"
		case s.Malfunctioning():
			return "suit malfunction"
		case s.OxygenFraction() <= op.cfg.MinResourceFraction:
			return "low oxygen"
		case s.WaterFraction() <= op.cfg.MinResourceFraction:
			return "low water"
		}
	}
	if env.SolarIrradiance(op.Site) < op.cfg.MinLight && !env.InDarkPolarRegion(op.Site) {
		return "too dark"
	}
	return ""
}

// State is the task state of an EVA kind: the shared operation plus the
// kind's own data.
type State[S any] struct {
	Op   *Operation
	Data S
}

// SiteHandler does the outdoor work for one step and returns the leftover.
// It may call op.EndEVA or move the task to PhaseWalkBackInside when done.
type SiteHandler[S any] func(t *tasks.Task, op *Operation, s *S, time float64) float64

type Def[S any] struct {
	Kind          string
	Name          string
	Skills        []worker.Skill
	SitePhase     tasks.Phase
	Site          SiteHandler[S]
	EffortDriven  bool
	StressPerTime float64
	ClearDown     func(t *tasks.Task, op *Operation, s *S)
}

// Kind is a built EVA task kind.
type Kind[S any] struct {
	def  Def[S]
	cfg  Config
	spec *tasks.Spec[State[S]]
}

func Define[S any](def Def[S], cfg Config) *Kind[S] {
	k := &Kind[S]{def: def, cfg: cfg}
	sp := &tasks.Spec[State[S]]{
		Kind:          def.Kind,
		Name:          def.Name,
		Skills:        def.Skills,
		EffortDriven:  def.EffortDriven,
		StressPerTime: def.StressPerTime,
		Phases: map[tasks.Phase]tasks.Handler[State[S]]{
			PhaseWalkToSite:     k.walkToSite,
			def.SitePhase:       k.onSite,
			PhaseWalkBackInside: k.walkBackInside,
		},
	}
	sp.Supervise = k.superviseWalkOut
	if def.ClearDown != nil {
		sp.ClearDown = func(t *tasks.Task, s *State[S]) { def.ClearDown(t, s.Op, &s.Data) }
	}
	k.spec = sp
	return k
}

func (k *Kind[S]) Spec() *tasks.Spec[State[S]] { return k.spec }

// New starts an EVA to site. Workers that may not go outside, or that have
// no route to the site, get a task that is already done.
func (k *Kind[S]) New(env tasks.Env, w worker.Worker, site worker.Spot, siteDuration float64, data S) *tasks.Task {
	site.Loc = worker.Outside
	op := &Operation{
		Site:            site,
		SitePhase:       k.def.SitePhase,
		HasSiteDuration: siteDuration > 0,
		SiteDuration:    siteDuration,
		cfg:             k.cfg,
	}
	first := PhaseWalkToSite
	if w.Spot().Loc == worker.Outside {
		first = k.def.SitePhase
	}
	t := tasks.New(k.spec, env, w, &State[S]{Op: op, Data: data}, first)
	switch {
	case !w.Traits().CanEVA:
		env.Logger().Printf("%s: %s cannot go outside", k.def.Name, w.Name())
		t.End()
	case first == PhaseWalkToSite && !env.CanWalk(w, site):
		env.Logger().Printf("%s: no route for %s to site (%.1f,%.1f)", k.def.Name, w.Name(), site.X, site.Y)
		t.End()
	}
	return t
}

func (k *Kind[S]) walkToSite(t *tasks.Task, s *State[S], time float64) float64 {
	w := t.Worker()
	env := t.Env()
	op := s.Op
	if w.Spot().Loc == worker.Outside {
		if p := op.Problem(env, w); p != "" {
			k.abort(t, op, p)
			return time
		}
		if w.Spot().Dist(op.Site) <= tasks.MinTime {
			t.SetPhase(op.SitePhase)
			return time
		}
	} else if op.endRequested {
		t.End()
		return time
	}
	walk, err := env.WalkTask(w, op.Site)
	if err != nil {
		env.Logger().Printf("%s: %s cannot reach site: %v", k.def.Name, w.Name(), err)
		k.abort(t, op, "no route")
		return time
	}
	t.SetDescription("Walking to " + k.def.Name)
	if err := t.AddSubTask(walk); err != nil {
		env.Logger().Printf("%s: %v", k.def.Name, err)
	}
	return time
}

// superviseWalkOut keeps the gate running while the walk out is under way
// and the worker is already outside. An airlock cycle is left to finish.
func (k *Kind[S]) superviseWalkOut(t *tasks.Task, s *State[S]) {
	w := t.Worker()
	if t.Phase() != PhaseWalkToSite || w.Spot().Loc != worker.Outside {
		return
	}
	if sub := t.SubTask(); sub != nil && !sub.Interruptible() {
		return
	}
	if p := s.Op.Problem(t.Env(), w); p != "" {
		t.EndSubTask()
		k.abort(t, s.Op, p)
	}
}

func (k *Kind[S]) onSite(t *tasks.Task, s *State[S], time float64) float64 {
	w := t.Worker()
	op := s.Op
	if p := op.Problem(t.Env(), w); p != "" {
		k.abort(t, op, p)
		return time
	}
	if op.HasSiteDuration && op.TimeOnSite >= op.SiteDuration {
		t.SetPhase(PhaseWalkBackInside)
		return time
	}
	give := time
	if op.HasSiteDuration {
		give = math.Min(give, op.SiteDuration-op.TimeOnSite)
	}
	t.SetDescription(k.def.Name)
	left := k.def.Site(t, op, &s.Data, give)
	left = math.Min(math.Max(left, 0), give)
	used := give - left

	if op.AddTimeOnSite(used) {
		t.SetPhase(PhaseWalkBackInside)
	}
	if used > 0 {
		k.addExperience(t, used)
		if suit := w.Suit(); suit != nil {
			t.CheckForAccident(suit, used, k.cfg.BaseAccidentChance, w.EffectiveSkillLevel(worker.SkillEVA))
		}
	}
	return left + (time - give)
}

func (k *Kind[S]) walkBackInside(t *tasks.Task, s *State[S], time float64) float64 {
	w := t.Worker()
	env := t.Env()
	if w.Spot().Loc.Pressurized() {
		t.End()
		return time
	}
	walk, err := env.WalkTask(w, env.InsideSpot())
	if err != nil {
		// Stay in this phase and retry on the next tick.
		env.Logger().Printf("warn: %s: %s stranded outside: %v", k.def.Name, w.Name(), err)
		return time
	}
	t.SetDescription("Walking back inside")
	if err := t.AddSubTask(walk); err != nil {
		env.Logger().Printf("%s: %v", k.def.Name, err)
	}
	return time
}

func (k *Kind[S]) abort(t *tasks.Task, op *Operation, reason string) {
	op.abortReason = reason
	if t.Worker().Spot().Loc == worker.Outside {
		t.Env().Logger().Printf("%s: %s heading back inside: %s", k.def.Name, t.Worker().Name(), reason)
		t.SetPhase(PhaseWalkBackInside)
		return
	}
	t.End()
}

func (k *Kind[S]) addExperience(t *tasks.Task, time float64) {
	w := t.Worker()
	mod := tasks.ExperienceModifier(w)
	if k.cfg.EVAExperienceRatio > 0 {
		w.AddExperience(worker.SkillEVA, time/k.cfg.EVAExperienceRatio*mod, time)
	}
	if k.cfg.SiteExperienceRatio > 0 {
		for _, sk := range k.def.Skills {
			if sk == worker.SkillEVA {
				continue
			}
			w.AddExperience(sk, time/k.cfg.SiteExperienceRatio*mod, time)
		}
	}
}

// Of returns the operation of an EVA task, if t is one.
func Of[S any](t *tasks.Task) (*Operation, bool) {
	s, ok := tasks.StateOf[State[S]](t)
	if !ok {
		return nil, false
	}
	return s.Op, true
}
