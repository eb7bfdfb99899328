package scheduler

import (
	"errors"
	"fmt"
	"math"

	"colonysim.ai/internal/sim/meta"
	"colonysim.ai/internal/sim/tasks"
	"colonysim.ai/internal/sim/worker"
)

const (
	DefaultMaxTaskScore = 20000
	DefaultHistorySize  = 64

	outsideEnergyFactor = 1.1
	effortEnergyFactor  = 2
)

var ErrNoEligibleTask = errors.New("no eligible task")

// ShiftSource places a worker in an eligibility window.
type ShiftSource interface {
	Window(w worker.Worker) meta.Window
}

// EmergencySource reports emergencies a worker should drop everything for.
type EmergencySource interface {
	HasEmergency(w worker.Worker) bool
	NewEmergencyTask(w worker.Worker) *tasks.Task
}

// Recorder receives every change of a worker's activity.
type Recorder interface {
	RecordActivity(a Activity)
}

type Config struct {
	MaxTaskScore float64
	HistorySize  int
}

func (c Config) normalized() Config {
	if c.MaxTaskScore <= 0 {
		c.MaxTaskScore = DefaultMaxTaskScore
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	return c
}

// Scheduler owns the active task of one worker and picks the next one.
type Scheduler struct {
	w      worker.Worker
	env    tasks.Env
	metas  *meta.Registry
	shifts ShiftSource
	emerg  EmergencySource
	rec    Recorder
	cfg    Config

	current  *tasks.Task
	lastTask string
	pending  []string

	// Eligible MetaTasks, rebuilt when the shift window changes.
	window      meta.Window
	windowValid bool
	eligible    []meta.MetaTask

	// Scores for eligible, valid for one simulation timestamp.
	scoreAt    float64
	scoreValid bool
	scores     []float64
	total      float64

	history []Activity
	seen    activityKey
}

type Options struct {
	Shifts      ShiftSource
	Emergencies EmergencySource
	Recorder    Recorder
	Config      Config
}

func New(w worker.Worker, env tasks.Env, metas *meta.Registry, opts Options) *Scheduler {
	return &Scheduler{
		w:      w,
		env:    env,
		metas:  metas,
		shifts: opts.Shifts,
		emerg:  opts.Emergencies,
		rec:    opts.Recorder,
		cfg:    opts.Config.normalized(),
	}
}

func (s *Scheduler) Worker() worker.Worker { return s.w }
func (s *Scheduler) Current() *tasks.Task  { return s.current }
func (s *Scheduler) LastTask() string      { return s.lastTask }
func (s *Scheduler) Pending() []string     { return append([]string(nil), s.pending...) }

// QueueTask asks for the named MetaTask to be started at the next selection.
func (s *Scheduler) QueueTask(name string) error {
	if _, ok := s.metas.Get(name); !ok {
		return fmt.Errorf("%w: %s", meta.ErrUnknownMetaTask, name)
	}
	s.pending = append(s.pending, name)
	return nil
}

// Install replaces the current task with t, ending the old one.
func (s *Scheduler) Install(t *tasks.Task) {
	if s.current != nil && s.current != t {
		s.current.End()
		s.record(s.current, EventEnd)
	}
	s.current = t
	if t != nil {
		s.record(t, EventStart)
	}
}

// SelectNextTask picks and installs a new task by weighted random choice
// over the eligible MetaTasks.
func (s *Scheduler) SelectNextTask() (*tasks.Task, error) {
	s.refreshEligible()

	if t := s.takePending(); t != nil {
		s.Install(t)
		return t, nil
	}

	s.refreshScores()
	for s.total > 0 {
		idx, ok := meta.Select(s.scores, s.env.Rand().Float64()*s.total)
		if !ok {
			break
		}
		mt := s.eligible[idx]
		t := mt.Instantiate(s.w, s.env)
		if t != nil && !t.Done() {
			s.Install(t)
			return t, nil
		}
		// Could not start (no station, no route). Drop it for this timestamp.
		s.env.Logger().Printf("%s: %s could not start", s.w.Name(), mt.Name())
		s.total -= s.scores[idx]
		s.scores[idx] = 0
	}
	return nil, fmt.Errorf("%s: %w", s.w.Name(), ErrNoEligibleTask)
}

func (s *Scheduler) refreshEligible() {
	win := meta.Unrestricted
	if s.shifts != nil {
		win = s.shifts.Window(s.w)
	}
	if s.windowValid && win == s.window {
		return
	}
	s.window = win
	s.windowValid = true
	s.eligible = s.metas.Eligible(win)
	s.scoreValid = false
}

func (s *Scheduler) refreshScores() {
	now := s.env.Now()
	if s.scoreValid && s.scoreAt == now {
		return
	}
	s.scores = s.scores[:0]
	s.total = 0
	for _, mt := range s.eligible {
		v := s.score(mt)
		s.scores = append(s.scores, v)
		s.total += v
	}
	s.scoreAt = now
	s.scoreValid = true
}

func (s *Scheduler) score(mt meta.MetaTask) (v float64) {
	defer func() {
		if r := recover(); r != nil {
			s.env.Logger().Printf("warn: %s: score of %s panicked: %v", s.w.Name(), mt.Name(), r)
			v = 0
		}
	}()
	v = mt.Score(s.w, s.env)
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0) || v < 0:
		s.env.Logger().Printf("warn: %s: %s scored %v, using 0", s.w.Name(), mt.Name(), v)
		return 0
	case v > s.cfg.MaxTaskScore:
		s.env.Logger().Printf("warn: %s: %s scored %.1f, capping at %.0f", s.w.Name(), mt.Name(), v, s.cfg.MaxTaskScore)
		return s.cfg.MaxTaskScore
	}
	return v
}

func (s *Scheduler) takePending() *tasks.Task {
	for len(s.pending) > 0 {
		name := s.pending[0]
		s.pending = s.pending[1:]
		var mt meta.MetaTask
		for _, e := range s.eligible {
			if e.Name() == name {
				mt = e
				break
			}
		}
		if mt == nil {
			s.env.Logger().Printf("%s: queued %s not eligible in %s, skipping", s.w.Name(), name, s.window)
			continue
		}
		if t := mt.Instantiate(s.w, s.env); t != nil && !t.Done() {
			return t
		}
	}
	return nil
}

// Tick advances the worker's activity by time and returns the part of time
// that was not used. Only configuration errors and task exhaustion are
// returned.
func (s *Scheduler) Tick(time float64) (float64, error) {
	if !(time > 0) {
		return 0, nil
	}
	s.checkEmergency()

	if s.current == nil {
		if _, err := s.SelectNextTask(); err != nil {
			return time, err
		}
	}
	t := s.current

	perf := s.w.PerformanceFactor()
	give := time
	if t.EffortDriven() {
		give = time * perf
	}
	left, err := t.Execute(give)
	used := give - left
	s.drain(t, used)

	if err != nil {
		s.finish()
		return 0, err
	}
	if t.Done() {
		s.finish()
	} else {
		s.record(t, EventProgress)
	}

	leftover := left
	if t.EffortDriven() {
		if perf > 0 {
			leftover = left / perf
		} else {
			leftover = time
		}
	}
	return math.Min(leftover, time), nil
}

func (s *Scheduler) drain(t *tasks.Task, used float64) {
	if used <= 0 {
		return
	}
	e := used
	if t.EffortDriven() {
		e *= effortEnergyFactor
	}
	if s.w.Spot().Loc == worker.Outside {
		e *= outsideEnergyFactor
	}
	s.w.DrainEnergy(e)
}

func (s *Scheduler) checkEmergency() {
	if s.emerg == nil || !s.emerg.HasEmergency(s.w) {
		return
	}
	if cur := s.current; cur != nil {
		if cur.Emergency() || !cur.Interruptible() {
			return
		}
	}
	et := s.emerg.NewEmergencyTask(s.w)
	if et == nil || et.Done() {
		return
	}
	if s.current != nil {
		s.env.Logger().Printf("%s: dropping %s for %s", s.w.Name(), s.current.Name(), et.Name())
		s.current.End()
		s.record(s.current, EventPreempted)
		s.lastTask = s.current.Name()
		s.current = nil
	}
	s.Install(et)
}

func (s *Scheduler) finish() {
	if s.current == nil {
		return
	}
	s.current.End()
	s.record(s.current, EventEnd)
	s.lastTask = s.current.Name()
	s.current = nil
}
