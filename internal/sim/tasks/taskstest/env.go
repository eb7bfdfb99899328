// Package taskstest provides a scripted simulation context for task tests.
package taskstest

import (
	"bytes"
	"fmt"
	"log"
	"math/rand"

	"colonysim.ai/internal/sim/station"
	"colonysim.ai/internal/sim/tasks"
	"colonysim.ai/internal/sim/worker"
)

const PhaseWalking tasks.Phase = "WALKING"

type walkState struct {
	dst  worker.Spot
	left float64
}

var walkSpec = &tasks.Spec[walkState]{
	Kind: "TEST_WALK",
	Name: "Walking",
	Phases: map[tasks.Phase]tasks.Handler[walkState]{
		PhaseWalking: func(t *tasks.Task, s *walkState, time float64) float64 {
			used := time
			if used > s.left {
				used = s.left
			}
			s.left -= used
			if s.left <= tasks.MinTime {
				t.Worker().SetSpot(s.dst)
				t.End()
			}
			return time - used
		},
	},
}

type Malfunction struct {
	Entity string
	Cause  string
}

// Env is an in-memory tasks.Env. Walking takes WalkTime and teleports.
type Env struct {
	Clock float64
	RNG   *rand.Rand
	Log   bytes.Buffer

	Reg    *station.Registry
	Inside worker.Spot

	WalkTime float64
	Walkable func(w worker.Worker, dst worker.Spot) bool

	Irradiance float64
	Polar      bool

	Malfunctions []Malfunction

	logger *log.Logger
	seq    int
}

func NewEnv(seed int64) *Env {
	e := &Env{
		RNG:        rand.New(rand.NewSource(seed)),
		Reg:        station.NewRegistry(),
		Inside:     worker.Spot{Loc: worker.Inside},
		WalkTime:   5,
		Irradiance: 500,
	}
	e.logger = log.New(&e.Log, "[test] ", 0)
	return e
}

func (e *Env) Now() float64                { return e.Clock }
func (e *Env) Rand() *rand.Rand            { return e.RNG }
func (e *Env) Logger() *log.Logger         { return e.logger }
func (e *Env) Stations() *station.Registry { return e.Reg }
func (e *Env) InsideSpot() worker.Spot     { return e.Inside }

func (e *Env) NewTaskID() string {
	e.seq++
	return fmt.Sprintf("T%06d", e.seq)
}

func (e *Env) CanWalk(w worker.Worker, dst worker.Spot) bool {
	if e.Walkable == nil {
		return true
	}
	return e.Walkable(w, dst)
}

func (e *Env) WalkTask(w worker.Worker, dst worker.Spot) (*tasks.Task, error) {
	if !e.CanWalk(w, dst) {
		return nil, fmt.Errorf("no route for %s", w.Name())
	}
	return tasks.New(walkSpec, e, w, &walkState{dst: dst, left: e.WalkTime}, PhaseWalking), nil
}

func (e *Env) CreateMalfunction(en tasks.Entity, cause string) {
	en.AddMalfunction(cause)
	e.Malfunctions = append(e.Malfunctions, Malfunction{Entity: en.EntityID(), Cause: cause})
}

func (e *Env) SolarIrradiance(worker.Spot) float64 { return e.Irradiance }
func (e *Env) InDarkPolarRegion(worker.Spot) bool  { return e.Polar }

// Person returns a fresh suited colonist standing inside.
func Person(id string) *worker.Colonist {
	c := worker.NewColonist(id, "Colonist "+id, worker.KindPerson, worker.PersonTraits())
	c.SetSuit(worker.NewSuit("suit-"+id, 100, 50))
	return c
}

func Robot(id string) *worker.Colonist {
	return worker.NewColonist(id, "Robot "+id, worker.KindRobot, worker.RobotTraits())
}
