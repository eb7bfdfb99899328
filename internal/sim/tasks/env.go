package tasks

import (
	"log"
	"math/rand"

	"colonysim.ai/internal/sim/station"
	"colonysim.ai/internal/sim/worker"
)

// Env is the simulation context a task runs against.
type Env interface {
	Now() float64
	Rand() *rand.Rand
	Logger() *log.Logger
	NewTaskID() string

	Stations() *station.Registry

	// CanWalk reports whether w has a route to dst.
	CanWalk(w worker.Worker, dst worker.Spot) bool
	// WalkTask builds a task that moves w to dst.
	WalkTask(w worker.Worker, dst worker.Spot) (*Task, error)
	// InsideSpot is where workers return to when coming back indoors.
	InsideSpot() worker.Spot

	CreateMalfunction(e Entity, cause string)

	SolarIrradiance(s worker.Spot) float64
	InDarkPolarRegion(s worker.Spot) bool
}

// Entity is anything that can suffer an accident.
type Entity interface {
	EntityID() string
	WearModifier() float64
	AddMalfunction(cause string)
}
