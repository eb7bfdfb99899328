package worker

import "math"

type Kind string

const (
	KindPerson Kind = "PERSON"
	KindRobot  Kind = "ROBOT"
)

// Location is the coarse zone a worker occupies.
type Location string

const (
	Inside    Location = "INSIDE"
	InVehicle Location = "IN_VEHICLE"
	Outside   Location = "OUTSIDE"
)

// Pressurized reports whether the zone is a pressurized interior.
func (l Location) Pressurized() bool { return l == Inside || l == InVehicle }

type Spot struct {
	X   float64  `json:"x"`
	Y   float64  `json:"y"`
	Loc Location `json:"loc"`
}

func (s Spot) Dist(o Spot) float64 {
	return math.Hypot(o.X-s.X, o.Y-s.Y)
}

type Skill string

const (
	SkillEVA       Skill = "EVA_OPERATIONS"
	SkillAreology  Skill = "AREOLOGY"
	SkillMechanics Skill = "MECHANICS"
	SkillMaterials Skill = "MATERIALS_SCIENCE"
	SkillResearch  Skill = "RESEARCH"
)

type Attribute string

const (
	AttrExperienceAptitude Attribute = "EXPERIENCE_APTITUDE"
	AttrStressResilience   Attribute = "STRESS_RESILIENCE"
	AttrAgility            Attribute = "AGILITY"
)

// Traits are the capability flags that distinguish persons from robots.
// Scoring and task construction consult them instead of the worker kind.
type Traits struct {
	CanEVA      bool `json:"can_eva"`
	NeedsSuit   bool `json:"needs_suit"`
	NeedsRest   bool `json:"needs_rest"`
	FeelsStress bool `json:"feels_stress"`
}

func PersonTraits() Traits {
	return Traits{CanEVA: true, NeedsSuit: true, NeedsRest: true, FeelsStress: true}
}

func RobotTraits() Traits {
	return Traits{}
}

// Worker is any agent that can carry out tasks.
type Worker interface {
	ID() string
	Name() string
	Kind() Kind
	Traits() Traits

	Spot() Spot
	SetSpot(Spot)

	PerformanceFactor() float64
	Energy() float64
	DrainEnergy(time float64)
	Restore(amount float64)

	Stress() float64
	SetStress(v float64)

	EffectiveSkillLevel(s Skill) int
	AddExperience(s Skill, amount, time float64)
	Attribute(a Attribute) int

	// Suit is nil for workers without one.
	Suit() *Suit
}
