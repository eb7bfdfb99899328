package worker

import (
	"math"
	"sort"
)

const (
	MaxEnergy = 100.0
	MaxStress = 100.0

	lowEnergy       = 20.0
	stressThreshold = 80.0
	energyPerTime   = 0.04
)

type skillState struct {
	Level      int     `json:"level"`
	Experience float64 `json:"experience"`
	Time       float64 `json:"time"`
}

// Colonist is the reference Worker: a person or a robot depending on its traits.
type Colonist struct {
	id     string
	name   string
	kind   Kind
	traits Traits

	spot   Spot
	energy float64
	health float64
	stress float64

	skills map[Skill]*skillState
	attrs  map[Attribute]int
	suit   *Suit
}

func NewColonist(id, name string, kind Kind, traits Traits) *Colonist {
	return &Colonist{
		id:     id,
		name:   name,
		kind:   kind,
		traits: traits,
		spot:   Spot{Loc: Inside},
		energy: MaxEnergy,
		health: 1,
		skills: map[Skill]*skillState{},
		attrs:  map[Attribute]int{},
	}
}

func (c *Colonist) ID() string      { return c.id }
func (c *Colonist) Name() string    { return c.name }
func (c *Colonist) Kind() Kind      { return c.kind }
func (c *Colonist) Traits() Traits  { return c.traits }
func (c *Colonist) Spot() Spot      { return c.spot }
func (c *Colonist) SetSpot(s Spot)  { c.spot = s }
func (c *Colonist) Energy() float64 { return c.energy }
func (c *Colonist) Health() float64 { return c.health }
func (c *Colonist) Suit() *Suit     { return c.suit }

func (c *Colonist) SetSuit(s *Suit)                 { c.suit = s }
func (c *Colonist) SetHealth(v float64)             { c.health = clampRange(v, 0, 1) }
func (c *Colonist) SetEnergy(v float64)             { c.energy = clampRange(v, 0, MaxEnergy) }
func (c *Colonist) SetAttribute(a Attribute, v int) { c.attrs[a] = v }

// PerformanceFactor combines health, fatigue and stress into [0,1].
func (c *Colonist) PerformanceFactor() float64 {
	p := c.health
	if c.traits.NeedsRest && c.energy < lowEnergy {
		p *= c.energy / lowEnergy
	}
	if c.traits.FeelsStress && c.stress > stressThreshold {
		p *= 1 - (c.stress-stressThreshold)/(2*(MaxStress-stressThreshold))
	}
	return clampRange(p, 0, 1)
}

func (c *Colonist) DrainEnergy(time float64) {
	if time <= 0 || !c.traits.NeedsRest {
		return
	}
	c.energy = clampRange(c.energy-time*energyPerTime, 0, MaxEnergy)
}

func (c *Colonist) Restore(amount float64) {
	c.energy = clampRange(c.energy+amount, 0, MaxEnergy)
}

func (c *Colonist) Stress() float64 { return c.stress }

func (c *Colonist) SetStress(v float64) {
	if !c.traits.FeelsStress {
		return
	}
	c.stress = clampRange(v, 0, MaxStress)
}

func (c *Colonist) Attribute(a Attribute) int {
	v, ok := c.attrs[a]
	if !ok {
		return 50
	}
	return v
}

func (c *Colonist) SkillLevel(s Skill) int {
	if st := c.skills[s]; st != nil {
		return st.Level
	}
	return 0
}

func (c *Colonist) SetSkillLevel(s Skill, level int) {
	c.skill(s).Level = level
}

// EffectiveSkillLevel is the skill level throttled by current performance.
func (c *Colonist) EffectiveSkillLevel(s Skill) int {
	return int(math.Round(float64(c.SkillLevel(s)) * c.PerformanceFactor()))
}

// AddExperience accumulates experience and levels the skill up each time
// the next level's threshold is crossed.
func (c *Colonist) AddExperience(s Skill, amount, time float64) {
	if amount <= 0 {
		return
	}
	st := c.skill(s)
	st.Experience += amount
	st.Time += time
	for st.Experience >= ExperienceForLevel(st.Level+1) {
		st.Experience -= ExperienceForLevel(st.Level + 1)
		st.Level++
	}
}

func (c *Colonist) Experience(s Skill) float64 {
	if st := c.skills[s]; st != nil {
		return st.Experience
	}
	return 0
}

func (c *Colonist) skill(s Skill) *skillState {
	st := c.skills[s]
	if st == nil {
		st = &skillState{}
		c.skills[s] = st
	}
	return st
}

// ExperienceForLevel is the experience needed to advance into level.
func ExperienceForLevel(level int) float64 {
	if level <= 0 {
		return 0
	}
	return 25 * math.Pow(2, float64(level-1))
}

type SkillRecord struct {
	Skill      Skill   `json:"skill"`
	Level      int     `json:"level"`
	Experience float64 `json:"experience"`
	Time       float64 `json:"time"`
}

type ColonistRecord struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Kind       Kind              `json:"kind"`
	Traits     Traits            `json:"traits"`
	Spot       Spot              `json:"spot"`
	Energy     float64           `json:"energy"`
	Health     float64           `json:"health"`
	Stress     float64           `json:"stress"`
	Skills     []SkillRecord     `json:"skills,omitempty"`
	Attributes map[Attribute]int `json:"attributes,omitempty"`
	Suit       *Suit             `json:"suit,omitempty"`
}

// Record exports the colonist in a stable order.
func (c *Colonist) Record() ColonistRecord {
	r := ColonistRecord{
		ID:     c.id,
		Name:   c.name,
		Kind:   c.kind,
		Traits: c.traits,
		Spot:   c.spot,
		Energy: c.energy,
		Health: c.health,
		Stress: c.stress,
	}
	keys := make([]string, 0, len(c.skills))
	for s := range c.skills {
		keys = append(keys, string(s))
	}
	sort.Strings(keys)
	for _, k := range keys {
		st := c.skills[Skill(k)]
		r.Skills = append(r.Skills, SkillRecord{Skill: Skill(k), Level: st.Level, Experience: st.Experience, Time: st.Time})
	}
	if len(c.attrs) > 0 {
		r.Attributes = make(map[Attribute]int, len(c.attrs))
		for k, v := range c.attrs {
			r.Attributes[k] = v
		}
	}
	if c.suit != nil {
		cp := *c.suit
		cp.Malfunction = append([]string(nil), c.suit.Malfunction...)
		r.Suit = &cp
	}
	return r
}

// FromRecord rebuilds a colonist from an exported record.
func FromRecord(r ColonistRecord) *Colonist {
	c := NewColonist(r.ID, r.Name, r.Kind, r.Traits)
	c.spot = r.Spot
	c.energy = r.Energy
	c.health = r.Health
	c.stress = r.Stress
	for _, s := range r.Skills {
		c.skills[s.Skill] = &skillState{Level: s.Level, Experience: s.Experience, Time: s.Time}
	}
	for k, v := range r.Attributes {
		c.attrs[k] = v
	}
	if r.Suit != nil {
		cp := *r.Suit
		c.suit = &cp
	}
	return c
}
