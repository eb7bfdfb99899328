package worker

import "sort"

// Suit is a pressure suit with consumable reserves and accumulated wear.
type Suit struct {
	ID string `json:"id"`

	Oxygen      float64  `json:"oxygen"`
	OxygenCap   float64  `json:"oxygen_cap"`
	Water       float64  `json:"water"`
	WaterCap    float64  `json:"water_cap"`
	Wear        float64  `json:"wear"` // 0 new, 1 worn out
	Malfunction []string `json:"malfunction,omitempty"`
}

func NewSuit(id string, oxygenCap, waterCap float64) *Suit {
	return &Suit{
		ID:        id,
		Oxygen:    oxygenCap,
		OxygenCap: oxygenCap,
		Water:     waterCap,
		WaterCap:  waterCap,
	}
}

func (s *Suit) OxygenFraction() float64 { return fraction(s.Oxygen, s.OxygenCap) }
func (s *Suit) WaterFraction() float64  { return fraction(s.Water, s.WaterCap) }

func (s *Suit) Malfunctioning() bool { return len(s.Malfunction) > 0 }

// Consume draws reserves for time spent outside and wears the suit.
func (s *Suit) Consume(time, oxygenRate, waterRate, wearRate float64) {
	if time <= 0 {
		return
	}
	s.Oxygen = clampRange(s.Oxygen-oxygenRate*time, 0, s.OxygenCap)
	s.Water = clampRange(s.Water-waterRate*time, 0, s.WaterCap)
	s.Wear = clampRange(s.Wear+wearRate*time, 0, 1)
}

// Service refills reserves by up to rate*time and clears malfunctions.
func (s *Suit) Service(time, rate float64) {
	if time <= 0 {
		return
	}
	s.Oxygen = clampRange(s.Oxygen+rate*time, 0, s.OxygenCap)
	s.Water = clampRange(s.Water+rate*time, 0, s.WaterCap)
	s.Malfunction = nil
}

func (s *Suit) EntityID() string { return s.ID }

// WearModifier scales accident chance; 1 for a new suit, 2 for a worn out one.
func (s *Suit) WearModifier() float64 { return 1 + s.Wear }

func (s *Suit) AddMalfunction(cause string) {
	s.Malfunction = append(s.Malfunction, cause)
	sort.Strings(s.Malfunction)
}

func fraction(v, cap float64) float64 {
	if cap <= 0 {
		return 0
	}
	return v / cap
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
