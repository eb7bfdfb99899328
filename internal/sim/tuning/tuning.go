package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"colonysim.ai/internal/sim/worker"
)

type Tuning struct {
	TickRateHz         int     `yaml:"tick_rate_hz"`
	TimePerTick        float64 `yaml:"time_per_tick"`
	SolLength          float64 `yaml:"sol_length"`
	SnapshotEveryTicks int     `yaml:"snapshot_every_ticks"`

	BoundaryR      float64     `yaml:"boundary_r"`
	PolarLatitude  float64     `yaml:"polar_latitude"`
	PeakIrradiance float64     `yaml:"peak_irradiance"`
	Home           worker.Spot `yaml:"home"`

	Shifts    Shifts    `yaml:"shifts"`
	Suit      Suit      `yaml:"suit"`
	Scheduler Scheduler `yaml:"scheduler"`
	Walk      Walk      `yaml:"walk"`
	Durations Durations `yaml:"durations"`
	Ice       Ice       `yaml:"ice"`
	EVA       EVA       `yaml:"eva"`

	ManufactureAccidentChance float64 `yaml:"manufacture_accident_chance"`
}

type Shifts struct {
	OnDutyStart float64 `yaml:"on_duty_start"`
	OnDutyEnd   float64 `yaml:"on_duty_end"`
}

type Suit struct {
	OxygenCap   float64 `yaml:"oxygen_cap"`
	WaterCap    float64 `yaml:"water_cap"`
	OxygenRate  float64 `yaml:"oxygen_rate"`
	WaterRate   float64 `yaml:"water_rate"`
	WearRate    float64 `yaml:"wear_rate"`
	ServiceRate float64 `yaml:"service_rate"`
}

type Scheduler struct {
	MaxTaskScore float64 `yaml:"max_task_score"`
	HistorySize  int     `yaml:"history_size"`
}

type Walk struct {
	Speed        float64     `yaml:"speed"`
	AirlockCycle float64     `yaml:"airlock_cycle"`
	Airlock      worker.Spot `yaml:"airlock"`
}

type Durations struct {
	Relax       float64 `yaml:"relax"`
	Sleep       float64 `yaml:"sleep"`
	Research    float64 `yaml:"research"`
	Manufacture float64 `yaml:"manufacture"`
	RepairWork  float64 `yaml:"repair_work"`
}

type Ice struct {
	Sites        []worker.Spot `yaml:"sites"`
	SiteDuration float64       `yaml:"site_duration"`
	Rate         float64       `yaml:"rate"`
}

type EVA struct {
	MinResourceFraction float64 `yaml:"min_resource_fraction"`
	MinLight            float64 `yaml:"min_light"`
	BaseAccidentChance  float64 `yaml:"base_accident_chance"`
	EVAExperienceRatio  float64 `yaml:"eva_experience_ratio"`
	SiteExperienceRatio float64 `yaml:"site_experience_ratio"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:         5,
		TimePerTick:        1,
		SolLength:          1000,
		SnapshotEveryTicks: 3000,

		BoundaryR:      200,
		PolarLatitude:  150,
		PeakIrradiance: 590,
		Home:           worker.Spot{Loc: worker.Inside},

		Shifts: Shifts{OnDutyStart: 250, OnDutyEnd: 750},
		Suit: Suit{
			OxygenCap:   100,
			WaterCap:    40,
			OxygenRate:  0.1,
			WaterRate:   0.02,
			WearRate:    0.0002,
			ServiceRate: 1,
		},
		Scheduler: Scheduler{MaxTaskScore: 20000, HistorySize: 64},
		Walk:      Walk{Speed: 2, AirlockCycle: 10, Airlock: worker.Spot{X: 12}},
		Durations: Durations{Relax: 60, Sleep: 250, Research: 120, Manufacture: 150, RepairWork: 40},
		Ice: Ice{
			Sites:        []worker.Spot{{X: 60, Y: 20}, {X: -45, Y: 70}},
			SiteDuration: 150,
			Rate:         0.5,
		},
		EVA: EVA{
			MinResourceFraction: 0.15,
			MinLight:            1,
			BaseAccidentChance:  0.01,
			EVAExperienceRatio:  100,
			SiteExperienceRatio: 10,
		},
		ManufactureAccidentChance: 0.001,
	}
}

// Load reads a tuning file. Keys missing from the file keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0")
	}
	if t.TimePerTick <= 0 {
		return fmt.Errorf("time_per_tick must be > 0")
	}
	if t.SolLength <= 0 {
		return fmt.Errorf("sol_length must be > 0")
	}
	if t.Shifts.OnDutyStart < 0 || t.Shifts.OnDutyEnd > t.SolLength || t.Shifts.OnDutyStart >= t.Shifts.OnDutyEnd {
		return fmt.Errorf("shifts must satisfy 0 <= on_duty_start < on_duty_end <= sol_length")
	}
	if t.EVA.MinResourceFraction < 0 || t.EVA.MinResourceFraction >= 1 {
		return fmt.Errorf("eva.min_resource_fraction must be in [0,1)")
	}
	if t.Walk.Speed <= 0 {
		return fmt.Errorf("walk.speed must be > 0")
	}
	for i, s := range t.Ice.Sites {
		if s.Dist(t.Home) > t.BoundaryR {
			return fmt.Errorf("ice.sites[%d] lies outside boundary_r", i)
		}
	}
	return nil
}
