package behaviors

import (
	"colonysim.ai/internal/sim/station"
	"colonysim.ai/internal/sim/tasks"
	"colonysim.ai/internal/sim/tasks/eva"
	"colonysim.ai/internal/sim/worker"
)

const PhaseCollectingIce tasks.Phase = "COLLECTING_ICE"

type iceData struct {
	rate      float64
	collected float64
}

var iceDef = eva.Def[iceData]{
	Kind:          "COLLECT_ICE",
	Name:          "Collecting ice",
	Skills:        []worker.Skill{worker.SkillAreology},
	SitePhase:     PhaseCollectingIce,
	EffortDriven:  true,
	StressPerTime: 0.1,
	Site: func(t *tasks.Task, op *eva.Operation, s *iceData, time float64) float64 {
		lvl := t.Worker().EffectiveSkillLevel(worker.SkillAreology)
		s.collected += time * s.rate * (1 + 0.1*float64(lvl))
		return 0
	},
	// Ice only counts once it has been carried back inside.
	ClearDown: func(t *tasks.Task, op *eva.Operation, s *iceData) {
		if t.Worker().Spot().Loc.Pressurized() {
			deposit(t.Env(), ResourceIce, s.collected)
		}
	},
}

// NewCollectIce heads for a random ice site that has enough light to work.
func (b *Set) NewCollectIce(env tasks.Env, w worker.Worker) *tasks.Task {
	site := worker.Spot{Loc: worker.Outside}
	sites := b.workableIceSites(env)
	if len(sites) == 0 {
		sites = b.cfg.IceSites
	}
	if n := len(sites); n > 0 {
		site = sites[env.Rand().Intn(n)]
	}
	return b.ice.New(env, w, site, b.cfg.IceSiteDuration, iceData{rate: b.cfg.IceRate})
}

// workableIceSites returns the sites that pass the EVA light check now.
func (b *Set) workableIceSites(env tasks.Env) []worker.Spot {
	var out []worker.Spot
	for _, s := range b.cfg.IceSites {
		if env.SolarIrradiance(s) >= b.cfg.EVA.MinLight || env.InDarkPolarRegion(s) {
			out = append(out, s)
		}
	}
	return out
}

func (b *Set) scoreCollectIce(w worker.Worker, env tasks.Env) float64 {
	tr := w.Traits()
	if !tr.CanEVA || len(b.cfg.IceSites) == 0 {
		return 0
	}
	if w.Spot().Loc.Pressurized() && !env.Stations().HasWorking(station.KindAirlock) {
		return 0
	}
	if tr.NeedsSuit {
		s := w.Suit()
		if s == nil || s.Malfunctioning() || s.OxygenFraction() < 0.9 {
			return 0
		}
	}
	if len(b.workableIceSites(env)) == 0 {
		return 0
	}
	return 30 * w.PerformanceFactor() * (1 + 0.1*float64(w.EffectiveSkillLevel(worker.SkillEVA)))
}
