package colony

import (
	"encoding/json"
	"math"

	"colonysim.ai/internal/sim/scheduler"
	"colonysim.ai/internal/sim/worker"
)

// ObserverJoinRequest registers a read-only observer session that receives
// one ObserverTick per tick on TickOut. Slow observers only see the latest.
type ObserverJoinRequest struct {
	SessionID string
	TickOut   chan []byte
}

type observerClient struct {
	id      string
	tickOut chan []byte
}

const ObserverTickType = "COLONY_TICK"

type ObserverTick struct {
	Type       string               `json:"type"`
	ColonyID   string               `json:"colony_id"`
	RunID      string               `json:"run_id"`
	Tick       uint64               `json:"tick"`
	Time       float64              `json:"time"`
	Sol        int                  `json:"sol"`
	OnDuty     bool                 `json:"on_duty"`
	Colonists  []ColonistView       `json:"colonists"`
	Stations   []StationView        `json:"stations"`
	Resources  map[string]float64   `json:"resources,omitempty"`
	Activities []scheduler.Activity `json:"activities,omitempty"`
	Digest     string               `json:"digest"`
}

type ColonistView struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Kind        worker.Kind `json:"kind"`
	Spot        worker.Spot `json:"spot"`
	Task        string      `json:"task,omitempty"`
	Phase       string      `json:"phase,omitempty"`
	Description string      `json:"description,omitempty"`
	Energy      float64     `json:"energy"`
	Stress      float64     `json:"stress"`
	Health      float64     `json:"health"`
	Performance float64     `json:"performance"`
	Oxygen      float64     `json:"oxygen,omitempty"`
}

type StationView struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Occupants int    `json:"occupants"`
	Capacity  int    `json:"capacity"`
	Broken    bool   `json:"broken,omitempty"`
}

func (c *Colony) ObserverJoin() chan<- ObserverJoinRequest { return c.observerJoin }
func (c *Colony) ObserverLeave() chan<- string             { return c.observerLeave }

func (c *Colony) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil {
		return
	}
	c.observers[req.SessionID] = &observerClient{id: req.SessionID, tickOut: req.TickOut}
}

func (c *Colony) handleObserverLeave(id string) {
	delete(c.observers, id)
}

// Views returns the per-colonist summary shown to observers.
func (c *Colony) Views() []ColonistView {
	out := make([]ColonistView, 0, len(c.colonists))
	for i, col := range c.colonists {
		v := ColonistView{
			ID:          col.ID(),
			Name:        col.Name(),
			Kind:        col.Kind(),
			Spot:        col.Spot(),
			Energy:      col.Energy(),
			Stress:      col.Stress(),
			Health:      col.Health(),
			Performance: col.PerformanceFactor(),
		}
		if t := c.scheds[i].Current(); t != nil {
			a := t.Active()
			v.Task = t.Name()
			v.Phase = string(a.Phase())
			v.Description = a.Description()
		}
		if s := col.Suit(); s != nil {
			v.Oxygen = s.OxygenFraction()
		}
		out = append(out, v)
	}
	return out
}

func (c *Colony) stationViews() []StationView {
	all := c.stations.All()
	out := make([]StationView, 0, len(all))
	for _, st := range all {
		out = append(out, StationView{
			ID:        st.ID(),
			Kind:      string(st.Kind()),
			Occupants: st.Occupants(),
			Capacity:  st.Capacity(),
			Broken:    st.Broken(),
		})
	}
	return out
}

func (c *Colony) broadcastObservers(entry TickLogEntry) {
	if len(c.observers) == 0 {
		return
	}
	msg := ObserverTick{
		Type:       ObserverTickType,
		ColonyID:   c.cfg.ID,
		RunID:      c.runID,
		Tick:       entry.Tick,
		Time:       entry.Time,
		Sol:        int(math.Floor(entry.Time / c.cfg.SolLength)),
		OnDuty:     c.onDuty(),
		Colonists:  c.Views(),
		Stations:   c.stationViews(),
		Resources:  c.Resources(),
		Activities: entry.Activities,
		Digest:     entry.Digest,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		c.logger.Printf("observer tick: %v", err)
		return
	}
	for _, o := range c.observers {
		sendLatest(o.tickOut, b)
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
