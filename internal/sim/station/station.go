package station

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync/atomic"
)

type Kind string

const (
	KindAirlock  Kind = "AIRLOCK"
	KindLab      Kind = "LAB"
	KindWorkshop Kind = "WORKSHOP"
	KindBed      Kind = "BED"
	KindLounge   Kind = "LOUNGE"
)

var ErrDuplicateStation = errors.New("duplicate station id")

// Station is a shared facility with a bounded number of concurrent occupants.
type Station struct {
	id       string
	kind     Kind
	capacity int32
	log      *log.Logger

	occupants atomic.Int32
	broken    atomic.Bool
	faults    atomic.Int64
}

func New(id string, kind Kind, capacity int, logger *log.Logger) *Station {
	if logger == nil {
		logger = log.Default()
	}
	if capacity < 0 {
		capacity = 0
	}
	return &Station{id: id, kind: kind, capacity: int32(capacity), log: logger}
}

func (s *Station) ID() string        { return s.id }
func (s *Station) Kind() Kind        { return s.kind }
func (s *Station) Capacity() int     { return int(s.capacity) }
func (s *Station) Occupants() int    { return int(s.occupants.Load()) }
func (s *Station) Broken() bool      { return s.broken.Load() }
func (s *Station) Malfunctions() int { return int(s.faults.Load()) }

// Available reports whether a claim would currently succeed.
func (s *Station) Available() bool {
	return !s.broken.Load() && s.occupants.Load() < s.capacity
}

// TryClaim takes one seat if the station is working and not full.
func (s *Station) TryClaim() (*Claim, bool) {
	if s.broken.Load() {
		return nil, false
	}
	for {
		n := s.occupants.Load()
		if n >= s.capacity {
			return nil, false
		}
		if s.occupants.CompareAndSwap(n, n+1) {
			return &Claim{st: s}, true
		}
	}
}

// Release frees one seat. Releasing an empty station is logged and ignored.
func (s *Station) Release() {
	for {
		n := s.occupants.Load()
		if n <= 0 {
			s.log.Printf("warn: release of unclaimed station %s", s.id)
			return
		}
		if s.occupants.CompareAndSwap(n, n-1) {
			return
		}
	}
}

func (s *Station) EntityID() string { return s.id }

func (s *Station) WearModifier() float64 { return 1 }

func (s *Station) AddMalfunction(cause string) {
	s.faults.Add(1)
	s.broken.Store(true)
}

func (s *Station) Repair() { s.broken.Store(false) }

// Restore sets the fault state read back from a snapshot.
func (s *Station) Restore(broken bool, faults int) {
	s.broken.Store(broken)
	s.faults.Store(int64(faults))
}

// Claim is a seat held on a station; it releases at most once.
type Claim struct {
	st       *Station
	released atomic.Bool
}

func (c *Claim) Station() *Station { return c.st }

func (c *Claim) Released() bool { return c.released.Load() }

func (c *Claim) Release() bool {
	if c == nil || !c.released.CompareAndSwap(false, true) {
		return false
	}
	c.st.Release()
	return true
}

// Registry indexes stations by id and kind. Iteration is in id order.
type Registry struct {
	byID   map[string]*Station
	byKind map[Kind][]*Station
}

func NewRegistry() *Registry {
	return &Registry{byID: map[string]*Station{}, byKind: map[Kind][]*Station{}}
}

func (r *Registry) Add(s *Station) error {
	if _, ok := r.byID[s.id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStation, s.id)
	}
	r.byID[s.id] = s
	list := append(r.byKind[s.kind], s)
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
	r.byKind[s.kind] = list
	return nil
}

func (r *Registry) Get(id string) (*Station, bool) {
	s, ok := r.byID[id]
	return s, ok
}

func (r *Registry) OfKind(k Kind) []*Station { return r.byKind[k] }

func (r *Registry) All() []*Station {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Station, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id])
	}
	return out
}

// ClaimAny claims the first available station of kind.
func (r *Registry) ClaimAny(k Kind) (*Claim, bool) {
	for _, s := range r.byKind[k] {
		if c, ok := s.TryClaim(); ok {
			return c, true
		}
	}
	return nil, false
}

func (r *Registry) HasAvailable(k Kind) bool {
	for _, s := range r.byKind[k] {
		if s.Available() {
			return true
		}
	}
	return false
}

// HasWorking reports whether at least one station of kind is not broken.
func (r *Registry) HasWorking(k Kind) bool {
	for _, s := range r.byKind[k] {
		if !s.Broken() {
			return true
		}
	}
	return false
}

func (r *Registry) Broken() []*Station {
	var out []*Station
	for _, s := range r.All() {
		if s.Broken() {
			out = append(out, s)
		}
	}
	return out
}
