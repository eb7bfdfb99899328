package colony

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"colonysim.ai/internal/persistence/snapshot"
	"colonysim.ai/internal/sim/behaviors"
	"colonysim.ai/internal/sim/catalogs"
	"colonysim.ai/internal/sim/meta"
	"colonysim.ai/internal/sim/scheduler"
	"colonysim.ai/internal/sim/station"
	"colonysim.ai/internal/sim/tasks"
	"colonysim.ai/internal/sim/worker"
)

var (
	ErrUnknownWorker  = errors.New("unknown worker")
	ErrSnapshotColony = errors.New("snapshot belongs to another colony")
)

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type EventLogger interface {
	WriteEvent(entry EventEntry) error
}

// TickLogEntry is the per-tick record replay verifies against.
type TickLogEntry struct {
	RunID        string               `json:"run_id"`
	Tick         uint64               `json:"tick"`
	Time         float64              `json:"time"`
	Queued       []QueuedTask         `json:"queued,omitempty"`
	Activities   []scheduler.Activity `json:"activities,omitempty"`
	Malfunctions []MalfunctionRecord  `json:"malfunctions,omitempty"`
	Exhausted    []string             `json:"exhausted,omitempty"`
	Digest       string               `json:"digest"`
}

// QueuedTask is an operator request to start a MetaTask for a worker.
type QueuedTask struct {
	WorkerID string `json:"worker_id"`
	Task     string `json:"task"`
}

type MalfunctionRecord struct {
	Entity string `json:"entity"`
	Cause  string `json:"cause"`
}

// Event kinds written to the event log.
const (
	EventMalfunction = "MALFUNCTION"
	EventRepair      = "REPAIR_ASSIGNED"
	EventPreempted   = "PREEMPTED"
	EventExhausted   = "EXHAUSTED"
	EventQueued      = "QUEUED"
)

type EventEntry struct {
	RunID  string  `json:"run_id"`
	Tick   uint64  `json:"tick"`
	Time   float64 `json:"time"`
	Kind   string  `json:"kind"`
	Worker string  `json:"worker,omitempty"`
	Entity string  `json:"entity,omitempty"`
	Detail string  `json:"detail,omitempty"`
}

type counters struct {
	malfunctions uint64
	exhaustions  uint64
	preemptions  uint64
	tasksStarted uint64
}

// Colony is a single-threaded simulation of one settlement.
// All state must be accessed only from the colony loop goroutine.
type Colony struct {
	cfg      Config
	catalogs *catalogs.Catalogs
	runID    string
	logger   *log.Logger

	tick    atomic.Uint64
	now     float64
	rng     *rand.Rand
	taskSeq atomic.Uint64

	set      *behaviors.Set
	kinds    *tasks.Registry
	metas    *meta.Registry
	stations *station.Registry

	colonists []*worker.Colonist
	scheds    []*scheduler.Scheduler
	index     map[string]int
	shifts    map[string]string

	resources map[string]float64
	repairs   map[string]string // station id -> worker id

	// Collected during a tick, flushed at its end.
	activities   []scheduler.Activity
	malfunctions []MalfunctionRecord
	exhausted    []string
	queued       []QueuedTask
	events       []EventEntry

	counters counters

	tickLogger   TickLogger
	eventLogger  EventLogger
	snapshotSink chan<- snapshot.SnapshotV1

	observers     map[string]*observerClient
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	queueReq      chan QueueRequest
	snapshotReq   chan SnapshotRequest
	stop          chan struct{}
	stopOnce      sync.Once

	metrics atomic.Pointer[Metrics]
}

// New builds a colony from its catalogs. logger may be nil.
func New(cfg Config, cats *catalogs.Catalogs, logger *log.Logger) (*Colony, error) {
	if cats == nil {
		return nil, fmt.Errorf("colony: nil catalogs")
	}
	if logger == nil {
		logger = log.Default()
	}
	cfg = cfg.normalized()

	c := &Colony{
		cfg:           cfg,
		catalogs:      cats,
		runID:         uuid.NewString(),
		logger:        logger,
		rng:           rand.New(rand.NewSource(cfg.Seed)),
		set:           behaviors.NewSet(cfg.Behaviors),
		kinds:         tasks.NewRegistry(),
		metas:         meta.NewRegistry(),
		stations:      station.NewRegistry(),
		index:         map[string]int{},
		shifts:        map[string]string{},
		resources:     map[string]float64{},
		repairs:       map[string]string{},
		observers:     map[string]*observerClient{},
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerLeave: make(chan string, 16),
		queueReq:      make(chan QueueRequest, 64),
		snapshotReq:   make(chan SnapshotRequest, 4),
		stop:          make(chan struct{}),
	}

	if err := c.set.RegisterKinds(c.kinds); err != nil {
		return nil, fmt.Errorf("colony: %w", err)
	}
	if err := c.registerMetaTasks(cats.Behaviors.MetaTasks); err != nil {
		return nil, err
	}
	for _, d := range cats.Stations.Defs {
		if err := c.stations.Add(station.New(d.ID, d.Kind, d.Capacity, logger)); err != nil {
			return nil, fmt.Errorf("colony: station %s: %w", d.ID, err)
		}
	}
	for _, d := range cats.Colonists.Defs {
		if _, dup := c.index[d.ID]; dup {
			return nil, fmt.Errorf("colony: duplicate colonist %s", d.ID)
		}
		c.addColonist(c.newColonist(d), d.Shift)
	}
	c.publishMetrics(0)
	return c, nil
}

func (c *Colony) registerMetaTasks(enabled []string) error {
	known := map[string]bool{}
	for _, mt := range c.set.MetaTasks() {
		known[mt.Name()] = true
	}
	for _, n := range enabled {
		if !known[n] {
			return fmt.Errorf("behaviors.json: %w: %s", meta.ErrUnknownMetaTask, n)
		}
	}
	return c.set.RegisterMetaTasks(c.metas, enabled)
}

func (c *Colony) newColonist(d catalogs.ColonistDef) *worker.Colonist {
	traits := worker.PersonTraits()
	if d.Kind == worker.KindRobot {
		traits = worker.RobotTraits()
	}
	col := worker.NewColonist(d.ID, d.Name, d.Kind, traits)
	col.SetSpot(c.cfg.Home)
	for s, lvl := range d.Skills {
		col.SetSkillLevel(s, lvl)
	}
	for a, v := range d.Attributes {
		col.SetAttribute(a, v)
	}
	if d.Suit {
		col.SetSuit(worker.NewSuit("suit-"+d.ID, c.cfg.Suit.OxygenCap, c.cfg.Suit.WaterCap))
	}
	return col
}

// addColonist appends col and its scheduler, keeping both sorted by id.
func (c *Colony) addColonist(col *worker.Colonist, shift string) {
	c.colonists = append(c.colonists, col)
	sort.Slice(c.colonists, func(i, j int) bool { return c.colonists[i].ID() < c.colonists[j].ID() })
	c.shifts[col.ID()] = shift
	c.scheds = make([]*scheduler.Scheduler, len(c.colonists))
	c.index = make(map[string]int, len(c.colonists))
	for i, w := range c.colonists {
		c.index[w.ID()] = i
		c.scheds[i] = c.newScheduler(w)
	}
}

func (c *Colony) newScheduler(w worker.Worker) *scheduler.Scheduler {
	return scheduler.New(w, c, c.metas, scheduler.Options{
		Shifts:      c,
		Emergencies: c,
		Recorder:    c,
		Config:      c.cfg.Scheduler,
	})
}

func (c *Colony) SetTickLogger(l TickLogger)                    { c.tickLogger = l }
func (c *Colony) SetEventLogger(l EventLogger)                  { c.eventLogger = l }
func (c *Colony) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { c.snapshotSink = ch }

func (c *Colony) ID() string                   { return c.cfg.ID }
func (c *Colony) RunID() string                { return c.runID }
func (c *Colony) Config() Config               { return c.cfg }
func (c *Colony) TickRateHz() int              { return c.cfg.TickRateHz }
func (c *Colony) CurrentTick() uint64          { return c.tick.Load() }
func (c *Colony) Kinds() []tasks.KindInfo      { return c.kinds.Kinds() }
func (c *Colony) MetaTasks() []meta.MetaTask   { return c.metas.All() }
func (c *Colony) Catalogs() *catalogs.Catalogs { return c.catalogs }

// Colonists returns the colonists in id order.
func (c *Colony) Colonists() []*worker.Colonist {
	return append([]*worker.Colonist(nil), c.colonists...)
}

func (c *Colony) Colonist(id string) (*worker.Colonist, bool) {
	i, ok := c.index[id]
	if !ok {
		return nil, false
	}
	return c.colonists[i], true
}

func (c *Colony) Scheduler(id string) (*scheduler.Scheduler, bool) {
	i, ok := c.index[id]
	if !ok {
		return nil, false
	}
	return c.scheds[i], true
}

// Resources returns a copy of the stockpile.
func (c *Colony) Resources() map[string]float64 {
	out := make(map[string]float64, len(c.resources))
	for k, v := range c.resources {
		out[k] = v
	}
	return out
}

// QueueTask asks workerID's scheduler to start the named MetaTask next.
// It must be called from the colony loop goroutine; transports use
// QueueRequests instead.
func (c *Colony) QueueTask(workerID, name string) error {
	s, ok := c.Scheduler(workerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorker, workerID)
	}
	if err := s.QueueTask(name); err != nil {
		return err
	}
	c.queued = append(c.queued, QueuedTask{WorkerID: workerID, Task: name})
	c.event(EventQueued, workerID, "", name)
	return nil
}

func (c *Colony) event(kind, workerID, entity, detail string) {
	c.events = append(c.events, EventEntry{
		RunID:  c.runID,
		Tick:   c.tick.Load(),
		Time:   c.now,
		Kind:   kind,
		Worker: workerID,
		Entity: entity,
		Detail: detail,
	})
}
