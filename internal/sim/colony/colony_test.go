package colony_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colonysim.ai/internal/persistence/snapshot"
	"colonysim.ai/internal/sim/catalogs"
	"colonysim.ai/internal/sim/colony"
	"colonysim.ai/internal/sim/colony/colonytest"
	"colonysim.ai/internal/sim/meta"
	"colonysim.ai/internal/sim/station"
	"colonysim.ai/internal/sim/worker"
)

func TestStepOnce_IsDeterministicForASeed(t *testing.T) {
	cfg := colonytest.Config(7)
	a := colonytest.New(t, &cfg, nil)
	b := colonytest.New(t, &cfg, nil)

	da := a.Digests(300)
	db := b.Digests(300)
	require.Equal(t, da, db)
	assert.NotEqual(t, a.Colony.RunID(), b.Colony.RunID())
}

func TestNewTaskID_Format(t *testing.T) {
	h := colonytest.New(t, nil, nil)
	assert.Equal(t, "T000001", h.Colony.NewTaskID())
	assert.Equal(t, "T000002", h.Colony.NewTaskID())
}

func TestWindow_FollowsShifts(t *testing.T) {
	h := colonytest.New(t, nil, nil)
	c1, c2, r1 := h.Colonist("C1"), h.Colonist("C2"), h.Colonist("R1")

	assert.Equal(t, meta.OffDuty, h.Colony.Window(c1))
	assert.Equal(t, meta.OnDuty, h.Colony.Window(c2))
	assert.Equal(t, meta.Unrestricted, h.Colony.Window(r1))

	h.Step(250)
	assert.Equal(t, meta.OnDuty, h.Colony.Window(c1))
	assert.Equal(t, meta.OffDuty, h.Colony.Window(c2))
}

func TestSurface_DayNightAndPolar(t *testing.T) {
	h := colonytest.New(t, nil, nil)
	equator := worker.Spot{X: 10, Loc: worker.Outside}
	pole := worker.Spot{Y: 180, Loc: worker.Outside}

	assert.Equal(t, 0.0, h.Colony.SolarIrradiance(equator))
	h.Step(500)
	assert.InDelta(t, h.Colony.Config().PeakIrradiance, h.Colony.SolarIrradiance(equator), 1e-6)
	assert.Equal(t, 0.0, h.Colony.SolarIrradiance(pole))
	assert.True(t, h.Colony.InDarkPolarRegion(pole))
	assert.False(t, h.Colony.InDarkPolarRegion(equator))
}

func TestCanWalk_BoundaryAndAirlock(t *testing.T) {
	h := colonytest.New(t, nil, nil)
	c1 := h.Colonist("C1")

	assert.True(t, h.Colony.CanWalk(c1, worker.Spot{X: 50, Loc: worker.Outside}))
	assert.False(t, h.Colony.CanWalk(c1, worker.Spot{X: 500, Loc: worker.Outside}))

	airlock, ok := h.Colony.Stations().Get("airlock-1")
	require.True(t, ok)
	airlock.AddMalfunction("seal")
	assert.False(t, h.Colony.CanWalk(c1, worker.Spot{X: 50, Loc: worker.Outside}))
	assert.True(t, h.Colony.CanWalk(c1, worker.Spot{X: 5, Loc: worker.Inside}))
}

func TestEmergency_RepairPreemptsAndClears(t *testing.T) {
	h := colonytest.New(t, nil, nil)
	ticks := &colonytest.MemTickLogger{}
	events := &colonytest.MemEventLogger{}
	h.Colony.SetTickLogger(ticks)
	h.Colony.SetEventLogger(events)

	ws, ok := h.Colony.Stations().Get("workshop-1")
	require.True(t, ok)
	h.Colony.CreateMalfunction(ws, "bearing seized")
	require.True(t, ws.Broken())

	h.Step(1)
	s, ok := h.Colony.Scheduler("C1")
	require.True(t, ok)
	require.NotNil(t, s.Current())
	assert.Equal(t, "REPAIR_EMERGENCY", s.Current().Kind())
	r1, _ := h.Colony.Scheduler("R1")
	if cur := r1.Current(); cur != nil {
		assert.NotEqual(t, "REPAIR_EMERGENCY", cur.Kind())
	}
	require.Len(t, ticks.Entries, 1)
	assert.Equal(t, []colony.MalfunctionRecord{{Entity: "workshop-1", Cause: "bearing seized"}}, ticks.Entries[0].Malfunctions)

	h.Step(45)
	assert.False(t, ws.Broken())
	assert.Equal(t, 0, h.Colony.Metrics().Broken)
	assert.Equal(t, uint64(1), h.Colony.Metrics().Malfunctions)

	var kinds []string
	for _, e := range events.Entries {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, colony.EventMalfunction)
	assert.Contains(t, kinds, colony.EventRepair)
}

func TestQueueTask_StartsNextTick(t *testing.T) {
	h := colonytest.New(t, nil, nil)
	ticks := &colonytest.MemTickLogger{}
	h.Colony.SetTickLogger(ticks)

	assert.ErrorIs(t, h.Colony.QueueTask("nobody", "Research"), colony.ErrUnknownWorker)
	assert.ErrorIs(t, h.Colony.QueueTask("C1", "Juggle"), meta.ErrUnknownMetaTask)

	// C2 works the night shift, so Research is eligible at tick 0.
	_, _, err := h.Colony.StepOnce([]colony.QueuedTask{{WorkerID: "C2", Task: "Research"}})
	require.NoError(t, err)
	s, _ := h.Colony.Scheduler("C2")
	require.NotNil(t, s.Current())
	assert.Equal(t, "RESEARCH", s.Current().Kind())
	lab, _ := h.Colony.Stations().Get("lab-1")
	assert.Equal(t, 1, lab.Occupants())
	assert.Equal(t, []colony.QueuedTask{{WorkerID: "C2", Task: "Research"}}, ticks.Entries[0].Queued)
}

func TestStep_ExhaustionIsRecordedNotFatal(t *testing.T) {
	cats := &catalogs.Catalogs{
		Colonists: catalogs.ColonistCatalog{Defs: []catalogs.ColonistDef{
			{ID: "R1", Name: "Unit 1", Kind: worker.KindRobot, Shift: catalogs.ShiftOnCall},
		}},
		Behaviors: catalogs.BehaviorCatalog{MetaTasks: []string{"Relax"}},
	}
	h := colonytest.New(t, nil, cats)
	ticks := &colonytest.MemTickLogger{}
	h.Colony.SetTickLogger(ticks)

	h.Step(3)
	require.Len(t, ticks.Entries, 3)
	assert.Equal(t, []string{"R1"}, ticks.Entries[2].Exhausted)
	assert.Equal(t, uint64(3), h.Colony.Metrics().Exhaustions)
}

func TestNew_RejectsUnknownMetaTask(t *testing.T) {
	cats := colonytest.Catalogs()
	cats.Behaviors.MetaTasks = []string{"Relax", "Juggle"}
	_, err := colony.New(colonytest.Config(1), cats, nil)
	assert.ErrorIs(t, err, meta.ErrUnknownMetaTask)
}

func TestPhysiology_SuitDrainsOutside(t *testing.T) {
	h := colonytest.New(t, nil, nil)
	c1 := h.Colonist("C1")
	c1.SetSpot(worker.Spot{X: 20, Loc: worker.Outside})

	h.Step(1)
	cfg := h.Colony.Config()
	assert.InDelta(t, cfg.Suit.OxygenCap-cfg.Suit.OxygenRate, c1.Suit().Oxygen, 1e-9)

	c1.Suit().Oxygen = 0
	h.Step(1)
	assert.Less(t, c1.Health(), 1.0)

	c1.SetSpot(h.Colony.InsideSpot())
	h.Step(1)
	assert.Greater(t, c1.Suit().Oxygen, 0.0)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	h := colonytest.New(t, nil, nil)
	h.Step(50)
	lab, _ := h.Colony.Stations().Get("lab-1")
	lab.Restore(true, 2)
	h.Colony.AddResource("ice", 3)
	snap := h.Colony.ExportSnapshot()

	other := colonytest.New(t, nil, nil)
	require.NoError(t, other.Colony.ImportSnapshot(snap))
	assert.Equal(t, uint64(50), other.Colony.CurrentTick())
	assert.Equal(t, h.Colony.Now(), other.Colony.Now())
	assert.Equal(t, h.Colony.Resources(), other.Colony.Resources())
	for _, col := range h.Colony.Colonists() {
		got := other.Colonist(col.ID())
		assert.Equal(t, col.Energy(), got.Energy(), col.ID())
		assert.Equal(t, col.Stress(), got.Stress(), col.ID())
		assert.True(t, got.Spot().Loc.Pressurized(), col.ID())
	}
	olab, _ := other.Colony.Stations().Get("lab-1")
	assert.True(t, olab.Broken())
	assert.Equal(t, 2, olab.Malfunctions())
	assert.Equal(t, 0, olab.Occupants())

	// Resumed colonies keep ticking.
	other.Step(5)

	snap.Header.ColonyID = "elsewhere"
	assert.True(t, errors.Is(other.Colony.ImportSnapshot(snap), colony.ErrSnapshotColony))
}

func TestSnapshotSink_Cadence(t *testing.T) {
	cfg := colonytest.Config(1)
	cfg.SnapshotEveryTicks = 10
	h := colonytest.New(t, &cfg, nil)
	sink := make(chan snapshot.SnapshotV1, 8)
	h.Colony.SetSnapshotSink(sink)

	h.Step(21)
	require.Len(t, sink, 2)
	first := <-sink
	assert.Equal(t, uint64(11), first.Header.Tick)
}

func TestRun_StreamsToObservers(t *testing.T) {
	cfg := colonytest.Config(1)
	cfg.TickRateHz = 100
	h := colonytest.New(t, &cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.Colony.Run(ctx) }()

	out := make(chan []byte, 1)
	h.Colony.ObserverJoin() <- colony.ObserverJoinRequest{SessionID: "obs-1", TickOut: out}

	select {
	case b := <-out:
		var msg colony.ObserverTick
		require.NoError(t, json.Unmarshal(b, &msg))
		assert.Equal(t, colony.ObserverTickType, msg.Type)
		assert.Len(t, msg.Colonists, 3)
		assert.Len(t, msg.Stations, 5)
		assert.NotEmpty(t, msg.Digest)
	case <-time.After(5 * time.Second):
		t.Fatal("no observer tick")
	}

	resp := make(chan error, 1)
	h.Colony.Queue() <- colony.QueueRequest{QueuedTask: colony.QueuedTask{WorkerID: "C1", Task: "Juggle"}, Resp: resp}
	select {
	case err := <-resp:
		assert.ErrorIs(t, err, meta.ErrUnknownMetaTask)
	case <-time.After(5 * time.Second):
		t.Fatal("no queue response")
	}

	h.Colony.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Greater(t, h.Colony.Metrics().Tick, uint64(0))
}

func TestStations_FromCatalog(t *testing.T) {
	h := colonytest.New(t, nil, nil)
	assert.Len(t, h.Colony.Stations().OfKind(station.KindLounge), 1)
	assert.Len(t, h.Colony.Kinds(), 7)
	assert.Len(t, h.Colony.MetaTasks(), 5)
}
