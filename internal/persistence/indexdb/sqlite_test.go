package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"colonysim.ai/internal/persistence/snapshot"
	"colonysim.ai/internal/sim/catalogs"
	"colonysim.ai/internal/sim/colony"
	"colonysim.ai/internal/sim/scheduler"
	"colonysim.ai/internal/sim/tuning"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: colony.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(colony.TickLogEntry{Tick: 2})
	_ = s.WriteEvent(colony.EventEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 {
		t.Fatalf("DropTickTotal=%d want=1", st.DropTickTotal)
	}
	if st.DropEventTotal != 1 {
		t.Fatalf("DropEventTotal=%d want=1", st.DropEventTotal)
	}
	if st.DropSnapshotTotal != 1 {
		t.Fatalf("DropSnapshotTotal=%d want=1", st.DropSnapshotTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_WritesTickEventAndSnapshotRows(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index", "colony.sqlite")

	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = idx.WriteTick(colony.TickLogEntry{
		RunID:  "run-1",
		Tick:   7,
		Time:   7,
		Digest: "abc",
		Activities: []scheduler.Activity{
			{Time: 7, WorkerID: "C1", Event: scheduler.EventStart, TaskID: "T000001", Task: "Research", Kind: "RESEARCH"},
			{Time: 7, WorkerID: "C2", Event: scheduler.EventStart, TaskID: "T000002", Task: "Relax", Kind: "RELAX"},
		},
		Malfunctions: []colony.MalfunctionRecord{{Entity: "lab-1", Cause: "coolant leak"}},
	})
	_ = idx.WriteEvent(colony.EventEntry{Tick: 7, Kind: colony.EventMalfunction, Entity: "lab-1"})
	_ = idx.WriteEvent(colony.EventEntry{Tick: 7, Kind: colony.EventRepair, Worker: "C2", Entity: "lab-1"})
	idx.RecordSnapshot("/data/snap/7.snap.zst", snapshot.SnapshotV1{
		Header:   snapshot.Header{Version: snapshot.Version, ColonyID: "colony-1", RunID: "run-1", Tick: 7},
		Seed:     3,
		Stations: []snapshot.StationV1{{ID: "lab-1", Broken: true}, {ID: "bed-1"}},
	})
	if err := idx.UpsertCatalogs("", &catalogs.Catalogs{
		Stations: catalogs.StationCatalog{Digest: "d1"},
	}, tuning.Defaults()); err != nil {
		t.Fatalf("upsert catalogs: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	count := func(q string, args ...any) int {
		t.Helper()
		var n int
		if err := db.QueryRow(q, args...).Scan(&n); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
		return n
	}
	if n := count(`SELECT activities FROM ticks WHERE tick=7`); n != 2 {
		t.Fatalf("ticks.activities=%d want=2", n)
	}
	if n := count(`SELECT COUNT(*) FROM activities WHERE worker_id='C1'`); n != 1 {
		t.Fatalf("C1 activities=%d want=1", n)
	}
	if n := count(`SELECT COUNT(*) FROM malfunctions WHERE entity='lab-1'`); n != 1 {
		t.Fatalf("malfunctions=%d want=1", n)
	}
	if n := count(`SELECT COUNT(*) FROM events WHERE tick=7`); n != 2 {
		t.Fatalf("events=%d want=2", n)
	}
	if n := count(`SELECT broken FROM snapshots WHERE tick=7`); n != 1 {
		t.Fatalf("snapshots.broken=%d want=1", n)
	}
	if n := count(`SELECT COUNT(*) FROM catalogs WHERE name IN ('stations','tuning')`); n != 2 {
		t.Fatalf("catalog rows=%d want=2", n)
	}
}

func TestSQLiteIndex_WorkerActivities(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "colony.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for tick := uint64(1); tick <= 3; tick++ {
		_ = idx.WriteTick(colony.TickLogEntry{Tick: tick, Digest: "d", Activities: []scheduler.Activity{
			{WorkerID: "C1", Event: scheduler.EventStart, TaskID: "T1", Task: "Sleep", Kind: "SLEEP"},
		}})
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx, err = OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	rows, err := idx.WorkerActivities(context.Background(), "C1", 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 || rows[0].Tick != 3 || rows[1].Tick != 2 {
		t.Fatalf("rows=%+v", rows)
	}
}
