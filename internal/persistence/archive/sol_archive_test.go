package archive

import (
	"os"
	"path/filepath"
	"testing"

	"colonysim.ai/internal/persistence/snapshot"
)

func writeDummy(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("dummy"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestArchiveSolSnapshot_FirstSnapshotOfSol(t *testing.T) {
	colonyDir := filepath.Join(t.TempDir(), "colonies", "colony-1")

	early := filepath.Join(colonyDir, "snapshots", "500.snap.zst")
	writeDummy(t, early)
	_, _, ok, err := ArchiveSolSnapshot(colonyDir, early, snapshot.SnapshotV1{
		Header: snapshot.Header{Tick: 500},
		Now:    500,
	}, 1000)
	if err != nil || ok {
		t.Fatalf("sol 0 should not archive: ok=%v err=%v", ok, err)
	}

	src := filepath.Join(colonyDir, "snapshots", "1100.snap.zst")
	writeDummy(t, src)
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, ColonyID: "colony-1", RunID: "run-1", Tick: 1100},
		Seed:   42,
		Now:    1100,
	}
	sol, archivedPath, ok, err := ArchiveSolSnapshot(colonyDir, src, snap, 1000)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !ok || sol != 1 {
		t.Fatalf("ok=%v sol=%d want archived sol 1", ok, sol)
	}
	got, err := os.ReadFile(archivedPath)
	if err != nil {
		t.Fatalf("read archived: %v", err)
	}
	if string(got) != "dummy" {
		t.Fatalf("archived content=%q", got)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(archivedPath), "meta.json")); err != nil {
		t.Fatalf("expected meta.json: %v", err)
	}

	later := filepath.Join(colonyDir, "snapshots", "1500.snap.zst")
	writeDummy(t, later)
	snap.Header.Tick, snap.Now = 1500, 1500
	if _, _, ok, err := ArchiveSolSnapshot(colonyDir, later, snap, 1000); err != nil || ok {
		t.Fatalf("second snapshot of sol 1 archived: ok=%v err=%v", ok, err)
	}
}
