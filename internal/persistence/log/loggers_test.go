package log

import (
	"path/filepath"
	"testing"
	"time"

	"colonysim.ai/internal/sim/colony"
)

func TestTickLogger_WriteAndRead(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	for i := uint64(0); i < 3; i++ {
		if err := l.WriteTick(colony.TickLogEntry{RunID: "run", Tick: i, Digest: "d"}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListFiles(TicksDir(dir), "ticks")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("files=%v", files)
	}
	var got []uint64
	if err := ReadJSONL(files[0], func(e colony.TickLogEntry) error {
		got = append(got, e.Tick)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Fatalf("ticks=%v", got)
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "events")
	at := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return at }

	if err := w.Write(colony.EventEntry{Kind: colony.EventMalfunction, Entity: "lab-1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	at = at.Add(2 * time.Minute)
	if err := w.Write(colony.EventEntry{Kind: colony.EventRepair, Worker: "C1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListFiles(dir, "events")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{
		filepath.Join(dir, "events-2026-03-01-10.jsonl.zst"),
		filepath.Join(dir, "events-2026-03-01-11.jsonl.zst"),
	}
	if len(files) != 2 || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("files=%v want %v", files, want)
	}
	var kinds []string
	for _, p := range files {
		if err := ReadJSONL(p, func(e colony.EventEntry) error {
			kinds = append(kinds, e.Kind)
			return nil
		}); err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
	}
	if len(kinds) != 2 || kinds[0] != colony.EventMalfunction || kinds[1] != colony.EventRepair {
		t.Fatalf("kinds=%v", kinds)
	}
}
