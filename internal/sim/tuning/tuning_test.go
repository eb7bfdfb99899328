package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	raw := []byte("tick_rate_hz: 20\nwalk:\n  speed: 3\neva:\n  min_resource_fraction: 0.2\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tu, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.TickRateHz != 20 {
		t.Fatalf("TickRateHz=%d want=20", tu.TickRateHz)
	}
	if tu.Walk.Speed != 3 || tu.Walk.AirlockCycle != 10 {
		t.Fatalf("walk=%+v", tu.Walk)
	}
	if tu.EVA.MinResourceFraction != 0.2 || tu.EVA.BaseAccidentChance != 0.01 {
		t.Fatalf("eva=%+v", tu.EVA)
	}
	if tu.Scheduler.MaxTaskScore != 20000 {
		t.Fatalf("MaxTaskScore=%v want=20000", tu.Scheduler.MaxTaskScore)
	}
}

func TestLoad_RejectsBadShifts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("shifts:\n  on_duty_start: 800\n  on_duty_end: 100\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for inverted shifts")
	}
}

func TestDefaults_Validate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_RepoTuning(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load repo tuning: %v", err)
	}
	d := Defaults()
	if tu.TickRateHz != d.TickRateHz || tu.Shifts != d.Shifts || len(tu.Ice.Sites) != len(d.Ice.Sites) {
		t.Fatalf("repo tuning drifted from defaults: %+v", tu)
	}
}
