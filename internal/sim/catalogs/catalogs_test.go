package catalogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"colonysim.ai/internal/sim/station"
	"colonysim.ai/internal/sim/worker"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func validDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "stations.json", `[
		{"id":"lab-1","kind":"LAB","capacity":2},
		{"id":"airlock-1","kind":"AIRLOCK","capacity":1}
	]`)
	writeFile(t, dir, "colonists.json", `[
		{"id":"C2","name":"Ruth","kind":"PERSON","shift":"B","suit":true,"skills":{"EVA_OPERATIONS":2}},
		{"id":"C1","name":"Ada","kind":"PERSON","suit":true,"attributes":{"EXPERIENCE_APTITUDE":70}},
		{"id":"R1","name":"Unit 1","kind":"ROBOT","shift":"ON_CALL"}
	]`)
	writeFile(t, dir, "behaviors.json", `{"meta_tasks":["Relax","Sleep"]}`)
	return dir
}

func TestLoad_SortsAndDefaults(t *testing.T) {
	c, err := Load(validDir(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.Stations.Defs[0].ID; got != "airlock-1" {
		t.Fatalf("first station=%q want airlock-1", got)
	}
	if c.Stations.Defs[0].Kind != station.KindAirlock {
		t.Fatalf("kind=%q", c.Stations.Defs[0].Kind)
	}
	ada := c.Colonists.Defs[0]
	if ada.ID != "C1" || ada.Shift != ShiftA {
		t.Fatalf("first colonist=%+v", ada)
	}
	if ada.Attributes[worker.AttrExperienceAptitude] != 70 {
		t.Fatalf("attributes=%v", ada.Attributes)
	}
	if c.Colonists.Defs[1].Skills[worker.SkillEVA] != 2 {
		t.Fatalf("skills=%v", c.Colonists.Defs[1].Skills)
	}
	if len(c.Behaviors.MetaTasks) != 2 {
		t.Fatalf("meta_tasks=%v", c.Behaviors.MetaTasks)
	}
	if c.Stations.Digest == "" || c.Colonists.Digest == "" || c.Digest() == "" {
		t.Fatalf("missing digests")
	}
}

func TestLoad_SchemaRejectsUnknownKind(t *testing.T) {
	dir := validDir(t)
	writeFile(t, dir, "stations.json", `[{"id":"x","kind":"REACTOR","capacity":1}]`)
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "stations.json") {
		t.Fatalf("expected stations.json schema error, got %v", err)
	}
}

func TestLoad_SchemaRejectsZeroCapacity(t *testing.T) {
	dir := validDir(t)
	writeFile(t, dir, "stations.json", `[{"id":"x","kind":"LAB","capacity":0}]`)
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for zero capacity")
	}
}

func TestLoad_DuplicateColonist(t *testing.T) {
	dir := validDir(t)
	writeFile(t, dir, "colonists.json", `[
		{"id":"C1","name":"Ada","kind":"PERSON"},
		{"id":"C1","name":"Bea","kind":"PERSON"}
	]`)
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestLoad_RobotWithSuit(t *testing.T) {
	dir := validDir(t)
	writeFile(t, dir, "colonists.json", `[{"id":"R1","name":"Unit","kind":"ROBOT","suit":true}]`)
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected robot suit error")
	}
}

func TestLoad_MissingBehaviorsEnablesAll(t *testing.T) {
	dir := validDir(t)
	if err := os.Remove(filepath.Join(dir, "behaviors.json")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Behaviors.MetaTasks) != 0 {
		t.Fatalf("meta_tasks=%v want empty", c.Behaviors.MetaTasks)
	}
}

func TestLoad_RepoConfigs(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("load repo configs: %v", err)
	}
	if len(c.Stations.Defs) == 0 || len(c.Colonists.Defs) == 0 || len(c.Behaviors.MetaTasks) == 0 {
		t.Fatalf("empty catalogs: %+v", c)
	}
	if c.Digest() == "" {
		t.Fatalf("empty digest")
	}
}
