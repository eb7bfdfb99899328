package catalogs

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"colonysim.ai/internal/sim/station"
	"colonysim.ai/internal/sim/worker"
)

//go:embed schemas/*.json
var schemaFS embed.FS

type Catalogs struct {
	Stations  StationCatalog
	Colonists ColonistCatalog
	Behaviors BehaviorCatalog
}

type StationCatalog struct {
	Defs   []StationDef
	Digest string
}

type StationDef struct {
	ID       string       `json:"id"`
	Kind     station.Kind `json:"kind"`
	Capacity int          `json:"capacity"`
}

type ColonistCatalog struct {
	Defs   []ColonistDef
	Digest string
}

// Shift assignments.
const (
	ShiftA      = "A"
	ShiftB      = "B"
	ShiftOnCall = "ON_CALL"
)

type ColonistDef struct {
	ID         string                   `json:"id"`
	Name       string                   `json:"name"`
	Kind       worker.Kind              `json:"kind"`
	Shift      string                   `json:"shift,omitempty"`
	Suit       bool                     `json:"suit,omitempty"`
	Skills     map[worker.Skill]int     `json:"skills,omitempty"`
	Attributes map[worker.Attribute]int `json:"attributes,omitempty"`
}

type BehaviorCatalog struct {
	MetaTasks []string `json:"meta_tasks"`
	Digest    string   `json:"-"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadStations(filepath.Join(configDir, "stations.json"), &c.Stations); err != nil {
		return nil, err
	}
	if err := loadColonists(filepath.Join(configDir, "colonists.json"), &c.Colonists); err != nil {
		return nil, err
	}
	if err := loadBehaviors(filepath.Join(configDir, "behaviors.json"), &c.Behaviors); err != nil {
		return nil, err
	}
	return &c, nil
}

// Digest folds every catalog digest into one value for run headers.
func (c *Catalogs) Digest() string {
	return sha256Hex([]byte(strings.Join([]string{c.Stations.Digest, c.Colonists.Digest, c.Behaviors.Digest}, "\n")))
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// validate checks raw against the embedded schema of the same base name.
func validate(name string, raw []byte) error {
	schemaName := strings.TrimSuffix(name, ".json") + ".schema.json"
	src, err := schemaFS.ReadFile("schemas/" + schemaName)
	if err != nil {
		return err
	}
	schema, err := jsonschema.CompileString("file:///schemas/"+schemaName, string(src))
	if err != nil {
		return fmt.Errorf("%s schema: %w", name, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func readValidated(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := validate(filepath.Base(path), raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func loadStations(path string, out *StationCatalog) error {
	raw, err := readValidated(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	if err := json.Unmarshal(raw, &out.Defs); err != nil {
		return fmt.Errorf("stations.json: %w", err)
	}
	seen := map[string]bool{}
	for _, d := range out.Defs {
		if seen[d.ID] {
			return fmt.Errorf("stations.json: duplicate id %q", d.ID)
		}
		seen[d.ID] = true
	}
	sort.Slice(out.Defs, func(i, j int) bool { return out.Defs[i].ID < out.Defs[j].ID })
	return nil
}

func loadColonists(path string, out *ColonistCatalog) error {
	raw, err := readValidated(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	if err := json.Unmarshal(raw, &out.Defs); err != nil {
		return fmt.Errorf("colonists.json: %w", err)
	}
	seen := map[string]bool{}
	for i := range out.Defs {
		d := &out.Defs[i]
		if seen[d.ID] {
			return fmt.Errorf("colonists.json: duplicate id %q", d.ID)
		}
		seen[d.ID] = true
		if d.Shift == "" {
			d.Shift = ShiftA
		}
		if d.Kind == worker.KindRobot && d.Suit {
			return fmt.Errorf("colonists.json: robot %q cannot wear a suit", d.ID)
		}
	}
	sort.Slice(out.Defs, func(i, j int) bool { return out.Defs[i].ID < out.Defs[j].ID })
	return nil
}

func loadBehaviors(path string, out *BehaviorCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		// Missing file enables every behavior.
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	if err := validate(filepath.Base(path), raw); err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("behaviors.json: %w", err)
	}
	return nil
}
