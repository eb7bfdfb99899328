package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	persistlog "colonysim.ai/internal/persistence/log"
	"colonysim.ai/internal/persistence/snapshot"
	"colonysim.ai/internal/sim/catalogs"
	"colonysim.ai/internal/sim/colony"
	"colonysim.ai/internal/sim/tuning"
)

func main() {
	var (
		ticksDir   = flag.String("ticks", "", "dir containing ticks-*.jsonl.zst")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		colonyID   = flag.String("colony", "colony-1", "colony id")
		seed       = flag.Int64("seed", 1337, "seed of the recorded run (ignored with -snapshot)")
		snapPath   = flag.String("snapshot", "", "snapshot the recorded run was resumed from (optional)")
		runID      = flag.String("run", "", "run id to verify (default: first run in the log)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
		verbose    = flag.Bool("v", false, "print colony log output")
	)
	flag.Parse()

	if *ticksDir == "" {
		fmt.Fprintln(os.Stderr, "missing -ticks")
		os.Exit(2)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}

	out := io.Discard
	if *verbose {
		out = os.Stderr
	}
	logger := log.New(out, "[colony] ", 0)

	cfg := colony.ConfigFromTuning(*colonyID, *seed, tune)
	var c *colony.Colony
	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		c, err = colony.New(cfg.ResumeFrom(snap), cats, logger)
		if err == nil {
			err = c.ImportSnapshot(snap)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "colony:", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot v%d colony=%s run=%s tick=%d colonists=%d stations=%d\n",
			snap.Header.Version, snap.Header.ColonyID, snap.Header.RunID, snap.Header.Tick,
			len(snap.Colonists), len(snap.Stations))
	} else {
		c, err = colony.New(cfg, cats, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, "colony:", err)
			os.Exit(1)
		}
	}

	files, err := persistlog.ListFiles(*ticksDir, "ticks")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ticks:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no tick files found in", *ticksDir)
		os.Exit(1)
	}

	r := &replayer{colony: c, runID: *runID, toTick: *toTick}
	for _, path := range files {
		err := persistlog.ReadJSONL(path, r.apply)
		if errors.Is(err, errDone) {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "replay %s: %v\n", filepath.Base(path), err)
			os.Exit(1)
		}
	}
	if r.checked == 0 {
		fmt.Fprintln(os.Stderr, "no ticks verified")
		os.Exit(1)
	}
	fmt.Printf("replay ok: run=%s checked=%d ticks (last tick=%d)\n", r.runID, r.checked, c.CurrentTick()-1)
}

var errDone = errors.New("done")

type replayer struct {
	colony  *colony.Colony
	runID   string
	toTick  uint64
	checked uint64
}

func (r *replayer) apply(entry colony.TickLogEntry) error {
	if r.runID == "" {
		r.runID = entry.RunID
	}
	if entry.RunID != r.runID {
		return nil
	}
	if r.toTick != 0 && entry.Tick > r.toTick {
		return errDone
	}
	if entry.Tick < r.colony.CurrentTick() {
		return nil
	}
	if entry.Tick != r.colony.CurrentTick() {
		return fmt.Errorf("tick mismatch: want=%d got=%d", r.colony.CurrentTick(), entry.Tick)
	}

	tick, digest, err := r.colony.StepOnce(entry.Queued)
	if err != nil {
		return fmt.Errorf("tick %d: %w", tick, err)
	}
	if tick != entry.Tick {
		return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d", tick, entry.Tick)
	}
	r.checked++
	if digest != entry.Digest {
		return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, digest, entry.Digest)
	}
	return nil
}
