package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"colonysim.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "queue":
			queueCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints colony ids, or the snapshots of one colony.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	colonyID := fs.String("colony", "", "colony id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "colonies")
	if *colonyID == "" {
		entries, err := os.ReadDir(base)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		for _, e := range entries {
			fmt.Println(e.Name())
		}
		return
	}

	for _, p := range snapshotFiles(filepath.Join(base, *colonyID, "snapshots")) {
		h, err := snapshot.ReadHeader(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(p), err)
			continue
		}
		fmt.Printf("%s tick=%d run=%s v%d\n", filepath.Base(p), h.Tick, h.RunID, h.Version)
	}
}

type snapshotSummary struct {
	ColonyID  string              `json:"colony_id"`
	RunID     string              `json:"run_id"`
	Tick      uint64              `json:"tick"`
	Seed      int64               `json:"seed"`
	Now       float64             `json:"now"`
	Colonists []colonistSummary   `json:"colonists"`
	Broken    []string            `json:"broken_stations,omitempty"`
	Resources map[string]float64  `json:"resources,omitempty"`
	Counters  snapshot.CountersV1 `json:"counters"`
}

type colonistSummary struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Kind   string  `json:"kind"`
	Shift  string  `json:"shift"`
	Loc    string  `json:"loc"`
	Energy float64 `json:"energy"`
	Health float64 `json:"health"`
	Stress float64 `json:"stress"`
}

// inspectCmd summarizes one snapshot, the latest by default.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	colonyID := fs.String("colony", "colony-1", "colony id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		files := snapshotFiles(filepath.Join(*dataDir, "colonies", *colonyID, "snapshots"))
		if len(files) == 0 {
			fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
			os.Exit(2)
		}
		path = files[len(files)-1]
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	printJSON(summarize(snap))
}

func summarize(snap snapshot.SnapshotV1) snapshotSummary {
	s := snapshotSummary{
		ColonyID:  snap.Header.ColonyID,
		RunID:     snap.Header.RunID,
		Tick:      snap.Header.Tick,
		Seed:      snap.Seed,
		Now:       snap.Now,
		Resources: snap.Resources,
		Counters:  snap.Counters,
	}
	for _, c := range snap.Colonists {
		s.Colonists = append(s.Colonists, colonistSummary{
			ID:     c.ID,
			Name:   c.Name,
			Kind:   string(c.Kind),
			Shift:  snap.Shifts[c.ID],
			Loc:    string(c.Spot.Loc),
			Energy: c.Energy,
			Health: c.Health,
			Stress: c.Stress,
		})
	}
	for _, st := range snap.Stations {
		if st.Broken {
			s.Broken = append(s.Broken, st.ID)
		}
	}
	return s
}

// snapshotFiles returns dir's snapshots in tick order.
func snapshotFiles(dir string) []string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	type entry struct {
		tick uint64
		path string
	}
	var out []entry
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, entry{tick: tick, path: filepath.Join(dir, name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].tick < out[j].tick })
	paths := make([]string, len(out))
	for i, e := range out {
		paths[i] = e.path
	}
	return paths
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
