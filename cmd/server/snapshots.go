package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"colonysim.ai/internal/persistence/archive"
	"colonysim.ai/internal/persistence/snapshot"
)

type snapshotWriter struct {
	dir       string
	colonyDir string
	solLength float64
	idx       runtimeIndex
	logger    *log.Logger
}

func (w *snapshotWriter) Write(snap snapshot.SnapshotV1) (string, error) {
	path := filepath.Join(w.dir, fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	if w.idx != nil {
		w.idx.RecordSnapshot(path, snap)
	}
	if w.colonyDir != "" {
		sol, archived, ok, err := archive.ArchiveSolSnapshot(w.colonyDir, path, snap, w.solLength)
		if err != nil {
			return path, fmt.Errorf("archive sol: %w", err)
		}
		if ok && w.logger != nil {
			w.logger.Printf("archived sol=%d snapshot=%s", sol, archived)
		}
	}
	return path, nil
}

func latestSnapshot(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
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
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
