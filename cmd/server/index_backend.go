package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"colonysim.ai/internal/persistence/indexdb"
	"colonysim.ai/internal/persistence/snapshot"
	"colonysim.ai/internal/sim/catalogs"
	"colonysim.ai/internal/sim/colony"
	"colonysim.ai/internal/sim/tuning"
)

type runtimeIndex interface {
	colony.TickLogger
	colony.EventLogger
	Close() error
	Stats() indexdb.Stats
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	WorkerActivities(ctx context.Context, workerID string, limit int) ([]indexdb.ActivityRow, error)
}

func openRuntimeIndex(colonyDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("CS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(colonyDir, "index", "colony.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported CS_INDEX_BACKEND: %s", backend)
	}
}

type multiTickLogger struct {
	a colony.TickLogger
	b colony.TickLogger
}

func (m multiTickLogger) WriteTick(entry colony.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiEventLogger struct {
	a colony.EventLogger
	b colony.EventLogger
}

func (m multiEventLogger) WriteEvent(entry colony.EventEntry) error {
	if m.a != nil {
		_ = m.a.WriteEvent(entry)
	}
	if m.b != nil {
		_ = m.b.WriteEvent(entry)
	}
	return nil
}
