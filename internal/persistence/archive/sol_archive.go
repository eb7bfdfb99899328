package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"colonysim.ai/internal/persistence/snapshot"
)

type SolArchiveMeta struct {
	Sol       int     `json:"sol"`
	Tick      uint64  `json:"tick"`
	Time      float64 `json:"time"`
	Seed      int64   `json:"seed"`
	RunID     string  `json:"run_id"`
	Snapshot  string  `json:"snapshot"`
	CreatedAt string  `json:"created_at"`
	SolLength float64 `json:"sol_length"`
}

// ArchiveSolSnapshot keeps the first snapshot taken after each completed sol
// under `colonyDir/archives/sol_<NNNN>/`. Later snapshots of the same sol are
// skipped, so calling it for every snapshot is safe.
func ArchiveSolSnapshot(colonyDir, snapshotPath string, snap snapshot.SnapshotV1, solLength float64) (sol int, archivedPath string, archived bool, err error) {
	if solLength <= 0 {
		return 0, "", false, nil
	}
	sol = int(math.Floor(snap.Now / solLength))
	if sol <= 0 {
		return 0, "", false, nil
	}

	archiveDir := filepath.Join(colonyDir, "archives", fmt.Sprintf("sol_%04d", sol))
	if _, err := os.Stat(archiveDir); err == nil {
		return sol, "", false, nil
	}
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return 0, "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return 0, "", false, err
	}

	meta := SolArchiveMeta{
		Sol:       sol,
		Tick:      snap.Header.Tick,
		Time:      snap.Now,
		Seed:      snap.Seed,
		RunID:     snap.Header.RunID,
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		SolLength: solLength,
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return sol, dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
