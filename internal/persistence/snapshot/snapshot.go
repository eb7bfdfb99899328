package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"colonysim.ai/internal/sim/worker"
)

const Version = 1

type Header struct {
	Version  int    `json:"version"`
	ColonyID string `json:"colony_id"`
	RunID    string `json:"run_id"`
	Tick     uint64 `json:"tick"`
}

// SnapshotV1 captures everything needed to resume a colony. Running tasks
// are not included; every worker resumes idle.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed               int64   `json:"seed"`
	TickRate           int     `json:"tick_rate_hz"`
	TimePerTick        float64 `json:"time_per_tick"`
	SnapshotEveryTicks int     `json:"snapshot_every_ticks,omitempty"`
	CatalogDigest      string  `json:"catalog_digest"`

	Now     float64 `json:"now"`
	TaskSeq uint64  `json:"task_seq"`

	Colonists []worker.ColonistRecord `json:"colonists"`
	Shifts    map[string]string       `json:"shifts"`
	Stations  []StationV1             `json:"stations"`
	Resources map[string]float64      `json:"resources,omitempty"`

	Counters CountersV1 `json:"counters"`
}

type StationV1 struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Capacity     int    `json:"capacity"`
	Broken       bool   `json:"broken,omitempty"`
	Malfunctions int    `json:"malfunctions,omitempty"`
}

type CountersV1 struct {
	Malfunctions uint64 `json:"malfunctions"`
	Exhaustions  uint64 `json:"exhaustions"`
	Preemptions  uint64 `json:"preemptions"`
	TasksStarted uint64 `json:"tasks_started"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader returns only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("snapshot header: %w", err)
	}
	return h, nil
}
