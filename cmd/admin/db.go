package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	colonyID := fs.String("colony", "", "colony id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	workerID := fs.String("worker", "", "worker filter (activities)")
	kind := fs.String("kind", "", "event kind filter (events)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*colonyID) == "" {
			fmt.Fprintln(os.Stderr, "missing -colony or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "colonies", *colonyID, "index", "colony.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, q, *limit, strings.TrimSpace(*workerID), strings.TrimSpace(*kind)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runQuery(db *sql.DB, q string, limit int, workerID, kind string) error {
	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT tick,path,run_id,seed,colonists,stations,broken FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick      int64  `json:"tick"`
				Path      string `json:"path"`
				RunID     string `json:"run_id"`
				Seed      int64  `json:"seed"`
				Colonists int    `json:"colonists"`
				Stations  int    `json:"stations"`
				Broken    int    `json:"broken"`
			}
			if err := rows.Scan(&r.Tick, &r.Path, &r.RunID, &r.Seed, &r.Colonists, &r.Stations, &r.Broken); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(r)
		}
		return rows.Err()

	case "ticks":
		rows, err := db.Query(`SELECT tick,run_id,time,digest,queued,activities,malfunctions,exhausted FROM ticks ORDER BY tick DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick         int64   `json:"tick"`
				RunID        string  `json:"run_id"`
				Time         float64 `json:"time"`
				Digest       string  `json:"digest"`
				Queued       int     `json:"queued"`
				Activities   int     `json:"activities"`
				Malfunctions int     `json:"malfunctions"`
				Exhausted    int     `json:"exhausted"`
			}
			if err := rows.Scan(&r.Tick, &r.RunID, &r.Time, &r.Digest, &r.Queued, &r.Activities, &r.Malfunctions, &r.Exhausted); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(r)
		}
		return rows.Err()

	case "activities":
		query := `SELECT tick,worker_id,event,task_id,task,kind,COALESCE(phase,'') FROM activities ORDER BY tick DESC, seq DESC LIMIT ?`
		args := []any{limit}
		if workerID != "" {
			query = `SELECT tick,worker_id,event,task_id,task,kind,COALESCE(phase,'') FROM activities WHERE worker_id=? ORDER BY tick DESC, seq DESC LIMIT ?`
			args = []any{workerID, limit}
		}
		rows, err := db.Query(query, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick     int64  `json:"tick"`
				WorkerID string `json:"worker_id"`
				Event    string `json:"event"`
				TaskID   string `json:"task_id"`
				Task     string `json:"task"`
				Kind     string `json:"kind"`
				Phase    string `json:"phase,omitempty"`
			}
			if err := rows.Scan(&r.Tick, &r.WorkerID, &r.Event, &r.TaskID, &r.Task, &r.Kind, &r.Phase); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(r)
		}
		return rows.Err()

	case "malfunctions":
		rows, err := db.Query(`SELECT tick,entity,cause FROM malfunctions ORDER BY tick DESC, seq DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick   int64  `json:"tick"`
				Entity string `json:"entity"`
				Cause  string `json:"cause"`
			}
			if err := rows.Scan(&r.Tick, &r.Entity, &r.Cause); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(r)
		}
		return rows.Err()

	case "events":
		query := `SELECT tick,kind,COALESCE(worker,''),COALESCE(entity,''),COALESCE(detail,'') FROM events ORDER BY tick DESC, seq DESC LIMIT ?`
		args := []any{limit}
		if kind != "" {
			query = `SELECT tick,kind,COALESCE(worker,''),COALESCE(entity,''),COALESCE(detail,'') FROM events WHERE kind=? ORDER BY tick DESC, seq DESC LIMIT ?`
			args = []any{strings.ToUpper(kind), limit}
		}
		rows, err := db.Query(query, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick   int64  `json:"tick"`
				Kind   string `json:"kind"`
				Worker string `json:"worker,omitempty"`
				Entity string `json:"entity,omitempty"`
				Detail string `json:"detail,omitempty"`
			}
			if err := rows.Scan(&r.Tick, &r.Kind, &r.Worker, &r.Entity, &r.Detail); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(r)
		}
		return rows.Err()

	default:
		return fmt.Errorf("unknown query: %s\nusage: admin db [-data ./data] [-colony ID|-db PATH] [-limit N] snapshots|ticks|activities|malfunctions|events", q)
	}
}
