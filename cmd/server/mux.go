package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"colonysim.ai/internal/persistence/snapshot"
	"colonysim.ai/internal/sim/colony"
	"colonysim.ai/internal/sim/meta"
	"colonysim.ai/internal/transport/observer"
	"colonysim.ai/internal/transport/ws"
)

type muxDeps struct {
	colony      *colony.Colony
	idx         runtimeIndex
	snapshots   *snapshotWriter
	logger      *log.Logger
	enableAdmin bool
	enablePprof bool
}

func buildMux(d muxDeps) *http.ServeMux {
	c := d.colony
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeColonyMetrics(rw, c.Metrics())
		if d.idx != nil {
			writeIndexMetrics(rw, c.ID(), d.idx)
		}
	})

	if d.enableAdmin {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			writeJSON(rw, http.StatusOK, map[string]any{
				"colony_id": c.ID(),
				"run_id":    c.RunID(),
				"tick":      c.CurrentTick(),
				"metrics":   c.Metrics(),
			})
		}))
		mux.HandleFunc("/admin/v1/snapshot", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			snap, err := requestSnapshot(ctx, c)
			if err != nil {
				writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
				return
			}
			path, err := d.snapshots.Write(snap)
			if err != nil {
				writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "tick": snap.Header.Tick, "error": err.Error()})
				return
			}
			writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "tick": snap.Header.Tick, "path": path})
		}))
		mux.HandleFunc("/admin/v1/queue", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			var q colony.QueuedTask
			if err := json.NewDecoder(r.Body).Decode(&q); err != nil || q.WorkerID == "" || q.Task == "" {
				writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": "need worker_id and task"})
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			err := queueTask(ctx, c, q)
			switch {
			case err == nil:
				writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "worker_id": q.WorkerID, "task": q.Task})
			case errors.Is(err, colony.ErrUnknownWorker), errors.Is(err, meta.ErrUnknownMetaTask):
				writeJSON(rw, http.StatusNotFound, map[string]any{"ok": false, "error": err.Error()})
			default:
				writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			}
		}))
		mux.HandleFunc("/admin/v1/activities", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			if d.idx == nil {
				http.Error(rw, "index disabled", http.StatusNotFound)
				return
			}
			workerID := strings.TrimSpace(r.URL.Query().Get("worker"))
			if workerID == "" {
				http.Error(rw, "missing worker", http.StatusBadRequest)
				return
			}
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			rows, err := d.idx.WorkerActivities(r.Context(), workerID, limit)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(rw, http.StatusOK, map[string]any{"worker_id": workerID, "activities": rows})
		}))

		obsSrv := observer.NewServer(c, d.logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else if d.logger != nil {
		d.logger.Printf("admin endpoints disabled (CS_ENABLE_ADMIN_HTTP=false)")
	}
	if d.enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(c, d.logger).Handler())
	return mux
}

func requestSnapshot(ctx context.Context, c *colony.Colony) (snapshot.SnapshotV1, error) {
	resp := make(chan snapshot.SnapshotV1, 1)
	select {
	case c.SnapshotRequests() <- colony.SnapshotRequest{Resp: resp}:
	case <-ctx.Done():
		return snapshot.SnapshotV1{}, ctx.Err()
	}
	select {
	case snap := <-resp:
		return snap, nil
	case <-ctx.Done():
		return snapshot.SnapshotV1{}, ctx.Err()
	}
}

func queueTask(ctx context.Context, c *colony.Colony, q colony.QueuedTask) error {
	resp := make(chan error, 1)
	select {
	case c.Queue() <- colony.QueueRequest{QueuedTask: q, Resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Minimal Prometheus exposition format.
func writeColonyMetrics(rw http.ResponseWriter, m colony.Metrics) {
	id := m.ColonyID
	gauge := func(name, help string, v any) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
		fmt.Fprintf(rw, "%s{colony=%q} %v\n", name, id, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s counter\n", name)
		fmt.Fprintf(rw, "%s{colony=%q} %d\n", name, id, v)
	}

	gauge("colonysim_tick", "Current colony tick.", m.Tick)
	gauge("colonysim_time_millisols", "Simulated time since start.", m.Time)
	gauge("colonysim_colonists", "Colonists in the colony.", m.Colonists)
	gauge("colonysim_colonists_busy", "Colonists with a current task.", m.Busy)
	gauge("colonysim_colonists_outside", "Colonists outside the habitat.", m.Outside)
	gauge("colonysim_stations_broken", "Stations with an open malfunction.", m.Broken)
	gauge("colonysim_observers", "Connected observer sessions.", m.Observers)
	counter("colonysim_malfunctions_total", "Malfunctions created.", m.Malfunctions)
	counter("colonysim_exhaustions_total", "Ticks a worker had no eligible task.", m.Exhaustions)
	counter("colonysim_preemptions_total", "Tasks preempted by emergencies.", m.Preemptions)
	counter("colonysim_tasks_started_total", "Tasks started.", m.TasksStarted)

	if len(m.Resources) > 0 {
		fmt.Fprintf(rw, "# HELP colonysim_resource Stockpiled resource amount.\n")
		fmt.Fprintf(rw, "# TYPE colonysim_resource gauge\n")
		for _, k := range sortedKeys(m.Resources) {
			fmt.Fprintf(rw, "colonysim_resource{colony=%q,resource=%q} %g\n", id, k, m.Resources[k])
		}
	}
}

func writeIndexMetrics(rw http.ResponseWriter, id string, idx runtimeIndex) {
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP colonysim_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE colonysim_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "colonysim_index_queue_depth{colony=%q} %d\n", id, s.QueueDepth)
	fmt.Fprintf(rw, "# HELP colonysim_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE colonysim_index_dropped_total counter\n")
	fmt.Fprintf(rw, "colonysim_index_dropped_total{colony=%q,kind=%q} %d\n", id, "tick", s.DropTickTotal)
	fmt.Fprintf(rw, "colonysim_index_dropped_total{colony=%q,kind=%q} %d\n", id, "event", s.DropEventTotal)
	fmt.Fprintf(rw, "colonysim_index_dropped_total{colony=%q,kind=%q} %d\n", id, "snapshot", s.DropSnapshotTotal)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, code int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
