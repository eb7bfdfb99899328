package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "colonysim.ai/internal/persistence/log"
	"colonysim.ai/internal/persistence/snapshot"
	"colonysim.ai/internal/sim/catalogs"
	"colonysim.ai/internal/sim/colony"
	"colonysim.ai/internal/sim/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		colonyID   = flag.String("colony", "colony-1", "colony id")
		seed       = flag.Int64("seed", 1337, "colony seed (used only when starting a fresh colony)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (ticks/events + catalogs + snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)
	colonyLogger := log.New(os.Stdout, "[colony] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	colonyDir := filepath.Join(*dataDir, "colonies", *colonyID)
	_ = os.MkdirAll(colonyDir, 0o755)
	snapDir := filepath.Join(colonyDir, "snapshots")

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(snapDir)
	}

	// Tuning is required for a fresh colony; a resume falls back to defaults.
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" || !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	// Optional read-model index (does not affect sim determinism).
	idx, err := openRuntimeIndex(colonyDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	cfg := colony.ConfigFromTuning(*colonyID, *seed, tune)
	var c *colony.Colony
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.ColonyID != "" && snap.Header.ColonyID != *colonyID {
			logger.Fatalf("snapshot colony id mismatch: flag=%s snap=%s", *colonyID, snap.Header.ColonyID)
		}
		c, err = colony.New(cfg.ResumeFrom(snap), cats, colonyLogger)
		if err != nil {
			logger.Fatalf("colony: %v", err)
		}
		if err := c.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), c.CurrentTick())
	} else {
		c, err = colony.New(cfg, cats, colonyLogger)
		if err != nil {
			logger.Fatalf("colony: %v", err)
		}
	}
	logger.Printf("colony=%s run=%s seed=%d colonists=%d", c.ID(), c.RunID(), c.Config().Seed, len(c.Colonists()))

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(colonyDir)
	eventLog := persistlog.NewEventLogger(colonyDir)
	defer tickLog.Close()
	defer eventLog.Close()
	c.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	c.SetEventLogger(multiEventLogger{a: eventLog, b: idx})

	snapshots := &snapshotWriter{dir: snapDir, colonyDir: colonyDir, solLength: c.Config().SolLength, idx: idx, logger: logger}
	snapCh := make(chan snapshot.SnapshotV1, 2)
	c.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				if _, err := snapshots.Write(snap); err != nil {
					logger.Printf("snapshot write: %v", err)
				}
			}
		}
	}()

	go func() {
		err := c.Run(ctx)
		if err != nil && err != context.Canceled {
			logger.Printf("FATAL colony stopped: %v", err)
		}
		cancel()
	}()

	mux := buildMux(muxDeps{
		colony:      c,
		idx:         idx,
		snapshots:   snapshots,
		logger:      logger,
		enableAdmin: envBool("CS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		enablePprof: envBool("CS_ENABLE_PPROF_HTTP", false),
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
