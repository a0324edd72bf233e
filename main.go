package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pthm-cable/haze/config"
	"github.com/pthm-cable/haze/sim"
	"github.com/pthm-cable/haze/telemetry"
	"github.com/pthm-cable/haze/viz"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for world snapshot files")
	snapshotEvery := flag.Int("snapshot-every", 0, "Write a snapshot every N ticks (0 = disabled)")
	restorePath := flag.String("restore", "", "Snapshot file to restore the world from")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	vizAddr := flag.String("viz-addr", "", "Websocket frame publisher address (empty = use config)")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	statsWindowSec := cfg.Telemetry.StatsWindow
	if *statsWindow > 0 {
		statsWindowSec = *statsWindow
	}

	world, err := sim.NewWorld(sim.Options{Config: cfg, Seed: rngSeed})
	if err != nil {
		slog.Error("failed to build world", "error", err)
		os.Exit(1)
	}
	defer world.Close()

	if *restorePath != "" {
		snap, err := telemetry.LoadSnapshot(*restorePath)
		if err != nil {
			slog.Error("failed to load snapshot", "error", err, "path", *restorePath)
			os.Exit(1)
		}
		if err := world.Restore(snap); err != nil {
			slog.Error("failed to restore world", "error", err)
			os.Exit(1)
		}
		slog.Info("restored world", "path", *restorePath, "tick", world.Tick(), "agents", len(snap.Agents))
	} else {
		world.Populate()
	}

	output, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to open output directory", "error", err)
		os.Exit(1)
	}
	defer output.Close()
	if err := output.WriteConfig(cfg); err != nil {
		slog.Warn("failed to write config snapshot", "error", err)
	}

	var publisher *viz.Server
	addr := cfg.Viz.Addr
	if *vizAddr != "" {
		addr = *vizAddr
	}
	if addr != "" {
		publisher = viz.NewServer(addr, cfg.Viz.IncludeTensor)
		publisher.Start()
	}

	if *snapshotDir != "" {
		if err := os.MkdirAll(*snapshotDir, 0755); err != nil {
			slog.Error("failed to create snapshot directory", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("starting simulation",
		"seed", rngSeed,
		"agents", cfg.Agents.Count,
		"stats_window", statsWindowSec,
		"max_ticks", *maxTicks,
	)

	windowTicks := int32(statsWindowSec / cfg.Physics.DT)
	if windowTicks < 1 {
		windowTicks = 1
	}

	for {
		world.Step()
		tick := world.Tick()

		if publisher != nil {
			publisher.Publish(world)
		}

		if *snapshotDir != "" && *snapshotEvery > 0 && int(tick)%*snapshotEvery == 0 {
			path := filepath.Join(*snapshotDir, fmt.Sprintf("snapshot_%08d.json", tick))
			if err := world.Snapshot().Save(path); err != nil {
				slog.Warn("failed to write snapshot", "error", err, "path", path)
			}
		}

		if tick%windowTicks == 0 {
			stats := world.FlushStats()
			if *logStats {
				stats.LogStats()
			}
			if err := output.WriteTelemetry(stats); err != nil {
				slog.Warn("failed to write telemetry", "error", err)
			}
			perfStats := world.Perf().Stats()
			if *logStats {
				perfStats.LogStats()
			}
			if err := output.WritePerf(perfStats, tick); err != nil {
				slog.Warn("failed to write perf", "error", err)
			}
		}

		if *maxTicks > 0 && int(tick) >= *maxTicks {
			slog.Info("max ticks reached", "tick", tick)
			return
		}
	}
}
