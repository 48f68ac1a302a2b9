package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tilesim/server/internal/config"
	"github.com/tilesim/server/internal/core/event"
	coresys "github.com/tilesim/server/internal/core/system"
	"github.com/tilesim/server/internal/data"
	"github.com/tilesim/server/internal/entity"
	"github.com/tilesim/server/internal/game"
	"github.com/tilesim/server/internal/persist"
	"github.com/tilesim/server/internal/scripting"
	"github.com/tilesim/server/internal/system"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

var numbers = message.NewPrinter(language.English)

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             tilesim  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      chunked world simulation server      \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s \033[90m(id: %d)\033[0m\n\n", serverName, serverID)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := numbers.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("TILESIM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Shapes and the empty world
	printSection("data")
	shapes := data.DefaultShapeTable(cfg.Simulation.TileSideMeters, cfg.Simulation.TileDepthMeters,
		cfg.Simulation.CameraTilesX, cfg.Simulation.CameraTilesY)
	if cfg.Data.Shapes != "" {
		shapes, err = data.LoadShapeTable(cfg.Data.Shapes)
		if err != nil {
			return fmt.Errorf("load shapes: %w", err)
		}
	}
	printStat("collision shapes", shapes.Count())

	state, err := game.New(cfg.Simulation, shapes, log.Named("game"))
	if err != nil {
		return fmt.Errorf("world: %w", err)
	}
	bus := event.NewBus()
	state.SetObserver(game.NewBusObserver(bus, state.Tick))
	fmt.Println()

	// 4. Database, migrations and resume
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		repo  *persist.SnapshotRepo
		runID uuid.UUID
	)
	if cfg.Persistence.Enabled && cfg.Database.DSN != "" {
		printSection("database")
		dialCtx, dialCancel := context.WithTimeout(ctx, 30*time.Second)
		defer dialCancel()

		db, err := persist.NewDB(dialCtx, cfg.Database, cfg.Server.Name, log.Named("db"))
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		version, err := db.RunMigrations(dialCtx)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK(fmt.Sprintf("schema at version %d", version))

		repo = persist.NewSnapshotRepo(db)
		if cfg.Persistence.Resume {
			runID, err = resume(dialCtx, repo, state)
			if err != nil {
				return fmt.Errorf("resume: %w", err)
			}
		}
		if runID == uuid.Nil {
			runID, err = repo.CreateRun(dialCtx, cfg.Server.Name, cfg.Simulation.Seed)
			if err != nil {
				return err
			}
		}
		printOK(fmt.Sprintf("run %s", runID))
		fmt.Println()
	}

	// 5. Scripts and world building
	printSection("world")
	engine, err := scripting.NewEngine(cfg.Scripting.Dir, log.Named("lua"))
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()

	if state.Storage().Count() == 0 {
		built, err := engine.BuildWorld(state)
		if err != nil {
			return fmt.Errorf("build world: %w", err)
		}
		if !built {
			state.GenerateRooms(cfg.Simulation.Rooms, cfg.Simulation.Seed)
		}
	} else {
		printOK(fmt.Sprintf("resumed at tick %s", numbers.Sprintf("%d", state.Tick())))
	}
	if state.Hero() == 0 {
		return fmt.Errorf("world has no hero")
	}
	printStat("entities", state.Storage().Count())
	printStat("chunks", state.World().ChunkCount())
	printStat("arena bytes", state.Arena().Used())
	fmt.Println()

	// 6. Systems
	runner := coresys.NewRunner()
	inputSys := system.NewInputSystem(scripting.NewScriptController(engine), state)
	simSys := system.NewSimulationSystem(state, inputSys)
	runner.Register(inputSys)
	runner.Register(system.NewEventDispatchSystem(bus, log.Named("events")))
	runner.Register(simSys)
	runner.Register(system.NewStatsSystem(state, simSys, bus, log.Named("stats"), statsInterval(cfg.Simulation.TickRate)))

	var persistSys *system.PersistenceSystem
	if repo != nil {
		persistSys = system.NewPersistenceSystem(state, repo, bus, runID,
			cfg.Persistence.SnapshotIntervalTicks, cfg.Persistence.QueueSize, log.Named("persist"))
		persistSys.Start(ctx)
		runner.Register(persistSys)
	}

	// 7. Start game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Simulation.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("game loop started (tick: %s, policy: %s)",
		cfg.Simulation.TickRate, cfg.Simulation.SpatialPolicy))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Simulation.TickRate)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			if persistSys != nil {
				saveCtx, saveCancel := context.WithTimeout(context.Background(), 30*time.Second)
				err := persistSys.Close(saveCtx)
				saveCancel()
				if err != nil {
					log.Error("final snapshot failed", zap.Error(err))
				}
			}
			log.Info("server stopped", zap.Uint64("tick", state.Tick()))
			return nil
		}
	}
}

// resume restores the newest snapshot into state and returns its run, or
// uuid.Nil when nothing has been saved yet.
func resume(ctx context.Context, repo *persist.SnapshotRepo, state *game.State) (uuid.UUID, error) {
	snap, err := repo.LoadLatest(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if snap == nil {
		return uuid.Nil, nil
	}
	entities := make([]entity.Entity, len(snap.Rows))
	for i, row := range snap.Rows {
		entities[i], err = row.Restore(state.Shape)
		if err != nil {
			return uuid.Nil, fmt.Errorf("entity %d: %w", row.StorageIndex, err)
		}
	}
	if err := state.Load(entities); err != nil {
		return uuid.Nil, err
	}
	if state.Storage().Digest() != snap.Digest {
		return uuid.Nil, fmt.Errorf("snapshot %s at tick %d fails its digest check", snap.Run, snap.Tick)
	}
	state.ResumeTick(snap.Tick)
	return snap.Run, nil
}

// statsInterval logs stats about every ten seconds.
func statsInterval(tick time.Duration) int {
	n := int(10 * time.Second / tick)
	if n < 1 {
		n = 1
	}
	return n
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
