package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kuraysdev/Vint/internal/battle"
	"github.com/kuraysdev/Vint/internal/config"
	"github.com/kuraysdev/Vint/internal/data"
	"github.com/kuraysdev/Vint/internal/ecs"
	"github.com/kuraysdev/Vint/internal/handler"
	"github.com/kuraysdev/Vint/internal/persist"
	"github.com/kuraysdev/Vint/internal/protocol"
	"github.com/kuraysdev/Vint/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              Vint  v0.1.0                 \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        tank battle game server            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
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
	if p := os.Getenv("VINT_CONFIG"); p != "" {
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

	printBanner(cfg.Server.Name)

	// 3. Connect to PostgreSQL and run migrations
	printSection("database")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("PostgreSQL connected")

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("schema migrated")
	fmt.Println()

	playerRepo := persist.NewPlayerRepo(db)

	// 4. Load static data
	printSection("data")

	catalog, err := data.LoadMapCatalog(cfg.Server.MapData)
	if err != nil {
		return fmt.Errorf("load map catalog: %w", err)
	}
	printStat("maps", catalog.Count())

	// 5. Entity store with well-known map entities
	entities := ecs.NewRegistry()
	for _, info := range catalog.All() {
		e := ecs.NewMapEntity(entities, info)
		entities.AddToGroup("maps", e)
	}
	printStat("map entities", len(entities.Group("maps")))
	fmt.Println()

	// 6. Battle service
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	battles := battle.NewService(battle.Deps{
		Registry: entities,
		Catalog:  catalog,
		Config:   cfg.Battle,
		Store:    playerRepo,
		MeshDir:  cfg.Server.MeshDir,
		Log:      log,
		Rng:      rng,
	})

	// 7. Command registry and handlers
	cmdReg := protocol.NewRegistry(log)
	handler.RegisterAll(cmdReg, handler.Deps{
		Log:      log,
		Entities: entities,
		Players:  playerRepo,
		Battles:  battles,
		Catalog:  catalog,
	})

	// 8. Network server
	srv := server.New(cfg.Network, cmdReg, entities, log)

	srvCtx, srvCancel := context.WithCancel(context.Background())
	defer srvCancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(srvCtx)
	}()

	printSection("server ready")
	printReady(fmt.Sprintf("listening on %s", cfg.Network.BindAddress))
	printReady(fmt.Sprintf("battle tick %s", cfg.Battle.TickRate))
	fmt.Println()

	// 9. Wait for shutdown
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdownCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		battles.Stop()
		srvCancel()
		if err := <-errCh; err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case err := <-errCh:
		battles.Stop()
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	log.Info("server stopped")
	return nil
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
