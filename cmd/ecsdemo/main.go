package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fishworks/ecs/internal/config"
	"github.com/fishworks/ecs/internal/core/ecs"
	"github.com/fishworks/ecs/internal/core/event"
	"github.com/fishworks/ecs/internal/data"
	"github.com/fishworks/ecs/internal/scripting"
	"github.com/fishworks/ecs/internal/system"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfgPath := "config/ecs.toml"
	if p := os.Getenv("ECSDEMO_CONFIG"); p != "" {
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

	// 3. Register kinds up front so bit assignment does not depend on
	// which code path touches a kind first.
	manifest, err := data.LoadKindManifest(cfg.Kinds.Manifest)
	if err != nil {
		return fmt.Errorf("kinds: %w", err)
	}
	if err := manifest.Register(ecs.DefaultRegistry()); err != nil {
		return err
	}
	log.Info("kinds registered", zap.Int("count", manifest.Count()))

	// 4. World and systems
	world := ecs.NewWorld(worldOptions(cfg), log)
	defer world.Close()

	movement, err := NewMovementSystem(world)
	if err != nil {
		return fmt.Errorf("movement system: %w", err)
	}
	world.AddSystem(movement)

	engine, err := scripting.NewEngine(cfg.Scripts.Dir, world, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()

	aging, err := scripting.NewScriptSystem(engine, "aging", []ecs.Kind{ecs.KindFor[*Position]()}, []ecs.Kind{ecs.KindFor[*Frozen]()})
	if err != nil {
		return fmt.Errorf("aging system: %w", err)
	}
	world.AddSystem(aging)

	cleanup, err := system.NewCleanupSystem(world, log)
	if err != nil {
		return fmt.Errorf("cleanup system: %w", err)
	}
	world.AddSystem(cleanup)

	// 5. Respawn whatever the aging script retires.
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	world.OnMessage(func(w *ecs.World, m event.Message) {
		if m.MessageKind() != "expired" || m.Aborted() {
			return
		}
		if _, err := spawnMover(w, rng); err != nil {
			log.Warn("respawn failed", zap.Error(err))
		}
	})

	for i := 0; i < 16; i++ {
		if _, err := spawnMover(world, rng); err != nil {
			return fmt.Errorf("spawn: %w", err)
		}
	}
	log.Info("world ready",
		zap.Int("entities", world.EntityCount()),
		zap.Int("capacity", world.Capacity()),
		zap.String("delivery", string(cfg.Messages.Delivery)),
	)

	// 6. Simulation loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Loop.TickRate)
	defer ticker.Stop()

	const reportInterval = 100
	tick := 0
	for {
		select {
		case <-ticker.C:
			world.Update(cfg.Loop.TickRate)
			tick++
			if tick%reportInterval == 0 {
				log.Info("tick",
					zap.Int("tick", tick),
					zap.Int("moving", movement.Len()),
					zap.Int("reaped", cleanup.Reaped()),
				)
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			return nil
		}
	}
}

func spawnMover(w *ecs.World, rng *rand.Rand) (ecs.EntityID, error) {
	e := w.CreateEntity().
		AddComponent(&Position{X: rng.Float64() * 100, Y: rng.Float64() * 100}).
		AddComponent(&Velocity{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1})
	if rng.Intn(8) == 0 {
		e.AddComponent(&Frozen{})
	}
	return e.ID, e.AddToWorld().Err()
}

// worldOptions maps the loaded configuration onto the world's options.
func worldOptions(cfg *config.Config) ecs.Options {
	return ecs.Options{
		InitialCapacity: cfg.World.InitialCapacity,
		GrowthIncrement: cfg.World.GrowthIncrement,
		PollInterval:    cfg.Messages.PollInterval,
		BatchSize:       cfg.Messages.BatchSize,
		TickDelivery:    cfg.Messages.Delivery == config.DeliveryTick,
	}
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
