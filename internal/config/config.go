package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
)

type Config struct {
	World    WorldConfig   `toml:"world"`
	Messages MessageConfig `toml:"messages"`
	Loop     LoopConfig    `toml:"loop"`
	Kinds    KindsConfig   `toml:"kinds"`
	Scripts  ScriptsConfig `toml:"scripts"`
	Logging  LoggingConfig `toml:"logging"`
}

type WorldConfig struct {
	InitialCapacity int `toml:"initial_capacity"` // entity slots allocated up front
	GrowthIncrement int `toml:"growth_increment"` // slots appended when the table is full
}

// Delivery selects where message subscribers run.
type Delivery string

const (
	DeliveryBackground Delivery = "background" // dispatcher goroutine polls the queue
	DeliveryTick       Delivery = "tick"       // one batch drained at the end of World.Update
)

type MessageConfig struct {
	PollInterval time.Duration `toml:"poll_interval"`
	BatchSize    int           `toml:"batch_size"`
	Delivery     Delivery      `toml:"delivery"`
}

type LoopConfig struct {
	TickRate time.Duration `toml:"tick_rate"`
}

type KindsConfig struct {
	Manifest string `toml:"manifest"`
}

type ScriptsConfig struct {
	Dir string `toml:"dir"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every out-of-range setting at once.
func (c *Config) Validate() error {
	var err error
	if c.World.InitialCapacity <= 0 {
		err = multierr.Append(err, fmt.Errorf("world.initial_capacity must be positive, got %d", c.World.InitialCapacity))
	}
	if c.World.GrowthIncrement <= 0 {
		err = multierr.Append(err, fmt.Errorf("world.growth_increment must be positive, got %d", c.World.GrowthIncrement))
	}
	if c.Messages.PollInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("messages.poll_interval must be positive, got %s", c.Messages.PollInterval))
	}
	if c.Messages.BatchSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("messages.batch_size must be positive, got %d", c.Messages.BatchSize))
	}
	switch c.Messages.Delivery {
	case DeliveryBackground, DeliveryTick:
	default:
		err = multierr.Append(err, fmt.Errorf("messages.delivery %q is not one of %q, %q", c.Messages.Delivery, DeliveryBackground, DeliveryTick))
	}
	if c.Loop.TickRate <= 0 {
		err = multierr.Append(err, fmt.Errorf("loop.tick_rate must be positive, got %s", c.Loop.TickRate))
	}
	return err
}

// Default returns the settings used when a key is absent from the file.
func Default() *Config {
	return &Config{
		World: WorldConfig{
			InitialCapacity: 100,
			GrowthIncrement: 100,
		},
		Messages: MessageConfig{
			PollInterval: 50 * time.Millisecond,
			BatchSize:    10,
			Delivery:     DeliveryBackground,
		},
		Loop: LoopConfig{
			TickRate: 50 * time.Millisecond,
		},
		Kinds: KindsConfig{
			Manifest: "data/kinds.yaml",
		},
		Scripts: ScriptsConfig{
			Dir: "scripts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
