// Package config loads runtime settings from defaults, an optional config
// file and MOBSIM_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. MOBSIM_SIM_TICKRATE.
const EnvPrefix = "MOBSIM"

// ConfigName is the file searched for when no explicit path is given.
const ConfigName = "mobsim"

// sqliteMemoryDSN is used when sqlite is selected without a DSN.
const sqliteMemoryDSN = ":memory:"

type Config struct {
	Sim     SimConfig     `mapstructure:"sim"`
	Log     LogConfig     `mapstructure:"log"`
	Store   StoreConfig   `mapstructure:"store"`
	Net     NetConfig     `mapstructure:"net"`
	Library LibraryConfig `mapstructure:"library"`
}

type SimConfig struct {
	TickRate          int    `mapstructure:"tickRate"`
	CatchupMaxTicks   int    `mapstructure:"catchupMaxTicks"`
	Seed              string `mapstructure:"seed"`
	DespawnCheckTicks int    `mapstructure:"despawnCheckTicks"`
	MaxMobs           int    `mapstructure:"maxMobs"`
	CommandCapacity   int    `mapstructure:"commandCapacity"`
	PerActorLimit     int    `mapstructure:"perActorLimit"`
}

type LogConfig struct {
	Level      string   `mapstructure:"level"`
	Format     string   `mapstructure:"format"`
	Sinks      []string `mapstructure:"sinks"`
	JSONPath   string   `mapstructure:"jsonPath"`
	BufferSize int      `mapstructure:"bufferSize"`
	Categories []string `mapstructure:"categories"`
}

type StoreConfig struct {
	Driver             string `mapstructure:"driver"`
	DSN                string `mapstructure:"dsn"`
	WorldID            string `mapstructure:"worldId"`
	SnapshotEveryTicks int    `mapstructure:"snapshotEveryTicks"`
}

type NetConfig struct {
	Addr       string `mapstructure:"addr"`
	EventsPath string `mapstructure:"eventsPath"`
}

type LibraryConfig struct {
	Path string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sim.tickRate", 20)
	v.SetDefault("sim.catchupMaxTicks", 3)
	v.SetDefault("sim.seed", "prototype")
	v.SetDefault("sim.despawnCheckTicks", 20)
	v.SetDefault("sim.maxMobs", 512)
	v.SetDefault("sim.commandCapacity", 1024)
	v.SetDefault("sim.perActorLimit", 32)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.sinks", []string{"console"})
	v.SetDefault("log.jsonPath", "")
	v.SetDefault("log.bufferSize", 1024)
	v.SetDefault("log.categories", []string{})

	v.SetDefault("store.driver", "sqlite")
	// Empty: sqlite falls back to an in-memory database, postgres must set it.
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.worldId", "overworld")
	v.SetDefault("store.snapshotEveryTicks", 600)

	v.SetDefault("net.addr", ":8080")
	v.SetDefault("net.eventsPath", "/events")

	v.SetDefault("library.path", "")
}

// Default returns the configuration with no file or environment applied.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	cfg.normalize()
	return cfg
}

// Load resolves the configuration. An explicit path must exist; without one
// a mobsim.{yaml,json,toml} in the working directory is used when present.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	sinks := c.Log.Sinks[:0]
	for _, s := range c.Log.Sinks {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			sinks = append(sinks, s)
		}
	}
	c.Log.Sinks = sinks
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Store.DSN = strings.TrimSpace(c.Store.DSN)
	if c.Store.Driver == "sqlite" && c.Store.DSN == "" {
		c.Store.DSN = sqliteMemoryDSN
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Sim.TickRate <= 0 || c.Sim.TickRate > 1000 {
		errs = append(errs, fmt.Errorf("sim.tickRate must be in 1..1000, got %d", c.Sim.TickRate))
	}
	if c.Sim.CatchupMaxTicks < 1 {
		errs = append(errs, fmt.Errorf("sim.catchupMaxTicks must be positive, got %d", c.Sim.CatchupMaxTicks))
	}
	if c.Sim.DespawnCheckTicks <= 0 {
		errs = append(errs, fmt.Errorf("sim.despawnCheckTicks must be positive, got %d", c.Sim.DespawnCheckTicks))
	}
	if c.Sim.MaxMobs < 0 {
		errs = append(errs, fmt.Errorf("sim.maxMobs must not be negative, got %d", c.Sim.MaxMobs))
	}
	if c.Sim.CommandCapacity <= 0 {
		errs = append(errs, fmt.Errorf("sim.commandCapacity must be positive, got %d", c.Sim.CommandCapacity))
	}
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not a known level", c.Log.Level))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	for _, s := range c.Log.Sinks {
		if s != "console" && s != "json" && s != "ws" {
			errs = append(errs, fmt.Errorf("log.sinks: unknown sink %q", s))
		}
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		errs = append(errs, fmt.Errorf("store.driver must be sqlite, postgres or none, got %q", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		errs = append(errs, errors.New("store.dsn is required for postgres"))
	}
	if c.Store.Driver != "none" && c.Store.WorldID == "" {
		errs = append(errs, errors.New("store.worldId must not be empty"))
	}
	if c.Store.SnapshotEveryTicks < 0 {
		errs = append(errs, fmt.Errorf("store.snapshotEveryTicks must not be negative, got %d", c.Store.SnapshotEveryTicks))
	}
	if c.Net.Addr != "" && !strings.HasPrefix(c.Net.EventsPath, "/") {
		errs = append(errs, fmt.Errorf("net.eventsPath must start with /, got %q", c.Net.EventsPath))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// HasSink reports whether the named event sink is enabled.
func (c Config) HasSink(name string) bool {
	for _, s := range c.Log.Sinks {
		if s == name {
			return true
		}
	}
	return false
}
