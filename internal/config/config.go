package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/LouPolish/Red-Read/internal/playback"
	"github.com/LouPolish/Red-Read/internal/tokenizer"
)

// Config holds all Red-Read configuration. It is loaded from
// ~/.redread/config.yaml and can be overridden by REDREAD_* environment
// variables.
type Config struct {
	Playback PlaybackConfig `mapstructure:"playback" yaml:"playback"`
	Observer ObserverConfig `mapstructure:"observer" yaml:"observer"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// PlaybackConfig contains the defaults a new reading session starts with.
type PlaybackConfig struct {
	// Rate is the starting playback rate in words per minute.
	Rate int `mapstructure:"rate" yaml:"rate"`
	// Mode is the timing profile: "reading" or "skim".
	Mode string `mapstructure:"mode" yaml:"mode"`
	// FrameIntervalMs is the nominal frame cadence of the ticker clock.
	// The scheduler is cadence-agnostic; this only bounds boundary latency.
	FrameIntervalMs int `mapstructure:"frame_interval_ms" yaml:"frame_interval_ms"`
}

// ObserverConfig controls the WebSocket event observer.
type ObserverConfig struct {
	// Enabled starts the observer alongside reading sessions.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Port is the listen port for renderer/monitor clients.
	Port int `mapstructure:"port" yaml:"port"`
	// HistoryCount is how many recent events replay to a new client.
	HistoryCount int `mapstructure:"history_count" yaml:"history_count"`
}

// StorageConfig locates the progress database.
type StorageConfig struct {
	// DataDir is the directory holding progress.db.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `mapstructure:"level" yaml:"level"`
}

// Default returns the configuration written on first use.
func Default() *Config {
	return &Config{
		Playback: PlaybackConfig{
			Rate:            playback.DefaultRate,
			Mode:            string(tokenizer.ModeReading),
			FrameIntervalMs: 16,
		},
		Observer: ObserverConfig{
			Enabled:      false,
			Port:         8137,
			HistoryCount: 50,
		},
		Storage: StorageConfig{
			DataDir: "~/.redread",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the default location, creating a default
// file on first use.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}
	return LoadFromPath(filepath.Join(homeDir, ".redread", "config.yaml"))
}

// LoadFromPath reads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: REDREAD_PLAYBACK_RATE=450
	v.SetEnvPrefix("REDREAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir)
	return &cfg, nil
}

// Save writes the configuration to the default location.
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("get home directory: %w", err)
	}
	return c.SaveToPath(filepath.Join(homeDir, ".redread", "config.yaml"))
}

// SaveToPath writes the configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return writeConfigFile(path, c)
}

// Validate checks the configuration for common errors. Playback rate and
// mode are deliberately not rejected here; the scheduler clamps and
// sanitizes them.
func (c *Config) Validate() error {
	if c.Playback.FrameIntervalMs < 0 {
		return fmt.Errorf("playback.frame_interval_ms cannot be negative")
	}
	if c.Observer.Port <= 0 || c.Observer.Port > 65535 {
		return fmt.Errorf("observer.port %d out of range", c.Observer.Port)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir cannot be empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	return nil
}

func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
	}
	return path
}
