package louvain

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config manages algorithm configuration using Viper
type Config struct {
	v      *viper.Viper
	logger *zerolog.Logger
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Algorithm parameters
	v.SetDefault("algorithm.max_levels", 32)
	v.SetDefault("algorithm.max_iterations", 1000)
	v.SetDefault("algorithm.threshold", 1e-7)
	v.SetDefault("algorithm.resolution", 1.0)
	v.SetDefault("algorithm.random_seed", int64(42))

	// Logging parameters
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.enable_progress", false)

	return &Config{v: v}
}

func (c *Config) MaxLevels() int      { return c.v.GetInt("algorithm.max_levels") }
func (c *Config) MaxIterations() int  { return c.v.GetInt("algorithm.max_iterations") }
func (c *Config) Threshold() float64  { return c.v.GetFloat64("algorithm.threshold") }
func (c *Config) Resolution() float64 { return c.v.GetFloat64("algorithm.resolution") }
func (c *Config) RandomSeed() int64   { return c.v.GetInt64("algorithm.random_seed") }

func (c *Config) LogLevel() string     { return c.v.GetString("logging.level") }
func (c *Config) EnableProgress() bool { return c.v.GetBool("logging.enable_progress") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// SetLogger makes runs log through an existing logger instead of a fresh console one
func (c *Config) SetLogger(logger zerolog.Logger) {
	c.logger = &logger
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	if c.logger != nil {
		return c.logger.With().Str("service", "louvain").Logger()
	}

	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "louvain").Logger()
}
