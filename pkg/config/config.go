// Package config loads application settings from defaults, an optional
// file and RISKGRAPH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RISKGRAPH_ANALYSIS_SEED
const EnvPrefix = "RISKGRAPH"

var validate = validator.New()

type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Louvain  LouvainConfig  `mapstructure:"louvain"`
	Output   OutputConfig   `mapstructure:"output"`
	Server   ServerConfig   `mapstructure:"server"`
	Jobs     JobConfig      `mapstructure:"jobs"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AnalysisConfig struct {
	Resolution  float64       `mapstructure:"resolution" validate:"gt=0"`
	Seed        int64         `mapstructure:"seed"`
	Runs        int           `mapstructure:"runs" validate:"min=1,max=1000"`
	RunTimeout  time.Duration `mapstructure:"run_timeout" validate:"gte=0"`
	Parallelism int           `mapstructure:"parallelism" validate:"min=0"`
}

type LouvainConfig struct {
	MaxLevels     int     `mapstructure:"max_levels" validate:"min=1"`
	MaxIterations int     `mapstructure:"max_iterations" validate:"min=0"`
	Threshold     float64 `mapstructure:"threshold" validate:"gte=0"`
}

type OutputConfig struct {
	Dir               string `mapstructure:"dir" validate:"required"`
	TopK              int    `mapstructure:"top_k" validate:"min=1"`
	MinCommunityEdges int    `mapstructure:"min_community_edges" validate:"min=0"`
}

type ServerConfig struct {
	Address      string        `mapstructure:"address" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
}

type JobConfig struct {
	MaxJobs int           `mapstructure:"max_jobs" validate:"min=1"`
	Workers int           `mapstructure:"workers" validate:"min=1"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("analysis.resolution", 1.0)
	v.SetDefault("analysis.seed", int64(42))
	v.SetDefault("analysis.runs", 12)
	v.SetDefault("analysis.run_timeout", time.Duration(0))
	v.SetDefault("analysis.parallelism", 0)

	v.SetDefault("louvain.max_levels", 32)
	v.SetDefault("louvain.max_iterations", 1000)
	v.SetDefault("louvain.threshold", 1e-7)

	v.SetDefault("output.dir", "outputs")
	v.SetDefault("output.top_k", 12)
	v.SetDefault("output.min_community_edges", 20)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("jobs.max_jobs", 100)
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.timeout", 10*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// New returns a viper instance with defaults and environment overrides bound
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the validated default configuration
func Default() *Config {
	cfg, err := Decode(New())
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// LoadEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are reported.
func LoadEnv(files ...string) error {
	return godotenv.Load(files...)
}

// Load reads defaults, the optional config file at path and the environment
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return Decode(v)
}

// Decode unmarshals and validates a viper instance
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section against its constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	for _, e := range validationErrs {
		field := e.Namespace()
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min", "gte":
			return fmt.Errorf("%s: must be at least %s", field, e.Param())
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, e.Param())
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, e.Param())
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, e.Param())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}

// CreateLogger builds the application logger from the logging section
func (c *Config) CreateLogger() zerolog.Logger {
	return c.Logging.NewLogger(os.Stderr)
}

// NewLogger builds a logger writing to out
func (l LoggingConfig) NewLogger(out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if l.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
