// Package config loads the bqdecode YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/TFMV/bqdecode/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration file.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	GCS     GCSConfig     `yaml:"gcs"`
	Flight  FlightConfig  `yaml:"flight"`
	Metrics MetricsConfig `yaml:"metrics"`
	Catalog CatalogConfig `yaml:"catalog"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string   `yaml:"level"`
	Development bool     `yaml:"development"`
	Encoding    string   `yaml:"encoding"` // json or console
	OutputPaths []string `yaml:"output_paths"`
}

// GCSConfig controls the GCS page source.
type GCSConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Anonymous   bool          `yaml:"anonymous"`
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// FlightConfig controls the Arrow Flight listener of serve.
type FlightConfig struct {
	Addr string `yaml:"addr"`
}

// MetricsConfig controls the prometheus listener of serve. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// CatalogConfig sizes the Arrow record cache of the table catalog.
type CatalogConfig struct {
	CacheSize int `yaml:"cache_size"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
		GCS: GCSConfig{
			MaxFailures: 5,
			OpenTimeout: 30 * time.Second,
		},
		Flight:  FlightConfig{Addr: "localhost:8815"},
		Metrics: MetricsConfig{Addr: ":9090"},
		Catalog: CatalogConfig{CacheSize: 16},
	}
}

// Load reads path over Default. ${VAR} references are expanded from the
// environment before parsing.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	return cfg, nil
}

// Options converts the section for storage.NewGCS.
func (c GCSConfig) Options() storage.GCSOptions {
	return storage.GCSOptions{
		Endpoint:    c.Endpoint,
		Anonymous:   c.Anonymous,
		MaxFailures: c.MaxFailures,
		OpenTimeout: c.OpenTimeout,
	}
}

// Build creates the logger described by c.
func (c LogConfig) Build() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if c.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	encoding := c.Encoding
	if encoding == "" {
		encoding = "json"
	}
	outputPaths := c.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stderr"}
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      c.Development,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
