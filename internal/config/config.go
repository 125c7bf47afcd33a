package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultEndpoint   = "http://localhost:11434/api/generate"
	DefaultPrompt     = "Classify the image. Return the class name in the format: ```{ \"class\" : \"CLASS_NAME\" }```"
	DefaultDatasetURL = "https://github.com/myleott/mnist_png/raw/master/mnist_png.tar.gz"
	DefaultDatasetDir = "mini_mnist"
)

type Config struct {
	Ollama      OllamaConfig  `yaml:"ollama"`
	Dataset     DatasetConfig `yaml:"dataset"`
	TempDir     string        `yaml:"temp_dir" env:"IMGCLF_TEMP_DIR"`
	LogLevel    string        `yaml:"log_level" env:"IMGCLF_LOG_LEVEL"`
	MetricsFile string        `yaml:"metrics_file" env:"IMGCLF_METRICS_FILE"`
}

type OllamaConfig struct {
	Endpoint string `yaml:"endpoint" env:"OLLAMA_URL"`
	Prompt   string `yaml:"prompt" env:"OLLAMA_PROMPT"`
	// Zero leaves the transport default in place (no timeout)
	Timeout time.Duration `yaml:"timeout" env:"OLLAMA_TIMEOUT"`
}

type DatasetConfig struct {
	URL     string `yaml:"url" env:"DATASET_URL"`
	Dir     string `yaml:"dir" env:"DATASET_DIR"`
	Retries uint64 `yaml:"retries" env:"DATASET_RETRIES"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			Endpoint: DefaultEndpoint,
			Prompt:   DefaultPrompt,
		},
		Dataset: DatasetConfig{
			URL:     DefaultDatasetURL,
			Dir:     DefaultDatasetDir,
			Retries: 3,
		},
		TempDir:  os.TempDir(),
		LogLevel: "warn",
	}
}

// Load builds the configuration from defaults, then the optional YAML file
// at path, then the environment. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Ollama.Endpoint == "" {
		return errors.New("ollama endpoint is empty")
	}
	if c.Ollama.Prompt == "" {
		return errors.New("ollama prompt is empty")
	}
	if c.Ollama.Timeout < 0 {
		return fmt.Errorf("negative ollama timeout: %s", c.Ollama.Timeout)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Logger returns a text logger writing to w at the configured level
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level: %q", s)
}
