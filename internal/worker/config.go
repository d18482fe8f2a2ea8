package worker

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/danielwei123/llm-evals-platform/internal/platform/env"
	"gopkg.in/yaml.v3"
)

type Config struct {
	PollInterval time.Duration
	ExecutorNote string
}

func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	return nil
}

// fileConfig is the YAML shape of an optional worker config file.
// Durations are Go duration strings ("750ms", "2s").
type fileConfig struct {
	PollInterval string `yaml:"poll_interval"`
	ExecutorNote string `yaml:"executor_note"`
}

// ConfigFromEnv builds the worker config. Precedence, lowest first:
// defaults, the YAML file named by WORKER_CONFIG (if set), then the
// WORKER_POLL_INTERVAL / WORKER_EXECUTOR_NOTE environment variables.
func ConfigFromEnv() (Config, error) {
	cfg := Config{PollInterval: DefaultPollInterval}

	if path := env.String("WORKER_CONFIG", ""); path != "" {
		fileCfg, err := loadConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg, err = fileCfg.apply(cfg)
		if err != nil {
			return Config{}, err
		}
	}

	pollInterval, err := env.Duration("WORKER_POLL_INTERVAL", cfg.PollInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.PollInterval = pollInterval
	cfg.ExecutorNote = env.String("WORKER_EXECUTOR_NOTE", cfg.ExecutorNote)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadConfigFile(path string) (fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read worker config: %w", err)
	}
	var fileCfg fileConfig
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return fileConfig{}, fmt.Errorf("decode worker config: %w", err)
	}
	return fileCfg, nil
}

func (f fileConfig) apply(cfg Config) (Config, error) {
	if f.PollInterval != "" {
		d, err := time.ParseDuration(f.PollInterval)
		if err != nil {
			return Config{}, fmt.Errorf("parse poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if f.ExecutorNote != "" {
		cfg.ExecutorNote = f.ExecutorNote
	}
	return cfg, nil
}
