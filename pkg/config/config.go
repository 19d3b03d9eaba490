// Package config loads the optional weave.yaml runtime configuration and
// resolves it into validated settings for the scheduler and pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/go-weave/weave/pkg/pipeline"
	"github.com/go-weave/weave/pkg/scheduler"
)

// Config represents the optional weave.yaml configuration.
type Config struct {
	Frame    FrameConfig    `yaml:"frame"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Stats    StatsConfig    `yaml:"stats"`
}

// FrameConfig contains frame pacing settings.
type FrameConfig struct {
	RefreshRate int    `yaml:"refresh_rate,omitempty"`
	Mode        string `yaml:"mode,omitempty"`
}

// RecoveryConfig contains frame error recovery settings.
type RecoveryConfig struct {
	Policy    string `yaml:"policy,omitempty"`
	MaxErrors int    `yaml:"max_errors,omitempty"`
}

// StatsConfig contains frame statistics settings.
type StatsConfig struct {
	Window int `yaml:"window,omitempty"`
}

// Resolved contains resolved and validated configuration values.
type Resolved struct {
	RefreshRate int
	Mode        scheduler.Mode
	Policy      pipeline.Policy
	MaxErrors   int
	StatsWindow int
}

// Defaults applied when weave.yaml is absent or leaves fields unset.
const (
	defaultRefreshRate = 60
	defaultMaxErrors   = 0 // unbounded
	defaultStatsWindow = 120
)

// LoadOptional reads weave.yaml from dir if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, "weave.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read weave.yaml: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse weave.yaml: %w", err)
	}

	return &cfg, nil
}

// Resolve loads weave.yaml (if present) and resolves defaults.
func Resolve(dir string) (*Resolved, error) {
	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	return cfg.Resolve()
}

// Resolve validates the configuration and fills in defaults.
func (c *Config) Resolve() (*Resolved, error) {
	rate := c.Frame.RefreshRate
	if rate == 0 {
		rate = defaultRefreshRate
	}
	if rate < 1 || rate > 1000 {
		return nil, fmt.Errorf("frame.refresh_rate must be between 1 and 1000 (got %d)", rate)
	}

	mode := scheduler.ModeWaitForSignal
	if name := strings.TrimSpace(c.Frame.Mode); name != "" {
		parsed, err := scheduler.ParseMode(name)
		if err != nil {
			return nil, fmt.Errorf("frame.mode: %w", err)
		}
		mode = parsed
	}

	policy := pipeline.PolicyShowErrorPlaceholder
	if name := strings.TrimSpace(c.Recovery.Policy); name != "" {
		parsed, err := pipeline.ParsePolicy(name)
		if err != nil {
			return nil, fmt.Errorf("recovery.policy: %w", err)
		}
		policy = parsed
	}

	maxErrors := c.Recovery.MaxErrors
	if maxErrors == 0 {
		maxErrors = defaultMaxErrors
	}
	if maxErrors < 0 {
		return nil, fmt.Errorf("recovery.max_errors must not be negative (got %d)", maxErrors)
	}

	window := c.Stats.Window
	if window == 0 {
		window = defaultStatsWindow
	}
	if window < 0 {
		return nil, fmt.Errorf("stats.window must not be negative (got %d)", window)
	}

	return &Resolved{
		RefreshRate: rate,
		Mode:        mode,
		Policy:      policy,
		MaxErrors:   maxErrors,
		StatsWindow: window,
	}, nil
}
