// Package daemon runs tool invocations on cron schedules from a declarative
// YAML configuration.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petal-labs/toolrun/core"
)

const (
	projectConfigName = "toolrun.yaml"
	homeConfigName    = "config.yaml"
)

// Mode selects which engine entry point a schedule uses.
const (
	ModeBlocking   = "blocking"
	ModeSuspending = "suspending"
)

// Config is the declarative startup config shape for scheduled invocations.
type Config struct {
	Schedules []Schedule `yaml:"schedules"`
}

// Schedule defines one recurring tool invocation.
type Schedule struct {
	// Name identifies the schedule in logs and results. Defaults to Tool.
	Name string `yaml:"name,omitempty"`

	// Tool is the registered tool to invoke.
	Tool string `yaml:"tool"`

	// Args is the raw argument string passed to the engine.
	Args string `yaml:"args,omitempty"`

	// Cron is a standard five-field cron expression.
	Cron string `yaml:"cron"`

	// Mode is "blocking" or "suspending" (default "blocking").
	Mode string `yaml:"mode,omitempty"`
}

// ID returns the schedule's display name.
func (s Schedule) ID() string {
	if strings.TrimSpace(s.Name) != "" {
		return s.Name
	}
	return s.Tool
}

// DiscoverConfigPath resolves the daemon config location with first-match
// semantics: explicit path, then ./toolrun.yaml, then ~/.toolrun/config.yaml.
func DiscoverConfigPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverConfigPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverConfigPathFrom is a testable variant of DiscoverConfigPath.
func DiscoverConfigPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 3)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, ".toolrun", homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			// If explicit path is set, not found is an error.
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// LoadConfig reads and parses a daemon config file.
func LoadConfig(path string) (Config, error) {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading daemon config %q: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses daemon config YAML.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing daemon config: %w", err)
	}
	for i := range cfg.Schedules {
		cfg.Schedules[i].Args = os.ExpandEnv(cfg.Schedules[i].Args)
	}
	return cfg, nil
}

// Validate checks every schedule against the registry and the cron parser.
func (c Config) Validate(registry *core.Registry) error {
	if len(c.Schedules) == 0 {
		return errors.New("daemon: config declares no schedules")
	}

	seen := make(map[string]struct{}, len(c.Schedules))
	for _, s := range c.Schedules {
		id := s.ID()
		if strings.TrimSpace(s.Tool) == "" {
			return fmt.Errorf("daemon: schedule %q: tool is required", id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("daemon: duplicate schedule %q", id)
		}
		seen[id] = struct{}{}

		if registry != nil {
			if _, ok := registry.Resolve(s.Tool); !ok {
				return fmt.Errorf("daemon: schedule %q: unknown tool %q", id, s.Tool)
			}
		}
		if _, err := parseCronExpression(s.Cron); err != nil {
			return fmt.Errorf("daemon: schedule %q: %w", id, err)
		}
		switch strings.TrimSpace(s.Mode) {
		case "", ModeBlocking, ModeSuspending:
		default:
			return fmt.Errorf("daemon: schedule %q: unsupported mode %q", id, s.Mode)
		}
	}
	return nil
}

// NextRun returns the next fire time for a schedule after now, in UTC.
func (s Schedule) NextRun(now time.Time) (time.Time, error) {
	sched, err := parseCronExpression(s.Cron)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now.UTC()), nil
}
