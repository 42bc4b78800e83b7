package config

import (
	"fmt"
	"time"

	"github.com/justapithecus/slate/types"
)

// Default values applied by Normalize when the config file leaves a
// field empty.
const (
	DefaultStorePath   = "slate.db"
	DefaultEvalTimeout = 30 * time.Second
)

// Boundary transport names accepted by the config file.
const (
	BoundaryGoroutine = "goroutine"
	BoundaryProcess   = "process"
)

// Config represents a slate.yaml configuration file.
// All values are optional and act as defaults for slate run flags.
// CLI flags always override config values.
type Config struct {
	// Mode selects the default executor variant (isolated|stateful).
	Mode string `yaml:"mode"`
	// Boundary selects the transport (goroutine|process).
	Boundary string `yaml:"boundary"`
	// HostBinary is the host executable for the process boundary.
	HostBinary string `yaml:"host_binary"`
	// Store is the path of the notebook record database.
	Store string `yaml:"store"`
	// EvalTimeout bounds a single cell evaluation.
	EvalTimeout Duration `yaml:"eval_timeout"`
}

// Normalize fills defaults and validates enum fields.
func (c *Config) Normalize() error {
	if c.Mode == "" {
		c.Mode = string(types.ModeIsolated)
	}
	if !types.ExecutorMode(c.Mode).IsValid() {
		return fmt.Errorf("invalid mode %q: expected isolated or stateful", c.Mode)
	}

	if c.Boundary == "" {
		c.Boundary = BoundaryGoroutine
	}
	switch c.Boundary {
	case BoundaryGoroutine:
	case BoundaryProcess:
		if c.HostBinary == "" {
			return fmt.Errorf("boundary %q requires host_binary", c.Boundary)
		}
	default:
		return fmt.Errorf("invalid boundary %q: expected goroutine or process", c.Boundary)
	}

	if c.Store == "" {
		c.Store = DefaultStorePath
	}
	if c.EvalTimeout.Duration == 0 {
		c.EvalTimeout.Duration = DefaultEvalTimeout
	}
	return nil
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
