// Package config - Allocator settings
// Design: defaults, overridden by REGALLOC_* environment variables, overridden by CLI flags
package config

import (
	"fmt"
	"runtime"

	"github.com/xyproto/env/v2"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/codegen/regalloc"
	"github.com/GriffinCanCode/typthon-regalloc/pkg/logger"
)

// Config holds everything a run of the allocator can be tuned with
type Config struct {
	Colours   int // 0 means every allocatable register of the target
	MaxRounds int
	Heuristic string
	Dump      bool
	Verify    bool
	Jobs      int
	LogLevel  string
	LogFormat string
	LogFile   string
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		MaxRounds: regalloc.DefaultMaxRounds,
		Heuristic: "cost",
		Jobs:      runtime.NumCPU(),
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// FromEnv applies REGALLOC_* environment variables on top of the defaults
func FromEnv() Config {
	c := Default()
	c.Colours = env.Int("REGALLOC_K", c.Colours)
	c.MaxRounds = env.Int("REGALLOC_MAX_ROUNDS", c.MaxRounds)
	c.Heuristic = env.Str("REGALLOC_HEURISTIC", c.Heuristic)
	c.Dump = env.Bool("REGALLOC_DUMP")
	c.Verify = env.Bool("REGALLOC_VERIFY")
	c.Jobs = env.Int("REGALLOC_JOBS", c.Jobs)
	c.LogLevel = env.Str("REGALLOC_LOG_LEVEL", c.LogLevel)
	c.LogFormat = env.Str("REGALLOC_LOG_FORMAT", c.LogFormat)
	c.LogFile = env.Str("REGALLOC_LOG_FILE")
	return c
}

// Validate checks the settings against a target with maxColours registers
func (c Config) Validate(maxColours int) error {
	if c.Colours < 0 || c.Colours > maxColours {
		return fmt.Errorf("colour count %d outside 0..%d", c.Colours, maxColours)
	}
	if c.MaxRounds < 1 {
		return fmt.Errorf("max rounds must be positive, got %d", c.MaxRounds)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be positive, got %d", c.Jobs)
	}
	if _, err := regalloc.HeuristicByName(c.Heuristic); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// Options builds allocator options. Validate must have succeeded.
func (c Config) Options() regalloc.Options {
	h, _ := regalloc.HeuristicByName(c.Heuristic)
	return regalloc.Options{Heuristic: h, MaxRounds: c.MaxRounds}
}

// LoggerConfig builds the logger configuration
func (c Config) LoggerConfig() logger.Config {
	lc := logger.DefaultConfig()
	if lvl, err := logger.ParseLevel(c.LogLevel); err == nil {
		lc.Level = lvl
	}
	lc.Format = c.LogFormat
	lc.LogFile = c.LogFile
	return lc
}
