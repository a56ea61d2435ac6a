package config

import (
	"testing"

	"github.com/GriffinCanCode/typthon-regalloc/pkg/logger"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("REGALLOC_K", "4")
	t.Setenv("REGALLOC_MAX_ROUNDS", "8")
	t.Setenv("REGALLOC_HEURISTIC", "degree")
	t.Setenv("REGALLOC_VERIFY", "true")
	t.Setenv("REGALLOC_JOBS", "2")
	t.Setenv("REGALLOC_LOG_LEVEL", "debug")
	t.Setenv("REGALLOC_LOG_FORMAT", "json")

	c := FromEnv()
	if c.Colours != 4 || c.MaxRounds != 8 || c.Jobs != 2 {
		t.Errorf("numbers not read: %+v", c)
	}
	if c.Heuristic != "degree" || !c.Verify || c.Dump {
		t.Errorf("flags not read: %+v", c)
	}
	if err := c.Validate(14); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	lc := c.LoggerConfig()
	if lc.Level != logger.LevelDebug || lc.Format != "json" {
		t.Errorf("LoggerConfig() = %+v", lc)
	}
	if got := c.Options().Heuristic.Name(); got != "degree" {
		t.Errorf("Options().Heuristic = %s, want degree", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"too many colours", func(c *Config) { c.Colours = 15 }, false},
		{"negative colours", func(c *Config) { c.Colours = -1 }, false},
		{"zero rounds", func(c *Config) { c.MaxRounds = 0 }, false},
		{"zero jobs", func(c *Config) { c.Jobs = 0 }, false},
		{"unknown heuristic", func(c *Config) { c.Heuristic = "random" }, false},
		{"unknown level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"unknown format", func(c *Config) { c.LogFormat = "xml" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)
			err := c.Validate(14)
			if (err == nil) != tt.ok {
				t.Errorf("Validate() error = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
