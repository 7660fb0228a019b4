package main

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread/provider"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/script"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/settings"
)

type Config struct {
	OutDir string
	// Dirs, when given, replaces discovery under OutDir.
	Dirs          []string
	Force         bool
	MaxConcurrent int
	MaxAttempts   int
	// Schedule is a cron spec; empty runs once.
	Schedule string
	Reindex  bool

	Script      settings.ScriptFlags
	HistoryPath string
	ConfigPath  string
	Verbose     bool
	LogLevel    string
}

func (c Config) Validate() error {
	if c.OutDir == "" && len(c.Dirs) == 0 {
		return errors.New("missing -out")
	}
	if c.MaxConcurrent <= 0 {
		return errors.New("max-concurrent must be > 0")
	}
	if c.MaxAttempts <= 0 {
		return errors.New("max-attempts must be > 0")
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("invalid -schedule: %w", err)
		}
	}
	s := c.Script
	if !s.AllowAnyModel && !provider.IsAvailableModel(s.Model) {
		return fmt.Errorf("model %q is not in the built-in list (pass -allow-any-model to use it)", s.Model)
	}
	if _, ok := script.Styles[s.Style]; !ok {
		return fmt.Errorf("unknown -style %q (want one of %v)", s.Style, script.StyleNames())
	}
	if s.Duration <= 0 {
		return errors.New("duration must be > 0")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		OutDir:        "output",
		MaxConcurrent: script.DefaultBatchConcurrency,
		MaxAttempts:   script.DefaultBatchAttempts,
		Reindex:       true,
		Script: settings.ScriptFlags{
			Model:          provider.DefaultModel,
			FallbackModels: provider.DefaultFallbackModels,
			Style:          script.DefaultStyle,
			Duration:       script.DefaultTotalSeconds,
		},
		ConfigPath: settings.DefaultFile,
		LogLevel:   "info",
	}
}
