package main

import (
	"errors"
	"fmt"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread/provider"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/script"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/settings"
)

type Config struct {
	// ThreadPath is a thread directory or its thread_text.json.
	ThreadPath  string
	Script      settings.ScriptFlags
	HistoryPath string
	ConfigPath  string
	Verbose     bool
	LogLevel    string
}

func (c Config) Validate() error {
	if c.ThreadPath == "" {
		return errors.New("missing thread directory (usage: script-gen [flags] <thread-dir|thread_text.json>)")
	}
	s := c.Script
	if s.Model == "" {
		return errors.New("missing -model")
	}
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
