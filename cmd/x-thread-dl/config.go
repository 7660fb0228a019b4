package main

import (
	"errors"
	"fmt"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread/apify"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/download"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/provider"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/script"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/settings"
)

type Config struct {
	URL        string
	OutDir     string
	ReplyLimit int
	ApifyToken string
	Downloader string
	SkipVideos bool
	SkipScript bool
	Pretty     bool

	Script settings.ScriptFlags

	// HistoryPath empty disables the run history.
	HistoryPath string
	ConfigPath  string
	Verbose     bool
	LogLevel    string
}

func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("missing tweet url (usage: x-thread-dl [flags] <url>)")
	}
	if c.OutDir == "" {
		return errors.New("missing -out")
	}
	if c.ReplyLimit < 0 {
		return errors.New("reply-limit must be >= 0")
	}
	if _, err := download.New(c.Downloader, nil); err != nil {
		return err
	}
	if c.SkipScript {
		return nil
	}
	return validateScript(c.Script)
}

func validateScript(s settings.ScriptFlags) error {
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
		OutDir:     "output",
		ReplyLimit: apify.DefaultReplyLimit,
		Downloader: download.KindAuto,
		Pretty:     true,
		ConfigPath: settings.DefaultFile,
		LogLevel:   "info",
	}
}

func defaultScriptFlags() settings.ScriptFlags {
	return settings.ScriptFlags{
		Model:          provider.DefaultModel,
		FallbackModels: provider.DefaultFallbackModels,
		Style:          script.DefaultStyle,
		Duration:       script.DefaultTotalSeconds,
	}
}
