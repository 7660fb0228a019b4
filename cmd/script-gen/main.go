package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/history"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/logging"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/provider"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/script"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/settings"
)

func main() {
	if err := settings.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	log := logging.Setup(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Script.OpenRouterKey == "" {
		log.Errorf("missing %s (or pass -openrouter-key)", settings.EnvOpenRouterKey)
		os.Exit(1)
	}
	llm, err := provider.NewOpenRouter(provider.OpenRouterOptions{APIKey: cfg.Script.OpenRouterKey})
	if err != nil {
		log.WithError(err).Error("setup failed")
		os.Exit(1)
	}

	var hs *history.Store
	if cfg.HistoryPath != "" {
		if hs, err = history.Open(cfg.HistoryPath); err != nil {
			log.WithError(err).Warn("run history unavailable")
			hs = nil
		} else {
			defer hs.Close()
		}
	}

	out, err := run(ctx, cfg, llm, hs, log)
	if err != nil {
		log.WithError(err).Error("script generation failed")
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "script %s (model %s, stage %s)\n", out.Path, out.Model, out.Stage)
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.HistoryPath, "history", "", "Run history database (default: <out>/"+history.FileName+" two levels above the thread; empty disables)")
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Optional TOML defaults file")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose (debug) logging")
	cfg.Script.Register(fs, cfg.Script)

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if p := fs.Arg(0); p != "" {
		cfg.ThreadPath = threadDir(filepath.Clean(p))
	}

	set := settings.Visited(fs)
	file, _, err := settings.LoadFile(cfg.ConfigPath)
	if err != nil {
		return Config{}, err
	}
	cfg.Script.Resolve(set, file.Script)
	if !set["history"] && cfg.ThreadPath != "" {
		cfg.HistoryPath = settings.First(file.Download.HistoryPath, history.DefaultPath(outputRoot(cfg.ThreadPath)))
	}

	cfg.LogLevel = settings.First(settings.Env(settings.EnvLogLevel), cfg.LogLevel)
	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// threadDir accepts either a thread directory or the thread_text.json inside it.
func threadDir(p string) string {
	if filepath.Base(p) == xthread.ThreadTextFile {
		return filepath.Dir(p)
	}
	return p
}

// outputRoot maps <out>/<user>/<thread> to <out>.
func outputRoot(dir string) string {
	return filepath.Dir(filepath.Dir(dir))
}

func run(ctx context.Context, cfg Config, llm provider.Generator, hs *history.Store, log logrus.FieldLogger) (script.Outcome, error) {
	gen := script.NewGenerator(llm, script.GeneratorOptions{
		Model:          cfg.Script.Model,
		FallbackModels: cfg.Script.FallbackModels,
		Style:          cfg.Script.Style,
		Duration:       cfg.Script.Duration,
		IncludeReplies: !cfg.Script.NoReplies,
		Logger:         log,
	})
	out, err := gen.GenerateForThread(ctx, cfg.ThreadPath)
	if hs != nil {
		row := history.Script{
			RunID:       history.NewRunID(),
			ThreadDir:   cfg.ThreadPath,
			Model:       out.Model,
			Stage:       out.Stage,
			Placeholder: out.Placeholder,
			Status:      script.StatusSucceeded,
		}
		if err != nil {
			row.Status, row.Error = script.StatusFailed, err.Error()
		}
		if herr := hs.RecordScript(ctx, row); herr != nil {
			log.WithError(herr).Warn("could not record script history")
		}
	}
	return out, err
}
