package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/robfig/cron/v3"
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
	gen := script.NewGenerator(llm, script.GeneratorOptions{
		Model:          cfg.Script.Model,
		FallbackModels: cfg.Script.FallbackModels,
		Style:          cfg.Script.Style,
		Duration:       cfg.Script.Duration,
		IncludeReplies: !cfg.Script.NoReplies,
		Logger:         log,
	})

	var hs *history.Store
	if cfg.HistoryPath != "" {
		if hs, err = history.Open(cfg.HistoryPath); err != nil {
			log.WithError(err).Warn("run history unavailable")
			hs = nil
		} else {
			defer hs.Close()
		}
	}

	if cfg.Schedule != "" {
		if err := watch(ctx, cfg, gen, hs, log); err != nil {
			log.WithError(err).Error("watch failed")
			os.Exit(1)
		}
		return
	}

	rep, err := runOnce(ctx, cfg, gen, hs, log)
	if err != nil {
		log.WithError(err).Error("batch failed")
		os.Exit(1)
	}
	printReport(os.Stdout, rep)
	if code := rep.ExitCode(); code != 0 {
		if hs != nil {
			hs.Close()
		}
		os.Exit(code)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Output directory to scan for <user>/<thread_id> directories")
	fs.BoolVar(&cfg.Force, "force", false, "Regenerate scripts that already exist")
	fs.IntVar(&cfg.MaxConcurrent, "max-concurrent", cfg.MaxConcurrent, "Maximum threads processed at once")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Attempts per thread for retryable failures")
	fs.StringVar(&cfg.Schedule, "schedule", "", "Cron spec (e.g. \"*/30 * * * *\") to keep re-running the batch for new threads")
	fs.StringVar(&cfg.HistoryPath, "history", "", "Run history database (default: <out>/"+history.FileName+"; empty disables)")
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Optional TOML defaults file")
	fs.BoolVar(&cfg.Reindex, "reindex", cfg.Reindex, "Rebuild <out>/"+script.IndexFile+" after each batch")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose (debug) logging")
	cfg.Script.Register(fs, cfg.Script)

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	for _, a := range fs.Args() {
		cfg.Dirs = append(cfg.Dirs, filepath.Clean(a))
	}

	set := settings.Visited(fs)
	file, _, err := settings.LoadFile(cfg.ConfigPath)
	if err != nil {
		return Config{}, err
	}
	if !set["out"] {
		cfg.OutDir = settings.First(settings.Env(settings.EnvOutputDir), file.Download.OutputDir, cfg.OutDir)
	}
	cfg.OutDir = filepath.Clean(cfg.OutDir)
	if !set["max-concurrent"] {
		cfg.MaxConcurrent = settings.FirstPositive(file.Script.MaxConcurrent, cfg.MaxConcurrent)
	}
	if !set["max-attempts"] {
		cfg.MaxAttempts = settings.FirstPositive(file.Script.MaxAttempts, cfg.MaxAttempts)
	}
	if !set["history"] {
		cfg.HistoryPath = settings.First(file.Download.HistoryPath, history.DefaultPath(cfg.OutDir))
	}
	cfg.Script.Resolve(set, file.Script)

	cfg.LogLevel = settings.First(settings.Env(settings.EnvLogLevel), cfg.LogLevel)
	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func runOnce(ctx context.Context, cfg Config, proc script.ThreadProcessor, hs *history.Store, log logrus.FieldLogger) (script.Report, error) {
	dirs := cfg.Dirs
	if len(dirs) == 0 {
		found, err := xthread.FindThreadDirs(cfg.OutDir)
		if err != nil {
			return script.Report{}, err
		}
		dirs = found
	}
	log.WithField("threads", len(dirs)).Info("starting batch")

	rep := script.RunBatch(ctx, proc, dirs, script.BatchOptions{
		Concurrency: cfg.MaxConcurrent,
		MaxAttempts: cfg.MaxAttempts,
		Force:       cfg.Force,
		Logger:      log,
	})
	if hs != nil {
		runID := history.NewRunID()
		for _, it := range rep.Items {
			if it.Status == script.StatusSkipped {
				continue
			}
			row := history.Script{
				RunID:       runID,
				ThreadDir:   it.Dir,
				Model:       it.Outcome.Model,
				Stage:       it.Outcome.Stage,
				Placeholder: it.Outcome.Placeholder,
				Status:      it.Status,
			}
			if it.Err != nil {
				row.Error = it.Err.Error()
			}
			if err := hs.RecordScript(ctx, row); err != nil {
				log.WithError(err).Warn("could not record script history")
			}
		}
	}
	if cfg.Reindex {
		reindex(cfg.OutDir, log)
	}
	return rep, nil
}

func reindex(outDir string, log logrus.FieldLogger) {
	n, skipped, err := script.RebuildIndex(outDir)
	if err != nil {
		log.WithError(err).Warn("could not rebuild script index")
		return
	}
	for _, p := range skipped {
		log.WithField("path", p).Warn("unreadable script left out of index")
	}
	log.WithField("scripts", n).Debug("script index rebuilt")
}

// watch runs the batch now and then on every tick of cfg.Schedule until ctx is done. Threads that
// already have a script are skipped unless -force is set, so each tick only picks up new downloads.
func watch(ctx context.Context, cfg Config, proc script.ThreadProcessor, hs *history.Store, log *logrus.Logger) error {
	tick := func() {
		rep, err := runOnce(ctx, cfg, proc, hs, log)
		if err != nil {
			log.WithError(err).Error("scheduled batch failed")
			return
		}
		printReport(os.Stdout, rep)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))))
	if _, err := c.AddFunc(cfg.Schedule, tick); err != nil {
		return fmt.Errorf("watch: schedule %q: %w", cfg.Schedule, err)
	}
	tick()
	c.Start()
	log.WithField("schedule", cfg.Schedule).Info("watching for new threads")

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("watch stopped")
	return nil
}

func printReport(w io.Writer, rep script.Report) {
	fmt.Fprintf(w, "processed=%d succeeded=%d skipped=%d failed=%d\n", rep.Processed, rep.Succeeded, rep.Skipped, rep.Failed)
	for _, it := range rep.Items {
		switch it.Status {
		case script.StatusFailed:
			fmt.Fprintf(w, "  FAIL %s (attempts=%d): %v\n", it.Dir, it.Attempts, it.Err)
		case script.StatusSucceeded:
			fmt.Fprintf(w, "  ok   %s (model=%s stage=%s)\n", it.Dir, it.Outcome.Model, it.Outcome.Stage)
		default:
			fmt.Fprintf(w, "  skip %s\n", it.Dir)
		}
	}
}
