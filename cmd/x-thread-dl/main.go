package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/apify"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/download"
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

	d, err := newDeps(cfg, log)
	if err != nil {
		log.WithError(err).Error("setup failed")
		os.Exit(1)
	}
	if d.history != nil {
		defer d.history.Close()
	}

	res, err := run(ctx, cfg, d, log)
	if err != nil {
		log.WithError(err).Error("x-thread-dl failed")
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "saved %s (%d replies, %d/%d videos, %d video failures)\n",
		res.Save.ThreadDir, res.Save.Replies, res.Save.Videos, res.Save.VideosFound, res.Save.VideoFailures)
	if res.Script != nil {
		fmt.Fprintf(os.Stdout, "script %s (model %s, stage %s)\n", res.Script.Path, res.Script.Model, res.Script.Stage)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Base output directory (threads land in <out>/<user>/<thread_id>)")
	fs.IntVar(&cfg.ReplyLimit, "reply-limit", cfg.ReplyLimit, "Maximum number of replies to fetch")
	fs.StringVar(&cfg.ApifyToken, "apify-token", "", "Apify API token (overrides "+settings.EnvApifyToken+")")
	fs.StringVar(&cfg.Downloader, "downloader", cfg.Downloader, "Video downloader: auto, http or yt-dlp")
	fs.BoolVar(&cfg.SkipVideos, "skip-videos", false, "Do not download videos")
	fs.BoolVar(&cfg.SkipScript, "skip-script", false, "Skip script generation after the download")
	fs.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Pretty-print thread JSON files")
	fs.StringVar(&cfg.HistoryPath, "history", "", "Run history database (default: <out>/"+history.FileName+"; empty disables)")
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Optional TOML defaults file")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose (debug) logging")
	cfg.Script.Register(fs, defaultScriptFlags())

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.URL = fs.Arg(0)

	set := settings.Visited(fs)
	file, _, err := settings.LoadFile(cfg.ConfigPath)
	if err != nil {
		return Config{}, err
	}
	if !set["out"] {
		cfg.OutDir = settings.First(settings.Env(settings.EnvOutputDir), file.Download.OutputDir, cfg.OutDir)
	}
	cfg.OutDir = filepath.Clean(cfg.OutDir)
	if !set["reply-limit"] {
		cfg.ReplyLimit = settings.FirstPositive(settings.EnvInt(settings.EnvReplyLimit, 0), file.Download.ReplyLimit, cfg.ReplyLimit)
	}
	if !set["downloader"] {
		cfg.Downloader = settings.First(file.Download.VideoDownloader, cfg.Downloader)
	}
	if !set["apify-token"] {
		cfg.ApifyToken = settings.ApifyToken()
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

// threadSource fetches the raw root post and its replies.
type threadSource interface {
	FetchTweet(ctx context.Context, url string) (map[string]any, error)
	FetchReplies(ctx context.Context, url string, limit int) ([]map[string]any, error)
}

type deps struct {
	source  threadSource
	videos  xthread.VideoFetcher
	llm     provider.Generator
	history *history.Store
	runID   string
}

func newDeps(cfg Config, log *logrus.Logger) (deps, error) {
	d := deps{runID: history.NewRunID()}
	if cfg.ApifyToken == "" {
		return deps{}, fmt.Errorf("missing %s (or pass -apify-token)", settings.EnvApifyToken)
	}
	client, err := apify.New(apify.Options{Token: cfg.ApifyToken, Logger: log})
	if err != nil {
		return deps{}, err
	}
	d.source = client

	if !cfg.SkipVideos {
		if d.videos, err = download.New(cfg.Downloader, log); err != nil {
			return deps{}, err
		}
	}

	if !cfg.SkipScript {
		if cfg.Script.OpenRouterKey == "" {
			log.Warnf("%s not set, script generation will be skipped", settings.EnvOpenRouterKey)
		} else {
			llm, err := provider.NewOpenRouter(provider.OpenRouterOptions{APIKey: cfg.Script.OpenRouterKey})
			if err != nil {
				return deps{}, err
			}
			d.llm = llm
		}
	}

	if cfg.HistoryPath != "" {
		h, err := history.Open(cfg.HistoryPath)
		if err != nil {
			log.WithError(err).Warn("run history unavailable")
		} else {
			d.history = h
		}
	}
	return d, nil
}

type result struct {
	Tree   xthread.Tree
	Save   xthread.SaveReport
	Script *script.Outcome
}

func run(ctx context.Context, cfg Config, d deps, log logrus.FieldLogger) (result, error) {
	url, id, err := xthread.ParseTweetURL(cfg.URL)
	if err != nil {
		return result{}, err
	}
	log = log.WithField("thread_id", id)

	root, err := d.source.FetchTweet(ctx, url)
	if err != nil {
		return result{}, fmt.Errorf("fetch root post: %w", err)
	}
	replies, err := d.source.FetchReplies(ctx, url, cfg.ReplyLimit)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return result{}, err
		}
		log.WithError(err).WithField("stage", "replies").Warn("reply fetch failed, continuing with the root post only")
		replies = nil
	}

	tree, err := xthread.Assemble(root, replies, xthread.AssembleOptions{Logger: log})
	if err != nil {
		return result{}, err
	}
	rep, err := xthread.Save(ctx, tree, xthread.SaveOptions{
		OutputDir: cfg.OutDir,
		Videos:    d.videos,
		Pretty:    cfg.Pretty,
		Logger:    log,
	})
	if err != nil {
		return result{}, err
	}
	res := result{Tree: tree, Save: rep}
	if d.history != nil {
		if err := d.history.RecordDownload(ctx, history.Download{
			RunID:         d.runID,
			User:          tree.UserHandle,
			ThreadID:      tree.ThreadID,
			Replies:       rep.Replies,
			Videos:        rep.Videos,
			VideoFailures: rep.VideoFailures,
		}); err != nil {
			log.WithError(err).Warn("could not record download history")
		}
	}

	if cfg.SkipScript || d.llm == nil {
		return res, nil
	}
	gen := script.NewGenerator(d.llm, script.GeneratorOptions{
		Model:          cfg.Script.Model,
		FallbackModels: cfg.Script.FallbackModels,
		Style:          cfg.Script.Style,
		Duration:       cfg.Script.Duration,
		IncludeReplies: !cfg.Script.NoReplies,
		Logger:         log,
	})
	out, err := gen.GenerateForThread(ctx, rep.ThreadDir)
	recordScript(ctx, d, rep.ThreadDir, out, err, log)
	if err != nil {
		return res, fmt.Errorf("generate script: %w", err)
	}
	res.Script = &out
	return res, nil
}

func recordScript(ctx context.Context, d deps, dir string, out script.Outcome, genErr error, log logrus.FieldLogger) {
	if d.history == nil {
		return
	}
	row := history.Script{
		RunID:       d.runID,
		ThreadDir:   dir,
		Model:       out.Model,
		Stage:       out.Stage,
		Placeholder: out.Placeholder,
		Status:      script.StatusSucceeded,
	}
	if genErr != nil {
		row.Status = script.StatusFailed
		row.Error = genErr.Error()
	}
	if err := d.history.RecordScript(ctx, row); err != nil {
		log.WithError(err).Warn("could not record script history")
	}
}
