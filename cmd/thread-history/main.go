package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread/history"
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

	hs, err := history.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	defer hs.Close()

	if err := run(context.Background(), cfg, hs, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		hs.Close()
		os.Exit(1)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)
	out := fs.String("out", "", "Output directory whose history to read (default: "+settings.EnvOutputDir+" or output)")
	fs.StringVar(&cfg.DBPath, "db", "", "History database path (overrides -out)")
	fs.IntVar(&cfg.Limit, "limit", cfg.Limit, "Rows per table (0 lists everything)")
	fs.StringVar(&cfg.Kind, "kind", cfg.Kind, "Which history to list: downloads, scripts or all")
	fs.BoolVar(&cfg.JSON, "json", false, "Print rows as JSON lines")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = history.DefaultPath(settings.First(*out, settings.Env(settings.EnvOutputDir), "output"))
	}
	return cfg, nil
}

func run(ctx context.Context, cfg Config, hs *history.Store, w io.Writer) error {
	if cfg.Kind == "downloads" || cfg.Kind == "all" {
		rows, err := hs.RecentDownloads(ctx, cfg.Limit)
		if err != nil {
			return err
		}
		if err := printDownloads(w, rows, cfg.JSON); err != nil {
			return err
		}
	}
	if cfg.Kind == "scripts" || cfg.Kind == "all" {
		rows, err := hs.RecentScripts(ctx, cfg.Limit)
		if err != nil {
			return err
		}
		if err := printScripts(w, rows, cfg.JSON); err != nil {
			return err
		}
	}
	return nil
}

func printDownloads(w io.Writer, rows []history.Download, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for _, r := range rows {
			if err := enc.Encode(map[string]any{
				"kind": "download", "run_id": r.RunID, "user": r.User, "thread_id": r.ThreadID,
				"replies": r.Replies, "videos": r.Videos, "video_failures": r.VideoFailures,
				"created_at": r.CreatedAt.Format(time.RFC3339),
			}); err != nil {
				return err
			}
		}
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOWNLOADED\tUSER\tTHREAD\tREPLIES\tVIDEOS\tVIDEO FAILURES")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n", r.CreatedAt.Local().Format(time.DateTime), r.User, r.ThreadID, r.Replies, r.Videos, r.VideoFailures)
	}
	return tw.Flush()
}

func printScripts(w io.Writer, rows []history.Script, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for _, r := range rows {
			if err := enc.Encode(map[string]any{
				"kind": "script", "run_id": r.RunID, "thread_dir": r.ThreadDir, "model": r.Model,
				"stage": r.Stage, "placeholder": r.Placeholder, "status": r.Status, "error": r.Error,
				"created_at": r.CreatedAt.Format(time.RFC3339),
			}); err != nil {
				return err
			}
		}
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GENERATED\tTHREAD DIR\tSTATUS\tMODEL\tSTAGE\tERROR")
	for _, r := range rows {
		stage := r.Stage
		if r.Placeholder {
			stage += " (placeholder)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.CreatedAt.Local().Format(time.DateTime), r.ThreadDir, r.Status, r.Model, stage, r.Error)
	}
	return tw.Flush()
}
