package main

import (
	"bytes"
	"context"
	"flag"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread/history"
)

func TestParseFlags(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("thread-history", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{"-out", "threads", "-kind", "scripts", "-limit", "5"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.DBPath != filepath.Join("threads", history.FileName) {
		t.Fatalf("DBPath=%q", cfg.DBPath)
	}
	if cfg.Kind != "scripts" || cfg.Limit != 5 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if err := (Config{DBPath: "x", Kind: "everything"}).Validate(); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestRun_PrintsBothTables(t *testing.T) {
	t.Parallel()

	hs, err := history.Open(filepath.Join(t.TempDir(), history.FileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = hs.Close() })

	ctx := context.Background()
	require.NoError(t, hs.RecordDownload(ctx, history.Download{RunID: "r", User: "jack", ThreadID: "20", Replies: 3}))
	require.NoError(t, hs.RecordScript(ctx, history.Script{RunID: "r", ThreadDir: "out/jack/20", Model: "m1", Stage: "placeholder", Placeholder: true, Status: "succeeded"}))

	var buf bytes.Buffer
	require.NoError(t, run(ctx, Config{Kind: "all", Limit: 10}, hs, &buf))
	out := buf.String()
	assert.Contains(t, out, "DOWNLOADED")
	assert.Contains(t, out, "jack")
	assert.Contains(t, out, "placeholder (placeholder)")

	buf.Reset()
	require.NoError(t, run(ctx, Config{Kind: "downloads", JSON: true}, hs, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"thread_id":"20"`)
}
