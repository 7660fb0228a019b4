package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DefaultPath(filepath.Join(t.TempDir(), "out")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Downloads(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	ctx := context.Background()
	run := NewRunID()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordDownload(ctx, Download{RunID: run, User: "jack", ThreadID: "1", Replies: 4, Videos: 2, VideoFailures: 1, CreatedAt: base}))
	require.NoError(t, s.RecordDownload(ctx, Download{RunID: run, User: "jack", ThreadID: "2", CreatedAt: base.Add(time.Minute)}))

	got, err := s.RecentDownloads(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ThreadID)
	assert.Equal(t, Download{RunID: run, User: "jack", ThreadID: "1", Replies: 4, Videos: 2, VideoFailures: 1, CreatedAt: base}, got[1])

	one, err := s.RecentDownloads(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestStore_Scripts(t *testing.T) {
	t.Parallel()

	s := openTemp(t)
	s.now = func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	require.NoError(t, s.RecordScript(ctx, Script{RunID: "r1", ThreadDir: "out/jack/1", Model: "m1", Stage: "fenced", Status: "succeeded"}))
	require.NoError(t, s.RecordScript(ctx, Script{RunID: "r1", ThreadDir: "out/jack/2", Status: "failed", Error: "io failure"}))
	require.NoError(t, s.RecordScript(ctx, Script{RunID: "r1", ThreadDir: "out/jack/3", Model: "m2", Stage: "placeholder", Placeholder: true, Status: "succeeded"}))

	got, err := s.RecentScripts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "out/jack/3", got[0].ThreadDir)
	assert.True(t, got[0].Placeholder)
	assert.Equal(t, "io failure", got[1].Error)
	assert.Equal(t, "", got[1].Model)
	assert.Equal(t, "fenced", got[2].Stage)
	assert.Equal(t, s.now(), got[2].CreatedAt)
}

func TestOpen_Reopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), FileName)
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordDownload(context.Background(), Download{RunID: "a", User: "u", ThreadID: "1"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.RecentDownloads(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NotEmpty(t, NewRunID())
}
