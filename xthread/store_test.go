package xthread

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu   sync.Mutex
	jobs []VideoJob
	fail map[string]bool
}

func (f *fakeFetcher) FetchVideo(_ context.Context, job VideoJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	if f.fail[job.RecordID] {
		return errors.New("download failed")
	}
	if err := os.MkdirAll(filepath.Dir(job.Dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(job.Dest, []byte("mp4"), 0o644)
}

func sampleTree(t *testing.T) Tree {
	t.Helper()
	replies := []map[string]any{
		{"replyId": "300", "replyText": "later", "author": map[string]any{"username": "bob"}},
		{"replyId": "20", "replyText": "earlier", "author": map[string]any{"username": "jack"},
			"video": map[string]any{"variants": []any{map[string]any{"type": "video/mp4", "src": "https://v/r.mp4"}}}},
	}
	tree, err := Assemble(rootRaw(), replies, AssembleOptions{})
	require.NoError(t, err)
	return tree
}

func TestSaveAndLoadThread(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	fetcher := &fakeFetcher{}
	rep, err := Save(context.Background(), sampleTree(t), SaveOptions{OutputDir: out, Videos: fetcher, Pretty: true})
	require.NoError(t, err)

	dir := filepath.Join(out, "jack", "100")
	assert.Equal(t, dir, rep.ThreadDir)
	assert.Equal(t, 2, rep.Replies)
	assert.Equal(t, 2, rep.Videos)
	assert.Equal(t, 0, rep.VideoFailures)

	for _, p := range []string{
		filepath.Join(dir, ThreadTextFile),
		filepath.Join(dir, VideosDir, "100.mp4"),
		filepath.Join(dir, RepliesDir, "300", ReplyTextFile),
		filepath.Join(dir, RepliesDir, "20", ReplyTextFile),
		filepath.Join(dir, RepliesDir, "20", VideosDir, "20.mp4"),
	} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
	require.Len(t, fetcher.jobs, 2)
	assert.Equal(t, "https://x.com/jack/status/100", fetcher.jobs[0].PageURL)

	st, err := LoadThread(dir)
	require.NoError(t, err)
	assert.Equal(t, "root text", st.Root.Text)
	assert.Equal(t, "videos/100.mp4", st.Root.VideoFile)
	require.NotNil(t, st.Root.Video)
	require.Len(t, st.Replies, 2)
	assert.Equal(t, "20", st.Replies[0].ID)
	assert.Equal(t, "300", st.Replies[1].ID)

	self := st.SelfThread()
	require.Len(t, self, 1)
	assert.Equal(t, "20", self[0].ID)

	dirs, err := FindThreadDirs(out)
	require.NoError(t, err)
	assert.Equal(t, []string{dir}, dirs)
}

func TestSave_VideoFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	fetcher := &fakeFetcher{fail: map[string]bool{"100": true}}
	rep, err := Save(context.Background(), sampleTree(t), SaveOptions{OutputDir: out, Videos: fetcher})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.VideoFailures)
	assert.Equal(t, 1, rep.Videos)

	st, err := LoadThread(rep.ThreadDir)
	require.NoError(t, err)
	assert.Equal(t, "", st.Root.VideoFile)
}

func TestSave_WithoutFetcher(t *testing.T) {
	t.Parallel()

	rep, err := Save(context.Background(), sampleTree(t), SaveOptions{OutputDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.VideosFound)
	assert.Equal(t, 0, rep.Videos)
	assert.Equal(t, 0, rep.VideoFailures)
}

func TestLoadThread_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadThread(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestThreadDir_SanitizesSegments(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.Join("out", "unknown_user", "1"), ThreadDir("out", "", "1"))
	assert.Equal(t, filepath.Join("out", "a_b", "unknown_thread"), ThreadDir("out", "a/b", ".."))
}
