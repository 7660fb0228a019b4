package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread"
)

func TestHTTP_StreamsToDest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v.mp4" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("fake mp4 bytes"))
	}))
	t.Cleanup(srv.Close)

	dest := filepath.Join(t.TempDir(), "videos", "1.mp4")
	err := NewHTTP(0, nil).FetchVideo(context.Background(), xthread.VideoJob{RecordID: "1", VideoURL: srv.URL + "/v.mp4", Dest: dest})
	require.NoError(t, err)

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "fake mp4 bytes", string(b))

	err = NewHTTP(0, nil).FetchVideo(context.Background(), xthread.VideoJob{RecordID: "2", VideoURL: srv.URL + "/missing.mp4", Dest: filepath.Join(t.TempDir(), "2.mp4")})
	assert.ErrorContains(t, err, "status 404")
}

func TestHTTP_NoURL(t *testing.T) {
	t.Parallel()

	err := NewHTTP(0, nil).FetchVideo(context.Background(), xthread.VideoJob{RecordID: "1", PageURL: "https://x.com/a/status/1"})
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestYTDLP_Args(t *testing.T) {
	t.Parallel()

	y := NewYTDLP(nil)
	args := y.Args(xthread.VideoJob{PageURL: "https://x.com/a/status/1", VideoURL: "https://v/1.mp4", Dest: "/tmp/1.mp4"})
	assert.Equal(t, []string{"-f", FormatSelector, "--no-progress", "-o", "/tmp/1.mp4", "https://x.com/a/status/1"}, args)

	args = y.Args(xthread.VideoJob{VideoURL: "https://v/1.mp4", Dest: "/tmp/1.mp4"})
	assert.Equal(t, "https://v/1.mp4", args[len(args)-1])
}

func TestYTDLP_RunsBinary(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "videos", "9.mp4")
	var gotName string
	var gotArgs []string
	y := &YTDLP{Binary: "yt-dlp-test", run: func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return nil, os.WriteFile(dest, []byte("mp4"), 0o644)
	}}

	require.NoError(t, y.FetchVideo(context.Background(), xthread.VideoJob{RecordID: "9", PageURL: "https://x.com/a/status/9", Dest: dest}))
	assert.Equal(t, "yt-dlp-test", gotName)
	assert.Contains(t, gotArgs, FormatSelector)

	y.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("ERROR: Unsupported URL"), errors.New("exit status 1")
	}
	err := y.FetchVideo(context.Background(), xthread.VideoJob{RecordID: "9", PageURL: "https://x.com/a/status/9", Dest: dest})
	assert.ErrorContains(t, err, "Unsupported URL")
}

type stubFetcher struct {
	err   error
	calls int
}

func (s *stubFetcher) FetchVideo(context.Context, xthread.VideoJob) error {
	s.calls++
	return s.err
}

func TestChain(t *testing.T) {
	t.Parallel()

	first := &stubFetcher{err: errors.New("first broke")}
	second := &stubFetcher{}
	third := &stubFetcher{}
	require.NoError(t, Chain{Fetchers: []xthread.VideoFetcher{first, second, third}}.FetchVideo(context.Background(), xthread.VideoJob{}))
	assert.Equal(t, []int{1, 1, 0}, []int{first.calls, second.calls, third.calls})

	bad := &stubFetcher{err: errors.New("second broke")}
	err := Chain{Fetchers: []xthread.VideoFetcher{first, bad}}.FetchVideo(context.Background(), xthread.VideoJob{})
	assert.ErrorContains(t, err, "first broke")
	assert.ErrorContains(t, err, "second broke")
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{"", "auto", "http", "yt-dlp", "YTDLP"} {
		f, err := New(kind, nil)
		require.NoError(t, err, kind)
		assert.NotNil(t, f)
	}
	_, err := New("curl", nil)
	assert.Error(t, err)
}
