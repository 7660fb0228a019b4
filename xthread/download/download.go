// Package download fetches thread videos, either straight from a resolved mp4 variant or through
// yt-dlp when only the post URL is usable.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/fileutils"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/logging"
)

var ErrNoSource = errors.New("download: job has no usable url")

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) x-thread-dl"

// HTTP streams VideoJob.VideoURL into VideoJob.Dest.
type HTTP struct {
	Client *http.Client
	Logger logrus.FieldLogger
}

func NewHTTP(timeout time.Duration, log logrus.FieldLogger) *HTTP {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &HTTP{Client: &http.Client{Timeout: timeout}, Logger: log}
}

func (h *HTTP) FetchVideo(ctx context.Context, job xthread.VideoJob) error {
	if job.VideoURL == "" {
		return fmt.Errorf("HTTP.FetchVideo: %s: %w", job.RecordID, ErrNoSource)
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.VideoURL, nil)
	if err != nil {
		return fmt.Errorf("HTTP.FetchVideo: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP.FetchVideo: %s: %w", job.RecordID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTP.FetchVideo: %s: status %d", job.RecordID, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(job.Dest), 0o755); err != nil {
		return fmt.Errorf("HTTP.FetchVideo: mkdir: %w", err)
	}
	n, err := fileutils.WriteStreamAtomic(job.Dest, resp.Body, 0o644)
	if err != nil {
		return fmt.Errorf("HTTP.FetchVideo: %s: %w", job.RecordID, err)
	}
	if n == 0 {
		_ = os.Remove(job.Dest)
		return fmt.Errorf("HTTP.FetchVideo: %s: empty body", job.RecordID)
	}
	logging.Or(h.Logger).WithFields(logrus.Fields{"record_id": job.RecordID, "bytes": n, "downloader": "http"}).Debug("video saved")
	return nil
}

// Chain tries each fetcher in order and stops at the first success.
type Chain struct {
	Fetchers []xthread.VideoFetcher
	Logger   logrus.FieldLogger
}

func (c Chain) FetchVideo(ctx context.Context, job xthread.VideoJob) error {
	if len(c.Fetchers) == 0 {
		return errors.New("Chain.FetchVideo: no fetchers")
	}
	log := logging.Or(c.Logger).WithField("record_id", job.RecordID)
	var errs []error
	for i, f := range c.Fetchers {
		err := f.FetchVideo(ctx, job)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
		if i < len(c.Fetchers)-1 {
			log.WithError(err).Debug("video fetcher failed, trying next")
		}
	}
	return fmt.Errorf("Chain.FetchVideo: %w", errors.Join(errs...))
}

// Kinds accepted by New.
const (
	KindAuto  = "auto"
	KindHTTP  = "http"
	KindYTDLP = "yt-dlp"
)

// New builds the fetcher for kind. auto tries the resolved variant first and falls back to yt-dlp.
func New(kind string, log logrus.FieldLogger) (xthread.VideoFetcher, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindAuto:
		return Chain{Fetchers: []xthread.VideoFetcher{NewHTTP(0, log), NewYTDLP(log)}, Logger: log}, nil
	case KindHTTP:
		return NewHTTP(0, log), nil
	case KindYTDLP, "ytdlp":
		return NewYTDLP(log), nil
	}
	return nil, fmt.Errorf("download.New: unknown downloader %q (want %s, %s or %s)", kind, KindAuto, KindHTTP, KindYTDLP)
}
