package download

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/fileutils"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/logging"
)

// FormatSelector asks for the best mp4, preferring 4K then 1080p.
const FormatSelector = "best[ext=mp4][height>=2160]/best[ext=mp4][height>=1080]/best[ext=mp4]/best"

// YTDLP shells out to yt-dlp with the post URL, letting it negotiate formats.
type YTDLP struct {
	Binary string
	Logger logrus.FieldLogger

	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewYTDLP(log logrus.FieldLogger) *YTDLP {
	return &YTDLP{Binary: "yt-dlp", Logger: log}
}

// Args returns the yt-dlp arguments for job.
func (y *YTDLP) Args(job xthread.VideoJob) []string {
	src := job.PageURL
	if src == "" {
		src = job.VideoURL
	}
	return []string{"-f", FormatSelector, "--no-progress", "-o", job.Dest, src}
}

func (y *YTDLP) FetchVideo(ctx context.Context, job xthread.VideoJob) error {
	if job.PageURL == "" && job.VideoURL == "" {
		return fmt.Errorf("YTDLP.FetchVideo: %s: %w", job.RecordID, ErrNoSource)
	}
	if err := os.MkdirAll(filepath.Dir(job.Dest), 0o755); err != nil {
		return fmt.Errorf("YTDLP.FetchVideo: mkdir: %w", err)
	}
	bin := y.Binary
	if bin == "" {
		bin = "yt-dlp"
	}
	run := y.run
	if run == nil {
		run = combinedOutput
	}

	out, err := run(ctx, bin, y.Args(job)...)
	if err != nil {
		return fmt.Errorf("YTDLP.FetchVideo: %s: %w: %s", job.RecordID, err, fileutils.Truncate(strings.TrimSpace(string(out)), 500))
	}
	if !fileutils.FileExists(job.Dest) {
		return fmt.Errorf("YTDLP.FetchVideo: %s: yt-dlp exited cleanly but %s is missing", job.RecordID, job.Dest)
	}
	logging.Or(y.Logger).WithFields(logrus.Fields{"record_id": job.RecordID, "downloader": "yt-dlp"}).Debug("video saved")
	return nil
}

func combinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}
