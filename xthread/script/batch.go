package script

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/fileutils"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/logging"
)

// ThreadProcessor generates a script for one thread directory.
type ThreadProcessor interface {
	GenerateForThread(ctx context.Context, dir string) (Outcome, error)
}

type BatchOptions struct {
	Concurrency int
	MaxAttempts int
	// Force regenerates threads that already have a script.
	Force       bool
	BaseBackoff time.Duration
	Logger      logrus.FieldLogger

	sleep func(ctx context.Context, d time.Duration) error
}

const (
	DefaultBatchConcurrency = 3
	DefaultBatchAttempts    = 3
)

const (
	StatusSucceeded = "succeeded"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

type ItemResult struct {
	Dir      string
	Status   string
	Attempts int
	Outcome  Outcome
	Err      error
}

type Report struct {
	Processed int
	Succeeded int
	Skipped   int
	Failed    int
	Items     []ItemResult
}

// ExitCode is 1 when any thread failed.
func (r Report) ExitCode() int {
	if r.Failed > 0 {
		return 1
	}
	return 0
}

// RunBatch processes dirs with at most Concurrency in flight. One thread failing never cancels the
// others. Items come back in input order.
func RunBatch(ctx context.Context, proc ThreadProcessor, dirs []string, opts BatchOptions) Report {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultBatchConcurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultBatchAttempts
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = time.Second
	}
	if opts.sleep == nil {
		opts.sleep = sleepCtx
	}
	log := logging.Or(opts.Logger)

	items := make([]ItemResult, len(dirs))
	var (
		mu   sync.Mutex
		done int
	)

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for i, dir := range dirs {
		g.Go(func() error {
			items[i] = runItem(ctx, proc, dir, opts, log.WithField("thread_dir", dir))
			mu.Lock()
			done++
			n := done
			mu.Unlock()
			log.WithFields(logrus.Fields{"done": n, "total": len(dirs), "status": items[i].Status}).Info("batch progress")
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Items: items}
	for _, it := range items {
		switch it.Status {
		case StatusSucceeded:
			rep.Succeeded++
			rep.Processed++
		case StatusFailed:
			rep.Failed++
			rep.Processed++
		case StatusSkipped:
			rep.Skipped++
		}
	}
	log.WithFields(logrus.Fields{
		"processed": rep.Processed,
		"succeeded": rep.Succeeded,
		"skipped":   rep.Skipped,
		"failed":    rep.Failed,
	}).Info("batch finished")
	return rep
}

func runItem(ctx context.Context, proc ThreadProcessor, dir string, opts BatchOptions, log logrus.FieldLogger) ItemResult {
	res := ItemResult{Dir: dir}
	if !opts.Force && fileutils.FileExists(filepath.Join(dir, xthread.ScriptFile)) {
		res.Status = StatusSkipped
		log.Debug("script exists, skipping")
		return res
	}

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		res.Attempts = attempt
		out, err := proc.GenerateForThread(ctx, dir)
		if err == nil {
			res.Status = StatusSucceeded
			res.Outcome = out
			res.Err = nil
			return res
		}
		res.Err = err
		if !retryable(ctx, err) || attempt == opts.MaxAttempts {
			break
		}
		wait := opts.BaseBackoff << (attempt - 1)
		log.WithError(err).WithFields(logrus.Fields{"attempt": attempt, "backoff": wait}).Warn("script generation failed, retrying")
		if err := opts.sleep(ctx, wait); err != nil {
			res.Err = fmt.Errorf("%w (retry aborted: %v)", res.Err, err)
			break
		}
	}
	res.Status = StatusFailed
	log.WithError(res.Err).WithField("attempts", res.Attempts).Error("script generation failed")
	return res
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, ErrIO) && !errors.Is(err, ErrNoContent) &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
