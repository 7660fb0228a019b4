package script

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/fileutils"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/logging"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/provider"
)

var (
	// ErrIO marks filesystem failures while reading a thread or writing its script.
	ErrIO = errors.New("io failure")
	// ErrNoContent means the thread has no text to write a script from.
	ErrNoContent = errors.New("thread has no text content")
)

type GeneratorOptions struct {
	Model          string
	FallbackModels []string
	Style          string
	Duration       int
	IncludeReplies bool
	Logger         logrus.FieldLogger

	now   func() time.Time
	newID func() string
}

// Outcome describes one generated script.
type Outcome struct {
	Path        string
	Artifact    Artifact
	Model       string
	Stage       string
	Placeholder bool
}

// Generator writes tiktok_script.json for persisted thread directories.
type Generator struct {
	llm  provider.Generator
	opts GeneratorOptions
}

func NewGenerator(llm provider.Generator, opts GeneratorOptions) *Generator {
	if opts.Model == "" {
		opts.Model = provider.DefaultModel
	}
	if opts.FallbackModels == nil {
		opts.FallbackModels = provider.DefaultFallbackModels
	}
	if _, ok := Styles[opts.Style]; !ok {
		opts.Style = DefaultStyle
	}
	if opts.Duration <= 0 {
		opts.Duration = DefaultTotalSeconds
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	if opts.newID == nil {
		opts.newID = func() string { return uuid.NewString() }
	}
	opts.Logger = logging.Or(opts.Logger)
	return &Generator{llm: llm, opts: opts}
}

// GenerateForThread loads dir, asks the model for a script and persists it. Filesystem failures wrap
// ErrIO; a model failure on every candidate is returned as is. Unparseable output is not an error: a
// placeholder artifact is written instead.
func (g *Generator) GenerateForThread(ctx context.Context, dir string) (Outcome, error) {
	log := g.opts.Logger.WithField("thread_dir", dir)

	st, err := xthread.LoadThread(dir)
	if err != nil {
		return Outcome{}, fmt.Errorf("GenerateForThread: %w: %w", ErrIO, err)
	}

	docs := IncludedPosts(st, g.opts.IncludeReplies)
	content := FormatThread(docs)
	if strings.TrimSpace(content) == "" {
		return Outcome{}, fmt.Errorf("GenerateForThread: %s: %w", dir, ErrNoContent)
	}

	req := buildPrompt(content, g.opts.Style, g.opts.Duration)
	candidates := provider.Candidates(g.opts.Model, g.opts.FallbackModels)
	log.WithFields(logrus.Fields{"model": g.opts.Model, "candidates": len(candidates), "tweets": len(docs)}).Info("generating script")

	res, err := provider.GenerateWithFallback(ctx, g.llm, candidates, req, provider.FallbackOptions{Logger: log})
	if err != nil {
		return Outcome{}, fmt.Errorf("GenerateForThread: %w", err)
	}

	norm := Normalize(res.Text)
	if norm.Placeholder {
		log.WithFields(logrus.Fields{"model": res.Model, "stage": "normalize"}).Warn("model output could not be parsed, writing placeholder")
	}
	a := norm.Artifact
	if a.Metadata.Style == "" || (norm.Placeholder && a.Metadata.Style == "unknown") {
		a.Metadata.Style = g.opts.Style
	}
	a.VisualTimeline.TweetReferences = tweetReferences(docs)
	a.SourceMetadata = &SourceMetadata{
		ThreadID:     st.Root.ID,
		Author:       st.Root.Author.Handle,
		ThreadDir:    filepath.ToSlash(dir),
		Model:        res.Model,
		Attempts:     res.Attempts,
		Style:        g.opts.Style,
		Duration:     g.opts.Duration,
		Replies:      len(docs) - 1,
		ParseStage:   norm.Stage,
		GenerationID: g.opts.newID(),
		GeneratedAt:  g.opts.now().UTC().Format(time.RFC3339),
	}

	out := filepath.Join(dir, xthread.ScriptFile)
	b, err := Marshal(a)
	if err != nil {
		return Outcome{}, fmt.Errorf("GenerateForThread: marshal: %w", err)
	}
	if err := fileutils.WriteFileAtomicSameDir(out, append(b, '\n'), 0o644); err != nil {
		return Outcome{}, fmt.Errorf("GenerateForThread: %w: %w", ErrIO, err)
	}

	log.WithFields(logrus.Fields{"path": out, "model": res.Model, "stage": norm.Stage}).Info("script saved")
	return Outcome{Path: out, Artifact: a, Model: res.Model, Stage: norm.Stage, Placeholder: norm.Placeholder}, nil
}

// IncludedPosts is the root followed by every reply, or by the author's own replies only when
// replies are excluded.
func IncludedPosts(st xthread.Stored, includeReplies bool) []Post {
	out := []Post{{Document: st.Root, VideoPath: st.Root.VideoFile}}
	replies := st.Replies
	if !includeReplies {
		replies = st.SelfThread()
	}
	for _, r := range replies {
		sd := Post{Document: r}
		if r.VideoFile != "" {
			sd.VideoPath = path.Join(xthread.RepliesDir, fileutils.SafeSegment(r.ID, xthread.UnknownThread), r.VideoFile)
		}
		out = append(out, sd)
	}
	return out
}

// Post is a persisted post plus its video path relative to the thread directory.
type Post struct {
	xthread.Document
	VideoPath string
}

// FormatThread renders posts as numbered blocks for the prompt. Posts without text are skipped.
func FormatThread(docs []Post) string {
	var parts []string
	for i, d := range docs {
		text := strings.TrimSpace(d.Text)
		if text == "" {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Tweet %d (id %s) by @%s:\n%s", i+1, d.ID, d.Author.Handle, text)
		if i == 0 && strings.TrimSpace(d.Author.Description) != "" {
			fmt.Fprintf(&b, "\n(Author: %s)", strings.TrimSpace(d.Author.Description))
		}
		if d.VideoPath != "" {
			b.WriteString("\n[has video]")
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func tweetReferences(docs []Post) map[string]TweetReference {
	out := make(map[string]TweetReference, len(docs))
	for _, d := range docs {
		out[d.ID] = TweetReference{
			Author:    d.Author.Handle,
			Excerpt:   fileutils.Truncate(d.Text, 140),
			VideoFile: d.VideoPath,
		}
	}
	return out
}
