package xthread

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread/fileutils"
	"github.com/theimaginaryfoundation/x-thread-dl/xthread/logging"
)

const (
	ThreadTextFile = "thread_text.json"
	ReplyTextFile  = "reply_text.json"
	ScriptFile     = "tiktok_script.json"
	RepliesDir     = "replies"
	VideosDir      = "videos"
)

// Document is the on-disk form of a node.
type Document struct {
	Record
	Video     *VideoReference `json:"video,omitempty"`
	VideoFile string          `json:"video_file,omitempty"`
}

// VideoJob describes one video to fetch. VideoURL is the resolved rendition; PageURL is the post link
// for downloaders that negotiate formats themselves.
type VideoJob struct {
	RecordID string
	VideoURL string
	PageURL  string
	Dest     string
}

type VideoFetcher interface {
	FetchVideo(ctx context.Context, job VideoJob) error
}

type SaveOptions struct {
	OutputDir string
	// Videos is optional; nil skips downloads.
	Videos VideoFetcher
	Pretty bool
	Logger logrus.FieldLogger
}

type SaveReport struct {
	ThreadDir     string
	Replies       int
	// VideosFound counts nodes with a resolved video, downloaded or not.
	VideosFound   int
	Videos        int
	VideoFailures int
}

func ThreadDir(outputDir, user, threadID string) string {
	return filepath.Join(outputDir, fileutils.SafeSegment(user, UnknownUser), fileutils.SafeSegment(threadID, UnknownThread))
}

// Save writes the tree under {out}/{user}/{thread}. Text files are fatal on failure; video failures
// are logged and counted.
func Save(ctx context.Context, tree Tree, opts SaveOptions) (SaveReport, error) {
	if opts.OutputDir == "" {
		return SaveReport{}, errors.New("Save: empty output dir")
	}
	log := logging.Or(opts.Logger).WithFields(logrus.Fields{"thread_id": tree.ThreadID, "user": tree.UserHandle})

	dir := ThreadDir(opts.OutputDir, tree.UserHandle, tree.ThreadID)
	rep := SaveReport{ThreadDir: dir, VideosFound: len(tree.Videos())}
	if opts.Videos == nil && rep.VideosFound > 0 {
		log.WithField("videos", rep.VideosFound).Info("video downloads disabled, keeping references only")
	}

	if err := saveNode(ctx, tree.Root, dir, ThreadTextFile, opts, &rep, log); err != nil {
		return rep, fmt.Errorf("Save: root: %w", err)
	}
	for _, r := range tree.Replies {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("Save: %w", err)
		}
		replyDir := filepath.Join(dir, RepliesDir, fileutils.SafeSegment(r.Record.ID, UnknownThread))
		if err := saveNode(ctx, r, replyDir, ReplyTextFile, opts, &rep, log); err != nil {
			return rep, fmt.Errorf("Save: reply %s: %w", r.Record.ID, err)
		}
		rep.Replies++
	}

	log.WithFields(logrus.Fields{
		"dir":            dir,
		"replies":        rep.Replies,
		"videos":         rep.Videos,
		"video_failures": rep.VideoFailures,
	}).Info("thread saved")
	return rep, nil
}

func saveNode(ctx context.Context, n Node, dir, textFile string, opts SaveOptions, rep *SaveReport, log logrus.FieldLogger) error {
	doc := Document{Record: n.Record, Video: n.Video}

	if n.Video != nil && opts.Videos != nil {
		rel := filepath.Join(VideosDir, fileutils.SafeSegment(n.Record.ID, UnknownThread)+".mp4")
		job := VideoJob{
			RecordID: n.Record.ID,
			VideoURL: n.Video.URL,
			PageURL:  n.Record.PostURL,
			Dest:     filepath.Join(dir, rel),
		}
		if err := opts.Videos.FetchVideo(ctx, job); err != nil {
			rep.VideoFailures++
			log.WithError(err).WithFields(logrus.Fields{"record_id": n.Record.ID, "stage": "video"}).Warn("video download failed")
		} else {
			rep.Videos++
			doc.VideoFile = filepath.ToSlash(rel)
		}
	}

	return fileutils.WriteJSONFileAtomic(filepath.Join(dir, textFile), doc, opts.Pretty)
}

// Stored is a thread read back from disk.
type Stored struct {
	Dir     string
	Root    Document
	Replies []Document
}

// LoadThread reads a persisted thread directory. A missing thread_text.json yields an error matching
// fs.ErrNotExist. Replies come back ordered by status id, which follows posting order.
func LoadThread(dir string) (Stored, error) {
	st := Stored{Dir: dir}
	if err := fileutils.ReadJSONFile(filepath.Join(dir, ThreadTextFile), &st.Root); err != nil {
		return Stored{}, fmt.Errorf("LoadThread: %w", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, RepliesDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		return Stored{}, fmt.Errorf("LoadThread: replies: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p := filepath.Join(dir, RepliesDir, e.Name(), ReplyTextFile)
		var doc Document
		if err := fileutils.ReadJSONFile(p, &doc); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Stored{}, fmt.Errorf("LoadThread: %w", err)
		}
		st.Replies = append(st.Replies, doc)
	}
	sort.SliceStable(st.Replies, func(i, j int) bool {
		return idLess(st.Replies[i].ID, st.Replies[j].ID)
	})
	return st, nil
}

func idLess(a, b string) bool {
	x, okA := new(big.Int).SetString(a, 10)
	y, okB := new(big.Int).SetString(b, 10)
	if okA && okB {
		return x.Cmp(y) < 0
	}
	return a < b
}

// SelfThread mirrors Tree.SelfThread for stored threads.
func (s Stored) SelfThread() []Document {
	if !s.Root.AuthorResolved {
		return nil
	}
	var out []Document
	for _, r := range s.Replies {
		if r.AuthorResolved && equalFoldHandle(r.Author.Handle, s.Root.Author.Handle) {
			out = append(out, r)
		}
	}
	return out
}

// FindThreadDirs lists {out}/{user}/{thread} directories holding a thread_text.json, sorted.
func FindThreadDirs(outputDir string) ([]string, error) {
	users, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("FindThreadDirs: %w", err)
	}
	var out []string
	for _, u := range users {
		if !u.IsDir() {
			continue
		}
		threads, err := os.ReadDir(filepath.Join(outputDir, u.Name()))
		if err != nil {
			return nil, fmt.Errorf("FindThreadDirs: %w", err)
		}
		for _, t := range threads {
			if !t.IsDir() {
				continue
			}
			dir := filepath.Join(outputDir, u.Name(), t.Name())
			if fileutils.FileExists(filepath.Join(dir, ThreadTextFile)) {
				out = append(out, dir)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
