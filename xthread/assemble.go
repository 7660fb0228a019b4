package xthread

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread/logging"
)

// Node is one post in an assembled thread.
type Node struct {
	Record Record
	Video  *VideoReference
}

// Tree is a root post plus its replies in scrape order, keyed by (UserHandle, ThreadID).
type Tree struct {
	UserHandle string
	ThreadID   string
	Root       Node
	Replies    []Node

	// Dropped counts replies rejected for lack of an id.
	Dropped int
}

type AssembleOptions struct {
	Logger logrus.FieldLogger
}

// Assemble builds a Tree. A root without an id is fatal; replies without one are dropped and logged.
func Assemble(root map[string]any, replies []map[string]any, opts AssembleOptions) (Tree, error) {
	log := logging.Or(opts.Logger)

	rootRec, err := extract(root, UnknownUser, log)
	if err != nil {
		return Tree{}, fmt.Errorf("Assemble: root: %w", err)
	}
	tree := Tree{
		UserHandle: rootRec.Author.Handle,
		ThreadID:   rootRec.ID,
		Root:       newNode(rootRec, root),
	}
	log = log.WithFields(logrus.Fields{"thread_id": tree.ThreadID, "user": tree.UserHandle})
	log.WithField("replies", len(replies)).Info("assembling thread")

	tree.Replies = make([]Node, 0, len(replies))
	for i, raw := range replies {
		rec, err := extract(raw, UnknownReplyAuthor, log)
		if err != nil {
			if errors.Is(err, ErrMissingID) {
				tree.Dropped++
				log.WithField("index", i).WithError(err).Warn("dropping reply")
				continue
			}
			return Tree{}, fmt.Errorf("Assemble: reply %d: %w", i, err)
		}
		node := newNode(rec, raw)
		if node.Video != nil {
			log.WithFields(logrus.Fields{"reply_id": rec.ID, "resolution": node.Video.Resolution}).Debug("reply has video")
		}
		tree.Replies = append(tree.Replies, node)
	}
	return tree, nil
}

func newNode(rec Record, raw map[string]any) Node {
	n := Node{Record: rec}
	if v, ok := BestVideo(raw); ok {
		v.RecordID = rec.ID
		n.Video = &v
	}
	return n
}

// SelfThread returns the replies written by the root author, in order, regardless of what sits
// between them.
func (t Tree) SelfThread() []Node {
	if !t.Root.Record.AuthorResolved {
		return nil
	}
	var out []Node
	for _, r := range t.Replies {
		if r.Record.AuthorResolved && equalFoldHandle(r.Record.Author.Handle, t.UserHandle) {
			out = append(out, r)
		}
	}
	return out
}

func equalFoldHandle(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, "@"), strings.TrimPrefix(b, "@"))
}

// Videos returns every node with a resolved video, root first.
func (t Tree) Videos() []Node {
	var out []Node
	if t.Root.Video != nil {
		out = append(out, t.Root)
	}
	for _, r := range t.Replies {
		if r.Video != nil {
			out = append(out, r)
		}
	}
	return out
}
