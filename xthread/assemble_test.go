package xthread

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rootRaw() map[string]any {
	return map[string]any{
		"id_str":    "100",
		"full_text": "root text",
		"user":      map[string]any{"screen_name": "jack"},
		"mediaDetails": []any{map[string]any{
			"type": "video",
			"video_info": map[string]any{"variants": []any{
				map[string]any{"content_type": "video/mp4", "bitrate": float64(2000), "url": "https://v/vid/avc1/1280x720/root.mp4"},
			}},
		}},
	}
}

func TestAssemble_OrderAndDrops(t *testing.T) {
	t.Parallel()

	replies := []map[string]any{
		{"replyId": "3", "replyText": "third", "author": map[string]any{"username": "jack"}},
		{"replyText": "no id"},
		{"replyId": "1", "replyText": "first", "author": map[string]any{"username": "bob"}},
		{"replyId": "2", "replyText": "again", "author": map[string]any{"username": "bob"}},
		{"replyId": "4", "replyText": "anon"},
	}
	tree, err := Assemble(rootRaw(), replies, AssembleOptions{})
	require.NoError(t, err)

	assert.Equal(t, "jack", tree.UserHandle)
	assert.Equal(t, "100", tree.ThreadID)
	require.NotNil(t, tree.Root.Video)
	assert.Equal(t, "100", tree.Root.Video.RecordID)
	assert.Equal(t, 1, tree.Dropped)

	var ids []string
	for _, r := range tree.Replies {
		ids = append(ids, r.Record.ID)
	}
	assert.Equal(t, []string{"3", "1", "2", "4"}, ids)
	assert.Equal(t, UnknownReplyAuthor, tree.Replies[3].Record.Author.Handle)
	assert.False(t, tree.Replies[3].Record.AuthorResolved)
}

func TestAssemble_RootMissingIDIsFatal(t *testing.T) {
	t.Parallel()

	_, err := Assemble(map[string]any{"text": "x"}, nil, AssembleOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingID))
}

func TestAssemble_RootWithoutAuthor(t *testing.T) {
	t.Parallel()

	tree, err := Assemble(map[string]any{"id": "5", "text": "x"}, nil, AssembleOptions{})
	require.NoError(t, err)
	assert.Equal(t, UnknownUser, tree.UserHandle)
	assert.Nil(t, tree.SelfThread())
}

func TestTree_SelfThreadScansAllReplies(t *testing.T) {
	t.Parallel()

	replies := []map[string]any{
		{"replyId": "1", "replyText": "part 2", "author": map[string]any{"username": "Jack"}},
		{"replyId": "2", "replyText": "interruption", "author": map[string]any{"username": "bob"}},
		{"replyId": "3", "replyText": "part 3", "author": map[string]any{"username": "jack"}},
	}
	tree, err := Assemble(rootRaw(), replies, AssembleOptions{})
	require.NoError(t, err)

	self := tree.SelfThread()
	require.Len(t, self, 2)
	assert.Equal(t, "1", self[0].Record.ID)
	assert.Equal(t, "3", self[1].Record.ID)

	assert.Len(t, tree.Videos(), 1)
}
