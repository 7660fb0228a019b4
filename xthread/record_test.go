package xthread

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var m map[string]any
	require.NoError(t, dec.Decode(&m))
	return m
}

func TestExtract_IDKeys(t *testing.T) {
	t.Parallel()

	keys := []string{"id_str", "rest_id", "id", "tweetId", "tweet_id", "postId", "post_id", "statusId", "status_id", "replyId"}
	for _, k := range keys {
		t.Run(k, func(t *testing.T) {
			t.Parallel()
			rec, err := Extract(map[string]any{k: "1790000000000000001", "text": "hi"})
			require.NoError(t, err)
			assert.Equal(t, "1790000000000000001", rec.ID)
		})
	}
}

func TestExtract_IDPriorityAndNumbers(t *testing.T) {
	t.Parallel()

	rec, err := Extract(map[string]any{"id": "2", "id_str": "1", "tweetId": "3"})
	require.NoError(t, err)
	assert.Equal(t, "1", rec.ID)

	// Large ids survive when decoded with UseNumber.
	rec, err = Extract(decode(t, `{"id": 1790000000000000001}`))
	require.NoError(t, err)
	assert.Equal(t, "1790000000000000001", rec.ID)

	rec, err = Extract(map[string]any{"id": float64(12345)})
	require.NoError(t, err)
	assert.Equal(t, "12345", rec.ID)

	// Empty values fall through to the next alias.
	rec, err = Extract(map[string]any{"id_str": "", "rest_id": nil, "postId": "9"})
	require.NoError(t, err)
	assert.Equal(t, "9", rec.ID)
}

func TestExtract_MissingID(t *testing.T) {
	t.Parallel()

	_, err := Extract(map[string]any{"text": "no id", "user": map[string]any{"screen_name": "a"}})
	assert.True(t, errors.Is(err, ErrMissingID))

	_, err = Extract(nil)
	assert.True(t, errors.Is(err, ErrMissingID))
}

func TestExtract_AuthorResolution(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  map[string]any
		want string
		ok   bool
	}{
		{"user", map[string]any{"user": map[string]any{"screen_name": "u1"}, "author": map[string]any{"screen_name": "a1"}}, "u1", true},
		{"author screen_name", map[string]any{"author": map[string]any{"screen_name": "a1", "username": "a2"}}, "a1", true},
		{"author username", map[string]any{"author": map[string]any{"username": "a2", "name": "Display"}}, "a2", true},
		{"author name", map[string]any{"author": map[string]any{"name": "Display"}}, "Display", true},
		{"flat username", map[string]any{"username": "f1", "screen_name": "f2"}, "f1", true},
		{"flat userName", map[string]any{"userName": "f4"}, "f4", true},
		{"flat before replyUrl", map[string]any{"screen_name": "f3", "replyUrl": "https://x.com/r1/status/1"}, "f3", true},
		{"replyUrl", map[string]any{"replyUrl": "https://x.com/r1/status/1"}, "r1", true},
		{"replyUrl twitter", map[string]any{"replyUrl": "https://twitter.com/r2/status/1"}, "r2", true},
		{"replyUrl undefined", map[string]any{"replyUrl": "https://x.com/undefined/status/1"}, UnknownUser, false},
		{"replyUrl i/web", map[string]any{"replyUrl": "https://x.com/i/web/status/1"}, UnknownUser, false},
		{"replyUrl other host", map[string]any{"replyUrl": "https://example.com/r3/status/1"}, UnknownUser, false},
		{"author string", map[string]any{"author": "plain"}, "plain", true},
		{"at prefix", map[string]any{"username": "@handle"}, "handle", true},
		{"none", map[string]any{}, UnknownUser, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			raw := map[string]any{"id_str": "1"}
			for k, v := range tc.raw {
				raw[k] = v
			}
			rec, err := Extract(raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, rec.Author.Handle)
			assert.Equal(t, tc.ok, rec.AuthorResolved)
		})
	}
}

func TestExtract_FullRecord(t *testing.T) {
	t.Parallel()

	raw := decode(t, `{
		"id_str": "100",
		"full_text": "full",
		"text": "short",
		"created_at": "Wed Oct 10 20:19:24 +0000 2018",
		"user": {"screen_name": "jack", "name": "Jack", "followers_count": 10, "favourites_count": 2, "friends_count": 3, "description": "bio"},
		"entities": {
			"urls": [{"expanded_url": "https://example.com/a"}, {"url": "https://t.co/b"}],
			"hashtags": [{"text": "golang"}, {"text": "#already"}],
			"user_mentions": [{"screen_name": "alice"}],
			"media": [{"media_url_https": "https://pbs.twimg.com/media/1.jpg"}]
		},
		"in_reply_to_status_id_str": "99",
		"in_reply_to_screen_name": "bob",
		"retweet_count": 5,
		"favorite_count": 7,
		"viewsCount": "1234",
		"reply_count": 0,
		"conversation_id": "90"
	}`)

	rec, err := Extract(raw)
	require.NoError(t, err)

	assert.Equal(t, "100", rec.ID)
	assert.Equal(t, "full", rec.Text)
	assert.Equal(t, "Wed Oct 10 20:19:24 +0000 2018", rec.Timestamp)
	assert.Equal(t, Author{Handle: "jack", Name: "Jack", FollowersCount: 10, FavouritesCount: 2, FriendsCount: 3, Description: "bio"}, rec.Author)
	assert.Equal(t, []string{"https://example.com/a", "https://t.co/b"}, rec.URLs)
	assert.Equal(t, []string{"#golang", "#already"}, rec.Hashtags)
	assert.Equal(t, []string{"@alice"}, rec.Mentions)
	assert.Equal(t, []string{"https://pbs.twimg.com/media/1.jpg"}, rec.Media)
	assert.True(t, rec.IsReply)
	assert.Equal(t, "bob", rec.ReplyToHandle)
	assert.Equal(t, "99", rec.ReplyToID)
	assert.Equal(t, "https://x.com/jack/status/100", rec.PostURL)
	assert.Equal(t, "https://x.com/jack/status/100", rec.ReplyURL)
	assert.Equal(t, "90", rec.ConversationID)
	assert.Equal(t, Counts{RepostCount: 5, FavouriteCount: 7, ViewsCount: 1234}, rec.Counts)
}

func TestExtract_RepliesActorShape(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"replyId":   "555",
		"replyText": "nice thread",
		"replyUrl":  "https://x.com/carol/status/555",
		"postUrl":   "https://x.com/jack/status/100",
		"replyTo":   "100",
		"author":    map[string]any{"username": "carol", "followersCount": float64(3)},
	}
	rec, err := Extract(raw)
	require.NoError(t, err)

	assert.Equal(t, "555", rec.ID)
	assert.Equal(t, "carol", rec.Author.Handle)
	assert.Equal(t, int64(3), rec.Author.FollowersCount)
	assert.Equal(t, "nice thread", rec.Text)
	assert.True(t, rec.IsReply)
	assert.Equal(t, "https://x.com/jack/status/100", rec.PostURL)
	assert.Equal(t, "https://x.com/carol/status/555", rec.ReplyURL)
	assert.Equal(t, "555", rec.ConversationID)
	assert.Empty(t, rec.URLs)
	assert.NotNil(t, rec.Hashtags)
}

func TestExtract_NotReply(t *testing.T) {
	t.Parallel()

	rec, err := Extract(map[string]any{"id": "1", "in_reply_to_status_id": nil, "isReply": false, "text": ""})
	require.NoError(t, err)
	assert.False(t, rec.IsReply)
	assert.Equal(t, "", rec.Text)
	assert.Equal(t, "https://x.com/unknown_user/status/1", rec.PostURL)
}

func TestExtract_FlatMedia(t *testing.T) {
	t.Parallel()

	rec, err := Extract(map[string]any{
		"id":    "1",
		"media": []any{"https://a/1.jpg", map[string]any{"url": "https://a/2.jpg"}},
		"entities": map[string]any{
			"media": []any{map[string]any{"media_url_https": "https://ignored"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a/1.jpg", "https://a/2.jpg"}, rec.Media)
}
