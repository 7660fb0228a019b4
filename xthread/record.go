package xthread

import (
	"errors"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread/logging"
)

const (
	UnknownUser        = "unknown_user"
	UnknownReplyAuthor = "unknown_reply_author"
	UnknownThread      = "unknown_thread"
)

var (
	// ErrMissingID is returned by Extract when no identifier alias is present.
	ErrMissingID = errors.New("record has no recognized id key")
	// ErrMissingAuthor is informational; Extract never returns it, records carry AuthorResolved=false.
	ErrMissingAuthor = errors.New("record has no recognized author key")
)

// Record is one normalized post. It is written once to disk and never mutated afterwards.
type Record struct {
	ID             string `json:"tweet_id"`
	Author         Author `json:"author"`
	AuthorResolved bool   `json:"author_resolved"`
	Text           string `json:"text"`
	Timestamp      string `json:"timestamp,omitempty"`

	URLs     []string `json:"urls"`
	Hashtags []string `json:"hashtags"`
	Mentions []string `json:"mentions"`
	Media    []string `json:"media"`

	IsReply       bool   `json:"is_reply"`
	ReplyToHandle string `json:"reply_to,omitempty"`
	ReplyToID     string `json:"reply_to_id,omitempty"`

	PostURL        string `json:"postUrl"`
	ReplyURL       string `json:"replyUrl"`
	ConversationID string `json:"conversationId"`

	Counts
}

type Author struct {
	Handle          string `json:"screen_name"`
	Name            string `json:"name,omitempty"`
	FollowersCount  int64  `json:"followers_count"`
	FavouritesCount int64  `json:"favourites_count"`
	FriendsCount    int64  `json:"friends_count"`
	Description     string `json:"description,omitempty"`
}

type Counts struct {
	ReplyCount     int64 `json:"replyCount"`
	QuoteCount     int64 `json:"quoteCount"`
	RepostCount    int64 `json:"repostCount"`
	FavouriteCount int64 `json:"favouriteCount"`
	ViewsCount     int64 `json:"viewsCount"`
}

var (
	idRules = fields("id_str", "rest_id", "id", "tweetId", "tweet_id", "postId", "post_id", "statusId", "status_id", "replyId")

	authorRules = []accessor{
		nested("user", "screen_name"),
		nested("author", "screen_name"),
		nested("author", "username"),
		nested("author", "name"),
		field("username"),
		field("user_screen_name"),
		field("screen_name"),
		field("userName"),
		handleFromReplyURL,
		field("author"),
	}

	textRules      = fields("full_text", "text", "content", "tweet_text", "replyText", "body", "message")
	timestampRules = fields("created_at", "date", "timestamp", "time", "createdAt")

	replyFlagKeys  = []string{"in_reply_to_status_id", "in_reply_to_status_id_str", "isReply", "is_reply", "replyTo", "reply_to"}
	replyToHandles = fields("in_reply_to_screen_name", "replyToUser", "reply_to_user", "replyToScreenName", "reply_to_screen_name")
	replyToIDs     = fields("in_reply_to_status_id_str", "in_reply_to_status_id", "replyToId", "reply_to_id", "replyToTweetId", "reply_to_tweet_id")

	conversationRules = fields("conversationId", "conversation_id", "conversation_id_str")
)

var nonHandleSegments = map[string]bool{"undefined": true, "status": true, "i": true, "web": true}

// handleFromReplyURL takes the first path segment of an x.com or twitter.com replyUrl.
func handleFromReplyURL(raw map[string]any) (string, bool) {
	s, ok := scalar(raw["replyUrl"])
	if !ok {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "mobile.")
	if host != "x.com" && host != "twitter.com" {
		return "", false
	}
	seg, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if seg == "" || nonHandleSegments[seg] {
		return "", false
	}
	return seg, true
}

// Extract normalizes one raw record. It fails only with ErrMissingID; an unresolved author becomes
// UnknownUser with AuthorResolved=false.
func Extract(raw map[string]any) (Record, error) {
	return extract(raw, UnknownUser, nil)
}

func extract(raw map[string]any, authorFallback string, log logrus.FieldLogger) (Record, error) {
	log = logging.Or(log)
	if raw == nil {
		return Record{}, ErrMissingID
	}

	id, ok := firstOf(raw, idRules)
	if !ok {
		log.WithField("keys", keysOf(raw)).Warn("record has no id")
		return Record{}, ErrMissingID
	}

	rec := Record{ID: id}
	entry := log.WithField("record_id", id)

	if handle, ok := firstOf(raw, authorRules); ok {
		rec.Author.Handle = strings.TrimPrefix(handle, "@")
		rec.AuthorResolved = true
	} else {
		entry.WithError(ErrMissingAuthor).WithField("fallback", authorFallback).Warn("author not resolved")
		rec.Author.Handle = authorFallback
	}
	fillAuthorDetails(&rec.Author, raw)

	if text, ok := firstOf(raw, textRules); ok {
		rec.Text = text
	} else {
		entry.Warn("record has no text")
	}
	rec.Timestamp, _ = firstOf(raw, timestampRules)

	entities, _ := asMap(raw["entities"])
	rec.URLs = entityStrings(entities, "urls", "", "expanded_url", "url")
	rec.Hashtags = entityStrings(entities, "hashtags", "#", "text", "tag")
	rec.Mentions = entityStrings(entities, "user_mentions", "@", "screen_name", "username")
	rec.Media = mediaURLs(raw, entities)

	for _, k := range replyFlagKeys {
		if truthy(raw[k]) {
			rec.IsReply = true
			break
		}
	}
	rec.ReplyToHandle, _ = firstOf(raw, replyToHandles)
	rec.ReplyToID, _ = firstOf(raw, replyToIDs)

	canonical := StatusURL(rec.Author.Handle, id)
	rec.PostURL = canonical
	if s, ok := scalar(raw["postUrl"]); ok {
		rec.PostURL = s
	}
	rec.ReplyURL = canonical
	if s, ok := scalar(raw["replyUrl"]); ok {
		rec.ReplyURL = s
	}
	rec.ConversationID = id
	if s, ok := firstOf(raw, conversationRules); ok {
		rec.ConversationID = s
	}

	rec.Counts = Counts{
		ReplyCount:     firstCount(raw, "replyCount", "reply_count"),
		QuoteCount:     firstCount(raw, "quoteCount", "quote_count"),
		RepostCount:    firstCount(raw, "repostCount", "repost_count", "retweetCount", "retweet_count"),
		FavouriteCount: firstCount(raw, "favouriteCount", "favorite_count", "likeCount", "like_count"),
		ViewsCount:     firstCount(raw, "viewsCount", "views_count", "viewCount"),
	}
	return rec, nil
}

func fillAuthorDetails(a *Author, raw map[string]any) {
	src, ok := asMap(raw["user"])
	if !ok {
		src, ok = asMap(raw["author"])
	}
	if !ok {
		return
	}
	a.Name, _ = firstOf(src, fields("name", "displayName", "display_name"))
	a.FollowersCount = firstCount(src, "followers_count", "followersCount", "followers")
	a.FavouritesCount = firstCount(src, "favourites_count", "favouritesCount", "favoritesCount")
	a.FriendsCount = firstCount(src, "friends_count", "friendsCount", "following")
	a.Description, _ = firstOf(src, fields("description", "bio"))
}

// entityStrings collects one string per entity object (or bare string), prefixing it when needed.
func entityStrings(entities map[string]any, key, prefix string, valueKeys ...string) []string {
	out := []string{}
	for _, item := range asSlice(entities[key]) {
		var v string
		var ok bool
		if m, isMap := asMap(item); isMap {
			v, ok = firstOf(m, fields(valueKeys...))
		} else {
			v, ok = scalar(item)
		}
		if !ok {
			continue
		}
		if prefix != "" && !strings.HasPrefix(v, prefix) {
			v = prefix + v
		}
		out = append(out, v)
	}
	return out
}

func mediaURLs(raw, entities map[string]any) []string {
	out := []string{}
	if items := asSlice(raw["media"]); len(items) > 0 {
		for _, item := range items {
			if m, ok := asMap(item); ok {
				if v, ok := firstOf(m, fields("media_url_https", "url", "media_url", "src")); ok {
					out = append(out, v)
				}
				continue
			}
			if v, ok := scalar(item); ok {
				out = append(out, v)
			}
		}
		return out
	}
	for _, item := range asSlice(entities["media"]) {
		if m, ok := asMap(item); ok {
			if v, ok := scalar(m["media_url_https"]); ok {
				out = append(out, v)
			}
		}
	}
	return out
}

func keysOf(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
