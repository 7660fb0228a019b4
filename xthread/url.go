package xthread

import (
	"fmt"
	"regexp"
	"strings"
)

var tweetIDPattern = regexp.MustCompile(`(?:twitter\.com|x\.com)/\w+/status/(\d+)`)

// ParseTweetURL normalizes a tweet URL (adding https:// when the scheme is missing) and returns the
// status id it points at.
func ParseTweetURL(raw string) (normalized, tweetID string, err error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", "", fmt.Errorf("ParseTweetURL: empty url")
	}
	if !strings.HasPrefix(s, "http") {
		s = "https://" + s
	}
	m := tweetIDPattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", fmt.Errorf("ParseTweetURL: no status id in %q", raw)
	}
	return s, m[1], nil
}

// StatusURL is the canonical x.com link for a post.
func StatusURL(handle, id string) string {
	return "https://x.com/" + handle + "/status/" + id
}
