package xthread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTweetURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, url, id string
	}{
		{"https://x.com/jack/status/20", "https://x.com/jack/status/20", "20"},
		{"x.com/jack/status/20?s=46", "https://x.com/jack/status/20?s=46", "20"},
		{"https://twitter.com/jack/status/1790000000000000001/photo/1", "https://twitter.com/jack/status/1790000000000000001/photo/1", "1790000000000000001"},
	}
	for _, tc := range cases {
		u, id, err := ParseTweetURL(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.url, u)
		assert.Equal(t, tc.id, id)
	}

	for _, bad := range []string{"", "https://x.com/jack", "https://example.com/jack/status/1"} {
		_, _, err := ParseTweetURL(bad)
		assert.Error(t, err, bad)
	}
}
