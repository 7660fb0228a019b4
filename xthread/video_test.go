package xthread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mediaDetails(variants ...map[string]any) map[string]any {
	vs := make([]any, 0, len(variants))
	for _, v := range variants {
		vs = append(vs, v)
	}
	return map[string]any{
		"mediaDetails": []any{
			map[string]any{"type": "photo"},
			map[string]any{"type": "video", "video_info": map[string]any{"variants": vs}},
		},
	}
}

func TestBestVideo_MaxBitrate(t *testing.T) {
	t.Parallel()

	raw := mediaDetails(
		map[string]any{"content_type": "application/x-mpegURL", "url": "https://v/pl.m3u8"},
		map[string]any{"content_type": "video/mp4", "bitrate": float64(832000), "url": "https://v/vid/avc1/640x360/a.mp4"},
		map[string]any{"content_type": "video/mp4", "bitrate": float64(2176000), "url": "https://v/vid/avc1/1280x720/b.mp4"},
		map[string]any{"content_type": "video/mp4", "bitrate": float64(256000), "url": "https://v/vid/avc1/480x270/c.mp4"},
	)
	v, ok := BestVideo(raw)
	require.True(t, ok)
	assert.Equal(t, "https://v/vid/avc1/1280x720/b.mp4", v.URL)
	assert.Equal(t, int64(2176000), v.Bitrate)
	assert.Equal(t, "1280x720", v.Resolution)
}

func TestBestVideo_BitrateTieFirstListed(t *testing.T) {
	t.Parallel()

	raw := mediaDetails(
		map[string]any{"content_type": "video/mp4", "bitrate": float64(100), "url": "https://v/low.mp4"},
		map[string]any{"content_type": "video/mp4", "bitrate": float64(900), "url": "https://v/first.mp4"},
		map[string]any{"content_type": "video/mp4", "bitrate": float64(900), "url": "https://v/second.mp4"},
	)
	v, ok := BestVideo(raw)
	require.True(t, ok)
	assert.Equal(t, "https://v/first.mp4", v.URL)
}

func TestBestVideo_ResolutionRanking(t *testing.T) {
	t.Parallel()

	tokens := []string{"480x270", "640x360", "1280x720", "1920x1080", "3840x2160"}
	// Each prefix of the ascending list must select its last (largest) token.
	for i := range tokens {
		var variants []any
		for _, tok := range tokens[:i+1] {
			variants = append(variants, map[string]any{"type": "video/mp4", "src": "https://v/vid/avc1/" + tok + "/x.mp4"})
		}
		raw := map[string]any{"video": map[string]any{"variants": variants}}
		v, ok := BestVideo(raw)
		require.True(t, ok)
		assert.Equal(t, tokens[i], v.Resolution)
	}

	raw := map[string]any{"video": map[string]any{"variants": []any{
		map[string]any{"type": "video/mp4", "src": "https://v/unknown.mp4"},
		map[string]any{"type": "video/mp4", "src": "https://v/vid/avc1/480x270/x.mp4"},
	}}}
	v, ok := BestVideo(raw)
	require.True(t, ok)
	assert.Equal(t, "https://v/vid/avc1/480x270/x.mp4", v.URL)
}

func TestBestVideo_FlatBitrateBeatsResolution(t *testing.T) {
	t.Parallel()

	raw := map[string]any{"video": map[string]any{"variants": []any{
		map[string]any{"type": "video/mp4", "src": "https://v/vid/avc1/1920x1080/a.mp4", "bitrate": float64(100)},
		map[string]any{"type": "video/mp4", "src": "https://v/vid/avc1/640x360/b.mp4", "bitrate": float64(500)},
	}}}
	v, ok := BestVideo(raw)
	require.True(t, ok)
	assert.Equal(t, "https://v/vid/avc1/640x360/b.mp4", v.URL)
}

func TestBestVideo_MediaDetailsWithoutBitrateFallsBackToFlat(t *testing.T) {
	t.Parallel()

	raw := mediaDetails(map[string]any{"content_type": "video/mp4", "url": "https://v/details.mp4"})
	raw["video"] = map[string]any{"variants": []any{
		map[string]any{"type": "video/mp4", "src": "https://v/flat.mp4"},
	}}
	v, ok := BestVideo(raw)
	require.True(t, ok)
	assert.Equal(t, "https://v/flat.mp4", v.URL)

	delete(raw, "video")
	v, ok = BestVideo(raw)
	require.True(t, ok)
	assert.Equal(t, "https://v/details.mp4", v.URL)
}

func TestBestVideo_NoMP4UsesFirstVariant(t *testing.T) {
	t.Parallel()

	raw := map[string]any{"video": map[string]any{"variants": []any{
		map[string]any{"type": "application/x-mpegURL", "src": "https://v/a.m3u8"},
		map[string]any{"type": "video/webm", "src": "https://v/b.webm"},
	}}}
	v, ok := BestVideo(raw)
	require.True(t, ok)
	assert.Equal(t, "https://v/a.m3u8", v.URL)
}

func TestBestVideo_None(t *testing.T) {
	t.Parallel()

	_, ok := BestVideo(map[string]any{"id": "1", "text": "no video"})
	assert.False(t, ok)
	_, ok = BestVideo(map[string]any{"video": nil, "mediaDetails": []any{map[string]any{"type": "photo"}}})
	assert.False(t, ok)
}

func TestVideoResolution(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1920x1080", VideoResolution("https://video.twimg.com/ext_tw_video/1/pu/vid/avc1/1920x1080/abc.mp4?tag=12"))
	assert.Equal(t, "", VideoResolution("https://video.twimg.com/x.mp4"))
}
