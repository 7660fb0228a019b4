package xthread

import (
	"sort"
	"strings"
)

// VideoReference points at the single best rendition of a record's video.
type VideoReference struct {
	RecordID   string `json:"record_id"`
	URL        string `json:"url"`
	Bitrate    int64  `json:"bitrate,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

type variant struct {
	url         string
	contentType string
	bitrate     int64
}

func (v variant) isMP4() bool {
	return strings.EqualFold(v.contentType, "video/mp4")
}

var resolutionRanks = []struct {
	token string
	rank  int
}{
	{"3840x2160", 4000},
	{"1920x1080", 3000},
	{"1280x720", 2000},
	{"640x360", 1000},
	{"480x270", 500},
}

func resolutionRank(u string) int {
	for _, r := range resolutionRanks {
		if strings.Contains(u, r.token) {
			return r.rank
		}
	}
	return 0
}

// VideoResolution returns the path segment after /vid/avc1/ (for example "1280x720"), or "".
func VideoResolution(u string) string {
	_, rest, ok := strings.Cut(u, "/vid/avc1/")
	if !ok {
		return ""
	}
	seg, _, _ := strings.Cut(rest, "/")
	return seg
}

// BestVideo picks the best video variant URL in raw. mediaDetails variants win when they carry a
// bitrate; otherwise video.variants are ranked by bitrate, then by resolution token. With no MP4 at
// all the first listed variant is used. ok is false when the record has no video.
func BestVideo(raw map[string]any) (v VideoReference, ok bool) {
	detailed := mp4Only(mediaDetailsVariants(raw))
	if best, ok := pickMP4(detailed); ok && best.bitrate > 0 {
		return toReference(best), true
	}

	flat := flatVariants(raw)
	if best, ok := pickMP4(mp4Only(flat)); ok {
		return toReference(best), true
	}
	if best, ok := pickMP4(detailed); ok {
		return toReference(best), true
	}
	for _, c := range flat {
		if c.url != "" {
			return toReference(c), true
		}
	}
	for _, c := range mediaDetailsVariants(raw) {
		if c.url != "" {
			return toReference(c), true
		}
	}
	return VideoReference{}, false
}

func toReference(v variant) VideoReference {
	return VideoReference{URL: v.url, Bitrate: v.bitrate, Resolution: VideoResolution(v.url)}
}

func mp4Only(vs []variant) []variant {
	out := make([]variant, 0, len(vs))
	for _, v := range vs {
		if v.isMP4() && v.url != "" {
			out = append(out, v)
		}
	}
	return out
}

// pickMP4 ranks by bitrate when any candidate declares one and by resolution token otherwise. The sort
// is stable so ties keep listing order.
func pickMP4(vs []variant) (variant, bool) {
	if len(vs) == 0 {
		return variant{}, false
	}
	ranked := append([]variant(nil), vs...)
	byBitrate := false
	for _, v := range ranked {
		if v.bitrate > 0 {
			byBitrate = true
			break
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if byBitrate {
			return ranked[i].bitrate > ranked[j].bitrate
		}
		return resolutionRank(ranked[i].url) > resolutionRank(ranked[j].url)
	})
	return ranked[0], true
}

func mediaDetailsVariants(raw map[string]any) []variant {
	var out []variant
	for _, item := range asSlice(raw["mediaDetails"]) {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		kind, _ := scalar(m["type"])
		if kind != "video" && kind != "animated_gif" {
			continue
		}
		info, _ := asMap(m["video_info"])
		for _, vv := range asSlice(info["variants"]) {
			if vm, ok := asMap(vv); ok {
				out = append(out, readVariant(vm))
			}
		}
	}
	return out
}

func flatVariants(raw map[string]any) []variant {
	video, ok := asMap(raw["video"])
	if !ok {
		return nil
	}
	var out []variant
	for _, vv := range asSlice(video["variants"]) {
		if vm, ok := asMap(vv); ok {
			out = append(out, readVariant(vm))
		}
	}
	return out
}

func readVariant(m map[string]any) variant {
	v := variant{}
	v.url, _ = firstOf(m, fields("url", "src"))
	v.contentType, _ = firstOf(m, fields("content_type", "type"))
	v.bitrate, _ = count(m["bitrate"])
	return v
}
