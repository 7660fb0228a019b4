package script

import (
	"math"
	"strings"
)

const (
	DefaultHookSeconds      Seconds = 15
	DefaultIntroSeconds     Seconds = 15
	DefaultExplainerSeconds Seconds = 30
	DefaultTotalSeconds             = 60

	defaultCueSeconds Seconds = 3
)

// ValidateTiming repairs section durations, clamps every cue into its section window
// [start, start+duration) and rebuilds visual_timeline.timeline_events. Running it twice is a no-op.
func ValidateTiming(a *Artifact) {
	var offset Seconds
	var events []TimelineEvent
	var boundaries []Transition

	secs := a.sections()
	for i, ns := range secs {
		s := ns.section
		if s.DurationSeconds <= 0 || math.IsNaN(float64(s.DurationSeconds)) {
			s.DurationSeconds = ns.fallback
		}
		start, end := offset, offset+s.DurationSeconds

		if len(s.VisualCues) == 0 && len(s.VisualSuggestions) > 0 {
			s.VisualCues = cuesFromSuggestions(s.VisualSuggestions, start, s.DurationSeconds)
		}
		if s.VisualCues == nil {
			s.VisualCues = []Cue{}
		}
		for j := range s.VisualCues {
			clampCue(&s.VisualCues[j], start, end)
		}

		events = append(events, TimelineEvent{
			Start:       start,
			End:         end,
			Section:     ns.name,
			Type:        "section",
			Description: firstLine(s.Text),
		})
		for _, c := range s.VisualCues {
			kind := c.Type
			if kind == "" {
				kind = "visual"
			}
			events = append(events, TimelineEvent{
				Start:          c.Timestamp,
				End:            c.Timestamp + c.Duration,
				Section:        ns.name,
				Type:           kind,
				Description:    c.Description,
				TweetReference: c.TweetReference,
			})
		}
		if i > 0 {
			boundaries = append(boundaries, Transition{At: start, From: secs[i-1].name, To: ns.name, Style: "cut"})
		}
		offset = end
	}

	if a.Metadata.TotalDuration <= 0 {
		a.Metadata.TotalDuration = offset
	}
	if a.Metadata.KeyPoints == nil {
		a.Metadata.KeyPoints = []string{}
	}
	a.Metadata.Hashtags = normalizeHashtags(a.Metadata.Hashtags)

	if a.VisualTimeline == nil {
		a.VisualTimeline = &VisualTimeline{}
	}
	tl := a.VisualTimeline
	tl.TotalDuration = offset
	tl.TimelineEvents = events
	if tl.TweetReferences == nil {
		tl.TweetReferences = map[string]TweetReference{}
	}
	if len(tl.VisualTransitions) == 0 {
		tl.VisualTransitions = boundaries
	}
	if tl.VisualTransitions == nil {
		tl.VisualTransitions = []Transition{}
	}
}

// clampCue moves a cue into [start, end) and trims its duration so it ends by end.
func clampCue(c *Cue, start, end Seconds) {
	if math.IsNaN(float64(c.Timestamp)) || c.Timestamp < start {
		c.Timestamp = start
	}
	if c.Timestamp >= end {
		last := end - 1
		if last < start {
			last = start
		}
		c.Timestamp = last
	}
	if c.Duration <= 0 || math.IsNaN(float64(c.Duration)) {
		c.Duration = defaultCueSeconds
	}
	if c.Timestamp+c.Duration > end {
		c.Duration = end - c.Timestamp
	}
}

func cuesFromSuggestions(suggestions []string, start, dur Seconds) []Cue {
	n := Seconds(len(suggestions))
	step := Seconds(math.Floor(float64(dur/n)*100) / 100)
	out := make([]Cue, 0, len(suggestions))
	for i, s := range suggestions {
		out = append(out, Cue{
			Timestamp:   start + Seconds(i)*step,
			Duration:    step,
			Description: s,
			Type:        "suggestion",
		})
	}
	return out
}

func normalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		out = append(out, t)
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > 80 {
		s = string(r[:80]) + "…"
	}
	return s
}
