package script

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Seconds accepts JSON numbers and numeric strings ("15", "15s"); anything else decodes as 0.
type Seconds float64

func (s *Seconds) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*s = Seconds(f)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		str = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(str)), "s")
		if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			*s = Seconds(f)
			return nil
		}
	}
	*s = 0
	return nil
}

// Cue is one visual instruction. Timestamps are seconds from the start of the video.
type Cue struct {
	Timestamp      Seconds `json:"timestamp"`
	Duration       Seconds `json:"duration"`
	Description    string  `json:"description"`
	Type           string  `json:"type,omitempty"`
	TweetReference string  `json:"tweet_reference,omitempty"`
}

// UnmarshalJSON also accepts a bare string, which becomes the description.
func (c *Cue) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = Cue{Description: s}
		return nil
	}
	type plain Cue
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*c = Cue(p)
	return nil
}

type Section struct {
	Text              string   `json:"text"`
	DurationSeconds   Seconds  `json:"duration_seconds"`
	VisualCues        []Cue    `json:"visual_cues"`
	VisualSuggestions []string `json:"visual_suggestions,omitempty"`
}

type Metadata struct {
	TotalDuration Seconds  `json:"total_duration"`
	Style         string   `json:"style"`
	KeyPoints     []string `json:"key_points"`
	Hashtags      []string `json:"hashtags"`
	Placeholder   bool     `json:"placeholder,omitempty"`
	ParseError    string   `json:"parse_error,omitempty"`
	RawContent    string   `json:"raw_content,omitempty"`
}

type TimelineEvent struct {
	Start          Seconds `json:"start"`
	End            Seconds `json:"end"`
	Section        string  `json:"section"`
	Type           string  `json:"type"`
	Description    string  `json:"description"`
	TweetReference string  `json:"tweet_reference,omitempty"`
}

type TweetReference struct {
	Author    string `json:"author"`
	Excerpt   string `json:"excerpt"`
	VideoFile string `json:"video_file,omitempty"`
}

type Transition struct {
	At    Seconds `json:"at"`
	From  string  `json:"from"`
	To    string  `json:"to"`
	Style string  `json:"style"`
}

type VisualTimeline struct {
	TotalDuration     Seconds                   `json:"total_duration"`
	TimelineEvents    []TimelineEvent           `json:"timeline_events"`
	TweetReferences   map[string]TweetReference `json:"tweet_references"`
	VisualTransitions []Transition              `json:"visual_transitions"`
}

// SourceMetadata records where an artifact came from and how it was generated.
type SourceMetadata struct {
	ThreadID     string `json:"thread_id"`
	Author       string `json:"author"`
	ThreadDir    string `json:"thread_dir,omitempty"`
	Model        string `json:"model"`
	Attempts     int    `json:"attempts"`
	Style        string `json:"style"`
	Duration     int    `json:"target_duration"`
	Replies      int    `json:"replies_included"`
	ParseStage   string `json:"parse_stage"`
	GenerationID string `json:"generation_id"`
	GeneratedAt  string `json:"generated_at"`
}

// Artifact is the generated short-form video script persisted as tiktok_script.json.
type Artifact struct {
	Hook           Section         `json:"hook"`
	Intro          Section         `json:"intro"`
	Explainer      Section         `json:"explainer"`
	Metadata       Metadata        `json:"metadata"`
	VisualTimeline *VisualTimeline `json:"visual_timeline,omitempty"`
	SourceMetadata *SourceMetadata `json:"source_metadata,omitempty"`
}

// modelArtifact is the subset a model is asked to produce; its schema goes into the prompt.
type modelArtifact struct {
	Hook      Section  `json:"hook"`
	Intro     Section  `json:"intro"`
	Explainer Section  `json:"explainer"`
	Metadata  Metadata `json:"metadata"`
}

const (
	SectionHook      = "hook"
	SectionIntro     = "intro"
	SectionExplainer = "explainer"
)

// sections returns the three fixed sections in playback order.
func (a *Artifact) sections() []namedSection {
	return []namedSection{
		{SectionHook, &a.Hook, DefaultHookSeconds},
		{SectionIntro, &a.Intro, DefaultIntroSeconds},
		{SectionExplainer, &a.Explainer, DefaultExplainerSeconds},
	}
}

type namedSection struct {
	name     string
	section  *Section
	fallback Seconds
}
