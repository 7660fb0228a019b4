package script

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"slices"
	"strings"
)

// ErrMalformedResponse describes model output that no repair stage could turn into a JSON object. It
// is recorded in placeholder metadata, never returned.
var ErrMalformedResponse = errors.New("malformed model response")

// Stage names, in cascade order.
const (
	StageDirect      = "direct"
	StageFenced      = "fenced"
	StageBraces      = "braces"
	StageRepaired    = "repaired"
	StageBalanced    = "balanced"
	StagePlaceholder = "placeholder"
)

// stage proposes candidate JSON texts for raw. Candidates are produced lazily and tried in order.
type stage struct {
	name       string
	candidates func(raw string) iter.Seq[string]
}

var cascade = []stage{
	{StageDirect, listed(directCandidates)},
	{StageFenced, listed(fencedCandidates)},
	{StageBraces, listed(braceCandidates)},
	{StageRepaired, listed(repairedCandidates)},
	{StageBalanced, balancedCandidates},
}

func listed(f func(string) []string) func(string) iter.Seq[string] {
	return func(raw string) iter.Seq[string] { return slices.Values(f(raw)) }
}

// Result is the outcome of Normalize. Document is the parsed JSON object (nil for placeholders).
type Result struct {
	Artifact    Artifact
	Document    map[string]any
	Stage       string
	Placeholder bool
}

// Normalize turns raw model output into an Artifact. It never fails: output that cannot be parsed
// becomes a placeholder artifact carrying the raw text in metadata.raw_content.
func Normalize(raw string) Result {
	doc, candidate, stageName, err := ParseDocument(raw)
	if err != nil {
		return Result{Artifact: Placeholder(raw, err), Stage: StagePlaceholder, Placeholder: true}
	}

	var a Artifact
	if err := json.Unmarshal([]byte(candidate), &a); err != nil {
		err = fmt.Errorf("%w: %s stage: decode artifact: %v", ErrMalformedResponse, stageName, err)
		return Result{Artifact: Placeholder(raw, err), Stage: StagePlaceholder, Placeholder: true}
	}
	ValidateTiming(&a)
	return Result{Artifact: a, Document: doc, Stage: stageName, Placeholder: a.Metadata.Placeholder}
}

// ParseDocument runs the repair cascade and returns the first candidate that decodes as a JSON object,
// along with the stage that produced it.
func ParseDocument(raw string) (doc map[string]any, candidate, stageName string, err error) {
	for _, st := range cascade {
		for c := range st.candidates(raw) {
			if m, ok := decodeObject(c); ok {
				return m, c, st.name, nil
			}
		}
	}
	return nil, "", "", fmt.Errorf("%w: no stage produced a JSON object (len=%d)", ErrMalformedResponse, len(raw))
}

func decodeObject(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s[0] != '{' {
		return nil, false
	}
	var m map[string]any
	dec := json.NewDecoder(strings.NewReader(s))
	if err := dec.Decode(&m); err != nil || m == nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return m, true
}

func directCandidates(raw string) []string {
	return []string{strings.TrimSpace(raw)}
}

var fencePatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n```"),
	regexp.MustCompile("(?s)```\\s*\\n(.*?)\\n```"),
	regexp.MustCompile("(?s)```json(.*?)```"),
	regexp.MustCompile("(?s)```(.*?)```"),
}

func fencedCandidates(raw string) []string {
	var out []string
	for _, re := range fencePatterns {
		for _, m := range re.FindAllStringSubmatch(raw, -1) {
			if s := strings.TrimSpace(m[1]); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// braceSlice returns raw from the first '{' to the last '}'.
func braceSlice(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func braceCandidates(raw string) []string {
	if s, ok := braceSlice(raw); ok {
		return []string{s}
	}
	return nil
}

func repairedCandidates(raw string) []string {
	s, ok := braceSlice(raw)
	if !ok {
		return nil
	}
	return []string{repairSyntax(s)}
}

// balancedCandidates closes a truncated object by appending the missing braces, then falls back to
// trimming trailing lines until the open and close brace counts agree. Prefixes are slices of the
// input, so only the candidate being tried is materialized.
func balancedCandidates(raw string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := strings.IndexByte(raw, '{')
		if start == -1 {
			return
		}
		text := strings.TrimSpace(raw[start:])
		ends, depth := linePrefixes(text)

		if deficit := depth[len(depth)-1]; deficit > 0 {
			closers := strings.Repeat("}", deficit)
			if !yield(text+closers) || !yield(repairSyntax(strings.TrimRight(text, ", \n\t")+closers)) {
				return
			}
		}
		for i := len(ends) - 1; i >= 0; i-- {
			if depth[i] != 0 {
				continue
			}
			if !yield(text[:ends[i]]) || !yield(repairSyntax(text[:ends[i]])) {
				return
			}
		}
		// Last resort for output cut off mid-value: drop the broken tail line by line and close what
		// is still open.
		for i := len(ends) - 2; i >= 0; i-- {
			if depth[i] <= 0 {
				continue
			}
			partial := strings.TrimRight(text[:ends[i]], ", \n\t")
			if !yield(repairSyntax(partial + strings.Repeat("}", depth[i]))) {
				return
			}
		}
	}
}

// linePrefixes returns, for each line of text, the offset where the line ends and the brace depth
// ('{' minus '}') of the text up to that point.
func linePrefixes(text string) (ends, depth []int) {
	d := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			d++
		case '}':
			d--
		case '\n':
			ends = append(ends, i)
			depth = append(depth, d)
		}
	}
	return append(ends, len(text)), append(depth, d)
}

var (
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
	hashtagArray  = regexp.MustCompile(`(?s)("hashtags"\s*:\s*\[)(.*?)(\])`)
)

// repairSyntax fixes the two breakages models produce most: hashtag arrays with unquoted or
// unprefixed entries, and trailing commas before a closing bracket.
func repairSyntax(s string) string {
	s = hashtagArray.ReplaceAllStringFunc(s, func(m string) string {
		parts := hashtagArray.FindStringSubmatch(m)
		return parts[1] + repairHashtagList(parts[2]) + parts[3]
	})
	return trailingComma.ReplaceAllString(s, "$1")
}

// repairHashtagList rewrites the body of a hashtags array so every entry is a quoted "#tag". Bodies
// holding anything but flat tags are returned unchanged.
func repairHashtagList(body string) string {
	if strings.ContainsAny(body, "{}:[") {
		return body
	}
	var tags []string
	for _, tok := range strings.Split(body, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if len(tok) >= 2 && strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) {
			tok = tok[1 : len(tok)-1]
		} else if strings.Contains(tok, `"`) {
			return body
		}
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if !strings.HasPrefix(tok, "#") {
			tok = "#" + tok
		}
		tags = append(tags, `"`+tok+`"`)
	}
	if len(tags) == 0 {
		return body
	}
	return strings.Join(tags, ", ")
}

// Placeholder builds the artifact returned when parsing fails. Its JSON form is itself a valid
// artifact, so normalizing it again yields the same structure.
func Placeholder(raw string, cause error) Artifact {
	msg := ErrMalformedResponse.Error()
	if cause != nil {
		msg = cause.Error()
	}
	a := Artifact{
		Hook: Section{
			Text:            "Script generation produced output that could not be parsed.",
			DurationSeconds: DefaultHookSeconds,
		},
		Intro: Section{
			Text:            "The raw model response is stored in metadata.raw_content for manual review.",
			DurationSeconds: DefaultIntroSeconds,
		},
		Explainer: Section{
			Text:            "Regenerate the script or edit the raw content into the hook, intro and explainer sections.",
			DurationSeconds: DefaultExplainerSeconds,
		},
		Metadata: Metadata{
			TotalDuration: DefaultTotalSeconds,
			Style:         "unknown",
			Placeholder:   true,
			ParseError:    msg,
			RawContent:    raw,
		},
	}
	ValidateTiming(&a)
	return a
}

// Marshal renders an artifact the way it is persisted.
func Marshal(a Artifact) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
