package settings

import (
	"flag"
	"strings"
)

// Visited returns the names of the flags given explicitly on the command line.
func Visited(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// SplitList splits a comma separated flag value, dropping blanks. An empty value yields an empty,
// non-nil slice so callers can tell "given but empty" from "not given".
func SplitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ScriptFlags are the script generation options shared by every command that talks to the model.
type ScriptFlags struct {
	Model          string
	FallbackModels []string
	Style          string
	Duration       int
	OpenRouterKey  string
	AllowAnyModel  bool
	NoReplies      bool

	fallbacks string
}

// Register binds the script flags on fs. def supplies the built-in defaults shown in -h.
func (s *ScriptFlags) Register(fs *flag.FlagSet, def ScriptFlags) {
	*s = def
	fs.StringVar(&s.Model, "model", def.Model, "OpenRouter model used for script generation")
	fs.StringVar(&s.fallbacks, "fallback-models", strings.Join(def.FallbackModels, ","), "Comma separated models tried in order when the primary model fails")
	fs.StringVar(&s.Style, "style", def.Style, "Script style (engaging, educational, viral, professional)")
	fs.IntVar(&s.Duration, "duration", def.Duration, "Target script duration in seconds")
	fs.StringVar(&s.OpenRouterKey, "openrouter-key", "", "OpenRouter API key (overrides "+EnvOpenRouterKey+")")
	fs.BoolVar(&s.AllowAnyModel, "allow-any-model", false, "Accept models outside the built-in list")
	fs.BoolVar(&s.NoReplies, "no-replies", false, "Only use the author's own posts for the script")
}

// Resolve fills every flag that was not given explicitly from the environment, then the TOML file.
// Call after fs.Parse.
func (s *ScriptFlags) Resolve(set map[string]bool, file ScriptSection) {
	if !set["model"] {
		s.Model = First(Env(EnvModel), file.Model, s.Model)
	}
	if set["fallback-models"] {
		s.FallbackModels = SplitList(s.fallbacks)
	} else if len(file.FallbackModels) > 0 {
		s.FallbackModels = file.FallbackModels
	}
	if !set["style"] {
		s.Style = First(file.Style, s.Style)
	}
	if !set["duration"] {
		s.Duration = FirstPositive(file.Duration, s.Duration)
	}
	if !set["openrouter-key"] {
		s.OpenRouterKey = OpenRouterKey()
	}
}
