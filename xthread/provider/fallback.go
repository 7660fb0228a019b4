package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/theimaginaryfoundation/x-thread-dl/xthread/logging"
)

// DefaultFallbackModels are tried after the primary model, in order.
var DefaultFallbackModels = []string{
	"deepseek/deepseek-r1-0528:free",
	"qwen/qwen-2.5-72b-instruct:free",
	"meta-llama/llama-3.1-8b-instruct",
	"openai/gpt-4o-mini",
	"anthropic/claude-3-haiku",
}

// ErrProviderFault marks gateway-side failures (502, Bad Gateway, "Provider returned error").
var ErrProviderFault = errors.New("llm provider fault")

// ErrRateLimited marks rate limiting by the gateway or the upstream model.
var ErrRateLimited = errors.New("llm rate limited")

type ErrorClass int

const (
	ClassOther ErrorClass = iota
	ClassProviderFault
	ClassRateLimit
)

func (c ErrorClass) String() string {
	switch c {
	case ClassProviderFault:
		return "provider_fault"
	case ClassRateLimit:
		return "rate_limit"
	}
	return "other"
}

// Classify buckets a generation error by its message.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassOther
	}
	msg := err.Error()
	if strings.Contains(msg, "502") || strings.Contains(msg, "Bad Gateway") || strings.Contains(msg, "Provider returned error") {
		return ClassProviderFault
	}
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "rate limit") || strings.Contains(lower, "429") || strings.Contains(lower, "too many requests") {
		return ClassRateLimit
	}
	return ClassOther
}

// Candidates returns primary followed by fallbacks with duplicates and blanks removed, keeping the
// first occurrence.
func Candidates(primary string, fallbacks []string) []string {
	seen := make(map[string]bool, len(fallbacks)+1)
	out := make([]string, 0, len(fallbacks)+1)
	for _, m := range append([]string{primary}, fallbacks...) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// Result is a successful generation and the model that produced it.
type Result struct {
	Text     string
	Model    string
	Attempts int
}

type FallbackOptions struct {
	Logger logrus.FieldLogger
}

// GenerateWithFallback tries each candidate once, in order, and returns the first success. Errors on
// non-final candidates move on to the next; the final candidate's error is returned.
func GenerateWithFallback(ctx context.Context, gen Generator, candidates []string, req Request, opts FallbackOptions) (Result, error) {
	if len(candidates) == 0 {
		return Result{}, errors.New("GenerateWithFallback: no candidate models")
	}
	log := logging.Or(opts.Logger)

	var lastErr error
	for i, model := range candidates {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("GenerateWithFallback: %w", err)
		}
		text, err := gen.Generate(ctx, model, req)
		if err == nil {
			if i > 0 {
				log.WithFields(logrus.Fields{"model": model, "attempt": i + 1}).Info("fallback model succeeded")
			}
			return Result{Text: text, Model: model, Attempts: i + 1}, nil
		}
		lastErr = err
		class := Classify(err)
		entry := log.WithError(err).WithFields(logrus.Fields{"model": model, "class": class.String(), "stage": "generate"})
		if i < len(candidates)-1 {
			entry.Warn("model failed, trying next candidate")
			continue
		}
		entry.Error("last candidate model failed")
	}

	switch Classify(lastErr) {
	case ClassProviderFault:
		return Result{}, fmt.Errorf("GenerateWithFallback: %s: %w: %w", candidates[len(candidates)-1], ErrProviderFault, lastErr)
	case ClassRateLimit:
		return Result{}, fmt.Errorf("GenerateWithFallback: %s: %w: %w", candidates[len(candidates)-1], ErrRateLimited, lastErr)
	}
	return Result{}, fmt.Errorf("GenerateWithFallback: %s: %w", candidates[len(candidates)-1], lastErr)
}
