package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel      = "deepseek/deepseek-r1-0528:free"
)

// AvailableModels are the models the CLIs accept without -allow-any-model.
var AvailableModels = []string{
	"deepseek/deepseek-r1-0528:free",
	"anthropic/claude-3.5-sonnet",
	"anthropic/claude-3-haiku",
	"openai/gpt-4o",
	"openai/gpt-4o-mini",
	"meta-llama/llama-3.1-8b-instruct",
	"google/gemini-pro-1.5",
	"qwen/qwen-2.5-72b-instruct:free",
	"microsoft/phi-3-medium-4k-instruct:free",
}

func IsAvailableModel(m string) bool {
	for _, a := range AvailableModels {
		if a == m {
			return true
		}
	}
	return false
}

// Request is one chat completion: a system and a user message.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
	JSONMode    bool
}

// Generator issues exactly one completion request against one model.
type Generator interface {
	Generate(ctx context.Context, model string, req Request) (string, error)
}

type OpenRouterOptions struct {
	APIKey  string
	BaseURL string
	Referer string
	Title   string
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// OpenRouter talks to the OpenRouter chat completions endpoint through the OpenAI client. SDK level
// retries are disabled; recovery is model substitution in GenerateWithFallback.
type OpenRouter struct {
	client openai.Client
}

func NewOpenRouter(opts OpenRouterOptions) (*OpenRouter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("NewOpenRouter: missing api key")
	}
	base := opts.BaseURL
	if base == "" {
		base = OpenRouterBaseURL
	}
	clientOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(base),
		option.WithMaxRetries(0),
	}
	if opts.Referer != "" {
		clientOpts = append(clientOpts, option.WithHeader("HTTP-Referer", opts.Referer))
	}
	if opts.Title != "" {
		clientOpts = append(clientOpts, option.WithHeader("X-Title", opts.Title))
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return &OpenRouter{client: openai.NewClient(clientOpts...)}, nil
}

func (o *OpenRouter) Generate(ctx context.Context, model string, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		Model: model,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("Generate: %s: empty choices", model)
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("Generate: %s: empty content", model)
	}
	return out, nil
}
