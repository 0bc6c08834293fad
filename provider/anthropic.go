package provider

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig configures the Claude-backed completer. Credentials are
// passed explicitly at construction; there is no process-wide API key.
type AnthropicConfig struct {
	// APIKey authenticates against the Anthropic API. Empty falls back to
	// the SDK's environment lookup.
	APIKey string

	// Model selects the Claude model. Empty uses DefaultAnthropicModel.
	Model string
}

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicCompleter implements Completer on the Anthropic Messages API.
type AnthropicCompleter struct {
	client anthropic.Client
	model  string
}

// NewAnthropicCompleter builds a completer from explicit configuration.
func NewAnthropicCompleter(cfg AnthropicConfig) *AnthropicCompleter {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicCompleter{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// Complete sends the prompt as a single user message and returns the
// concatenated text blocks of the response. FrequencyPenalty and
// PresencePenalty have no Messages API equivalent and are ignored.
func (a *AnthropicCompleter) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 400
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(opts.Temperature),
	}
	if opts.TopP != 0 {
		params.TopP = anthropic.Float(opts.TopP)
	}
	if len(opts.Stop) > 0 {
		params.StopSequences = opts.Stop
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.Text
		}
	}
	return cleanCompletion(text), nil
}

var (
	newlineRuns = regexp.MustCompile(`[\r\n]+`)
	spaceRuns   = regexp.MustCompile(`[\t ]+`)
)

// cleanCompletion normalizes model output: newline runs collapse to a
// single newline, tab/space runs to a single space, outer whitespace is
// trimmed.
func cleanCompletion(s string) string {
	s = newlineRuns.ReplaceAllString(s, "\n")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
