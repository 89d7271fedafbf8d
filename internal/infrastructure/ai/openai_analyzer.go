package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"jiragent/internal/domain/fieldconfig"
	"jiragent/internal/errs"
	"jiragent/internal/ports"
)

const systemPrompt = "You are an issue intake assistant. You decompose a raw request " +
	"into a structured issue for an external tracker. Output a single JSON object whose " +
	"keys match the provided target schema exactly; do not invent keys that are not in " +
	"the schema."

// Analyzer extracts structured field values from free-form request text using
// an OpenAI-compatible chat completion endpoint in JSON mode.
type Analyzer struct {
	client openai.Client
	model  string
}

var _ ports.Analyzer = (*Analyzer)(nil)

type Options struct {
	APIKey  string
	Model   string
	BaseURL string
}

func NewAnalyzer(opts Options) (*Analyzer, error) {
	if opts.APIKey == "" {
		return nil, errors.New("api key is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model is required")
	}

	requestOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &Analyzer{
		client: openai.NewClient(requestOpts...),
		model:  opts.Model,
	}, nil
}

func (a *Analyzer) ExtractFields(ctx context.Context, description string, schema map[string]string) (map[string]fieldconfig.Value, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if strings.TrimSpace(description) == "" {
		return nil, errors.New("description is required")
	}
	if len(schema) == 0 {
		return nil, errors.New("schema is required")
	}

	prompt, err := buildPrompt(description, schema)
	if err != nil {
		return nil, err
	}

	completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, errs.Wrap(err, "chat completion")
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	content := stripCodeFence(completion.Choices[0].Message.Content)
	values, err := fieldconfig.DecodeValueMap([]byte(content))
	if err != nil {
		return nil, errs.Wrap(err, "decode extraction result")
	}
	return values, nil
}

func buildPrompt(description string, schema map[string]string) (string, error) {
	encodedSchema, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", errs.Wrap(err, "marshal analysis schema")
	}

	var b strings.Builder
	b.WriteString("Raw request:\n")
	b.WriteString(description)
	b.WriteString("\n\nTarget schema (field key to description):\n")
	b.Write(encodedSchema)
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("- Fill every field you can infer from the raw request; omit fields you cannot.\n")
	b.WriteString("- Fields described as (List of values) take a JSON array of strings.\n")
	b.WriteString("- Fields described as (Required) should always be filled, inferring a sensible value if needed.\n")
	b.WriteString("- If the schema has a summary field, produce a concise one-line title for it.\n")
	return b.String(), nil
}

// stripCodeFence tolerates models that wrap JSON in a markdown fence despite
// JSON mode.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
