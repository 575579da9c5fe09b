package invoker

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider selects a non-Bedrock inference backend.
type Provider string

const (
	ProviderBedrock   Provider = "bedrock"
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderOllama    Provider = "ollama"
)

// Langchain invokes models through langchaingo. These backends have no
// cache marker equivalent, so the static and dynamic segments are sent
// concatenated.
type Langchain struct {
	llm       llms.Model
	modelName string
}

var _ Invoker = (*Langchain)(nil)

// NewLangchain creates a langchaingo-backed invoker for the given provider.
func NewLangchain(provider Provider, modelName, apiKey, ollamaHost string) (*Langchain, error) {
	var model llms.Model
	var err error

	switch provider {
	case ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(modelName),
			ollama.WithServerURL(ollamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(apiKey),
			openai.WithModel(modelName),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(apiKey),
			anthropic.WithModel(modelName),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}

	return &Langchain{llm: model, modelName: modelName}, nil
}

// Model returns the configured model name.
func (l *Langchain) Model() string {
	return l.modelName
}

// Invoke sends one generation call.
func (l *Langchain) Invoke(ctx context.Context, req Request) (*Response, error) {
	parts := make([]llms.ContentPart, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, llms.BinaryPart("image/png", img))
	}
	parts = append(parts, llms.TextPart(req.Static+req.Dynamic))

	var messages []llms.MessageContent
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: parts,
	})

	resp, err := l.llm.GenerateContent(ctx, messages, llms.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices")
	}

	choice := resp.Choices[0]
	out := &Response{Text: choice.Content}
	out.InputTokens = tokensFromInfo(choice.GenerationInfo, "InputTokens", "PromptTokens")
	out.OutputTokens = tokensFromInfo(choice.GenerationInfo, "OutputTokens", "CompletionTokens")
	return out, nil
}

// tokensFromInfo pulls a token count out of langchaingo's provider-specific
// generation info map, trying each key in order.
func tokensFromInfo(info map[string]any, keys ...string) int64 {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}
