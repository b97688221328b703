package connectors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/generative-ai-go/genai"
	openaisdk "github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	googleoption "google.golang.org/api/option"
)

// Provider identifies which backing AI service an AIInferenceConnector
// instance talks to.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
)

// AIInferenceConnector is a reference connector wrapping one of three text
// completion providers, selected by the "provider" setting. It exposes a
// single domain method, Complete, so executors can depend on one interface
// regardless of which provider a pipeline instance is configured for.
type AIInferenceConnector struct {
	Base

	provider  Provider
	apiKey    string
	modelName string
}

// NewAIInferenceConnector constructs the connector from settings. Required
// settings: "provider" (one of anthropic|openai|google) and "api_key"
// (supports ${ENV_VAR} substitution). Optional: "model" (provider-specific
// default applied when absent).
func NewAIInferenceConnector(name string, settings map[string]any) (*AIInferenceConnector, error) {
	base, err := NewBase(name, "ai_inference", settings)
	if err != nil {
		return nil, err
	}

	rawProvider, err := base.RequireSetting("provider")
	if err != nil {
		return nil, err
	}
	provider := Provider(strings.ToLower(fmt.Sprint(rawProvider)))
	switch provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderGoogle:
	default:
		return nil, fmt.Errorf("connectors: unknown ai_inference provider %q", provider)
	}

	rawKey, err := base.RequireSetting("api_key")
	if err != nil {
		return nil, err
	}
	apiKey := fmt.Sprint(rawKey)

	model := fmt.Sprint(base.GetSetting("model", defaultModelFor(provider)))

	return &AIInferenceConnector{
		Base:      base,
		provider:  provider,
		apiKey:    apiKey,
		modelName: model,
	}, nil
}

func defaultModelFor(provider Provider) string {
	switch provider {
	case ProviderAnthropic:
		return "claude-sonnet-4-5-20250929"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGoogle:
		return "gemini-1.5-flash"
	default:
		return ""
	}
}

// TestConnection issues a minimal completion request to confirm the
// configured credentials and model are reachable.
func (c *AIInferenceConnector) TestConnection(ctx context.Context) (bool, error) {
	_, err := c.Complete(ctx, "ping")
	if err != nil {
		return false, err
	}
	return true, nil
}

// Complete sends prompt to the configured provider and returns its text
// response.
func (c *AIInferenceConnector) Complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("connectors: ai_inference connector has no api_key configured")
	}
	switch c.provider {
	case ProviderAnthropic:
		return c.completeAnthropic(ctx, prompt)
	case ProviderOpenAI:
		return c.completeOpenAI(ctx, prompt)
	case ProviderGoogle:
		return c.completeGoogle(ctx, prompt)
	default:
		return "", fmt.Errorf("connectors: unsupported provider %q", c.provider)
	}
}

func (c *AIInferenceConnector) completeAnthropic(ctx context.Context, prompt string) (string, error) {
	client := anthropicsdk.NewClient(anthropicoption.WithAPIKey(c.apiKey))
	resp, err := client.Messages.New(ctx, anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.modelName),
		MaxTokens: 4096,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("connectors: anthropic completion failed: %w", err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			text.WriteString(b.Text)
		}
	}
	return text.String(), nil
}

func (c *AIInferenceConnector) completeOpenAI(ctx context.Context, prompt string) (string, error) {
	client := openaisdk.NewClient(openaioption.WithAPIKey(c.apiKey))
	resp, err := client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: c.modelName,
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("connectors: openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *AIInferenceConnector) completeGoogle(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, googleoption.WithAPIKey(c.apiKey))
	if err != nil {
		return "", fmt.Errorf("connectors: failed to create google client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(c.modelName)
	resp, err := genModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("connectors: google completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String(), nil
}
