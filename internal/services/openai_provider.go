package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"shipclass/internal/config"
	"shipclass/internal/costtracker"
)

// chatCompleter is the part of *openai.Client the provider uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIProvider implements CompletionService using the OpenAI chat API or any
// endpoint compatible with it.
type OpenAIProvider struct {
	client      chatCompleter
	model       string
	costTracker costtracker.CostTracker
	pricing     map[string]config.PricingInfo
}

// NewOpenAIProvider creates a chat completion provider. A non-empty baseURL
// points the client at an OpenAI-compatible endpoint.
func NewOpenAIProvider(apiKey, model, baseURL string, tracker costtracker.CostTracker, pricing map[string]config.PricingInfo) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if model == "" {
		return nil, errors.New("openai model is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	log.Infof("OpenAI provider initialized with model %s", model)
	return newOpenAIProvider(openai.NewClientWithConfig(clientConfig), model, tracker, pricing), nil
}

func newOpenAIProvider(client chatCompleter, model string, tracker costtracker.CostTracker, pricing map[string]config.PricingInfo) *OpenAIProvider {
	if tracker == nil {
		tracker = costtracker.New()
	}
	return &OpenAIProvider{
		client:      client,
		model:       model,
		costTracker: tracker,
		pricing:     pricing,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string { return config.ProviderOpenAI }

// ModelName returns the specific model identifier.
func (p *OpenAIProvider) ModelName() string { return p.model }

// Status returns the operational status of the provider.
func (p *OpenAIProvider) Status() ProviderStatus {
	if p.client == nil {
		return ProviderStatusDisabled
	}
	return ProviderStatusActive
}

// Complete sends prompt as a single user message.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return p.GenerateChatCompletion(ctx, userPrompt(prompt))
}

// GenerateChatCompletion returns the content of the first choice.
func (p *OpenAIProvider) GenerateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	if p.client == nil {
		return "", errors.New("OpenAI provider is not initialized (missing API key)")
	}
	if len(messages) == 0 {
		return "", errors.New("no messages to send")
	}

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: 0,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openAIRole(m.Role),
			Content: m.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error generating completion: %w", err)
	}

	recordUsage(ctx, p.costTracker, p.pricing, p.Name(), p.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", errors.New("OpenAI API returned no choices")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		log.Warnf("OpenAI returned empty content (finish reason %q)", resp.Choices[0].FinishReason)
	}
	return content, nil
}

func openAIRole(r ChatMessageRole) string {
	switch r {
	case ChatMessageRoleSystem:
		return openai.ChatMessageRoleSystem
	case ChatMessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

var _ CompletionService = (*OpenAIProvider)(nil)
