package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"shipclass/internal/config"
	"shipclass/internal/costtracker"
)

// geminiGenerator sends one conversation turn to a Gemini model.
type geminiGenerator interface {
	generate(ctx context.Context, system *genai.Content, history []*genai.Content, parts []genai.Part) (*genai.GenerateContentResponse, error)
}

type genaiGenerator struct {
	client *genai.Client
	model  string
}

func (g *genaiGenerator) generate(ctx context.Context, system *genai.Content, history []*genai.Content, parts []genai.Part) (*genai.GenerateContentResponse, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0)
	model.SystemInstruction = system
	cs := model.StartChat()
	cs.History = history
	return cs.SendMessage(ctx, parts...)
}

// GeminiProvider implements CompletionService using the Google Gemini API.
type GeminiProvider struct {
	client      *genai.Client
	gen         geminiGenerator
	model       string // e.g. "gemini-2.0-flash"
	costTracker costtracker.CostTracker
	pricing     map[string]config.PricingInfo
}

// NewGeminiProvider creates a Gemini chat completion provider.
func NewGeminiProvider(ctx context.Context, apiKey, model string, tracker costtracker.CostTracker, pricing map[string]config.PricingInfo) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model == "" {
		return nil, errors.New("gemini model is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	log.Infof("Gemini provider initialized with model %s", model)
	p := newGeminiProvider(&genaiGenerator{client: client, model: model}, model, tracker, pricing)
	p.client = client
	return p, nil
}

func newGeminiProvider(gen geminiGenerator, model string, tracker costtracker.CostTracker, pricing map[string]config.PricingInfo) *GeminiProvider {
	if tracker == nil {
		tracker = costtracker.New()
	}
	return &GeminiProvider{
		gen:         gen,
		model:       model,
		costTracker: tracker,
		pricing:     pricing,
	}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string { return config.ProviderGemini }

// ModelName returns the specific model identifier.
func (p *GeminiProvider) ModelName() string { return p.model }

// Status returns the operational status of the provider.
func (p *GeminiProvider) Status() ProviderStatus {
	if p.gen == nil {
		return ProviderStatusDisabled
	}
	return ProviderStatusActive
}

// Close releases the underlying client.
func (p *GeminiProvider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Complete sends prompt as a single user message.
func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return p.GenerateChatCompletion(ctx, userPrompt(prompt))
}

// GenerateChatCompletion sends the last message with the earlier ones as chat
// history. System messages become the system instruction.
func (p *GeminiProvider) GenerateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	if p.gen == nil {
		return "", errors.New("Gemini provider is not initialized (missing API key)")
	}
	system, history, last, err := geminiContents(messages)
	if err != nil {
		return "", err
	}

	resp, err := p.gen.generate(ctx, system, history, last.Parts)
	if err != nil {
		return "", fmt.Errorf("Gemini API error generating completion: %w", err)
	}

	if resp.UsageMetadata != nil {
		recordUsage(ctx, p.costTracker, p.pricing, p.Name(), p.model,
			int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount))
	}
	return geminiResponseText(resp)
}

// geminiContents maps chat messages onto Gemini contents. The final
// non-system message is returned separately as the turn to send.
func geminiContents(messages []ChatMessage) (*genai.Content, []*genai.Content, *genai.Content, error) {
	var systemParts []string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case ChatMessageRoleSystem:
			systemParts = append(systemParts, m.Content)
		case ChatMessageRoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(contents) == 0 {
		return nil, nil, nil, errors.New("no user message to send")
	}

	var system *genai.Content
	if len(systemParts) > 0 {
		system = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(systemParts, "\n\n"))}}
	}
	last := contents[len(contents)-1]
	return system, contents[:len(contents)-1], last, nil
}

// geminiResponseText joins the text parts of the first candidate.
func geminiResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil {
			return "", fmt.Errorf("Gemini returned no candidates (block reason %v)", resp.PromptFeedback.BlockReason)
		}
		return "", errors.New("Gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", fmt.Errorf("Gemini candidate has no content (finish reason %v)", candidate.FinishReason)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

var _ CompletionService = (*GeminiProvider)(nil)
