package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipclass/internal/config"
	"shipclass/internal/costtracker"
	"shipclass/internal/models"
)

type recordingTracker struct {
	mu     sync.Mutex
	events []costtracker.CostEvent
}

func (r *recordingTracker) RecordCost(ctx context.Context, event costtracker.CostEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingTracker) TotalCost(ctx context.Context) (float64, error) {
	var total float64
	for _, e := range r.events {
		total += e.AmountUSD
	}
	return total, nil
}

var testPricing = map[string]config.PricingInfo{
	"test-model": {InputPerToken: 0.001, OutputPerToken: 0.002},
}

type mockOpenAIClient struct {
	mockResponse openai.ChatCompletionResponse
	mockError    error
	lastRequest  openai.ChatCompletionRequest
}

func (m *mockOpenAIClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.lastRequest = req
	return m.mockResponse, m.mockError
}

func TestOpenAIProvider_Complete(t *testing.T) {
	testCases := []struct {
		name          string
		mockResponse  openai.ChatCompletionResponse
		mockError     error
		expectedText  string
		expectError   bool
		expectedCosts int
	}{
		{
			name: "Successful Completion",
			mockResponse: openai.ChatCompletionResponse{
				Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "Part 1:\nType: spare\nCategory: Hull"}}},
				Usage:   openai.Usage{PromptTokens: 100, CompletionTokens: 50},
			},
			expectedText:  "Part 1:\nType: spare\nCategory: Hull",
			expectedCosts: 1,
		},
		{
			name:        "API Error",
			mockError:   errors.New("API connection failed"),
			expectError: true,
		},
		{
			name: "No Choices",
			mockResponse: openai.ChatCompletionResponse{
				Usage: openai.Usage{PromptTokens: 10},
			},
			expectError:   true,
			expectedCosts: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockClient := &mockOpenAIClient{mockResponse: tc.mockResponse, mockError: tc.mockError}
			tracker := &recordingTracker{}
			p := newOpenAIProvider(mockClient, "test-model", tracker, testPricing)

			text, err := p.Complete(context.Background(), "classify these parts")

			if tc.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expectedText, text)
			}
			assert.Len(t, tracker.events, tc.expectedCosts)
			require.Len(t, mockClient.lastRequest.Messages, 1)
			assert.Equal(t, openai.ChatMessageRoleUser, mockClient.lastRequest.Messages[0].Role)
			assert.Equal(t, "test-model", mockClient.lastRequest.Model)
		})
	}
}

func TestOpenAIProvider_CostTracking(t *testing.T) {
	mockClient := &mockOpenAIClient{mockResponse: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}}},
		Usage:   openai.Usage{PromptTokens: 1000, CompletionTokens: 500},
	}}
	tracker := &recordingTracker{}
	p := newOpenAIProvider(mockClient, "test-model", tracker, testPricing)

	_, err := p.GenerateChatCompletion(context.Background(), []ChatMessage{
		{Role: ChatMessageRoleSystem, Content: "You label ship parts."},
		{Role: ChatMessageRoleUser, Content: "Part 1: pump"},
	})
	require.NoError(t, err)

	require.Len(t, tracker.events, 1)
	ev := tracker.events[0]
	assert.Equal(t, config.ProviderOpenAI, ev.Provider)
	assert.Equal(t, models.ServiceTypeClassification, ev.Operation)
	assert.Equal(t, 1000, ev.InputTokens)
	assert.Equal(t, 500, ev.OutputTokens)
	assert.InDelta(t, 2.0, ev.AmountUSD, 1e-9)
	assert.Equal(t, openai.ChatMessageRoleSystem, mockClient.lastRequest.Messages[0].Role)
}

func TestNewOpenAIProvider_RequiresKeyAndModel(t *testing.T) {
	_, err := NewOpenAIProvider("", "gpt-4o-mini", "", nil, nil)
	assert.Error(t, err)
	_, err = NewOpenAIProvider("sk-test", "", "", nil, nil)
	assert.Error(t, err)

	p, err := NewOpenAIProvider("sk-test", "gpt-4o-mini", "http://localhost:11434/v1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderStatusActive, p.Status())
	assert.Equal(t, "gpt-4o-mini", p.ModelName())
}

type fakeGeminiGenerator struct {
	resp    *genai.GenerateContentResponse
	err     error
	system  *genai.Content
	history []*genai.Content
	parts   []genai.Part
}

func (f *fakeGeminiGenerator) generate(ctx context.Context, system *genai.Content, history []*genai.Content, parts []genai.Part) (*genai.GenerateContentResponse, error) {
	f.system, f.history, f.parts = system, history, parts
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: "model"}
	for _, p := range parts {
		content.Parts = append(content.Parts, genai.Text(p))
	}
	return &genai.GenerateContentResponse{
		Candidates:    []*genai.Candidate{{Content: content}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 200, CandidatesTokenCount: 100},
	}
}

func TestGeminiProvider_Complete(t *testing.T) {
	gen := &fakeGeminiGenerator{resp: textResponse("Part 1:\n", "Type: component\nCategory: Hull")}
	tracker := &recordingTracker{}
	p := newGeminiProvider(gen, "test-model", tracker, testPricing)

	text, err := p.Complete(context.Background(), "classify")
	require.NoError(t, err)

	assert.Equal(t, "Part 1:\nType: component\nCategory: Hull", text)
	assert.Nil(t, gen.system)
	assert.Empty(t, gen.history)
	assert.Equal(t, []genai.Part{genai.Text("classify")}, gen.parts)

	require.Len(t, tracker.events, 1)
	assert.Equal(t, config.ProviderGemini, tracker.events[0].Provider)
	assert.InDelta(t, 0.4, tracker.events[0].AmountUSD, 1e-9)
}

func TestGeminiProvider_Errors(t *testing.T) {
	testCases := []struct {
		name string
		gen  *fakeGeminiGenerator
	}{
		{name: "API Error", gen: &fakeGeminiGenerator{err: errors.New("429 resource exhausted")}},
		{name: "No Candidates", gen: &fakeGeminiGenerator{resp: &genai.GenerateContentResponse{}}},
		{name: "Empty Candidate", gen: &fakeGeminiGenerator{resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
		}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := newGeminiProvider(tc.gen, "test-model", nil, nil)
			_, err := p.Complete(context.Background(), "classify")
			assert.Error(t, err)
		})
	}
}

func TestGeminiContents(t *testing.T) {
	system, history, last, err := geminiContents([]ChatMessage{
		{Role: ChatMessageRoleSystem, Content: "rules"},
		{Role: ChatMessageRoleUser, Content: "first"},
		{Role: ChatMessageRoleAssistant, Content: "reply"},
		{Role: ChatMessageRoleUser, Content: "second"},
	})
	require.NoError(t, err)

	require.NotNil(t, system)
	assert.Equal(t, []genai.Part{genai.Text("rules")}, system.Parts)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, []genai.Part{genai.Text("second")}, last.Parts)

	_, _, _, err = geminiContents([]ChatMessage{{Role: ChatMessageRoleSystem, Content: "only rules"}})
	assert.Error(t, err)
}

func TestSimpleRetryStrategy(t *testing.T) {
	testCases := []struct {
		name     string
		strategy SimpleRetryStrategy
		attempt  int
		expected int64
	}{
		{name: "Disabled", strategy: SimpleRetryStrategy{MaxAttempts: 0, BaseDelayMs: 100}, attempt: 1, expected: -1},
		{name: "Single Attempt", strategy: SimpleRetryStrategy{MaxAttempts: 1, BaseDelayMs: 100}, attempt: 1, expected: -1},
		{name: "First Retry", strategy: SimpleRetryStrategy{MaxAttempts: 3, BaseDelayMs: 100}, attempt: 1, expected: 200},
		{name: "Second Retry", strategy: SimpleRetryStrategy{MaxAttempts: 3, BaseDelayMs: 100}, attempt: 2, expected: 400},
		{name: "Exhausted", strategy: SimpleRetryStrategy{MaxAttempts: 3, BaseDelayMs: 100}, attempt: 3, expected: -1},
		{name: "Capped", strategy: SimpleRetryStrategy{MaxAttempts: 10, BaseDelayMs: 10000}, attempt: 5, expected: 30000},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.strategy.NextBackoff(tc.attempt))
		})
	}
}
