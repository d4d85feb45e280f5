package categorizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipclass/internal/models"
)

// --- Mock Completer ---
type mockCompleter struct {
	mockResponse string
	mockError    error
	calls        int
	lastPrompt   string
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.calls++
	m.lastPrompt = prompt
	if m.mockError != nil {
		return "", m.mockError
	}
	return m.mockResponse, nil
}

// --- End Mock Completer ---

func testBatch() models.Batch {
	return models.Batch{
		Number: 3,
		Start:  300,
		Records: []models.Record{
			{Index: 300, Fields: map[string]string{"component name": "Main Engine", "Part Name": "Piston ring", "Drawing Info": "D-12", "equipment": "ME"}},
			{Index: 301, Fields: map[string]string{"component name": "Air Handler", "Part Name": "Filter", "Drawing Info": "", "equipment": "AHU-1"}},
		},
	}
}

func TestLLMCategorizer_ClassifyBatch_ReturnsReply(t *testing.T) {
	reply := "Part 1:\ntype: spare\ncategory: Machinery Main Components\n"
	mockClient := &mockCompleter{mockResponse: "  " + reply + "\n\n"}

	categorizer := NewLLMCategorizer(mockClient, "", nil)

	content, err := categorizer.ClassifyBatch(context.Background(), testBatch())

	require.NoError(t, err)
	assert.Equal(t, 1, mockClient.calls, "exactly one external call per batch")
	assert.Equal(t, "Part 1:\ntype: spare\ncategory: Machinery Main Components", content)
	assert.Contains(t, mockClient.lastPrompt, "Part 1:\nComponent Name: Main Engine")
	assert.Contains(t, mockClient.lastPrompt, "Part 2:\nComponent Name: Air Handler")
	assert.Contains(t, mockClient.lastPrompt, "9. HVAC System")
}

func TestLLMCategorizer_ClassifyBatch_APIError(t *testing.T) {
	mockErr := errors.New("simulated API error 429 Too Many Requests")
	mockClient := &mockCompleter{mockError: mockErr}

	categorizer := NewLLMCategorizer(mockClient, "dummy prompt", nil)

	_, err := categorizer.ClassifyBatch(context.Background(), testBatch())

	require.Error(t, err)
	assert.ErrorIs(t, err, mockErr, "Returned error should wrap the original API error")
	assert.ErrorIs(t, err, models.ErrExternalService)

	var extErr *models.ExternalServiceError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, 3, extErr.Batch)
	assert.Equal(t, 1, extErr.Attempts)
}

func TestLLMCategorizer_ClassifyBatch_EmptyResponse(t *testing.T) {
	testCases := []struct {
		name     string
		response string
	}{
		{name: "Empty", response: ""},
		{name: "Whitespace Only", response: " \n\t "},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			categorizer := NewLLMCategorizer(&mockCompleter{mockResponse: tc.response}, "", nil)

			_, err := categorizer.ClassifyBatch(context.Background(), testBatch())

			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrExternalService)
			assert.Contains(t, err.Error(), "empty response")
		})
	}
}

func TestLLMCategorizer_ClassifyBatch_NilClient(t *testing.T) {
	categorizer := NewLLMCategorizer(nil, "", nil)

	_, err := categorizer.ClassifyBatch(context.Background(), testBatch())

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrExternalService)
}

func TestLLMCategorizer_RequiredColumns(t *testing.T) {
	assert.Equal(t,
		[]string{"component name", "Drawing Info", "Part Name", "equipment"},
		NewLLMCategorizer(nil, "", nil).RequiredColumns())

	custom := NewLLMCategorizer(nil, "", []Column{{Name: "desc", Label: "Description"}})
	assert.Equal(t, []string{"desc"}, custom.RequiredColumns())
}
