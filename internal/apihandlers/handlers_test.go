package apihandlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shipclass/internal/models"
	"shipclass/internal/services"
	"shipclass/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockClassifier struct{ mock.Mock }

func (m *mockClassifier) ClassifyRows(ctx context.Context, rows []map[string]string) ([]models.LabeledRecord, services.BatchStats, error) {
	args := m.Called(ctx, rows)
	labeled, _ := args.Get(0).([]models.LabeledRecord)
	return labeled, args.Get(1).(services.BatchStats), args.Error(2)
}

type mockRuns struct{ mock.Mock }

func (m *mockRuns) ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error) {
	args := m.Called(ctx, limit, offset)
	runs, _ := args.Get(0).([]*models.Run)
	return runs, args.Error(1)
}

func (m *mockRuns) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	args := m.Called(ctx, id)
	run, _ := args.Get(0).(*models.Run)
	return run, args.Error(1)
}

func (m *mockRuns) ListJobs(ctx context.Context, limit, offset int) ([]*models.BackgroundJob, error) {
	args := m.Called(ctx, limit, offset)
	jobs, _ := args.Get(0).([]*models.BackgroundJob)
	return jobs, args.Error(1)
}

type mockUsage struct{ mock.Mock }

func (m *mockUsage) ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error) {
	args := m.Called(ctx, limit, offset)
	logs, _ := args.Get(0).([]*models.AIUsageLog)
	return logs, args.Error(1)
}

func (m *mockUsage) GetSummary(ctx context.Context) (services.UsageSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(services.UsageSummary), args.Error(1)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func doRequest(t *testing.T, h *APIHandler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestClassifyHandler(t *testing.T) {
	rows := []map[string]string{{"Part Name": "impeller"}, {"Part Name": "gasket"}}
	labeled := []models.LabeledRecord{
		{Record: models.Record{Index: 0, Fields: rows[0]}, Label: models.Label{Type: "component", Category: "Hull"}, Code: "2.100.100"},
		{Record: models.Record{Index: 1, Fields: rows[1]}, Label: models.ErrorLabel(), Code: "0.100.100"},
	}

	testCases := []struct {
		name           string
		body           any
		setup          func(m *mockClassifier)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "Success",
			body: ClassifyRequest{Rows: rows},
			setup: func(m *mockClassifier) {
				m.On("ClassifyRows", mock.Anything, rows).Return(labeled, services.BatchStats{Rows: 2, ErrorRows: 1, Batches: 1}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Empty Rows",
			body:           ClassifyRequest{},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "bad_request",
		},
		{
			name:           "Malformed Body",
			body:           "not an object",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "bad_request",
		},
		{
			name: "Missing Column",
			body: ClassifyRequest{Rows: rows},
			setup: func(m *mockClassifier) {
				m.On("ClassifyRows", mock.Anything, rows).Return(nil, services.BatchStats{}, &models.MissingColumnError{Missing: []string{"equipment"}})
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "missing_column",
		},
		{
			name: "Internal Error",
			body: ClassifyRequest{Rows: rows},
			setup: func(m *mockClassifier) {
				m.On("ClassifyRows", mock.Anything, rows).Return(nil, services.BatchStats{}, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "internal_error",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := &mockClassifier{}
			if tc.setup != nil {
				tc.setup(m)
			}
			h := &APIHandler{Classifier: m, MaxRows: DefaultMaxRows}

			w := doRequest(t, h, http.MethodPost, "/api/v1/classify", tc.body)

			assert.Equal(t, tc.expectedStatus, w.Code)
			if tc.expectedCode != "" {
				assert.Equal(t, tc.expectedCode, decodeError(t, w).Code)
				return
			}
			var resp struct {
				Data ClassifyResponse `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Len(t, resp.Data.Rows, 2)
			assert.Equal(t, "2.100.100", resp.Data.Rows[0].ID)
			assert.Equal(t, "Hull", resp.Data.Rows[0].Category)
			assert.Equal(t, "error", resp.Data.Rows[1].Type)
			assert.Equal(t, 1, resp.Data.ErrorRows)
			assert.Len(t, resp.Data.Distribution, 2)
			m.AssertExpectations(t)
		})
	}
}

func TestClassifyHandler_Limits(t *testing.T) {
	h := &APIHandler{Classifier: &mockClassifier{}, MaxRows: 1}
	w := doRequest(t, h, http.MethodPost, "/api/v1/classify", ClassifyRequest{Rows: []map[string]string{{"a": "1"}, {"a": "2"}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, &APIHandler{}, http.MethodPost, "/api/v1/classify", ClassifyRequest{Rows: []map[string]string{{"a": "1"}}})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCategoriesHandler(t *testing.T) {
	w := doRequest(t, &APIHandler{}, http.MethodGet, "/api/v1/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Categories []models.Category `json:"categories"`
		Types      []string          `json:"types"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.Categories, resp.Categories)
	assert.Equal(t, []string{"component", "spare", "store"}, resp.Types)
}

func TestRunHandlers(t *testing.T) {
	runID := uuid.New()
	run := &models.Run{ID: runID, Status: models.RunStatusCompleted, Rows: 10}

	testCases := []struct {
		name           string
		path           string
		setup          func(m *mockRuns)
		expectedStatus int
	}{
		{
			name: "List Runs",
			path: "/api/v1/runs?limit=5&offset=10",
			setup: func(m *mockRuns) {
				m.On("ListRuns", mock.Anything, 5, 10).Return([]*models.Run{run}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Invalid Limit",
			path:           "/api/v1/runs?limit=abc",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Get Run",
			path: "/api/v1/runs/" + runID.String(),
			setup: func(m *mockRuns) {
				m.On("GetRun", mock.Anything, runID).Return(run, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "Run Not Found",
			path: "/api/v1/runs/" + runID.String(),
			setup: func(m *mockRuns) {
				m.On("GetRun", mock.Anything, runID).Return(nil, store.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Invalid Run ID",
			path:           "/api/v1/runs/42",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "List Jobs",
			path: "/api/v1/jobs",
			setup: func(m *mockRuns) {
				m.On("ListJobs", mock.Anything, 20, 0).Return([]*models.BackgroundJob{}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "List Jobs Store Error",
			path: "/api/v1/jobs",
			setup: func(m *mockRuns) {
				m.On("ListJobs", mock.Anything, 20, 0).Return(nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := &mockRuns{}
			if tc.setup != nil {
				tc.setup(m)
			}
			w := doRequest(t, &APIHandler{Runs: m}, http.MethodGet, tc.path, nil)
			assert.Equal(t, tc.expectedStatus, w.Code)
			m.AssertExpectations(t)
		})
	}
}

func TestUsageHandlers(t *testing.T) {
	m := &mockUsage{}
	m.On("GetSummary", mock.Anything).Return(services.UsageSummary{TotalCost: 1.5, TotalInputTokens: 100, TotalOutputTokens: 50}, nil)
	m.On("ListUsage", mock.Anything, 20, 0).Return([]*models.AIUsageLog{{ProviderName: "gemini"}}, nil)
	h := &APIHandler{Usage: m}

	w := doRequest(t, h, http.MethodGet, "/api/v1/usage/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary struct {
		Data services.UsageSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.InDelta(t, 1.5, summary.Data.TotalCost, 1e-9)

	w = doRequest(t, h, http.MethodGet, "/api/v1/usage", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	m.AssertExpectations(t)
}

func TestHealthAndMetrics(t *testing.T) {
	w := doRequest(t, &APIHandler{Health: fakePinger{}}, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, &APIHandler{Health: fakePinger{err: errors.New("closed")}}, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doRequest(t, &APIHandler{}, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
