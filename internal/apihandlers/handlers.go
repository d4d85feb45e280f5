package apihandlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"shipclass/internal/app"
	"shipclass/internal/models"
	"shipclass/internal/services"
	"shipclass/internal/store"
)

// DefaultMaxRows caps the rows accepted by one classify request.
const DefaultMaxRows = 1000

// RowClassifier labels rows posted to the API.
type RowClassifier interface {
	ClassifyRows(ctx context.Context, rows []map[string]string) ([]models.LabeledRecord, services.BatchStats, error)
}

// RunReader lists the run ledger and background jobs.
type RunReader interface {
	ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListJobs(ctx context.Context, limit, offset int) ([]*models.BackgroundJob, error)
}

// UsageReader reports recorded provider usage.
type UsageReader interface {
	ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error)
	GetSummary(ctx context.Context) (services.UsageSummary, error)
}

// Pinger checks the run ledger connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

type APIHandler struct {
	Classifier RowClassifier
	Runs       RunReader
	Usage      UsageReader
	Health     Pinger
	MaxRows    int
}

func NewAPIHandler(a *app.App) *APIHandler {
	h := &APIHandler{
		Runs:    a.RunService,
		Usage:   a.CostService,
		Health:  a.Store,
		MaxRows: DefaultMaxRows,
	}
	if a.ClassificationService != nil {
		h.Classifier = a.ClassificationService
	}
	return h
}

// ClassifyRequest is the JSON body of POST /api/v1/classify.
type ClassifyRequest struct {
	Rows []map[string]string `json:"rows"`
}

// ClassifiedRow is one labeled row in a classify response.
type ClassifiedRow struct {
	Index    int               `json:"index"`
	Fields   map[string]string `json:"fields"`
	Type     string            `json:"type"`
	Category string            `json:"category"`
	ID       string            `json:"id"`
}

// ClassifyResponse is the JSON response of POST /api/v1/classify.
type ClassifyResponse struct {
	Rows          []ClassifiedRow       `json:"rows"`
	ErrorRows     int                   `json:"error_rows"`
	Batches       int                   `json:"batches"`
	FailedBatches int                   `json:"failed_batches"`
	Distribution  []services.LabelCount `json:"distribution"`
}

// ClassifyHandler labels the posted rows and returns them with their codes.
func (h *APIHandler) ClassifyHandler(c *gin.Context) {
	if h.Classifier == nil {
		Unavailable(c, "Classification is not configured on this server")
		return
	}

	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Rows) == 0 {
		BadRequest(c, "Invalid request body: no rows provided")
		return
	}
	if h.MaxRows > 0 && len(req.Rows) > h.MaxRows {
		BadRequest(c, fmt.Sprintf("Too many rows: %d (max %d)", len(req.Rows), h.MaxRows))
		return
	}

	labeled, stats, err := h.Classifier.ClassifyRows(c.Request.Context(), req.Rows)
	if err != nil {
		var mce *models.MissingColumnError
		if errors.As(err, &mce) {
			MissingColumn(c, err.Error())
			return
		}
		Internal(c, fmt.Sprintf("ClassifyHandler: classification failed: %v", err))
		return
	}

	resp := ClassifyResponse{
		Rows:          make([]ClassifiedRow, len(labeled)),
		ErrorRows:     stats.ErrorRows,
		Batches:       stats.Batches,
		FailedBatches: stats.FailedBatches,
		Distribution:  services.Distribution(labeled),
	}
	for i, lr := range labeled {
		resp.Rows[i] = ClassifiedRow{
			Index:    lr.Index,
			Fields:   lr.Fields,
			Type:     lr.Type,
			Category: lr.Category,
			ID:       lr.Code,
		}
	}
	log.Infof("API classify: %d rows, %d error rows", stats.Rows, stats.ErrorRows)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// CategoriesHandler returns the taxonomy and the type enum.
func (h *APIHandler) CategoriesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"categories": models.Categories,
		"types":      models.Types,
	})
}

// ListRunsHandler returns runs, newest first.
func (h *APIHandler) ListRunsHandler(c *gin.Context) {
	limit, offset, err := parsePagination(c)
	if err != nil {
		BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	runs, err := h.Runs.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		Internal(c, fmt.Sprintf("ListRunsHandler: failed to list runs: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": runs})
}

// GetRunHandler returns a single run by id.
func (h *APIHandler) GetRunHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		BadRequest(c, fmt.Sprintf("Invalid run ID format: %s", c.Param("id")))
		return
	}
	run, err := h.Runs.GetRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, fmt.Sprintf("Run not found with ID: %s", id))
			return
		}
		Internal(c, fmt.Sprintf("GetRunHandler: failed to retrieve run: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": run})
}

// ListJobsHandler returns background classify jobs.
func (h *APIHandler) ListJobsHandler(c *gin.Context) {
	limit, offset, err := parsePagination(c)
	if err != nil {
		BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	jobs, err := h.Runs.ListJobs(c.Request.Context(), limit, offset)
	if err != nil {
		Internal(c, fmt.Sprintf("ListJobsHandler: failed to list jobs: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": jobs})
}

// UsageSummaryHandler returns the total recorded cost and tokens.
func (h *APIHandler) UsageSummaryHandler(c *gin.Context) {
	summary, err := h.Usage.GetSummary(c.Request.Context())
	if err != nil {
		Internal(c, fmt.Sprintf("UsageSummaryHandler: failed to get summary: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// ListUsageHandler returns recorded provider calls.
func (h *APIHandler) ListUsageHandler(c *gin.Context) {
	limit, offset, err := parsePagination(c)
	if err != nil {
		BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	logs, err := h.Usage.ListUsage(c.Request.Context(), limit, offset)
	if err != nil {
		Internal(c, fmt.Sprintf("ListUsageHandler: failed to list usage: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": logs})
}

// HealthHandler reports whether the run ledger is reachable.
func (h *APIHandler) HealthHandler(c *gin.Context) {
	if h.Health != nil {
		if err := h.Health.Ping(c.Request.Context()); err != nil {
			Unavailable(c, "database unreachable: "+err.Error())
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parsePagination(c *gin.Context) (int, int, error) {
	limit := 20
	offset := 0
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		} else {
			return 0, 0, fmt.Errorf("invalid limit: %s", l)
		}
	}
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		} else {
			return 0, 0, fmt.Errorf("invalid offset: %s", o)
		}
	}
	return limit, offset, nil
}
