package apihandlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Error codes carried in APIError.Code.
const (
	CodeBadRequest    = "bad_request"
	CodeNotFound      = "not_found"
	CodeMissingColumn = "missing_column"
	CodeUnavailable   = "unavailable"
	CodeInternal      = "internal_error"
)

// APIError is the body of every error response, e.g.
// { "error": { "code": "missing_column", "message": "..." } }
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// JSONError aborts the request with a structured error response.
func JSONError(ctx *gin.Context, status int, code, msg string) {
	ctx.AbortWithStatusJSON(status, errorResponse{Error: APIError{Code: code, Message: msg}})
}

func BadRequest(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusBadRequest, CodeBadRequest, msg)
}

func NotFound(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusNotFound, CodeNotFound, msg)
}

// MissingColumn reports input rows that lack a column the prompt reads.
func MissingColumn(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusUnprocessableEntity, CodeMissingColumn, msg)
}

func Unavailable(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusServiceUnavailable, CodeUnavailable, msg)
}

// Internal logs msg and answers 500.
func Internal(ctx *gin.Context, msg string) {
	log.WithField("path", ctx.FullPath()).Error(msg)
	JSONError(ctx, http.StatusInternalServerError, CodeInternal, msg)
}
