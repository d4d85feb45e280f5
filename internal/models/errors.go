package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")

	ErrMissingColumn   = errors.New("missing column")
	ErrExternalService = errors.New("external service error")
	ErrParse           = errors.New("parse error")
)

// MissingColumnError is returned before any external call when the input table
// lacks columns the prompt needs.
type MissingColumnError struct {
	Missing   []string
	Available []string
	Rows      []int // 0-based rows lacking a column; empty when the header itself lacks it
}

func (e *MissingColumnError) Error() string {
	if len(e.Rows) > 0 {
		return fmt.Sprintf("rows %v are missing required column(s) %q (available: %s)",
			e.Rows, e.Missing, strings.Join(e.Available, ", "))
	}
	return fmt.Sprintf("input is missing required column(s) %q (available: %s)",
		e.Missing, strings.Join(e.Available, ", "))
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }

// ExternalServiceError wraps a failed classification call for one batch.
type ExternalServiceError struct {
	Batch    int
	Attempts int
	Err      error
}

func (e *ExternalServiceError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("batch %d: classification call failed after %d attempts: %v", e.Batch, e.Attempts, e.Err)
	}
	return fmt.Sprintf("batch %d: classification call failed: %v", e.Batch, e.Err)
}

// Is lets errors.Is match both the sentinel and the wrapped cause.
func (e *ExternalServiceError) Is(target error) bool { return target == ErrExternalService }

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ParseError marks a single row whose label could not be read from the model output.
type ParseError struct {
	Row    int // 0-based position within the batch
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }
