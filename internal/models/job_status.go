package models

/*
Run, job and task status/type constants for use throughout the codebase.
Centralizing these avoids magic strings.
*/

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusPartial   = "partial" // completed, but some rows carry the error label
	RunStatusFailed    = "failed"
)

// Job status constants
const (
	JobStatusEnqueued  = "enqueued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusSkipped   = "skipped"
)

// Service type constants recorded with AI usage.
const (
	ServiceTypeClassification = "classification"
)
