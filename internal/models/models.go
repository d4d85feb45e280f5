package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Label type values. TypeError is also used as the category of the sentinel label.
const (
	TypeComponent = "component"
	TypeSpare     = "spare"
	TypeStore     = "store"
	TypeError     = "error"
)

// Types is the fixed type enum offered to the classifier.
var Types = []string{TypeComponent, TypeSpare, TypeStore}

// Category is one entry of the fixed taxonomy.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Categories is the ordered taxonomy. IDs are stable and appear as the first
// segment of every assigned code.
var Categories = []Category{
	{ID: 1, Name: "Ship General"},
	{ID: 2, Name: "Hull"},
	{ID: 3, Name: "Equipment For Cargo"},
	{ID: 4, Name: "Ship Equipment"},
	{ID: 5, Name: "Equipment For Crew And Passengers"},
	{ID: 6, Name: "Machinery Main Components"},
	{ID: 7, Name: "Systems For Machinery Main Components"},
	{ID: 8, Name: "Ship Common Systems"},
	{ID: 9, Name: "HVAC System"},
}

var categoryIDs = func() map[string]int {
	m := make(map[string]int, len(Categories))
	for _, c := range Categories {
		m[c.Name] = c.ID
	}
	return m
}()

var categoryByFold = func() map[string]string {
	m := make(map[string]string, len(Categories))
	for _, c := range Categories {
		m[foldKey(c.Name)] = c.Name
	}
	return m
}()

// CategoryID returns the stable id for an exact category name, or 0 when the
// name is not part of the taxonomy.
func CategoryID(name string) int {
	return categoryIDs[name]
}

// CanonicalCategory maps s onto the taxonomy spelling when it matches ignoring
// case and repeated whitespace. Anything else is returned unchanged.
func CanonicalCategory(s string) string {
	if name, ok := categoryByFold[foldKey(s)]; ok {
		return name
	}
	return s
}

func foldKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Record is one row of the source table.
type Record struct {
	Index  int               // absolute 0-based row index in the source table
	Fields map[string]string // cell values keyed by header
}

// Field returns the trimmed value of a column, or "" when absent.
func (r Record) Field(column string) string {
	return strings.TrimSpace(r.Fields[column])
}

// Batch is a contiguous run of records submitted together to the classifier.
type Batch struct {
	Number  int // 0-based batch sequence number
	Start   int // absolute index of the first record
	Records []Record
}

// Len returns the number of rows in the batch.
func (b Batch) Len() int { return len(b.Records) }

// Label is the (type, category) pair attached to a record.
type Label struct {
	Type     string `json:"type"`
	Category string `json:"category"`
}

// ErrorLabel returns the sentinel label used for rows that could not be classified.
func ErrorLabel() Label {
	return Label{Type: TypeError, Category: TypeError}
}

// IsError reports whether l is the sentinel error label.
func (l Label) IsError() bool {
	return l.Type == TypeError && l.Category == TypeError
}

// LabeledRecord is a record together with its label and assigned code.
type LabeledRecord struct {
	Record
	Label
	Code string `json:"id"`
}

// Run is one classification pass over a single input table.
type Run struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	InputPath     string     `db:"input_path" json:"input_path"`
	OutputPath    string     `db:"output_path" json:"output_path"`
	Provider      string     `db:"provider" json:"provider"`
	Model         string     `db:"model" json:"model"`
	Status        string     `db:"status" json:"status"`
	Rows          int        `db:"row_count" json:"rows"`
	ErrorRows     int        `db:"error_rows" json:"error_rows"`
	Batches       int        `db:"batches" json:"batches"`
	FailedBatches int        `db:"failed_batches" json:"failed_batches"`
	Message       *string    `db:"message" json:"message,omitempty"`
	StartedAt     time.Time  `db:"started_at" json:"started_at"`
	FinishedAt    *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// AIUsageLog represents a record of AI API usage for cost tracking.
type AIUsageLog struct {
	ID           int64      `db:"id" json:"id"`
	Timestamp    time.Time  `db:"timestamp" json:"timestamp"`
	ProviderName string     `db:"provider_name" json:"provider_name"`
	ServiceType  string     `db:"service_type" json:"service_type"` // e.g. "classification"
	ModelName    string     `db:"model_name" json:"model_name"`
	InputTokens  int        `db:"input_tokens" json:"input_tokens"`
	OutputTokens int        `db:"output_tokens" json:"output_tokens"`
	Cost         float64    `db:"cost" json:"cost"`
	RelatedRunID *uuid.UUID `db:"related_run_id" json:"related_run_id,omitempty"`
}

// BackgroundJob mirrors the background_jobs table schema.
type BackgroundJob struct {
	ID        int64           `db:"id" json:"id"`
	JobID     uuid.UUID       `db:"job_id" json:"job_id"` // Asynq task ID
	TaskType  string          `db:"task_type" json:"task_type"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	Queue     string          `db:"queue" json:"queue"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
