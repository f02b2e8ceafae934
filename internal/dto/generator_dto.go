package dto

import (
	"time"

	"github.com/google/uuid"
)

// UploadSourceRequest arrives as JSON (SourceText) or multipart with a
// "file" part; the controller fills FileName/FileData for the latter.
type UploadSourceRequest struct {
	ScopeId       string   `json:"scope_id" form:"scope_id" validate:"required,max=128"`
	SourceKey     string   `json:"source_key" form:"source_key" validate:"max=256"`
	Title         string   `json:"title" form:"title" validate:"max=256"`
	SourceText    string   `json:"source_text" form:"source_text"`
	Topic         string   `json:"topic" form:"topic" validate:"required,max=256"`
	Concepts      []string `json:"concepts" form:"concepts"`
	Difficulty    string   `json:"difficulty" form:"difficulty" validate:"omitempty,oneof=easy medium hard mixed"`
	Language      string   `json:"language" form:"language" validate:"max=32"`
	Count         int      `json:"count" form:"count" validate:"required,min=1,max=20"`
	ReviewerEmail string   `json:"reviewer_email" form:"reviewer_email" validate:"omitempty,email"`

	FileName string `json:"-" form:"-"`
	FileData []byte `json:"-" form:"-"`
}

type UploadSourceResponse struct {
	JobId  uuid.UUID `json:"job_id"`
	Status string    `json:"status"`
}

type JobStatusResponse struct {
	JobId          uuid.UUID `json:"job_id"`
	Status         string    `json:"status"`
	GeneratedCount int       `json:"generated_count"`
	RequestedCount int       `json:"requested_count"`
	FailedCount    int       `json:"failed_count"`
	Summary        string    `json:"summary"`
	FailureReason  string    `json:"failure_reason,omitempty"`
}

type TestCaseResponse struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Description    string `json:"description,omitempty"`
}

type ExerciseDraftResponse struct {
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Difficulty        string             `json:"difficulty"`
	ConceptTags       []string           `json:"concept_tags"`
	StarterCode       string             `json:"starter_code"`
	ReferenceSolution string             `json:"reference_solution"`
	TestCases         []TestCaseResponse `json:"test_cases"`
}

type DraftFailureResponse struct {
	Index     int    `json:"index"`
	Stage     string `json:"stage"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
}

type JobDraftResponse struct {
	JobId          uuid.UUID               `json:"job_id"`
	Status         string                  `json:"status"`
	GeneratedCount int                     `json:"generated_count"`
	RequestedCount int                     `json:"requested_count"`
	Exercises      []ExerciseDraftResponse `json:"exercises"`
	Failures       []DraftFailureResponse  `json:"failures"`
	CompletedAt    *time.Time              `json:"completed_at,omitempty"`
}

type ReviewJobRequest struct {
	JobId    uuid.UUID `json:"-"`
	Decision string    `json:"decision" validate:"required,oneof=approve reject"`
	Reviewer string    `json:"reviewer" validate:"max=128"`
	Note     string    `json:"note" validate:"max=2000"`
}

type ReviewJobResponse struct {
	JobId  uuid.UUID `json:"job_id"`
	Status string    `json:"status"`
}

// JobProgressEvent is pushed to websocket subscribers of a job.
type JobProgressEvent struct {
	JobId          uuid.UUID `json:"job_id"`
	Status         string    `json:"status"`
	GeneratedCount int       `json:"generated_count"`
	RequestedCount int       `json:"requested_count"`
}

// GenerationJobMessage is the queue payload that hands a job to a worker.
type GenerationJobMessage struct {
	JobId uuid.UUID `json:"job_id"`
}
