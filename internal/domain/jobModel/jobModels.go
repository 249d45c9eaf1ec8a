package jobModel

import (
	"context"
	"time"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	UserQueryInit InternalStatus = "Init"
	RAGCall       InternalStatus = "RAG"
	LLMCall       InternalStatus = "LLM"
	RedisCall     InternalStatus = "Redis"

	IngestInit       InternalStatus = "IngestInit"
	IngestProcessing InternalStatus = "IngestProcessing"
	IngestEmbedding  InternalStatus = "IngestEmbedding"
	Error            InternalStatus = "Error"

	Complete InternalStatus = "Complete"

	JobTypeQuery  JobType = "Query"
	JobTypeIngest JobType = "Ingest"
)

type Job struct {
	Id          string         `json:"id"`
	ChatId      string         `json:"chat_id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	Question   string                  `json:"question,omitempty"`
	Answer     string                  `json:"answer,omitempty"`
	Sources    []string                `json:"sources,omitempty"`
	Citations  []commonModels.Citation `json:"citations,omitempty"`
	Incomplete bool                    `json:"incomplete,omitempty"`

	// UseWebSearch nil means the configured default.
	UseWebSearch *bool `json:"use_web_search,omitempty"`

	IngestFileName string `json:"ingest_file_name,omitempty"`
	IngestURL      string `json:"ingest_url,omitempty"`
	// IngestDocId is set once the document is part of the published index.
	IngestDocId    string `json:"ingest_doc_id,omitempty"`
}

// WebSearchRequested reports whether the query may use web results. It never
// enables a search adapter that is not configured.
func (p JobPayload) WebSearchRequested() bool {
	return p.UseWebSearch == nil || *p.UseWebSearch
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}

type MessageStore interface {
	ValidateChatId(ctx context.Context, id string) bool
	TrySaveChat(ctx context.Context, id string, JobPayload JobPayload) error
	InitNewChat(ctx context.Context, id string) error
	GetMessageHistory(ctx context.Context, chatId string) (error, []string)
}
