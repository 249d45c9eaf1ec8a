package api

import "time"

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	ChatId    string            `json:"chat_id" example:"chat_550"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type Citation struct {
	Label string `json:"label" example:"handbook.pdf#3"`
	Kind  string `json:"kind" example:"document"`
	Rank  int    `json:"rank" example:"1"`
}

type RAGResponse struct {
	Question   string     `json:"question,omitempty"`
	Answer     string     `json:"answer,omitempty"`
	Sources    []string   `json:"sources,omitempty"`
	Citations  []Citation `json:"citations,omitempty"`
	Incomplete bool       `json:"incomplete,omitempty"`
	DocumentId string     `json:"document_id,omitempty"`
}

type Result struct {
	Status              string       `json:"status"`
	RAGExternalResponse *RAGResponse `json:"rag_response,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type DocumentResponse struct {
	Id          string    `json:"source_doc_id"`
	Name        string    `json:"doc_name"`
	ContentType string    `json:"content_type"`
	ChunkCount  int       `json:"chunk_count"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

type DocumentsResponse struct {
	Documents []DocumentResponse `json:"documents"`
	Count     int                `json:"count"`
}

// StreamEvent is the data of one server sent event on /chat/stream.
type StreamEvent struct {
	ChatId     string     `json:"chat_id,omitempty"`
	Text       string     `json:"text,omitempty"`
	Citations  []Citation `json:"citations,omitempty"`
	Incomplete bool       `json:"incomplete,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// requests---------------------

type ChatRequest struct {
	Message string `json:"message" validate:"required" `
	ChatID  string `json:"chatID,omitempty" `

	// UseWebSearch false answers from the documents only. Omitted uses the server setting.
	UseWebSearch *bool `json:"use_web_search,omitempty" example:"true"`
}
type JobStatusRequest struct {
	JobId string `json:"job_id" validate:"required"`
}

type IngestDocumentRequest struct {
	DocumentName string `json:"document_name" validate:"required"`
}

type IngestTextRequest struct {
	Name string `json:"name" validate:"required" example:"notes.md"`
	Text string `json:"text" validate:"required"`
}
