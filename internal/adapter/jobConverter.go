package adapter

import (
	"fmt"
	"time"

	"github.com/akolanti/GroundedQA/internal/api"
	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/domain/jobModel"
)

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("status/%s", id), //pass "status/job.Id"
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {

	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status:              string(job.Status),
		RAGExternalResponse: ToRAGExternalStatus(job.JobPayload),
	}

	return api.JobResponse{
		Id:        job.Id,
		ChatId:    job.ChatId,
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func ToRAGExternalStatus(ragData jobModel.JobPayload) *api.RAGResponse {
	if ragData.Answer == "" && len(ragData.Sources) == 0 && ragData.IngestDocId == "" {
		return nil
	}

	return &api.RAGResponse{
		Question:   ragData.Question,
		Answer:     ragData.Answer,
		Sources:    ragData.Sources,
		Citations:  ToCitations(ragData.Citations),
		Incomplete: ragData.Incomplete,
		DocumentId: ragData.IngestDocId,
	}
}

func ToCitations(citations []commonModels.Citation) []api.Citation {
	if len(citations) == 0 {
		return nil
	}
	out := make([]api.Citation, len(citations))
	for i, c := range citations {
		out[i] = api.Citation{Label: c.Label, Kind: string(c.Kind), Rank: c.Rank}
	}
	return out
}

func ToDocumentResponse(doc commonModels.Document) api.DocumentResponse {
	return api.DocumentResponse{
		Id:          doc.Id,
		Name:        doc.Name,
		ContentType: string(doc.ContentType),
		ChunkCount:  doc.ChunkCount,
		UploadedAt:  doc.UploadedAt,
	}
}

func ToDocumentsResponse(docs []commonModels.Document) api.DocumentsResponse {
	out := api.DocumentsResponse{Documents: make([]api.DocumentResponse, 0, len(docs)), Count: len(docs)}
	for _, d := range docs {
		out.Documents = append(out.Documents, ToDocumentResponse(d))
	}
	return out
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		ChatId:    "",
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   false,
		},
	}
}
