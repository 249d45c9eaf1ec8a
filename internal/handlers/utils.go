package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/akolanti/GroundedQA/internal/adapter"
	"github.com/akolanti/GroundedQA/internal/adapter/utils"
	"github.com/akolanti/GroundedQA/internal/api"
	"github.com/akolanti/GroundedQA/internal/config"
	"github.com/akolanti/GroundedQA/internal/domain/jobModel"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are gone, only the log is left
		logRH.Error("Error encoding response", "error", err)
	}
}

func validateId(id string, traceId string) (result jobModel.Job, isFound bool) {
	if id == "" {
		logRH.Warn("Empty Job ID")
		return jobModel.Job{}, false
	}
	return GetJobStatus(id, traceId)
}

func traceOf(r *http.Request) string {
	trace, _ := r.Context().Value(config.TRACE_ID_KEY).(string)
	return trace
}

func validateContext(r *http.Request) bool {
	ctx := r.Context()
	if err := ctx.Err(); err != nil {
		logRH.Warn("context error", "traceId", traceOf(r), "error", err, "remote", r.RemoteAddr)
		return false
	}
	return true
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}

func getTargetDirectory() (string, string) {
	root, err := os.Getwd()
	if err != nil {
		return "", "Storage Error"
	}

	targetDir := filepath.Join(root, "temporary_data")
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", "Storage Error"
	}
	return targetDir, ""
}

// newChatId returns the chat to use for a request, creating one when the
// client did not send an id.
func newChatId(requestData api.ChatRequest) (chatID string, isNew bool) {
	if requestData.ChatID != "" {
		return requestData.ChatID, false
	}
	chatID = utils.GetNewUUID()
	logRH.Debug("New Chat request", "chatID", chatID)
	return chatID, true
}

func processNewJobData(request *http.Request, w http.ResponseWriter, requestData api.ChatRequest, docName string, docPath string) {
	chatID := ""
	message := ""
	isNewChat := false
	var useWebSearch *bool

	//no document means a chat request
	isChatRequest := docName == "" && docPath == ""

	if isChatRequest {
		chatID, isNewChat = newChatId(requestData)
		message = requestData.Message
		useWebSearch = requestData.UseWebSearch
	}

	newJob := newJobData{
		id:               utils.GetNewUUID(),
		chatId:           chatID,
		message:          message,
		isNewChat:        isNewChat,
		traceId:          traceOf(request),
		documentName:     docName,
		documentSource:   docPath,
		isDocumentIngest: !isChatRequest,
		useWebSearch:     useWebSearch,
	}
	CreateNewJob(newJob)
	res := adapter.ToInitJobResponse(newJob.id)
	writeJsonResponse(w, http.StatusAccepted, res)
}
