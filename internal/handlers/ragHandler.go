package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/akolanti/GroundedQA/internal/adapter"
	"github.com/akolanti/GroundedQA/internal/api"
	"github.com/akolanti/GroundedQA/internal/config"
	"github.com/akolanti/GroundedQA/internal/domain/jobModel"
	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
	"github.com/akolanti/GroundedQA/internal/rag"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
)

var (
	ragInstance rag.Service
	logRAG      *logger_i.Logger
)

// InitRagHandler wires the synchronous endpoints. The job endpoints only
// need InitJobHandler.
func InitRagHandler(svc rag.Service) {
	ragInstance = svc
	logRAG = logger_i.NewLogger("RagHandler")
}

// ChatStreamHandler godoc
// @Summary      Stream an answer
// @Description  Retrieves context and streams the answer as server sent events: one "citations" event, then "fragment" events, then "done", "incomplete" or "error".
// @Tags         Messaging
// @Accept       json
// @Produce      text/event-stream
// @Param        request  body      api.ChatRequest  true  "Chat Message and optional Chat ID"
// @Success      200      {object}  api.StreamEvent  "Event stream"
// @Failure      400      {object}  api.JobResponse  "Invalid request data or chat ID"
// @Failure      502      {object}  api.JobResponse  "Provider failed before the first fragment"
// @Router       /chat/stream [post]
func ChatStreamHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	requestData, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	log := logRAG.WithTrace(ctx, config.TRACE_ID_KEY)

	chatID, isNewChat := newChatId(requestData)
	var history []string
	if isNewChat {
		handlerInstance.initNewChat(chatID, traceOf(r))
	} else {
		var err error
		if err, history = handlerInstance.service.MessageStore.GetMessageHistory(ctx, chatID); err != nil {
			log.Warn("answering without history", "chatId", chatID, "error", err)
		}
	}

	useWeb := jobModel.JobPayload{UseWebSearch: requestData.UseWebSearch}.WebSearchRequested()
	stream, _, err := ragInstance.Ask(ctx, requestData.Message, history, useWeb)
	if err != nil {
		log.Error("could not start answer", "error", err)
		WriteErrorResponse(w, ragErrors.StatusCode(err), chatID, publicMessage(err))
		return
	}
	defer stream.Close()

	events := newEventWriter(w)
	citations := adapter.ToCitations(stream.Citations())
	if err := events.send("citations", api.StreamEvent{ChatId: chatID, Citations: citations}); err != nil {
		log.Warn("client went away", "error", err)
		return
	}

	var answer strings.Builder
	for fragment := range stream.Fragments() {
		answer.WriteString(fragment)
		if err := events.send("fragment", api.StreamEvent{Text: fragment}); err != nil {
			log.Warn("client went away mid answer", "error", err)
			return
		}
	}

	err = stream.Err()
	switch {
	case err == nil:
		_ = events.send("done", api.StreamEvent{ChatId: chatID})
	case errors.Is(err, ragErrors.ErrStreamInterrupted):
		log.Warn("answer stream interrupted", "error", err)
		_ = events.send("incomplete", api.StreamEvent{ChatId: chatID, Incomplete: true, Error: "answer was cut short"})
	default:
		log.Error("answer stream failed", "error", err)
		_ = events.send("error", api.StreamEvent{ChatId: chatID, Error: publicMessage(err)})
		return
	}

	sources := make([]string, len(citations))
	for i, c := range citations {
		sources[i] = c.Label
	}
	incomplete := err != nil
	saveCtx := context.WithoutCancel(ctx)
	if err := handlerInstance.service.MessageStore.TrySaveChat(saveCtx, chatID, jobModel.JobPayload{
		Question:   requestData.Message,
		Answer:     answer.String(),
		Sources:    sources,
		Incomplete: incomplete,
	}); err != nil {
		log.Error("Failed to save chat history", "error", err)
	}
}

// IngestTextHandler godoc
// @Summary      Ingest raw text
// @Description  Chunks, embeds and indexes the text synchronously. The new index generation is visible to queries once this returns.
// @Tags         Ingestion
// @Accept       json
// @Produce      json
// @Param        request  body      api.IngestTextRequest  true  "Document name and text"
// @Success      201      {object}  api.DocumentResponse
// @Failure      400      {object}  api.JobResponse
// @Failure      422      {object}  api.JobResponse  "Text is empty"
// @Failure      502      {object}  api.JobResponse  "Embedding provider failed"
// @Router       /ingest/text [post]
func IngestTextHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize)
	defer r.Body.Close()

	var req api.IngestTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "name and text are required")
		return
	}

	doc, err := ragInstance.IngestText(r.Context(), req.Name, req.Text)
	if err != nil {
		logRAG.WithTrace(r.Context(), config.TRACE_ID_KEY).Error("text ingestion failed", "name", req.Name, "error", err)
		WriteErrorResponse(w, ragErrors.StatusCode(err), req.Name, publicMessage(err))
		return
	}
	writeJsonResponse(w, http.StatusCreated, adapter.ToDocumentResponse(doc))
}

// DocumentsHandler godoc
// @Summary      List indexed documents
// @Tags         Ingestion
// @Produce      json
// @Success      200  {object}  api.DocumentsResponse
// @Router       /documents [get]
func DocumentsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentsResponse(ragInstance.Documents()))
}

// ClearIndexHandler godoc
// @Summary      Drop the index
// @Description  Removes every document from the index and from its persisted copy.
// @Tags         Ingestion
// @Success      204
// @Failure      500  {object}  api.JobResponse
// @Router       /index [delete]
func ClearIndexHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r) {
		return
	}
	if err := ragInstance.ClearIndex(r.Context()); err != nil {
		logRAG.WithTrace(r.Context(), config.TRACE_ID_KEY).Error("clearing index failed", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "", "Could not clear the persisted index")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// publicMessage hides internal detail behind 5xx codes.
func publicMessage(err error) string {
	code := ragErrors.StatusCode(err)
	switch {
	case code < http.StatusInternalServerError:
		return err.Error()
	case code == http.StatusGatewayTimeout:
		return "Upstream provider timed out"
	case code == http.StatusBadGateway:
		return "Upstream provider failed"
	default:
		return "Internal Server Error"
	}
}

type eventWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newEventWriter(w http.ResponseWriter) *eventWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return &eventWriter{w: w, rc: http.NewResponseController(w)}
}

func (e *eventWriter) send(event string, data api.StreamEvent) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return e.rc.Flush()
}
