package rag

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/domain/jobModel"
	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
	"github.com/akolanti/GroundedQA/internal/metrics"
	"github.com/akolanti/GroundedQA/internal/rag/llm"
	"github.com/akolanti/GroundedQA/internal/rag/vectorDB"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
	"golang.org/x/sync/errgroup"
)

func returnOutput(job jobModel.Job, ans commonModels.Answer) jobModel.Job {
	job.JobPayload.Answer = ans.Text
	job.JobPayload.Citations = ans.Citations
	job.JobPayload.Incomplete = ans.Incomplete

	sources := make([]string, 0, len(ans.Citations))
	for _, c := range ans.Citations {
		sources = append(sources, c.Label)
	}
	job.JobPayload.Sources = sources
	job.Status = jobModel.JobStatusComplete
	job.CurrentStep = jobModel.Complete
	return job
}

// sourceName is the citation source of doc. A name that an indexed document
// already uses gets a short id suffix.
func sourceName(doc commonModels.Document, indexed []commonModels.Document) string {
	for _, d := range indexed {
		if d.Name == doc.Name {
			short := doc.Id
			if len(short) > 8 {
				short = short[:8]
			}
			return doc.Name + "~" + short
		}
	}
	return doc.Name
}

func logOutput(job jobModel.Job, status jobModel.InternalStatus, log *logger_i.Logger) jobModel.Job {
	job.CurrentStep = status
	log.Debug("ProcessRequest", "Current Status", job.CurrentStep)
	return job
}

func (s *service) jobError(job jobModel.Job, err error, message string) jobModel.Job {
	s.logger.Error(message, "error", err, "JobId", job.Id)

	code := ragErrors.StatusCode(err)
	text := message
	if code == http.StatusInternalServerError {
		text = "Internal Server Error"
	}
	job.Error = jobModel.JobError{
		Code:    code,
		Message: text,
		Retry:   ragErrors.Retryable(err),
	}
	job.Status = jobModel.JobStatusError
	job.CurrentStep = jobModel.Error
	return job
}

// retrieveContext runs the index and web branches side by side. Either branch
// may come back empty; only a failed query embedding aborts retrieval.
// useWeb can only turn a configured search adapter off.
func (s *service) retrieveContext(ctx context.Context, log *logger_i.Logger, question string, k int, useWeb bool) (commonModels.RetrievedContext, error) {
	var docs []vectorDB.ScoredEntry
	var web []commonModels.WebSnippet

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if s.index.Current() == nil {
			log.Info("index is empty, answering from web results only")
			metrics.IncrementDegradedRetrieval("index")
			return nil
		}
		query, err := s.executeEmbeddingStep(gctx, question)
		if err != nil {
			return err
		}
		docs, err = s.executeVectorSearchStep(query, k)
		if errors.Is(err, ragErrors.ErrIndexNotReady) {
			// cleared while the query was being embedded
			metrics.IncrementDegradedRetrieval("index")
			docs = nil
			return nil
		}
		return err
	})
	if useWeb && s.search.Enabled() {
		g.Go(func() error {
			var err error
			web, err = s.executeWebSearchStep(gctx, question)
			if err != nil {
				log.Warn("web search failed, using document context only", "error", err)
				metrics.IncrementDegradedRetrieval("web")
				web = nil
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return commonModels.RetrievedContext{}, err
	}

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("context_assembly", time.Since(start)) }()
	return s.assembler.Assemble(docs, web, s.settings.ContextBudget)
}

func (s *service) executeEmbeddingStep(ctx context.Context, question string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	return s.embedder.EmbedQuery(ctx, question)
}

func (s *service) executeVectorSearchStep(query []float32, k int) ([]vectorDB.ScoredEntry, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_search", time.Since(start)) }()

	return s.index.Search(query, k)
}

func (s *service) executeWebSearchStep(ctx context.Context, question string) ([]commonModels.WebSnippet, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("web_search", time.Since(start)) }()

	// the only search deadline, adapters rely on it
	if s.settings.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.SearchTimeout)
		defer cancel()
	}
	return s.search.Search(ctx, question, s.settings.WebMaxResults)
}

func (s *service) executeSynthesisStep(ctx context.Context, question string, rc commonModels.RetrievedContext, history []string) (*llm.AnswerStream, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("synthesis", time.Since(start)) }()

	return s.synthesizer.Synthesize(ctx, question, rc, history)
}

func (s *service) executeIngestEmbeddingStep(ctx context.Context, doc *commonModels.Document) ([]commonModels.IndexEntry, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("ingest_embedding", time.Since(start)) }()

	return s.builder.BuildEntries(ctx, doc)
}
