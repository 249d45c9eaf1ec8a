package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/akolanti/GroundedQA/internal/config"
	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/domain/jobModel"
	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
	"github.com/akolanti/GroundedQA/internal/metrics"
	"github.com/akolanti/GroundedQA/internal/rag/assembler"
	"github.com/akolanti/GroundedQA/internal/rag/embedding"
	"github.com/akolanti/GroundedQA/internal/rag/ingest"
	"github.com/akolanti/GroundedQA/internal/rag/llm"
	"github.com/akolanti/GroundedQA/internal/rag/vectorDB"
	"github.com/akolanti/GroundedQA/internal/rag/websearch"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
)

/*
Service is the only thing the workers, handlers and the MCP server talk to.
The private service struct owns the pipeline parts (embedder, index, search,
assembler, synthesizer) so callers never reach them directly, and tests swap
them for mocks through Deps.
*/

type Service interface {
	// Ask retrieves context and starts streaming the answer. useWebSearch
	// false keeps web results out of this query.
	Ask(ctx context.Context, question string, messageHistory []string, useWebSearch bool) (*llm.AnswerStream, commonModels.RetrievedContext, error)
	ProcessRequest(ctx context.Context, job jobModel.Job, messageHistory []string) jobModel.Job
	// Retrieve runs retrieval only. k <= 0 uses the configured top k.
	Retrieve(ctx context.Context, question string, k int) (commonModels.RetrievedContext, error)

	IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job
	IngestText(ctx context.Context, name string, text string) (commonModels.Document, error)
	Documents() []commonModels.Document
	ClearIndex(ctx context.Context) error
	// Restore publishes the persisted index, if there is one.
	Restore(ctx context.Context) error
}

type Deps struct {
	Embedder    embedding.Embedder
	Index       *vectorDB.Holder
	Persister   vectorDB.Persister
	Search      websearch.Adapter
	Assembler   *assembler.Assembler
	Synthesizer *llm.Synthesizer
	Chunker     *ingest.Chunker
}

type Settings struct {
	Metric        vectorDB.Metric
	TopK          int
	ContextBudget int
	WebMaxResults int
	SearchTimeout time.Duration
	JobTimeout    time.Duration
}

type service struct {
	embedder    embedding.Embedder
	index       *vectorDB.Holder
	persister   vectorDB.Persister
	search      websearch.Adapter
	assembler   *assembler.Assembler
	synthesizer *llm.Synthesizer
	builder     *ingest.Builder
	settings    Settings

	// one rebuild at a time, readers are never blocked by it
	ingestMu sync.Mutex
	logger   *logger_i.Logger
}

func NewService(deps Deps, settings Settings) (Service, error) {
	if deps.Embedder == nil || deps.Index == nil || deps.Assembler == nil || deps.Synthesizer == nil || deps.Chunker == nil {
		return nil, ragErrors.InvalidConfig("rag service is missing a pipeline component")
	}
	if settings.TopK <= 0 {
		return nil, ragErrors.InvalidConfig("top k must be positive, got %d", settings.TopK)
	}
	if settings.ContextBudget <= 0 {
		return nil, ragErrors.InvalidConfig("context budget must be positive, got %d", settings.ContextBudget)
	}
	if _, err := vectorDB.ParseMetric(string(settings.Metric)); err != nil {
		return nil, err
	}
	if deps.Persister == nil {
		deps.Persister = vectorDB.Noop{}
	}
	if deps.Search == nil {
		deps.Search = websearch.Disabled{}
	}

	return &service{
		embedder:    deps.Embedder,
		index:       deps.Index,
		persister:   deps.Persister,
		search:      deps.Search,
		assembler:   deps.Assembler,
		synthesizer: deps.Synthesizer,
		builder:     ingest.NewBuilder(deps.Chunker, deps.Embedder),
		settings:    settings,
		logger:      logger_i.NewLogger("RAG Service"),
	}, nil
}

func (s *service) Ask(ctx context.Context, question string, messageHistory []string, useWebSearch bool) (*llm.AnswerStream, commonModels.RetrievedContext, error) {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY)

	rc, err := s.retrieveContext(ctx, log, question, s.settings.TopK, useWebSearch)
	if err != nil {
		return nil, rc, err
	}

	stream, err := s.executeSynthesisStep(ctx, question, rc, messageHistory)
	if err != nil {
		return nil, rc, err
	}
	return stream, rc, nil
}

func (s *service) Retrieve(ctx context.Context, question string, k int) (commonModels.RetrievedContext, error) {
	if k <= 0 {
		k = s.settings.TopK
	}
	return s.retrieveContext(ctx, s.logger.WithTrace(ctx, config.TRACE_ID_KEY), question, k, true)
}

func (s *service) ProcessRequest(ctx context.Context, jobt jobModel.Job, messageHistory []string) jobModel.Job {
	start := time.Now()
	inMethodLogger := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("JobId", jobt.Id)

	processContext, cancel := context.WithTimeout(ctx, s.jobTimeout())
	defer cancel()

	jobt = logOutput(jobt, jobModel.RAGCall, inMethodLogger)

	stream, rc, err := s.Ask(processContext, jobt.JobPayload.Question, messageHistory, jobt.JobPayload.WebSearchRequested())
	if err != nil {
		metrics.CaptureJobMetrics("error", time.Since(start))
		return s.jobError(jobt, err, "RAG_PIPELINE_FAILURE")
	}
	inMethodLogger.Debug("context assembled", "entries", len(rc.Entries), "size", rc.Size)

	jobt = logOutput(jobt, jobModel.LLMCall, inMethodLogger)
	answer, err := stream.Collect(processContext)
	if err != nil && !errors.Is(err, ragErrors.ErrStreamInterrupted) {
		metrics.CaptureJobMetrics("error", time.Since(start))
		return s.jobError(jobt, err, "LLM_GENERATION_FAILURE")
	}
	if err != nil {
		metrics.IncrementStreamInterruptions()
		inMethodLogger.Warn("answer stream interrupted", "error", err)
	}

	metrics.CaptureJobMetrics("complete", time.Since(start))
	return returnOutput(jobt, answer)
}

func (s *service) IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("Document_ingestion", time.Since(start)) }()
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("JobId", job.Id)

	job = logOutput(job, jobModel.IngestProcessing, log)
	defer func() {
		if err := os.Remove(job.JobPayload.IngestURL); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Error("Error removing file", "error", err)
		}
	}()

	doc, err := ingest.LoadDocument(job.JobPayload.IngestURL, job.JobPayload.IngestFileName)
	if err != nil {
		return s.jobError(job, fmt.Errorf("%w: %w", ragErrors.ErrInvalidDocument, err), "INGESTION_FAILURE")
	}

	job = logOutput(job, jobModel.IngestEmbedding, log)
	doc, err = s.ingest(ctx, doc)
	if err != nil {
		return s.jobError(job, err, "INGESTION_FAILURE")
	}

	job.JobPayload.IngestDocId = doc.Id
	job.Status = jobModel.JobStatusComplete
	job.CurrentStep = jobModel.Complete
	return job
}

func (s *service) IngestText(ctx context.Context, name string, text string) (commonModels.Document, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("Document_ingestion", time.Since(start)) }()

	doc, err := ingest.NewDocument(name, text, commonModels.TXT)
	if err != nil {
		return doc, fmt.Errorf("%w: %w", ragErrors.ErrInvalidDocument, err)
	}
	return s.ingest(ctx, doc)
}

func (s *service) Documents() []commonModels.Document {
	return s.index.Documents()
}

func (s *service) ClearIndex(ctx context.Context) error {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	s.index.Clear()
	metrics.SetIndexState(0, 0)
	s.logger.Info("index cleared")
	return s.persister.Clear(ctx)
}

func (s *service) Restore(ctx context.Context) error {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	snap, err := s.persister.Load(ctx)
	if errors.Is(err, vectorDB.ErrNoSnapshot) {
		s.logger.Info("no persisted index, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	if snap.Dimension != s.embedder.Dimension() || snap.Metric != s.settings.Metric {
		return ragErrors.InvalidConfig("persisted index is %s/%d, configured %s/%d",
			snap.Metric, snap.Dimension, s.settings.Metric, s.embedder.Dimension())
	}

	ix, err := vectorDB.Restore(snap)
	if err != nil {
		return err
	}
	g := s.index.Publish(ix, snap.Documents)
	metrics.SetIndexState(ix.Len(), g.Version)
	s.logger.Info("index restored", "entries", ix.Len(), "documents", len(snap.Documents))
	return nil
}

// ingest builds the next generation next to the published one and swaps it
// in. Any failure leaves the published generation untouched.
func (s *service) ingest(ctx context.Context, doc commonModels.Document) (commonModels.Document, error) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("document", doc.Name)

	entries, err := s.executeIngestEmbeddingStep(ctx, &doc)
	if err != nil {
		log.Error("ingestion failed, keeping current index", "error", err)
		return doc, err
	}

	next, err := vectorDB.NewIndex(s.embedder.Dimension(), s.settings.Metric)
	if err != nil {
		return doc, err
	}
	var docs []commonModels.Document
	if prev := s.index.Current(); prev != nil {
		if err := next.Add(prev.Index.Entries()...); err != nil {
			return doc, err
		}
		docs = append(docs, prev.Documents...)
	}
	if source := sourceName(doc, docs); source != doc.Name {
		log.Info("document name already indexed, citing it by id", "source", source)
		for i := range entries {
			entries[i].Source = source
		}
	}
	if err := next.Add(entries...); err != nil {
		return doc, err
	}

	// the text lives on in the chunks
	doc.Text = ""
	docs = append(docs, doc)

	g := s.index.Publish(next, docs)
	metrics.SetIndexState(next.Len(), g.Version)
	log.Info("index published", "version", g.Version, "entries", next.Len(), "documents", len(docs))

	if err := s.persister.Save(ctx, vectorDB.SnapshotOf(g)); err != nil {
		log.Error("index persisted state is stale", "error", err)
	}
	return doc, nil
}

func (s *service) jobTimeout() time.Duration {
	if s.settings.JobTimeout > 0 {
		return s.settings.JobTimeout
	}
	return config.JobTimeout
}
