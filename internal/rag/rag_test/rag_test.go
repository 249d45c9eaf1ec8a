package rag_test

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akolanti/GroundedQA/internal/config"
	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/domain/jobModel"
	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
	"github.com/akolanti/GroundedQA/internal/rag"
	"github.com/akolanti/GroundedQA/internal/rag/assembler"
	"github.com/akolanti/GroundedQA/internal/rag/embedding"
	"github.com/akolanti/GroundedQA/internal/rag/ingest"
	"github.com/akolanti/GroundedQA/internal/rag/llm"
	"github.com/akolanti/GroundedQA/internal/rag/retry"
	"github.com/akolanti/GroundedQA/internal/rag/vectorDB"
	"github.com/akolanti/GroundedQA/internal/rag/vectorDB/fileStore"
	"github.com/akolanti/GroundedQA/internal/rag/websearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	provider  *MockProvider
	llm       *MockLLM
	search    websearch.Adapter
	persister vectorDB.Persister
	holder    *vectorDB.Holder
	dimension int
}

func newFixture() *fixture {
	return &fixture{
		provider:  &MockProvider{},
		llm:       &MockLLM{},
		holder:    vectorDB.NewHolder(),
		dimension: len(keywords) + 1,
	}
}

func (f *fixture) build(t *testing.T) rag.Service {
	t.Helper()
	embedder, err := embedding.NewManager(f.provider, embedding.Options{
		Dimension: f.dimension,
		BatchSize: 8,
		Retry:     retry.Policy{Attempts: 0, InitialBackoff: time.Millisecond, Timeout: 50 * time.Millisecond},
	})
	require.NoError(t, err)
	chunker, err := ingest.NewChunker(200, 20)
	require.NoError(t, err)
	asm, err := assembler.New(0.5, 0.9)
	require.NoError(t, err)
	synth, err := llm.NewSynthesizer(f.llm, llm.Options{Timeout: time.Second, InitialBackoff: time.Millisecond})
	require.NoError(t, err)

	s, err := rag.NewService(rag.Deps{
		Embedder:    embedder,
		Index:       f.holder,
		Persister:   f.persister,
		Search:      f.search,
		Assembler:   asm,
		Synthesizer: synth,
		Chunker:     chunker,
	}, rag.Settings{
		Metric:        vectorDB.Cosine,
		TopK:          3,
		ContextBudget: 1000,
		WebMaxResults: 2,
		SearchTimeout: time.Second,
		JobTimeout:    5 * time.Second,
	})
	require.NoError(t, err)
	return s
}

func testCtx() context.Context {
	return context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
}

func seed(t *testing.T, s rag.Service) {
	t.Helper()
	_, err := s.IngestText(testCtx(), "cats.txt", "Cats sleep on the sofa most of the day.")
	require.NoError(t, err)
	_, err = s.IngestText(testCtx(), "paris.txt", "Paris is the capital of France.")
	require.NoError(t, err)
}

func kinds(rc commonModels.RetrievedContext) []commonModels.SourceKind {
	out := make([]commonModels.SourceKind, len(rc.Entries))
	for i, e := range rc.Entries {
		out[i] = e.Kind
	}
	return out
}

func TestAsk_DocumentAndWebContext(t *testing.T) {
	f := newFixture()
	search := &MockSearch{}
	f.search = search
	s := f.build(t)
	seed(t, s)

	stream, rc, err := s.Ask(testCtx(), "where do cats sleep", nil, true)
	require.NoError(t, err)

	require.Len(t, rc.Entries, 3)
	assert.Equal(t, "cats.txt#0", rc.Entries[0].SourceLabel)
	assert.Equal(t, commonModels.SourceWeb, rc.Entries[1].Kind)
	assert.Equal(t, "paris.txt#0", rc.Entries[2].SourceLabel)
	assert.EqualValues(t, 1, search.calls.Load())

	answer, err := stream.Collect(testCtx())
	require.NoError(t, err)
	assert.Equal(t, "mocked llm response", answer.Text)
	assert.False(t, answer.Incomplete)
	require.Len(t, answer.Citations, 3)
	assert.Equal(t, 1, answer.Citations[0].Rank)

	prompt := f.llm.LastPrompt.Load()
	require.NotNil(t, prompt)
	assert.Contains(t, prompt.User, "(Source: cats.txt#0)")
	assert.True(t, strings.HasSuffix(prompt.User, "Question: where do cats sleep\n\nAnswer: "))
}

func TestAsk_WebDisabledUsesDocumentsOnly(t *testing.T) {
	f := newFixture()
	s := f.build(t)
	seed(t, s)

	rc, err := s.Retrieve(testCtx(), "where do cats sleep", 0)
	require.NoError(t, err)

	assert.False(t, rc.HasKind(commonModels.SourceWeb))
	assert.Equal(t, []commonModels.SourceKind{commonModels.SourceDocument, commonModels.SourceDocument}, kinds(rc))
}

func TestAsk_WebSearchTurnedOffPerQuery(t *testing.T) {
	f := newFixture()
	search := &MockSearch{}
	f.search = search
	s := f.build(t)
	seed(t, s)

	stream, rc, err := s.Ask(testCtx(), "where do cats sleep", nil, false)
	require.NoError(t, err)
	defer stream.Close()

	assert.Zero(t, search.calls.Load())
	assert.False(t, rc.HasKind(commonModels.SourceWeb))
	assert.Equal(t, "cats.txt#0", rc.Entries[0].SourceLabel)
}

func TestAsk_WebSearchRequestCannotEnableDisabledAdapter(t *testing.T) {
	f := newFixture()
	s := f.build(t)
	seed(t, s)

	stream, rc, err := s.Ask(testCtx(), "where do cats sleep", nil, true)
	require.NoError(t, err)
	defer stream.Close()

	assert.False(t, rc.HasKind(commonModels.SourceWeb))
}

func TestAsk_WebSearchRunsWhileQueryIsEmbedded(t *testing.T) {
	webStarted := make(chan struct{})
	var startOnce sync.Once

	f := newFixture()
	f.search = &MockSearch{
		OnSearch: func(ctx context.Context, query string, maxResults int) ([]commonModels.WebSnippet, error) {
			startOnce.Do(func() { close(webStarted) })
			return []commonModels.WebSnippet{{Title: "News", Snippet: "fresh web fact", URL: "https://example.com/news"}}, nil
		},
	}
	s := f.build(t)
	seed(t, s)

	f.provider.OnEmbedBatch = func(ctx context.Context, texts []string) ([][]float32, error) {
		select {
		case <-webStarted:
		case <-ctx.Done():
			return nil, retry.Permanent(errors.New("web search did not start while the query was embedded"))
		}
		return [][]float32{keywordVector(texts[0])}, nil
	}

	rc, err := s.Retrieve(testCtx(), "where do cats sleep", 0)
	require.NoError(t, err)
	assert.True(t, rc.HasKind(commonModels.SourceWeb))
	assert.True(t, rc.HasKind(commonModels.SourceDocument))
}

func TestAsk_QueryEmbeddingFailureCancelsWebSearch(t *testing.T) {
	f := newFixture()
	f.search = &MockSearch{
		OnSearch: func(ctx context.Context, query string, maxResults int) ([]commonModels.WebSnippet, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	s := f.build(t)
	seed(t, s)

	f.provider.OnEmbedBatch = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, retry.Permanent(errors.New("401"))
	}

	_, err := s.Retrieve(testCtx(), "where do cats sleep", 0)
	assert.ErrorIs(t, err, ragErrors.ErrEmbeddingProvider)
}

func TestAsk_WebSearchGetsDeadline(t *testing.T) {
	f := newFixture()
	f.search = &MockSearch{
		OnSearch: func(ctx context.Context, query string, maxResults int) ([]commonModels.WebSnippet, error) {
			_, ok := ctx.Deadline()
			assert.True(t, ok, "search runs under the configured timeout")
			return nil, nil
		},
	}
	s := f.build(t)

	_, err := s.Retrieve(context.Background(), "anything", 0)
	require.NoError(t, err)
}

func TestRetrieve_SameNamedDocumentsStayApart(t *testing.T) {
	f := newFixture()
	s := f.build(t)

	first, err := s.IngestText(testCtx(), "notes.txt", "Cats sleep on the sofa.")
	require.NoError(t, err)
	second, err := s.IngestText(testCtx(), "notes.txt", "Cats hunt mice at night in the barn.")
	require.NoError(t, err)

	rc, err := s.Retrieve(testCtx(), "cats", 5)
	require.NoError(t, err)
	require.Len(t, rc.Entries, 2)

	labels := []string{rc.Entries[0].SourceLabel, rc.Entries[1].SourceLabel}
	assert.Contains(t, labels, "notes.txt#0")
	assert.Contains(t, labels, "notes.txt~"+second.Id[:8]+"#0")
	assert.NotEqual(t, labels[0], labels[1])

	// the listing keeps the names as uploaded
	docs := s.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, first.Id, docs[0].Id)
	assert.Equal(t, "notes.txt", docs[1].Name)
}

func TestAsk_EmptyIndexFallsBackToWeb(t *testing.T) {
	f := newFixture()
	f.search = &MockSearch{}
	s := f.build(t)

	stream, rc, err := s.Ask(testCtx(), "what happened today", nil, true)
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, []commonModels.SourceKind{commonModels.SourceWeb}, kinds(rc))
	assert.Zero(t, f.provider.calls.Load(), "nothing to compare the query against")
}

func TestAsk_EmptyIndexWithoutWeb(t *testing.T) {
	f := newFixture()
	s := f.build(t)

	stream, rc, err := s.Ask(testCtx(), "anything", nil, true)
	require.NoError(t, err)
	_, err = stream.Collect(testCtx())
	require.NoError(t, err)

	assert.Empty(t, rc.Entries)
	assert.Contains(t, f.llm.LastPrompt.Load().User, "No relevant context found.")
}

func TestAsk_WebFailureDegrades(t *testing.T) {
	f := newFixture()
	f.search = &MockSearch{
		OnSearch: func(ctx context.Context, query string, maxResults int) ([]commonModels.WebSnippet, error) {
			return nil, ragErrors.ErrSearchProvider
		},
	}
	s := f.build(t)
	seed(t, s)

	rc, err := s.Retrieve(testCtx(), "where do cats sleep", 1)
	require.NoError(t, err)

	require.Len(t, rc.Entries, 1)
	assert.Equal(t, "cats.txt#0", rc.Entries[0].SourceLabel)
}

func TestAsk_QueryEmbeddingFailure(t *testing.T) {
	f := newFixture()
	s := f.build(t)
	seed(t, s)

	f.provider.OnEmbedBatch = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, retry.Permanent(errors.New("401"))
	}

	_, _, err := s.Ask(testCtx(), "where do cats sleep", nil, true)
	assert.ErrorIs(t, err, ragErrors.ErrEmbeddingProvider)
}

func TestIngest_EmbeddingTimeoutKeepsPreviousIndex(t *testing.T) {
	f := newFixture()
	s := f.build(t)
	_, err := s.IngestText(testCtx(), "cats.txt", "Cats sleep on the sofa.")
	require.NoError(t, err)

	f.provider.OnEmbedBatch = func(ctx context.Context, texts []string) ([][]float32, error) {
		if strings.Contains(texts[0], "dog") {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = keywordVector(text)
		}
		return out, nil
	}

	_, err = s.IngestText(testCtx(), "dogs.txt", "Dogs bark at the mailman.")
	assert.ErrorIs(t, err, ragErrors.ErrEmbeddingProvider)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	docs := s.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "cats.txt", docs[0].Name)

	rc, err := s.Retrieve(testCtx(), "cat", 0)
	require.NoError(t, err)
	require.Len(t, rc.Entries, 1)
	assert.Equal(t, "cats.txt#0", rc.Entries[0].SourceLabel)
}

func TestIngestText_Documents(t *testing.T) {
	f := newFixture()
	s := f.build(t)

	doc, err := s.IngestText(testCtx(), "cats.txt", strings.Repeat("Cats sleep a lot. ", 30))
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Id)
	assert.Greater(t, doc.ChunkCount, 1)
	assert.Equal(t, commonModels.TXT, doc.ContentType)

	docs := s.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, doc.Id, docs[0].Id)
	assert.Empty(t, docs[0].Text)

	_, err = s.IngestText(testCtx(), "blank.txt", "   ")
	assert.ErrorIs(t, err, ragErrors.ErrInvalidDocument)
}

func TestClearIndex(t *testing.T) {
	f := newFixture()
	s := f.build(t)
	seed(t, s)

	require.NoError(t, s.ClearIndex(testCtx()))

	assert.Empty(t, s.Documents())
	rc, err := s.Retrieve(testCtx(), "cat", 0)
	require.NoError(t, err)
	assert.Empty(t, rc.Entries)
}

func TestRestore_FromFileStore(t *testing.T) {
	store := fileStore.New(filepath.Join(t.TempDir(), "index.json"))

	first := newFixture()
	first.persister = store
	seed(t, first.build(t))

	second := newFixture()
	second.persister = store
	s := second.build(t)
	require.NoError(t, s.Restore(testCtx()))

	docs := s.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, "cats.txt", docs[0].Name)
	assert.Equal(t, "paris.txt", docs[1].Name)

	rc, err := s.Retrieve(testCtx(), "capital of paris", 1)
	require.NoError(t, err)
	require.Len(t, rc.Entries, 1)
	assert.Equal(t, "paris.txt#0", rc.Entries[0].SourceLabel)
}

func TestRestore_Mismatch(t *testing.T) {
	store := fileStore.New(filepath.Join(t.TempDir(), "index.json"))

	first := newFixture()
	first.persister = store
	seed(t, first.build(t))

	second := newFixture()
	second.persister = store
	second.dimension = 8
	err := second.build(t).Restore(testCtx())
	assert.ErrorIs(t, err, ragErrors.ErrInvalidConfig)
}

func TestRestore_NothingPersisted(t *testing.T) {
	f := newFixture()
	f.persister = fileStore.New(filepath.Join(t.TempDir(), "missing.json"))
	s := f.build(t)

	require.NoError(t, s.Restore(testCtx()))
	assert.Empty(t, s.Documents())
}

func TestProcessRequest_Scenarios(t *testing.T) {
	tests := []struct {
		name           string
		stream         func(ctx context.Context, prompt llm.Prompt) iter.Seq2[string, error]
		expectedStatus jobModel.JobStatus
		expectedAnswer string
		incomplete     bool
		expectedCode   int
		retry          bool
	}{
		{
			name:           "Success_Full_Flow",
			expectedStatus: jobModel.JobStatusComplete,
			expectedAnswer: "mocked llm response",
		},
		{
			name: "Interrupted_Stream",
			stream: func(ctx context.Context, prompt llm.Prompt) iter.Seq2[string, error] {
				return streamOf([]string{"partial ", "answer"}, errors.New("connection reset"))
			},
			expectedStatus: jobModel.JobStatusComplete,
			expectedAnswer: "partial answer",
			incomplete:     true,
		},
		{
			name: "Failure_Before_First_Fragment",
			stream: func(ctx context.Context, prompt llm.Prompt) iter.Seq2[string, error] {
				return streamOf(nil, errors.New("provider down"))
			},
			expectedStatus: jobModel.JobStatusError,
			expectedCode:   http.StatusBadGateway,
			retry:          true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.llm.OnStream = tt.stream
			s := f.build(t)
			seed(t, s)

			job := jobModel.Job{
				Id:         "test-job",
				JobPayload: jobModel.JobPayload{Question: "where do cats sleep"},
			}
			result := s.ProcessRequest(testCtx(), job, []string{})

			assert.Equal(t, tt.expectedStatus, result.Status)
			if tt.expectedStatus == jobModel.JobStatusError {
				assert.Equal(t, tt.expectedCode, result.Error.Code)
				assert.Equal(t, tt.retry, result.Error.Retry)
				assert.Equal(t, jobModel.Error, result.CurrentStep)
				return
			}
			assert.Equal(t, tt.expectedAnswer, result.JobPayload.Answer)
			assert.Equal(t, tt.incomplete, result.JobPayload.Incomplete)
			assert.Equal(t, jobModel.Complete, result.CurrentStep)
			require.NotEmpty(t, result.JobPayload.Sources)
			assert.Equal(t, "cats.txt#0", result.JobPayload.Sources[0])
			assert.Len(t, result.JobPayload.Citations, len(result.JobPayload.Sources))
		})
	}
}

func TestProcessRequest_WebSearchChoice(t *testing.T) {
	off, on := false, true
	tests := []struct {
		name      string
		useWeb    *bool
		wantCalls int32
	}{
		{"default uses web", nil, 1},
		{"explicitly on", &on, 1},
		{"turned off", &off, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			search := &MockSearch{}
			f.search = search
			s := f.build(t)
			seed(t, s)

			job := jobModel.Job{
				Id:         "web-choice",
				JobPayload: jobModel.JobPayload{Question: "where do cats sleep", UseWebSearch: tt.useWeb},
			}
			result := s.ProcessRequest(testCtx(), job, nil)

			require.Equal(t, jobModel.JobStatusComplete, result.Status)
			assert.Equal(t, tt.wantCalls, search.calls.Load())
			assert.Equal(t, tt.wantCalls > 0, slices.Contains(result.JobPayload.Sources, "https://example.com/news"))
		})
	}
}

func TestIngestDocument_Scenarios(t *testing.T) {
	tests := []struct {
		name           string
		fileName       string
		content        string
		expectedStatus jobModel.JobStatus
		expectedCode   int
	}{
		{"Ingestion_Success", "notes.txt", "Cats sleep on the sofa.", jobModel.JobStatusComplete, 0},
		{"Markdown_Success", "notes.md", "# Cats\n\nThey sleep.", jobModel.JobStatusComplete, 0},
		{"Unsupported_Type", "notes.xyz", "whatever", jobModel.JobStatusError, http.StatusUnprocessableEntity},
		{"Empty_File", "empty.txt", "", jobModel.JobStatusError, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFixture().build(t)

			path := filepath.Join(t.TempDir(), tt.fileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			job := jobModel.Job{
				Id:      "ingest-job-1",
				JobType: jobModel.JobTypeIngest,
				JobPayload: jobModel.JobPayload{
					IngestFileName: tt.fileName,
					IngestURL:      path,
				},
			}
			result := s.IngestDocument(testCtx(), job)

			assert.Equal(t, tt.expectedStatus, result.Status)
			_, statErr := os.Stat(path)
			assert.True(t, os.IsNotExist(statErr), "upload is removed either way")

			if tt.expectedStatus == jobModel.JobStatusError {
				assert.Equal(t, tt.expectedCode, result.Error.Code)
				assert.False(t, result.Error.Retry)
				return
			}
			assert.NotEmpty(t, result.JobPayload.IngestDocId)
			require.Len(t, s.Documents(), 1)
			assert.Equal(t, tt.fileName, s.Documents()[0].Name)
		})
	}
}

func TestNewService_Invalid(t *testing.T) {
	asm, err := assembler.New(0.5, 0.9)
	require.NoError(t, err)

	_, err = rag.NewService(rag.Deps{Assembler: asm}, rag.Settings{TopK: 3, ContextBudget: 10, Metric: vectorDB.Cosine})
	assert.ErrorIs(t, err, ragErrors.ErrInvalidConfig)
}
