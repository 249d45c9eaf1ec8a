package rag_test

import (
	"context"
	"iter"
	"strings"
	"sync/atomic"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/rag/llm"
)

var keywords = []string{"cat", "dog", "paris"}

// keywordVector gives every text a 4 value vector: one slot per keyword plus a
// constant so that no vector has zero norm.
func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(keywords)+1)
	for i, k := range keywords {
		if strings.Contains(lower, k) {
			v[i] = 1
		}
	}
	v[len(keywords)] = 0.1
	return v
}

// MockProvider implements embedding.Provider.
type MockProvider struct {
	OnEmbedBatch func(ctx context.Context, texts []string) ([][]float32, error)
	calls        atomic.Int32
}

func (m *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls.Add(1)
	if m.OnEmbedBatch != nil {
		return m.OnEmbedBatch(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = keywordVector(t)
	}
	return out, nil
}

func (m *MockProvider) Name() string { return "mock" }

// MockLLM implements llm.Provider.
type MockLLM struct {
	OnStream   func(ctx context.Context, prompt llm.Prompt) iter.Seq2[string, error]
	LastPrompt atomic.Pointer[llm.Prompt]
}

func (m *MockLLM) Stream(ctx context.Context, prompt llm.Prompt) iter.Seq2[string, error] {
	m.LastPrompt.Store(&prompt)
	if m.OnStream != nil {
		return m.OnStream(ctx, prompt)
	}
	return streamOf([]string{"mocked ", "llm ", "response"}, nil)
}

func (m *MockLLM) Name() string { return "mock" }

func streamOf(parts []string, failWith error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, p := range parts {
			if !yield(p, nil) {
				return
			}
		}
		if failWith != nil {
			yield("", failWith)
		}
	}
}

// MockSearch implements websearch.Adapter.
type MockSearch struct {
	OnSearch func(ctx context.Context, query string, maxResults int) ([]commonModels.WebSnippet, error)
	calls    atomic.Int32
}

func (m *MockSearch) Search(ctx context.Context, query string, maxResults int) ([]commonModels.WebSnippet, error) {
	m.calls.Add(1)
	if m.OnSearch != nil {
		return m.OnSearch(ctx, query, maxResults)
	}
	return []commonModels.WebSnippet{{Title: "News", Snippet: "fresh web fact", URL: "https://example.com/news"}}, nil
}

func (m *MockSearch) Enabled() bool { return true }
