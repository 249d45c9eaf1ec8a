package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
	"github.com/akolanti/GroundedQA/internal/rag/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	OnEmbedBatch func(ctx context.Context, texts []string) ([][]float32, error)
	calls        int
}

func (m *mockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	return m.OnEmbedBatch(ctx, texts)
}

func (m *mockProvider) Name() string { return "mock" }

// fakeVectors encodes the text length so ordering can be checked.
func fakeVectors(texts []string, dim int) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, dim)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out
}

func opts(dim, batch int) Options {
	return Options{
		Dimension: dim,
		BatchSize: batch,
		Retry:     retry.Policy{Attempts: 1, InitialBackoff: time.Millisecond, Timeout: 50 * time.Millisecond},
	}
}

func TestNewManager_Invalid(t *testing.T) {
	p := &mockProvider{}
	tests := []struct {
		name string
		p    Provider
		o    Options
	}{
		{"nil provider", nil, opts(3, 1)},
		{"zero dimension", p, opts(0, 1)},
		{"zero batch", p, opts(3, 0)},
		{"negative retries", p, Options{Dimension: 3, BatchSize: 1, Retry: retry.Policy{Attempts: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(tt.p, tt.o)
			assert.ErrorIs(t, err, ragErrors.ErrInvalidConfig)
		})
	}
}

func TestEmbed_BatchesPreserveOrder(t *testing.T) {
	var batches [][]string
	p := &mockProvider{OnEmbedBatch: func(ctx context.Context, texts []string) ([][]float32, error) {
		batches = append(batches, texts)
		return fakeVectors(texts, 4), nil
	}}
	m, err := NewManager(p, opts(4, 2))
	require.NoError(t, err)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := m.Embed(context.Background(), texts)

	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, v := range vectors {
		assert.Len(t, v, 4)
		assert.Equal(t, float32(len(texts[i])), v[0])
	}
	assert.Len(t, batches, 3)
	assert.Equal(t, 4, m.Dimension())
}

func TestEmbed_Empty(t *testing.T) {
	p := &mockProvider{}
	m, err := NewManager(p, opts(4, 2))
	require.NoError(t, err)

	vectors, err := m.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Zero(t, p.calls)
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	p := &mockProvider{OnEmbedBatch: func(ctx context.Context, texts []string) ([][]float32, error) {
		return fakeVectors(texts, 3), nil
	}}
	m, err := NewManager(p, opts(4, 8))
	require.NoError(t, err)

	_, err = m.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ragErrors.ErrDimensionMismatch)
	assert.ErrorIs(t, err, ragErrors.ErrInvalidConfig)
	assert.ErrorIs(t, err, ragErrors.ErrEmbeddingProvider)
}

func TestEmbed_WrongCount(t *testing.T) {
	p := &mockProvider{OnEmbedBatch: func(ctx context.Context, texts []string) ([][]float32, error) {
		return fakeVectors(texts[:1], 2), nil
	}}
	m, err := NewManager(p, opts(2, 8))
	require.NoError(t, err)

	_, err = m.Embed(context.Background(), []string{"x", "y"})
	assert.ErrorIs(t, err, ragErrors.ErrEmbeddingProvider)
}

func TestEmbed_RetriesTransientFailure(t *testing.T) {
	p := &mockProvider{}
	p.OnEmbedBatch = func(ctx context.Context, texts []string) ([][]float32, error) {
		if p.calls == 1 {
			return nil, errors.New("503 service unavailable")
		}
		return fakeVectors(texts, 2), nil
	}
	m, err := NewManager(p, opts(2, 8))
	require.NoError(t, err)

	v, err := m.EmbedQuery(context.Background(), "question")
	require.NoError(t, err)
	assert.Len(t, v, 2)
	assert.Equal(t, 2, p.calls)
}

func TestEmbed_TimeoutBecomesProviderError(t *testing.T) {
	p := &mockProvider{OnEmbedBatch: func(ctx context.Context, texts []string) ([][]float32, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("embed: %w", ctx.Err())
	}}
	m, err := NewManager(p, opts(2, 8))
	require.NoError(t, err)

	_, err = m.Embed(context.Background(), []string{"slow"})
	assert.ErrorIs(t, err, ragErrors.ErrEmbeddingProvider)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, p.calls)
}
