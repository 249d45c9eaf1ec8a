package embedding

import (
	"context"
	"fmt"

	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
	"github.com/akolanti/GroundedQA/internal/rag/retry"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Provider is a single remote embedding API. One call embeds one batch.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	Dimension() int
}

type Options struct {
	Dimension int
	BatchSize int
	Retry     retry.Policy
}

// Manager turns a Provider into an Embedder: batching, per call timeout,
// bounded retries and dimension checks.
type Manager struct {
	provider Provider
	opts     Options
	logger   *logger_i.Logger
}

func NewManager(p Provider, opts Options) (*Manager, error) {
	if p == nil {
		return nil, ragErrors.InvalidConfig("embedding provider is required")
	}
	if opts.Dimension <= 0 {
		return nil, ragErrors.InvalidConfig("embedding dimension must be positive, got %d", opts.Dimension)
	}
	if opts.BatchSize <= 0 {
		return nil, ragErrors.InvalidConfig("embedding batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.Retry.Attempts < 0 {
		return nil, ragErrors.InvalidConfig("embedding retries must not be negative")
	}
	return &Manager{
		provider: p,
		opts:     opts,
		logger:   logger_i.NewLogger("embedding").With("provider", p.Name()),
	}, nil
}

func (m *Manager) Dimension() int { return m.opts.Dimension }

// Embed returns one vector per text, in input order.
func (m *Manager) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := otel.Tracer("embedding").Start(ctx, "embedding.Embed")
	defer span.End()
	span.SetAttributes(attribute.Int("texts", len(texts)), attribute.String("provider", m.provider.Name()))

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += m.opts.BatchSize {
		end := min(i+m.opts.BatchSize, len(texts))
		batch := texts[i:end]

		m.logger.Debug("embedding batch", "from", i, "to", end)
		vectors, err := retry.Do(ctx, m.opts.Retry, func(ctx context.Context) ([][]float32, error) {
			return m.provider.EmbedBatch(ctx, batch)
		})
		if err != nil {
			m.logger.Error("embedding batch failed", "from", i, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "embedding failed")
			return nil, fmt.Errorf("%w: %w", ragErrors.ErrEmbeddingProvider, err)
		}
		if err := m.check(batch, vectors); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bad embedding response")
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (m *Manager) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := m.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *Manager) check(batch []string, vectors [][]float32) error {
	if len(vectors) != len(batch) {
		return fmt.Errorf("%w: got %d vectors for %d texts", ragErrors.ErrEmbeddingProvider, len(vectors), len(batch))
	}
	for i, v := range vectors {
		if len(v) != m.opts.Dimension {
			m.logger.Error("provider returned wrong dimension", "index", i, "got", len(v), "want", m.opts.Dimension)
			return fmt.Errorf("%w: %w: vector %d has %d values, want %d",
				ragErrors.ErrEmbeddingProvider, ragErrors.ErrDimensionMismatch, i, len(v), m.opts.Dimension)
		}
	}
	return nil
}
