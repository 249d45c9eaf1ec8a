package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
	"github.com/akolanti/GroundedQA/internal/rag/assembler"
	"github.com/akolanti/GroundedQA/internal/rag/retry"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const fragmentBuffer = 16

type Options struct {
	SystemPrompt string
	Temperature  float32
	// Timeout bounds the whole stream, not a single fragment.
	Timeout        time.Duration
	Retries        int
	InitialBackoff time.Duration
}

type Synthesizer struct {
	provider Provider
	opts     Options
	logger   *logger_i.Logger
}

func NewSynthesizer(p Provider, opts Options) (*Synthesizer, error) {
	if p == nil {
		return nil, ragErrors.InvalidConfig("llm provider is required")
	}
	if opts.Retries < 0 {
		return nil, ragErrors.InvalidConfig("synthesis retries must not be negative")
	}
	return &Synthesizer{
		provider: p,
		opts:     opts,
		logger:   logger_i.NewLogger("synthesizer").With("provider", p.Name()),
	}, nil
}

// Synthesize returns once the first fragment is available. Failures before
// that point are retried and end up as ErrSynthesisProvider. Failures after it
// are reported by AnswerStream.Err.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, rc commonModels.RetrievedContext, messageHistory []string) (*AnswerStream, error) {
	ctx, span := otel.Tracer("synthesis").Start(ctx, "llm.Synthesize")
	defer span.End()
	span.SetAttributes(attribute.Int("context_entries", len(rc.Entries)))

	prompt := Prompt{
		System:      s.opts.SystemPrompt,
		User:        buildUserPrompt(question, rc, messageHistory),
		Temperature: s.opts.Temperature,
	}
	citations := assembler.Citations(rc)

	policy := retry.Policy{Attempts: s.opts.Retries, InitialBackoff: s.opts.InitialBackoff}
	stream, err := retry.Do(ctx, policy, func(context.Context) (*AnswerStream, error) {
		// the stream outlives this attempt, so it hangs off the caller context
		return s.start(ctx, prompt, citations)
	})
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("synthesis failed before first fragment", "error", err)
		return nil, fmt.Errorf("%w: %w", ragErrors.ErrSynthesisProvider, err)
	}
	return stream, nil
}

func (s *Synthesizer) start(parent context.Context, prompt Prompt, citations []commonModels.Citation) (*AnswerStream, error) {
	var ctx context.Context
	var cancel context.CancelFunc
	if s.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, s.opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	as := &AnswerStream{
		fragments: make(chan string, fragmentBuffer),
		done:      make(chan struct{}),
		citations: citations,
		cancel:    cancel,
	}
	first := make(chan error, 1)
	go as.run(parent, ctx, s.provider.Stream(ctx, prompt), first)

	if err := <-first; err != nil {
		return nil, err
	}
	return as, nil
}
