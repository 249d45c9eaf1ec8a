package llm

import (
	"context"
	"iter"
)

type Prompt struct {
	System      string
	User        string
	Temperature float32
}

// Provider streams answer text. A non nil error ends the sequence. The
// sequence must stop once ctx is done.
type Provider interface {
	Stream(ctx context.Context, prompt Prompt) iter.Seq2[string, error]
	Name() string
}
