package llm

import (
	"context"
	"iter"
	"strings"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
)

// AnswerStream delivers answer fragments in order. Streams share nothing, so
// several can run at once.
type AnswerStream struct {
	fragments chan string
	done      chan struct{}
	citations []commonModels.Citation
	cancel    context.CancelFunc

	// written by run before done is closed
	emitted int
	err     error
}

func (a *AnswerStream) run(parent context.Context, ctx context.Context, seq iter.Seq2[string, error], first chan<- error) {
	defer close(a.done)
	defer close(a.fragments)
	defer a.cancel()

	started := false
	for frag, err := range seq {
		if err != nil {
			switch {
			case !started:
				first <- err
			case parent.Err() != nil:
				a.err = parent.Err()
			default:
				a.err = &ragErrors.StreamInterruptedError{Emitted: a.emitted, Cause: err}
			}
			return
		}
		if frag == "" {
			continue
		}
		if !started {
			started = true
			first <- nil
		}
		select {
		case a.fragments <- frag:
			a.emitted++
		case <-ctx.Done():
			if parent.Err() != nil {
				a.err = parent.Err()
			} else {
				a.err = &ragErrors.StreamInterruptedError{Emitted: a.emitted, Cause: ctx.Err()}
			}
			return
		}
	}

	if !started {
		// the model produced an empty answer
		first <- nil
	}
}

func (a *AnswerStream) Fragments() <-chan string {
	return a.fragments
}

// Citations lists every context entry the model was given, in rank order.
func (a *AnswerStream) Citations() []commonModels.Citation {
	return a.citations
}

// Err blocks until the stream has ended. It is nil on a complete answer, a
// *ragErrors.StreamInterruptedError when the provider failed midway, or the
// context error when the caller cancelled.
func (a *AnswerStream) Err() error {
	<-a.done
	return a.err
}

func (a *AnswerStream) Emitted() int {
	<-a.done
	return a.emitted
}

// Close stops the provider. Fragments already buffered are dropped.
func (a *AnswerStream) Close() {
	a.cancel()
	for range a.fragments {
	}
}

// Collect drains the stream into an Answer. An interrupted stream still
// returns the partial text, marked incomplete, together with the error.
func (a *AnswerStream) Collect(ctx context.Context) (commonModels.Answer, error) {
	var b strings.Builder
	answer := commonModels.Answer{Citations: a.citations}

	for {
		select {
		case frag, ok := <-a.fragments:
			if !ok {
				answer.Text = b.String()
				err := a.Err()
				answer.Incomplete = err != nil
				return answer, err
			}
			b.WriteString(frag)
		case <-ctx.Done():
			a.Close()
			answer.Text = b.String()
			answer.Incomplete = true
			return answer, ctx.Err()
		}
	}
}
