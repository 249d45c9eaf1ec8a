package vectorDB

import (
	"sync/atomic"
	"time"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
)

// Generation is one fully built index together with the documents it holds.
// A published generation is never modified.
type Generation struct {
	Index     *Index
	Documents []commonModels.Document
	BuiltAt   time.Time
	Version   uint64
}

// Holder publishes index generations. Readers always see either the previous
// or the next generation, never a half built one.
type Holder struct {
	current atomic.Pointer[Generation]
	version atomic.Uint64
}

func NewHolder() *Holder {
	return &Holder{}
}

// Current is nil while nothing has been ingested.
func (h *Holder) Current() *Generation {
	return h.current.Load()
}

func (h *Holder) Publish(index *Index, docs []commonModels.Document) *Generation {
	g := &Generation{
		Index:     index,
		Documents: docs,
		BuiltAt:   time.Now(),
		Version:   h.version.Add(1),
	}
	h.current.Store(g)
	return g
}

func (h *Holder) Clear() {
	h.current.Store(nil)
}

func (h *Holder) Search(query []float32, k int) ([]ScoredEntry, error) {
	g := h.current.Load()
	if g == nil {
		return nil, ragErrors.ErrIndexNotReady
	}
	return g.Index.Search(query, k)
}

// Documents of the current generation; empty when the index is empty.
func (h *Holder) Documents() []commonModels.Document {
	g := h.current.Load()
	if g == nil {
		return nil
	}
	out := make([]commonModels.Document, len(g.Documents))
	copy(out, g.Documents)
	return out
}
