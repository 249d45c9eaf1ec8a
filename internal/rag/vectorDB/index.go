package vectorDB

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
)

type Metric string

const (
	Cosine Metric = "cosine"
	L2     Metric = "l2"
)

func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case Cosine:
		return Cosine, nil
	case L2:
		return L2, nil
	}
	return "", ragErrors.InvalidConfig("unknown similarity metric %q", s)
}

// ScoredEntry is a search hit. Higher Score means more similar for both metrics.
type ScoredEntry struct {
	Entry commonModels.IndexEntry
	Score float64
}

// Index is an exact in-memory nearest neighbour index. The metric and the
// dimension are fixed when it is created.
type Index struct {
	mu      sync.RWMutex
	dim     int
	metric  Metric
	entries []commonModels.IndexEntry
	norms   []float64
}

func NewIndex(dim int, metric Metric) (*Index, error) {
	if dim <= 0 {
		return nil, ragErrors.InvalidConfig("index dimension must be positive, got %d", dim)
	}
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	return &Index{dim: dim, metric: metric}, nil
}

func (ix *Index) Dimension() int { return ix.dim }
func (ix *Index) Metric() Metric { return ix.metric }

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Add appends entries in order. Nothing is added when one of them has the
// wrong dimension.
func (ix *Index) Add(entries ...commonModels.IndexEntry) error {
	for _, e := range entries {
		if len(e.Vector) != ix.dim {
			return dimensionError(e.Id, len(e.Vector), ix.dim)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, e := range entries {
		ix.entries = append(ix.entries, e)
		ix.norms = append(ix.norms, norm(e.Vector))
	}
	return nil
}

// Entries returns a copy of the stored entries in insertion order.
func (ix *Index) Entries() []commonModels.IndexEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]commonModels.IndexEntry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

// Search returns the min(k, n) most similar entries, best first. Equal scores
// keep insertion order.
func (ix *Index) Search(query []float32, k int) ([]ScoredEntry, error) {
	if k <= 0 {
		return nil, ragErrors.InvalidConfig("k must be positive, got %d", k)
	}
	if len(query) != ix.dim {
		return nil, dimensionError("query", len(query), ix.dim)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.entries) == 0 {
		return nil, ragErrors.ErrIndexNotReady
	}

	qNorm := norm(query)
	hits := make([]ScoredEntry, len(ix.entries))
	for i, e := range ix.entries {
		hits[i] = ScoredEntry{Entry: e, Score: ix.similarity(query, qNorm, e.Vector, ix.norms[i])}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })

	return hits[:min(k, len(hits))], nil
}

func (ix *Index) similarity(q []float32, qNorm float64, v []float32, vNorm float64) float64 {
	if ix.metric == L2 {
		var sum float64
		for i := range q {
			d := float64(q[i]) - float64(v[i])
			sum += d * d
		}
		return 1 / (1 + math.Sqrt(sum))
	}

	if qNorm == 0 || vNorm == 0 {
		return 0
	}
	var dot float64
	for i := range q {
		dot += float64(q[i]) * float64(v[i])
	}
	return dot / (qNorm * vNorm)
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}
