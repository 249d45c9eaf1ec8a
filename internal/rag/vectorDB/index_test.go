package vectorDB

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string, v ...float32) commonModels.IndexEntry {
	return commonModels.IndexEntry{Id: id, Vector: v, Source: "doc", Chunk: commonModels.Chunk{Text: id}}
}

func TestNewIndex_Invalid(t *testing.T) {
	_, err := NewIndex(0, Cosine)
	assert.ErrorIs(t, err, ragErrors.ErrInvalidConfig)

	_, err = NewIndex(3, Metric("dot"))
	assert.ErrorIs(t, err, ragErrors.ErrInvalidConfig)

	m, err := ParseMetric(" L2 ")
	require.NoError(t, err)
	assert.Equal(t, L2, m)
}

func TestSearch_NotReadyAndArguments(t *testing.T) {
	ix, err := NewIndex(2, Cosine)
	require.NoError(t, err)

	_, err = ix.Search([]float32{1, 0}, 1)
	assert.ErrorIs(t, err, ragErrors.ErrIndexNotReady)

	require.NoError(t, ix.Add(entry("a", 1, 0)))

	_, err = ix.Search([]float32{1, 0}, 0)
	assert.ErrorIs(t, err, ragErrors.ErrInvalidConfig)

	_, err = ix.Search([]float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, ragErrors.ErrDimensionMismatch)
}

func TestAdd_DimensionMismatchAddsNothing(t *testing.T) {
	ix, err := NewIndex(2, Cosine)
	require.NoError(t, err)

	err = ix.Add(entry("a", 1, 0), entry("b", 1, 0, 0))
	assert.ErrorIs(t, err, ragErrors.ErrDimensionMismatch)
	assert.Zero(t, ix.Len())
}

func TestSearch_Ranking(t *testing.T) {
	tests := []struct {
		name   string
		metric Metric
		query  []float32
		k      int
		want   []string
	}{
		{"cosine ties keep insertion order", Cosine, []float32{1, 0}, 3, []string{"east", "far-east", "north-east"}},
		{"l2 best first", L2, []float32{10, 0}, 2, []string{"far-east", "east"}},
		{"k above n returns all", Cosine, []float32{0, 1}, 10, []string{"north", "north-east", "east", "far-east"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, err := NewIndex(2, tt.metric)
			require.NoError(t, err)
			require.NoError(t, ix.Add(
				entry("east", 1, 0),
				entry("north-east", 1, 1),
				entry("north", 0, 1),
				entry("far-east", 9, 0),
			))

			hits, err := ix.Search(tt.query, tt.k)
			require.NoError(t, err)
			require.Len(t, hits, min(tt.k, 4))

			for i, id := range tt.want {
				assert.Equal(t, id, hits[i].Entry.Id)
			}
			for i := 1; i < len(hits); i++ {
				assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
			}
		})
	}
}

func TestSearch_Scores(t *testing.T) {
	cos, _ := NewIndex(2, Cosine)
	require.NoError(t, cos.Add(entry("a", 3, 4)))
	hits, err := cos.Search([]float32{3, 4}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)

	l2, _ := NewIndex(2, L2)
	require.NoError(t, l2.Add(entry("a", 3, 4)))
	hits, err = l2.Search([]float32{0, 0}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/6.0, hits[0].Score, 1e-9)

	zero, _ := NewIndex(2, Cosine)
	require.NoError(t, zero.Add(entry("z", 0, 0)))
	hits, err = zero.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(hits[0].Score))
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	ix, _ := NewIndex(2, Cosine)
	for i := range 5 {
		require.NoError(t, ix.Add(entry(fmt.Sprintf("dup-%d", i), 2, 2)))
	}

	hits, err := ix.Search([]float32{1, 1}, 3)
	require.NoError(t, err)
	assert.Equal(t, "dup-0", hits[0].Entry.Id)
	assert.Equal(t, "dup-1", hits[1].Entry.Id)
	assert.Equal(t, "dup-2", hits[2].Entry.Id)
}

func TestSearch_ConcurrentReaders(t *testing.T) {
	ix, _ := NewIndex(2, Cosine)
	require.NoError(t, ix.Add(entry("a", 1, 0), entry("b", 0, 1)))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				hits, err := ix.Search([]float32{1, 0}, 1)
				assert.NoError(t, err)
				assert.Equal(t, "a", hits[0].Entry.Id)
			}
		}()
	}
	wg.Wait()
}
