package assembler

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
	"github.com/akolanti/GroundedQA/internal/rag/vectorDB"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hit(source string, pos int, text string, score float64) vectorDB.ScoredEntry {
	return vectorDB.ScoredEntry{
		Entry: commonModels.IndexEntry{
			Chunk:    commonModels.Chunk{DocId: "id-" + source, Text: text, Position: pos},
			Source:   source,
			Position: pos,
		},
		Score: score,
	}
}

func snippet(url, text string) commonModels.WebSnippet {
	return commonModels.WebSnippet{Title: url, URL: url, Snippet: text}
}

func newAssembler(t *testing.T) *Assembler {
	a, err := New(0.5, 0.9)
	require.NoError(t, err)
	return a
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(-1, 0.9)
	assert.ErrorIs(t, err, ragErrors.ErrInvalidConfig)
	_, err = New(0.5, 0)
	assert.ErrorIs(t, err, ragErrors.ErrInvalidConfig)
	_, err = New(0.5, 1.5)
	assert.ErrorIs(t, err, ragErrors.ErrInvalidConfig)
}

func TestAssemble_BudgetMustBePositive(t *testing.T) {
	for _, budget := range []int{0, -5} {
		_, err := newAssembler(t).Assemble(nil, nil, budget)
		assert.ErrorIs(t, err, ragErrors.ErrInvalidConfig)
	}
}

func TestAssemble_RankOrderAcrossKinds(t *testing.T) {
	docs := []vectorDB.ScoredEntry{
		hit("a.pdf", 0, "alpha passage about go channels", 0.9),
		hit("a.pdf", 1, "beta passage on select statements", 0.3),
	}
	web := []commonModels.WebSnippet{
		snippet("https://one.example", "web result about goroutines"),
		snippet("https://two.example", "second web result on mutexes"),
	}

	rc, err := newAssembler(t).Assemble(docs, web, 1000)
	require.NoError(t, err)

	// web scores: 0.5 and 0.25
	labels := make([]string, len(rc.Entries))
	for i, e := range rc.Entries {
		labels[i] = e.SourceLabel
	}
	assert.Equal(t, []string{"a.pdf#0", "https://one.example", "a.pdf#1", "https://two.example"}, labels)
	for i := 1; i < len(rc.Entries); i++ {
		assert.GreaterOrEqual(t, rc.Entries[i-1].Score, rc.Entries[i].Score)
	}
	assert.True(t, rc.HasKind(commonModels.SourceWeb))
}

func TestAssemble_TieFavoursDocuments(t *testing.T) {
	rc, err := newAssembler(t).Assemble(
		[]vectorDB.ScoredEntry{hit("d.txt", 0, "document text here", 0.5)},
		[]commonModels.WebSnippet{snippet("https://w.example", "completely different words")},
		1000,
	)
	require.NoError(t, err)
	require.Len(t, rc.Entries, 2)
	assert.Equal(t, commonModels.SourceDocument, rc.Entries[0].Kind)
}

func TestAssemble_BudgetStopsAtFirstOverflow(t *testing.T) {
	docs := []vectorDB.ScoredEntry{
		hit("d", 0, strings.Repeat("a ", 10), 0.9), // 20 runes
		hit("d", 1, strings.Repeat("b ", 20), 0.8), // 40 runes, overflows
		hit("d", 2, "c", 0.7),                       // would fit but comes after the overflow
	}

	rc, err := newAssembler(t).Assemble(docs, nil, 50)
	require.NoError(t, err)

	require.Len(t, rc.Entries, 1)
	assert.Equal(t, 20, rc.Size)
	total := 0
	for _, e := range rc.Entries {
		total += utf8.RuneCountInString(e.Text)
	}
	assert.LessOrEqual(t, total, 50)
}

func TestAssemble_BudgetCountsRunes(t *testing.T) {
	rc, err := newAssembler(t).Assemble([]vectorDB.ScoredEntry{hit("d", 0, "ünïcödé", 1)}, nil, 7)
	require.NoError(t, err)
	assert.Len(t, rc.Entries, 1)
	assert.Equal(t, 7, rc.Size)
}

func TestAssemble_Dedup(t *testing.T) {
	docs := []vectorDB.ScoredEntry{
		hit("a.pdf", 3, "The quick brown fox jumps over the lazy dog", 0.9),
		hit("a.pdf", 3, "same key different text entirely", 0.8),
		hit("b.pdf", 0, "the QUICK brown fox jumps over the lazy dog!", 0.7),
		hit("c.pdf", 0, "an unrelated passage", 0.6),
	}

	rc, err := newAssembler(t).Assemble(docs, nil, 1000)
	require.NoError(t, err)

	require.Len(t, rc.Entries, 2)
	assert.Equal(t, "a.pdf#3", rc.Entries[0].SourceLabel)
	assert.Equal(t, "c.pdf#0", rc.Entries[1].SourceLabel)
}

func TestAssemble_SameNameDifferentDocumentsKept(t *testing.T) {
	first := hit("notes.txt", 0, "Cats sleep on the sofa.", 0.9)
	second := hit("notes.txt", 0, "Cats hunt mice at night in the barn.", 0.8)
	second.Entry.Chunk.DocId = "other-upload"

	rc, err := newAssembler(t).Assemble([]vectorDB.ScoredEntry{first, second}, nil, 1000)
	require.NoError(t, err)
	assert.Len(t, rc.Entries, 2)
}

func TestAssemble_WebDisabledGivesDocumentOnlyContext(t *testing.T) {
	docs := []vectorDB.ScoredEntry{hit("a.pdf", 0, "only documents", 0.2)}

	rc, err := newAssembler(t).Assemble(docs, nil, 100)
	require.NoError(t, err)

	assert.False(t, rc.HasKind(commonModels.SourceWeb))
	assert.Len(t, rc.Entries, 1)
}

func TestAssemble_Deterministic(t *testing.T) {
	docs := []vectorDB.ScoredEntry{
		hit("a", 0, "one two three", 0.4),
		hit("b", 0, "four five six", 0.4),
		hit("c", 0, "seven eight nine", 0.4),
	}
	web := []commonModels.WebSnippet{snippet("https://x", "ten eleven twelve")}
	a := newAssembler(t)

	first, err := a.Assemble(docs, web, 100)
	require.NoError(t, err)
	for range 10 {
		again, err := a.Assemble(docs, web, 100)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "a#0", first.Entries[0].SourceLabel)
}

func TestFormatAndCitations(t *testing.T) {
	assert.Equal(t, noContext, Format(commonModels.RetrievedContext{}))

	rc := commonModels.RetrievedContext{Entries: []commonModels.ContextEntry{
		{Text: "chunk text", SourceLabel: "a.pdf#0", Kind: commonModels.SourceDocument},
		{Text: "snippet", SourceLabel: "https://w", Kind: commonModels.SourceWeb},
	}}

	out := Format(rc)
	assert.Contains(t, out, "[Document 1] (Source: a.pdf#0), (Type: document)\nchunk text")
	assert.Contains(t, out, "[Document 2] (Source: https://w), (Type: web)\nsnippet")

	cites := Citations(rc)
	require.Len(t, cites, 2)
	assert.Equal(t, commonModels.Citation{Label: "https://w", Kind: commonModels.SourceWeb, Rank: 2}, cites[1])
}
