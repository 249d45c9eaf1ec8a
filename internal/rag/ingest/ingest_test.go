package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEmbedder struct {
	OnEmbed func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return m.OnEmbed(ctx, texts)
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	v, err := m.OnEmbed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (m *mockEmbedder) Dimension() int { return 2 }

func TestGetDocType(t *testing.T) {
	tests := []struct {
		path     string
		expected commonModels.DocType
	}{
		{"test.pdf", commonModels.PDF},
		{"DOC.DOCX", commonModels.DOCX},
		{"notes.txt", commonModels.TXT},
		{"README.md", commonModels.TXT},
		{"image.png", commonModels.ERR},
	}

	for _, tt := range tests {
		if got := getDocType(tt.path); got != tt.expected {
			t.Errorf("getDocType(%s) = %v; want %v", tt.path, got, tt.expected)
		}
	}
}

func TestBuildEntries(t *testing.T) {
	chunker, err := NewChunker(20, 5)
	require.NoError(t, err)

	emb := &mockEmbedder{OnEmbed: func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = []float32{float32(len(text)), 1}
		}
		return out, nil
	}}

	doc, err := NewDocument("pets.txt", "The cat sat. The dog ran.", commonModels.TXT)
	require.NoError(t, err)

	entries, err := NewBuilder(chunker, emb).BuildEntries(context.Background(), &doc)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, 2, doc.ChunkCount)
	for i, e := range entries {
		assert.NotEmpty(t, e.Id)
		assert.Equal(t, "pets.txt", e.Source)
		assert.Equal(t, i, e.Position)
		assert.Equal(t, doc.Id, e.Chunk.DocId)
		assert.Equal(t, float32(len(e.Chunk.Text)), e.Vector[0])
	}
	assert.Equal(t, "pets.txt#1", entries[1].Label())
	assert.NotEqual(t, entries[0].Id, entries[1].Id)
}

func TestBuildEntries_EmbeddingFailure(t *testing.T) {
	chunker, _ := NewChunker(50, 0)
	emb := &mockEmbedder{OnEmbed: func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.Join(ragErrors.ErrEmbeddingProvider, context.DeadlineExceeded)
	}}
	doc := commonModels.Document{Id: "d", Name: "slow.txt", Text: "some text"}

	_, err := NewBuilder(chunker, emb).BuildEntries(context.Background(), &doc)
	assert.ErrorIs(t, err, ragErrors.ErrEmbeddingProvider)
	assert.Zero(t, doc.ChunkCount)
}

func TestNewDocument_Empty(t *testing.T) {
	_, err := NewDocument("blank.txt", "  \n\t", commonModels.TXT)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestLoadDocument_PlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload-123.txt")
	require.NoError(t, os.WriteFile(path, []byte("Grounded answers cite their sources."), 0o644))

	doc, err := LoadDocument(path, "guide.txt")
	require.NoError(t, err)

	assert.Equal(t, "guide.txt", doc.Name)
	assert.Equal(t, commonModels.TXT, doc.ContentType)
	assert.True(t, strings.Contains(doc.Text, "cite their sources"))
	assert.NotEmpty(t, doc.Id)
}

func TestLoadDocument_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50}, 0o644))

	_, err := LoadDocument(path, "image.png")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestJoinPages(t *testing.T) {
	got := joinPages([]rawPage{{1, "one"}, {2, "  "}, {3, "three"}})
	assert.Equal(t, "one\n\nthree", got)
}
