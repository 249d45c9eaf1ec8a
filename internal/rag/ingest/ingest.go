package ingest

import (
	"context"
	"fmt"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/rag/embedding"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
	"github.com/google/uuid"
)

// Builder turns a document into index entries: chunk, then embed every chunk.
type Builder struct {
	chunker  *Chunker
	embedder embedding.Embedder
	logger   *logger_i.Logger
}

func NewBuilder(chunker *Chunker, embedder embedding.Embedder) *Builder {
	return &Builder{
		chunker:  chunker,
		embedder: embedder,
		logger:   logger_i.NewLogger("Document Ingestion"),
	}
}

// BuildEntries sets doc.ChunkCount. Entries come back in chunk order.
func (b *Builder) BuildEntries(ctx context.Context, doc *commonModels.Document) ([]commonModels.IndexEntry, error) {
	chunks := b.chunker.Collect(doc.Id, doc.Text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, doc.Name)
	}
	b.logger.Debug("Processing document", "name", doc.Name, "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := b.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %s: %w", doc.Name, err)
	}

	entries := make([]commonModels.IndexEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = commonModels.IndexEntry{
			Id:       uuid.NewString(),
			Chunk:    c,
			Vector:   vectors[i],
			Source:   doc.Name,
			Position: c.Position,
		}
	}
	doc.ChunkCount = len(entries)
	return entries, nil
}
