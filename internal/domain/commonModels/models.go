package commonModels

import (
	"fmt"
	"time"
)

type Document struct {
	Id          string    `json:"source_doc_id"`
	Name        string    `json:"doc_name"`
	Text        string    `json:"-"`
	UploadedAt  time.Time `json:"uploaded_at"`
	ContentType DocType   `json:"contentType"`
	ChunkCount  int       `json:"chunk_count"`
}

// Chunk is a contiguous span of a document. Start and End are rune offsets.
type Chunk struct {
	DocId    string `json:"source_doc_id"`
	Position int    `json:"chunk_order"`
	Text     string `json:"content"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

// IndexEntry is created at ingestion and never modified afterwards.
type IndexEntry struct {
	Id       string    `json:"chunk_id"`
	Chunk    Chunk     `json:"chunk"`
	Vector   []float32 `json:"vector"`
	Source   string    `json:"doc_name"`
	Position int       `json:"position"`
}

func (e IndexEntry) Label() string {
	return fmt.Sprintf("%s#%d", e.Source, e.Position)
}

// Key identifies the chunk by document id, so documents sharing a name stay apart.
func (e IndexEntry) Key() string {
	return fmt.Sprintf("doc:%s#%d", e.Chunk.DocId, e.Position)
}

type WebSnippet struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

type SourceKind string

const (
	SourceDocument SourceKind = "document"
	SourceWeb      SourceKind = "web"
)

type ContextEntry struct {
	Text        string     `json:"text"`
	SourceLabel string     `json:"source"`
	Score       float64    `json:"score"`
	Kind        SourceKind `json:"kind"`
	// Key identifies the origin (document id+position for chunks, url for snippets).
	Key string `json:"-"`
}

// RetrievedContext is relevance ranked, deduplicated and within budget.
type RetrievedContext struct {
	Entries []ContextEntry `json:"entries"`
	Size    int            `json:"size"`
}

func (rc RetrievedContext) HasKind(kind SourceKind) bool {
	for _, e := range rc.Entries {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

type Citation struct {
	Label string     `json:"label"`
	Kind  SourceKind `json:"kind"`
	Rank  int        `json:"rank"`
}

type Answer struct {
	Text       string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	Incomplete bool       `json:"incomplete"`
}

type DocType string

var PDF DocType = "PDF"
var DOCX DocType = "DOCX"
var TXT DocType = "TXT"
var ERR DocType = "ERROR"
