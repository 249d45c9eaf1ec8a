package mcpServer

import (
	"context"
	"errors"
	"strings"

	"github.com/akolanti/GroundedQA/internal/config"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var errEmptyQuery = errors.New("query must not be empty")

type SearchInput struct {
	Query string `json:"query" jsonschema:"the question to retrieve context for"`
	K     int    `json:"k,omitempty" jsonschema:"number of document chunks to consider (default is the configured top k)"`
}

type SearchOutput struct {
	Entries []EntryOutput `json:"entries"`
	Count   int           `json:"count"`
	Size    int           `json:"size"`
}

type EntryOutput struct {
	Source string  `json:"source"`
	Kind   string  `json:"kind"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Retrieve ranked context for a question from the indexed documents and, when enabled, the web",
	}, s.handleSearch)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, errEmptyQuery
	}
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY)

	rc, err := s.retriever.Retrieve(ctx, input.Query, input.K)
	if err != nil {
		log.Error("mcp retrieval failed", "error", err)
		return nil, SearchOutput{}, err
	}

	out := SearchOutput{
		Entries: make([]EntryOutput, len(rc.Entries)),
		Count:   len(rc.Entries),
		Size:    rc.Size,
	}
	for i, e := range rc.Entries {
		out.Entries[i] = EntryOutput{
			Source: e.SourceLabel,
			Kind:   string(e.Kind),
			Score:  e.Score,
			Text:   e.Text,
		}
	}
	log.Debug("mcp search served", "entries", out.Count)
	return nil, out, nil
}
