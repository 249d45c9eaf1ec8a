package mcpServer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const documentsURI = "groundedqa://documents"

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         documentsURI,
		Name:        "documents",
		Description: "Documents in the current index generation",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)
}

func (s *Server) handleDocumentsResource(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	docs := s.retriever.Documents()
	if docs == nil {
		docs = []commonModels.Document{}
	}
	raw, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("encoding documents: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(raw),
		}},
	}, nil
}
