package mcpServer

import (
	"context"
	"net/http"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const Version = "1.0.0"

// Retriever is the slice of the rag service exposed to MCP clients.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) (commonModels.RetrievedContext, error)
	Documents() []commonModels.Document
}

type Server struct {
	retriever Retriever
	server    *mcp.Server
	logger    *logger_i.Logger
}

func NewServer(retriever Retriever) (*Server, error) {
	if retriever == nil {
		return nil, ragErrors.InvalidConfig("mcp server needs a retriever")
	}
	s := &Server{
		retriever: retriever,
		server:    mcp.NewServer(&mcp.Implementation{Name: "grounded-qa", Version: Version}, nil),
		logger:    logger_i.NewLogger("MCP"),
	}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// Handler serves the streamable HTTP transport. Mount it behind the usual
// middleware so MCP calls are authenticated like every other route.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}
