package websearch

import (
	"context"

	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
)

// Adapter fetches live web snippets. Callers treat errors as non fatal and
// carry on with document context only.
type Adapter interface {
	Search(ctx context.Context, query string, maxResults int) ([]commonModels.WebSnippet, error)
	Enabled() bool
}

// Disabled is used when web search is switched off or has no credential.
type Disabled struct{}

func (Disabled) Search(context.Context, string, int) ([]commonModels.WebSnippet, error) {
	return nil, nil
}

func (Disabled) Enabled() bool { return false }
