package googleEmbedding

import (
	"context"
	"errors"
	"sync"

	"github.com/akolanti/GroundedQA/internal/rag/embedding"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
	"google.golang.org/genai"
)

var logger *logger_i.Logger
var once sync.Once
var embeddingClient *client
var initErr error

type client struct {
	genAi     *genai.Client
	model     string
	dimension int32
}

func newGoogleEmbedder(ctx context.Context, modelName string, apikey string, dimension int) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		logger.Error("Error creating Google Embedding client", "error", err)
		initErr = err
		return
	}
	embeddingClient = &client{
		genAi:     c,
		model:     modelName,
		dimension: int32(dimension),
	}
	logger.Debug("Google Embedding model name: " + modelName)
	logger.Info("Google Embedding client created")
}

// GetGoogleEmbeddingClient builds the process wide client on first use.
func GetGoogleEmbeddingClient(ctx context.Context, modelName string, apikey string, dimension int) (embedding.Provider, error) {
	once.Do(func() {
		logger = logger_i.NewLogger("google_embedding")
		newGoogleEmbedder(ctx, modelName, apikey, dimension)
	})

	//if init still fails
	if embeddingClient == nil {
		if initErr == nil {
			initErr = errors.New("google embedding client unavailable")
		}
		return nil, initErr
	}
	return embeddingClient, nil
}

func (c *client) Name() string { return "google:" + c.model }

func (c *client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result, err := c.genAi.Models.EmbedContent(ctx, c.model, getContent(texts), &genai.EmbedContentConfig{
		OutputDimensionality: &c.dimension,
		TaskType:             "RETRIEVAL_DOCUMENT",
	})
	if err != nil {
		logger.Error("Error getting Embeddings from Google", "error", err)
		return nil, classify(err)
	}

	embeddingResults := make([][]float32, 0, len(result.Embeddings))
	for _, r := range result.Embeddings {
		if r == nil {
			embeddingResults = append(embeddingResults, nil)
			continue
		}
		embeddingResults = append(embeddingResults, r.Values)
	}
	return embeddingResults, nil
}
