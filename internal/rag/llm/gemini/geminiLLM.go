package gemini

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/akolanti/GroundedQA/internal/rag/llm"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
	"google.golang.org/genai"
)

type llmClient struct {
	client    *genai.Client
	modelName string
}

var logger *logger_i.Logger
var geminiClient *llmClient
var initErr error
var once sync.Once

func GetGeminiClient(ctx context.Context, modelName string, apikey string) (llm.Provider, error) {
	once.Do(func() {
		logger = logger_i.NewLogger("llm_gemini")
		newGeminiClient(ctx, modelName, apikey)
	})

	if geminiClient == nil {
		if initErr == nil {
			initErr = errors.New("gemini client unavailable")
		}
		return nil, initErr
	}
	return geminiClient, nil
}

func newGeminiClient(ctx context.Context, modelName string, apikey string) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		logger.Error("Error creating Gemini client:", "error", err)
		initErr = err
		return
	}
	geminiClient = &llmClient{client: c, modelName: modelName}
	logger.Debug("Gemini client created", "model", modelName)
}

func (c *llmClient) Name() string { return "gemini:" + c.modelName }

func (c *llmClient) Stream(ctx context.Context, prompt llm.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		temperature := prompt.Temperature
		contentConfig := &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: prompt.System}},
			},
			Temperature: &temperature,
		}

		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.modelName, genai.Text(prompt.User), contentConfig) {
			if err != nil {
				logger.Error("gemini stream failed", "error", err)
				yield("", err)
				return
			}
			if !yield(resp.Text(), nil) {
				return
			}
		}
	}
}
