package openaiLLM

import (
	"context"
	"iter"

	"github.com/akolanti/GroundedQA/internal/customHttpClient"
	"github.com/akolanti/GroundedQA/internal/rag/llm"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type client struct {
	api    openai.Client
	model  string
	logger *logger_i.Logger
}

// New streams chat completions from OpenAI or from any compatible endpoint
// (Groq) when baseURL is set.
func New(modelName string, apiKey string, baseURL string) llm.Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(customHttpClient.GetClient()),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &client{
		api:    openai.NewClient(opts...),
		model:  modelName,
		logger: logger_i.NewLogger("llm_openai"),
	}
}

func (c *client) Name() string { return "openai:" + c.model }

func (c *client) Stream(ctx context.Context, prompt llm.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream := c.api.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(c.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(prompt.System),
				openai.UserMessage(prompt.User),
			},
			Temperature: openai.Float(float64(prompt.Temperature)),
		})
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if !yield(chunk.Choices[0].Delta.Content, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			c.logger.Error("chat stream failed", "error", err)
			yield("", err)
		}
	}
}
