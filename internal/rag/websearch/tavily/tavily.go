package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/akolanti/GroundedQA/internal/config"
	"github.com/akolanti/GroundedQA/internal/domain/commonModels"
	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type searchRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	Topic       string `json:"topic,omitempty"`
	SearchDepth string `json:"search_depth"`
}

type searchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

type Client struct {
	baseURL string
	apiKey  string
	topic   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logger_i.Logger
}

func New(cfg config.WebSearchConfig, httpClient *http.Client) *Client {
	logger := logger_i.NewLogger("tavily")
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "TavilySearch",
		MaxRequests: 1,
		Timeout:     config.SearchBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.SearchBreakerMaxFailure
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		topic:   cfg.Topic,
		http:    httpClient,
		breaker: breaker,
		logger:  logger,
	}
}

func (c *Client) Enabled() bool { return true }

func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]commonModels.WebSnippet, error) {
	if maxResults <= 0 {
		return nil, nil
	}
	ctx, span := otel.Tracer("websearch").Start(ctx, "tavily.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("max_results", maxResults))

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doSearch(ctx, query, maxResults)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("tavily.circuit_breaker_open", true))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		c.logger.Warn("web search failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ragErrors.ErrSearchProvider, err)
	}

	snippets := res.([]commonModels.WebSnippet)
	span.SetAttributes(attribute.Int("results", len(snippets)))
	return snippets, nil
}

func (c *Client) doSearch(ctx context.Context, query string, maxResults int) ([]commonModels.WebSnippet, error) {
	body, err := json.Marshal(searchRequest{
		Query:       query,
		MaxResults:  maxResults,
		Topic:       c.topic,
		SearchDepth: "basic",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	snippets := make([]commonModels.WebSnippet, 0, min(len(parsed.Results), maxResults))
	for _, r := range parsed.Results {
		if len(snippets) == maxResults {
			break
		}
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		snippets = append(snippets, commonModels.WebSnippet{
			Title:   r.Title,
			Snippet: r.Content,
			URL:     r.URL,
		})
	}
	return snippets, nil
}
