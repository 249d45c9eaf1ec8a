// @title           Grounded QA API
// @version         1.0
// @description     Answers questions from ingested documents and live web results, with citations.
// @termsOfService  http://swagger.io/terms/

// @contact.name    API Support
// @contact.url
// @contact.email

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/GroundedQA/internal/config"
	"github.com/akolanti/GroundedQA/internal/customHttpClient"
	"github.com/akolanti/GroundedQA/internal/data/store"
	jobmodel "github.com/akolanti/GroundedQA/internal/domain/jobModel"
	"github.com/akolanti/GroundedQA/internal/handlers"
	"github.com/akolanti/GroundedQA/internal/job"
	"github.com/akolanti/GroundedQA/internal/mcpServer"
	"github.com/akolanti/GroundedQA/internal/middleware"
	"github.com/akolanti/GroundedQA/internal/rag"
	"github.com/akolanti/GroundedQA/internal/rag/assembler"
	"github.com/akolanti/GroundedQA/internal/rag/embedding"
	"github.com/akolanti/GroundedQA/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/GroundedQA/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/GroundedQA/internal/rag/ingest"
	"github.com/akolanti/GroundedQA/internal/rag/llm"
	"github.com/akolanti/GroundedQA/internal/rag/llm/gemini"
	"github.com/akolanti/GroundedQA/internal/rag/llm/openaiLLM"
	"github.com/akolanti/GroundedQA/internal/rag/retry"
	"github.com/akolanti/GroundedQA/internal/rag/vectorDB"
	"github.com/akolanti/GroundedQA/internal/rag/vectorDB/fileStore"
	"github.com/akolanti/GroundedQA/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/GroundedQA/internal/rag/websearch"
	"github.com/akolanti/GroundedQA/internal/rag/websearch/tavily"
	"github.com/akolanti/GroundedQA/internal/server"
	"github.com/akolanti/GroundedQA/internal/telemetry"
	"github.com/akolanti/GroundedQA/internal/worker"
	"github.com/akolanti/GroundedQA/pkg/logger_i"
)

var (
	configPath        string
	listenAddr        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {
	flag.StringVar(&configPath, "config", os.Getenv("RAG_CONFIG"), "path to a YAML config file")
	flag.StringVar(&listenAddr, "listen-addr", "", "server listen address, overrides the config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(2)
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	logger_i.Init(cfg.IsProd, cfg.SlogLevel())
	var logger = logger_i.NewLogger("main")

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	shutdownTracer, err := telemetry.InitTracer(serviceContext, cfg.OTLPEndpoint, "grounded-qa", cfg.IsProd)
	if err != nil {
		logger.Error("Tracing disabled", "error", err)
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error("Tracer shutdown failed", "error", err)
			}
		}()
	}

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	//init job service and job store
	serviceConfig := job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
	}
	if !cfg.Redis.Disabled {
		if js := store.GetRedisJobStore(serviceContext, cfg.Redis); js != nil {
			serviceConfig.JobStore = js
		}
		if ms := store.GetRedisMessageStore(serviceContext, cfg.Redis); ms != nil {
			serviceConfig.MessageStore = ms
		}
	}
	if serviceConfig.JobStore == nil || serviceConfig.MessageStore == nil {
		logger.Warn("Redis stores are offline, using in-memory stores")
		serviceConfig.JobStore = store.InitInMemoryJobStore()
		serviceConfig.MessageStore = store.InitMessageStore()
	}
	logger.Info("Starting job service")
	service := job.InitJobService(serviceConfig)

	ragService, err := buildRagService(serviceContext, cfg)
	if err != nil {
		logger.Error("Could not build the RAG pipeline. Shutting down.", "error", err)
		return
	}
	if err := ragService.Restore(serviceContext); err != nil {
		logger.Error("Could not restore the persisted index. Shutting down.", "error", err)
		return
	}

	handlers.InitJobHandler(service)
	handlers.InitRagHandler(ragService)
	middleware.InitAuth(cfg.AuthToken, cfg.NoAuth)
	middleware.InitRateLimit(cfg.RateLimit)

	mcp, err := mcpServer.NewServer(ragService)
	if err != nil {
		logger.Error("MCP server unavailable", "error", err)
		return
	}

	//init worker pool
	worker.InitServices(service, ragService)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices: func() {
			closeExternalServices()
			customHttpClient.CloseIdle()
		},
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(cfg.ListenAddr, mcp.Handler())

	<-stopExecution
	logger.Info("Server stopped")
}

func buildRagService(ctx context.Context, cfg config.Config) (rag.Service, error) {
	provider, err := embeddingProvider(ctx, cfg.Embedding)
	if err != nil {
		return nil, err
	}
	embedder, err := embedding.NewManager(provider, embedding.Options{
		Dimension: cfg.Embedding.Dimension,
		BatchSize: cfg.Embedding.BatchSize,
		Retry: retry.Policy{
			Attempts:       cfg.Retry.Attempts,
			InitialBackoff: cfg.Retry.InitialBackoff,
			Timeout:        cfg.Embedding.Timeout,
		},
	})
	if err != nil {
		return nil, err
	}

	generator, err := llmProvider(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	synthesizer, err := llm.NewSynthesizer(generator, llm.Options{
		SystemPrompt:   cfg.LLM.SystemPrompt,
		Temperature:    cfg.LLM.Temperature,
		Timeout:        cfg.LLM.Timeout,
		Retries:        cfg.Retry.Attempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
	})
	if err != nil {
		return nil, err
	}

	persister, err := indexPersister(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var search websearch.Adapter = websearch.Disabled{}
	if cfg.WebSearchEnabled() {
		search = tavily.New(cfg.WebSearch, customHttpClient.GetClient())
	}

	chunker, err := ingest.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}
	ctxAssembler, err := assembler.New(cfg.Context.WebWeight, cfg.Context.DedupThreshold)
	if err != nil {
		return nil, err
	}

	metric, err := vectorDB.ParseMetric(cfg.Index.Metric)
	if err != nil {
		return nil, err
	}

	return rag.NewService(rag.Deps{
		Embedder:    embedder,
		Index:       vectorDB.NewHolder(),
		Persister:   persister,
		Search:      search,
		Assembler:   ctxAssembler,
		Synthesizer: synthesizer,
		Chunker:     chunker,
	}, rag.Settings{
		Metric:        metric,
		TopK:          cfg.Index.TopK,
		ContextBudget: cfg.Context.Budget,
		WebMaxResults: cfg.WebSearch.MaxResults,
		SearchTimeout: cfg.WebSearch.Timeout,
		JobTimeout:    config.JobTimeout,
	})
}

func embeddingProvider(ctx context.Context, cfg config.EmbeddingConfig) (embedding.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openaiEmbedding.New(cfg.Model, cfg.APIKey, cfg.BaseURL, cfg.Dimension), nil
	default:
		return googleEmbedding.GetGoogleEmbeddingClient(ctx, cfg.Model, cfg.APIKey, cfg.Dimension)
	}
}

func llmProvider(ctx context.Context, cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.GetGeminiClient(ctx, cfg.Model, cfg.APIKey)
	default:
		// groq speaks the openai protocol
		return openaiLLM.New(cfg.Model, cfg.APIKey, cfg.BaseURL), nil
	}
}

func indexPersister(ctx context.Context, cfg config.Config) (vectorDB.Persister, error) {
	switch cfg.Index.Persistence {
	case "file":
		return fileStore.New(cfg.Index.Path), nil
	case "qdrant":
		holder, err := qdrantDB.GetQuadrantClient(ctx, cfg.Qdrant, cfg.Index.Collection)
		if err != nil {
			return nil, err
		}
		return holder, nil
	default:
		return vectorDB.Noop{}, nil
	}
}
