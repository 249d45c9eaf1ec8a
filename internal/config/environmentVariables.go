package config

import (
	"log/slog"
	"time"
)

const (
	LOG_LEVEL_PROD              = slog.LevelInfo
	TRACE_ID_KEY                = "traceId"
	RATE_LIMIT_PER_SECOND       = 2
	BURST_RATE_LIMIT_PER_SECOND = 5
	//a client quiet for this long loses its bucket
	RateLimiterIdleTTL          = 10 * time.Minute

	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute
	//IdleWorkerTimeout = 1 * time.Second //fo tests

	//whole job budget, every external call inside it carries its own timeout
	JobTimeout = 60 * time.Second
	//large uploads embed in many batches
	IngestTimeout = 10 * time.Minute

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 0 //streaming answers hold the connection open
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	//upload limit for multipart ingestion
	MaxUploadSize = 32 << 20

	//chunking
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	//embeddings
	DefaultEmbeddingProvider  = "google"
	GoogleEmbeddingModel      = "gemini-embedding-001"
	OpenAIEmbeddingModel      = "text-embedding-3-small"
	DefaultEmbeddingDimension = 1536
	DefaultEmbeddingBatchSize = 100

	//index
	DefaultSimilarityMetric = "cosine"
	DefaultTopK             = 3
	DefaultPersistence      = "none"
	DefaultIndexPath        = "faiss_index/index.json"
	IndexCollectionName     = "grounded-qa-index"

	//context assembly
	DefaultContextBudget  = 6000
	DefaultWebWeight      = 0.5
	DefaultDedupThreshold = 0.9

	//web search
	TavilyBaseURL           = "https://api.tavily.com"
	DefaultWebMaxResults    = 3
	SearchBreakerTimeout    = 60 * time.Second
	SearchBreakerMaxFailure = 3

	//llm
	DefaultLLMProvider       = "groq"
	GeminiModelName          = "gemini-2.5-flash-lite-preview-09-2025"
	GroqModelName            = "llama-3.1-8b-instant"
	OpenAIModelName          = "gpt-4o-mini"
	GroqBaseURL              = "https://api.groq.com/openai/v1"
	ModelTemperature float32 = 0
	ModelContext             = "You are a helpful AI assistant. Use the following context to answer the user's question. " +
		"Cite the sources you used by their label in square brackets. " +
		"If the context doesn't contain relevant information, say so and provide what help you can."

	//per-call timeouts and retries
	DefaultEmbeddingTimeout = 30 * time.Second
	DefaultSearchTimeout    = 10 * time.Second
	DefaultSynthesisTimeout = 60 * time.Second
	DefaultRetries          = 2
	DefaultBackoffInitial   = 500 * time.Millisecond

	//vectorDB
	QdrantHost             = "localhost"
	QdrantGrpcPort         = 6334
	QdrantUseTLS           = false //set for https
	QdrantPoolSize         = 1     //2-5 is preferred for prod according to documentation
	QdrantConnectionTimout = 30 * time.Second

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DB we can use
	RedisJobStore     = 0
	RedisMessageStore = 1

	//redis timeouts
	RedisJobStoreTTL     = 24 * time.Hour
	RedisMessageStoreTTL = 24 * time.Hour
	MessageHistoryLength = 5
)
