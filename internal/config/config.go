package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/akolanti/GroundedQA/internal/domain/ragErrors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is built once at startup and passed by value afterwards.
type Config struct {
	IsProd    bool   `yaml:"prod"`
	LogLevel  string `yaml:"log_level"`
	AuthToken string `yaml:"auth_token"`
	NoAuth    bool   `yaml:"no_auth"`

	ListenAddr string `yaml:"listen_addr"`

	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Context   ContextConfig   `yaml:"context"`
	WebSearch WebSearchConfig `yaml:"web_search"`
	LLM       LLMConfig       `yaml:"llm"`
	Retry     RetryConfig     `yaml:"retry"`
	Redis     RedisConfig     `yaml:"redis"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

type ChunkingConfig struct {
	Size    int `yaml:"chunk_size"`
	Overlap int `yaml:"chunk_overlap"`
}

type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"` // google | openai
	Model     string        `yaml:"model"`
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Dimension int           `yaml:"dimension"`
	BatchSize int           `yaml:"batch_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

type IndexConfig struct {
	Metric      string `yaml:"metric"` // cosine | l2
	TopK        int    `yaml:"top_k"`
	Persistence string `yaml:"persistence"` // none | file | qdrant
	Path        string `yaml:"path"`
	Collection  string `yaml:"collection"`
}

type ContextConfig struct {
	Budget         int     `yaml:"budget"`
	WebWeight      float64 `yaml:"web_weight"`
	DedupThreshold float64 `yaml:"dedup_threshold"`
}

type WebSearchConfig struct {
	Enabled    bool          `yaml:"enabled"`
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	MaxResults int           `yaml:"max_results"`
	Topic      string        `yaml:"topic"`
	Timeout    time.Duration `yaml:"timeout"`
}

type LLMConfig struct {
	Provider     string        `yaml:"provider"` // gemini | openai | groq
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Temperature  float32       `yaml:"temperature"`
	SystemPrompt string        `yaml:"system_prompt"`
	Timeout      time.Duration `yaml:"timeout"`
}

type RetryConfig struct {
	Attempts       int           `yaml:"attempts"` // extra attempts after the first call
	InitialBackoff time.Duration `yaml:"initial_backoff"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	Disabled bool   `yaml:"disabled"`
}

// RateLimitConfig is applied per client ip.
type RateLimitConfig struct {
	PerSecond float64       `yaml:"per_second"`
	Burst     int           `yaml:"burst"`
	IdleTTL   time.Duration `yaml:"idle_ttl"`
}

type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

func Default() Config {
	return Config{
		LogLevel:   "debug",
		ListenAddr: ServerListenAddr,
		Chunking:   ChunkingConfig{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap},
		Embedding: EmbeddingConfig{
			Provider:  DefaultEmbeddingProvider,
			Dimension: DefaultEmbeddingDimension,
			BatchSize: DefaultEmbeddingBatchSize,
			Timeout:   DefaultEmbeddingTimeout,
		},
		Index: IndexConfig{
			Metric:      DefaultSimilarityMetric,
			TopK:        DefaultTopK,
			Persistence: DefaultPersistence,
			Path:        DefaultIndexPath,
			Collection:  IndexCollectionName,
		},
		Context: ContextConfig{
			Budget:         DefaultContextBudget,
			WebWeight:      DefaultWebWeight,
			DedupThreshold: DefaultDedupThreshold,
		},
		WebSearch: WebSearchConfig{
			Enabled:    true,
			BaseURL:    TavilyBaseURL,
			MaxResults: DefaultWebMaxResults,
			Topic:      "general",
			Timeout:    DefaultSearchTimeout,
		},
		LLM: LLMConfig{
			Provider:     DefaultLLMProvider,
			Temperature:  ModelTemperature,
			SystemPrompt: ModelContext,
			Timeout:      DefaultSynthesisTimeout,
		},
		Retry:  RetryConfig{Attempts: DefaultRetries, InitialBackoff: DefaultBackoffInitial},
		Redis:  RedisConfig{Addr: RedisAddr},
		Qdrant: QdrantConfig{Host: QdrantHost, Port: QdrantGrpcPort, UseTLS: QdrantUseTLS},

		RateLimit: RateLimitConfig{
			PerSecond: RATE_LIMIT_PER_SECOND,
			Burst:     BURST_RATE_LIMIT_PER_SECOND,
			IdleTTL:   RateLimiterIdleTTL,
		},
	}
}

// Load reads .env, an optional YAML file and the environment, in that order of
// precedence (environment wins), then validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.applyProviderDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, ragErrors.InvalidConfig("%s=%q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	flt := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, ragErrors.InvalidConfig("%s=%q is not a number", key, v))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, ragErrors.InvalidConfig("%s=%q is not a boolean", key, v))
				return
			}
			*dst = b
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, ragErrors.InvalidConfig("%s=%q is not a duration", key, v))
				return
			}
			*dst = d
		}
	}

	boolean("IS_PROD", &cfg.IsProd)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("AUTH_TOKEN", &cfg.AuthToken)
	boolean("NO_AUTH", &cfg.NoAuth)
	str("LISTEN_ADDR", &cfg.ListenAddr)

	num("CHUNK_SIZE", &cfg.Chunking.Size)
	num("CHUNK_OVERLAP", &cfg.Chunking.Overlap)

	str("EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	str("EMBEDDING_MODEL", &cfg.Embedding.Model)
	str("EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	str("EMBEDDING_BASE_URL", &cfg.Embedding.BaseURL)
	num("EMBEDDING_DIMENSION", &cfg.Embedding.Dimension)
	dur("EMBEDDING_TIMEOUT", &cfg.Embedding.Timeout)

	str("SIMILARITY_METRIC", &cfg.Index.Metric)
	num("TOP_K_RESULTS", &cfg.Index.TopK)
	str("INDEX_PERSISTENCE", &cfg.Index.Persistence)
	str("FAISS_INDEX_PATH", &cfg.Index.Path)

	num("CONTEXT_BUDGET", &cfg.Context.Budget)
	flt("WEB_WEIGHT", &cfg.Context.WebWeight)
	flt("DEDUP_THRESHOLD", &cfg.Context.DedupThreshold)

	boolean("WEB_SEARCH_ENABLED", &cfg.WebSearch.Enabled)
	str("TAVILY_API_KEY", &cfg.WebSearch.APIKey)
	num("WEB_SEARCH_MAX_RESULTS", &cfg.WebSearch.MaxResults)
	dur("WEB_SEARCH_TIMEOUT", &cfg.WebSearch.Timeout)

	str("LLM_PROVIDER", &cfg.LLM.Provider)
	str("LLM_MODEL", &cfg.LLM.Model)
	str("LLM_BASE_URL", &cfg.LLM.BaseURL)
	dur("LLM_TIMEOUT", &cfg.LLM.Timeout)
	temperature := float64(cfg.LLM.Temperature)
	flt("LLM_TEMPERATURE", &temperature)
	cfg.LLM.Temperature = float32(temperature)

	num("PROVIDER_RETRIES", &cfg.Retry.Attempts)

	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("QDRANT_HOST", &cfg.Qdrant.Host)
	num("QDRANT_PORT", &cfg.Qdrant.Port)
	str("QDRANT_API_KEY", &cfg.Qdrant.APIKey)

	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OTLPEndpoint)

	flt("RATE_LIMIT_PER_SECOND", &cfg.RateLimit.PerSecond)
	num("RATE_LIMIT_BURST", &cfg.RateLimit.Burst)

	// provider keys are looked up by their conventional names
	switch cfg.LLM.Provider {
	case "groq":
		str("GROQ_API_KEY", &cfg.LLM.APIKey)
	case "openai":
		str("OPENAI_API_KEY", &cfg.LLM.APIKey)
	case "gemini":
		str("GEMINI_API_KEY", &cfg.LLM.APIKey)
	}
	if cfg.Embedding.APIKey == "" {
		switch cfg.Embedding.Provider {
		case "openai":
			str("OPENAI_API_KEY", &cfg.Embedding.APIKey)
		case "google":
			str("GEMINI_API_KEY", &cfg.Embedding.APIKey)
		}
	}

	return errors.Join(errs...)
}

func (c *Config) applyProviderDefaults() {
	if c.Embedding.Model == "" {
		switch c.Embedding.Provider {
		case "openai":
			c.Embedding.Model = OpenAIEmbeddingModel
		default:
			c.Embedding.Model = GoogleEmbeddingModel
		}
	}
	if c.LLM.Model == "" {
		switch c.LLM.Provider {
		case "gemini":
			c.LLM.Model = GeminiModelName
		case "openai":
			c.LLM.Model = OpenAIModelName
		default:
			c.LLM.Model = GroqModelName
		}
	}
	if c.LLM.Provider == "groq" && c.LLM.BaseURL == "" {
		c.LLM.BaseURL = GroqBaseURL
	}
}

// Validate reports every problem at once, each wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, ragErrors.InvalidConfig(format, args...))
	}

	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0 {
		bad("rate limit must be positive, got %v/s burst %d", c.RateLimit.PerSecond, c.RateLimit.Burst)
	}
	if c.Chunking.Size <= 0 {
		bad("chunk_size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		bad("chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.Overlap)
	}

	switch c.Embedding.Provider {
	case "google", "openai":
	default:
		bad("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.APIKey == "" {
		bad("embedding provider %q needs an api key", c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		bad("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.BatchSize <= 0 {
		bad("embedding batch size must be positive, got %d", c.Embedding.BatchSize)
	}

	switch c.Index.Metric {
	case "cosine", "l2":
	default:
		bad("unknown similarity metric %q", c.Index.Metric)
	}
	if c.Index.TopK <= 0 {
		bad("top_k must be positive, got %d", c.Index.TopK)
	}
	switch c.Index.Persistence {
	case "none", "qdrant":
	case "file":
		if c.Index.Path == "" {
			bad("file persistence needs an index path")
		}
	default:
		bad("unknown index persistence %q", c.Index.Persistence)
	}

	if c.Context.Budget <= 0 {
		bad("context budget must be positive, got %d", c.Context.Budget)
	}
	if c.Context.WebWeight < 0 {
		bad("web_weight must not be negative, got %v", c.Context.WebWeight)
	}
	if c.Context.DedupThreshold <= 0 || c.Context.DedupThreshold > 1 {
		bad("dedup_threshold must be in (0, 1], got %v", c.Context.DedupThreshold)
	}

	if c.WebSearch.MaxResults < 0 {
		bad("web search max_results must not be negative, got %d", c.WebSearch.MaxResults)
	}

	switch c.LLM.Provider {
	case "gemini", "openai", "groq":
	default:
		bad("unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.APIKey == "" {
		bad("llm provider %q needs an api key", c.LLM.Provider)
	}

	if c.Retry.Attempts < 0 {
		bad("retry attempts must not be negative, got %d", c.Retry.Attempts)
	}
	for name, d := range map[string]time.Duration{
		"embedding": c.Embedding.Timeout,
		"search":    c.WebSearch.Timeout,
		"synthesis": c.LLM.Timeout,
	} {
		if d <= 0 {
			bad("%s timeout must be positive, got %s", name, d)
		}
	}

	return errors.Join(errs...)
}

// WebSearchEnabled is false when the flag is off or no credential is present.
func (c Config) WebSearchEnabled() bool {
	return c.WebSearch.Enabled && c.WebSearch.APIKey != "" && c.WebSearch.MaxResults > 0
}

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		if c.IsProd {
			return LOG_LEVEL_PROD
		}
		return slog.LevelDebug
	}
}
