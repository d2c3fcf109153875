package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"paper-summarizer/internal/cache"
	"paper-summarizer/internal/chunker"
	"paper-summarizer/internal/config"
	"paper-summarizer/internal/llm"
	"paper-summarizer/internal/logger"
	"paper-summarizer/internal/queue"
	"paper-summarizer/internal/store"
	"paper-summarizer/internal/summarizer"
)

// Summarizer is the pipeline contract the worker depends on; tests
// substitute a mock.
type Summarizer interface {
	Summarize(ctx context.Context, text, title string) (summarizer.Result, error)
}

// Deps bundles common runtime dependencies for services.
type Deps struct {
	Config     config.Config
	Log        *slog.Logger
	Store      store.Store
	Queue      queue.Queue
	Cache      cache.Cache
	LLM        llm.Client
	Summarizer Summarizer
}

// Build loads env, config, and shared components.
func Build() (Deps, error) {
	// A missing .env file is fine; variables may come from the process
	// environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return Deps{}, err
	}
	log := logger.New(cfg.LogLevel)

	st, err := buildStore(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	q, err := buildQueue(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	c, err := buildCache(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize cache: %w", err)
	}
	llmClient, err := buildLLM(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	sum, err := BuildSummarizer(cfg, llmClient, log)
	if err != nil {
		return Deps{}, err
	}

	return Deps{
		Config:     cfg,
		Log:        log,
		Store:      st,
		Queue:      q,
		Cache:      c,
		LLM:        llmClient,
		Summarizer: sum,
	}, nil
}

// BuildSummarizer wires the chunker and pipeline from config. Split out
// so the CLI can build one without the store and queue.
func BuildSummarizer(cfg config.Config, client llm.Client, log *slog.Logger) (*summarizer.Summarizer, error) {
	ch, err := chunker.New(chunker.Options{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chunker: %w", err)
	}
	return summarizer.New(client, ch, summarizer.Config{
		MaxSectionChunks: cfg.MaxSectionChunks,
		MaxConcurrent:    cfg.MaxConcurrentCalls,
		RunTimeout:       cfg.RunTimeout,
		DirectTokenLimit: cfg.MaxTokens * 7 / 10,
		PrimaryModel:     cfg.PrimaryModel,
	}, log), nil
}

// BuildLLM constructs the retry/fallback client from config.
func BuildLLM(cfg config.Config, log *slog.Logger) (llm.Client, error) {
	return buildLLM(cfg, log)
}

func buildStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreProvider {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_PROVIDER=postgres")
		}
		db, err := store.NewPostgres(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres store")
		return db, nil
	default:
		return nil, fmt.Errorf("invalid STORE_PROVIDER: %s (valid option: postgres)", cfg.StoreProvider)
	}
}

func buildQueue(cfg config.Config, log *slog.Logger) (queue.Queue, error) {
	switch cfg.QueueProvider {
	case "nats":
		if cfg.QueueURL == "" {
			return nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.QueueURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS queue")
		return queue.NewNATS(log, nc), nil
	default:
		return nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid option: nats)", cfg.QueueProvider)
	}
}

func buildCache(cfg config.Config, log *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required when CACHE_PROVIDER=redis")
		}
		c, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("using Redis summary cache", "ttl", cfg.CacheTTL)
		return c, nil
	case "none", "":
		return cache.NewNoop(), nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: redis, none)", cfg.CacheProvider)
	}
}

func buildLLM(cfg config.Config, log *slog.Logger) (llm.Client, error) {
	client, err := llm.New(context.Background(), llm.Config{
		PrimaryModel:   cfg.PrimaryModel,
		FallbackModel:  cfg.FallbackModel,
		Temperature:    cfg.Temperature,
		MaxTokens:      cfg.MaxTokens,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		CallTimeout:    cfg.CallTimeout,
		CallSpacing:    cfg.CallSpacing,
		MaxInFlight:    cfg.MaxConcurrentCalls,
		OpenAIKey:      cfg.OpenAIKey,
		GeminiKey:      cfg.GeminiKey,
	}, log)
	if err != nil {
		return nil, err
	}
	log.Info("using retry LLM client", "primary", cfg.PrimaryModel, "fallback", cfg.FallbackModel)
	return client, nil
}
