package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

// Config holds runtime configuration. Built once at startup and passed into
// component constructors; nothing reads environment state after Load returns.
type Config struct {
	// Server
	Port          int    `env:"PORT" envDefault:"8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	MaxUploadSize int64  `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10MB in bytes

	// Store
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"postgres"` // "postgres"
	DBURL         string `env:"DB_URL"`

	// Queue
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"nats"` // "nats"
	QueueURL      string `env:"QUEUE_URL"`

	// Cache
	CacheProvider string        `env:"CACHE_PROVIDER" envDefault:"none"` // "redis" or "none"
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"24h"`

	// Models. Provider is chosen by identifier prefix: gpt-* goes to OpenAI,
	// gemini-* to Google.
	OpenAIKey     string  `env:"OPENAI_API_KEY"`
	GeminiKey     string  `env:"GEMINI_API_KEY"`
	PrimaryModel  string  `env:"PRIMARY_MODEL" envDefault:"gpt-4o-mini" validate:"required"`
	FallbackModel string  `env:"FALLBACK_MODEL" envDefault:"gemini-2.0-flash"`
	Temperature   float64 `env:"TEMPERATURE" envDefault:"0.2" validate:"gte=0,lte=1"`
	MaxTokens     int     `env:"MAX_TOKENS" envDefault:"4096" validate:"gte=512,lte=8192"`

	// Chunking
	ChunkSize        int `env:"CHUNK_SIZE" envDefault:"1000" validate:"gte=100,lte=4000"`
	ChunkOverlap     int `env:"CHUNK_OVERLAP" envDefault:"200" validate:"gte=0,lte=500"`
	MaxSectionChunks int `env:"MAX_SECTION_CHUNKS" envDefault:"20" validate:"gte=1,lte=50"`

	// Calls
	MaxRetries         int           `env:"MAX_RETRIES" envDefault:"3" validate:"gte=1,lte=10"`
	RetryBaseDelay     time.Duration `env:"RETRY_BASE_DELAY" envDefault:"1s"`
	CallTimeout        time.Duration `env:"CALL_TIMEOUT" envDefault:"60s"`
	CallSpacing        time.Duration `env:"CALL_SPACING" envDefault:"200ms"`
	MaxConcurrentCalls int           `env:"MAX_CONCURRENT_CALLS" envDefault:"4" validate:"gte=1,lte=32"`

	// Run
	RunTimeout time.Duration `env:"RUN_TIMEOUT" envDefault:"10m"`
}

// Load reads configuration from environment variables and validates ranges.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces field ranges plus the cross-field chunking invariant.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be less than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}
