package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"marketlens"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"marketlens"`

	WeaviateHost       string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme     string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	WeaviateCollection string `envconfig:"WEAVIATE_COLLECTION" default:"ResearchDocChunk"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	// Language model and embeddings
	GeminiAPIKey       string `envconfig:"GEMINI_API_KEY"`
	GeminiModelName    string `envconfig:"GEMINI_MODEL_NAME" default:"gemini-1.5-flash"`
	EmbeddingModel     string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	EmbeddingDimension int    `envconfig:"EMBEDDING_DIMENSION" default:"3072"`
	EmbeddingCacheTTL  int    `envconfig:"EMBEDDING_CACHE_TTL_MINUTES" default:"30"`
	ReviseWithLLM      bool   `envconfig:"REVISE_WITH_LLM" default:"false"`

	// Web search
	TavilyAPIKey        string  `envconfig:"TAVILY_API_KEY"`
	TavilyBaseURL       string  `envconfig:"TAVILY_BASE_URL" default:"https://api.tavily.com"`
	TavilyRatePerSecond float64 `envconfig:"TAVILY_RATE_PER_SECOND" default:"2"`

	// Indexing and retrieval
	DocumentFolder  string `envconfig:"DOCUMENT_FOLDER" default:"data/documents"`
	IndexOnStartup  bool   `envconfig:"INDEX_ON_STARTUP" default:"true"`
	MaxChunkLength  int    `envconfig:"MAX_CHUNK_LENGTH" default:"2000"`
	MaxWebResults   int    `envconfig:"MAX_WEB_RESULTS" default:"5"`
	MaxDocChunks    int    `envconfig:"MAX_DOC_CHUNKS" default:"10"`
	ParallelGather  bool   `envconfig:"PARALLEL_GATHER" default:"false"`
	CallTimeoutSecs int    `envconfig:"CALL_TIMEOUT_SECONDS" default:"30"`
	RetryMaxAttempt int    `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`

	// Server
	ServerPort    int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath  string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	Environment   string `envconfig:"ENVIRONMENT" default:"dev"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Ignore errors, env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.WeaviateCollection == "" {
		return fmt.Errorf("%w: WEAVIATE_COLLECTION", ErrMissingRequired)
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("%w: EMBEDDING_DIMENSION must be positive", ErrInvalidValue)
	}
	if c.MaxChunkLength <= 0 {
		return fmt.Errorf("%w: MAX_CHUNK_LENGTH must be positive", ErrInvalidValue)
	}
	if c.MaxWebResults < 1 || c.MaxWebResults > 20 {
		return fmt.Errorf("%w: MAX_WEB_RESULTS must be between 1 and 20", ErrInvalidValue)
	}
	if c.MaxDocChunks < 1 || c.MaxDocChunks > 50 {
		return fmt.Errorf("%w: MAX_DOC_CHUNKS must be between 1 and 50", ErrInvalidValue)
	}
	return nil
}

func (c *Config) CallTimeout() time.Duration {
	if c.CallTimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.CallTimeoutSecs) * time.Second
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}
