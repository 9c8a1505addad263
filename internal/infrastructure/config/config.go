// Package config loads service configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the canvas service, the inference
// backend and the CLI
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Backend   BackendConfig   `yaml:"backend"`
	Canvas    CanvasConfig    `yaml:"canvas"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Inference InferenceConfig `yaml:"inference"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
	AllowedOrigins  []string      `yaml:"allowed_origins" validate:"dive,required"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// BackendConfig describes how the canvas reaches the inference backend
type BackendConfig struct {
	URL     string        `yaml:"url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`

	// Circuit breaker
	BreakerFailureRatio float64       `yaml:"breaker_failure_ratio" validate:"gt=0,lte=1"`
	BreakerMinRequests  uint32        `yaml:"breaker_min_requests"`
	BreakerOpenTimeout  time.Duration `yaml:"breaker_open_timeout" validate:"gte=0"`
}

type CanvasConfig struct {
	// ResolveMode is "type" or "edges"
	ResolveMode string `yaml:"resolve_mode" validate:"oneof=type edges"`
}

type SnapshotConfig struct {
	Driver        string        `yaml:"driver" validate:"oneof=memory sqlite postgres"`
	DSN           string        `yaml:"dsn" validate:"required_unless=Driver memory"`
	Codec         string        `yaml:"codec" validate:"oneof=json msgpack"`
	Compression   string        `yaml:"compression" validate:"oneof=none gzip zstd"`
	EncryptionKey string        `yaml:"encryption_key" validate:"omitempty,hexadecimal"`
	TTL           time.Duration `yaml:"ttl" validate:"gte=0"`
	MaxPerCanvas  int           `yaml:"max_per_canvas" validate:"gte=0"`
}

// Key decodes the hex encryption key; nil when unset
func (s SnapshotConfig) Key() ([]byte, error) {
	if s.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("snapshot encryption key: %w", err)
	}
	return key, nil
}

// InferenceConfig configures the inference backend
type InferenceConfig struct {
	Addr string `yaml:"addr" validate:"required"`

	GroqAPIKey  string  `yaml:"groq_api_key"`
	GroqBaseURL string  `yaml:"groq_base_url" validate:"required,url"`
	GroqModel   string  `yaml:"groq_model" validate:"required"`
	Temperature float32 `yaml:"temperature" validate:"gte=0,lte=2"`

	GeminiAPIKey  string `yaml:"gemini_api_key"`
	GeminiBaseURL string `yaml:"gemini_base_url" validate:"required,url"`
	GeminiModel   string `yaml:"gemini_model" validate:"required"`

	SerpAPIKey string `yaml:"serpapi_key"`
	SerpAPIURL string `yaml:"serpapi_url" validate:"required,url"`

	EmbeddingAPIKey     string `yaml:"embedding_api_key"`
	EmbeddingBaseURL    string `yaml:"embedding_base_url" validate:"required,url"`
	EmbeddingModel      string `yaml:"embedding_model" validate:"required"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions" validate:"gt=0"`

	VectorDSN    string        `yaml:"vector_dsn"`
	TopK         int           `yaml:"top_k" validate:"gt=0"`
	ChunkSize    int           `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap int           `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	CallTimeout  time.Duration `yaml:"call_timeout" validate:"gt=0"`
	MaxUpload    int64         `yaml:"max_upload_bytes" validate:"gt=0"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins: []string{
				"https://promptea-frontend.onrender.com",
				"http://localhost:3001",
				"http://localhost:5173",
				"http://localhost:5174",
			},
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Backend: BackendConfig{
			URL:                 "http://localhost:8000",
			Timeout:             60 * time.Second,
			BreakerFailureRatio: 0.6,
			BreakerMinRequests:  5,
			BreakerOpenTimeout:  30 * time.Second,
		},
		Canvas: CanvasConfig{ResolveMode: "type"},
		Snapshot: SnapshotConfig{
			Driver:      "memory",
			Codec:       "msgpack",
			Compression: "zstd",
		},
		Inference: InferenceConfig{
			Addr:                ":8000",
			GroqBaseURL:         "https://api.groq.com/openai/v1",
			GroqModel:           "llama3-70b-8192",
			Temperature:         0.3,
			GeminiBaseURL:       "https://generativelanguage.googleapis.com/v1beta/openai/",
			GeminiModel:         "gemini-1.5-flash",
			SerpAPIURL:          "https://serpapi.com/search",
			EmbeddingBaseURL:    "https://generativelanguage.googleapis.com/v1beta/openai/",
			EmbeddingModel:      "text-embedding-004",
			EmbeddingDimensions: 768,
			TopK:                5,
			ChunkSize:           500,
			ChunkOverlap:        75,
			CallTimeout:         60 * time.Second,
			MaxUpload:           20 << 20,
		},
	}
}

// Load reads configuration. A .env file in the working directory is loaded
// first when present; PROMPTEA_CONFIG names an optional YAML overlay.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("PROMPTEA_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnvWithDefault("PROMPTEA_ADDR", c.Server.Addr)
	c.Server.ReadTimeout = getEnvAsDuration("PROMPTEA_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvAsDuration("PROMPTEA_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getEnvAsDuration("PROMPTEA_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.AllowedOrigins = getEnvAsList("ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Log.Level = getEnvWithDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvWithDefault("LOG_FORMAT", c.Log.Format)

	c.Backend.URL = getEnvWithDefault("BACKEND_URL", c.Backend.URL)
	c.Backend.Timeout = getEnvAsDuration("REQUEST_TIMEOUT", c.Backend.Timeout)
	c.Backend.BreakerFailureRatio = getEnvAsFloat("BREAKER_FAILURE_RATIO", c.Backend.BreakerFailureRatio)
	c.Backend.BreakerMinRequests = uint32(getEnvAsInt("BREAKER_MIN_REQUESTS", int(c.Backend.BreakerMinRequests)))
	c.Backend.BreakerOpenTimeout = getEnvAsDuration("BREAKER_OPEN_TIMEOUT", c.Backend.BreakerOpenTimeout)

	c.Canvas.ResolveMode = getEnvWithDefault("RESOLVE_MODE", c.Canvas.ResolveMode)

	c.Snapshot.Driver = getEnvWithDefault("SNAPSHOT_DRIVER", c.Snapshot.Driver)
	c.Snapshot.DSN = getEnvWithDefault("SNAPSHOT_DSN", c.Snapshot.DSN)
	c.Snapshot.Codec = getEnvWithDefault("SNAPSHOT_CODEC", c.Snapshot.Codec)
	c.Snapshot.Compression = getEnvWithDefault("SNAPSHOT_COMPRESSION", c.Snapshot.Compression)
	c.Snapshot.EncryptionKey = getEnvWithDefault("SNAPSHOT_ENCRYPTION_KEY", c.Snapshot.EncryptionKey)
	c.Snapshot.TTL = getEnvAsDuration("SNAPSHOT_TTL", c.Snapshot.TTL)
	c.Snapshot.MaxPerCanvas = getEnvAsInt("SNAPSHOT_MAX_PER_CANVAS", c.Snapshot.MaxPerCanvas)

	in := &c.Inference
	in.Addr = getEnvWithDefault("BACKEND_ADDR", in.Addr)
	in.GroqAPIKey = getEnvWithDefault("GROQ_API_KEY", in.GroqAPIKey)
	in.GroqBaseURL = getEnvWithDefault("GROQ_BASE_URL", in.GroqBaseURL)
	in.GroqModel = getEnvWithDefault("GROQ_MODEL", in.GroqModel)
	in.Temperature = float32(getEnvAsFloat("LLM_TEMPERATURE", float64(in.Temperature)))
	in.GeminiAPIKey = getEnvWithDefault("GOOGLE_API_KEY", in.GeminiAPIKey)
	in.GeminiBaseURL = getEnvWithDefault("GEMINI_BASE_URL", in.GeminiBaseURL)
	in.GeminiModel = getEnvWithDefault("GEMINI_MODEL", in.GeminiModel)
	in.SerpAPIKey = getEnvWithDefault("SERP_API_KEY", in.SerpAPIKey)
	in.SerpAPIURL = getEnvWithDefault("SERP_API_URL", in.SerpAPIURL)
	// Embeddings default to the Gemini key
	in.EmbeddingAPIKey = getEnvWithDefault("EMBEDDING_API_KEY", firstSet(in.EmbeddingAPIKey, in.GeminiAPIKey))
	in.EmbeddingBaseURL = getEnvWithDefault("EMBEDDING_BASE_URL", in.EmbeddingBaseURL)
	in.EmbeddingModel = getEnvWithDefault("EMBEDDING_MODEL", in.EmbeddingModel)
	in.EmbeddingDimensions = getEnvAsInt("EMBEDDING_DIMENSIONS", in.EmbeddingDimensions)
	in.VectorDSN = getEnvWithDefault("VECTOR_DSN", in.VectorDSN)
	in.TopK = getEnvAsInt("TOP_K", in.TopK)
	in.ChunkSize = getEnvAsInt("CHUNK_SIZE", in.ChunkSize)
	in.ChunkOverlap = getEnvAsInt("CHUNK_OVERLAP", in.ChunkOverlap)
	in.CallTimeout = getEnvAsDuration("LLM_TIMEOUT", in.CallTimeout)
	in.MaxUpload = int64(getEnvAsInt("MAX_UPLOAD_BYTES", int(in.MaxUpload)))
}

var validate = validator.New()

// Validate checks every section
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.Snapshot.Key(); err != nil {
		return err
	}
	return nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
