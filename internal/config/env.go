package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port    string
	LogMode string

	JWTSecret string

	VectorBackend  string
	QdrantURL      string
	QdrantAPIKey   string
	CollectionName string
	DatabaseURL    string

	EmbedProvider    string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AIAPIKey         string
	EmbedModel       string
	EmbedDim         int
	EmbedConcurrency int
	EmbedRatePerSec  float64

	ChunkSize    int
	ChunkOverlap int
	MaxRetries   int
	RetryDelay   time.Duration

	WorkerPoolSize int

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	S3Endpoint   string
	UploadDir    string
}

var defaults = map[string]any{
	"PORT":               "8080",
	"LOG_MODE":           "development",
	"JWT_SECRET":         "",
	"VECTOR_BACKEND":     "qdrant",
	"QDRANT_URL":         "http://localhost:6333",
	"QDRANT_API_KEY":     "",
	"COLLECTION_NAME":    "studyvault_documents",
	"DATABASE_URL":       "",
	"EMBED_PROVIDER":     "openai",
	"OPENAI_API_KEY":     "",
	"OPENAI_BASE_URL":    "https://api.openai.com/v1",
	"GEMINI_API_KEY":     "",
	"EMBED_MODEL":        "text-embedding-3-small",
	"EMBED_DIM":          1536,
	"EMBED_CONCURRENCY":  1,
	"EMBED_RATE_PER_SEC": 0.0,
	"CHUNK_SIZE":         400,
	"CHUNK_OVERLAP":      40,
	"MAX_RETRIES":        3,
	"RETRY_DELAY":        "1s",
	"WORKER_POOL_SIZE":   4,
	"AWS_ACCESS_KEY":     "",
	"AWS_SECRET_KEY":     "",
	"AWS_REGION":         "us-east-2",
	"BUCKET_NAME":        "",
	"S3_ENDPOINT":        "",
	"UPLOAD_DIR":         "./uploads",
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {
	return LoadConfigFrom("")
}

// LoadConfigFrom is LoadConfig with an explicit dotenv file. An empty path
// falls back to ./.env; a missing file is not an error.
func LoadConfigFrom(envFile string) *Config {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	return &Config{
		Port:             v.GetString("PORT"),
		LogMode:          v.GetString("LOG_MODE"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		VectorBackend:    strings.ToLower(strings.TrimSpace(v.GetString("VECTOR_BACKEND"))),
		QdrantURL:        v.GetString("QDRANT_URL"),
		QdrantAPIKey:     v.GetString("QDRANT_API_KEY"),
		CollectionName:   v.GetString("COLLECTION_NAME"),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		EmbedProvider:    strings.ToLower(strings.TrimSpace(v.GetString("EMBED_PROVIDER"))),
		OpenAIAPIKey:     v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:    v.GetString("OPENAI_BASE_URL"),
		AIAPIKey:         v.GetString("GEMINI_API_KEY"),
		EmbedModel:       v.GetString("EMBED_MODEL"),
		EmbedDim:         v.GetInt("EMBED_DIM"),
		EmbedConcurrency: v.GetInt("EMBED_CONCURRENCY"),
		EmbedRatePerSec:  v.GetFloat64("EMBED_RATE_PER_SEC"),
		ChunkSize:        v.GetInt("CHUNK_SIZE"),
		ChunkOverlap:     v.GetInt("CHUNK_OVERLAP"),
		MaxRetries:       v.GetInt("MAX_RETRIES"),
		RetryDelay:       v.GetDuration("RETRY_DELAY"),
		WorkerPoolSize:   v.GetInt("WORKER_POOL_SIZE"),
		AwsAccessKey:     v.GetString("AWS_ACCESS_KEY"),
		AwsSecretKey:     v.GetString("AWS_SECRET_KEY"),
		AwsRegion:        v.GetString("AWS_REGION"),
		BucketName:       v.GetString("BUCKET_NAME"),
		S3Endpoint:       v.GetString("S3_ENDPOINT"),
		UploadDir:        v.GetString("UPLOAD_DIR"),
	}
}

// S3Enabled reports whether uploads should go to object storage instead of UploadDir.
func (c *Config) S3Enabled() bool {
	return c.BucketName != "" && c.AwsAccessKey != "" && c.AwsSecretKey != ""
}
