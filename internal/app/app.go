package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	appMiddleware "github.com/markdave123-py/studyvault/internal/api/middlewares"
	"github.com/markdave123-py/studyvault/internal/config"
	"github.com/markdave123-py/studyvault/internal/core"
	"github.com/markdave123-py/studyvault/internal/core/ingestion_engine"
	"github.com/markdave123-py/studyvault/internal/core/llm"
	objectclient "github.com/markdave123-py/studyvault/internal/core/object-client"
	"github.com/markdave123-py/studyvault/internal/core/transcript"
	"github.com/markdave123-py/studyvault/internal/core/vectorstore/memory"
	"github.com/markdave123-py/studyvault/internal/core/vectorstore/postgres"
	"github.com/markdave123-py/studyvault/internal/core/vectorstore/qdrant"
	"github.com/markdave123-py/studyvault/internal/core/workerpool"
	"github.com/markdave123-py/studyvault/internal/logger"
	"github.com/markdave123-py/studyvault/internal/services"
)

// Vector store backends selectable with VECTOR_BACKEND.
const (
	BackendQdrant   = "qdrant"
	BackendPGVector = "pgvector"
	BackendMemory   = "memory"
)

// Embedding providers selectable with EMBED_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Components is the wired ingestion stack shared by the HTTP server and the CLI.
type Components struct {
	Log      *logger.Logger
	Pool     *workerpool.Pool
	Objects  core.ObjectClient
	Store    core.VectorStore
	Ingestor *ingestion_engine.DocumentIngestor
	Service  *services.DocumentService

	closers []func() error
}

type App struct {
	*Components
	Server *Server
}

// NewComponents connects every external dependency named by cfg. Nothing is
// left half-open on error.
func NewComponents(ctx context.Context, log *logger.Logger, cfg *config.Config) (_ *Components, err error) {
	c := &Components{Log: log}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	setupCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	c.Pool = workerpool.New(log, cfg.WorkerPoolSize, cfg.WorkerPoolSize*4)
	c.closers = append(c.closers, func() error { c.Pool.Close(); return nil })

	if cfg.S3Enabled() {
		s3Client, err := objectclient.NewS3Client(setupCtx, log, objectclient.S3Config{
			Region:    cfg.AwsRegion,
			AccessKey: cfg.AwsAccessKey,
			SecretKey: cfg.AwsSecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("object storage: %w", err)
		}
		c.Objects = s3Client
		log.Info("object client initialized", "bucket", cfg.BucketName)
	} else {
		log.Info("object storage disabled, storing uploads locally", "dir", cfg.UploadDir)
	}

	if c.Store, err = newVectorStore(setupCtx, log, cfg, c); err != nil {
		return nil, err
	}

	provider, err := newEmbeddingProvider(setupCtx, cfg, c)
	if err != nil {
		return nil, err
	}

	ingCfg := IngestConfigFrom(cfg)
	extractor := ingestion_engine.NewPDFExtractor(log, c.Pool, c.Objects)
	fetcher := transcript.NewFetcher(log, transcript.NewYouTubeProvider(&http.Client{Timeout: 30 * time.Second}), c.Pool)

	if c.Ingestor, err = ingestion_engine.NewDocumentIngestor(log, extractor, fetcher, provider, c.Store, ingCfg); err != nil {
		return nil, fmt.Errorf("couldn't initialize the ingestor, %w", err)
	}

	// Best effort: the indexer retries lazily on the first write.
	if err := c.Ingestor.EnsureCollection(setupCtx); err != nil {
		log.Warn("collection not ready at startup", "collection", ingCfg.CollectionName, "error", err)
	}

	c.Service = services.NewDocumentService(log, c.Objects, cfg.BucketName, cfg.UploadDir, c.Ingestor)
	return c, nil
}

// Close releases resources in reverse acquisition order.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func NewApp(ctx context.Context, log *logger.Logger, cfg *config.Config) (*App, error) {
	if err := appMiddleware.ValidateSecret(cfg.JWTSecret); err != nil {
		return nil, err
	}
	c, err := NewComponents(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	server, err := NewServer(log, cfg, c.Service)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return &App{Components: c, Server: server}, nil
}

// IngestConfigFrom maps the environment onto pipeline settings.
func IngestConfigFrom(cfg *config.Config) *ingestion_engine.IngestConfig {
	ing := ingestion_engine.DefaultIngestConfig()
	ing.ChunkSize = cfg.ChunkSize
	ing.ChunkOverlap = cfg.ChunkOverlap
	ing.MaxRetries = cfg.MaxRetries
	ing.RetryDelay = cfg.RetryDelay
	ing.EmbedDim = cfg.EmbedDim
	ing.EmbedConcurrency = cfg.EmbedConcurrency
	ing.EmbedRatePerSec = cfg.EmbedRatePerSec
	if cfg.CollectionName != "" {
		ing.CollectionName = cfg.CollectionName
	}
	return ing
}

func newVectorStore(ctx context.Context, log *logger.Logger, cfg *config.Config, c *Components) (core.VectorStore, error) {
	switch cfg.VectorBackend {
	case BackendQdrant:
		store, err := qdrant.NewVectorStore(log, qdrant.Config{URL: cfg.QdrantURL, APIKey: cfg.QdrantAPIKey})
		if err != nil {
			return nil, err
		}
		if err := store.Ready(ctx); err != nil {
			log.Warn("qdrant not reachable at startup", "url", cfg.QdrantURL, "error", err)
		}
		return store, nil
	case BackendPGVector:
		store, err := postgres.NewVectorStore(ctx, log, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store.Close)
		return store, nil
	case BackendMemory:
		log.Warn("using in-memory vector store, vectors are lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown VECTOR_BACKEND %q", cfg.VectorBackend)
	}
}

func newEmbeddingProvider(ctx context.Context, cfg *config.Config, c *Components) (core.EmbeddingProvider, error) {
	switch cfg.EmbedProvider {
	case ProviderOpenAI:
		emb, err := llm.NewOpenAIEmbedder(llm.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.EmbedModel,
			Dimensions: cfg.EmbedDim,
		})
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
		}
		return emb, nil
	case ProviderGemini:
		model := cfg.EmbedModel
		if model == llm.DefaultOpenAIModel {
			model = ""
		}
		emb, err := llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, model)
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
		}
		c.closers = append(c.closers, emb.Close)
		return emb, nil
	default:
		return nil, fmt.Errorf("unknown EMBED_PROVIDER %q", cfg.EmbedProvider)
	}
}
