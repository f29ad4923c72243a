package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/verag/internal/adapters/driven/ai"
	"github.com/custodia-labs/verag/internal/adapters/driven/filestore"
	"github.com/custodia-labs/verag/internal/adapters/driven/postgres"
	postgresqueue "github.com/custodia-labs/verag/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/custodia-labs/verag/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/verag/internal/adapters/driven/redis"
	"github.com/custodia-labs/verag/internal/config"
	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
	"github.com/custodia-labs/verag/internal/core/ports/driving"
	"github.com/custodia-labs/verag/internal/core/services"
	"github.com/custodia-labs/verag/internal/extractors"
	"github.com/custodia-labs/verag/internal/postprocessors"
	"github.com/custodia-labs/verag/internal/runtime"
)

// app is the wired object graph shared by every command that touches storage.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db    *postgres.DB
	redis *redis.Client // nil without REDIS_URL
	files *filestore.Local

	runtime   *runtime.Services
	taskQueue driven.TaskQueue
	lock      driven.DistributedLock

	projects  *postgres.ProjectStore
	documents *postgres.DocumentStore
	vectors   *postgres.VectorStore

	ingest  driving.IngestService
	answers driving.AnswerService
	docs    driving.DocumentService
}

// newApp connects the stores, prepares the schema and wires the services.
// AI providers that fail their health check are left unset; /ready reports it.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// ===== PostgreSQL =====
	log.Printf("Connecting to PostgreSQL...")
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime(),
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime(),
	})
	if err != nil {
		return nil, err
	}
	a.db = db

	if err := a.prepareSchema(ctx); err != nil {
		return nil, err
	}
	log.Printf("PostgreSQL ready (vector dimensions: %d)", cfg.Embedding.Dimensions)

	// ===== Redis (optional) =====
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Printf("Connected to Redis")
	}

	// ===== Task queue and ingest lock (Redis if available, otherwise PostgreSQL) =====
	backend := "postgres"
	if a.redis != nil {
		backend = "redis"
		consumer := fmt.Sprintf("worker-%d", os.Getpid())
		q, err := redisqueue.NewQueue(ctx, a.redis, consumer)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis queue: %w", err)
		}
		a.taskQueue = q
		a.lock = redisadapter.NewLock(a.redis)
	} else {
		a.taskQueue = postgresqueue.NewQueue(db.DB)
		a.lock = postgres.NewAdvisoryLock(db)
	}
	log.Printf("Task queue and lock backend: %s", backend)

	// ===== AI providers =====
	a.runtime = runtime.NewServices(domain.NewRuntimeConfig(backend, cfg.Embedding.Dimensions))
	a.configureAI(ctx)

	// ===== Files and pipeline =====
	a.files, err = filestore.NewLocal(cfg.FileStorageRoot)
	if err != nil {
		return nil, err
	}

	length, err := postprocessors.NewLengthFunc(cfg.Chunk.LengthUnit, cfg.Chunk.TokenEncoding)
	if err != nil {
		return nil, err
	}
	pipeline := postprocessors.DefaultPipeline(postprocessors.ChunkConfig{
		MaxLength: cfg.Chunk.MaxLength,
		Length:    length,
	})

	// ===== Stores and services =====
	a.projects = postgres.NewProjectStore(db)
	a.documents = postgres.NewDocumentStore(db)
	a.vectors = postgres.NewVectorStore(db, cfg.Embedding.Dimensions)

	embedCfg := services.EmbedderConfig{
		BatchSize:  cfg.EmbeddingBatchSize,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.ProviderTimeout(),
	}

	a.ingest = services.NewIngestService(services.IngestServiceConfig{
		ProjectStore:  a.projects,
		DocumentStore: a.documents,
		VectorStore:   a.vectors,
		FileStore:     a.files,
		Extractors:    extractors.DefaultRegistry(),
		Pipeline:      pipeline,
		Services:      a.runtime,
		Lock:          a.lock,
		LockTTL:       cfg.IngestLockTTL(),
		TaskQueue:     a.taskQueue,
		Embedder:      embedCfg,
		Logger:        logger,
	})
	a.answers = services.NewAnswerService(services.AnswerServiceConfig{
		ProjectStore: a.projects,
		VectorStore:  a.vectors,
		Services:     a.runtime,
		Embedder:     embedCfg,
		DefaultTopK:  cfg.Answer.DefaultTopK,
		MaxTopK:      cfg.Answer.MaxTopK,
		MaxTokens:    cfg.LLMMaxTokens,
		Timeout:      cfg.ProviderTimeout(),
		Logger:       logger,
	})
	a.docs = services.NewDocumentService(a.projects, a.documents, a.vectors)

	ok = true
	return a, nil
}

// prepareSchema creates missing tables and refuses to run against an index
// built for a different vector size.
func (a *app) prepareSchema(ctx context.Context) error {
	want := a.cfg.Embedding.Dimensions
	if err := a.db.InitSchema(ctx, want); err != nil {
		return err
	}
	have, err := a.db.ColumnDimensions(ctx)
	if err != nil {
		return err
	}
	if have != 0 && have != want {
		return fmt.Errorf("%w: chunks table stores %d-dimensional vectors, EMBEDDING_DIMENSIONS is %d",
			domain.ErrDimensionMismatch, have, want)
	}
	return nil
}

func (a *app) configureAI(ctx context.Context) {
	factory := ai.NewFactory()

	if emb, err := factory.CreateEmbeddingService(&a.cfg.Embedding); err != nil {
		log.Printf("Warning: embedding provider: %v", err)
	} else if emb == nil {
		log.Printf("Warning: embedding provider not configured, ingestion and answering disabled")
	} else if err := a.runtime.ValidateAndSetEmbedding(ctx, emb); err != nil {
		log.Printf("Warning: embedding provider unavailable: %v", err)
	} else {
		log.Printf("Embedding provider: %s (%s, %d dims)", a.cfg.Embedding.Provider, emb.Model(), emb.Dimensions())
	}

	if llm, err := factory.CreateLLMService(&a.cfg.LLM); err != nil {
		log.Printf("Warning: LLM provider: %v", err)
	} else if llm == nil {
		log.Printf("Warning: LLM provider not configured, answering disabled")
	} else if err := a.runtime.ValidateAndSetLLM(ctx, llm); err != nil {
		log.Printf("Warning: LLM provider unavailable: %v", err)
	} else {
		log.Printf("LLM provider: %s (%s)", a.cfg.LLM.Provider, llm.Model())
	}
}

// Close releases every connection the app opened.
func (a *app) Close() {
	var errs []error
	if a.runtime != nil {
		errs = append(errs, a.runtime.Close())
	}
	if a.taskQueue != nil {
		errs = append(errs, a.taskQueue.Close())
	}
	if a.files != nil {
		errs = append(errs, a.files.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown", "error", err)
	}
}

// redisPinger adapts the go-redis client to the readiness check.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
