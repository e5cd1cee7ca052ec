package bootstrap

import (
	"context"
	"fmt"

	"pdfrag/internal/config"
	"pdfrag/internal/core/domain"
	"pdfrag/internal/core/ports"
	"pdfrag/internal/core/usecase"
	"pdfrag/internal/infrastructure/chunking"
	"pdfrag/internal/infrastructure/extractor"
	"pdfrag/internal/infrastructure/extractor/pdfdoc"
	"pdfrag/internal/infrastructure/extractor/plaintext"
	"pdfrag/internal/infrastructure/llm/ollama"
	"pdfrag/internal/infrastructure/queue/nats"
	"pdfrag/internal/infrastructure/repository/postgres"
	"pdfrag/internal/infrastructure/resilience"
	"pdfrag/internal/infrastructure/storage/localfs"
	"pdfrag/internal/infrastructure/vector/memory"
	"pdfrag/internal/infrastructure/vector/qdrant"
)

// Options trims the dependency graph for binaries that do not need every
// collaborator. The MCP server runs without postgres and NATS.
type Options struct {
	WithRegistry bool
	WithQueue    bool
}

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Registry ports.DocumentRegistry
	Storage  ports.ObjectStorage

	IngestUC  *usecase.IngestDocumentUseCase
	ProcessUC *usecase.ProcessDocumentUseCase
	QueryUC   *usecase.QueryUseCase
	CatalogUC *usecase.CatalogUseCase
	Extractor ports.TextExtractor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	return NewWithOptions(ctx, cfg, Options{WithRegistry: true, WithQueue: true})
}

func NewWithOptions(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}
	closers := []func(){}

	var registry ports.DocumentRegistry
	if opts.WithRegistry {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		pgRegistry := postgres.NewDocumentRegistry(db)
		if err := pgRegistry.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		registry = pgRegistry
		closers = append(closers, func() { _ = db.Close() })
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	var queue ports.MessageQueue
	if opts.WithQueue {
		natsQueue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		queue = natsQueue
		closers = append(closers, natsQueue.Close)
	}

	ollamaClient := ollama.NewWithExecutor(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	var vectorDB ports.VectorStore
	switch cfg.VectorBackend {
	case "memory":
		vectorDB = memory.New()
	default:
		vectorDB = qdrant.NewWithExecutor(cfg.QdrantURL, cfg.QdrantCollection, executor)
	}

	tokenizer, err := chunking.NewTiktokenTokenizer()
	if err != nil {
		return nil, fmt.Errorf("init tokenizer: %w", err)
	}
	chunker, err := chunking.New(tokenizer, cfg.ChunkMaxTokens, cfg.ChunkOverlap, cfg.CommandPattern)
	if err != nil {
		return nil, fmt.Errorf("init chunker: %w", err)
	}

	docExtractor := extractor.NewRouter(pdfdoc.NewExtractor(storage), plaintext.NewExtractor(storage))

	processUC := usecase.NewProcessDocumentUseCase(registry, docExtractor, chunker, embedder, vectorDB).
		WithStrategy(domain.ChunkStrategy(cfg.ChunkStrategy))
	queryUC := usecase.NewQueryUseCase(embedder, vectorDB, generator, usecase.NewHeuristicScorer(), cfg.QuestionMaxLength)
	catalogUC := usecase.NewCatalogUseCase(vectorDB, usecase.CatalogConfig{
		Collection:     cfg.QdrantCollection,
		Backend:        cfg.VectorBackend,
		EmbedModel:     cfg.OllamaEmbedModel,
		GenerateModel:  cfg.OllamaGenModel,
		ChunkMaxTokens: cfg.ChunkMaxTokens,
		ChunkOverlap:   cfg.ChunkOverlap,
	})

	app.Queue = queue
	app.Registry = registry
	app.Storage = storage
	app.ProcessUC = processUC
	app.QueryUC = queryUC
	app.CatalogUC = catalogUC
	app.Extractor = docExtractor
	if opts.WithRegistry && opts.WithQueue {
		app.IngestUC = usecase.NewIngestDocumentUseCase(registry, storage, queue)
	}
	app.closeFn = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
