package usecase

import (
	"context"
	"errors"
	"fmt"

	"pdfrag/internal/core/domain"
	"pdfrag/internal/core/ports"
)

// ProcessDocumentUseCase runs the ingestion pipeline for one stored document:
// extract text, chunk, embed the whole batch, index. Chunks are embedded and
// stored in the order the chunker produced them.
type ProcessDocumentUseCase struct {
	registry  ports.DocumentRegistry
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
	strategy  domain.ChunkStrategy
}

func NewProcessDocumentUseCase(
	registry ports.DocumentRegistry,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		registry:  registry,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectorDB:  vectorDB,
		strategy:  domain.StrategyStructure,
	}
}

// WithStrategy overrides the default structural chunking strategy.
func (uc *ProcessDocumentUseCase) WithStrategy(strategy domain.ChunkStrategy) *ProcessDocumentUseCase {
	uc.strategy = strategy
	return uc
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.registry.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, documentID); err != nil {
		if failErr := uc.registry.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.registry.UpdateStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) error {
	doc, err := uc.registry.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	if _, err := uc.Ingest(ctx, text, domain.ChunkMetadata{
		Document: doc.Name,
		Type:     doc.Type,
		Source:   doc.StoragePath,
	}); err != nil {
		return err
	}
	return nil
}

// Ingest is the synchronous chunk-embed-store pipeline. When chunking yields
// nothing it fails before any embedder or store call, so empty input never
// costs a model round trip.
func (uc *ProcessDocumentUseCase) Ingest(ctx context.Context, text string, base domain.ChunkMetadata) ([]domain.Chunk, error) {
	chunks, err := uc.chunker.Chunk(text, base, uc.strategy)
	if err != nil {
		return nil, fmt.Errorf("chunk document: %w", err)
	}
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}

	contents := make([]string, len(chunks))
	metas := make([]domain.ChunkMetadata, len(chunks))
	for i, chunk := range chunks {
		contents[i] = chunk.Content
		metas[i] = chunk.Metadata
	}

	vectors, err := uc.embedder.Embed(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}

	if err := uc.vectorDB.Store(ctx, contents, vectors, metas); err != nil {
		return nil, fmt.Errorf("index chunks in vector store: %w", err)
	}
	return chunks, nil
}
