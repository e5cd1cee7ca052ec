package usecase

import (
	"context"
	"fmt"
	"strings"

	"pdfrag/internal/core/domain"
	"pdfrag/internal/core/ports"
)

// CatalogConfig is the configuration surface reported by SystemInfo.
type CatalogConfig struct {
	Collection     string
	Backend        string
	EmbedModel     string
	GenerateModel  string
	ChunkMaxTokens int
	ChunkOverlap   int
}

// CatalogUseCase manages the knowledge base as a whole: listing, deletion,
// bulk clearing and system introspection.
type CatalogUseCase struct {
	vectorDB ports.VectorStore
	cfg      CatalogConfig
}

func NewCatalogUseCase(vectorDB ports.VectorStore, cfg CatalogConfig) *CatalogUseCase {
	return &CatalogUseCase{vectorDB: vectorDB, cfg: cfg}
}

func (uc *CatalogUseCase) ListDocuments(ctx context.Context) ([]domain.DocumentInfo, error) {
	docs, err := uc.vectorDB.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (uc *CatalogUseCase) DeleteDocument(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "delete document", fmt.Errorf("document name is required"))
	}
	return uc.vectorDB.DeleteDocument(ctx, name)
}

func (uc *CatalogUseCase) Clear(ctx context.Context) error {
	if err := uc.vectorDB.Clear(ctx); err != nil {
		return fmt.Errorf("clear knowledge base: %w", err)
	}
	return nil
}

func (uc *CatalogUseCase) SystemInfo(ctx context.Context) (domain.SystemInfo, error) {
	count, err := uc.vectorDB.Count(ctx)
	if err != nil {
		return domain.SystemInfo{}, fmt.Errorf("count chunks: %w", err)
	}
	docs, err := uc.vectorDB.ListDocuments(ctx)
	if err != nil {
		return domain.SystemInfo{}, fmt.Errorf("list documents: %w", err)
	}

	return domain.SystemInfo{
		Collection:     uc.cfg.Collection,
		Backend:        uc.cfg.Backend,
		ChunkCount:     count,
		DocumentCount:  len(docs),
		EmbedModel:     uc.cfg.EmbedModel,
		GenerateModel:  uc.cfg.GenerateModel,
		ChunkMaxTokens: uc.cfg.ChunkMaxTokens,
		ChunkOverlap:   uc.cfg.ChunkOverlap,
	}, nil
}
