package ports

import (
	"context"
	"io"

	"pdfrag/internal/core/domain"
)

// DocumentRegistry persists and reads document processing state.
type DocumentRegistry interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Chunker splits document text into retrieval units with metadata.
type Chunker interface {
	Chunk(text string, base domain.ChunkMetadata, strategy domain.ChunkStrategy) ([]domain.Chunk, error)
}

// Embedder builds vectors for chunk batches and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the durable chunk index with similarity search.
//
// Store requires contents, vectors and metas to have equal length and applies
// upsert semantics keyed by chunk id. ListDocuments enumerates every stored
// chunk, paginating past any single-request limit of the backing store.
// Clear must be atomic with respect to concurrent readers. DeleteDocument
// reports domain.ErrDocumentNotFound when no chunk matches.
type VectorStore interface {
	Store(ctx context.Context, contents []string, vectors [][]float32, metas []domain.ChunkMetadata) error
	Search(ctx context.Context, queryVector []float32, topK int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error)
	ListDocuments(ctx context.Context) ([]domain.DocumentInfo, error)
	DeleteDocument(ctx context.Context, name string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// AnswerGenerator creates the final user-facing answer text.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error)
	ModelID() string
}

// ConfidenceScorer estimates answer groundedness in [0,1] from the retrieved
// context. A proxy, not a calibrated probability; pluggable by design.
type ConfidenceScorer interface {
	Score(question string, chunks []domain.RetrievedChunk) float64
}
