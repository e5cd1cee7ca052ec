package ports

import (
	"context"
	"io"

	"pdfrag/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, name, mimeType, docType string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// QuestionAnswerer is the inbound contract for RAG queries.
type QuestionAnswerer interface {
	Ask(ctx context.Context, question string, topK int, filter domain.SearchFilter) (*domain.Answer, error)
}

// KnowledgeBaseCatalog is the inbound contract for knowledge-base management.
type KnowledgeBaseCatalog interface {
	ListDocuments(ctx context.Context) ([]domain.DocumentInfo, error)
	DeleteDocument(ctx context.Context, name string) error
	Clear(ctx context.Context) error
	SystemInfo(ctx context.Context) (domain.SystemInfo, error)
}
