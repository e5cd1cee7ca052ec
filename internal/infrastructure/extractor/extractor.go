// Package extractor routes documents to a format-specific text extractor.
package extractor

import (
	"context"
	"strings"

	"pdfrag/internal/core/domain"
	"pdfrag/internal/core/ports"
)

type Router struct {
	pdf  ports.TextExtractor
	text ports.TextExtractor
}

func NewRouter(pdfExtractor, textExtractor ports.TextExtractor) *Router {
	return &Router{pdf: pdfExtractor, text: textExtractor}
}

func (r *Router) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	if isPDF(doc) {
		return r.pdf.Extract(ctx, doc)
	}
	return r.text.Extract(ctx, doc)
}

func isPDF(doc *domain.Document) bool {
	if strings.EqualFold(strings.TrimSpace(doc.MimeType), "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(doc.Name), ".pdf")
}
