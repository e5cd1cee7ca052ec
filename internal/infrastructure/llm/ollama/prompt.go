package ollama

import (
	"fmt"
	"strings"

	"pdfrag/internal/core/domain"
)

const systemPrompt = `You are a technical documentation assistant.
Answer only from the provided context. Cite source documents and page numbers
when available. If the context does not contain the answer, say so directly.
Format commands and code in code blocks. Be precise and factual.`

func buildAnswerPrompt(question string, chunks []domain.RetrievedChunk) string {
	var contextBuilder strings.Builder
	for idx, chunk := range chunks {
		contextBuilder.WriteString(fmt.Sprintf("[%d] %s\n%s\n\n", idx+1, describeSource(chunk.Metadata), chunk.Content))
	}

	return fmt.Sprintf(`Question: %s

Context from technical documentation:
%s
Source documents:
%s

Answer the question from the context above. Include specific details and
technical information where relevant, and cite your sources. If the
information is not in the context, state that clearly.`,
		question, contextBuilder.String(), formatSources(chunks))
}

func describeSource(meta domain.ChunkMetadata) string {
	parts := []string{"document=" + orNA(meta.Document)}
	if meta.Section != "" {
		parts = append(parts, "section="+meta.Section)
	}
	if meta.Page != "" {
		parts = append(parts, "page="+meta.Page)
	}
	return strings.Join(parts, " ")
}

func formatSources(chunks []domain.RetrievedChunk) string {
	if len(chunks) == 0 {
		return "No specific sources available"
	}
	lines := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		line := "- " + orNA(chunk.Metadata.Document)
		if chunk.Metadata.Page != "" {
			line += fmt.Sprintf(" (Page: %s)", chunk.Metadata.Page)
		}
		if chunk.Metadata.Section != "" {
			line += " - " + chunk.Metadata.Section
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func orNA(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
