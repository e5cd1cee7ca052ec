package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pdfrag/internal/core/domain"
	"pdfrag/internal/core/ports"
)

const (
	DefaultTopK = 5
	MaxTopK     = 20

	// noContextAnswer is returned when retrieval finds nothing; no generator
	// call is made because there is no context to ground an answer in.
	noContextAnswer = "I couldn't find any relevant information in the knowledge base for your question."

	unavailableAnswer = "The knowledge base is currently unavailable. Please try again later."
)

// QueryUseCase turns a question into a ranked, scored, sourced answer.
// Stateless across calls; all collaborator handles are injected once at
// construction.
type QueryUseCase struct {
	embedder       ports.Embedder
	vectorDB       ports.VectorStore
	generator      ports.AnswerGenerator
	scorer         ports.ConfidenceScorer
	maxQuestionLen int
}

func NewQueryUseCase(
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	generator ports.AnswerGenerator,
	scorer ports.ConfidenceScorer,
	maxQuestionLen int,
) *QueryUseCase {
	if maxQuestionLen <= 0 {
		maxQuestionLen = 2000
	}
	return &QueryUseCase{
		embedder:       embedder,
		vectorDB:       vectorDB,
		generator:      generator,
		scorer:         scorer,
		maxQuestionLen: maxQuestionLen,
	}
}

// Ask retrieves context for the question, scores answer confidence and
// assembles the response. Collaborator faults degrade to a low-confidence
// answer instead of propagating; only caller misuse is a hard error.
func (uc *QueryUseCase) Ask(
	ctx context.Context,
	question string,
	topK int,
	filter domain.SearchFilter,
) (*domain.Answer, error) {
	start := time.Now()

	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "query", fmt.Errorf("question is empty"))
	}
	if len(trimmed) > uc.maxQuestionLen {
		return nil, domain.WrapError(domain.ErrInvalidInput, "query", fmt.Errorf("question exceeds %d characters", uc.maxQuestionLen))
	}
	if topK < 1 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, trimmed)
	if err != nil {
		slog.Error("embed_query_failed", "error", err)
		return uc.degraded(start), nil
	}

	chunks, err := uc.vectorDB.Search(ctx, queryVector, topK, filter)
	if err != nil {
		slog.Error("vector_search_failed", "error", err)
		return uc.degraded(start), nil
	}

	if len(chunks) == 0 {
		return &domain.Answer{
			Text:           noContextAnswer,
			Sources:        []domain.Source{},
			Confidence:     0.0,
			ModelUsed:      uc.generator.ModelID(),
			ProcessingTime: time.Since(start).Seconds(),
		}, nil
	}

	sources := domain.SourcesOf(chunks)

	answerText, err := uc.generator.GenerateAnswer(ctx, trimmed, chunks)
	if err != nil {
		slog.Error("generate_answer_failed", "error", err)
		return &domain.Answer{
			Text:           "Error generating response: " + err.Error(),
			Sources:        sources,
			Confidence:     0.0,
			ModelUsed:      uc.generator.ModelID(),
			ProcessingTime: time.Since(start).Seconds(),
		}, nil
	}

	return &domain.Answer{
		Text:           answerText,
		Sources:        sources,
		Confidence:     uc.scorer.Score(trimmed, chunks),
		ModelUsed:      uc.generator.ModelID(),
		ProcessingTime: time.Since(start).Seconds(),
	}, nil
}

func (uc *QueryUseCase) degraded(start time.Time) *domain.Answer {
	return &domain.Answer{
		Text:           unavailableAnswer,
		Sources:        []domain.Source{},
		Confidence:     0.0,
		ModelUsed:      uc.generator.ModelID(),
		ProcessingTime: time.Since(start).Seconds(),
	}
}
