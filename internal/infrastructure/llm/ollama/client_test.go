package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pdfrag/internal/core/domain"
)

func TestEmbedSendsBatchAndParsesVectors(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"embeddings":[[0.1,0.2],[0.3,0.4]]}`)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed-model"))
	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 || vectors[0][0] != 0.1 || vectors[1][1] != 0.4 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
	if captured["model"] != "embed-model" {
		t.Fatalf("model = %v, want embed-model", captured["model"])
	}
	input := captured["input"].([]any)
	if len(input) != 2 {
		t.Fatalf("input batch size = %d, want 2", len(input))
	}
}

func TestEmbedRejectsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"embeddings":[[0.1]]}`)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed-model"))
	_, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("expected error for embeddings/texts mismatch")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input kind, got %v", err)
	}
}

func TestEmbedEmptyBatchSkipsRequest(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		fmt.Fprint(w, `{"embeddings":[]}`)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed-model"))
	vectors, err := embedder.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if vectors != nil {
		t.Fatalf("got vectors %v for empty batch", vectors)
	}
	if requests != 0 {
		t.Fatalf("empty batch still sent %d requests", requests)
	}
}

func TestEmbedQueryReturnsSingleVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"embeddings":[[0.5,0.6,0.7]]}`)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed-model"))
	vector, err := embedder.EmbedQuery(context.Background(), "question")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vector) != 3 || vector[2] != 0.7 {
		t.Fatalf("unexpected vector: %v", vector)
	}
}

func TestGenerateAnswerBuildsGroundedPrompt(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"response":"  Use AT+CSQ.  "}`)
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "gen-model", "embed"))
	chunks := []domain.RetrievedChunk{
		{
			Content:  "AT+CSQ returns <rssi>,<ber>.",
			Metadata: domain.ChunkMetadata{Document: "manual", Section: "Signal Quality", Page: "42"},
		},
	}

	answer, err := generator.GenerateAnswer(context.Background(), "How to read signal quality?", chunks)
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if answer != "Use AT+CSQ." {
		t.Fatalf("answer = %q, response should be trimmed", answer)
	}

	if captured["model"] != "gen-model" {
		t.Fatalf("model = %v", captured["model"])
	}
	if captured["stream"] != false {
		t.Fatalf("stream = %v, want false", captured["stream"])
	}
	prompt := captured["prompt"].(string)
	if !strings.Contains(prompt, "AT+CSQ returns") {
		t.Fatal("chunk content missing from prompt")
	}
	if !strings.Contains(prompt, "section=Signal Quality") || !strings.Contains(prompt, "page=42") {
		t.Fatal("source attribution missing from prompt")
	}
	options := captured["options"].(map[string]any)
	if options["temperature"] != 0.1 {
		t.Fatalf("temperature = %v, want 0.1", options["temperature"])
	}
}

func TestGenerateAnswerServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "gen", "embed"))
	_, err := generator.GenerateAnswer(context.Background(), "question", nil)
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("5xx should wrap as temporary, got %v", err)
	}
}

func TestModelIDReportsGenerationModel(t *testing.T) {
	generator := NewGenerator(New("http://localhost:11434", "llama3.1:8b", "embed"))
	if generator.ModelID() != "llama3.1:8b" {
		t.Fatalf("ModelID() = %q", generator.ModelID())
	}
}
