package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pdfrag/internal/config"
	"pdfrag/internal/core/domain"
	"pdfrag/internal/core/usecase"
	"pdfrag/internal/infrastructure/vector/memory"
)

type stubRegistry struct {
	docs map[string]*domain.Document
}

func (r *stubRegistry) Create(_ context.Context, doc *domain.Document) error {
	r.docs[doc.ID] = doc
	return nil
}

func (r *stubRegistry) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	return doc, nil
}

func (r *stubRegistry) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, _ string) error {
	doc, ok := r.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "update status", errors.New(id))
	}
	doc.Status = status
	return nil
}

type stubStorage struct{}

func (stubStorage) Save(_ context.Context, _ string, data io.Reader) error {
	_, err := io.Copy(io.Discard, data)
	return err
}

func (stubStorage) Open(_ context.Context, _ string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

type stubQueue struct {
	published []string
}

func (q *stubQueue) PublishDocumentIngested(_ context.Context, documentID string) error {
	q.published = append(q.published, documentID)
	return nil
}

func (q *stubQueue) SubscribeDocumentIngested(_ context.Context, _ func(context.Context, string) error) error {
	return nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (stubEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type stubGenerator struct{}

func (stubGenerator) GenerateAnswer(_ context.Context, _ string, _ []domain.RetrievedChunk) (string, error) {
	return "generated answer", nil
}

func (stubGenerator) ModelID() string { return "stub-model" }

type fixedScorer struct{ value float64 }

func (f fixedScorer) Score(_ string, _ []domain.RetrievedChunk) float64 { return f.value }

type testEnv struct {
	handler  http.Handler
	registry *stubRegistry
	queue    *stubQueue
	store    *memory.Store
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	registry := &stubRegistry{docs: map[string]*domain.Document{}}
	queue := &stubQueue{}
	store := memory.New()

	ingestUC := usecase.NewIngestDocumentUseCase(registry, stubStorage{}, queue)
	queryUC := usecase.NewQueryUseCase(stubEmbedder{}, store, stubGenerator{}, fixedScorer{0.8}, 0)
	catalogUC := usecase.NewCatalogUseCase(store, usecase.CatalogConfig{
		Collection: "technical_docs",
		Backend:    "memory",
	})

	router := NewRouter(ingestUC, queryUC, catalogUC, registry, nil, cfg)
	return &testEnv{handler: router.Handler(), registry: registry, queue: queue, store: store}
}

func seedChunks(t *testing.T, env *testEnv) {
	t.Helper()
	err := env.store.Store(context.Background(),
		[]string{"AT+CSQ returns rssi and ber.", "AT+CREG reports registration."},
		[][]float32{{1, 0}, {0.9, 0.1}},
		[]domain.ChunkMetadata{
			{Document: "manual", ChunkID: "manual_0", Section: "Signal Quality"},
			{Document: "manual", ChunkID: "manual_1", Section: "Registration"},
		},
	)
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
}

func TestHealthzEndpoint(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatal("response lacks request id header")
	}
}

func TestUploadDocumentPublishesToQueue(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "manual.pdf")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte("%PDF-1.4 fake")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.WriteField("type", "datasheet"); err != nil {
		t.Fatalf("WriteField() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if len(env.queue.published) != 1 {
		t.Fatalf("published %d events, want 1", len(env.queue.published))
	}

	var doc map[string]any
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc["status"] != "uploaded" || doc["type"] != "datasheet" {
		t.Fatalf("unexpected document response: %+v", doc)
	}
}

func TestUploadDocumentMissingMultipartField(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetDocumentByIDNotFound(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestQueryEndpointReturnsAnswer(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	seedChunks(t, env)

	body := bytes.NewBufferString(`{"question":"how do I read signal quality?","top_k":5}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/rag/query", body)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var answer map[string]any
	if err := json.NewDecoder(res.Body).Decode(&answer); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if answer["answer"] != "generated answer" {
		t.Fatalf("answer = %v", answer["answer"])
	}
	if answer["confidence"] != 0.8 {
		t.Fatalf("confidence = %v, want 0.8", answer["confidence"])
	}
	sources := answer["sources"].([]any)
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}
}

func TestQueryEndpointRejectsBlankQuestion(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	body := bytes.NewBufferString(`{"question":"   "}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/rag/query", body)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestQueryEndpointRejectsInvalidJSON(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/rag/query", bytes.NewBufferString("{not json"))
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestListDocumentsEndpoint(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	seedChunks(t, env)

	req := httptest.NewRequest(http.MethodGet, "/v1/rag/documents", nil)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["count"] != float64(1) {
		t.Fatalf("count = %v, want 1", resp["count"])
	}
}

func TestDeleteDocumentEndpointNotFound(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	req := httptest.NewRequest(http.MethodDelete, "/v1/rag/documents/missing", nil)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestDeleteDocumentEndpoint(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	seedChunks(t, env)

	req := httptest.NewRequest(http.MethodDelete, "/v1/rag/documents/manual", nil)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	count, _ := env.store.Count(context.Background())
	if count != 0 {
		t.Fatalf("store still has %d chunks after delete", count)
	}
}

func TestClearEndpointRequiresConfirmation(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	seedChunks(t, env)

	req := httptest.NewRequest(http.MethodPost, "/v1/rag/clear", bytes.NewBufferString(`{"confirm":false}`))
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without confirmation, got %d", res.Code)
	}
	count, _ := env.store.Count(context.Background())
	if count != 2 {
		t.Fatalf("unconfirmed clear removed data: %d chunks left", count)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/rag/clear", bytes.NewBufferString(`{"confirm":true}`))
	res = httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	count, _ = env.store.Count(context.Background())
	if count != 0 {
		t.Fatalf("confirmed clear left %d chunks", count)
	}
}

func TestSystemInfoEndpoint(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	seedChunks(t, env)

	req := httptest.NewRequest(http.MethodGet, "/v1/rag/info", nil)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var info map[string]any
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if info["chunk_count"] != float64(2) || info["document_count"] != float64(1) {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/rag/query", nil)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
