package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"pdfrag/internal/config"
	"pdfrag/internal/core/domain"
	"pdfrag/internal/core/ports"
	"pdfrag/internal/core/usecase"
	"pdfrag/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	ingestUC  *usecase.IngestDocumentUseCase
	queryUC   *usecase.QueryUseCase
	catalogUC *usecase.CatalogUseCase
	registry  ports.DocumentRegistry
	metrics   *metrics.HTTPServerMetrics
	cfg       config.Config
}

func NewRouter(
	ingestUC *usecase.IngestDocumentUseCase,
	queryUC *usecase.QueryUseCase,
	catalogUC *usecase.CatalogUseCase,
	registry ports.DocumentRegistry,
	m *metrics.HTTPServerMetrics,
	cfg config.Config,
) *Router {
	return &Router{
		ingestUC:  ingestUC,
		queryUC:   queryUC,
		catalogUC: catalogUC,
		registry:  registry,
		metrics:   m,
		cfg:       cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/v1/documents", backpressureMiddleware(
		http.HandlerFunc(rt.uploadDocument),
		rt.cfg.UploadMaxInFlight,
		time.Duration(rt.cfg.UploadWaitTimeout)*time.Second,
	))
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/rag/query", rt.queryRAG)
	mux.HandleFunc("/v1/rag/documents", rt.listDocuments)
	mux.HandleFunc("/v1/rag/documents/", rt.deleteDocument)
	mux.HandleFunc("/v1/rag/clear", rt.clearKnowledgeBase)
	mux.HandleFunc("/v1/rag/info", rt.systemInfo)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	handler := http.Handler(mux)
	handler = rateLimitMiddleware(handler, rt.cfg.QueryRateLimit, rt.cfg.QueryRateBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestUC.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		r.FormValue("type"),
		file,
	)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.registry.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) queryRAG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question string `json:"question"`
		TopK     int    `json:"top_k"`
		Document string `json:"document"`
		Type     string `json:"type"`
		Section  string `json:"section"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	answer, err := rt.queryUC.Ask(r.Context(), req.Question, req.TopK, domain.SearchFilter{
		Document: req.Document,
		Type:     req.Type,
		Section:  req.Section,
	})
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation(serviceName, "/v1/rag/query", len(answer.Sources), answer.Confidence, time.Since(start))
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	docs, err := rt.catalogUC.ListDocuments(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/v1/rag/documents/")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document name is required"})
		return
	}

	if err := rt.catalogUC.DeleteDocument(r.Context(), name); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "document": name})
}

func (rt *Router) clearKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if !req.Confirm {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "set confirm=true to clear the knowledge base"})
		return
	}

	if err := rt.catalogUC.Clear(r.Context()); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (rt *Router) systemInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	info, err := rt.catalogUC.SystemInfo(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
