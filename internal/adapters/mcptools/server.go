// Package mcptools exposes the knowledge base as MCP tools over stdio, so
// editor assistants can query and manage the index without the HTTP API.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"pdfrag/internal/core/domain"
	"pdfrag/internal/core/ports"
	"pdfrag/internal/core/usecase"
)

type Server struct {
	queryUC   *usecase.QueryUseCase
	processUC *usecase.ProcessDocumentUseCase
	catalogUC *usecase.CatalogUseCase
	extractor ports.TextExtractor
	storage   ports.ObjectStorage

	mcpServer *server.MCPServer
}

func NewServer(
	queryUC *usecase.QueryUseCase,
	processUC *usecase.ProcessDocumentUseCase,
	catalogUC *usecase.CatalogUseCase,
	extractor ports.TextExtractor,
	storage ports.ObjectStorage,
) *Server {
	s := &Server{
		queryUC:   queryUC,
		processUC: processUC,
		catalogUC: catalogUC,
		extractor: extractor,
		storage:   storage,
	}

	mcpServer := server.NewMCPServer("pdfrag", "1.0.0", server.WithToolCapabilities(true))

	mcpServer.AddTool(mcp.NewTool("pdfrag.query_technical_docs",
		mcp.WithDescription("Answer a question using the indexed technical documentation."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question to answer.")),
		mcp.WithNumber("top_k", mcp.Description("How many chunks to retrieve (1-20, default 5).")),
		mcp.WithString("document", mcp.Description("Restrict retrieval to a single document name.")),
	), s.handleQuery)

	mcpServer.AddTool(mcp.NewTool("pdfrag.add_document",
		mcp.WithDescription("Index a local PDF or text file into the knowledge base."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Local filesystem path of the document.")),
		mcp.WithString("type", mcp.Description("Document category label, for example 'manual'.")),
	), s.handleAddDocument)

	mcpServer.AddTool(mcp.NewTool("pdfrag.list_documents",
		mcp.WithDescription("List indexed documents with their chunk counts."),
	), s.handleListDocuments)

	mcpServer.AddTool(mcp.NewTool("pdfrag.delete_document",
		mcp.WithDescription("Remove a document and all of its chunks from the index."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Document name as reported by list_documents.")),
	), s.handleDeleteDocument)

	mcpServer.AddTool(mcp.NewTool("pdfrag.clear_database",
		mcp.WithDescription("Delete every chunk from the knowledge base."),
		mcp.WithBoolean("confirm", mcp.Required(), mcp.Description("Must be true; guards against accidental wipes.")),
	), s.handleClear)

	mcpServer.AddTool(mcp.NewTool("pdfrag.get_system_info",
		mcp.WithDescription("Report collection configuration, model names and index size."),
	), s.handleSystemInfo)

	s.mcpServer = mcpServer
	return s
}

// ServeStdio blocks, speaking MCP over stdin/stdout until the client hangs up.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK := req.GetInt("top_k", 0)
	document := req.GetString("document", "")

	answer, err := s.queryUC.Ask(ctx, question, topK, domain.SearchFilter{Document: document})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatAnswer(answer)), nil
}

func (s *Server) handleAddDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docType := req.GetString("type", "")

	file, err := os.Open(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open %s: %v", path, err)), nil
	}
	defer file.Close()

	name := filepath.Base(path)
	if err := s.storage.Save(ctx, name, file); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stage %s: %v", name, err)), nil
	}

	doc := &domain.Document{Name: name, Type: docType, StoragePath: name}
	text, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("extract %s: %v", name, err)), nil
	}

	chunks, err := s.processUC.Ingest(ctx, text, domain.ChunkMetadata{
		Document: strings.TrimSuffix(name, filepath.Ext(name)),
		Type:     docType,
		Source:   path,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("index %s: %v", name, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Indexed %s: %d chunks.", name, len(chunks))), nil
}

func (s *Server) handleListDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.catalogUC.ListDocuments(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(docs) == 0 {
		return mcp.NewToolResultText("The knowledge base is empty."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d documents:\n", len(docs))
	for _, doc := range docs {
		fmt.Fprintf(&b, "- %s (%s, %d chunks)\n", doc.Document, orUnknown(doc.Type), doc.ChunkCount)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleDeleteDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	document, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.catalogUC.DeleteDocument(ctx, document); err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("document %q is not in the knowledge base", document)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted %s.", document)), nil
}

func (s *Server) handleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	confirm, err := req.RequireBool("confirm")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !confirm {
		return mcp.NewToolResultError("refusing to clear: pass confirm=true"), nil
	}

	if err := s.catalogUC.Clear(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Knowledge base cleared."), nil
}

func (s *Server) handleSystemInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.catalogUC.SystemInfo(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func formatAnswer(answer *domain.Answer) string {
	var b strings.Builder
	b.WriteString(answer.Text)
	fmt.Fprintf(&b, "\n\nConfidence: %.2f", answer.Confidence)
	if len(answer.Sources) > 0 {
		b.WriteString("\nSources:\n")
		for _, src := range answer.Sources {
			fmt.Fprintf(&b, "- %s", src.Document)
			if src.Section != "" {
				fmt.Fprintf(&b, " / %s", src.Section)
			}
			if src.Page != "" {
				fmt.Fprintf(&b, " (page %s)", src.Page)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
