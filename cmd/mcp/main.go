package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"pdfrag/internal/adapters/mcptools"
	"pdfrag/internal/bootstrap"
	"pdfrag/internal/config"
	"pdfrag/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	// Logs go to stderr; stdout carries the MCP protocol.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	app, err := bootstrap.NewWithOptions(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	srv := mcptools.NewServer(app.QueryUC, app.ProcessUC, app.CatalogUC, app.Extractor, app.Storage)
	slog.Info("mcp server starting on stdio")
	if err := srv.ServeStdio(); err != nil {
		slog.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
