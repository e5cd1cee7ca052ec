package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveThenOpenRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := storage.Save(ctx, "doc-1_manual.pdf", strings.NewReader("pdf bytes")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reader, err := storage.Open(ctx, "doc-1_manual.pdf")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(raw) != "pdf bytes" {
		t.Fatalf("content = %q", raw)
	}
}

func TestSaveStripsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	storage, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := storage.Save(ctx, "../../escape.txt", strings.NewReader("data")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// The traversal prefix is dropped; the file is reachable by base name.
	reader, err := storage.Open(ctx, "escape.txt")
	if err != nil {
		t.Fatalf("Open() after sanitized save error = %v", err)
	}
	reader.Close()
}

func TestOpenMissingKey(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := storage.Open(context.Background(), "absent.txt"); err == nil {
		t.Fatal("expected error for missing key")
	}
}
