package config

import "testing"

func TestLoadChunkingDefaults(t *testing.T) {
	t.Setenv("CHUNK_MAX_TOKENS", "")
	t.Setenv("CHUNK_OVERLAP_TOKENS", "")
	t.Setenv("CHUNK_STRATEGY", "")
	t.Setenv("COMMAND_PATTERN", "")
	t.Setenv("RAG_TOP_K", "")
	t.Setenv("QUESTION_MAX_LENGTH", "")

	cfg := Load()
	if cfg.ChunkMaxTokens != 512 {
		t.Fatalf("expected default chunk max tokens 512, got %d", cfg.ChunkMaxTokens)
	}
	if cfg.ChunkOverlap != 50 {
		t.Fatalf("expected default chunk overlap 50, got %d", cfg.ChunkOverlap)
	}
	if cfg.ChunkStrategy != "structure" {
		t.Fatalf("expected default strategy structure, got %q", cfg.ChunkStrategy)
	}
	if cfg.RAGTopK != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.RAGTopK)
	}
	if cfg.QuestionMaxLength != 2000 {
		t.Fatalf("expected default question max length 2000, got %d", cfg.QuestionMaxLength)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "memory")
	t.Setenv("CHUNK_MAX_TOKENS", "256")
	t.Setenv("CHUNK_OVERLAP_TOKENS", "32")
	t.Setenv("CHUNK_STRATEGY", "token_window")
	t.Setenv("QUERY_RATE_LIMIT", "25")

	cfg := Load()
	if cfg.VectorBackend != "memory" {
		t.Fatalf("expected backend override, got %q", cfg.VectorBackend)
	}
	if cfg.ChunkMaxTokens != 256 || cfg.ChunkOverlap != 32 {
		t.Fatalf("expected chunking overrides, got %d/%d", cfg.ChunkMaxTokens, cfg.ChunkOverlap)
	}
	if cfg.ChunkStrategy != "token_window" {
		t.Fatalf("expected strategy override, got %q", cfg.ChunkStrategy)
	}
	if cfg.QueryRateLimit != 25 {
		t.Fatalf("expected rate limit override, got %d", cfg.QueryRateLimit)
	}
}

func TestLoadIgnoresMalformedIntegers(t *testing.T) {
	t.Setenv("CHUNK_MAX_TOKENS", "not-a-number")

	cfg := Load()
	if cfg.ChunkMaxTokens != 512 {
		t.Fatalf("malformed int should fall back to default, got %d", cfg.ChunkMaxTokens)
	}
}
