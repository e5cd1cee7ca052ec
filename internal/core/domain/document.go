package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is the registry record for an uploaded source document. It tracks
// processing state only; chunk counts are always derived from the vector
// index, never stored here.
type Document struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type,omitempty"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// DocumentInfo is the derived listing entry built by grouping stored chunks
// by document name. ChunkCount is computed per listing, not persisted.
type DocumentInfo struct {
	Document   string `json:"document"`
	Type       string `json:"type"`
	ChunkCount int    `json:"chunk_count"`
	Source     string `json:"source"`
}

// SystemInfo describes the knowledge-base configuration and size.
type SystemInfo struct {
	Collection     string `json:"collection"`
	Backend        string `json:"backend"`
	ChunkCount     int    `json:"chunk_count"`
	DocumentCount  int    `json:"document_count"`
	EmbedModel     string `json:"embed_model"`
	GenerateModel  string `json:"generate_model"`
	ChunkMaxTokens int    `json:"chunk_max_tokens"`
	ChunkOverlap   int    `json:"chunk_overlap"`
}
