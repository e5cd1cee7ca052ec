package domain

// ChunkStrategy selects how a document is split into retrieval units.
type ChunkStrategy string

const (
	StrategyStructure      ChunkStrategy = "structure"
	StrategyTokenWindow    ChunkStrategy = "token_window"
	StrategyCommandPattern ChunkStrategy = "command_pattern"
)

// ChunkMetadata is the fixed-shape record attached to every chunk. Fields the
// pipeline reads are typed; Extra carries passthrough values the core never
// inspects.
type ChunkMetadata struct {
	Document string `json:"document"`
	Type     string `json:"type,omitempty"`
	Source   string `json:"source,omitempty"`
	Page     string `json:"page,omitempty"`
	Section  string `json:"section,omitempty"`

	ChunkID    string `json:"chunk_id"`
	ChunkIndex int    `json:"chunk_index"`
	StartChar  int    `json:"start_char"`
	EndChar    int    `json:"end_char"`
	TokenCount int    `json:"token_count"`

	PatternMatches    []string `json:"pattern_matches,omitempty"`
	PatternMatchCount int      `json:"pattern_match_count,omitempty"`
	HasCodeBlocks     bool     `json:"has_code_blocks"`
	HasTables         bool     `json:"has_tables"`

	Extra map[string]string `json:"extra,omitempty"`
}

// Chunk is the retrieval unit produced by the chunker. Immutable after
// creation; re-ingestion replaces chunks, never patches them.
type Chunk struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ID returns the stable chunk identifier (document name + sequence index).
func (c Chunk) ID() string {
	return c.Metadata.ChunkID
}
