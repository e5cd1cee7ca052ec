package domain

// SearchFilter narrows a similarity search by exact metadata match.
// Zero values mean no filtering.
type SearchFilter struct {
	Document string
	Type     string
	Section  string
}

// RetrievedChunk is one ranked search hit: chunk text plus the metadata
// needed to attribute it. Ephemeral, never persisted.
type RetrievedChunk struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
}

// Source describes where part of an answer came from.
type Source struct {
	Document string `json:"document"`
	Page     string `json:"page,omitempty"`
	Section  string `json:"section,omitempty"`
}

// Answer is the structured response to one question. Computed per query.
type Answer struct {
	Text           string   `json:"answer"`
	Sources        []Source `json:"sources"`
	Confidence     float64  `json:"confidence"`
	ModelUsed      string   `json:"model_used"`
	ProcessingTime float64  `json:"processing_time"`
}

// SourcesOf projects retrieved chunks to source descriptors, preserving
// search order.
func SourcesOf(chunks []RetrievedChunk) []Source {
	out := make([]Source, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, Source{
			Document: chunk.Metadata.Document,
			Page:     chunk.Metadata.Page,
			Section:  chunk.Metadata.Section,
		})
	}
	return out
}
