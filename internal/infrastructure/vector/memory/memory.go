// Package memory provides an in-process vector store with brute-force cosine
// search. It backs local runs and tests; the qdrant client is the durable
// backend.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"pdfrag/internal/core/domain"
	"pdfrag/internal/infrastructure/vector"
)

const defaultListBatchSize = 1000

type entry struct {
	id      string
	content string
	vector  []float32
	meta    domain.ChunkMetadata
	seq     int
}

// collection is swapped wholesale on Clear so concurrent readers see either
// the full pre-clear contents or the empty collection, never a partial one.
type collection struct {
	entries []entry
	index   map[string]int
	nextSeq int
}

func newCollection() *collection {
	return &collection{index: make(map[string]int)}
}

type Store struct {
	mu            sync.RWMutex
	coll          *collection
	listBatchSize int
}

func New() *Store {
	return &Store{coll: newCollection(), listBatchSize: defaultListBatchSize}
}

// NewWithBatchSize bounds the per-batch enumeration size used by
// ListDocuments, mirroring the paginated backend.
func NewWithBatchSize(batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = defaultListBatchSize
	}
	return &Store{coll: newCollection(), listBatchSize: batchSize}
}

func (s *Store) Store(_ context.Context, contents []string, vectors [][]float32, metas []domain.ChunkMetadata) error {
	if len(contents) != len(vectors) || len(contents) != len(metas) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"store chunks",
			fmt.Errorf("contents/vectors/metadata length mismatch: %d/%d/%d", len(contents), len(vectors), len(metas)),
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range contents {
		id := strings.TrimSpace(metas[i].ChunkID)
		if id == "" {
			id = vector.FallbackChunkID(metas[i], i, contents[i])
		}
		e := entry{id: id, content: contents[i], vector: vectors[i], meta: metas[i]}
		if pos, ok := s.coll.index[id]; ok {
			e.seq = s.coll.entries[pos].seq
			s.coll.entries[pos] = e
			continue
		}
		e.seq = s.coll.nextSeq
		s.coll.nextSeq++
		s.coll.index[id] = len(s.coll.entries)
		s.coll.entries = append(s.coll.entries, e)
	}
	return nil
}

func (s *Store) Search(_ context.Context, queryVector []float32, topK int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	// Store mutates entries in place, so the lock is held for the whole scan.
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll := s.coll

	type scored struct {
		e     entry
		score float64
	}
	candidates := make([]scored, 0, len(coll.entries))
	for _, e := range coll.entries {
		if !matchesFilter(e.meta, filter) {
			continue
		}
		candidates = append(candidates, scored{e: e, score: cosine(queryVector, e.vector)})
	}

	// Similarity descending; ties fall back to insertion order.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].e.seq < candidates[j].e.seq
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}
	if topK < 0 {
		topK = 0
	}
	out := make([]domain.RetrievedChunk, 0, topK)
	for _, c := range candidates[:topK] {
		out = append(out, domain.RetrievedChunk{Content: c.e.content, Metadata: c.e.meta, Score: c.score})
	}
	return out, nil
}

func (s *Store) ListDocuments(_ context.Context) ([]domain.DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll := s.coll

	byName := make(map[string]*domain.DocumentInfo)
	order := make([]string, 0, 8)

	// Enumerate in bounded batches like the paginated backend; a short batch
	// ends the walk.
	for offset := 0; ; offset += s.listBatchSize {
		end := offset + s.listBatchSize
		if end > len(coll.entries) {
			end = len(coll.entries)
		}
		batch := coll.entries[offset:end]
		for _, e := range batch {
			name := e.meta.Document
			if name == "" {
				name = "unknown"
			}
			info, ok := byName[name]
			if !ok {
				info = &domain.DocumentInfo{Document: name, Type: orUnknown(e.meta.Type), Source: orUnknown(e.meta.Source)}
				byName[name] = info
				order = append(order, name)
			}
			info.ChunkCount++
		}
		if len(batch) < s.listBatchSize {
			break
		}
	}

	out := make([]domain.DocumentInfo, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

func (s *Store) DeleteDocument(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]entry, 0, len(s.coll.entries))
	removed := 0
	for _, e := range s.coll.entries {
		if e.meta.Document == name {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("no chunks for document %q", name))
	}

	index := make(map[string]int, len(kept))
	for i, e := range kept {
		index[e.id] = i
	}
	s.coll = &collection{entries: kept, index: index, nextSeq: s.coll.nextSeq}
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	s.coll = newCollection()
	s.mu.Unlock()
	return nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.coll.entries), nil
}

func matchesFilter(meta domain.ChunkMetadata, filter domain.SearchFilter) bool {
	if filter.Document != "" && meta.Document != filter.Document {
		return false
	}
	if filter.Type != "" && meta.Type != filter.Type {
		return false
	}
	if filter.Section != "" && meta.Section != filter.Section {
		return false
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
