package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdfrag/internal/core/domain"
	"pdfrag/internal/infrastructure/resilience"
	"pdfrag/internal/infrastructure/vector"
)

// scrollBatchSize caps one scroll request; full enumeration pages past it.
const scrollBatchSize = 1000

// patternListSeparator flattens the pattern-match list into one payload
// string. Storage-adapter concern only; the domain type keeps a real slice.
const patternListSeparator = ", "

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return NewWithExecutor(baseURL, collection, nil)
}

// NewWithExecutor routes every request through the shared retry/breaker
// executor. All qdrant operations here are idempotent, so retries are safe.
func NewWithExecutor(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

// Store upserts chunk triples keyed by chunk id. The three slices must have
// equal length; on violation nothing is stored. Re-storing a chunk id
// replaces the prior entry, so re-ingesting an unchanged document is a no-op
// and re-ingesting an edited one is a predictable replacement.
func (c *Client) Store(ctx context.Context, contents []string, vectors [][]float32, metas []domain.ChunkMetadata) error {
	if len(contents) != len(vectors) || len(contents) != len(metas) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"store chunks",
			fmt.Errorf("contents/vectors/metadata length mismatch: %d/%d/%d", len(contents), len(vectors), len(metas)),
		)
	}
	if len(contents) == 0 {
		return nil
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(contents))
	for i := range contents {
		chunkID := strings.TrimSpace(metas[i].ChunkID)
		if chunkID == "" {
			chunkID = vector.FallbackChunkID(metas[i], i, contents[i])
		}
		points = append(points, point{
			ID:      pointID(chunkID),
			Vector:  vectors[i],
			Payload: payloadFromMeta(chunkID, contents[i], metas[i]),
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	return c.do(ctx, http.MethodPut, url, body, nil, "upsert")
}

func (c *Client) Search(ctx context.Context, queryVector []float32, topK int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        topK,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		reqBody["filter"] = f
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.do(ctx, http.MethodPost, url, body, &searchResp, "search"); err != nil {
		if isMissingCollection(err) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]domain.RetrievedChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.RetrievedChunk{
			Content:  getString(r.Payload, "text"),
			Metadata: metaFromPayload(r.Payload),
			Score:    r.Score,
		})
	}
	return out, nil
}

// ListDocuments enumerates every stored chunk via the scroll API and groups
// per-document counts. Pagination is explicit: returning a silent subset
// when the collection exceeds one scroll batch would be a correctness bug.
func (c *Client) ListDocuments(ctx context.Context) ([]domain.DocumentInfo, error) {
	byName := make(map[string]*domain.DocumentInfo)
	order := make([]string, 0, 8)

	err := c.scrollAll(ctx, func(payload map[string]any) {
		name := getString(payload, "document")
		if name == "" {
			name = "unknown"
		}
		info, ok := byName[name]
		if !ok {
			info = &domain.DocumentInfo{
				Document: name,
				Type:     getStringDefault(payload, "type", "unknown"),
				Source:   getStringDefault(payload, "source", "unknown"),
			}
			byName[name] = info
			order = append(order, name)
		}
		info.ChunkCount++
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.DocumentInfo, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

// DeleteDocument removes every chunk of the named document. Reports
// domain.ErrDocumentNotFound when nothing matched, so callers can tell
// "nothing to do" from an I/O fault.
func (c *Client) DeleteDocument(ctx context.Context, name string) error {
	filter := buildFilter(domain.SearchFilter{Document: name})

	matched, err := c.count(ctx, filter)
	if err != nil {
		if isMissingCollection(err) {
			return domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("no chunks for document %q", name))
		}
		return err
	}
	if matched == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("no chunks for document %q", name))
	}

	body, err := json.Marshal(map[string]any{"filter": filter})
	if err != nil {
		return fmt.Errorf("marshal delete body: %w", err)
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	return c.do(ctx, http.MethodPost, url, body, nil, "delete document")
}

// Clear drops and recreates the whole collection. Concurrent readers observe
// either the full pre-clear contents or the empty collection, never a
// half-deleted one; enumerate-then-delete is deliberately not used.
func (c *Client) Clear(ctx context.Context) error {
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	if err := c.do(ctx, http.MethodDelete, url, nil, nil, "drop collection"); err != nil && !isMissingCollection(err) {
		return err
	}

	c.ensureMu.Lock()
	vectorSize := c.ensuredVectorSize
	c.ensuredCollection = false
	c.ensureMu.Unlock()

	// Recreate eagerly when the vector size is known; otherwise creation
	// happens lazily on the next store.
	if vectorSize > 0 {
		return c.ensureCollection(ctx, vectorSize)
	}
	return nil
}

func (c *Client) Count(ctx context.Context) (int, error) {
	n, err := c.count(ctx, nil)
	if err != nil {
		if isMissingCollection(err) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (c *Client) count(ctx context.Context, filter map[string]any) (int, error) {
	reqBody := map[string]any{"exact": true}
	if filter != nil {
		reqBody["filter"] = filter
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return 0, fmt.Errorf("marshal count body: %w", err)
	}

	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", c.baseURL, c.collection)
	if err := c.do(ctx, http.MethodPost, url, body, &countResp, "count"); err != nil {
		return 0, err
	}
	return countResp.Result.Count, nil
}

func (c *Client) scrollAll(ctx context.Context, visit func(payload map[string]any)) error {
	var offset any
	for {
		reqBody := map[string]any{
			"limit":        scrollBatchSize,
			"with_payload": true,
		}
		if offset != nil {
			reqBody["offset"] = offset
		}
		body, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal scroll body: %w", err)
		}

		var scrollResp struct {
			Result struct {
				Points []struct {
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		url := fmt.Sprintf("%s/collections/%s/points/scroll", c.baseURL, c.collection)
		if err := c.do(ctx, http.MethodPost, url, body, &scrollResp, "scroll"); err != nil {
			if isMissingCollection(err) {
				return nil
			}
			return err
		}

		for _, p := range scrollResp.Result.Points {
			visit(p.Payload)
		}

		// A short or empty batch is the end-of-collection signal.
		if len(scrollResp.Result.Points) < scrollBatchSize || scrollResp.Result.NextPageOffset == nil {
			return nil
		}
		offset = scrollResp.Result.NextPageOffset
	}
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err = c.do(ctx, http.MethodPut, url, body, nil, "ensure collection")
	// 409 means the collection already exists, depending on server version.
	var statusErr *httpStatusError
	if err != nil && !(errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict) {
		return err
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

type httpStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *httpStatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func isMissingCollection(err error) bool {
	var statusErr *httpStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, out any, operation string) error {
	if c.executor == nil {
		return c.doOnce(ctx, method, url, body, out, operation)
	}
	return c.executor.Execute(ctx, "qdrant."+operation, func(ctx context.Context) error {
		return c.doOnce(ctx, method, url, body, out, operation)
	}, classifyQdrantError)
}

func (c *Client) doOnce(ctx context.Context, method, url string, body []byte, out any, operation string) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &httpStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
	}
	return nil
}

// pointID derives a stable UUID from the chunk id so that re-storing the
// same chunk id always hits the same point (pure upsert).
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("pdfrag:chunk:"+chunkID)).String()
}

func buildFilter(filter domain.SearchFilter) map[string]any {
	var must []map[string]any
	add := func(key, value string) {
		if value == "" {
			return
		}
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}
	add("document", filter.Document)
	add("type", filter.Type)
	add("section", filter.Section)
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func payloadFromMeta(chunkID, content string, meta domain.ChunkMetadata) map[string]any {
	payload := map[string]any{
		"chunk_id":            chunkID,
		"chunk_index":         meta.ChunkIndex,
		"document":            meta.Document,
		"type":                meta.Type,
		"source":              meta.Source,
		"page":                meta.Page,
		"section":             meta.Section,
		"start_char":          meta.StartChar,
		"end_char":            meta.EndChar,
		"token_count":         meta.TokenCount,
		"pattern_matches":     strings.Join(meta.PatternMatches, patternListSeparator),
		"pattern_match_count": meta.PatternMatchCount,
		"has_code_blocks":     meta.HasCodeBlocks,
		"has_tables":          meta.HasTables,
		"text":                content,
	}
	for k, v := range meta.Extra {
		if _, taken := payload[k]; !taken {
			payload[k] = v
		}
	}
	return payload
}

func metaFromPayload(payload map[string]any) domain.ChunkMetadata {
	meta := domain.ChunkMetadata{
		ChunkID:           getString(payload, "chunk_id"),
		ChunkIndex:        getInt(payload, "chunk_index"),
		Document:          getString(payload, "document"),
		Type:              getString(payload, "type"),
		Source:            getString(payload, "source"),
		Page:              getString(payload, "page"),
		Section:           getString(payload, "section"),
		StartChar:         getInt(payload, "start_char"),
		EndChar:           getInt(payload, "end_char"),
		TokenCount:        getInt(payload, "token_count"),
		PatternMatchCount: getInt(payload, "pattern_match_count"),
		HasCodeBlocks:     getBool(payload, "has_code_blocks"),
		HasTables:         getBool(payload, "has_tables"),
	}
	if joined := getString(payload, "pattern_matches"); joined != "" {
		meta.PatternMatches = strings.Split(joined, patternListSeparator)
	}
	return meta
}

func getString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getStringDefault(payload map[string]any, key, fallback string) string {
	if s := getString(payload, key); s != "" {
		return s
	}
	return fallback
}

func getInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}

func getBool(payload map[string]any, key string) bool {
	b, _ := payload[key].(bool)
	return b
}
