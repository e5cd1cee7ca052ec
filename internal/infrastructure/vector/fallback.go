// Package vector holds key derivation shared by the store backends, so the
// in-memory and qdrant stores assign identical ids to unnamed chunks.
package vector

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"pdfrag/internal/core/domain"
)

const maxSlugLen = 40

// FallbackChunkID builds a printable, collision-resistant, filesystem-safe
// key for chunks that arrive without a pre-assigned id. The hash covers the
// source, the position in the batch and a content prefix, so re-storing the
// same batch lands on the same keys.
func FallbackChunkID(meta domain.ChunkMetadata, position int, content string) string {
	prefix := content
	if runes := []rune(prefix); len(runes) > 100 {
		prefix = string(runes[:100])
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", meta.Source, position, prefix)))
	return SanitizeSlug(meta.Document) + "_" + hex.EncodeToString(sum[:])[:16]
}

// SanitizeSlug lowercases the document name, replaces anything outside
// [a-z0-9._-] and bounds the length.
func SanitizeSlug(name string) string {
	if name == "" {
		name = "unknown"
	}
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, name)
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}
	return slug
}
