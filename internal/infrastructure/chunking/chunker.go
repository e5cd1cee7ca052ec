package chunking

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"pdfrag/internal/core/domain"
)

const (
	DefaultMaxTokens     = 512
	DefaultOverlapTokens = 50

	// DefaultCommandPattern matches AT-command syntax in modem and IoT
	// documentation, the domain split trigger of the command strategy.
	DefaultCommandPattern = `AT\+[A-Z0-9]+`
)

var (
	headingRe     = regexp.MustCompile(`^#{1,6}\s+(.+)$`)
	sentenceEndRe = regexp.MustCompile(`[.!?]\s*$`)
)

// Chunker splits technical documents into retrieval units. Strategies differ
// only in where boundaries fall; metadata finalization is shared.
type Chunker struct {
	maxTokens     int
	overlapTokens int
	tokenizer     Tokenizer
	pattern       *regexp.Regexp
}

func New(tokenizer Tokenizer, maxTokens, overlapTokens int, commandPattern string) (*Chunker, error) {
	if tokenizer == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new chunker", errors.New("tokenizer is required"))
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	if overlapTokens >= maxTokens {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"new chunker",
			fmt.Errorf("overlap_tokens %d must be smaller than max_tokens %d", overlapTokens, maxTokens),
		)
	}
	if commandPattern == "" {
		commandPattern = DefaultCommandPattern
	}
	pattern, err := regexp.Compile(commandPattern)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new chunker", fmt.Errorf("compile command pattern: %w", err))
	}
	return &Chunker{
		maxTokens:     maxTokens,
		overlapTokens: overlapTokens,
		tokenizer:     tokenizer,
		pattern:       pattern,
	}, nil
}

// Chunk splits text with the given strategy. Empty input yields an empty
// list, never an error.
func (c *Chunker) Chunk(text string, base domain.ChunkMetadata, strategy domain.ChunkStrategy) ([]domain.Chunk, error) {
	if text == "" {
		return []domain.Chunk{}, nil
	}
	switch strategy {
	case domain.StrategyStructure, "":
		return c.chunkByBoundary(text, base, c.isHeading), nil
	case domain.StrategyTokenWindow:
		return c.chunkByTokenWindow(text, base), nil
	case domain.StrategyCommandPattern:
		return c.chunkByBoundary(text, base, c.isCommandLine), nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk", fmt.Errorf("unknown strategy %q", strategy))
	}
}

func (c *Chunker) isHeading(line string) (string, bool) {
	m := headingRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (c *Chunker) isCommandLine(line string) (string, bool) {
	matches := c.pattern.FindAllString(line, -1)
	if len(matches) == 0 {
		return "", false
	}
	return "", true
}

// chunkByBoundary is the shared control flow of the structure and
// command-pattern strategies: a trigger line closes the running chunk and
// starts a new one; over-budget chunks split early at the nearest sentence
// boundary, then blank line, then midpoint. No token overlap is added at
// these splits.
func (c *Chunker) chunkByBoundary(text string, base domain.ChunkMetadata, trigger func(string) (string, bool)) []domain.Chunk {
	lines := strings.Split(text, "\n")
	offsets := lineOffsets(lines)

	var (
		chunks   []domain.Chunk
		cur      []string
		curStart int
		section  = base.Section
		seq      int
	)

	flush := func(lineCount, endLine int) {
		content := strings.Join(cur[:lineCount], "\n")
		if strings.TrimSpace(content) != "" {
			meta := base
			meta.Section = section
			chunks = append(chunks, c.buildChunk(content, meta, seq, offsets[curStart], offsets[curStart]+utf8.RuneCountInString(content)))
			seq++
		}
		cur = cur[lineCount:]
		curStart = endLine - len(cur)
	}

	for i, line := range lines {
		if heading, ok := trigger(line); ok {
			if len(cur) > 0 {
				flush(len(cur), i)
			}
			cur = []string{line}
			curStart = i
			if heading != "" {
				section = heading
			}
			continue
		}

		cur = append(cur, line)
		if c.tokenizer.Count(strings.Join(cur, "\n")) > c.maxTokens {
			if keep := splitBoundary(cur); keep > 0 {
				flush(keep, i+1)
			}
		}
	}
	if len(cur) > 0 {
		flush(len(cur), len(lines))
	}
	return chunks
}

func (c *Chunker) chunkByTokenWindow(text string, base domain.ChunkMetadata) []domain.Chunk {
	tokens := c.tokenizer.Encode(text)
	if len(tokens) == 0 {
		return []domain.Chunk{}
	}

	step := c.maxTokens - c.overlapTokens
	chunks := make([]domain.Chunk, 0, len(tokens)/step+1)
	seq := 0
	for start := 0; start < len(tokens); start += step {
		end := start + c.maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		content := c.tokenizer.Decode(tokens[start:end])
		if strings.TrimSpace(content) != "" {
			// Offsets come from re-decoding the prefix; rune counting keeps
			// this stable when a window boundary lands mid-multibyte-rune.
			startChar := utf8.RuneCountInString(c.tokenizer.Decode(tokens[:start]))
			endChar := utf8.RuneCountInString(c.tokenizer.Decode(tokens[:end]))
			chunks = append(chunks, c.buildChunk(content, base, seq, startChar, endChar))
			seq++
		}
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

// buildChunk is the single finalization step shared by every strategy. It
// recomputes the full chunk id, span, token count, command matches and
// content flags regardless of how the boundary was chosen.
func (c *Chunker) buildChunk(content string, base domain.ChunkMetadata, seq, startChar, endChar int) domain.Chunk {
	docName := base.Document
	if docName == "" {
		docName = "unknown"
	}

	meta := base
	meta.ChunkID = fmt.Sprintf("%s_%d", docName, seq)
	meta.ChunkIndex = seq
	meta.StartChar = startChar
	meta.EndChar = endChar
	meta.TokenCount = c.tokenizer.Count(content)
	meta.PatternMatches = c.pattern.FindAllString(content, -1)
	meta.PatternMatchCount = len(meta.PatternMatches)
	meta.HasCodeBlocks = strings.Contains(content, "```")
	meta.HasTables = strings.Contains(content, "|") && strings.Contains(content, "\n")

	return domain.Chunk{Content: content, Metadata: meta}
}

// splitBoundary picks how many leading lines form the closed chunk: the last
// sentence-ending line, else the last blank line, else the midpoint.
func splitBoundary(lines []string) int {
	for i := len(lines) - 1; i > 0; i-- {
		if sentenceEndRe.MatchString(lines[i]) {
			return i + 1
		}
	}
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			return i
		}
	}
	return len(lines) / 2
}

// lineOffsets maps each line index to its rune offset in the joined text.
func lineOffsets(lines []string) []int {
	offsets := make([]int, len(lines)+1)
	pos := 0
	for i, line := range lines {
		offsets[i] = pos
		pos += utf8.RuneCountInString(line) + 1
	}
	offsets[len(lines)] = pos
	return offsets
}
