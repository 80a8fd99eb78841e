// Package chunker splits documents into bounded, semantically coherent
// chunks with stable line offsets. Code splits on top-level declaration
// boundaries, prose on headings and blank lines; sections that still exceed
// the token budget fall back to sliding windows with overlap.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/grepvec/grepvec/internal/config"
	"github.com/grepvec/grepvec/pkg/types"
)

// Chunker is the chunking engine. Deterministic: identical input always
// yields the identical chunk sequence.
type Chunker struct {
	maxTokens     int
	minTokens     int
	overlapTokens int
}

// New creates a Chunker from the configured bounds.
func New(cfg config.Chunking) *Chunker {
	return &Chunker{
		maxTokens:     cfg.MaxTokens,
		minTokens:     cfg.MinTokens,
		overlapTokens: cfg.OverlapTokens,
	}
}

// Chunk splits a document into chunks. Malformed (non-UTF-8) input is
// rejected with a types.ErrChunking wrap and no partial chunk set.
func (c *Chunker) Chunk(doc types.Document) ([]types.Chunk, error) {
	if !utf8.ValidString(doc.Text) || strings.ContainsRune(doc.Text, 0) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8 text", types.ErrChunking, doc.Path)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, nil
	}

	lines := strings.Split(doc.Text, "\n")
	sections := c.splitSections(lines, doc.Language)

	var chunks []types.Chunk
	for _, sec := range sections {
		chunks = append(chunks, c.emitSection(doc, lines, sec)...)
	}
	return chunks, nil
}

// section is a half-open line range [start, end) into the document.
type section struct {
	start int
	end   int
}

// splitSections groups lines into sections at structural boundaries,
// accumulating up to the token budget. Whatever structure the content has,
// a section never starts mid-paragraph: boundaries are only taken at lines
// that open a new top-level construct.
func (c *Chunker) splitSections(lines []string, language string) []section {
	boundary := boundaryFunc(language)

	var sections []section
	start := 0
	tokens := 0

	for i, line := range lines {
		lineTokens := types.EstimateTokenCount(line) + 1

		// Close the running section when adding this line would blow the
		// budget and the line is an acceptable place to cut. Sections below
		// the minimum size keep accumulating instead.
		if tokens >= c.minTokens && tokens+lineTokens > c.maxTokens && boundary(lines, i) {
			sections = append(sections, section{start: start, end: i})
			start = i
			tokens = 0
		}
		tokens += lineTokens
	}

	if start < len(lines) {
		sections = append(sections, section{start: start, end: len(lines)})
	}
	return sections
}

// emitSection turns one section into chunks. Oversized sections (no
// boundary found within budget) are windowed with overlap; a trailing
// remainder below the minimum chunk size is still emitted rather than
// silently dropped.
func (c *Chunker) emitSection(doc types.Document, lines []string, sec section) []types.Chunk {
	secTokens := 0
	for _, line := range lines[sec.start:sec.end] {
		secTokens += types.EstimateTokenCount(line) + 1
	}

	if secTokens <= c.maxTokens {
		chunk := c.makeChunk(doc, lines, sec.start, sec.end)
		if chunk == nil {
			return nil
		}
		return []types.Chunk{*chunk}
	}

	// Sliding windows over lines. Window and step are derived from the
	// token budget via the per-line token estimate of this section.
	avgLineTokens := secTokens/(sec.end-sec.start) + 1
	windowLines := max(c.maxTokens/avgLineTokens, 1)
	overlapLines := min(c.overlapTokens/avgLineTokens, windowLines-1)
	step := windowLines - overlapLines

	var chunks []types.Chunk
	for pos := sec.start; pos < sec.end; pos += step {
		end := min(pos+windowLines, sec.end)
		if chunk := c.makeChunk(doc, lines, pos, end); chunk != nil {
			chunks = append(chunks, *chunk)
		}
		if end >= sec.end {
			break
		}
	}
	return chunks
}

// makeChunk builds a chunk for lines [start, end); returns nil for
// whitespace-only spans.
func (c *Chunker) makeChunk(doc types.Document, lines []string, start, end int) *types.Chunk {
	text := strings.Join(lines[start:end], "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	chunk := &types.Chunk{
		Text:      text,
		Path:      doc.Path,
		Language:  doc.Language,
		StartLine: start + 1,
		EndLine:   end,
	}
	chunk.ComputeTokenCount()
	return chunk
}

// boundaryFunc returns a predicate reporting whether cutting immediately
// before lines[i] respects the content's structure.
func boundaryFunc(language string) func(lines []string, i int) bool {
	switch language {
	case "markdown", "text":
		return proseBoundary
	default:
		return codeBoundary
	}
}

// codeBoundary accepts a cut before a non-indented, non-empty line that
// follows a blank line or a closing brace: the shape of a new top-level
// declaration in brace/offside languages alike.
func codeBoundary(lines []string, i int) bool {
	if i == 0 {
		return false
	}
	line := lines[i]
	if line == "" || isIndented(line) {
		return false
	}
	prev := strings.TrimSpace(lines[i-1])
	return prev == "" || prev == "}" || prev == "};" || prev == "end"
}

// proseBoundary accepts a cut before a heading or after a blank line.
func proseBoundary(lines []string, i int) bool {
	if i == 0 {
		return false
	}
	if strings.HasPrefix(lines[i], "#") {
		return true
	}
	return strings.TrimSpace(lines[i-1]) == "" && strings.TrimSpace(lines[i]) != ""
}

func isIndented(line string) bool {
	return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
}
