package types

import "errors"

// TokensPerChar is the heuristic for estimating token counts (chars / 4).
const TokensPerChar = 4

// Chunk is a bounded span of a document: the atomic unit of embedding and
// retrieval. Chunks are produced by the chunking engine and consumed once
// by the ingestion coordinator; they are not retained.
type Chunk struct {
	// Content
	Text       string
	TokenCount int

	// Location
	Path      string
	Language  string
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
}

// EstimateTokenCount estimates the number of tokens in a string.
func EstimateTokenCount(text string) int {
	return len(text) / TokensPerChar
}

// ComputeTokenCount fills in the chunk's token estimate.
func (c *Chunk) ComputeTokenCount() int {
	c.TokenCount = EstimateTokenCount(c.Text)
	return c.TokenCount
}

// Validate performs basic sanity checks on the chunk.
func (c *Chunk) Validate() error {
	if c.Text == "" {
		return errors.New("chunk text cannot be empty")
	}
	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}
	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}
	if c.Path == "" {
		return errors.New("source path is required")
	}
	return nil
}
