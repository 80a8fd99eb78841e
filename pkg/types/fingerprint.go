package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint is a deterministic content-derived identity value, used as
// the embedding record's primary key and as the change-detection signal.
// It is the lowercase hex encoding of a SHA-256 digest.
type Fingerprint string

// FingerprintChunk computes the fingerprint of a chunk from its source
// path, line range, and content. Pure and deterministic: equal inputs
// always produce equal fingerprints, across runs and processes. The path
// and line range are included so the same text appearing in two files (or
// twice in one file) produces distinct records.
func FingerprintChunk(c *Chunk) Fingerprint {
	h := sha256.New()
	// NUL separators prevent ambiguity between the framed fields.
	fmt.Fprintf(h, "%s\x00%d-%d\x00", c.Path, c.StartLine, c.EndLine)
	h.Write([]byte(c.Text))
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// Valid reports whether the fingerprint is a well-formed SHA-256 hex string.
func (f Fingerprint) Valid() bool {
	if len(f) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(string(f))
	return err == nil
}
