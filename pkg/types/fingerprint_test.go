package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintChunk_Deterministic(t *testing.T) {
	chunk := &Chunk{
		Text:      "func main() {}\n",
		Path:      "cmd/main.go",
		StartLine: 1,
		EndLine:   2,
	}

	a := FingerprintChunk(chunk)
	b := FingerprintChunk(chunk)

	assert.Equal(t, a, b)
	assert.True(t, a.Valid())
}

func TestFingerprintChunk_ChangesWithContent(t *testing.T) {
	base := Chunk{
		Text:      "func main() {}\n",
		Path:      "cmd/main.go",
		StartLine: 1,
		EndLine:   2,
	}
	baseFP := FingerprintChunk(&base)

	tests := []struct {
		name   string
		mutate func(c *Chunk)
	}{
		{"text change", func(c *Chunk) { c.Text = "func main() { run() }\n" }},
		{"path change", func(c *Chunk) { c.Path = "cmd/other.go" }},
		{"start line change", func(c *Chunk) { c.StartLine = 5 }},
		{"end line change", func(c *Chunk) { c.EndLine = 9 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutated := base
			tt.mutate(&mutated)
			assert.NotEqual(t, baseFP, FingerprintChunk(&mutated))
		})
	}
}

func TestFingerprintChunk_FieldFramingIsUnambiguous(t *testing.T) {
	// Shifting a character between the path and the text must not collide.
	a := FingerprintChunk(&Chunk{Text: "bc", Path: "a", StartLine: 1, EndLine: 1})
	b := FingerprintChunk(&Chunk{Text: "c", Path: "ab", StartLine: 1, EndLine: 1})
	assert.NotEqual(t, a, b)
}

func TestFingerprint_Valid(t *testing.T) {
	tests := []struct {
		name string
		fp   Fingerprint
		want bool
	}{
		{"real digest", FingerprintChunk(&Chunk{Text: "x", Path: "p", StartLine: 1, EndLine: 1}), true},
		{"empty", Fingerprint(""), false},
		{"too short", Fingerprint("abc123"), false},
		{"right length, not hex", Fingerprint("zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fp.Valid())
		})
	}
}
