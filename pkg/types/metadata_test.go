package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_RoundTrip(t *testing.T) {
	m := Metadata{
		Source:     MetadataSource,
		SourcePath: "internal/server/server.go",
		Language:   "go",
		StartLine:  10,
		EndLine:    42,
	}

	data, err := MarshalMetadata(m)
	require.NoError(t, err)

	got, err := UnmarshalMetadata(data)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestUnmarshalMetadata_RejectsUnknownKeys(t *testing.T) {
	_, err := UnmarshalMetadata([]byte(`{"source":"codebase","surprise":true}`))
	assert.Error(t, err)
}

func TestUnmarshalMetadata_RejectsMalformedJSON(t *testing.T) {
	_, err := UnmarshalMetadata([]byte(`{"source":`))
	assert.Error(t, err)
}
