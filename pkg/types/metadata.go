package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Metadata is the structured, schema-validated metadata attached to every
// embedding record. The key set is fixed per deployment; unrecognized keys
// in stored JSON are rejected on read to catch shape drift between
// ingestion and query.
type Metadata struct {
	Source     string `json:"source"`
	SourcePath string `json:"source_path"`
	Language   string `json:"language"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
}

// MetadataSource is the fixed provenance tag for records produced by
// codebase ingestion.
const MetadataSource = "codebase"

// MarshalMetadata serializes metadata to its stored JSON form.
func MarshalMetadata(m Metadata) ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalMetadata parses stored metadata JSON, rejecting unknown keys.
func UnmarshalMetadata(data []byte) (Metadata, error) {
	var m Metadata
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return Metadata{}, fmt.Errorf("invalid metadata: %w", err)
	}
	return m, nil
}
