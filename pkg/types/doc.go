// Package types contains the shared domain types for the indexing and
// retrieval pipeline: documents, chunks, fingerprints, embedding records,
// ranked results, and the sentinel errors every layer reports with.
package types
