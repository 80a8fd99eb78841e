package types

import "errors"

// Sentinel errors for the pipeline. Callers match with errors.Is; layers
// wrap with fmt.Errorf("%w: ...") to add context.
var (
	// ErrChunking indicates malformed or binary input that cannot be
	// chunked. Non-fatal: the document is skipped and ingestion continues.
	ErrChunking = errors.New("chunking failed")

	// ErrInference indicates the embedding or reranking service is
	// unreachable or returned an error. Retried with bounded backoff.
	ErrInference = errors.New("inference failed")

	// ErrDimensionMismatch indicates a vector whose dimension does not
	// match the configured embedding dimension. A configuration error:
	// fatal, never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrStoreConnectivity indicates the vector store is unreachable.
	// Fatal for the current run.
	ErrStoreConnectivity = errors.New("vector store unavailable")

	// ErrInvalidQueryParams indicates caller-supplied query parameters
	// that fail validation (e.g. top_n > limit). Rejected before any
	// inference call is made.
	ErrInvalidQueryParams = errors.New("invalid query parameters")

	// ErrNotFound is returned when a requested record doesn't exist.
	ErrNotFound = errors.New("not found")
)
