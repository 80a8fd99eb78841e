package types

// Document is a loaded source file. It is immutable for the duration of an
// ingestion pass: the loader owns it, the pipeline only reads it.
type Document struct {
	// Path is the file path relative to the ingestion root.
	Path string

	// Text is the full UTF-8 content of the file.
	Text string

	// Language is the detected language, derived from the file extension
	// ("go", "rust", "markdown", ...; "text" when unknown).
	Language string
}
