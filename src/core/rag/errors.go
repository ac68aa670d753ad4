package rag

import "fmt"

// UnsupportedFormatError is returned when a file's extension is not in the
// supported set. Fatal for that file; batch callers skip and continue.
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported document format: %q", e.Extension)
}

// ExtractionError wraps a failure of a format-specific reader. The file is
// skipped; the batch continues.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract text from %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingServiceError wraps any failure of the embedding backend. Fatal
// to the current request: no embeddings means no retrieval and no
// ingestion.
type EmbeddingServiceError struct {
	Err error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service failure: %v", e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// DimensionMismatchError indicates an embedding whose dimension differs
// from the collection's established dimension. Caller bug, fatal.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension %d does not match collection dimension %d", e.Got, e.Want)
}

// ArgumentLengthMismatchError indicates unequal id/embedding/document/
// metadata list lengths passed to Add. Caller bug, fatal.
type ArgumentLengthMismatchError struct {
	IDs        int
	Embeddings int
	Documents  int
	Metadatas  int
}

func (e *ArgumentLengthMismatchError) Error() string {
	return fmt.Sprintf("argument length mismatch: ids=%d embeddings=%d documents=%d metadatas=%d",
		e.IDs, e.Embeddings, e.Documents, e.Metadatas)
}
