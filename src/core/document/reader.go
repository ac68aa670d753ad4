package document

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"knowra/src/core/rag"
)

// ErrDocumentTooLarge is returned when a file exceeds the configured size
// ceiling. Batch callers skip the file and continue.
var ErrDocumentTooLarge = fmt.Errorf("document exceeds maximum size")

// Partitioner extracts plain text elements from binary document formats.
// Implemented by the Unstructured API integration.
type Partitioner interface {
	Partition(ctx context.Context, filename string, content []byte) ([]string, error)
}

// Reader extracts text from uploaded documents. Plain-text formats are read
// directly; binary formats are delegated to the partition service.
type Reader struct {
	partitioner Partitioner
	maxBytes    int64
}

// textExtensions are read as-is. Markdown is treated as plain text: the
// markup survives into chunks, which is fine for retrieval.
var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// binaryExtensions require the partition service.
var binaryExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
}

// NewReader creates a Reader. maxSizeMB bounds accepted documents; zero
// disables the check.
func NewReader(partitioner Partitioner, maxSizeMB int) *Reader {
	return &Reader{
		partitioner: partitioner,
		maxBytes:    int64(maxSizeMB) * 1024 * 1024,
	}
}

// Supported reports whether the filename has an extension in the supported
// set.
func Supported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return textExtensions[ext] || binaryExtensions[ext]
}

// Extract returns the document's text. An extension outside the supported
// set yields *rag.UnsupportedFormatError; a reader failure yields
// *rag.ExtractionError.
func (r *Reader) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case textExtensions[ext]:
	case binaryExtensions[ext]:
		if r.partitioner == nil {
			return "", &rag.ExtractionError{Path: filename, Err: fmt.Errorf("no partition service configured for %s", ext)}
		}
	default:
		return "", &rag.UnsupportedFormatError{Extension: ext}
	}

	if r.maxBytes > 0 && int64(len(content)) > r.maxBytes {
		return "", fmt.Errorf("%w: %s is %d bytes", ErrDocumentTooLarge, filename, len(content))
	}

	if textExtensions[ext] {
		return strings.TrimSpace(string(content)), nil
	}

	elements, err := r.partitioner.Partition(ctx, filename, content)
	if err != nil {
		return "", &rag.ExtractionError{Path: filename, Err: err}
	}
	return strings.TrimSpace(strings.Join(elements, "\n")), nil
}
