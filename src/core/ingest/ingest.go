// Package ingest turns source documents into indexed chunks:
// extract → chunk → embed → add. Embedding is all-or-nothing per
// document; storage is best-effort on top of the index's add.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"knowra/src/core/document"
	"knowra/src/core/rag"
	"knowra/src/infrastructure/log"
)

// Result reports what one document contributed to the index.
type Result struct {
	Source   string       `json:"source"`
	Filename string       `json:"filename"`
	Success  bool         `json:"success"`
	Chunks   []rag.Chunk  `json:"chunks,omitempty"`
	Metadata rag.Metadata `json:"metadata"`
	Error    string       `json:"error,omitempty"`
}

// Service runs the ingestion pipeline.
type Service struct {
	reader   *document.Reader
	chunker  *document.Chunker
	embedder rag.Embedder
	index    rag.VectorIndex
}

func NewService(reader *document.Reader, chunker *document.Chunker, embedder rag.Embedder, index rag.VectorIndex) *Service {
	return &Service{
		reader:   reader,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
	}
}

// ProcessBytes ingests one document given as raw content. source is the
// logical path recorded in chunk metadata (and used later for
// delete-by-source).
func (s *Service) ProcessBytes(ctx context.Context, filename, source string, content []byte) (*Result, error) {
	text, err := s.reader.Extract(ctx, filename, content)
	if err != nil {
		return nil, err
	}

	chunks, err := s.chunker.Chunk(source, filename, text)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk %s: %w", filename, err)
	}
	if len(chunks) == 0 {
		log.Info("document produced no chunks", "filename", filename)
		return &Result{Source: source, Filename: filename, Success: true}, nil
	}

	ids := make([]string, len(chunks))
	documents := make([]string, len(chunks))
	metadatas := make([]rag.Metadata, len(chunks))
	for i, chunk := range chunks {
		ids[i] = chunk.Key()
		documents[i] = chunk.Content
		metadatas[i] = chunk.Metadata
	}

	embeddings, err := s.embedder.Embed(ctx, documents)
	if err != nil {
		return nil, err
	}

	if err := s.index.Add(ctx, ids, embeddings, documents, metadatas); err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", filename, err)
	}

	log.Info("document ingested", "filename", filename, "chunks", len(chunks))
	return &Result{
		Source:   source,
		Filename: filename,
		Success:  true,
		Chunks:   chunks,
		Metadata: chunks[0].Metadata,
	}, nil
}

// ProcessFile ingests one document from disk.
func (s *Service) ProcessFile(ctx context.Context, path string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &rag.ExtractionError{Path: path, Err: err}
	}
	return s.ProcessBytes(ctx, filepath.Base(path), path, content)
}

// ProcessDirectory ingests every supported file under dir. Per-file
// failures are recorded and skipped so one bad document cannot abort the
// batch; only an embedding-service failure stops it, since nothing
// further can be indexed without embeddings.
func (s *Service) ProcessDirectory(ctx context.Context, dir string) ([]Result, error) {
	paths, err := SupportedFiles(dir)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		result, err := s.ProcessFile(ctx, path)
		if err != nil {
			var embedErr *rag.EmbeddingServiceError
			if errors.As(err, &embedErr) {
				return results, err
			}
			log.Error(err, "skipping document", "path", path)
			results = append(results, Result{
				Source:   path,
				Filename: filepath.Base(path),
				Error:    err.Error(),
			})
			continue
		}
		results = append(results, *result)
	}
	return results, nil
}

// SupportedFiles lists the ingestable files under dir, sorted for
// deterministic batch order.
func SupportedFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if document.Supported(entry.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}
