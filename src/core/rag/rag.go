// Package rag defines the capability boundaries of the retrieval pipeline.
// The embedding model, the vector index and the generation backend are
// external engines; the agent only ever sees these interfaces, so a
// different backing service can be substituted without touching it.
package rag

import (
	"context"
	"strconv"
)

// Metadata describes where a chunk came from and its position within the
// source document. Every chunk produced from the same document carries the
// same document-level stats.
type Metadata struct {
	Source      string `json:"source"`
	Filename    string `json:"filename"`
	FileType    string `json:"file_type"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	TotalWords  int    `json:"total_words"`
	TotalChars  int    `json:"total_chars"`
}

// Chunk is a bounded fragment of a source document, the unit of retrieval.
// Immutable once created.
type Chunk struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Key returns the caller-enforced unique record id for this chunk.
func (c Chunk) Key() string {
	return ChunkKey(c.Metadata.Filename, c.Metadata.ChunkIndex)
}

// ChunkKey builds the record id used by the vector index. Re-ingesting the
// same file produces the same keys, so records are overwritten rather than
// duplicated.
func ChunkKey(filename string, index int) string {
	return filename + "_" + strconv.Itoa(index)
}

// Result is a retrieved chunk with its bounded similarity score.
// Similarity is clamp(1 - distance, 0, 1); higher means more relevant.
// Ephemeral, never persisted.
type Result struct {
	Content    string   `json:"content"`
	Metadata   Metadata `json:"metadata"`
	Similarity float64  `json:"similarity_score"`
}

// Stats reports the state of the index collection. Count equals the number
// of records reachable by an unbounded search.
type Stats struct {
	Count int    `json:"count"`
	Name  string `json:"name"`
}

// Embedder converts texts into fixed-dimension vectors. The output list has
// the same length and order as the input; an empty input yields an empty
// output. A failure aborts the whole call; implementations never return
// partial or ragged results.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex persists (id, embedding, document, metadata) records in one
// named collection and answers nearest-neighbor queries by cosine
// similarity.
type VectorIndex interface {
	// Add persists records. All four slices must have equal length and all
	// embeddings the collection's established dimension.
	Add(ctx context.Context, ids []string, embeddings [][]float32, documents []string, metadatas []Metadata) error
	// Search returns up to n records ranked by descending similarity.
	// An empty collection yields an empty slice, not an error.
	Search(ctx context.Context, embedding []float32, n int) ([]Result, error)
	// Clear deletes every record and returns the count deleted. Safe on an
	// already-empty collection.
	Clear(ctx context.Context) (int, error)
	// DeleteBySource removes records whose metadata source matches.
	// Succeeds even when nothing matched.
	DeleteBySource(ctx context.Context, source string) error
	Stats(ctx context.Context) (Stats, error)
}

// Generator produces an answer from a grounding prompt. Generate never
// fails: timeouts and transport errors are returned as user-facing
// messages so the conversation can continue.
type Generator interface {
	IsReachable(ctx context.Context) bool
	Generate(ctx context.Context, question, grounding, asker string) string
}
