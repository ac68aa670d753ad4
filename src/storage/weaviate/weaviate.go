// Package weaviate implements the vector index boundary on top of a
// Weaviate instance. The engine is treated as a black-box nearest-neighbor
// service: this wrapper only enforces shape invariants before delegating
// and converts raw distances into bounded similarity scores.
package weaviate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"knowra/src/core/rag"
)

const DefaultClass = "KnowledgeChunk"

// propKey holds the caller-supplied record id. Record UUIDs are derived
// from it, so re-adding the same key overwrites instead of duplicating.
const propKey = "chunkKey"

var resultFields = []string{
	"content", "source", "filename", "fileType",
	"chunkIndex", "totalChunks", "totalWords", "totalChars",
}

// Index stores (id, embedding, document, metadata) records in one Weaviate
// class with cosine distance fixed at class creation.
type Index struct {
	client *weaviate.Client
	class  string

	mu        sync.Mutex
	dimension int // pinned by the first successful Add
}

// NewIndex creates an Index over the given class name. Call EnsureClass
// before using it.
func NewIndex(client *weaviate.Client, class string) *Index {
	if class == "" {
		class = DefaultClass
	}
	return &Index{
		client: client,
		class:  class,
	}
}

// EnsureClass creates the class if it does not exist. Idempotent: repeated
// calls with the same name are no-ops.
func (x *Index) EnsureClass(ctx context.Context) error {
	exists, err := x.classExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check if class exists: %w", err)
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class:      x.class,
		Vectorizer: "none",
		VectorIndexConfig: map[string]interface{}{
			"distance": "cosine",
		},
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}},
			{Name: "source", DataType: []string{"string"}},
			{Name: "filename", DataType: []string{"string"}},
			{Name: "fileType", DataType: []string{"string"}},
			{Name: propKey, DataType: []string{"string"}},
			{Name: "chunkIndex", DataType: []string{"int"}},
			{Name: "totalChunks", DataType: []string{"int"}},
			{Name: "totalWords", DataType: []string{"int"}},
			{Name: "totalChars", DataType: []string{"int"}},
		},
	}

	if err := x.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		// A concurrent creator may have won the race.
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return fmt.Errorf("failed to create class: %w", err)
	}
	return nil
}

func (x *Index) classExists(ctx context.Context) (bool, error) {
	schema, err := x.client.Schema().Getter().Do(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get schema: %w", err)
	}
	for _, class := range schema.Classes {
		if class.Class == x.class {
			return true, nil
		}
	}
	return false, nil
}

// Add persists records in one batch. Shape invariants are enforced before
// anything reaches the engine: equal slice lengths and a constant
// embedding dimension.
func (x *Index) Add(ctx context.Context, ids []string, embeddings [][]float32, documents []string, metadatas []rag.Metadata) error {
	if len(ids) != len(embeddings) || len(ids) != len(documents) || len(ids) != len(metadatas) {
		return &rag.ArgumentLengthMismatchError{
			IDs:        len(ids),
			Embeddings: len(embeddings),
			Documents:  len(documents),
			Metadatas:  len(metadatas),
		}
	}
	if len(ids) == 0 {
		return nil
	}

	if err := x.checkDimension(embeddings); err != nil {
		return err
	}

	objects := make([]*models.Object, len(ids))
	for i := range ids {
		objects[i] = &models.Object{
			Class:  x.class,
			ID:     recordUUID(ids[i]),
			Vector: embeddings[i],
			Properties: map[string]interface{}{
				"content":     documents[i],
				"source":      metadatas[i].Source,
				"filename":    metadatas[i].Filename,
				"fileType":    metadatas[i].FileType,
				propKey:       ids[i],
				"chunkIndex":  metadatas[i].ChunkIndex,
				"totalChunks": metadatas[i].TotalChunks,
				"totalWords":  metadatas[i].TotalWords,
				"totalChars":  metadatas[i].TotalChars,
			},
		}
	}

	resp, err := x.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to batch add records: %w", err)
	}
	if len(resp) == 0 {
		return fmt.Errorf("batch add returned no results")
	}
	return nil
}

func (x *Index) checkDimension(embeddings [][]float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, embedding := range embeddings {
		if x.dimension == 0 {
			x.dimension = len(embedding)
			continue
		}
		if len(embedding) != x.dimension {
			return &rag.DimensionMismatchError{Want: x.dimension, Got: len(embedding)}
		}
	}
	return nil
}

// Search returns up to n records ranked by ascending cosine distance,
// converted to bounded similarity scores. An empty class yields an empty
// slice.
func (x *Index) Search(ctx context.Context, embedding []float32, n int) ([]rag.Result, error) {
	if n <= 0 {
		return nil, nil
	}

	fields := make([]graphql.Field, 0, len(resultFields)+1)
	for _, name := range resultFields {
		fields = append(fields, graphql.Field{Name: name})
	}
	fields = append(fields, graphql.Field{Name: "_additional { distance }"})

	nearVector := x.client.GraphQL().NearVectorArgBuilder().WithVector(embedding)

	result, err := x.client.GraphQL().Get().
		WithClassName(x.class).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(n).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("vector query failed: %s", result.Errors[0].Message)
	}

	var results []rag.Result
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return results, nil
	}
	objects, ok := data[x.class].([]interface{})
	if !ok {
		return results, nil
	}

	for _, obj := range objects {
		props, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		distance := 1.0
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if d, ok := additional["distance"].(float64); ok {
				distance = d
			}
		}
		results = append(results, rag.Result{
			Content: getString(props, "content"),
			Metadata: rag.Metadata{
				Source:      getString(props, "source"),
				Filename:    getString(props, "filename"),
				FileType:    getString(props, "fileType"),
				ChunkIndex:  getInt(props, "chunkIndex"),
				TotalChunks: getInt(props, "totalChunks"),
				TotalWords:  getInt(props, "totalWords"),
				TotalChars:  getInt(props, "totalChars"),
			},
			Similarity: SimilarityFromDistance(distance),
		})
	}
	return results, nil
}

// Clear deletes every record in the class and returns the count deleted.
// Safe on an empty class.
func (x *Index) Clear(ctx context.Context) (int, error) {
	where := filters.Where().
		WithPath([]string{propKey}).
		WithOperator(filters.Like).
		WithValueText("*")
	return x.batchDelete(ctx, where)
}

// DeleteBySource removes records whose source metadata matches. Succeeds
// even when nothing matched.
func (x *Index) DeleteBySource(ctx context.Context, source string) error {
	where := filters.Where().
		WithPath([]string{"source"}).
		WithOperator(filters.Equal).
		WithValueText(source)
	_, err := x.batchDelete(ctx, where)
	return err
}

func (x *Index) batchDelete(ctx context.Context, where *filters.WhereBuilder) (int, error) {
	resp, err := x.client.Batch().ObjectsBatchDeleter().
		WithClassName(x.class).
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to batch delete records: %w", err)
	}
	if resp == nil || resp.Results == nil {
		return 0, nil
	}
	return int(resp.Results.Matches), nil
}

// Stats reports the record count for the class via an aggregate query.
func (x *Index) Stats(ctx context.Context) (rag.Stats, error) {
	result, err := x.client.GraphQL().Aggregate().
		WithClassName(x.class).
		WithFields(graphql.Field{
			Name:   "meta",
			Fields: []graphql.Field{{Name: "count"}},
		}).
		Do(ctx)
	if err != nil {
		return rag.Stats{}, fmt.Errorf("failed to aggregate class: %w", err)
	}
	if len(result.Errors) > 0 {
		return rag.Stats{}, fmt.Errorf("aggregate query failed: %s", result.Errors[0].Message)
	}

	stats := rag.Stats{Name: x.class}
	data, ok := result.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return stats, nil
	}
	entries, ok := data[x.class].([]interface{})
	if !ok || len(entries) == 0 {
		return stats, nil
	}
	entry, ok := entries[0].(map[string]interface{})
	if !ok {
		return stats, nil
	}
	if meta, ok := entry["meta"].(map[string]interface{}); ok {
		if count, ok := meta["count"].(float64); ok {
			stats.Count = int(count)
		}
	}
	return stats, nil
}

// SimilarityFromDistance converts a raw cosine distance into the bounded
// similarity score used by all downstream consumers.
func SimilarityFromDistance(distance float64) float64 {
	similarity := 1 - distance
	if similarity < 0 {
		return 0
	}
	if similarity > 1 {
		return 1
	}
	return similarity
}

// recordUUID derives a deterministic object id from the caller key, so
// duplicate keys dedupe instead of multiplying.
func recordUUID(key string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String())
}

func getString(props map[string]interface{}, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func getInt(props map[string]interface{}, key string) int {
	if v, ok := props[key].(float64); ok {
		return int(v)
	}
	return 0
}
