package job

import (
	"context"
	"encoding/json"
	"fmt"

	"knowra/src/core/ingest"
	"knowra/src/infrastructure/log"
	"knowra/src/storage/minioctrl"
	"knowra/src/storage/postgres/documentctrl"
)

const TaskTypeIngest = "ingest"

// IngestPayload identifies the document a worker should ingest.
type IngestPayload struct {
	DocumentID int64 `json:"document_id"`
}

// IngestTask pulls an uploaded document out of object storage and runs
// the ingestion pipeline on it, recording the outcome on the document
// row.
type IngestTask struct {
	documentService *documentctrl.DocumentService
	minioService    *minioctrl.MinioService
	pipeline        *ingest.Service
}

func NewIngestTask(
	documentService *documentctrl.DocumentService,
	minioService *minioctrl.MinioService,
	pipeline *ingest.Service,
) *IngestTask {
	return &IngestTask{
		documentService: documentService,
		minioService:    minioService,
		pipeline:        pipeline,
	}
}

// HandleIngestTask processes one ingest job payload.
func (t *IngestTask) HandleIngestTask(ctx context.Context, payload json.RawMessage) error {
	var p IngestPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal ingest payload: %w", err)
	}

	doc, err := t.documentService.GetByID(ctx, p.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("document not found: %d", p.DocumentID)
	}

	bucket, object, err := minioctrl.SplitObjectURL(doc.MinioURL)
	if err != nil {
		return t.fail(ctx, doc.ID, err)
	}

	content, err := t.minioService.GetObject(ctx, bucket, object)
	if err != nil {
		return t.fail(ctx, doc.ID, fmt.Errorf("failed to fetch document content: %w", err))
	}

	result, err := t.pipeline.ProcessBytes(ctx, doc.Filename, doc.MinioURL, content)
	if err != nil {
		return t.fail(ctx, doc.ID, err)
	}

	if err := t.documentService.MarkIngested(ctx, doc.ID, len(result.Chunks)); err != nil {
		return fmt.Errorf("failed to mark document ingested: %w", err)
	}

	log.Info("ingest job completed", "document_id", doc.ID, "chunks", len(result.Chunks))
	return nil
}

func (t *IngestTask) fail(ctx context.Context, documentID int64, cause error) error {
	if err := t.documentService.MarkFailed(ctx, documentID, cause.Error()); err != nil {
		log.Error(err, "failed to mark document failed", "document_id", documentID)
	}
	return cause
}
