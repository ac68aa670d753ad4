package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"knowra/src/core/document"
	"knowra/src/core/rag"
	"knowra/src/infrastructure/job"
	"knowra/src/infrastructure/log"
	"knowra/src/storage/minioctrl"
	"knowra/src/storage/postgres/documentctrl"
)

// DocumentHandler accepts uploads, stores the raw bytes in object storage
// and enqueues ingestion. Actual chunking and embedding happen on the
// worker.
type DocumentHandler struct {
	minioService    *minioctrl.MinioService
	bucketName      string
	documentService *documentctrl.DocumentService
	jobService      *job.JobService
	index           rag.VectorIndex
}

func NewDocumentHandler(
	minioService *minioctrl.MinioService,
	bucketName string,
	documentService *documentctrl.DocumentService,
	jobService *job.JobService,
	index rag.VectorIndex,
) (*DocumentHandler, error) {
	// Ensure bucket exists
	if err := minioService.EnsureBucketExists(context.Background(), bucketName); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return &DocumentHandler{
		minioService:    minioService,
		bucketName:      bucketName,
		documentService: documentService,
		jobService:      jobService,
		index:           index,
	}, nil
}

// Upload handles POST /api/v1/documents
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	if !document.Supported(header.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": (&rag.UnsupportedFormatError{Extension: filepath.Ext(header.Filename)}).Error(),
		})
		return
	}

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}

	// Object name is random; the original filename lives on the record.
	objectName := uuid.New().String() + filepath.Ext(header.Filename)
	if err := h.minioService.PutObject(c.Request.Context(), h.bucketName, objectName, fileBytes); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	doc, err := h.documentService.Create(c.Request.Context(), header.Filename, minioctrl.ObjectURL(h.bucketName, objectName))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record document"})
		return
	}

	ingestJob, err := h.jobService.EnqueueIngest(c.Request.Context(), doc.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue ingestion"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":       doc.ID,
		"filename": doc.Filename,
		"job_id":   ingestJob.ID,
	})
}

// List handles GET /api/v1/documents
func (h *DocumentHandler) List(c *gin.Context) {
	offset, limit := getPaginationParams(c)

	docs, err := h.documentService.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list documents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":  docs,
		"offset": offset,
		"limit":  limit,
	})
}

// Delete handles DELETE /api/v1/documents/:id, removing the indexed
// chunks, the stored object and the registry row, in that order.
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document ID"})
		return
	}

	doc, err := h.documentService.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get document"})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	if err := h.index.DeleteBySource(c.Request.Context(), doc.MinioURL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove indexed chunks"})
		return
	}

	if bucket, object, err := minioctrl.SplitObjectURL(doc.MinioURL); err == nil {
		if err := h.minioService.DeleteObject(c.Request.Context(), bucket, object); err != nil {
			log.Error(err, "failed to delete stored object", "minio_url", doc.MinioURL)
		}
	}

	if err := h.documentService.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete document"})
		return
	}

	c.Status(http.StatusNoContent)
}

func getPaginationParams(c *gin.Context) (offset, limit int) {
	offset = 0
	limit = 10

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return offset, limit
}
