// Package documentctrl is the registry of uploaded documents. The vector
// index holds chunks; this table remembers which documents exist, where
// their raw bytes live and how ingestion went.
package documentctrl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusIngested Status = "ingested"
	StatusFailed   Status = "failed"
)

type Document struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	Filename   string    `gorm:"not null" json:"filename"`
	MinioURL   string    `gorm:"not null;column:minio_url" json:"minio_url"` // bucket name + object name
	Status     Status    `gorm:"not null;default:pending" json:"status"`
	ChunkCount int       `gorm:"not null;default:0" json:"chunk_count"`
	Error      *string   `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type DocumentService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewDocumentService(db *gorm.DB) (*DocumentService, error) {
	// Initialize snowflake node
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}

	return &DocumentService{
		db:        db,
		snowflake: node,
	}, nil
}

func (s *DocumentService) Create(ctx context.Context, filename, minioURL string) (*Document, error) {
	doc := &Document{
		ID:       s.snowflake.Generate().Int64(),
		Filename: filename,
		MinioURL: minioURL,
		Status:   StatusPending,
	}

	result := s.db.WithContext(ctx).Create(doc)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create document: %w", result.Error)
	}

	return doc, nil
}

func (s *DocumentService) GetByID(ctx context.Context, id int64) (*Document, error) {
	var doc Document
	result := s.db.WithContext(ctx).First(&doc, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document: %w", result.Error)
	}
	return &doc, nil
}

// List returns a paginated list of documents, newest first.
func (s *DocumentService) List(ctx context.Context, limit, offset int) ([]Document, error) {
	var docs []Document

	result := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&docs)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list documents: %w", result.Error)
	}

	return docs, nil
}

// MarkIngested records a successful ingestion and its chunk count.
func (s *DocumentService) MarkIngested(ctx context.Context, id int64, chunkCount int) error {
	return s.updateStatus(ctx, id, map[string]interface{}{
		"status":      StatusIngested,
		"chunk_count": chunkCount,
		"error":       nil,
	})
}

// MarkFailed records an ingestion failure.
func (s *DocumentService) MarkFailed(ctx context.Context, id int64, cause string) error {
	return s.updateStatus(ctx, id, map[string]interface{}{
		"status": StatusFailed,
		"error":  &cause,
	})
}

func (s *DocumentService) updateStatus(ctx context.Context, id int64, fields map[string]interface{}) error {
	result := s.db.WithContext(ctx).Model(&Document{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("document not found: %d", id)
	}
	return nil
}

func (s *DocumentService) Delete(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&Document{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete document: %w", result.Error)
	}
	return nil
}
