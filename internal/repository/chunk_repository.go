package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/Drdr1/Offline-LLM-RAG-System/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// CreateBatch inserts all chunks of a document in one transaction so a
// partially written chunk set is never persisted.
func (r *ChunkRepository) CreateBatch(chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&chunks, 100).Error
	}); err != nil {
		return fmt.Errorf("create chunks batch failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) ListByDocumentID(documentID string) ([]model.Chunk, error) {
	var chunks []model.Chunk
	err := r.db.Where("document_id = ?", documentID).
		Order("sequence_index").Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("list chunks by document failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) DeleteByDocumentID(documentID string) error {
	if err := r.db.Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by document failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) DeleteAll() error {
	if err := r.db.Where("1 = 1").Delete(&model.Chunk{}).Error; err != nil {
		return fmt.Errorf("delete all chunks failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) Count() (int64, error) {
	var n int64
	if err := r.db.Model(&model.Chunk{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chunks failed: %w", err)
	}
	return n, nil
}
