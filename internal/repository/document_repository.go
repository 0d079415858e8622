package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Drdr1/Offline-LLM-RAG-System/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByFilename(filename string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("filename = ?", filename).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document by filename failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) List() ([]model.Document, error) {
	var list []model.Document
	if err := r.db.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

func (r *DocumentRepository) ListByStatus(status string) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.Where("status = ?", status).Order("created_at").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents by status failed: %w", err)
	}
	return list, nil
}

// ListNonTerminal returns documents caught mid-ingestion, e.g. after a
// crash. Recovery marks them failed rather than resuming.
func (r *DocumentRepository) ListNonTerminal() ([]model.Document, error) {
	var list []model.Document
	err := r.db.Where("status NOT IN ?", []string{model.StatusIndexed, model.StatusFailed}).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list non-terminal documents failed: %w", err)
	}
	return list, nil
}

func (r *DocumentRepository) UpdateStatus(id, status string) error {
	if err := r.db.Model(&model.Document{}).Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("update document status failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) MarkIndexed(id string, pageCount int) error {
	now := time.Now()
	err := r.db.Model(&model.Document{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":         model.StatusIndexed,
		"page_count":     pageCount,
		"failure_reason": "",
		"ingested_at":    &now,
	}).Error
	if err != nil {
		return fmt.Errorf("mark document indexed failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) MarkFailed(id, reason string) error {
	err := r.db.Model(&model.Document{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":         model.StatusFailed,
		"failure_reason": reason,
	}).Error
	if err != nil {
		return fmt.Errorf("mark document failed failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Delete(id string) error {
	if err := r.db.Where("id = ?", id).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) DeleteAll() error {
	if err := r.db.Where("1 = 1").Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete all documents failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Count() (int64, error) {
	var n int64
	if err := r.db.Model(&model.Document{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count documents failed: %w", err)
	}
	return n, nil
}
