package model

import (
	"encoding/json"
	"time"
)

// Chunk stores one window of a document's text together with its
// embedding and provenance (page, byte offsets into the page text).
// Embedding is stored as a JSON array of float32 for portability.
// Chunks are never mutated after creation.
type Chunk struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	DocumentID    string    `gorm:"size:36;not null;index" json:"document_id"`
	SequenceIndex int       `gorm:"not null" json:"sequence_index"`
	PageNumber    int       `gorm:"not null" json:"page_number"`
	StartOffset   int       `json:"start_offset"`
	EndOffset     int       `json:"end_offset"`
	Text          string    `gorm:"type:text;not null" json:"text"`
	Embedding     string    `gorm:"type:text" json:"-"` // JSON array of float32
	CreatedAt     time.Time `json:"created_at"`
}

// EmbeddingVector returns the parsed embedding slice; nil on parse error.
func (c *Chunk) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(c.Embedding), &v); err != nil {
		return nil
	}
	return v
}

// SetEmbedding stores the embedding as JSON.
func (c *Chunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}
