package model

import "time"

// Ingestion states. A document moves uploaded -> extracting -> chunking ->
// embedding -> indexed, or lands in failed with a reason. indexed and
// failed are terminal.
const (
	StatusUploaded   = "uploaded"
	StatusExtracting = "extracting"
	StatusChunking   = "chunking"
	StatusEmbedding  = "embedding"
	StatusIndexed    = "indexed"
	StatusFailed     = "failed"
)

type Document struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	Filename      string     `gorm:"size:256;not null;index" json:"filename"`
	PageCount     int        `json:"page_count"`
	Status        string     `gorm:"size:16;not null;index" json:"status"`
	FailureReason string     `gorm:"size:512" json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	IngestedAt    *time.Time `json:"ingested_at,omitempty"`
}

// Terminal reports whether no further ingestion work will happen for the
// document.
func (d *Document) Terminal() bool {
	return d.Status == StatusIndexed || d.Status == StatusFailed
}
