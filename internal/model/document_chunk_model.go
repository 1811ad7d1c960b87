package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DocumentChunk struct {
	Id             uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentID     string            `gorm:"type:text;not null;index"`
	Title          string            `gorm:"type:text;not null;index"`
	ChapterType    string            `gorm:"type:text;default:'body'"` // "body" | "toc"
	Content        string            `gorm:"type:text"`
	PageStart      int               `gorm:"default:0"`
	PageEnd        int               `gorm:"default:0"`
	PageData       datatypes.JSONMap `gorm:"type:jsonb"` // page identifier -> raw per-page text
	EmbeddingValue pgvector.Vector   `gorm:"type:vector(768)"` // nomic-embed-text uses 768 dimensions
	CreatedAt      time.Time         `gorm:"autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt    `gorm:"index"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}
