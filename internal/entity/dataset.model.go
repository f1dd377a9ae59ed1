package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DatasetFileType is the only format dataset content is persisted in,
// whatever format it was uploaded as.
const DatasetFileType = "application/json"

// Dataset is the metadata record of an uploaded table. The rows live in a
// side file keyed by owner and dataset id, never in this row.
type Dataset struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID  `json:"user" gorm:"type:uuid;not null;index"`
	Title             string     `json:"title" gorm:"type:varchar(255);not null"`
	ShortDescription  string     `json:"shortDescription" gorm:"type:text"`
	IsPublic          bool       `json:"isPublic" gorm:"not null;default:false;index"`
	FileType          string     `json:"fileType" gorm:"type:varchar(100)"`
	OriginalDatasetID *uuid.UUID `json:"originalDataset,omitempty" gorm:"type:uuid"`
	LastUpdated       time.Time  `json:"lastUpdated" gorm:"autoUpdateTime"`
	CreatedAt         time.Time  `json:"createdAt" gorm:"autoCreateTime"`
}

func (d *Dataset) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.FileType == "" {
		d.FileType = DatasetFileType
	}
	return nil
}
