package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const DefaultScreenshot = "data/DashboardBackground.png"

type Dashboard struct {
	ID                  uuid.UUID                   `json:"id" gorm:"type:uuid;primaryKey"`
	UserID              uuid.UUID                   `json:"user" gorm:"type:uuid;not null;index"`
	Title               string                      `json:"title" gorm:"type:varchar(255);not null"`
	ShortDescription    string                      `json:"shortDescription" gorm:"type:text"`
	DatasetID           uuid.UUID                   `json:"dataset" gorm:"type:uuid;not null;index"`
	IsPublic            bool                        `json:"isPublic" gorm:"not null;default:false;index"`
	Screenshot          string                      `json:"screenshot" gorm:"type:varchar(512)"`
	Tags                datatypes.JSONSlice[string] `json:"tags"`
	OriginalDashboardID *uuid.UUID                  `json:"originalDashboard,omitempty" gorm:"type:uuid"`
	LastUpdated         time.Time                   `json:"lastUpdated" gorm:"autoUpdateTime"`

	Owner   *User    `json:"owner,omitempty" gorm:"foreignKey:UserID"`
	Dataset *Dataset `json:"datasetInfo,omitempty" gorm:"foreignKey:DatasetID"`
	Widgets []Widget `json:"widgets,omitempty" gorm:"foreignKey:DashboardID"`
}

func (d *Dashboard) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Screenshot == "" {
		d.Screenshot = DefaultScreenshot
	}
	if d.Tags == nil {
		d.Tags = datatypes.JSONSlice[string]{}
	}
	return nil
}
