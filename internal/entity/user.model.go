package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Email          string    `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Name           string    `json:"name" gorm:"type:varchar(100)"`
	ProfilePicture string    `json:"profilePicture" gorm:"type:varchar(255)"`
	Provider       string    `json:"provider" gorm:"type:varchar(50)"`
	ProviderID     string    `json:"-" gorm:"type:varchar(255);index"`
	CreatedAt      time.Time `json:"createdAt" gorm:"autoCreateTime"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
