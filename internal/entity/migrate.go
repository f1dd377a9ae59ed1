package entity

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Dataset{}, &Dashboard{}, &Widget{}, &GraphGroup{})
}
