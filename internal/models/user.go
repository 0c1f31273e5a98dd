package models

import (
	"time"
)

type User struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Name       string    `gorm:"column:name;size:255;not null" json:"name"`
	Email      string    `gorm:"column:email;size:255;index" json:"email"`
	Gender     string    `gorm:"column:gender;size:10" json:"gender"`
	NtrpRating float64   `gorm:"column:ntrp_rating;default:0" json:"ntrp_rating"`
	Role       string    `gorm:"column:role;size:20;default:user" json:"role"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// AppSetting is a key/value override read at runtime.
type AppSetting struct {
	Key       string    `gorm:"primaryKey;column:key;size:100" json:"key"`
	Value     string    `gorm:"column:value;type:text" json:"value"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (AppSetting) TableName() string {
	return "app_settings"
}
