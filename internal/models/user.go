package models

import "time"

// User contient uniquement les identifiants de connexion, le reste vit dans Profile
type User struct {
	ID         string    `json:"user_id" gorm:"primaryKey;size:36"`
	Email      string    `json:"email" gorm:"size:255;not null;uniqueIndex"`
	Password   string    `json:"-" gorm:"size:255"`
	Provider   string    `json:"provider,omitempty" gorm:"size:32;not null"`
	ProviderID string    `json:"-" gorm:"size:255"`
	CreatedAt  time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }
