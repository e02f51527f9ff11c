package models

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleMerchant Role = "merchant"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleMerchant
}

// Profile porte le rôle de l'utilisateur : on ne fait jamais confiance au rôle envoyé par le client
type Profile struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	Email      string    `json:"email" gorm:"size:255;not null"`
	Role       Role      `json:"role" gorm:"size:16;not null;index"`
	FirstName  string    `json:"first_name,omitempty" gorm:"size:128"`
	LastName   string    `json:"last_name,omitempty" gorm:"size:128"`
	Phone      string    `json:"phone,omitempty" gorm:"size:64"`
	Address    string    `json:"address,omitempty" gorm:"size:255"`
	City       string    `json:"city,omitempty" gorm:"size:128"`
	Country    string    `json:"country,omitempty" gorm:"size:128"`
	PostalCode string    `json:"postal_code,omitempty" gorm:"size:32"`
	StoreName  string    `json:"store_name,omitempty" gorm:"size:255"`
	StoreLogo  string    `json:"store_logo,omitempty" gorm:"size:1024"`
	StoreSlug  *string   `json:"store_slug,omitempty" gorm:"size:64;uniqueIndex"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

func (p Profile) Slug() string {
	if p.StoreSlug == nil {
		return ""
	}
	return *p.StoreSlug
}

// Store est la vue publique d'un marchand (page de retour)
type Store struct {
	MerchantID string `json:"merchant_id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	Logo       string `json:"logo,omitempty"`
}

func (p Profile) Store() Store {
	return Store{MerchantID: p.ID, Name: p.StoreName, Slug: p.Slug(), Logo: p.StoreLogo}
}
