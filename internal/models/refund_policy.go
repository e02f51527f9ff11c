package models

import "time"

// RefundPolicy associe un état d'article à un pourcentage de remboursement pour un marchand
type RefundPolicy struct {
	ID               string    `json:"id" gorm:"primaryKey;size:36"`
	MerchantID       string    `json:"merchant_id" gorm:"size:36;not null;uniqueIndex:idx_policy_merchant_condition"`
	ItemCondition    string    `json:"item_condition" gorm:"size:32;not null;uniqueIndex:idx_policy_merchant_condition"`
	RefundPercentage float64   `json:"refund_percentage" gorm:"not null"`
	Description      string    `json:"description,omitempty" gorm:"size:512"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (RefundPolicy) TableName() string { return "refund_policies" }

// RefundEstimate est la réponse du calculateur.
// Covered=false avec Amount=0 signifie "état non couvert", ce qui n'est pas "aucune sélection".
type RefundEstimate struct {
	Condition  string  `json:"condition"`
	Price      float64 `json:"price"`
	Percentage float64 `json:"percentage"`
	Amount     float64 `json:"amount"`
	Covered    bool    `json:"covered"`
}
