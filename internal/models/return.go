package models

import "time"

type ReturnStatus string

const (
	ReturnStatusPending   ReturnStatus = "pending"
	ReturnStatusApproved  ReturnStatus = "approved"
	ReturnStatusRejected  ReturnStatus = "rejected"
	ReturnStatusShipped   ReturnStatus = "shipped" // pickup planifié, colis en route
	ReturnStatusCompleted ReturnStatus = "completed"
)

// Valid indique si le statut fait partie du domaine connu
func (s ReturnStatus) Valid() bool {
	switch s {
	case ReturnStatusPending, ReturnStatusApproved, ReturnStatusRejected,
		ReturnStatusShipped, ReturnStatusCompleted:
		return true
	}
	return false
}

// IsTerminal : rejected et completed ne bougent plus
func (s ReturnStatus) IsTerminal() bool {
	return s == ReturnStatusRejected || s == ReturnStatusCompleted
}

// ReturnRequest est l'unique représentation d'une demande de retour dans le back end
type ReturnRequest struct {
	ID            string       `json:"id" gorm:"primaryKey;size:36"`
	MerchantID    string       `json:"merchant_id" gorm:"size:36;not null;index:idx_returns_merchant_status"`
	OrderID       string       `json:"order_id" gorm:"size:128;not null"`
	ProductName   string       `json:"product_name" gorm:"size:255;not null"`
	Reason        string       `json:"reason" gorm:"type:text;not null"`
	CustomerEmail string       `json:"customer_email" gorm:"size:255;not null;index"`
	PhotoURL      string       `json:"photo_url,omitempty" gorm:"size:1024"`
	Status        ReturnStatus `json:"status" gorm:"size:16;not null;index:idx_returns_merchant_status"`
	Notes         string       `json:"notes,omitempty" gorm:"type:text"`
	ItemCondition string       `json:"item_condition,omitempty" gorm:"size:32"`
	RefundAmount  *float64     `json:"refund_amount,omitempty"`
	DecidedAt     *time.Time   `json:"decided_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (ReturnRequest) TableName() string { return "returns" }
