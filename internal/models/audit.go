package models

import "time"

// AuditLog représente un log d'audit pour tracer les actions
type AuditLog struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	UserID     string    `json:"user_id" gorm:"size:36;index"`
	UserEmail  string    `json:"user_email" gorm:"size:255"`
	Action     string    `json:"action" gorm:"size:64;not null"`
	Resource   string    `json:"resource" gorm:"size:64;not null"`
	ResourceID string    `json:"resource_id,omitempty" gorm:"size:64;index"`
	IPAddress  string    `json:"ip_address" gorm:"size:64"`
	UserAgent  string    `json:"user_agent" gorm:"size:512"`
	Success    bool      `json:"success"`
	ErrorMsg   string    `json:"error_msg,omitempty" gorm:"size:512"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
}

func (AuditLog) TableName() string { return "audit_logs" }
