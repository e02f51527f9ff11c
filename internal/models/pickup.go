package models

import "time"

type TimeSlot string

const (
	TimeSlotMorning   TimeSlot = "morning"   // 9:00 - 12:00
	TimeSlotAfternoon TimeSlot = "afternoon" // 12:00 - 17:00
	TimeSlotEvening   TimeSlot = "evening"   // 17:00 - 20:00
)

func (t TimeSlot) Valid() bool {
	return t == TimeSlotMorning || t == TimeSlotAfternoon || t == TimeSlotEvening
}

type PackageSize string

const (
	PackageSmall  PackageSize = "small"  // jusqu'à 2kg
	PackageMedium PackageSize = "medium" // 2-5kg
	PackageLarge  PackageSize = "large"  // 5-10kg
)

func (p PackageSize) Valid() bool {
	return p == PackageSmall || p == PackageMedium || p == PackageLarge
}

type PickupStatus string

const (
	PickupScheduled PickupStatus = "scheduled"
	PickupPickedUp  PickupStatus = "picked_up"
	PickupCancelled PickupStatus = "cancelled"
)

// PickupDateLayout : la date d'enlèvement est une date calendaire, sans heure
const PickupDateLayout = "2006-01-02"

type Pickup struct {
	ID                    string       `json:"id" gorm:"primaryKey;size:36"`
	UserID                string       `json:"user_id" gorm:"size:36;not null;index"`
	ReturnID              string       `json:"return_id" gorm:"size:36;not null;index"`
	PickupDate            string       `json:"pickup_date" gorm:"size:10;not null"`
	TimeSlot              TimeSlot     `json:"time_slot" gorm:"size:16;not null"`
	Address               string       `json:"address" gorm:"size:255;not null"`
	City                  string       `json:"city" gorm:"size:128;not null"`
	PostalCode            string       `json:"postal_code" gorm:"size:32;not null"`
	PackageSize           PackageSize  `json:"package_size" gorm:"size:16;not null"`
	Status                PickupStatus `json:"status" gorm:"size:16;not null"`
	CourierTrackingNumber string       `json:"courier_tracking_number" gorm:"size:64;not null"`
	Notes                 string       `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

func (Pickup) TableName() string { return "pickups" }
