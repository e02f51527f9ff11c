package returns

import (
	"strings"
	"time"

	"returnbox_back_end/internal/models"
)

type PickupDetails struct {
	PickupDate  string             `json:"pickup_date"`
	TimeSlot    models.TimeSlot    `json:"time_slot"`
	Address     string             `json:"address"`
	City        string             `json:"city"`
	PostalCode  string             `json:"postal_code"`
	PackageSize models.PackageSize `json:"package_size"`
	Notes       string             `json:"notes"`
}

const maxPickupNotes = 1000

// BuildPickup valide la demande et prépare l'enlèvement, sans numéro de suivi ni persistance.
// today doit déjà être exprimé dans le fuseau du marchand : seule la date calendaire compte.
func BuildPickup(returnID, userID string, d PickupDetails, today time.Time) (*models.Pickup, error) {
	fields := map[string]string{}

	date := strings.TrimSpace(d.PickupDate)
	if date == "" {
		fields["pickup_date"] = "date requise"
	} else if parsed, err := time.ParseInLocation(models.PickupDateLayout, date, today.Location()); err != nil {
		fields["pickup_date"] = "format attendu AAAA-MM-JJ"
	} else if parsed.Format(models.PickupDateLayout) < today.Format(models.PickupDateLayout) {
		fields["pickup_date"] = "la date ne peut pas être dans le passé"
	}

	if !d.TimeSlot.Valid() {
		fields["time_slot"] = "créneau invalide (morning, afternoon ou evening)"
	}
	if !d.PackageSize.Valid() {
		fields["package_size"] = "taille de colis invalide (small, medium ou large)"
	}

	address := strings.TrimSpace(d.Address)
	city := strings.TrimSpace(d.City)
	postal := strings.TrimSpace(d.PostalCode)
	if address == "" {
		fields["address"] = "adresse requise"
	}
	if city == "" {
		fields["city"] = "ville requise"
	}
	if postal == "" {
		fields["postal_code"] = "code postal requis"
	}
	if len(d.Notes) > maxPickupNotes {
		fields["notes"] = "notes trop longues"
	}

	if len(fields) > 0 {
		return nil, validationError("buildPickup", fields)
	}

	return &models.Pickup{
		UserID:      userID,
		ReturnID:    returnID,
		PickupDate:  date,
		TimeSlot:    d.TimeSlot,
		Address:     address,
		City:        city,
		PostalCode:  postal,
		PackageSize: d.PackageSize,
		Status:      models.PickupScheduled,
		Notes:       strings.TrimSpace(d.Notes),
	}, nil
}
