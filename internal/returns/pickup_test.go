package returns

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"returnbox_back_end/internal/models"
)

func validPickup(date string) PickupDetails {
	return PickupDetails{
		PickupDate:  date,
		TimeSlot:    models.TimeSlotMorning,
		Address:     " Rue de la Loi 16 ",
		City:        "Bruxelles",
		PostalCode:  "1000",
		PackageSize: models.PackageMedium,
	}
}

func TestBuildPickupDateRules(t *testing.T) {
	brussels, err := time.LoadLocation("Europe/Brussels")
	require.NoError(t, err)
	// 23h30 UTC : on est déjà le 15 à Bruxelles
	today := time.Date(2030, 3, 14, 23, 30, 0, 0, time.UTC).In(brussels)

	tests := []struct {
		name    string
		date    string
		wantErr bool
	}{
		{"aujourd'hui", "2030-03-15", false},
		{"demain", "2030-03-16", false},
		{"hier (encore aujourd'hui en UTC)", "2030-03-14", true},
		{"format invalide", "15/03/2030", true},
		{"vide", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := BuildPickup("r1", "m1", validPickup(tt.date), today)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				var e *Error
				require.True(t, errors.As(err, &e))
				assert.Contains(t, e.Fields, "pickup_date")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.date, p.PickupDate)
			assert.Equal(t, models.PickupScheduled, p.Status)
			assert.Equal(t, "Rue de la Loi 16", p.Address)
			assert.Empty(t, p.CourierTrackingNumber)
		})
	}
}

func TestBuildPickupReportsEveryInvalidField(t *testing.T) {
	today := time.Date(2030, 3, 14, 9, 0, 0, 0, time.UTC)
	_, err := BuildPickup("r1", "m1", PickupDetails{
		PickupDate:  "2030-03-20",
		TimeSlot:    "night",
		PackageSize: "huge",
	}, today)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, KindValidation, e.Kind)
	for _, field := range []string{"time_slot", "package_size", "address", "city", "postal_code"} {
		assert.Contains(t, e.Fields, field)
	}
	assert.NotContains(t, e.Fields, "pickup_date")
}
