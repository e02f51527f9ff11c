package courier

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"returnbox_back_end/internal/models"
)

// Shipment décrit le colis à enlever chez le client
type Shipment struct {
	ReturnID    string
	Date        string
	TimeSlot    models.TimeSlot
	Address     string
	City        string
	PostalCode  string
	PackageSize models.PackageSize
}

// Courier obtient un numéro de suivi auprès du transporteur. L'appel peut être lent.
type Courier interface {
	RequestTrackingNumber(ctx context.Context, s Shipment) (string, error)
}

// MockCourier simule le transporteur : délai fixe puis numéro aléatoire "TR" + 9 caractères
type MockCourier struct {
	Delay time.Duration
}

func NewMock(delay time.Duration) *MockCourier {
	return &MockCourier{Delay: delay}
}

func (m *MockCourier) RequestTrackingNumber(ctx context.Context, s Shipment) (string, error) {
	if s.Address == "" || s.Date == "" {
		return "", errors.New("courier: adresse et date requises")
	}

	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	tracking := "TR" + randomBase36(9)
	zap.S().Infof("🚚 Enlèvement simulé pour le retour %s (%s, %s) → %s", s.ReturnID, s.Date, s.TimeSlot, tracking)
	return tracking, nil
}

// randomBase36 : n caractères [0-9A-Z] tirés des bits aléatoires d'un UUID v4
func randomBase36(n int) string {
	id := uuid.New()
	digits := strings.ToUpper(new(big.Int).SetBytes(id[:]).Text(36))
	if len(digits) < n {
		digits = strings.Repeat("0", n-len(digits)) + digits
	}
	return digits[len(digits)-n:]
}
