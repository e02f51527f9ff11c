package labels

import (
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"

	"returnbox_back_end/internal/models"
)

const DefaultSize = 256

// Payload est le contenu scanné par le livreur
func Payload(p *models.Pickup) string {
	return fmt.Sprintf("RETURNBOX\n%s\n%s\n%s %s\n%s", p.CourierTrackingNumber, p.ReturnID, p.PickupDate, p.TimeSlot, p.PostalCode)
}

// PickupQR génère l'étiquette PNG d'un enlèvement
func PickupQR(p *models.Pickup, size int) ([]byte, error) {
	if p == nil || p.CourierTrackingNumber == "" {
		return nil, fmt.Errorf("enlèvement sans numéro de suivi")
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(Payload(p), qrcode.Medium, size)
}

// PickupQRDataURL : même image, prête à mettre dans <img src="...">
func PickupQRDataURL(p *models.Pickup) (string, error) {
	png, err := PickupQR(p, DefaultSize)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
