package notify

import (
	"bytes"
	"context"
	"mime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"returnbox_back_end/internal/config"
	"returnbox_back_end/internal/models"
	"returnbox_back_end/internal/returns"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*mail.Msg
}

func (f *fakeSender) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, messages...)
	return nil
}

func body(t *testing.T, msg *mail.Msg) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

// decodedSubject décode l'en-tête, go-mail l'encode en quoted-printable
func decodedSubject(t *testing.T, msg *mail.Msg) string {
	t.Helper()
	raw := strings.Join(msg.GetGenHeader(mail.HeaderSubject), " ")
	decoded, err := new(mime.WordDecoder).DecodeHeader(raw)
	require.NoError(t, err)
	return decoded
}

func TestMailerSendsOnCustomerFacingChanges(t *testing.T) {
	fake := &fakeSender{}
	m := &Mailer{from: "noreply@returnbox.app", client: fake}
	ret := models.ReturnRequest{ID: "r1", OrderID: "CMD-9", ProductName: "Veste", CustomerEmail: "client@example.com",
		Status: models.ReturnStatusApproved}

	m.ReturnChanged(context.Background(), returns.Change{Kind: returns.ChangeDecided, Return: ret})
	m.ReturnChanged(context.Background(), returns.Change{Kind: returns.ChangeNotes, Return: ret})
	m.Wait()

	require.Len(t, fake.sent, 1)
	assert.Equal(t, "✅ Retour accepté - commande CMD-9", decodedSubject(t, fake.sent[0]))
}

func TestPickupMailCarriesLabel(t *testing.T) {
	m := &Mailer{from: "noreply@returnbox.app", client: &fakeSender{}}
	msg, err := m.compose(returns.Change{
		Kind:   returns.ChangePickupScheduled,
		Return: models.ReturnRequest{ID: "r1", OrderID: "CMD-9", CustomerEmail: "client@example.com", Status: models.ReturnStatusShipped},
		Pickup: &models.Pickup{ReturnID: "r1", PickupDate: "2030-03-15", TimeSlot: models.TimeSlotEvening,
			Address: "Rue Haute 1", City: "Bruxelles", PostalCode: "1000", CourierTrackingNumber: "TRABCDEF123"},
	})
	require.NoError(t, err)
	require.NotNil(t, msg)

	raw := body(t, msg)
	assert.Contains(t, raw, "etiquette-TRABCDEF123.png")
	assert.Len(t, msg.GetAttachments(), 1)
}

func TestCompletedMailShowsRefund(t *testing.T) {
	amount := 75.0
	m := &Mailer{from: "noreply@returnbox.app", client: &fakeSender{}}
	msg, err := m.compose(returns.Change{
		Kind:   returns.ChangeCompleted,
		Return: models.ReturnRequest{ID: "r1", OrderID: "CMD-9", CustomerEmail: "client@example.com", RefundAmount: &amount},
	})
	require.NoError(t, err)
	assert.Contains(t, body(t, msg), "75.00")
}

func TestMailerDisabledWithoutSMTP(t *testing.T) {
	m, err := NewMailer(config.SMTPSettings{})
	require.NoError(t, err)
	assert.Nil(t, m)
	m.ReturnChanged(context.Background(), returns.Change{Kind: returns.ChangeSubmitted})
	m.Wait()
}
