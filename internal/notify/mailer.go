package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"returnbox_back_end/internal/config"
	"returnbox_back_end/internal/labels"
	"returnbox_back_end/internal/models"
	"returnbox_back_end/internal/returns"
)

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer prévient le client à chaque étape de sa demande. L'envoi se fait en arrière-plan.
type Mailer struct {
	from   string
	client sender
	wg     sync.WaitGroup
}

// NewMailer retourne nil si SMTP n'est pas configuré
func NewMailer(cfg config.SMTPSettings) (*Mailer, error) {
	if !cfg.Enabled() {
		zap.S().Warn("⚠️ SMTP_HOST absent, notifications e-mail désactivées")
		return nil, nil
	}
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("client SMTP: %w", err)
	}
	return &Mailer{from: cfg.From, client: client}, nil
}

func (m *Mailer) ReturnChanged(ctx context.Context, ch returns.Change) {
	if m == nil || m.client == nil {
		return
	}
	msg, err := m.compose(ch)
	if err != nil {
		zap.S().Errorf("❌ Préparation de l'e-mail (%s, %s): %v", ch.Kind, ch.Return.ID, err)
		return
	}
	if msg == nil {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()

		if err := m.client.DialAndSendWithContext(sendCtx, msg); err != nil {
			zap.S().Errorf("❌ Erreur envoi e-mail %s à %s: %v", ch.Kind, ch.Return.CustomerEmail, err)
			return
		}
		zap.S().Infof("📧 E-mail %s envoyé à %s", ch.Kind, ch.Return.CustomerEmail)
	}()
}

// Wait attend les envois en cours (arrêt du serveur)
func (m *Mailer) Wait() {
	if m != nil {
		m.wg.Wait()
	}
}

// compose retourne nil pour les changements qui ne concernent pas le client
func (m *Mailer) compose(ch returns.Change) (*mail.Msg, error) {
	subject, ok := subjects[ch.Kind]
	if !ok || ch.Return.CustomerEmail == "" {
		return nil, nil
	}

	data := emailData{Return: ch.Return, Pickup: ch.Pickup}
	if ch.Return.RefundAmount != nil {
		data.Refund = fmt.Sprintf("%.2f€", *ch.Return.RefundAmount)
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, string(ch.Kind), data); err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, err
	}
	if err := msg.To(ch.Return.CustomerEmail); err != nil {
		return nil, err
	}
	msg.Subject(subject(ch.Return))
	msg.SetBodyString(mail.TypeTextHTML, body.String())

	if ch.Pickup != nil {
		png, err := labels.PickupQR(ch.Pickup, labels.DefaultSize)
		if err != nil {
			return nil, err
		}
		msg.AttachReader("etiquette-"+ch.Pickup.CourierTrackingNumber+".png", bytes.NewReader(png))
	}
	return msg, nil
}

type emailData struct {
	Return models.ReturnRequest
	Pickup *models.Pickup
	Refund string
}

var subjects = map[returns.ChangeKind]func(models.ReturnRequest) string{
	returns.ChangeSubmitted: func(r models.ReturnRequest) string {
		return "📋 Demande de retour reçue - commande " + r.OrderID
	},
	returns.ChangeDecided: func(r models.ReturnRequest) string {
		if r.Status == models.ReturnStatusApproved {
			return "✅ Retour accepté - commande " + r.OrderID
		}
		return "❌ Retour refusé - commande " + r.OrderID
	},
	returns.ChangePickupScheduled: func(r models.ReturnRequest) string {
		return "📦 Enlèvement planifié - commande " + r.OrderID
	},
	returns.ChangeCompleted: func(r models.ReturnRequest) string {
		return "💰 Retour clôturé - commande " + r.OrderID
	},
}

var slotLabels = map[models.TimeSlot]string{
	models.TimeSlotMorning:   "9h00 - 12h00",
	models.TimeSlotAfternoon: "12h00 - 17h00",
	models.TimeSlotEvening:   "17h00 - 20h00",
}

var templates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"slot": func(s models.TimeSlot) string { return slotLabels[s] },
}).Parse(`
{{define "header"}}<!DOCTYPE html>
<html lang="fr">
<head><meta charset="UTF-8"><title>Votre retour</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
<p>Bonjour,</p>{{end}}

{{define "footer"}}
<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
	<tr><td style="padding: 8px 0; color: #666;">Commande</td><td style="text-align: right;">#{{.Return.OrderID}}</td></tr>
	<tr><td style="padding: 8px 0; color: #666;">Produit</td><td style="text-align: right;">{{.Return.ProductName}}</td></tr>
</table>
<p style="margin-top: 30px; color: #555;">Cordialement,<br><strong>L'équipe Returnbox</strong></p>
</div>
</body>
</html>{{end}}

{{define "submitted"}}{{template "header" .}}
<p>Nous avons bien reçu votre demande de retour. Le marchand va l'examiner rapidement.</p>
{{template "footer" .}}{{end}}

{{define "decided"}}{{template "header" .}}
{{if eq .Return.Status "approved"}}<p>Bonne nouvelle : votre demande de retour a été <strong>acceptée</strong>. Vous recevrez bientôt les informations d'enlèvement.</p>
{{else}}<p>Votre demande de retour a malheureusement été <strong>refusée</strong> par le marchand.</p>{{end}}
{{template "footer" .}}{{end}}

{{define "pickup_scheduled"}}{{template "header" .}}
<p>Un transporteur passera chercher votre colis le <strong>{{.Pickup.PickupDate}}</strong> ({{slot .Pickup.TimeSlot}}).</p>
<p>Adresse : {{.Pickup.Address}}, {{.Pickup.PostalCode}} {{.Pickup.City}}</p>
<p>Numéro de suivi : <strong>{{.Pickup.CourierTrackingNumber}}</strong>. L'étiquette est jointe à cet e-mail.</p>
{{template "footer" .}}{{end}}

{{define "completed"}}{{template "header" .}}
<p>Votre colis a été reçu et votre retour est clôturé.</p>
{{if .Refund}}<p>Montant remboursé : <strong>{{.Refund}}</strong></p>{{end}}
{{template "footer" .}}{{end}}
`))
