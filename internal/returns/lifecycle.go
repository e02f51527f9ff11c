package returns

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"returnbox_back_end/internal/courier"
	"returnbox_back_end/internal/models"
	"returnbox_back_end/internal/repository"
)

// SubmitDetails : formulaire public de demande de retour
type SubmitDetails struct {
	OrderID       string `json:"order_id" form:"order_id" validate:"required,max=128"`
	ProductName   string `json:"product_name" form:"product_name" validate:"required,max=255"`
	Reason        string `json:"reason" form:"reason" validate:"required,min=10,max=500"`
	CustomerEmail string `json:"customer_email" form:"customer_email" validate:"required,email,max=255"`
}

// CompleteDetails : inspection du colis reçu. Sans prix, aucun montant n'est calculé.
type CompleteDetails struct {
	ItemCondition string   `json:"item_condition"`
	Price         *float64 `json:"price"`
}

const maxNotes = 2000

// SubmitReturn crée une demande "pending" pour la boutique storeSlug.
// La session est facultative : un visiteur anonyme peut déposer une demande.
func (s *Service) SubmitReturn(ctx context.Context, sess *Session, storeSlug string, d SubmitDetails, photo *Upload) (*models.ReturnRequest, error) {
	const op = "submitReturn"

	merchant, err := s.ResolveStore(ctx, storeSlug)
	if err != nil {
		return nil, err
	}

	d.OrderID = strings.TrimSpace(d.OrderID)
	d.ProductName = strings.TrimSpace(d.ProductName)
	d.Reason = strings.TrimSpace(d.Reason)
	d.CustomerEmail = strings.ToLower(strings.TrimSpace(d.CustomerEmail))
	if d.CustomerEmail == "" && sess != nil {
		d.CustomerEmail = strings.ToLower(sess.Email)
	}
	if err := s.checkStruct(op, d); err != nil {
		return nil, err
	}
	if err := s.checkImage(op, "photo", photo); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ret := &models.ReturnRequest{
		ID:            uuid.NewString(),
		MerchantID:    merchant.ID,
		OrderID:       d.OrderID,
		ProductName:   d.ProductName,
		Reason:        d.Reason,
		CustomerEmail: d.CustomerEmail,
		Status:        models.ReturnStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var objectPath string
	if photo != nil {
		objectPath = fmt.Sprintf("return-photos/%s/%s%s", merchant.ID, ret.ID, imageExt(photo))
		url, err := s.upload(ctx, objectPath, photo)
		if err != nil {
			return nil, integrationError(op, "échec de l'envoi de la photo", err)
		}
		ret.PhotoURL = url
	}

	if err := s.store.Returns().Insert(ctx, ret); err != nil {
		s.discard(ctx, objectPath)
		return nil, integrationError(op, "impossible d'enregistrer la demande", err)
	}

	zap.S().Infof("✅ Demande de retour %s créée pour %s (commande %s)", ret.ID, merchant.Slug(), ret.OrderID)
	s.emit(ctx, Change{Kind: ChangeSubmitted, Return: *ret, ActorID: actorID(sess)})
	return ret, nil
}

// Decide approuve ou rejette une demande en attente
func (s *Service) Decide(ctx context.Context, sess *Session, returnID string, decision models.ReturnStatus) (*models.ReturnRequest, error) {
	const op = "decide"

	if decision != models.ReturnStatusApproved && decision != models.ReturnStatusRejected {
		return nil, validationError(op, map[string]string{"status": "décision invalide (approved ou rejected)"})
	}
	ret, err := s.ownedReturn(ctx, op, sess, returnID)
	if err != nil {
		return nil, err
	}
	if ret.Status != models.ReturnStatusPending {
		return nil, preconditionError(op, fmt.Sprintf("la demande est déjà %s", ret.Status))
	}

	now := s.now().UTC()
	err = s.store.Returns().TransitionStatus(ctx, ret.ID, repository.StatusChange{
		From:    models.ReturnStatusPending,
		To:      decision,
		At:      now,
		Decided: true,
	})
	if err != nil {
		return nil, storeError(op, "demande", err)
	}

	ret.Status = decision
	ret.DecidedAt = &now
	ret.UpdatedAt = now

	zap.S().Infof("✅ Retour %s → %s par %s", ret.ID, decision, sess.UserID)
	s.emit(ctx, Change{Kind: ChangeDecided, Return: *ret, ActorID: sess.UserID})
	return ret, nil
}

// AttachNotes remplace les notes internes du marchand. Interdit une fois la demande clôturée.
func (s *Service) AttachNotes(ctx context.Context, sess *Session, returnID, notes string) (*models.ReturnRequest, error) {
	const op = "attachNotes"

	notes = strings.TrimSpace(notes)
	if len(notes) > maxNotes {
		return nil, validationError(op, map[string]string{"notes": fmt.Sprintf("trop long (maximum %d)", maxNotes)})
	}
	ret, err := s.ownedReturn(ctx, op, sess, returnID)
	if err != nil {
		return nil, err
	}
	if ret.Status.IsTerminal() {
		return nil, preconditionError(op, fmt.Sprintf("la demande est %s, les notes sont figées", ret.Status))
	}

	now := s.now().UTC()
	open := []models.ReturnStatus{models.ReturnStatusPending, models.ReturnStatusApproved, models.ReturnStatusShipped}
	if err := s.store.Returns().UpdateNotes(ctx, ret.ID, notes, open, now); err != nil {
		return nil, storeError(op, "demande", err)
	}

	ret.Notes = notes
	ret.UpdatedAt = now
	s.emit(ctx, Change{Kind: ChangeNotes, Return: *ret, ActorID: sess.UserID})
	return ret, nil
}

// SchedulePickup demande un numéro de suivi au transporteur, enregistre l'enlèvement
// puis passe la demande de approved à shipped. Si la transition échoue, l'enlèvement
// est supprimé pour ne jamais laisser un pickup sur une demande non expédiée.
func (s *Service) SchedulePickup(ctx context.Context, sess *Session, returnID string, d PickupDetails) (*models.Pickup, error) {
	const op = "schedulePickup"

	ret, err := s.ownedReturn(ctx, op, sess, returnID)
	if err != nil {
		return nil, err
	}
	if ret.Status != models.ReturnStatusApproved {
		return nil, preconditionError(op, "seules les demandes approuvées peuvent être enlevées")
	}

	pickup, err := BuildPickup(ret.ID, sess.UserID, d, s.Today())
	if err != nil {
		return nil, err
	}

	tracking, err := s.courier.RequestTrackingNumber(ctx, courier.Shipment{
		ReturnID:    ret.ID,
		Date:        pickup.PickupDate,
		TimeSlot:    pickup.TimeSlot,
		Address:     pickup.Address,
		City:        pickup.City,
		PostalCode:  pickup.PostalCode,
		PackageSize: pickup.PackageSize,
	})
	if err != nil {
		return nil, integrationError(op, "le transporteur n'a pas répondu", err)
	}
	if tracking == "" {
		return nil, integrationError(op, "le transporteur n'a pas fourni de numéro de suivi", nil)
	}

	now := s.now().UTC()
	pickup.ID = uuid.NewString()
	pickup.CourierTrackingNumber = tracking
	pickup.CreatedAt = now
	pickup.UpdatedAt = now

	if err := s.store.Pickups().Insert(ctx, pickup); err != nil {
		return nil, integrationError(op, "impossible d'enregistrer l'enlèvement", err)
	}

	err = s.store.Returns().TransitionStatus(ctx, ret.ID, repository.StatusChange{
		From: models.ReturnStatusApproved,
		To:   models.ReturnStatusShipped,
		At:   now,
	})
	if err != nil {
		if delErr := s.store.Pickups().Delete(context.WithoutCancel(ctx), pickup.ID); delErr != nil {
			zap.S().Errorf("❌ Enlèvement %s orphelin pour le retour %s: %v", pickup.ID, ret.ID, delErr)
			return nil, integrationError(op,
				fmt.Sprintf("état incohérent: enlèvement %s enregistré mais statut non mis à jour", pickup.ID),
				errors.Join(err, delErr))
		}
		zap.S().Warnf("⚠️ Enlèvement %s annulé, transition impossible: %v", pickup.ID, err)
		return nil, storeError(op, "demande", err)
	}

	ret.Status = models.ReturnStatusShipped
	ret.UpdatedAt = now

	zap.S().Infof("🚚 Enlèvement %s planifié le %s (%s) pour le retour %s", pickup.ID, pickup.PickupDate, pickup.TimeSlot, ret.ID)
	s.emit(ctx, Change{Kind: ChangePickupScheduled, Return: *ret, Pickup: pickup, ActorID: sess.UserID})
	return pickup, nil
}

// Complete clôture une demande expédiée après réception du colis
func (s *Service) Complete(ctx context.Context, sess *Session, returnID string, d CompleteDetails) (*models.ReturnRequest, error) {
	const op = "complete"

	d.ItemCondition = strings.TrimSpace(d.ItemCondition)
	fields := map[string]string{}
	if d.ItemCondition != "" && !s.conditions.Has(d.ItemCondition) {
		fields["item_condition"] = "état inconnu"
	}
	if d.Price != nil && (*d.Price < 0 || math.IsNaN(*d.Price) || math.IsInf(*d.Price, 0)) {
		fields["price"] = "prix invalide"
	}
	if len(fields) > 0 {
		return nil, validationError(op, fields)
	}

	ret, err := s.ownedReturn(ctx, op, sess, returnID)
	if err != nil {
		return nil, err
	}
	if ret.Status != models.ReturnStatusShipped {
		return nil, preconditionError(op, "seules les demandes expédiées peuvent être clôturées")
	}

	var refund *float64
	if d.ItemCondition != "" && d.Price != nil {
		policies, err := s.PoliciesFor(ctx, ret.MerchantID)
		if err != nil {
			return nil, err
		}
		amount := EstimateRefund(*d.Price, d.ItemCondition, policies)
		refund = &amount
	}

	now := s.now().UTC()
	err = s.store.Returns().TransitionStatus(ctx, ret.ID, repository.StatusChange{
		From:          models.ReturnStatusShipped,
		To:            models.ReturnStatusCompleted,
		At:            now,
		ItemCondition: d.ItemCondition,
		RefundAmount:  refund,
	})
	if err != nil {
		return nil, storeError(op, "demande", err)
	}

	ret.Status = models.ReturnStatusCompleted
	ret.UpdatedAt = now
	if d.ItemCondition != "" {
		ret.ItemCondition = d.ItemCondition
	}
	if refund != nil {
		ret.RefundAmount = refund
	}

	zap.S().Infof("✅ Retour %s clôturé", ret.ID)
	s.emit(ctx, Change{Kind: ChangeCompleted, Return: *ret, ActorID: sess.UserID})
	return ret, nil
}

// Get : le marchand propriétaire ou le client dont l'email correspond.
// Pour tout autre utilisateur la demande n'existe pas.
func (s *Service) Get(ctx context.Context, sess *Session, returnID string) (*models.ReturnRequest, error) {
	const op = "getReturn"
	if sess == nil {
		return nil, forbiddenError(op, "connexion requise")
	}
	ret, err := s.store.Returns().Get(ctx, returnID)
	if err != nil {
		return nil, storeError(op, "demande", err)
	}
	if ret.MerchantID == sess.UserID || (sess.Email != "" && strings.EqualFold(ret.CustomerEmail, sess.Email)) {
		return ret, nil
	}
	return nil, notFoundError(op, "demande introuvable")
}

func (s *Service) ListForMerchant(ctx context.Context, sess *Session, status models.ReturnStatus) ([]models.ReturnRequest, error) {
	const op = "listReturns"
	if !sess.IsMerchant() {
		return nil, forbiddenError(op, "réservé aux marchands")
	}
	if status != "" && !status.Valid() {
		return nil, validationError(op, map[string]string{"status": "statut inconnu"})
	}
	list, err := s.store.Returns().ListByMerchant(ctx, sess.UserID, status)
	if err != nil {
		return nil, integrationError(op, "erreur base de données", err)
	}
	return list, nil
}

// ListForCustomer : demandes déposées avec l'email de la session
func (s *Service) ListForCustomer(ctx context.Context, sess *Session) ([]models.ReturnRequest, error) {
	const op = "listCustomerReturns"
	if sess == nil || sess.Email == "" {
		return nil, forbiddenError(op, "connexion requise")
	}
	list, err := s.store.Returns().ListByCustomerEmail(ctx, strings.ToLower(sess.Email))
	if err != nil {
		return nil, integrationError(op, "erreur base de données", err)
	}
	return list, nil
}

func (s *Service) PickupsForReturn(ctx context.Context, sess *Session, returnID string) ([]models.Pickup, error) {
	const op = "listPickups"
	ret, err := s.ownedReturn(ctx, op, sess, returnID)
	if err != nil {
		return nil, err
	}
	list, err := s.store.Pickups().ListByReturn(ctx, ret.ID)
	if err != nil {
		return nil, integrationError(op, "erreur base de données", err)
	}
	return list, nil
}

// GetPickup : uniquement le marchand qui l'a planifié
func (s *Service) GetPickup(ctx context.Context, sess *Session, pickupID string) (*models.Pickup, error) {
	const op = "getPickup"
	if !sess.IsMerchant() {
		return nil, forbiddenError(op, "réservé aux marchands")
	}
	p, err := s.store.Pickups().Get(ctx, pickupID)
	if err != nil {
		return nil, storeError(op, "enlèvement", err)
	}
	if p.UserID != sess.UserID {
		return nil, notFoundError(op, "enlèvement introuvable")
	}
	return p, nil
}

// ownedReturn charge une demande appartenant au marchand de la session
func (s *Service) ownedReturn(ctx context.Context, op string, sess *Session, returnID string) (*models.ReturnRequest, error) {
	if !sess.IsMerchant() {
		return nil, forbiddenError(op, "réservé aux marchands")
	}
	ret, err := s.store.Returns().Get(ctx, returnID)
	if err != nil {
		return nil, storeError(op, "demande", err)
	}
	if ret.MerchantID != sess.UserID {
		return nil, notFoundError(op, "demande introuvable")
	}
	return ret, nil
}

func (s *Service) checkImage(op, field string, u *Upload) error {
	if u == nil {
		return nil
	}
	switch {
	case u.Size <= 0:
		return validationError(op, map[string]string{field: "fichier vide"})
	case u.Size > s.maxPhotoSize:
		return validationError(op, map[string]string{field: fmt.Sprintf("fichier trop volumineux (max %d Mo)", s.maxPhotoSize>>20)})
	case !strings.HasPrefix(u.ContentType, "image/"):
		return validationError(op, map[string]string{field: "seules les images sont acceptées"})
	}
	return nil
}

func (s *Service) upload(ctx context.Context, objectPath string, u *Upload) (string, error) {
	if s.blobs == nil {
		return "", errors.New("stockage de fichiers non configuré")
	}
	return s.blobs.Upload(ctx, objectPath, u.Body, u.Size, u.ContentType)
}

// discard supprime un fichier envoyé dont l'enregistrement a échoué
func (s *Service) discard(ctx context.Context, objectPath string) {
	if objectPath == "" || s.blobs == nil {
		return
	}
	if err := s.blobs.Remove(context.WithoutCancel(ctx), objectPath); err != nil {
		zap.S().Errorf("❌ Fichier orphelin %s: %v", objectPath, err)
	}
}

func imageExt(u *Upload) string {
	if ext := strings.ToLower(path.Ext(u.Filename)); ext != "" && len(ext) <= 5 {
		return ext
	}
	switch u.ContentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".jpg"
}

func actorID(sess *Session) string {
	if sess == nil {
		return ""
	}
	return sess.UserID
}
