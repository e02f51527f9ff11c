package returns

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"returnbox_back_end/internal/models"
	"returnbox_back_end/internal/repository"
)

type StoreSetup struct {
	StoreName string `json:"store_name" form:"store_name" validate:"required,min=3,max=255"`
	StoreSlug string `json:"store_slug" form:"store_slug" validate:"required,min=3,max=64,slug"`
}

type ProfileUpdate struct {
	FirstName  string `json:"first_name" validate:"max=128"`
	LastName   string `json:"last_name" validate:"max=128"`
	Phone      string `json:"phone" validate:"max=64"`
	Address    string `json:"address" validate:"max=255"`
	City       string `json:"city" validate:"max=128"`
	Country    string `json:"country" validate:"max=128"`
	PostalCode string `json:"postal_code" validate:"max=32"`
}

// ResolveStore retrouve le marchand derrière un slug public
func (s *Service) ResolveStore(ctx context.Context, slug string) (*models.Profile, error) {
	const op = "resolveStore"
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, notFoundError(op, "boutique introuvable")
	}
	p, err := s.store.Profiles().GetBySlug(ctx, slug)
	if err != nil {
		return nil, storeError(op, "boutique", err)
	}
	if p.Role != models.RoleMerchant {
		return nil, notFoundError(op, "boutique introuvable")
	}
	return p, nil
}

func (s *Service) ListStores(ctx context.Context) ([]models.Store, error) {
	merchants, err := s.store.Profiles().ListMerchants(ctx)
	if err != nil {
		return nil, integrationError("listStores", "erreur base de données", err)
	}
	stores := make([]models.Store, 0, len(merchants))
	for _, m := range merchants {
		if m.Slug() == "" {
			continue
		}
		stores = append(stores, m.Store())
	}
	return stores, nil
}

// PoliciesFor : politiques effectives d'un marchand (les siennes ou la table fixe)
func (s *Service) PoliciesFor(ctx context.Context, merchantID string) ([]models.RefundPolicy, error) {
	stored, err := s.store.Policies().ListByMerchant(ctx, merchantID)
	if err != nil {
		return nil, integrationError("policies", "erreur base de données", err)
	}
	return s.conditions.EffectivePolicies(merchantID, stored), nil
}

// ListPolicies renvoie uniquement les politiques enregistrées par le marchand
func (s *Service) ListPolicies(ctx context.Context, sess *Session) ([]models.RefundPolicy, error) {
	const op = "listPolicies"
	if !sess.IsMerchant() {
		return nil, forbiddenError(op, "réservé aux marchands")
	}
	stored, err := s.store.Policies().ListByMerchant(ctx, sess.UserID)
	if err != nil {
		return nil, integrationError(op, "erreur base de données", err)
	}
	return stored, nil
}

// SetPolicy crée ou remplace la politique du marchand pour un état d'article
func (s *Service) SetPolicy(ctx context.Context, sess *Session, p models.RefundPolicy) (*models.RefundPolicy, error) {
	const op = "setPolicy"
	if !sess.IsMerchant() {
		return nil, forbiddenError(op, "réservé aux marchands")
	}
	p.ItemCondition = strings.TrimSpace(p.ItemCondition)
	p.Description = strings.TrimSpace(p.Description)
	if err := s.conditions.ValidatePolicy(p); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p.ID = uuid.NewString()
	p.MerchantID = sess.UserID
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.store.Policies().Upsert(ctx, &p); err != nil {
		return nil, integrationError(op, "impossible d'enregistrer la politique", err)
	}
	zap.S().Infof("✅ Politique %s=%.2f%% enregistrée pour %s", p.ItemCondition, p.RefundPercentage, p.MerchantID)
	return &p, nil
}

func (s *Service) DeletePolicy(ctx context.Context, sess *Session, condition string) error {
	const op = "deletePolicy"
	if !sess.IsMerchant() {
		return forbiddenError(op, "réservé aux marchands")
	}
	if err := s.store.Policies().Delete(ctx, sess.UserID, condition); err != nil {
		return storeError(op, "politique", err)
	}
	return nil
}

// EstimateForStore alimente l'aperçu du formulaire public.
// Sans état choisi il n'y a rien à estimer : (nil, nil).
func (s *Service) EstimateForStore(ctx context.Context, slug string, price float64, condition string) (*models.RefundEstimate, error) {
	const op = "estimateRefund"
	merchant, err := s.ResolveStore(ctx, slug)
	if err != nil {
		return nil, err
	}
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return nil, nil
	}
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, validationError(op, map[string]string{"price": "prix invalide"})
	}
	policies, err := s.PoliciesFor(ctx, merchant.ID)
	if err != nil {
		return nil, err
	}
	est := Estimate(price, condition, policies)
	return &est, nil
}

// StoreConditions : états proposés sur le formulaire de la boutique, avec leur pourcentage
func (s *Service) StoreConditions(ctx context.Context, slug string) ([]Condition, error) {
	merchant, err := s.ResolveStore(ctx, slug)
	if err != nil {
		return nil, err
	}
	policies, err := s.PoliciesFor(ctx, merchant.ID)
	if err != nil {
		return nil, err
	}
	out := make([]Condition, 0, len(policies))
	for _, p := range policies {
		label := p.Description
		if label == "" {
			label = p.ItemCondition
		}
		out = append(out, Condition{ID: p.ItemCondition, Label: label, Percentage: p.RefundPercentage})
	}
	return out, nil
}

func (s *Service) GetProfile(ctx context.Context, sess *Session) (*models.Profile, error) {
	const op = "getProfile"
	if sess == nil {
		return nil, forbiddenError(op, "connexion requise")
	}
	p, err := s.store.Profiles().Get(ctx, sess.UserID)
	if err != nil {
		return nil, storeError(op, "profil", err)
	}
	return p, nil
}

func (s *Service) UpdateProfile(ctx context.Context, sess *Session, u ProfileUpdate) (*models.Profile, error) {
	const op = "updateProfile"
	if err := s.checkStruct(op, u); err != nil {
		return nil, err
	}
	p, err := s.GetProfile(ctx, sess)
	if err != nil {
		return nil, err
	}
	p.FirstName = strings.TrimSpace(u.FirstName)
	p.LastName = strings.TrimSpace(u.LastName)
	p.Phone = strings.TrimSpace(u.Phone)
	p.Address = strings.TrimSpace(u.Address)
	p.City = strings.TrimSpace(u.City)
	p.Country = strings.TrimSpace(u.Country)
	p.PostalCode = strings.TrimSpace(u.PostalCode)
	p.UpdatedAt = s.now().UTC()
	if err := s.store.Profiles().Update(ctx, p); err != nil {
		return nil, storeError(op, "profil", err)
	}
	return p, nil
}

// SetupStore réserve le slug puis enregistre nom et logo de la boutique
func (s *Service) SetupStore(ctx context.Context, sess *Session, setup StoreSetup, logo *Upload) (*models.Profile, error) {
	const op = "setupStore"
	if !sess.IsMerchant() {
		return nil, forbiddenError(op, "réservé aux marchands")
	}
	setup.StoreName = strings.TrimSpace(setup.StoreName)
	setup.StoreSlug = strings.ToLower(strings.TrimSpace(setup.StoreSlug))
	if err := s.checkStruct(op, setup); err != nil {
		return nil, err
	}
	if err := s.checkImage(op, "store_logo", logo); err != nil {
		return nil, err
	}

	p, err := s.GetProfile(ctx, sess)
	if err != nil {
		return nil, err
	}

	if err := s.store.Profiles().ClaimSlug(ctx, sess.UserID, setup.StoreSlug); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, validationError(op, map[string]string{"store_slug": "ce slug est déjà utilisé"})
		}
		return nil, storeError(op, "profil", err)
	}
	slug := setup.StoreSlug
	p.StoreSlug = &slug
	p.StoreName = setup.StoreName

	var objectPath string
	if logo != nil {
		objectPath = fmt.Sprintf("store-logos/%s-%s%s", sess.UserID, uuid.NewString()[:8], imageExt(logo))
		url, err := s.upload(ctx, objectPath, logo)
		if err != nil {
			return nil, integrationError(op, "échec de l'envoi du logo", err)
		}
		p.StoreLogo = url
	}

	p.UpdatedAt = s.now().UTC()
	if err := s.store.Profiles().Update(ctx, p); err != nil {
		s.discard(ctx, objectPath)
		return nil, storeError(op, "profil", err)
	}
	zap.S().Infof("✅ Boutique %s configurée (%s)", slug, p.StoreName)
	return p, nil
}
