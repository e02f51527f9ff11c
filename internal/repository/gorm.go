package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"returnbox_back_end/internal/models"
)

// GormStore : backend relationnel (mysql en production, sqlite en local et en test)
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.ReturnRequest{},
		&models.RefundPolicy{},
		&models.Pickup{},
		&models.AuditLog{},
	)
}

func (s *GormStore) Returns() ReturnRepository   { return &gormReturnRepository{db: s.db} }
func (s *GormStore) Policies() PolicyRepository  { return &gormPolicyRepository{db: s.db} }
func (s *GormStore) Pickups() PickupRepository   { return &gormPickupRepository{db: s.db} }
func (s *GormStore) Profiles() ProfileRepository { return &gormProfileRepository{db: s.db} }
func (s *GormStore) Users() UserRepository       { return &gormUserRepository{db: s.db} }
func (s *GormStore) Audit() AuditRepository      { return &gormAuditRepository{db: s.db} }

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func gormError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return ErrDuplicate
	}
	return err
}

// sans TranslateError, les drivers renvoient leur propre message
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}

type gormReturnRepository struct {
	db *gorm.DB
}

func (r *gormReturnRepository) Insert(ctx context.Context, ret *models.ReturnRequest) error {
	return gormError(r.db.WithContext(ctx).Create(ret).Error)
}

func (r *gormReturnRepository) Get(ctx context.Context, id string) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ret).Error; err != nil {
		return nil, gormError(err)
	}
	return &ret, nil
}

func (r *gormReturnRepository) ListByMerchant(ctx context.Context, merchantID string, status models.ReturnStatus) ([]models.ReturnRequest, error) {
	var list []models.ReturnRequest
	q := r.db.WithContext(ctx).Where("merchant_id = ?", merchantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *gormReturnRepository) ListByCustomerEmail(ctx context.Context, email string) ([]models.ReturnRequest, error) {
	var list []models.ReturnRequest
	err := r.db.WithContext(ctx).
		Where("customer_email = ?", email).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *gormReturnRepository) TransitionStatus(ctx context.Context, id string, ch StatusChange) error {
	updates := map[string]interface{}{
		"status":     ch.To,
		"updated_at": ch.At,
	}
	if ch.Decided {
		updates["decided_at"] = ch.At
	}
	if ch.ItemCondition != "" {
		updates["item_condition"] = ch.ItemCondition
	}
	if ch.RefundAmount != nil {
		updates["refund_amount"] = *ch.RefundAmount
	}

	res := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ?", id, ch.From).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *gormReturnRepository) UpdateNotes(ctx context.Context, id, notes string, allowed []models.ReturnStatus, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ? AND status IN ?", id, allowed).
		Updates(map[string]interface{}{"notes": notes, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// aucune ligne touchée : soit l'id n'existe pas, soit le statut a bougé
func (r *gormReturnRepository) missOrConflict(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ReturnRequest{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

type gormPolicyRepository struct {
	db *gorm.DB
}

func (r *gormPolicyRepository) ListByMerchant(ctx context.Context, merchantID string) ([]models.RefundPolicy, error) {
	var list []models.RefundPolicy
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("refund_percentage DESC, item_condition ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *gormPolicyRepository) Upsert(ctx context.Context, p *models.RefundPolicy) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "merchant_id"}, {Name: "item_condition"}},
		DoUpdates: clause.AssignmentColumns([]string{"refund_percentage", "description", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return err
	}
	// en cas de conflit, la ligne conservée garde son id et sa date de création
	var stored models.RefundPolicy
	err = r.db.WithContext(ctx).
		Where("merchant_id = ? AND item_condition = ?", p.MerchantID, p.ItemCondition).
		First(&stored).Error
	if err != nil {
		return gormError(err)
	}
	*p = stored
	return nil
}

func (r *gormPolicyRepository) Delete(ctx context.Context, merchantID, condition string) error {
	res := r.db.WithContext(ctx).
		Where("merchant_id = ? AND item_condition = ?", merchantID, condition).
		Delete(&models.RefundPolicy{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type gormPickupRepository struct {
	db *gorm.DB
}

func (r *gormPickupRepository) Insert(ctx context.Context, p *models.Pickup) error {
	return gormError(r.db.WithContext(ctx).Create(p).Error)
}

func (r *gormPickupRepository) Get(ctx context.Context, id string) (*models.Pickup, error) {
	var p models.Pickup
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, gormError(err)
	}
	return &p, nil
}

func (r *gormPickupRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Pickup{}).Error
}

func (r *gormPickupRepository) ListByReturn(ctx context.Context, returnID string) ([]models.Pickup, error) {
	var list []models.Pickup
	err := r.db.WithContext(ctx).
		Where("return_id = ?", returnID).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

type gormProfileRepository struct {
	db *gorm.DB
}

func (r *gormProfileRepository) Create(ctx context.Context, p *models.Profile) error {
	return gormError(r.db.WithContext(ctx).Create(p).Error)
}

func (r *gormProfileRepository) Get(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, gormError(err)
	}
	return &p, nil
}

func (r *gormProfileRepository) GetBySlug(ctx context.Context, slug string) (*models.Profile, error) {
	var p models.Profile
	if err := r.db.WithContext(ctx).Where("store_slug = ?", slug).First(&p).Error; err != nil {
		return nil, gormError(err)
	}
	return &p, nil
}

func (r *gormProfileRepository) Update(ctx context.Context, p *models.Profile) error {
	res := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", p.ID).
		Select("first_name", "last_name", "phone", "address", "city", "country",
			"postal_code", "store_name", "store_logo", "updated_at").
		Updates(p)
	if res.Error != nil {
		return gormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormProfileRepository) ClaimSlug(ctx context.Context, userID, slug string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner models.Profile
		err := tx.Where("store_slug = ?", slug).First(&owner).Error
		switch {
		case err == nil && owner.ID == userID:
			return nil
		case err == nil:
			return ErrDuplicate
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		res := tx.Model(&models.Profile{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{"store_slug": slug, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return gormError(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *gormProfileRepository) ListMerchants(ctx context.Context) ([]models.Profile, error) {
	var list []models.Profile
	err := r.db.WithContext(ctx).
		Where("role = ? AND store_slug IS NOT NULL", models.RoleMerchant).
		Order("store_name ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

type gormUserRepository struct {
	db *gorm.DB
}

func (r *gormUserRepository) Create(ctx context.Context, u *models.User) error {
	return gormError(r.db.WithContext(ctx).Create(u).Error)
}

func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, gormError(err)
	}
	return &u, nil
}

func (r *gormUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, gormError(err)
	}
	return &u, nil
}

func (r *gormUserRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.User{}).Error
}

type gormAuditRepository struct {
	db *gorm.DB
}

func (r *gormAuditRepository) Insert(ctx context.Context, l *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(l).Error
}
