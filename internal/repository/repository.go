package repository

import (
	"context"
	"errors"
	"time"

	"returnbox_back_end/internal/models"
)

var (
	ErrNotFound  = errors.New("enregistrement introuvable")
	ErrConflict  = errors.New("la ligne a changé entre-temps")
	ErrDuplicate = errors.New("valeur déjà utilisée")
)

// StatusChange est appliqué uniquement si le statut courant vaut From (compare-and-set)
type StatusChange struct {
	From          models.ReturnStatus
	To            models.ReturnStatus
	At            time.Time
	Decided       bool // renseigne decided_at
	ItemCondition string
	RefundAmount  *float64
}

type ReturnRepository interface {
	Insert(ctx context.Context, r *models.ReturnRequest) error
	Get(ctx context.Context, id string) (*models.ReturnRequest, error)
	// status vide = tous les statuts. Tri du plus récent au plus ancien.
	ListByMerchant(ctx context.Context, merchantID string, status models.ReturnStatus) ([]models.ReturnRequest, error)
	ListByCustomerEmail(ctx context.Context, email string) ([]models.ReturnRequest, error)
	// ErrConflict si le statut n'est plus ch.From, ErrNotFound si l'id n'existe pas
	TransitionStatus(ctx context.Context, id string, ch StatusChange) error
	// ErrConflict si le statut courant n'est pas dans allowed
	UpdateNotes(ctx context.Context, id, notes string, allowed []models.ReturnStatus, at time.Time) error
}

type PolicyRepository interface {
	ListByMerchant(ctx context.Context, merchantID string) ([]models.RefundPolicy, error)
	// une seule politique par (marchand, état) : la seconde écriture remplace la première
	Upsert(ctx context.Context, p *models.RefundPolicy) error
	Delete(ctx context.Context, merchantID, condition string) error
}

type PickupRepository interface {
	Insert(ctx context.Context, p *models.Pickup) error
	Get(ctx context.Context, id string) (*models.Pickup, error)
	Delete(ctx context.Context, id string) error
	ListByReturn(ctx context.Context, returnID string) ([]models.Pickup, error)
}

type ProfileRepository interface {
	Create(ctx context.Context, p *models.Profile) error
	Get(ctx context.Context, id string) (*models.Profile, error)
	GetBySlug(ctx context.Context, slug string) (*models.Profile, error)
	// met à jour les champs de contact et de boutique, jamais le slug ni le rôle
	Update(ctx context.Context, p *models.Profile) error
	// ErrDuplicate si le slug appartient déjà à un autre marchand
	ClaimSlug(ctx context.Context, userID, slug string) error
	ListMerchants(ctx context.Context) ([]models.Profile, error)
}

type UserRepository interface {
	// ErrDuplicate si l'email est déjà pris
	Create(ctx context.Context, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// Delete libère aussi l'email
	Delete(ctx context.Context, id string) error
}

type AuditRepository interface {
	Insert(ctx context.Context, l *models.AuditLog) error
}

// Store regroupe les dépôts d'un même backend (scylla ou relationnel)
type Store interface {
	Returns() ReturnRepository
	Policies() PolicyRepository
	Pickups() PickupRepository
	Profiles() ProfileRepository
	Users() UserRepository
	Audit() AuditRepository
	Close() error
}
