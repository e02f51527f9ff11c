package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"returnbox_back_end/internal/models"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := NewGormStore(db)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newReturn(merchantID string, status models.ReturnStatus) *models.ReturnRequest {
	now := time.Now().UTC()
	return &models.ReturnRequest{
		ID:            uuid.NewString(),
		MerchantID:    merchantID,
		OrderID:       "CMD-1",
		ProductName:   "Veste",
		Reason:        "Taille trop petite",
		CustomerEmail: "client@example.com",
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestTransitionStatusIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Returns()

	ret := newReturn("m1", models.ReturnStatusPending)
	require.NoError(t, repo.Insert(ctx, ret))

	now := time.Now().UTC()
	err := repo.TransitionStatus(ctx, ret.ID, StatusChange{
		From: models.ReturnStatusPending, To: models.ReturnStatusApproved, At: now, Decided: true,
	})
	require.NoError(t, err)

	// deuxième décision sur la même demande : le statut n'est plus pending
	err = repo.TransitionStatus(ctx, ret.ID, StatusChange{
		From: models.ReturnStatusPending, To: models.ReturnStatusRejected, At: now, Decided: true,
	})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := repo.Get(ctx, ret.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReturnStatusApproved, got.Status)
	assert.NotNil(t, got.DecidedAt)

	err = repo.TransitionStatus(ctx, "inconnu", StatusChange{From: models.ReturnStatusPending, To: models.ReturnStatusApproved, At: now})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionStatusStoresRefund(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Returns()

	ret := newReturn("m1", models.ReturnStatusShipped)
	require.NoError(t, repo.Insert(ctx, ret))

	amount := 75.0
	err := repo.TransitionStatus(ctx, ret.ID, StatusChange{
		From: models.ReturnStatusShipped, To: models.ReturnStatusCompleted, At: time.Now().UTC(),
		ItemCondition: "good", RefundAmount: &amount,
	})
	require.NoError(t, err)

	got, err := repo.Get(ctx, ret.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReturnStatusCompleted, got.Status)
	assert.Equal(t, "good", got.ItemCondition)
	require.NotNil(t, got.RefundAmount)
	assert.InDelta(t, 75.0, *got.RefundAmount, 0.001)
}

func TestUpdateNotesOnlyInAllowedStatuses(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Returns()
	open := []models.ReturnStatus{models.ReturnStatusPending, models.ReturnStatusApproved, models.ReturnStatusShipped}

	pending := newReturn("m1", models.ReturnStatusPending)
	closed := newReturn("m1", models.ReturnStatusRejected)
	require.NoError(t, repo.Insert(ctx, pending))
	require.NoError(t, repo.Insert(ctx, closed))

	require.NoError(t, repo.UpdateNotes(ctx, pending.ID, "appelé le client", open, time.Now().UTC()))
	assert.ErrorIs(t, repo.UpdateNotes(ctx, closed.ID, "trop tard", open, time.Now().UTC()), ErrConflict)

	got, err := repo.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, "appelé le client", got.Notes)
}

func TestListByMerchantFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Returns()

	older := newReturn("m1", models.ReturnStatusPending)
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := newReturn("m1", models.ReturnStatusPending)
	approved := newReturn("m1", models.ReturnStatusApproved)
	other := newReturn("m2", models.ReturnStatusPending)
	for _, r := range []*models.ReturnRequest{older, newer, approved, other} {
		require.NoError(t, repo.Insert(ctx, r))
	}

	all, err := repo.ListByMerchant(ctx, "m1", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	pending, err := repo.ListByMerchant(ctx, "m1", models.ReturnStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, newer.ID, pending[0].ID)
	assert.Equal(t, older.ID, pending[1].ID)
}

func TestPolicyUpsertReplacesByCondition(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Policies()

	first := &models.RefundPolicy{ID: uuid.NewString(), MerchantID: "m1", ItemCondition: "good", RefundPercentage: 60}
	require.NoError(t, repo.Upsert(ctx, first))
	firstID := first.ID

	second := &models.RefundPolicy{ID: uuid.NewString(), MerchantID: "m1", ItemCondition: "good", RefundPercentage: 70, Description: "Bon"}
	require.NoError(t, repo.Upsert(ctx, second))
	assert.Equal(t, firstID, second.ID)

	list, err := repo.ListByMerchant(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 70.0, list[0].RefundPercentage)
	assert.Equal(t, "Bon", list[0].Description)

	require.NoError(t, repo.Delete(ctx, "m1", "good"))
	assert.ErrorIs(t, repo.Delete(ctx, "m1", "good"), ErrNotFound)
}

func TestClaimSlugIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Profiles()

	for _, id := range []string{"m1", "m2"} {
		require.NoError(t, repo.Create(ctx, &models.Profile{ID: id, Email: id + "@shop.be", Role: models.RoleMerchant}))
	}

	require.NoError(t, repo.ClaimSlug(ctx, "m1", "ma-boutique"))
	require.NoError(t, repo.ClaimSlug(ctx, "m1", "ma-boutique"))
	assert.ErrorIs(t, repo.ClaimSlug(ctx, "m2", "ma-boutique"), ErrDuplicate)

	p, err := repo.GetBySlug(ctx, "ma-boutique")
	require.NoError(t, err)
	assert.Equal(t, "m1", p.ID)

	merchants, err := repo.ListMerchants(ctx)
	require.NoError(t, err)
	require.Len(t, merchants, 1)
	assert.Equal(t, "m1", merchants[0].ID)
}

func TestUserEmailIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Users()

	require.NoError(t, repo.Create(ctx, &models.User{ID: uuid.NewString(), Email: "a@b.be", Provider: "local"}))
	err := repo.Create(ctx, &models.User{ID: uuid.NewString(), Email: "a@b.be", Provider: "local"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = repo.GetByEmail(ctx, "absent@b.be")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPickupDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Pickups()

	p := &models.Pickup{
		ID: uuid.NewString(), UserID: "m1", ReturnID: "r1", PickupDate: "2030-01-01",
		TimeSlot: models.TimeSlotMorning, Address: "Rue 1", City: "Bruxelles", PostalCode: "1000",
		PackageSize: models.PackageSmall, Status: models.PickupScheduled, CourierTrackingNumber: "TRABC123456",
	}
	require.NoError(t, repo.Insert(ctx, p))

	list, err := repo.ListByReturn(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Delete(ctx, p.ID))
	_, err = repo.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
