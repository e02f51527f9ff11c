package returns

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"returnbox_back_end/internal/courier"
	"returnbox_back_end/internal/models"
	"returnbox_back_end/internal/repository"
)

const testSlug = "boutique-test"

type stubCourier struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (c *stubCourier) RequestTrackingNumber(ctx context.Context, s courier.Shipment) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return fmt.Sprintf("TRTEST%05d", c.calls), nil
}

type memBlobs struct {
	objects map[string][]byte
}

func (m *memBlobs) Upload(ctx context.Context, objectPath string, body io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.objects[objectPath] = data
	return "https://cdn.test/" + objectPath, nil
}

func (m *memBlobs) Remove(ctx context.Context, objectPath string) error {
	delete(m.objects, objectPath)
	return nil
}

type fixture struct {
	svc      *Service
	store    repository.Store
	courier  *stubCourier
	blobs    *memBlobs
	changes  []Change
	merchant *Session
	now      time.Time
}

func openStore(t *testing.T) *repository.GormStore {
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

	store := repository.NewGormStore(db)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newFixture(t *testing.T, wrap ...func(repository.Store) repository.Store) *fixture {
	t.Helper()
	var store repository.Store = openStore(t)

	f := &fixture{
		courier: &stubCourier{},
		blobs:   &memBlobs{objects: map[string][]byte{}},
		now:     time.Date(2030, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	f.merchant = f.addMerchant(t, store, testSlug)

	for _, w := range wrap {
		store = w(store)
	}
	f.store = store
	f.svc = NewService(store, f.courier, Options{
		Conditions: ConditionSetGrade,
		Location:   time.UTC,
		Now:        func() time.Time { return f.now },
		Blobs:      f.blobs,
	}, ListenerFunc(func(ctx context.Context, ch Change) {
		f.changes = append(f.changes, ch)
	}))
	return f
}

func (f *fixture) addMerchant(t *testing.T, store repository.Store, slug string) *Session {
	t.Helper()
	ctx := context.Background()
	id := uuid.NewString()
	email := slug + "@shop.test"
	require.NoError(t, store.Profiles().Create(ctx, &models.Profile{
		ID: id, Email: email, Role: models.RoleMerchant, StoreName: "Boutique " + slug,
	}))
	require.NoError(t, store.Profiles().ClaimSlug(ctx, id, slug))
	return &Session{UserID: id, Email: email, Role: models.RoleMerchant}
}

func validSubmission() SubmitDetails {
	return SubmitDetails{
		OrderID:       "CMD-2030-001",
		ProductName:   "Veste en lin",
		Reason:        "La taille ne correspond pas au guide",
		CustomerEmail: "Client@Example.com",
	}
}

func (f *fixture) submit(t *testing.T) *models.ReturnRequest {
	t.Helper()
	ret, err := f.svc.SubmitReturn(context.Background(), nil, testSlug, validSubmission(), nil)
	require.NoError(t, err)
	return ret
}

func (f *fixture) approved(t *testing.T) *models.ReturnRequest {
	t.Helper()
	ret := f.submit(t)
	_, err := f.svc.Decide(context.Background(), f.merchant, ret.ID, models.ReturnStatusApproved)
	require.NoError(t, err)
	return ret
}

func (f *fixture) status(t *testing.T, id string) models.ReturnStatus {
	t.Helper()
	ret, err := f.store.Returns().Get(context.Background(), id)
	require.NoError(t, err)
	return ret.Status
}

func (f *fixture) pickupDetails(date string) PickupDetails {
	return PickupDetails{
		PickupDate:  date,
		TimeSlot:    models.TimeSlotAfternoon,
		Address:     "Chaussée de Wavre 100",
		City:        "Ixelles",
		PostalCode:  "1050",
		PackageSize: models.PackageSmall,
	}
}

func TestSubmitReturnRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ret := f.submit(t)
	assert.Equal(t, models.ReturnStatusPending, ret.Status)

	got, err := f.svc.Get(ctx, f.merchant, ret.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReturnStatusPending, got.Status)
	assert.Equal(t, f.merchant.UserID, got.MerchantID)
	assert.Equal(t, "CMD-2030-001", got.OrderID)
	assert.Equal(t, "Veste en lin", got.ProductName)
	assert.Equal(t, "La taille ne correspond pas au guide", got.Reason)
	assert.Equal(t, "client@example.com", got.CustomerEmail)

	customer := &Session{UserID: uuid.NewString(), Email: "client@example.com", Role: models.RoleCustomer}
	mine, err := f.svc.ListForCustomer(ctx, customer)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, ret.ID, mine[0].ID)

	require.Len(t, f.changes, 1)
	assert.Equal(t, ChangeSubmitted, f.changes[0].Kind)
}

func TestSubmitReturnValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := validSubmission()
	d.Reason = "court"
	d.CustomerEmail = "pas-un-email"
	_, err := f.svc.SubmitReturn(ctx, nil, testSlug, d, nil)
	require.ErrorIs(t, err, ErrValidation)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Contains(t, e.Fields, "reason")
	assert.Contains(t, e.Fields, "customer_email")

	_, err = f.svc.SubmitReturn(ctx, nil, "inconnue", validSubmission(), nil)
	assert.ErrorIs(t, err, ErrNotFound)

	pdf := &Upload{Filename: "facture.pdf", ContentType: "application/pdf", Size: 3, Body: strings.NewReader("pdf")}
	_, err = f.svc.SubmitReturn(ctx, nil, testSlug, validSubmission(), pdf)
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, f.changes)
}

func TestSubmitReturnUsesSessionEmail(t *testing.T) {
	f := newFixture(t)
	d := validSubmission()
	d.CustomerEmail = ""

	ret, err := f.svc.SubmitReturn(context.Background(),
		&Session{UserID: "c1", Email: "Moi@Example.com", Role: models.RoleCustomer}, testSlug, d, nil)
	require.NoError(t, err)
	assert.Equal(t, "moi@example.com", ret.CustomerEmail)
}

func TestSubmitReturnUploadsPhoto(t *testing.T) {
	f := newFixture(t)
	photo := &Upload{Filename: "veste.PNG", ContentType: "image/png", Size: 4, Body: bytes.NewReader([]byte{1, 2, 3, 4})}

	ret, err := f.svc.SubmitReturn(context.Background(), nil, testSlug, validSubmission(), photo)
	require.NoError(t, err)

	key := fmt.Sprintf("return-photos/%s/%s.png", f.merchant.UserID, ret.ID)
	assert.Equal(t, "https://cdn.test/"+key, ret.PhotoURL)
	assert.Equal(t, []byte{1, 2, 3, 4}, f.blobs.objects[key])
}

type failingInserts struct {
	repository.Store
}

func (s failingInserts) Returns() repository.ReturnRepository {
	return failingInsertReturns{ReturnRepository: s.Store.Returns()}
}

type failingInsertReturns struct {
	repository.ReturnRepository
}

func (r failingInsertReturns) Insert(ctx context.Context, ret *models.ReturnRequest) error {
	return errors.New("base indisponible")
}

func TestSubmitReturnRemovesPhotoWhenInsertFails(t *testing.T) {
	f := newFixture(t, func(s repository.Store) repository.Store { return failingInserts{Store: s} })
	photo := &Upload{Filename: "veste.png", ContentType: "image/png", Size: 4, Body: bytes.NewReader([]byte{1, 2, 3, 4})}

	_, err := f.svc.SubmitReturn(context.Background(), nil, testSlug, validSubmission(), photo)
	assert.ErrorIs(t, err, ErrIntegration)
	assert.Empty(t, f.blobs.objects)
	assert.Empty(t, f.changes)
}

func TestDecideOnlyFromPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ret := f.submit(t)

	decided, err := f.svc.Decide(ctx, f.merchant, ret.ID, models.ReturnStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.ReturnStatusApproved, decided.Status)
	require.NotNil(t, decided.DecidedAt)

	for _, decision := range []models.ReturnStatus{models.ReturnStatusApproved, models.ReturnStatusRejected} {
		_, err = f.svc.Decide(ctx, f.merchant, ret.ID, decision)
		assert.ErrorIs(t, err, ErrPrecondition)
		assert.Equal(t, models.ReturnStatusApproved, f.status(t, ret.ID))
	}

	rejected := f.submit(t)
	_, err = f.svc.Decide(ctx, f.merchant, rejected.ID, models.ReturnStatusRejected)
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, f.merchant, rejected.ID, models.ReturnStatusApproved)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Equal(t, models.ReturnStatusRejected, f.status(t, rejected.ID))
}

func TestDecideChecksActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ret := f.submit(t)

	other := f.addMerchant(t, f.store, "autre-boutique")
	_, err := f.svc.Decide(ctx, other, ret.ID, models.ReturnStatusApproved)
	assert.ErrorIs(t, err, ErrNotFound)

	customer := &Session{UserID: "c1", Email: "client@example.com", Role: models.RoleCustomer}
	_, err = f.svc.Decide(ctx, customer, ret.ID, models.ReturnStatusApproved)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Decide(ctx, nil, ret.ID, models.ReturnStatusApproved)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Decide(ctx, f.merchant, ret.ID, models.ReturnStatusCompleted)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Decide(ctx, f.merchant, uuid.NewString(), models.ReturnStatusApproved)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, models.ReturnStatusPending, f.status(t, ret.ID))
}

func TestAttachNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ret := f.submit(t)

	updated, err := f.svc.AttachNotes(ctx, f.merchant, ret.ID, "  Client rappelé  ")
	require.NoError(t, err)
	assert.Equal(t, "Client rappelé", updated.Notes)

	_, err = f.svc.AttachNotes(ctx, f.merchant, ret.ID, strings.Repeat("x", maxNotes+1))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Decide(ctx, f.merchant, ret.ID, models.ReturnStatusRejected)
	require.NoError(t, err)
	_, err = f.svc.AttachNotes(ctx, f.merchant, ret.ID, "après coup")
	assert.ErrorIs(t, err, ErrPrecondition)

	got, err := f.store.Returns().Get(ctx, ret.ID)
	require.NoError(t, err)
	assert.Equal(t, "Client rappelé", got.Notes)
}

func TestSchedulePickupRequiresApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.submit(t)
	_, err := f.svc.SchedulePickup(ctx, f.merchant, pending.ID, f.pickupDetails("2030-03-15"))
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Zero(t, f.courier.calls)

	ret := f.approved(t)
	pickup, err := f.svc.SchedulePickup(ctx, f.merchant, ret.ID, f.pickupDetails("2030-03-15"))
	require.NoError(t, err)
	assert.NotEmpty(t, pickup.CourierTrackingNumber)
	assert.Equal(t, ret.ID, pickup.ReturnID)
	assert.Equal(t, f.merchant.UserID, pickup.UserID)
	assert.Equal(t, models.ReturnStatusShipped, f.status(t, ret.ID))

	pickups, err := f.svc.PickupsForReturn(ctx, f.merchant, ret.ID)
	require.NoError(t, err)
	require.Len(t, pickups, 1)
	assert.Equal(t, pickup.CourierTrackingNumber, pickups[0].CourierTrackingNumber)

	_, err = f.svc.SchedulePickup(ctx, f.merchant, ret.ID, f.pickupDetails("2030-03-15"))
	assert.ErrorIs(t, err, ErrPrecondition)

	last := f.changes[len(f.changes)-1]
	assert.Equal(t, ChangePickupScheduled, last.Kind)
	require.NotNil(t, last.Pickup)
	assert.Equal(t, pickup.ID, last.Pickup.ID)
}

func TestSchedulePickupDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ret := f.approved(t)

	_, err := f.svc.SchedulePickup(ctx, f.merchant, ret.ID, f.pickupDetails("2030-03-13"))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, f.courier.calls)
	assert.Equal(t, models.ReturnStatusApproved, f.status(t, ret.ID))

	_, err = f.svc.SchedulePickup(ctx, f.merchant, ret.ID, f.pickupDetails("2030-03-14"))
	require.NoError(t, err)
}

func TestSchedulePickupCourierFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ret := f.approved(t)
	f.courier.err = errors.New("timeout transporteur")

	_, err := f.svc.SchedulePickup(ctx, f.merchant, ret.ID, f.pickupDetails("2030-03-15"))
	assert.ErrorIs(t, err, ErrIntegration)
	assert.Equal(t, models.ReturnStatusApproved, f.status(t, ret.ID))

	pickups, err := f.store.Pickups().ListByReturn(ctx, ret.ID)
	require.NoError(t, err)
	assert.Empty(t, pickups)
}

type brokenTransitions struct {
	repository.Store
	err error
}

func (s brokenTransitions) Returns() repository.ReturnRepository {
	return brokenReturns{ReturnRepository: s.Store.Returns(), err: s.err}
}

type brokenReturns struct {
	repository.ReturnRepository
	err error
}

func (r brokenReturns) TransitionStatus(ctx context.Context, id string, ch repository.StatusChange) error {
	if ch.To == models.ReturnStatusShipped {
		return r.err
	}
	return r.ReturnRepository.TransitionStatus(ctx, id, ch)
}

type brokenPickupDelete struct {
	repository.Store
}

func (s brokenPickupDelete) Pickups() repository.PickupRepository {
	return undeletablePickups{s.Store.Pickups()}
}

type undeletablePickups struct {
	repository.PickupRepository
}

func (undeletablePickups) Delete(ctx context.Context, id string) error {
	return errors.New("base indisponible")
}

func TestSchedulePickupCompensatesFailedTransition(t *testing.T) {
	f := newFixture(t, func(s repository.Store) repository.Store {
		return brokenTransitions{Store: s, err: repository.ErrConflict}
	})
	ctx := context.Background()
	ret := f.approved(t)

	_, err := f.svc.SchedulePickup(ctx, f.merchant, ret.ID, f.pickupDetails("2030-03-15"))
	assert.ErrorIs(t, err, ErrPrecondition)

	pickups, err := f.store.Pickups().ListByReturn(ctx, ret.ID)
	require.NoError(t, err)
	assert.Empty(t, pickups)
	assert.Equal(t, models.ReturnStatusApproved, f.status(t, ret.ID))
}

func TestSchedulePickupReportsFailedCompensation(t *testing.T) {
	f := newFixture(t, func(s repository.Store) repository.Store {
		return brokenPickupDelete{brokenTransitions{Store: s, err: errors.New("écriture refusée")}}
	})
	ctx := context.Background()
	ret := f.approved(t)

	_, err := f.svc.SchedulePickup(ctx, f.merchant, ret.ID, f.pickupDetails("2030-03-15"))
	assert.ErrorIs(t, err, ErrIntegration)
	assert.Contains(t, err.Error(), "état incohérent")
}

func TestCompleteComputesRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ret := f.approved(t)

	price := 100.0
	_, err := f.svc.Complete(ctx, f.merchant, ret.ID, CompleteDetails{ItemCondition: "good", Price: &price})
	assert.ErrorIs(t, err, ErrPrecondition)

	_, err = f.svc.SchedulePickup(ctx, f.merchant, ret.ID, f.pickupDetails("2030-03-15"))
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, f.merchant, ret.ID, CompleteDetails{ItemCondition: "sealed", Price: &price})
	assert.ErrorIs(t, err, ErrValidation)

	done, err := f.svc.Complete(ctx, f.merchant, ret.ID, CompleteDetails{ItemCondition: "good", Price: &price})
	require.NoError(t, err)
	assert.Equal(t, models.ReturnStatusCompleted, done.Status)
	require.NotNil(t, done.RefundAmount)
	assert.Equal(t, 75.0, *done.RefundAmount)

	_, err = f.svc.Complete(ctx, f.merchant, ret.ID, CompleteDetails{})
	assert.ErrorIs(t, err, ErrPrecondition)

	_, err = f.svc.AttachNotes(ctx, f.merchant, ret.ID, "clôturé")
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestMerchantPoliciesDriveEstimates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	est, err := f.svc.EstimateForStore(ctx, testSlug, 100, "")
	require.NoError(t, err)
	assert.Nil(t, est)

	est, err = f.svc.EstimateForStore(ctx, testSlug, 100, "good")
	require.NoError(t, err)
	assert.Equal(t, 75.0, est.Amount)

	_, err = f.svc.SetPolicy(ctx, f.merchant, models.RefundPolicy{ItemCondition: "good", RefundPercentage: 60})
	require.NoError(t, err)

	est, err = f.svc.EstimateForStore(ctx, testSlug, 100, "good")
	require.NoError(t, err)
	assert.Equal(t, 60.0, est.Amount)

	// les politiques du marchand remplacent entièrement la table fixe
	est, err = f.svc.EstimateForStore(ctx, testSlug, 49.99, "new")
	require.NoError(t, err)
	assert.False(t, est.Covered)
	assert.Zero(t, est.Amount)

	_, err = f.svc.SetPolicy(ctx, f.merchant, models.RefundPolicy{ItemCondition: "good", RefundPercentage: 150})
	assert.ErrorIs(t, err, ErrValidation)

	customer := &Session{UserID: "c1", Role: models.RoleCustomer}
	_, err = f.svc.SetPolicy(ctx, customer, models.RefundPolicy{ItemCondition: "good", RefundPercentage: 10})
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.svc.DeletePolicy(ctx, f.merchant, "good"))
	assert.ErrorIs(t, f.svc.DeletePolicy(ctx, f.merchant, "good"), ErrNotFound)
}

func TestSetupStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.addMerchant(t, f.store, "autre")

	_, err := f.svc.SetupStore(ctx, other, StoreSetup{StoreName: "Autre", StoreSlug: testSlug}, nil)
	require.ErrorIs(t, err, ErrValidation)
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Contains(t, e.Fields, "store_slug")

	_, err = f.svc.SetupStore(ctx, other, StoreSetup{StoreName: "Autre", StoreSlug: "Pas Valide!"}, nil)
	assert.ErrorIs(t, err, ErrValidation)

	logo := &Upload{Filename: "logo.webp", ContentType: "image/webp", Size: 2, Body: bytes.NewReader([]byte{9, 9})}
	p, err := f.svc.SetupStore(ctx, other, StoreSetup{StoreName: "Nouvelle boutique", StoreSlug: "nouvelle"}, logo)
	require.NoError(t, err)
	assert.Equal(t, "nouvelle", p.Slug())
	assert.True(t, strings.HasPrefix(p.StoreLogo, "https://cdn.test/store-logos/"+other.UserID+"-"))

	resolved, err := f.svc.ResolveStore(ctx, "nouvelle")
	require.NoError(t, err)
	assert.Equal(t, other.UserID, resolved.ID)
	assert.Equal(t, "Nouvelle boutique", resolved.StoreName)

	stores, err := f.svc.ListStores(ctx)
	require.NoError(t, err)
	assert.Len(t, stores, 2)
}

func TestPanickingListenerDoesNotBreakMutation(t *testing.T) {
	f := newFixture(t)
	f.svc.AddListener(ListenerFunc(func(ctx context.Context, ch Change) { panic("boom") }))

	ret := f.submit(t)
	assert.Equal(t, models.ReturnStatusPending, f.status(t, ret.ID))
}
