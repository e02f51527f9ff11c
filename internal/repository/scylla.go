package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"returnbox_back_end/internal/models"
)

// ScyllaStore : un keyspace pour les comptes et profils, un autre pour les retours.
// Les transitions de statut passent par des transactions légères (IF ...).
type ScyllaStore struct {
	users   *gocql.Session
	returns *gocql.Session
}

func NewScyllaStore(users, returns *gocql.Session) *ScyllaStore {
	return &ScyllaStore{users: users, returns: returns}
}

// EnsureSchema crée les tables manquantes. Les keyspaces et rôles restent gérés par l'exploitation.
func (s *ScyllaStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range usersSchema {
		if err := s.users.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("schéma users: %w", err)
		}
	}
	for _, stmt := range returnsSchema {
		if err := s.returns.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("schéma returns: %w", err)
		}
	}
	return nil
}

func (s *ScyllaStore) Returns() ReturnRepository {
	return &scyllaReturnRepository{session: s.returns, cas: sessionCAS(s.returns)}
}
func (s *ScyllaStore) Policies() PolicyRepository {
	return &scyllaPolicyRepository{session: s.returns, cas: sessionCAS(s.returns)}
}
func (s *ScyllaStore) Pickups() PickupRepository   { return &scyllaPickupRepository{session: s.returns} }
func (s *ScyllaStore) Profiles() ProfileRepository { return &scyllaProfileRepository{session: s.users} }
func (s *ScyllaStore) Users() UserRepository       { return &scyllaUserRepository{session: s.users} }
func (s *ScyllaStore) Audit() AuditRepository      { return &scyllaAuditRepository{session: s.users} }

func (s *ScyllaStore) Close() error {
	s.users.Close()
	if s.returns != s.users {
		s.returns.Close()
	}
	return nil
}

// un id qui n'est pas un UUID ne peut pas exister
func parseID(id string) (gocql.UUID, error) {
	u, err := gocql.ParseUUID(id)
	if err != nil {
		return gocql.UUID{}, ErrNotFound
	}
	return u, nil
}

// casFunc exécute une requête conditionnelle (IF ...) et indique si elle a été appliquée
type casFunc func(ctx context.Context, stmt string, args ...interface{}) (bool, error)

func sessionCAS(session *gocql.Session) casFunc {
	return func(ctx context.Context, stmt string, args ...interface{}) (bool, error) {
		return session.Query(stmt, args...).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	}
}

func scyllaError(err error) error {
	if err == gocql.ErrNotFound {
		return ErrNotFound
	}
	return err
}

// --- Retours ---

type scyllaReturnRepository struct {
	session *gocql.Session
	cas     casFunc
}

func returnDest(r *models.ReturnRequest) []interface{} {
	return []interface{}{
		&r.ID, &r.MerchantID, &r.OrderID, &r.ProductName, &r.Reason, &r.CustomerEmail, &r.PhotoURL,
		&r.Status, &r.Notes, &r.ItemCondition, &r.RefundAmount, &r.DecidedAt, &r.CreatedAt, &r.UpdatedAt,
	}
}

func (r *scyllaReturnRepository) Insert(ctx context.Context, ret *models.ReturnRequest) error {
	applied, err := r.cas(ctx,
		`INSERT INTO returns (`+returnColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS`,
		ret.ID, ret.MerchantID, ret.OrderID, ret.ProductName, ret.Reason, ret.CustomerEmail, ret.PhotoURL,
		ret.Status, ret.Notes, ret.ItemCondition, ret.RefundAmount, ret.DecidedAt, ret.CreatedAt, ret.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if !applied {
		return ErrDuplicate
	}
	return nil
}

func (r *scyllaReturnRepository) Get(ctx context.Context, id string) (*models.ReturnRequest, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var ret models.ReturnRequest
	err = r.session.Query(`SELECT `+returnColumns+` FROM returns WHERE return_id = ?`, uid).
		WithContext(ctx).Scan(returnDest(&ret)...)
	if err != nil {
		return nil, scyllaError(err)
	}
	return &ret, nil
}

func (r *scyllaReturnRepository) list(ctx context.Context, stmt string, args ...interface{}) ([]models.ReturnRequest, error) {
	iter := r.session.Query(stmt, args...).WithContext(ctx).Iter()
	var list []models.ReturnRequest
	for {
		var ret models.ReturnRequest
		if !iter.Scan(returnDest(&ret)...) {
			break
		}
		list = append(list, ret)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (r *scyllaReturnRepository) ListByMerchant(ctx context.Context, merchantID string, status models.ReturnStatus) ([]models.ReturnRequest, error) {
	uid, err := parseID(merchantID)
	if err != nil {
		return nil, nil
	}
	if status != "" {
		return r.list(ctx, `SELECT `+returnColumns+` FROM returns WHERE merchant_id = ? AND status = ? ALLOW FILTERING`, uid, string(status))
	}
	return r.list(ctx, `SELECT `+returnColumns+` FROM returns WHERE merchant_id = ? ALLOW FILTERING`, uid)
}

func (r *scyllaReturnRepository) ListByCustomerEmail(ctx context.Context, email string) ([]models.ReturnRequest, error) {
	return r.list(ctx, `SELECT `+returnColumns+` FROM returns WHERE customer_email = ? ALLOW FILTERING`, email)
}

func (r *scyllaReturnRepository) TransitionStatus(ctx context.Context, id string, ch StatusChange) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}
	stmt, args := transitionStmt(uid, ch)
	applied, err := r.cas(ctx, stmt, args...)
	if err != nil {
		return err
	}
	if !applied {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// transitionStmt : UPDATE conditionnel sur le statut de départ
func transitionStmt(uid gocql.UUID, ch StatusChange) (string, []interface{}) {
	sets := []string{"status = ?", "updated_at = ?"}
	args := []interface{}{string(ch.To), ch.At}
	if ch.Decided {
		sets = append(sets, "decided_at = ?")
		args = append(args, ch.At)
	}
	if ch.ItemCondition != "" {
		sets = append(sets, "item_condition = ?")
		args = append(args, ch.ItemCondition)
	}
	if ch.RefundAmount != nil {
		sets = append(sets, "refund_amount = ?")
		args = append(args, *ch.RefundAmount)
	}
	args = append(args, uid, string(ch.From))
	return `UPDATE returns SET ` + strings.Join(sets, ", ") + ` WHERE return_id = ? IF status = ?`, args
}

func (r *scyllaReturnRepository) UpdateNotes(ctx context.Context, id, notes string, allowed []models.ReturnStatus, at time.Time) error {
	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	ok := false
	for _, st := range allowed {
		if current.Status == st {
			ok = true
			break
		}
	}
	if !ok {
		return ErrConflict
	}

	// le statut lu sert de condition : un changement concurrent fait échouer l'écriture
	applied, err := r.cas(ctx,
		`UPDATE returns SET notes = ?, updated_at = ? WHERE return_id = ? IF status = ?`,
		notes, at, current.ID, string(current.Status),
	)
	if err != nil {
		return err
	}
	if !applied {
		return ErrConflict
	}
	return nil
}

func (r *scyllaReturnRepository) missOrConflict(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

// --- Politiques de remboursement ---

type scyllaPolicyRepository struct {
	session *gocql.Session
	cas     casFunc
}

func policyDest(p *models.RefundPolicy) []interface{} {
	return []interface{}{&p.ID, &p.MerchantID, &p.ItemCondition, &p.RefundPercentage, &p.Description, &p.CreatedAt, &p.UpdatedAt}
}

func (r *scyllaPolicyRepository) ListByMerchant(ctx context.Context, merchantID string) ([]models.RefundPolicy, error) {
	uid, err := parseID(merchantID)
	if err != nil {
		return nil, nil
	}
	iter := r.session.Query(`SELECT `+policyColumns+` FROM refund_policies WHERE merchant_id = ?`, uid).
		WithContext(ctx).Iter()
	var list []models.RefundPolicy
	for {
		var p models.RefundPolicy
		if !iter.Scan(policyDest(&p)...) {
			break
		}
		list = append(list, p)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].RefundPercentage != list[j].RefundPercentage {
			return list[i].RefundPercentage > list[j].RefundPercentage
		}
		return list[i].ItemCondition < list[j].ItemCondition
	})
	return list, nil
}

func (r *scyllaPolicyRepository) Upsert(ctx context.Context, p *models.RefundPolicy) error {
	uid, err := parseID(p.MerchantID)
	if err != nil {
		return err
	}
	if err := r.write(ctx, uid, p); err != nil {
		return err
	}
	return r.session.Query(
		`SELECT `+policyColumns+` FROM refund_policies WHERE merchant_id = ? AND item_condition = ?`,
		uid, p.ItemCondition,
	).WithContext(ctx).Scan(policyDest(p)...)
}

// write insère la politique, ou met à jour celle qui existe déjà pour cet état.
// L'id et la date de création d'une politique existante sont conservés.
func (r *scyllaPolicyRepository) write(ctx context.Context, uid gocql.UUID, p *models.RefundPolicy) error {
	applied, err := r.cas(ctx,
		`INSERT INTO refund_policies (`+policyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS`,
		p.ID, uid, p.ItemCondition, p.RefundPercentage, p.Description, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil || applied {
		return err
	}
	applied, err = r.cas(ctx,
		`UPDATE refund_policies SET refund_percentage = ?, description = ?, updated_at = ?
		WHERE merchant_id = ? AND item_condition = ? IF EXISTS`,
		p.RefundPercentage, p.Description, p.UpdatedAt, uid, p.ItemCondition,
	)
	if err != nil {
		return err
	}
	if !applied {
		// supprimée entre les deux requêtes
		return ErrConflict
	}
	return nil
}

func (r *scyllaPolicyRepository) Delete(ctx context.Context, merchantID, condition string) error {
	uid, err := parseID(merchantID)
	if err != nil {
		return err
	}
	applied, err := r.cas(ctx,
		`DELETE FROM refund_policies WHERE merchant_id = ? AND item_condition = ? IF EXISTS`, uid, condition,
	)
	if err != nil {
		return err
	}
	if !applied {
		return ErrNotFound
	}
	return nil
}

// --- Enlèvements ---

type scyllaPickupRepository struct {
	session *gocql.Session
}

func pickupDest(p *models.Pickup) []interface{} {
	return []interface{}{
		&p.ID, &p.UserID, &p.ReturnID, &p.PickupDate, &p.TimeSlot, &p.Address, &p.City, &p.PostalCode,
		&p.PackageSize, &p.Status, &p.CourierTrackingNumber, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
	}
}

func (r *scyllaPickupRepository) Insert(ctx context.Context, p *models.Pickup) error {
	return r.session.Query(
		`INSERT INTO pickups (`+pickupColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.ReturnID, p.PickupDate, string(p.TimeSlot), p.Address, p.City, p.PostalCode,
		string(p.PackageSize), string(p.Status), p.CourierTrackingNumber, p.Notes, p.CreatedAt, p.UpdatedAt,
	).WithContext(ctx).Exec()
}

func (r *scyllaPickupRepository) Get(ctx context.Context, id string) (*models.Pickup, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var p models.Pickup
	err = r.session.Query(`SELECT `+pickupColumns+` FROM pickups WHERE pickup_id = ?`, uid).
		WithContext(ctx).Scan(pickupDest(&p)...)
	if err != nil {
		return nil, scyllaError(err)
	}
	return &p, nil
}

func (r *scyllaPickupRepository) Delete(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return nil
	}
	return r.session.Query(`DELETE FROM pickups WHERE pickup_id = ?`, uid).WithContext(ctx).Exec()
}

func (r *scyllaPickupRepository) ListByReturn(ctx context.Context, returnID string) ([]models.Pickup, error) {
	uid, err := parseID(returnID)
	if err != nil {
		return nil, nil
	}
	iter := r.session.Query(`SELECT `+pickupColumns+` FROM pickups WHERE return_id = ? ALLOW FILTERING`, uid).
		WithContext(ctx).Iter()
	var list []models.Pickup
	for {
		var p models.Pickup
		if !iter.Scan(pickupDest(&p)...) {
			break
		}
		list = append(list, p)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

// --- Profils ---

type scyllaProfileRepository struct {
	session *gocql.Session
}

func profileDest(p *models.Profile) []interface{} {
	return []interface{}{
		&p.ID, &p.Email, &p.Role, &p.FirstName, &p.LastName, &p.Phone, &p.Address, &p.City, &p.Country,
		&p.PostalCode, &p.StoreName, &p.StoreLogo, &p.StoreSlug, &p.CreatedAt, &p.UpdatedAt,
	}
}

func (r *scyllaProfileRepository) Create(ctx context.Context, p *models.Profile) error {
	applied, err := r.session.Query(
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS`,
		p.ID, p.Email, string(p.Role), p.FirstName, p.LastName, p.Phone, p.Address, p.City, p.Country,
		p.PostalCode, p.StoreName, p.StoreLogo, p.StoreSlug, p.CreatedAt, p.UpdatedAt,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return err
	}
	if !applied {
		return ErrDuplicate
	}
	return nil
}

func (r *scyllaProfileRepository) Get(ctx context.Context, id string) (*models.Profile, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var p models.Profile
	err = r.session.Query(`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, uid).
		WithContext(ctx).Scan(profileDest(&p)...)
	if err != nil {
		return nil, scyllaError(err)
	}
	return &p, nil
}

func (r *scyllaProfileRepository) GetBySlug(ctx context.Context, slug string) (*models.Profile, error) {
	var userID string
	err := r.session.Query(`SELECT user_id FROM profiles_by_slug WHERE store_slug = ?`, slug).
		WithContext(ctx).Scan(&userID)
	if err != nil {
		return nil, scyllaError(err)
	}
	return r.Get(ctx, userID)
}

func (r *scyllaProfileRepository) Update(ctx context.Context, p *models.Profile) error {
	uid, err := parseID(p.ID)
	if err != nil {
		return err
	}
	applied, err := r.session.Query(
		`UPDATE profiles SET first_name = ?, last_name = ?, phone = ?, address = ?, city = ?, country = ?,
		postal_code = ?, store_name = ?, store_logo = ?, updated_at = ? WHERE user_id = ? IF EXISTS`,
		p.FirstName, p.LastName, p.Phone, p.Address, p.City, p.Country,
		p.PostalCode, p.StoreName, p.StoreLogo, p.UpdatedAt, uid,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return err
	}
	if !applied {
		return ErrNotFound
	}
	return nil
}

// ClaimSlug réserve le slug dans profiles_by_slug (IF NOT EXISTS) avant de l'écrire sur le profil
func (r *scyllaProfileRepository) ClaimSlug(ctx context.Context, userID, slug string) error {
	uid, err := parseID(userID)
	if err != nil {
		return err
	}
	current, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}

	existing := map[string]interface{}{}
	applied, err := r.session.Query(
		`INSERT INTO profiles_by_slug (store_slug, user_id) VALUES (?, ?) IF NOT EXISTS`, slug, uid,
	).WithContext(ctx).MapScanCAS(existing)
	if err != nil {
		return err
	}
	if !applied {
		if owner, ok := existing["user_id"].(gocql.UUID); ok && owner == uid {
			return nil
		}
		return ErrDuplicate
	}

	applied, err = r.session.Query(
		`UPDATE profiles SET store_slug = ?, updated_at = ? WHERE user_id = ? IF EXISTS`,
		slug, time.Now().UTC(), uid,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil || !applied {
		_ = r.session.Query(`DELETE FROM profiles_by_slug WHERE store_slug = ?`, slug).WithContext(ctx).Exec()
		if err != nil {
			return err
		}
		return ErrNotFound
	}

	if old := current.Slug(); old != "" && old != slug {
		_, err = r.session.Query(`DELETE FROM profiles_by_slug WHERE store_slug = ? IF user_id = ?`, old, uid).
			WithContext(ctx).MapScanCAS(map[string]interface{}{})
		if err != nil {
			return fmt.Errorf("libération de l'ancien slug %s: %w", old, err)
		}
	}
	return nil
}

func (r *scyllaProfileRepository) ListMerchants(ctx context.Context) ([]models.Profile, error) {
	iter := r.session.Query(`SELECT `+profileColumns+` FROM profiles WHERE role = ? ALLOW FILTERING`, string(models.RoleMerchant)).
		WithContext(ctx).Iter()
	var list []models.Profile
	for {
		var p models.Profile
		if !iter.Scan(profileDest(&p)...) {
			break
		}
		if p.Slug() != "" {
			list = append(list, p)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StoreName < list[j].StoreName })
	return list, nil
}

// --- Utilisateurs ---

type scyllaUserRepository struct {
	session *gocql.Session
}

func (r *scyllaUserRepository) Create(ctx context.Context, u *models.User) error {
	uid, err := parseID(u.ID)
	if err != nil {
		return fmt.Errorf("user_id invalide: %s", u.ID)
	}
	applied, err := r.session.Query(
		`INSERT INTO users_by_email (email, user_id) VALUES (?, ?) IF NOT EXISTS`, u.Email, uid,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return err
	}
	if !applied {
		return ErrDuplicate
	}
	return r.session.Query(
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		uid, u.Email, u.Password, u.Provider, u.ProviderID, u.CreatedAt,
	).WithContext(ctx).Exec()
}

func (r *scyllaUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var userID string
	err := r.session.Query(`SELECT user_id FROM users_by_email WHERE email = ?`, email).
		WithContext(ctx).Scan(&userID)
	if err != nil {
		return nil, scyllaError(err)
	}
	return r.GetByID(ctx, userID)
}

func (r *scyllaUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var u models.User
	err = r.session.Query(`SELECT `+userColumns+` FROM users WHERE user_id = ?`, uid).
		WithContext(ctx).Scan(&u.ID, &u.Email, &u.Password, &u.Provider, &u.ProviderID, &u.CreatedAt)
	if err != nil {
		return nil, scyllaError(err)
	}
	return &u, nil
}

func (r *scyllaUserRepository) Delete(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return nil
	}
	u, err := r.GetByID(ctx, id)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM users WHERE user_id = ?`, uid)
	batch.Query(`DELETE FROM users_by_email WHERE email = ?`, u.Email)
	return r.session.ExecuteBatch(batch)
}

// --- Audit ---

type scyllaAuditRepository struct {
	session *gocql.Session
}

func (r *scyllaAuditRepository) Insert(ctx context.Context, l *models.AuditLog) error {
	if l.ID == "" {
		l.ID = gocql.TimeUUID().String()
	}
	return r.session.Query(
		`INSERT INTO audit_logs (log_id, user_id, user_email, action, resource, resource_id, ip_address,
		user_agent, success, error_msg, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.UserEmail, l.Action, l.Resource, l.ResourceID, l.IPAddress,
		l.UserAgent, l.Success, l.ErrorMsg, l.Timestamp,
	).WithContext(ctx).Exec()
}
