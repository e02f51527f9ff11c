package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/markbates/goth"
	"go.uber.org/zap"

	"returnbox_back_end/internal/cache"
	"returnbox_back_end/internal/config"
	"returnbox_back_end/internal/events"
	"returnbox_back_end/internal/models"
	"returnbox_back_end/internal/repository"
	"returnbox_back_end/internal/returns"
)

var (
	ErrInvalidCredentials = errors.New("email ou mot de passe incorrect")
	ErrEmailTaken         = errors.New("cet email est déjà utilisé")
	ErrInvalidToken       = errors.New("token invalide ou expiré")
	ErrInvalidRole        = errors.New("rôle invalide")
)

// SignUpDetails : metadata d'inscription, le rôle choisi ici est le seul qui fera foi
type SignUpDetails struct {
	Email     string      `json:"email" binding:"required,email,max=255"`
	Password  string      `json:"password" binding:"required,min=8,max=128"`
	Role      models.Role `json:"role"`
	FirstName string      `json:"first_name" binding:"max=128"`
	LastName  string      `json:"last_name" binding:"max=128"`
}

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type Result struct {
	Tokens  Tokens          `json:"tokens"`
	Session returns.Session `json:"session"`
}

type Service struct {
	store      repository.Store
	cache      *cache.Cache
	bus        *events.Bus
	signer     signer
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewService : cache et bus peuvent être nil (Redis absent)
func NewService(store repository.Store, c *cache.Cache, bus *events.Bus, cfg config.AuthSettings) *Service {
	return &Service{
		store:      store,
		cache:      c,
		bus:        bus,
		signer:     signer{secret: []byte(cfg.JWTSecret), issuer: "returnbox"},
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
	}
}

func (s *Service) SignUp(ctx context.Context, d SignUpDetails) (*Result, error) {
	email := strings.ToLower(strings.TrimSpace(d.Email))
	if d.Role == "" {
		d.Role = models.RoleCustomer
	}
	if !d.Role.Valid() {
		return nil, ErrInvalidRole
	}

	hash, err := HashPassword(d.Password)
	if err != nil {
		return nil, fmt.Errorf("hash du mot de passe: %w", err)
	}

	now := s.now().UTC()
	user := &models.User{ID: uuid.NewString(), Email: email, Password: hash, Provider: "email", CreatedAt: now}
	profile := &models.Profile{
		ID: user.ID, Email: email, Role: d.Role,
		FirstName: strings.TrimSpace(d.FirstName), LastName: strings.TrimSpace(d.LastName),
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.createAccount(ctx, user, profile); err != nil {
		return nil, err
	}

	zap.S().Infof("👤 Nouveau compte %s (%s)", email, d.Role)
	return s.openSession(ctx, user.ID, email, d.Role)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Result, error) {
	user, err := s.store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lecture utilisateur: %w", err)
	}
	// compte social sans mot de passe
	if user.Password == "" {
		return nil, ErrInvalidCredentials
	}

	ok, err := VerifyPassword(password, user.Password)
	if err != nil {
		zap.S().Warnf("⚠️ Hash illisible pour %s: %v", user.ID, err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	profile, err := s.profile(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.openSession(ctx, user.ID, user.Email, profile.Role)
}

// SignInOAuth connecte (ou inscrit au premier passage) un utilisateur google / facebook.
// role ne sert qu'à la création du compte.
func (s *Service) SignInOAuth(ctx context.Context, gu goth.User, role models.Role) (*Result, error) {
	email := strings.ToLower(strings.TrimSpace(gu.Email))
	if email == "" {
		return nil, fmt.Errorf("le fournisseur %s n'a pas transmis d'email", gu.Provider)
	}

	user, err := s.store.Users().GetByEmail(ctx, email)
	switch {
	case err == nil:
		profile, err := s.profile(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		return s.openSession(ctx, user.ID, user.Email, profile.Role)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("lecture utilisateur: %w", err)
	}

	if role == "" {
		role = models.RoleCustomer
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	now := s.now().UTC()
	user = &models.User{ID: uuid.NewString(), Email: email, Provider: gu.Provider, ProviderID: gu.UserID, CreatedAt: now}
	profile := &models.Profile{
		ID: user.ID, Email: email, Role: role,
		FirstName: gu.FirstName, LastName: gu.LastName,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.createAccount(ctx, user, profile); err != nil {
		return nil, err
	}
	zap.S().Infof("👤 Nouveau compte %s via %s (%s)", email, gu.Provider, role)
	return s.openSession(ctx, user.ID, email, role)
}

// Refresh fait tourner le refresh token : l'ancien est révoqué
func (s *Service) Refresh(ctx context.Context, raw string) (*Result, error) {
	claims, err := s.signer.parse(raw, refreshToken, s.now())
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !s.cache.RefreshTokenValid(ctx, claims.UserID(), claims.ID) {
		return nil, ErrInvalidToken
	}
	if err := s.cache.DeleteRefreshToken(ctx, claims.UserID(), claims.ID); err != nil {
		zap.S().Warnf("⚠️ Révocation du refresh token %s impossible: %v", claims.ID, err)
	}

	profile, err := s.profile(ctx, claims.UserID())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	res, err := s.issue(ctx, claims.UserID(), profile.Email, profile.Role)
	if err != nil {
		return nil, err
	}
	s.bus.PublishSession(ctx, events.SessionEvent{Type: events.SessionRefreshed, UserID: claims.UserID(), Role: profile.Role})
	return res, nil
}

// SignOut révoque le token d'accès courant et, si fourni, le refresh token de l'appareil.
// everywhere révoque tous les refresh tokens de l'utilisateur.
func (s *Service) SignOut(ctx context.Context, access *Claims, refresh string, everywhere bool) error {
	if access == nil {
		return ErrInvalidToken
	}
	uid := access.UserID()
	if err := s.cache.BlacklistToken(ctx, access.ID, access.Remaining(s.now())); err != nil {
		return fmt.Errorf("blacklist: %w", err)
	}

	switch {
	case everywhere:
		if err := s.cache.DeleteAllRefreshTokens(ctx, uid); err != nil {
			return fmt.Errorf("révocation des refresh tokens: %w", err)
		}
	case refresh != "":
		if rc, err := s.signer.parse(refresh, refreshToken, s.now()); err == nil && rc.UserID() == uid {
			if err := s.cache.DeleteRefreshToken(ctx, uid, rc.ID); err != nil {
				return fmt.Errorf("révocation du refresh token: %w", err)
			}
		}
	}

	s.bus.PublishSession(ctx, events.SessionEvent{Type: events.SessionSignedOut, UserID: uid})
	zap.S().Infof("👋 Déconnexion de %s", uid)
	return nil
}

// Authenticate valide un token d'accès et reconstruit la session. Le rôle vient du profil.
func (s *Service) Authenticate(ctx context.Context, raw string) (*returns.Session, *Claims, error) {
	claims, err := s.signer.parse(raw, accessToken, s.now())
	if err != nil {
		return nil, nil, ErrInvalidToken
	}
	if s.cache.IsTokenBlacklisted(ctx, claims.ID) {
		return nil, nil, ErrInvalidToken
	}

	profile, err := s.profile(ctx, claims.UserID())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrInvalidToken
	}
	if err != nil {
		return nil, nil, err
	}
	return &returns.Session{UserID: profile.ID, Email: profile.Email, Role: profile.Role}, claims, nil
}

func (s *Service) createAccount(ctx context.Context, user *models.User, profile *models.Profile) error {
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrEmailTaken
		}
		return fmt.Errorf("création utilisateur: %w", err)
	}
	if err := s.store.Profiles().Create(ctx, profile); err != nil {
		// sans profil le compte est inutilisable : on libère l'email
		if delErr := s.store.Users().Delete(context.WithoutCancel(ctx), user.ID); delErr != nil {
			zap.S().Errorf("❌ Utilisateur %s orphelin (%s): %v", user.ID, user.Email, delErr)
			return fmt.Errorf("création profil de %s: %w", user.ID, errors.Join(err, delErr))
		}
		return fmt.Errorf("création profil de %s: %w", user.ID, err)
	}
	return nil
}

func (s *Service) profile(ctx context.Context, userID string) (*models.Profile, error) {
	if p, ok := s.cache.GetProfile(ctx, userID); ok {
		return p, nil
	}
	p, err := s.store.Profiles().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.SetProfile(ctx, p)
	return p, nil
}

func (s *Service) openSession(ctx context.Context, userID, email string, role models.Role) (*Result, error) {
	res, err := s.issue(ctx, userID, email, role)
	if err != nil {
		return nil, err
	}
	s.bus.PublishSession(ctx, events.SessionEvent{Type: events.SessionSignedIn, UserID: userID, Role: role})
	return res, nil
}

func (s *Service) issue(ctx context.Context, userID, email string, role models.Role) (*Result, error) {
	now := s.now()
	access, _, err := s.signer.sign(userID, email, accessToken, now, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("signature du token: %w", err)
	}
	refresh, rc, err := s.signer.sign(userID, email, refreshToken, now, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("signature du refresh token: %w", err)
	}
	if err := s.cache.StoreRefreshToken(ctx, userID, rc.ID, s.refreshTTL); err != nil {
		return nil, fmt.Errorf("stockage du refresh token: %w", err)
	}

	return &Result{
		Tokens: Tokens{
			AccessToken:  access,
			RefreshToken: refresh,
			TokenType:    "Bearer",
			ExpiresIn:    int64(s.accessTTL.Seconds()),
		},
		Session: returns.Session{UserID: userID, Email: email, Role: role},
	}, nil
}
