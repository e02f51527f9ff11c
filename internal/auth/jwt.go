package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type tokenKind string

const (
	accessToken  tokenKind = "access"
	refreshToken tokenKind = "refresh"
)

// Claims : pas de rôle dans le token, il est relu dans le profil à chaque requête
type Claims struct {
	Email string    `json:"email"`
	Kind  tokenKind `json:"kind"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string { return c.Subject }

// Remaining : durée de vie restante, utilisée pour la blacklist
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

type signer struct {
	secret []byte
	issuer string
}

func (s signer) sign(userID, email string, kind tokenKind, now time.Time, ttl time.Duration) (string, *Claims, error) {
	claims := &Claims{
		Email: email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

func (s signer) parse(raw string, kind tokenKind, now time.Time) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("méthode de signature inattendue: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("token %s attendu, %s reçu", kind, claims.Kind)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("sub ou jti manquant")
	}
	return claims, nil
}
