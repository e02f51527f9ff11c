package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"returnbox_back_end/internal/auth"
	"returnbox_back_end/internal/returns"
)

const (
	sessionKey = "session"
	claimsKey  = "claims"
)

type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*returns.Session, *auth.Claims, error)
}

// AuthRequired exige un token d'accès valide et place la session dans le contexte gin
func AuthRequired(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token manquant"})
			return
		}

		sess, claims, err := a.Authenticate(c.Request.Context(), raw)
		if err != nil {
			zap.S().Debugf("❌ Token refusé: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token invalide"})
			return
		}
		setSession(c, sess, claims)
		c.Next()
	}
}

// OptionalAuth : la session est renseignée si un token valide est présent, sinon la requête continue anonyme
func OptionalAuth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := bearerToken(c); ok {
			if sess, claims, err := a.Authenticate(c.Request.Context(), raw); err == nil {
				setSession(c, sess, claims)
			}
		}
		c.Next()
	}
}

// SessionFrom retourne nil pour une requête anonyme
func SessionFrom(c *gin.Context) *returns.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*returns.Session)
	return sess
}

func ClaimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

func setSession(c *gin.Context, sess *returns.Session, claims *auth.Claims) {
	c.Set(sessionKey, sess)
	c.Set(claimsKey, claims)
	c.Set("user_id", sess.UserID)
	c.Set("email", sess.Email)
	c.Set("role", string(sess.Role))
}

// bearerToken lit l'en-tête Authorization, ou ?token= pour les websockets (le navigateur ne peut pas poser d'en-tête)
func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if c.IsWebsocket() {
		if t := c.Query("token"); t != "" {
			return t, true
		}
	}
	return "", false
}
