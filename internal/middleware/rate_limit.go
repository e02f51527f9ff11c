package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"returnbox_back_end/internal/cache"
)

const (
	LoginMaxAttempts    = 5
	RegisterMaxAttempts = 3
	SubmitMaxRequests   = 10 // demandes de retour par IP et par heure
	APIMaxRequests      = 100

	LoginCooldown    = 15 * time.Minute
	RegisterCooldown = 30 * time.Minute
	SubmitWindow     = time.Hour
	APIWindow        = time.Minute
)

// RateLimiter : sans Redis, aucune limite n'est appliquée
type RateLimiter struct {
	cache *cache.Cache
}

func NewRateLimiter(c *cache.Cache) *RateLimiter {
	return &RateLimiter{cache: c}
}

func (l *RateLimiter) enabled() bool { return l != nil && l.cache.Enabled() }

// Login compte les échecs (401) par email et bloque après LoginMaxAttempts
func (l *RateLimiter) Login() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.enabled() {
			c.Next()
			return
		}

		bodyBytes, _ := io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		var input struct {
			Email string `json:"email"`
		}
		if err := json.Unmarshal(bodyBytes, &input); err != nil || input.Email == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := "login_attempts:" + strings.ToLower(strings.TrimSpace(input.Email))

		if attempts, ttl := l.cache.RateLimitStatus(ctx, key); attempts >= LoginMaxAttempts {
			tooMany(c, fmt.Sprintf("Trop de tentatives échouées. Réessayez dans %d minutes", minutes(ttl)), ttl)
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusUnauthorized:
			if _, _, err := l.cache.IncrementRateLimit(ctx, key, LoginCooldown); err != nil {
				zap.S().Warnf("⚠️ Compteur de login indisponible: %v", err)
			}
		case http.StatusOK:
			l.cache.ResetRateLimit(ctx, key)
		}
	}
}

// Register limite les inscriptions réussies par IP
func (l *RateLimiter) Register() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.enabled() {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := "register_attempts:" + c.ClientIP()

		if attempts, ttl := l.cache.RateLimitStatus(ctx, key); attempts >= RegisterMaxAttempts {
			tooMany(c, fmt.Sprintf("Trop d'inscriptions. Réessayez dans %d minutes", minutes(ttl)), ttl)
			return
		}

		c.Next()

		if c.Writer.Status() == http.StatusCreated {
			if _, _, err := l.cache.IncrementRateLimit(ctx, key, RegisterCooldown); err != nil {
				zap.S().Warnf("⚠️ Compteur d'inscription indisponible: %v", err)
			}
		}
	}
}

// Window limite le nombre de requêtes par IP sur une fenêtre fixe
func (l *RateLimiter) Window(name string, max int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.enabled() {
			c.Next()
			return
		}
		key := name + ":" + c.ClientIP()
		n, ttl, err := l.cache.IncrementRateLimit(c.Request.Context(), key, window)
		if err != nil {
			zap.S().Warnf("⚠️ Rate limit %s indisponible: %v", name, err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", max))
		if n > max {
			tooMany(c, "Trop de requêtes. Réessayez plus tard", ttl)
			return
		}
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", max-n))
		c.Next()
	}
}

func (l *RateLimiter) Submit() gin.HandlerFunc {
	return l.Window("return_submit", SubmitMaxRequests, SubmitWindow)
}

func (l *RateLimiter) API() gin.HandlerFunc {
	return l.Window("api_requests", APIMaxRequests, APIWindow)
}

func tooMany(c *gin.Context, msg string, retryAfter time.Duration) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       msg,
		"retry_after": int(retryAfter.Seconds()),
	})
}

func minutes(d time.Duration) int {
	m := int(d.Minutes())
	if m < 1 {
		return 1
	}
	return m
}
