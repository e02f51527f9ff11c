package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"returnbox_back_end/internal/auth"
	"returnbox_back_end/internal/models"
	"returnbox_back_end/internal/returns"
)

type fakeAuth map[string]*returns.Session

func (f fakeAuth) Authenticate(ctx context.Context, raw string) (*returns.Session, *auth.Claims, error) {
	if s, ok := f[raw]; ok {
		return s, &auth.Claims{}, nil
	}
	return nil, nil, errors.New("inconnu")
}

var tokens = fakeAuth{
	"merchant": {UserID: "m1", Email: "m@example.com", Role: models.RoleMerchant},
	"customer": {UserID: "c1", Email: "c@example.com", Role: models.RoleCustomer},
}

func init() { gin.SetMode(gin.TestMode) }

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthAndRoleGuards(t *testing.T) {
	r := gin.New()
	r.GET("/merchant", AuthRequired(tokens), RequireMerchant(), func(c *gin.Context) {
		c.String(http.StatusOK, SessionFrom(c).UserID)
	})

	tests := []struct {
		name  string
		token string
		code  int
	}{
		{"sans token", "", http.StatusUnauthorized},
		{"token inconnu", "forged", http.StatusUnauthorized},
		{"client", "customer", http.StatusForbidden},
		{"marchand", "merchant", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, do(r, http.MethodGet, "/merchant", tt.token).Code)
		})
	}
}

func TestOptionalAuthStaysAnonymous(t *testing.T) {
	r := gin.New()
	r.GET("/public", OptionalAuth(tokens), func(c *gin.Context) {
		if s := SessionFrom(c); s != nil {
			c.String(http.StatusOK, s.Email)
			return
		}
		c.String(http.StatusOK, "anonyme")
	})

	assert.Equal(t, "anonyme", do(r, http.MethodGet, "/public", "").Body.String())
	assert.Equal(t, "anonyme", do(r, http.MethodGet, "/public", "forged").Body.String())
	assert.Equal(t, "c@example.com", do(r, http.MethodGet, "/public", "customer").Body.String())
}

func TestRateLimiterWithoutRedisLetsEverythingThrough(t *testing.T) {
	l := NewRateLimiter(nil)
	r := gin.New()
	r.POST("/login", l.Login(), func(c *gin.Context) { c.Status(http.StatusUnauthorized) })
	r.GET("/api", l.API(), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < LoginMaxAttempts*2; i++ {
		assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/login", "").Code)
	}
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api", "").Code)
}

type memAudit struct {
	mu   sync.Mutex
	logs []models.AuditLog
	done chan struct{}
}

func (m *memAudit) Insert(ctx context.Context, l *models.AuditLog) error {
	m.mu.Lock()
	m.logs = append(m.logs, *l)
	m.mu.Unlock()
	m.done <- struct{}{}
	return nil
}

func TestAuditRecordsOutcome(t *testing.T) {
	repo := &memAudit{done: make(chan struct{}, 2)}
	a := NewAuditor(repo)

	r := gin.New()
	r.POST("/returns/:id/decision", AuthRequired(tokens), a.Audit(ActionReturnDecision, ResourceReturn), func(c *gin.Context) {
		if c.Query("fail") != "" {
			c.Status(http.StatusConflict)
			return
		}
		c.Status(http.StatusOK)
	})

	do(r, http.MethodPost, "/returns/r1/decision", "merchant")
	do(r, http.MethodPost, "/returns/r2/decision?fail=1", "merchant")
	for i := 0; i < 2; i++ {
		select {
		case <-repo.done:
		case <-time.After(2 * time.Second):
			t.Fatal("audit non écrit")
		}
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Len(t, repo.logs, 2)
	byID := map[string]models.AuditLog{}
	for _, l := range repo.logs {
		byID[l.ResourceID] = l
	}
	assert.True(t, byID["r1"].Success)
	assert.Equal(t, "m1", byID["r1"].UserID)
	assert.False(t, byID["r2"].Success)
	assert.NotEmpty(t, byID["r2"].ID)
}
