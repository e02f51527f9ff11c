package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"returnbox_back_end/internal/models"
	"returnbox_back_end/internal/repository"
)

// Actions auditées
const (
	ActionLogin          = "auth.login"
	ActionLogout         = "auth.logout"
	ActionReturnDecision = "return.decision"
	ActionReturnNotes    = "return.notes"
	ActionReturnPickup   = "return.pickup"
	ActionReturnComplete = "return.complete"
	ActionPolicyUpdate   = "policy.update"
	ActionPolicyDelete   = "policy.delete"
	ActionStoreSetup     = "store.setup"
	ActionProfileUpdate  = "profile.update"
)

const (
	ResourceAuth    = "auth"
	ResourceReturn  = "return"
	ResourcePolicy  = "refund_policy"
	ResourceProfile = "profile"
)

type Auditor struct {
	repo repository.AuditRepository
}

func NewAuditor(repo repository.AuditRepository) *Auditor {
	return &Auditor{repo: repo}
}

// Audit enregistre l'action après le handler, succès ou échec, sans bloquer la réponse
func (a *Auditor) Audit(action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if a == nil || a.repo == nil {
			return
		}

		status := c.Writer.Status()
		entry := models.AuditLog{
			ID:         gocql.TimeUUID().String(),
			UserID:     c.GetString("user_id"),
			UserEmail:  c.GetString("email"),
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID(c),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
			Success:    status >= 200 && status < 300,
			Timestamp:  time.Now().UTC(),
		}
		if !entry.Success {
			if len(c.Errors) > 0 {
				entry.ErrorMsg = c.Errors.Last().Error()
			} else {
				entry.ErrorMsg = "Action échouée"
			}
		}

		ctx := context.WithoutCancel(c.Request.Context())
		go func() {
			if err := a.repo.Insert(ctx, &entry); err != nil {
				zap.S().Errorf("❌ Erreur enregistrement log audit: %v", err)
			}
		}()
	}
}

func resourceID(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	return c.Param("condition")
}
