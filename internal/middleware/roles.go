package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"returnbox_back_end/internal/models"
)

// RequireRole s'utilise après AuthRequired
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := SessionFrom(c)
		if sess == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
			return
		}
		if sess.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": forbiddenMessages[role]})
			return
		}
		c.Next()
	}
}

var forbiddenMessages = map[models.Role]string{
	models.RoleMerchant: "Accès réservé aux marchands",
	models.RoleCustomer: "Accès réservé aux clients",
}

func RequireMerchant() gin.HandlerFunc { return RequireRole(models.RoleMerchant) }

func RequireCustomer() gin.HandlerFunc { return RequireRole(models.RoleCustomer) }
