package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/markbates/goth/gothic"
	"go.uber.org/zap"

	"returnbox_back_end/internal/models"
)

const oauthRoleKey = "signup_role"

// BeginOAuth redirige vers le fournisseur. ?role=merchant ne sert qu'à la première connexion.
func (h *Handler) BeginOAuth(c *gin.Context) {
	withProvider(c)

	role := models.Role(c.Query("role"))
	if role != "" && !role.Valid() {
		badRequest(c, "Rôle invalide (customer ou merchant)")
		return
	}
	if role != "" {
		if err := gothic.StoreInSession(oauthRoleKey, string(role), c.Request, c.Writer); err != nil {
			zap.S().Warnf("⚠️ Rôle non conservé en session: %v", err)
		}
	}
	gothic.BeginAuthHandler(c.Writer, c.Request)
}

func (h *Handler) OAuthCallback(c *gin.Context) {
	withProvider(c)

	gu, err := gothic.CompleteUserAuth(c.Writer, c.Request)
	if err != nil {
		badRequest(c, "Authentification refusée par le fournisseur")
		return
	}
	role, _ := gothic.GetFromSession(oauthRoleKey, c.Request)

	res, err := h.Auth.SignInOAuth(c.Request.Context(), gu, models.Role(role))
	if err != nil {
		respondError(c, err)
		return
	}
	_ = gothic.Logout(c.Writer, c.Request)
	c.JSON(http.StatusOK, res)
}

// withProvider recopie :provider dans la query, où gothic le cherche
func withProvider(c *gin.Context) {
	q := c.Request.URL.Query()
	q.Set("provider", c.Param("provider"))
	c.Request.URL.RawQuery = q.Encode()
}
