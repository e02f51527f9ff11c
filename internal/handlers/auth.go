package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"returnbox_back_end/internal/auth"
	"returnbox_back_end/internal/middleware"
)

func (h *Handler) Register(c *gin.Context) {
	var input auth.SignUpDetails
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Email valide et mot de passe de 8 caractères minimum requis")
		return
	}

	res, err := h.Auth.SignUp(c.Request.Context(), input)
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Cet email est déjà utilisé"})
		return
	case errors.Is(err, auth.ErrInvalidRole):
		badRequest(c, "Rôle invalide (customer ou merchant)")
		return
	case err != nil:
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Email et mot de passe requis")
		return
	}

	res, err := h.Auth.SignIn(c.Request.Context(), input.Email, input.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Email ou mot de passe incorrect"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Refresh(c *gin.Context) {
	var input struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "refresh_token requis")
		return
	}

	res, err := h.Auth.Refresh(c.Request.Context(), input.RefreshToken)
	if errors.Is(err, auth.ErrInvalidToken) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expirée, reconnectez-vous"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Logout(c *gin.Context) {
	var input struct {
		RefreshToken string `json:"refresh_token"`
		Everywhere   bool   `json:"everywhere"`
	}
	// corps facultatif
	_ = c.ShouldBindJSON(&input)

	if err := h.Auth.SignOut(c.Request.Context(), middleware.ClaimsFrom(c), input.RefreshToken, input.Everywhere); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Déconnexion réussie"})
}

// Me retourne la session courante (rôle relu dans le profil)
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.SessionFrom(c))
}
