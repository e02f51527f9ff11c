package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"returnbox_back_end/internal/middleware"
	"returnbox_back_end/internal/models"
)

// ListPolicies : politiques enregistrées et politiques effectives (table fixe si aucune)
func (h *Handler) ListPolicies(c *gin.Context) {
	ctx := c.Request.Context()
	sess := middleware.SessionFrom(c)

	stored, err := h.Returns.ListPolicies(ctx, sess)
	if err != nil {
		respondError(c, err)
		return
	}
	effective, err := h.Returns.PoliciesFor(ctx, sess.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"policies":      stored,
		"effective":     effective,
		"condition_set": h.Returns.Conditions(),
		"conditions":    h.Returns.Conditions().Conditions(),
	})
}

func (h *Handler) PutPolicy(c *gin.Context) {
	var input struct {
		RefundPercentage float64 `json:"refund_percentage"`
		Description      string  `json:"description"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Politique invalide")
		return
	}

	p, err := h.Returns.SetPolicy(c.Request.Context(), middleware.SessionFrom(c), models.RefundPolicy{
		ItemCondition:    c.Param("condition"),
		RefundPercentage: input.RefundPercentage,
		Description:      input.Description,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"policy": p})
}

func (h *Handler) DeletePolicy(c *gin.Context) {
	if err := h.Returns.DeletePolicy(c.Request.Context(), middleware.SessionFrom(c), c.Param("condition")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Politique supprimée"})
}
