package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"returnbox_back_end/internal/middleware"
)

// MyReturns : demandes déposées avec l'email du compte
func (h *Handler) MyReturns(c *gin.Context) {
	list, err := h.Returns.ListForCustomer(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"returns": list})
}

func (h *Handler) GetReturn(c *gin.Context) {
	ret, err := h.Returns.Get(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"return": ret})
}
