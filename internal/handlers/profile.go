package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"returnbox_back_end/internal/middleware"
	"returnbox_back_end/internal/returns"
)

func (h *Handler) GetProfile(c *gin.Context) {
	p, err := h.Returns.GetProfile(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var input returns.ProfileUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Profil invalide")
		return
	}

	ctx := c.Request.Context()
	sess := middleware.SessionFrom(c)
	p, err := h.Returns.UpdateProfile(ctx, sess, input)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Cache.InvalidateProfile(ctx, sess.UserID)
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

// SetupStore : multipart store_name, store_slug et logo facultatif
func (h *Handler) SetupStore(c *gin.Context) {
	var input returns.StoreSetup
	if err := c.ShouldBind(&input); err != nil {
		badRequest(c, "Formulaire invalide")
		return
	}

	logo, closeFn, err := formUpload(c, "logo")
	if err != nil {
		badRequest(c, "Logo illisible")
		return
	}
	defer closeFn()

	ctx := c.Request.Context()
	sess := middleware.SessionFrom(c)
	p, err := h.Returns.SetupStore(ctx, sess, input, logo)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Cache.InvalidateProfile(ctx, sess.UserID)
	c.JSON(http.StatusOK, gin.H{"profile": p, "store": p.Store()})
}
