package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"returnbox_back_end/internal/labels"
	"returnbox_back_end/internal/middleware"
	"returnbox_back_end/internal/models"
	"returnbox_back_end/internal/returns"
	"returnbox_back_end/internal/search"
)

const photoURLTTL = 15 * time.Minute

// ListMerchantReturns : tableau de bord, ?status= pour filtrer. Les listes passent par le cache Redis.
func (h *Handler) ListMerchantReturns(c *gin.Context) {
	ctx := c.Request.Context()
	sess := middleware.SessionFrom(c)
	status := models.ReturnStatus(c.Query("status"))

	cached, key, ok := h.Cache.GetReturnList(ctx, sess.UserID, status)
	if ok {
		c.Header("X-Cache", "HIT")
		c.JSON(http.StatusOK, gin.H{"returns": cached})
		return
	}

	list, err := h.Returns.ListForMerchant(ctx, sess, status)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Cache.SetReturnList(ctx, key, list)
	c.JSON(http.StatusOK, gin.H{"returns": list})
}

// SearchReturns : ?q=&status=. Sans Elasticsearch on filtre la liste en mémoire.
func (h *Handler) SearchReturns(c *gin.Context) {
	ctx := c.Request.Context()
	sess := middleware.SessionFrom(c)
	q := c.Query("q")
	status := models.ReturnStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		badRequest(c, "Statut inconnu")
		return
	}

	if h.Search != nil {
		found, err := h.Search.Search(ctx, sess.UserID, q, status)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"returns": found})
			return
		}
		if !errors.Is(err, search.ErrDisabled) {
			zap.S().Warnf("⚠️ Recherche Elastic en échec, repli sur la base: %v", err)
		}
	}

	list, err := h.Returns.ListForMerchant(ctx, sess, status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"returns": filterReturns(list, q)})
}

func filterReturns(list []models.ReturnRequest, q string) []models.ReturnRequest {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return list
	}
	out := make([]models.ReturnRequest, 0, len(list))
	for _, r := range list {
		for _, field := range []string{r.OrderID, r.ProductName, r.Reason, r.CustomerEmail, r.Notes} {
			if strings.Contains(strings.ToLower(field), q) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func (h *Handler) Decide(c *gin.Context) {
	var input struct {
		Decision models.ReturnStatus `json:"decision" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "decision requise (approved ou rejected)")
		return
	}

	ret, err := h.Returns.Decide(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"), input.Decision)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"return": ret})
}

func (h *Handler) AttachNotes(c *gin.Context) {
	var input struct {
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "notes invalides")
		return
	}

	ret, err := h.Returns.AttachNotes(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"), input.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"return": ret})
}

func (h *Handler) SchedulePickup(c *gin.Context) {
	var input returns.PickupDetails
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Données d'enlèvement invalides")
		return
	}

	pickup, err := h.Returns.SchedulePickup(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{"pickup": pickup}
	if qr, err := labels.PickupQRDataURL(pickup); err == nil {
		body["label_qr"] = qr
	} else {
		zap.S().Warnf("⚠️ QR de l'étiquette %s non généré: %v", pickup.ID, err)
	}
	c.JSON(http.StatusCreated, body)
}

func (h *Handler) Complete(c *gin.Context) {
	var input returns.CompleteDetails
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Données invalides")
		return
	}

	ret, err := h.Returns.Complete(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"return": ret})
}

func (h *Handler) ListPickups(c *gin.Context) {
	list, err := h.Returns.PickupsForReturn(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pickups": list})
}

// PickupLabel : PNG du QR code à coller sur le colis
func (h *Handler) PickupLabel(c *gin.Context) {
	pickup, err := h.Returns.GetPickup(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	png, err := labels.PickupQR(pickup, labels.DefaultSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="etiquette-`+pickup.CourierTrackingNumber+`.png"`)
	c.Data(http.StatusOK, "image/png", png)
}

// ReturnPhoto redirige vers une URL signée de la photo (bucket privé)
func (h *Handler) ReturnPhoto(c *gin.Context) {
	ctx := c.Request.Context()
	ret, err := h.Returns.Get(ctx, middleware.SessionFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if ret.PhotoURL == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Aucune photo pour cette demande"})
		return
	}
	if h.Photos == nil {
		c.Redirect(http.StatusFound, ret.PhotoURL)
		return
	}
	signed, err := h.Photos.SignedURL(ctx, ret.PhotoURL, photoURLTTL)
	if err != nil {
		zap.S().Errorf("❌ Erreur URL signée pour %s: %v", ret.ID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Photo indisponible, réessayez"})
		return
	}
	c.Redirect(http.StatusFound, signed)
}
