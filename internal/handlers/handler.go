package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"returnbox_back_end/internal/auth"
	"returnbox_back_end/internal/cache"
	"returnbox_back_end/internal/events"
	"returnbox_back_end/internal/models"
	"returnbox_back_end/internal/returns"
)

// ReturnSearcher : index plein texte des demandes d'un marchand
type ReturnSearcher interface {
	Search(ctx context.Context, merchantID, query string, status models.ReturnStatus) ([]models.ReturnRequest, error)
}

// PhotoSigner produit une URL temporaire pour une photo stockée en privé
type PhotoSigner interface {
	SignedURL(ctx context.Context, objectURL string, duration time.Duration) (string, error)
}

// Handler regroupe les dépendances des routes HTTP. Cache, Bus, Search et Photos peuvent être nil.
type Handler struct {
	Returns *returns.Service
	Auth    *auth.Service
	Cache   *cache.Cache
	Bus     *events.Bus
	Search  ReturnSearcher
	Photos  PhotoSigner
	// origines acceptées pour les websockets, vide = toutes (dev)
	Origins []string
}

var statusByKind = map[returns.Kind]int{
	returns.KindValidation:   http.StatusBadRequest,
	returns.KindPrecondition: http.StatusConflict,
	returns.KindIntegration:  http.StatusBadGateway,
	returns.KindNotFound:     http.StatusNotFound,
	returns.KindForbidden:    http.StatusForbidden,
}

// respondError traduit une erreur du service en réponse JSON
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var e *returns.Error
	if !errors.As(err, &e) {
		zap.S().Errorf("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	status, ok := statusByKind[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	body := gin.H{"error": e.Msg, "kind": e.Kind.String()}
	if len(e.Fields) > 0 {
		body["fields"] = e.Fields
	}
	if e.Kind == returns.KindIntegration {
		zap.S().Errorf("❌ %v", err)
		body["retry"] = true
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
