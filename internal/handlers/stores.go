package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"returnbox_back_end/internal/middleware"
	"returnbox_back_end/internal/returns"
)

func (h *Handler) ListStores(c *gin.Context) {
	stores, err := h.Returns.ListStores(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stores": stores})
}

// GetStore : page publique de retour d'une boutique
func (h *Handler) GetStore(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	merchant, err := h.Returns.ResolveStore(ctx, slug)
	if err != nil {
		respondError(c, err)
		return
	}
	conditions, err := h.Returns.StoreConditions(ctx, slug)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"store": merchant.Store(), "conditions": conditions})
}

// Estimate : ?price=100&condition=good. Sans condition, "estimate" vaut null.
func (h *Handler) Estimate(c *gin.Context) {
	price, err := strconv.ParseFloat(c.DefaultQuery("price", "0"), 64)
	if err != nil {
		badRequest(c, "Prix invalide")
		return
	}

	est, err := h.Returns.EstimateForStore(c.Request.Context(), c.Param("slug"), price, c.Query("condition"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"estimate": est})
}

// SubmitReturn accepte un formulaire multipart (photo facultative) ou du JSON
func (h *Handler) SubmitReturn(c *gin.Context) {
	var details returns.SubmitDetails
	if err := c.ShouldBind(&details); err != nil {
		badRequest(c, "Formulaire invalide")
		return
	}

	photo, closeFn, err := formUpload(c, "photo")
	if err != nil {
		badRequest(c, "Photo illisible")
		return
	}
	defer closeFn()

	ret, err := h.Returns.SubmitReturn(c.Request.Context(), middleware.SessionFrom(c), c.Param("slug"), details, photo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"return": ret})
}

// formUpload retourne (nil, noop, nil) si le champ est absent
func formUpload(c *gin.Context, field string) (*returns.Upload, func(), error) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, err
	}
	return openUpload(fh)
}

func openUpload(fh *multipart.FileHeader) (*returns.Upload, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &returns.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}, func() { _ = f.Close() }, nil
}
