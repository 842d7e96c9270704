package api

import (
	"errors"
	"net/http"

	"ipgate/internal/models"
	"ipgate/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateAPIKey(c *gin.Context) {
	var req struct {
		Key         string              `json:"key"`
		Name        string              `json:"name"`
		Note        string              `json:"note"`
		Permissions *models.Permissions `json:"permissions"`
		ExpiryDate  string              `json:"expiryDate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}

	note := req.Note
	if note == "" {
		note = req.Name
	}
	meta := requestMeta(c)
	rec, err := h.apiKeyService.Create(c.Request.Context(), service.CreateParams{
		Key:         req.Key,
		Note:        note,
		Permissions: req.Permissions,
		ExpiryDate:  req.ExpiryDate,
		CreatedBy:   operator(c),
	})
	if err != nil {
		h.logService.Failure(c.Request.Context(), service.OpAPIKeyCreate, operator(c), meta, err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to create API key"})
		return
	}

	h.logService.Success(c.Request.Context(), service.OpAPIKeyCreate, operator(c), meta, map[string]interface{}{"note": rec.Note})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "API key created", "key": rec.Key})
}

func (h *Handler) ListAPIKeys(c *gin.Context) {
	keys, err := h.apiKeyService.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to list API keys"})
		return
	}
	h.logService.Success(c.Request.Context(), service.OpAPIKeyList, operator(c), requestMeta(c), map[string]interface{}{"count": len(keys)})
	c.JSON(http.StatusOK, gin.H{"success": true, "keys": keys})
}

func (h *Handler) UpdateAPIKey(c *gin.Context) {
	var req struct {
		Key         string              `json:"key"`
		Note        *string             `json:"note"`
		Permissions *models.Permissions `json:"permissions"`
		ExpiryDate  *string             `json:"expiryDate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Key is required"})
		return
	}

	meta := requestMeta(c)
	_, err := h.apiKeyService.Update(c.Request.Context(), req.Key, service.UpdateParams{
		Note:        req.Note,
		Permissions: req.Permissions,
		ExpiryDate:  req.ExpiryDate,
	})
	if err != nil {
		if errors.Is(err, service.ErrKeyNotFound) {
			h.logService.Failure(c.Request.Context(), service.OpAPIKeyUpdate, operator(c), meta, err, nil)
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "API key not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update API key"})
		return
	}

	h.logService.Success(c.Request.Context(), service.OpAPIKeyUpdate, operator(c), meta, nil)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "API key updated"})
}

func (h *Handler) DeleteAPIKey(c *gin.Context) {
	var req struct {
		Key string `json:"key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Key is required"})
		return
	}

	meta := requestMeta(c)
	if err := h.apiKeyService.Delete(c.Request.Context(), req.Key); err != nil {
		if errors.Is(err, service.ErrKeyNotFound) {
			h.logService.Failure(c.Request.Context(), service.OpAPIKeyDelete, operator(c), meta, err, nil)
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "API key not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to delete API key"})
		return
	}

	h.logService.Success(c.Request.Context(), service.OpAPIKeyDelete, operator(c), meta, nil)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "API key deleted"})
}
