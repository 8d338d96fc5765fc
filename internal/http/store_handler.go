package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"savory-auth/internal/service"
)

// StoreHandler mantiene dependencias para endpoints de stores.
type StoreHandler struct {
	logger    *zap.Logger
	storeServ *service.StoreService
}

// NewStoreHandler crea una instancia de StoreHandler con dependencias necesarias.
func NewStoreHandler(logger *zap.Logger, storeServ *service.StoreService) *StoreHandler {
	return &StoreHandler{
		logger:    logger,
		storeServ: storeServ,
	}
}

// CreateStore maneja POST /stores. Requiere sesion; el autor es el usuario
// autenticado.
func (h *StoreHandler) CreateStore(c *gin.Context) {
	session, ok := GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create store request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	store, err := h.storeServ.Create(c.Request.Context(), session.UserID, service.StoreInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, service.ErrStoreInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid store data"})
			return
		}
		h.logger.Error("create store failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create store"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"store": store})
}

// GetStore maneja GET /stores/:id.
func (h *StoreHandler) GetStore(c *gin.Context) {
	store, err := h.storeServ.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrStoreNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "store not found"})
			return
		}
		h.logger.Error("get store failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not get store"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"store": store})
}

// UpdateStore maneja PUT /stores/:id. Solo el autor puede mutar el recurso.
func (h *StoreHandler) UpdateStore(c *gin.Context) {
	session, ok := GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update store request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	store, err := h.storeServ.Update(c.Request.Context(), session.UserID, c.Param("id"), service.StoreInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStoreNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "store not found"})
			return
		case errors.Is(err, service.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "you must own a store in order to edit it"})
			return
		case errors.Is(err, service.ErrStoreInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid store data"})
			return
		default:
			h.logger.Error("update store failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update store"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"store": store})
}
