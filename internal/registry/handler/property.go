package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bhulekhchain/bridge/internal/auth"
	"github.com/bhulekhchain/bridge/internal/registry/model"
	"github.com/bhulekhchain/bridge/internal/registry/service"
)

// PropertyHandler exposes the property mirror and its audit trail.
type PropertyHandler struct {
	coord  *service.Coordinator
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

// NewPropertyHandler creates a PropertyHandler.
func NewPropertyHandler(coord *service.Coordinator, tokens *auth.TokenIssuer, logger *zap.Logger) *PropertyHandler {
	return &PropertyHandler{coord: coord, tokens: tokens, logger: logger}
}

// Register mounts the property routes on the given router group.
func (h *PropertyHandler) Register(rg *gin.RouterGroup) {
	props := rg.Group("/properties")
	{
		props.POST("", RequireRole(h.tokens, model.RoleAdmin), h.RegisterProperty)
		props.GET("", h.ListProperties)
		props.GET("/:id", h.GetProperty)
		props.GET("/:id/encumbrances", h.ListEncumbrances)
		props.GET("/:id/audit", h.AuditTrail)
		props.GET("/:id/audit/verify", h.VerifyAuditTrail)
		props.POST("/:id/freeze", RequireRole(h.tokens, model.RoleCourt), h.Freeze)
		props.POST("/:id/unfreeze", RequireRole(h.tokens, model.RoleCourt), h.Unfreeze)
	}
}

// RegisterProperty handles POST /properties — mirrors a property row.
func (h *PropertyHandler) RegisterProperty(c *gin.Context) {
	var req model.RegisterPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "VALIDATION_ERROR"})
		return
	}

	prop, err := h.coord.RegisterProperty(c.Request.Context(), req, actorFromCtx(c))
	if err != nil {
		respondError(c, err, req.PropertyID)
		return
	}
	c.JSON(http.StatusCreated, prop)
}

// GetProperty handles GET /properties/:id.
func (h *PropertyHandler) GetProperty(c *gin.Context) {
	id := c.Param("id")
	prop, err := h.coord.GetProperty(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, id)
		return
	}
	c.JSON(http.StatusOK, prop)
}

// ListProperties handles GET /properties?state=AP&limit=50&offset=0.
func (h *PropertyHandler) ListProperties(c *gin.Context) {
	state := c.Query("state")
	if state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state query parameter is required", "kind": "VALIDATION_ERROR"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	props, err := h.coord.ListProperties(c.Request.Context(), state, limit, offset)
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"properties": props, "count": len(props)})
}

// ListEncumbrances handles GET /properties/:id/encumbrances.
func (h *PropertyHandler) ListEncumbrances(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.coord.GetProperty(c.Request.Context(), id); err != nil {
		respondError(c, err, id)
		return
	}
	encs, err := h.coord.ListEncumbrances(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"encumbrances": encs, "count": len(encs)})
}

// AuditTrail handles GET /properties/:id/audit.
func (h *PropertyHandler) AuditTrail(c *gin.Context) {
	id := c.Param("id")
	trail, err := h.coord.AuditTrail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": trail, "count": len(trail)})
}

// VerifyAuditTrail handles GET /properties/:id/audit/verify — walks the
// property's stream and reports integrity.
func (h *PropertyHandler) VerifyAuditTrail(c *gin.Context) {
	id := c.Param("id")
	if err := h.coord.VerifyAuditTrail(c.Request.Context(), id); err != nil {
		h.logger.Warn("audit chain integrity check failed",
			zap.String("property_id", id),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// Freeze handles POST /properties/:id/freeze.
func (h *PropertyHandler) Freeze(c *gin.Context) {
	id := c.Param("id")
	if err := h.coord.FreezeProperty(c.Request.Context(), id, actorFromCtx(c)); err != nil {
		respondError(c, err, id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"property_id": id, "status": model.PropertyStatusFrozen})
}

// Unfreeze handles POST /properties/:id/unfreeze.
func (h *PropertyHandler) Unfreeze(c *gin.Context) {
	id := c.Param("id")
	if err := h.coord.UnfreezeProperty(c.Request.Context(), id, actorFromCtx(c)); err != nil {
		respondError(c, err, id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"property_id": id, "status": model.PropertyStatusActive})
}
