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

// EncumbranceHandler exposes the encumbrance lifecycle operations.
type EncumbranceHandler struct {
	coord  *service.Coordinator
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

// NewEncumbranceHandler creates an EncumbranceHandler.
func NewEncumbranceHandler(coord *service.Coordinator, tokens *auth.TokenIssuer, logger *zap.Logger) *EncumbranceHandler {
	return &EncumbranceHandler{coord: coord, tokens: tokens, logger: logger}
}

// Register mounts the encumbrance routes on the given router group.
func (h *EncumbranceHandler) Register(rg *gin.RouterGroup) {
	encs := rg.Group("/encumbrances")
	{
		encs.POST("", RequireRole(h.tokens, model.RoleBank, model.RoleCourt), h.Add)
		encs.GET("/:id", h.Get)
		encs.POST("/:id/release", RequireRole(h.tokens, model.RoleBank, model.RoleCourt), h.Release)
		encs.POST("/resync", RequireRole(h.tokens), h.Resync)
	}
}

// Add handles POST /encumbrances — ledger-first dual write.
func (h *EncumbranceHandler) Add(c *gin.Context) {
	var req model.AddEncumbranceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "VALIDATION_ERROR"})
		return
	}
	req.Actor = actorFromCtx(c)

	rec, outcome, err := h.coord.AddEncumbrance(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, req.PropertyID)
		return
	}

	RecordEncumbranceTransition("added", outcome.Synced)
	c.JSON(http.StatusCreated, gin.H{
		"encumbrance": rec,
		"sync":        outcome,
	})
}

// Get handles GET /encumbrances/:id.
func (h *EncumbranceHandler) Get(c *gin.Context) {
	id := c.Param("id")
	rec, err := h.coord.GetEncumbrance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, id)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Release handles POST /encumbrances/:id/release.
func (h *EncumbranceHandler) Release(c *gin.Context) {
	id := c.Param("id")
	rec, err := h.coord.ReleaseEncumbrance(c.Request.Context(), id, actorFromCtx(c))
	if err != nil {
		respondError(c, err, id)
		return
	}

	RecordEncumbranceTransition("released", true)
	c.JSON(http.StatusOK, rec)
}

// Resync handles POST /encumbrances/resync — the admin-triggered repair
// pass for degraded-mode rows.
func (h *EncumbranceHandler) Resync(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	repaired, err := h.coord.ResyncUnsynced(c.Request.Context(), limit)
	if err != nil {
		h.logger.Warn("resync pass stopped early",
			zap.Int("repaired", repaired),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"repaired": repaired, "complete": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"repaired": repaired, "complete": true})
}
