package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bhulekhchain/bridge/internal/auth"
	"github.com/bhulekhchain/bridge/internal/registry/model"
	"github.com/bhulekhchain/bridge/internal/registry/service"
)

// InstitutionHandler exposes principal onboarding and login.
type InstitutionHandler struct {
	svc    *service.InstitutionService
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

// NewInstitutionHandler creates an InstitutionHandler.
func NewInstitutionHandler(svc *service.InstitutionService, tokens *auth.TokenIssuer, logger *zap.Logger) *InstitutionHandler {
	return &InstitutionHandler{svc: svc, tokens: tokens, logger: logger}
}

// Register mounts the auth and institution routes.
func (h *InstitutionHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/auth/login", h.Login)

	insts := rg.Group("/institutions", RequireRole(h.tokens))
	{
		insts.POST("", h.Create)
		insts.GET("", h.List)
	}
}

// Login handles POST /auth/login.
func (h *InstitutionHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "VALIDATION_ERROR"})
		return
	}

	token, inst, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":       token,
		"institution": inst,
	})
}

// Create handles POST /institutions (admin only).
func (h *InstitutionHandler) Create(c *gin.Context) {
	var req model.CreateInstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "VALIDATION_ERROR"})
		return
	}

	inst, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, req.Code)
		return
	}
	c.JSON(http.StatusCreated, inst)
}

// List handles GET /institutions (admin only).
func (h *InstitutionHandler) List(c *gin.Context) {
	insts, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"institutions": insts, "count": len(insts)})
}
