package handlers

import (
	"net/http"

	"arena-engine/internal/auth"
	"arena-engine/internal/ledger"

	"github.com/gin-gonic/gin"
)

type IdentityHandler struct {
	directory *ledger.Directory
}

func NewIdentityHandler(directory *ledger.Directory) *IdentityHandler {
	return &IdentityHandler{
		directory: directory,
	}
}

// RegisterIdentity binds an identity handle to the caller's account
// POST /api/identity/bindings
func (h *IdentityHandler) RegisterIdentity(c *gin.Context) {
	caller, exists := auth.GetAccount(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		Identity string `json:"identity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	binding, err := h.directory.Register(c.Request.Context(), req.Identity, caller)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, binding)
}

// ResolveIdentity returns the controlling account of an identity handle
// GET /api/identity/bindings/:identity
func (h *IdentityHandler) ResolveIdentity(c *gin.Context) {
	account, err := h.directory.ControllerOf(c.Request.Context(), c.Param("identity"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": account})
}
