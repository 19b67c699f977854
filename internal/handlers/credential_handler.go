package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/niaga-platform/service-seller-analytics/internal/services"
)

// CredentialHandler manages seller Wildberries API keys
type CredentialHandler struct {
	credentials *services.CredentialService
	logger      *zap.Logger
}

// NewCredentialHandler creates a new credential handler
func NewCredentialHandler(credentials *services.CredentialService, logger *zap.Logger) *CredentialHandler {
	return &CredentialHandler{credentials: credentials, logger: nopIfNil(logger)}
}

// SetCredentialRequest stores a seller API key. Validate defaults to true.
type SetCredentialRequest struct {
	APIKey   string `json:"api_key" binding:"required,max=4096"`
	Validate *bool  `json:"validate"`
}

// SetCredential stores or replaces the seller's API key
// @Summary Set seller API key
// @Tags Credentials
// @Accept json
// @Param seller_id path string true "Seller ID"
// @Param request body SetCredentialRequest true "API key"
// @Success 200 {object} models.SellerCredential
// @Router /sellers/{seller_id}/credentials [put]
func (h *CredentialHandler) SetCredential(c *gin.Context) {
	sellerID, ok := parseSellerID(c)
	if !ok {
		return
	}

	var req SetCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	validate := req.Validate == nil || *req.Validate
	cred, err := h.credentials.SetAPIKey(c.Request.Context(), sellerID, req.APIKey, validate)
	if err != nil {
		respondError(c, h.logger, "failed to store API key", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"credential": cred})
}

// GetCredential returns the masked key and sync status of a seller
// @Summary Get seller API key status
// @Tags Credentials
// @Param seller_id path string true "Seller ID"
// @Success 200 {object} models.SellerCredential
// @Router /sellers/{seller_id}/credentials [get]
func (h *CredentialHandler) GetCredential(c *gin.Context) {
	sellerID, ok := parseSellerID(c)
	if !ok {
		return
	}

	cred, err := h.credentials.GetCredential(c.Request.Context(), sellerID)
	if err != nil {
		respondError(c, h.logger, "failed to get credential", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"credential": cred})
}

// DeleteCredential removes the seller's API key
// @Summary Delete seller API key
// @Tags Credentials
// @Param seller_id path string true "Seller ID"
// @Router /sellers/{seller_id}/credentials [delete]
func (h *CredentialHandler) DeleteCredential(c *gin.Context) {
	sellerID, ok := parseSellerID(c)
	if !ok {
		return
	}

	if err := h.credentials.DeleteAPIKey(c.Request.Context(), sellerID); err != nil {
		respondError(c, h.logger, "failed to delete API key", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key deleted"})
}
