package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campus-cloud/storage-api/internal/models"
	"github.com/campus-cloud/storage-api/internal/service"
	appErrors "github.com/campus-cloud/storage-api/pkg/errors"
	"github.com/campus-cloud/storage-api/pkg/response"
)

type shareService interface {
	Create(ctx context.Context, p models.Principal, fileID string, req models.CreateSharesRequest) (*models.CreateSharesResponse, error)
	List(ctx context.Context, p models.Principal, fileID string) (*models.ListSharesResponse, error)
	Revoke(ctx context.Context, p models.Principal, fileID, shareID string) (*models.RevokeShareResponse, error)
	SharedWithMe(ctx context.Context, p models.Principal, limit int, token string) (*models.SharedWithMeResponse, error)
}

// ShareHandler exposes the share lifecycle endpoints.
type ShareHandler struct {
	shares  shareService
	metrics *service.MetricsService
}

// NewShareHandler builds a new handler.
func NewShareHandler(shares shareService, metrics *service.MetricsService) *ShareHandler {
	return &ShareHandler{shares: shares, metrics: metrics}
}

// Create shares one file with a batch of recipients. Recipients succeed or
// fail independently; the response reports both sides.
func (h *ShareHandler) Create(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateSharesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "At least one recipient is required"))
		return
	}

	resp, err := h.shares.Create(c.Request.Context(), principal, c.Param("fileId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSharesCreated(resp.TotalShared)
	response.JSON(c, http.StatusCreated, resp)
}

// List returns the live shares of one file to its owner.
func (h *ShareHandler) List(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	resp, err := h.shares.List(c.Request.Context(), principal, c.Param("fileId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// Revoke withdraws a share grant. Revoking an already-revoked share succeeds.
func (h *ShareHandler) Revoke(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	resp, err := h.shares.Revoke(c.Request.Context(), principal, c.Param("fileId"), c.Param("shareId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordShareRevoked()
	response.OK(c, resp)
}

// SharedWithMe lists files other users have shared with the caller.
func (h *ShareHandler) SharedWithMe(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	resp, err := h.shares.SharedWithMe(c.Request.Context(), principal, limit, c.Query("nextToken"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}
