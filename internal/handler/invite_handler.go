package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/dto"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/middleware"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	appErrors "github.com/CICTstudcoDingle/ictirc-sub001/pkg/errors"
	"github.com/CICTstudcoDingle/ictirc-sub001/pkg/response"
)

type inviteService interface {
	CreateInvite(ctx context.Context, actorID string, req dto.CreateInviteRequest) (*models.IssuedInvite, error)
	AcceptInvite(ctx context.Context, token string, identity models.Identity) (*models.User, error)
}

// InviteHandler issues and redeems staff invites.
type InviteHandler struct {
	service inviteService
}

// NewInviteHandler constructs an InviteHandler.
func NewInviteHandler(svc inviteService) *InviteHandler {
	return &InviteHandler{service: svc}
}

// Create godoc
// @Summary Invite a staff member
// @Description The returned token is shown once and is never stored in clear
// @Tags Invites
// @Accept json
// @Produce json
// @Param payload body dto.CreateInviteRequest true "Invite"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/invites [post]
func (h *InviteHandler) Create(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.CreateInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid invite payload"))
		return
	}
	invite, err := h.service.CreateInvite(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invite)
}

// Accept godoc
// @Summary Accept invite
// @Tags Invites
// @Accept json
// @Produce json
// @Param payload body dto.AcceptInviteRequest true "Token"
// @Success 200 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /invites/accept [post]
func (h *InviteHandler) Accept(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AcceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "token is required"))
		return
	}
	user, err := h.service.AcceptInvite(c.Request.Context(), req.Token, claims.Identity())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}
