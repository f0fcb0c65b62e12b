package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/charity-tasks-api/internal/dto"
	"github.com/noah-isme/charity-tasks-api/internal/models"
	"github.com/noah-isme/charity-tasks-api/pkg/response"
)

type accountService interface {
	Profile(ctx context.Context, actor *models.Actor) (*dto.ProfileView, error)
	UpdateProfile(ctx context.Context, actor *models.Actor, req dto.UpdateProfileRequest) (*dto.ProfileView, error)
	RegisterCharity(ctx context.Context, actor *models.Actor, req dto.RegisterCharityRequest) (*models.Charity, error)
	RegisterBenefactor(ctx context.Context, actor *models.Actor, req dto.RegisterBenefactorRequest) (*models.Benefactor, error)
}

// AccountHandler exposes the current user's profile and role registration.
type AccountHandler struct {
	service accountService
}

// NewAccountHandler builds a new handler.
func NewAccountHandler(service accountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// Me godoc
// @Summary Current user profile
// @Tags Accounts
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /users/me [get]
func (h *AccountHandler) Me(c *gin.Context) {
	view, err := h.service.Profile(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// UpdateMe godoc
// @Summary Update current user profile
// @Tags Accounts
// @Accept json
// @Produce json
// @Param payload body dto.UpdateProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users/me [put]
func (h *AccountHandler) UpdateMe(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if err := bindStrictJSON(c, &req, "invalid profile payload"); err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.service.UpdateProfile(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// RegisterCharity godoc
// @Summary Register the current user as a charity
// @Tags Accounts
// @Accept json
// @Produce json
// @Param payload body dto.RegisterCharityRequest true "Charity payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /charities [post]
func (h *AccountHandler) RegisterCharity(c *gin.Context) {
	var req dto.RegisterCharityRequest
	if err := bindStrictJSON(c, &req, "invalid charity payload"); err != nil {
		response.Error(c, err)
		return
	}
	charity, err := h.service.RegisterCharity(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, charity)
}

// RegisterBenefactor godoc
// @Summary Register the current user as a benefactor
// @Tags Accounts
// @Accept json
// @Produce json
// @Param payload body dto.RegisterBenefactorRequest true "Benefactor payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /benefactors [post]
func (h *AccountHandler) RegisterBenefactor(c *gin.Context) {
	var req dto.RegisterBenefactorRequest
	if err := bindStrictJSON(c, &req, "invalid benefactor payload"); err != nil {
		response.Error(c, err)
		return
	}
	benefactor, err := h.service.RegisterBenefactor(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, benefactor)
}
