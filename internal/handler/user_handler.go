package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sos-dispatch-api/internal/dto"
	"github.com/noah-isme/sos-dispatch-api/internal/models"
	appErrors "github.com/noah-isme/sos-dispatch-api/pkg/errors"
	"github.com/noah-isme/sos-dispatch-api/pkg/response"
)

type userService interface {
	Register(ctx context.Context, req dto.RegisterUserRequest) (*models.User, error)
	ListVolunteers(ctx context.Context) ([]models.User, error)
	ListRequesters(ctx context.Context) ([]models.User, error)
	ListAdmins(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	UpdateLocation(ctx context.Context, id string, req dto.UpdateLocationRequest) (*models.User, error)
	Verify(ctx context.Context, id string) (*models.User, error)
	SetAvailability(ctx context.Context, id string, req dto.SetAvailabilityRequest) (*models.User, error)
}

// UserHandler manages user directory endpoints.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new handler instance.
func NewUserHandler(service userService) *UserHandler {
	return &UserHandler{service: service}
}

// Register godoc
// @Summary Register a user
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body dto.RegisterUserRequest true "User payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req dto.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid user payload"))
		return
	}
	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// ListVolunteers godoc
// @Summary List verified volunteers
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/volunteers [get]
func (h *UserHandler) ListVolunteers(c *gin.Context) {
	h.list(c, h.service.ListVolunteers)
}

// ListRequesters godoc
// @Summary List requesters
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/requesters [get]
func (h *UserHandler) ListRequesters(c *gin.Context) {
	h.list(c, h.service.ListRequesters)
}

// ListAdmins godoc
// @Summary List admins
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/admins [get]
func (h *UserHandler) ListAdmins(c *gin.Context) {
	h.list(c, h.service.ListAdmins)
}

func (h *UserHandler) list(c *gin.Context, fn func(context.Context) ([]models.User, error)) {
	users, err := fn(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, users, len(users))
}

// Get godoc
// @Summary Get user detail
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// UpdateLocation godoc
// @Summary Update a user's location
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.UpdateLocationRequest true "Location"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/location [put]
func (h *UserHandler) UpdateLocation(c *gin.Context) {
	var req dto.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid location payload"))
		return
	}
	user, err := h.service.UpdateLocation(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// Verify godoc
// @Summary Verify a volunteer
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/verify [post]
func (h *UserHandler) Verify(c *gin.Context) {
	user, err := h.service.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// SetAvailability godoc
// @Summary Set volunteer availability
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.SetAvailabilityRequest true "Availability"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/availability [put]
func (h *UserHandler) SetAvailability(c *gin.Context) {
	var req dto.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid availability payload"))
		return
	}
	user, err := h.service.SetAvailability(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}
