package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sos-dispatch-api/internal/dto"
	"github.com/noah-isme/sos-dispatch-api/internal/models"
	appErrors "github.com/noah-isme/sos-dispatch-api/pkg/errors"
	"github.com/noah-isme/sos-dispatch-api/pkg/response"
)

type helpRequestService interface {
	Create(ctx context.Context, req dto.CreateHelpRequest) (*models.HelpRequest, error)
	Accept(ctx context.Context, requestID, volunteerID string) (*models.HelpRequest, error)
	Decline(ctx context.Context, requestID, volunteerID string) (*models.HelpRequest, error)
	Complete(ctx context.Context, requestID string) (*models.HelpRequest, error)
	Cancel(ctx context.Context, requestID, reason string) (*models.HelpRequest, error)
	ListPending(ctx context.Context) ([]models.HelpRequest, error)
	Get(ctx context.Context, requestID string) (*models.HelpRequest, error)
	List(ctx context.Context, filter models.HelpRequestFilter) ([]models.HelpRequest, error)
}

// HelpRequestHandler exposes the help request lifecycle over REST.
type HelpRequestHandler struct {
	service helpRequestService
}

// NewHelpRequestHandler constructs the handler.
func NewHelpRequestHandler(service helpRequestService) *HelpRequestHandler {
	return &HelpRequestHandler{service: service}
}

// Create godoc
// @Summary Raise a help request
// @Tags HelpRequests
// @Accept json
// @Produce json
// @Param payload body dto.CreateHelpRequest true "Help request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /help-requests [post]
func (h *HelpRequestHandler) Create(c *gin.Context) {
	var req dto.CreateHelpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid help request payload"))
		return
	}
	created, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// ListPending godoc
// @Summary List pending help requests
// @Tags HelpRequests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /help-requests/pending [get]
func (h *HelpRequestHandler) ListPending(c *gin.Context) {
	items, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, len(items))
}

// List godoc
// @Summary List help requests
// @Tags HelpRequests
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param requester_id query string false "Requester ID"
// @Param volunteer_id query string false "Assigned volunteer ID"
// @Success 200 {object} response.Envelope
// @Router /help-requests [get]
func (h *HelpRequestHandler) List(c *gin.Context) {
	query := dto.HelpRequestQuery{
		RequesterID: strings.TrimSpace(c.Query("requester_id")),
		VolunteerID: strings.TrimSpace(c.Query("volunteer_id")),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		for _, part := range strings.Split(rawStatus, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			query.Status = append(query.Status, models.HelpRequestStatus(part))
		}
	}
	items, err := h.service.List(c.Request.Context(), models.HelpRequestFilter{
		Status:      query.Status,
		RequesterID: query.RequesterID,
		VolunteerID: query.VolunteerID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, len(items))
}

// Get godoc
// @Summary Get help request detail
// @Tags HelpRequests
// @Produce json
// @Param id path string true "Help request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /help-requests/{id} [get]
func (h *HelpRequestHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Accept godoc
// @Summary Accept a pending help request
// @Tags HelpRequests
// @Accept json
// @Produce json
// @Param id path string true "Help request ID"
// @Param payload body dto.VolunteerActionRequest true "Volunteer"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /help-requests/{id}/accept [post]
func (h *HelpRequestHandler) Accept(c *gin.Context) {
	var req dto.VolunteerActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "volunteer_id is required"))
		return
	}
	item, err := h.service.Accept(c.Request.Context(), c.Param("id"), req.VolunteerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Decline godoc
// @Summary Decline a pending help request
// @Tags HelpRequests
// @Accept json
// @Produce json
// @Param id path string true "Help request ID"
// @Param payload body dto.VolunteerActionRequest true "Volunteer"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /help-requests/{id}/decline [post]
func (h *HelpRequestHandler) Decline(c *gin.Context) {
	var req dto.VolunteerActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "volunteer_id is required"))
		return
	}
	item, err := h.service.Decline(c.Request.Context(), c.Param("id"), req.VolunteerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Complete godoc
// @Summary Complete an accepted help request
// @Tags HelpRequests
// @Produce json
// @Param id path string true "Help request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /help-requests/{id}/complete [post]
func (h *HelpRequestHandler) Complete(c *gin.Context) {
	item, err := h.service.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Cancel godoc
// @Summary Cancel a help request
// @Tags HelpRequests
// @Accept json
// @Produce json
// @Param id path string true "Help request ID"
// @Param payload body dto.CancelHelpRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Router /help-requests/{id}/cancel [post]
func (h *HelpRequestHandler) Cancel(c *gin.Context) {
	var req dto.CancelHelpRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid cancel payload"))
			return
		}
	}
	item, err := h.service.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item)
}
