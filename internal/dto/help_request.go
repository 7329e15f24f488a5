package dto

import "github.com/noah-isme/sos-dispatch-api/internal/models"

// CreateHelpRequest payload for raising a new help request.
type CreateHelpRequest struct {
	RequesterID string           `json:"requester_id" validate:"required"`
	Location    *models.Location `json:"location" validate:"required"`
}

// VolunteerActionRequest identifies the volunteer accepting or declining a request.
type VolunteerActionRequest struct {
	VolunteerID string `json:"volunteer_id" validate:"required"`
}

// CancelHelpRequest carries an optional cancellation reason.
type CancelHelpRequest struct {
	Reason string `json:"reason"`
}

// HelpRequestQuery mirrors supported listing filters.
type HelpRequestQuery struct {
	Status      []models.HelpRequestStatus
	RequesterID string
	VolunteerID string
}
