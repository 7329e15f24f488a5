package dto

import "github.com/noah-isme/sos-dispatch-api/internal/models"

// RegisterUserRequest holds payload for adding a user to the directory.
type RegisterUserRequest struct {
	Name  string          `json:"name" validate:"required"`
	Email string          `json:"email" validate:"required,email"`
	Phone string          `json:"phone"`
	Role  models.UserRole `json:"role" validate:"required"`
}

// UpdateLocationRequest reports a user's current position.
type UpdateLocationRequest struct {
	Lat     *float64 `json:"lat" validate:"required,latitude"`
	Lng     *float64 `json:"lng" validate:"required,longitude"`
	Address string   `json:"address"`
}

// SetAvailabilityRequest toggles whether a volunteer takes new requests.
type SetAvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}
