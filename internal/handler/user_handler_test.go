package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sos-dispatch-api/internal/dto"
	"github.com/noah-isme/sos-dispatch-api/internal/models"
	appErrors "github.com/noah-isme/sos-dispatch-api/pkg/errors"
)

type userServiceMock struct {
	user        *models.User
	users       []models.User
	err         error
	lastID      string
	lastLoc     dto.UpdateLocationRequest
	lastAvail   dto.SetAvailabilityRequest
	lastRequest dto.RegisterUserRequest
}

func (m *userServiceMock) Register(ctx context.Context, req dto.RegisterUserRequest) (*models.User, error) {
	m.lastRequest = req
	return m.user, m.err
}

func (m *userServiceMock) ListVolunteers(ctx context.Context) ([]models.User, error) {
	return m.users, m.err
}

func (m *userServiceMock) ListRequesters(ctx context.Context) ([]models.User, error) {
	return m.users, m.err
}

func (m *userServiceMock) ListAdmins(ctx context.Context) ([]models.User, error) {
	return m.users, m.err
}

func (m *userServiceMock) Get(ctx context.Context, id string) (*models.User, error) {
	m.lastID = id
	return m.user, m.err
}

func (m *userServiceMock) UpdateLocation(ctx context.Context, id string, req dto.UpdateLocationRequest) (*models.User, error) {
	m.lastID, m.lastLoc = id, req
	return m.user, m.err
}

func (m *userServiceMock) Verify(ctx context.Context, id string) (*models.User, error) {
	m.lastID = id
	return m.user, m.err
}

func (m *userServiceMock) SetAvailability(ctx context.Context, id string, req dto.SetAvailabilityRequest) (*models.User, error) {
	m.lastID, m.lastAvail = id, req
	return m.user, m.err
}

func TestUserHandlerRegister(t *testing.T) {
	mockSvc := &userServiceMock{user: &models.User{ID: "u-1", Role: models.RoleVolunteer}}
	handler := NewUserHandler(mockSvc)

	c, w := newJSONContext(http.MethodPost, "/users", `{"name":"Ayu","email":"ayu@example.com","role":"VOLUNTEER"}`)
	handler.Register(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.RoleVolunteer, mockSvc.lastRequest.Role)
}

func TestUserHandlerSetAvailability(t *testing.T) {
	mockSvc := &userServiceMock{user: &models.User{ID: "u-1"}}
	handler := NewUserHandler(mockSvc)

	c, w := newJSONContext(http.MethodPut, "/users/u-1/availability", `{"available":false}`)
	c.Params = gin.Params{{Key: "id", Value: "u-1"}}
	handler.SetAvailability(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-1", mockSvc.lastID)
	require.NotNil(t, mockSvc.lastAvail.Available)
	assert.False(t, *mockSvc.lastAvail.Available)
}

func TestUserHandlerUpdateLocationInvalidBody(t *testing.T) {
	mockSvc := &userServiceMock{}
	handler := NewUserHandler(mockSvc)

	c, w := newJSONContext(http.MethodPut, "/users/u-1/location", `{"lat":"north"}`)
	c.Params = gin.Params{{Key: "id", Value: "u-1"}}
	handler.UpdateLocation(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mockSvc.lastID)
}

func TestUserHandlerVerifyNonVolunteer(t *testing.T) {
	mockSvc := &userServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "user is not a volunteer")}
	handler := NewUserHandler(mockSvc)

	c, w := newJSONContext(http.MethodPost, "/users/u-1/verify", "")
	c.Params = gin.Params{{Key: "id", Value: "u-1"}}
	handler.Verify(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "user is not a volunteer")
}
