package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sos-dispatch-api/internal/models"
	"github.com/noah-isme/sos-dispatch-api/internal/repository"
	"github.com/noah-isme/sos-dispatch-api/internal/service"
)

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *struct{ Code string } `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func buildDispatchRouter(t *testing.T, checks map[string]ReadinessCheck) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := repository.NewMemoryUserRepository()
	requests := repository.NewMemoryHelpRequestRepository()
	metrics := service.NewMetricsService()

	helpSvc := service.NewHelpRequestService(requests, users, zap.NewNop(),
		service.WithIdentityStore(users),
		service.WithTransitionMetrics(metrics),
	)
	userSvc := service.NewUserService(users, nil, zap.NewNop())

	router := gin.New()
	RegisterRoutes(router, "/api/v1", Handlers{
		HelpRequests: NewHelpRequestHandler(helpSvc),
		Users:        NewUserHandler(userSvc),
		Metrics:      NewMetricsHandler(metrics, checks),
	})
	return router
}

func performRequest(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := performRequest(router, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func registerUser(t *testing.T, router http.Handler, name, email string, role models.UserRole) models.User {
	t.Helper()
	w, env := doJSON(t, router, http.MethodPost, "/api/v1/users", `{"name":"`+name+`","email":"`+email+`","role":"`+string(role)+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var user models.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	return user
}

func registerVolunteer(t *testing.T, router http.Handler, name, email string) models.User {
	t.Helper()
	user := registerUser(t, router, name, email, models.RoleVolunteer)
	w, _ := doJSON(t, router, http.MethodPost, "/api/v1/users/"+user.ID+"/verify", "")
	require.Equal(t, http.StatusOK, w.Code)
	return user
}

func decodeRequest(t *testing.T, env envelope) models.HelpRequest {
	t.Helper()
	var hr models.HelpRequest
	require.NoError(t, json.Unmarshal(env.Data, &hr))
	return hr
}

func TestDispatchRoutesIntegration(t *testing.T) {
	router := buildDispatchRouter(t, nil)

	requester := registerUser(t, router, "Budi", "budi@example.com", models.RoleRequester)
	volA := registerVolunteer(t, router, "Ayu", "ayu@example.com")
	volB := registerVolunteer(t, router, "Bayu", "bayu@example.com")

	createBody := `{"requester_id":"` + requester.ID + `","location":{"lat":-6.2,"lng":106.8,"address":"Monas"}}`

	t.Run("all declined cancels", func(t *testing.T) {
		w, env := doJSON(t, router, http.MethodPost, "/api/v1/help-requests", createBody)
		require.Equal(t, http.StatusCreated, w.Code)
		created := decodeRequest(t, env)
		assert.Equal(t, models.HelpRequestStatusPending, created.Status)

		w, env = doJSON(t, router, http.MethodPost, "/api/v1/help-requests/"+created.ID+"/decline", `{"volunteer_id":"`+volA.ID+`"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.HelpRequestStatusPending, decodeRequest(t, env).Status)

		w, env = doJSON(t, router, http.MethodPost, "/api/v1/help-requests/"+created.ID+"/decline", `{"volunteer_id":"`+volB.ID+`"}`)
		require.Equal(t, http.StatusOK, w.Code)
		cancelled := decodeRequest(t, env)
		assert.Equal(t, models.HelpRequestStatusCancelled, cancelled.Status)
		require.NotNil(t, cancelled.CancelReason)
		assert.Equal(t, service.ReasonAllDeclined, *cancelled.CancelReason)
	})

	t.Run("accept complete then conflict", func(t *testing.T) {
		w, env := doJSON(t, router, http.MethodPost, "/api/v1/help-requests", createBody)
		require.Equal(t, http.StatusCreated, w.Code)
		created := decodeRequest(t, env)

		w, env = doJSON(t, router, http.MethodGet, "/api/v1/help-requests/pending", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), env.Meta["count"])

		w, _ = doJSON(t, router, http.MethodPost, "/api/v1/help-requests/"+created.ID+"/complete", "")
		require.Equal(t, http.StatusConflict, w.Code)

		w, env = doJSON(t, router, http.MethodPost, "/api/v1/help-requests/"+created.ID+"/accept", `{"volunteer_id":"`+volA.ID+`"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, volA.ID, *decodeRequest(t, env).AssignedVolunteer)

		w, env = doJSON(t, router, http.MethodPost, "/api/v1/help-requests/"+created.ID+"/complete", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.HelpRequestStatusCompleted, decodeRequest(t, env).Status)

		w, env = doJSON(t, router, http.MethodPost, "/api/v1/help-requests/"+created.ID+"/accept", `{"volunteer_id":"`+volB.ID+`"}`)
		require.Equal(t, http.StatusConflict, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "CONFLICT", env.Error.Code)

		w, env = doJSON(t, router, http.MethodGet, "/api/v1/help-requests?volunteer_id="+volA.ID, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), env.Meta["count"])
	})

	t.Run("validation and not found", func(t *testing.T) {
		w, _ := doJSON(t, router, http.MethodPost, "/api/v1/help-requests", `{"requester_id":"ghost","location":{"lat":1,"lng":1}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, _ = doJSON(t, router, http.MethodPost, "/api/v1/help-requests/missing/accept", `{"volunteer_id":"`+volA.ID+`"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w, _ = doJSON(t, router, http.MethodPost, "/api/v1/help-requests/missing/cancel", "")
		assert.Equal(t, http.StatusNotFound, w.Code)

		w, _ = doJSON(t, router, http.MethodPost, "/api/v1/users", `{"name":"Dup","email":"budi@example.com","role":"REQUESTER"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("user directory", func(t *testing.T) {
		w, env := doJSON(t, router, http.MethodGet, "/api/v1/users/volunteers", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(2), env.Meta["count"])

		w, env = doJSON(t, router, http.MethodPut, "/api/v1/users/"+volB.ID+"/availability", `{"available":false}`)
		require.Equal(t, http.StatusOK, w.Code)
		var user models.User
		require.NoError(t, json.Unmarshal(env.Data, &user))
		assert.False(t, user.IsAvailable())

		w, _ = doJSON(t, router, http.MethodPut, "/api/v1/users/"+requester.ID+"/location", `{"lat":-6.1,"lng":106.9}`)
		require.Equal(t, http.StatusOK, w.Code)

		w, _ = doJSON(t, router, http.MethodPost, "/api/v1/users/"+requester.ID+"/verify", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, _ = doJSON(t, router, http.MethodGet, "/api/v1/users/requesters", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("only available volunteers count", func(t *testing.T) {
		w, env := doJSON(t, router, http.MethodPost, "/api/v1/help-requests", createBody)
		require.Equal(t, http.StatusCreated, w.Code)
		created := decodeRequest(t, env)

		w, env = doJSON(t, router, http.MethodPost, "/api/v1/help-requests/"+created.ID+"/decline", `{"volunteer_id":"`+volA.ID+`"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.HelpRequestStatusCancelled, decodeRequest(t, env).Status)
	})

	t.Run("metrics summary", func(t *testing.T) {
		w, env := doJSON(t, router, http.MethodGet, "/api/v1/metrics/summary", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), `"create:success"`)

		w = performRequest(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "help_request_transitions_total")
	})
}

func TestReadinessChecks(t *testing.T) {
	router := buildDispatchRouter(t, map[string]ReadinessCheck{
		"store": func(ctx context.Context) error { return nil },
		"cache": func(ctx context.Context) error { return errors.New("connection refused") },
	})

	w := performRequest(router, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	w = performRequest(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
