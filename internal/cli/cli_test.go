package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sos-dispatch-api/internal/models"
	"github.com/noah-isme/sos-dispatch-api/internal/repository"
	"github.com/noah-isme/sos-dispatch-api/pkg/config"
)

const sampleSeed = `
users:
  - id: req-1
    name: Budi
    email: budi@example.com
    role: requester
    verified: true
  - id: vol-1
    name: Ayu
    email: ayu@example.com
    role: VOLUNTEER
    verified: true
    location: {lat: -6.2, lng: 106.8}
  - id: vol-2
    name: Bayu
    email: bayu@example.com
    role: VOLUNTEER
    verified: true
    available: false
help_requests:
  - id: hr-1
    requester_id: req-1
    location: {lat: -6.21, lng: 106.81, address: Monas}
    created_at: 2024-03-01T08:00:00Z
  - id: hr-2
    requester_id: req-1
    location: {lat: -6.3, lng: 106.9}
    status: accepted
    assigned_volunteer: vol-1
`

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "sos-dispatch", cmd.Use)

	for _, name := range []string{"serve", "migrate", "seed"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	driver := cmd.PersistentFlags().Lookup("driver")
	require.NotNil(t, driver)
	assert.Equal(t, "", driver.DefValue)

	seedCmd, _, err := cmd.Find([]string{"seed"})
	require.NoError(t, err)
	file := seedCmd.Flags().Lookup("file")
	require.NotNil(t, file)
	assert.Equal(t, "f", file.Shorthand)
}

func TestRootCommandRejectsUnknownDriver(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"migrate", "--driver", "mongo"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid store driver")
}

func TestParseSeed(t *testing.T) {
	data, err := ParseSeed([]byte(sampleSeed))
	require.NoError(t, err)
	require.Len(t, data.Users, 3)
	require.Len(t, data.HelpRequests, 2)
	assert.Equal(t, "Monas", data.HelpRequests[0].Location.Address)

	_, err = ParseSeed([]byte("users:\n  - id: x\n    email: x@example.com\n    role: VOLUNTEER\n    colour: red\n"))
	require.Error(t, err)

	_, err = ParseSeed([]byte("users:\n  - id: x\n    email: x@example.com\n    role: PILOT\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")

	empty, err := ParseSeed(nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Users)
}

func TestApplySeedIsRerunnable(t *testing.T) {
	ctx := context.Background()
	data, err := ParseSeed([]byte(sampleSeed))
	require.NoError(t, err)

	users := repository.NewMemoryUserRepository()
	requests := repository.NewMemoryHelpRequestRepository()

	result, err := ApplySeed(ctx, data, users, requests)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Users: 3, HelpRequests: 2}, result)

	again, err := ApplySeed(ctx, data, users, requests)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Skipped: 5}, again)

	ids, err := users.ListVerifiedAvailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"vol-1"}, ids)

	requester, err := users.FindByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleRequester, requester.Role)

	accepted, err := requests.GetByID(ctx, "hr-2")
	require.NoError(t, err)
	assert.Equal(t, models.HelpRequestStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AssignedVolunteer)
	assert.Equal(t, "vol-1", *accepted.AssignedVolunteer)
}

func TestBuildAppServesSeededMemoryStore(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(sampleSeed), 0o600))

	cfg := &config.Config{
		Env:       config.EnvDevelopment,
		APIPrefix: "/api/v1",
		Store:     config.StoreConfig{Driver: config.StoreDriverMemory, SeedFile: seedPath},
		Audit:     config.AuditConfig{Enabled: true},
	}
	a, err := buildApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/help-requests/pending", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hr-1"`)
	assert.NotContains(t, w.Body.String(), `"hr-2"`)

	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/help-requests/hr-1/decline", bytes.NewBufferString(`{"volunteer_id":"vol-1"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"cancelled"`)

	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/index.html", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
