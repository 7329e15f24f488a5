package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolunteerSetAddIsIdempotent(t *testing.T) {
	var set VolunteerSet
	assert.True(t, set.Add("vol-1"))
	assert.False(t, set.Add("vol-1"))
	assert.True(t, set.Add("vol-2"))
	assert.Equal(t, VolunteerSet{"vol-1", "vol-2"}, set)
}

func TestVolunteerSetContainsAll(t *testing.T) {
	set := VolunteerSet{"vol-a"}
	assert.True(t, set.ContainsAll(nil))
	assert.True(t, set.ContainsAll([]string{"vol-a"}))
	assert.False(t, set.ContainsAll([]string{"vol-a", "vol-b"}))
}

func TestVolunteerSetScanAndValue(t *testing.T) {
	var set VolunteerSet
	require.NoError(t, set.Scan([]byte(`["vol-1","vol-2"]`)))
	assert.Equal(t, VolunteerSet{"vol-1", "vol-2"}, set)

	require.NoError(t, set.Scan(nil))
	assert.Empty(t, set)

	value, err := VolunteerSet(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	assert.Error(t, set.Scan(42))
}

func TestLocationScan(t *testing.T) {
	var loc Location
	require.NoError(t, loc.Scan(`{"lat":-6.2,"lng":106.8,"address":"Jl. Sudirman"}`))
	assert.Equal(t, -6.2, loc.Lat)
	assert.Equal(t, "Jl. Sudirman", loc.Address)
}

func TestHelpRequestCloneIsDeep(t *testing.T) {
	vol := "vol-1"
	now := time.Now()
	original := &HelpRequest{
		ID:                "req-1",
		Location:          &Location{Lat: 1, Lng: 2},
		AssignedVolunteer: &vol,
		AcceptedAt:        &now,
		DeclinedBy:        VolunteerSet{"vol-2"},
	}
	clone := original.Clone()
	clone.Location.Lat = 9
	*clone.AssignedVolunteer = "vol-9"
	clone.DeclinedBy.Add("vol-3")

	assert.Equal(t, float64(1), original.Location.Lat)
	assert.Equal(t, "vol-1", *original.AssignedVolunteer)
	assert.Equal(t, VolunteerSet{"vol-2"}, original.DeclinedBy)
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, HelpRequestStatusPending.Valid())
	assert.False(t, HelpRequestStatus("unknown").Valid())
	assert.True(t, HelpRequestStatusCompleted.Terminal())
	assert.True(t, HelpRequestStatusCancelled.Terminal())
	assert.False(t, HelpRequestStatusAccepted.Terminal())
}

func TestUserDispatchable(t *testing.T) {
	no := false
	u := &User{Role: RoleVolunteer, Verified: true}
	assert.True(t, u.Dispatchable())
	u.Available = &no
	assert.False(t, u.Dispatchable())
	assert.False(t, (&User{Role: RoleRequester, Verified: true}).Dispatchable())
}
