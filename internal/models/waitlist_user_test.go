package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

func TestParseUserType(t *testing.T) {
	ut, err := ParseUserType("cattery-owner")
	require.NoError(t, err)
	assert.Equal(t, UserTypeCatteryOwner, ut)

	_, err = ParseUserType("dog-walker")
	assert.ErrorIs(t, err, utils.ErrInvalidUserType)
}

func TestNewFallbackUser(t *testing.T) {
	u := NewFallbackUser("Mia", "mia@example.com", UserTypeCatParent, 4321)
	assert.True(t, u.IsLocalFallback())
	assert.True(t, u.IsVerified)
	require.NotNil(t, u.WaitlistPosition)
	assert.Equal(t, 4321, *u.WaitlistPosition)

	var nilUser *WaitlistUser
	assert.False(t, nilUser.IsLocalFallback())
}

func TestApplyGeolocationKeepsOnlyKnownParts(t *testing.T) {
	lat, lng := 51.5, -0.12
	u := &WaitlistUser{}
	u.ApplyGeolocation(&Geolocation{Country: "GB", Latitude: &lat, Longitude: &lng, Timezone: "Europe/London"})

	require.NotNil(t, u.Country)
	assert.Equal(t, "GB", *u.Country)
	assert.Nil(t, u.Region)
	assert.Nil(t, u.City)
	assert.Equal(t, &lat, u.Latitude)
	require.NotNil(t, u.Timezone)
	assert.Equal(t, "Europe/London", *u.Timezone)

	u.ApplyGeolocation(&Geolocation{Latitude: &lat})
	assert.Equal(t, &lng, u.Longitude)
}

func TestAggregateStats(t *testing.T) {
	stats := AggregateStats([]StatsRow{
		{IsVerified: true, QuizCompleted: true},
		{IsVerified: true},
		{},
	})
	assert.Equal(t, WaitlistStats{TotalUsers: 3, VerifiedUsers: 2, CompletedQuizzes: 1}, stats)
}
