package dashboard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyrisk/internal/types"
)

func sampleRisk() types.RiskResult {
	hundred := 100
	return types.RiskResult{
		Hot:   types.RiskScore{ClimatologyPercent: 3, ForecastPercent: &hundred},
		Cold:  types.RiskScore{ClimatologyPercent: 5},
		Wet:   types.RiskScore{ClimatologyPercent: 7},
		Windy: types.RiskScore{ClimatologyPercent: 100},
	}
}

func TestReduce_InputEventsDoNotChangePhase(t *testing.T) {
	s := NewViewState("s1", "2025-10-10")

	s = Reduce(s, DateChanged{Date: "2025-12-24"})
	s = Reduce(s, CityChanged{Query: "Oslo"})

	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Equal(t, "2025-12-24", s.SelectedDate)
	assert.Equal(t, "Oslo", s.CityQuery)
	assert.Zero(t, s.Token)
}

func TestReduce_SuccessfulLookup(t *testing.T) {
	s := NewViewState("s1", "2025-10-10")
	loc := types.Location{Latitude: 1, Longitude: 2, DisplayName: "My Location"}

	s = Reduce(s, LookupStarted{Token: 1})
	require.Equal(t, PhaseLoading, s.Phase)
	require.True(t, s.Loading)
	require.Nil(t, s.Risk)

	s = Reduce(s, LocationResolved{Token: 1, Location: loc})
	s = Reduce(s, LookupSucceeded{Token: 1, Risk: sampleRisk()})

	assert.Equal(t, PhaseReady, s.Phase)
	assert.False(t, s.Loading)
	require.NotNil(t, s.Risk)
	assert.Equal(t, sampleRisk(), *s.Risk)
	assert.Equal(t, &loc, s.Location)
}

func TestReduce_StartClearsPriorResultAndNotification(t *testing.T) {
	s := NewViewState("s1", "2025-10-10")
	s = Reduce(s, LookupStarted{Token: 1})
	s = Reduce(s, LookupSucceeded{Token: 1, Risk: sampleRisk()})
	require.NotNil(t, s.Risk)

	s = Reduce(s, LookupStarted{Token: 2})

	assert.True(t, s.Loading)
	assert.Nil(t, s.Risk, "loading must never expose a stale result")
	assert.Empty(t, s.Notification)
}

func TestReduce_FailureReturnsToIdleAndKeepsLocation(t *testing.T) {
	prev := types.Location{Latitude: 10, Longitude: 20, DisplayName: "Oslo, Norway"}
	s := NewViewState("s1", "2025-10-10")
	s = Reduce(s, LookupStarted{Token: 1})
	s = Reduce(s, LocationResolved{Token: 1, Location: prev})
	s = Reduce(s, LookupSucceeded{Token: 1, Risk: sampleRisk()})

	s = Reduce(s, LookupStarted{Token: 2})
	s = Reduce(s, LookupFailed{Token: 2, Err: types.NewAppError(types.ErrCodeGeoPermissionDenied, "denied", nil)})

	assert.Equal(t, PhaseIdle, s.Phase)
	assert.False(t, s.Loading)
	assert.Nil(t, s.Risk)
	assert.Equal(t, MsgGeoPermission, s.Notification)
	assert.Equal(t, types.ErrCodeGeoPermissionDenied, s.ErrorCode)
	assert.Equal(t, &prev, s.Location)
}

func TestReduce_FailureNotificationOverride(t *testing.T) {
	s := NewViewState("s1", "2025-10-10")
	s = Reduce(s, LookupStarted{Token: 1})

	s = Reduce(s, LookupFailed{Token: 1, Err: errors.New("x"), Notification: MsgCitySearchFailed})

	assert.Equal(t, MsgCitySearchFailed, s.Notification)
}

func TestReduce_DismissClearsNotification(t *testing.T) {
	s := NewViewState("s1", "2025-10-10")
	s = Reduce(s, LookupStarted{Token: 1})
	s = Reduce(s, LookupFailed{Token: 1, Err: errors.New("boom")})
	require.Equal(t, MsgFetchFailed, s.Notification)

	s = Reduce(s, NotificationDismissed{})

	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Empty(t, s.Notification)
	assert.Empty(t, s.ErrorCode)
	assert.Nil(t, s.Risk)
}

func TestReduce_NextEventClearsNotification(t *testing.T) {
	failed := NewViewState("s1", "2025-10-10")
	failed = Reduce(failed, LookupStarted{Token: 1})
	failed = Reduce(failed, LookupFailed{Token: 1, Err: types.NewAppError(types.ErrCodeNotFoundLocation, "", nil)})
	require.Equal(t, MsgCityNotFound, failed.Notification)

	for _, ev := range []Event{DateChanged{Date: "2025-10-11"}, CityChanged{Query: "Lima"}, LookupStarted{Token: 2}} {
		s := Reduce(failed, ev)
		assert.Empty(t, s.Notification, "%T", ev)
		assert.Empty(t, s.ErrorCode, "%T", ev)
	}
}

func TestReduce_DismissWithoutNotificationIsNoop(t *testing.T) {
	s := NewViewState("s1", "2025-10-10")
	s = Reduce(s, LookupStarted{Token: 1})
	s = Reduce(s, LookupSucceeded{Token: 1, Risk: sampleRisk()})

	after := Reduce(s, NotificationDismissed{})

	assert.Equal(t, s, after)
}

func TestReduce_StaleTokensIgnored(t *testing.T) {
	s := NewViewState("s1", "2025-10-10")
	s = Reduce(s, LookupStarted{Token: 1})
	s = Reduce(s, LookupStarted{Token: 2})

	late := types.Location{Latitude: 9, Longitude: 9}
	s = Reduce(s, LocationResolved{Token: 1, Location: late})
	s = Reduce(s, LookupSucceeded{Token: 1, Risk: sampleRisk()})
	s = Reduce(s, LookupFailed{Token: 1, Err: errors.New("late")})

	assert.Equal(t, PhaseLoading, s.Phase)
	assert.Nil(t, s.Location)
	assert.Nil(t, s.Risk)
	assert.Empty(t, s.Notification)
	assert.Equal(t, uint64(2), s.Token)
}

func TestReduce_NonIncreasingStartIgnored(t *testing.T) {
	s := NewViewState("s1", "2025-10-10")
	s = Reduce(s, LookupStarted{Token: 5})
	s = Reduce(s, LookupSucceeded{Token: 5, Risk: sampleRisk()})

	after := Reduce(s, LookupStarted{Token: 5})

	assert.Equal(t, s, after)
}

func TestReduce_LateEventAfterCompletionIgnored(t *testing.T) {
	s := NewViewState("s1", "2025-10-10")
	s = Reduce(s, LookupStarted{Token: 1})
	s = Reduce(s, LookupSucceeded{Token: 1, Risk: sampleRisk()})

	after := Reduce(s, LookupFailed{Token: 1, Err: errors.New("dup")})

	assert.Equal(t, PhaseReady, after.Phase)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	loc := types.Location{Latitude: 1, Longitude: 1}
	s := NewViewState("s1", "2025-10-10")
	s = Reduce(s, LookupStarted{Token: 1})
	s = Reduce(s, LocationResolved{Token: 1, Location: loc})
	before := s
	beforeLoc := *s.Location

	_ = Reduce(s, LocationResolved{Token: 1, Location: types.Location{Latitude: 2, Longitude: 2}})

	assert.Equal(t, before, s)
	assert.Equal(t, beforeLoc, *s.Location)
}

func TestNotificationFor(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{types.NewAppError(types.ErrCodeNotFoundLocation, "", nil), MsgCityNotFound},
		{types.NewAppError(types.ErrCodeGeoUnsupported, "", nil), MsgGeoUnsupported},
		{types.NewAppError(types.ErrCodeGeoPermissionDenied, "", nil), MsgGeoPermission},
		{types.NewAppError(types.ErrCodeGeoPositionUnavailable, "", nil), MsgLocationUnavailable},
		{types.NewAppError(types.ErrCodeUpstreamMalformed, "", nil), MsgFetchFailed},
		{errors.New("plain"), MsgFetchFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NotificationFor(tt.err))
	}
}
