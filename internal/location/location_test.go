package location

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"skyrisk/internal/types"
)

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Search(ctx context.Context, name string, count int) ([]types.GeocodeResult, error) {
	args := m.Called(ctx, name, count)
	res, _ := args.Get(0).([]types.GeocodeResult)
	return res, args.Error(1)
}

func TestDeviceLocator_Locate(t *testing.T) {
	tests := []struct {
		name     string
		report   *PositionReport
		wantCode types.ErrorCode
		want     types.Location
	}{
		{
			name:     "no report",
			report:   nil,
			wantCode: types.ErrCodeGeoUnsupported,
		},
		{
			name:     "unsupported browser",
			report:   &PositionReport{Supported: false, Coords: &Coordinates{Latitude: 1, Longitude: 2}},
			wantCode: types.ErrCodeGeoUnsupported,
		},
		{
			name:     "permission denied",
			report:   &PositionReport{Supported: true, ErrorCode: GeoErrPermissionDenied},
			wantCode: types.ErrCodeGeoPermissionDenied,
		},
		{
			name:     "position unavailable",
			report:   &PositionReport{Supported: true, ErrorCode: GeoErrPositionUnavailable},
			wantCode: types.ErrCodeGeoPositionUnavailable,
		},
		{
			name:     "timeout",
			report:   &PositionReport{Supported: true, ErrorCode: GeoErrTimeout},
			wantCode: types.ErrCodeGeoPositionUnavailable,
		},
		{
			name:     "supported but no fix",
			report:   &PositionReport{Supported: true},
			wantCode: types.ErrCodeGeoPositionUnavailable,
		},
		{
			name:     "latitude out of range",
			report:   &PositionReport{Supported: true, Coords: &Coordinates{Latitude: 90.5, Longitude: 0}},
			wantCode: types.ErrCodeValidationInvalidLat,
		},
		{
			name:     "longitude out of range",
			report:   &PositionReport{Supported: true, Coords: &Coordinates{Latitude: 0, Longitude: -180.01}},
			wantCode: types.ErrCodeValidationInvalidLon,
		},
		{
			name:   "success rounds to four decimals",
			report: &PositionReport{Supported: true, Coords: &Coordinates{Latitude: 59.913868, Longitude: 10.752245}},
			want:   types.Location{Latitude: 59.9139, Longitude: 10.7522, DisplayName: "My Location"},
		},
	}

	loc := NewDeviceLocator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loc.Locate(context.Background(), tt.report)
			if tt.wantCode != "" {
				assert.True(t, types.HasCode(err, tt.wantCode), "got %v", err)
				assert.Equal(t, types.Location{}, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCitySearcher_Found(t *testing.T) {
	geo := new(mockGeocoder)
	geo.On("Search", mock.Anything, "Madrid", 1).
		Return([]types.GeocodeResult{{Latitude: 40.4168, Longitude: -3.7038, Name: "Madrid", Country: "Spain"}}, nil)

	got, err := NewCitySearcher(geo, nil).Search(context.Background(), "  Madrid ")

	require.NoError(t, err)
	assert.Equal(t, types.Location{Latitude: 40.4168, Longitude: -3.7038, DisplayName: "Madrid, Spain"}, got)
	geo.AssertExpectations(t)
}

func TestCitySearcher_NotFound(t *testing.T) {
	geo := new(mockGeocoder)
	geo.On("Search", mock.Anything, "Xyzzyville", 1).Return([]types.GeocodeResult{}, nil)

	_, err := NewCitySearcher(geo, nil).Search(context.Background(), "Xyzzyville")

	assert.True(t, types.HasCode(err, types.ErrCodeNotFoundLocation))
}

func TestCitySearcher_BlankNameSkipsGeocoder(t *testing.T) {
	geo := new(mockGeocoder)

	_, err := NewCitySearcher(geo, nil).Search(context.Background(), "   ")

	assert.True(t, types.HasCode(err, types.ErrCodeValidationMissingField))
	geo.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestCitySearcher_UpstreamErrorsPassThrough(t *testing.T) {
	geo := new(mockGeocoder)
	upstream := types.NewAppError(types.ErrCodeUpstreamUnavailable, "breaker open", nil)
	geo.On("Search", mock.Anything, "Oslo", 1).Return(nil, upstream)

	_, err := NewCitySearcher(geo, nil).Search(context.Background(), "Oslo")

	assert.ErrorIs(t, err, upstream)
}

func TestCitySearcher_PlainErrorBecomesNetwork(t *testing.T) {
	geo := new(mockGeocoder)
	geo.On("Search", mock.Anything, "Oslo", 1).Return(nil, errors.New("dial tcp: refused"))

	_, err := NewCitySearcher(geo, nil).Search(context.Background(), "Oslo")

	assert.True(t, types.HasCode(err, types.ErrCodeUpstreamNetwork))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Oslo, Norway", DisplayName(types.GeocodeResult{Name: "Oslo", Country: "Norway"}))
	assert.Equal(t, "Atlantis", DisplayName(types.GeocodeResult{Name: "Atlantis"}))
}
