package geocoding_test

import (
	"log/slog"
	"testing"

	"github.com/UnknownOlympus/convoy/internal/geocoding"
	"github.com/UnknownOlympus/convoy/internal/models"
	"github.com/UnknownOlympus/convoy/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func TestGoogleProvider_Geocode(t *testing.T) {
	mockClient := mocks.NewGoogleAPIClient(t)
	provider := geocoding.NewGoogleProvider(mockClient, slog.Default())
	ctx := t.Context()

	t.Run("api returns error", func(t *testing.T) {
		address := "some invalid place"
		req := &maps.GeocodingRequest{Address: address}

		mockClient.On("Geocode", ctx, req).Return(nil, assert.AnError).Once()

		_, err := provider.Geocode(ctx, address)

		require.Error(t, err)
		require.ErrorIs(t, err, assert.AnError)
		mockClient.AssertExpectations(t)
	})

	t.Run("api return empty response", func(t *testing.T) {
		address := "some invalid place"
		req := &maps.GeocodingRequest{Address: address}

		mockClient.On("Geocode", ctx, req).Return(nil, nil).Once()

		coords, err := provider.Geocode(ctx, address)

		require.Nil(t, coords)
		require.ErrorIs(t, err, geocoding.ErrEmptyResponse)
		mockClient.AssertExpectations(t)
	})

	t.Run("successful geocoding", func(t *testing.T) {
		address := "2533 Hillegass Ave, Berkeley, CA 94704"
		req := &maps.GeocodingRequest{Address: address}
		mockResponse := []maps.GeocodingResult{
			{Geometry: maps.AddressGeometry{Location: maps.LatLng{Lat: 37.8616, Lng: -122.2566}}},
		}

		mockClient.On("Geocode", ctx, req).Return(mockResponse, nil).Once()

		coords, err := provider.Geocode(ctx, address)

		require.NoError(t, err)
		require.NotNil(t, coords)
		require.InEpsilon(t, 37.8616, coords.Latitude, 0.0001)
		require.InEpsilon(t, -122.2566, coords.Longitude, 0.0001)
		mockClient.AssertExpectations(t)
	})
}

func TestGoogleProvider_Reverse(t *testing.T) {
	mockClient := mocks.NewGoogleAPIClient(t)
	provider := geocoding.NewGoogleProvider(mockClient, slog.Default())
	ctx := t.Context()
	coords := models.Coordinates{Latitude: 34.0644, Longitude: -118.2975}
	req := &maps.GeocodingRequest{LatLng: &maps.LatLng{Lat: coords.Latitude, Lng: coords.Longitude}}

	t.Run("api returns error", func(t *testing.T) {
		mockClient.On("ReverseGeocode", ctx, req).Return(nil, assert.AnError).Once()

		address, err := provider.Reverse(ctx, coords)

		require.ErrorIs(t, err, assert.AnError)
		assert.Empty(t, address)
	})

	t.Run("no results", func(t *testing.T) {
		mockClient.On("ReverseGeocode", ctx, req).Return([]maps.GeocodingResult{}, nil).Once()

		_, err := provider.Reverse(ctx, coords)

		require.ErrorIs(t, err, geocoding.ErrNoAddress)
	})

	t.Run("formatted address", func(t *testing.T) {
		mockClient.On("ReverseGeocode", ctx, req).Return([]maps.GeocodingResult{
			{FormattedAddress: "528 S Alexandria Ave, Los Angeles, CA 90020, USA"},
		}, nil).Once()

		address, err := provider.Reverse(ctx, coords)

		require.NoError(t, err)
		assert.Equal(t, "528 S Alexandria Ave, Los Angeles, CA 90020, USA", address)
	})
}
