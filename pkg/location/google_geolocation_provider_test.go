package location

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func newTestGeolocationProvider(t *testing.T, handler http.HandlerFunc) *GoogleGeolocationProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g, err := NewGoogleGeolocationProvider("AIzaTestKey", 0, zerolog.Nop(), maps.WithBaseURL(srv.URL))
	require.NoError(t, err)
	return g
}

func TestGoogleGeolocationProvider_GetLocation(t *testing.T) {
	var got maps.GeolocationRequest
	g := newTestGeolocationProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/geolocation/v1/geolocate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"location":{"lat":52.5163,"lng":13.3777},"accuracy":120.5}`))
	})
	g.scanWiFi = func(context.Context) ([]maps.WiFiAccessPoint, error) {
		return []maps.WiFiAccessPoint{{MACAddress: "00:14:22:01:23:45", SignalStrength: -60}}, nil
	}
	g.scanCellTowers = func(context.Context, int) ([]maps.CellTower, error) {
		return nil, errors.New("mmcli not found")
	}

	fix, err := g.GetLocation(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 52.5163, fix.Latitude)
	assert.Equal(t, 13.3777, fix.Longitude)
	assert.Equal(t, 120.5, fix.AccuracyMeters)
	assert.True(t, got.ConsiderIP)
	assert.Len(t, got.WiFiAccessPoints, 1)
	assert.Empty(t, got.CellTowers)
}

func TestNewGoogleGeolocationProvider_MissingKey(t *testing.T) {
	_, err := NewGoogleGeolocationProvider("", 0, zerolog.Nop())

	assert.Error(t, err)
}
