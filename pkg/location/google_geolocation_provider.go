package location

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"
)

const geolocateTimeout = 10 * time.Second

// GoogleGeolocationProvider uses the Google Maps API to get location data.
type GoogleGeolocationProvider struct {
	client     *maps.Client // Maps API client for making geolocation requests
	modemIndex int          // ModemManager index used for cell tower lookups
	logger     zerolog.Logger

	scanWiFi       func(ctx context.Context) ([]maps.WiFiAccessPoint, error)
	scanCellTowers func(ctx context.Context, modemIndex int) ([]maps.CellTower, error)
}

// NewGoogleGeolocationProvider creates a new GoogleGeolocationProvider instance.
// Extra client options are passed through to maps.NewClient.
func NewGoogleGeolocationProvider(apiKey string, modemIndex int, logger zerolog.Logger, opts ...maps.ClientOption) (*GoogleGeolocationProvider, error) {
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}

	return &GoogleGeolocationProvider{
		client:         c,
		modemIndex:     modemIndex,
		logger:         logger,
		scanWiFi:       getWiFiAccessPoints,
		scanCellTowers: scanCellTowersIfSupported,
	}, nil
}

// GetLocation retrieves the device's location using Google Maps Geolocation API.
// Radio scans are best-effort; the request always lets the API fall back to the IP address.
func (g *GoogleGeolocationProvider) GetLocation(ctx context.Context) (Fix, error) {
	ctx, cancel := context.WithTimeout(ctx, geolocateTimeout)
	defer cancel()

	req := &maps.GeolocationRequest{
		ConsiderIP: true,
	}

	wifiAPs, err := g.scanWiFi(ctx)
	if err != nil {
		g.logger.Debug().Err(err).Msg("WiFi scan unavailable, continuing without access points")
	} else {
		req.WiFiAccessPoints = wifiAPs
	}

	cellTowers, err := g.scanCellTowers(ctx, g.modemIndex)
	if err != nil {
		g.logger.Debug().Err(err).Int("modem", g.modemIndex).Msg("Cell scan unavailable, continuing without towers")
	} else {
		req.CellTowers = cellTowers
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		return Fix{}, fmt.Errorf("geolocate request failed: %w", err)
	}

	return Fix{
		Latitude:       resp.Location.Lat,
		Longitude:      resp.Location.Lng,
		AccuracyMeters: resp.Accuracy,
	}, nil
}

// Close releases nothing; the maps client holds no long-lived connections of its own.
func (g *GoogleGeolocationProvider) Close() error {
	return nil
}

func scanCellTowersIfSupported(ctx context.Context, modemIndex int) ([]maps.CellTower, error) {
	ok, err := modemManagerSupportsKeyValue(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("mmcli older than %s", minKeyValueModemManager)
	}
	return getCellTowers(ctx, modemIndex)
}
