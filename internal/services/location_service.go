package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benmeehan/locator-agent/internal/models"
	"github.com/benmeehan/locator-agent/pkg/identity"
	"github.com/benmeehan/locator-agent/pkg/locator"
	"github.com/benmeehan/locator-agent/pkg/mqtt"
	"github.com/rs/zerolog"
)

// LocationService periodically looks up the device location and publishes it to an MQTT broker.
type LocationService struct {
	// Configuration fields
	topic        string
	interval     time.Duration
	qos          int
	lookupConfig locator.Config

	// Dependencies
	deviceInfo identity.DeviceInfoInterface
	mqttClient mqtt.MQTTClient
	locator    LocationLookup
	logger     zerolog.Logger

	// Internal state management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	busy    atomic.Bool
}

// NewLocationService creates a new LocationService instance with the provided configuration.
func NewLocationService(topic string, interval time.Duration, qos int, lookupConfig locator.Config, deviceInfo identity.DeviceInfoInterface,
	mqttClient mqtt.MQTTClient, lookup LocationLookup, logger zerolog.Logger) *LocationService {
	return &LocationService{
		topic:        topic,
		interval:     interval,
		qos:          qos,
		lookupConfig: lookupConfig,
		deviceInfo:   deviceInfo,
		mqttClient:   mqttClient,
		locator:      lookup,
		logger:       logger,
	}
}

// Start initiates the LocationService, periodically publishing location data to the MQTT broker.
func (l *LocationService) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		l.logger.Warn().Msg("LocationService is already running")
		return errors.New("location service is already running")
	}

	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.running = true

	ctx := l.ctx
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.lookupAndPublish(ctx)
			case <-ctx.Done():
				l.logger.Info().Msg("LocationService is stopping")
				return
			}
		}
	}()

	l.logger.Info().
		Str("topic", l.topic).
		Dur("interval", l.interval).
		Int("qos", l.qos).
		Msg("LocationService started")
	return nil
}

// Stop gracefully stops the LocationService, ensuring all goroutines are terminated.
// A lookup still in flight settles later and is not published.
func (l *LocationService) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		l.logger.Warn().Msg("LocationService is not running")
		return errors.New("location service is not running")
	}

	l.cancel()
	l.wg.Wait()

	l.running = false
	l.logger.Info().Msg("LocationService stopped")
	return nil
}

// lookupAndPublish starts a lookup unless the previous one is still in flight.
func (l *LocationService) lookupAndPublish(ctx context.Context) {
	if !l.busy.CompareAndSwap(false, true) {
		l.logger.Debug().Msg("Previous location lookup still running, skipping tick")
		return
	}

	l.locator.Lookup(l.lookupConfig, func(o locator.Outcome) {
		defer l.busy.Store(false)

		if ctx.Err() != nil {
			return
		}
		if !o.Success() {
			l.logger.Error().
				Err(o.Err).
				Str("kind", o.Kind().String()).
				Msg("Failed to get location")
			return
		}
		if err := l.publishLocation(o); err != nil {
			l.logger.Error().Err(err).Msg("Failed to publish current location")
		}
	})
}

// publishLocation publishes a fix to the MQTT broker.
func (l *LocationService) publishLocation(o locator.Outcome) error {
	timestamp := time.Now()
	if o.Fix.TimestampMillis > 0 {
		timestamp = time.UnixMilli(o.Fix.TimestampMillis)
	}

	locationMessage := models.Location{
		DeviceID:  l.deviceInfo.GetDeviceID(),
		Timestamp: timestamp,
		Latitude:  o.Fix.Latitude,
		Longitude: o.Fix.Longitude,
		Accuracy:  o.Fix.AccuracyMeters,
	}

	payload, err := json.Marshal(locationMessage)
	if err != nil {
		l.logger.Error().Err(err).Msg("Failed to serialize location message")
		return err
	}

	token := l.mqttClient.Publish(l.topic, byte(l.qos), false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		l.logger.Error().
			Err(err).
			Str("topic", l.topic).
			Msg("Failed to publish location message to MQTT")
		return err
	}

	l.logger.Info().
		Interface("message", locationMessage).
		Str("topic", l.topic).
		Msg("Location published successfully")
	return nil
}
