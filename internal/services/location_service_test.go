package services_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/benmeehan/locator-agent/internal/mocks"
	"github.com/benmeehan/locator-agent/internal/models"
	"github.com/benmeehan/locator-agent/internal/services"
	"github.com/benmeehan/locator-agent/pkg/locator"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLocationService(interval time.Duration, lookup services.LocationLookup, mqttClient *mocks.MockMQTTClient) *services.LocationService {
	deviceInfo := new(mocks.MockDeviceInfo)
	deviceInfo.On("GetDeviceID").Return(testDeviceID)

	cfg := locator.DefaultConfig()
	cfg.OverallTimeout = 5 * time.Second

	return services.NewLocationService("location", interval, 1, cfg, deviceInfo, mqttClient, lookup, zerolog.Nop())
}

func TestLocationService_StartStop(t *testing.T) {
	s := newTestLocationService(time.Second, mocks.NewFakeLookup(fixOutcome(), true), new(mocks.MockMQTTClient))

	require.NoError(t, s.Start())
	assert.EqualError(t, s.Start(), "location service is already running")

	require.NoError(t, s.Stop())
	assert.EqualError(t, s.Stop(), "location service is not running")
}

func TestLocationService_PublishesFix(t *testing.T) {
	mqttClient := new(mocks.MockMQTTClient)
	published := make(chan models.Location, 16)
	mqttClient.On("Publish", "location", byte(1), false, mock.Anything).
		Run(func(args mock.Arguments) {
			var loc models.Location
			if err := json.Unmarshal(args.Get(3).([]byte), &loc); err == nil {
				select {
				case published <- loc:
				default:
				}
			}
		}).
		Return(mocks.NewMockToken(nil))

	lookup := mocks.NewFakeLookup(fixOutcome(), true)
	s := newTestLocationService(20*time.Millisecond, lookup, mqttClient)
	require.NoError(t, s.Start())
	defer s.Stop()

	select {
	case loc := <-published:
		assert.Equal(t, testDeviceID, loc.DeviceID)
		assert.InDelta(t, -33.9411, loc.Latitude, 1e-9)
		assert.InDelta(t, 151.4093, loc.Longitude, 1e-9)
		assert.InDelta(t, 12.5, loc.Accuracy, 1e-9)
		assert.True(t, loc.Timestamp.Equal(time.UnixMilli(1700000000000)), "timestamp %v", loc.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("location was not published")
	}

	configs := lookup.Configs()
	require.NotEmpty(t, configs)
	assert.Equal(t, 5*time.Second, configs[0].OverallTimeout)
}

func TestLocationService_FailedLookupIsNotPublished(t *testing.T) {
	mqttClient := new(mocks.MockMQTTClient)
	lookup := mocks.NewFakeLookup(locator.Outcome{Err: &locator.Error{Kind: locator.Timeout, Message: "location request timed out"}}, true)

	s := newTestLocationService(10*time.Millisecond, lookup, mqttClient)
	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool { return lookup.Calls() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	mqttClient.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLocationService_SkipsTicksWhileLookupInFlight(t *testing.T) {
	mqttClient := new(mocks.MockMQTTClient)
	lookup := mocks.NewFakeLookup(fixOutcome(), true)
	lookup.Hold()

	s := newTestLocationService(10*time.Millisecond, lookup, mqttClient)
	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool { return lookup.Calls() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, lookup.Calls())

	// The outcome arrives after Stop and is discarded.
	require.NoError(t, s.Stop())
	lookup.Release()

	mqttClient.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLocationService_PublishError(t *testing.T) {
	mqttClient := new(mocks.MockMQTTClient)
	attempts := make(chan struct{}, 16)
	mqttClient.On("Publish", "location", byte(1), false, mock.Anything).
		Run(func(mock.Arguments) {
			select {
			case attempts <- struct{}{}:
			default:
			}
		}).
		Return(mocks.NewMockToken(errors.New("publish failed")))

	s := newTestLocationService(10*time.Millisecond, mocks.NewFakeLookup(fixOutcome(), true), mqttClient)
	require.NoError(t, s.Start())

	// A failed publish does not stop the next tick.
	for i := 0; i < 2; i++ {
		select {
		case <-attempts:
		case <-time.After(2 * time.Second):
			t.Fatal("publish was not retried on the next tick")
		}
	}
	require.NoError(t, s.Stop())
}
