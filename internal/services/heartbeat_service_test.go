package services_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/benmeehan/locator-agent/internal/constants"
	"github.com/benmeehan/locator-agent/internal/mocks"
	"github.com/benmeehan/locator-agent/internal/models"
	"github.com/benmeehan/locator-agent/internal/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestHeartbeatService_Start_Success tests the successful start of the HeartbeatService.
func TestHeartbeatService_Start_Success(t *testing.T) {
	// Setup
	mockDeviceInfo := new(mocks.MockDeviceInfo)
	mockMQTTClient := new(mocks.MockMQTTClient)
	logger := zerolog.Nop()

	mockDeviceInfo.On("GetDeviceID").Return("test-device-id")

	h := services.NewHeartbeatService(
		"test-topic",
		1*time.Second,
		1,
		mockDeviceInfo,
		mockMQTTClient,
		mocks.NewFakeLookup(fixOutcome(), true),
		logger,
	)

	// Execute
	err := h.Start()

	// Assert
	assert.NoError(t, err)

	// Try to start again (should fail)
	err = h.Start()
	assert.Error(t, err)
	assert.Equal(t, "heartbeat service is already running", err.Error())

	// Cleanup
	err = h.Stop()
	assert.NoError(t, err)
}

// TestHeartbeatService_Stop_Success tests the successful stop of the HeartbeatService.
func TestHeartbeatService_Stop_Success(t *testing.T) {
	mockDeviceInfo := new(mocks.MockDeviceInfo)
	mockMQTTClient := new(mocks.MockMQTTClient)

	h := services.NewHeartbeatService("test-topic", time.Second, 1, mockDeviceInfo, mockMQTTClient,
		mocks.NewFakeLookup(fixOutcome(), true), zerolog.Nop())

	require.NoError(t, h.Start())
	assert.NoError(t, h.Stop())

	err := h.Stop()
	assert.Error(t, err)
	assert.Equal(t, "heartbeat service is not running", err.Error())
}

// TestHeartbeatService_ReportsLocationAvailability checks the status derived from the capability probe.
func TestHeartbeatService_ReportsLocationAvailability(t *testing.T) {
	tests := []struct {
		name      string
		available bool
		status    string
	}{
		{"available", true, constants.StatusAlive},
		{"degraded", false, constants.StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDeviceInfo := new(mocks.MockDeviceInfo)
			mockMQTTClient := new(mocks.MockMQTTClient)
			mockDeviceInfo.On("GetDeviceID").Return("test-device-id")

			beats := make(chan models.Heartbeat, 16)
			mockMQTTClient.On("Publish", "test-topic", byte(1), false, mock.Anything).
				Run(func(args mock.Arguments) {
					var hb models.Heartbeat
					if err := json.Unmarshal(args.Get(3).([]byte), &hb); err == nil {
						select {
						case beats <- hb:
						default:
						}
					}
				}).
				Return(mocks.NewMockToken(nil))

			h := services.NewHeartbeatService("test-topic", 20*time.Millisecond, 1, mockDeviceInfo, mockMQTTClient,
				mocks.NewFakeLookup(fixOutcome(), tt.available), zerolog.Nop())
			h.Uptime = func() (uint64, error) { return 3600, nil }
			require.NoError(t, h.Start())
			defer h.Stop()

			select {
			case hb := <-beats:
				assert.Equal(t, "test-device-id", hb.DeviceID)
				assert.Equal(t, tt.status, hb.Status)
				assert.Equal(t, tt.available, hb.LocationAvailable)
				assert.EqualValues(t, 3600, hb.UptimeSeconds)
			case <-time.After(2 * time.Second):
				t.Fatal("heartbeat was not published")
			}
		})
	}
}

// TestHeartbeatService_runHeartbeatLoop_PublishError tests the heartbeat loop with a publishing error.
func TestHeartbeatService_runHeartbeatLoop_PublishError(t *testing.T) {
	mockDeviceInfo := new(mocks.MockDeviceInfo)
	mockMQTTClient := new(mocks.MockMQTTClient)
	mockDeviceInfo.On("GetDeviceID").Return("test-device-id")
	mockMQTTClient.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(mocks.NewMockToken(errors.New("publish failed")))

	h := services.NewHeartbeatService("test-topic", 20*time.Millisecond, 1, mockDeviceInfo, mockMQTTClient,
		mocks.NewFakeLookup(fixOutcome(), true), zerolog.Nop())
	h.Uptime = func() (uint64, error) { return 0, errors.New("no /proc") }

	require.NoError(t, h.Start())

	// Wait for at least one heartbeat to be attempted
	time.Sleep(70 * time.Millisecond)

	require.NoError(t, h.Stop())

	mockDeviceInfo.AssertExpectations(t)
	mockMQTTClient.AssertExpectations(t)
}
