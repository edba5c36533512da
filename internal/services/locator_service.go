package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/locator-agent/internal/constants"
	"github.com/benmeehan/locator-agent/internal/models"
	"github.com/benmeehan/locator-agent/internal/utils"
	"github.com/benmeehan/locator-agent/pkg/identity"
	"github.com/benmeehan/locator-agent/pkg/locator"
	"github.com/benmeehan/locator-agent/pkg/mqtt"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// LocationLookup is the part of the locator used by the services.
type LocationLookup interface {
	Lookup(cfg locator.Config, deliver func(locator.Outcome)) string
	Available() bool
}

// pendingRequest is a getLocation call waiting for its outcome.
type pendingRequest struct {
	ReceivedAt time.Time
}

// LocatorService answers location calls from the application layer received over MQTT.
// Requests arrive on <topic>/<device_id> and replies go to <topic>/<device_id>/response.
type LocatorService struct {
	// Configuration fields
	subTopic     string
	qos          int
	workers      int
	lookupConfig locator.Config

	// Dependencies
	mqttClient mqtt.MQTTClient
	deviceInfo identity.DeviceInfoInterface
	locator    LocationLookup
	logger     zerolog.Logger

	// Internal state management
	inflight cmap.ConcurrentMap[string, *pendingRequest] // keyed by request_id
	pool     *utils.WorkerPool
	mu       sync.Mutex
	running  bool
}

// NewLocatorService creates a new LocatorService.
func NewLocatorService(subTopic string, qos, workers int, lookupConfig locator.Config, mqttClient mqtt.MQTTClient,
	deviceInfo identity.DeviceInfoInterface, lookup LocationLookup, logger zerolog.Logger) *LocatorService {
	if workers <= 0 {
		workers = constants.DefaultLocatorWorkers
	}
	return &LocatorService{
		subTopic:     subTopic,
		qos:          qos,
		workers:      workers,
		lookupConfig: lookupConfig,
		mqttClient:   mqttClient,
		deviceInfo:   deviceInfo,
		locator:      lookup,
		logger:       logger,
		inflight:     cmap.New[*pendingRequest](),
	}
}

func (s *LocatorService) requestTopic() string {
	return s.subTopic + "/" + s.deviceInfo.GetDeviceID()
}

func (s *LocatorService) responseTopic() string {
	return fmt.Sprintf("%s/%s/response", s.subTopic, s.deviceInfo.GetDeviceID())
}

// Start subscribes to the request topic.
func (s *LocatorService) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn().Msg("LocatorService is already running")
		return errors.New("locator service is already running")
	}
	pool := utils.NewWorkerPool(s.workers)
	s.pool = pool
	s.running = true
	s.mu.Unlock()

	topic := s.requestTopic()
	token := s.mqttClient.Subscribe(topic, byte(s.qos), s.HandleRequest)
	token.Wait()
	if err := token.Error(); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		pool.Shutdown()
		s.logger.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe to locator topic")
		return err
	}

	s.logger.Info().
		Str("topic", topic).
		Bool("available", s.locator.Available()).
		Msg("LocatorService started")
	return nil
}

// Stop unsubscribes and drains pending replies. Lookups still in flight settle
// later and their replies are dropped.
func (s *LocatorService) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Warn().Msg("LocatorService is not running")
		return errors.New("locator service is not running")
	}
	s.running = false
	pool := s.pool
	s.mu.Unlock()

	topic := s.requestTopic()
	token := s.mqttClient.Unsubscribe(topic)
	token.Wait()
	unsubscribeErr := token.Error()
	if unsubscribeErr != nil {
		s.logger.Error().Err(unsubscribeErr).Str("topic", topic).Msg("Failed to unsubscribe from locator topic")
	}

	pool.Shutdown()

	s.logger.Info().
		Int("pending_lookups", s.inflight.Count()).
		Strs("pending_request_ids", s.inflight.Keys()).
		Msg("LocatorService stopped")
	return unsubscribeErr
}

// HandleRequest dispatches one call from the application layer.
func (s *LocatorService) HandleRequest(_ MQTT.Client, msg MQTT.Message) {
	var req models.LocatorRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		s.logger.Error().Err(err).Str("topic", msg.Topic()).Msg("Failed to decode locator request")
		return
	}

	logger := s.logger.With().Str("request_id", req.RequestID).Str("method", req.Method).Logger()
	logger.Debug().Msg("Received locator request")

	if req.RequestID == "" {
		s.reply(models.LocatorResponse{
			Method: req.Method,
			Error:  &models.LocatorError{Code: constants.ErrCodeBadRequest, Message: "request_id is required"},
		})
		return
	}

	switch req.Method {
	case constants.MethodIsAvailable:
		s.reply(models.LocatorResponse{RequestID: req.RequestID, Method: req.Method, Result: s.locator.Available()})

	case constants.MethodGetLocation:
		s.startLookup(req, logger)

	default:
		logger.Warn().Msg("Unsupported locator method")
		s.reply(models.LocatorResponse{
			RequestID: req.RequestID,
			Method:    req.Method,
			Error:     &models.LocatorError{Code: constants.ErrCodeNotImplemented, Message: "method not implemented: " + req.Method},
		})
	}
}

// startLookup runs one lookup per request_id. A request_id that is still in
// flight is rejected so every caller gets exactly one reply per lookup.
func (s *LocatorService) startLookup(req models.LocatorRequest, logger zerolog.Logger) {
	pending := &pendingRequest{ReceivedAt: time.Now()}
	if !s.inflight.SetIfAbsent(req.RequestID, pending) {
		logger.Warn().Msg("Duplicate request_id while a lookup is in flight")
		s.reply(models.LocatorResponse{
			RequestID: req.RequestID,
			Method:    req.Method,
			Error:     &models.LocatorError{Code: constants.ErrCodeDuplicateRequest, Message: "a lookup with this request_id is already in flight"},
		})
		return
	}

	lookupID := s.locator.Lookup(s.lookupConfig, func(o locator.Outcome) {
		s.inflight.Remove(req.RequestID)
		logger.Debug().
			Str("lookup_id", o.RequestID).
			Dur("elapsed", time.Since(pending.ReceivedAt)).
			Bool("success", o.Success()).
			Msg("Location lookup completed")
		s.reply(responseForOutcome(req, o))
	})

	logger.Debug().Str("lookup_id", lookupID).Msg("Location lookup started")
}

// Pending reports whether a getLocation call with requestID is still waiting for its outcome.
func (s *LocatorService) Pending(requestID string) bool {
	return s.inflight.Has(requestID)
}

// reply publishes resp from the worker pool so that locator goroutines never wait on MQTT.
func (s *LocatorService) reply(resp models.LocatorResponse) {
	s.mu.Lock()
	pool := s.pool
	running := s.running
	s.mu.Unlock()

	if !running || pool == nil || !pool.Submit(func() { s.publish(resp) }) {
		s.logger.Warn().Str("request_id", resp.RequestID).Msg("LocatorService stopped, dropping reply")
	}
}

func (s *LocatorService) publish(resp models.LocatorResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", resp.RequestID).Msg("Failed to serialize locator response")
		return
	}

	topic := s.responseTopic()
	token := s.mqttClient.Publish(topic, byte(s.qos), false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Str("request_id", resp.RequestID).Msg("Failed to publish locator response")
		return
	}
	s.logger.Debug().Str("topic", topic).Str("request_id", resp.RequestID).Msg("Locator response published")
}

// responseForOutcome maps a lookup outcome onto the application-facing result.
func responseForOutcome(req models.LocatorRequest, o locator.Outcome) models.LocatorResponse {
	resp := models.LocatorResponse{RequestID: req.RequestID, Method: req.Method}
	if o.Success() {
		resp.Result = models.LocationResult{
			Latitude:  o.Fix.Latitude,
			Longitude: o.Fix.Longitude,
			Accuracy:  o.Fix.AccuracyMeters,
			Timestamp: o.Fix.TimestampMillis,
		}
		return resp
	}

	message := o.Err.Error()
	var lerr *locator.Error
	if errors.As(o.Err, &lerr) && lerr.Message != "" {
		message = lerr.Message
	}
	resp.Error = &models.LocatorError{Code: errorCode(o.Kind()), Message: message}
	return resp
}

func errorCode(kind locator.ErrorKind) string {
	switch kind {
	case locator.PermissionDenied:
		return constants.ErrCodePermissionDenied
	case locator.Timeout:
		return constants.ErrCodeTimeout
	case locator.ProviderError:
		return constants.ErrCodeProviderError
	case locator.LocationUnavailable:
		return constants.ErrCodeLocationUnavailable
	case locator.NotAvailable:
		return constants.ErrCodeNotAvailable
	default:
		return constants.ErrCodeProviderError
	}
}
