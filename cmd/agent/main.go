package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/benmeehan/locator-agent/internal/service_registry"
	"github.com/benmeehan/locator-agent/internal/utils"
	"github.com/benmeehan/locator-agent/pkg/file"
	"github.com/benmeehan/locator-agent/pkg/identity"
	"github.com/benmeehan/locator-agent/pkg/location"
	"github.com/benmeehan/locator-agent/pkg/locator"
	"github.com/benmeehan/locator-agent/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the agent configuration")
	flag.Parse()

	// Set up structured logging with JSON output
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.InfoLevel)

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}

	// Initialize DeviceInfo, generating an ID on first start
	deviceInfo := identity.NewDeviceInfo(config.Identity.DeviceFile, fileClient)
	if err := deviceInfo.LoadDeviceInfo(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load device information")
	}
	if deviceInfo.GetDeviceID() == "" {
		if err := deviceInfo.SaveDeviceID(uuid.NewString()); err != nil {
			log.Fatal().Err(err).Msg("Failed to save device ID")
		}
	}
	log = log.With().Str("device_id", deviceInfo.GetDeviceID()).Logger()

	// Generate a unique MQTT Client ID by appending a UUID
	config.MQTT.ClientID = config.MQTT.ClientID + "-" + uuid.New().String()
	log.Info().Msgf("Using MQTT Client ID: %s", config.MQTT.ClientID)

	// Initialize the shared MQTT connection
	mqttClient := mqtt.NewMqttService(fileClient, log)
	if err := mqttClient.Initialize(config.MQTT.Broker, config.MQTT.ClientID, config.MQTT.CACertificate); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
	}

	// GPS serves high-accuracy requests, network geolocation serves low-power ones
	var highAccuracy, lowPower location.Provider
	if config.Providers.GPSDevicePort != "" {
		highAccuracy = location.NewDeviceSensorProvider(config.Providers.GPSDevicePort, config.Providers.GPSDeviceBaudRate)
	}
	if config.Providers.MapsAPIKey != "" {
		provider, err := location.NewGoogleGeolocationProvider(config.Providers.MapsAPIKey, config.Providers.ModemIndex, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Google Geolocation provider")
		}
		lowPower = provider
	}
	source := location.NewFusedSource(highAccuracy, lowPower, nil, log)

	loc := locator.New(source,
		locator.WithPermission(location.NewDevicePermission(config.Providers.GPSDevicePort, lowPower != nil)),
		locator.WithProbe(location.NewCapabilityProbe(config.Providers.GPSDevicePort, lowPower != nil, fileClient)),
		locator.WithLogger(log),
	)
	if !loc.Available() {
		log.Warn().Msg("No location provider is usable, lookups will be rejected")
	}

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(mqttClient, log)

	// Register all services based on the configuration
	if err := serviceRegistry.RegisterServices(config, deviceInfo, loc); err != nil {
		log.Fatal().Err(err).Msg("Failed to register services")
	}

	// Start all registered services in the registry
	if err := serviceRegistry.StartServices(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start services")
	}
	log.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Some services failed to stop")
	}
	if err := source.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close location providers")
	}
	mqttClient.Disconnect(250)
}
