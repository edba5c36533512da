package location

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/tarm/serial"
)

const (
	// hdopToMeters approximates a horizontal accuracy radius from HDOP (typical UERE).
	hdopToMeters = 5.0

	// maxSentences bounds how many NMEA lines are read before giving up on a GGA sentence.
	maxSentences = 64

	serialReadTimeout = 2 * time.Second
)

// DeviceSensorProvider is responsible for retrieving location data from a GPS device connected via serial port.
type DeviceSensorProvider struct {
	port     string // Serial port to which the GPS device is connected
	baudRate int    // Baud rate for the serial communication

	openPort func() (io.ReadCloser, error)
}

// NewDeviceSensorProvider creates a new instance of DeviceSensorProvider with the specified port and baud rate.
func NewDeviceSensorProvider(port string, baudRate int) *DeviceSensorProvider {
	d := &DeviceSensorProvider{
		port:     port,
		baudRate: baudRate,
	}
	d.openPort = d.openSerial
	return d
}

func (d *DeviceSensorProvider) openSerial() (io.ReadCloser, error) {
	p, err := serial.OpenPort(&serial.Config{Name: d.port, Baud: d.baudRate, ReadTimeout: serialReadTimeout})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetLocation reads GPS data from the device and returns the device's location.
// A receiver that reports no satellite fix yields ErrNoFix.
func (d *DeviceSensorProvider) GetLocation(ctx context.Context) (Fix, error) {
	rc, err := d.openPort()
	if err != nil {
		return Fix{}, fmt.Errorf("failed to open GPS port %s: %w", d.port, err)
	}
	defer rc.Close()

	// Unblock the scanner if the caller gives up
	stop := context.AfterFunc(ctx, func() { _ = rc.Close() })
	defer stop()

	scanner := bufio.NewScanner(rc)
	for read := 0; read < maxSentences && scanner.Scan(); read++ {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}

		// The first line after opening the port is often truncated
		sentence, err := nmea.Parse(line)
		if err != nil {
			continue
		}

		gga, ok := sentence.(nmea.GGA)
		if !ok {
			continue
		}
		if gga.FixQuality == nmea.Invalid {
			return Fix{}, ErrNoFix
		}

		return Fix{
			Latitude:       gga.Latitude,
			Longitude:      gga.Longitude,
			AccuracyMeters: gga.HDOP * hdopToMeters,
		}, nil
	}

	if ctx.Err() != nil {
		return Fix{}, ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return Fix{}, fmt.Errorf("failed to read GPS port %s: %w", d.port, err)
	}

	return Fix{}, ErrNoFix
}

// Close is a no-op; the port is only held open for the duration of a read.
func (d *DeviceSensorProvider) Close() error {
	return nil
}
