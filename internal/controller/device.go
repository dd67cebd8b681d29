package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/daikin-climate/internal/climate"
	"github.com/thatsimonsguy/daikin-climate/internal/config"
	"github.com/thatsimonsguy/daikin-climate/internal/daikin"
	"github.com/thatsimonsguy/daikin-climate/internal/sensor"
)

// Device groups the entities of one unit. The facades are not safe for concurrent
// use, so every access goes through the device lock (Controller.WithDevice).
type Device struct {
	ID      string
	Address string
	Climate *climate.Climate
	Sensors []*sensor.Sensor

	mu        sync.Mutex
	failures  int
	lastErr   error
	available atomic.Bool
}

func NewDevice(id, address string, c *climate.Climate, sensors ...*sensor.Sensor) *Device {
	d := &Device{ID: id, Address: address, Climate: c, Sensors: sensors}
	d.available.Store(true)
	return d
}

func (d *Device) Available() bool {
	return d.available.Load()
}

// Sensor returns the sensor entity reading field, if configured.
func (d *Device) Sensor(field string) (*sensor.Sensor, bool) {
	for _, s := range d.Sensors {
		if s.Field() == field {
			return s, true
		}
	}
	return nil, false
}

// update refreshes the climate entity and every sensor; all of them are attempted
// even if one fails.
func (d *Device) update(ctx context.Context) error {
	var errs []error
	if err := d.Climate.Update(ctx); err != nil {
		errs = append(errs, fmt.Errorf("climate: %w", err))
	}
	for _, s := range d.Sensors {
		if err := s.Update(ctx); err != nil {
			errs = append(errs, fmt.Errorf("sensor %s: %w", s.Field(), err))
		}
	}
	return errors.Join(errs...)
}

// Connect builds the entities for each configured unit. Units that cannot be
// reached are logged and left out; an error is returned only when none connect.
func Connect(ctx context.Context, devices []config.Device, timeout time.Duration) ([]*Device, error) {
	var connected []*Device
	for _, cfg := range devices {
		d, err := connectDevice(ctx, cfg, timeout)
		if err != nil {
			log.Error().Err(err).Str("device", cfg.ID).Str("ipaddress", cfg.IPAddress).Msg("Skipping unit")
			continue
		}
		log.Info().Str("device", cfg.ID).Str("name", d.Climate.Name()).Int("sensors", len(d.Sensors)).Msg("Connected unit")
		connected = append(connected, d)
	}
	if len(connected) == 0 && len(devices) > 0 {
		return nil, fmt.Errorf("none of %d configured units could be reached", len(devices))
	}
	return connected, nil
}

func connectDevice(ctx context.Context, cfg config.Device, timeout time.Duration) (*Device, error) {
	clientOpts := []daikin.Option{daikin.WithTimeout(timeout)}

	c, err := climate.New(ctx, cfg.IPAddress, climate.WithClientOptions(clientOpts...))
	if err != nil {
		return nil, err
	}

	sensors := make([]*sensor.Sensor, 0, len(cfg.Sensors))
	for _, field := range cfg.Sensors {
		s, err := sensor.New(ctx, cfg.IPAddress, field, clientOpts...)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, s)
	}
	return NewDevice(cfg.ID, cfg.IPAddress, c, sensors...), nil
}

// LastError is the error of the most recent failed poll, nil after a success.
// Call it from inside WithDevice.
func (d *Device) LastError() error {
	return d.lastErr
}

// Failures is the number of consecutive failed polls. Call it from inside WithDevice.
func (d *Device) Failures() int {
	return d.failures
}
