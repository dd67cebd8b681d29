// Package sensor exposes one numeric field of a unit's sensor info as an entity.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/thatsimonsguy/daikin-climate/internal/daikin"
	"github.com/thatsimonsguy/daikin-climate/internal/model"
)

var ErrUnknownField = errors.New("unknown sensor field")

// DefaultFields are the sensors created for a unit when none are configured.
var DefaultFields = []string{model.FieldIndoorTemperature, model.FieldOutdoorTemperature}

type Sensor struct {
	client *daikin.Client
	field  string
	name   string
	value  *float64
}

// New resolves the unit's name and reads the field once.
func New(ctx context.Context, address, field string, opts ...daikin.Option) (*Sensor, error) {
	client := daikin.NewClient(address, opts...)
	deviceName, err := client.Name(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", address, err)
	}

	s := &Sensor{
		client: client,
		field:  field,
		name:   deviceName + " " + field,
	}
	if err := s.Update(ctx); err != nil {
		return nil, fmt.Errorf("initial update of %s: %w", s.name, err)
	}
	return s, nil
}

func (s *Sensor) Update(ctx context.Context) error {
	info, err := s.client.Get(ctx, daikin.SensorInfoEndpoint)
	if err != nil {
		return err
	}

	raw, ok := info[s.field]
	if !ok {
		return fmt.Errorf("%w: %q not in sensor info of %s", ErrUnknownField, s.field, s.client.Address())
	}
	// no reading right now; keep the last one
	if model.IsPlaceholder(raw) {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not numeric", daikin.ErrMalformedResponse, s.field, raw)
	}

	s.value = &v
	return nil
}

func (s *Sensor) Name() string { return s.name }

func (s *Sensor) Field() string { return s.field }

func (s *Sensor) Unit() string { return model.Celsius }

// Value is absent until the first successful update.
func (s *Sensor) Value() (float64, bool) {
	if s.value == nil {
		return 0, false
	}
	return *s.value, true
}
