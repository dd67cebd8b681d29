// Package climate exposes a unit as a climate entity: human-readable modes,
// a cached view of the unit's state and the four commands.
package climate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/daikin-climate/internal/daikin"
	"github.com/thatsimonsguy/daikin-climate/internal/model"
	"github.com/thatsimonsguy/daikin-climate/internal/modes"
)

const (
	MinTemp = 18.0
	MaxTemp = 30.0
)

// State is the cached view of the unit. It is replaced as a whole, never patched.
type State struct {
	CurrentTemperature float64
	TargetTemperature  *float64
	Operation          string
	FanMode            string
	SwingMode          string
}

// Listener is called after a command has been accepted by the unit.
type Listener func(c *Climate)

type Climate struct {
	client     *daikin.Client
	reconciler *daikin.Reconciler
	name       string
	state      State
	listeners  []Listener
}

type Option func(*options)

type options struct {
	clientOpts []daikin.Option
	listeners  []Listener
}

func WithClientOptions(opts ...daikin.Option) Option {
	return func(o *options) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

func WithListener(l Listener) Option {
	return func(o *options) {
		o.listeners = append(o.listeners, l)
	}
}

// New connects to the unit at address, resolves its name and performs the first
// update. No Climate is returned unless both succeed.
func New(ctx context.Context, address string, opts ...Option) (*Climate, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	client := daikin.NewClient(address, o.clientOpts...)
	name, err := client.Name(ctx)
	if err != nil {
		log.Error().Err(err).Str("device", address).Msg("Unable to connect to unit")
		return nil, fmt.Errorf("connect %s: %w", address, err)
	}

	c := &Climate{
		client:     client,
		reconciler: daikin.NewReconciler(client),
		name:       name,
		listeners:  o.listeners,
	}
	if err := c.Update(ctx); err != nil {
		return nil, fmt.Errorf("initial update of %s: %w", name, err)
	}
	return c, nil
}

// AddListener registers l for state changes caused by commands.
func (c *Climate) AddListener(l Listener) {
	c.listeners = append(c.listeners, l)
}

// Update refreshes the cache from sensor info and control info. The cache is only
// replaced once both reads have been fully decoded.
func (c *Climate) Update(ctx context.Context) error {
	sensors, err := c.client.SensorInfo(ctx)
	if err != nil {
		return err
	}
	if sensors.Indoor == nil {
		return fmt.Errorf("%w: sensor info has no numeric %s", daikin.ErrMalformedResponse, model.FieldIndoorTemperature)
	}

	control, err := c.client.ControlInfo(ctx)
	if err != nil {
		return err
	}

	next, err := stateFromControl(control)
	if err != nil {
		return err
	}
	next.CurrentTemperature = *sensors.Indoor

	c.state = next
	return nil
}

func (c *Climate) SetTemperature(ctx context.Context, value float64) error {
	return c.write(ctx, map[string]string{model.FieldTargetTemperature: model.FormatDecimal(value)})
}

func (c *Climate) SetFanMode(ctx context.Context, label string) error {
	code, err := modes.FanRate.Code(label)
	if err != nil {
		return err
	}
	return c.write(ctx, map[string]string{model.FieldFanRate: code})
}

func (c *Climate) SetSwingMode(ctx context.Context, label string) error {
	code, err := modes.Swing.Code(label)
	if err != nil {
		return err
	}
	return c.write(ctx, map[string]string{model.FieldFanDirection: code})
}

func (c *Climate) SetOperationMode(ctx context.Context, label string) error {
	code, err := modes.Operation.Code(label)
	if err != nil {
		return err
	}
	if code == modes.OffCode {
		return c.write(ctx, map[string]string{model.FieldPower: "0"})
	}
	return c.write(ctx, map[string]string{model.FieldPower: "1", model.FieldMode: code})
}

// write sends a full vector and, once the unit accepts it, derives the cache from
// exactly what was written.
func (c *Climate) write(ctx context.Context, overrides map[string]string) error {
	fields, err := c.reconciler.PrepareWrite(ctx, overrides)
	if err != nil {
		return err
	}

	vector, err := model.ControlVectorFromFields(fields)
	if err != nil {
		return err
	}
	next, err := stateFromControl(vector)
	if err != nil {
		return err
	}
	next.CurrentTemperature = c.state.CurrentTemperature

	if _, err := c.client.SetControl(ctx, fields); err != nil {
		return err
	}

	c.state = next
	log.Info().
		Str("device", c.name).
		Str("operation", next.Operation).
		Str("fan_mode", next.FanMode).
		Str("swing_mode", next.SwingMode).
		Msg("Unit accepted command")

	for _, l := range c.listeners {
		l(c)
	}
	return nil
}

func stateFromControl(v model.ControlVector) (State, error) {
	var s State

	operation, err := operationFromControl(v)
	if err != nil {
		return State{}, err
	}
	s.Operation = operation

	if s.FanMode, err = modes.FanRate.Label(v.FanRate); err != nil {
		return State{}, err
	}
	if s.SwingMode, err = modes.Swing.Label(v.FanDirection); err != nil {
		return State{}, err
	}

	s.TargetTemperature = model.ParseDecimal(v.TargetTemperature)
	return s, nil
}

func operationFromControl(v model.ControlVector) (string, error) {
	power, err := strconv.Atoi(v.Power)
	if err != nil {
		return "", fmt.Errorf("%w: pow=%q", daikin.ErrMalformedResponse, v.Power)
	}
	if power == 0 {
		return modes.Off, nil
	}

	// Mode 0 while powered is reported by some units; it has always been shown as Auto.
	// Unclear whether it is a real alias, so it is kept as-is.
	mode := v.Mode
	if n, err := strconv.Atoi(mode); err == nil && n == 0 {
		mode = "1"
	}
	return modes.Operation.Label(mode)
}

func (c *Climate) Name() string { return c.name }

func (c *Climate) Address() string { return c.client.Address() }

func (c *Climate) TemperatureUnit() string { return model.Celsius }

func (c *Climate) CurrentTemperature() float64 { return c.state.CurrentTemperature }

// TargetTemperature is only meaningful while the unit regulates to a setpoint.
func (c *Climate) TargetTemperature() (float64, bool) {
	switch c.state.Operation {
	case modes.Auto, modes.Cooling, modes.Heating:
	default:
		return 0, false
	}
	if c.state.TargetTemperature == nil {
		return 0, false
	}
	return *c.state.TargetTemperature, true
}

func (c *Climate) CurrentOperation() string { return c.state.Operation }

func (c *Climate) OperationList() []string { return modes.Operation.Labels() }

func (c *Climate) CurrentFanMode() (string, bool) {
	if c.state.Operation == modes.Off {
		return "", false
	}
	return c.state.FanMode, true
}

func (c *Climate) FanList() []string { return modes.FanRate.Labels() }

func (c *Climate) CurrentSwingMode() (string, bool) {
	if c.state.Operation == modes.Off {
		return "", false
	}
	return c.state.SwingMode, true
}

func (c *Climate) SwingList() []string { return modes.Swing.Labels() }

func (c *Climate) MinTemp() float64 { return MinTemp }

func (c *Climate) MaxTemp() float64 { return MaxTemp }

// Snapshot is the rendered form of the entity used by the API, MQTT and metrics.
type Snapshot struct {
	Name               string   `json:"name"`
	TemperatureUnit    string   `json:"temperature_unit"`
	CurrentTemperature float64  `json:"current_temperature"`
	TargetTemperature  *float64 `json:"target_temperature"`
	Operation          string   `json:"operation"`
	OperationList      []string `json:"operation_list"`
	FanMode            *string  `json:"fan_mode"`
	FanList            []string `json:"fan_list"`
	SwingMode          *string  `json:"swing_mode"`
	SwingList          []string `json:"swing_list"`
	MinTemp            float64  `json:"min_temp"`
	MaxTemp            float64  `json:"max_temp"`
}

func (c *Climate) Snapshot() Snapshot {
	s := Snapshot{
		Name:               c.name,
		TemperatureUnit:    c.TemperatureUnit(),
		CurrentTemperature: c.state.CurrentTemperature,
		Operation:          c.state.Operation,
		OperationList:      c.OperationList(),
		FanList:            c.FanList(),
		SwingList:          c.SwingList(),
		MinTemp:            MinTemp,
		MaxTemp:            MaxTemp,
	}
	if v, ok := c.TargetTemperature(); ok {
		s.TargetTemperature = &v
	}
	if v, ok := c.CurrentFanMode(); ok {
		s.FanMode = &v
	}
	if v, ok := c.CurrentSwingMode(); ok {
		s.SwingMode = &v
	}
	return s
}
