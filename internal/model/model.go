package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/thatsimonsguy/daikin-climate/internal/wire"
)

const Celsius = "°C"

// wire keys of the control vector
const (
	FieldPower             = "pow"
	FieldMode              = "mode"
	FieldTargetTemperature = "stemp"
	FieldTargetHumidity    = "shum"
	FieldFanRate           = "f_rate"
	FieldFanDirection      = "f_dir"
)

// ControlFields lists every key the set-control endpoint requires on each write.
var ControlFields = []string{
	FieldPower,
	FieldMode,
	FieldTargetTemperature,
	FieldTargetHumidity,
	FieldFanRate,
	FieldFanDirection,
}

// sensor-info keys
const (
	FieldIndoorTemperature  = "htemp"
	FieldOutdoorTemperature = "otemp"
)

// ControlVector is the full writable state of a unit, kept in the device's own
// string encoding.
type ControlVector struct {
	Power             string `json:"pow"`
	Mode              string `json:"mode"`
	TargetTemperature string `json:"stemp"`
	TargetHumidity    string `json:"shum"`
	FanRate           string `json:"f_rate"`
	FanDirection      string `json:"f_dir"`
}

func ControlVectorFromFields(fields map[string]string) (ControlVector, error) {
	for _, key := range ControlFields {
		if _, ok := fields[key]; !ok {
			return ControlVector{}, fmt.Errorf("%w: control info is missing %q", wire.ErrMalformedResponse, key)
		}
	}
	return ControlVector{
		Power:             fields[FieldPower],
		Mode:              fields[FieldMode],
		TargetTemperature: fields[FieldTargetTemperature],
		TargetHumidity:    fields[FieldTargetHumidity],
		FanRate:           fields[FieldFanRate],
		FanDirection:      fields[FieldFanDirection],
	}, nil
}

func (v ControlVector) Fields() map[string]string {
	return map[string]string{
		FieldPower:             v.Power,
		FieldMode:              v.Mode,
		FieldTargetTemperature: v.TargetTemperature,
		FieldTargetHumidity:    v.TargetHumidity,
		FieldFanRate:           v.FanRate,
		FieldFanDirection:      v.FanDirection,
	}
}

// SensorSnapshot holds the measured temperatures. A nil field means the unit did not
// report a numeric value for it.
type SensorSnapshot struct {
	Indoor  *float64 `json:"indoor,omitempty"`
	Outdoor *float64 `json:"outdoor,omitempty"`
}

func SensorSnapshotFromFields(fields map[string]string) SensorSnapshot {
	return SensorSnapshot{
		Indoor:  ParseDecimal(fields[FieldIndoorTemperature]),
		Outdoor: ParseDecimal(fields[FieldOutdoorTemperature]),
	}
}

// ParseDecimal returns nil for values the unit uses as placeholders ("-", "--", "M").
func ParseDecimal(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// FormatDecimal renders a temperature the way the unit reports it, e.g. "24.0".
// Extra precision is kept as given, never rounded.
func FormatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// IsPlaceholder reports whether s is one of the values a unit sends instead of a
// reading, e.g. otemp=- while the outdoor unit is idle.
func IsPlaceholder(s string) bool {
	switch s {
	case "-", "--":
		return true
	}
	return false
}

// DeviceRecord is a configured unit as stored in the registry.
type DeviceRecord struct {
	ID         string    `json:"id"`
	IPAddress  string    `json:"ipaddress"`
	Name       string    `json:"name"`
	Sensors    []string  `json:"sensors"`
	ResolvedAt time.Time `json:"resolved_at,omitempty"`
}
