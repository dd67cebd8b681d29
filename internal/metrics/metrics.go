package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	LabelDevice = "device"
	LabelName   = "name"
	LabelMode   = "mode"
	LabelField  = "field"
)

// MetricSet holds the descriptors exported for each unit.
type MetricSet struct {
	available          *prometheus.Desc
	currentTemperature *prometheus.Desc
	targetTemperature  *prometheus.Desc
	operationMode      *prometheus.Desc
	sensorValue        *prometheus.Desc
	consecutiveFails   *prometheus.Desc
}

func newMetricSet() *MetricSet {
	labels := []string{LabelDevice, LabelName}
	labelsWithMode := append(append([]string{}, labels...), LabelMode)
	labelsWithField := append(append([]string{}, labels...), LabelField)

	return &MetricSet{
		available: prometheus.NewDesc(
			"daikin_device_available",
			"Whether the unit answered recent polls (1 = available)",
			labels, nil,
		),
		currentTemperature: prometheus.NewDesc(
			"daikin_current_temperature_celsius",
			"Indoor temperature reported by the unit (°C)",
			labels, nil,
		),
		targetTemperature: prometheus.NewDesc(
			"daikin_target_temperature_celsius",
			"Setpoint while the unit regulates to one (°C)",
			labels, nil,
		),
		operationMode: prometheus.NewDesc(
			"daikin_operation_mode",
			"Current operation mode (1 for the active mode, 0 otherwise)",
			labelsWithMode, nil,
		),
		sensorValue: prometheus.NewDesc(
			"daikin_sensor_value_celsius",
			"Sensor reading from sensor info (°C)",
			labelsWithField, nil,
		),
		consecutiveFails: prometheus.NewDesc(
			"daikin_consecutive_poll_failures",
			"Polls failed in a row since the last success",
			labels, nil,
		),
	}
}
