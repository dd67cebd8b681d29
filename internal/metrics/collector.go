// Package metrics exports the cached state of every unit as Prometheus metrics.
// Scrapes read the caches only; they never talk to the units.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/daikin-climate/internal/controller"
	"github.com/thatsimonsguy/daikin-climate/internal/modes"
)

type DaikinCollector struct {
	controller *controller.Controller
	metrics    *MetricSet
}

func NewDaikinCollector(c *controller.Controller) *DaikinCollector {
	return &DaikinCollector{
		controller: c,
		metrics:    newMetricSet(),
	}
}

// Describe implements prometheus.Collector.
func (c *DaikinCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.metrics.available
	ch <- c.metrics.currentTemperature
	ch <- c.metrics.targetTemperature
	ch <- c.metrics.operationMode
	ch <- c.metrics.sensorValue
	ch <- c.metrics.consecutiveFails
}

// Collect implements prometheus.Collector.
func (c *DaikinCollector) Collect(ch chan<- prometheus.Metric) {
	for _, d := range c.controller.Devices() {
		err := c.controller.WithDevice(d.ID, func(d *controller.Device) error {
			c.collectDevice(ch, d)
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("device", d.ID).Msg("Skipping device in scrape")
		}
	}
}

func (c *DaikinCollector) collectDevice(ch chan<- prometheus.Metric, d *controller.Device) {
	m := c.metrics
	name := d.Climate.Name()
	labels := []string{d.ID, name}

	ch <- prometheus.MustNewConstMetric(m.available, prometheus.GaugeValue, boolToFloat(d.Available()), labels...)
	ch <- prometheus.MustNewConstMetric(m.consecutiveFails, prometheus.GaugeValue, float64(d.Failures()), labels...)

	// stale readings are not exported for an unavailable unit
	if !d.Available() {
		return
	}

	ch <- prometheus.MustNewConstMetric(m.currentTemperature, prometheus.GaugeValue, d.Climate.CurrentTemperature(), labels...)
	if target, ok := d.Climate.TargetTemperature(); ok {
		ch <- prometheus.MustNewConstMetric(m.targetTemperature, prometheus.GaugeValue, target, labels...)
	}

	current := d.Climate.CurrentOperation()
	for _, mode := range modes.Operation.Labels() {
		ch <- prometheus.MustNewConstMetric(m.operationMode, prometheus.GaugeValue,
			boolToFloat(mode == current), d.ID, name, mode)
	}

	for _, s := range d.Sensors {
		if v, ok := s.Value(); ok {
			ch <- prometheus.MustNewConstMetric(m.sensorValue, prometheus.GaugeValue, v, d.ID, name, s.Field())
		}
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
