package datadog

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/daikin-climate/internal/controller"
	"github.com/thatsimonsguy/daikin-climate/internal/env"
	"github.com/thatsimonsguy/daikin-climate/internal/modes"
)

var dogstatsd *statsd.Client

func InitMetrics() {
	if !env.Cfg.EnableDatadog {
		log.Info().Msg("Datadog metrics disabled")
		return
	}

	var err error
	dogstatsd, err = statsd.New(env.Cfg.DDAgentAddr)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create DogStatsD client")
		return
	}

	dogstatsd.Namespace = env.Cfg.DDNamespace
	dogstatsd.Tags = env.Cfg.DDTags

	log.Info().
		Str("addr", env.Cfg.DDAgentAddr).
		Str("namespace", env.Cfg.DDNamespace).
		Strs("tags", env.Cfg.DDTags).
		Msg("Datadog metrics initialized")
}

func Gauge(name string, value float64, tags ...string) {
	if dogstatsd != nil {
		err := dogstatsd.Gauge(name, value, tags, 1)
		if err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to emit gauge metric")
		}
	}
}

// ReportDevice emits the current readings of a unit. Runs as a controller change
// hook, so the device lock is held.
func ReportDevice(d *controller.Device) {
	tags := []string{"device:" + d.ID}
	c := d.Climate

	Gauge("climate.current_temperature", c.CurrentTemperature(), tags...)
	if target, ok := c.TargetTemperature(); ok {
		Gauge("climate.target_temperature", target, tags...)
	}
	on := 1.0
	if c.CurrentOperation() == modes.Off {
		on = 0
	}
	Gauge("climate.power", on, tags...)

	for _, s := range d.Sensors {
		if v, ok := s.Value(); ok {
			Gauge("sensor."+s.Field(), v, tags...)
		}
	}
}

// ReportAvailability emits 1 while a unit answers polls and 0 once it is marked
// unavailable.
func ReportAvailability(d *controller.Device, available bool) {
	v := 0.0
	if available {
		v = 1
	}
	Gauge("device.available", v, "device:"+d.ID)
}
