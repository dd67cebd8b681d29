// daikin-sim serves a simulated unit for trying the bridge without hardware.
package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/daikin-climate/internal/fakedevice"
	"github.com/thatsimonsguy/daikin-climate/internal/logging"
)

func main() {
	var addr, name, indoor, outdoor string
	var debug bool
	flag.StringVar(&addr, "addr", "127.0.0.1:8081", "Listen address")
	flag.StringVar(&name, "name", "Simulated unit", "Unit name reported in basic info")
	flag.StringVar(&indoor, "htemp", "22.5", "Indoor temperature")
	flag.StringVar(&outdoor, "otemp", "10.0", "Outdoor temperature")
	flag.BoolVar(&debug, "debug", false, "Log every request")
	flag.Parse()

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logging.Init(level, "")

	dev := fakedevice.New(name)
	dev.SetSensor(map[string]string{"htemp": indoor, "otemp": outdoor})

	srv := &http.Server{
		Addr:              addr,
		Handler:           dev,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("address", addr).Str("name", name).Msg("Simulated unit listening")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("Simulator stopped")
	}
}
