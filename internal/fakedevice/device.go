// Package fakedevice simulates a unit's local HTTP interface. It backs the tests
// of the packages above it and the daikin-sim binary.
package fakedevice

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/daikin-climate/internal/daikin"
	"github.com/thatsimonsguy/daikin-climate/internal/model"
	"github.com/thatsimonsguy/daikin-climate/internal/wire"
)

// Failure selects how an endpoint misbehaves.
type Failure int

const (
	Healthy Failure = iota
	// Drop closes the connection without a response.
	Drop
	// Garbage answers 200 with a body that is not key=value.
	Garbage
	// ServerError answers 500.
	ServerError
)

type Request struct {
	Path  string
	Query url.Values
}

type Device struct {
	mu       sync.Mutex
	basic    map[string]string
	sensor   map[string]string
	control  map[string]string
	failures map[string]Failure
	requests []Request
}

// New returns a powered-off unit set to cooling at 24°C with automatic fan and no swing.
func New(name string) *Device {
	return &Device{
		basic: map[string]string{
			"ret":  "OK",
			"type": "aircon",
			"reg":  "eu",
			"ver":  "2_6_0",
			"pow":  "0",
			"err":  "0",
			"name": escapeAll(name),
			"mac":  "A0C9A0000000",
		},
		sensor: map[string]string{
			"ret":     "OK",
			"htemp":   "22.5",
			"hhum":    "-",
			"otemp":   "10.0",
			"err":     "0",
			"cmpfreq": "0",
		},
		control: map[string]string{
			"ret":    "OK",
			"pow":    "0",
			"mode":   "3",
			"adv":    "",
			"stemp":  "24.0",
			"shum":   "0",
			"f_rate": "A",
			"f_dir":  "0",
		},
		failures: make(map[string]Failure),
	}
}

func (d *Device) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.requests = append(d.requests, Request{Path: r.URL.Path, Query: r.URL.Query()})
	log.Debug().Str("path", r.URL.Path).Str("query", r.URL.RawQuery).Msg("Simulated unit request")

	switch d.failures[r.URL.Path] {
	case Drop:
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
				return
			}
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	case Garbage:
		fmt.Fprint(w, "garbage")
		return
	case ServerError:
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	switch r.URL.Path {
	case daikin.BasicInfoEndpoint:
		fmt.Fprint(w, wire.Encode(d.basic))
	case daikin.SensorInfoEndpoint:
		fmt.Fprint(w, wire.Encode(d.sensor))
	case daikin.ControlInfoEndpoint:
		fmt.Fprint(w, wire.Encode(d.control))
	case daikin.SetControlEndpoint:
		fmt.Fprint(w, d.applyControl(r.URL.Query()))
	default:
		http.NotFound(w, r)
	}
}

// applyControl mirrors the firmware: a request missing any control field is refused.
func (d *Device) applyControl(query url.Values) string {
	for _, key := range model.ControlFields {
		if !query.Has(key) {
			log.Debug().Str("missing", key).Msg("Simulated unit rejected partial control vector")
			return "ret=PARAM NG"
		}
	}
	for _, key := range model.ControlFields {
		d.control[key] = query.Get(key)
	}
	d.basic["pow"] = d.control["pow"]
	return "ret=OK,adv="
}

// SetControl changes the unit's state the way a physical remote would.
func (d *Device) SetControl(fields map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range fields {
		d.control[k] = v
	}
}

func (d *Device) SetSensor(fields map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range fields {
		d.sensor[k] = v
	}
}

func (d *Device) RemoveSensorField(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sensor, key)
}

func (d *Device) Control() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.control))
	for k, v := range d.control {
		out[k] = v
	}
	return out
}

// Fail makes the endpoint misbehave until it is set back to Healthy.
func (d *Device) Fail(endpoint string, f Failure) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[endpoint] = f
}

func (d *Device) Requests() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Request, len(d.requests))
	copy(out, d.requests)
	return out
}

// Writes returns the query of every set-control request received.
func (d *Device) Writes() []url.Values {
	var writes []url.Values
	for _, r := range d.Requests() {
		if r.Path == daikin.SetControlEndpoint {
			writes = append(writes, r.Query)
		}
	}
	return writes
}

func (d *Device) ResetRequests() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = nil
}

// escapeAll percent-encodes every byte, as the firmware does for names.
func escapeAll(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		fmt.Fprintf(&b, "%%%02x", s[i])
	}
	return b.String()
}
