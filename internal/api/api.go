package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/daikin-climate/db"
	"github.com/thatsimonsguy/daikin-climate/internal/climate"
	"github.com/thatsimonsguy/daikin-climate/internal/controller"
	"github.com/thatsimonsguy/daikin-climate/internal/daikin"
	"github.com/thatsimonsguy/daikin-climate/internal/modes"
)

const commandTimeout = 15 * time.Second

type Server struct {
	db       *sql.DB
	ctrl     *controller.Controller
	gatherer prometheus.Gatherer
}

type DeviceResponse struct {
	ID         string     `json:"id"`
	IPAddress  string     `json:"ipaddress"`
	Name       string     `json:"name"`
	Sensors    []string   `json:"sensors"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Connected  bool       `json:"connected"`
	Available  bool       `json:"available"`
}

type ClimateResponse struct {
	ID        string `json:"id"`
	Available bool   `json:"available"`
	climate.Snapshot
}

type SensorResponse struct {
	DeviceID string   `json:"device_id"`
	Field    string   `json:"field"`
	Name     string   `json:"name"`
	Value    *float64 `json:"value"`
	Unit     string   `json:"unit"`
}

type TemperatureRequest struct {
	Temperature *float64 `json:"temperature"`
}

type ModeRequest struct {
	Mode string `json:"mode"`
}

type FanModeRequest struct {
	FanMode string `json:"fan_mode"`
}

type SwingModeRequest struct {
	SwingMode string `json:"swing_mode"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(database *sql.DB, ctrl *controller.Controller, gatherer prometheus.Gatherer) *Server {
	return &Server{
		db:       database,
		ctrl:     ctrl,
		gatherer: gatherer,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/api/devices", s.getDevices).Methods(http.MethodGet)

	r.HandleFunc("/api/climate", s.getClimates).Methods(http.MethodGet)
	r.HandleFunc("/api/climate/{id}", s.getClimate).Methods(http.MethodGet)
	r.HandleFunc("/api/climate/{id}/temperature", s.setTemperature).Methods(http.MethodPut)
	r.HandleFunc("/api/climate/{id}/mode", s.setMode).Methods(http.MethodPut)
	r.HandleFunc("/api/climate/{id}/fan", s.setFanMode).Methods(http.MethodPut)
	r.HandleFunc("/api/climate/{id}/swing", s.setSwingMode).Methods(http.MethodPut)

	r.HandleFunc("/api/sensors", s.getSensors).Methods(http.MethodGet)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "Not found")
	})
	return r
}

// Handler wraps the router with CORS and access logging.
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	return handlers.LoggingHandler(log.Logger, cors(s.Router()))
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("REST API shutdown failed")
		}
	}()

	log.Info().Str("address", addr).Msg("Starting REST API server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getDevices(w http.ResponseWriter, r *http.Request) {
	records, err := db.GetAllDevices(s.db)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get devices")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	connected := make(map[string]*controller.Device)
	for _, d := range s.ctrl.Devices() {
		connected[d.ID] = d
	}

	response := make([]DeviceResponse, 0, len(records))
	for _, rec := range records {
		resp := DeviceResponse{
			ID:        rec.ID,
			IPAddress: rec.IPAddress,
			Name:      rec.Name,
			Sensors:   rec.Sensors,
		}
		if !rec.ResolvedAt.IsZero() {
			resolved := rec.ResolvedAt
			resp.ResolvedAt = &resolved
		}
		if d, ok := connected[rec.ID]; ok {
			resp.Connected = true
			resp.Available = d.Available()
		}
		response = append(response, resp)
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) getClimates(w http.ResponseWriter, r *http.Request) {
	response := make([]ClimateResponse, 0)
	for _, d := range s.ctrl.Devices() {
		err := s.ctrl.WithDevice(d.ID, func(d *controller.Device) error {
			response = append(response, climateResponse(d))
			return nil
		})
		if err != nil {
			s.writeCommandError(w, d.ID, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) getClimate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var response ClimateResponse
	err := s.ctrl.WithDevice(id, func(d *controller.Device) error {
		response = climateResponse(d)
		return nil
	})
	if err != nil {
		s.writeCommandError(w, id, err)
		return
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) getSensors(w http.ResponseWriter, r *http.Request) {
	response := make([]SensorResponse, 0)
	for _, d := range s.ctrl.Devices() {
		err := s.ctrl.WithDevice(d.ID, func(d *controller.Device) error {
			for _, sn := range d.Sensors {
				resp := SensorResponse{
					DeviceID: d.ID,
					Field:    sn.Field(),
					Name:     sn.Name(),
					Unit:     sn.Unit(),
				}
				if v, ok := sn.Value(); ok {
					resp.Value = &v
				}
				response = append(response, resp)
			}
			return nil
		})
		if err != nil {
			s.writeCommandError(w, d.ID, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) setTemperature(w http.ResponseWriter, r *http.Request) {
	var req TemperatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Temperature == nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	t := *req.Temperature
	if t < climate.MinTemp || t > climate.MaxTemp {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid temperature. Must be between %.1f°C and %.1f°C", climate.MinTemp, climate.MaxTemp))
		return
	}

	s.command(w, r, func(ctx context.Context, c *climate.Climate) error {
		return c.SetTemperature(ctx, t)
	})
}

func (s *Server) setMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	s.command(w, r, func(ctx context.Context, c *climate.Climate) error {
		return c.SetOperationMode(ctx, req.Mode)
	})
}

func (s *Server) setFanMode(w http.ResponseWriter, r *http.Request) {
	var req FanModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	s.command(w, r, func(ctx context.Context, c *climate.Climate) error {
		return c.SetFanMode(ctx, req.FanMode)
	})
}

func (s *Server) setSwingMode(w http.ResponseWriter, r *http.Request) {
	var req SwingModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	s.command(w, r, func(ctx context.Context, c *climate.Climate) error {
		return c.SetSwingMode(ctx, req.SwingMode)
	})
}

// command runs fn against the addressed unit and answers with its new state.
func (s *Server) command(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, c *climate.Climate) error) {
	id := mux.Vars(r)["id"]
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	var response ClimateResponse
	err := s.ctrl.WithDevice(id, func(d *controller.Device) error {
		if err := fn(ctx, d.Climate); err != nil {
			return err
		}
		response = climateResponse(d)
		return nil
	})
	if err != nil {
		s.writeCommandError(w, id, err)
		return
	}

	log.Info().Str("device", id).Str("path", r.URL.Path).Msg("Command applied via API")
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) writeCommandError(w http.ResponseWriter, id string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, controller.ErrUnknownDevice):
		status = http.StatusNotFound
	case errors.Is(err, modes.ErrUnknownMode):
		status = http.StatusBadRequest
	case errors.Is(err, daikin.ErrCommandRejected):
		status = http.StatusConflict
	case errors.Is(err, daikin.ErrDeviceUnreachable), errors.Is(err, daikin.ErrMalformedResponse):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("device", id).Msg("Request to unit failed")
	}
	s.writeError(w, status, err.Error())
}

func climateResponse(d *controller.Device) ClimateResponse {
	return ClimateResponse{
		ID:        d.ID,
		Available: d.Available(),
		Snapshot:  d.Climate.Snapshot(),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
