// Package daikin talks to a unit's local HTTP interface and guards the
// read-modify-write protocol of its control endpoint.
package daikin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/daikin-climate/internal/model"
	"github.com/thatsimonsguy/daikin-climate/internal/wire"
)

const (
	BasicInfoEndpoint   = "/common/basic_info"
	SensorInfoEndpoint  = "/aircon/get_sensor_info"
	ControlInfoEndpoint = "/aircon/get_control_info"
	SetControlEndpoint  = "/aircon/set_control_info"

	DefaultTimeout = 10 * time.Second
)

var (
	ErrDeviceUnreachable       = errors.New("device unreachable")
	ErrMalformedResponse       = wire.ErrMalformedResponse
	ErrIncompleteControlVector = errors.New("incomplete control vector")
	ErrCommandRejected         = errors.New("command rejected by device")
)

// Client performs the HTTP round trips for one unit. It holds no device state.
type Client struct {
	address    string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(address string, opts ...Option) *Client {
	c := &Client{
		address:    address,
		baseURL:    "http://" + strings.TrimRight(address, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Address() string {
	return c.address
}

// Get reads an endpoint and decodes the body.
func (c *Client) Get(ctx context.Context, endpoint string) (map[string]string, error) {
	return c.do(ctx, endpoint)
}

// SetControl writes a full control vector. Vectors missing any required key are
// refused before any request is made.
func (c *Client) SetControl(ctx context.Context, fields map[string]string) (map[string]string, error) {
	var missing []string
	for _, key := range model.ControlFields {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteControlVector, strings.Join(missing, ", "))
	}

	ack, err := c.do(ctx, SetControlEndpoint+"?"+wire.Query(fields))
	if err != nil {
		return nil, err
	}
	if ret, ok := ack["ret"]; ok && ret != "OK" {
		return nil, fmt.Errorf("%w: ret=%s", ErrCommandRejected, ret)
	}
	return ack, nil
}

// Name returns the unit's percent-decoded display name from basic info.
func (c *Client) Name(ctx context.Context) (string, error) {
	info, err := c.Get(ctx, BasicInfoEndpoint)
	if err != nil {
		return "", err
	}
	raw, ok := info["name"]
	if !ok {
		return "", fmt.Errorf("%w: basic info has no name", ErrMalformedResponse)
	}
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: name %q: %v", ErrMalformedResponse, raw, err)
	}
	return name, nil
}

func (c *Client) SensorInfo(ctx context.Context) (model.SensorSnapshot, error) {
	fields, err := c.Get(ctx, SensorInfoEndpoint)
	if err != nil {
		return model.SensorSnapshot{}, err
	}
	return model.SensorSnapshotFromFields(fields), nil
}

func (c *Client) ControlInfo(ctx context.Context) (model.ControlVector, error) {
	fields, err := c.Get(ctx, ControlInfoEndpoint)
	if err != nil {
		return model.ControlVector{}, err
	}
	return model.ControlVectorFromFields(fields)
}

func (c *Client) do(ctx context.Context, endpoint string) (map[string]string, error) {
	target := c.baseURL + endpoint
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", endpoint, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnreachable, c.address, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s from %s: %v", ErrDeviceUnreachable, endpoint, c.address, err)
	}

	log.Debug().
		Str("device", c.address).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Device request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned status %d for %s", ErrDeviceUnreachable, c.address, resp.StatusCode, endpoint)
	}

	fields, err := wire.Decode(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, fmt.Errorf("decode %s from %s: %w", endpoint, c.address, err)
	}
	return fields, nil
}
