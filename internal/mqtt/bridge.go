// Package mqtt mirrors unit state to an MQTT broker and accepts commands from it.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/daikin-climate/internal/climate"
	"github.com/thatsimonsguy/daikin-climate/internal/config"
	"github.com/thatsimonsguy/daikin-climate/internal/controller"
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"

	commandTimeout = 15 * time.Second
	connectTimeout = 10 * time.Second
)

var ErrInvalidCommand = errors.New("invalid command")

type publishFunc func(topic string, payload []byte) error

type Bridge struct {
	ctx     context.Context
	ctrl    *controller.Controller
	prefix  string
	client  paho.Client
	publish publishFunc
}

// SensorPayload is published for every sensor entity.
type SensorPayload struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
	Unit  string   `json:"unit"`
}

func newBridge(ctx context.Context, ctrl *controller.Controller, prefix string, publish publishFunc) *Bridge {
	return &Bridge{ctx: ctx, ctrl: ctrl, prefix: prefix, publish: publish}
}

// Connect dials the broker and registers the bridge with the controller. It gives
// up after one failed attempt, when ctx is done or after connectTimeout; once
// connected, lost connections are retried in the background. Commands received
// later run with ctx as their parent.
func Connect(ctx context.Context, cfg config.MQTT, ctrl *controller.Controller) (*Bridge, error) {
	b := newBridge(ctx, ctrl, cfg.TopicPrefix, nil)

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	// command handlers publish state and wait for the token
	opts.SetOrderMatters(false)
	opts.SetWill(BridgeStatusTopic(cfg.TopicPrefix), payloadOffline, 1, true)
	opts.SetOnConnectHandler(func(c paho.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("Connected to MQTT broker")
		b.onConnect(c)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn().Err(err).Msg("Lost connection to MQTT broker")
	})

	client := paho.NewClient(opts)
	b.client = client
	b.publish = func(topic string, payload []byte) error {
		token := client.Publish(topic, 1, true, payload)
		if !token.WaitTimeout(10 * time.Second) {
			return fmt.Errorf("publish to %s timed out", topic)
		}
		return token.Error()
	}

	token := client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
		}
	case <-ctx.Done():
		client.Disconnect(0)
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, ctx.Err())
	case <-time.After(connectTimeout + time.Second):
		client.Disconnect(0)
		return nil, fmt.Errorf("connect to %s: timed out", cfg.Broker)
	}

	b.Attach()
	return b, nil
}

func (b *Bridge) onConnect(c paho.Client) {
	filter := commandFilter(b.prefix)
	token := c.Subscribe(filter, 1, func(_ paho.Client, msg paho.Message) {
		if err := b.HandleCommand(msg.Topic(), msg.Payload()); err != nil {
			log.Error().Err(err).Str("topic", msg.Topic()).Msg("MQTT command failed")
		}
	})
	if token.Wait() && token.Error() != nil {
		log.Error().Err(token.Error()).Str("filter", filter).Msg("Failed to subscribe to commands")
	}

	b.send(BridgeStatusTopic(b.prefix), []byte(payloadOnline))
	b.PublishAll()
}

// Attach publishes state after every poll or command and availability on every
// transition.
func (b *Bridge) Attach() {
	b.ctrl.OnChange(b.PublishDevice)
	b.ctrl.OnAvailability(b.PublishAvailability)
}

// PublishAll publishes the current state of every unit, e.g. after a reconnect.
func (b *Bridge) PublishAll() {
	for _, d := range b.ctrl.Devices() {
		_ = b.ctrl.WithDevice(d.ID, func(d *controller.Device) error {
			b.PublishAvailability(d, d.Available())
			if d.Available() {
				b.PublishDevice(d)
			}
			return nil
		})
	}
}

// PublishDevice runs with the device lock held.
func (b *Bridge) PublishDevice(d *controller.Device) {
	state, err := json.Marshal(d.Climate.Snapshot())
	if err != nil {
		log.Error().Err(err).Str("device", d.ID).Msg("Failed to encode climate state")
		return
	}
	b.send(ClimateStateTopic(b.prefix, d.ID), state)

	for _, s := range d.Sensors {
		payload := SensorPayload{Name: s.Name(), Unit: s.Unit()}
		if v, ok := s.Value(); ok {
			payload.Value = &v
		}
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("device", d.ID).Str("field", s.Field()).Msg("Failed to encode sensor state")
			continue
		}
		b.send(SensorStateTopic(b.prefix, d.ID, s.Field()), data)
	}
}

func (b *Bridge) PublishAvailability(d *controller.Device, available bool) {
	payload := payloadOffline
	if available {
		payload = payloadOnline
	}
	b.send(AvailabilityTopic(b.prefix, d.ID), []byte(payload))
}

func (b *Bridge) send(topic string, payload []byte) {
	if err := b.publish(topic, payload); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Failed to publish")
		return
	}
	log.Debug().Str("topic", topic).Int("bytes", len(payload)).Msg("Published")
}

// HandleCommand applies a message from a set topic to the addressed unit. The
// payload is the bare value: a temperature or a mode label.
func (b *Bridge) HandleCommand(topic string, payload []byte) error {
	id, command, err := parseCommandTopic(b.prefix, topic)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	value := strings.TrimSpace(string(payload))

	log.Info().Str("device", id).Str("command", command).Str("value", value).Msg("Received MQTT command")

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	return b.ctrl.WithDevice(id, func(d *controller.Device) error {
		return apply(ctx, d.Climate, command, value)
	})
}

func apply(ctx context.Context, c *climate.Climate, command, value string) error {
	switch command {
	case CommandTemperature:
		t, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: temperature %q", ErrInvalidCommand, value)
		}
		if t < climate.MinTemp || t > climate.MaxTemp {
			return fmt.Errorf("%w: temperature %.1f outside %.0f-%.0f", ErrInvalidCommand, t, climate.MinTemp, climate.MaxTemp)
		}
		return c.SetTemperature(ctx, t)
	case CommandMode:
		return c.SetOperationMode(ctx, value)
	case CommandFanMode:
		return c.SetFanMode(ctx, value)
	case CommandSwingMode:
		return c.SetSwingMode(ctx, value)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, command)
	}
}

// Close announces the bridge offline and disconnects.
func (b *Bridge) Close() {
	if b.client == nil {
		return
	}
	b.send(BridgeStatusTopic(b.prefix), []byte(payloadOffline))
	b.client.Disconnect(250)
}
