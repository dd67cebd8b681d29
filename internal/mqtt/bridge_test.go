package mqtt

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/daikin-climate/internal/climate"
	"github.com/thatsimonsguy/daikin-climate/internal/config"
	"github.com/thatsimonsguy/daikin-climate/internal/controller"
	"github.com/thatsimonsguy/daikin-climate/internal/daikin"
	"github.com/thatsimonsguy/daikin-climate/internal/fakedevice"
	"github.com/thatsimonsguy/daikin-climate/internal/modes"
)

type recorder struct {
	mu       sync.Mutex
	messages map[string][]byte
}

func (r *recorder) publish(topic string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[topic] = payload
	return nil
}

func (r *recorder) last(topic string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.messages[topic]
	return string(p), ok
}

func setupBridge(t *testing.T) (*fakedevice.Device, *controller.Controller, *Bridge, *recorder) {
	dev := fakedevice.New("Living room")
	dev.SetControl(map[string]string{"pow": "1", "mode": "3", "stemp": "24.0"})
	server := httptest.NewServer(dev)
	t.Cleanup(server.Close)

	devices, err := controller.Connect(context.Background(), []config.Device{
		{ID: "living", IPAddress: strings.TrimPrefix(server.URL, "http://"), Sensors: []string{"otemp"}},
	}, 2*time.Second)
	require.NoError(t, err)

	ctrl := controller.New(controller.Options{UnavailableAfter: 1})
	require.NoError(t, ctrl.Add(devices[0]))

	rec := &recorder{messages: make(map[string][]byte)}
	b := newBridge(context.Background(), ctrl, "daikin", rec.publish)
	b.Attach()
	return dev, ctrl, b, rec
}

func TestParseCommandTopic(t *testing.T) {
	tests := []struct {
		topic   string
		id      string
		command string
		wantErr bool
	}{
		{"daikin/living/climate/set/mode", "living", "mode", false},
		{"daikin/living/climate/set/temperature", "living", "temperature", false},
		{"other/living/climate/set/mode", "", "", true},
		{"daikin/living/climate/state", "", "", true},
		{"daikin//climate/set/mode", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			id, command, err := parseCommandTopic("daikin", tt.topic)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.command, command)
		})
	}
}

func TestPublishAfterPoll(t *testing.T) {
	_, ctrl, _, rec := setupBridge(t)

	ctrl.PollOnce(context.Background())

	payload, ok := rec.last("daikin/living/climate/state")
	require.True(t, ok)
	var snap climate.Snapshot
	require.NoError(t, json.Unmarshal([]byte(payload), &snap))
	assert.Equal(t, "Living room", snap.Name)
	assert.Equal(t, modes.Cooling, snap.Operation)
	require.NotNil(t, snap.TargetTemperature)
	assert.Equal(t, 24.0, *snap.TargetTemperature)

	payload, ok = rec.last("daikin/living/sensor/otemp/state")
	require.True(t, ok)
	var sensor SensorPayload
	require.NoError(t, json.Unmarshal([]byte(payload), &sensor))
	assert.Equal(t, "Living room otemp", sensor.Name)
	require.NotNil(t, sensor.Value)
	assert.Equal(t, 10.0, *sensor.Value)
}

func TestPublishAvailability(t *testing.T) {
	dev, ctrl, _, rec := setupBridge(t)

	dev.Fail(daikin.SensorInfoEndpoint, fakedevice.Drop)
	ctrl.PollOnce(context.Background())
	payload, _ := rec.last("daikin/living/availability")
	assert.Equal(t, "offline", payload)

	dev.Fail(daikin.SensorInfoEndpoint, fakedevice.Healthy)
	ctrl.PollOnce(context.Background())
	payload, _ = rec.last("daikin/living/availability")
	assert.Equal(t, "online", payload)
}

func TestHandleCommand(t *testing.T) {
	dev, _, b, rec := setupBridge(t)

	require.NoError(t, b.HandleCommand("daikin/living/climate/set/mode", []byte("Heating")))
	assert.Equal(t, "4", dev.Control()["mode"])

	require.NoError(t, b.HandleCommand("daikin/living/climate/set/temperature", []byte(" 21.5 ")))
	assert.Equal(t, "21.5", dev.Control()["stemp"])

	require.NoError(t, b.HandleCommand("daikin/living/climate/set/fan_mode", []byte("Indoor unit quiet")))
	assert.Equal(t, "B", dev.Control()["f_rate"])

	require.NoError(t, b.HandleCommand("daikin/living/climate/set/swing_mode", []byte("Left-right swing")))
	assert.Equal(t, "2", dev.Control()["f_dir"])

	payload, ok := rec.last("daikin/living/climate/state")
	require.True(t, ok)
	assert.Contains(t, payload, `"operation":"Heating"`)
}

func TestHandleCommand_Errors(t *testing.T) {
	dev, _, b, _ := setupBridge(t)

	err := b.HandleCommand("daikin/living/climate/set/temperature", []byte("warm"))
	assert.ErrorIs(t, err, ErrInvalidCommand)

	err = b.HandleCommand("daikin/living/climate/set/temperature", []byte("35"))
	assert.ErrorIs(t, err, ErrInvalidCommand)

	err = b.HandleCommand("daikin/living/climate/set/mode", []byte("Turbo"))
	assert.ErrorIs(t, err, modes.ErrUnknownMode)

	err = b.HandleCommand("daikin/living/climate/set/power", []byte("1"))
	assert.ErrorIs(t, err, ErrInvalidCommand)

	err = b.HandleCommand("daikin/attic/climate/set/mode", []byte("Heating"))
	assert.ErrorIs(t, err, controller.ErrUnknownDevice)

	assert.Empty(t, dev.Writes())
}

func TestConnect_BrokerDown(t *testing.T) {
	ctrl := controller.New(controller.Options{})
	cfg := config.MQTT{Broker: "tcp://127.0.0.1:1", ClientID: "daikin-test", TopicPrefix: "daikin"}

	done := make(chan error, 1)
	go func() {
		b, err := Connect(context.Background(), cfg, ctrl)
		assert.Nil(t, b)
		done <- err
	}()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Connect did not return with the broker down")
	}
}

func TestConnect_StopsOnCancel(t *testing.T) {
	ctrl := controller.New(controller.Options{})
	// non-routable address, the dial hangs until cancelled
	cfg := config.MQTT{Broker: "tcp://10.255.255.1:1883", ClientID: "daikin-test", TopicPrefix: "daikin"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Connect(ctx, cfg, ctrl)
		done <- err
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Connect did not return after cancel")
	}
}
