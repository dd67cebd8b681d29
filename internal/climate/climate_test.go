package climate

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/daikin-climate/internal/daikin"
	"github.com/thatsimonsguy/daikin-climate/internal/fakedevice"
	"github.com/thatsimonsguy/daikin-climate/internal/modes"
)

func setupClimate(t *testing.T, control map[string]string, opts ...Option) (*fakedevice.Device, *Climate) {
	dev := fakedevice.New("Bedroom")
	if control != nil {
		dev.SetControl(control)
	}
	server := httptest.NewServer(dev)
	t.Cleanup(server.Close)

	opts = append(opts, WithClientOptions(daikin.WithTimeout(2*time.Second)))
	c, err := New(context.Background(), strings.TrimPrefix(server.URL, "http://"), opts...)
	require.NoError(t, err)
	dev.ResetRequests()
	return dev, c
}

func TestNew(t *testing.T) {
	_, c := setupClimate(t, map[string]string{"pow": "1", "mode": "4", "stemp": "21.0", "f_rate": "6", "f_dir": "1"})

	assert.Equal(t, "Bedroom", c.Name())
	assert.Equal(t, "°C", c.TemperatureUnit())
	assert.Equal(t, 22.5, c.CurrentTemperature())
	assert.Equal(t, modes.Heating, c.CurrentOperation())

	target, ok := c.TargetTemperature()
	require.True(t, ok)
	assert.Equal(t, 21.0, target)

	fan, ok := c.CurrentFanMode()
	require.True(t, ok)
	assert.Equal(t, "4", fan)

	swing, ok := c.CurrentSwingMode()
	require.True(t, ok)
	assert.Equal(t, "Up-down swing", swing)

	assert.Equal(t, 18.0, c.MinTemp())
	assert.Equal(t, 30.0, c.MaxTemp())
	assert.Equal(t, []string{"Auto", "Cooling", "Heating", "Fan", "Dry", "Off"}, c.OperationList())
	assert.Len(t, c.FanList(), 7)
	assert.Len(t, c.SwingList(), 4)
}

func TestNew_Unreachable(t *testing.T) {
	server := httptest.NewServer(fakedevice.New("gone"))
	address := strings.TrimPrefix(server.URL, "http://")
	server.Close()

	c, err := New(context.Background(), address)
	assert.ErrorIs(t, err, daikin.ErrDeviceUnreachable)
	assert.Nil(t, c)
}

func TestUpdate_PoweredOff(t *testing.T) {
	_, c := setupClimate(t, map[string]string{"pow": "0", "mode": "3", "stemp": "24.0"})

	assert.Equal(t, modes.Off, c.CurrentOperation())

	_, ok := c.TargetTemperature()
	assert.False(t, ok)
	_, ok = c.CurrentFanMode()
	assert.False(t, ok)
	_, ok = c.CurrentSwingMode()
	assert.False(t, ok)
}

func TestUpdate_ModeZeroWhilePoweredIsAuto(t *testing.T) {
	_, c := setupClimate(t, map[string]string{"pow": "1", "mode": "0", "stemp": "23.0"})

	assert.Equal(t, modes.Auto, c.CurrentOperation())
	target, ok := c.TargetTemperature()
	require.True(t, ok)
	assert.Equal(t, 23.0, target)
}

func TestUpdate_NoSetpointInFanMode(t *testing.T) {
	_, c := setupClimate(t, map[string]string{"pow": "1", "mode": "6", "stemp": "--"})

	assert.Equal(t, modes.Fan, c.CurrentOperation())
	_, ok := c.TargetTemperature()
	assert.False(t, ok)
}

func TestUpdate_FailureLeavesCacheUnchanged(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		failure  fakedevice.Failure
		want     error
	}{
		{"sensor info unreachable", daikin.SensorInfoEndpoint, fakedevice.Drop, daikin.ErrDeviceUnreachable},
		{"control info unreachable", daikin.ControlInfoEndpoint, fakedevice.Drop, daikin.ErrDeviceUnreachable},
		{"control info malformed", daikin.ControlInfoEndpoint, fakedevice.Garbage, daikin.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, c := setupClimate(t, map[string]string{"pow": "1", "mode": "3", "stemp": "24.0"})

			dev.SetSensor(map[string]string{"htemp": "27.0"})
			dev.SetControl(map[string]string{"mode": "4"})
			dev.Fail(tt.endpoint, tt.failure)

			err := c.Update(context.Background())
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 22.5, c.CurrentTemperature())
			assert.Equal(t, modes.Cooling, c.CurrentOperation())
		})
	}
}

func TestUpdate_UnknownCode(t *testing.T) {
	dev, c := setupClimate(t, map[string]string{"pow": "1", "mode": "3"})
	dev.SetControl(map[string]string{"f_rate": "Z"})

	err := c.Update(context.Background())
	assert.ErrorIs(t, err, modes.ErrUnknownMode)
	fan, _ := c.CurrentFanMode()
	assert.Equal(t, "Automatic", fan)
}

func TestSetOperationMode_Cooling(t *testing.T) {
	dev, c := setupClimate(t, map[string]string{"pow": "0", "mode": "4", "stemp": "21.0", "f_rate": "B", "f_dir": "2"})

	require.NoError(t, c.SetOperationMode(context.Background(), modes.Cooling))

	requests := dev.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, daikin.ControlInfoEndpoint, requests[0].Path)
	assert.Equal(t, daikin.SetControlEndpoint, requests[1].Path)

	write := requests[1].Query
	assert.Equal(t, "1", write.Get("pow"))
	assert.Equal(t, "3", write.Get("mode"))
	assert.Equal(t, "21.0", write.Get("stemp"))
	assert.Equal(t, "0", write.Get("shum"))
	assert.Equal(t, "B", write.Get("f_rate"))
	assert.Equal(t, "2", write.Get("f_dir"))

	assert.Equal(t, modes.Cooling, c.CurrentOperation())
}

func TestSetOperationMode_Off(t *testing.T) {
	dev, c := setupClimate(t, map[string]string{"pow": "1", "mode": "4"})

	require.NoError(t, c.SetOperationMode(context.Background(), modes.Off))

	writes := dev.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "0", writes[0].Get("pow"))
	assert.Equal(t, "4", writes[0].Get("mode"))
	assert.Equal(t, modes.Off, c.CurrentOperation())
}

func TestSetOperationMode_FetchFailureSendsNothing(t *testing.T) {
	dev, c := setupClimate(t, map[string]string{"pow": "0"})
	dev.Fail(daikin.ControlInfoEndpoint, fakedevice.Drop)

	err := c.SetOperationMode(context.Background(), modes.Cooling)
	assert.ErrorIs(t, err, daikin.ErrDeviceUnreachable)
	assert.Empty(t, dev.Writes())
	assert.Equal(t, modes.Off, c.CurrentOperation())
}

func TestSetFanMode_UnknownLabel(t *testing.T) {
	dev, c := setupClimate(t, map[string]string{"pow": "1", "mode": "3"})

	err := c.SetFanMode(context.Background(), "Unknown")
	assert.ErrorIs(t, err, modes.ErrUnknownMode)
	assert.Empty(t, dev.Requests())
}

func TestSetFanMode(t *testing.T) {
	dev, c := setupClimate(t, map[string]string{"pow": "1", "mode": "3"})

	require.NoError(t, c.SetFanMode(context.Background(), "Indoor unit quiet"))
	assert.Equal(t, "B", dev.Control()["f_rate"])

	fan, ok := c.CurrentFanMode()
	require.True(t, ok)
	assert.Equal(t, "Indoor unit quiet", fan)
}

func TestSetSwingMode_RoundTrip(t *testing.T) {
	dev, c := setupClimate(t, map[string]string{"pow": "1", "mode": "3", "f_dir": "0"})

	require.NoError(t, c.SetSwingMode(context.Background(), "3D swing"))
	assert.Equal(t, "3", dev.Control()["f_dir"])

	swing, ok := c.CurrentSwingMode()
	require.True(t, ok)
	assert.Equal(t, "3D swing", swing)

	require.NoError(t, c.Update(context.Background()))
	swing, ok = c.CurrentSwingMode()
	require.True(t, ok)
	assert.Equal(t, "3D swing", swing)
}

func TestSetTemperature(t *testing.T) {
	var notified int
	dev, c := setupClimate(t, map[string]string{"pow": "1", "mode": "3", "stemp": "24.0"},
		WithListener(func(*Climate) { notified++ }))

	require.NoError(t, c.SetTemperature(context.Background(), 22.5))
	assert.Equal(t, "22.5", dev.Control()["stemp"])

	target, ok := c.TargetTemperature()
	require.True(t, ok)
	assert.Equal(t, 22.5, target)
	assert.Equal(t, 1, notified)
}

func TestSetTemperature_KeepsPrecision(t *testing.T) {
	dev, c := setupClimate(t, map[string]string{"pow": "1", "mode": "4", "stemp": "21.0"})

	require.NoError(t, c.SetTemperature(context.Background(), 22.25))

	writes := dev.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "22.25", writes[0].Get("stemp"))

	target, ok := c.TargetTemperature()
	require.True(t, ok)
	assert.Equal(t, 22.25, target)
}

func TestSetTemperature_WriteFailureLeavesCache(t *testing.T) {
	var notified int
	dev, c := setupClimate(t, map[string]string{"pow": "1", "mode": "3", "stemp": "24.0"},
		WithListener(func(*Climate) { notified++ }))
	dev.Fail(daikin.SetControlEndpoint, fakedevice.ServerError)

	err := c.SetTemperature(context.Background(), 19.0)
	assert.ErrorIs(t, err, daikin.ErrDeviceUnreachable)

	target, _ := c.TargetTemperature()
	assert.Equal(t, 24.0, target)
	assert.Zero(t, notified)
}

func TestCommandsKeepRemoteChanges(t *testing.T) {
	dev, c := setupClimate(t, map[string]string{"pow": "1", "mode": "3", "f_rate": "A", "f_dir": "0"})

	// fan changed on the remote after the last poll
	dev.SetControl(map[string]string{"f_rate": "7"})

	require.NoError(t, c.SetTemperature(context.Background(), 25.0))
	assert.Equal(t, "7", dev.Control()["f_rate"])

	fan, _ := c.CurrentFanMode()
	assert.Equal(t, "5", fan)
}

func TestSnapshot(t *testing.T) {
	_, c := setupClimate(t, map[string]string{"pow": "0"})

	s := c.Snapshot()
	assert.Equal(t, "Bedroom", s.Name)
	assert.Equal(t, modes.Off, s.Operation)
	assert.Nil(t, s.TargetTemperature)
	assert.Nil(t, s.FanMode)
	assert.Nil(t, s.SwingMode)
	assert.Equal(t, 18.0, s.MinTemp)
}
