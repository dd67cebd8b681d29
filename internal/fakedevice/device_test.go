package fakedevice

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/daikin-climate/internal/daikin"
	"github.com/thatsimonsguy/daikin-climate/internal/wire"
)

func get(t *testing.T, server *httptest.Server, path string) (int, string) {
	resp, err := http.Get(server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestBasicInfoEscapesName(t *testing.T) {
	server := httptest.NewServer(New("Ö"))
	defer server.Close()

	_, body := get(t, server, daikin.BasicInfoEndpoint)
	fields, err := wire.Decode(body)
	require.NoError(t, err)
	assert.Equal(t, "%c3%96", fields["name"])
}

func TestSetControl_RejectsPartialVector(t *testing.T) {
	dev := New("Office")
	server := httptest.NewServer(dev)
	defer server.Close()

	_, body := get(t, server, daikin.SetControlEndpoint+"?pow=1&mode=4")
	assert.Equal(t, "ret=PARAM NG", body)
	assert.Equal(t, "0", dev.Control()["pow"])

	_, body = get(t, server, daikin.SetControlEndpoint+"?pow=1&mode=4&stemp=21.0&shum=0&f_rate=B&f_dir=3")
	assert.Equal(t, "ret=OK,adv=", body)
	assert.Equal(t, "1", dev.Control()["pow"])
	assert.Equal(t, "B", dev.Control()["f_rate"])
	require.Len(t, dev.Writes(), 2)
}

func TestFailures(t *testing.T) {
	dev := New("Office")
	server := httptest.NewServer(dev)
	defer server.Close()

	dev.Fail(daikin.SensorInfoEndpoint, ServerError)
	status, _ := get(t, server, daikin.SensorInfoEndpoint)
	assert.Equal(t, http.StatusInternalServerError, status)

	dev.Fail(daikin.SensorInfoEndpoint, Garbage)
	_, body := get(t, server, daikin.SensorInfoEndpoint)
	_, err := wire.Decode(body)
	assert.Error(t, err)

	dev.Fail(daikin.SensorInfoEndpoint, Healthy)
	status, _ = get(t, server, daikin.SensorInfoEndpoint)
	assert.Equal(t, http.StatusOK, status)

	assert.Len(t, dev.Requests(), 3)
	dev.ResetRequests()
	assert.Empty(t, dev.Requests())
}
