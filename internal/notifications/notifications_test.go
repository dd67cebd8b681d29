package notifications

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/daikin-climate/internal/config"
	"github.com/thatsimonsguy/daikin-climate/internal/env"
)

func TestSend(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := New("daikin-alerts")
	n.baseURL = server.URL

	require.NoError(t, n.Send("Office is unavailable", "3 consecutive polls failed"))
	assert.Equal(t, "daikin-alerts", got["topic"])
	assert.Equal(t, "Office is unavailable", got["title"])
}

func TestSend_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	n := New("daikin-alerts")
	n.baseURL = server.URL

	assert.Error(t, n.Send("title", "message"))
}

func TestInit_Disabled(t *testing.T) {
	env.Cfg = &config.Config{}
	assert.Nil(t, Init())

	env.Cfg = &config.Config{NtfyTopic: "daikin"}
	assert.NotNil(t, Init())
}
