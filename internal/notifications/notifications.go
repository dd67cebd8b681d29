package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/daikin-climate/internal/env"
)

const defaultBaseURL = "https://ntfy.sh"

// Ntfy posts notifications to an ntfy.sh topic.
type Ntfy struct {
	client  *http.Client
	baseURL string
	topic   string
}

// Init returns a notifier for the configured topic, or nil when none is configured.
func Init() *Ntfy {
	if env.Cfg.NtfyTopic == "" {
		log.Warn().Msg("Ntfy topic not configured - notifications disabled")
		return nil
	}

	n := New(env.Cfg.NtfyTopic)
	log.Info().
		Str("topic", n.topic).
		Msg("Ntfy notifications initialized")
	return n
}

func New(topic string) *Ntfy {
	return &Ntfy{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultBaseURL,
		topic:   topic,
	}
}

// Send sends a notification to the topic.
func (n *Ntfy) Send(title, message string) error {
	payload := map[string]interface{}{
		"topic":   n.topic,
		"title":   title,
		"message": message,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, n.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned non-success status: %d", resp.StatusCode)
	}

	log.Debug().
		Str("title", title).
		Int("status", resp.StatusCode).
		Msg("Notification sent successfully")

	return nil
}
