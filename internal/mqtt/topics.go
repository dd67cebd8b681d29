package mqtt

import (
	"fmt"
	"strings"
)

const (
	CommandTemperature = "temperature"
	CommandMode        = "mode"
	CommandFanMode     = "fan_mode"
	CommandSwingMode   = "swing_mode"
)

func ClimateStateTopic(prefix, id string) string {
	return fmt.Sprintf("%s/%s/climate/state", prefix, id)
}

func SensorStateTopic(prefix, id, field string) string {
	return fmt.Sprintf("%s/%s/sensor/%s/state", prefix, id, field)
}

func AvailabilityTopic(prefix, id string) string {
	return fmt.Sprintf("%s/%s/availability", prefix, id)
}

// BridgeStatusTopic carries the bridge's own online/offline status, including the
// last will.
func BridgeStatusTopic(prefix string) string {
	return prefix + "/bridge/status"
}

func commandFilter(prefix string) string {
	return prefix + "/+/climate/set/+"
}

// parseCommandTopic splits <prefix>/<id>/climate/set/<command>.
func parseCommandTopic(prefix, topic string) (id, command string, err error) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", "", fmt.Errorf("topic %q outside prefix %q", topic, prefix)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 || parts[1] != "climate" || parts[2] != "set" || parts[0] == "" {
		return "", "", fmt.Errorf("not a command topic: %q", topic)
	}
	return parts[0], parts[3], nil
}
