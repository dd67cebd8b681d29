package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Device struct {
	ID        string   `json:"id"`
	IPAddress string   `json:"ipaddress"`
	Sensors   []string `json:"sensors"` // sensor-info fields, defaults to htemp and otemp
}

type MQTT struct {
	Broker      string `json:"broker"` // e.g. tcp://localhost:1883, empty disables MQTT
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
}

type Config struct {
	ConfigFile string
	LogLevel   zerolog.Level

	Devices []Device `json:"devices"`

	PollIntervalSeconds      int `json:"poll_interval_seconds"`
	PollTimeoutSeconds       int `json:"poll_timeout_seconds"` // defaults to the poll interval
	RequestTimeoutSeconds    int `json:"request_timeout_seconds"`
	UnavailableAfterFailures int `json:"unavailable_after_failures"`

	APIPort int    `json:"api_port"`
	DBPath  string `json:"db_path"`
	LogFile string `json:"log_file"`

	EnableDatadog bool     `json:"enable_datadog"`
	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`

	NtfyTopic string `json:"ntfy_topic"`

	MQTT MQTT `json:"mqtt"`
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to config file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	cfg.applyDefaults()
	cfg.validate()
	return cfg
}

func (cfg *Config) PollInterval() time.Duration {
	return time.Duration(cfg.PollIntervalSeconds) * time.Second
}

func (cfg *Config) PollTimeout() time.Duration {
	return time.Duration(cfg.PollTimeoutSeconds) * time.Second
}

func (cfg *Config) RequestTimeout() time.Duration {
	return time.Duration(cfg.RequestTimeoutSeconds) * time.Second
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.PollIntervalSeconds == 0 {
		cfg.PollIntervalSeconds = 30
	}
	if cfg.PollTimeoutSeconds == 0 {
		cfg.PollTimeoutSeconds = cfg.PollIntervalSeconds
	}
	if cfg.RequestTimeoutSeconds == 0 {
		cfg.RequestTimeoutSeconds = 10
	}
	if cfg.UnavailableAfterFailures == 0 {
		cfg.UnavailableAfterFailures = 3
	}
	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "data/daikin.db"
	}
	if cfg.DDNamespace == "" {
		cfg.DDNamespace = "daikin."
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "daikin"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "daikin-climate"
	}
	for i := range cfg.Devices {
		if len(cfg.Devices[i].Sensors) == 0 {
			cfg.Devices[i].Sensors = []string{"htemp", "otemp"}
		}
	}
}

func (cfg *Config) validate() {
	var (
		problems  []string
		ids       = map[string]bool{}
		addresses = map[string]string{}
	)

	if len(cfg.Devices) == 0 {
		problems = append(problems, "no devices configured")
	}

	for i, d := range cfg.Devices {
		if d.ID == "" {
			problems = append(problems, fmt.Sprintf("devices[%d].id is required", i))
		} else if ids[d.ID] {
			problems = append(problems, fmt.Sprintf("duplicate device id %q", d.ID))
		}
		ids[d.ID] = true

		if d.IPAddress == "" {
			problems = append(problems, fmt.Sprintf("devices[%d].ipaddress is required", i))
		} else if other, exists := addresses[d.IPAddress]; exists {
			problems = append(problems, fmt.Sprintf("devices %s and %s both use %s", d.ID, other, d.IPAddress))
		} else {
			addresses[d.IPAddress] = d.ID
		}

		for _, field := range d.Sensors {
			if strings.TrimSpace(field) == "" {
				problems = append(problems, fmt.Sprintf("devices[%d].sensors contains an empty field", i))
			}
		}
	}

	if cfg.PollIntervalSeconds < 0 || cfg.PollTimeoutSeconds < 0 || cfg.RequestTimeoutSeconds < 0 {
		problems = append(problems, "intervals must not be negative")
	}
	if cfg.EnableDatadog && cfg.DDAgentAddr == "" {
		problems = append(problems, "dd_agent_addr is required when enable_datadog is set")
	}

	if len(problems) > 0 {
		panic("Invalid config: " + strings.Join(problems, "; "))
	}
}
