package startup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Service describes the systemd unit that runs the bridge.
type Service struct {
	UnitPath   string
	User       string
	WorkingDir string
	Binary     string
	ConfigFile string
	LogLevel   string
}

func (s Service) Name() string {
	return filepath.Base(s.UnitPath)
}

func (s Service) execStart() string {
	args := []string{s.Binary}
	if s.ConfigFile != "" {
		args = append(args, "-config-file", s.ConfigFile)
	}
	if s.LogLevel != "" {
		args = append(args, "-log-level", s.LogLevel)
	}
	return strings.Join(args, " ")
}

// Unit renders the unit file. The bridge waits for the network since every unit
// is reached over the LAN.
func (s Service) Unit() string {
	return fmt.Sprintf(`[Unit]
Description=Daikin climate bridge
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
User=%s
WorkingDirectory=%s
ExecStart=%s
Restart=on-failure
RestartSec=5s

[Install]
WantedBy=multi-user.target
`, s.User, s.WorkingDir, s.execStart())
}

func (s Service) validate() error {
	var missing []string
	if s.UnitPath == "" {
		missing = append(missing, "unit path")
	}
	if s.User == "" {
		missing = append(missing, "user")
	}
	if s.WorkingDir == "" {
		missing = append(missing, "working directory")
	}
	if s.Binary == "" {
		missing = append(missing, "binary")
	}
	if len(missing) > 0 {
		return fmt.Errorf("service definition incomplete: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func InstallService(s Service) error {
	if err := s.validate(); err != nil {
		return err
	}
	if err := os.WriteFile(s.UnitPath, []byte(s.Unit()), 0644); err != nil {
		return fmt.Errorf("write %s: %w", s.UnitPath, err)
	}
	log.Info().Str("unit", s.UnitPath).Str("exec", s.execStart()).Msg("Installed service unit")
	return nil
}

// EnableService reloads systemd and enables and starts the unit.
func EnableService(s Service) error {
	for _, args := range [][]string{
		{"daemon-reload"},
		{"enable", "--now", s.Name()},
	} {
		cmd := exec.Command("systemctl", args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("systemctl %s: %w", strings.Join(args, " "), err)
		}
	}
	return nil
}
