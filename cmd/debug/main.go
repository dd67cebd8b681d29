package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/thatsimonsguy/daikin-climate/db"
	"github.com/thatsimonsguy/daikin-climate/internal/climate"
	"github.com/thatsimonsguy/daikin-climate/internal/daikin"
	"github.com/thatsimonsguy/daikin-climate/internal/logging"
	"github.com/thatsimonsguy/daikin-climate/internal/sensor"
	"github.com/thatsimonsguy/daikin-climate/system/startup"
)

var (
	labelPrintf = color.New(color.FgCyan).SprintfFunc()
	okPrintf    = color.New(color.FgGreen).SprintfFunc()
	errPrintf   = color.New(color.FgRed).SprintfFunc()
)

func main() {
	DebugCLI()
}

func DebugCLI() {
	var dbPath, command, ip, value, field string
	var timeout time.Duration
	var verbose bool
	var svc startup.Service
	flag.StringVar(&dbPath, "db", "data/daikin.db", "Path to the SQLite database file")
	flag.StringVar(&command, "cmd", "", "Command to run: info, raw, sensor, set-mode, set-fan, set-swing, set-temp, list-devices, install-service")
	flag.StringVar(&ip, "ip", "", "Unit address for unit commands")
	flag.StringVar(&value, "value", "", "Value for set commands")
	flag.StringVar(&field, "field", "otemp", "Sensor info field for the sensor command")
	flag.DurationVar(&timeout, "timeout", daikin.DefaultTimeout, "Request timeout")
	flag.BoolVar(&verbose, "v", false, "Log every request")
	flag.StringVar(&svc.UnitPath, "unit", "/etc/systemd/system/daikin-climate.service", "Unit file for install-service")
	flag.StringVar(&svc.User, "user", "", "Service user for install-service")
	flag.StringVar(&svc.WorkingDir, "workdir", "", "Working directory for install-service")
	flag.StringVar(&svc.Binary, "bin", "/usr/local/bin/daikin-climate", "Bridge binary for install-service")
	flag.StringVar(&svc.ConfigFile, "config-file", "", "Config file passed to the bridge by install-service")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help || command == "" {
		fmt.Println("\nUsage of daikin-debug:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logging.Init(level, "")

	ctx, cancel := context.WithTimeout(context.Background(), 4*timeout)
	defer cancel()
	opts := []daikin.Option{daikin.WithTimeout(timeout)}

	var err error
	switch command {
	case "list-devices":
		err = listDevices(dbPath)
	case "install-service":
		err = installService(svc)
	case "raw":
		requireIP(ip)
		err = raw(ctx, daikin.NewClient(ip, opts...))
	case "sensor":
		requireIP(ip)
		err = showSensor(ctx, ip, field, opts)
	case "info", "set-mode", "set-fan", "set-swing", "set-temp":
		requireIP(ip)
		err = climateCommand(ctx, ip, command, value, opts)
	default:
		fmt.Println(errPrintf("Invalid command %q", command))
		os.Exit(1)
	}

	if err != nil {
		fmt.Println(errPrintf("Command %s failed: %v", command, err))
		os.Exit(1)
	}
}

func requireIP(ip string) {
	if ip == "" {
		fmt.Println(errPrintf("Error: -ip is required"))
		os.Exit(1)
	}
}

func climateCommand(ctx context.Context, ip, command, value string, opts []daikin.Option) error {
	c, err := climate.New(ctx, ip, climate.WithClientOptions(opts...))
	if err != nil {
		return err
	}

	switch command {
	case "set-mode":
		err = c.SetOperationMode(ctx, value)
	case "set-fan":
		err = c.SetFanMode(ctx, value)
	case "set-swing":
		err = c.SetSwingMode(ctx, value)
	case "set-temp":
		var t float64
		t, err = strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid temperature %q", value)
		}
		err = c.SetTemperature(ctx, t)
	}
	if err != nil {
		return err
	}
	if command != "info" {
		fmt.Println(okPrintf("%s accepted", command))
	}

	printClimate(c)
	return nil
}

func printClimate(c *climate.Climate) {
	s := c.Snapshot()
	row := func(label, v string) {
		fmt.Printf("  %s %s\n", labelPrintf("%-20s", label), v)
	}
	optional := func(v *string) string {
		if v == nil {
			return "-"
		}
		return *v
	}

	fmt.Println(okPrintf("%s (%s)", s.Name, c.Address()))
	row("operation", s.Operation)
	row("current temperature", fmt.Sprintf("%.1f%s", s.CurrentTemperature, s.TemperatureUnit))
	if s.TargetTemperature != nil {
		row("target temperature", fmt.Sprintf("%.1f%s", *s.TargetTemperature, s.TemperatureUnit))
	} else {
		row("target temperature", "-")
	}
	row("fan mode", optional(s.FanMode))
	row("swing mode", optional(s.SwingMode))
	row("operation modes", strings.Join(s.OperationList, ", "))
	row("fan modes", strings.Join(s.FanList, ", "))
	row("swing modes", strings.Join(s.SwingList, ", "))
}

func showSensor(ctx context.Context, ip, field string, opts []daikin.Option) error {
	s, err := sensor.New(ctx, ip, field, opts...)
	if err != nil {
		return err
	}
	v, ok := s.Value()
	if !ok {
		fmt.Printf("%s -\n", labelPrintf("%s", s.Name()))
		return nil
	}
	fmt.Printf("%s %.1f%s\n", labelPrintf("%s", s.Name()), v, s.Unit())
	return nil
}

func raw(ctx context.Context, client *daikin.Client) error {
	for _, endpoint := range []string{daikin.BasicInfoEndpoint, daikin.SensorInfoEndpoint, daikin.ControlInfoEndpoint} {
		fields, err := client.Get(ctx, endpoint)
		if err != nil {
			return err
		}
		fmt.Println(okPrintf("%s", endpoint))
		for _, k := range sortedKeys(fields) {
			fmt.Printf("  %s %s\n", labelPrintf("%-10s", k), fields[k])
		}
	}
	return nil
}

func listDevices(dbPath string) error {
	conn, err := db.Open(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	devices, err := db.GetAllDevices(conn)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No devices registered")
		return nil
	}
	for _, d := range devices {
		resolved := "never"
		if !d.ResolvedAt.IsZero() {
			resolved = d.ResolvedAt.Local().Format(time.RFC3339)
		}
		fmt.Printf("%s %-15s %-20s sensors=%s resolved=%s\n",
			labelPrintf("%-12s", d.ID), d.IPAddress, d.Name, strings.Join(d.Sensors, ","), resolved)
	}
	return nil
}

func installService(svc startup.Service) error {
	if err := startup.InstallService(svc); err != nil {
		return err
	}
	if err := startup.EnableService(svc); err != nil {
		return err
	}
	fmt.Println(okPrintf("%s installed and started", svc.Name()))
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
