package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"meshmon/internal/app"
	"meshmon/internal/config"
	"meshmon/internal/device"
	"meshmon/internal/domain"
	"meshmon/internal/poll"
)

// loadConfig resolves the application directories and reads the validated
// config. A missing config file yields the defaults.
func loadConfig() (app.Paths, config.AppConfig, error) {
	paths, err := app.ResolvePaths()
	if err != nil {
		return app.Paths{}, config.AppConfig{}, fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return app.Paths{}, config.AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return app.Paths{}, config.AppConfig{}, fmt.Errorf("invalid config %s: %w", paths.ConfigFile, err)
	}

	return paths, cfg, nil
}

// resolveConnection maps a selector onto a configured connection using the
// registry rules: an explicit id, or the single configured entry when the
// selector is empty.
func resolveConnection(cfg config.AppConfig, selector string) (string, domain.ConnectionSpec, error) {
	registry := poll.NewRegistry()
	manager := device.NewManager()
	for _, conn := range cfg.Connections {
		p := poll.NewPoller(conn.ID, conn.Spec(), cfg.Poll.Interval(), manager, nil)
		if err := registry.Add(p); err != nil {
			return "", domain.ConnectionSpec{}, err
		}
	}

	p, err := registry.Resolve(selector)
	if err != nil {
		return "", domain.ConnectionSpec{}, err
	}

	return p.ID(), p.Spec(), nil
}

// addTargetFlags registers the shared device target flags used by the
// commands that talk to a radio directly.
func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("connection", "c", "", "configured connection id")
	cmd.Flags().String("tcp", "", "ad-hoc TCP target host[:port]")
	cmd.Flags().String("serial", "", "ad-hoc serial port path, or 'auto'")
}

// targetSpec resolves the device target from the shared flags. Ad-hoc
// --tcp/--serial targets bypass the config entirely.
func targetSpec(cmd *cobra.Command) (domain.ConnectionSpec, error) {
	selector, _ := cmd.Flags().GetString("connection")
	tcpTarget, _ := cmd.Flags().GetString("tcp")
	serialPort, _ := cmd.Flags().GetString("serial")

	spec, adHoc, err := adHocSpec(tcpTarget, serialPort)
	if err != nil {
		return domain.ConnectionSpec{}, err
	}
	if adHoc {
		if selector != "" {
			return domain.ConnectionSpec{}, fmt.Errorf("--connection cannot be combined with --tcp or --serial")
		}

		return spec, nil
	}

	_, cfg, err := loadConfig()
	if err != nil {
		return domain.ConnectionSpec{}, err
	}
	_, spec, err = resolveConnection(cfg, selector)

	return spec, err
}

func adHocSpec(tcpTarget, serialPort string) (domain.ConnectionSpec, bool, error) {
	switch {
	case tcpTarget != "" && serialPort != "":
		return domain.ConnectionSpec{}, false, fmt.Errorf("--tcp and --serial are mutually exclusive")
	case serialPort != "":
		return domain.ConnectionSpec{Kind: domain.KindSerial, SerialPort: strings.TrimSpace(serialPort)}, true, nil
	case tcpTarget != "":
		spec, err := parseTCPTarget(tcpTarget)

		return spec, true, err
	default:
		return domain.ConnectionSpec{}, false, nil
	}
}

// parseTCPTarget accepts "host" or "host:port". A bare host gets the
// default radio port.
func parseTCPTarget(raw string) (domain.ConnectionSpec, error) {
	raw = strings.TrimSpace(raw)
	spec := domain.ConnectionSpec{Kind: domain.KindTCP}

	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		if raw == "" {
			return domain.ConnectionSpec{}, fmt.Errorf("empty tcp target")
		}
		spec.TCPHost = raw

		return spec, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return domain.ConnectionSpec{}, fmt.Errorf("invalid tcp port %q", portStr)
	}
	spec.TCPHost = host
	spec.TCPPort = port

	return spec, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))

	return nil
}

// printSnapshot renders a single snapshot as a key/value block.
func printSnapshot(w io.Writer, s domain.DeviceSnapshot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Target:\t%s\n", snapshotTarget(s))
	if s.Error != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", s.Error)
	}
	if t := s.Telemetry; t != nil {
		fmt.Fprintf(tw, "Node:\t%s\n", s.DisplayName())
		if t.HWModel != "" {
			fmt.Fprintf(tw, "Hardware:\t%s\n", t.HWModel)
		}
		if t.Firmware != "" {
			fmt.Fprintf(tw, "Firmware:\t%s\n", t.Firmware)
		}
		if t.Region != "" {
			fmt.Fprintf(tw, "Region:\t%s\n", t.Region)
		}
		if t.Role != "" {
			fmt.Fprintf(tw, "Role:\t%s\n", t.Role)
		}
		if t.Channel != "" {
			fmt.Fprintf(tw, "Channel:\t%s\n", t.Channel)
		}
		if len(t.Channels) > 0 {
			fmt.Fprintf(tw, "Channels:\t%s\n", strings.Join(t.Channels, ", "))
		}
		if t.BatteryLevel != nil {
			fmt.Fprintf(tw, "Battery:\t%s\n", batteryLine(t))
		}
		if quality := domain.DetermineSignalQuality(t.SNR, t.RSSI); quality != domain.SignalUnknown {
			fmt.Fprintf(tw, "Signal:\t%s (snr %.1f dB, rssi %.0f dBm)\n", quality, *t.SNR, *t.RSSI)
		}
	}
	if s.USB != nil {
		fmt.Fprintf(tw, "USB:\t%s\n", usbLine(*s.USB))
	}
	if !s.PolledAt.IsZero() {
		fmt.Fprintf(tw, "Polled:\t%s\n", s.PolledAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
}

func snapshotTarget(s domain.DeviceSnapshot) string {
	switch s.Kind {
	case domain.KindSerial:
		return "serial " + s.SerialPort
	case domain.KindTCP:
		port := s.TCPPort
		if port <= 0 {
			port = domain.DefaultTCPPort
		}

		return fmt.Sprintf("tcp %s:%d", s.TCPHost, port)
	default:
		return string(s.Kind)
	}
}

func batteryLine(t *domain.NodeTelemetry) string {
	line := fmt.Sprintf("%.0f%%", *t.BatteryLevel)
	if t.BatteryVoltage != nil {
		line += fmt.Sprintf(" (%.2fV)", *t.BatteryVoltage)
	}

	return line
}

func usbLine(info domain.UsbPortInfo) string {
	parts := []string{info.Device}
	if info.VID != nil && info.PID != nil {
		parts = append(parts, fmt.Sprintf("%04x:%04x", *info.VID, *info.PID))
	}
	if info.Description != "" {
		parts = append(parts, info.Description)
	}

	return strings.Join(parts, " ")
}
