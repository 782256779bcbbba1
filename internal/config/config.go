package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"meshmon/internal/domain"
)

// ConnectorType identifies which transport backend a connection uses.
type ConnectorType string

const (
	ConnectorTCP    ConnectorType = "tcp"
	ConnectorSerial ConnectorType = "serial"

	DefaultPollIntervalSeconds = 30
	MinPollIntervalSeconds     = 10
	MaxPollIntervalSeconds     = 3600
)

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	LogToFile bool   `json:"log_to_file"`
}

// ConnectionConfig describes one radio the daemon polls. ID names the
// connection in CLI selectors, bus events, and the snapshot cache.
type ConnectionConfig struct {
	ID         string        `json:"id"`
	Connector  ConnectorType `json:"connector"`
	Host       string        `json:"host"`
	Port       int           `json:"port"`
	SerialPort string        `json:"serial_port"`
}

// PollConfig holds the telemetry refresh schedule.
type PollConfig struct {
	IntervalSeconds int `json:"interval_seconds"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Connections []ConnectionConfig `json:"connections"`
	Poll        PollConfig         `json:"poll"`
	Logging     LoggingConfig      `json:"logging"`
}

func Default() AppConfig {
	return AppConfig{
		Connections: nil,
		Poll: PollConfig{
			IntervalSeconds: DefaultPollIntervalSeconds,
		},
		Logging: LoggingConfig{
			Level:     "info",
			LogToFile: false,
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Poll.IntervalSeconds <= 0 {
		c.Poll.IntervalSeconds = DefaultPollIntervalSeconds
	}
	if c.Poll.IntervalSeconds < MinPollIntervalSeconds {
		c.Poll.IntervalSeconds = MinPollIntervalSeconds
	}
	if c.Poll.IntervalSeconds > MaxPollIntervalSeconds {
		c.Poll.IntervalSeconds = MaxPollIntervalSeconds
	}
	for i := range c.Connections {
		conn := &c.Connections[i]
		if conn.Connector == "" {
			if strings.TrimSpace(conn.SerialPort) != "" {
				conn.Connector = ConnectorSerial
			} else {
				conn.Connector = ConnectorTCP
			}
		}
		if conn.Connector == ConnectorSerial && strings.TrimSpace(conn.SerialPort) == "" {
			conn.SerialPort = domain.SerialPortAuto
		}
		if strings.TrimSpace(conn.ID) == "" {
			conn.ID = defaultConnectionID(*conn)
		}
	}
}

func defaultConnectionID(conn ConnectionConfig) string {
	switch conn.Connector {
	case ConnectorSerial:
		return "serial-" + slugify(conn.SerialPort)
	default:
		return "tcp-" + slugify(conn.Host)
	}
}

func slugify(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '-'
		}
	}, value)

	return strings.Trim(value, "-")
}

func (c AppConfig) Validate() error {
	if c.Poll.IntervalSeconds != 0 {
		if c.Poll.IntervalSeconds < MinPollIntervalSeconds || c.Poll.IntervalSeconds > MaxPollIntervalSeconds {
			return fmt.Errorf("poll interval %ds out of range [%d, %d]",
				c.Poll.IntervalSeconds, MinPollIntervalSeconds, MaxPollIntervalSeconds)
		}
	}

	seen := make(map[string]struct{}, len(c.Connections))
	for i, conn := range c.Connections {
		id := strings.TrimSpace(conn.ID)
		if id != "" {
			if _, dup := seen[id]; dup {
				return fmt.Errorf("duplicate connection id %q", id)
			}
			seen[id] = struct{}{}
		}
		switch conn.Connector {
		case ConnectorTCP:
			if strings.TrimSpace(conn.Host) == "" {
				return fmt.Errorf("connection %d: tcp host is required", i)
			}
			if conn.Port < 0 || conn.Port > 65535 {
				return fmt.Errorf("connection %d: tcp port %d out of range", i, conn.Port)
			}
		case ConnectorSerial:
			// Empty serial port means autodetection.
		default:
			return fmt.Errorf("connection %d: unknown connector: %s", i, conn.Connector)
		}
	}

	return nil
}

// Spec maps a connection entry onto the transport-neutral form the device
// layer consumes.
func (c ConnectionConfig) Spec() domain.ConnectionSpec {
	if c.Connector == ConnectorSerial {
		return domain.ConnectionSpec{
			Kind:       domain.KindSerial,
			SerialPort: strings.TrimSpace(c.SerialPort),
		}
	}

	return domain.ConnectionSpec{
		Kind:    domain.KindTCP,
		TCPHost: strings.TrimSpace(c.Host),
		TCPPort: c.Port,
	}
}

func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
