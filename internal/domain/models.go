package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// UsbPortInfo is one enumerated serial candidate. Instances are ephemeral,
// recomputed on every listing, and never cached across resolves.
type UsbPortInfo struct {
	Device       string
	Description  string
	HWID         string
	Manufacturer string
	Product      string
	SerialNumber string
	Location     string
	VID          *uint16
	PID          *uint16
}

// AsMap returns the serializable view, omitting absent fields. Vendor and
// product ids render as "0x%04x" hex strings.
func (p UsbPortInfo) AsMap() map[string]any {
	data := map[string]any{}
	putStr(data, "device", p.Device)
	putStr(data, "description", p.Description)
	putStr(data, "hwid", p.HWID)
	putStr(data, "manufacturer", p.Manufacturer)
	putStr(data, "product", p.Product)
	putStr(data, "serial_number", p.SerialNumber)
	putStr(data, "location", p.Location)
	if p.VID != nil {
		data["vid"] = fmt.Sprintf("0x%04x", *p.VID)
	}
	if p.PID != nil {
		data["pid"] = fmt.Sprintf("0x%04x", *p.PID)
	}

	return data
}

func (p UsbPortInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.AsMap())
}

// NodeTelemetry is the normalized per-poll record. Every field is optional;
// absent means the radio did not report it, which is distinct from zero.
type NodeTelemetry struct {
	Firmware           string
	NodeNum            *uint32
	HWModel            string
	NodeID             string // canonical, lower-cased
	NodeName           string
	Region             string
	Role               string
	RouteTableSize     *int
	Channel            string
	Channels           []string
	BLEMAC             string
	BLEName            string
	RSSI               *float64
	SNR                *float64
	AirtimeUtilization *float64
	LastMessage        string
	LastSender         string
	LastGateway        string
	LastMessageType    string
	LastMessageTime    *int64
	BatteryLevel       *float64
	BatteryVoltage     *float64
	Temperature        *float64
	Uptime             *int64
}

// AsMap returns the serializable view, omitting absent and empty fields.
func (t NodeTelemetry) AsMap() map[string]any {
	data := map[string]any{}
	putStr(data, "firmware", t.Firmware)
	if t.NodeNum != nil {
		data["node_num"] = *t.NodeNum
	}
	putStr(data, "hw_model", t.HWModel)
	putStr(data, "my_node_id", t.NodeID)
	putStr(data, "node_name", t.NodeName)
	putStr(data, "region", t.Region)
	putStr(data, "role", t.Role)
	if t.RouteTableSize != nil {
		data["route_table_size"] = *t.RouteTableSize
	}
	putStr(data, "channel", t.Channel)
	if len(t.Channels) > 0 {
		data["channels"] = t.Channels
	}
	putStr(data, "ble_mac", t.BLEMAC)
	putStr(data, "ble_name", t.BLEName)
	putFloat(data, "rssi", t.RSSI)
	putFloat(data, "snr", t.SNR)
	putFloat(data, "airtime_utilization", t.AirtimeUtilization)
	putStr(data, "last_message", t.LastMessage)
	putStr(data, "last_sender", t.LastSender)
	putStr(data, "last_gateway", t.LastGateway)
	putStr(data, "last_message_type", t.LastMessageType)
	if t.LastMessageTime != nil {
		data["last_message_time"] = *t.LastMessageTime
	}
	putFloat(data, "battery_level", t.BatteryLevel)
	putFloat(data, "battery_voltage", t.BatteryVoltage)
	putFloat(data, "temperature", t.Temperature)
	if t.Uptime != nil {
		data["uptime"] = *t.Uptime
	}

	return data
}

func (t NodeTelemetry) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.AsMap())
}

// DeviceSnapshot is one poll result: the spec echoed back, the resolved
// transport detail actually used, and either telemetry or an error string.
// Each poll replaces the whole snapshot; previous telemetry is never merged
// into a failed cycle.
type DeviceSnapshot struct {
	Kind       ConnectionKind
	SerialPort string // resolved device path, serial only
	TCPHost    string
	TCPPort    int
	USB        *UsbPortInfo
	Telemetry  *NodeTelemetry
	Error      string
	PolledAt   time.Time
}

// Identifier returns the stable registry key for the snapshot: the canonical
// node id when known, else the transport address.
func (s DeviceSnapshot) Identifier() string {
	if s.Telemetry != nil && s.Telemetry.NodeID != "" {
		return s.Telemetry.NodeID
	}
	if s.Kind == KindSerial && s.SerialPort != "" {
		return "serial:" + s.SerialPort
	}
	if s.Kind == KindTCP && s.TCPHost != "" {
		port := s.TCPPort
		if port <= 0 {
			port = DefaultTCPPort
		}

		return fmt.Sprintf("tcp:%s:%d", s.TCPHost, port)
	}

	return "unknown"
}

// DisplayName returns a human readable name for the snapshot.
func (s DeviceSnapshot) DisplayName() string {
	var name, nodeID string
	if s.Telemetry != nil {
		name = s.Telemetry.NodeName
		nodeID = s.Telemetry.NodeID
	}
	switch {
	case name != "" && nodeID != "":
		return fmt.Sprintf("%s (%s)", name, nodeID)
	case name != "":
		return name
	case nodeID != "":
		return nodeID
	}
	if s.Kind == KindSerial && s.SerialPort != "" {
		return "Serial " + s.SerialPort
	}
	if s.Kind == KindTCP && s.TCPHost != "" {
		port := s.TCPPort
		if port <= 0 {
			port = DefaultTCPPort
		}

		return fmt.Sprintf("TCP %s:%d", s.TCPHost, port)
	}

	return "Meshtastic"
}

// AsMap returns the serializable view, omitting absent fields.
func (s DeviceSnapshot) AsMap() map[string]any {
	data := map[string]any{"connection_type": string(s.Kind)}
	putStr(data, "serial_port", s.SerialPort)
	putStr(data, "tcp_host", s.TCPHost)
	if s.TCPPort > 0 {
		data["tcp_port"] = s.TCPPort
	}
	if s.USB != nil {
		data["usb"] = s.USB.AsMap()
	}
	if s.Telemetry != nil {
		data["node"] = s.Telemetry.AsMap()
	}
	putStr(data, "error", s.Error)
	if !s.PolledAt.IsZero() {
		data["polled_at"] = s.PolledAt.UTC().Format(time.RFC3339)
	}

	return data
}

func (s DeviceSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.AsMap())
}

// TCPCandidate is one radio found by network discovery. Candidates are
// one-shot selection material, never persisted.
type TCPCandidate struct {
	Host      string
	Port      int
	Telemetry *NodeTelemetry
}

// Title renders the candidate for a selection list.
func (c TCPCandidate) Title() string {
	if c.Telemetry != nil && c.Telemetry.NodeName != "" {
		return fmt.Sprintf("%s (%s:%d)", c.Telemetry.NodeName, c.Host, c.Port)
	}

	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func putStr(data map[string]any, key, value string) {
	if value != "" {
		data[key] = value
	}
}

func putFloat(data map[string]any, key string, value *float64) {
	if value != nil {
		data[key] = *value
	}
}
