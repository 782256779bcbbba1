package radio_test

import (
	"reflect"
	"testing"

	"meshmon/internal/fieldtree"
	"meshmon/internal/radio"
	"meshmon/internal/radio/fake"
)

func fullClient() *fake.Client {
	return &fake.Client{
		Info: fieldtree.Tree{
			"my_node_num":      uint32(0xa1b2c3d4),
			"firmware_version": "2.3.2.abcdef",
			"hw_model":         "RAK4631",
			"my_node_id":       "!A1B2C3D4",
			"node_info": fieldtree.Tree{
				"user": fieldtree.Tree{"long_name": "Relay One", "short_name": "R1"},
				"role": "ROUTER",
			},
			"node_metrics": fieldtree.Tree{"snr": 6.25, "air_util_tx": 3.5},
			"device_metrics": fieldtree.Tree{
				"battery_level": 83.0,
				"voltage":       4.05,
				"temperature":   21.5,
				"uptime":        int64(7200),
			},
			"ble": fieldtree.Tree{"macaddr": "aa:bb:cc:dd:ee:ff", "name": "Relay_BLE"},
		},
		Config: fieldtree.Tree{
			"preferences": fieldtree.Tree{"region": "EU_868", "role": "CLIENT"},
		},
		NodeDB: map[uint32]fieldtree.Tree{
			0xa1b2c3d4: {"num": uint32(0xa1b2c3d4)},
			0x22334455: {"num": uint32(0x22334455), "rx_rssi": -88.0},
		},
		ChannelList: []fieldtree.Tree{
			{"settings": fieldtree.Tree{"name": "LongFast"}, "role": uint32(1)},
			{"name": "Admin"},
		},
		LastPacket: fieldtree.Tree{
			"from_id": "!22334455",
			"rx_time": int64(1700000123),
			"decoded": fieldtree.Tree{"portnum": "TEXT_MESSAGE_APP", "text": "hello mesh"},
		},
	}
}

func TestNormalizeFullState(t *testing.T) {
	got := radio.Normalize(fullClient())

	if got.Firmware != "2.3.2.abcdef" {
		t.Fatalf("Firmware = %q", got.Firmware)
	}
	if got.NodeNum == nil || *got.NodeNum != 0xa1b2c3d4 {
		t.Fatalf("NodeNum = %v", got.NodeNum)
	}
	if got.NodeID != "!a1b2c3d4" {
		t.Fatalf("NodeID = %q, want lower-cased", got.NodeID)
	}
	if got.NodeName != "Relay One" {
		t.Fatalf("NodeName = %q, long name must win", got.NodeName)
	}
	if got.Region != "EU_868" {
		t.Fatalf("Region = %q", got.Region)
	}
	if got.Role != "CLIENT" {
		t.Fatalf("Role = %q, preferences must win", got.Role)
	}
	if got.RouteTableSize == nil || *got.RouteTableSize != 2 {
		t.Fatalf("RouteTableSize = %v", got.RouteTableSize)
	}
	if got.Channel != "LongFast" {
		t.Fatalf("Channel = %q", got.Channel)
	}
	if !reflect.DeepEqual(got.Channels, []string{"LongFast", "Admin"}) {
		t.Fatalf("Channels = %v", got.Channels)
	}
	if got.BLEMAC != "aa:bb:cc:dd:ee:ff" || got.BLEName != "Relay_BLE" {
		t.Fatalf("BLE = %q / %q", got.BLEMAC, got.BLEName)
	}
	if got.SNR == nil || *got.SNR != 6.25 {
		t.Fatalf("SNR = %v", got.SNR)
	}
	if got.AirtimeUtilization == nil || *got.AirtimeUtilization != 3.5 {
		t.Fatalf("AirtimeUtilization = %v", got.AirtimeUtilization)
	}
	if got.BatteryLevel == nil || *got.BatteryLevel != 83 {
		t.Fatalf("BatteryLevel = %v", got.BatteryLevel)
	}
	if got.BatteryVoltage == nil || *got.BatteryVoltage != 4.05 {
		t.Fatalf("BatteryVoltage = %v", got.BatteryVoltage)
	}
	if got.Temperature == nil || *got.Temperature != 21.5 {
		t.Fatalf("Temperature = %v", got.Temperature)
	}
	if got.Uptime == nil || *got.Uptime != 7200 {
		t.Fatalf("Uptime = %v", got.Uptime)
	}
	if got.LastMessage != "hello mesh" || got.LastSender != "!22334455" {
		t.Fatalf("last message = %q from %q", got.LastMessage, got.LastSender)
	}
	if got.LastMessageType != "TEXT_MESSAGE_APP" {
		t.Fatalf("LastMessageType = %q", got.LastMessageType)
	}
	if got.LastMessageTime == nil || *got.LastMessageTime != 1700000123 {
		t.Fatalf("LastMessageTime = %v", got.LastMessageTime)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	c := fullClient()
	first := radio.Normalize(c)
	second := radio.Normalize(c)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalize is not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestNormalizePartialInput(t *testing.T) {
	c := &fake.Client{
		Info: fieldtree.Tree{"firmware_version": "2.1.0"},
		Config: fieldtree.Tree{
			"preferences": fieldtree.Tree{"region": "US"},
		},
	}

	got := radio.Normalize(c)
	if got.NodeName != "" {
		t.Fatalf("NodeName = %q, want absent without a user block", got.NodeName)
	}
	if got.Firmware != "2.1.0" {
		t.Fatalf("Firmware = %q", got.Firmware)
	}
	if got.Region != "US" {
		t.Fatalf("Region = %q", got.Region)
	}
	if got.RSSI != nil || got.BatteryLevel != nil || got.Uptime != nil {
		t.Fatalf("numeric fields must stay absent: %+v", got)
	}
}

func TestNormalizeEmptyClient(t *testing.T) {
	got := radio.Normalize(&fake.Client{})
	if data := got.AsMap(); len(data) != 0 {
		t.Fatalf("empty state must serialize empty, got %v", data)
	}
}

func TestNormalizeAliasOrder(t *testing.T) {
	c := &fake.Client{Info: fieldtree.Tree{"rx_rssi": -90.0}}
	got := radio.Normalize(c)
	if got.RSSI == nil || *got.RSSI != -90 {
		t.Fatalf("rx_rssi alias not picked up: %v", got.RSSI)
	}

	c = &fake.Client{Info: fieldtree.Tree{"rssi": -80.0, "rx_rssi": -90.0}}
	got = radio.Normalize(c)
	if got.RSSI == nil || *got.RSSI != -80 {
		t.Fatalf("rssi must win over rx_rssi: %v", got.RSSI)
	}
}

func TestNormalizeNodeDatabaseFallback(t *testing.T) {
	c := &fake.Client{
		Info: fieldtree.Tree{"my_node_num": uint32(7)},
		NodeDB: map[uint32]fieldtree.Tree{
			7: {"rx_rssi": -70.0, "rx_snr": 4.5},
		},
	}

	got := radio.Normalize(c)
	if got.RSSI == nil || *got.RSSI != -70 {
		t.Fatalf("RSSI = %v, want node database fallback", got.RSSI)
	}
	if got.SNR == nil || *got.SNR != 4.5 {
		t.Fatalf("SNR = %v, want node database fallback", got.SNR)
	}
}

func TestNormalizeChannelExtraction(t *testing.T) {
	c := &fake.Client{
		ChannelList: []fieldtree.Tree{
			{"settings": fieldtree.Tree{"name": "LongFast"}},
			{"name": "Admin"},
			{"settings": fieldtree.Tree{}},
		},
	}

	got := radio.Normalize(c)
	if !reflect.DeepEqual(got.Channels, []string{"LongFast", "Admin"}) {
		t.Fatalf("Channels = %v", got.Channels)
	}
	if got.Channel != "LongFast" {
		t.Fatalf("Channel = %q", got.Channel)
	}
}

func TestNormalizeUptimePreference(t *testing.T) {
	c := &fake.Client{Info: fieldtree.Tree{
		"uptime":         int64(50),
		"device_metrics": fieldtree.Tree{"uptime": int64(99)},
	}}
	got := radio.Normalize(c)
	if got.Uptime == nil || *got.Uptime != 50 {
		t.Fatalf("Uptime = %v, device-info value must win", got.Uptime)
	}

	c = &fake.Client{Info: fieldtree.Tree{
		"device_metrics": fieldtree.Tree{"uptime_seconds": int64(99)},
	}}
	got = radio.Normalize(c)
	if got.Uptime == nil || *got.Uptime != 99 {
		t.Fatalf("Uptime = %v, uptime_seconds alias not picked up", got.Uptime)
	}
}

func TestNormalizeRoleRegionFallbacks(t *testing.T) {
	c := &fake.Client{
		Info: fieldtree.Tree{
			"node_info": fieldtree.Tree{"role": "ROUTER"},
		},
	}
	got := radio.Normalize(c)
	if got.Role != "ROUTER" {
		t.Fatalf("Role = %q, want node-info fallback", got.Role)
	}

	c = &fake.Client{
		Info:   fieldtree.Tree{"region": "ANZ"},
		Config: fieldtree.Tree{"preferences": fieldtree.Tree{"region": "EU_868"}},
	}
	got = radio.Normalize(c)
	if got.Region != "ANZ" {
		t.Fatalf("Region = %q, device-info value must win", got.Region)
	}
}

func TestNormalizeBLEAliases(t *testing.T) {
	c := &fake.Client{Info: fieldtree.Tree{
		"ble": fieldtree.Tree{"address": "11:22:33:44:55:66", "hostname": "node-ble"},
	}}

	got := radio.Normalize(c)
	if got.BLEMAC != "11:22:33:44:55:66" {
		t.Fatalf("BLEMAC = %q", got.BLEMAC)
	}
	if got.BLEName != "node-ble" {
		t.Fatalf("BLEName = %q", got.BLEName)
	}
}

func TestNormalizeLastMessageFallbacks(t *testing.T) {
	c := &fake.Client{LastPacket: fieldtree.Tree{
		"from":    uint32(0xa1b2c3d4),
		"portnum": "TELEMETRY_APP",
		"rx_time": int64(1700000000),
		"decoded": fieldtree.Tree{"payload": "AQID"},
	}}

	got := radio.Normalize(c)
	if got.LastMessage != "AQID" {
		t.Fatalf("LastMessage = %q, want payload fallback", got.LastMessage)
	}
	if got.LastSender != "!a1b2c3d4" {
		t.Fatalf("LastSender = %q, want formatted node number", got.LastSender)
	}
	if got.LastMessageType != "TELEMETRY_APP" {
		t.Fatalf("LastMessageType = %q, want top-level fallback", got.LastMessageType)
	}
	if got.LastMessageTime == nil || *got.LastMessageTime != 1700000000 {
		t.Fatalf("LastMessageTime = %v", got.LastMessageTime)
	}
}

func TestNormalizeRouteTableSize(t *testing.T) {
	got := radio.Normalize(&fake.Client{})
	if got.RouteTableSize != nil {
		t.Fatalf("RouteTableSize = %v, want absent without a node database", got.RouteTableSize)
	}

	got = radio.Normalize(&fake.Client{NodeDB: map[uint32]fieldtree.Tree{}})
	if got.RouteTableSize == nil || *got.RouteTableSize != 0 {
		t.Fatalf("RouteTableSize = %v, want zero for an empty database", got.RouteTableSize)
	}
}

func TestNormalizeSerializedViewOmitsAbsent(t *testing.T) {
	c := &fake.Client{Info: fieldtree.Tree{
		"my_node_id": "!a1b2c3d4",
		"node_info":  fieldtree.Tree{"user": fieldtree.Tree{"long_name": "Relay One"}},
	}}

	got := radio.Normalize(c)
	if got.NodeID != "!a1b2c3d4" || got.NodeName != "Relay One" {
		t.Fatalf("identity = %q / %q", got.NodeID, got.NodeName)
	}

	data := got.AsMap()
	if _, ok := data["rssi"]; ok {
		t.Fatalf("absent rssi must not appear in the serialized view: %v", data)
	}
	if _, ok := data["battery_level"]; ok {
		t.Fatalf("absent battery_level must not appear: %v", data)
	}
}
