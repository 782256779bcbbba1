package radio

import (
	"meshmon/internal/domain"
	"meshmon/internal/fieldtree"
)

// Alias tables: canonical field to the ordered list of accepted source keys.
// Field names drifted across firmware generations, so every lookup walks its
// whole table; supporting another generation is a one-line edit here.
var (
	rssiAliases    = []string{"rssi", "rx_rssi", "last_heard_rssi"}
	snrAliases     = []string{"snr", "rx_snr", "last_heard_snr"}
	airUtilAliases = []string{"air_util_tx", "air_util", "airtime"}
	voltageAliases = []string{"voltage", "battery_voltage"}
	uptimeAliases  = []string{"uptime", "uptime_seconds"}
	textAliases    = []string{"text", "payload", "data"}
	typeAliases    = []string{"portnum", "type"}
	timeAliases    = []string{"rx_time", "time"}
	gatewayAliases = []string{"gateway_id", "rx_gateway"}
	bleMACAliases  = []string{"macaddr", "address", "mac"}
	bleNameAliases = []string{"name", "hostname"}
)

// Normalize flattens the weakly typed device state of an open client into a
// telemetry record. Every block may be absent or partial; whatever cannot be
// resolved stays unset rather than defaulting to zero. The function is pure:
// normalizing the same state twice yields the same record.
func Normalize(c Client) domain.NodeTelemetry {
	var t domain.NodeTelemetry

	myInfo := c.MyInfo()
	prefs := c.RadioConfig().Sub("preferences")
	nodeInfo := myInfo.Sub("node_info")

	t.Firmware, _ = myInfo.Str("firmware_version")
	if num, ok := myInfo.Uint32("my_node_num"); ok {
		t.NodeNum = &num
	}
	t.HWModel, _ = myInfo.Str("hw_model")
	if id, ok := myInfo.Str("my_node_id"); ok {
		t.NodeID = domain.CanonicalNodeID(id)
	}

	user := nodeInfo.Sub("user")
	t.NodeName, _ = user.FirstStr("long_name", "short_name")

	if v, ok := myInfo.Str("region"); ok {
		t.Region = v
	} else {
		t.Region, _ = prefs.Str("region")
	}
	if v, ok := prefs.Str("role"); ok {
		t.Role = v
	} else {
		t.Role, _ = nodeInfo.Str("role")
	}

	nodes := c.Nodes()
	if nodes != nil {
		size := len(nodes)
		t.RouteTableSize = &size
	}

	t.Channels = channelNames(c.Channels())
	if len(t.Channels) > 0 {
		t.Channel = t.Channels[0]
	}

	ble := myInfo.Sub("ble")
	t.BLEMAC, _ = ble.FirstStr(bleMACAliases...)
	t.BLEName, _ = ble.FirstStr(bleNameAliases...)

	// Signal metrics may sit at the top of the device-info block or inside
	// one of its metric sub-blocks depending on firmware.
	metricBlocks := []fieldtree.Tree{
		myInfo,
		myInfo.Sub("node_metrics"),
		myInfo.Sub("device_metrics"),
	}
	t.RSSI = firstFloatIn(metricBlocks, rssiAliases)
	t.SNR = firstFloatIn(metricBlocks, snrAliases)
	t.AirtimeUtilization = firstFloatIn(metricBlocks, airUtilAliases)

	// Radios often report their own link quality only in the node database.
	if (t.RSSI == nil || t.SNR == nil) && t.NodeNum != nil {
		if own := nodes[*t.NodeNum]; own != nil {
			if t.RSSI == nil {
				if v, ok := own.Float("rx_rssi"); ok {
					t.RSSI = &v
				}
			}
			if t.SNR == nil {
				if v, ok := own.Float("rx_snr"); ok {
					t.SNR = &v
				}
			}
		}
	}

	metrics := myInfo.Sub("device_metrics")
	if v, ok := metrics.Float("battery_level"); ok {
		t.BatteryLevel = &v
	}
	if v, ok := metrics.FirstFloat(voltageAliases...); ok {
		t.BatteryVoltage = &v
	}
	if v, ok := metrics.Float("temperature"); ok {
		t.Temperature = &v
	}
	if v, ok := myInfo.FirstInt(uptimeAliases...); ok {
		t.Uptime = &v
	} else if v, ok := metrics.FirstInt(uptimeAliases...); ok {
		t.Uptime = &v
	}

	applyLastReceived(&t, c.LastReceived())

	return t
}

func channelNames(channels []fieldtree.Tree) []string {
	var names []string
	for _, channel := range channels {
		name, ok := channel.Sub("settings").Str("name")
		if !ok {
			name, ok = channel.Str("name")
		}
		if ok {
			names = append(names, name)
		}
	}

	return names
}

func applyLastReceived(t *domain.NodeTelemetry, packet fieldtree.Tree) {
	if packet == nil {
		return
	}
	decoded := packet.Sub("decoded")

	t.LastMessage, _ = decoded.FirstStr(textAliases...)

	if v, ok := packet.Str("from_id"); ok {
		t.LastSender = v
	} else if num, ok := packet.Uint32("from"); ok {
		t.LastSender = formatNodeNum(num)
	}

	t.LastGateway, _ = packet.FirstStr(gatewayAliases...)

	if v, ok := decoded.FirstStr(typeAliases...); ok {
		t.LastMessageType = v
	} else {
		t.LastMessageType, _ = packet.FirstStr(typeAliases...)
	}

	if v, ok := decoded.FirstInt(timeAliases...); ok {
		t.LastMessageTime = &v
	} else if v, ok := packet.FirstInt(timeAliases...); ok {
		t.LastMessageTime = &v
	}
}

func firstFloatIn(blocks []fieldtree.Tree, aliases []string) *float64 {
	for _, block := range blocks {
		if v, ok := block.FirstFloat(aliases...); ok {
			return &v
		}
	}

	return nil
}
