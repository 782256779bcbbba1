package radio

import (
	"encoding/base64"
	"fmt"
	"math"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"meshmon/internal/fieldtree"
)

// Hand-rolled codec for the handful of device protobuf messages the session
// exchanges. Messages are walked field by field with protowire and folded
// into field trees keyed by the proto field names, so unknown fields from
// newer firmware are skipped instead of breaking the decode.

const broadcastNodeNum = ^uint32(0)

// ToRadio field numbers.
const (
	toRadioPacketField       = 1
	toRadioWantConfigIDField = 3
	toRadioDisconnectField   = 4
)

// FromRadio field numbers.
const (
	fromRadioPacketField         = 2
	fromRadioMyInfoField         = 3
	fromRadioNodeInfoField       = 4
	fromRadioConfigField         = 5
	fromRadioConfigCompleteField = 7
	fromRadioChannelField        = 10
	fromRadioMetadataField       = 13
)

// MeshPacket field numbers. from/to/id/rx_time are fixed32 on the wire.
const (
	packetFromField     = 1
	packetToField       = 2
	packetChannelField  = 3
	packetDecodedField  = 4
	packetIDField       = 6
	packetRxTimeField   = 7
	packetRxSnrField    = 8
	packetWantAckField  = 10
	packetPriorityField = 11
	packetRxRssiField   = 12
)

// Data field numbers.
const (
	dataPortnumField      = 1
	dataPayloadField      = 2
	dataWantResponseField = 3
)

// NodeInfo field numbers.
const (
	nodeInfoNumField           = 1
	nodeInfoUserField          = 2
	nodeInfoSnrField           = 4
	nodeInfoLastHeardField     = 5
	nodeInfoDeviceMetricsField = 6
	nodeInfoChannelField       = 7
	nodeInfoHopsAwayField      = 9
)

// User field numbers.
const (
	userIDField        = 1
	userLongNameField  = 2
	userShortNameField = 3
	userMacaddrField   = 4
	userHwModelField   = 5
	userRoleField      = 7
)

// DeviceMetrics field numbers.
const (
	metricsBatteryLevelField = 1
	metricsVoltageField      = 2
	metricsChannelUtilField  = 3
	metricsAirUtilTxField    = 4
	metricsUptimeField       = 5
)

// Telemetry field numbers.
const (
	telemetryDeviceMetricsField      = 2
	telemetryEnvironmentMetricsField = 3
)

// EnvironmentMetrics field numbers.
const (
	envTemperatureField = 1
)

// MyNodeInfo, DeviceMetadata, Channel, ChannelSettings, Config field numbers.
const (
	myInfoNodeNumField = 1

	metadataFirmwareField = 1
	metadataRoleField     = 7
	metadataHwModelField  = 9

	channelIndexField    = 1
	channelSettingsField = 2
	channelRoleField     = 3

	channelSettingsPskField  = 2
	channelSettingsNameField = 3

	configDeviceField = 1
	configLoraField   = 6

	deviceConfigRoleField = 1

	loraConfigRegionField = 7

	channelRolePrimary = 1
)

// AdminMessage payload variants.
const (
	adminSetChannelField    = 33
	adminRebootSecondsField = 97
)

const (
	portnumTextMessageApp = 1
	portnumAdminApp       = 6
	priorityReliable      = 70
)

type wireField struct {
	num     protowire.Number
	typ     protowire.Type
	varint  uint64
	fixed32 uint32
	bytes   []byte
}

func (f wireField) str() string {
	return string(f.bytes)
}

func (f wireField) float32() float64 {
	return float64(math.Float32frombits(f.fixed32))
}

// u32 reads an integer field regardless of whether the producer used varint
// or fixed32 encoding.
func (f wireField) u32() uint32 {
	if f.typ == protowire.Fixed32Type {
		return f.fixed32
	}

	return uint32(f.varint)
}

func (f wireField) i32() int32 {
	return int32(f.u32())
}

func forEachField(b []byte, fn func(f wireField)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := wireField{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.varint = v
			b = b[n:]
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.fixed32 = v
			f.varint = uint64(v)
			b = b[n:]
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.varint = v
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.bytes = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]

			continue
		}
		fn(f)
	}

	return nil
}

// fromRadioFrame is one decoded FromRadio message. Exactly one variant is
// set per frame; the rest stay nil/zero.
type fromRadioFrame struct {
	configCompleteID uint32

	myNodeNum *uint32
	metadata  fieldtree.Tree
	nodeInfo  fieldtree.Tree
	nodeNum   uint32
	channel   fieldtree.Tree
	config    fieldtree.Tree
	packet    fieldtree.Tree
}

func decodeFromRadio(payload []byte) (fromRadioFrame, error) {
	var frame fromRadioFrame
	err := forEachField(payload, func(f wireField) {
		switch f.num {
		case fromRadioConfigCompleteField:
			frame.configCompleteID = f.u32()
		case fromRadioMyInfoField:
			forEachFieldQuiet(f.bytes, func(inner wireField) {
				if inner.num == myInfoNodeNumField {
					num := inner.u32()
					frame.myNodeNum = &num
				}
			})
		case fromRadioMetadataField:
			frame.metadata = decodeMetadata(f.bytes)
		case fromRadioNodeInfoField:
			frame.nodeInfo, frame.nodeNum = decodeNodeInfo(f.bytes)
		case fromRadioChannelField:
			frame.channel = decodeChannel(f.bytes)
		case fromRadioConfigField:
			frame.config = decodeConfig(f.bytes)
		case fromRadioPacketField:
			frame.packet = decodeMeshPacket(f.bytes)
		}
	})
	if err != nil {
		return fromRadioFrame{}, fmt.Errorf("decode fromradio: %w", err)
	}

	return frame, nil
}

// forEachFieldQuiet drops malformed nested blocks instead of failing the
// whole frame; a bad sub-message is treated the same as an absent one.
func forEachFieldQuiet(b []byte, fn func(f wireField)) {
	_ = forEachField(b, fn)
}

func decodeMetadata(b []byte) fieldtree.Tree {
	tree := fieldtree.Tree{}
	forEachFieldQuiet(b, func(f wireField) {
		switch f.num {
		case metadataFirmwareField:
			if v := f.str(); v != "" {
				tree["firmware_version"] = v
			}
		case metadataRoleField:
			if f.varint != 0 {
				tree["role"] = enumName(roleNames, "ROLE", f.u32())
			}
		case metadataHwModelField:
			if f.varint != 0 {
				tree["hw_model"] = enumName(hardwareModelNames, "HW_MODEL", f.u32())
			}
		}
	})

	return tree
}

func decodeNodeInfo(b []byte) (fieldtree.Tree, uint32) {
	tree := fieldtree.Tree{}
	var num uint32
	forEachFieldQuiet(b, func(f wireField) {
		switch f.num {
		case nodeInfoNumField:
			num = f.u32()
			tree["num"] = num
		case nodeInfoUserField:
			tree["user"] = decodeUser(f.bytes)
		case nodeInfoSnrField:
			if f.fixed32 != 0 {
				tree["snr"] = f.float32()
			}
		case nodeInfoLastHeardField:
			if f.fixed32 != 0 {
				tree["last_heard"] = int64(f.fixed32)
			}
		case nodeInfoDeviceMetricsField:
			tree["device_metrics"] = decodeDeviceMetrics(f.bytes)
		case nodeInfoChannelField:
			if f.varint != 0 {
				tree["channel"] = f.u32()
			}
		case nodeInfoHopsAwayField:
			if f.varint != 0 {
				tree["hops_away"] = f.u32()
			}
		}
	})

	return tree, num
}

func decodeUser(b []byte) fieldtree.Tree {
	tree := fieldtree.Tree{}
	forEachFieldQuiet(b, func(f wireField) {
		switch f.num {
		case userIDField:
			if v := f.str(); v != "" {
				tree["id"] = v
			}
		case userLongNameField:
			if v := strings.TrimSpace(f.str()); v != "" {
				tree["long_name"] = v
			}
		case userShortNameField:
			if v := strings.TrimSpace(f.str()); v != "" {
				tree["short_name"] = v
			}
		case userMacaddrField:
			if mac := formatMacAddr(f.bytes); mac != "" {
				tree["macaddr"] = mac
			}
		case userHwModelField:
			if f.varint != 0 {
				tree["hw_model"] = enumName(hardwareModelNames, "HW_MODEL", f.u32())
			}
		case userRoleField:
			if f.varint != 0 {
				tree["role"] = enumName(roleNames, "ROLE", f.u32())
			}
		}
	})

	return tree
}

func decodeDeviceMetrics(b []byte) fieldtree.Tree {
	tree := fieldtree.Tree{}
	forEachFieldQuiet(b, func(f wireField) {
		switch f.num {
		case metricsBatteryLevelField:
			tree["battery_level"] = float64(f.u32())
		case metricsVoltageField:
			tree["voltage"] = f.float32()
		case metricsChannelUtilField:
			tree["channel_utilization"] = f.float32()
		case metricsAirUtilTxField:
			tree["air_util_tx"] = f.float32()
		case metricsUptimeField:
			tree["uptime"] = int64(f.varint)
		}
	})

	return tree
}

func decodeTelemetry(b []byte) fieldtree.Tree {
	tree := fieldtree.Tree{}
	forEachFieldQuiet(b, func(f wireField) {
		switch f.num {
		case telemetryDeviceMetricsField:
			tree["device_metrics"] = decodeDeviceMetrics(f.bytes)
		case telemetryEnvironmentMetricsField:
			env := fieldtree.Tree{}
			forEachFieldQuiet(f.bytes, func(inner wireField) {
				if inner.num == envTemperatureField && inner.fixed32 != 0 {
					env["temperature"] = inner.float32()
				}
			})
			if len(env) > 0 {
				tree["environment_metrics"] = env
			}
		}
	})

	return tree
}

func decodeChannel(b []byte) fieldtree.Tree {
	tree := fieldtree.Tree{}
	forEachFieldQuiet(b, func(f wireField) {
		switch f.num {
		case channelIndexField:
			tree["index"] = f.i32()
		case channelSettingsField:
			settings := fieldtree.Tree{}
			forEachFieldQuiet(f.bytes, func(inner wireField) {
				switch inner.num {
				case channelSettingsNameField:
					if v := inner.str(); v != "" {
						settings["name"] = v
					}
				case channelSettingsPskField:
					if len(inner.bytes) > 0 {
						settings["psk"] = append([]byte(nil), inner.bytes...)
					}
				}
			})
			tree["settings"] = settings
		case channelRoleField:
			tree["role"] = f.u32()
		}
	})

	return tree
}

func decodeConfig(b []byte) fieldtree.Tree {
	tree := fieldtree.Tree{}
	forEachFieldQuiet(b, func(f wireField) {
		switch f.num {
		case configDeviceField:
			forEachFieldQuiet(f.bytes, func(inner wireField) {
				if inner.num == deviceConfigRoleField && inner.varint != 0 {
					tree["role"] = enumName(roleNames, "ROLE", inner.u32())
				}
			})
		case configLoraField:
			forEachFieldQuiet(f.bytes, func(inner wireField) {
				if inner.num == loraConfigRegionField && inner.varint != 0 {
					tree["region"] = enumName(regionNames, "REGION", inner.u32())
				}
			})
		}
	})

	return tree
}

func decodeMeshPacket(b []byte) fieldtree.Tree {
	tree := fieldtree.Tree{}
	forEachFieldQuiet(b, func(f wireField) {
		switch f.num {
		case packetFromField:
			if v := f.u32(); v != 0 {
				tree["from"] = v
				tree["from_id"] = formatNodeNum(v)
			}
		case packetToField:
			if v := f.u32(); v != 0 {
				tree["to"] = v
			}
		case packetChannelField:
			if f.varint != 0 {
				tree["channel"] = f.u32()
			}
		case packetDecodedField:
			tree["decoded"] = decodeData(f.bytes)
		case packetIDField:
			if v := f.u32(); v != 0 {
				tree["id"] = v
			}
		case packetRxTimeField:
			if f.fixed32 != 0 {
				tree["rx_time"] = int64(f.fixed32)
			}
		case packetRxSnrField:
			if f.fixed32 != 0 {
				tree["rx_snr"] = f.float32()
			}
		case packetRxRssiField:
			if v := f.i32(); v != 0 {
				tree["rx_rssi"] = float64(v)
			}
		}
	})

	return tree
}

func decodeData(b []byte) fieldtree.Tree {
	tree := fieldtree.Tree{}
	var portnum uint32
	var payload []byte
	forEachFieldQuiet(b, func(f wireField) {
		switch f.num {
		case dataPortnumField:
			portnum = f.u32()
			tree["portnum"] = enumName(portNumNames, "PORT", portnum)
		case dataPayloadField:
			payload = append([]byte(nil), f.bytes...)
		}
	})
	if len(payload) > 0 {
		if portnum == portnumTextMessageApp {
			tree["text"] = string(payload)
		} else {
			tree["payload"] = base64.StdEncoding.EncodeToString(payload)
		}
	}

	return tree
}

func encodeWantConfig(id uint32) []byte {
	b := protowire.AppendTag(nil, toRadioWantConfigIDField, protowire.VarintType)

	return protowire.AppendVarint(b, uint64(id))
}

func encodeDisconnect() []byte {
	b := protowire.AppendTag(nil, toRadioDisconnectField, protowire.VarintType)

	return protowire.AppendVarint(b, 1)
}

// encodeTextPacket builds ToRadio{packet: MeshPacket{decoded: Data{...}}}
// carrying a text message. Direct messages request an ack, broadcasts do not.
func encodeTextPacket(packetID, to, channel uint32, text string) []byte {
	data := protowire.AppendTag(nil, dataPortnumField, protowire.VarintType)
	data = protowire.AppendVarint(data, portnumTextMessageApp)
	data = protowire.AppendTag(data, dataPayloadField, protowire.BytesType)
	data = protowire.AppendBytes(data, []byte(text))

	packet := appendPacketHeader(nil, packetID, to, channel)
	packet = protowire.AppendTag(packet, packetDecodedField, protowire.BytesType)
	packet = protowire.AppendBytes(packet, data)
	if to != broadcastNodeNum {
		packet = protowire.AppendTag(packet, packetWantAckField, protowire.VarintType)
		packet = protowire.AppendVarint(packet, 1)
	}

	return wrapToRadioPacket(packet)
}

// encodeAdminPacket wraps an AdminMessage payload for the local node.
func encodeAdminPacket(packetID, to uint32, admin []byte) []byte {
	data := protowire.AppendTag(nil, dataPortnumField, protowire.VarintType)
	data = protowire.AppendVarint(data, portnumAdminApp)
	data = protowire.AppendTag(data, dataPayloadField, protowire.BytesType)
	data = protowire.AppendBytes(data, admin)

	packet := appendPacketHeader(nil, packetID, to, 0)
	packet = protowire.AppendTag(packet, packetDecodedField, protowire.BytesType)
	packet = protowire.AppendBytes(packet, data)
	packet = protowire.AppendTag(packet, packetWantAckField, protowire.VarintType)
	packet = protowire.AppendVarint(packet, 1)
	packet = protowire.AppendTag(packet, packetPriorityField, protowire.VarintType)
	packet = protowire.AppendVarint(packet, priorityReliable)

	return wrapToRadioPacket(packet)
}

func encodeAdminReboot(seconds int32) []byte {
	b := protowire.AppendTag(nil, adminRebootSecondsField, protowire.VarintType)

	return protowire.AppendVarint(b, uint64(uint32(seconds)))
}

// encodeAdminSetChannel rebuilds channel 0 as PRIMARY with the given name,
// carrying over the pre-shared key when one is known.
func encodeAdminSetChannel(name string, psk []byte) []byte {
	settings := []byte{}
	if len(psk) > 0 {
		settings = protowire.AppendTag(settings, channelSettingsPskField, protowire.BytesType)
		settings = protowire.AppendBytes(settings, psk)
	}
	settings = protowire.AppendTag(settings, channelSettingsNameField, protowire.BytesType)
	settings = protowire.AppendBytes(settings, []byte(name))

	channel := protowire.AppendTag(nil, channelSettingsField, protowire.BytesType)
	channel = protowire.AppendBytes(channel, settings)
	channel = protowire.AppendTag(channel, channelRoleField, protowire.VarintType)
	channel = protowire.AppendVarint(channel, channelRolePrimary)

	b := protowire.AppendTag(nil, adminSetChannelField, protowire.BytesType)

	return protowire.AppendBytes(b, channel)
}

func appendPacketHeader(b []byte, packetID, to, channel uint32) []byte {
	b = protowire.AppendTag(b, packetToField, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, to)
	if channel != 0 {
		b = protowire.AppendTag(b, packetChannelField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(channel))
	}
	b = protowire.AppendTag(b, packetIDField, protowire.Fixed32Type)

	return protowire.AppendFixed32(b, packetID)
}

func wrapToRadioPacket(packet []byte) []byte {
	b := protowire.AppendTag(nil, toRadioPacketField, protowire.BytesType)

	return protowire.AppendBytes(b, packet)
}

func formatNodeNum(num uint32) string {
	if num == 0 {
		return "unknown"
	}

	return fmt.Sprintf("!%08x", num)
}

func formatMacAddr(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	parts := make([]string, len(raw))
	for i, b := range raw {
		parts[i] = fmt.Sprintf("%02x", b)
	}

	return strings.Join(parts, ":")
}

func enumName(table map[uint32]string, prefix string, v uint32) string {
	if name, ok := table[v]; ok {
		return name
	}

	return fmt.Sprintf("%s_%d", prefix, v)
}

var portNumNames = map[uint32]string{
	0:  "UNKNOWN_APP",
	1:  "TEXT_MESSAGE_APP",
	2:  "REMOTE_HARDWARE_APP",
	3:  "POSITION_APP",
	4:  "NODEINFO_APP",
	5:  "ROUTING_APP",
	6:  "ADMIN_APP",
	7:  "TEXT_MESSAGE_COMPRESSED_APP",
	8:  "WAYPOINT_APP",
	9:  "AUDIO_APP",
	10: "DETECTION_SENSOR_APP",
	11: "ALERT_APP",
	32: "REPLY_APP",
	33: "IP_TUNNEL_APP",
	34: "PAXCOUNTER_APP",
	64: "SERIAL_APP",
	65: "STORE_FORWARD_APP",
	66: "RANGE_TEST_APP",
	67: "TELEMETRY_APP",
	68: "ZPS_APP",
	69: "SIMULATOR_APP",
	70: "TRACEROUTE_APP",
	71: "NEIGHBORINFO_APP",
	72: "ATAK_PLUGIN",
	73: "MAP_REPORT_APP",
	74: "POWERSTRESS_APP",
}

var roleNames = map[uint32]string{
	0:  "CLIENT",
	1:  "CLIENT_MUTE",
	2:  "ROUTER",
	3:  "ROUTER_CLIENT",
	4:  "REPEATER",
	5:  "TRACKER",
	6:  "SENSOR",
	7:  "TAK",
	8:  "CLIENT_HIDDEN",
	9:  "LOST_AND_FOUND",
	10: "TAK_TRACKER",
	11: "ROUTER_LATE",
}

var regionNames = map[uint32]string{
	0:  "UNSET",
	1:  "US",
	2:  "EU_433",
	3:  "EU_868",
	4:  "CN",
	5:  "JP",
	6:  "ANZ",
	7:  "KR",
	8:  "TW",
	9:  "RU",
	10: "IN",
	11: "NZ_865",
	12: "TH",
	13: "LORA_24",
	14: "UA_433",
	15: "UA_868",
	16: "MY_433",
	17: "MY_919",
	18: "SG_923",
}

var hardwareModelNames = map[uint32]string{
	0:  "UNSET",
	1:  "TLORA_V2",
	2:  "TLORA_V1",
	3:  "TLORA_V2_1_1P6",
	4:  "TBEAM",
	5:  "HELTEC_V2_0",
	6:  "TBEAM_V0P7",
	7:  "T_ECHO",
	8:  "TLORA_V1_1P3",
	9:  "RAK4631",
	10: "HELTEC_V2_1",
	11: "HELTEC_V1",
	12: "LILYGO_TBEAM_S3_CORE",
	13: "RAK11200",
	14: "NANO_G1",
	15: "TLORA_V2_1_1P8",
	16: "TLORA_T3_S3",
	17: "NANO_G1_EXPLORER",
	18: "NANO_G2_ULTRA",
	25: "STATION_G1",
	26: "RAK11310",
	29: "CANARYONE",
	30: "RP2040_LORA",
	31: "STATION_G2",
	37: "PORTDUINO",
	39: "DIY_V1",
	42: "M5STACK",
	43: "HELTEC_V3",
	44: "HELTEC_WSL_V3",
	47: "RPI_PICO",
	48: "HELTEC_WIRELESS_TRACKER",
	49: "HELTEC_WIRELESS_PAPER",
	50: "T_DECK",
	51: "T_WATCH_S3",
	52: "PICOMPUTER_S3",
	53: "HELTEC_HT62",
}
