package radio

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"meshmon/internal/fieldtree"
	"meshmon/internal/transport"
)

const (
	// DefaultHandshakeTimeout bounds the configuration download when the
	// caller's context carries no deadline of its own.
	DefaultHandshakeTimeout = 25 * time.Second

	disconnectTimeout  = time.Second
	rebootDelaySeconds = 10
)

// Session is one open device session over a framed transport. Connect runs
// the want-config handshake and accumulates everything the radio streams
// back (my-info, metadata, node database, channels, live packets); the
// accumulated state is then served through the Client interface until Close.
type Session struct {
	tr     transport.Transport
	logger *slog.Logger

	packetID atomic.Uint32

	mu           sync.RWMutex
	myNodeNum    uint32
	myInfo       fieldtree.Tree
	radioConfig  fieldtree.Tree
	nodes        map[uint32]fieldtree.Tree
	channels     []fieldtree.Tree
	lastReceived fieldtree.Tree

	closeOnce sync.Once
	closeErr  error
}

// NewSession prepares a session without touching the transport yet.
func NewSession(tr transport.Transport) (*Session, error) {
	var seedRaw [4]byte
	if _, err := rand.Read(seedRaw[:]); err != nil {
		return nil, fmt.Errorf("seed packet id: %w", err)
	}

	s := &Session{
		tr:     tr,
		logger: slog.With("component", "radio", "transport", tr.Name(), "target", tr.Target()),
		nodes:  map[uint32]fieldtree.Tree{},
		myInfo: fieldtree.Tree{},
	}
	s.packetID.Store(binary.BigEndian.Uint32(seedRaw[:]))

	return s, nil
}

// Connect opens the transport and performs the configuration handshake.
// On failure the transport is closed and the session is unusable.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.tr.Connect(ctx); err != nil {
		s.markClosed()

		return err
	}
	if err := s.handshake(ctx); err != nil {
		s.closeTransport()

		return err
	}

	return nil
}

func (s *Session) handshake(ctx context.Context) error {
	want := s.nextNonZeroID()
	if err := s.tr.WriteFrame(ctx, encodeWantConfig(want)); err != nil {
		return fmt.Errorf("send want config: %w", err)
	}

	hctx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, DefaultHandshakeTimeout)
		defer cancel()
	}

	frames := 0
	for {
		payload, err := s.tr.ReadFrame(hctx)
		if err != nil {
			return fmt.Errorf("read config stream: %w", err)
		}
		frame, err := decodeFromRadio(payload)
		if err != nil {
			s.logger.Debug("skipping undecodable frame", "error", err)

			continue
		}
		frames++
		s.apply(frame)
		if frame.configCompleteID != 0 && frame.configCompleteID == want {
			s.logger.Debug("config download complete", "frames", frames)

			return nil
		}
	}
}

// apply folds one decoded frame into the accumulated device state.
func (s *Session) apply(frame fromRadioFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if frame.myNodeNum != nil {
		s.myNodeNum = *frame.myNodeNum
		s.myInfo["my_node_num"] = *frame.myNodeNum
	}
	if frame.metadata != nil {
		s.applyMetadata(frame.metadata)
	}
	if frame.nodeInfo != nil && frame.nodeNum != 0 {
		s.applyNodeInfo(frame.nodeNum, frame.nodeInfo)
	}
	if frame.channel != nil {
		s.applyChannel(frame.channel)
	}
	if frame.config != nil {
		s.applyConfig(frame.config)
	}
	if frame.packet != nil {
		s.applyPacket(frame.packet)
	}
}

func (s *Session) applyMetadata(metadata fieldtree.Tree) {
	if v, ok := metadata.Str("firmware_version"); ok {
		s.myInfo["firmware_version"] = v
	}
	if v, ok := metadata.Str("hw_model"); ok {
		s.myInfo["hw_model"] = v
	}
	if v, ok := metadata.Str("role"); ok {
		s.nodeInfoTree()["role"] = v
	}
}

func (s *Session) applyNodeInfo(num uint32, info fieldtree.Tree) {
	existing := s.nodes[num]
	s.nodes[num] = mergeTrees(existing, info)

	if s.myNodeNum == 0 || num != s.myNodeNum {
		return
	}

	// The radio's own node entry feeds the device-info block.
	if user := info.Sub("user"); user != nil {
		s.nodeInfoTree()["user"] = user
		if id, ok := user.Str("id"); ok {
			s.myInfo["my_node_id"] = id
		}
		if mac, ok := user.Str("macaddr"); ok {
			s.bleTree()["macaddr"] = mac
		}
		if _, ok := s.myInfo.Str("hw_model"); !ok {
			if model, ok := user.Str("hw_model"); ok {
				s.myInfo["hw_model"] = model
			}
		}
	}
	if metrics := info.Sub("device_metrics"); metrics != nil {
		s.myInfo["device_metrics"] = mergeTrees(s.myInfo.Sub("device_metrics"), metrics)
		if v, ok := metrics.Float("air_util_tx"); ok {
			s.nodeMetricsTree()["air_util_tx"] = v
		}
	}
	if v, ok := info.Float("snr"); ok {
		s.nodeMetricsTree()["snr"] = v
	}
}

func (s *Session) applyChannel(channel fieldtree.Tree) {
	role, _ := channel.Int("role")
	if role == 0 {
		return // disabled slot
	}
	index, _ := channel.Int("index")
	for i, existing := range s.channels {
		if got, _ := existing.Int("index"); got == index {
			s.channels[i] = channel

			return
		}
	}
	s.channels = append(s.channels, channel)
	sort.SliceStable(s.channels, func(i, j int) bool {
		a, _ := s.channels[i].Int("index")
		b, _ := s.channels[j].Int("index")

		return a < b
	})
}

func (s *Session) applyConfig(config fieldtree.Tree) {
	if s.radioConfig == nil {
		s.radioConfig = fieldtree.Tree{}
	}
	prefs := s.radioConfig.Sub("preferences")
	if prefs == nil {
		prefs = fieldtree.Tree{}
		s.radioConfig["preferences"] = prefs
	}
	if v, ok := config.Str("region"); ok {
		prefs["region"] = v
	}
	if v, ok := config.Str("role"); ok {
		prefs["role"] = v
	}
}

func (s *Session) applyPacket(packet fieldtree.Tree) {
	s.lastReceived = packet

	from, ok := packet.Uint32("from")
	if !ok || from == 0 {
		return
	}
	node := s.nodes[from]
	if node == nil {
		node = fieldtree.Tree{}
		s.nodes[from] = node
	}
	if v, ok := packet.Float("rx_rssi"); ok {
		node["rx_rssi"] = v
	}
	if v, ok := packet.Float("rx_snr"); ok {
		node["rx_snr"] = v
	}

	decoded := packet.Sub("decoded")
	if port, _ := decoded.Str("portnum"); port == "TELEMETRY_APP" {
		s.applyTelemetryPayload(from, decoded)
	}
}

func (s *Session) applyTelemetryPayload(from uint32, decoded fieldtree.Tree) {
	encoded, ok := decoded.Str("payload")
	if !ok {
		return
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return
	}
	telemetry := decodeTelemetry(raw)

	metrics := telemetry.Sub("device_metrics")
	if env := telemetry.Sub("environment_metrics"); env != nil {
		if v, ok := env.Float("temperature"); ok {
			if metrics == nil {
				metrics = fieldtree.Tree{}
			}
			metrics["temperature"] = v
		}
	}
	if metrics == nil {
		return
	}

	node := s.nodes[from]
	s.nodes[from] = mergeTrees(node, fieldtree.Tree{"device_metrics": metrics})

	if s.myNodeNum != 0 && from == s.myNodeNum {
		s.myInfo["device_metrics"] = mergeTrees(s.myInfo.Sub("device_metrics"), metrics)
		if v, ok := metrics.Float("air_util_tx"); ok {
			s.nodeMetricsTree()["air_util_tx"] = v
		}
	}
}

func (s *Session) nodeInfoTree() fieldtree.Tree {
	return s.subTree(s.myInfo, "node_info")
}

func (s *Session) bleTree() fieldtree.Tree {
	return s.subTree(s.myInfo, "ble")
}

func (s *Session) nodeMetricsTree() fieldtree.Tree {
	return s.subTree(s.myInfo, "node_metrics")
}

func (s *Session) subTree(parent fieldtree.Tree, key string) fieldtree.Tree {
	if sub := parent.Sub(key); sub != nil {
		return sub
	}
	sub := fieldtree.Tree{}
	parent[key] = sub

	return sub
}

// mergeTrees overlays src onto dst, recursing into shared sub-blocks.
// Packet-derived extras on dst survive a fresh node-info snapshot.
func mergeTrees(dst, src fieldtree.Tree) fieldtree.Tree {
	if dst == nil {
		dst = fieldtree.Tree{}
	}
	for key, value := range src {
		if sub, ok := value.(fieldtree.Tree); ok {
			dst[key] = mergeTrees(dst.Sub(key), sub)

			continue
		}
		dst[key] = value
	}

	return dst
}

func (s *Session) MyInfo() fieldtree.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.myInfo
}

func (s *Session) RadioConfig() fieldtree.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.radioConfig
}

func (s *Session) Nodes() map[uint32]fieldtree.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make(map[uint32]fieldtree.Tree, len(s.nodes))
	for num, node := range s.nodes {
		nodes[num] = node
	}

	return nodes
}

func (s *Session) Channels() []fieldtree.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]fieldtree.Tree(nil), s.channels...)
}

func (s *Session) LastReceived() fieldtree.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastReceived
}

// SendText queues a text message. Empty target broadcasts on the primary
// channel; otherwise target names a node by "!hex", 0x-prefixed or decimal
// number.
func (s *Session) SendText(ctx context.Context, text, target string) error {
	to := broadcastNodeNum
	if strings.TrimSpace(target) != "" {
		num, err := parseNodeNum(target)
		if err != nil {
			return fmt.Errorf("parse target %q: %w", target, err)
		}
		to = num
	}

	payload := encodeTextPacket(s.nextNonZeroID(), to, 0, text)
	if err := s.tr.WriteFrame(ctx, payload); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	s.logger.Info("text message queued", "to", formatNodeNum(to), "len", len(text))

	return nil
}

// Reboot asks the connected node to restart after a short delay.
func (s *Session) Reboot(ctx context.Context) error {
	to := s.localNodeNum()
	if to == 0 {
		return fmt.Errorf("reboot: local node number unknown")
	}

	payload := encodeAdminPacket(s.nextNonZeroID(), to, encodeAdminReboot(rebootDelaySeconds))
	if err := s.tr.WriteFrame(ctx, payload); err != nil {
		return fmt.Errorf("send reboot: %w", err)
	}
	s.logger.Info("reboot requested", "node", formatNodeNum(to), "delay_s", rebootDelaySeconds)

	return nil
}

// SetPrimaryChannel renames the primary channel, keeping its current
// pre-shared key when the handshake reported one.
func (s *Session) SetPrimaryChannel(ctx context.Context, name string) error {
	to := s.localNodeNum()
	if to == 0 {
		return fmt.Errorf("set channel: local node number unknown")
	}

	var psk []byte
	s.mu.RLock()
	for _, channel := range s.channels {
		if index, _ := channel.Int("index"); index == 0 {
			if raw, ok := channel.Sub("settings")["psk"].([]byte); ok {
				psk = raw
			}

			break
		}
	}
	s.mu.RUnlock()

	payload := encodeAdminPacket(s.nextNonZeroID(), to, encodeAdminSetChannel(name, psk))
	if err := s.tr.WriteFrame(ctx, payload); err != nil {
		return fmt.Errorf("send set channel: %w", err)
	}
	s.logger.Info("primary channel update requested", "name", name)

	return nil
}

// Close tears the session down: a best-effort disconnect frame, then the
// transport. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		if err := s.tr.WriteFrame(ctx, encodeDisconnect()); err != nil {
			s.logger.Debug("disconnect frame failed", "error", err)
		}
		s.closeErr = s.tr.Close()
	})

	return s.closeErr
}

func (s *Session) closeTransport() {
	s.closeOnce.Do(func() {
		s.closeErr = s.tr.Close()
	})
}

func (s *Session) markClosed() {
	s.closeOnce.Do(func() {})
}

func (s *Session) localNodeNum() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.myNodeNum
}

func (s *Session) nextNonZeroID() uint32 {
	for {
		id := s.packetID.Add(1)
		if id != 0 {
			return id
		}
	}
}

func parseNodeNum(raw string) (uint32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("node id is empty")
	}
	if strings.HasPrefix(raw, "!") {
		v, err := strconv.ParseUint(strings.TrimPrefix(raw, "!"), 16, 32)
		if err != nil {
			return 0, err
		}

		return uint32(v), nil
	}
	if strings.HasPrefix(strings.ToLower(raw), "0x") {
		v, err := strconv.ParseUint(raw, 0, 32)
		if err != nil {
			return 0, err
		}

		return uint32(v), nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}

	return uint32(v), nil
}
