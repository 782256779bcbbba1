// Package radio speaks the Meshtastic device protocol over a framed
// transport. The exported surface is deliberately narrow: a Client hands out
// the accumulated device state as weakly typed field trees, and optional
// command capabilities are modeled as separate interfaces so callers can
// probe support with a type assertion instead of poking at attributes.
package radio

import (
	"context"

	"meshmon/internal/fieldtree"
)

// Client is the read side of an open device session.
//
// MyInfo carries the device-info block (node number, firmware, hardware,
// canonical id, nested user block, device metrics). RadioConfig carries the
// radio preferences block. Nodes maps known peer node numbers to their
// blocks. Channels lists the configured channel blocks in device order.
// LastReceived is the most recent mesh packet block seen on the session.
//
// Every tree may be nil or partially populated; consumers are expected to
// treat all lookups as optional.
type Client interface {
	MyInfo() fieldtree.Tree
	RadioConfig() fieldtree.Tree
	Nodes() map[uint32]fieldtree.Tree
	Channels() []fieldtree.Tree
	LastReceived() fieldtree.Tree
	Close() error
}

// TextSender is implemented by clients that can transmit text messages.
type TextSender interface {
	// SendText queues a text message. An empty target broadcasts on the
	// primary channel, otherwise target is a "!hex" node id.
	SendText(ctx context.Context, text, target string) error
}

// Rebooter is implemented by clients that can reboot the connected node.
type Rebooter interface {
	Reboot(ctx context.Context) error
}

// ChannelSetter is implemented by clients that can rename the primary
// channel of the connected node.
type ChannelSetter interface {
	SetPrimaryChannel(ctx context.Context, name string) error
}
