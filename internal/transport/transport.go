package transport

import "context"

// Transport is one framed link to a radio. Implementations are configured at
// construction and stay bound to the same physical target for their lifetime;
// reconnecting to a different port or host means building a new transport.
type Transport interface {
	Name() string
	// Target is the concrete address the transport is bound to: the serial
	// device path, or host:port for tcp.
	Target() string
	Connect(ctx context.Context) error
	Close() error
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, payload []byte) error
}
