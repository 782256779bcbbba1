package device

import (
	"context"
	"fmt"
	"strings"

	"meshmon/internal/domain"
	"meshmon/internal/radio"
)

// Operation names reported by unsupported-operation failures.
const (
	opSendMessage = "send message"
	opReboot      = "reboot"
	opSetChannel  = "set channel"
)

// SendMessage transmits a text message over the connection. An empty target
// broadcasts on the primary channel. Blank message text is rejected before
// any transport is opened.
func (m *Manager) SendMessage(ctx context.Context, spec domain.ConnectionSpec, message, target string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: message text is empty", domain.ErrInvalidArgument)
	}

	return m.WithClient(ctx, spec, func(client radio.Client, _ Resolved) error {
		sender, ok := client.(radio.TextSender)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnsupportedOperation, opSendMessage)
		}

		return sender.SendText(ctx, message, strings.TrimSpace(target))
	})
}

// Reboot restarts the radio on the other end of the connection.
func (m *Manager) Reboot(ctx context.Context, spec domain.ConnectionSpec) error {
	return m.WithClient(ctx, spec, func(client radio.Client, _ Resolved) error {
		rebooter, ok := client.(radio.Rebooter)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnsupportedOperation, opReboot)
		}

		return rebooter.Reboot(ctx)
	})
}

// SetChannel renames the primary channel. Blank names are rejected before
// any transport is opened.
func (m *Manager) SetChannel(ctx context.Context, spec domain.ConnectionSpec, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: channel name is empty", domain.ErrInvalidArgument)
	}

	return m.WithClient(ctx, spec, func(client radio.Client, _ Resolved) error {
		setter, ok := client.(radio.ChannelSetter)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnsupportedOperation, opSetChannel)
		}

		return setter.SetPrimaryChannel(ctx, name)
	})
}
