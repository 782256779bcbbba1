package device

import (
	"context"
	"errors"
	"testing"

	"meshmon/internal/domain"
	"meshmon/internal/radio"
	"meshmon/internal/radio/fake"
	"meshmon/internal/transport"
)

func TestSendMessageRejectsBlankText(t *testing.T) {
	opened := false
	m := testManager(func(ctx context.Context, tr transport.Transport) (radio.Client, error) {
		opened = true

		return &fake.CommandClient{}, nil
	})

	for _, message := range []string{"", "   ", "\t\n"} {
		err := m.SendMessage(context.Background(), tcpSpec("10.0.0.5", 4403), message, "")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("message %q: err = %v, want ErrInvalidArgument", message, err)
		}
	}
	if opened {
		t.Fatalf("blank text must be rejected before opening a transport")
	}
}

func TestSetChannelRejectsBlankName(t *testing.T) {
	opened := false
	m := testManager(func(ctx context.Context, tr transport.Transport) (radio.Client, error) {
		opened = true

		return &fake.CommandClient{}, nil
	})

	err := m.SetChannel(context.Background(), tcpSpec("10.0.0.5", 4403), "  ")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	if opened {
		t.Fatalf("blank name must be rejected before opening a transport")
	}
}

func TestCommandsUnsupportedByPlainClient(t *testing.T) {
	client := &fake.Client{}
	m := testManager(openClient(client))
	spec := tcpSpec("10.0.0.5", 4403)

	if err := m.SendMessage(context.Background(), spec, "hi", ""); !errors.Is(err, domain.ErrUnsupportedOperation) {
		t.Fatalf("SendMessage err = %v, want ErrUnsupportedOperation", err)
	}
	if err := m.Reboot(context.Background(), spec); !errors.Is(err, domain.ErrUnsupportedOperation) {
		t.Fatalf("Reboot err = %v, want ErrUnsupportedOperation", err)
	}
	if err := m.SetChannel(context.Background(), spec, "LongFast"); !errors.Is(err, domain.ErrUnsupportedOperation) {
		t.Fatalf("SetChannel err = %v, want ErrUnsupportedOperation", err)
	}
	if client.Closed != 3 {
		t.Fatalf("client closed %d times, want once per command", client.Closed)
	}
}

func TestCommandsDispatch(t *testing.T) {
	client := &fake.CommandClient{}
	m := testManager(openClient(client))
	spec := tcpSpec("10.0.0.5", 4403)

	if err := m.SendMessage(context.Background(), spec, "hello", " !a1b2c3d4 "); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(client.Sent) != 1 || client.Sent[0].Text != "hello" || client.Sent[0].Target != "!a1b2c3d4" {
		t.Fatalf("sent = %+v", client.Sent)
	}

	if err := m.Reboot(context.Background(), spec); err != nil {
		t.Fatalf("Reboot: %v", err)
	}
	if client.Reboots != 1 {
		t.Fatalf("reboots = %d", client.Reboots)
	}

	if err := m.SetChannel(context.Background(), spec, " NewName "); err != nil {
		t.Fatalf("SetChannel: %v", err)
	}
	if len(client.ChannelNames) != 1 || client.ChannelNames[0] != "NewName" {
		t.Fatalf("channel names = %v", client.ChannelNames)
	}

	if client.Closed != 3 {
		t.Fatalf("client closed %d times, want once per command", client.Closed)
	}
}

func TestCommandErrorPropagates(t *testing.T) {
	client := &fake.CommandClient{SendErr: errors.New("radio rejected packet")}
	m := testManager(openClient(client))

	err := m.SendMessage(context.Background(), tcpSpec("10.0.0.5", 4403), "hi", "")
	if err == nil || err.Error() != "radio rejected packet" {
		t.Fatalf("err = %v", err)
	}
	if client.Closed != 1 {
		t.Fatalf("client closed %d times, want exactly once", client.Closed)
	}
}
