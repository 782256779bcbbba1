// Package fake provides in-memory radio clients for tests. The base Client
// only serves state; CommandClient adds the command capabilities so tests
// can cover both supporting and non-supporting devices.
package fake

import (
	"context"

	"meshmon/internal/fieldtree"
	"meshmon/internal/radio"
)

// Client serves canned device state and records Close calls.
type Client struct {
	Info        fieldtree.Tree
	Config      fieldtree.Tree
	NodeDB      map[uint32]fieldtree.Tree
	ChannelList []fieldtree.Tree
	LastPacket  fieldtree.Tree

	CloseErr error
	Closed   int
}

var _ radio.Client = (*Client)(nil)

func (c *Client) MyInfo() fieldtree.Tree           { return c.Info }
func (c *Client) RadioConfig() fieldtree.Tree      { return c.Config }
func (c *Client) Nodes() map[uint32]fieldtree.Tree { return c.NodeDB }
func (c *Client) Channels() []fieldtree.Tree       { return c.ChannelList }
func (c *Client) LastReceived() fieldtree.Tree     { return c.LastPacket }

func (c *Client) Close() error {
	c.Closed++

	return c.CloseErr
}

// SentText is one recorded SendText invocation.
type SentText struct {
	Text   string
	Target string
}

// CommandClient is a Client that also supports every command capability.
type CommandClient struct {
	Client

	SendErr       error
	RebootErr     error
	SetChannelErr error

	Sent         []SentText
	Reboots      int
	ChannelNames []string
}

var (
	_ radio.Client        = (*CommandClient)(nil)
	_ radio.TextSender    = (*CommandClient)(nil)
	_ radio.Rebooter      = (*CommandClient)(nil)
	_ radio.ChannelSetter = (*CommandClient)(nil)
)

func (c *CommandClient) SendText(ctx context.Context, text, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.SendErr != nil {
		return c.SendErr
	}
	c.Sent = append(c.Sent, SentText{Text: text, Target: target})

	return nil
}

func (c *CommandClient) Reboot(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.RebootErr != nil {
		return c.RebootErr
	}
	c.Reboots++

	return nil
}

func (c *CommandClient) SetPrimaryChannel(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.SetChannelErr != nil {
		return c.SetChannelErr
	}
	c.ChannelNames = append(c.ChannelNames, name)

	return nil
}
