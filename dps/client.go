package dps

import (
	"context"
	"fmt"
	"io"

	"github.com/opendps/godps/protocol"
	"github.com/opendps/godps/uframe"
)

// Client talks to an OpenDPS device over a byte stream. The device must
// implement io.ReadWriter; serial ports, UDP wrappers and in-memory pipes
// all work. Communication is strictly one frame in flight.
//
// Client is not safe for concurrent use.
type Client struct {
	device io.ReadWriter
	reader *uframe.Reader
	config Config
}

// New creates a Client with the given device and options.
//
//	conn, _ := transport.Dial("/dev/ttyUSB0")
//	client := dps.New(conn, dps.WithLogger(log))
func New(device io.ReadWriter, opts ...Option) *Client {
	if device == nil {
		panic("device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{
		device: device,
		reader: uframe.NewReader(device),
		config: cfg,
	}
}

// Ping checks that the device is online.
func (c *Client) Ping(ctx context.Context) error {
	frame, err := protocol.CreatePing()
	if err != nil {
		return err
	}
	_, err = c.ack(ctx, frame, protocol.CmdPing)
	return err
}

// SetVoltage sets the output voltage in millivolts. The device reports
// failure if the voltage is outside what it can provide.
func (c *Client) SetVoltage(ctx context.Context, voutMV uint16) error {
	frame, err := protocol.CreateVOut(voutMV)
	if err != nil {
		return err
	}
	_, err = c.ack(ctx, frame, protocol.CmdSetVOut)
	return err
}

// SetCurrentLimit sets the maximum output current in milliamperes.
func (c *Client) SetCurrentLimit(ctx context.Context, ilimitMA uint16) error {
	frame, err := protocol.CreateILimit(ilimitMA)
	if err != nil {
		return err
	}
	_, err = c.ack(ctx, frame, protocol.CmdSetILimit)
	return err
}

// PowerEnable switches the power output on or off.
func (c *Client) PowerEnable(ctx context.Context, enable bool) error {
	frame, err := protocol.CreatePowerEnable(enable)
	if err != nil {
		return err
	}
	_, err = c.ack(ctx, frame, protocol.CmdPowerEnable)
	return err
}

// Lock locks or unlocks the front panel controls.
func (c *Client) Lock(ctx context.Context, locked bool) error {
	frame, err := protocol.CreateLock(locked)
	if err != nil {
		return err
	}
	_, err = c.ack(ctx, frame, protocol.CmdLock)
	return err
}

// SetWifiStatus sets the wifi indicator on the device screen.
func (c *Client) SetWifiStatus(ctx context.Context, status protocol.WifiStatus) error {
	frame, err := protocol.CreateWifiStatus(status)
	if err != nil {
		return err
	}
	_, err = c.ack(ctx, frame, protocol.CmdWifiStatus)
	return err
}

// Status reads the device measurements. A garbled response yields an
// error, never partial data.
func (c *Client) Status(ctx context.Context) (*protocol.Status, error) {
	frame, err := protocol.CreateStatus()
	if err != nil {
		return nil, err
	}
	payload, err := c.ack(ctx, frame, protocol.CmdStatus)
	if err != nil {
		return nil, err
	}
	return protocol.UnpackStatusResponse(payload)
}

// ack sends a command and checks the generic success indicator of its
// response. Returns the full response payload for commands carrying more.
func (c *Client) ack(ctx context.Context, frame []byte, cmd protocol.Command) ([]byte, error) {
	payload, err := c.request(ctx, frame, cmd)
	if err != nil {
		return nil, err
	}
	_, success, err := protocol.UnpackResponse(payload)
	if err != nil {
		return nil, err
	}
	if !success {
		return nil, &CommandFailedError{Command: cmd}
	}
	return payload, nil
}

// request transmits one frame and blocks for the matching response.
// Device-initiated frames (over-current events) arriving in between are
// dispatched to their callback and the wait continues.
func (c *Client) request(ctx context.Context, frame []byte, cmd protocol.Command) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if l := c.config.Logger; l != nil {
		l.Debug().Str("command", cmd.String()).Int("frame_bytes", len(frame)).Msg("TX")
	}
	if _, err := c.device.Write(frame); err != nil {
		return nil, fmt.Errorf("write command: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := c.reader.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if l := c.config.Logger; l != nil {
			l.Debug().Int("payload_bytes", len(raw)).Msg("RX")
		}

		got, isResponse, payload, err := protocol.ParseFrame(raw)
		if err != nil {
			return nil, err
		}

		if !isResponse {
			if got == protocol.CmdOCPEvent {
				c.dispatchOCP(payload)
				continue
			}
			return nil, &protocol.CommandMismatchError{Want: cmd, Got: raw[0]}
		}
		if got != cmd {
			return nil, &protocol.CommandMismatchError{Want: cmd, Got: raw[0]}
		}
		return payload, nil
	}
}

func (c *Client) dispatchOCP(payload []byte) {
	iCut, err := protocol.UnpackOCP(payload)
	if err != nil {
		if l := c.config.Logger; l != nil {
			l.Debug().Err(err).Msg("Discarding malformed OCP event")
		}
		return
	}
	if l := c.config.Logger; l != nil {
		l.Info().Int("i_cut_ma", int(iCut)).Msg("Over-current protection tripped")
	}
	if c.config.OCPCallback != nil {
		c.config.OCPCallback(iCut)
	}
}
