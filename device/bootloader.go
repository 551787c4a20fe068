package device

import (
	"context"
	"fmt"
	"io"

	"github.com/opendps/godps/bootcom"
	"github.com/opendps/godps/protocol"
	"github.com/opendps/godps/uframe"
)

// State is the upgrade session phase.
type State int

const (
	// StateIdle: no session; waiting for upgrade_start
	StateIdle State = iota

	// StateTransferring: chunks are being written to flash
	StateTransferring

	// StateVerifying: final chunk received, judging the image CRC
	StateVerifying

	// StateSuccess: image verified; the device boots the application
	StateSuccess

	// StateFailed: session terminated by an error
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTransferring:
		return "transferring"
	case StateVerifying:
		return "verifying"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// session is the live transfer state. It exists only between upgrade_start
// and the final chunk; everything needed to create it comes off the wire
// or out of the boot-reason store, never from pre-reboot memory.
type session struct {
	chunkSize uint16
	crc       uint16
	written   int
	crcAcc    uint16
}

// Bootloader is the bootloader-side upgrade handshake state machine. It
// consumes deframed payloads and produces complete response frames; the
// caller moves bytes.
type Bootloader struct {
	store  bootcom.Store
	flash  Flash
	config Config

	state     State
	reason    protocol.UpgradeReason
	record    *bootcom.Record
	recordBad bool
	session   *session
}

// NewBootloader creates the state machine and derives the boot reason from
// the store: a still-set in-progress flag means the previous upgrade never
// finished; an upgrade record means the application requested this boot; a
// record that fails to decode is remembered and reported as a bootcom
// error on the handshake.
func NewBootloader(store bootcom.Store, flash Flash, opts ...Option) *Bootloader {
	if store == nil {
		panic("store cannot be nil")
	}
	if flash == nil {
		panic("flash cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Bootloader{
		store:  store,
		flash:  flash,
		config: cfg,
		state:  StateIdle,
		reason: cfg.Reason,
	}

	if raw, ok := store.Get(bootcom.KeyUpgrade); ok {
		rec, err := bootcom.DecodeRecord(raw)
		if err != nil {
			b.recordBad = true
		} else {
			b.record = &rec
			b.reason = protocol.ReasonBootcom
		}
	}
	// the flag outranks the record: an interrupted transfer must be
	// reported even when the stale record is still present
	if _, ok := store.Get(bootcom.KeyInProgress); ok {
		b.reason = protocol.ReasonUnfinishedUpgrade
	}

	return b
}

// State returns the current session phase.
func (b *Bootloader) State() State {
	return b.state
}

// Reason returns why the device entered bootloader mode.
func (b *Bootloader) Reason() protocol.UpgradeReason {
	return b.reason
}

// Start produces the frame the bootloader sends on its own initiative
// right after boot. When the application parked an upgrade record before
// restarting, this is the upgrade_start response the host is already
// waiting for; a corrupt record is answered with a bootcom error. With
// nothing in the store the bootloader stays quiet and waits for the host,
// and Start returns nil.
func (b *Bootloader) Start() ([]byte, error) {
	if b.recordBad {
		b.state = StateFailed
		return protocol.CreateUpgradeStartResponse(protocol.UpgradeBootcomError, 0, b.reason)
	}
	if b.record != nil {
		return b.beginSession(b.record.ChunkSize, b.record.CRC)
	}
	return nil, nil
}

// HandleFrame processes one deframed payload and returns the response
// frame to transmit, if any. Structurally broken payloads are returned as
// errors and answered with nothing; session-level violations are answered
// with an upgrade status and terminate the session, never the device.
func (b *Bootloader) HandleFrame(raw []byte) ([]byte, error) {
	cmd, isResponse, payload, err := protocol.ParseFrame(raw)
	if err != nil {
		return nil, err
	}
	if isResponse {
		return nil, fmt.Errorf("unexpected response frame for %s", cmd)
	}

	switch cmd {
	case protocol.CmdUpgradeStart:
		if b.state == StateTransferring {
			return b.protocolError()
		}
		chunkSize, crc, err := protocol.UnpackUpgradeStart(payload)
		if err != nil {
			return nil, err
		}
		return b.beginSession(chunkSize, crc)

	case protocol.CmdUpgradeData:
		return b.handleUpgradeData(payload)

	default:
		if b.state == StateTransferring {
			// only upgrade data may arrive mid-transfer
			return b.protocolError()
		}
		return nil, fmt.Errorf("bootloader does not handle %s", cmd)
	}
}

// beginSession opens a transfer session. The chunk size is capped at the
// receive buffer limit; the host must use the echoed value. The
// in-progress flag is set before anything touches flash so that an
// interrupted transfer is detectable on the next boot.
func (b *Bootloader) beginSession(chunkSize, crc uint16) ([]byte, error) {
	if chunkSize == 0 || chunkSize > b.config.ChunkLimit {
		chunkSize = b.config.ChunkLimit
	}

	if err := b.store.Set(bootcom.KeyInProgress, []byte{1}); err != nil {
		b.state = StateFailed
		return protocol.CreateUpgradeStartResponse(protocol.UpgradeBootcomError, 0, b.reason)
	}
	if err := b.flash.Erase(); err != nil {
		b.state = StateFailed
		return protocol.CreateUpgradeStartResponse(protocol.UpgradeEraseError, 0, b.reason)
	}

	b.session = &session{chunkSize: chunkSize, crc: crc, crcAcc: uframe.CRC16Init}
	b.state = StateTransferring

	if l := b.config.Logger; l != nil {
		l.Info().
			Int("chunk_size", int(chunkSize)).
			Str("reason", b.reason.String()).
			Msg("Upgrade session started")
	}

	return protocol.CreateUpgradeStartResponse(protocol.UpgradeContinue, chunkSize, b.reason)
}

func (b *Bootloader) handleUpgradeData(payload []byte) ([]byte, error) {
	if b.state != StateTransferring {
		// upgrade data without a session: no flash write happens
		return b.protocolError()
	}

	data, err := protocol.UnpackUpgradeData(payload)
	if err != nil {
		return nil, err
	}

	s := b.session
	if len(data) > int(s.chunkSize) {
		return b.protocolError()
	}

	if len(data) > 0 {
		if s.written+len(data) > b.flash.Capacity() {
			return b.fail(protocol.UpgradeOverflowError)
		}
		if err := b.flash.Write(s.written, data); err != nil {
			return b.fail(protocol.UpgradeFlashError)
		}
		s.crcAcc = uframe.CRC16Update(s.crcAcc, data)
		s.written += len(data)
	}

	// a chunk shorter than the agreed size, including an empty one,
	// signals end of image
	if len(data) < int(s.chunkSize) {
		return b.finalize()
	}
	return protocol.CreateUpgradeDataResponse(protocol.UpgradeContinue)
}

// finalize judges the received image against the CRC negotiated at
// upgrade_start. On success the in-progress flag and the record are
// cleared; on mismatch the flag stays set so the next boot reports an
// unfinished upgrade.
func (b *Bootloader) finalize() ([]byte, error) {
	b.state = StateVerifying
	s := b.session

	if s.crcAcc != s.crc {
		if l := b.config.Logger; l != nil {
			l.Error().
				Int("bytes", s.written).
				Str("got", fmt.Sprintf("0x%04X", s.crcAcc)).
				Str("want", fmt.Sprintf("0x%04X", s.crc)).
				Msg("Image CRC mismatch")
		}
		return b.fail(protocol.UpgradeCRCError)
	}

	if err := b.store.Clear(bootcom.KeyInProgress); err != nil {
		return b.fail(protocol.UpgradeBootcomError)
	}
	if err := b.store.Clear(bootcom.KeyUpgrade); err != nil {
		return b.fail(protocol.UpgradeBootcomError)
	}

	if l := b.config.Logger; l != nil {
		l.Info().Int("bytes", s.written).Msg("Upgrade verified")
	}

	b.state = StateSuccess
	b.session = nil
	return protocol.CreateUpgradeDataResponse(protocol.UpgradeSuccess)
}

func (b *Bootloader) fail(status protocol.UpgradeStatus) ([]byte, error) {
	b.state = StateFailed
	b.session = nil
	return protocol.CreateUpgradeDataResponse(status)
}

func (b *Bootloader) protocolError() ([]byte, error) {
	if l := b.config.Logger; l != nil {
		l.Error().Str("state", b.state.String()).Msg("Upgrade protocol violation")
	}
	return b.fail(protocol.UpgradeProtocolError)
}

// Serve runs the bootloader against a byte stream: it sends the boot
// greeting, then answers frames until the image verifies, the stream
// fails, or ctx is cancelled (checked between frames). A nil return means
// the upgrade succeeded and the device should boot the application.
func (b *Bootloader) Serve(ctx context.Context, rw io.ReadWriter) error {
	reader := uframe.NewReaderSize(rw, protocol.MaxUpgradeFrameLength)

	greeting, err := b.Start()
	if err != nil {
		return err
	}
	if greeting != nil {
		if _, err := rw.Write(greeting); err != nil {
			return fmt.Errorf("write greeting: %w", err)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := reader.ReadFrame()
		if err != nil {
			if uframe.IsFramingError(err) {
				// garbage on the wire; resynchronize on the next frame
				if l := b.config.Logger; l != nil {
					l.Debug().Err(err).Msg("Discarding malformed frame")
				}
				continue
			}
			return err
		}

		resp, err := b.HandleFrame(raw)
		if err != nil {
			if l := b.config.Logger; l != nil {
				l.Debug().Err(err).Msg("Discarding frame")
			}
			continue
		}
		if resp != nil {
			if _, err := rw.Write(resp); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}

		if b.state == StateSuccess {
			return nil
		}
	}
}
