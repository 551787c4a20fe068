package dps

import (
	"context"
	"fmt"
	"time"

	"github.com/opendps/godps/firmware"
	"github.com/opendps/godps/protocol"
)

// Upgrade phases reported through ProgressCallback.
const (
	// PhaseStarting: handshake with the bootloader
	PhaseStarting = "starting"

	// PhaseTransferring: image chunks are being sent
	PhaseTransferring = "transferring"

	// PhaseComplete: image received and verified by the device
	PhaseComplete = "complete"
)

// Progress describes upgrade progress.
type Progress struct {
	// Phase is one of the Phase* constants
	Phase string

	// BytesWritten is the number of image bytes acknowledged so far
	BytesWritten int

	// TotalBytes is the image size
	TotalBytes int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// ElapsedTime is the time since the upgrade started
	ElapsedTime time.Duration
}

// ProgressCallback is called after each acknowledged chunk. It must return
// quickly to avoid stalling the transfer.
type ProgressCallback func(Progress)

// Upgrade replaces the device firmware:
//  1. Validate the image (unless forced)
//  2. Send upgrade_start; the application persists the session and reboots
//     into its bootloader, which acknowledges with the capped chunk size
//  3. Stream the image in chunks, each acknowledged before the next
//  4. A final short or empty chunk triggers the device-side CRC check
//
// Any error status from the device terminates the session and is returned
// as an *UpgradeError; nothing is retried. The device stays responsive
// after a failed upgrade and the session can be restarted from scratch.
func (c *Client) Upgrade(ctx context.Context, img *firmware.Image) error {
	if img == nil {
		return fmt.Errorf("image cannot be nil")
	}
	if !c.config.Force {
		if err := img.Validate(); err != nil {
			return err
		}
	}

	startTime := time.Now()
	total := img.Size()

	c.reportProgress(Progress{Phase: PhaseStarting, TotalBytes: total})

	frame, err := protocol.CreateUpgradeStart(c.config.ChunkSize, img.CRC)
	if err != nil {
		return err
	}
	payload, err := c.request(ctx, frame, protocol.CmdUpgradeStart)
	if err != nil {
		return fmt.Errorf("upgrade start: %w", err)
	}
	ack, err := protocol.UnpackUpgradeStartResponse(payload)
	if err != nil {
		return err
	}
	if ack.Status != protocol.UpgradeContinue {
		return &UpgradeError{Status: ack.Status, Reason: ack.Reason}
	}

	// the device-returned chunk size wins over the requested one
	chunkSize := int(ack.ChunkSize)
	if ack.ChunkSize != c.config.ChunkSize {
		if l := c.config.Logger; l != nil {
			l.Info().Int("chunk_size", chunkSize).Msg("Device capped chunk size")
		}
	}
	if l := c.config.Logger; l != nil {
		l.Info().
			Str("reason", ack.Reason.String()).
			Int("bytes", total).
			Msg("Bootloader ready for transfer")
	}

	sent := 0
	for sent < total {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		end := sent + chunkSize
		if end > total {
			end = total
		}
		status, err := c.sendChunk(ctx, img.Data[sent:end])
		if err != nil {
			return err
		}
		sent = end

		switch status {
		case protocol.UpgradeContinue:
			c.reportProgress(Progress{
				Phase:        PhaseTransferring,
				BytesWritten: sent,
				TotalBytes:   total,
				Percentage:   float64(sent) / float64(total) * 100,
				ElapsedTime:  time.Since(startTime),
			})
		case protocol.UpgradeSuccess:
			// final short chunk already ended the session
			if sent == total {
				c.reportProgress(Progress{
					Phase:        PhaseComplete,
					BytesWritten: sent,
					TotalBytes:   total,
					Percentage:   100,
					ElapsedTime:  time.Since(startTime),
				})
				return nil
			}
			return &UpgradeError{Status: protocol.UpgradeProtocolError}
		default:
			return &UpgradeError{Status: status}
		}
	}

	// image length was a multiple of the chunk size: an explicit empty
	// chunk marks end of image
	status, err := c.sendChunk(ctx, nil)
	if err != nil {
		return err
	}
	if status != protocol.UpgradeSuccess {
		return &UpgradeError{Status: status}
	}

	c.reportProgress(Progress{
		Phase:        PhaseComplete,
		BytesWritten: total,
		TotalBytes:   total,
		Percentage:   100,
		ElapsedTime:  time.Since(startTime),
	})
	return nil
}

func (c *Client) sendChunk(ctx context.Context, data []byte) (protocol.UpgradeStatus, error) {
	frame, err := protocol.CreateUpgradeData(data)
	if err != nil {
		return 0, err
	}
	payload, err := c.request(ctx, frame, protocol.CmdUpgradeData)
	if err != nil {
		return 0, fmt.Errorf("upgrade data: %w", err)
	}
	return protocol.UnpackUpgradeDataResponse(payload)
}

func (c *Client) reportProgress(progress Progress) {
	if c.config.ProgressCallback != nil {
		c.config.ProgressCallback(progress)
	}
}
