package device

import (
	"github.com/loopholelabs/logging/types"

	"github.com/opendps/godps/protocol"
)

// Config holds bootloader configuration.
type Config struct {
	// Logger is used for session logging (optional)
	Logger types.Logger

	// ChunkLimit caps the chunk size echoed back to the host. Defaults to
	// protocol.MaxChunkSize, the receive buffer bound.
	ChunkLimit uint16

	// Reason overrides the boot reason when the store holds neither an
	// upgrade record nor an in-progress flag (forced via button, app start
	// failure).
	Reason protocol.UpgradeReason
}

func defaultConfig() Config {
	return Config{
		ChunkLimit: protocol.MaxChunkSize,
		Reason:     protocol.ReasonUnknown,
	}
}

// Option is a functional option for configuring the Bootloader.
type Option func(*Config)

// WithLogger sets a logger for session events.
func WithLogger(logger types.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithChunkLimit caps the negotiated chunk size below the protocol maximum.
func WithChunkLimit(limit uint16) Option {
	return func(c *Config) {
		if limit > 0 && limit <= protocol.MaxChunkSize {
			c.ChunkLimit = limit
		}
	}
}

// WithReason sets the boot reason reported when the store does not imply
// one (ReasonForced, ReasonAppStartFailed, ReasonPastFailure).
func WithReason(reason protocol.UpgradeReason) Option {
	return func(c *Config) {
		c.Reason = reason
	}
}
