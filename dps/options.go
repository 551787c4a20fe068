package dps

import (
	"github.com/loopholelabs/logging/types"

	"github.com/opendps/godps/protocol"
)

// Config holds the client configuration.
type Config struct {
	// Logger is used for wire-level logging (optional)
	Logger types.Logger

	// ChunkSize is the upgrade chunk size requested from the device. The
	// device may cap it; the echoed value wins.
	ChunkSize uint16

	// Force skips the firmware image validity check before an upgrade
	Force bool

	// ProgressCallback is called during an upgrade to report progress
	// (optional). It must return quickly.
	ProgressCallback ProgressCallback

	// OCPCallback is called when a device-initiated over-current event
	// arrives, with the cutoff current in milliamperes (optional).
	OCPCallback func(iCutMA uint16)
}

func defaultConfig() Config {
	return Config{
		ChunkSize: protocol.MaxChunkSize,
	}
}

// Option is a functional option for configuring the Client.
type Option func(*Config)

// WithLogger sets a logger for client operations.
func WithLogger(logger types.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithChunkSize sets the upgrade chunk size to request. Values outside
// 1..protocol.MaxChunkSize are ignored.
func WithChunkSize(size uint16) Option {
	return func(c *Config) {
		if size > 0 && size <= protocol.MaxChunkSize {
			c.ChunkSize = size
		}
	}
}

// WithForce skips the firmware validity heuristic before an upgrade.
func WithForce(force bool) Option {
	return func(c *Config) {
		c.Force = force
	}
}

// WithProgressCallback sets a callback to track upgrade progress.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithOCPCallback sets a callback for device-initiated over-current
// protection events.
func WithOCPCallback(callback func(iCutMA uint16)) Option {
	return func(c *Config) {
		c.OCPCallback = callback
	}
}
