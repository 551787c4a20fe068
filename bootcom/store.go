// Package bootcom models the persistent boot-reason store shared between
// the application and the bootloader. It is the one piece of state in the
// protocol that survives a device restart: the application parks the
// negotiated upgrade parameters here before rebooting, and the bootloader
// re-derives the session from them on the other side.
//
// The store itself is an external collaborator with get/set/clear
// semantics; this package defines the interface, the upgrade record wire
// format, and an in-memory implementation for tests and mock devices.
package bootcom

import (
	"encoding/binary"
	"errors"
)

// Store keys.
const (
	// KeyUpgrade holds the encoded upgrade Record, written by the
	// application just before it restarts into the bootloader.
	KeyUpgrade = "upgrade"

	// KeyInProgress is set by the bootloader once an upgrade session has
	// started and cleared only after the image verifies. If it is still set
	// at boot, the previous upgrade never finished.
	KeyInProgress = "upgrade_in_progress"
)

// recordMagic guards against torn or stale records. A record that fails
// the magic or length check decodes to an error, never to fabricated
// session values.
const recordMagic = 0xB007

// recordSize is magic(2) + chunk_size(2) + crc(2).
const recordSize = 6

// ErrBadRecord reports a missing, torn or corrupted upgrade record.
// Callers surface it on the wire as UpgradeBootcomError.
var ErrBadRecord = errors.New("bootcom: invalid upgrade record")

// Store is the boot-reason key-value store. It persists across reboot and
// is treated as reliable-enough but fallible.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) ([]byte, bool)

	// Set stores value under key with practically atomic semantics.
	Set(key string, value []byte) error

	// Clear removes key.
	Clear(key string) error
}

// Record carries the upgrade session parameters across the restart
// boundary.
type Record struct {
	// ChunkSize is the transfer chunk size the host requested
	ChunkSize uint16

	// CRC is the CRC16 of the complete firmware image
	CRC uint16
}

// Encode serializes the record with its magic, big-endian.
func (r Record) Encode() []byte {
	b := make([]byte, recordSize)
	binary.BigEndian.PutUint16(b[0:2], recordMagic)
	binary.BigEndian.PutUint16(b[2:4], r.ChunkSize)
	binary.BigEndian.PutUint16(b[4:6], r.CRC)
	return b
}

// DecodeRecord parses an encoded record. Any torn read, wrong length or
// magic mismatch yields ErrBadRecord.
func DecodeRecord(b []byte) (Record, error) {
	if len(b) != recordSize || binary.BigEndian.Uint16(b[0:2]) != recordMagic {
		return Record{}, ErrBadRecord
	}
	return Record{
		ChunkSize: binary.BigEndian.Uint16(b[2:4]),
		CRC:       binary.BigEndian.Uint16(b[4:6]),
	}, nil
}
