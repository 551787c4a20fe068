// Package firmware loads and validates OpenDPS firmware images.
//
// Images are raw Cortex-M binaries. The only structural check available is
// the vector table heuristic: the initial stack pointer at offset 4 must
// point into SRAM (0x20xxxxxx), so byte 7 of a little-endian image is 0x20.
// The image CRC sent in upgrade_start is CRC-16-CCITT over the whole file.
package firmware

import (
	"fmt"
	"os"

	"github.com/opendps/godps/uframe"
)

// spOffset is the byte holding the high byte of the initial stack pointer.
const spOffset = 7

// sramHighByte is the high byte of a Cortex-M SRAM address (0x20xxxxxx).
const sramHighByte = 0x20

// Image is a firmware image ready for transfer.
type Image struct {
	// Data is the raw image
	Data []byte

	// CRC is the CRC16 of Data, as carried in upgrade_start
	CRC uint16
}

// InvalidImageError reports an image that fails the vector table check.
type InvalidImageError struct {
	Reason string
}

func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("invalid firmware image: %s", e.Reason)
}

// New wraps raw image bytes, computing the transfer CRC.
func New(data []byte) *Image {
	return &Image{Data: data, CRC: uframe.CRC16(data)}
}

// Load reads an image from disk.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read firmware: %w", err)
	}
	return New(data), nil
}

// Validate applies the vector table heuristic. Hosts skip it only when the
// user forces the upgrade.
func (i *Image) Validate() error {
	if len(i.Data) <= spOffset {
		return &InvalidImageError{Reason: fmt.Sprintf("image too small: %d bytes", len(i.Data))}
	}
	if i.Data[spOffset] != sramHighByte {
		return &InvalidImageError{
			Reason: fmt.Sprintf("initial stack pointer does not point into SRAM (byte %d is 0x%02X, expected 0x%02X)",
				spOffset, i.Data[spOffset], sramHighByte),
		}
	}
	return nil
}

// Size returns the image length in bytes.
func (i *Image) Size() int {
	return len(i.Data)
}
