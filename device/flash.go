package device

import "fmt"

// Flash is the application flash region the bootloader writes the new
// image into. Erase and write primitives are consumed here, not
// implemented; a real device backs them with its flash controller.
type Flash interface {
	// Capacity returns the size of the application region in bytes.
	Capacity() int

	// Erase erases the application region. Called once per session,
	// before the first write.
	Erase() error

	// Write programs p at offset. Offsets are strictly increasing within
	// a session.
	Write(offset int, p []byte) error
}

// MemFlash is an in-memory Flash for tests and mock devices.
type MemFlash struct {
	buf    []byte
	erased bool

	// Writes counts Write calls, letting tests assert that a rejected
	// session touched nothing.
	Writes int

	// FailWrite forces the next Write to fail when set.
	FailWrite bool

	// FailErase forces Erase to fail when set.
	FailErase bool
}

// NewMemFlash returns an in-memory flash of the given capacity.
func NewMemFlash(capacity int) *MemFlash {
	return &MemFlash{buf: make([]byte, capacity)}
}

func (f *MemFlash) Capacity() int {
	return len(f.buf)
}

func (f *MemFlash) Erase() error {
	if f.FailErase {
		return fmt.Errorf("erase failed")
	}
	for i := range f.buf {
		f.buf[i] = 0xFF
	}
	f.erased = true
	return nil
}

func (f *MemFlash) Write(offset int, p []byte) error {
	if f.FailWrite {
		return fmt.Errorf("write failed")
	}
	if offset+len(p) > len(f.buf) {
		return fmt.Errorf("write beyond capacity: offset %d + %d > %d", offset, len(p), len(f.buf))
	}
	copy(f.buf[offset:], p)
	f.Writes++
	return nil
}

// Bytes returns the first n programmed bytes.
func (f *MemFlash) Bytes(n int) []byte {
	return f.buf[:n]
}
