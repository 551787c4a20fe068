package uframe

import "io"

// Reader extracts frames from a byte stream. Bytes are accumulated as they
// arrive; anything before a SOF is discarded and a SOF seen mid-frame
// restarts accumulation, so the reader resynchronizes after line noise.
//
// Buffering is bounded: if no EOF is seen within the configured maximum
// frame length, ReadFrame fails with a *FramingError instead of buffering
// a corrupted stream without limit.
type Reader struct {
	r   io.Reader
	max int
	buf []byte
}

// NewReader returns a Reader bounded at MaxFrameLength, which fits every
// regular command frame.
func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, MaxFrameLength)
}

// NewReaderSize returns a Reader with an explicit frame length bound.
// Receivers of upgrade data frames need a bound sized to the negotiated
// chunk size rather than MaxFrameLength.
func NewReaderSize(r io.Reader, max int) *Reader {
	if max < MinFrameLength {
		max = MinFrameLength
	}
	return &Reader{r: r, max: max}
}

// ReadFrame blocks until one complete frame has been received, then returns
// its unescaped, CRC-checked payload. Transport read errors are returned
// as-is; malformed frames as *FramingError.
func (r *Reader) ReadFrame() ([]byte, error) {
	frame := make([]byte, 0, r.max)
	sof := false
	for {
		b, err := r.next()
		if err != nil {
			return nil, err
		}
		switch {
		case b == SOF:
			frame = append(frame[:0], b)
			sof = true
		case !sof:
			// noise between frames
		default:
			frame = append(frame, b)
			if b == EOF {
				return Unframe(frame)
			}
			if len(frame) >= r.max {
				return nil, &FramingError{Reason: "no frame delimiter within maximum frame length"}
			}
		}
	}
}

func (r *Reader) next() (byte, error) {
	for len(r.buf) == 0 {
		var tmp [64]byte
		n, err := r.r.Read(tmp[:])
		if n > 0 {
			r.buf = append(r.buf, tmp[:n]...)
			break
		}
		if err != nil {
			return 0, err
		}
	}
	b := r.buf[0]
	r.buf = r.buf[1:]
	return b, nil
}
