package audioclass

import "fmt"

// FillState tracks how far a freshly (re)started buffer has come
// towards steady-state playback.
type FillState uint8

const (
	// FillUnknown: nothing has been written since the last reset.
	FillUnknown FillState = iota
	// FillReadDisabled: data is arriving but the writer has not yet
	// produced half a buffer of lead-in, so reads are withheld.
	FillReadDisabled
	// FillStreaming: the lead-in is complete and the reader may
	// consume half-buffer chunks.
	FillStreaming
)

func (s FillState) String() string {
	switch s {
	case FillUnknown:
		return "unknown"
	case FillReadDisabled:
		return "read-disabled"
	case FillStreaming:
		return "streaming"
	}
	return fmt.Sprintf("FillState(%d)", uint8(s))
}

// CircularBuffer is the fixed-capacity byte ring between the
// isochronous transport (writer) and the playback consumer (reader).
//
// Conceptually the buffer is two halves: the reader always consumes a
// half that the writer finished before moving on, classic double
// buffering. Both cursors stay in [0, capacity); all arithmetic is
// modulo the capacity.
type CircularBuffer struct {
	data []byte
	wr   int
	rd   int
	fill FillState
}

// NewCircularBuffer allocates a buffer of the given capacity. The
// capacity must be positive and even so the buffer splits into two
// equal halves.
func NewCircularBuffer(capacity int) (*CircularBuffer, error) {
	if capacity <= 0 || capacity%2 != 0 {
		return nil, fmt.Errorf("%w: capacity %d must be positive and even", ErrAllocation, capacity)
	}
	return &CircularBuffer{data: make([]byte, capacity)}, nil
}

// Write copies p into the buffer at the write cursor, wrapping at the
// capacity. It returns whether this write completed a full lap of the
// buffer, and ErrBufferOverrun if the write ran into unread data. The
// overrun write is NOT suppressed: the stale region is overwritten and
// the caller decides what to do with the event.
func (b *CircularBuffer) Write(p []byte) (wrapped bool, err error) {
	capacity := len(b.data)
	if len(p) > capacity {
		return false, fmt.Errorf("%w: %d byte packet exceeds %d byte buffer",
			ErrBufferOverrun, len(p), capacity)
	}
	if len(p) == 0 {
		return false, nil
	}

	// Free run-ahead from the writer to the reader. Zero means the
	// cursors coincide, which is the empty (or just-freed) state, not
	// a collision: the cursors legitimately meet at half boundaries.
	free := (b.rd - b.wr + capacity) % capacity
	if free != 0 && len(p) > free {
		err = ErrBufferOverrun
	}

	n := copy(b.data[b.wr:], p)
	if n < len(p) {
		copy(b.data, p[n:])
	}
	wrapped = b.wr+len(p) >= capacity

	half := capacity / 2
	if b.fill == FillUnknown {
		b.fill = FillReadDisabled
	}
	if b.fill != FillStreaming && b.wr < half && b.wr+len(p) >= half {
		// The writer crossed the half-buffer boundary for the first
		// time: enough lead-in for the reader to start.
		b.fill = FillStreaming
	}
	b.wr = (b.wr + len(p)) % capacity

	return wrapped, err
}

// AdvanceRead moves the read cursor forward by one half buffer,
// marking that half consumed. Callers must not advance before the
// fill state reaches FillStreaming.
func (b *CircularBuffer) AdvanceRead() {
	b.rd = (b.rd + len(b.data)/2) % len(b.data)
}

// Reset returns the buffer to its freshly-created state: both cursors
// at zero, fill state unknown. The storage itself is retained.
func (b *CircularBuffer) Reset() {
	b.wr = 0
	b.rd = 0
	b.fill = FillUnknown
}

// Capacity returns the total size of the buffer in bytes.
func (b *CircularBuffer) Capacity() int { return len(b.data) }

// WriteCursor returns the offset the next packet will be written to.
func (b *CircularBuffer) WriteCursor() int { return b.wr }

// ReadCursor returns the offset consumed by the most recent playback
// period.
func (b *CircularBuffer) ReadCursor() int { return b.rd }

// Fill returns the current fill state.
func (b *CircularBuffer) Fill() FillState { return b.fill }
