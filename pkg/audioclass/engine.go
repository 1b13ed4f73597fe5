package audioclass

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Transport is the isochronous transport collaborator (the USB HAL).
// After every received packet the engine tells the transport where the
// next packet must land, so the reception target always tracks the
// write cursor.
type Transport interface {
	// ArmNextReception prepares the transport to deliver the next
	// isochronous packet of at most maxLen bytes, destined for the
	// given offset in the engine's buffer.
	ArmNextReception(offset int, maxLen int)
}

// PlaybackSink consumes audio on behalf of the playback hardware.
//
// All slices passed to the sink are borrowed views into the engine's
// buffer, valid only for the duration of the call. A sink that needs
// the data afterwards must copy it.
type PlaybackSink interface {
	// Start begins playback with the lead-in chunk. Fired exactly once
	// per (re)activation of the engine.
	Start(pcm []byte)

	// Continue hands the sink the next period's chunk once playback is
	// under way. The chunk length is the drift-adjusted transfer size.
	Continue(pcm []byte)

	// PeriodicChunk notifies the sink of every received packet,
	// independent of playback state.
	PeriodicChunk(pcm []byte)
}

// Engine is the streaming buffer engine: it absorbs one isochronous
// packet per USB frame into a circular buffer and exposes a steady
// half-buffer playback chunk per frame, adjusting the chunk size to
// compensate for host/device clock drift.
//
// The transport and timer callbacks may run on different goroutines,
// so every entry point serializes on an internal mutex.
type Engine struct {
	logger *slog.Logger
	uuid   uuid.UUID

	mu    sync.Mutex
	cfg   StreamConfig
	buf   *CircularBuffer
	drift driftCompensator

	transport Transport
	sink      PlaybackSink

	// The one-shot start flag and the pending playback signal are
	// deliberately independent: "playback has begun" and "the sink is
	// owed a signal this period" are unrelated conditions.
	started         bool
	pendingContinue bool

	overruns uint64
}

// NewEngine builds a streaming engine for one activated streaming
// interface and arms the transport for the first packet at offset 0.
func NewEngine(cfg StreamConfig, transport Transport, sink PlaybackSink) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrAllocation)
	}
	if sink == nil {
		return nil, fmt.Errorf("%w: nil playback sink", ErrAllocation)
	}

	uuid := uuid.New()
	logger := slog.Default().With(
		"audio engine uuid", uuid,
		"endpoint", cfg.OutEndpoint,
	)

	buf, err := NewCircularBuffer(cfg.BufferSize)
	if err != nil {
		return nil, err
	}

	logger.Debug(
		"initialized streaming engine",
		"sampleRate", cfg.SampleRate,
		"channels", cfg.NumChannels,
		"bitDepth", cfg.BitDepth,
		"bufferSize", cfg.BufferSize,
		"packetSize", cfg.PacketSize(),
	)

	e := &Engine{
		logger: logger,
		uuid:   uuid,
		cfg:    cfg,
		buf:    buf,
		drift: driftCompensator{
			capacity: cfg.BufferSize,
			packet:   cfg.PacketSize(),
			step:     cfg.FrameSize(),
		},
		transport: transport,
		sink:      sink,
	}

	e.transport.ArmNextReception(0, cfg.PacketSize())
	return e, nil
}

// DataReceived absorbs one isochronous packet from the transport.
//
// The packet is appended at the write cursor, the sink is notified of
// the received chunk, playback is started on the first full lap of the
// buffer, and the transport is re-armed at the new write cursor.
//
// A returned ErrBufferOverrun means the packet overwrote unread data;
// the packet was still stored and streaming continues.
func (e *Engine) DataReceived(packet []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(packet) > e.cfg.PacketSize() {
		return fmt.Errorf("%w: %d byte packet exceeds %d byte max",
			ErrProtocolViolation, len(packet), e.cfg.PacketSize())
	}

	offset := e.buf.WriteCursor()
	wrapped, err := e.buf.Write(packet)
	if err != nil {
		e.overruns++
		e.logger.Warn(
			"writer overran unread audio data",
			"err", err,
			"writeCursor", offset,
			"readCursor", e.buf.ReadCursor(),
			"overruns", e.overruns,
		)
	}

	// Notify the sink of the chunk just landed, in place.
	end := min(offset+len(packet), e.buf.Capacity())
	e.sink.PeriodicChunk(e.buf.data[offset:end])

	if wrapped {
		if !e.started {
			// First full pass over the buffer: hand the sink the
			// lead-in half and begin playback. One-shot until Reset.
			e.started = true
			e.logger.Info("starting playback", "chunkSize", e.cfg.HalfSize())
			e.sink.Start(e.buf.data[:e.cfg.HalfSize()])
		} else {
			e.pendingContinue = true
		}
	}

	e.transport.ArmNextReception(e.buf.WriteCursor(), e.cfg.PacketSize())
	return err
}

// Tick drives one synchronization period (one USB frame). While the
// buffer is still filling its lead-in this is a no-op. Otherwise the
// read cursor advances by one half buffer, the drift-adjusted transfer
// size for the period is computed, and a pending playback signal is
// delivered to the sink.
//
// Returns the transfer size for this period and whether the reader is
// active yet.
func (e *Engine) Tick() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.buf.Fill() != FillStreaming {
		return 0, false
	}

	e.buf.AdvanceRead()

	size := e.drift.transferSize(e.buf.ReadCursor(), e.buf.WriteCursor())

	if e.started && e.pendingContinue {
		e.pendingContinue = false
		e.sink.Continue(e.buf.data[:size])
	}

	return size, true
}

// Reset synchronously returns the engine to its just-initialized
// state: cursors at zero, lead-in gating restored, the start one-shot
// re-armed, and the transport armed at offset 0. Used when the
// streaming alternate setting is deactivated and reactivated.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.buf.Reset()
	e.started = false
	e.pendingContinue = false
	e.transport.ArmNextReception(0, e.cfg.PacketSize())
	e.logger.Debug("engine reset")
}

// Overruns returns how many received packets have overwritten unread
// data since the engine was created.
func (e *Engine) Overruns() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.overruns
}

// Config returns the immutable stream configuration.
func (e *Engine) Config() StreamConfig { return e.cfg }
