package audioclass

import "fmt"

// StreamConfig carries the fixed parameters of one streaming session.
// All values are set at construction and never mutated at runtime; the
// derived sizes below drive every piece of cursor arithmetic in the
// engine.
//
// The isochronous endpoint address is an explicit per-session field.
// Multiple sessions on the same device therefore cannot interfere with
// each other through shared endpoint state.
type StreamConfig struct {
	SampleRate  int // samples per second per channel, e.g. 48000
	NumChannels int // interleaved channels, e.g. 2
	BitDepth    int // bits per sample, e.g. 16

	// BufferSize is the total capacity of the circular audio buffer in
	// bytes. Playback runs in half-buffer chunks, so it must be even.
	BufferSize int

	// ControlPacketSize is the maximum packet size of the control
	// endpoint (EP0), bounding every control data stage.
	ControlPacketSize int

	// OutEndpoint is the address of the isochronous OUT endpoint this
	// session streams on.
	OutEndpoint uint8

	// MuteUnitID is the id of the feature unit carrying the mute
	// control. SET_CUR requests for any other unit are accepted and
	// ignored.
	MuteUnitID uint8
}

// FrameSize returns the size of one sample frame in bytes: one sample
// per channel at one instant.
func (c StreamConfig) FrameSize() int {
	return c.NumChannels * c.BitDepth / 8
}

// PacketSize returns the nominal isochronous packet size in bytes, one
// millisecond of audio (one packet per full-speed USB frame).
func (c StreamConfig) PacketSize() int {
	return c.SampleRate * c.FrameSize() / 1000
}

// HalfSize returns the nominal per-period transfer size, half the
// buffer capacity.
func (c StreamConfig) HalfSize() int {
	return c.BufferSize / 2
}

// Validate reports whether the configuration can support a streaming
// session. Failures wrap ErrAllocation: a session cannot be built from
// an invalid configuration.
func (c StreamConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrAllocation, c.SampleRate)
	}
	if c.NumChannels < 1 || c.NumChannels > 2 {
		return fmt.Errorf("%w: channel count %d", ErrAllocation, c.NumChannels)
	}
	if c.BitDepth <= 0 || c.BitDepth%8 != 0 {
		return fmt.Errorf("%w: bit depth %d", ErrAllocation, c.BitDepth)
	}
	if c.PacketSize() <= 0 {
		return fmt.Errorf("%w: packet size %d", ErrAllocation, c.PacketSize())
	}
	if c.BufferSize <= 0 || c.BufferSize%2 != 0 {
		return fmt.Errorf("%w: buffer size %d must be positive and even", ErrAllocation, c.BufferSize)
	}
	if c.BufferSize%c.FrameSize() != 0 {
		return fmt.Errorf("%w: buffer size %d not a multiple of the %d byte sample frame",
			ErrAllocation, c.BufferSize, c.FrameSize())
	}
	if c.BufferSize < 2*c.PacketSize() {
		return fmt.Errorf("%w: buffer size %d holds less than two %d byte packets",
			ErrAllocation, c.BufferSize, c.PacketSize())
	}
	if c.ControlPacketSize <= 0 {
		return fmt.Errorf("%w: control packet size %d", ErrAllocation, c.ControlPacketSize)
	}
	return nil
}
