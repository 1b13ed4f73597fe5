package audioclass

import "errors"

// Errors reported by the streaming engine and the control handler.
//
// All of these are local to one streaming session or one control
// transaction; none of them carries across sessions and none triggers
// an internal retry.
var (
	// ErrAllocation indicates that a session, engine or handler could
	// not be constructed. Fatal to the streaming session.
	ErrAllocation = errors.New("allocation failed")

	// ErrBufferOverrun indicates the writer lapped unread audio data.
	// The write still happens: an audible glitch is preferred over
	// stopping the stream, but the event is surfaced so it can be
	// counted and logged.
	ErrBufferOverrun = errors.New("audio buffer overrun")

	// ErrProtocolViolation indicates a malformed or out-of-order
	// control request. The control dispatcher is expected to stall the
	// transfer.
	ErrProtocolViolation = errors.New("control protocol violation")

	// ErrUnsupportedUnit indicates a control request addressed a unit
	// this driver does not implement. The request is accepted and
	// ignored, the error exists for diagnostics only.
	ErrUnsupportedUnit = errors.New("unsupported control unit")
)
