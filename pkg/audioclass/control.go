package audioclass

import (
	"fmt"
	"log/slog"
	"sync"
)

// ControlPort is the EP0 collaborator implemented by the control
// dispatcher. SendData transmits an IN data stage; PrepareReceive arms
// reception of an OUT data stage into dst.
type ControlPort interface {
	SendData(data []byte)
	PrepareReceive(dst []byte)
}

// MuteSink receives mute state changes decoded from SET_CUR requests.
type MuteSink interface {
	SetMute(muted bool)
}

// pendingCommand is the deferred class command awaiting its data
// stage. Only SET_CUR is two-stage; GET_CUR completes synchronously.
type pendingCommand uint8

const (
	commandNone pendingCommand = iota
	commandSetCurrent
)

// ControlHandler is the class-specific control request state machine.
//
// It arbitrates the two-stage SET_CUR transfer over the single shared
// control endpoint: the setup stage records which unit is targeted and
// arms reception of the payload, the completion event applies the
// value. The endpoint is strictly request/response, so at most one
// transaction is pending at any time.
type ControlHandler struct {
	logger *slog.Logger

	mu   sync.Mutex
	port ControlPort
	mute MuteSink

	maxPacket int
	muteUnit  uint8

	pending    pendingCommand
	unit       uint8
	payload    []byte
	payloadLen int

	altSetting  uint8
	unsupported uint64
}

// NewControlHandler builds the control state machine for one session.
// The payload buffer is sized to the control endpoint's maximum packet
// size and owned exclusively by the handler.
func NewControlHandler(cfg StreamConfig, port ControlPort, mute MuteSink) (*ControlHandler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if port == nil {
		return nil, fmt.Errorf("%w: nil control port", ErrAllocation)
	}
	if mute == nil {
		return nil, fmt.Errorf("%w: nil mute sink", ErrAllocation)
	}

	return &ControlHandler{
		logger:    slog.Default().With("component", "audio control handler"),
		port:      port,
		mute:      mute,
		maxPacket: cfg.ControlPacketSize,
		muteUnit:  cfg.MuteUnitID,
	}, nil
}

// OnSetup handles a setup packet addressed to the audio function. A
// returned error wrapping ErrProtocolViolation means the dispatcher
// should stall the transfer.
func (h *ControlHandler) OnSetup(req SetupPacket) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	// A new setup packet while a data stage is still outstanding is an
	// out-of-order transfer. Drop the stale transaction so it cannot
	// corrupt the new one, and report the violation.
	if h.pending != commandNone {
		h.pending = commandNone
		h.payloadLen = 0
		h.logger.Warn(
			"setup packet while data stage pending, resetting",
			"request", fmt.Sprintf("0x%02x", req.Request),
			"pendingUnit", h.unit,
		)
		return fmt.Errorf("setup during pending data stage: %w", ErrProtocolViolation)
	}

	switch req.RequestType & RequestTypeMask {
	case RequestTypeClass:
		switch req.Request {
		case RequestSetCurrent:
			h.setCurrent(req)
			return nil
		case RequestGetCurrent:
			h.getCurrent(req)
			return nil
		}
		return fmt.Errorf("class request 0x%02x: %w", req.Request, ErrProtocolViolation)

	case RequestTypeStandard:
		switch req.Request {
		case RequestGetInterface:
			h.port.SendData([]byte{h.altSetting})
			return nil
		case RequestSetInterface:
			if req.Value > AltSettingOperational {
				return fmt.Errorf("alternate setting %d: %w", req.Value, ErrProtocolViolation)
			}
			h.altSetting = uint8(req.Value)
			h.logger.Debug("alternate setting changed", "altSetting", h.altSetting)
			return nil
		}
		return fmt.Errorf("standard request 0x%02x: %w", req.Request, ErrProtocolViolation)
	}

	return fmt.Errorf("request type 0x%02x: %w", req.RequestType, ErrProtocolViolation)
}

// setCurrent begins a deferred SET_CUR transaction: record the target
// unit, bound the expected length by the endpoint packet size, and arm
// reception of the payload. A zero-length request has no data stage
// and nothing to do.
func (h *ControlHandler) setCurrent(req SetupPacket) {
	if req.Length == 0 {
		return
	}

	if h.payload == nil {
		h.payload = make([]byte, h.maxPacket)
	}

	h.pending = commandSetCurrent
	h.unit = req.Unit()
	h.payloadLen = min(int(req.Length), h.maxPacket)
	h.port.PrepareReceive(h.payload[:h.payloadLen])
}

// getCurrent completes a GET_CUR request synchronously.
//
// The reply is always all zeros, regardless of any mute state written
// by earlier SET_CUR requests: this device only manages SET_CUR and
// reports "unmuted" unconditionally. Preserved as-is, see the
// GET_CUR tests.
func (h *ControlHandler) getCurrent(req SetupPacket) {
	if h.payload == nil {
		h.payload = make([]byte, h.maxPacket)
	}
	clear(h.payload)

	n := min(int(req.Length), h.maxPacket)
	h.port.SendData(h.payload[:n])
}

// OnDataStageComplete finishes the pending SET_CUR transaction once
// the dispatcher has received the payload armed by OnSetup.
//
// The mute control unit fires the mute sink with the first payload
// byte. Any other unit is accepted and ignored, surfaced only through
// the unsupported-unit counter and log.
func (h *ControlHandler) OnDataStageComplete() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pending != commandSetCurrent {
		return
	}
	h.pending = commandNone

	if h.unit != h.muteUnit {
		h.unsupported++
		h.logger.Warn(
			"ignoring SET_CUR for unsupported unit",
			"err", ErrUnsupportedUnit,
			"unit", h.unit,
			"unsupportedRequests", h.unsupported,
		)
		h.payloadLen = 0
		return
	}

	muted := h.payload[0] != 0
	h.payloadLen = 0
	h.logger.Info("mute control", "muted", muted)
	h.mute.SetMute(muted)
}

// AltSetting returns the active alternate setting of the streaming
// interface.
func (h *ControlHandler) AltSetting() uint8 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.altSetting
}

// UnsupportedRequests returns how many completed SET_CUR transactions
// targeted a unit this driver does not implement.
func (h *ControlHandler) UnsupportedRequests() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unsupported
}
