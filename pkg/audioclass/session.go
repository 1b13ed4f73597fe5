package audioclass

import (
	"log/slog"

	"github.com/google/uuid"
)

// Session ties together the streaming engine and the control handler
// of one audio function instance. It is the typed, owned handle for
// everything the class keeps per instance: no shared globals, no
// untyped class-data slot, so several sessions can coexist on one
// device without interfering.
//
// A session is created when the operational alternate setting is
// activated and closed when streaming stops.
type Session struct {
	logger *slog.Logger
	uuid   uuid.UUID

	cfg     StreamConfig
	engine  *Engine
	control *ControlHandler
}

// NewSession builds a streaming session from its four collaborators:
// the isochronous transport and playback sink feed the engine, the
// control port and mute sink serve the control handler.
func NewSession(
	cfg StreamConfig,
	transport Transport,
	sink PlaybackSink,
	port ControlPort,
	mute MuteSink,
) (*Session, error) {
	uuid := uuid.New()
	logger := slog.Default().With("audio session uuid", uuid)

	engine, err := NewEngine(cfg, transport, sink)
	if err != nil {
		logger.Error("failed to create streaming engine", "err", err)
		return nil, err
	}

	control, err := NewControlHandler(cfg, port, mute)
	if err != nil {
		logger.Error("failed to create control handler", "err", err)
		return nil, err
	}

	logger.Info(
		"audio session opened",
		"endpoint", cfg.OutEndpoint,
		"sampleRate", cfg.SampleRate,
		"channels", cfg.NumChannels,
	)

	return &Session{
		logger:  logger,
		uuid:    uuid,
		cfg:     cfg,
		engine:  engine,
		control: control,
	}, nil
}

// Engine returns the session's streaming buffer engine.
func (s *Session) Engine() *Engine { return s.engine }

// Control returns the session's control request state machine.
func (s *Session) Control() *ControlHandler { return s.control }

// Config returns the session's stream configuration.
func (s *Session) Config() StreamConfig { return s.cfg }

// Close stops the session: pending reception is interrupted and all
// streaming state is reset, synchronously.
func (s *Session) Close() {
	s.engine.Reset()
	s.logger.Info("audio session closed")
}
