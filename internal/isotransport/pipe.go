// Package isotransport simulates the isochronous transport layer the
// streaming engine normally sits on top of: a 1 kHz frame clock that
// delivers one audio packet per USB frame and drives the engine's
// synchronization tick, honoring the engine's reception-arming
// contract.
package isotransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emberfold/usbaudio/pkg/audioclass"
)

// FrameInterval is one full-speed USB frame.
const FrameInterval = time.Millisecond

// PacketSource produces the isochronous packets the simulated host
// sends. NextPacket fills dst and returns the packet length; io.EOF
// ends the stream.
type PacketSource interface {
	NextPacket(dst []byte) (int, error)
}

// Pipe connects a PacketSource to a streaming engine through a frame
// clock. It implements audioclass.Transport, recording where the
// engine wants the next packet so the arming contract can be
// observed and verified.
type Pipe struct {
	logger *slog.Logger
	uuid   uuid.UUID

	mu       sync.Mutex
	engine   *audioclass.Engine
	source   PacketSource
	staging  []byte
	armedOff int
	armedLen int

	frames uint64
}

// NewPipe creates a pipe for packets of at most maxPacket bytes. Bind
// the engine before running: the engine needs the transport at
// construction, so the two are wired in two steps.
func NewPipe(source PacketSource, maxPacket int) *Pipe {
	uuid := uuid.New()
	return &Pipe{
		logger:  slog.Default().With("iso pipe uuid", uuid),
		uuid:    uuid,
		source:  source,
		staging: make([]byte, maxPacket),
	}
}

// Bind attaches the engine whose buffer this pipe feeds.
func (p *Pipe) Bind(engine *audioclass.Engine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.engine = engine
}

// ArmNextReception records the engine's reception target for the next
// packet. Called by the engine after every received packet.
func (p *Pipe) ArmNextReception(offset, maxLen int) {
	p.armedOff = offset
	p.armedLen = maxLen
}

// Armed returns the reception target the engine asked for most
// recently.
func (p *Pipe) Armed() (offset, maxLen int) {
	return p.armedOff, p.armedLen
}

// Run delivers packets on the frame clock until the source is
// exhausted or the context is canceled.
func (p *Pipe) Run(ctx context.Context) error {
	ticker := time.NewTicker(FrameInterval)
	defer ticker.Stop()

	p.logger.Info("streaming started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("streaming stopped", "frames", p.frames)
			return ctx.Err()
		case <-ticker.C:
			if err := p.step(); err != nil {
				if errors.Is(err, io.EOF) {
					p.logger.Info("source exhausted", "frames", p.frames)
					return nil
				}
				return err
			}
		}
	}
}

// step plays out one USB frame: receive one packet, then tick the
// synchronization period.
func (p *Pipe) step() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, err := p.source.NextPacket(p.staging[:p.armedLen])
	if err != nil {
		return err
	}

	if err := p.engine.DataReceived(p.staging[:n]); err != nil {
		// Overruns glitch but never stop the stream; anything else is
		// a packet the engine refused.
		if !errors.Is(err, audioclass.ErrBufferOverrun) {
			return err
		}
		p.logger.Warn("buffer overrun", "err", err, "frame", p.frames)
	}

	p.engine.Tick()
	p.frames++
	return nil
}
