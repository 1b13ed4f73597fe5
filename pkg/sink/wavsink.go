// Package sink provides playback sink implementations for the
// streaming engine.
package sink

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"github.com/emberfold/usbaudio/pkg/pcm"
)

// WAVSink consumes playback chunks from the streaming engine and
// writes them to a .WAV file. It implements both the engine's
// PlaybackSink and the control handler's MuteSink: while muted the
// timeline keeps advancing but silence is written.
//
// If the output sample rate differs from the stream rate the audio is
// resampled on the way out.
//
// The file is only valid once Close has been called.
type WAVSink struct {
	logger *slog.Logger
	uuid   uuid.UUID

	mu         sync.Mutex
	encoder    *wav.Encoder
	fileHandle *os.File
	channels   int
	muted      bool
	converter  *pcm.RateConverter

	// Reused between chunks so the hot path does not allocate.
	floatBuf []float32

	shutdownOnce sync.Once
}

// NewWAVSink creates a sink writing 16-bit PCM to the file at path.
// streamRate and channels describe the incoming audio; outRate is the
// rate written to the file, usually equal to streamRate.
func NewWAVSink(path string, streamRate, channels, outRate int) (*WAVSink, error) {
	uuid := uuid.New()
	logger := slog.Default().With(
		"wav sink uuid", uuid,
	)

	f, err := os.Create(path)
	if err != nil {
		logger.Error("could not create output file", "path", path, "err", err)
		return nil, fmt.Errorf("could not create output file: %w", err)
	}

	s := &WAVSink{
		logger:     logger,
		uuid:       uuid,
		encoder:    wav.NewEncoder(f, outRate, 16, channels, 1),
		fileHandle: f,
		channels:   channels,
	}
	if outRate != streamRate {
		s.converter = pcm.NewRateConverter(channels, streamRate, outRate)
	}

	logger.Debug(
		"opened wav sink",
		"path", path,
		"streamRate", streamRate,
		"outRate", outRate,
		"channels", channels,
	)
	return s, nil
}

// Start begins playback with the lead-in chunk.
func (s *WAVSink) Start(pcmBytes []byte) {
	s.logger.Info("playback started", "chunkSize", len(pcmBytes))
	s.write(pcmBytes)
}

// Continue writes one drift-adjusted playback period.
func (s *WAVSink) Continue(pcmBytes []byte) {
	s.write(pcmBytes)
}

// PeriodicChunk is the per-packet notification. The file sink has no
// per-packet work to do.
func (s *WAVSink) PeriodicChunk([]byte) {}

// SetMute switches the sink between writing audio and writing
// silence.
func (s *WAVSink) SetMute(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
	s.logger.Info("mute state changed", "muted", muted)
}

func (s *WAVSink) write(pcmBytes []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The chunk is a borrowed view into the engine's buffer; decode it
	// into our own buffer before the call returns.
	s.floatBuf = pcm.S16LEToFloat32(pcmBytes, s.floatBuf[:0])
	samples := s.floatBuf
	if s.muted {
		clear(samples)
	}
	if s.converter != nil {
		samples = s.converter.Convert(samples)
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			SampleRate:  s.encoder.SampleRate,
			NumChannels: s.channels,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, sample := range samples {
		buf.Data[i] = int(sample * 32767)
	}

	if err := s.encoder.Write(buf); err != nil {
		s.logger.Error("error while writing chunk to file", "err", err)
	}
}

// Close finalizes the WAV header and closes the file.
func (s *WAVSink) Close() {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.encoder.Close(); err != nil {
			s.logger.Error("error closing wav encoder", "err", err)
		}
		s.fileHandle.Sync()
		s.fileHandle.Close()
		s.logger.Debug("wav sink closed")
	})
}
