package isotransport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-audio/wav"

	"github.com/emberfold/usbaudio/pkg/pcm"
)

// WAVSource is a PacketSource reading 16-bit PCM from a .WAV file.
// The whole file is decoded up front and handed out packet by packet,
// so NextPacket never touches the disk on the frame clock.
type WAVSource struct {
	sampleRate  int
	numChannels int
	data        []byte
	pos         int
	loop        bool
}

// NewWAVSource loads the .WAV file at path. With loop set the source
// restarts from the beginning instead of reporting io.EOF.
func NewWAVSource(path string, loop bool) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		slog.Error("could not open audio file", "audioFile", path, "err", err)
		return nil, fmt.Errorf("could not open audio file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		slog.Error("could not decode audio file", "audioFile", path, "err", decoder.Err())
		return nil, errors.New("error while decoding audio file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not read PCM data: %w", err)
	}

	slog.Debug(
		"loaded audio file",
		"audioFile", path,
		"sampleRate", decoder.SampleRate,
		"channels", decoder.NumChans,
		"samples", len(buf.Data),
	)

	return &WAVSource{
		sampleRate:  int(decoder.SampleRate),
		numChannels: int(decoder.NumChans),
		data:        pcm.S16LEFromInts(buf.Data, nil),
		loop:        loop,
	}, nil
}

// SampleRate returns the sample rate of the loaded file.
func (s *WAVSource) SampleRate() int { return s.sampleRate }

// NumChannels returns the channel count of the loaded file.
func (s *WAVSource) NumChannels() int { return s.numChannels }

// NextPacket copies the next packet of audio into dst. The final
// packet of a non-looping source may be short; the call after it
// returns io.EOF.
func (s *WAVSource) NextPacket(dst []byte) (int, error) {
	if s.pos >= len(s.data) {
		if !s.loop {
			return 0, io.EOF
		}
		s.pos = 0
	}

	n := copy(dst, s.data[s.pos:])
	s.pos += n
	return n, nil
}
