package isotransport

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberfold/usbaudio/pkg/audioclass"
)

type countingSink struct {
	starts int
	chunks int
}

func (s *countingSink) Start([]byte)         { s.starts++ }
func (s *countingSink) Continue([]byte)      {}
func (s *countingSink) PeriodicChunk([]byte) { s.chunks++ }

// silenceSource hands out zero packets forever.
type silenceSource struct{ packets int }

func (s *silenceSource) NextPacket(dst []byte) (int, error) {
	if s.packets == 0 {
		return 0, io.EOF
	}
	s.packets--
	return len(dst), nil
}

func testStreamConfig() audioclass.StreamConfig {
	return audioclass.StreamConfig{
		SampleRate:        48000,
		NumChannels:       2,
		BitDepth:          16,
		BufferSize:        2048,
		ControlPacketSize: 64,
		OutEndpoint:       0x01,
		MuteUnitID:        0x02,
	}
}

func TestPipeDeliversFramesUntilEOF(t *testing.T) {
	cfg := testStreamConfig()
	source := &silenceSource{packets: 30}
	sink := &countingSink{}

	pipe := NewPipe(source, cfg.PacketSize())
	engine, err := audioclass.NewEngine(cfg, pipe, sink)
	require.NoError(t, err)
	pipe.Bind(engine)

	for {
		if err := pipe.step(); err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
	}

	assert.Equal(t, 30, sink.chunks)
	assert.Equal(t, 1, sink.starts)
}

func TestPipeArmedTargetFollowsEngine(t *testing.T) {
	cfg := testStreamConfig()
	source := &silenceSource{packets: 3}

	pipe := NewPipe(source, cfg.PacketSize())
	engine, err := audioclass.NewEngine(cfg, pipe, &countingSink{})
	require.NoError(t, err)
	pipe.Bind(engine)

	offset, maxLen := pipe.Armed()
	assert.Equal(t, 0, offset)
	assert.Equal(t, 192, maxLen)

	require.NoError(t, pipe.step())
	offset, _ = pipe.Armed()
	assert.Equal(t, 192, offset)

	require.NoError(t, pipe.step())
	offset, _ = pipe.Armed()
	assert.Equal(t, 384, offset)
}

func TestWAVSourcePacketization(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.wav")
	writeTestWAV(t, path, 480) // 10 ms of stereo, 1920 bytes

	source, err := NewWAVSource(path, false)
	require.NoError(t, err)
	assert.Equal(t, 48000, source.SampleRate())
	assert.Equal(t, 2, source.NumChannels())

	dst := make([]byte, 192)
	total := 0
	for {
		n, err := source.NextPacket(dst)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		total += n
	}
	assert.Equal(t, 480*2*2, total)
}

func TestWAVSourceLoops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.wav")
	writeTestWAV(t, path, 48) // 1 ms

	source, err := NewWAVSource(path, true)
	require.NoError(t, err)

	dst := make([]byte, 192)
	for _i := 0; _i < 10; _i++ {
		n, err := source.NextPacket(dst)
		require.NoError(t, err)
		assert.Equal(t, 192, n)
	}
}

// writeTestWAV writes frames stereo sample frames of a simple ramp at
// 48 kHz / 16-bit.
func writeTestWAV(t *testing.T, path string, frames int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, 48000, 16, 2, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: 48000, NumChannels: 2},
		Data:           make([]int, frames*2),
		SourceBitDepth: 16,
	}
	for i := range buf.Data {
		buf.Data[i] = i % 1000
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}
