package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberfold/usbaudio/pkg/pcm"
)

func TestWAVSinkWritesChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")

	s, err := NewWAVSink(path, 48000, 2, 48000)
	require.NoError(t, err)

	// One lead-in chunk and one period: 512 samples total.
	chunk := pcm.Float32ToS16LE(make([]float32, 256), nil)
	s.Start(chunk)
	s.Continue(chunk)
	s.Close()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	decoder := wav.NewDecoder(f)
	require.True(t, decoder.IsValidFile())
	assert.EqualValues(t, 48000, decoder.SampleRate)
	assert.EqualValues(t, 2, decoder.NumChans)

	buf, err := decoder.FullPCMBuffer()
	require.NoError(t, err)
	assert.Len(t, buf.Data, 512)
}

func TestWAVSinkMuteWritesSilence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "muted.wav")

	s, err := NewWAVSink(path, 48000, 2, 48000)
	require.NoError(t, err)

	loud := make([]float32, 128)
	for i := range loud {
		loud[i] = 0.5
	}
	chunk := pcm.Float32ToS16LE(loud, nil)

	s.SetMute(true)
	s.Start(chunk)
	s.SetMute(false)
	s.Continue(chunk)
	s.Close()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	decoder := wav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	require.NoError(t, err)
	require.Len(t, buf.Data, 256)

	for _, sample := range buf.Data[:128] {
		assert.Zero(t, sample)
	}
	for _, sample := range buf.Data[128:] {
		assert.NotZero(t, sample)
	}
}
