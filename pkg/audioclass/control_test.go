package audioclass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeControlPort captures EP0 traffic and lets tests play the host's
// part in a data stage.
type fakeControlPort struct {
	sent  [][]byte
	armed []byte
}

func (p *fakeControlPort) SendData(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	p.sent = append(p.sent, buf)
}

func (p *fakeControlPort) PrepareReceive(dst []byte) {
	p.armed = dst
}

type fakeMuteSink struct {
	calls []bool
}

func (m *fakeMuteSink) SetMute(muted bool) { m.calls = append(m.calls, muted) }

func newTestControl(t *testing.T) (*ControlHandler, *fakeControlPort, *fakeMuteSink) {
	t.Helper()
	port := &fakeControlPort{}
	mute := &fakeMuteSink{}
	handler, err := NewControlHandler(testConfig(), port, mute)
	require.NoError(t, err)
	return handler, port, mute
}

func setCur(unit uint8, length uint16) SetupPacket {
	return SetupPacket{
		RequestType: RequestTypeClass | 0x01, // host to device, interface recipient
		Request:     RequestSetCurrent,
		Index:       uint16(unit) << 8,
		Length:      length,
	}
}

func getCur(unit uint8, length uint16) SetupPacket {
	return SetupPacket{
		RequestType: 0x80 | RequestTypeClass | 0x01,
		Request:     RequestGetCurrent,
		Index:       uint16(unit) << 8,
		Length:      length,
	}
}

func TestSetCurrentMuteRoundTrip(t *testing.T) {
	handler, port, mute := newTestControl(t)

	require.NoError(t, handler.OnSetup(setCur(0x02, 1)))
	require.Len(t, port.armed, 1)

	// Host sends the data stage: mute on.
	port.armed[0] = 1
	handler.OnDataStageComplete()
	require.Equal(t, []bool{true}, mute.calls)

	// And again with mute off.
	require.NoError(t, handler.OnSetup(setCur(0x02, 1)))
	port.armed[0] = 0
	handler.OnDataStageComplete()
	assert.Equal(t, []bool{true, false}, mute.calls)
}

func TestSetCurrentZeroLengthIsNoOp(t *testing.T) {
	handler, port, mute := newTestControl(t)

	require.NoError(t, handler.OnSetup(setCur(0x02, 0)))
	assert.Nil(t, port.armed)

	// No data stage was armed, so a stray completion changes nothing.
	handler.OnDataStageComplete()
	assert.Empty(t, mute.calls)
}

func TestSetCurrentClampsLengthToControlPacket(t *testing.T) {
	handler, port, _ := newTestControl(t)

	require.NoError(t, handler.OnSetup(setCur(0x02, 500)))
	assert.Len(t, port.armed, 64)
}

func TestGetCurrentAlwaysReportsZero(t *testing.T) {
	handler, port, _ := newTestControl(t)

	require.NoError(t, handler.OnSetup(getCur(0x02, 1)))
	require.Len(t, port.sent, 1)
	assert.Equal(t, []byte{0}, port.sent[0])

	// Muting the device does not change the readback: the device only
	// manages SET_CUR and always reports unmuted. Pinned behavior.
	require.NoError(t, handler.OnSetup(setCur(0x02, 1)))
	port.armed[0] = 1
	handler.OnDataStageComplete()

	require.NoError(t, handler.OnSetup(getCur(0x02, 1)))
	require.Len(t, port.sent, 2)
	assert.Equal(t, []byte{0}, port.sent[1])
}

func TestGetCurrentClampsLength(t *testing.T) {
	handler, port, _ := newTestControl(t)

	require.NoError(t, handler.OnSetup(getCur(0x02, 300)))
	require.Len(t, port.sent, 1)
	assert.Len(t, port.sent[0], 64)
	for _, b := range port.sent[0] {
		assert.Zero(t, b)
	}
}

func TestUnsupportedUnitAcceptedButCounted(t *testing.T) {
	handler, port, mute := newTestControl(t)

	require.NoError(t, handler.OnSetup(setCur(0x07, 1)))
	port.armed[0] = 1
	handler.OnDataStageComplete()

	assert.Empty(t, mute.calls)
	assert.Equal(t, uint64(1), handler.UnsupportedRequests())

	// The transaction is fully cleared: the next request is accepted.
	assert.NoError(t, handler.OnSetup(setCur(0x02, 1)))
}

func TestUnknownClassRequestRejected(t *testing.T) {
	handler, _, _ := newTestControl(t)

	err := handler.OnSetup(SetupPacket{
		RequestType: RequestTypeClass | 0x01,
		Request:     0x04, // SET_RES, not implemented
		Length:      1,
	})
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestSetupDuringPendingDataStageResets(t *testing.T) {
	handler, port, mute := newTestControl(t)

	require.NoError(t, handler.OnSetup(setCur(0x02, 1)))

	// A second setup before the data stage completes is out of order.
	err := handler.OnSetup(getCur(0x02, 1))
	assert.ErrorIs(t, err, ErrProtocolViolation)

	// The stale transaction must not fire once its data arrives late.
	handler.OnDataStageComplete()
	assert.Empty(t, mute.calls)

	// The machine is back in idle and usable.
	require.NoError(t, handler.OnSetup(setCur(0x02, 1)))
	port.armed[0] = 1
	handler.OnDataStageComplete()
	assert.Equal(t, []bool{true}, mute.calls)
}

func TestInterfaceAltSettingRoundTrip(t *testing.T) {
	handler, port, _ := newTestControl(t)
	assert.Equal(t, uint8(AltSettingZeroBandwidth), handler.AltSetting())

	require.NoError(t, handler.OnSetup(SetupPacket{
		RequestType: RequestTypeStandard | 0x01,
		Request:     RequestSetInterface,
		Value:       AltSettingOperational,
	}))
	assert.Equal(t, uint8(AltSettingOperational), handler.AltSetting())

	require.NoError(t, handler.OnSetup(SetupPacket{
		RequestType: 0x80 | RequestTypeStandard | 0x01,
		Request:     RequestGetInterface,
		Length:      1,
	}))
	require.Len(t, port.sent, 1)
	assert.Equal(t, []byte{AltSettingOperational}, port.sent[0])
}

func TestSetInterfaceRejectsUnknownAlternate(t *testing.T) {
	handler, _, _ := newTestControl(t)

	err := handler.OnSetup(SetupPacket{
		RequestType: RequestTypeStandard | 0x01,
		Request:     RequestSetInterface,
		Value:       5,
	})
	assert.ErrorIs(t, err, ErrProtocolViolation)
	assert.Equal(t, uint8(AltSettingZeroBandwidth), handler.AltSetting())
}

func TestParseSetupPacket(t *testing.T) {
	raw := []byte{0x21, 0x01, 0x00, 0x01, 0x00, 0x02, 0x01, 0x00}
	req, err := ParseSetupPacket(raw)
	require.NoError(t, err)

	assert.Equal(t, uint8(0x21), req.RequestType)
	assert.Equal(t, uint8(RequestSetCurrent), req.Request)
	assert.Equal(t, uint16(0x0100), req.Value)
	assert.Equal(t, uint16(0x0200), req.Index)
	assert.Equal(t, uint16(1), req.Length)
	assert.Equal(t, uint8(0x02), req.Unit())

	_, err = ParseSetupPacket(raw[:5])
	assert.ErrorIs(t, err, ErrProtocolViolation)
}
