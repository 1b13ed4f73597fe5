package audioclass

import (
	"encoding/binary"
	"fmt"
)

// Audio Class 1.0 class-specific request codes (USB Device Class
// Definition for Audio Devices v1.0, Table A-9).
const (
	RequestSetCurrent = 0x01 // SET_CUR
	RequestGetCurrent = 0x81 // GET_CUR
)

// Standard request codes handled by the class layer (USB 2.0 Spec
// Table 9-4). Everything else on the control endpoint belongs to the
// core enumeration stack, not to this driver.
const (
	RequestGetInterface = 0x0A
	RequestSetInterface = 0x0B
)

// bmRequestType type field (USB 2.0 Spec Table 9-2).
const (
	RequestTypeMask     = 0x60
	RequestTypeStandard = 0x00
	RequestTypeClass    = 0x20
)

// Alternate settings of the streaming interface. Alternate 0 is the
// zero-bandwidth setting, alternate 1 carries the isochronous endpoint.
const (
	AltSettingZeroBandwidth = 0
	AltSettingOperational   = 1
)

// SetupPacketSize is the size of a USB SETUP packet in bytes.
const SetupPacketSize = 8

// SetupPacket is an 8-byte USB SETUP packet as delivered by the
// control dispatcher.
type SetupPacket struct {
	RequestType uint8  // bmRequestType
	Request     uint8  // bRequest
	Value       uint16 // wValue
	Index       uint16 // wIndex
	Length      uint16 // wLength, data stage length
}

// ParseSetupPacket decodes a raw 8-byte setup packet.
func ParseSetupPacket(data []byte) (SetupPacket, error) {
	if len(data) < SetupPacketSize {
		return SetupPacket{}, fmt.Errorf("setup packet is %d bytes, want %d: %w",
			len(data), SetupPacketSize, ErrProtocolViolation)
	}
	return SetupPacket{
		RequestType: data[0],
		Request:     data[1],
		Value:       binary.LittleEndian.Uint16(data[2:4]),
		Index:       binary.LittleEndian.Uint16(data[4:6]),
		Length:      binary.LittleEndian.Uint16(data[6:8]),
	}, nil
}

// Unit returns the entity (terminal or unit) id the request targets,
// carried in the high byte of wIndex for audio class requests.
func (p SetupPacket) Unit() uint8 {
	return uint8(p.Index >> 8)
}
