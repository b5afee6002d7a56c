// Package wsm implements the Wire Stream Message frame codec: the 8-byte
// header that fronts every exchange on a control or worker stream.
package wsm

import "encoding/binary"

// Opcode identifies the kind of exchange a frame belongs to.
type Opcode uint8

const (
	OpReply        Opcode = 0x00 // S->C generic reply, keyed by message_id
	OpPing         Opcode = 0x01 // C->S
	OpPong         Opcode = 0x02 // S->C
	OpAuthRequest  Opcode = 0x03 // C->S, payload: token bytes
	OpListResponse Opcode = 0x04 // S->C, JSON, final
	OpListRequest  Opcode = 0x05 // C->S, no payload
	OpUploadInit   Opcode = 0x06 // C->S, JSON metadata
	OpWorkerAlloc  Opcode = 0x07 // C->S, payload: u8 count
	OpChunkInquiry Opcode = 0x08 // C->S worker stream
	OpChunkData    Opcode = 0x09 // C->S worker stream
	OpFinalize     Opcode = 0x10 // C->S
	OpWorkerHello  Opcode = 0x11 // C->S worker stream, first frame
	OpFatal        Opcode = 0xFF // S->C, final
)

// PayloadType tags how the bytes following a header are encoded.
type PayloadType uint8

const (
	PayloadJSON   PayloadType = 1
	PayloadBinary PayloadType = 2
	PayloadRaw    PayloadType = 3
)

// ReservedFinal marks the last frame of a logical exchange. It is the
// release signal for the frame's message ID.
const ReservedFinal uint8 = 0xFF

// HeaderSize is the fixed on-wire size of a Frame header.
const HeaderSize = 8

// Frame is the decoded form of an 8-byte WSM header. Payload bytes are
// read/written separately by the caller on the same stream, immediately
// following the header.
type Frame struct {
	Opcode      Opcode
	MessageID   uint8
	PayloadType PayloadType
	Reserved    uint8
	PayloadLen  uint32
}

// IsFinal reports whether this frame closes its logical exchange.
func (f Frame) IsFinal() bool {
	return f.Reserved == ReservedFinal
}

// Encode writes f as 8 little-endian bytes. It performs no validation of
// opcode or payload-type values: unknown values round-trip unchanged, and
// rejection of unrecognized opcodes is the dispatcher's job, not the
// codec's (forward compatibility).
func Encode(f Frame) [HeaderSize]byte {
	var b [HeaderSize]byte
	b[0] = byte(f.Opcode)
	b[1] = f.MessageID
	b[2] = byte(f.PayloadType)
	b[3] = f.Reserved
	binary.LittleEndian.PutUint32(b[4:8], f.PayloadLen)
	return b
}

// Decode parses an 8-byte header. The caller guarantees len(b) == HeaderSize.
func Decode(b [HeaderSize]byte) Frame {
	return Frame{
		Opcode:      Opcode(b[0]),
		MessageID:   b[1],
		PayloadType: PayloadType(b[2]),
		Reserved:    b[3],
		PayloadLen:  binary.LittleEndian.Uint32(b[4:8]),
	}
}

// New builds a Frame from its constituent fields, mirroring the
// spec's encode(opcode, message_id, payload_type, reserved, payload_len).
func New(opcode Opcode, messageID uint8, payloadType PayloadType, reserved uint8, payloadLen uint32) Frame {
	return Frame{
		Opcode:      opcode,
		MessageID:   messageID,
		PayloadType: payloadType,
		Reserved:    reserved,
		PayloadLen:  payloadLen,
	}
}

// Final returns a copy of f with Reserved set to ReservedFinal.
func (f Frame) Final() Frame {
	f.Reserved = ReservedFinal
	return f
}
