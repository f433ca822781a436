// wire.go — Probe header codec
//
// Fixed 16-byte probe header, big-endian on the wire:
//
//	offset  field              type
//	0       magic              u16
//	2       version            u8
//	3       message type       u8
//	4       sequence           u32
//	8       send timestamp ns  u64 (wall clock)
//
// Anything after the first HeaderSize bytes is padding and is never read.

package wire

import (
	"encoding/binary"
	"errors"

	"netlatlab/constants"
)

// HeaderSize is the encoded header length.
const HeaderSize = constants.HeaderSize

var (
	// ErrMalformedPacket is returned when a datagram is shorter than a header.
	ErrMalformedPacket = errors.New("wire: malformed packet")

	// ErrBadMagic marks a header whose sentinel does not match ProbeMagic.
	ErrBadMagic = errors.New("wire: bad magic")
)

// Header is a decoded probe header in host byte order.
type Header struct {
	Magic           uint16
	Version         uint8
	Type            uint8
	Sequence        uint32
	SendTimestampNs uint64
}

// Entry is what travels through the hand-off ring: the decoded header plus
// the arrival stamp taken by ingestion. It holds no pointers so a slot copy
// is a plain 24-byte move.
type Entry struct {
	Header
	ReceiveNs uint64
}

// NewProbe builds a data probe header for seq stamped at sendNs.
func NewProbe(seq uint32, sendNs uint64) Header {
	return Header{
		Magic:           constants.ProbeMagic,
		Version:         constants.ProbeVersion,
		Type:            constants.MsgTypeData,
		Sequence:        seq,
		SendTimestampNs: sendNs,
	}
}

// Valid reports whether the sentinel matches.
func (h *Header) Valid() bool {
	return h.Magic == constants.ProbeMagic
}

// MarshalTo writes h into b in network byte order. b must hold HeaderSize
// bytes.
func (h *Header) MarshalTo(b []byte) {
	_ = b[HeaderSize-1] // bounds check hint
	binary.BigEndian.PutUint16(b[0:2], h.Magic)
	b[2] = h.Version
	b[3] = h.Type
	binary.BigEndian.PutUint32(b[4:8], h.Sequence)
	binary.BigEndian.PutUint64(b[8:16], h.SendTimestampNs)
}

// Encode returns the network-order encoding of h.
func Encode(h Header) [HeaderSize]byte {
	var b [HeaderSize]byte
	h.MarshalTo(b[:])
	return b
}

// Decode parses the header at the front of b. Bytes past HeaderSize are
// ignored. The magic is not checked here; see Header.Valid.
func Decode(b []byte) (Header, error) {
	var h Header
	if err := DecodeInto(&h, b); err != nil {
		return Header{}, err
	}
	return h, nil
}

// DecodeInto is Decode without the copy out, for callers decoding straight
// into ring storage.
func DecodeInto(h *Header, b []byte) error {
	if len(b) < HeaderSize {
		return ErrMalformedPacket
	}
	h.Magic = binary.BigEndian.Uint16(b[0:2])
	h.Version = b[2]
	h.Type = b[3]
	h.Sequence = binary.BigEndian.Uint32(b[4:8])
	h.SendTimestampNs = binary.BigEndian.Uint64(b[8:16])
	return nil
}

// Latency is receive minus send as a signed value. Negative results mean the
// clocks disagree or the probe was reordered; they are not clamped.
func Latency(sendNs, recvNs uint64) int64 {
	return int64(recvNs - sendNs)
}
