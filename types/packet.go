package types

import (
	"encoding/binary"

	"telemetry-go/errcode"
)

// PacketSize is the on-air telemetry payload length.
const PacketSize = 4

// EncodePacket lays out a reading as two little-endian int16 fields:
// temperature then humidity, both in hundredths.
func EncodePacket(r Reading) [PacketSize]byte {
	var b [PacketSize]byte
	binary.LittleEndian.PutUint16(b[0:2], uint16(r.CentiC))
	binary.LittleEndian.PutUint16(b[2:4], uint16(r.CentiRH))
	return b
}

// DecodePacket is the receiving side of EncodePacket.
func DecodePacket(b []byte) (Reading, error) {
	if len(b) != PacketSize {
		return Reading{}, &errcode.E{C: errcode.InvalidLength, Op: "types.decode"}
	}
	return Reading{
		CentiC:  int16(binary.LittleEndian.Uint16(b[0:2])),
		CentiRH: int16(binary.LittleEndian.Uint16(b[2:4])),
	}, nil
}
