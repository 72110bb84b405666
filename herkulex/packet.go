package herkulex

import (
	"bufio"
	"errors"
	"fmt"
)

// Commands understood by the boards.
const (
	CmdEepWrite byte = 0x01
	CmdEepRead  byte = 0x02
	CmdRamWrite byte = 0x03
	CmdRamRead  byte = 0x04
	CmdStat     byte = 0x07

	// ackFlag is set in the command of every reply.
	ackFlag byte = 0x40
)

// BroadcastID addresses every board on the bus.
const BroadcastID byte = 0xfe

const (
	headerByte = 0xff
	// two header bytes, size, id, cmd, cs1, cs2
	overhead  = 7
	maxPacket = 223
)

var (
	ErrChecksum  = errors.New("herkulex: bad checksum")
	ErrMalformed = errors.New("herkulex: malformed packet")
)

// Packet is one frame on the wire, without header and checksums.
type Packet struct {
	ID   byte
	Cmd  byte
	Data []byte
}

func checksums(size, id, cmd byte, data []byte) (byte, byte) {
	cs := size ^ id ^ cmd
	for _, b := range data {
		cs ^= b
	}
	cs1 := cs & 0xfe
	return cs1, ^cs1 & 0xfe
}

// Encode frames the packet.
func (p Packet) Encode() []byte {
	size := byte(overhead + len(p.Data))
	cs1, cs2 := checksums(size, p.ID, p.Cmd, p.Data)
	out := make([]byte, 0, size)
	out = append(out, headerByte, headerByte, size, p.ID, p.Cmd, cs1, cs2)
	return append(out, p.Data...)
}

// ReadPacket reads the next valid frame, skipping noise before the header.
func ReadPacket(r *bufio.Reader) (Packet, error) {
	var prev byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return Packet{}, err
		}
		if prev == headerByte && b == headerByte {
			break
		}
		prev = b
	}
	var hdr [5]byte
	for i := range hdr {
		b, err := r.ReadByte()
		if err != nil {
			return Packet{}, err
		}
		hdr[i] = b
	}
	size, id, cmd, cs1, cs2 := hdr[0], hdr[1], hdr[2], hdr[3], hdr[4]
	if size < overhead || size > maxPacket {
		return Packet{}, fmt.Errorf("%w: size %d", ErrMalformed, size)
	}
	data := make([]byte, int(size)-overhead)
	for i := range data {
		b, err := r.ReadByte()
		if err != nil {
			return Packet{}, err
		}
		data[i] = b
	}
	if want1, want2 := checksums(size, id, cmd, data); cs1 != want1 || cs2 != want2 {
		return Packet{}, fmt.Errorf("%w: id %#x cmd %#x", ErrChecksum, id, cmd)
	}
	return Packet{ID: id, Cmd: cmd, Data: data}, nil
}
