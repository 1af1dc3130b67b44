// Package enip implements the EtherNet/IP encapsulation layer and the CIP
// message constructs the Logix backend speaks: session registration,
// SendRRData framing, EPATH assembly, and tag value codecs. Everything in
// this package is pure byte work; sockets stay in the caller.
package enip

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ─────────────────────────────────────────────────────────────────────────────
// Encapsulation header
// ─────────────────────────────────────────────────────────────────────────────

// HeaderSize is the fixed length of the encapsulation header that precedes
// every EtherNet/IP payload.
const HeaderSize = 24

// Encapsulation commands.
const (
	CmdRegisterSession   uint16 = 0x0065
	CmdUnRegisterSession uint16 = 0x0066
	CmdSendRRData        uint16 = 0x006F
)

// Header is the decoded 24-byte encapsulation header. All fields are
// little-endian on the wire.
type Header struct {
	Command uint16
	Length  uint16
	Session uint32
	Status  uint32
	Context [8]byte
	Options uint32
}

// Frame renders an encapsulation frame: header plus payload. Status, sender
// context, and options stay zero on requests.
func Frame(command uint16, session uint32, data []byte) []byte {
	buf := make([]byte, HeaderSize+len(data))
	binary.LittleEndian.PutUint16(buf[0:2], command)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(data)))
	binary.LittleEndian.PutUint32(buf[4:8], session)
	copy(buf[HeaderSize:], data)
	return buf
}

// ParseHeader decodes the first HeaderSize bytes of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("enip: header truncated at %d bytes", len(b))
	}
	h := Header{
		Command: binary.LittleEndian.Uint16(b[0:2]),
		Length:  binary.LittleEndian.Uint16(b[2:4]),
		Session: binary.LittleEndian.Uint32(b[4:8]),
		Status:  binary.LittleEndian.Uint32(b[8:12]),
		Options: binary.LittleEndian.Uint32(b[20:24]),
	}
	copy(h.Context[:], b[12:20])
	return h, nil
}

// ReadFrame reads one complete encapsulation frame from r.
func ReadFrame(r io.Reader) (Header, []byte, error) {
	raw := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Header{}, nil, fmt.Errorf("enip: read header: %w", err)
	}
	h, err := ParseHeader(raw)
	if err != nil {
		return Header{}, nil, err
	}
	if h.Length == 0 {
		return h, nil, nil
	}
	data := make([]byte, h.Length)
	if _, err := io.ReadFull(r, data); err != nil {
		return Header{}, nil, fmt.Errorf("enip: read payload: %w", err)
	}
	return h, data, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Session registration
// ─────────────────────────────────────────────────────────────────────────────

// RegisterSession renders the 28-byte session open frame: protocol version 1,
// option flags 0. The reply echoes the frame with the assigned session handle
// and, on failure, a non-zero status word.
func RegisterSession() []byte {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint16(data[0:2], 1)
	return Frame(CmdRegisterSession, 0, data)
}

// UnRegisterSession renders the session close frame. The target sends no
// reply.
func UnRegisterSession(session uint32) []byte {
	return Frame(CmdUnRegisterSession, session, nil)
}

// ─────────────────────────────────────────────────────────────────────────────
// SendRRData / common packet format
// ─────────────────────────────────────────────────────────────────────────────

// CPF item types used by unconnected messaging.
const (
	itemNullAddress     uint16 = 0x0000
	itemUnconnectedData uint16 = 0x00B2
)

// SendRRData wraps a CIP payload in an unconnected SendRRData frame: CIP
// interface handle 0, encapsulation timeout 0 (the embedded Unconnected Send
// carries its own timing), null address item, one unconnected data item.
func SendRRData(session uint32, cip []byte) []byte {
	data := make([]byte, 16+len(cip))
	binary.LittleEndian.PutUint16(data[6:8], 2) // item count
	binary.LittleEndian.PutUint16(data[8:10], itemNullAddress)
	binary.LittleEndian.PutUint16(data[12:14], itemUnconnectedData)
	binary.LittleEndian.PutUint16(data[14:16], uint16(len(cip)))
	copy(data[16:], cip)
	return Frame(CmdSendRRData, session, data)
}

// UnpackSendRRData extracts the CIP payload from a SendRRData reply.
func UnpackSendRRData(data []byte) ([]byte, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("enip: SendRRData reply truncated at %d bytes", len(data))
	}
	count := int(binary.LittleEndian.Uint16(data[6:8]))
	off := 8
	for i := 0; i < count; i++ {
		if off+4 > len(data) {
			return nil, fmt.Errorf("enip: SendRRData item %d truncated", i)
		}
		typ := binary.LittleEndian.Uint16(data[off : off+2])
		n := int(binary.LittleEndian.Uint16(data[off+2 : off+4]))
		off += 4
		if off+n > len(data) {
			return nil, fmt.Errorf("enip: SendRRData item %d truncated", i)
		}
		if typ == itemUnconnectedData {
			return data[off : off+n], nil
		}
		off += n
	}
	return nil, fmt.Errorf("enip: SendRRData reply carries no unconnected data item")
}
