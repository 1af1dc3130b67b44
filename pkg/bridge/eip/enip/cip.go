package enip

import (
	"encoding/binary"
	"fmt"
)

// ─────────────────────────────────────────────────────────────────────────────
// Services, classes, statuses
// ─────────────────────────────────────────────────────────────────────────────

// CIP service codes.
const (
	ServiceGetAttributesAll         uint8 = 0x01
	ServiceReadTag                  uint8 = 0x4C
	ServiceWriteTag                 uint8 = 0x4D
	ServiceUnconnectedSend          uint8 = 0x52
	ServiceGetInstanceAttributeList uint8 = 0x55
)

// CIP object classes addressed by the backend.
const (
	ClassIdentity          uint16 = 0x01
	ClassConnectionManager uint16 = 0x06
	ClassSymbolObject      uint16 = 0x6B
)

// General status codes the backend reacts to. Anything else surfaces as a
// plain protocol error carrying the status byte.
const (
	StatusSuccess         uint8 = 0x00
	StatusPathSegment     uint8 = 0x04
	StatusPathUnknown     uint8 = 0x05
	StatusPartialTransfer uint8 = 0x06
	StatusNotSupported    uint8 = 0x08
	StatusNotExist        uint8 = 0x16
	StatusListShortage    uint8 = 0x1C
)

func statusText(status uint8) string {
	switch status {
	case StatusPathSegment:
		return "path segment error"
	case StatusPathUnknown:
		return "path destination unknown"
	case StatusPartialTransfer:
		return "partial transfer"
	case StatusNotSupported:
		return "service not supported"
	case StatusNotExist:
		return "object does not exist"
	case StatusListShortage:
		return "insufficient attributes"
	}
	return "protocol error"
}

// ─────────────────────────────────────────────────────────────────────────────
// EPATH assembly
// ─────────────────────────────────────────────────────────────────────────────

// LogicalPath renders a class/instance EPATH, choosing the 8- or 16-bit
// segment form as each value requires.
func LogicalPath(class, instance uint16) []byte {
	var p []byte
	if class <= 0xFF {
		p = append(p, 0x20, byte(class))
	} else {
		p = append(p, 0x21, 0x00)
		p = binary.LittleEndian.AppendUint16(p, class)
	}
	if instance <= 0xFF {
		p = append(p, 0x24, byte(instance))
	} else {
		p = append(p, 0x25, 0x00)
		p = binary.LittleEndian.AppendUint16(p, instance)
	}
	return p
}

// SymbolPath renders the ANSI extended symbolic EPATH for a tag name, padded
// to an even byte count.
func SymbolPath(name string) []byte {
	p := append([]byte{0x91, byte(len(name))}, name...)
	if len(p)%2 != 0 {
		p = append(p, 0x00)
	}
	return p
}

// ─────────────────────────────────────────────────────────────────────────────
// Requests
// ─────────────────────────────────────────────────────────────────────────────

// Request renders a CIP request: service, path size in words, padded EPATH,
// request data.
func Request(service uint8, path, data []byte) []byte {
	buf := make([]byte, 0, 2+len(path)+len(data))
	buf = append(buf, service, byte(len(path)/2))
	buf = append(buf, path...)
	return append(buf, data...)
}

// UnconnectedSend embeds a request in a Connection Manager Unconnected Send,
// routed through backplane port 1 to the target slot.
func UnconnectedSend(embedded []byte, slot uint8) []byte {
	data := make([]byte, 0, 8+len(embedded)+4)
	data = append(data, 0x0A, 0x05) // priority/tick time, timeout ticks
	data = binary.LittleEndian.AppendUint16(data, uint16(len(embedded)))
	data = append(data, embedded...)
	if len(embedded)%2 != 0 {
		data = append(data, 0x00)
	}
	data = append(data, 0x01, 0x00) // route path size (words), reserved
	data = append(data, 0x01, slot) // backplane port, slot
	return Request(ServiceUnconnectedSend, LogicalPath(ClassConnectionManager, 1), data)
}

// ─────────────────────────────────────────────────────────────────────────────
// Responses
// ─────────────────────────────────────────────────────────────────────────────

// Response is a decoded CIP reply.
type Response struct {
	Service uint8 // request service with the reply bit cleared
	Status  uint8
	Data    []byte
}

// ParseResponse decodes a CIP reply message. Truncation is an error here;
// CIP-level failure is reported through Response.Status.
func ParseResponse(b []byte) (Response, error) {
	if len(b) < 4 {
		return Response{}, fmt.Errorf("enip: CIP reply truncated at %d bytes", len(b))
	}
	extra := int(b[3]) * 2
	if len(b) < 4+extra {
		return Response{}, fmt.Errorf("enip: CIP reply missing %d additional status bytes", extra)
	}
	return Response{
		Service: b[0] &^ 0x80,
		Status:  b[2],
		Data:    b[4+extra:],
	}, nil
}

// Err converts a non-success status into a *StatusError. A partial transfer
// is not a failure — there is simply more data to fetch — so it maps to nil;
// callers see it through More.
func (r Response) Err() error {
	if r.Status == StatusSuccess || r.Status == StatusPartialTransfer {
		return nil
	}
	return &StatusError{Service: r.Service, Status: r.Status}
}

// More reports whether the reply was a partial transfer and the enumeration
// should continue from the next instance.
func (r Response) More() bool { return r.Status == StatusPartialTransfer }

// StatusError is a CIP reply whose general status signalled a failure.
type StatusError struct {
	Service uint8
	Status  uint8
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("enip: service 0x%02X rejected: %s (status 0x%02X)", e.Service, statusText(e.Status), e.Status)
}

// Unsupported reports whether the failure means the request can never succeed
// against this controller or slot, as opposed to a transient fault.
func (e *StatusError) Unsupported() bool {
	switch e.Status {
	case StatusPathSegment, StatusPathUnknown, StatusNotSupported, StatusNotExist:
		return true
	}
	return false
}
