// Package decoder renders gosnmp PDU values into the display strings the
// bridge stores and publishes: text for printable octet strings, hex for the
// rest, decimal for counters and gauges, dotted notation for OIDs and
// addresses.
package decoder

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// ─────────────────────────────────────────────────────────────────────────────
// Value rendering
// ─────────────────────────────────────────────────────────────────────────────

// Render returns the display form of a PDU's value. Error sentinels
// (NoSuchObject, NoSuchInstance, EndOfMibView, Null) render empty — callers
// that care filter them with IsErrorType first.
func Render(pdu gosnmp.SnmpPDU) string {
	if IsErrorType(pdu.Type) {
		return ""
	}
	switch pdu.Type {
	case gosnmp.OctetString:
		b, ok := pdu.Value.([]byte)
		if !ok {
			return fmt.Sprintf("%v", pdu.Value)
		}
		if isPrintable(b) {
			return string(b)
		}
		return "0x" + hex.EncodeToString(b)
	case gosnmp.ObjectIdentifier:
		return strings.TrimPrefix(fmt.Sprintf("%v", pdu.Value), ".")
	case gosnmp.IPAddress:
		return fmt.Sprintf("%v", pdu.Value)
	case gosnmp.Integer:
		return strconv.FormatInt(gosnmp.ToBigInt(pdu.Value).Int64(), 10)
	case gosnmp.Counter32, gosnmp.Gauge32, gosnmp.TimeTicks, gosnmp.Uinteger32, gosnmp.Counter64:
		return strconv.FormatUint(gosnmp.ToBigInt(pdu.Value).Uint64(), 10)
	case gosnmp.OpaqueFloat:
		if f, ok := pdu.Value.(float32); ok {
			return strconv.FormatFloat(float64(f), 'g', -1, 32)
		}
	case gosnmp.OpaqueDouble:
		if f, ok := pdu.Value.(float64); ok {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
	}
	return fmt.Sprintf("%v", pdu.Value)
}

// isPrintable reports whether all bytes are printable ASCII or common
// whitespace.
func isPrintable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 && c != '\t' && c != '\n' && c != '\r' {
			return false
		}
		if c > 0x7e {
			return false
		}
	}
	return true
}
