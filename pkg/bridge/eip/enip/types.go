package enip

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Data type codes
// ─────────────────────────────────────────────────────────────────────────────

// Elementary CIP type codes, carried before read/write values and in the low
// bits of Symbol Object type words.
const (
	TypeBOOL   uint16 = 0x00C1
	TypeSINT   uint16 = 0x00C2
	TypeINT    uint16 = 0x00C3
	TypeDINT   uint16 = 0x00C4
	TypeLINT   uint16 = 0x00C5
	TypeUSINT  uint16 = 0x00C6
	TypeUINT   uint16 = 0x00C7
	TypeUDINT  uint16 = 0x00C8
	TypeULINT  uint16 = 0x00C9
	TypeREAL   uint16 = 0x00CA
	TypeLREAL  uint16 = 0x00CB
	TypeStruct uint16 = 0x02A0
)

// stringHandle is the template handle Logix controllers report for the
// predefined STRING structure.
const stringHandle uint16 = 0x0FCE

// TypeName maps a type code to its controller label. Symbol Object type
// words carry array-dimension and structure flags in the high bits; those
// are masked off so a STRING tag (0x8FCE on the wire) resolves cleanly.
func TypeName(code uint16) string {
	switch code & 0x0FFF {
	case TypeBOOL:
		return "BOOL"
	case TypeSINT:
		return "SINT"
	case TypeINT:
		return "INT"
	case TypeDINT:
		return "DINT"
	case TypeLINT:
		return "LINT"
	case TypeUSINT:
		return "USINT"
	case TypeUINT:
		return "UINT"
	case TypeUDINT:
		return "UDINT"
	case TypeULINT:
		return "ULINT"
	case TypeREAL:
		return "REAL"
	case TypeLREAL:
		return "LREAL"
	case TypeStruct:
		return "STRUCT"
	case stringHandle:
		return "STRING"
	}
	return fmt.Sprintf("TYPE_0x%04X", code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Value decoding
// ─────────────────────────────────────────────────────────────────────────────

// DecodeValue interprets the typed payload of a Read Tag reply: a u16 type
// code followed by the value bytes. Structures are supported only for the
// Logix STRING template (handle, u32 length, bytes).
func DecodeValue(b []byte) (models.Value, error) {
	if len(b) < 2 {
		return models.Value{}, fmt.Errorf("enip: typed value truncated at %d bytes", len(b))
	}
	code := binary.LittleEndian.Uint16(b[0:2])
	v := b[2:]
	switch code {
	case TypeBOOL:
		if err := need(v, 1); err != nil {
			return models.Value{}, err
		}
		return models.Value{Raw: v[0] != 0, Type: "BOOL"}, nil
	case TypeSINT:
		if err := need(v, 1); err != nil {
			return models.Value{}, err
		}
		return models.Value{Raw: int8(v[0]), Type: "SINT"}, nil
	case TypeINT:
		if err := need(v, 2); err != nil {
			return models.Value{}, err
		}
		return models.Value{Raw: int16(binary.LittleEndian.Uint16(v)), Type: "INT"}, nil
	case TypeDINT:
		if err := need(v, 4); err != nil {
			return models.Value{}, err
		}
		return models.Value{Raw: int32(binary.LittleEndian.Uint32(v)), Type: "DINT"}, nil
	case TypeLINT:
		if err := need(v, 8); err != nil {
			return models.Value{}, err
		}
		return models.Value{Raw: int64(binary.LittleEndian.Uint64(v)), Type: "LINT"}, nil
	case TypeUSINT:
		if err := need(v, 1); err != nil {
			return models.Value{}, err
		}
		return models.Value{Raw: v[0], Type: "USINT"}, nil
	case TypeUINT:
		if err := need(v, 2); err != nil {
			return models.Value{}, err
		}
		return models.Value{Raw: binary.LittleEndian.Uint16(v), Type: "UINT"}, nil
	case TypeUDINT:
		if err := need(v, 4); err != nil {
			return models.Value{}, err
		}
		return models.Value{Raw: binary.LittleEndian.Uint32(v), Type: "UDINT"}, nil
	case TypeULINT:
		if err := need(v, 8); err != nil {
			return models.Value{}, err
		}
		return models.Value{Raw: binary.LittleEndian.Uint64(v), Type: "ULINT"}, nil
	case TypeREAL:
		if err := need(v, 4); err != nil {
			return models.Value{}, err
		}
		return models.Value{Raw: math.Float32frombits(binary.LittleEndian.Uint32(v)), Type: "REAL"}, nil
	case TypeLREAL:
		if err := need(v, 8); err != nil {
			return models.Value{}, err
		}
		return models.Value{Raw: math.Float64frombits(binary.LittleEndian.Uint64(v)), Type: "LREAL"}, nil
	case TypeStruct:
		if err := need(v, 6); err != nil {
			return models.Value{}, err
		}
		if handle := binary.LittleEndian.Uint16(v[0:2]); handle != stringHandle {
			return models.Value{}, fmt.Errorf("enip: unsupported structure handle 0x%04X", handle)
		}
		n := int(binary.LittleEndian.Uint32(v[2:6]))
		if len(v[6:]) < n {
			return models.Value{}, fmt.Errorf("enip: STRING value truncated: %d of %d bytes", len(v[6:]), n)
		}
		return models.Value{Raw: string(v[6 : 6+n]), Type: "STRING"}, nil
	}
	return models.Value{}, fmt.Errorf("enip: unsupported data type 0x%04X", code)
}

func need(b []byte, n int) error {
	if len(b) < n {
		return fmt.Errorf("enip: typed value needs %d bytes, have %d", n, len(b))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Value encoding
// ─────────────────────────────────────────────────────────────────────────────

// EncodeValue renders the typed payload of a Write Tag request — type code,
// element count 1, value bytes — coercing the string form per the tag's
// data-type label.
func EncodeValue(label, value string) ([]byte, error) {
	var buf []byte
	switch strings.ToUpper(label) {
	case "BOOL":
		x, err := strconv.ParseBool(value)
		if err != nil {
			return nil, coerceErr(label, value)
		}
		buf = atomicHeader(TypeBOOL)
		if x {
			buf = append(buf, 0xFF)
		} else {
			buf = append(buf, 0x00)
		}
	case "SINT":
		x, err := strconv.ParseInt(value, 10, 8)
		if err != nil {
			return nil, coerceErr(label, value)
		}
		buf = append(atomicHeader(TypeSINT), byte(x))
	case "INT":
		x, err := strconv.ParseInt(value, 10, 16)
		if err != nil {
			return nil, coerceErr(label, value)
		}
		buf = binary.LittleEndian.AppendUint16(atomicHeader(TypeINT), uint16(x))
	case "DINT":
		x, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return nil, coerceErr(label, value)
		}
		buf = binary.LittleEndian.AppendUint32(atomicHeader(TypeDINT), uint32(x))
	case "LINT":
		x, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, coerceErr(label, value)
		}
		buf = binary.LittleEndian.AppendUint64(atomicHeader(TypeLINT), uint64(x))
	case "USINT":
		x, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return nil, coerceErr(label, value)
		}
		buf = append(atomicHeader(TypeUSINT), byte(x))
	case "UINT":
		x, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return nil, coerceErr(label, value)
		}
		buf = binary.LittleEndian.AppendUint16(atomicHeader(TypeUINT), uint16(x))
	case "UDINT":
		x, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, coerceErr(label, value)
		}
		buf = binary.LittleEndian.AppendUint32(atomicHeader(TypeUDINT), uint32(x))
	case "ULINT":
		x, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return nil, coerceErr(label, value)
		}
		buf = binary.LittleEndian.AppendUint64(atomicHeader(TypeULINT), x)
	case "REAL":
		x, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return nil, coerceErr(label, value)
		}
		buf = binary.LittleEndian.AppendUint32(atomicHeader(TypeREAL), math.Float32bits(float32(x)))
	case "LREAL":
		x, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, coerceErr(label, value)
		}
		buf = binary.LittleEndian.AppendUint64(atomicHeader(TypeLREAL), math.Float64bits(x))
	case "STRING":
		buf = binary.LittleEndian.AppendUint16(buf, TypeStruct)
		buf = binary.LittleEndian.AppendUint16(buf, stringHandle)
		buf = binary.LittleEndian.AppendUint16(buf, 1)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(value)))
		buf = append(buf, value...)
	default:
		return nil, fmt.Errorf("enip: no encoding for data type %q", label)
	}
	return buf, nil
}

func atomicHeader(code uint16) []byte {
	buf := binary.LittleEndian.AppendUint16(nil, code)
	return binary.LittleEndian.AppendUint16(buf, 1)
}

func coerceErr(label, value string) error {
	return fmt.Errorf("enip: %q is not a valid %s value", value, label)
}
