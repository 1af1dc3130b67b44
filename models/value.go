package models

import (
	"fmt"
	"strconv"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Timestamps
// ─────────────────────────────────────────────────────────────────────────────

// TimestampLayout is the wall-clock format used in every outbound payload,
// confirmation document, and CSV line: ISO-8601 with microseconds, UTC,
// no zone suffix.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Timestamp renders t in the bridge's canonical payload form.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ─────────────────────────────────────────────────────────────────────────────
// Value
// ─────────────────────────────────────────────────────────────────────────────

// Value is a typed reading returned by the EtherNet/IP adapter. Raw holds the
// native Go value (bool, int64, uint64, float64, or string); Type is the
// controller type label it decoded from ("BOOL", "DINT", "REAL", …).
type Value struct {
	Raw  interface{} `json:"raw"`
	Type string      `json:"type"`
}

// String renders the value in its persisted form — the representation stored
// in last_value columns, data log samples, and CSV payloads. Booleans render
// "True"/"False"; REAL values round-trip at 32-bit precision so a controller
// reading of 30.2 is stored as "30.2", not its float64 expansion.
func (v Value) String() string {
	switch x := v.Raw.(type) {
	case nil:
		return ""
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return x
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		if v.Type == "REAL" {
			return strconv.FormatFloat(x, 'g', -1, 32)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	default:
		return fmt.Sprintf("%v", x)
	}
}
