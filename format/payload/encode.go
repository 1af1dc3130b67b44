// Package payload builds the outbound MQTT message bodies published by the
// polling engine.
//
// Two shapes exist, selected per broker by its format column:
//
//	json    {"HWID":"LINE_A","Temp":25.5,...,"Timestamp":"..."}
//	string  LINE_A,25.5,...,2026-01-02T15:04:05.000000
//
// Both present readings in poll order between a fixed device-identifier head
// and timestamp tail, which is why Readings preserves insertion order instead
// of using a plain map.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Encoders
// ─────────────────────────────────────────────────────────────────────────────

// JSON renders the canonical JSON document for one device poll. Reading keys
// keep the order the poll produced them; HWID is always the first member and
// Timestamp the last.
func JSON(hwid string, r *Readings, ts time.Time) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writePair(&buf, "HWID", hwid); err != nil {
		return nil, err
	}
	for _, k := range r.keys {
		buf.WriteByte(',')
		if err := writePair(&buf, k, r.values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(',')
	if err := writePair(&buf, "Timestamp", models.Timestamp(ts)); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// CSV renders the compact comma-joined line: identifier, each reading value
// in poll order, then the timestamp. Values pass through Scalar; there is no
// quoting or escaping in this format.
func CSV(hwid string, r *Readings, ts time.Time) []byte {
	var buf bytes.Buffer
	buf.WriteString(hwid)
	for _, k := range r.keys {
		buf.WriteByte(',')
		buf.WriteString(Scalar(r.values[k]))
	}
	buf.WriteByte(',')
	buf.WriteString(models.Timestamp(ts))
	return buf.Bytes()
}

// Scalar renders a single reading value in its persisted text form: strings
// pass through, booleans become "True"/"False", REAL values keep 32-bit
// precision.
func Scalar(v any) string {
	return models.Value{Raw: v}.String()
}

// writePair appends `"key":value` with both halves JSON-encoded.
func writePair(buf *bytes.Buffer, key string, value any) error {
	kb, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("payload: encode key %q: %w", key, err)
	}
	buf.Write(kb)
	buf.WriteByte(':')
	vb, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("payload: encode value for %q: %w", key, err)
	}
	buf.Write(vb)
	return nil
}
