package payload

import "bytes"

// Readings is an insertion-ordered set of reading key/value pairs. Outbound
// payloads must present readings in the order the poll cycle produced them,
// which a plain map cannot guarantee.
type Readings struct {
	keys   []string
	values map[string]any
}

// NewReadings returns an empty set.
func NewReadings() *Readings {
	return &Readings{values: make(map[string]any)}
}

// Set appends key with value. Setting an existing key updates its value in
// place without changing its position.
func (r *Readings) Set(key string, value any) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Len returns the number of readings.
func (r *Readings) Len() int { return len(r.keys) }

// Keys returns the reading names in insertion order.
func (r *Readings) Keys() []string { return append([]string(nil), r.keys...) }

// Get returns the value stored under key.
func (r *Readings) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// MarshalJSON emits the readings as a single JSON object with keys in
// insertion order.
func (r *Readings) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writePair(&buf, k, r.values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
