package payload_test

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/format/payload"
)

var testStamp = time.Date(2026, 1, 2, 15, 4, 5, 123456000, time.UTC)

// ─────────────────────────────────────────────────────────────────────────────
// Readings
// ─────────────────────────────────────────────────────────────────────────────

func TestReadings_InsertionOrder(t *testing.T) {
	r := payload.NewReadings()
	r.Set("Temp", 25.5)
	r.Set("Counter", int32(7))
	r.Set("Alarm", false)

	want := []string{"Temp", "Counter", "Alarm"}
	if got := r.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
}

func TestReadings_UpdateKeepsPosition(t *testing.T) {
	r := payload.NewReadings()
	r.Set("a", 1)
	r.Set("b", 2)
	r.Set("a", 9)

	want := []string{"a", "b"}
	if got := r.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	v, ok := r.Get("a")
	if !ok || v != 9 {
		t.Errorf("Get(a) = %v, %v, want 9, true", v, ok)
	}
}

func TestReadings_GetMissing(t *testing.T) {
	r := payload.NewReadings()
	if _, ok := r.Get("nope"); ok {
		t.Error("Get on missing key reported ok")
	}
}

func TestReadings_MarshalJSON(t *testing.T) {
	r := payload.NewReadings()
	r.Set("z", 1)
	r.Set("a", "x")

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"z":1,"a":"x"}`
	if string(b) != want {
		t.Errorf("MarshalJSON = %s, want %s", b, want)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// JSON documents
// ─────────────────────────────────────────────────────────────────────────────

func TestJSON_Shape(t *testing.T) {
	r := payload.NewReadings()
	r.Set("Temp", float32(25.5))
	r.Set("Counter", int32(7))
	r.Set("Alarm", false)

	b, err := payload.JSON("LINE_A", r, testStamp)
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	want := `{"HWID":"LINE_A","Temp":25.5,"Counter":7,"Alarm":false,"Timestamp":"2026-01-02T15:04:05.123456"}`
	if string(b) != want {
		t.Errorf("JSON =\n %s\nwant\n %s", b, want)
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	r := payload.NewReadings()
	r.Set("Temp", float32(31.7))
	r.Set("Mode", "AUTO")
	r.Set("Running", true)

	b, err := payload.JSON("PRESS-09", r, testStamp)
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if doc["HWID"] != "PRESS-09" {
		t.Errorf("HWID = %v", doc["HWID"])
	}
	if doc["Timestamp"] != "2026-01-02T15:04:05.123456" {
		t.Errorf("Timestamp = %v", doc["Timestamp"])
	}

	// Stripping the envelope leaves exactly the readings.
	delete(doc, "HWID")
	delete(doc, "Timestamp")
	want := map[string]any{"Temp": 31.7, "Mode": "AUTO", "Running": true}
	if !reflect.DeepEqual(doc, want) {
		t.Errorf("readings = %v, want %v", doc, want)
	}
}

func TestJSON_EmptyReadings(t *testing.T) {
	b, err := payload.JSON("X", payload.NewReadings(), testStamp)
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	want := `{"HWID":"X","Timestamp":"2026-01-02T15:04:05.123456"}`
	if string(b) != want {
		t.Errorf("JSON = %s, want %s", b, want)
	}
}

func TestJSON_EscapesKeys(t *testing.T) {
	r := payload.NewReadings()
	r.Set(`tag "A"`, 1)

	b, err := payload.JSON("X", r, testStamp)
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("Unmarshal: %v (payload %s)", err, b)
	}
	if _, ok := doc[`tag "A"`]; !ok {
		t.Errorf("quoted key lost: %s", b)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// CSV lines
// ─────────────────────────────────────────────────────────────────────────────

func TestCSV_Shape(t *testing.T) {
	r := payload.NewReadings()
	r.Set("sysDescr", "Linux sw01 5.10")
	r.Set("sysUpTime", "12345")

	got := string(payload.CSV("SW01", r, testStamp))
	want := "SW01,Linux sw01 5.10,12345,2026-01-02T15:04:05.123456"
	if got != want {
		t.Errorf("CSV = %q, want %q", got, want)
	}
}

func TestCSV_TypedValues(t *testing.T) {
	r := payload.NewReadings()
	r.Set("Temp", float32(30.2))
	r.Set("Alarm", true)
	r.Set("Count", int32(-4))

	got := string(payload.CSV("7", r, testStamp))
	want := "7,30.2,True,-4,2026-01-02T15:04:05.123456"
	if got != want {
		t.Errorf("CSV = %q, want %q", got, want)
	}
}

func TestCSV_EmptyReadings(t *testing.T) {
	got := string(payload.CSV("A", payload.NewReadings(), testStamp))
	want := "A,2026-01-02T15:04:05.123456"
	if got != want {
		t.Errorf("CSV = %q, want %q", got, want)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Scalar
// ─────────────────────────────────────────────────────────────────────────────

func TestScalar(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"plain", "plain"},
		{true, "True"},
		{false, "False"},
		{float32(31.7), "31.7"},
		{int64(42), "42"},
		{nil, ""},
	}
	for _, c := range cases {
		if got := payload.Scalar(c.in); got != c.want {
			t.Errorf("Scalar(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
