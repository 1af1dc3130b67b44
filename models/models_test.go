package models_test

import (
	"strings"
	"testing"
	"time"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// HWID fallback
// ─────────────────────────────────────────────────────────────────────────────

func TestHWIDOrID_PrefersHWID(t *testing.T) {
	d := models.EIPDevice{ID: 7, HWID: "plc-line-1"}
	if got := d.HWIDOrID(); got != "plc-line-1" {
		t.Errorf("HWIDOrID() = %q, want %q", got, "plc-line-1")
	}
}

func TestHWIDOrID_FallsBackToID(t *testing.T) {
	eip := models.EIPDevice{ID: 7}
	if got := eip.HWIDOrID(); got != "7" {
		t.Errorf("EIPDevice.HWIDOrID() = %q, want %q", got, "7")
	}
	snmp := models.SNMPDevice{ID: 31}
	if got := snmp.HWIDOrID(); got != "31" {
		t.Errorf("SNMPDevice.HWIDOrID() = %q, want %q", got, "31")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Intervals and timeouts
// ─────────────────────────────────────────────────────────────────────────────

func TestInterval_Defaults(t *testing.T) {
	eip := models.EIPDevice{}
	if got := eip.Interval(); got != time.Second {
		t.Errorf("EIPDevice.Interval() zero value = %v, want 1s", got)
	}

	snmp := models.SNMPDevice{}
	if got := snmp.Interval(); got != 5*time.Second {
		t.Errorf("SNMPDevice.Interval() zero value = %v, want 5s", got)
	}

	eip.PollingInterval = 250
	if got := eip.Interval(); got != 250*time.Millisecond {
		t.Errorf("Interval() = %v, want 250ms", got)
	}
}

func TestSocketTimeout(t *testing.T) {
	d := models.EIPDevice{}
	if got := d.SocketTimeout(); got != 5*time.Second {
		t.Errorf("SocketTimeout() zero value = %v, want 5s", got)
	}
	d.Timeout = 2.5
	if got := d.SocketTimeout(); got != 2500*time.Millisecond {
		t.Errorf("SocketTimeout() = %v, want 2.5s", got)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Value rendering
// ─────────────────────────────────────────────────────────────────────────────

func TestValueString(t *testing.T) {
	tests := []struct {
		name string
		v    models.Value
		want string
	}{
		{"bool true", models.Value{Raw: true, Type: "BOOL"}, "True"},
		{"bool false", models.Value{Raw: false, Type: "BOOL"}, "False"},
		{"dint", models.Value{Raw: int64(1500), Type: "DINT"}, "1500"},
		{"string", models.Value{Raw: "Line A", Type: "STRING"}, "Line A"},
		{"nil", models.Value{}, ""},
		{"float64", models.Value{Raw: 101.3, Type: "LREAL"}, "101.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// A REAL decoded from the wire is a float32; widening 30.2 to float64 yields
// 30.200000762939453. The stored form must stay "30.2".
func TestValueString_RealPrecision(t *testing.T) {
	wire := float32(30.2)
	v := models.Value{Raw: float64(wire), Type: "REAL"}
	if got := v.String(); got != "30.2" {
		t.Errorf("REAL String() = %q, want %q", got, "30.2")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Timestamp format
// ─────────────────────────────────────────────────────────────────────────────

func TestTimestamp_FormatsUTCMicroseconds(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	in := time.Date(2026, 3, 14, 9, 26, 53, 589793000, loc)

	got := models.Timestamp(in)
	want := "2026-03-14T02:26:53.589793"
	if got != want {
		t.Errorf("Timestamp() = %q, want %q", got, want)
	}
	if strings.ContainsAny(got, "Z+") {
		t.Errorf("Timestamp() = %q, want no zone suffix", got)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// SNMP object access
// ─────────────────────────────────────────────────────────────────────────────

func TestWritable(t *testing.T) {
	tests := []struct {
		access string
		want   bool
	}{
		{"read-only", false},
		{"read-write", true},
		{"write-only", true},
		{"READ-WRITE", true},
		{"", false},
		{"not-accessible", false},
	}
	for _, tt := range tests {
		o := models.SNMPObject{Access: tt.access}
		if got := o.Writable(); got != tt.want {
			t.Errorf("Writable(%q) = %v, want %v", tt.access, got, tt.want)
		}
	}
}

func TestBrokerFormat(t *testing.T) {
	if got := (models.MQTTBroker{}).Format(); got != "json" {
		t.Errorf("Format() zero value = %q, want %q", got, "json")
	}
	if got := (models.MQTTBroker{PublishFormat: "string"}).Format(); got != "string" {
		t.Errorf("Format(string) = %q, want %q", got, "string")
	}
	if got := (models.MQTTBroker{PublishFormat: "xml"}).Format(); got != "json" {
		t.Errorf("Format(xml) = %q, want %q", got, "json")
	}
}
