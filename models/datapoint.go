package models

import (
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Data point records
// ─────────────────────────────────────────────────────────────────────────────

// EIPTag is a single controller tag polled from an EIPDevice.
type EIPTag struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// DeviceID references the owning EIPDevice. The column keeps the
	// historical name config_id.
	DeviceID uint `gorm:"column:config_id;not null;index" json:"device_id"`

	// TagName is the symbolic controller tag, e.g. "Motor_1_Status" or
	// "Sensor_Array[2]".
	TagName string `gorm:"size:255;not null" json:"tag_name"`

	// DataType is the controller type label: BOOL, SINT, INT, DINT, LINT,
	// REAL, LREAL, STRING. Informational for reads (the controller reply
	// carries the authoritative type code); required for writes.
	DataType string `gorm:"size:50" json:"data_type"`

	Description string `gorm:"size:500" json:"description"`

	// PollRate is advisory, milliseconds. The device-level PollingInterval
	// gates the cycle; per-tag rates are not enforced.
	PollRate int `json:"poll_rate"`

	Enabled bool `json:"enabled"`

	// LastValue / LastRead record the most recent successful read.
	LastValue string     `gorm:"size:255" json:"last_value"`
	LastRead  *time.Time `json:"last_read"`

	CreatedAt time.Time `json:"created_at"`
}

func (EIPTag) TableName() string { return "ethernet_ip_tag" }

// SNMPObject is a single OID polled from an SNMPDevice.
type SNMPObject struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// DeviceID references the owning SNMPDevice (column config_id).
	DeviceID uint `gorm:"column:config_id;not null;index" json:"device_id"`

	// OID is the numeric object identifier in dotted form, e.g.
	// "1.3.6.1.2.1.1.5.0".
	OID string `gorm:"column:oid;size:255;not null" json:"oid"`

	// Name is the object's display name. Inbound write commands address
	// objects by this name.
	Name string `gorm:"size:255" json:"name"`

	Description string `gorm:"size:500" json:"description"`

	// DataType is the MIB syntax label: INTEGER, STRING, Counter32, … It
	// drives the ASN.1 coercion on writes.
	DataType string `gorm:"size:50" json:"data_type"`

	// Access is the MIB access level, e.g. "read-only" or "read-write".
	// Writes are rejected unless it contains "write".
	Access string `gorm:"size:20" json:"access"`

	// Status is the MIB object status, e.g. "current".
	Status string `gorm:"size:20" json:"status"`

	// PollRate is advisory, milliseconds.
	PollRate int `json:"poll_rate"`

	Enabled bool `json:"enabled"`

	LastValue string     `gorm:"size:255" json:"last_value"`
	LastRead  *time.Time `json:"last_read"`

	CreatedAt time.Time `json:"created_at"`
}

func (SNMPObject) TableName() string { return "snmp_object" }

// Writable reports whether the object's MIB access level permits SET.
func (o SNMPObject) Writable() bool {
	return strings.Contains(strings.ToLower(o.Access), "write")
}
