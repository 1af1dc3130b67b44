// Package models defines the persistent record types and shared value types of
// the protocol bridge. Every other package depends on this package and nothing
// here depends on any other internal package.
//
// The record types map 1:1 onto the relational tables managed by the store
// (GORM models with explicit TableName methods so that the schema matches the
// historical table names the bridge has always used).
package models

import (
	"strconv"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Endpoint records
// ─────────────────────────────────────────────────────────────────────────────

// EIPDevice is a configured EtherNet/IP controller (PLC).
type EIPDevice struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;not null" json:"name"`

	// IPAddress is the controller address. Required.
	IPAddress string `gorm:"size:45;not null" json:"ip_address"`

	// Slot is the backplane slot of the CPU module (0 for CompactLogix).
	Slot int `json:"slot"`

	// Timeout is the per-operation socket timeout in seconds.
	Timeout float64 `json:"timeout"`

	// HWID is the stable external identifier used in publish topics and
	// payloads. Falls back to the numeric ID when empty — see HWIDOrID.
	HWID string `gorm:"column:hwid;size:100" json:"hwid"`

	// PollingInterval is the minimum time between poll cycles, milliseconds.
	PollingInterval int `json:"polling_interval"`

	Description string `gorm:"size:255" json:"description"`
	Enabled     bool   `json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (EIPDevice) TableName() string { return "ethernet_ip_config" }

// HWIDOrID returns the device HWID, or the decimal record ID when no HWID is
// configured. This is the identity used in topic suffixes and payloads.
func (d EIPDevice) HWIDOrID() string {
	if d.HWID != "" {
		return d.HWID
	}
	return strconv.FormatUint(uint64(d.ID), 10)
}

// Interval returns PollingInterval as a duration (default 1 s when unset).
func (d EIPDevice) Interval() time.Duration {
	if d.PollingInterval <= 0 {
		return time.Second
	}
	return time.Duration(d.PollingInterval) * time.Millisecond
}

// SocketTimeout returns the per-operation socket timeout (default 5 s).
func (d EIPDevice) SocketTimeout() time.Duration {
	if d.Timeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(d.Timeout * float64(time.Second))
}

// SNMPDevice is a configured SNMP agent.
type SNMPDevice struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;not null" json:"name"`

	// Host is the agent address (IP or hostname). Required.
	Host string `gorm:"size:255;not null" json:"host"`

	// Port is the agent UDP port (default 161).
	Port int `json:"port"`

	// Community is the v1/v2c community string (default "public").
	Community string `gorm:"size:100" json:"community"`

	// Version is the SNMP protocol version: "v1", "v2c", or "v3".
	// v3 is accepted in configuration but rejected by the adapter.
	Version string `gorm:"size:10" json:"version"`

	HWID string `gorm:"column:hwid;size:100" json:"hwid"`

	// PollingInterval is the minimum time between poll cycles, milliseconds.
	PollingInterval int `json:"polling_interval"`

	Description string `gorm:"size:255" json:"description"`
	Enabled     bool   `json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SNMPDevice) TableName() string { return "snmp_config" }

// HWIDOrID returns the device HWID, or the decimal record ID when no HWID is
// configured.
func (d SNMPDevice) HWIDOrID() string {
	if d.HWID != "" {
		return d.HWID
	}
	return strconv.FormatUint(uint64(d.ID), 10)
}

// Interval returns PollingInterval as a duration (default 5 s when unset).
func (d SNMPDevice) Interval() time.Duration {
	if d.PollingInterval <= 0 {
		return 5 * time.Second
	}
	return time.Duration(d.PollingInterval) * time.Millisecond
}

// MQTTBroker is a configured MQTT broker connection.
type MQTTBroker struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;not null" json:"name"`

	// Broker is the broker hostname or IP. Required.
	Broker string `gorm:"size:255;not null" json:"broker"`

	// Port is the broker TCP port (default 1883).
	Port int `json:"port"`

	Username string `gorm:"size:100" json:"username"`
	Password string `gorm:"size:255" json:"password"`

	// PublishTopic is the root topic for outbound data. Per-device messages go
	// to "{PublishTopic}/{hwid}"; confirmations to "{PublishTopic}/confirmation".
	// Publishing is skipped entirely when empty.
	PublishTopic string `gorm:"size:255" json:"publish_topic"`

	// SubscribeTopic is the root topic for inbound write commands. The
	// subscriber listens on "{SubscribeTopic}/#"; no subscriber is started
	// when empty.
	SubscribeTopic string `gorm:"size:255" json:"subscribe_topic"`

	// PublishFormat selects the outbound payload encoding: "json" (default)
	// or "string" (CSV line).
	PublishFormat string `gorm:"size:20" json:"publish_format"`

	// PublishInterval is advisory, seconds. Publishing is driven by the poll
	// cycle, not by this value.
	PublishInterval int `json:"publish_interval"`

	UseTLS  bool `gorm:"column:use_tls" json:"use_tls"`
	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MQTTBroker) TableName() string { return "mqtt_config" }

// Format returns the normalized publish format: "json" unless the record
// explicitly selects "string".
func (b MQTTBroker) Format() string {
	if b.PublishFormat == "string" {
		return "string"
	}
	return "json"
}
