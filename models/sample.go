package models

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Source kinds
// ─────────────────────────────────────────────────────────────────────────────

// Source kind identifiers. They key the liveness board, tag samples in the
// data log, and appear verbatim in status output.
const (
	SourceEthernetIP = "ethernetip"
	SourceSNMP       = "snmp"
	SourceMQTT       = "mqtt"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sample
// ─────────────────────────────────────────────────────────────────────────────

// Sample is one successfully read value, appended to the data log by the
// polling engine. SourceType is SourceEthernetIP or SourceSNMP; SourceID is
// the data point record ID (EIPTag.ID or SNMPObject.ID).
type Sample struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SourceType string    `gorm:"size:20;not null;index:idx_data_log_source,priority:1" json:"source_type"`
	SourceID   uint      `gorm:"not null;index:idx_data_log_source,priority:2" json:"source_id"`
	SourceName string    `gorm:"size:255;not null" json:"source_name"`
	Value      string    `gorm:"size:500" json:"value"`
	Timestamp  time.Time `gorm:"index;index:idx_data_log_source,priority:3" json:"timestamp"`
}

func (Sample) TableName() string { return "data_log" }
