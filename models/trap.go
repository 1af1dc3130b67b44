package models

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Trap events
// ─────────────────────────────────────────────────────────────────────────────

// TrapEvent is a received SNMP trap or inform, parsed into protocol-neutral
// form. The trap listener resolves the sender to a configured SNMPDevice and
// publishes the event on the trap topic.
type TrapEvent struct {
	Timestamp time.Time `json:"timestamp"`

	// SourceIP is the sender address — for v1 traps the PDU agent address
	// when present, otherwise the UDP source.
	SourceIP string `json:"source_ip"`

	// Version is the SNMP version the trap arrived with: "1", "2c", or "3".
	Version string `json:"version"`

	// TrapOID identifies the trap. For v1 it is synthesised from the
	// enterprise and trap codes per RFC 3584.
	TrapOID string `json:"trap_oid"`

	// EnterpriseOID, GenericTrap, and SpecificTrap carry the raw v1 header
	// fields; zero-valued for v2c/v3.
	EnterpriseOID string `json:"enterprise_oid,omitempty"`
	GenericTrap   int32  `json:"generic_trap,omitempty"`
	SpecificTrap  int32  `json:"specific_trap,omitempty"`

	// Varbinds are the payload bindings (standard sysUpTime/snmpTrapOID
	// bindings already stripped for v2c/v3).
	Varbinds []TrapVarbind `json:"varbinds"`
}

// TrapVarbind is one rendered variable binding from a trap PDU.
type TrapVarbind struct {
	OID   string `json:"oid"`
	Type  string `json:"type"`
	Value string `json:"value"`
}
