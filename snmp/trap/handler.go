// Package trap converts received SNMP trap and inform PDUs into the
// protocol-neutral models.TrapEvent the bridge publishes. It owns the
// differences between v1 and v2c/v3 trap formats but has no knowledge of UDP
// socket management — that is the trap listener's job.
package trap

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/snmp/decoder"
)

// oidSnmpTrapOID is snmpTrapOID.0 — the varbind whose value names a v2c/v3
// trap. OIDs are handled in no-leading-dot form throughout the bridge.
const oidSnmpTrapOID = "1.3.6.1.6.3.1.1.4.1.0"

// ─────────────────────────────────────────────────────────────────────────────
// Parse — main entry point
// ─────────────────────────────────────────────────────────────────────────────

// Parse converts a raw gosnmp packet received by the listener into a
// models.TrapEvent. The remoteAddr is the UDP source of the sender. Inform
// PDUs are treated identically to traps; acknowledging them is the caller's
// concern.
func Parse(pkt *gosnmp.SnmpPacket, remoteAddr *net.UDPAddr) (models.TrapEvent, error) {
	if pkt == nil {
		return models.TrapEvent{}, fmt.Errorf("trap: nil packet")
	}

	ev := models.TrapEvent{
		Timestamp: time.Now().UTC(),
		SourceIP:  sourceIP(pkt, remoteAddr),
		Version:   versionString(pkt.Version),
	}

	switch pkt.Version {
	case gosnmp.Version1:
		parseV1(pkt, &ev)
		ev.Varbinds = convertVarbinds(pkt.Variables)
	case gosnmp.Version2c, gosnmp.Version3:
		ev.Varbinds = convertVarbinds(parseV2(pkt, &ev))
	default:
		return ev, fmt.Errorf("trap: unsupported SNMP version %v", pkt.Version)
	}

	return ev, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Source and version
// ─────────────────────────────────────────────────────────────────────────────

// sourceIP prefers the explicit v1 agent address over the UDP sender, since
// v1 traps may be relayed.
func sourceIP(pkt *gosnmp.SnmpPacket, remoteAddr *net.UDPAddr) string {
	if pkt.Version == gosnmp.Version1 && pkt.AgentAddress != "" {
		return pkt.AgentAddress
	}
	if remoteAddr != nil {
		return remoteAddr.IP.String()
	}
	return ""
}

func versionString(v gosnmp.SnmpVersion) string {
	switch v {
	case gosnmp.Version1:
		return "1"
	case gosnmp.Version2c:
		return "2c"
	case gosnmp.Version3:
		return "3"
	default:
		return "unknown"
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// v1 trap parsing
// ─────────────────────────────────────────────────────────────────────────────

// parseV1 fills the v1 header fields and synthesises the trap OID following
// the v1-to-v2 mapping from RFC 3584 §3.1:
//
//	generic 0-5 → standard OID 1.3.6.1.6.3.1.1.5.<generic+1>
//	generic 6   → enterprise-specific <enterprise>.0.<specific>
func parseV1(pkt *gosnmp.SnmpPacket, ev *models.TrapEvent) {
	ev.EnterpriseOID = normaliseOID(pkt.Enterprise)
	ev.GenericTrap = int32(pkt.GenericTrap)
	ev.SpecificTrap = int32(pkt.SpecificTrap)

	if pkt.GenericTrap >= 0 && pkt.GenericTrap < 6 {
		ev.TrapOID = fmt.Sprintf("1.3.6.1.6.3.1.1.5.%d", pkt.GenericTrap+1)
	} else {
		ev.TrapOID = fmt.Sprintf("%s.0.%d", ev.EnterpriseOID, pkt.SpecificTrap)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// v2c / v3 trap parsing
// ─────────────────────────────────────────────────────────────────────────────

// parseV2 extracts the trap OID from the standard snmpTrapOID.0 varbind and
// returns the payload varbinds that follow it. Agents that omit the standard
// bindings are tolerated: all varbinds become payload.
func parseV2(pkt *gosnmp.SnmpPacket, ev *models.TrapEvent) []gosnmp.SnmpPDU {
	for i, v := range pkt.Variables {
		if normaliseOID(v.Name) != oidSnmpTrapOID {
			continue
		}
		ev.TrapOID = normaliseOID(fmt.Sprintf("%v", v.Value))
		return pkt.Variables[i+1:]
	}
	return pkt.Variables
}

// ─────────────────────────────────────────────────────────────────────────────
// Varbind conversion
// ─────────────────────────────────────────────────────────────────────────────

// convertVarbinds renders payload varbinds, skipping error sentinels.
func convertVarbinds(pdus []gosnmp.SnmpPDU) []models.TrapVarbind {
	out := make([]models.TrapVarbind, 0, len(pdus))
	for _, pdu := range pdus {
		if decoder.IsErrorType(pdu.Type) {
			continue
		}
		out = append(out, models.TrapVarbind{
			OID:   normaliseOID(pdu.Name),
			Type:  decoder.PDUTypeString(pdu.Type),
			Value: decoder.Render(pdu),
		})
	}
	return out
}

// normaliseOID strips surrounding whitespace, a leading dot, and any trailing
// dot. OIDs travel through the bridge in the bare dotted form.
func normaliseOID(oid string) string {
	oid = strings.TrimSpace(oid)
	oid = strings.TrimPrefix(oid, ".")
	return strings.TrimSuffix(oid, ".")
}
