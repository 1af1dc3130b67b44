package snmp

import (
	"context"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/snmp/decoder"
)

// Walk bounds: enough to sketch what an agent exposes without trawling a
// full enterprise MIB.
const (
	// DefaultWalkBase is the mib-2 root walked when no base is given.
	DefaultWalkBase = "1.3.6.1.2.1"

	walkMaxEntries = 100
	walkCeiling    = 15 * time.Second
	walkValueLimit = 50
)

// Walk traverses the subtree under baseOID with GET-NEXT, returning one
// object per varbind seen. It stops at the first OID that leaves the base
// prefix, at walkMaxEntries, or when the wall-clock ceiling expires —
// whichever comes first — and returns whatever it collected by then.
func (a *Adapter) Walk(ctx context.Context, dev models.SNMPDevice, baseOID string) ([]models.SNMPObject, error) {
	base := strings.TrimPrefix(strings.TrimSpace(baseOID), ".")
	if base == "" {
		base = DefaultWalkBase
	}

	s, err := a.sessions(dev, probeTimeout, probeRetries)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	deadline := time.Now().Add(walkCeiling)
	objects := make([]models.SNMPObject, 0, walkMaxEntries)
	cur := base
	for len(objects) < walkMaxEntries {
		if err := ctx.Err(); err != nil {
			return objects, err
		}
		if time.Now().After(deadline) {
			a.logger.Warn("snmp: walk hit time ceiling", "device", dev.Name, "base", base, "entries", len(objects))
			break
		}

		pkt, err := s.GetNext([]string{cur})
		if err != nil {
			a.logger.Warn("snmp: walk aborted", "device", dev.Name, "oid", cur, "error", err)
			break
		}
		if len(pkt.Variables) == 0 {
			break
		}
		v := pkt.Variables[0]
		oid := strings.TrimPrefix(v.Name, ".")
		if oid == cur || !inSubtree(oid, base) {
			break
		}
		cur = oid

		if v.Type == gosnmp.EndOfMibView {
			break
		}
		if decoder.IsErrorType(v.Type) {
			continue
		}

		objects = append(objects, models.SNMPObject{
			OID:         oid,
			Name:        fallbackName(oid),
			Description: "SNMP OID: " + oid,
			DataType:    decoder.PDUTypeString(v.Type),
			Access:      "read-only",
			Status:      "current",
			Enabled:     true,
			LastValue:   clip(decoder.Render(v), walkValueLimit),
		})
	}

	a.logger.Info("snmp: walk complete", "device", dev.Name, "base", base, "entries", len(objects))
	return objects, nil
}

// inSubtree reports whether oid equals base or sits below it.
func inSubtree(oid, base string) bool {
	return oid == base || strings.HasPrefix(oid, base+".")
}

// fallbackName derives a stable object name from the OID's last arc. Without
// a MIB database there is nothing prettier to offer.
func fallbackName(oid string) string {
	if i := strings.LastIndex(oid, "."); i >= 0 {
		return "OID_" + oid[i+1:]
	}
	return "OID_" + oid
}
