package snmp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

// Write timing. SETs get a longer leash than polls: an operator asked for
// this one, and a transient drop should not fail it.
const (
	writeTimeout = 5 * time.Second
	writeRetries = 2
	writeCeiling = 8 * time.Second
)

// Write issues an SNMP SET for obj, coercing value to the object's declared
// data type first. A coercion failure is reported without touching the wire
// and must not be retried; the value will never become valid on its own.
func (a *Adapter) Write(ctx context.Context, dev models.SNMPDevice, obj models.SNMPObject, value string) error {
	pdu, err := coerce(obj.OID, obj.DataType, value)
	if err != nil {
		return err
	}

	s, err := a.sessions(dev, writeTimeout, writeRetries)
	if err != nil {
		return err
	}
	defer s.Close()

	err = guard(ctx, s, writeCeiling, func() error {
		pkt, err := s.Set([]gosnmp.SnmpPDU{pdu})
		if err != nil {
			return fmt.Errorf("snmp: set %s: %w", obj.OID, err)
		}
		if pkt.Error != gosnmp.NoError {
			return fmt.Errorf("snmp: set %s rejected by agent: %s", obj.OID, errorStatusText(pkt.Error))
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.logger.Info("snmp: set applied", "device", dev.Name, "object", obj.Name, "oid", obj.OID, "value", value)
	return nil
}

// WriteByName resolves name against the device's configured objects, checks
// the object's access level, performs the SET, and records the written value
// as the object's latest reading. A persistence failure after a successful
// SET is logged, not returned; the device state already changed.
func (a *Adapter) WriteByName(ctx context.Context, dev models.SNMPDevice, name, value string) (models.SNMPObject, error) {
	obj, err := a.store.FindSNMPObjectByName(ctx, dev.ID, name)
	if err != nil {
		return models.SNMPObject{}, err
	}
	if !obj.Writable() {
		return obj, fmt.Errorf("%w: parameter %q is read-only", ErrPermissionDenied, name)
	}
	if err := a.Write(ctx, dev, obj, value); err != nil {
		return obj, err
	}
	if err := a.store.UpdateSNMPObjectReading(ctx, obj.ID, value, time.Now().UTC()); err != nil {
		a.logger.Warn("snmp: set applied but not persisted", "object", obj.Name, "error", err)
	}
	return obj, nil
}

// coerce maps value onto the ASN.1 type implied by the object's MIB syntax
// label. Labels are compared upper-cased with spaces stripped, so
// "Octet String" and "OCTETSTRING" coerce alike. Unknown labels fall back
// to OctetString.
func coerce(oid, dataType, value string) (gosnmp.SnmpPDU, error) {
	pdu := gosnmp.SnmpPDU{Name: oid}
	switch strings.ToUpper(strings.ReplaceAll(dataType, " ", "")) {
	case "INTEGER", "INT", "COUNTER32", "GAUGE32":
		n, err := strconv.Atoi(value)
		if err != nil {
			return pdu, coercionErr(dataType)
		}
		pdu.Type = gosnmp.Integer
		pdu.Value = n
	case "STRING", "OCTETSTRING", "DISPLAYSTRING":
		pdu.Type = gosnmp.OctetString
		pdu.Value = value
	case "COUNTER64":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return pdu, coercionErr(dataType)
		}
		pdu.Type = gosnmp.Counter64
		pdu.Value = n
	case "UNSIGNED32":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return pdu, coercionErr(dataType)
		}
		pdu.Type = gosnmp.Uinteger32
		pdu.Value = uint32(n)
	case "IPADDRESS":
		if ip := net.ParseIP(value); ip == nil || ip.To4() == nil {
			return pdu, coercionErr(dataType)
		}
		pdu.Type = gosnmp.IPAddress
		pdu.Value = value
	default:
		pdu.Type = gosnmp.OctetString
		pdu.Value = value
	}
	return pdu, nil
}

func coercionErr(dataType string) error {
	return fmt.Errorf("%w: invalid value for data type %s", ErrTypeCoercion, dataType)
}

// errorStatusText names the SNMP error-status codes an agent can return in
// a SET response.
func errorStatusText(e gosnmp.SNMPError) string {
	switch e {
	case gosnmp.TooBig:
		return "tooBig"
	case gosnmp.NoSuchName:
		return "noSuchName"
	case gosnmp.BadValue:
		return "badValue"
	case gosnmp.ReadOnly:
		return "readOnly"
	case gosnmp.GenErr:
		return "genErr"
	case gosnmp.NoAccess:
		return "noAccess"
	case gosnmp.WrongType:
		return "wrongType"
	case gosnmp.WrongLength:
		return "wrongLength"
	case gosnmp.WrongEncoding:
		return "wrongEncoding"
	case gosnmp.WrongValue:
		return "wrongValue"
	case gosnmp.NoCreation:
		return "noCreation"
	case gosnmp.InconsistentValue:
		return "inconsistentValue"
	case gosnmp.ResourceUnavailable:
		return "resourceUnavailable"
	case gosnmp.CommitFailed:
		return "commitFailed"
	case gosnmp.UndoFailed:
		return "undoFailed"
	case gosnmp.AuthorizationError:
		return "authorizationError"
	case gosnmp.NotWritable:
		return "notWritable"
	case gosnmp.InconsistentName:
		return "inconsistentName"
	default:
		return fmt.Sprintf("error status %d", e)
	}
}
