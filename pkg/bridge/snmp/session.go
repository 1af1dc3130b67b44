// Package snmp drives the bridge's SNMP endpoints: the sysDescr liveness
// probe, subtree walks for object discovery, scalar reads, and SET dispatch
// with ASN.1 type coercion. Every operation builds a session, uses it, and
// closes it before returning; nothing here holds a long-lived socket.
package snmp

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

// Sentinel failures callers branch on.
var (
	// ErrUnsupported marks capabilities the bridge defers, SNMPv3 first
	// among them.
	ErrUnsupported = errors.New("snmp: not supported")
	// ErrTypeCoercion marks SET values that cannot be coerced to the
	// object's declared type. Coercion failures are never retried.
	ErrTypeCoercion = errors.New("snmp: type coercion failed")
	// ErrPermissionDenied marks writes to objects whose access level does
	// not allow them.
	ErrPermissionDenied = errors.New("snmp: write not permitted")
)

// ─────────────────────────────────────────────────────────────────────────────
// Session factory — SNMPDevice → connected client
// ─────────────────────────────────────────────────────────────────────────────

// Session is the slice of gosnmp the adapter uses, factored out so tests can
// stand in a scripted agent.
type Session interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	GetNext(oids []string) (*gosnmp.SnmpPacket, error)
	Set(pdus []gosnmp.SnmpPDU) (*gosnmp.SnmpPacket, error)
	Close() error
}

// SessionFactory opens a connected session against dev with a per-request
// timeout and retry count.
type SessionFactory func(dev models.SNMPDevice, timeout time.Duration, retries int) (Session, error)

// NewSession is the production factory: a connected gosnmp client speaking
// v1 or v2c community auth. SNMPv3 is deferred and reports ErrUnsupported.
func NewSession(dev models.SNMPDevice, timeout time.Duration, retries int) (Session, error) {
	port := dev.Port
	if port <= 0 {
		port = 161
	}
	g := &gosnmp.GoSNMP{
		Target:  dev.Host,
		Port:    uint16(port),
		Timeout: timeout,
		Retries: retries,
		MaxOids: 60,
	}

	switch strings.ToLower(strings.TrimSpace(dev.Version)) {
	case "", "v2c", "2c", "2":
		g.Version = gosnmp.Version2c
		g.Community = dev.Community
	case "v1", "1":
		g.Version = gosnmp.Version1
		g.Community = dev.Community
	case "v3", "3":
		return nil, fmt.Errorf("%w: SNMPv3", ErrUnsupported)
	default:
		return nil, fmt.Errorf("snmp: unsupported version %q", dev.Version)
	}

	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp: connect %s:%d: %w", dev.Host, dev.Port, err)
	}
	return gosnmpSession{g}, nil
}

// gosnmpSession adapts *gosnmp.GoSNMP to Session; the library exposes its
// socket as a bare field rather than a Close method.
type gosnmpSession struct {
	g *gosnmp.GoSNMP
}

func (s gosnmpSession) Get(oids []string) (*gosnmp.SnmpPacket, error) { return s.g.Get(oids) }

func (s gosnmpSession) GetNext(oids []string) (*gosnmp.SnmpPacket, error) { return s.g.GetNext(oids) }

func (s gosnmpSession) Set(pdus []gosnmp.SnmpPDU) (*gosnmp.SnmpPacket, error) { return s.g.Set(pdus) }

func (s gosnmpSession) Close() error { return s.g.Conn.Close() }
