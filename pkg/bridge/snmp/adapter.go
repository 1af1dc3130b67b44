package snmp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/snmp/decoder"
)

// oidSysDescr is the liveness probe target: every conformant agent answers
// it.
const oidSysDescr = "1.3.6.1.2.1.1.1.0"

// Probe timing. The ceiling bounds the whole exchange even when the agent
// dribbles retries.
const (
	probeTimeout = 2 * time.Second
	probeRetries = 1
	probeCeiling = 5 * time.Second
)

// Board is the connection-liveness sink the adapter reports into.
type Board interface {
	Set(kind string, id uint, connected bool, message string)
}

// ObjectStore is the slice of the config store the write-by-name path needs.
type ObjectStore interface {
	FindSNMPObjectByName(ctx context.Context, deviceID uint, name string) (models.SNMPObject, error)
	UpdateSNMPObjectReading(ctx context.Context, id uint, value string, ts time.Time) error
}

// Config assembles an Adapter. Sessions defaults to the production factory;
// tests inject scripted ones.
type Config struct {
	Store    ObjectStore
	Board    Board
	Logger   *slog.Logger
	Sessions SessionFactory
}

// Adapter is the bridge's SNMP access layer.
type Adapter struct {
	store    ObjectStore
	board    Board
	logger   *slog.Logger
	sessions SessionFactory
}

// New builds an Adapter from cfg.
func New(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = NewSession
	}
	return &Adapter{store: cfg.Store, board: cfg.Board, logger: logger, sessions: sessions}
}

// ─────────────────────────────────────────────────────────────────────────────
// Connect — sysDescr liveness probe
// ─────────────────────────────────────────────────────────────────────────────

// Connect probes the agent with a sysDescr GET and records the outcome on
// the board.
func (a *Adapter) Connect(ctx context.Context, dev models.SNMPDevice) error {
	descr, err := a.probe(ctx, dev)
	if err != nil {
		a.board.Set(models.SourceSNMP, dev.ID, false, err.Error())
		a.logger.Warn("snmp: connect failed", "device", dev.Name, "host", dev.Host, "error", err)
		return err
	}
	detail := "connected: " + clip(descr, 50)
	a.board.Set(models.SourceSNMP, dev.ID, true, detail)
	a.logger.Info("snmp: connected", "device", dev.Name, "host", dev.Host)
	return nil
}

func (a *Adapter) probe(ctx context.Context, dev models.SNMPDevice) (string, error) {
	s, err := a.sessions(dev, probeTimeout, probeRetries)
	if err != nil {
		return "", err
	}
	defer s.Close()

	var descr string
	err = guard(ctx, s, probeCeiling, func() error {
		pkt, err := s.Get([]string{oidSysDescr})
		if err != nil {
			return fmt.Errorf("snmp: sysDescr probe: %w", err)
		}
		if len(pkt.Variables) == 0 || decoder.IsErrorType(pkt.Variables[0].Type) {
			return fmt.Errorf("snmp: agent returned no sysDescr")
		}
		descr = decoder.Render(pkt.Variables[0])
		return nil
	})
	return descr, err
}

// ─────────────────────────────────────────────────────────────────────────────
// ReadObject — scalar GET
// ─────────────────────────────────────────────────────────────────────────────

// ReadObject reads one scalar OID and returns its display value.
func (a *Adapter) ReadObject(ctx context.Context, dev models.SNMPDevice, obj models.SNMPObject) (string, error) {
	s, err := a.sessions(dev, probeTimeout, probeRetries)
	if err != nil {
		return "", err
	}
	defer s.Close()

	var value string
	err = guard(ctx, s, probeCeiling, func() error {
		pkt, err := s.Get([]string{obj.OID})
		if err != nil {
			return fmt.Errorf("snmp: get %s: %w", obj.OID, err)
		}
		if len(pkt.Variables) == 0 {
			return fmt.Errorf("snmp: empty response for %s", obj.OID)
		}
		v := pkt.Variables[0]
		if decoder.IsErrorType(v.Type) {
			return fmt.Errorf("snmp: %s for %s", decoder.PDUTypeString(v.Type), obj.OID)
		}
		value = decoder.Render(v)
		return nil
	})
	return value, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Request ceiling
// ─────────────────────────────────────────────────────────────────────────────

// guard runs op with a wall-clock ceiling. gosnmp requests take no context,
// so on expiry the session is closed out from under the request, which
// unblocks it; the abandoned goroutine's result is dropped.
func guard(ctx context.Context, s Session, ceiling time.Duration, op func() error) error {
	done := make(chan error, 1)
	go func() { done <- op() }()

	t := time.NewTimer(ceiling)
	defer t.Stop()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = s.Close()
		return ctx.Err()
	case <-t.C:
		_ = s.Close()
		return fmt.Errorf("snmp: request exceeded %s ceiling", ceiling)
	}
}

// clip shortens s to at most n bytes for log and board messages.
func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
