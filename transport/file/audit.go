// Package file persists the bridge's publish audit trail: one JSON line per
// outbound MQTT message, appended to a size-rotated file.
//
// Pipeline position:
//
//	poller / traplistener  →  models.PublishEvent  →  transport/file (audit.jsonl)
//
// The audit log observes the publish path, it never gates it: a failed append
// is logged and the event dropped so broker traffic is unaffected.
package file

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// AuditConfig controls the audit log destination and rotation.
type AuditConfig struct {
	// Path is the active audit file (required), e.g. "audit.jsonl".
	Path string

	// MaxBytes triggers rotation when the active file would exceed this size.
	// Zero disables rotation.
	MaxBytes int64

	// MaxBackups is the number of rotated files to keep. Zero keeps all.
	MaxBackups int
}

// ─────────────────────────────────────────────────────────────────────────────
// AuditLog
// ─────────────────────────────────────────────────────────────────────────────

// AuditLog appends publish events to a rotating file as JSON lines. It is
// safe for concurrent use; line atomicity comes from the underlying
// RotatingFile, which serialises whole-buffer writes.
type AuditLog struct {
	file   *RotatingFile
	logger *slog.Logger
}

// NewAuditLog opens (or creates) the audit file at cfg.Path.
func NewAuditLog(cfg AuditConfig, logger *slog.Logger) (*AuditLog, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	rf, err := NewRotatingFile(RotateConfig{
		FilePath:   cfg.Path,
		MaxBytes:   cfg.MaxBytes,
		MaxBackups: cfg.MaxBackups,
	}, logger)
	if err != nil {
		return nil, err
	}
	return &AuditLog{file: rf, logger: logger}, nil
}

// Record appends one event as a single JSON line. Errors are logged as well
// as returned; callers on the publish path ignore them.
func (a *AuditLog) Record(ev models.PublishEvent) error {
	line, err := json.Marshal(ev)
	if err != nil {
		a.logger.Error("transport/file: audit encode failed", "topic", ev.Topic, "error", err.Error())
		return fmt.Errorf("transport/file: audit encode: %w", err)
	}
	line = append(line, '\n')

	if _, err := a.file.Write(line); err != nil {
		a.logger.Error("transport/file: audit write failed", "topic", ev.Topic, "error", err.Error())
		return fmt.Errorf("transport/file: audit write: %w", err)
	}
	return nil
}

// Observer adapts the log to the publish-observer callback shape used by the
// polling engine and trap listener. Failures are swallowed here — Record has
// already logged them.
func (a *AuditLog) Observer() func(models.PublishEvent) {
	return func(ev models.PublishEvent) { _ = a.Record(ev) }
}

// Close flushes and closes the underlying file.
func (a *AuditLog) Close() error {
	return a.file.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
