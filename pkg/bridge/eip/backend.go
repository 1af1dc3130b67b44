// Package eip drives EtherNet/IP controllers for the bridge: connection
// probes, tag discovery, and single-tag reads and writes. The wire work
// lives in the enip subpackage; this package owns backend selection, scoped
// sessions, and the mapping of controller failures onto the bridge's
// sentinel errors.
package eip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

// Sentinel failures callers branch on.
var (
	// ErrUnsupported marks operations this controller or slot can never
	// service, as opposed to transient faults worth retrying.
	ErrUnsupported = errors.New("eip: not supported on this controller/slot")
	// ErrTagNotFound marks reads and writes of symbols the controller does
	// not know.
	ErrTagNotFound = errors.New("eip: tag not found")
)

// Backend is the pluggable controller client behind the adapter. Every
// operation opens whatever transport it needs and releases it before
// returning; implementations hold no long-lived connection.
type Backend interface {
	// Connect issues a liveness probe and returns a status detail for the
	// connection board.
	Connect(ctx context.Context, dev models.EIPDevice) (string, error)
	// ListTags enumerates the controller's named tags.
	ListTags(ctx context.Context, dev models.EIPDevice) ([]models.EIPTag, error)
	// ReadTag reads one element of a named tag.
	ReadTag(ctx context.Context, dev models.EIPDevice, tag models.EIPTag) (models.Value, error)
	// WriteTag writes a value, coerced per the tag's data-type label.
	WriteTag(ctx context.Context, dev models.EIPDevice, tag models.EIPTag, value string) error
	// Close releases backend-wide resources.
	Close() error
}

// Select resolves a backend by name, case-insensitively: PYLOGIX (the full
// CIP client, default), CPPPO (minimal encapsulation client), or MOCK (the
// in-process simulator). The choice is fixed for the life of the process.
func Select(name string, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "PYLOGIX":
		return &logixBackend{logger: logger}, nil
	case "CPPPO":
		return &rawBackend{logger: logger}, nil
	case "MOCK":
		return newMockBackend(logger), nil
	}
	return nil, fmt.Errorf("eip: unknown backend %q (expected PYLOGIX|CPPPO|MOCK)", name)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
