package eip

import (
	"context"
	"log/slog"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

// Board is the connection-liveness sink the adapter reports into.
type Board interface {
	Set(kind string, id uint, connected bool, message string)
}

// Adapter pairs a backend with the liveness board; it is what the rest of
// the bridge talks to. Only connect outcomes touch the board — read and
// write failures are the caller's to log, reconnection is the supervisor's.
type Adapter struct {
	backend Backend
	board   Board
	logger  *slog.Logger
}

// NewAdapter wires a backend to the board. A nil logger discards output.
func NewAdapter(backend Backend, board Board, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Adapter{backend: backend, board: board, logger: logger}
}

// Connect probes the controller and records the outcome on the board.
func (a *Adapter) Connect(ctx context.Context, dev models.EIPDevice) error {
	detail, err := a.backend.Connect(ctx, dev)
	if err != nil {
		a.board.Set(models.SourceEthernetIP, dev.ID, false, err.Error())
		a.logger.Warn("eip: connect failed", "device", dev.Name, "error", err)
		return err
	}
	a.board.Set(models.SourceEthernetIP, dev.ID, true, detail)
	a.logger.Info("eip: connected", "device", dev.Name, "detail", detail)
	return nil
}

// DiscoverTags enumerates the controller's tags.
func (a *Adapter) DiscoverTags(ctx context.Context, dev models.EIPDevice) ([]models.EIPTag, error) {
	return a.backend.ListTags(ctx, dev)
}

// ReadTag reads one element of a named tag.
func (a *Adapter) ReadTag(ctx context.Context, dev models.EIPDevice, tag models.EIPTag) (models.Value, error) {
	return a.backend.ReadTag(ctx, dev, tag)
}

// WriteTag writes a value, coerced per the tag's data-type label.
func (a *Adapter) WriteTag(ctx context.Context, dev models.EIPDevice, tag models.EIPTag, value string) error {
	return a.backend.WriteTag(ctx, dev, tag, value)
}

// Close releases the backend.
func (a *Adapter) Close() error { return a.backend.Close() }
