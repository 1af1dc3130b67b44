// Package app assembles the bridge and manages its lifecycle.
//
// Data path (southbound → northbound):
//
//	store (config) → poller.Engine → eip / snmp adapters → store (samples)
//	                              ↘ format/payload → mqtt.Gateway → brokers
//
// Command path (northbound → southbound):
//
//	broker → mqtt.Gateway subscriber → snmp.Adapter SET → confirmation topic
//
// The optional services — trap listener, status server, publish audit trail,
// sample retention — attach around that core. Endpoint reconnection belongs
// to the supervisor alone; nothing else in the process dials on failure.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/pkg/bridge/eip"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/pkg/bridge/mqtt"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/pkg/bridge/poller"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/pkg/bridge/snmp"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/pkg/bridge/status"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/pkg/bridge/store"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/pkg/bridge/supervisor"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/pkg/bridge/traplistener"
	filetransport "github.com/priyankay2024/EthernetIP-SNMP-MQTT/transport/file"
)

// stopTimeout is the per-component join ceiling during shutdown. A component
// that misses it is abandoned with an error log rather than hanging the
// process exit.
const stopTimeout = 5 * time.Second

// retentionSweep is the cadence of the sample purge loop.
const retentionSweep = 24 * time.Hour

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config holds the top-level settings for the bridge application.
// Zero-value fields fall back to documented defaults.
type Config struct {
	// Store selects the database backend (sqlite ./bridge.db by default).
	Store store.Config

	// SeedPath names a YAML bootstrap file imported during Start.
	// Empty skips the import.
	SeedPath string

	// EIPBackend selects the EtherNet/IP client: PYLOGIX, CPPPO, or MOCK
	// (case-insensitive). Default: PYLOGIX.
	EIPBackend string

	// PollerWorkers is the per-protocol poll concurrency. Default: 5.
	PollerWorkers int

	// RetentionDays is the sample age ceiling enforced by the daily purge.
	// 0 keeps samples forever.
	RetentionDays int

	// TrapEnabled starts the UDP trap listener.
	TrapEnabled   bool
	TrapListen    string
	TrapCommunity string

	// StatusEnabled starts the HTTP status server.
	StatusEnabled bool
	StatusListen  string

	// AuditPath enables the JSONL publish audit trail when non-empty.
	AuditPath       string
	AuditMaxBytes   int64
	AuditMaxBackups int
}

func (c *Config) withDefaults() {
	if c.TrapListen == "" {
		c.TrapListen = "0.0.0.0:162"
	}
	if c.StatusListen == "" {
		c.StatusListen = ":8080"
	}
	if c.RetentionDays < 0 {
		c.RetentionDays = 0
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// App
// ─────────────────────────────────────────────────────────────────────────────

// App owns every component of the bridge. Create one with New, start it with
// Start, and stop it with Stop.
type App struct {
	cfg    Config
	logger *slog.Logger

	// Core components (populated in Start).
	store       *store.SQLStore
	board       *supervisor.Board
	eipAdapter  *eip.Adapter
	snmpAdapter *snmp.Adapter
	gateway     *mqtt.Gateway
	engine      *poller.Engine
	sup         *supervisor.Supervisor

	// Optional services.
	audit     *filetransport.AuditLog
	traps     *traplistener.Listener
	statusSrv *status.Server

	// Lifecycle.
	cancel        context.CancelFunc
	retentionDone chan struct{}
}

// New constructs an App. It does not open or start anything — call Start.
func New(cfg Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	cfg.withDefaults()
	return &App{cfg: cfg, logger: logger}
}

// Board exposes the liveness board, populated once Start has run.
func (a *App) Board() *supervisor.Board { return a.board }

// Store exposes the opened store, populated once Start has run.
func (a *App) Store() *store.SQLStore { return a.store }

// Start opens the store, builds every component, performs the initial
// connection sweep, and launches the loops. It returns an error only for
// failures that leave the bridge unable to do anything useful: store open,
// seed import, unknown EIP backend. Endpoint connection failures are logged
// and left to the supervisor; optional services that fail to start are
// disabled with an error log.
//
// The caller must eventually call Stop to release resources.
func (a *App) Start(ctx context.Context) error {
	// ── 1. Open the store ───────────────────────────────────────────────
	st, err := store.Open(a.cfg.Store, a.logger)
	if err != nil {
		return fmt.Errorf("app: open store: %w", err)
	}
	a.store = st

	// ── 2. Optional seed import ─────────────────────────────────────────
	if a.cfg.SeedPath != "" {
		if err := st.Seed(ctx, a.cfg.SeedPath); err != nil {
			st.Close()
			return fmt.Errorf("app: seed: %w", err)
		}
	}

	// ── 3. Liveness board and protocol adapters ─────────────────────────
	a.board = supervisor.NewBoard()

	backend, err := eip.Select(a.cfg.EIPBackend, a.logger)
	if err != nil {
		st.Close()
		return fmt.Errorf("app: %w", err)
	}
	a.eipAdapter = eip.NewAdapter(backend, a.board, a.logger)

	a.snmpAdapter = snmp.New(snmp.Config{
		Store:  st,
		Board:  a.board,
		Logger: a.logger,
	})

	// ── 4. MQTT gateway ─────────────────────────────────────────────────
	a.gateway = mqtt.New(mqtt.Config{
		Board:  a.board,
		Store:  st,
		Writer: a.snmpAdapter,
		Logger: a.logger,
	})

	// ── 5. Optional audit trail and status server ───────────────────────
	var observers []poller.Observer
	var trapObservers []func(models.PublishEvent)

	if a.cfg.AuditPath != "" {
		audit, err := filetransport.NewAuditLog(filetransport.AuditConfig{
			Path:       a.cfg.AuditPath,
			MaxBytes:   a.cfg.AuditMaxBytes,
			MaxBackups: a.cfg.AuditMaxBackups,
		}, a.logger)
		if err != nil {
			a.logger.Error("app: audit trail disabled", "error", err.Error())
		} else {
			a.audit = audit
			observers = append(observers, poller.Observer(audit.Observer()))
			trapObservers = append(trapObservers, audit.Observer())
		}
	}

	if a.cfg.StatusEnabled {
		a.statusSrv = status.New(status.Config{
			Listen: a.cfg.StatusListen,
			Store:  st,
			Board:  a.board,
			Discover: status.Discovery{
				EIP:  a.discoverEIP,
				SNMP: a.discoverSNMP,
			},
		}, a.logger)
		observers = append(observers, poller.Observer(a.statusSrv.Observer()))
		trapObservers = append(trapObservers, a.statusSrv.Observer())
	}

	// ── 6. Polling engine and supervisor ────────────────────────────────
	a.engine = poller.New(poller.Config{
		Store:     st,
		Board:     a.board,
		EIP:       a.eipAdapter,
		SNMP:      a.snmpAdapter,
		Publisher: a.gateway,
		Workers:   a.cfg.PollerWorkers,
		Observers: observers,
	}, a.logger)

	a.sup = supervisor.New(supervisor.Config{
		Store:  st,
		Board:  a.board,
		EIP:    a.eipAdapter,
		SNMP:   a.snmpAdapter,
		MQTT:   a.gateway,
		Logger: a.logger,
	})

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	// ── 7. Command dispatch, then the initial connection sweep ──────────
	a.gateway.Start()
	a.connectAll(runCtx)

	// ── 8. Background loops ─────────────────────────────────────────────
	go a.sup.Start(runCtx)
	a.engine.Start(runCtx)

	// ── 9. Optional services ────────────────────────────────────────────
	if a.cfg.TrapEnabled {
		a.traps = traplistener.New(traplistener.Config{
			Store:      st,
			Board:      a.board,
			Publisher:  a.gateway,
			ListenAddr: a.cfg.TrapListen,
			Community:  a.cfg.TrapCommunity,
			Observers:  trapObservers,
		}, a.logger)
		if err := a.traps.Start(runCtx); err != nil {
			a.logger.Error("app: trap listener disabled", "error", err.Error())
			a.traps = nil
		}
	}

	if a.statusSrv != nil {
		if err := a.statusSrv.Start(); err != nil {
			a.logger.Error("app: status server disabled", "error", err.Error())
			a.statusSrv = nil
		}
	}

	if a.cfg.RetentionDays > 0 {
		a.retentionDone = make(chan struct{})
		go a.retentionLoop(runCtx)
	}

	a.logger.Info("app: bridge running",
		"backend", a.cfg.EIPBackend,
		"trap_enabled", a.traps != nil,
		"status_enabled", a.statusSrv != nil,
		"retention_days", a.cfg.RetentionDays,
	)
	return nil
}

// Stop performs a graceful shutdown.
//
// Order:
//  1. Cancel the run context (polling loops, supervisor, retention).
//  2. Join the polling engine (waits for in-flight poll tasks).
//  3. Join the supervisor sweep loop.
//  4. Stop the trap listener (drains its pending-trap queue).
//  5. Stop the gateway (subscribers → command dispatch → publishers).
//  6. Join the retention loop, stop the status server, close the audit
//     trail, the EIP backend, and the store.
//
// Every join is bounded by stopTimeout; a component that misses it is
// abandoned with an error log.
func (a *App) Stop() {
	a.logger.Info("app: shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	if a.engine != nil {
		a.join("poller", a.engine.Stop)
	}
	if a.sup != nil {
		a.join("supervisor", a.sup.Stop)
	}
	if a.traps != nil {
		a.join("traplistener", a.traps.Stop)
	}
	if a.gateway != nil {
		a.join("mqtt gateway", a.gateway.Stop)
	}
	if a.retentionDone != nil {
		a.join("retention", func() { <-a.retentionDone })
	}
	if a.statusSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		if err := a.statusSrv.Stop(ctx); err != nil {
			a.logger.Error("app: status server stop", "error", err.Error())
		}
		cancel()
	}
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			a.logger.Error("app: audit close", "error", err.Error())
		}
	}
	if a.eipAdapter != nil {
		if err := a.eipAdapter.Close(); err != nil {
			a.logger.Error("app: eip backend close", "error", err.Error())
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("app: store close", "error", err.Error())
		}
	}

	a.logger.Info("app: shutdown complete")
}

// join runs stop and waits at most stopTimeout for it to return.
func (a *App) join(what string, stop func()) {
	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		a.logger.Error("app: component did not stop in time", "component", what)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Initial connection sweep
// ─────────────────────────────────────────────────────────────────────────────

// connectAll performs the one-time startup sweep: every enabled endpoint gets
// a connection attempt, sequentially, and brokers with a subscribe topic get
// their command subscriber. Failures are recorded on the board and healed by
// the supervisor later; they never abort startup.
func (a *App) connectAll(ctx context.Context) {
	eipDevs, err := a.store.ListEnabledEIPDevices(ctx)
	if err != nil {
		a.logger.Error("app: list plc devices", "error", err.Error())
	}
	for _, dev := range eipDevs {
		if ctx.Err() != nil {
			return
		}
		_ = a.eipAdapter.Connect(ctx, dev)
	}

	snmpDevs, err := a.store.ListEnabledSNMPDevices(ctx)
	if err != nil {
		a.logger.Error("app: list snmp devices", "error", err.Error())
	}
	for _, dev := range snmpDevs {
		if ctx.Err() != nil {
			return
		}
		_ = a.snmpAdapter.Connect(ctx, dev)
	}

	brokers, err := a.store.ListEnabledMQTTBrokers(ctx)
	if err != nil {
		a.logger.Error("app: list brokers", "error", err.Error())
	}
	for _, b := range brokers {
		if ctx.Err() != nil {
			return
		}
		if err := a.gateway.ConnectBroker(ctx, b); err != nil {
			continue
		}
		if b.SubscribeTopic == "" {
			continue
		}
		if err := a.gateway.StartSubscriber(b); err != nil {
			a.logger.Warn("app: subscriber start failed", "broker", b.Name, "error", err.Error())
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Sample retention
// ─────────────────────────────────────────────────────────────────────────────

// retentionLoop purges over-age samples once immediately and then daily.
func (a *App) retentionLoop(ctx context.Context) {
	defer close(a.retentionDone)

	ticker := time.NewTicker(retentionSweep)
	defer ticker.Stop()
	for {
		a.purgeSamples(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) purgeSamples(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.RetentionDays)
	if _, err := a.store.PurgeSamplesBefore(ctx, cutoff); err != nil {
		a.logger.Error("app: sample purge failed", "error", err.Error())
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Discovery
// ─────────────────────────────────────────────────────────────────────────────

// discoverEIP backs the status server's read-only discovery endpoint.
func (a *App) discoverEIP(ctx context.Context, deviceID uint) ([]models.EIPTag, error) {
	dev, err := a.store.GetEIPDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return a.eipAdapter.DiscoverTags(ctx, dev)
}

// discoverSNMP backs the status server's read-only discovery endpoint with a
// mib-2 walk.
func (a *App) discoverSNMP(ctx context.Context, deviceID uint) ([]models.SNMPObject, error) {
	dev, err := a.store.GetSNMPDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return a.snmpAdapter.Walk(ctx, dev, "")
}

// Discover runs a one-shot discovery against one device and replaces its
// stored data points with the result. target is "ethernetip/<id>" or
// "snmp/<id>". It opens its own store and backend, so it runs on an App that
// was never started; backing the -discover flag of cmd/bridge.
func (a *App) Discover(ctx context.Context, target string) error {
	kind, id, err := parseTarget(target)
	if err != nil {
		return err
	}

	st, err := store.Open(a.cfg.Store, a.logger)
	if err != nil {
		return fmt.Errorf("app: open store: %w", err)
	}
	defer st.Close()

	switch kind {
	case models.SourceEthernetIP:
		backend, err := eip.Select(a.cfg.EIPBackend, a.logger)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		defer backend.Close()

		dev, err := st.GetEIPDevice(ctx, id)
		if err != nil {
			return fmt.Errorf("app: discover: %w", err)
		}
		tags, err := backend.ListTags(ctx, dev)
		if err != nil {
			return fmt.Errorf("app: discover tags on %s: %w", dev.Name, err)
		}
		if err := st.ReplaceEIPTags(ctx, id, tags); err != nil {
			return fmt.Errorf("app: discover: %w", err)
		}
		a.logger.Info("app: discovery stored", "device", dev.Name, "tags", len(tags))

	case models.SourceSNMP:
		adapter := snmp.New(snmp.Config{Store: st, Board: discardBoard{}, Logger: a.logger})
		dev, err := st.GetSNMPDevice(ctx, id)
		if err != nil {
			return fmt.Errorf("app: discover: %w", err)
		}
		objects, err := adapter.Walk(ctx, dev, "")
		if err != nil {
			return fmt.Errorf("app: walk %s: %w", dev.Name, err)
		}
		if err := st.ReplaceSNMPObjects(ctx, id, objects); err != nil {
			return fmt.Errorf("app: discover: %w", err)
		}
		a.logger.Info("app: discovery stored", "device", dev.Name, "objects", len(objects))
	}
	return nil
}

// parseTarget splits "ethernetip/3" into its kind and record ID.
func parseTarget(target string) (string, uint, error) {
	kind, rawID, ok := strings.Cut(target, "/")
	if !ok {
		return "", 0, fmt.Errorf("app: discover target %q: expected <type>/<id>", target)
	}
	if kind != models.SourceEthernetIP && kind != models.SourceSNMP {
		return "", 0, fmt.Errorf("app: discover target %q: type must be ethernetip or snmp", target)
	}
	id, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("app: discover target %q: id must be numeric", target)
	}
	return kind, uint(id), nil
}

// discardBoard satisfies the adapter board contract for one-shot commands
// where liveness tracking has no consumer.
type discardBoard struct{}

func (discardBoard) Set(string, uint, bool, string) {}

// ─────────────────────────────────────────────────────────────────────────────
// Utilities
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
