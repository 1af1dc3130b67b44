// Command bridge is the EtherNet/IP ↔ SNMP ↔ MQTT bridge binary.
//
// It loads configuration from bridge.yaml (or -config), applies BRIDGE_*
// environment variables and command-line flags on top, builds the full
// bridge, and runs until interrupted (SIGINT / SIGTERM).
//
// Usage:
//
//	bridge [flags]
//
// One-shot mode: -discover ethernetip/<id> (or snmp/<id>) enumerates the
// device's tags or walks its mib-2 subtree, replaces the device's stored
// data points with the result, and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/pkg/bridge/app"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/pkg/bridge/config"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/pkg/bridge/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bridge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ── Flags ────────────────────────────────────────────────────────────
	var (
		cfgPath string

		logLevel string
		logFmt   string

		dbDriver   string
		dbDSN      string
		eipBackend string
		seedPath   string

		retentionDays int
		pollerWorkers int

		trapOn        bool
		trapListen    string
		trapCommunity string

		statusOn     bool
		statusListen string

		auditPath       string
		auditMaxBytes   int64
		auditMaxBackups int

		discoverTarget string
	)

	flag.StringVar(&cfgPath, "config", "", "Config file path (default: ./bridge.yaml when present)")

	flag.StringVar(&logLevel, "log.level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&logFmt, "log.format", "json", "Log format: json, text")

	flag.StringVar(&dbDriver, "db.driver", "sqlite", "Database driver: sqlite, postgres")
	flag.StringVar(&dbDSN, "db.dsn", "bridge.db", "Database DSN (file path for sqlite)")
	flag.StringVar(&eipBackend, "eip.backend", "PYLOGIX", "EtherNet/IP backend: PYLOGIX, CPPPO, MOCK")
	flag.StringVar(&seedPath, "seed", "", "YAML seed file imported at startup")

	flag.IntVar(&retentionDays, "retention.days", 7, "Sample retention in days (0=keep forever)")
	flag.IntVar(&pollerWorkers, "poller.workers", 5, "Concurrent poll workers per protocol")

	flag.BoolVar(&trapOn, "trap.enabled", false, "Enable the SNMP trap listener")
	flag.StringVar(&trapListen, "trap.listen", "0.0.0.0:162", "Trap listener UDP address")
	flag.StringVar(&trapCommunity, "trap.community", "public", "Trap community (empty accepts all)")

	flag.BoolVar(&statusOn, "status.enabled", false, "Enable the HTTP status server")
	flag.StringVar(&statusListen, "status.listen", ":8080", "Status server listen address")

	flag.StringVar(&auditPath, "audit.path", "", "Publish audit JSONL file (empty=disabled)")
	flag.Int64Var(&auditMaxBytes, "audit.max.bytes", 10*1024*1024, "Max audit file size before rotation (0=unlimited)")
	flag.IntVar(&auditMaxBackups, "audit.max.backups", 5, "Rotated audit backups to keep (0=keep all)")

	flag.StringVar(&discoverTarget, "discover", "", "One-shot discovery: ethernetip/<id> or snmp/<id>, store the result, exit")

	flag.Parse()

	// ── Config file + environment, flags on top ──────────────────────────
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log.level":
			cfg.Log.Level = logLevel
		case "log.format":
			cfg.Log.Format = logFmt
		case "db.driver":
			cfg.DB.Driver = dbDriver
		case "db.dsn":
			cfg.DB.DSN = dbDSN
		case "eip.backend":
			cfg.EIP.Backend = eipBackend
		case "seed":
			cfg.Seed.Path = seedPath
		case "retention.days":
			cfg.Retention.Days = retentionDays
		case "poller.workers":
			cfg.Poller.Workers = pollerWorkers
		case "trap.enabled":
			cfg.Trap.Enabled = trapOn
		case "trap.listen":
			cfg.Trap.Listen = trapListen
		case "trap.community":
			cfg.Trap.Community = trapCommunity
		case "status.enabled":
			cfg.Status.Enabled = statusOn
		case "status.listen":
			cfg.Status.Listen = statusListen
		case "audit.path":
			cfg.Audit.Path = auditPath
		case "audit.max.bytes":
			cfg.Audit.MaxBytes = auditMaxBytes
		case "audit.max.backups":
			cfg.Audit.MaxBackups = auditMaxBackups
		}
	})

	// ── Logger ───────────────────────────────────────────────────────────
	logger, err := buildLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	// ── Build App ────────────────────────────────────────────────────────
	application := app.New(app.Config{
		Store:           store.Config{Driver: cfg.DB.Driver, DSN: cfg.DB.DSN},
		SeedPath:        cfg.Seed.Path,
		EIPBackend:      cfg.EIP.Backend,
		PollerWorkers:   cfg.Poller.Workers,
		RetentionDays:   cfg.Retention.Days,
		TrapEnabled:     cfg.Trap.Enabled,
		TrapListen:      cfg.Trap.Listen,
		TrapCommunity:   cfg.Trap.Community,
		StatusEnabled:   cfg.Status.Enabled,
		StatusListen:    cfg.Status.Listen,
		AuditPath:       cfg.Audit.Path,
		AuditMaxBytes:   cfg.Audit.MaxBytes,
		AuditMaxBackups: cfg.Audit.MaxBackups,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── One-shot discovery ───────────────────────────────────────────────
	if discoverTarget != "" {
		return application.Discover(ctx, discoverTarget)
	}

	// ── Start ────────────────────────────────────────────────────────────
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	logger.Info("bridge: running — press Ctrl-C to stop")

	// Block until signal.
	<-ctx.Done()
	logger.Info("bridge: received shutdown signal")

	application.Stop()
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func buildLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected json|text)", format)
	}

	return slog.New(handler), nil
}
