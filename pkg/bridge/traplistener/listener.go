// Package traplistener implements the bridge's passive southbound input: a
// UDP listener for SNMP traps and informs.
//
// The polling engine asks devices for data on a schedule; the trap listener
// receives what devices push on their own initiative. Received traps are
// parsed (snmp/trap), resolved to a configured SNMP device by sender address,
// rendered as a JSON document, and published to
//
//	{publish_topic}/trap/{hwid}
//
// on every enabled, connected broker. Traps from hosts that no configured
// device claims are counted and dropped.
//
// The gosnmp handler callback must not block, so receipt and publishing are
// decoupled by a bounded queue: the handler enqueues, a dispatcher goroutine
// resolves and publishes. When the queue is full the trap is dropped.
package traplistener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
	snmptrap "github.com/priyankay2024/EthernetIP-SNMP-MQTT/snmp/trap"
)

// ─────────────────────────────────────────────────────────────────────────────
// Collaborator contracts
// ─────────────────────────────────────────────────────────────────────────────

// Store resolves trap senders and enumerates publish targets.
type Store interface {
	ListEnabledSNMPDevices(ctx context.Context) ([]models.SNMPDevice, error)
	ListEnabledMQTTBrokers(ctx context.Context) ([]models.MQTTBroker, error)
}

// Board reports broker liveness so traps are not published into dead
// connections.
type Board interface {
	Connected(kind string, id uint) bool
}

// Publisher delivers trap documents (the MQTT gateway).
type Publisher interface {
	Publish(broker models.MQTTBroker, topic string, payload []byte) error
}

// ParseFunc converts a raw SNMP packet into a TrapEvent. Tests inject stubs.
type ParseFunc func(pkt *gosnmp.SnmpPacket, addr *net.UDPAddr) (models.TrapEvent, error)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config controls the Listener.
type Config struct {
	Store     Store
	Board     Board
	Publisher Publisher

	// ListenAddr is the UDP address to bind (default "0.0.0.0:162").
	ListenAddr string

	// Community is the v1/v2c community for source validation. Empty accepts
	// every community.
	Community string

	// Version is the SNMP version the listener speaks (default Version2c).
	Version gosnmp.SnmpVersion

	// QueueSize is the pending-trap queue capacity (default 256).
	QueueSize int

	// CloseTimeout bounds the UDP socket close on Stop (default 3 s).
	CloseTimeout time.Duration

	// PublishTimeout bounds the store lookups and publishes for one trap
	// (default 10 s).
	PublishTimeout time.Duration

	// Observers are notified after each successful trap publish.
	Observers []func(models.PublishEvent)

	// ParseFunc replaces snmp/trap.Parse. Used in tests.
	ParseFunc ParseFunc
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.ListenAddr == "" {
		out.ListenAddr = "0.0.0.0:162"
	}
	if out.Version == 0 {
		out.Version = gosnmp.Version2c
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 256
	}
	if out.CloseTimeout == 0 {
		out.CloseTimeout = 3 * time.Second
	}
	if out.PublishTimeout <= 0 {
		out.PublishTimeout = 10 * time.Second
	}
	if out.ParseFunc == nil {
		out.ParseFunc = snmptrap.Parse
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Listener
// ─────────────────────────────────────────────────────────────────────────────

// Listener owns the UDP trap socket and the dispatcher that turns received
// traps into MQTT publishes.
type Listener struct {
	cfg    Config
	logger *slog.Logger

	queue    chan models.TrapEvent
	listener *gosnmp.TrapListener

	mu            sync.Mutex
	running       bool
	stopCh        chan struct{}
	listeningDone chan struct{}
	dispatchDone  chan struct{}
}

// New creates a Listener. Store, Board, and Publisher are required; a nil
// logger discards output.
func New(cfg Config, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	c := cfg.withDefaults()
	return &Listener{
		cfg:           c,
		logger:        logger,
		queue:         make(chan models.TrapEvent, c.QueueSize),
		stopCh:        make(chan struct{}),
		listeningDone: make(chan struct{}),
		dispatchDone:  make(chan struct{}),
	}
}

// Start binds the UDP socket and launches the dispatcher. It blocks until
// the listener is ready (or ctx is cancelled) and returns an error when the
// bind fails. Cancel ctx or call Stop to terminate.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("traplistener: already running")
	}
	l.running = true
	l.mu.Unlock()

	tl := gosnmp.NewTrapListener()
	tl.Params = &gosnmp.GoSNMP{
		Version:   l.cfg.Version,
		Community: l.cfg.Community,
		Logger:    gosnmp.NewLogger(slogAdapter{l.logger}),
	}
	tl.CloseTimeout = l.cfg.CloseTimeout
	tl.OnNewTrap = l.handleTrap
	l.listener = tl

	errCh := make(chan error, 1)
	go func() {
		defer close(l.listeningDone)
		errCh <- tl.Listen(l.cfg.ListenAddr)
	}()

	select {
	case <-tl.Listening():
		l.logger.Info("traplistener: listening", "addr", l.cfg.ListenAddr)
	case err := <-errCh:
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		return fmt.Errorf("traplistener: listen %s: %w", l.cfg.ListenAddr, err)
	case <-ctx.Done():
		tl.Close()
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		return ctx.Err()
	}

	go l.dispatch()
	go func() {
		select {
		case <-ctx.Done():
			l.Stop()
		case <-l.stopCh:
		}
	}()
	return nil
}

// Stop closes the socket and drains the dispatcher. Safe to call more than
// once.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.mu.Unlock()

	l.listener.Close()
	close(l.stopCh)
	<-l.listeningDone

	// The socket is closed, so nothing enqueues any more; let the dispatcher
	// finish what is queued.
	close(l.queue)
	<-l.dispatchDone

	l.logger.Info("traplistener: stopped")
}

// handleTrap runs on the gosnmp listener goroutine: parse, enqueue, return.
func (l *Listener) handleTrap(pkt *gosnmp.SnmpPacket, addr *net.UDPAddr) {
	ev, err := l.cfg.ParseFunc(pkt, addr)
	if err != nil {
		l.logger.Warn("traplistener: parse failed", "remote", addr.String(), "error", err.Error())
		return
	}

	select {
	case l.queue <- ev:
	default:
		l.logger.Warn("traplistener: queue full, trap dropped",
			"remote", addr.String(), "trap_oid", ev.TrapOID)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Dispatch
// ─────────────────────────────────────────────────────────────────────────────

// trapDocument is the published JSON shape, mirroring the data-plane envelope
// (HWID head, Timestamp tail).
type trapDocument struct {
	HWID      string               `json:"HWID"`
	Source    string               `json:"Source"`
	TrapOID   string               `json:"TrapOID"`
	Varbinds  []models.TrapVarbind `json:"Varbinds"`
	Timestamp string               `json:"Timestamp"`
}

func (l *Listener) dispatch() {
	defer close(l.dispatchDone)
	for ev := range l.queue {
		l.publish(ev)
	}
}

// publish resolves the trap sender and fans the document out to every
// connected broker with a publish topic.
func (l *Listener) publish(ev models.TrapEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.PublishTimeout)
	defer cancel()

	dev, ok := l.resolve(ctx, ev.SourceIP)
	if !ok {
		l.logger.Info("traplistener: trap from unconfigured host dropped",
			"source", ev.SourceIP, "trap_oid", ev.TrapOID)
		return
	}

	doc := trapDocument{
		HWID:      dev.HWIDOrID(),
		Source:    ev.SourceIP,
		TrapOID:   ev.TrapOID,
		Varbinds:  ev.Varbinds,
		Timestamp: models.Timestamp(ev.Timestamp),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		l.logger.Error("traplistener: encode failed", "hwid", doc.HWID, "error", err.Error())
		return
	}

	brokers, err := l.cfg.Store.ListEnabledMQTTBrokers(ctx)
	if err != nil {
		l.logger.Error("traplistener: list brokers failed", "error", err.Error())
		return
	}
	for _, b := range brokers {
		if b.PublishTopic == "" || !l.cfg.Board.Connected(models.SourceMQTT, b.ID) {
			continue
		}
		topic := b.PublishTopic + "/trap/" + doc.HWID
		if err := l.cfg.Publisher.Publish(b, topic, body); err != nil {
			l.logger.Warn("traplistener: publish failed",
				"broker", b.Name, "topic", topic, "error", err.Error())
			continue
		}
		l.logger.Info("traplistener: trap published",
			"broker", b.Name, "topic", topic, "trap_oid", ev.TrapOID)
		for _, obs := range l.cfg.Observers {
			obs(models.PublishEvent{Time: ev.Timestamp, Broker: b.Name, Topic: topic, Payload: string(body)})
		}
	}
}

// resolve matches the sender address against the configured SNMP devices.
func (l *Listener) resolve(ctx context.Context, sourceIP string) (models.SNMPDevice, bool) {
	devices, err := l.cfg.Store.ListEnabledSNMPDevices(ctx)
	if err != nil {
		l.logger.Error("traplistener: list devices failed", "error", err.Error())
		return models.SNMPDevice{}, false
	}
	for _, dev := range devices {
		if dev.Host == sourceIP {
			return dev, true
		}
	}
	return models.SNMPDevice{}, false
}

// ─────────────────────────────────────────────────────────────────────────────
// Utilities
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

// slogAdapter bridges slog.Logger to gosnmp's Printf-style logger.
type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Print(v ...interface{}) {
	a.l.Debug(fmt.Sprint(v...))
}

func (a slogAdapter) Printf(format string, v ...interface{}) {
	a.l.Debug(fmt.Sprintf(format, v...))
}
