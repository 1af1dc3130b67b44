// Package mqtt owns every broker-facing socket in the bridge: lazily created
// publisher clients for outbound data, persistent subscriber clients for
// inbound write commands, and the dispatch loop that turns those commands
// into SNMP SETs. Clients never auto-reconnect; the connection supervisor is
// the only healer.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

const (
	connectTimeout    = 5 * time.Second
	connectPoll       = 100 * time.Millisecond
	disconnectQuiesce = 250 // milliseconds, paho's Disconnect unit

	// commandQueueCap bounds the inbound command buffer. When dispatch
	// falls behind, newer commands are dropped with a warning.
	commandQueueCap = 64
)

// Board is the connection-liveness sink the gateway reports into.
type Board interface {
	Set(kind string, id uint, connected bool, message string)
}

// DeviceFinder resolves a command's hardware ID to an SNMP device record.
type DeviceFinder interface {
	FindSNMPDeviceByHWID(ctx context.Context, hwid string) (models.SNMPDevice, error)
}

// SNMPWriter applies a write command to a device parameter.
type SNMPWriter interface {
	WriteByName(ctx context.Context, dev models.SNMPDevice, name, value string) (models.SNMPObject, error)
}

// ClientFactory builds a paho client from options. The production factory is
// paho.NewClient; tests substitute scripted clients.
type ClientFactory func(opts *paho.ClientOptions) paho.Client

// Config assembles a Gateway.
type Config struct {
	Board  Board
	Store  DeviceFinder
	Writer SNMPWriter
	Logger *slog.Logger

	// Clients defaults to paho.NewClient.
	Clients ClientFactory

	// ConnectTimeout overrides the 5 s connect latch; tests shorten it.
	ConnectTimeout time.Duration
}

// Gateway is the bridge's MQTT access layer.
type Gateway struct {
	board   Board
	store   DeviceFinder
	writer  SNMPWriter
	logger  *slog.Logger
	clients ClientFactory
	timeout time.Duration

	mu         sync.Mutex
	publishers map[uint]paho.Client

	subMu       sync.Mutex
	subscribers map[uint]paho.Client

	commands chan command

	runMu   sync.Mutex
	running bool
	quit    chan struct{}
	done    chan struct{}
}

// New builds a Gateway from cfg. Call Start to begin draining inbound
// commands.
func New(cfg Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	clients := cfg.Clients
	if clients == nil {
		clients = paho.NewClient
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = connectTimeout
	}
	return &Gateway{
		board:       cfg.Board,
		store:       cfg.Store,
		writer:      cfg.Writer,
		logger:      logger,
		clients:     clients,
		timeout:     timeout,
		publishers:  make(map[uint]paho.Client),
		subscribers: make(map[uint]paho.Client),
		commands:    make(chan command, commandQueueCap),
	}
}

// Start launches the command dispatch goroutine. Calling it twice is a no-op.
func (g *Gateway) Start() {
	g.runMu.Lock()
	defer g.runMu.Unlock()
	if g.running {
		return
	}
	g.running = true
	g.quit = make(chan struct{})
	g.done = make(chan struct{})
	go g.dispatchLoop()
}

// Stop tears the gateway down: subscribers first so no new commands arrive,
// then the dispatch loop, then the publisher pool. Commands still queued at
// that point are discarded. Calling Stop twice, or before Start, is a no-op.
func (g *Gateway) Stop() {
	g.runMu.Lock()
	defer g.runMu.Unlock()
	g.stopAllSubscribers()
	if g.running {
		g.running = false
		close(g.quit)
		<-g.done
	}
	g.closePublishers()
}

// ─────────────────────────────────────────────────────────────────────────────
// Publisher pool
// ─────────────────────────────────────────────────────────────────────────────

// Publish sends payload to topic on the broker, QoS 0, creating the broker's
// persistent publisher on first use. Any failure evicts the publisher so the
// next call starts from a fresh connect.
func (g *Gateway) Publish(broker models.MQTTBroker, topic string, payload []byte) error {
	client, err := g.publisher(broker)
	if err != nil {
		return err
	}
	if !client.IsConnected() {
		g.evict(broker.ID)
		return fmt.Errorf("mqtt: broker %s not connected", broker.Name)
	}
	// QoS 0 has no PUBACK; only synchronous failures are visible.
	if t := client.Publish(topic, 0, false, payload); t.Error() != nil {
		g.evict(broker.ID)
		return fmt.Errorf("mqtt: publish to %s: %w", topic, t.Error())
	}
	return nil
}

func (g *Gateway) publisher(broker models.MQTTBroker) (paho.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.publishers[broker.ID]; ok {
		return c, nil
	}

	c := g.clients(g.options(broker, "bridge-pub-"+uuid.NewString()))
	t := c.Connect()
	if !t.WaitTimeout(g.timeout) {
		c.Disconnect(0)
		return nil, fmt.Errorf("mqtt: connect %s: timeout", broker.Name)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", broker.Name, err)
	}
	g.publishers[broker.ID] = c
	g.logger.Debug("mqtt: publisher created", "broker", broker.Name)
	return c, nil
}

func (g *Gateway) evict(brokerID uint) {
	g.mu.Lock()
	c, ok := g.publishers[brokerID]
	if ok {
		delete(g.publishers, brokerID)
	}
	g.mu.Unlock()
	if ok {
		c.Disconnect(disconnectQuiesce)
		g.logger.Debug("mqtt: publisher evicted", "broker_id", brokerID)
	}
}

func (g *Gateway) closePublishers() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, c := range g.publishers {
		c.Disconnect(disconnectQuiesce)
		delete(g.publishers, id)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ConnectBroker — reachability test
// ─────────────────────────────────────────────────────────────────────────────

// ConnectBroker tests the broker with an ephemeral client, waiting on the
// connected latch up to the connect timeout, and records the outcome on the
// board. The test client is disconnected regardless of outcome.
func (g *Gateway) ConnectBroker(ctx context.Context, broker models.MQTTBroker) error {
	c := g.clients(g.options(broker, "bridge-test-"+uuid.NewString()))
	defer c.Disconnect(disconnectQuiesce)

	t := c.Connect()
	deadline := time.Now().Add(g.timeout)
	for !c.IsConnected() {
		if err := ctx.Err(); err != nil {
			g.board.Set(models.SourceMQTT, broker.ID, false, err.Error())
			return err
		}
		if time.Now().After(deadline) {
			g.board.Set(models.SourceMQTT, broker.ID, false, "connection timeout")
			g.logger.Warn("mqtt: broker test timed out", "broker", broker.Name)
			return fmt.Errorf("mqtt: connect %s: timeout", broker.Name)
		}
		if t.WaitTimeout(connectPoll) {
			if err := t.Error(); err != nil {
				g.board.Set(models.SourceMQTT, broker.ID, false, err.Error())
				g.logger.Warn("mqtt: broker test failed", "broker", broker.Name, "error", err)
				return fmt.Errorf("mqtt: connect %s: %w", broker.Name, err)
			}
		}
	}

	g.board.Set(models.SourceMQTT, broker.ID, true, "connected")
	g.logger.Info("mqtt: broker reachable", "broker", broker.Name, "host", broker.Broker)
	return nil
}

// options builds paho options for one broker record. Auto-reconnect stays
// off for every client kind.
func (g *Gateway) options(b models.MQTTBroker, clientID string) *paho.ClientOptions {
	scheme := "tcp"
	if b.UseTLS {
		scheme = "ssl"
	}
	port := b.Port
	if port <= 0 {
		port = 1883
	}
	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, b.Broker, port))
	opts.SetClientID(clientID)
	opts.SetConnectTimeout(g.timeout)
	opts.SetAutoReconnect(false)
	if b.Username != "" {
		opts.SetUsername(b.Username)
		opts.SetPassword(b.Password)
	}
	return opts
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
