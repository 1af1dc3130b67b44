// Package poller implements the bridge's data plane: two independent polling
// loops — one for EtherNet/IP controllers, one for SNMP agents — that read
// every enabled data point of every enabled, connected device, persist the
// results, and fan each device's aggregate out to every connected MQTT broker.
//
// Pipeline position:
//
//	store (config) → [poller] → eip / snmp adapters → store (last values, samples)
//	                         ↘ format/payload → mqtt.Gateway → brokers
//
// Each loop runs short fixed cycles (half a second apart) and relies on a
// per-device interval gate to honour each device's configured polling
// interval, so one slow device never delays another and interval changes take
// effect without a restart. Within a protocol, cycles never overlap: a cycle
// waits for all of its device tasks before the next one starts.
//
// The loops are deliberately crash-proof: list failures, read failures, and
// even panics inside a cycle are logged and absorbed, and the loop carries on
// after a longer idle sleep.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Defaults
// ─────────────────────────────────────────────────────────────────────────────

const (
	// defaultWorkers bounds per-protocol read concurrency.
	defaultWorkers = 5

	// defaultTaskTimeout is the hard ceiling on one device's poll task.
	defaultTaskTimeout = 10 * time.Second

	// defaultCycleDelay is the pause between cycles when devices exist.
	defaultCycleDelay = 500 * time.Millisecond

	// defaultIdleDelay is the pause after an empty or failed cycle.
	defaultIdleDelay = 5 * time.Second

	// defaultLogEvery throttles per-device publish success logging.
	defaultLogEvery = 30 * time.Second
)

// ─────────────────────────────────────────────────────────────────────────────
// Collaborator contracts
// ─────────────────────────────────────────────────────────────────────────────

// Store is the slice of the persistence layer the engine uses.
type Store interface {
	ListEnabledEIPDevices(ctx context.Context) ([]models.EIPDevice, error)
	ListEnabledSNMPDevices(ctx context.Context) ([]models.SNMPDevice, error)
	ListEnabledMQTTBrokers(ctx context.Context) ([]models.MQTTBroker, error)
	GetEIPDevice(ctx context.Context, id uint) (models.EIPDevice, error)
	GetSNMPDevice(ctx context.Context, id uint) (models.SNMPDevice, error)
	ListEIPTags(ctx context.Context, deviceID uint, enabledOnly bool) ([]models.EIPTag, error)
	ListSNMPObjects(ctx context.Context, deviceID uint, enabledOnly bool) ([]models.SNMPObject, error)
	UpdateEIPTagReading(ctx context.Context, id uint, value string, ts time.Time) error
	UpdateSNMPObjectReading(ctx context.Context, id uint, value string, ts time.Time) error
	AppendSample(ctx context.Context, sourceType string, sourceID uint, name, value string, ts time.Time) error
}

// Board reports endpoint liveness. Devices and brokers that are not marked
// connected are skipped; reconnection is the supervisor's job, never ours.
type Board interface {
	Connected(kind string, id uint) bool
}

// EIPReader reads controller tags.
type EIPReader interface {
	ReadTag(ctx context.Context, dev models.EIPDevice, tag models.EIPTag) (models.Value, error)
}

// SNMPReader reads agent objects.
type SNMPReader interface {
	ReadObject(ctx context.Context, dev models.SNMPDevice, obj models.SNMPObject) (string, error)
}

// Publisher delivers outbound payloads (the MQTT gateway).
type Publisher interface {
	Publish(broker models.MQTTBroker, topic string, payload []byte) error
}

// Observer receives a copy of every successful publish. Observers must not
// block; they run on the polling worker.
type Observer func(models.PublishEvent)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config wires the engine's collaborators and timing knobs.
type Config struct {
	Store     Store
	Board     Board
	EIP       EIPReader
	SNMP      SNMPReader
	Publisher Publisher

	// Workers is the per-protocol worker count (default 5).
	Workers int

	// TaskTimeout is the per-device poll ceiling (default 10 s).
	TaskTimeout time.Duration

	// CycleDelay is the pause between cycles (default 500 ms).
	CycleDelay time.Duration

	// IdleDelay is the pause after an empty or failed cycle (default 5 s).
	IdleDelay time.Duration

	// LogEvery is the publish success log throttle window (default 30 s).
	LogEvery time.Duration

	// Observers are notified after each successful publish.
	Observers []Observer
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Workers <= 0 {
		out.Workers = defaultWorkers
	}
	if out.TaskTimeout <= 0 {
		out.TaskTimeout = defaultTaskTimeout
	}
	if out.CycleDelay <= 0 {
		out.CycleDelay = defaultCycleDelay
	}
	if out.IdleDelay <= 0 {
		out.IdleDelay = defaultIdleDelay
	}
	if out.LogEvery <= 0 {
		out.LogEvery = defaultLogEvery
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine
// ─────────────────────────────────────────────────────────────────────────────

// Engine owns the two protocol loops and their worker pools.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	gate     *gate
	throttle *throttle

	eipPool  *WorkerPool
	snmpPool *WorkerPool

	mu       sync.Mutex
	running  bool
	eipDone  chan struct{}
	snmpDone chan struct{}
}

// New creates an Engine. Store, Board, EIP, SNMP, and Publisher are required;
// a nil logger discards output.
func New(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	c := cfg.withDefaults()
	return &Engine{
		cfg:      c,
		logger:   logger,
		gate:     newGate(),
		throttle: newThrottle(c.LogEvery),
		eipPool:  NewWorkerPool(c.Workers, c.TaskTimeout, logger),
		snmpPool: NewWorkerPool(c.Workers, c.TaskTimeout, logger),
		eipDone:  make(chan struct{}),
		snmpDone: make(chan struct{}),
	}
}

// Start launches both protocol loops and their worker pools. It returns
// immediately; cancel ctx and call Stop to terminate.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	e.eipPool.Start(ctx)
	e.snmpPool.Start(ctx)
	go e.runLoop(ctx, models.SourceEthernetIP, e.eipDone, e.cycleEIP)
	go e.runLoop(ctx, models.SourceSNMP, e.snmpDone, e.cycleSNMP)

	e.logger.Info("poller: started",
		"workers", e.cfg.Workers,
		"cycle_delay", e.cfg.CycleDelay.String(),
	)
}

// Stop waits for both loops to exit, then drains the worker pools. Call
// after cancelling the context passed to Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	<-e.eipDone
	<-e.snmpDone
	e.eipPool.Stop()
	e.snmpPool.Stop()

	e.logger.Info("poller: stopped")
}

// ─────────────────────────────────────────────────────────────────────────────
// Loops
// ─────────────────────────────────────────────────────────────────────────────

// runLoop drives one protocol: cycle, short sleep, repeat. An empty device
// list, a list failure, or a panic stretches the sleep so an idle or broken
// protocol does not spin.
func (e *Engine) runLoop(ctx context.Context, kind string, done chan struct{}, cycle func(context.Context) int) {
	defer close(done)
	for {
		if ctx.Err() != nil {
			return
		}
		n := e.runCycle(ctx, kind, cycle)
		delay := e.cfg.CycleDelay
		if n <= 0 {
			delay = e.cfg.IdleDelay
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// runCycle runs one cycle with loop-boundary recovery: a panic anywhere in
// cycle dispatch is logged and treated like a failed cycle.
func (e *Engine) runCycle(ctx context.Context, kind string, cycle func(context.Context) int) (n int) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("poller: cycle panicked", "protocol", kind, "panic", r)
			n = -1
		}
	}()
	return cycle(ctx)
}

// cycleEIP submits one task per enabled controller and waits for the batch.
// It returns the number of devices seen, or -1 when the list itself failed.
func (e *Engine) cycleEIP(ctx context.Context) int {
	devices, err := e.cfg.Store.ListEnabledEIPDevices(ctx)
	if err != nil {
		e.logger.Error("poller: list controllers failed", "error", err.Error())
		return -1
	}

	var batch sync.WaitGroup
	for _, dev := range devices {
		id := dev.ID
		batch.Add(1)
		e.eipPool.Submit(ctx, Task{
			Run:  func(tctx context.Context) { e.pollEIPDevice(tctx, id) },
			Done: batch.Done,
		})
	}
	batch.Wait()
	return len(devices)
}

// cycleSNMP mirrors cycleEIP for SNMP agents.
func (e *Engine) cycleSNMP(ctx context.Context) int {
	devices, err := e.cfg.Store.ListEnabledSNMPDevices(ctx)
	if err != nil {
		e.logger.Error("poller: list agents failed", "error", err.Error())
		return -1
	}

	var batch sync.WaitGroup
	for _, dev := range devices {
		id := dev.ID
		batch.Add(1)
		e.snmpPool.Submit(ctx, Task{
			Run:  func(tctx context.Context) { e.pollSNMPDevice(tctx, id) },
			Done: batch.Done,
		})
	}
	batch.Wait()
	return len(devices)
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
