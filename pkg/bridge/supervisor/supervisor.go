package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

// reconnectInterval is both the sweep cadence and the per-endpoint retry
// floor: an offline endpoint is attempted at most once per interval.
const reconnectInterval = 10 * time.Second

// DeviceLister is the slice of the config store the supervisor reads.
type DeviceLister interface {
	ListEnabledEIPDevices(ctx context.Context) ([]models.EIPDevice, error)
	ListEnabledSNMPDevices(ctx context.Context) ([]models.SNMPDevice, error)
	ListEnabledMQTTBrokers(ctx context.Context) ([]models.MQTTBroker, error)
}

// EIPConnector reconnects one EtherNet/IP device.
type EIPConnector interface {
	Connect(ctx context.Context, dev models.EIPDevice) error
}

// SNMPConnector probes one SNMP agent.
type SNMPConnector interface {
	Connect(ctx context.Context, dev models.SNMPDevice) error
}

// BrokerConnector tests one MQTT broker and restarts its command subscriber.
type BrokerConnector interface {
	ConnectBroker(ctx context.Context, broker models.MQTTBroker) error
	RestartSubscriber(broker models.MQTTBroker) error
}

// Config assembles a Supervisor.
type Config struct {
	Store  DeviceLister
	Board  *Board
	EIP    EIPConnector
	SNMP   SNMPConnector
	MQTT   BrokerConnector
	Logger *slog.Logger

	// Interval overrides the reconnect cadence; tests shorten it.
	Interval time.Duration
}

// Supervisor sweeps the enabled endpoints on a ticker and re-attempts the
// ones whose board entry says offline.
type Supervisor struct {
	store    DeviceLister
	board    *Board
	eip      EIPConnector
	snmp     SNMPConnector
	mqtt     BrokerConnector
	logger   *slog.Logger
	interval time.Duration

	mu          sync.Mutex
	lastAttempt map[key]time.Time

	done chan struct{}
}

// New creates a Supervisor. It does not start sweeping until Start is called.
func New(cfg Config) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = reconnectInterval
	}
	return &Supervisor{
		store:       cfg.Store,
		board:       cfg.Board,
		eip:         cfg.EIP,
		snmp:        cfg.SNMP,
		mqtt:        cfg.MQTT,
		logger:      logger,
		interval:    interval,
		lastAttempt: make(map[key]time.Time),
		done:        make(chan struct{}),
	}
}

// Start runs the reconnect loop, sweeping once immediately and then on every
// tick. It blocks until ctx is cancelled.
func (s *Supervisor) Start(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop waits for the loop to exit. The caller must cancel the context passed
// to Start first.
func (s *Supervisor) Stop() {
	<-s.done
}

func (s *Supervisor) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.sweepEIP(ctx)
	s.sweepSNMP(ctx)
	s.sweepBrokers(ctx)
}

func (s *Supervisor) sweepEIP(ctx context.Context) {
	if s.eip == nil {
		return
	}
	devs, err := s.store.ListEnabledEIPDevices(ctx)
	if err != nil {
		s.logger.Error("supervisor: list plc devices", "error", err)
		return
	}
	for _, dev := range devs {
		if !s.due(models.SourceEthernetIP, dev.ID) {
			continue
		}
		s.logger.Info("supervisor: reconnecting plc", "device", dev.Name)
		if err := s.eip.Connect(ctx, dev); err != nil {
			s.logger.Debug("supervisor: plc reconnect failed", "device", dev.Name, "error", err)
			continue
		}
		s.logger.Info("supervisor: plc reconnected", "device", dev.Name)
	}
}

func (s *Supervisor) sweepSNMP(ctx context.Context) {
	if s.snmp == nil {
		return
	}
	devs, err := s.store.ListEnabledSNMPDevices(ctx)
	if err != nil {
		s.logger.Error("supervisor: list snmp devices", "error", err)
		return
	}
	for _, dev := range devs {
		if !s.due(models.SourceSNMP, dev.ID) {
			continue
		}
		s.logger.Info("supervisor: reconnecting snmp agent", "device", dev.Name)
		if err := s.snmp.Connect(ctx, dev); err != nil {
			s.logger.Debug("supervisor: snmp reconnect failed", "device", dev.Name, "error", err)
			continue
		}
		s.logger.Info("supervisor: snmp agent reconnected", "device", dev.Name)
	}
}

func (s *Supervisor) sweepBrokers(ctx context.Context) {
	if s.mqtt == nil {
		return
	}
	brokers, err := s.store.ListEnabledMQTTBrokers(ctx)
	if err != nil {
		s.logger.Error("supervisor: list brokers", "error", err)
		return
	}
	for _, b := range brokers {
		if !s.due(models.SourceMQTT, b.ID) {
			continue
		}
		s.logger.Info("supervisor: reconnecting broker", "broker", b.Name)
		if err := s.mqtt.ConnectBroker(ctx, b); err != nil {
			s.logger.Debug("supervisor: broker reconnect failed", "broker", b.Name, "error", err)
			continue
		}
		s.logger.Info("supervisor: broker reconnected", "broker", b.Name)
		if b.SubscribeTopic == "" {
			continue
		}
		if err := s.mqtt.RestartSubscriber(b); err != nil {
			s.logger.Warn("supervisor: subscriber restart failed", "broker", b.Name, "error", err)
		}
	}
}

// due reports whether the endpoint is offline and past the retry floor,
// stamping the attempt time when it is.
func (s *Supervisor) due(kind string, id uint) bool {
	if s.board.Connected(kind, id) {
		return false
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{kind, id}
	if last, ok := s.lastAttempt[k]; ok && now.Sub(last) < s.interval {
		return false
	}
	s.lastAttempt[k] = now
	return true
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
