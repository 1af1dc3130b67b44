package mqtt

import (
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

// StartSubscriber opens a persistent client for the broker's command topic.
// Brokers without a SubscribeTopic need no subscriber; a broker that already
// has one keeps it. Subscription happens inside the OnConnect handler so it
// is re-established on every successful connect.
func (g *Gateway) StartSubscriber(broker models.MQTTBroker) error {
	if broker.SubscribeTopic == "" {
		return nil
	}

	g.subMu.Lock()
	defer g.subMu.Unlock()
	if _, ok := g.subscribers[broker.ID]; ok {
		return nil
	}

	topic := broker.SubscribeTopic + "/#"
	opts := g.options(broker, "bridge-sub-"+uuid.NewString())
	opts.SetOnConnectHandler(func(c paho.Client) {
		t := c.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
			g.enqueue(broker, msg)
		})
		if t.Wait(); t.Error() != nil {
			g.logger.Error("mqtt: subscribe failed", "broker", broker.Name, "topic", topic, "error", t.Error())
			return
		}
		g.board.Set(models.SourceMQTT, broker.ID, true, "subscribed to "+broker.SubscribeTopic)
		g.logger.Info("mqtt: subscribed", "broker", broker.Name, "topic", topic)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		g.board.Set(models.SourceMQTT, broker.ID, false, "subscriber lost: "+err.Error())
		g.logger.Warn("mqtt: subscriber connection lost", "broker", broker.Name, "error", err)
	})

	c := g.clients(opts)
	t := c.Connect()
	if !t.WaitTimeout(g.timeout) {
		c.Disconnect(0)
		return fmt.Errorf("mqtt: subscriber connect %s: timeout", broker.Name)
	}
	if err := t.Error(); err != nil {
		return fmt.Errorf("mqtt: subscriber connect %s: %w", broker.Name, err)
	}

	g.subscribers[broker.ID] = c
	return nil
}

// StopSubscriber disconnects and forgets the broker's subscriber, if any.
func (g *Gateway) StopSubscriber(brokerID uint) {
	g.subMu.Lock()
	c, ok := g.subscribers[brokerID]
	if ok {
		delete(g.subscribers, brokerID)
	}
	g.subMu.Unlock()
	if ok {
		c.Disconnect(disconnectQuiesce)
		g.logger.Info("mqtt: subscriber stopped", "broker_id", brokerID)
	}
}

// RestartSubscriber tears down the broker's subscriber and starts a fresh
// one. The supervisor calls this after reconnecting a broker.
func (g *Gateway) RestartSubscriber(broker models.MQTTBroker) error {
	g.StopSubscriber(broker.ID)
	return g.StartSubscriber(broker)
}

func (g *Gateway) stopAllSubscribers() {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	for id, c := range g.subscribers {
		c.Disconnect(disconnectQuiesce)
		delete(g.subscribers, id)
	}
}

// enqueue decodes an inbound message and hands it to the dispatch loop.
// Broker I/O must never block on SNMP I/O, so a full queue drops the
// command.
func (g *Gateway) enqueue(broker models.MQTTBroker, msg paho.Message) {
	cmd, ok := g.decodeCommand(broker, msg)
	if !ok {
		return
	}
	select {
	case g.commands <- cmd:
	default:
		g.logger.Warn("mqtt: command queue full, dropping", "topic", msg.Topic())
	}
}

func (g *Gateway) decodeCommand(broker models.MQTTBroker, msg paho.Message) (command, bool) {
	var req writeRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		g.logger.Error("mqtt: invalid command JSON", "topic", msg.Topic(), "error", err)
		return command{}, false
	}
	if len(req.DeviceID) == 0 || len(req.Parameter) == 0 || len(req.Value) == 0 {
		g.logger.Error("mqtt: command missing required fields", "topic", msg.Topic())
		return command{}, false
	}
	if len(req.MessageID) == 0 {
		req.MessageID = json.RawMessage(`"unknown"`)
	}
	return command{broker: broker, topic: msg.Topic(), req: req}, true
}
