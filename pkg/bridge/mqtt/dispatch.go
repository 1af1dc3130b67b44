package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

// writeRequest is the inbound command document. Identifier fields stay raw
// so the acknowledgement can echo them exactly as the sender wrote them,
// string or number.
type writeRequest struct {
	DeviceID  json.RawMessage `json:"device_id"`
	Parameter json.RawMessage `json:"Parameter_Name"`
	Value     json.RawMessage `json:"value"`
	MessageID json.RawMessage `json:"message_id"`
}

// command is one decoded message awaiting dispatch.
type command struct {
	broker models.MQTTBroker
	topic  string
	req    writeRequest
}

// ack is the outbound confirmation or error document.
type ack struct {
	DeviceID  json.RawMessage `json:"device_id"`
	HWID      string          `json:"hwid"`
	Topic     string          `json:"topic"`
	Parameter string          `json:"Parameter_Name"`
	Value     json.RawMessage `json:"value"`
	MessageID json.RawMessage `json:"message_id"`
	Status    string          `json:"status"`
	Error     string          `json:"error,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (g *Gateway) dispatchLoop() {
	defer close(g.done)
	for {
		select {
		case <-g.quit:
			return
		case cmd := <-g.commands:
			g.dispatch(cmd)
		}
	}
}

// dispatch applies one write command: resolve the target device, delegate to
// the SNMP writer, and acknowledge on the broker's publish topic. Commands
// for unknown devices are dropped without touching any agent.
func (g *Gateway) dispatch(cmd command) {
	ctx := context.Background()
	name := scalarString(cmd.req.Parameter)
	value := scalarString(cmd.req.Value)

	// A topic below the subscribe root carries the HWID as its trailing
	// segment; a message on the root itself falls back to device_id.
	hwid := scalarString(cmd.req.DeviceID)
	if cmd.topic != cmd.broker.SubscribeTopic {
		if i := strings.LastIndex(cmd.topic, "/"); i >= 0 {
			hwid = cmd.topic[i+1:]
		}
	}

	g.logger.Info("mqtt: write command", "hwid", hwid, "parameter", name, "value", value)

	dev, err := g.store.FindSNMPDeviceByHWID(ctx, hwid)
	if err != nil {
		g.logger.Warn("mqtt: command for unknown device dropped", "hwid", hwid, "error", err)
		return
	}

	if _, err := g.writer.WriteByName(ctx, dev, name, value); err != nil {
		g.logger.Error("mqtt: write failed", "device", dev.Name, "parameter", name, "error", err)
		g.acknowledge(cmd, hwid, err)
		return
	}
	g.logger.Info("mqtt: write applied", "device", dev.Name, "parameter", name, "value", value)
	g.acknowledge(cmd, hwid, nil)
}

// acknowledge publishes the outcome document to {publish_topic}/confirmation
// or {publish_topic}/error. Brokers without a publish topic get no
// acknowledgement.
func (g *Gateway) acknowledge(cmd command, hwid string, cause error) {
	if cmd.broker.PublishTopic == "" {
		return
	}

	doc := ack{
		DeviceID:  cmd.req.DeviceID,
		HWID:      hwid,
		Topic:     cmd.topic,
		Parameter: scalarString(cmd.req.Parameter),
		Value:     cmd.req.Value,
		MessageID: cmd.req.MessageID,
		Status:    "success",
		Timestamp: models.Timestamp(time.Now()),
	}
	suffix := "confirmation"
	if cause != nil {
		doc.Status = "error"
		doc.Error = cause.Error()
		suffix = "error"
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		g.logger.Error("mqtt: marshal acknowledgement", "error", err)
		return
	}
	topic := cmd.broker.PublishTopic + "/" + suffix
	if err := g.Publish(cmd.broker, topic, payload); err != nil {
		g.logger.Warn("mqtt: acknowledgement publish failed", "broker", cmd.broker.Name, "topic", topic, "error", err)
	}
}

// scalarString renders a raw JSON scalar as the string the SNMP layer
// expects: quoted strings are unquoted, everything else keeps its literal
// text.
func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
