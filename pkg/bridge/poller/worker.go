package poller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/format/payload"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Per-device work
// ─────────────────────────────────────────────────────────────────────────────

// pollEIPDevice reads every enabled tag of one controller and publishes the
// aggregate. The record is re-loaded first so toggles and interval changes
// take effect without a restart.
func (e *Engine) pollEIPDevice(ctx context.Context, id uint) {
	if ctx.Err() != nil {
		return
	}
	dev, err := e.cfg.Store.GetEIPDevice(ctx, id)
	if err != nil || !dev.Enabled {
		return
	}
	if !e.cfg.Board.Connected(models.SourceEthernetIP, dev.ID) {
		return
	}
	if !e.gate.pass(pollKey(models.SourceEthernetIP, dev.ID), dev.Interval()) {
		return
	}

	tags, err := e.cfg.Store.ListEIPTags(ctx, dev.ID, true)
	if err != nil {
		e.logger.Error("poller: list tags failed", "device", dev.Name, "error", err.Error())
		return
	}

	readings := payload.NewReadings()
	for _, tag := range tags {
		v, err := e.cfg.EIP.ReadTag(ctx, dev, tag)
		if err != nil {
			e.logger.Warn("poller: tag read failed",
				"device", dev.Name, "tag", tag.TagName, "error", err.Error())
			continue
		}
		e.recordSample(ctx, models.SourceEthernetIP, tag.ID, tag.TagName, v.String())
		readings.Set(tag.TagName, v.Raw)
	}

	if readings.Len() == 0 || ctx.Err() != nil {
		return
	}
	e.fanOut(ctx, dev.HWIDOrID(), readings)
}

// pollSNMPDevice reads every enabled object of one agent and publishes the
// aggregate.
func (e *Engine) pollSNMPDevice(ctx context.Context, id uint) {
	if ctx.Err() != nil {
		return
	}
	dev, err := e.cfg.Store.GetSNMPDevice(ctx, id)
	if err != nil || !dev.Enabled {
		return
	}
	if !e.cfg.Board.Connected(models.SourceSNMP, dev.ID) {
		return
	}
	if !e.gate.pass(pollKey(models.SourceSNMP, dev.ID), dev.Interval()) {
		return
	}

	objects, err := e.cfg.Store.ListSNMPObjects(ctx, dev.ID, true)
	if err != nil {
		e.logger.Error("poller: list objects failed", "device", dev.Name, "error", err.Error())
		return
	}

	readings := payload.NewReadings()
	for _, obj := range objects {
		value, err := e.cfg.SNMP.ReadObject(ctx, dev, obj)
		if err != nil {
			e.logger.Warn("poller: object read failed",
				"device", dev.Name, "oid", obj.OID, "error", err.Error())
			continue
		}
		e.recordSample(ctx, models.SourceSNMP, obj.ID, snmpKey(obj), value)
		readings.Set(snmpKey(obj), value)
	}

	if readings.Len() == 0 || ctx.Err() != nil {
		return
	}
	e.fanOut(ctx, dev.HWIDOrID(), readings)
}

// recordSample persists one successful read: the data point's last value and
// one data-log row. Persistence failures are logged, never fatal — the value
// still travels in the outbound payload.
func (e *Engine) recordSample(ctx context.Context, kind string, pointID uint, name, value string) {
	now := time.Now().UTC()

	var err error
	switch kind {
	case models.SourceEthernetIP:
		err = e.cfg.Store.UpdateEIPTagReading(ctx, pointID, value, now)
	case models.SourceSNMP:
		err = e.cfg.Store.UpdateSNMPObjectReading(ctx, pointID, value, now)
	}
	if err != nil {
		e.logger.Error("poller: update last value failed",
			"kind", kind, "point", name, "error", err.Error())
	}

	if err := e.cfg.Store.AppendSample(ctx, kind, pointID, name, value, now); err != nil {
		e.logger.Error("poller: append sample failed",
			"kind", kind, "point", name, "error", err.Error())
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Publish fan-out
// ─────────────────────────────────────────────────────────────────────────────

// fanOut publishes one device's readings to every connected broker that has a
// publish topic, each in its configured format. Broker failures affect only
// that broker.
func (e *Engine) fanOut(ctx context.Context, hwid string, readings *payload.Readings) {
	brokers, err := e.cfg.Store.ListEnabledMQTTBrokers(ctx)
	if err != nil {
		e.logger.Error("poller: list brokers failed", "error", err.Error())
		return
	}

	now := time.Now().UTC()
	for _, b := range brokers {
		if b.PublishTopic == "" || !e.cfg.Board.Connected(models.SourceMQTT, b.ID) {
			continue
		}
		topic := b.PublishTopic + "/" + hwid

		var body []byte
		if b.Format() == "string" {
			body = payload.CSV(hwid, readings, now)
		} else {
			body, err = payload.JSON(hwid, readings, now)
			if err != nil {
				e.logger.Error("poller: payload encode failed",
					"broker", b.Name, "hwid", hwid, "error", err.Error())
				continue
			}
		}

		if err := e.cfg.Publisher.Publish(b, topic, body); err != nil {
			e.logger.Warn("poller: publish failed",
				"broker", b.Name, "topic", topic, "error", err.Error())
			continue
		}

		if e.throttle.allow(fmt.Sprintf("%d/%s", b.ID, hwid)) {
			e.logger.Info("poller: published",
				"broker", b.Name, "topic", topic, "points", readings.Len())
		}
		e.notify(models.PublishEvent{Time: now, Broker: b.Name, Topic: topic, Payload: string(body)})
	}
}

// notify hands ev to every registered observer.
func (e *Engine) notify(ev models.PublishEvent) {
	for _, obs := range e.cfg.Observers {
		obs(ev)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Keys
// ─────────────────────────────────────────────────────────────────────────────

func pollKey(kind string, id uint) string {
	return fmt.Sprintf("%s/%d", kind, id)
}

// snmpKey derives an object's reading key: its description when set,
// otherwise the OID with dots replaced by underscores so the key works as a
// JSON member name.
func snmpKey(obj models.SNMPObject) string {
	if obj.Description != "" {
		return obj.Description
	}
	return strings.ReplaceAll(obj.OID, ".", "_")
}
