// Package store provides the persistent configuration and data-log store.
//
// Every other component reads device, data-point, and broker records through
// the Store interface; the polling engine writes last-read values and samples
// back through it. The backing database is SQLite (pure-Go driver) by default
// or PostgreSQL when selected by configuration. Reads are snapshot-consistent
// per call and updates are durable before the call returns.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

// ErrNotFound is returned when a record lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

// ─────────────────────────────────────────────────────────────────────────────
// Store interface
// ─────────────────────────────────────────────────────────────────────────────

// Store is the persistence contract consumed by the adapters, the polling
// engine, the gateway, and the status server. It is safe for concurrent use
// by many readers and occasional writers.
type Store interface {
	// Endpoint records.
	ListEnabledEIPDevices(ctx context.Context) ([]models.EIPDevice, error)
	ListEnabledSNMPDevices(ctx context.Context) ([]models.SNMPDevice, error)
	ListEnabledMQTTBrokers(ctx context.Context) ([]models.MQTTBroker, error)
	GetEIPDevice(ctx context.Context, id uint) (models.EIPDevice, error)
	GetSNMPDevice(ctx context.Context, id uint) (models.SNMPDevice, error)
	GetMQTTBroker(ctx context.Context, id uint) (models.MQTTBroker, error)

	// Data points.
	ListEIPTags(ctx context.Context, deviceID uint, enabledOnly bool) ([]models.EIPTag, error)
	ListSNMPObjects(ctx context.Context, deviceID uint, enabledOnly bool) ([]models.SNMPObject, error)
	UpdateEIPTagReading(ctx context.Context, id uint, value string, ts time.Time) error
	UpdateSNMPObjectReading(ctx context.Context, id uint, value string, ts time.Time) error

	// Inbound command resolution.
	FindSNMPDeviceByHWID(ctx context.Context, hwid string) (models.SNMPDevice, error)
	FindSNMPObjectByName(ctx context.Context, deviceID uint, name string) (models.SNMPObject, error)

	// Discovery persistence: replace a device's data points wholesale.
	ReplaceEIPTags(ctx context.Context, deviceID uint, tags []models.EIPTag) error
	ReplaceSNMPObjects(ctx context.Context, deviceID uint, objects []models.SNMPObject) error

	// Data log.
	AppendSample(ctx context.Context, sourceType string, sourceID uint, name, value string, ts time.Time) error
	RecentSamples(ctx context.Context, limit int) ([]models.Sample, error)
	SamplesForSource(ctx context.Context, sourceType string, sourceID uint, limit int) ([]models.Sample, error)
	PurgeSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}
