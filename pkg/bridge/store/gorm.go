package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config selects the database backend.
type Config struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string

	// DSN is the driver-specific data source name. For SQLite this is the
	// database file path (default "bridge.db"); ":memory:" gives an
	// in-memory database.
	DSN string
}

func (c *Config) withDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.DSN == "" {
		c.DSN = "bridge.db"
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// SQLStore
// ─────────────────────────────────────────────────────────────────────────────

// SQLStore implements Store on a GORM database handle. It is safe for
// concurrent use; GORM manages the underlying connection pool.
type SQLStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the configured database, migrates the schema, and returns
// a ready SQLStore. GORM's own SQL logging is silenced; the store speaks
// through the supplied slog logger only.
func Open(cfg Config, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	cfg.withDefaults()

	// ── 1. Select the dialector ─────────────────────────────────────────
	var dial gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dial = sqlite.Open(cfg.DSN)
	case "postgres":
		dial = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("store: unknown driver %q (expected sqlite|postgres)", cfg.Driver)
	}

	// ── 2. Open the connection ──────────────────────────────────────────
	db, err := gorm.Open(dial, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Driver, err)
	}

	// An in-memory SQLite database exists per connection; pin the pool to a
	// single connection so every query sees the same database.
	if cfg.Driver == "sqlite" && strings.Contains(cfg.DSN, ":memory:") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("store: sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	// ── 3. Migrate the schema ───────────────────────────────────────────
	if err := db.AutoMigrate(
		&models.EIPDevice{},
		&models.SNMPDevice{},
		&models.MQTTBroker{},
		&models.EIPTag{},
		&models.SNMPObject{},
		&models.Sample{},
	); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	logger.Info("store: opened", "driver", cfg.Driver, "dsn", cfg.DSN)
	return &SQLStore{db: db, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("store: sql handle: %w", err)
	}
	return sqlDB.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// Endpoint records
// ─────────────────────────────────────────────────────────────────────────────

func (s *SQLStore) ListEnabledEIPDevices(ctx context.Context) ([]models.EIPDevice, error) {
	var devs []models.EIPDevice
	err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("id").Find(&devs).Error
	if err != nil {
		return nil, fmt.Errorf("store: list eip devices: %w", err)
	}
	return devs, nil
}

func (s *SQLStore) ListEnabledSNMPDevices(ctx context.Context) ([]models.SNMPDevice, error) {
	var devs []models.SNMPDevice
	err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("id").Find(&devs).Error
	if err != nil {
		return nil, fmt.Errorf("store: list snmp devices: %w", err)
	}
	return devs, nil
}

func (s *SQLStore) ListEnabledMQTTBrokers(ctx context.Context) ([]models.MQTTBroker, error) {
	var brokers []models.MQTTBroker
	err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("id").Find(&brokers).Error
	if err != nil {
		return nil, fmt.Errorf("store: list brokers: %w", err)
	}
	return brokers, nil
}

func (s *SQLStore) GetEIPDevice(ctx context.Context, id uint) (models.EIPDevice, error) {
	var dev models.EIPDevice
	if err := s.first(ctx, &dev, id); err != nil {
		return models.EIPDevice{}, fmt.Errorf("store: eip device %d: %w", id, err)
	}
	return dev, nil
}

func (s *SQLStore) GetSNMPDevice(ctx context.Context, id uint) (models.SNMPDevice, error) {
	var dev models.SNMPDevice
	if err := s.first(ctx, &dev, id); err != nil {
		return models.SNMPDevice{}, fmt.Errorf("store: snmp device %d: %w", id, err)
	}
	return dev, nil
}

func (s *SQLStore) GetMQTTBroker(ctx context.Context, id uint) (models.MQTTBroker, error) {
	var broker models.MQTTBroker
	if err := s.first(ctx, &broker, id); err != nil {
		return models.MQTTBroker{}, fmt.Errorf("store: broker %d: %w", id, err)
	}
	return broker, nil
}

// first fetches a record by primary key, mapping gorm's not-found error to
// ErrNotFound so callers can branch with errors.Is.
func (s *SQLStore) first(ctx context.Context, dest interface{}, id uint) error {
	err := s.db.WithContext(ctx).First(dest, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Data points
// ─────────────────────────────────────────────────────────────────────────────

func (s *SQLStore) ListEIPTags(ctx context.Context, deviceID uint, enabledOnly bool) ([]models.EIPTag, error) {
	q := s.db.WithContext(ctx).Where("config_id = ?", deviceID)
	if enabledOnly {
		q = q.Where("enabled = ?", true)
	}
	var tags []models.EIPTag
	if err := q.Order("id").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("store: list tags for device %d: %w", deviceID, err)
	}
	return tags, nil
}

func (s *SQLStore) ListSNMPObjects(ctx context.Context, deviceID uint, enabledOnly bool) ([]models.SNMPObject, error) {
	q := s.db.WithContext(ctx).Where("config_id = ?", deviceID)
	if enabledOnly {
		q = q.Where("enabled = ?", true)
	}
	var objects []models.SNMPObject
	if err := q.Order("id").Find(&objects).Error; err != nil {
		return nil, fmt.Errorf("store: list objects for device %d: %w", deviceID, err)
	}
	return objects, nil
}

func (s *SQLStore) UpdateEIPTagReading(ctx context.Context, id uint, value string, ts time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.EIPTag{}).Where("id = ?", id).
		Updates(map[string]interface{}{"last_value": value, "last_read": ts}).Error
	if err != nil {
		return fmt.Errorf("store: update tag %d reading: %w", id, err)
	}
	return nil
}

func (s *SQLStore) UpdateSNMPObjectReading(ctx context.Context, id uint, value string, ts time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.SNMPObject{}).Where("id = ?", id).
		Updates(map[string]interface{}{"last_value": value, "last_read": ts}).Error
	if err != nil {
		return fmt.Errorf("store: update object %d reading: %w", id, err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Inbound command resolution
// ─────────────────────────────────────────────────────────────────────────────

// FindSNMPDeviceByHWID resolves the HWID carried in an inbound command topic.
// The HWID column is matched first; when nothing matches and the value is
// numeric it is retried as a record ID, mirroring HWIDOrID on the way out.
func (s *SQLStore) FindSNMPDeviceByHWID(ctx context.Context, hwid string) (models.SNMPDevice, error) {
	var dev models.SNMPDevice
	err := s.db.WithContext(ctx).Where("hwid = ?", hwid).First(&dev).Error
	if err == nil {
		return dev, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.SNMPDevice{}, fmt.Errorf("store: snmp device by hwid %q: %w", hwid, err)
	}

	id, perr := strconv.ParseUint(hwid, 10, 32)
	if perr != nil {
		return models.SNMPDevice{}, fmt.Errorf("store: snmp device by hwid %q: %w", hwid, ErrNotFound)
	}
	if err := s.first(ctx, &dev, uint(id)); err != nil {
		return models.SNMPDevice{}, fmt.Errorf("store: snmp device by hwid %q: %w", hwid, err)
	}
	return dev, nil
}

func (s *SQLStore) FindSNMPObjectByName(ctx context.Context, deviceID uint, name string) (models.SNMPObject, error) {
	var obj models.SNMPObject
	err := s.db.WithContext(ctx).Where("config_id = ? AND name = ?", deviceID, name).First(&obj).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.SNMPObject{}, fmt.Errorf("store: object %q on device %d: %w", name, deviceID, ErrNotFound)
	}
	if err != nil {
		return models.SNMPObject{}, fmt.Errorf("store: object %q on device %d: %w", name, deviceID, err)
	}
	return obj, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Discovery persistence
// ─────────────────────────────────────────────────────────────────────────────

// ReplaceEIPTags swaps a device's tag list for freshly discovered tags in one
// transaction.
func (s *SQLStore) ReplaceEIPTags(ctx context.Context, deviceID uint, tags []models.EIPTag) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("config_id = ?", deviceID).Delete(&models.EIPTag{}).Error; err != nil {
			return err
		}
		if len(tags) == 0 {
			return nil
		}
		for i := range tags {
			tags[i].ID = 0
			tags[i].DeviceID = deviceID
		}
		return tx.Create(&tags).Error
	})
	if err != nil {
		return fmt.Errorf("store: replace tags for device %d: %w", deviceID, err)
	}
	s.logger.Info("store: replaced tags", "device_id", deviceID, "count", len(tags))
	return nil
}

// ReplaceSNMPObjects swaps a device's object list for fresh walk results in
// one transaction.
func (s *SQLStore) ReplaceSNMPObjects(ctx context.Context, deviceID uint, objects []models.SNMPObject) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("config_id = ?", deviceID).Delete(&models.SNMPObject{}).Error; err != nil {
			return err
		}
		if len(objects) == 0 {
			return nil
		}
		for i := range objects {
			objects[i].ID = 0
			objects[i].DeviceID = deviceID
		}
		return tx.Create(&objects).Error
	})
	if err != nil {
		return fmt.Errorf("store: replace objects for device %d: %w", deviceID, err)
	}
	s.logger.Info("store: replaced objects", "device_id", deviceID, "count", len(objects))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Data log
// ─────────────────────────────────────────────────────────────────────────────

func (s *SQLStore) AppendSample(ctx context.Context, sourceType string, sourceID uint, name, value string, ts time.Time) error {
	sample := models.Sample{
		SourceType: sourceType,
		SourceID:   sourceID,
		SourceName: name,
		Value:      value,
		Timestamp:  ts,
	}
	if err := s.db.WithContext(ctx).Create(&sample).Error; err != nil {
		return fmt.Errorf("store: append sample: %w", err)
	}
	return nil
}

func (s *SQLStore) RecentSamples(ctx context.Context, limit int) ([]models.Sample, error) {
	if limit <= 0 {
		limit = 100
	}
	var samples []models.Sample
	err := s.db.WithContext(ctx).Order("timestamp DESC").Limit(limit).Find(&samples).Error
	if err != nil {
		return nil, fmt.Errorf("store: recent samples: %w", err)
	}
	return samples, nil
}

func (s *SQLStore) SamplesForSource(ctx context.Context, sourceType string, sourceID uint, limit int) ([]models.Sample, error) {
	if limit <= 0 {
		limit = 100
	}
	var samples []models.Sample
	err := s.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Order("timestamp DESC").Limit(limit).Find(&samples).Error
	if err != nil {
		return nil, fmt.Errorf("store: samples for %s/%d: %w", sourceType, sourceID, err)
	}
	return samples, nil
}

// PurgeSamplesBefore deletes data-log rows older than cutoff and returns the
// number removed.
func (s *SQLStore) PurgeSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.Sample{})
	if res.Error != nil {
		return 0, fmt.Errorf("store: purge samples: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.Info("store: purged samples", "removed", res.RowsAffected, "cutoff", cutoff)
	}
	return res.RowsAffected, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Utilities
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
