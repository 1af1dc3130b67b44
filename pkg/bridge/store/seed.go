package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Seed file schema
// ─────────────────────────────────────────────────────────────────────────────

// seedFile is the YAML bootstrap document: devices with their nested data
// points, plus brokers. Unknown keys are rejected so typos in a seed file
// fail loudly instead of silently dropping configuration.
type seedFile struct {
	EthernetIP []seedEIPDevice  `yaml:"ethernet_ip"`
	SNMP       []seedSNMPDevice `yaml:"snmp"`
	MQTT       []seedBroker     `yaml:"mqtt"`
}

type seedEIPDevice struct {
	Name            string       `yaml:"name"`
	IPAddress       string       `yaml:"ip_address"`
	Slot            int          `yaml:"slot"`
	Timeout         float64      `yaml:"timeout"`
	HWID            string       `yaml:"hwid"`
	PollingInterval int          `yaml:"polling_interval"`
	Description     string       `yaml:"description"`
	Enabled         *bool        `yaml:"enabled"`
	Tags            []seedEIPTag `yaml:"tags"`
}

type seedEIPTag struct {
	TagName     string `yaml:"tag_name"`
	DataType    string `yaml:"data_type"`
	Description string `yaml:"description"`
	PollRate    int    `yaml:"poll_rate"`
	Enabled     *bool  `yaml:"enabled"`
}

type seedSNMPDevice struct {
	Name            string           `yaml:"name"`
	Host            string           `yaml:"host"`
	Port            int              `yaml:"port"`
	Community       string           `yaml:"community"`
	Version         string           `yaml:"version"`
	HWID            string           `yaml:"hwid"`
	PollingInterval int              `yaml:"polling_interval"`
	Description     string           `yaml:"description"`
	Enabled         *bool            `yaml:"enabled"`
	Objects         []seedSNMPObject `yaml:"objects"`
}

type seedSNMPObject struct {
	OID         string `yaml:"oid"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	DataType    string `yaml:"data_type"`
	Access      string `yaml:"access"`
	Status      string `yaml:"status"`
	PollRate    int    `yaml:"poll_rate"`
	Enabled     *bool  `yaml:"enabled"`
}

type seedBroker struct {
	Name            string `yaml:"name"`
	Broker          string `yaml:"broker"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	PublishTopic    string `yaml:"publish_topic"`
	SubscribeTopic  string `yaml:"subscribe_topic"`
	PublishFormat   string `yaml:"publish_format"`
	PublishInterval int    `yaml:"publish_interval"`
	UseTLS          bool   `yaml:"use_tls"`
	Enabled         *bool  `yaml:"enabled"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Seed
// ─────────────────────────────────────────────────────────────────────────────

// Seed imports a YAML bootstrap file into the store. Devices and brokers are
// upserted by name, data points by tag name / OID under their device, so
// re-running a seed is safe: records gain the seeded settings while their
// last-read state survives.
func (s *SQLStore) Seed(ctx context.Context, path string) error {
	// ── 1. Decode the file ──────────────────────────────────────────────
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("store: seed open: %w", err)
	}
	defer f.Close()

	var doc seedFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("store: seed decode %s: %w", path, err)
	}

	// ── 2. Upsert inside one transaction ────────────────────────────────
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range doc.EthernetIP {
			if err := seedEIP(tx, d); err != nil {
				return err
			}
		}
		for _, d := range doc.SNMP {
			if err := seedSNMP(tx, d); err != nil {
				return err
			}
		}
		for _, b := range doc.MQTT {
			if err := seedMQTT(tx, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: seed %s: %w", path, err)
	}

	s.logger.Info("store: seed imported",
		"path", path,
		"eip_devices", len(doc.EthernetIP),
		"snmp_devices", len(doc.SNMP),
		"brokers", len(doc.MQTT),
	)
	return nil
}

func seedEIP(tx *gorm.DB, d seedEIPDevice) error {
	if d.IPAddress == "" {
		return fmt.Errorf("ethernet_ip device %q: ip_address is required", d.Name)
	}

	rec := models.EIPDevice{}
	err := tx.Where("name = ?", d.Name).First(&rec).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	rec.Name = d.Name
	rec.IPAddress = d.IPAddress
	rec.Slot = d.Slot
	rec.Timeout = defaultFloat(d.Timeout, 5.0)
	rec.HWID = d.HWID
	rec.PollingInterval = defaultInt(d.PollingInterval, 1000)
	rec.Description = d.Description
	rec.Enabled = defaultBool(d.Enabled)

	if err := tx.Save(&rec).Error; err != nil {
		return fmt.Errorf("ethernet_ip device %q: %w", d.Name, err)
	}

	for _, t := range d.Tags {
		if t.TagName == "" {
			return fmt.Errorf("ethernet_ip device %q: tag with empty tag_name", d.Name)
		}
		tag := models.EIPTag{}
		err := tx.Where("config_id = ? AND tag_name = ?", rec.ID, t.TagName).First(&tag).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		tag.DeviceID = rec.ID
		tag.TagName = t.TagName
		tag.DataType = t.DataType
		tag.Description = t.Description
		tag.PollRate = defaultInt(t.PollRate, 1000)
		tag.Enabled = defaultBool(t.Enabled)
		if err := tx.Save(&tag).Error; err != nil {
			return fmt.Errorf("ethernet_ip tag %q: %w", t.TagName, err)
		}
	}
	return nil
}

func seedSNMP(tx *gorm.DB, d seedSNMPDevice) error {
	if d.Host == "" {
		return fmt.Errorf("snmp device %q: host is required", d.Name)
	}

	rec := models.SNMPDevice{}
	err := tx.Where("name = ?", d.Name).First(&rec).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	rec.Name = d.Name
	rec.Host = d.Host
	rec.Port = defaultInt(d.Port, 161)
	rec.Community = defaultString(d.Community, "public")
	rec.Version = defaultString(d.Version, "v2c")
	rec.HWID = d.HWID
	rec.PollingInterval = defaultInt(d.PollingInterval, 5000)
	rec.Description = d.Description
	rec.Enabled = defaultBool(d.Enabled)

	if err := tx.Save(&rec).Error; err != nil {
		return fmt.Errorf("snmp device %q: %w", d.Name, err)
	}

	for _, o := range d.Objects {
		if o.OID == "" {
			return fmt.Errorf("snmp device %q: object with empty oid", d.Name)
		}
		obj := models.SNMPObject{}
		err := tx.Where("config_id = ? AND oid = ?", rec.ID, o.OID).First(&obj).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		obj.DeviceID = rec.ID
		obj.OID = o.OID
		obj.Name = o.Name
		obj.Description = o.Description
		obj.DataType = o.DataType
		obj.Access = defaultString(o.Access, "read-only")
		obj.Status = defaultString(o.Status, "current")
		obj.PollRate = defaultInt(o.PollRate, 5000)
		obj.Enabled = defaultBool(o.Enabled)
		if err := tx.Save(&obj).Error; err != nil {
			return fmt.Errorf("snmp object %q: %w", o.OID, err)
		}
	}
	return nil
}

func seedMQTT(tx *gorm.DB, b seedBroker) error {
	if b.Broker == "" {
		return fmt.Errorf("mqtt broker %q: broker is required", b.Name)
	}

	rec := models.MQTTBroker{}
	err := tx.Where("name = ?", b.Name).First(&rec).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	rec.Name = b.Name
	rec.Broker = b.Broker
	rec.Port = defaultInt(b.Port, 1883)
	rec.Username = b.Username
	rec.Password = b.Password
	rec.PublishTopic = b.PublishTopic
	rec.SubscribeTopic = b.SubscribeTopic
	rec.PublishFormat = defaultString(b.PublishFormat, "json")
	rec.PublishInterval = b.PublishInterval
	rec.UseTLS = b.UseTLS
	rec.Enabled = defaultBool(b.Enabled)

	if err := tx.Save(&rec).Error; err != nil {
		return fmt.Errorf("mqtt broker %q: %w", b.Name, err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Seed defaults
// ─────────────────────────────────────────────────────────────────────────────

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func defaultFloat(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// defaultBool treats an omitted enabled key as true.
func defaultBool(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}
