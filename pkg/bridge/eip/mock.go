package eip

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

// mockBackend simulates a small controller: a fixed tag table with
// background value drift, so the full pipeline runs without hardware.
type mockBackend struct {
	logger   *slog.Logger
	mu       sync.Mutex
	tags     map[string]models.Value
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newMockBackend(logger *slog.Logger) *mockBackend {
	b := &mockBackend{
		logger: logger,
		tags: map[string]models.Value{
			"System_Running":   {Raw: true, Type: "BOOL"},
			"Emergency_Stop":   {Raw: false, Type: "BOOL"},
			"Motor_1_Status":   {Raw: true, Type: "BOOL"},
			"Motor_2_Status":   {Raw: false, Type: "BOOL"},
			"Temperature_1":    {Raw: float32(25.5), Type: "REAL"},
			"Temperature_2":    {Raw: float32(30.2), Type: "REAL"},
			"Pressure":         {Raw: float32(101.3), Type: "REAL"},
			"Flow_Rate":        {Raw: float32(150.0), Type: "REAL"},
			"Speed_Setpoint":   {Raw: int32(1500), Type: "DINT"},
			"Counter_1":        {Raw: int32(0), Type: "DINT"},
			"Production_Count": {Raw: int32(1000), Type: "DINT"},
			"Sensor_Array[0]":  {Raw: float32(10.0), Type: "REAL"},
			"Sensor_Array[1]":  {Raw: float32(20.0), Type: "REAL"},
			"Sensor_Array[2]":  {Raw: float32(30.0), Type: "REAL"},
		},
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go b.drift()
	return b
}

// drift nudges the process values once a second so consecutive polls see a
// moving plant rather than a frozen table.
func (b *mockBackend) drift() {
	defer close(b.done)
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-tick.C:
			b.mu.Lock()
			b.nudge("Temperature_1", 0.5)
			b.nudge("Temperature_2", 0.3)
			b.nudge("Pressure", 1.0)
			b.tags["Flow_Rate"] = models.Value{Raw: float32(150.0 + (rand.Float64()*2-1)*10.0), Type: "REAL"}
			b.bump("Counter_1")
			b.mu.Unlock()
		}
	}
}

func (b *mockBackend) nudge(name string, span float64) {
	v := b.tags[name]
	if x, ok := v.Raw.(float32); ok {
		b.tags[name] = models.Value{Raw: x + float32((rand.Float64()*2-1)*span), Type: v.Type}
	}
}

func (b *mockBackend) bump(name string) {
	v := b.tags[name]
	if x, ok := v.Raw.(int32); ok {
		b.tags[name] = models.Value{Raw: x + 1, Type: v.Type}
	}
}

func (b *mockBackend) Connect(ctx context.Context, dev models.EIPDevice) (string, error) {
	return "simulated controller ready", nil
}

func (b *mockBackend) ReadTag(ctx context.Context, dev models.EIPDevice, tag models.EIPTag) (models.Value, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.tags[tag.TagName]
	if !ok {
		return models.Value{}, fmt.Errorf("%w: %s", ErrTagNotFound, tag.TagName)
	}
	return v, nil
}

func (b *mockBackend) WriteTag(ctx context.Context, dev models.EIPDevice, tag models.EIPTag, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.tags[tag.TagName]
	if !ok {
		// Unknown tags spring into existence as DINTs, the way a lenient
		// development controller behaves.
		x, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return fmt.Errorf("eip: %q is not a valid DINT value", value)
		}
		b.tags[tag.TagName] = models.Value{Raw: int32(x), Type: "DINT"}
		b.logger.Debug("eip: mock created tag", "tag", tag.TagName)
		return nil
	}
	next, err := coerceMockValue(cur.Type, value)
	if err != nil {
		return err
	}
	b.tags[tag.TagName] = next
	return nil
}

func (b *mockBackend) ListTags(ctx context.Context, dev models.EIPDevice) ([]models.EIPTag, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.tags))
	for name := range b.tags {
		names = append(names, name)
	}
	sort.Strings(names)
	tags := make([]models.EIPTag, 0, len(names))
	for _, name := range names {
		tags = append(tags, models.EIPTag{TagName: name, DataType: b.tags[name].Type, Enabled: true})
	}
	return tags, nil
}

func (b *mockBackend) Close() error {
	b.stopOnce.Do(func() { close(b.stop) })
	<-b.done
	return nil
}

func coerceMockValue(label, value string) (models.Value, error) {
	switch label {
	case "BOOL":
		x, err := strconv.ParseBool(value)
		if err != nil {
			return models.Value{}, fmt.Errorf("eip: %q is not a valid BOOL value", value)
		}
		return models.Value{Raw: x, Type: label}, nil
	case "REAL":
		x, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return models.Value{}, fmt.Errorf("eip: %q is not a valid REAL value", value)
		}
		return models.Value{Raw: float32(x), Type: label}, nil
	case "DINT":
		x, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return models.Value{}, fmt.Errorf("eip: %q is not a valid DINT value", value)
		}
		return models.Value{Raw: int32(x), Type: label}, nil
	}
	return models.Value{Raw: value, Type: label}, nil
}
