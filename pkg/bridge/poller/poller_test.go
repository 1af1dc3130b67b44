package poller_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/pkg/bridge/poller"
)

// ─────────────────────────────────────────────────────────────────────────────
// Stubs
// ─────────────────────────────────────────────────────────────────────────────

type sampleRec struct {
	kind  string
	id    uint
	name  string
	value string
}

type stubStore struct {
	mu          sync.Mutex
	eipDevices  []models.EIPDevice
	snmpDevices []models.SNMPDevice
	brokers     []models.MQTTBroker
	eipTags     map[uint][]models.EIPTag
	snmpObjects map[uint][]models.SNMPObject

	samples []sampleRec
	updated []uint
}

func newStubStore() *stubStore {
	return &stubStore{
		eipTags:     make(map[uint][]models.EIPTag),
		snmpObjects: make(map[uint][]models.SNMPObject),
	}
}

func (s *stubStore) ListEnabledEIPDevices(context.Context) ([]models.EIPDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.EIPDevice(nil), s.eipDevices...), nil
}

func (s *stubStore) ListEnabledSNMPDevices(context.Context) ([]models.SNMPDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SNMPDevice(nil), s.snmpDevices...), nil
}

func (s *stubStore) ListEnabledMQTTBrokers(context.Context) ([]models.MQTTBroker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MQTTBroker(nil), s.brokers...), nil
}

func (s *stubStore) GetEIPDevice(_ context.Context, id uint) (models.EIPDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.eipDevices {
		if d.ID == id {
			return d, nil
		}
	}
	return models.EIPDevice{}, errors.New("not found")
}

func (s *stubStore) GetSNMPDevice(_ context.Context, id uint) (models.SNMPDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.snmpDevices {
		if d.ID == id {
			return d, nil
		}
	}
	return models.SNMPDevice{}, errors.New("not found")
}

func (s *stubStore) ListEIPTags(_ context.Context, deviceID uint, _ bool) ([]models.EIPTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.EIPTag(nil), s.eipTags[deviceID]...), nil
}

func (s *stubStore) ListSNMPObjects(_ context.Context, deviceID uint, _ bool) ([]models.SNMPObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SNMPObject(nil), s.snmpObjects[deviceID]...), nil
}

func (s *stubStore) UpdateEIPTagReading(_ context.Context, id uint, _ string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, id)
	return nil
}

func (s *stubStore) UpdateSNMPObjectReading(_ context.Context, id uint, _ string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, id)
	return nil
}

func (s *stubStore) AppendSample(_ context.Context, kind string, id uint, name, value string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sampleRec{kind: kind, id: id, name: name, value: value})
	return nil
}

func (s *stubStore) sampleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func (s *stubStore) sampleList() []sampleRec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sampleRec(nil), s.samples...)
}

type stubBoard struct {
	mu sync.Mutex
	up map[string]bool
}

func newStubBoard() *stubBoard { return &stubBoard{up: make(map[string]bool)} }

func (b *stubBoard) set(kind string, id uint, connected bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.up[fmt.Sprintf("%s/%d", kind, id)] = connected
}

func (b *stubBoard) Connected(kind string, id uint) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.up[fmt.Sprintf("%s/%d", kind, id)]
}

type stubEIP struct {
	mu     sync.Mutex
	values map[string]models.Value
	errs   map[string]error
	reads  int
}

func (s *stubEIP) ReadTag(_ context.Context, _ models.EIPDevice, tag models.EIPTag) (models.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if err, ok := s.errs[tag.TagName]; ok {
		return models.Value{}, err
	}
	return s.values[tag.TagName], nil
}

func (s *stubEIP) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

type stubSNMP struct {
	mu     sync.Mutex
	values map[string]string
}

func (s *stubSNMP) ReadObject(_ context.Context, _ models.SNMPDevice, obj models.SNMPObject) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[obj.OID]
	if !ok {
		return "", errors.New("no such object")
	}
	return v, nil
}

type pubRec struct {
	brokerID uint
	topic    string
	payload  string
}

type stubPublisher struct {
	mu   sync.Mutex
	fail map[uint]error
	sent []pubRec
}

func newStubPublisher() *stubPublisher { return &stubPublisher{fail: make(map[uint]error)} }

func (p *stubPublisher) Publish(broker models.MQTTBroker, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.fail[broker.ID]; ok {
		return err
	}
	p.sent = append(p.sent, pubRec{brokerID: broker.ID, topic: topic, payload: string(payload)})
	return nil
}

func (p *stubPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func (p *stubPublisher) list() []pubRec {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pubRec(nil), p.sent...)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func waitFor(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fixture struct {
	store *stubStore
	board *stubBoard
	eip   *stubEIP
	snmp  *stubSNMP
	pub   *stubPublisher
}

func newFixture() *fixture {
	return &fixture{
		store: newStubStore(),
		board: newStubBoard(),
		eip:   &stubEIP{values: make(map[string]models.Value), errs: make(map[string]error)},
		snmp:  &stubSNMP{values: make(map[string]string)},
		pub:   newStubPublisher(),
	}
}

func (f *fixture) engine(t *testing.T, observers ...poller.Observer) (*poller.Engine, context.CancelFunc) {
	t.Helper()
	e := poller.New(poller.Config{
		Store:       f.store,
		Board:       f.board,
		EIP:         f.eip,
		SNMP:        f.snmp,
		Publisher:   f.pub,
		Workers:     2,
		TaskTimeout: 2 * time.Second,
		CycleDelay:  10 * time.Millisecond,
		IdleDelay:   20 * time.Millisecond,
		Observers:   observers,
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	e.Start(ctx)
	t.Cleanup(func() {
		cancel()
		e.Stop()
	})
	return e, cancel
}

// lineA installs one connected controller with three tags and one connected
// JSON broker.
func (f *fixture) lineA() {
	f.store.eipDevices = []models.EIPDevice{
		{ID: 1, Name: "Line A PLC", IPAddress: "192.0.2.10", HWID: "LINE_A", PollingInterval: 3_600_000, Enabled: true},
	}
	f.store.eipTags[1] = []models.EIPTag{
		{ID: 11, DeviceID: 1, TagName: "Temp", Enabled: true},
		{ID: 12, DeviceID: 1, TagName: "Counter", Enabled: true},
		{ID: 13, DeviceID: 1, TagName: "Alarm", Enabled: true},
	}
	f.eip.values["Temp"] = models.Value{Raw: float32(25.5), Type: "REAL"}
	f.eip.values["Counter"] = models.Value{Raw: int32(7), Type: "DINT"}
	f.eip.values["Alarm"] = models.Value{Raw: false, Type: "BOOL"}
	f.store.brokers = []models.MQTTBroker{
		{ID: 5, Name: "plant", Broker: "127.0.0.1", PublishTopic: "plant/data", Enabled: true},
	}
	f.board.set(models.SourceEthernetIP, 1, true)
	f.board.set(models.SourceMQTT, 5, true)
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine
// ─────────────────────────────────────────────────────────────────────────────

func TestEngine_PollsAndPublishes(t *testing.T) {
	f := newFixture()
	f.lineA()
	f.engine(t)

	waitFor(t, 2*time.Second, "publish", func() bool { return f.pub.count() >= 1 })

	sent := f.pub.list()
	if sent[0].topic != "plant/data/LINE_A" {
		t.Errorf("topic = %q, want plant/data/LINE_A", sent[0].topic)
	}
	for _, frag := range []string{`"HWID":"LINE_A"`, `"Temp":25.5`, `"Counter":7`, `"Alarm":false`, `"Timestamp":"`} {
		if !strings.Contains(sent[0].payload, frag) {
			t.Errorf("payload %s missing %s", sent[0].payload, frag)
		}
	}

	// One sample per successful read.
	samples := f.store.sampleList()
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(samples))
	}
	if samples[0].kind != models.SourceEthernetIP || samples[0].name != "Temp" || samples[0].value != "25.5" {
		t.Errorf("sample[0] = %+v", samples[0])
	}
}

func TestEngine_IntervalGateLimitsCycles(t *testing.T) {
	f := newFixture()
	f.lineA() // 1 h interval against 10 ms cycles
	f.engine(t)

	waitFor(t, 2*time.Second, "first batch", func() bool { return f.pub.count() >= 1 })
	time.Sleep(150 * time.Millisecond)

	if got := f.pub.count(); got != 1 {
		t.Errorf("got %d publishes, want 1 (interval gate)", got)
	}
	if got := f.store.sampleCount(); got != 3 {
		t.Errorf("got %d samples, want 3 (one batch)", got)
	}
}

func TestEngine_SkipsDisconnectedDevice(t *testing.T) {
	f := newFixture()
	f.lineA()
	f.board.set(models.SourceEthernetIP, 1, false)
	f.engine(t)

	time.Sleep(100 * time.Millisecond)
	if got := f.eip.readCount(); got != 0 {
		t.Errorf("got %d reads on a disconnected device, want 0", got)
	}
	if got := f.pub.count(); got != 0 {
		t.Errorf("got %d publishes, want 0", got)
	}
}

func TestEngine_ReadFailureSkipsOnlyThatTag(t *testing.T) {
	f := newFixture()
	f.lineA()
	f.eip.errs["Counter"] = errors.New("read timeout")
	f.engine(t)

	waitFor(t, 2*time.Second, "publish", func() bool { return f.pub.count() >= 1 })

	p := f.pub.list()[0].payload
	if !strings.Contains(p, `"Temp":25.5`) || strings.Contains(p, "Counter") {
		t.Errorf("payload = %s, want Temp without Counter", p)
	}
	if got := f.store.sampleCount(); got != 2 {
		t.Errorf("got %d samples, want 2", got)
	}
}

func TestEngine_AllReadsFailNoPublish(t *testing.T) {
	f := newFixture()
	f.lineA()
	for _, tag := range []string{"Temp", "Counter", "Alarm"} {
		f.eip.errs[tag] = errors.New("down")
	}
	f.engine(t)

	waitFor(t, 2*time.Second, "reads attempted", func() bool { return f.eip.readCount() >= 3 })
	time.Sleep(50 * time.Millisecond)

	if got := f.pub.count(); got != 0 {
		t.Errorf("got %d publishes with zero readings, want 0", got)
	}
}

func TestEngine_FanOutSelectsBrokers(t *testing.T) {
	f := newFixture()
	f.lineA()
	f.store.brokers = []models.MQTTBroker{
		{ID: 5, Name: "good", PublishTopic: "plant/data", Enabled: true},
		{ID: 6, Name: "no-topic", PublishTopic: "", Enabled: true},
		{ID: 7, Name: "down", PublishTopic: "backup/data", Enabled: true},
	}
	f.board.set(models.SourceMQTT, 5, true)
	f.board.set(models.SourceMQTT, 6, true)
	f.board.set(models.SourceMQTT, 7, false)
	f.engine(t)

	waitFor(t, 2*time.Second, "publish", func() bool { return f.pub.count() >= 1 })
	time.Sleep(50 * time.Millisecond)

	sent := f.pub.list()
	if len(sent) != 1 || sent[0].brokerID != 5 {
		t.Errorf("sent = %+v, want exactly one message to broker 5", sent)
	}
}

func TestEngine_PublisherFailureDoesNotStopFanOut(t *testing.T) {
	f := newFixture()
	f.lineA()
	f.store.brokers = []models.MQTTBroker{
		{ID: 5, Name: "bad", PublishTopic: "plant/data", Enabled: true},
		{ID: 6, Name: "good", PublishTopic: "backup/data", Enabled: true},
	}
	f.board.set(models.SourceMQTT, 5, true)
	f.board.set(models.SourceMQTT, 6, true)
	f.pub.fail[5] = errors.New("broker unreachable")
	f.engine(t)

	waitFor(t, 2*time.Second, "publish to the healthy broker", func() bool { return f.pub.count() >= 1 })

	sent := f.pub.list()
	if sent[0].brokerID != 6 || sent[0].topic != "backup/data/LINE_A" {
		t.Errorf("sent[0] = %+v, want backup/data/LINE_A on broker 6", sent[0])
	}
	// Samples are persisted regardless of publish failures.
	if got := f.store.sampleCount(); got == 0 {
		t.Error("no samples persisted")
	}
}

func TestEngine_SNMPKeysAndCSVFormat(t *testing.T) {
	f := newFixture()
	f.store.snmpDevices = []models.SNMPDevice{
		{ID: 3, Name: "Core Switch", Host: "192.0.2.20", HWID: "SW01", PollingInterval: 3_600_000, Enabled: true},
	}
	f.store.snmpObjects[3] = []models.SNMPObject{
		{ID: 31, DeviceID: 3, OID: "1.3.6.1.2.1.1.1.0", Description: "sysDescr", Enabled: true},
		{ID: 32, DeviceID: 3, OID: "1.3.6.1.2.1.1.3.0", Enabled: true},
	}
	f.snmp.values["1.3.6.1.2.1.1.1.0"] = "Linux sw01 5.10"
	f.snmp.values["1.3.6.1.2.1.1.3.0"] = "12345"
	f.store.brokers = []models.MQTTBroker{
		{ID: 5, Name: "plant", PublishTopic: "net/data", PublishFormat: "string", Enabled: true},
	}
	f.board.set(models.SourceSNMP, 3, true)
	f.board.set(models.SourceMQTT, 5, true)
	f.engine(t)

	waitFor(t, 2*time.Second, "publish", func() bool { return f.pub.count() >= 1 })

	sent := f.pub.list()[0]
	if sent.topic != "net/data/SW01" {
		t.Errorf("topic = %q, want net/data/SW01", sent.topic)
	}
	if !strings.HasPrefix(sent.payload, "SW01,Linux sw01 5.10,12345,") {
		t.Errorf("CSV payload = %q", sent.payload)
	}

	// The described object keeps its description as key; the bare one gets
	// the underscored OID.
	samples := f.store.sampleList()
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if samples[0].name != "sysDescr" {
		t.Errorf("samples[0].name = %q, want sysDescr", samples[0].name)
	}
	if samples[1].name != "1_3_6_1_2_1_1_3_0" {
		t.Errorf("samples[1].name = %q, want 1_3_6_1_2_1_1_3_0", samples[1].name)
	}
}

func TestEngine_NumericIDWhenNoHWID(t *testing.T) {
	f := newFixture()
	f.lineA()
	f.store.mu.Lock()
	f.store.eipDevices[0].HWID = ""
	f.store.mu.Unlock()
	f.engine(t)

	waitFor(t, 2*time.Second, "publish", func() bool { return f.pub.count() >= 1 })

	if got := f.pub.list()[0].topic; got != "plant/data/1" {
		t.Errorf("topic = %q, want plant/data/1", got)
	}
}

func TestEngine_ObserversSeeEveryPublish(t *testing.T) {
	f := newFixture()
	f.lineA()

	var mu sync.Mutex
	var events []models.PublishEvent
	f.engine(t, func(ev models.PublishEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})

	waitFor(t, 2*time.Second, "observer event", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) >= 1
	})

	mu.Lock()
	defer mu.Unlock()
	if events[0].Broker != "plant" || events[0].Topic != "plant/data/LINE_A" {
		t.Errorf("event = %+v", events[0])
	}
	if !strings.Contains(events[0].Payload, `"HWID":"LINE_A"`) {
		t.Errorf("event payload = %s", events[0].Payload)
	}
}

func TestEngine_StartStopIdempotent(t *testing.T) {
	f := newFixture()
	e := poller.New(poller.Config{
		Store: f.store, Board: f.board, EIP: f.eip, SNMP: f.snmp, Publisher: f.pub,
		CycleDelay: 10 * time.Millisecond, IdleDelay: 10 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	e.Start(ctx)
	e.Start(ctx) // second Start is a no-op

	cancel()
	e.Stop()
	e.Stop() // second Stop is a no-op
}

// ─────────────────────────────────────────────────────────────────────────────
// Worker pool
// ─────────────────────────────────────────────────────────────────────────────

func TestWorkerPool_RunsAllTasks(t *testing.T) {
	pool := poller.NewWorkerPool(3, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	var mu sync.Mutex
	ran := 0
	var batch sync.WaitGroup
	for i := 0; i < 20; i++ {
		batch.Add(1)
		pool.Submit(ctx, poller.Task{
			Run: func(context.Context) {
				mu.Lock()
				ran++
				mu.Unlock()
			},
			Done: batch.Done,
		})
	}
	batch.Wait()

	mu.Lock()
	defer mu.Unlock()
	if ran != 20 {
		t.Errorf("ran %d tasks, want 20", ran)
	}
}

func TestWorkerPool_TaskTimeout(t *testing.T) {
	pool := poller.NewWorkerPool(1, 20*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	var batch sync.WaitGroup
	batch.Add(1)
	start := time.Now()
	pool.Submit(ctx, poller.Task{
		Run: func(tctx context.Context) {
			<-tctx.Done() // holds the worker until the per-task deadline fires
		},
		Done: batch.Done,
	})
	batch.Wait()

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("task held the worker for %v, want ~20ms", elapsed)
	}
}

func TestWorkerPool_CancelReleasesWaiters(t *testing.T) {
	pool := poller.NewWorkerPool(1, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	var batch sync.WaitGroup
	for i := 0; i < 3; i++ {
		batch.Add(1)
		pool.Submit(ctx, poller.Task{
			Run:  func(tctx context.Context) { <-tctx.Done() },
			Done: batch.Done,
		})
	}
	cancel()

	// A task submitted after cancellation must still be accounted for.
	batch.Add(1)
	pool.Submit(ctx, poller.Task{
		Run:  func(tctx context.Context) { <-tctx.Done() },
		Done: batch.Done,
	})

	released := make(chan struct{})
	go func() {
		batch.Wait()
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled pool left the batch waiting")
	}
	pool.Stop()
}

func TestWorkerPool_PanicDoesNotKillWorker(t *testing.T) {
	pool := poller.NewWorkerPool(1, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	var batch sync.WaitGroup
	batch.Add(2)
	pool.Submit(ctx, poller.Task{Run: func(context.Context) { panic("bad device") }, Done: batch.Done})

	ran := false
	pool.Submit(ctx, poller.Task{Run: func(context.Context) { ran = true }, Done: batch.Done})
	batch.Wait()

	if !ran {
		t.Error("worker died after a panicking task")
	}
}
