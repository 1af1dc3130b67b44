package mqtt_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/pkg/bridge/mqtt"
	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/pkg/bridge/store"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fake paho client
// ─────────────────────────────────────────────────────────────────────────────

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Error() error                   { return t.err }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type pubRecord struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	opts       *paho.ClientOptions
	connectErr error
	publishErr error
	stayDown   bool

	mu          sync.Mutex
	connected   bool
	published   []pubRecord
	handlers    map[string]paho.MessageHandler
	disconnects int
}

func (c *fakeClient) Connect() paho.Token {
	if c.connectErr != nil {
		return fakeToken{err: c.connectErr}
	}
	if c.stayDown {
		return fakeToken{}
	}
	c.mu.Lock()
	c.connected = true
	onConnect := c.opts.OnConnect
	c.mu.Unlock()
	if onConnect != nil {
		onConnect(c)
	}
	return fakeToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnects++
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	if c.publishErr != nil {
		return fakeToken{err: c.publishErr}
	}
	b, _ := payload.([]byte)
	c.mu.Lock()
	c.published = append(c.published, pubRecord{topic: topic, payload: append([]byte(nil), b...)})
	c.mu.Unlock()
	return fakeToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb paho.MessageHandler) paho.Token {
	c.mu.Lock()
	c.handlers[topic] = cb
	c.mu.Unlock()
	return fakeToken{}
}

func (c *fakeClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return fakeToken{}
}

func (c *fakeClient) Unsubscribe(...string) paho.Token        { return fakeToken{} }
func (c *fakeClient) AddRoute(string, paho.MessageHandler)    {}
func (c *fakeClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }

func (c *fakeClient) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *fakeClient) records() []pubRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]pubRecord(nil), c.published...)
}

func (c *fakeClient) disconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

func (c *fakeClient) subscription() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for filter := range c.handlers {
		return filter
	}
	return ""
}

// deliver pushes a message into the client's single subscription handler the
// way the paho router would.
func (c *fakeClient) deliver(t *testing.T, topic, payload string) {
	t.Helper()
	c.mu.Lock()
	if len(c.handlers) != 1 {
		c.mu.Unlock()
		t.Fatalf("fake client has %d subscriptions, want 1", len(c.handlers))
	}
	var h paho.MessageHandler
	for _, v := range c.handlers {
		h = v
	}
	c.mu.Unlock()
	h(c, fakeMessage{topic: topic, payload: []byte(payload)})
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// clientFarm hands out fake clients and remembers every one it created.
type clientFarm struct {
	connectErr error
	publishErr error
	stayDown   bool

	mu      sync.Mutex
	created []*fakeClient
}

func (f *clientFarm) factory(opts *paho.ClientOptions) paho.Client {
	c := &fakeClient{
		opts:       opts,
		connectErr: f.connectErr,
		publishErr: f.publishErr,
		stayDown:   f.stayDown,
		handlers:   make(map[string]paho.MessageHandler),
	}
	f.mu.Lock()
	f.created = append(f.created, c)
	f.mu.Unlock()
	return c
}

func (f *clientFarm) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *clientFarm) client(i int) *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[i]
}

func (f *clientFarm) allPublished() []pubRecord {
	f.mu.Lock()
	clients := append([]*fakeClient(nil), f.created...)
	f.mu.Unlock()
	var out []pubRecord
	for _, c := range clients {
		out = append(out, c.records()...)
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Store and writer stubs
// ─────────────────────────────────────────────────────────────────────────────

type boardStub struct {
	mu      sync.Mutex
	kind    string
	id      uint
	ok      bool
	message string
	calls   int
}

func (b *boardStub) Set(kind string, id uint, connected bool, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kind, b.id, b.ok, b.message = kind, id, connected, message
	b.calls++
}

type finderStub struct {
	dev models.SNMPDevice
	err error

	mu      sync.Mutex
	lookups []string
}

func (f *finderStub) FindSNMPDeviceByHWID(_ context.Context, hwid string) (models.SNMPDevice, error) {
	f.mu.Lock()
	f.lookups = append(f.lookups, hwid)
	f.mu.Unlock()
	if f.err != nil {
		return models.SNMPDevice{}, f.err
	}
	return f.dev, nil
}

func (f *finderStub) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lookups...)
}

type writeCall struct {
	devID uint
	name  string
	value string
}

type writerStub struct {
	err error

	mu     sync.Mutex
	writes []writeCall
}

func (w *writerStub) WriteByName(_ context.Context, dev models.SNMPDevice, name, value string) (models.SNMPObject, error) {
	w.mu.Lock()
	w.writes = append(w.writes, writeCall{dev.ID, name, value})
	w.mu.Unlock()
	if w.err != nil {
		return models.SNMPObject{}, w.err
	}
	return models.SNMPObject{Name: name}, nil
}

func (w *writerStub) calls() []writeCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]writeCall(nil), w.writes...)
}

func newTestGateway(t *testing.T, farm *clientFarm, board *boardStub, finder *finderStub, writer *writerStub) *mqtt.Gateway {
	t.Helper()
	g := mqtt.New(mqtt.Config{
		Board:          board,
		Store:          finder,
		Writer:         writer,
		Clients:        farm.factory,
		ConnectTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(g.Stop)
	return g
}

func testBroker() models.MQTTBroker {
	return models.MQTTBroker{
		ID: 3, Name: "plant", Broker: "10.0.0.9", Port: 1883,
		PublishTopic: "plant/data", SubscribeTopic: "plant/cmd", Enabled: true,
	}
}

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

// ─────────────────────────────────────────────────────────────────────────────
// Publisher pool
// ─────────────────────────────────────────────────────────────────────────────

func TestPublish_ReusesPublisher(t *testing.T) {
	farm := &clientFarm{}
	g := newTestGateway(t, farm, &boardStub{}, &finderStub{}, &writerStub{})
	broker := testBroker()

	if err := g.Publish(broker, "plant/data/sw01", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := g.Publish(broker, "plant/data/sw01", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if got := farm.count(); got != 1 {
		t.Errorf("created %d clients for one broker, want 1", got)
	}
	recs := farm.client(0).records()
	if len(recs) != 2 || recs[0].topic != "plant/data/sw01" {
		t.Errorf("published %+v, want two messages on plant/data/sw01", recs)
	}
}

func TestPublish_EvictsWhenDisconnected(t *testing.T) {
	farm := &clientFarm{}
	g := newTestGateway(t, farm, &boardStub{}, &finderStub{}, &writerStub{})
	broker := testBroker()

	if err := g.Publish(broker, "plant/data/sw01", []byte("x")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	farm.client(0).setConnected(false)

	if err := g.Publish(broker, "plant/data/sw01", []byte("y")); err == nil {
		t.Fatal("Publish() on a dead client succeeded, want error")
	}
	if err := g.Publish(broker, "plant/data/sw01", []byte("z")); err != nil {
		t.Fatalf("Publish() after eviction error = %v, want a fresh client", err)
	}
	if got := farm.count(); got != 2 {
		t.Errorf("created %d clients, want 2 (original plus replacement)", got)
	}
}

func TestPublish_ConnectFailure(t *testing.T) {
	farm := &clientFarm{connectErr: errors.New("auth failed")}
	g := newTestGateway(t, farm, &boardStub{}, &finderStub{}, &writerStub{})

	err := g.Publish(testBroker(), "plant/data/sw01", []byte("x"))
	if err == nil || !strings.Contains(err.Error(), "auth failed") {
		t.Fatalf("Publish() error = %v, want the connect failure", err)
	}
	if err := g.Publish(testBroker(), "plant/data/sw01", []byte("x")); err == nil {
		t.Fatal("second Publish() succeeded, want repeated connect failure")
	}
	if got := farm.count(); got != 2 {
		t.Errorf("created %d clients, want a fresh attempt per publish", got)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ConnectBroker
// ─────────────────────────────────────────────────────────────────────────────

func TestConnectBroker_RecordsOutcome(t *testing.T) {
	farm := &clientFarm{}
	board := &boardStub{}
	g := newTestGateway(t, farm, board, &finderStub{}, &writerStub{})

	if err := g.ConnectBroker(context.Background(), testBroker()); err != nil {
		t.Fatalf("ConnectBroker() error = %v", err)
	}
	if board.kind != models.SourceMQTT || board.id != 3 || !board.ok || board.message != "connected" {
		t.Errorf("board = (%s, %d, %v, %q), want (mqtt, 3, true, connected)",
			board.kind, board.id, board.ok, board.message)
	}
	if farm.client(0).disconnectCount() == 0 {
		t.Error("test client left connected")
	}
}

func TestConnectBroker_FailureRecordsBoard(t *testing.T) {
	farm := &clientFarm{connectErr: errors.New("connection refused")}
	board := &boardStub{}
	g := newTestGateway(t, farm, board, &finderStub{}, &writerStub{})

	if err := g.ConnectBroker(context.Background(), testBroker()); err == nil {
		t.Fatal("ConnectBroker() succeeded, want error")
	}
	if board.ok || !strings.Contains(board.message, "connection refused") {
		t.Errorf("board = (%v, %q), want failure with the dial error", board.ok, board.message)
	}
}

func TestConnectBroker_Timeout(t *testing.T) {
	farm := &clientFarm{stayDown: true}
	board := &boardStub{}
	g := newTestGateway(t, farm, board, &finderStub{}, &writerStub{})

	err := g.ConnectBroker(context.Background(), testBroker())
	if err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("ConnectBroker() error = %v, want timeout", err)
	}
	if board.ok || board.message != "connection timeout" {
		t.Errorf("board = (%v, %q), want (false, connection timeout)", board.ok, board.message)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Subscribers
// ─────────────────────────────────────────────────────────────────────────────

func TestStartSubscriber_SubscribesOnConnect(t *testing.T) {
	farm := &clientFarm{}
	board := &boardStub{}
	g := newTestGateway(t, farm, board, &finderStub{}, &writerStub{})

	if err := g.StartSubscriber(testBroker()); err != nil {
		t.Fatalf("StartSubscriber() error = %v", err)
	}
	if got := farm.client(0).subscription(); got != "plant/cmd/#" {
		t.Errorf("subscribed to %q, want plant/cmd/#", got)
	}
	if !board.ok || board.message != "subscribed to plant/cmd" {
		t.Errorf("board = (%v, %q), want subscribed", board.ok, board.message)
	}

	// A second start for the same broker keeps the existing client.
	if err := g.StartSubscriber(testBroker()); err != nil {
		t.Fatalf("StartSubscriber() again error = %v", err)
	}
	if got := farm.count(); got != 1 {
		t.Errorf("created %d clients, want 1", got)
	}
}

func TestStartSubscriber_NoTopicIsNoop(t *testing.T) {
	farm := &clientFarm{}
	g := newTestGateway(t, farm, &boardStub{}, &finderStub{}, &writerStub{})

	broker := testBroker()
	broker.SubscribeTopic = ""
	if err := g.StartSubscriber(broker); err != nil {
		t.Fatalf("StartSubscriber() error = %v", err)
	}
	if got := farm.count(); got != 0 {
		t.Errorf("created %d clients for a broker with no subscribe topic, want 0", got)
	}
}

func TestRestartSubscriber_ReplacesClient(t *testing.T) {
	farm := &clientFarm{}
	g := newTestGateway(t, farm, &boardStub{}, &finderStub{}, &writerStub{})

	if err := g.StartSubscriber(testBroker()); err != nil {
		t.Fatalf("StartSubscriber() error = %v", err)
	}
	old := farm.client(0)

	if err := g.RestartSubscriber(testBroker()); err != nil {
		t.Fatalf("RestartSubscriber() error = %v", err)
	}
	if old.disconnectCount() == 0 {
		t.Error("old subscriber never disconnected")
	}
	if got := farm.count(); got != 2 {
		t.Fatalf("created %d clients, want 2", got)
	}
	if got := farm.client(1).subscription(); got != "plant/cmd/#" {
		t.Errorf("replacement subscribed to %q, want plant/cmd/#", got)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Command dispatch
// ─────────────────────────────────────────────────────────────────────────────

func TestDispatch_WritesAndConfirms(t *testing.T) {
	farm := &clientFarm{}
	finder := &finderStub{dev: models.SNMPDevice{ID: 7, Name: "Core Switch", HWID: "switch-core"}}
	writer := &writerStub{}
	g := newTestGateway(t, farm, &boardStub{}, finder, writer)

	if err := g.StartSubscriber(testBroker()); err != nil {
		t.Fatalf("StartSubscriber() error = %v", err)
	}
	g.Start()

	farm.client(0).deliver(t, "plant/cmd/switch-core",
		`{"device_id": 7, "Parameter_Name": "sysName", "value": "edge-sw-02", "message_id": "m-1"}`)

	waitFor(t, 2*time.Second, "the write to land", func() bool { return len(writer.calls()) == 1 })
	if got := writer.calls()[0]; got != (writeCall{devID: 7, name: "sysName", value: "edge-sw-02"}) {
		t.Errorf("write = %+v, want device 7 sysName=edge-sw-02", got)
	}
	if seen := finder.seen(); len(seen) != 1 || seen[0] != "switch-core" {
		t.Errorf("device lookups = %v, want the topic HWID", seen)
	}

	waitFor(t, 2*time.Second, "the confirmation", func() bool { return len(farm.allPublished()) == 1 })
	rec := farm.allPublished()[0]
	if rec.topic != "plant/data/confirmation" {
		t.Errorf("confirmation topic = %q, want plant/data/confirmation", rec.topic)
	}

	var doc map[string]any
	if err := json.Unmarshal(rec.payload, &doc); err != nil {
		t.Fatalf("confirmation is not JSON: %v", err)
	}
	if doc["status"] != "success" || doc["hwid"] != "switch-core" || doc["Parameter_Name"] != "sysName" {
		t.Errorf("confirmation = %v, want success for switch-core sysName", doc)
	}
	if doc["device_id"] != float64(7) || doc["message_id"] != "m-1" {
		t.Errorf("confirmation identifiers = %v/%v, want the sender's echoed back", doc["device_id"], doc["message_id"])
	}
	if doc["topic"] != "plant/cmd/switch-core" {
		t.Errorf("confirmation topic field = %v, want the command topic", doc["topic"])
	}
	ts, ok := doc["timestamp"].(string)
	if !ok {
		t.Fatalf("confirmation timestamp = %v, want a string", doc["timestamp"])
	}
	if _, err := time.Parse(models.TimestampLayout, ts); err != nil {
		t.Errorf("timestamp %q does not match the payload layout: %v", ts, err)
	}
}

func TestDispatch_NumericValuePassedVerbatim(t *testing.T) {
	farm := &clientFarm{}
	finder := &finderStub{dev: models.SNMPDevice{ID: 7, HWID: "switch-core"}}
	writer := &writerStub{}
	g := newTestGateway(t, farm, &boardStub{}, finder, writer)

	broker := testBroker()
	broker.PublishTopic = ""
	if err := g.StartSubscriber(broker); err != nil {
		t.Fatalf("StartSubscriber() error = %v", err)
	}
	g.Start()

	farm.client(0).deliver(t, "plant/cmd/switch-core",
		`{"device_id": "switch-core", "Parameter_Name": "coolantSetpoint", "value": 101.3}`)

	waitFor(t, 2*time.Second, "the write to land", func() bool { return len(writer.calls()) == 1 })
	if got := writer.calls()[0].value; got != "101.3" {
		t.Errorf("write value = %q, want the literal 101.3", got)
	}
}

func TestDispatch_RootTopicFallsBackToDeviceID(t *testing.T) {
	farm := &clientFarm{}
	finder := &finderStub{dev: models.SNMPDevice{ID: 7, HWID: "switch-core"}}
	writer := &writerStub{}
	g := newTestGateway(t, farm, &boardStub{}, finder, writer)

	broker := testBroker()
	broker.PublishTopic = ""
	if err := g.StartSubscriber(broker); err != nil {
		t.Fatalf("StartSubscriber() error = %v", err)
	}
	g.Start()

	farm.client(0).deliver(t, "plant/cmd",
		`{"device_id": "switch-core", "Parameter_Name": "sysName", "value": "x"}`)

	waitFor(t, 2*time.Second, "the lookup", func() bool { return len(finder.seen()) == 1 })
	if got := finder.seen()[0]; got != "switch-core" {
		t.Errorf("lookup = %q, want the device_id fallback", got)
	}
}

func TestDispatch_UnknownDeviceDropped(t *testing.T) {
	farm := &clientFarm{}
	finder := &finderStub{err: store.ErrNotFound}
	writer := &writerStub{}
	g := newTestGateway(t, farm, &boardStub{}, finder, writer)

	if err := g.StartSubscriber(testBroker()); err != nil {
		t.Fatalf("StartSubscriber() error = %v", err)
	}
	g.Start()

	farm.client(0).deliver(t, "plant/cmd/ghost",
		`{"device_id": "ghost", "Parameter_Name": "sysName", "value": "x"}`)

	waitFor(t, 2*time.Second, "the lookup", func() bool { return len(finder.seen()) == 1 })
	time.Sleep(30 * time.Millisecond)
	if got := writer.calls(); len(got) != 0 {
		t.Errorf("writes = %+v, want none for an unknown device", got)
	}
	if pubs := farm.allPublished(); len(pubs) != 0 {
		t.Errorf("published %+v, want no acknowledgement for a dropped command", pubs)
	}
}

func TestDispatch_WriteFailurePublishesError(t *testing.T) {
	farm := &clientFarm{}
	finder := &finderStub{dev: models.SNMPDevice{ID: 7, HWID: "switch-core"}}
	writer := &writerStub{err: errors.New("snmp: write not permitted")}
	g := newTestGateway(t, farm, &boardStub{}, finder, writer)

	if err := g.StartSubscriber(testBroker()); err != nil {
		t.Fatalf("StartSubscriber() error = %v", err)
	}
	g.Start()

	farm.client(0).deliver(t, "plant/cmd/switch-core",
		`{"device_id": 7, "Parameter_Name": "sysDescr", "value": "x", "message_id": 42}`)

	waitFor(t, 2*time.Second, "the error document", func() bool { return len(farm.allPublished()) == 1 })
	rec := farm.allPublished()[0]
	if rec.topic != "plant/data/error" {
		t.Errorf("error topic = %q, want plant/data/error", rec.topic)
	}
	var doc map[string]any
	if err := json.Unmarshal(rec.payload, &doc); err != nil {
		t.Fatalf("error document is not JSON: %v", err)
	}
	if doc["status"] != "error" || !strings.Contains(doc["error"].(string), "not permitted") {
		t.Errorf("error document = %v, want status error with the cause", doc)
	}
	if doc["message_id"] != float64(42) {
		t.Errorf("message_id = %v, want the numeric identifier echoed", doc["message_id"])
	}
}

func TestDispatch_MalformedCommandsDropped(t *testing.T) {
	farm := &clientFarm{}
	finder := &finderStub{dev: models.SNMPDevice{ID: 7}}
	writer := &writerStub{}
	g := newTestGateway(t, farm, &boardStub{}, finder, writer)

	if err := g.StartSubscriber(testBroker()); err != nil {
		t.Fatalf("StartSubscriber() error = %v", err)
	}
	g.Start()

	sub := farm.client(0)
	sub.deliver(t, "plant/cmd/sw01", `not json at all`)
	sub.deliver(t, "plant/cmd/sw01", `{"device_id": 7}`)
	sub.deliver(t, "plant/cmd/sw01", `{"Parameter_Name": "sysName", "value": "x"}`)

	time.Sleep(50 * time.Millisecond)
	if got := writer.calls(); len(got) != 0 {
		t.Errorf("writes = %+v, want malformed commands dropped before dispatch", got)
	}
}

func TestDispatch_QueueBounded(t *testing.T) {
	farm := &clientFarm{}
	finder := &finderStub{dev: models.SNMPDevice{ID: 7, HWID: "switch-core"}}
	writer := &writerStub{}
	g := newTestGateway(t, farm, &boardStub{}, finder, writer)

	broker := testBroker()
	broker.PublishTopic = ""
	if err := g.StartSubscriber(broker); err != nil {
		t.Fatalf("StartSubscriber() error = %v", err)
	}

	// Dispatch is not running yet, so the queue fills and the overflow is
	// dropped at the door.
	sub := farm.client(0)
	for i := 0; i < 70; i++ {
		sub.deliver(t, "plant/cmd/switch-core",
			fmt.Sprintf(`{"device_id": "switch-core", "Parameter_Name": "sysName", "value": "%d"}`, i))
	}
	g.Start()

	waitFor(t, 2*time.Second, "the queue to drain", func() bool { return len(writer.calls()) == 64 })
	time.Sleep(50 * time.Millisecond)
	if got := len(writer.calls()); got != 64 {
		t.Errorf("writes = %d, want exactly the queue capacity", got)
	}
}

func TestStartStop_Idempotent(t *testing.T) {
	farm := &clientFarm{}
	g := newTestGateway(t, farm, &boardStub{}, &finderStub{}, &writerStub{})

	if err := g.StartSubscriber(testBroker()); err != nil {
		t.Fatalf("StartSubscriber() error = %v", err)
	}
	g.Start()
	g.Start()
	g.Stop()
	g.Stop()

	if farm.client(0).disconnectCount() == 0 {
		t.Error("subscriber still connected after Stop")
	}
}
