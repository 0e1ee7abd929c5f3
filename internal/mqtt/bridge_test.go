// internal/mqtt/bridge_test.go
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/tamzrod/zentec-bridge/internal/config"
	"github.com/tamzrod/zentec-bridge/internal/coordinator"
	"github.com/tamzrod/zentec-bridge/internal/entity"
	"github.com/tamzrod/zentec-bridge/internal/status"
)

// ---- fakes ----

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Error() error                   { return t.err }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	payload  string
	retained bool
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	subs []string
}

func (f *fakePublisher) Publish(topic string, _ byte, retained bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic, fmt.Sprint(payload), retained})
	return fakeToken{}
}

func (f *fakePublisher) Subscribe(topic string, _ byte, _ paho.MessageHandler) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, topic)
	return fakeToken{}
}

func (f *fakePublisher) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = nil
}

func (f *fakePublisher) last(topic string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.msgs) - 1; i >= 0; i-- {
		if f.msgs[i].topic == topic {
			return f.msgs[i].payload, true
		}
	}
	return "", false
}

func (f *fakePublisher) subCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

type fakeSource struct {
	st coordinator.State
	ch chan coordinator.State
}

func (f *fakeSource) State() coordinator.State { return f.st }

func (f *fakeSource) Subscribe() (<-chan coordinator.State, func()) {
	return f.ch, func() {}
}

type fakeController struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeController) rec(s string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
	return nil
}

func (f *fakeController) SetPower(_ context.Context, on bool) error {
	return f.rec(fmt.Sprintf("power=%v", on))
}
func (f *fakeController) SetFanSpeed(_ context.Context, s int) error {
	return f.rec(fmt.Sprintf("fan_speed=%d", s))
}
func (f *fakeController) SetModeValue(_ context.Context, v int) error {
	return f.rec(fmt.Sprintf("mode=%d", v))
}
func (f *fakeController) SetTargetTemp(_ context.Context, v float64) error {
	return f.rec(fmt.Sprintf("target_temp=%v", v))
}
func (f *fakeController) SetMinHeatTemp(_ context.Context, v float64) error {
	return f.rec(fmt.Sprintf("min_heat_temp=%v", v))
}
func (f *fakeController) SetMaxHeatTemp(_ context.Context, v float64) error {
	return f.rec(fmt.Sprintf("max_heat_temp=%v", v))
}

func (f *fakeController) got() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.calls, ",")
}

type fakeMessage struct {
	topic   string
	payload string
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return []byte(m.payload) }
func (m fakeMessage) Ack()              {}

func newBridge(t *testing.T, src *fakeSource) (*Bridge, *fakePublisher, *fakeController) {
	t.Helper()

	pub := &fakePublisher{}
	ctl := &fakeController{}
	b, err := NewBridge(Config{
		DiscoveryPrefix: "homeassistant",
		TopicPrefix:     "zentec031",
		NodeID:          "zentec031_host_502_1",
		UniqueID:        "host:502:1",
		DeviceName:      "Zentec 031",
		Policy:          entity.PolicyFrom(config.Default().Policy),
		Log:             zerolog.Nop(),
	}, pub, src, ctl)
	if err != nil {
		t.Fatalf("NewBridge err=%v", err)
	}
	return b, pub, ctl
}

func withData() coordinator.State {
	return coordinator.State{
		HasData: true,
		Snapshot: status.Snapshot{
			Power:      status.Some(true),
			ModeRaw:    status.Some(uint16(2)),
			FanSpeed:   status.Some(3),
			TargetTemp: status.Some(21.5),
			SupplyTemp: status.Some(22.0),
			AlarmCode:  status.Some(uint16(0)),
		},
	}
}

// ---- tests ----

func TestTopics(t *testing.T) {
	tp := NewTopics("/homeassistant/", "zentec031/", "node")
	if got := tp.Command("number", "target_temp"); got != "zentec031/node/number/target_temp/set" {
		t.Fatalf("command topic: %q", got)
	}
	if got := tp.Config("climate", "climate"); got != "homeassistant/climate/node/climate/config" {
		t.Fatalf("config topic: %q", got)
	}
	if got := tp.Bridge(); got != "zentec031/node/bridge" {
		t.Fatalf("bridge topic: %q", got)
	}
}

func TestAnnounce_PublishesDiscoveryAndSubscribes(t *testing.T) {
	b, pub, _ := newBridge(t, &fakeSource{})
	b.announce()

	tp := b.Topics()
	if v, _ := pub.last(tp.Bridge()); v != "online" {
		t.Fatalf("bridge: got=%q want=online", v)
	}
	if v, _ := pub.last(tp.Availability()); v != "offline" {
		t.Fatalf("availability without data: got=%q want=offline", v)
	}

	// climate, fan, power + 3 numbers
	if n := pub.subCount(); n != 10 {
		t.Fatalf("subscriptions: got=%d want=10", n)
	}

	raw, ok := pub.last(tp.Config("climate", "climate"))
	if !ok {
		t.Fatalf("climate discovery not published")
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("discovery json: %v", err)
	}
	if m["unique_id"] != "zentec031_host_502_1_climate" {
		t.Fatalf("unique_id: %v", m["unique_id"])
	}
	if m["availability_mode"] != "all" {
		t.Fatalf("availability_mode: %v", m["availability_mode"])
	}
	if m["mode_command_topic"] != tp.Command("climate", "mode") {
		t.Fatalf("mode_command_topic: %v", m["mode_command_topic"])
	}

	for _, key := range []string{"supply_temp", "alarm_code_3", "mode_raw"} {
		if _, ok := pub.last(tp.Config("sensor", key)); !ok {
			t.Fatalf("sensor %s discovery missing", key)
		}
	}
}

func TestPublishState_ProjectsAndCaches(t *testing.T) {
	b, pub, _ := newBridge(t, &fakeSource{})
	tp := b.Topics()

	st := withData()
	b.PublishState(st)

	checks := map[string]string{
		tp.Availability():                          "online",
		tp.State("climate", "mode"):                "heat",
		tp.State("climate", "action"):              "heating",
		tp.State("climate", "current_temperature"): "22",
		tp.State("climate", "target_temperature"):  "21.5",
		tp.State("fan", "state"):                   "ON",
		tp.State("fan", "percentage"):              "100",
		tp.State("fan", "preset_mode"):             "3",
		tp.State("power", "state"):                 "ON",
		tp.State("number", "target_temp"):          "21.5",
		tp.State("number", "min_heat_temp"):        "None",
		tp.State("sensor", "alarm_code"):           "0",
		tp.State("sensor", "outdoor_temp"):         "None",
	}
	for topic, want := range checks {
		if got, _ := pub.last(topic); got != want {
			t.Fatalf("%s: got=%q want=%q", topic, got, want)
		}
	}

	pub.reset()
	b.PublishState(st)
	if n := pub.count(); n != 0 {
		t.Fatalf("unchanged state republished %d messages", n)
	}

	st.Snapshot.FanSpeed = status.Some(1)
	b.PublishState(st)
	if got, _ := pub.last(tp.State("fan", "percentage")); got != "33" {
		t.Fatalf("percentage: got=%q want=33", got)
	}
	// climate fan mode, fan percentage, fan preset
	if n := pub.count(); n != 3 {
		t.Fatalf("only changed topics may publish, got %d", n)
	}
}

func TestCommands(t *testing.T) {
	cases := []struct {
		topic   []string
		payload string
		want    string
	}{
		{[]string{"climate", "mode"}, "heat", "power=true,mode=2"},
		{[]string{"climate", "mode"}, "fan_only", "power=true,mode=1"},
		{[]string{"climate", "mode"}, "off", "power=false"},
		{[]string{"climate", "target_temperature"}, "35", "target_temp=30"},
		{[]string{"climate", "fan_mode"}, "2", "power=true,fan_speed=2"},
		{[]string{"fan"}, "ON", "power=true"},
		{[]string{"fan"}, "OFF", "power=false"},
		{[]string{"fan", "percentage"}, "66", "power=true,fan_speed=2"},
		{[]string{"fan", "preset_mode"}, "1", "power=true,fan_speed=1"},
		{[]string{"power"}, "OFF", "power=false"},
		{[]string{"number", "max_heat_temp"}, "27.5", "max_heat_temp=27.5"},
		{[]string{"number", "min_heat_temp"}, "abc", ""},
		{[]string{"fan"}, "MAYBE", ""},
	}

	for _, c := range cases {
		b, _, ctl := newBridge(t, &fakeSource{})
		topic := b.Topics().Command(c.topic...)

		b.execute(context.Background(), command{topic: topic, payload: c.payload})
		if got := ctl.got(); got != c.want {
			t.Fatalf("%s %q: got=%q want=%q", topic, c.payload, got, c.want)
		}
	}
}

func TestFailedCommandRepublishesState(t *testing.T) {
	src := &fakeSource{st: withData()}
	b, pub, _ := newBridge(t, src)

	b.PublishState(src.st)
	pub.reset()

	b.execute(context.Background(), command{topic: b.Topics().Command("power"), payload: "bogus"})
	if got, _ := pub.last(b.Topics().State("power", "state")); got != "ON" {
		t.Fatalf("state not republished after failed command: got=%q", got)
	}
}

func TestRun_PublishesAndGoesOffline(t *testing.T) {
	src := &fakeSource{ch: make(chan coordinator.State, 1)}
	b, pub, ctl := newBridge(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	src.ch <- withData()
	b.onMessage(nil, fakeMessage{topic: b.Topics().Command("power"), payload: "ON"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, published := pub.last(b.Topics().State("climate", "mode"))
		if published && ctl.got() == "power=true" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("state or command not processed: calls=%q", ctl.got())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done

	if v, _ := pub.last(b.Topics().Bridge()); v != "offline" {
		t.Fatalf("bridge: got=%q want=offline", v)
	}
}

func TestOnConnect_AnnouncesFromRun(t *testing.T) {
	src := &fakeSource{st: withData(), ch: make(chan coordinator.State, 1)}
	b, pub, _ := newBridge(t, src)

	// Called from the paho goroutine: only signals, coalesces repeats.
	b.OnConnect()
	b.OnConnect()
	if n := pub.count(); n != 0 {
		t.Fatalf("OnConnect published directly: got=%d messages want=0", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		v, _ := pub.last(b.Topics().Availability())
		if v == "online" && pub.subCount() == 10 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("announce not processed: availability=%q subs=%d", v, pub.subCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A reconnect while running republishes the full state again.
	pub.reset()
	b.OnConnect()
	for {
		if v, _ := pub.last(b.Topics().State("power", "state")); v == "ON" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("state not republished after reconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
	if n := pub.subCount(); n != 20 {
		t.Fatalf("subscriptions after two announces: got=%d want=20", n)
	}
}
