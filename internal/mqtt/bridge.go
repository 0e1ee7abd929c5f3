// internal/mqtt/bridge.go
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/tamzrod/zentec-bridge/internal/coordinator"
	"github.com/tamzrod/zentec-bridge/internal/entity"
	"github.com/tamzrod/zentec-bridge/internal/status"
)

// Publisher is the part of paho.Client the bridge uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// Source is the read side of the coordinator.
type Source interface {
	State() coordinator.State
	Subscribe() (<-chan coordinator.State, func())
}

type Config struct {
	DiscoveryPrefix string
	TopicPrefix     string
	NodeID          string
	UniqueID        string
	DeviceName      string
	Policy          entity.Policy

	CommandTimeout time.Duration // per command, default 30s
	WaitTimeout    time.Duration // per publish, default 5s
	Log            zerolog.Logger
}

type command struct {
	topic   string
	payload string
}

// Bridge exposes one coordinator as Home Assistant MQTT entities.
type Bridge struct {
	cfg Config
	t   Topics
	log zerolog.Logger

	pub Publisher
	ctl entity.Controller
	src Source

	handlers  map[string]func(context.Context, string) error
	cmds      chan command
	reconnect chan struct{}

	mu   sync.Mutex
	last map[string]string // retained state cache
}

func NewBridge(cfg Config, pub Publisher, src Source, ctl entity.Controller) (*Bridge, error) {
	if pub == nil || src == nil || ctl == nil {
		return nil, errors.New("mqtt: publisher, source and controller required")
	}
	if cfg.NodeID == "" {
		return nil, errors.New("mqtt: node id required")
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 30 * time.Second
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 5 * time.Second
	}

	b := &Bridge{
		cfg:       cfg,
		t:         NewTopics(cfg.DiscoveryPrefix, cfg.TopicPrefix, cfg.NodeID),
		log:       cfg.Log,
		pub:       pub,
		ctl:       ctl,
		src:       src,
		cmds:      make(chan command, 32),
		reconnect: make(chan struct{}, 1),
		last:      map[string]string{},
	}
	b.handlers = b.commandHandlers()
	return b, nil
}

func (b *Bridge) Topics() Topics { return b.t }

// OnConnect schedules an announce on the Run goroutine. It never blocks,
// so it can be wired straight to the paho OnConnect hook. Signals that
// arrive before Run starts are kept and coalesced.
func (b *Bridge) OnConnect() {
	select {
	case b.reconnect <- struct{}{}:
	default:
	}
}

// announce marks the bridge online, (re)publishes discovery, subscribes to
// the command topics and forces a full state publish.
func (b *Bridge) announce() {
	b.publish(b.t.Bridge(), payloadOnline, true)

	for _, m := range b.discovery() {
		raw, err := json.Marshal(m.Payload)
		if err != nil {
			b.log.Error().Err(err).Str("topic", m.Topic).Msg("discovery encode failed")
			continue
		}
		b.publish(m.Topic, string(raw), true)
	}

	for topic := range b.handlers {
		tok := b.pub.Subscribe(topic, 0, b.onMessage)
		if !tok.WaitTimeout(b.cfg.WaitTimeout) {
			b.log.Warn().Str("topic", topic).Msg("subscribe timed out")
			continue
		}
		if err := tok.Error(); err != nil {
			b.log.Error().Err(err).Str("topic", topic).Msg("subscribe failed")
		}
	}

	b.forceState()
}

// Run publishes every state change, handles reconnect announces and
// executes commands in arrival order until ctx is done. The bridge is
// announced offline on return.
func (b *Bridge) Run(ctx context.Context) {
	states, unsubscribe := b.src.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			b.publish(b.t.Bridge(), payloadOffline, true)
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			b.PublishState(st)
		case <-b.reconnect:
			b.announce()
		case c := <-b.cmds:
			b.execute(ctx, c)
		}
	}
}

// onMessage runs on the paho router goroutine and must not block.
func (b *Bridge) onMessage(_ paho.Client, msg paho.Message) {
	c := command{topic: msg.Topic(), payload: strings.TrimSpace(string(msg.Payload()))}
	select {
	case b.cmds <- c:
	default:
		b.log.Warn().Str("topic", c.topic).Msg("command queue full, dropped")
	}
}

func (b *Bridge) execute(ctx context.Context, c command) {
	h, ok := b.handlers[c.topic]
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, b.cfg.CommandTimeout)
	defer cancel()

	if err := h(cctx, c.payload); err != nil {
		b.log.Error().Err(err).Str("topic", c.topic).Str("payload", c.payload).Msg("command failed")
		// Revert optimistic UIs to what the device reports.
		b.forceState()
		return
	}
	b.log.Info().Str("topic", c.topic).Str("payload", c.payload).Msg("command applied")
}

func (b *Bridge) forceState() {
	b.mu.Lock()
	b.last = map[string]string{}
	b.mu.Unlock()
	b.PublishState(b.src.State())
}

// ---- state ----

// PublishState publishes every entity attribute that changed since the
// previous publish.
func (b *Bridge) PublishState(st coordinator.State) {
	t := b.t
	p := b.cfg.Policy
	s, has := st.Snapshot, st.HasData

	avail := payloadOffline
	if has {
		avail = payloadOnline
	}
	b.publishCached(t.Availability(), avail)

	c := p.Climate(s, has)
	b.publishCached(t.State("climate", "mode"), string(c.Mode))
	b.publishCached(t.State("climate", "action"), string(c.Action))
	b.publishCached(t.State("climate", "current_temperature"), formatFloat(c.CurrentTemp))
	b.publishCached(t.State("climate", "target_temperature"), formatFloat(c.TargetTemp))
	b.publishCached(t.State("climate", "fan_mode"), orNone(c.FanMode))

	f := p.Fan(s, has)
	b.publishCached(t.State("fan", "state"), formatOnOff(f.On))
	b.publishCached(t.State("fan", "percentage"), formatInt(f.Percentage))
	b.publishCached(t.State("fan", "preset_mode"), orNone(f.PresetMode))

	b.publishCached(t.State("power", "state"), formatOnOff(entity.PowerSwitch(s, has)))

	for _, n := range entity.Numbers {
		b.publishCached(t.State("number", n.Key), formatFloat(n.Value(s, has)))
	}
	for _, sn := range p.Sensors() {
		v, ok := sn.Value(s, has)
		payload := payloadNone
		if ok {
			payload = strconv.FormatFloat(v, 'f', -1, 64)
		}
		b.publishCached(t.State("sensor", sn.Key), payload)
	}
}

func (b *Bridge) publishCached(topic, payload string) {
	b.mu.Lock()
	if prev, ok := b.last[topic]; ok && prev == payload {
		b.mu.Unlock()
		return
	}
	b.last[topic] = payload
	b.mu.Unlock()

	b.publish(topic, payload, true)
}

func (b *Bridge) publish(topic, payload string, retain bool) {
	tok := b.pub.Publish(topic, 0, retain, payload)
	if !tok.WaitTimeout(b.cfg.WaitTimeout) {
		b.log.Warn().Str("topic", topic).Msg("publish timed out")
		return
	}
	if err := tok.Error(); err != nil {
		b.log.Error().Err(err).Str("topic", topic).Msg("publish failed")
	}
}

// ---- commands ----

func (b *Bridge) commandHandlers() map[string]func(context.Context, string) error {
	t := b.t
	p := b.cfg.Policy
	ctl := b.ctl

	h := map[string]func(context.Context, string) error{
		t.Command("climate", "mode"): func(ctx context.Context, v string) error {
			return p.SetHVACMode(ctx, ctl, entity.HVACMode(strings.ToLower(v)))
		},
		t.Command("climate", "target_temperature"): func(ctx context.Context, v string) error {
			f, err := parseFloat(v)
			if err != nil {
				return err
			}
			return p.SetClimateTemperature(ctx, ctl, f)
		},
		t.Command("climate", "fan_mode"): func(ctx context.Context, v string) error {
			return p.SetClimateFanMode(ctx, ctl, v)
		},
		t.Command("fan"): func(ctx context.Context, v string) error {
			on, err := parseOnOff(v)
			if err != nil {
				return err
			}
			if on {
				return p.FanTurnOn(ctx, ctl, nil)
			}
			return p.FanTurnOff(ctx, ctl)
		},
		t.Command("fan", "percentage"): func(ctx context.Context, v string) error {
			f, err := parseFloat(v)
			if err != nil {
				return err
			}
			return p.SetPercentage(ctx, ctl, int(math.Round(f)))
		},
		t.Command("fan", "preset_mode"): func(ctx context.Context, v string) error {
			return p.SetPresetMode(ctx, ctl, v)
		},
		t.Command("power"): func(ctx context.Context, v string) error {
			on, err := parseOnOff(v)
			if err != nil {
				return err
			}
			return entity.SetPowerSwitch(ctx, ctl, on)
		},
	}

	for _, n := range entity.Numbers {
		n := n
		h[t.Command("number", n.Key)] = func(ctx context.Context, v string) error {
			f, err := parseFloat(v)
			if err != nil {
				return err
			}
			return n.Set(ctx, ctl, f)
		}
	}
	return h
}

// ---- payload codecs ----

func parseOnOff(v string) (bool, error) {
	switch strings.ToUpper(v) {
	case payloadOn:
		return true, nil
	case payloadOff:
		return false, nil
	}
	return false, fmt.Errorf("mqtt: expected ON or OFF, got %q", v)
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("mqtt: bad number %q", v)
	}
	return f, nil
}

func formatFloat(o status.Opt[float64]) string {
	v, ok := o.Get()
	if !ok {
		return payloadNone
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatInt(o status.Opt[int]) string {
	v, ok := o.Get()
	if !ok {
		return payloadNone
	}
	return strconv.Itoa(v)
}

func formatOnOff(o status.Opt[bool]) string {
	v, ok := o.Get()
	if !ok {
		return payloadNone
	}
	if v {
		return payloadOn
	}
	return payloadOff
}

func orNone(s string) string {
	if s == "" {
		return payloadNone
	}
	return s
}
