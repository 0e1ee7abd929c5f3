// cmd/zentecd/session.go
package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/tamzrod/zentec-bridge/internal/config"
	"github.com/tamzrod/zentec-bridge/internal/coordinator"
	"github.com/tamzrod/zentec-bridge/internal/device"
	"github.com/tamzrod/zentec-bridge/internal/entity"
	"github.com/tamzrod/zentec-bridge/internal/logging"
	"github.com/tamzrod/zentec-bridge/internal/metrics"
	"github.com/tamzrod/zentec-bridge/internal/mqtt"
)

const startupRefreshTimeout = 30 * time.Second

// session is everything built from one config: device, coordinator and
// adapters. A reload stops it and starts a new one.
type session struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup

	coord  *coordinator.Coordinator
	client paho.Client
}

func deviceLogger(cfg config.Config, log zerolog.Logger) zerolog.Logger {
	return log.With().
		Str("endpoint", cfg.Device.Endpoint).
		Int("unit", cfg.Device.UnitID).
		Logger()
}

func startSession(parent context.Context, cfg config.Config, log zerolog.Logger) (*session, error) {
	dlog := deviceLogger(cfg, log)

	// ---- device ----
	dev, err := device.Build(cfg, logging.Component(dlog, "device"))
	if err != nil {
		return nil, fmt.Errorf("device build: %w", err)
	}

	// ---- coordinator ----
	m := metrics.New(cfg.UniqueID())
	coord, err := coordinator.New(coordinator.Config{
		Interval: time.Duration(cfg.Poll.IntervalS) * time.Second,
		ReadOnly: cfg.Policy.ReadOnly,
		Log:      logging.Component(dlog, "coordinator"),
		Observer: m,
	}, dev)
	if err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("coordinator: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	s := &session{cancel: cancel, coord: coord}

	s.spawn(func() { coord.Run(ctx) })

	// One poll before the adapters start. A dead controller is not fatal:
	// entities stay unavailable until a poll succeeds.
	rctx, rcancel := context.WithTimeout(ctx, startupRefreshTimeout)
	if err := coord.Refresh(rctx); err != nil {
		dlog.Warn().Err(err).Msg("first poll failed, continuing")
	}
	rcancel()

	policy := entity.PolicyFrom(cfg.Policy)

	// ---- metrics ----
	s.spawn(func() { m.Run(ctx, coord) })
	if cfg.Metrics.Listen != "" {
		hlog := logging.Component(log, "http")
		h := metrics.Handler(m, coord, policy)
		s.spawn(func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, h, hlog); err != nil {
				hlog.Error().Err(err).Msg("http server failed")
			}
		})
	}

	// ---- mqtt ----
	if cfg.MQTT.Enabled {
		if err := s.startMQTT(ctx, cfg, policy, logging.Component(dlog, "mqtt")); err != nil {
			s.Stop()
			return nil, err
		}
	}

	dlog.Info().
		Int("interval_s", cfg.Poll.IntervalS).
		Int("reads_per_poll", len(dev.Plan())).
		Bool("read_only", cfg.Policy.ReadOnly).
		Bool("mqtt", cfg.MQTT.Enabled).
		Msg("session started")
	return s, nil
}

func (s *session) startMQTT(ctx context.Context, cfg config.Config, policy entity.Policy, log zerolog.Logger) error {
	topics := mqtt.NewTopics(cfg.MQTT.DiscoveryPrefix, cfg.MQTT.TopicPrefix, cfg.MQTT.NodeID)

	// The broker may connect before the bridge exists; the announce is
	// signalled explicitly below in that case. Run performs it.
	var (
		mu     sync.Mutex
		bridge *mqtt.Bridge
	)
	onConnect := func() {
		mu.Lock()
		b := bridge
		mu.Unlock()
		if b != nil {
			b.OnConnect()
		}
	}

	client, err := mqtt.Connect(mqtt.ClientConfig{
		Broker:    cfg.MQTT.Broker,
		ClientID:  cfg.MQTT.ClientID,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		WillTopic: topics.Bridge(),
		OnConnect: onConnect,
		Log:       log,
	})
	if err != nil {
		return err
	}
	s.client = client

	b, err := mqtt.NewBridge(mqtt.Config{
		DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
		TopicPrefix:     cfg.MQTT.TopicPrefix,
		NodeID:          cfg.MQTT.NodeID,
		UniqueID:        cfg.UniqueID(),
		DeviceName:      cfg.Device.Name,
		Policy:          policy,
		Log:             log,
	}, client, s.coord, s.coord)
	if err != nil {
		return err
	}

	mu.Lock()
	bridge = b
	mu.Unlock()
	if client.IsConnected() {
		b.OnConnect()
	}

	s.spawn(func() { b.Run(ctx) })
	return nil
}

func (s *session) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Stop tears the session down and waits until the device is closed.
func (s *session) Stop() {
	s.cancel()
	s.wg.Wait()
	if s.client != nil {
		s.client.Disconnect(250)
	}
	<-s.coord.Done()
}
