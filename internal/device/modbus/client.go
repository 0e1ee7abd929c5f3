// internal/device/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/rs/zerolog"
)

// Client is a single TCP connection to one controller endpoint.
// It serializes requests because it mutates SlaveId per request.
type Client struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
	retries int
	log     zerolog.Logger
}

type Config struct {
	Endpoint    string // host:port
	Timeout     time.Duration
	IdleTimeout time.Duration
	Retries     int // extra attempts after a transport error
}

// New creates the client. The handler connects lazily on first use.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("device modbus: endpoint required")
	}
	if cfg.Retries < 0 {
		return nil, errors.New("device modbus: retries must be >= 0")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	if cfg.IdleTimeout > 0 {
		h.IdleTimeout = cfg.IdleTimeout
	}

	return &Client{
		handler: h,
		client:  modbus.NewClient(h),
		retries: cfg.Retries,
		log:     log.With().Str("transport", "goburrow").Str("endpoint", cfg.Endpoint).Logger(),
	}, nil
}

func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Connect()
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

func (c *Client) ReadHoldingRegisters(unitID uint8, addr, qty uint16) ([]uint16, error) {
	b, err := c.do(unitID, func() ([]byte, error) {
		return c.client.ReadHoldingRegisters(addr, qty)
	})
	if err != nil {
		return nil, err
	}
	return unpackRegisters(b, qty)
}

func (c *Client) ReadInputRegisters(unitID uint8, addr, qty uint16) ([]uint16, error) {
	b, err := c.do(unitID, func() ([]byte, error) {
		return c.client.ReadInputRegisters(addr, qty)
	})
	if err != nil {
		return nil, err
	}
	return unpackRegisters(b, qty)
}

func (c *Client) WriteRegister(unitID uint8, addr, value uint16) error {
	_, err := c.do(unitID, func() ([]byte, error) {
		return c.client.WriteSingleRegister(addr, value)
	})
	return err
}

// do runs one request with the configured retries.
// A Modbus exception is an answer from the device and is never retried.
// Any other error closes the handler; the next attempt reconnects.
func (c *Client) do(unitID uint8, req func() ([]byte, error)) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		c.handler.SlaveId = unitID

		var b []byte
		b, err = req()
		if err == nil {
			return b, nil
		}

		if IsException(err) {
			return nil, err
		}

		_ = c.handler.Close()
		c.log.Debug().Err(err).Int("attempt", attempt+1).Msg("modbus request failed")
	}
	return nil, err
}

// IsException reports whether err is an exception reply from the device.
func IsException(err error) bool {
	var mbErr *modbus.ModbusError
	return errors.As(err, &mbErr)
}

func unpackRegisters(b []byte, qty uint16) ([]uint16, error) {
	if len(b) < int(qty)*2 {
		return nil, fmt.Errorf("device modbus: short response %d bytes for %d registers", len(b), qty)
	}
	out := make([]uint16, qty)
	for i := range out {
		out[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return out, nil
}
