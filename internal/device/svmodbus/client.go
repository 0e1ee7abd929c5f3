// internal/device/svmodbus/client.go
package svmodbus

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/simonvetter/modbus"
)

// Client adapts github.com/simonvetter/modbus to the device layer.
// The library client carries the unit id as state, so requests are serialized.
type Client struct {
	mu      sync.Mutex
	mc      *modbus.ModbusClient
	retries int
	log     zerolog.Logger
}

type Config struct {
	Endpoint string // host:port
	Timeout  time.Duration
	Retries  int
}

func New(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("device svmodbus: endpoint required")
	}

	url := cfg.Endpoint
	if !strings.Contains(url, "://") {
		url = "tcp://" + url
	}

	mc, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     url,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("device svmodbus: %w", err)
	}

	return &Client{
		mc:      mc,
		retries: cfg.Retries,
		log:     log.With().Str("transport", "simonvetter").Str("endpoint", url).Logger(),
	}, nil
}

func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mc.Open()
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mc.Close()
}

func (c *Client) ReadHoldingRegisters(unitID uint8, addr, qty uint16) ([]uint16, error) {
	var out []uint16
	err := c.do(unitID, func() (err error) {
		out, err = c.mc.ReadRegisters(addr, qty, modbus.HOLDING_REGISTER)
		return err
	})
	return out, err
}

func (c *Client) ReadInputRegisters(unitID uint8, addr, qty uint16) ([]uint16, error) {
	var out []uint16
	err := c.do(unitID, func() (err error) {
		out, err = c.mc.ReadRegisters(addr, qty, modbus.INPUT_REGISTER)
		return err
	})
	return out, err
}

func (c *Client) WriteRegister(unitID uint8, addr, value uint16) error {
	return c.do(unitID, func() error {
		return c.mc.WriteRegister(addr, value)
	})
}

// do mirrors the goburrow adapter: exceptions are final, transport errors
// reopen the connection before the next attempt.
func (c *Client) do(unitID uint8, req func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.mc.SetUnitId(unitID); err != nil {
		return err
	}

	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if err = req(); err == nil {
			return nil
		}
		if IsException(err) {
			return err
		}

		c.log.Debug().Err(err).Int("attempt", attempt+1).Msg("modbus request failed")
		if attempt == c.retries {
			break
		}
		_ = c.mc.Close()
		if oerr := c.mc.Open(); oerr != nil {
			err = oerr
		}
	}
	return err
}

// IsException reports whether err is an exception reply from the device.
func IsException(err error) bool {
	for _, e := range []error{
		modbus.ErrIllegalFunction,
		modbus.ErrIllegalDataAddress,
		modbus.ErrIllegalDataValue,
		modbus.ErrServerDeviceFailure,
		modbus.ErrServerDeviceBusy,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
