// internal/device/device.go
package device

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tamzrod/zentec-bridge/internal/regmap"
	"github.com/tamzrod/zentec-bridge/internal/status"
)

// Config is the immutable runtime config of one controller.
type Config struct {
	UnitID      uint8
	Map         *regmap.Map
	ReadMode    regmap.ReadMode
	Scale       regmap.Scale
	MaxFanSpeed int
}

// Reading is the outcome of one successful poll.
// Fields listed in Failed are absent from Snapshot.
type Reading struct {
	Snapshot status.Snapshot
	At       time.Time
	Failed   []FieldError
}

// Device translates between the register map and typed values.
// Calls are serialized; the coordinator is the only expected caller.
type Device struct {
	mu sync.Mutex

	cfg    Config
	client Client
	plan   []regmap.ReadBlock

	connected bool
	closed    bool
}

// New creates a device with immutable config. It does not connect.
func New(cfg Config, client Client) (*Device, error) {
	if client == nil {
		return nil, errors.New("device: client required")
	}
	if cfg.Map == nil {
		return nil, errors.New("device: register map required")
	}
	if cfg.MaxFanSpeed < 1 {
		return nil, errors.New("device: max fan speed must be >= 1")
	}
	if cfg.UnitID > 247 {
		return nil, fmt.Errorf("device: unit id %d out of range 0-247", cfg.UnitID)
	}
	if cfg.ReadMode != regmap.Block && cfg.ReadMode != regmap.Itemized {
		return nil, fmt.Errorf("device: unknown read mode %q", cfg.ReadMode)
	}

	plan := cfg.Map.Plan(cfg.ReadMode)
	if len(plan) == 0 {
		return nil, errors.New("device: register map has no fields")
	}

	return &Device{cfg: cfg, client: client, plan: plan}, nil
}

// Plan returns the reads executed by every ReadState.
func (d *Device) Plan() []regmap.ReadBlock {
	return append([]regmap.ReadBlock(nil), d.plan...)
}

// Probe connects once without reading.
func (d *Device) Probe() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ensureConnected()
}

// ReadState performs exactly one poll cycle.
//
// A failed read makes the fields it covers absent and is reported in
// Reading.Failed. An exception reply counts as an answer. The poll fails
// as a whole only when the connection cannot be established or when no
// read of the cycle got any answer from the device.
func (d *Device) ReadState() (Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()

	if err := d.ensureConnected(); err != nil {
		return Reading{At: now}, err
	}

	regs := regmap.Registers{}
	var failed []FieldError
	var lastErr error
	answered := 0

	for _, rb := range d.plan {
		vals, err := d.read(rb)
		if err != nil {
			if errors.Is(err, ErrDeviceException) {
				answered++
			}
			lastErr = err
			failed = append(failed, d.covered(rb, err)...)
			continue
		}
		regs.Put(rb, vals)
		answered++
	}

	if answered == 0 {
		// Nothing answered: treat the link as dead and reconnect next time.
		d.disconnect()
		return Reading{At: now, Failed: failed}, fmt.Errorf("%w: no register answered: %w", ErrConnectFailed, lastErr)
	}

	return Reading{
		Snapshot: d.cfg.Map.Decode(regs, d.cfg.Scale),
		At:       now,
		Failed:   failed,
	}, nil
}

func (d *Device) read(rb regmap.ReadBlock) ([]uint16, error) {
	var (
		vals []uint16
		err  error
	)
	switch rb.Kind {
	case regmap.Holding:
		vals, err = d.client.ReadHoldingRegisters(d.cfg.UnitID, rb.Address, rb.Quantity)
	case regmap.Input:
		vals, err = d.client.ReadInputRegisters(d.cfg.UnitID, rb.Address, rb.Quantity)
	default:
		err = fmt.Errorf("unsupported register kind %d", rb.Kind)
	}
	if err != nil {
		return nil, classify(err)
	}
	if len(vals) < int(rb.Quantity) {
		return nil, fmt.Errorf("short response: got %d registers, want %d", len(vals), rb.Quantity)
	}
	return vals, nil
}

// covered lists the tracked fields a failed read was responsible for.
func (d *Device) covered(rb regmap.ReadBlock, cause error) []FieldError {
	var out []FieldError
	for _, f := range d.cfg.Map.Fields() {
		a, _ := d.cfg.Map.Address(f)
		if !rb.Covers(regmap.KindOf(a), a) {
			continue
		}
		out = append(out, FieldError{
			Field:   f,
			Address: a,
			Err:     fmt.Errorf("%w: %w", ErrRegisterReadFailed, cause),
		})
	}
	return out
}

// ---- WRITES ----

// WritePower switches the unit on or off.
func (d *Device) WritePower(on bool) error {
	return d.write(regmap.Power, regmap.EncodeBool(on))
}

// WriteFanSpeed writes the speed clamped to [1, MaxFanSpeed].
func (d *Device) WriteFanSpeed(speed int) error {
	return d.write(regmap.FanSpeed, uint16(ClampFanSpeed(speed, d.cfg.MaxFanSpeed)))
}

// WriteMode writes a raw mode code.
func (d *Device) WriteMode(value int) error {
	if value < 0 || value > 0xFFFF {
		return fmt.Errorf("%w: mode %d", ErrValueOutOfRange, value)
	}
	return d.write(regmap.Mode, uint16(value))
}

func (d *Device) WriteTargetTemp(v float64) error  { return d.writeTemp(regmap.TargetTemp, v) }
func (d *Device) WriteMinHeatTemp(v float64) error { return d.writeTemp(regmap.MinHeatTemp, v) }
func (d *Device) WriteMaxHeatTemp(v float64) error { return d.writeTemp(regmap.MaxHeatTemp, v) }

func (d *Device) writeTemp(f regmap.Field, v float64) error {
	raw, err := regmap.EncodeTemp(v, d.cfg.Scale.TempDivisor, d.cfg.Scale.Signed)
	if err != nil {
		return fmt.Errorf("%w: %s=%v: %w", ErrValueOutOfRange, f, v, err)
	}
	return d.write(f, raw)
}

// write issues exactly one single-register write.
func (d *Device) write(f regmap.Field, raw uint16) error {
	addr, ok := d.cfg.Map.Address(f)
	if !ok {
		return fmt.Errorf("%w: %s is not mapped", ErrWriteFailed, f)
	}
	if regmap.KindOf(addr) == regmap.Input {
		return fmt.Errorf("%w: %s (addr=%d) is an input register", ErrWriteFailed, f, addr)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureConnected(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := d.client.WriteRegister(d.cfg.UnitID, addr, raw); err != nil {
		return fmt.Errorf("%w: %s (addr=%d value=%d): %w", ErrWriteFailed, f, addr, raw, classify(err))
	}
	return nil
}

// ---- LIFECYCLE ----

func (d *Device) ensureConnected() error {
	if d.closed {
		return fmt.Errorf("%w: device closed", ErrConnectFailed)
	}
	if d.connected {
		return nil
	}
	if err := d.client.Connect(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	d.connected = true
	return nil
}

func (d *Device) disconnect() {
	if d.connected {
		_ = d.client.Close()
		d.connected = false
	}
}

// Close releases the transport. Safe to call more than once.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if !d.connected {
		return nil
	}
	d.connected = false
	return d.client.Close()
}

// ClampFanSpeed bounds speed to [1, maxSpeed].
func ClampFanSpeed(speed, maxSpeed int) int {
	if maxSpeed < 1 {
		maxSpeed = 1
	}
	return min(max(speed, 1), maxSpeed)
}
