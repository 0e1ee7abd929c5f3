// internal/regmap/decode.go
package regmap

import (
	"errors"
	"fmt"
	"math"

	"github.com/tamzrod/zentec-bridge/internal/status"
)

// ErrOutOfRange is returned when a value does not fit a 16-bit register.
var ErrOutOfRange = errors.New("value out of register range")

// Scale holds the divisors used to turn raw registers into temperatures.
type Scale struct {
	TempDivisor   int
	SupplyDivisor int
	Signed        bool // raw temperatures are two's complement int16
}

// Registers holds the raw values of the reads that succeeded.
// A missing key means the register could not be read.
type Registers map[Key]uint16

// Key addresses one register.
type Key struct {
	Kind    Kind
	Address uint16
}

// Put stores one block of raw values as returned by a read.
func (r Registers) Put(b ReadBlock, values []uint16) {
	for i, v := range values {
		if i >= int(b.Quantity) {
			return
		}
		r[Key{b.Kind, b.Address + uint16(i)}] = v
	}
}

// raw returns the raw value of f; false when f is untracked or unread.
func (m *Map) raw(regs Registers, f Field) (uint16, bool) {
	a, ok := m.Address(f)
	if !ok {
		return 0, false
	}
	v, ok := regs[Key{KindOf(a), a}]
	return v, ok
}

// Decode back-maps raw registers into a Snapshot.
// Fields whose register is missing stay absent; zero is a legitimate value.
func (m *Map) Decode(regs Registers, sc Scale) status.Snapshot {
	var s status.Snapshot

	if v, ok := m.raw(regs, Power); ok {
		s.Power = status.Some(Bool(v))
		s.PowerRaw = status.Some(v)
	}
	if v, ok := m.raw(regs, Mode); ok {
		s.ModeRaw = status.Some(v)
	}
	if v, ok := m.raw(regs, FanSpeed); ok {
		s.FanSpeed = status.Some(int(v))
	}

	temp := func(f Field, div int) status.Opt[float64] {
		if v, ok := m.raw(regs, f); ok {
			return status.Some(Temp(v, div, sc.Signed))
		}
		return status.Opt[float64]{}
	}
	s.TargetTemp = temp(TargetTemp, sc.TempDivisor)
	s.MinHeatTemp = temp(MinHeatTemp, sc.TempDivisor)
	s.MaxHeatTemp = temp(MaxHeatTemp, sc.TempDivisor)
	s.SupplyTemp = temp(SupplyTemp, sc.SupplyDivisor)
	s.OutdoorTemp = temp(OutdoorTemp, sc.TempDivisor)

	if v, ok := m.raw(regs, Alarm); ok {
		s.AlarmCode = status.Some(v)
	}
	if v, ok := m.raw(regs, Alarm2); ok {
		s.AlarmCode2 = status.Some(v)
	}
	if v, ok := m.raw(regs, Alarm3); ok {
		s.AlarmCode3 = status.Some(v)
	}

	return s
}

// ---- SCALAR CODECS ----

// Bool decodes an on/off register.
func Bool(raw uint16) bool {
	return raw != 0
}

// EncodeBool encodes an on/off register.
func EncodeBool(v bool) uint16 {
	if v {
		return 1
	}
	return 0
}

// Temp decodes raw / divisor rounded to one decimal. The divisor is floored to 1.
func Temp(raw uint16, divisor int, signed bool) float64 {
	d := float64(max(divisor, 1))

	v := float64(raw)
	if signed {
		v = float64(int16(raw))
	}
	return math.Round(v/d*10) / 10
}

// EncodeTemp encodes round(value * divisor) into a register.
func EncodeTemp(value float64, divisor int, signed bool) (uint16, error) {
	d := float64(max(divisor, 1))

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %v", ErrOutOfRange, value)
	}

	r := math.Round(value * d)
	if signed {
		if r < math.MinInt16 || r > math.MaxInt16 {
			return 0, fmt.Errorf("%w: %v x %v = %v", ErrOutOfRange, value, d, r)
		}
		return uint16(int16(r)), nil
	}
	if r < 0 || r > math.MaxUint16 {
		return 0, fmt.Errorf("%w: %v x %v = %v", ErrOutOfRange, value, d, r)
	}
	return uint16(r), nil
}
