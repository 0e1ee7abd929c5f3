// internal/entity/fan.go
package entity

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tamzrod/zentec-bridge/internal/config"
	"github.com/tamzrod/zentec-bridge/internal/device"
	"github.com/tamzrod/zentec-bridge/internal/status"
)

type Fan struct {
	On         status.Opt[bool]
	Percentage status.Opt[int]
	PresetMode string
	SpeedCount int
}

func (p Policy) Fan(s status.Snapshot, hasData bool) Fan {
	f := Fan{SpeedCount: p.MaxFanSpeed}
	if !hasData {
		return f
	}
	f.On = s.Power
	if speed, ok := s.FanSpeed.Get(); ok {
		f.Percentage = status.Some(p.percentFor(speed))
	}
	f.PresetMode = p.presetFor(s)
	return f
}

func (p Policy) percentFor(speed int) int {
	if p.MaxFanSpeed < 1 {
		return 0
	}
	return roundHalfEven(float64(speed) / float64(p.MaxFanSpeed) * 100)
}

// SpeedForPercentage maps 1..100 onto 1..max; zero and below mean the lowest speed.
func (p Policy) SpeedForPercentage(pct int) int {
	if pct <= 0 {
		return 1
	}
	speed := max(1, roundHalfEven(float64(pct)/100*float64(p.MaxFanSpeed)))
	return device.ClampFanSpeed(speed, p.MaxFanSpeed)
}

// ---- commands ----

func (p Policy) SetPercentage(ctx context.Context, ctl Controller, pct int) error {
	if err := ctl.SetPower(ctx, true); err != nil {
		return err
	}
	return ctl.SetFanSpeed(ctx, p.SpeedForPercentage(pct))
}

func (p Policy) SetPresetMode(ctx context.Context, ctl Controller, preset string) error {
	speed, err := strconv.Atoi(strings.TrimSpace(preset))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnsupportedPreset, preset)
	}
	speed = device.ClampFanSpeed(speed, p.MaxFanSpeed)

	if err := ctl.SetPower(ctx, true); err != nil {
		return err
	}
	return ctl.SetFanSpeed(ctx, speed)
}

// FanTurnOn powers on and, when given, applies a percentage.
func (p Policy) FanTurnOn(ctx context.Context, ctl Controller, pct *int) error {
	if pct != nil {
		return p.SetPercentage(ctx, ctl, *pct)
	}
	return ctl.SetPower(ctx, true)
}

// FanTurnOff follows policy.fan_off: power the unit down, or keep it
// running at the lowest speed.
func (p Policy) FanTurnOff(ctx context.Context, ctl Controller) error {
	if p.FanOff == config.FanOffMinSpeed {
		if err := ctl.SetPower(ctx, true); err != nil {
			return err
		}
		return ctl.SetFanSpeed(ctx, 1)
	}
	return ctl.SetPower(ctx, false)
}
