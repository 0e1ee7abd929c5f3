// internal/entity/climate.go
package entity

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tamzrod/zentec-bridge/internal/status"
)

type HVACMode string

const (
	HVACOff     HVACMode = "off"
	HVACHeat    HVACMode = "heat"
	HVACFanOnly HVACMode = "fan_only"
)

type HVACAction string

const (
	ActionOff     HVACAction = "off"
	ActionHeating HVACAction = "heating"
	ActionFan     HVACAction = "fan"
)

// HVACModes lists the modes the climate entity accepts.
var HVACModes = []HVACMode{HVACOff, HVACHeat, HVACFanOnly}

// Climate is the main controller entity.
type Climate struct {
	Mode        HVACMode
	Action      HVACAction
	CurrentTemp status.Opt[float64] // supply temperature
	TargetTemp  status.Opt[float64]
	FanMode     string // "" when the speed is unknown or outside 1..max
}

func (p Policy) Climate(s status.Snapshot, hasData bool) Climate {
	mode := p.HVACMode(s, hasData)
	c := Climate{
		Mode:        mode,
		Action:      actionFor(mode),
		CurrentTemp: s.SupplyTemp,
		TargetTemp:  s.TargetTemp,
	}
	if hasData {
		c.FanMode = p.presetFor(s)
	}
	return c
}

// HVACMode resolves the mode from power and the raw mode register.
// Configured codes win; the legacy codes 2 (heat) and 1 (vent) are the
// optional fallback; anything else reads as fan only.
func (p Policy) HVACMode(s status.Snapshot, hasData bool) HVACMode {
	if !hasData {
		return HVACOff
	}
	if on, _ := s.Power.Get(); !on {
		return HVACOff
	}

	raw, ok := s.ModeRaw.Get()
	if !ok {
		return HVACFanOnly
	}
	switch {
	case int(raw) == p.HeatValue:
		return HVACHeat
	case int(raw) == p.VentValue:
		return HVACFanOnly
	case p.LegacyModeCodes && raw == 2:
		return HVACHeat
	case p.LegacyModeCodes && raw == 1:
		return HVACFanOnly
	}
	return HVACFanOnly
}

func actionFor(m HVACMode) HVACAction {
	switch m {
	case HVACOff:
		return ActionOff
	case HVACFanOnly:
		return ActionFan
	}
	return ActionHeating
}

// FanModes returns "1".."max".
func (p Policy) FanModes() []string {
	out := make([]string, 0, p.MaxFanSpeed)
	for i := 1; i <= p.MaxFanSpeed; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}

func (p Policy) presetFor(s status.Snapshot) string {
	speed, ok := s.FanSpeed.Get()
	if !ok || speed < 1 || speed > p.MaxFanSpeed {
		return ""
	}
	return strconv.Itoa(speed)
}

// ---- commands ----

// SetHVACMode powers off for HVACOff, otherwise powers on and writes the
// configured mode code.
func (p Policy) SetHVACMode(ctx context.Context, ctl Controller, mode HVACMode) error {
	switch mode {
	case HVACOff:
		return ctl.SetPower(ctx, false)
	case HVACHeat, HVACFanOnly:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	if err := ctl.SetPower(ctx, true); err != nil {
		return err
	}
	if mode == HVACFanOnly {
		return ctl.SetModeValue(ctx, p.VentValue)
	}
	return ctl.SetModeValue(ctx, p.HeatValue)
}

// SetClimateFanMode powers on and writes the preset speed.
func (p Policy) SetClimateFanMode(ctx context.Context, ctl Controller, mode string) error {
	return p.SetPresetMode(ctx, ctl, mode)
}

func (p Policy) SetClimateTemperature(ctx context.Context, ctl Controller, v float64) error {
	return ctl.SetTargetTemp(ctx, ClampTemp(v))
}
