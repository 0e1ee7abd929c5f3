// internal/config/validate.go
package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	d := cfg.Device
	if d.Endpoint == "" {
		return fmt.Errorf("device.endpoint is required")
	}
	if _, _, err := net.SplitHostPort(d.Endpoint); err != nil {
		return fmt.Errorf("device.endpoint %q: %v", d.Endpoint, err)
	}
	if d.UnitID < 0 || d.UnitID > 247 {
		return fmt.Errorf("device.unit_id %d out of range 0-247", d.UnitID)
	}
	switch strings.ToLower(d.Driver) {
	case DriverGoburrow, DriverSimonvetter:
	default:
		return fmt.Errorf("device.driver %q: want %s or %s", d.Driver, DriverGoburrow, DriverSimonvetter)
	}
	if d.TimeoutMs <= 0 {
		return fmt.Errorf("device.timeout_ms must be > 0")
	}
	if d.Retries < 0 || d.Retries > 5 {
		return fmt.Errorf("device.retries %d out of range 0-5", d.Retries)
	}
	if d.IdleTimeoutS < 0 || d.IdleTimeoutS > 3600 {
		return fmt.Errorf("device.idle_timeout_s %d out of range 0-3600", d.IdleTimeoutS)
	}

	// ------------------------------------------------------------
	// POLL
	// ------------------------------------------------------------

	if cfg.Poll.IntervalS < 5 || cfg.Poll.IntervalS > 3600 {
		return fmt.Errorf("poll.interval_s %d out of range 5-3600", cfg.Poll.IntervalS)
	}
	switch strings.ToLower(cfg.Poll.ReadMode) {
	case ReadModeBlock, ReadModeItemized:
	default:
		return fmt.Errorf("poll.read_mode %q: want %s or %s", cfg.Poll.ReadMode, ReadModeBlock, ReadModeItemized)
	}

	// ------------------------------------------------------------
	// REGISTER ADDRESSES (0..65535)
	// ------------------------------------------------------------

	r := cfg.Registers
	addrs := []struct {
		name string
		addr int
	}{
		{"power", r.Power},
		{"mode", r.Mode},
		{"fan_speed", r.FanSpeed},
		{"target_temp", r.TargetTemp},
		{"min_heat_temp", r.MinHeatTemp},
		{"max_heat_temp", r.MaxHeatTemp},
		{"supply_temp", r.SupplyTemp},
		{"outdoor_temp", r.OutdoorTemp},
		{"alarm", r.Alarm},
	}
	for _, a := range addrs {
		if a.addr < 0 || a.addr > 65535 {
			return fmt.Errorf("registers.%s address %d out of range 0-65535", a.name, a.addr)
		}
	}

	p := cfg.Policy
	if p.AlarmBanks < 1 || p.AlarmBanks > 3 {
		return fmt.Errorf("policy.alarm_banks %d out of range 1-3", p.AlarmBanks)
	}
	if r.Alarm+p.AlarmBanks-1 > 65535 {
		return fmt.Errorf("registers.alarm %d: %d banks run past 65535", r.Alarm, p.AlarmBanks)
	}

	// ------------------------------------------------------------
	// SCALING
	// ------------------------------------------------------------

	s := cfg.Scaling
	if s.TemperatureDivisor < 1 || s.TemperatureDivisor > 1000 {
		return fmt.Errorf("scaling.temperature_divisor %d out of range 1-1000", s.TemperatureDivisor)
	}
	if s.SupplyTempDivisor < 1 || s.SupplyTempDivisor > 1000 {
		return fmt.Errorf("scaling.supply_temp_divisor %d out of range 1-1000", s.SupplyTempDivisor)
	}

	// ------------------------------------------------------------
	// POLICY
	// ------------------------------------------------------------

	if p.MaxFanSpeed < 1 || p.MaxFanSpeed > 20 {
		return fmt.Errorf("policy.max_fan_speed %d out of range 1-20", p.MaxFanSpeed)
	}
	if p.ModeHeatValue < 0 || p.ModeHeatValue > 65535 {
		return fmt.Errorf("policy.mode_heat_value %d out of range 0-65535", p.ModeHeatValue)
	}
	if p.ModeVentValue < 0 || p.ModeVentValue > 65535 {
		return fmt.Errorf("policy.mode_vent_value %d out of range 0-65535", p.ModeVentValue)
	}
	switch strings.ToLower(p.FanOff) {
	case FanOffPower, FanOffMinSpeed:
	default:
		return fmt.Errorf("policy.fan_off %q: want %s or %s", p.FanOff, FanOffPower, FanOffMinSpeed)
	}

	// ------------------------------------------------------------
	// ADAPTERS
	// ------------------------------------------------------------

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if strings.ContainsAny(cfg.MQTT.TopicPrefix, "+#") {
			return fmt.Errorf("mqtt.topic_prefix %q must not contain wildcards", cfg.MQTT.TopicPrefix)
		}
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("log.format %q: want json or console", cfg.Log.Format)
	}

	return nil
}
