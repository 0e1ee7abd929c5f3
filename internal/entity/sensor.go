// internal/entity/sensor.go
package entity

import (
	"github.com/tamzrod/zentec-bridge/internal/status"
)

// Sensor is a read-only value.
type Sensor struct {
	Key         string
	Name        string
	Unit        string
	DeviceClass string
	Diagnostic  bool

	bank  int // alarm bank this sensor needs; 0 for none
	value func(status.Snapshot) (float64, bool)
}

func temp(o status.Opt[float64]) (float64, bool) { return o.Get() }

func code(o status.Opt[uint16]) (float64, bool) {
	v, ok := o.Get()
	return float64(v), ok
}

var sensors = []Sensor{
	{
		Key: "supply_temp", Name: "Supply Temperature", Unit: "°C", DeviceClass: "temperature",
		value: func(s status.Snapshot) (float64, bool) { return temp(s.SupplyTemp) },
	},
	{
		Key: "outdoor_temp", Name: "Outdoor Temperature", Unit: "°C", DeviceClass: "temperature",
		value: func(s status.Snapshot) (float64, bool) { return temp(s.OutdoorTemp) },
	},
	{
		Key: "alarm_code", Name: "Alarm Code", bank: 1,
		value: func(s status.Snapshot) (float64, bool) { return code(s.AlarmCode) },
	},
	{
		Key: "alarm_code_2", Name: "Alarm Code 17-32", Diagnostic: true, bank: 2,
		value: func(s status.Snapshot) (float64, bool) { return code(s.AlarmCode2) },
	},
	{
		Key: "alarm_code_3", Name: "Alarm Code 33-48", Diagnostic: true, bank: 3,
		value: func(s status.Snapshot) (float64, bool) { return code(s.AlarmCode3) },
	},
	{
		Key: "power_raw", Name: "Power Raw", Diagnostic: true,
		value: func(s status.Snapshot) (float64, bool) { return code(s.PowerRaw) },
	},
	{
		Key: "mode_raw", Name: "Mode Raw", Diagnostic: true,
		value: func(s status.Snapshot) (float64, bool) { return code(s.ModeRaw) },
	},
}

// Sensors returns the sensors backed by the configured alarm banks.
func (p Policy) Sensors() []Sensor {
	out := make([]Sensor, 0, len(sensors))
	for _, s := range sensors {
		if s.bank > p.AlarmBanks {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (s Sensor) Value(snap status.Snapshot, hasData bool) (float64, bool) {
	if !hasData {
		return 0, false
	}
	return s.value(snap)
}
