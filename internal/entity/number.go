// internal/entity/number.go
package entity

import (
	"context"

	"github.com/tamzrod/zentec-bridge/internal/status"
)

// Number is a settable temperature.
type Number struct {
	Key  string
	Name string
	Min  float64
	Max  float64
	Step float64
	Unit string

	value func(status.Snapshot) status.Opt[float64]
	set   func(Controller, context.Context, float64) error
}

var Numbers = []Number{
	{
		Key: "target_temp", Name: "Target Temperature",
		Min: MinTemp, Max: MaxTemp, Step: TempStep, Unit: "°C",
		value: func(s status.Snapshot) status.Opt[float64] { return s.TargetTemp },
		set:   Controller.SetTargetTemp,
	},
	{
		Key: "min_heat_temp", Name: "Minimum Heating Temperature",
		Min: MinTemp, Max: MaxTemp, Step: TempStep, Unit: "°C",
		value: func(s status.Snapshot) status.Opt[float64] { return s.MinHeatTemp },
		set:   Controller.SetMinHeatTemp,
	},
	{
		Key: "max_heat_temp", Name: "Maximum Heating Temperature",
		Min: MinTemp, Max: MaxTemp, Step: TempStep, Unit: "°C",
		value: func(s status.Snapshot) status.Opt[float64] { return s.MaxHeatTemp },
		set:   Controller.SetMaxHeatTemp,
	},
}

// NumberByKey returns the number entity named key.
func NumberByKey(key string) (Number, bool) {
	for _, n := range Numbers {
		if n.Key == key {
			return n, true
		}
	}
	return Number{}, false
}

func (n Number) Value(s status.Snapshot, hasData bool) status.Opt[float64] {
	if !hasData {
		return status.Opt[float64]{}
	}
	return n.value(s)
}

// Set clamps v to the entity range before writing.
func (n Number) Set(ctx context.Context, ctl Controller, v float64) error {
	return n.set(ctl, ctx, ClampTemp(v))
}
