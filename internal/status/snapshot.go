// internal/status/snapshot.go
package status

// Snapshot is one decoded read of every tracked field.
// Each field is independently present or absent because each underlying
// register read can fail on its own. A Snapshot is a value: once built it
// is never modified in place.
type Snapshot struct {
	Power    Opt[bool]   `json:"power"`
	PowerRaw Opt[uint16] `json:"power_raw"`
	ModeRaw  Opt[uint16] `json:"mode_raw"`
	FanSpeed Opt[int]    `json:"fan_speed"`

	TargetTemp  Opt[float64] `json:"target_temp"`
	MinHeatTemp Opt[float64] `json:"min_heat_temp"`
	MaxHeatTemp Opt[float64] `json:"max_heat_temp"`
	SupplyTemp  Opt[float64] `json:"supply_temp"`
	OutdoorTemp Opt[float64] `json:"outdoor_temp"`

	AlarmCode  Opt[uint16] `json:"alarm_code"`
	AlarmCode2 Opt[uint16] `json:"alarm_code_2"`
	AlarmCode3 Opt[uint16] `json:"alarm_code_3"`
}

// Merge folds next into prev field by field: a present field in next wins,
// an absent one keeps prev. Fields are listed explicitly.
func Merge(prev, next Snapshot) Snapshot {
	return Snapshot{
		Power:    next.Power.Or(prev.Power),
		PowerRaw: next.PowerRaw.Or(prev.PowerRaw),
		ModeRaw:  next.ModeRaw.Or(prev.ModeRaw),
		FanSpeed: next.FanSpeed.Or(prev.FanSpeed),

		TargetTemp:  next.TargetTemp.Or(prev.TargetTemp),
		MinHeatTemp: next.MinHeatTemp.Or(prev.MinHeatTemp),
		MaxHeatTemp: next.MaxHeatTemp.Or(prev.MaxHeatTemp),
		SupplyTemp:  next.SupplyTemp.Or(prev.SupplyTemp),
		OutdoorTemp: next.OutdoorTemp.Or(prev.OutdoorTemp),

		AlarmCode:  next.AlarmCode.Or(prev.AlarmCode),
		AlarmCode2: next.AlarmCode2.Or(prev.AlarmCode2),
		AlarmCode3: next.AlarmCode3.Or(prev.AlarmCode3),
	}
}

// Empty reports whether no field is present.
func (s Snapshot) Empty() bool {
	for _, v := range Encode(s) {
		if v.OK {
			return false
		}
	}
	return true
}
