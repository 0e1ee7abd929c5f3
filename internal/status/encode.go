// internal/status/encode.go
package status

// Value is one numeric field of a Snapshot.
type Value struct {
	Name  string
	Value float64
	OK    bool
}

// Encode flattens a Snapshot into a fixed, ordered list of named numeric
// values. Booleans encode as 0/1. Absent fields keep OK=false.
// No IO. No side effects.
func Encode(s Snapshot) []Value {
	return []Value{
		boolValue("power", s.Power),
		uintValue("power_raw", s.PowerRaw),
		uintValue("mode_raw", s.ModeRaw),
		intValue("fan_speed", s.FanSpeed),
		floatValue("target_temp", s.TargetTemp),
		floatValue("min_heat_temp", s.MinHeatTemp),
		floatValue("max_heat_temp", s.MaxHeatTemp),
		floatValue("supply_temp", s.SupplyTemp),
		floatValue("outdoor_temp", s.OutdoorTemp),
		uintValue("alarm_code", s.AlarmCode),
		uintValue("alarm_code_2", s.AlarmCode2),
		uintValue("alarm_code_3", s.AlarmCode3),
	}
}

func boolValue(name string, o Opt[bool]) Value {
	v, ok := o.Get()
	f := 0.0
	if v {
		f = 1
	}
	return Value{Name: name, Value: f, OK: ok}
}

func uintValue(name string, o Opt[uint16]) Value {
	v, ok := o.Get()
	return Value{Name: name, Value: float64(v), OK: ok}
}

func intValue(name string, o Opt[int]) Value {
	v, ok := o.Get()
	return Value{Name: name, Value: float64(v), OK: ok}
}

func floatValue(name string, o Opt[float64]) Value {
	v, ok := o.Get()
	return Value{Name: name, Value: v, OK: ok}
}
