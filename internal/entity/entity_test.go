// internal/entity/entity_test.go
package entity

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tamzrod/zentec-bridge/internal/config"
	"github.com/tamzrod/zentec-bridge/internal/status"
)

type fakeController struct {
	calls []string
	err   error
}

func (f *fakeController) rec(s string) error {
	f.calls = append(f.calls, s)
	return f.err
}

func (f *fakeController) SetPower(_ context.Context, on bool) error {
	return f.rec(fmt.Sprintf("power=%v", on))
}

func (f *fakeController) SetFanSpeed(_ context.Context, s int) error {
	return f.rec(fmt.Sprintf("fan_speed=%d", s))
}

func (f *fakeController) SetModeValue(_ context.Context, v int) error {
	return f.rec(fmt.Sprintf("mode=%d", v))
}

func (f *fakeController) SetTargetTemp(_ context.Context, v float64) error {
	return f.rec(fmt.Sprintf("target_temp=%v", v))
}

func (f *fakeController) SetMinHeatTemp(_ context.Context, v float64) error {
	return f.rec(fmt.Sprintf("min_heat_temp=%v", v))
}

func (f *fakeController) SetMaxHeatTemp(_ context.Context, v float64) error {
	return f.rec(fmt.Sprintf("max_heat_temp=%v", v))
}

func (f *fakeController) expect(t *testing.T, want ...string) {
	t.Helper()
	if len(f.calls) != len(want) {
		t.Fatalf("calls: got=%v want=%v", f.calls, want)
	}
	for i := range want {
		if f.calls[i] != want[i] {
			t.Fatalf("calls: got=%v want=%v", f.calls, want)
		}
	}
}

func policy() Policy {
	return PolicyFrom(config.Default().Policy)
}

func on(mode uint16) status.Snapshot {
	return status.Snapshot{Power: status.Some(true), ModeRaw: status.Some(mode)}
}

// ---- climate ----

func TestHVACMode(t *testing.T) {
	p := policy() // heat=2 vent=1 legacy on

	cases := []struct {
		name string
		s    status.Snapshot
		has  bool
		want HVACMode
	}{
		{"no data", on(2), false, HVACOff},
		{"power off", status.Snapshot{Power: status.Some(false), ModeRaw: status.Some(uint16(2))}, true, HVACOff},
		{"power unknown", status.Snapshot{ModeRaw: status.Some(uint16(2))}, true, HVACOff},
		{"heat code", on(2), true, HVACHeat},
		{"vent code", on(1), true, HVACFanOnly},
		{"unknown code", on(7), true, HVACFanOnly},
		{"mode unknown", status.Snapshot{Power: status.Some(true)}, true, HVACFanOnly},
	}
	for _, c := range cases {
		if got := p.HVACMode(c.s, c.has); got != c.want {
			t.Fatalf("%s: got=%s want=%s", c.name, got, c.want)
		}
	}
}

func TestHVACMode_ConfiguredCodesAndLegacyFallback(t *testing.T) {
	p := policy()
	p.HeatValue = 4
	p.VentValue = 3

	if got := p.HVACMode(on(4), true); got != HVACHeat {
		t.Fatalf("configured heat: got=%s", got)
	}
	if got := p.HVACMode(on(3), true); got != HVACFanOnly {
		t.Fatalf("configured vent: got=%s", got)
	}
	if got := p.HVACMode(on(2), true); got != HVACHeat {
		t.Fatalf("legacy heat fallback: got=%s", got)
	}

	p.LegacyModeCodes = false
	if got := p.HVACMode(on(2), true); got != HVACFanOnly {
		t.Fatalf("legacy disabled: got=%s want=fan_only", got)
	}
}

func TestClimateProjection(t *testing.T) {
	p := policy()
	s := on(2)
	s.SupplyTemp = status.Some(22.5)
	s.TargetTemp = status.Some(21.0)
	s.FanSpeed = status.Some(2)

	c := p.Climate(s, true)
	if c.Mode != HVACHeat || c.Action != ActionHeating {
		t.Fatalf("mode/action: got=%s/%s", c.Mode, c.Action)
	}
	if v, _ := c.CurrentTemp.Get(); v != 22.5 {
		t.Fatalf("current temp must be supply temp: got=%v", v)
	}
	if c.FanMode != "2" {
		t.Fatalf("fan mode: got=%q want=2", c.FanMode)
	}

	s.FanSpeed = status.Some(0)
	if c := p.Climate(s, true); c.FanMode != "" {
		t.Fatalf("speed 0 has no fan mode: got=%q", c.FanMode)
	}

	if c := p.Climate(s, false); c.Action != ActionOff || c.FanMode != "" {
		t.Fatalf("no data: got=%+v", c)
	}
}

func TestFanModes(t *testing.T) {
	p := policy()
	p.MaxFanSpeed = 5
	got := p.FanModes()
	if len(got) != 5 || got[0] != "1" || got[4] != "5" {
		t.Fatalf("fan modes: got=%v", got)
	}
}

func TestSetHVACMode(t *testing.T) {
	p := policy()
	ctx := context.Background()

	fc := &fakeController{}
	if err := p.SetHVACMode(ctx, fc, HVACHeat); err != nil {
		t.Fatalf("heat err=%v", err)
	}
	fc.expect(t, "power=true", "mode=2")

	fc = &fakeController{}
	if err := p.SetHVACMode(ctx, fc, HVACFanOnly); err != nil {
		t.Fatalf("fan_only err=%v", err)
	}
	fc.expect(t, "power=true", "mode=1")

	fc = &fakeController{}
	if err := p.SetHVACMode(ctx, fc, HVACOff); err != nil {
		t.Fatalf("off err=%v", err)
	}
	fc.expect(t, "power=false")

	fc = &fakeController{}
	if err := p.SetHVACMode(ctx, fc, "cool"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
	fc.expect(t)
}

func TestSetHVACMode_StopsOnPowerFailure(t *testing.T) {
	fc := &fakeController{err: errors.New("rejected")}
	if err := policy().SetHVACMode(context.Background(), fc, HVACHeat); err == nil {
		t.Fatalf("expected error")
	}
	fc.expect(t, "power=true")
}

func TestSetClimateTemperatureClamps(t *testing.T) {
	fc := &fakeController{}
	if err := policy().SetClimateTemperature(context.Background(), fc, 35); err != nil {
		t.Fatalf("err=%v", err)
	}
	fc.expect(t, "target_temp=30")
}

// ---- fan ----

func TestFanProjection(t *testing.T) {
	p := policy()

	f := p.Fan(status.Snapshot{Power: status.Some(true), FanSpeed: status.Some(2)}, true)
	if v, _ := f.Percentage.Get(); v != 67 {
		t.Fatalf("percentage: got=%d want=67", v)
	}
	if f.PresetMode != "2" || f.SpeedCount != 3 {
		t.Fatalf("preset/count: got=%q/%d", f.PresetMode, f.SpeedCount)
	}
	if v, ok := f.On.Get(); !ok || !v {
		t.Fatalf("on: got=%v ok=%v", v, ok)
	}

	if f := p.Fan(status.Snapshot{FanSpeed: status.Some(2)}, false); f.Percentage.Valid() || f.On.Valid() {
		t.Fatalf("no data must project unknown: %+v", f)
	}
}

func TestSpeedForPercentage(t *testing.T) {
	p := policy()
	cases := []struct{ pct, want int }{
		{-10, 1}, {0, 1}, {1, 1}, {33, 1}, {34, 1}, {50, 2}, {67, 2}, {100, 3}, {150, 3},
	}
	for _, c := range cases {
		if got := p.SpeedForPercentage(c.pct); got != c.want {
			t.Fatalf("SpeedForPercentage(%d): got=%d want=%d", c.pct, got, c.want)
		}
	}
}

func TestFanCommands(t *testing.T) {
	p := policy()
	ctx := context.Background()

	fc := &fakeController{}
	if err := p.SetPercentage(ctx, fc, 100); err != nil {
		t.Fatalf("err=%v", err)
	}
	fc.expect(t, "power=true", "fan_speed=3")

	fc = &fakeController{}
	if err := p.SetPresetMode(ctx, fc, "9"); err != nil {
		t.Fatalf("err=%v", err)
	}
	fc.expect(t, "power=true", "fan_speed=3")

	fc = &fakeController{}
	if err := p.SetPresetMode(ctx, fc, "turbo"); !errors.Is(err, ErrUnsupportedPreset) {
		t.Fatalf("expected ErrUnsupportedPreset, got %v", err)
	}
	fc.expect(t)

	fc = &fakeController{}
	if err := p.FanTurnOn(ctx, fc, nil); err != nil {
		t.Fatalf("err=%v", err)
	}
	fc.expect(t, "power=true")
}

func TestFanTurnOffPolicy(t *testing.T) {
	ctx := context.Background()

	p := policy()
	p.FanOff = config.FanOffPower
	fc := &fakeController{}
	if err := p.FanTurnOff(ctx, fc); err != nil {
		t.Fatalf("err=%v", err)
	}
	fc.expect(t, "power=false")

	p.FanOff = config.FanOffMinSpeed
	fc = &fakeController{}
	if err := p.FanTurnOff(ctx, fc); err != nil {
		t.Fatalf("err=%v", err)
	}
	fc.expect(t, "power=true", "fan_speed=1")
}

// ---- switch, numbers, sensors ----

func TestPowerSwitch(t *testing.T) {
	if PowerSwitch(status.Snapshot{Power: status.Some(true)}, false).Valid() {
		t.Fatalf("no data must be unknown")
	}
	if v, _ := PowerSwitch(status.Snapshot{Power: status.Some(true)}, true).Get(); !v {
		t.Fatalf("power switch: got=false")
	}

	fc := &fakeController{}
	if err := SetPowerSwitch(context.Background(), fc, false); err != nil {
		t.Fatalf("err=%v", err)
	}
	fc.expect(t, "power=false")
}

func TestNumbers(t *testing.T) {
	if len(Numbers) != 3 {
		t.Fatalf("expected 3 numbers, got %d", len(Numbers))
	}

	n, ok := NumberByKey("min_heat_temp")
	if !ok {
		t.Fatalf("min_heat_temp not found")
	}
	if v, _ := n.Value(status.Snapshot{MinHeatTemp: status.Some(15.0)}, true).Get(); v != 15 {
		t.Fatalf("value: got=%v", v)
	}

	fc := &fakeController{}
	_ = n.Set(context.Background(), fc, 5)
	_ = n.Set(context.Background(), fc, 21.3)
	fc.expect(t, "min_heat_temp=10", "min_heat_temp=21.5")

	if _, ok := NumberByKey("nope"); ok {
		t.Fatalf("unknown key found")
	}
}

func TestSensorsFollowAlarmBanks(t *testing.T) {
	p := policy()

	p.AlarmBanks = 1
	if got := len(p.Sensors()); got != 5 {
		t.Fatalf("1 bank: got=%d sensors want=5", got)
	}
	p.AlarmBanks = 3
	all := p.Sensors()
	if len(all) != 7 {
		t.Fatalf("3 banks: got=%d sensors want=7", len(all))
	}

	s := status.Snapshot{AlarmCode: status.Some(uint16(0))}
	for _, sn := range all {
		if sn.Key != "alarm_code" {
			continue
		}
		v, ok := sn.Value(s, true)
		if !ok || v != 0 {
			t.Fatalf("alarm_code: got=%v ok=%v (zero is a value)", v, ok)
		}
		if _, ok := sn.Value(s, false); ok {
			t.Fatalf("no data must be unknown")
		}
	}
}

func TestClampTemp(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{9.9, 10}, {10, 10}, {21.24, 21}, {21.26, 21.5}, {30.2, 30}, {100, 30},
	}
	for _, c := range cases {
		if got := ClampTemp(c.in); got != c.want {
			t.Fatalf("ClampTemp(%v): got=%v want=%v", c.in, got, c.want)
		}
	}
}
