// internal/regmap/regmap.go
package regmap

import (
	"fmt"
	"sort"
)

// Field is one logical value of the controller.
type Field int

const (
	Power Field = iota
	Mode
	FanSpeed
	TargetTemp
	MinHeatTemp
	MaxHeatTemp
	SupplyTemp
	OutdoorTemp
	Alarm
	Alarm2
	Alarm3

	numFields
)

var fieldNames = [numFields]string{
	Power:       "power",
	Mode:        "mode",
	FanSpeed:    "fan_speed",
	TargetTemp:  "target_temp",
	MinHeatTemp: "min_heat_temp",
	MaxHeatTemp: "max_heat_temp",
	SupplyTemp:  "supply_temp",
	OutdoorTemp: "outdoor_temp",
	Alarm:       "alarm",
	Alarm2:      "alarm_2",
	Alarm3:      "alarm_3",
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// Kind is the Modbus register table a field lives in.
// Values match the read function codes.
type Kind uint8

const (
	Holding Kind = 3
	Input   Kind = 4
)

func (k Kind) String() string {
	if k == Input {
		return "input"
	}
	return "holding"
}

// KindOf classifies an address by the conventional 3xxxx numbering:
// 30000-39999 are input registers, everything else is holding.
func KindOf(addr uint16) Kind {
	if addr >= 30000 && addr <= 39999 {
		return Input
	}
	return Holding
}

// Table is the configured logical -> address table.
type Table struct {
	Power       uint16
	Mode        uint16
	FanSpeed    uint16
	TargetTemp  uint16
	MinHeatTemp uint16
	MaxHeatTemp uint16
	SupplyTemp  uint16
	OutdoorTemp uint16
	Alarm       uint16
}

// Map resolves fields to addresses and plans the reads covering them.
type Map struct {
	addr    [numFields]uint16
	enabled [numFields]bool
}

// New builds a Map. alarmBanks (1..3) decides whether alarm_2 and alarm_3
// are tracked at alarm+1 and alarm+2.
func New(t Table, alarmBanks int) (*Map, error) {
	if alarmBanks < 1 || alarmBanks > 3 {
		return nil, fmt.Errorf("regmap: alarm banks %d out of range 1-3", alarmBanks)
	}
	if int(t.Alarm)+alarmBanks-1 > 0xFFFF {
		return nil, fmt.Errorf("regmap: alarm banks past 65535 (base=%d)", t.Alarm)
	}

	m := &Map{}
	m.set(Power, t.Power)
	m.set(Mode, t.Mode)
	m.set(FanSpeed, t.FanSpeed)
	m.set(TargetTemp, t.TargetTemp)
	m.set(MinHeatTemp, t.MinHeatTemp)
	m.set(MaxHeatTemp, t.MaxHeatTemp)
	m.set(SupplyTemp, t.SupplyTemp)
	m.set(OutdoorTemp, t.OutdoorTemp)
	m.set(Alarm, t.Alarm)
	if alarmBanks >= 2 {
		m.set(Alarm2, t.Alarm+1)
	}
	if alarmBanks >= 3 {
		m.set(Alarm3, t.Alarm+2)
	}
	return m, nil
}

func (m *Map) set(f Field, addr uint16) {
	m.addr[f] = addr
	m.enabled[f] = true
}

// Address returns the register address of f, false if f is not tracked.
func (m *Map) Address(f Field) (uint16, bool) {
	if f < 0 || f >= numFields || !m.enabled[f] {
		return 0, false
	}
	return m.addr[f], true
}

// Fields returns the tracked fields in declaration order.
func (m *Map) Fields() []Field {
	out := make([]Field, 0, numFields)
	for f := Field(0); f < numFields; f++ {
		if m.enabled[f] {
			out = append(out, f)
		}
	}
	return out
}

// ---- READ PLAN ----

// ReadMode selects how the plan covers the fields.
type ReadMode string

const (
	Block    ReadMode = "block"
	Itemized ReadMode = "itemized"
)

// MaxBlockSize is the Modbus limit of registers per read request.
const MaxBlockSize = 125

// ReadBlock describes one Modbus read geometry.
// Geometry only: no semantics.
type ReadBlock struct {
	Kind     Kind
	Address  uint16
	Quantity uint16
}

// Covers reports whether the block includes the register.
func (b ReadBlock) Covers(k Kind, addr uint16) bool {
	return b.Kind == k && addr >= b.Address && uint32(addr) < uint32(b.Address)+uint32(b.Quantity)
}

// Plan returns the reads needed to cover every tracked field.
//
// Block: sorted holding addresses are grouped into runs no wider than
// MaxBlockSize registers; input fields are read one by one.
// Itemized: one single-register read per distinct address.
func (m *Map) Plan(mode ReadMode) []ReadBlock {
	type key struct {
		kind Kind
		addr uint16
	}

	seen := map[key]bool{}
	var holding []uint16
	var items []ReadBlock

	for _, f := range m.Fields() {
		a := m.addr[f]
		k := key{KindOf(a), a}
		if seen[k] {
			continue
		}
		seen[k] = true

		if mode == Block && k.kind == Holding {
			holding = append(holding, a)
			continue
		}
		items = append(items, ReadBlock{Kind: k.kind, Address: a, Quantity: 1})
	}

	// A span wider than one request is cut where the next address no longer
	// fits, so sparse maps never read long runs of unused registers.
	var out []ReadBlock
	if len(holding) > 0 {
		sort.Slice(holding, func(i, j int) bool { return holding[i] < holding[j] })

		start, last := holding[0], holding[0]
		for _, a := range holding[1:] {
			if uint32(a)-uint32(start) >= MaxBlockSize {
				out = append(out, ReadBlock{Kind: Holding, Address: start, Quantity: last - start + 1})
				start = a
			}
			last = a
		}
		out = append(out, ReadBlock{Kind: Holding, Address: start, Quantity: last - start + 1})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Kind != items[j].Kind {
			return items[i].Kind < items[j].Kind
		}
		return items[i].Address < items[j].Address
	})
	return append(out, items...)
}
