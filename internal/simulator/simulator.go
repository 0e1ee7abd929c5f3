// internal/simulator/simulator.go
package simulator

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tbrandon/mbserver"

	"github.com/tamzrod/zentec-bridge/internal/regmap"
)

const (
	fnReadHoldingRegisters = 3
	fnReadInputRegisters   = 4
	fnWriteHoldingRegister = 6
)

// Simulator is a Modbus TCP server standing in for a Zentec 031.
// Registers are sparse: an address never set answers IllegalDataAddress,
// as does any address marked failing.
type Simulator struct {
	mu      sync.Mutex
	holding map[uint16]uint16
	input   map[uint16]uint16
	failing map[uint16]bool
	writes  int

	srv *mbserver.Server
	log zerolog.Logger
}

func New(log zerolog.Logger) *Simulator {
	return &Simulator{
		holding: map[uint16]uint16{},
		input:   map[uint16]uint16{},
		failing: map[uint16]bool{},
		log:     log,
	}
}

// ---- register state ----

func (s *Simulator) SetHolding(addr, v uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holding[addr] = v
}

func (s *Simulator) SetInput(addr, v uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input[addr] = v
}

func (s *Simulator) Holding(addr uint16) (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.holding[addr]
	return v, ok
}

// Fail makes every request touching addr answer IllegalDataAddress.
func (s *Simulator) Fail(addr uint16, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.failing[addr] = true
		return
	}
	delete(s.failing, addr)
}

// Writes counts accepted FC6 requests.
func (s *Simulator) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Seed loads a plausible running controller into every mapped address:
// powered on, heating, fan speed 2, 21.5 target.
func (s *Simulator) Seed(m *regmap.Map, sc regmap.Scale) error {
	values := map[regmap.Field]float64{
		regmap.Power:       1,
		regmap.Mode:        2,
		regmap.FanSpeed:    2,
		regmap.Alarm:       0,
		regmap.Alarm2:      0,
		regmap.Alarm3:      0,
		regmap.TargetTemp:  21.5,
		regmap.MinHeatTemp: 15,
		regmap.MaxHeatTemp: 28,
		regmap.SupplyTemp:  22.3,
		regmap.OutdoorTemp: 4.5,
	}

	for _, f := range m.Fields() {
		addr, _ := m.Address(f)
		raw, err := seedRaw(f, values[f], sc)
		if err != nil {
			return fmt.Errorf("simulator: seed %s: %w", f, err)
		}
		if regmap.KindOf(addr) == regmap.Input {
			s.SetInput(addr, raw)
		} else {
			s.SetHolding(addr, raw)
		}
	}
	return nil
}

func seedRaw(f regmap.Field, v float64, sc regmap.Scale) (uint16, error) {
	switch f {
	case regmap.TargetTemp, regmap.MinHeatTemp, regmap.MaxHeatTemp, regmap.OutdoorTemp:
		return regmap.EncodeTemp(v, sc.TempDivisor, sc.Signed)
	case regmap.SupplyTemp:
		return regmap.EncodeTemp(v, sc.SupplyDivisor, sc.Signed)
	default:
		return uint16(v), nil
	}
}

// ---- server ----

// Listen starts serving on addr (host:port).
func (s *Simulator) Listen(addr string) error {
	srv := mbserver.NewServer()
	srv.RegisterFunctionHandler(fnReadHoldingRegisters, s.readHandler(regmap.Holding))
	srv.RegisterFunctionHandler(fnReadInputRegisters, s.readHandler(regmap.Input))
	srv.RegisterFunctionHandler(fnWriteHoldingRegister, s.writeHandler)

	if err := srv.ListenTCP(addr); err != nil {
		return fmt.Errorf("simulator: listen %s: %w", addr, err)
	}
	s.srv = srv
	s.log.Info().Str("listen", addr).Msg("simulator listening")
	return nil
}

func (s *Simulator) Close() {
	if s.srv != nil {
		s.srv.Close()
		s.srv = nil
	}
}

func (s *Simulator) readHandler(kind regmap.Kind) func(*mbserver.Server, mbserver.Framer) ([]byte, *mbserver.Exception) {
	return func(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		data := frame.GetData()
		if len(data) < 4 {
			return []byte{}, &mbserver.IllegalDataAddress
		}
		register := binary.BigEndian.Uint16(data[0:2])
		numRegs := int(binary.BigEndian.Uint16(data[2:4]))
		if numRegs < 1 || numRegs > regmap.MaxBlockSize || int(register)+numRegs > 0x10000 {
			return []byte{}, &mbserver.IllegalDataAddress
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		table := s.holding
		if kind == regmap.Input {
			table = s.input
		}

		values := make([]uint16, numRegs)
		for i := range values {
			a := register + uint16(i)
			v, ok := table[a]
			if !ok || s.failing[a] {
				s.log.Debug().Str("kind", kind.String()).Uint16("register", a).Msg("read rejected")
				return []byte{}, &mbserver.IllegalDataAddress
			}
			values[i] = v
		}

		s.log.Debug().Str("kind", kind.String()).Uint16("register", register).Int("count", numRegs).Msg("read")
		return append([]byte{byte(numRegs * 2)}, mbserver.Uint16ToBytes(values)...), &mbserver.Success
	}
}

func (s *Simulator) writeHandler(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	register := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.holding[register]; !ok || s.failing[register] {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	s.holding[register] = value
	s.writes++

	s.log.Info().Uint16("register", register).Uint16("value", value).Msg("write")
	return data[0:4], &mbserver.Success
}
