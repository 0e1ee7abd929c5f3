// internal/device/builder.go
package device

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/zentec-bridge/internal/config"
	dmodbus "github.com/tamzrod/zentec-bridge/internal/device/modbus"
	"github.com/tamzrod/zentec-bridge/internal/device/svmodbus"
	"github.com/tamzrod/zentec-bridge/internal/regmap"
)

// Build constructs a Device and its transport from a validated config.
// No connection is made; the first poll connects.
func Build(c config.Config, log zerolog.Logger) (*Device, error) {
	client, err := NewClient(c.Device, log)
	if err != nil {
		return nil, err
	}

	m, err := BuildMap(c)
	if err != nil {
		return nil, err
	}

	return New(Config{
		UnitID:      uint8(c.Device.UnitID),
		Map:         m,
		ReadMode:    regmap.ReadMode(c.Poll.ReadMode),
		Scale:       BuildScale(c.Scaling),
		MaxFanSpeed: c.Policy.MaxFanSpeed,
	}, client)
}

// NewClient selects the transport adapter named by device.driver.
func NewClient(d config.DeviceConfig, log zerolog.Logger) (Client, error) {
	timeout := time.Duration(d.TimeoutMs) * time.Millisecond

	switch d.Driver {
	case config.DriverGoburrow, "":
		c, err := dmodbus.New(dmodbus.Config{
			Endpoint:    d.Endpoint,
			Timeout:     timeout,
			IdleTimeout: time.Duration(d.IdleTimeoutS) * time.Second,
			Retries:     d.Retries,
		}, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.DriverSimonvetter:
		c, err := svmodbus.New(svmodbus.Config{
			Endpoint: d.Endpoint,
			Timeout:  timeout,
			Retries:  d.Retries,
		}, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("device: unknown driver %q", d.Driver)
	}
}

// BuildMap converts the validated register config into a regmap.Map.
func BuildMap(c config.Config) (*regmap.Map, error) {
	r := c.Registers
	return regmap.New(regmap.Table{
		Power:       uint16(r.Power),
		Mode:        uint16(r.Mode),
		FanSpeed:    uint16(r.FanSpeed),
		TargetTemp:  uint16(r.TargetTemp),
		MinHeatTemp: uint16(r.MinHeatTemp),
		MaxHeatTemp: uint16(r.MaxHeatTemp),
		SupplyTemp:  uint16(r.SupplyTemp),
		OutdoorTemp: uint16(r.OutdoorTemp),
		Alarm:       uint16(r.Alarm),
	}, c.Policy.AlarmBanks)
}

func BuildScale(s config.ScalingConfig) regmap.Scale {
	return regmap.Scale{
		TempDivisor:   s.TemperatureDivisor,
		SupplyDivisor: s.SupplyTempDivisor,
		Signed:        s.SignedTemperatures,
	}
}
