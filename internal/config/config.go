// internal/config/config.go
package config

import (
	"fmt"
	"net"
	"strconv"
)

type Config struct {
	Device    DeviceConfig   `yaml:"device"`
	Poll      PollConfig     `yaml:"poll"`
	Registers RegisterConfig `yaml:"registers"`
	Scaling   ScalingConfig  `yaml:"scaling"`
	Policy    PolicyConfig   `yaml:"policy"`
	MQTT      MQTTConfig     `yaml:"mqtt"`
	Metrics   MetricsConfig  `yaml:"metrics"`
	Log       LogConfig      `yaml:"log"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Name      string `yaml:"name"`
	Endpoint  string `yaml:"endpoint"` // host:port
	UnitID    int    `yaml:"unit_id"`  // 0..247
	Driver    string `yaml:"driver"`   // goburrow | simonvetter
	TimeoutMs int    `yaml:"timeout_ms"`
	Retries   int    `yaml:"retries"`

	// Idle connections are closed after this many seconds (goburrow only).
	// 0 keeps the library default.
	IdleTimeoutS int `yaml:"idle_timeout_s"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalS int    `yaml:"interval_s"`
	ReadMode  string `yaml:"read_mode"` // block | itemized
}

// ---- REGISTER MAP ----

// RegisterConfig holds raw register addresses.
// Addresses 30000-39999 are read as input registers.
type RegisterConfig struct {
	Power       int `yaml:"power"`
	Mode        int `yaml:"mode"`
	FanSpeed    int `yaml:"fan_speed"`
	TargetTemp  int `yaml:"target_temp"`
	MinHeatTemp int `yaml:"min_heat_temp"`
	MaxHeatTemp int `yaml:"max_heat_temp"`
	SupplyTemp  int `yaml:"supply_temp"`
	OutdoorTemp int `yaml:"outdoor_temp"`
	Alarm       int `yaml:"alarm"` // base; following banks are alarm+1, alarm+2
}

// ---- SCALING ----

type ScalingConfig struct {
	TemperatureDivisor int  `yaml:"temperature_divisor"`
	SupplyTempDivisor  int  `yaml:"supply_temp_divisor"`
	SignedTemperatures bool `yaml:"signed_temperatures"`
}

// ---- POLICY ----

type PolicyConfig struct {
	ModeHeatValue   int    `yaml:"mode_heat_value"`
	ModeVentValue   int    `yaml:"mode_vent_value"`
	LegacyModeCodes bool   `yaml:"legacy_mode_codes"`
	FanOff          string `yaml:"fan_off"` // power | min_speed
	AlarmBanks      int    `yaml:"alarm_banks"`
	MaxFanSpeed     int    `yaml:"max_fan_speed"`
	ReadOnly        bool   `yaml:"read_only"`
}

// ---- ADAPTERS ----

type MQTTConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Broker          string `yaml:"broker"`
	ClientID        string `yaml:"client_id"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	TopicPrefix     string `yaml:"topic_prefix"`
	NodeID          string `yaml:"node_id"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the HTTP server
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

// ---- DEFAULTS ----

const (
	DriverGoburrow    = "goburrow"
	DriverSimonvetter = "simonvetter"

	ReadModeBlock    = "block"
	ReadModeItemized = "itemized"

	FanOffPower    = "power"
	FanOffMinSpeed = "min_speed"

	DefaultPort = 502
)

// Default returns the documented defaults. Load decodes the file on top of it,
// so any key missing from the file keeps its default.
func Default() Config {
	return Config{
		Device: DeviceConfig{
			Name:      "Zentec 031",
			UnitID:    1,
			Driver:    DriverGoburrow,
			TimeoutMs:    2000,
			Retries:      1,
			IdleTimeoutS: 120,
		},
		Poll: PollConfig{
			IntervalS: 30,
			ReadMode:  ReadModeBlock,
		},
		Registers: RegisterConfig{
			Power:       1,
			Mode:        2,
			FanSpeed:    3,
			TargetTemp:  4,
			MinHeatTemp: 5,
			MaxHeatTemp: 6,
			SupplyTemp:  7,
			OutdoorTemp: 8,
			Alarm:       9,
		},
		Scaling: ScalingConfig{
			TemperatureDivisor: 10,
			SupplyTempDivisor:  10,
		},
		Policy: PolicyConfig{
			ModeHeatValue:   2,
			ModeVentValue:   1,
			LegacyModeCodes: true,
			FanOff:          FanOffPower,
			AlarmBanks:      3,
			MaxFanSpeed:     3,
		},
		MQTT: MQTTConfig{
			DiscoveryPrefix: "homeassistant",
			TopicPrefix:     "zentec031",
		},
		Metrics: MetricsConfig{
			Listen: ":9090",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// UniqueID identifies one controller: host:port:unit.
func (c *Config) UniqueID() string {
	host, port, err := net.SplitHostPort(c.Device.Endpoint)
	if err != nil {
		host, port = c.Device.Endpoint, strconv.Itoa(DefaultPort)
	}
	return fmt.Sprintf("%s:%s:%d", host, port, c.Device.UnitID)
}
