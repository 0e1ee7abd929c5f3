// internal/config/load.go
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file on top of Default(), applies environment
// overrides, then validates and normalizes it.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse is Load without the file read.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	Normalize(&cfg)
	return &cfg, nil
}

// applyEnv lets a supervisor inject connection details and secrets
// without editing the file.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("ZENTEC_ENDPOINT"); ok && v != "" {
		cfg.Device.Endpoint = v
	}
	if v, ok := lookup("ZENTEC_UNIT_ID"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid ZENTEC_UNIT_ID %q: %w", v, err)
		}
		cfg.Device.UnitID = n
	}
	if v, ok := lookup("ZENTEC_READ_ONLY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid ZENTEC_READ_ONLY %q: %w", v, err)
		}
		cfg.Policy.ReadOnly = b
	}
	if v, ok := lookup("ZENTEC_MQTT_BROKER"); ok && v != "" {
		cfg.MQTT.Broker = v
		cfg.MQTT.Enabled = true
	}
	if v, ok := lookup("ZENTEC_MQTT_USERNAME"); ok {
		cfg.MQTT.Username = v
	}
	if v, ok := lookup("ZENTEC_MQTT_PASSWORD"); ok {
		cfg.MQTT.Password = v
	}
	return nil
}
