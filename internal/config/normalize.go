// internal/config/normalize.go
package config

import (
	"regexp"
	"strings"
)

var nodeIDUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Device.Driver = strings.ToLower(cfg.Device.Driver)
	cfg.Poll.ReadMode = strings.ToLower(cfg.Poll.ReadMode)
	cfg.Policy.FanOff = strings.ToLower(cfg.Policy.FanOff)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	// Device name shows up in discovery payloads; keep it printable.
	if strings.TrimSpace(cfg.Device.Name) == "" {
		cfg.Device.Name = "Zentec 031"
	}

	// ------------------------------------------------------------
	// MQTT IDENTITY
	// ------------------------------------------------------------

	// node_id is used inside topics, so it is derived from the unique id
	// (host:port:unit) with every unsafe run collapsed to '_'.
	if cfg.MQTT.NodeID == "" {
		cfg.MQTT.NodeID = "zentec031_" + nodeIDUnsafe.ReplaceAllString(cfg.UniqueID(), "_")
	} else {
		cfg.MQTT.NodeID = nodeIDUnsafe.ReplaceAllString(cfg.MQTT.NodeID, "_")
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = cfg.MQTT.NodeID
	}
	cfg.MQTT.TopicPrefix = strings.Trim(cfg.MQTT.TopicPrefix, "/")
	cfg.MQTT.DiscoveryPrefix = strings.Trim(cfg.MQTT.DiscoveryPrefix, "/")
}
