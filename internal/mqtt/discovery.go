// internal/mqtt/discovery.go
package mqtt

import (
	"github.com/tamzrod/zentec-bridge/internal/entity"
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"
	payloadOn      = "ON"
	payloadOff     = "OFF"
	payloadNone    = "None"
)

// discoveryMessage is one retained config message.
type discoveryMessage struct {
	Topic   string
	Payload map[string]interface{}
}

func (b *Bridge) deviceInfo() map[string]interface{} {
	return map[string]interface{}{
		"identifiers":  []string{b.cfg.UniqueID},
		"manufacturer": "Zentec",
		"model":        "031",
		"name":         b.cfg.DeviceName,
	}
}

// base fills the keys every entity shares.
func (b *Bridge) base(object, name string) map[string]interface{} {
	return map[string]interface{}{
		"name":      name,
		"object_id": b.t.Node + "_" + object,
		"unique_id": b.t.Node + "_" + object,
		"device":    b.deviceInfo(),
		"availability": []map[string]string{
			{"topic": b.t.Bridge(), "payload_available": payloadOnline, "payload_not_available": payloadOffline},
			{"topic": b.t.Availability(), "payload_available": payloadOnline, "payload_not_available": payloadOffline},
		},
		"availability_mode": "all",
	}
}

func (b *Bridge) discovery() []discoveryMessage {
	t := b.t
	p := b.cfg.Policy
	var out []discoveryMessage

	// ---- climate ----
	climate := b.base("climate", "Climate")
	climate["modes"] = entity.HVACModes
	climate["mode_state_topic"] = t.State("climate", "mode")
	climate["mode_command_topic"] = t.Command("climate", "mode")
	climate["action_topic"] = t.State("climate", "action")
	climate["current_temperature_topic"] = t.State("climate", "current_temperature")
	climate["temperature_state_topic"] = t.State("climate", "target_temperature")
	climate["temperature_command_topic"] = t.Command("climate", "target_temperature")
	climate["fan_modes"] = p.FanModes()
	climate["fan_mode_state_topic"] = t.State("climate", "fan_mode")
	climate["fan_mode_command_topic"] = t.Command("climate", "fan_mode")
	climate["min_temp"] = entity.MinTemp
	climate["max_temp"] = entity.MaxTemp
	climate["temp_step"] = entity.TempStep
	climate["temperature_unit"] = "C"
	out = append(out, discoveryMessage{t.Config("climate", "climate"), climate})

	// ---- fan ----
	fan := b.base("fan", "Fan")
	fan["state_topic"] = t.State("fan", "state")
	fan["command_topic"] = t.Command("fan")
	fan["payload_on"] = payloadOn
	fan["payload_off"] = payloadOff
	fan["percentage_state_topic"] = t.State("fan", "percentage")
	fan["percentage_command_topic"] = t.Command("fan", "percentage")
	fan["preset_modes"] = p.FanModes()
	fan["preset_mode_state_topic"] = t.State("fan", "preset_mode")
	fan["preset_mode_command_topic"] = t.Command("fan", "preset_mode")
	out = append(out, discoveryMessage{t.Config("fan", "fan"), fan})

	// ---- switch ----
	power := b.base("power", "Power")
	power["state_topic"] = t.State("power", "state")
	power["command_topic"] = t.Command("power")
	power["payload_on"] = payloadOn
	power["payload_off"] = payloadOff
	out = append(out, discoveryMessage{t.Config("switch", "power"), power})

	// ---- numbers ----
	for _, n := range entity.Numbers {
		m := b.base(n.Key, n.Name)
		m["state_topic"] = t.State("number", n.Key)
		m["command_topic"] = t.Command("number", n.Key)
		m["min"] = n.Min
		m["max"] = n.Max
		m["step"] = n.Step
		m["unit_of_measurement"] = n.Unit
		m["device_class"] = "temperature"
		m["mode"] = "box"
		out = append(out, discoveryMessage{t.Config("number", n.Key), m})
	}

	// ---- sensors ----
	for _, s := range p.Sensors() {
		m := b.base(s.Key, s.Name)
		m["state_topic"] = t.State("sensor", s.Key)
		if s.Unit != "" {
			m["unit_of_measurement"] = s.Unit
		}
		if s.DeviceClass != "" {
			m["device_class"] = s.DeviceClass
			m["state_class"] = "measurement"
		}
		if s.Diagnostic {
			m["entity_category"] = "diagnostic"
		}
		out = append(out, discoveryMessage{t.Config("sensor", s.Key), m})
	}

	return out
}
