// internal/status/constants.go
package status

// ---- HEALTH CODES ----
// Health codes are exported as-is through metrics and the HTTP state API.

// HealthUnknown represents the boot state: no poll has completed yet.
const HealthUnknown uint16 = 0

// HealthOK represents a healthy device: the last poll succeeded.
const HealthOK uint16 = 1

// HealthError represents a device that has never delivered data and whose
// last poll failed. Entities are unavailable.
const HealthError uint16 = 2

// HealthStale represents a device that delivered data before but whose last
// poll failed. Entities keep showing the last known values.
const HealthStale uint16 = 3

// HealthName returns a stable lowercase name for a health code.
func HealthName(h uint16) string {
	switch h {
	case HealthUnknown:
		return "unknown"
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthStale:
		return "stale"
	default:
		return "invalid"
	}
}
