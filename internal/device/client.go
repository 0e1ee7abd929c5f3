// internal/device/client.go
package device

// Client abstracts the Modbus operations the device layer needs.
// Implementations own timeouts and retries; the device layer owns semantics.
type Client interface {
	Connect() error
	Close() error

	ReadHoldingRegisters(unitID uint8, addr, qty uint16) ([]uint16, error) // FC 3
	ReadInputRegisters(unitID uint8, addr, qty uint16) ([]uint16, error)   // FC 4
	WriteRegister(unitID uint8, addr, value uint16) error                  // FC 6
}
