// internal/device/errors.go
package device

import (
	"errors"
	"fmt"

	dmodbus "github.com/tamzrod/zentec-bridge/internal/device/modbus"
	"github.com/tamzrod/zentec-bridge/internal/device/svmodbus"
	"github.com/tamzrod/zentec-bridge/internal/regmap"
)

var (
	ErrConnectFailed      = errors.New("device: connect failed")
	ErrRegisterReadFailed = errors.New("device: register read failed")
	ErrWriteFailed        = errors.New("device: write failed")
	ErrValueOutOfRange    = errors.New("device: value out of range")

	// ErrDeviceException marks a Modbus exception reply: the device answered
	// but refused the request. The link is healthy.
	ErrDeviceException = errors.New("device: exception reply")
)

// classify tags exception replies of either transport with ErrDeviceException.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if dmodbus.IsException(err) || svmodbus.IsException(err) {
		return fmt.Errorf("%w: %w", ErrDeviceException, err)
	}
	return err
}

// FieldError records one field that could not be read during a poll.
type FieldError struct {
	Field   regmap.Field
	Address uint16
	Err     error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s (addr=%d): %v", e.Field, e.Address, e.Err)
}

func (e FieldError) Unwrap() error { return e.Err }
