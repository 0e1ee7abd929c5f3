// internal/coordinator/types.go
package coordinator

import (
	"errors"
	"time"

	"github.com/tamzrod/zentec-bridge/internal/device"
	"github.com/tamzrod/zentec-bridge/internal/status"
)

var (
	// ErrWriteRejected is returned by every Set* call in read-only mode.
	ErrWriteRejected = errors.New("coordinator: write rejected (read-only)")

	// ErrStopped is returned when Run has exited before the job ran.
	ErrStopped = errors.New("coordinator: stopped")
)

// Device is what the coordinator drives. *device.Device satisfies it.
type Device interface {
	ReadState() (device.Reading, error)

	WritePower(on bool) error
	WriteFanSpeed(speed int) error
	WriteMode(value int) error
	WriteTargetTemp(v float64) error
	WriteMinHeatTemp(v float64) error
	WriteMaxHeatTemp(v float64) error

	Close() error
}

// Observer receives the outcome of every device operation.
type Observer interface {
	ObservePoll(took time.Duration, failedFields int, err error)
	ObserveWrite(op string, err error)
}

// State is the coordinator-owned view of the controller.
type State struct {
	Snapshot status.Snapshot
	HasData  bool // false until the first successful poll

	Health  uint16 // status.Health*
	LastOK  bool
	LastErr error

	// Fields that could not be read during the last successful poll.
	Failed []device.FieldError

	LastAttempt  time.Time
	LastSuccess  time.Time
	FailingSince time.Time // zero while healthy
}

// SecondsInError is the time spent failing, saturating at 65535.
func (s State) SecondsInError(now time.Time) uint16 {
	if s.FailingSince.IsZero() {
		return 0
	}
	sec := now.Sub(s.FailingSince) / time.Second
	if sec < 0 {
		return 0
	}
	if sec > 65535 {
		return 65535
	}
	return uint16(sec)
}

// job is one unit of work for the I/O goroutine.
type job struct {
	op  string
	run func(Device) error // nil: refresh only
	res chan error
}
