// internal/coordinator/coordinator.go
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/zentec-bridge/internal/status"
)

// Config is the immutable runtime config of one coordinator.
type Config struct {
	Interval time.Duration
	ReadOnly bool
	Log      zerolog.Logger
	Observer Observer // optional
}

// Coordinator owns the device and the merged state.
// Every device operation runs on the Run goroutine, one at a time.
type Coordinator struct {
	cfg Config
	dev Device
	log zerolog.Logger

	jobs chan job
	done chan struct{}

	mu    sync.RWMutex
	state State

	subMu   sync.Mutex
	subs    map[int]chan State
	nextSub int
}

// New creates a coordinator. Nothing happens until Run.
func New(cfg Config, dev Device) (*Coordinator, error) {
	if dev == nil {
		return nil, errors.New("coordinator: device required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("coordinator: interval must be > 0")
	}
	return &Coordinator{
		cfg:  cfg,
		dev:  dev,
		log:  cfg.Log,
		jobs: make(chan job, 16),
		done: make(chan struct{}),
		subs: map[int]chan State{},
	}, nil
}

// ---- READERS ----

// Current returns the merged snapshot; false before the first successful poll.
func (c *Coordinator) Current() (status.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Snapshot, c.state.HasData
}

// LastUpdateOK reports whether the most recent poll succeeded.
func (c *Coordinator) LastUpdateOK() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.LastOK
}

func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Done is closed once Run has returned and the device is closed.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Subscribe returns a latest-value channel fed after every poll.
// A slow reader only ever misses intermediate states.
func (c *Coordinator) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	if st := c.State(); !st.LastAttempt.IsZero() {
		offer(ch, st)
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			close(ch)
			c.subMu.Unlock()
		})
	}
}

func (c *Coordinator) publish(st State) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		offer(ch, st)
	}
}

// offer replaces any unread value with st.
func offer(ch chan State, st State) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}

// ---- WRITES ----

func (c *Coordinator) SetPower(ctx context.Context, on bool) error {
	return c.write(ctx, "power", func(d Device) error { return d.WritePower(on) })
}

func (c *Coordinator) SetFanSpeed(ctx context.Context, speed int) error {
	return c.write(ctx, "fan_speed", func(d Device) error { return d.WriteFanSpeed(speed) })
}

func (c *Coordinator) SetModeValue(ctx context.Context, value int) error {
	return c.write(ctx, "mode", func(d Device) error { return d.WriteMode(value) })
}

func (c *Coordinator) SetTargetTemp(ctx context.Context, v float64) error {
	return c.write(ctx, "target_temp", func(d Device) error { return d.WriteTargetTemp(v) })
}

func (c *Coordinator) SetMinHeatTemp(ctx context.Context, v float64) error {
	return c.write(ctx, "min_heat_temp", func(d Device) error { return d.WriteMinHeatTemp(v) })
}

func (c *Coordinator) SetMaxHeatTemp(ctx context.Context, v float64) error {
	return c.write(ctx, "max_heat_temp", func(d Device) error { return d.WriteMaxHeatTemp(v) })
}

// Refresh requests an out-of-cycle poll and returns its error.
func (c *Coordinator) Refresh(ctx context.Context) error {
	return c.submit(ctx, job{op: "refresh"})
}

func (c *Coordinator) write(ctx context.Context, op string, fn func(Device) error) error {
	if c.cfg.ReadOnly {
		c.log.Warn().Str("op", op).Msg("write rejected: read-only mode")
		return ErrWriteRejected
	}
	return c.submit(ctx, job{op: op, run: fn})
}

// submit queues j and waits for its result. A cancelled ctx releases the
// caller; a queued job still runs to completion on the I/O goroutine.
func (c *Coordinator) submit(ctx context.Context, j job) error {
	j.res = make(chan error, 1)

	select {
	case <-c.done:
		return ErrStopped
	default:
	}

	select {
	case c.jobs <- j:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		select {
		case err := <-j.res:
			return err
		default:
			return ErrStopped
		}
	}
}
