// internal/coordinator/runner.go
package coordinator

import (
	"context"
	"time"

	"github.com/tamzrod/zentec-bridge/internal/status"
)

// Run is the single I/O goroutine: ticker polls, refreshes and writes,
// strictly one at a time. Cancelling ctx stops future work; an in-flight
// request is never interrupted. The device is closed on return.
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.done)
	defer func() {
		if err := c.dev.Close(); err != nil {
			c.log.Warn().Err(err).Msg("device close failed")
		}
	}()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll()
		case j := <-c.jobs:
			c.exec(j)
		}
	}
}

func (c *Coordinator) exec(j job) {
	if j.run == nil {
		j.res <- c.poll()
		return
	}

	err := j.run(c.dev)
	if c.cfg.Observer != nil {
		c.cfg.Observer.ObserveWrite(j.op, err)
	}
	if err != nil {
		c.log.Error().Err(err).Str("op", j.op).Msg("write failed")
		j.res <- err
		return
	}

	c.log.Info().Str("op", j.op).Msg("write ok")

	// Read back before the next job so callers observe their own write.
	_ = c.poll()
	j.res <- nil
}

// poll performs one ReadState and folds the outcome into the state.
func (c *Coordinator) poll() error {
	start := time.Now()
	r, err := c.dev.ReadState()
	took := time.Since(start)

	if c.cfg.Observer != nil {
		c.cfg.Observer.ObservePoll(took, len(r.Failed), err)
	}

	c.mu.Lock()
	prev := c.state
	st := &c.state
	st.LastAttempt = start

	if err != nil {
		st.LastOK = false
		st.LastErr = err
		if st.FailingSince.IsZero() {
			st.FailingSince = start
		}
		if st.HasData {
			st.Health = status.HealthStale
		} else {
			st.Health = status.HealthError
		}
	} else {
		if r.Snapshot.Empty() {
			c.log.Warn().Int("failed_fields", len(r.Failed)).Msg("device answered but refused every field")
		}
		if st.HasData {
			st.Snapshot = status.Merge(st.Snapshot, r.Snapshot)
		} else {
			st.Snapshot = r.Snapshot
			st.HasData = true
		}
		st.Failed = r.Failed
		st.LastOK = true
		st.LastErr = nil
		st.LastSuccess = r.At
		st.FailingSince = time.Time{}
		st.Health = status.HealthOK
	}
	next := c.state
	c.mu.Unlock()

	c.logTransition(prev, next, took)
	c.publish(next)
	return err
}

// logTransition logs health changes loudly and steady state quietly.
func (c *Coordinator) logTransition(prev, next State, took time.Duration) {
	if next.Health != prev.Health {
		ev := c.log.Info()
		if next.Health != status.HealthOK {
			ev = c.log.Warn().Err(next.LastErr)
		}
		ev.Str("health", status.HealthName(next.Health)).
			Str("was", status.HealthName(prev.Health)).
			Dur("took", took).
			Msg("device health changed")
		return
	}

	ev := c.log.Debug().Str("health", status.HealthName(next.Health)).Dur("took", took)
	if next.LastErr != nil {
		ev = ev.Err(next.LastErr)
	}
	for _, fe := range next.Failed {
		ev = ev.Str("failed_"+fe.Field.String(), fe.Err.Error())
	}
	ev.Msg("poll")
}
